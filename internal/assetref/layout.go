package assetref

import (
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Store subdirectories relative to the export root.
const (
	ModelsDir     = "models"
	CharactersDir = "characters"
	TexturesDir   = "textures"
	AnimationsDir = "animations"
	GUIDir        = "gui"
	SoundsDir     = "sounds"
)

// Layout maps keys onto the export directory tree.
type Layout struct {
	Root string
}

// NewLayout returns a layout rooted at root.
func NewLayout(root string) Layout {
	return Layout{Root: filepath.Clean(root)}
}

// Dir returns the directory holding assets of category c.
func (l Layout) Dir(c Category) string {
	switch c {
	case CategoryTexture:
		return filepath.Join(l.Root, TexturesDir)
	case CategoryAnimation:
		return filepath.Join(l.Root, AnimationsDir)
	case CategoryGUI:
		return filepath.Join(l.Root, GUIDir)
	case CategorySound:
		return filepath.Join(l.Root, SoundsDir)
	default:
		return filepath.Join(l.Root, ModelsDir)
	}
}

// CharactersRoot is the parent of every per-character directory.
func (l Layout) CharactersRoot() string {
	return filepath.Join(l.Root, ModelsDir, CharactersDir)
}

// Directories lists every fixed store directory.
func (l Layout) Directories() []string {
	return []string{
		l.Root,
		l.Dir(CategoryMesh),
		l.CharactersRoot(),
		l.Dir(CategoryTexture),
		l.Dir(CategoryAnimation),
		l.Dir(CategoryGUI),
		l.Dir(CategorySound),
	}
}

// Path returns the flat store location for key.
func (l Layout) Path(key Key) string {
	return LocalPath(key, l.Root)
}

// CharacterPath returns the location of key inside a character directory.
func (l Layout) CharacterPath(character string, key Key) (string, error) {
	dir, err := l.CharacterDir(character)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, key.Filename()), nil
}

// CharacterDir returns the directory for a character's parts.
func (l Layout) CharacterDir(character string) (string, error) {
	name, err := CharacterName(character)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.CharactersRoot(), name), nil
}

// LocalPath maps key to its file under baseDir.
func LocalPath(key Key, baseDir string) string {
	c, _ := key.Category()
	return filepath.Join(NewLayout(baseDir).Dir(c), key.Filename())
}

// CharacterName normalizes a character name into a single safe path
// component.
func CharacterName(name string) (string, error) {
	cleaned := norm.NFC.String(strings.TrimSpace(name))
	switch {
	case cleaned == "":
		return "", &InvalidReferenceError{Input: name, Reason: "character name is empty"}
	case cleaned == "." || cleaned == "..":
		return "", &InvalidReferenceError{Input: name, Reason: "character name is reserved"}
	case strings.ContainsAny(cleaned, `/\`+"\x00"):
		return "", &InvalidReferenceError{Input: name, Reason: "character name contains a path separator"}
	}
	return cleaned, nil
}

// String implements fmt.Stringer for diagnostics.
func (l Layout) String() string { return fmt.Sprintf("layout(%s)", l.Root) }
