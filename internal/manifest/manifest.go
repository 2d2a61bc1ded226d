package manifest

import (
	"encoding/json"
	"fmt"

	"sodareplay/internal/assetref"
)

// Section names a manifest list.
type Section string

const (
	SectionModels     Section = "models"
	SectionTextures   Section = "textures"
	SectionAnimations Section = "animations"
	SectionCharacters Section = "characters"
	SectionGUIImages  Section = "guiImages"
	SectionSounds     Section = "sounds"
)

// Category returns the asset category resolved for entries of s.
func (s Section) Category() assetref.Category {
	switch s {
	case SectionTextures:
		return assetref.CategoryTexture
	case SectionAnimations:
		return assetref.CategoryAnimation
	case SectionGUIImages:
		return assetref.CategoryGUI
	case SectionSounds:
		return assetref.CategorySound
	default:
		return assetref.CategoryMesh
	}
}

// Character groups the part references of one rig.
type Character struct {
	Name  string            `json:"name"`
	Parts []json.RawMessage `json:"parts"`
}

// Manifest is an asset manifest submission. Entries stay raw until the
// resolver normalizes them; missing lists decode as empty.
type Manifest struct {
	Models     []json.RawMessage `json:"models"`
	Textures   []json.RawMessage `json:"textures"`
	Animations []json.RawMessage `json:"animations"`
	Characters []Character       `json:"characters"`
	GUIImages  []json.RawMessage `json:"guiImages"`
	Sounds     []json.RawMessage `json:"sounds"`
}

// Decode parses a manifest JSON document.
func Decode(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}

// Len returns the number of references, counting each character part.
func (m *Manifest) Len() int {
	if m == nil {
		return 0
	}
	n := len(m.Models) + len(m.Textures) + len(m.Animations) + len(m.GUIImages) + len(m.Sounds)
	for _, c := range m.Characters {
		n += len(c.Parts)
	}
	return n
}

// Counts returns per-section entry counts for diagnostics.
func (m *Manifest) Counts() map[Section]int {
	return map[Section]int{
		SectionModels:     len(m.Models),
		SectionTextures:   len(m.Textures),
		SectionAnimations: len(m.Animations),
		SectionCharacters: len(m.Characters),
		SectionGUIImages:  len(m.GUIImages),
		SectionSounds:     len(m.Sounds),
	}
}

// Empty reports whether the manifest references nothing.
func (m *Manifest) Empty() bool { return m.Len() == 0 && len(m.Characters) == 0 }
