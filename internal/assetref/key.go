package assetref

import (
	"fmt"
	"strconv"
	"strings"
)

// Category is the asset class of a remote reference; it selects the key
// prefix, store directory, and file extension.
type Category string

const (
	CategoryMesh      Category = "mesh"
	CategoryTexture   Category = "tex"
	CategoryAnimation Category = "anim"
	CategoryGUI       Category = "gui"
	CategorySound     Category = "sound"
)

// Categories lists remote categories in manifest processing order.
var Categories = []Category{CategoryMesh, CategoryTexture, CategoryAnimation, CategoryGUI, CategorySound}

const primitivePrefix = "prim_"

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryMesh, CategoryTexture, CategoryAnimation, CategoryGUI, CategorySound:
		return true
	}
	return false
}

// Ext is the file extension used for assets of this category.
func (c Category) Ext() string {
	switch c {
	case CategoryMesh:
		return ".fbx"
	case CategoryTexture, CategoryGUI:
		return ".png"
	case CategoryAnimation:
		return ".rbxanim"
	case CategorySound:
		return ".ogg"
	}
	return ""
}

// Key is the canonical deduplication identifier of a reference.
type Key string

// CanonicalKey derives the key for ref. The category is ignored for
// primitives, which always live with the models.
func CanonicalKey(ref Reference, category Category) (Key, error) {
	switch ref.Kind {
	case KindRemote:
		if !category.Valid() {
			return "", fmt.Errorf("unknown asset category %q", category)
		}
		if ref.ID == "" {
			return "", &InvalidReferenceError{Reason: "remote reference without id"}
		}
		return Key(string(category) + "_" + ref.ID), nil
	case KindPrimitive:
		return Key(primitivePrefix + ref.Shape + "_" + formatSize(ref.Size)), nil
	default:
		return "", &InvalidReferenceError{Reason: "unknown reference kind"}
	}
}

// MeshKey returns the mesh key for a raw meshId value, or "" when it carries
// no digits. Values already in primitive key form are returned unchanged.
func MeshKey(meshID string) Key {
	trimmed := strings.TrimSpace(meshID)
	if strings.HasPrefix(trimmed, primitivePrefix) {
		return Key(trimmed)
	}
	id := Digits(trimmed)
	if id == "" {
		return ""
	}
	return Key(string(CategoryMesh) + "_" + id)
}

// IsPrimitive reports whether the key names an inline primitive descriptor.
func (k Key) IsPrimitive() bool { return strings.HasPrefix(string(k), primitivePrefix) }

// Category returns the remote category of k. Primitives report CategoryMesh.
func (k Key) Category() (Category, bool) {
	if k.IsPrimitive() {
		return CategoryMesh, true
	}
	prefix, _, ok := strings.Cut(string(k), "_")
	if !ok {
		return "", false
	}
	c := Category(prefix)
	return c, c.Valid()
}

// Ext returns the file extension for k.
func (k Key) Ext() string {
	if k.IsPrimitive() {
		return ".json"
	}
	c, ok := k.Category()
	if !ok {
		return ""
	}
	return c.Ext()
}

// Filename returns the store file name for k.
func (k Key) Filename() string { return string(k) + k.Ext() }

// ParseFilename recovers a key from a store file name, reporting false for
// files the store would never have written.
func ParseFilename(name string) (Key, bool) {
	for _, c := range Categories {
		ext := c.Ext()
		if !strings.HasSuffix(name, ext) {
			continue
		}
		key := Key(strings.TrimSuffix(name, ext))
		id := strings.TrimPrefix(string(key), string(c)+"_")
		if kc, ok := key.Category(); ok && kc == c && id != "" && Digits(id) == id {
			return key, true
		}
	}
	if strings.HasPrefix(name, primitivePrefix) && strings.HasSuffix(name, ".json") {
		return Key(strings.TrimSuffix(name, ".json")), true
	}
	return "", false
}

func formatSize(size [3]float64) string {
	parts := make([]string, 3)
	for i, v := range size {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, "x")
}
