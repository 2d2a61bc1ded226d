package assetref

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/tidwall/gjson"

	"sodareplay/internal/services"
)

// Kind discriminates the two reference forms.
type Kind int

const (
	KindRemote Kind = iota + 1
	KindPrimitive
)

func (k Kind) String() string {
	switch k {
	case KindRemote:
		return "remote"
	case KindPrimitive:
		return "primitive"
	default:
		return "unknown"
	}
}

// ShapeBox is the primitive name rendered as a box; every other shape is
// rendered as a wedge.
const ShapeBox = "Part"

// Reference is a normalized asset reference. Exactly one form is populated:
// ID for KindRemote, Shape/Size/Raw for KindPrimitive.
type Reference struct {
	Kind  Kind
	ID    string
	Shape string
	Size  [3]float64
	// Raw holds the primitive descriptor exactly as submitted.
	Raw []byte
}

// Remote builds a remote reference from an already-extracted numeric ID.
func Remote(id string) Reference {
	return Reference{Kind: KindRemote, ID: id}
}

// IsPrimitive reports whether the reference is an inline primitive.
func (r Reference) IsPrimitive() bool { return r.Kind == KindPrimitive }

// IsBox reports whether a primitive renders as a box.
func (r Reference) IsBox() bool { return r.Kind == KindPrimitive && r.Shape == ShapeBox }

func (r Reference) String() string {
	switch r.Kind {
	case KindRemote:
		return r.ID
	case KindPrimitive:
		return fmt.Sprintf("%s(%s)", r.Shape, formatSize(r.Size))
	default:
		return "<invalid>"
	}
}

// InvalidReferenceError reports a manifest entry that cannot be normalized.
type InvalidReferenceError struct {
	Input  string
	Reason string
}

func (e *InvalidReferenceError) Error() string {
	if e.Input == "" {
		return "invalid asset reference: " + e.Reason
	}
	return fmt.Sprintf("invalid asset reference %q: %s", e.Input, e.Reason)
}

func (e *InvalidReferenceError) Is(target error) bool {
	return target == services.ErrInvalidReference
}

func invalid(input []byte, reason string) error {
	text := string(input)
	if len(text) > 64 {
		text = text[:64] + "..."
	}
	return &InvalidReferenceError{Input: text, Reason: reason}
}

// Normalize parses a raw JSON manifest entry into a Reference.
//
// Strings and bare integers yield remote references built from every ASCII
// digit they contain. Objects with a "primitive" field yield primitives whose
// size must be three positive numbers. Objects with a "meshId" field, as sent
// for character parts, yield remote references.
func Normalize(raw []byte) (Reference, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || !gjson.ValidBytes(trimmed) {
		return Reference{}, invalid(trimmed, "not valid JSON")
	}
	res := gjson.ParseBytes(trimmed)
	switch res.Type {
	case gjson.String:
		return NormalizeString(res.Str)
	case gjson.Number:
		return NormalizeString(res.Raw)
	case gjson.JSON:
		if !res.IsObject() {
			return Reference{}, invalid(trimmed, "expected string or object")
		}
		if prim := res.Get("primitive"); prim.Exists() {
			return normalizePrimitive(trimmed, res)
		}
		if mesh := res.Get("meshId"); mesh.Exists() {
			return NormalizeString(mesh.String())
		}
		return Reference{}, invalid(trimmed, `object has neither "primitive" nor "meshId"`)
	default:
		return Reference{}, invalid(trimmed, "expected string or object")
	}
}

// NormalizeString extracts the numeric ID from a possibly noisy string.
func NormalizeString(s string) (Reference, error) {
	id := Digits(s)
	if id == "" {
		return Reference{}, &InvalidReferenceError{Input: s, Reason: "no digits found"}
	}
	return Remote(id), nil
}

// Digits returns the ASCII digits of s in order, dropping everything else.
func Digits(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

func normalizePrimitive(raw []byte, res gjson.Result) (Reference, error) {
	prim := res.Get("primitive")
	if prim.Type != gjson.String || strings.TrimSpace(prim.Str) == "" {
		return Reference{}, invalid(raw, "primitive must be a non-empty string")
	}
	shape := strings.TrimSpace(prim.Str)
	if strings.ContainsAny(shape, `/\`+"\x00") || strings.Contains(shape, "..") {
		return Reference{}, invalid(raw, "primitive name is not filename safe")
	}

	size := res.Get("size")
	if !size.IsArray() {
		return Reference{}, invalid(raw, "size must be an array")
	}
	values := size.Array()
	if len(values) != 3 {
		return Reference{}, invalid(raw, fmt.Sprintf("size must have 3 components, got %d", len(values)))
	}
	ref := Reference{Kind: KindPrimitive, Shape: shape, Raw: append([]byte(nil), raw...)}
	for i, v := range values {
		if v.Type != gjson.Number {
			return Reference{}, invalid(raw, fmt.Sprintf("size[%d] is not a number", i))
		}
		if !(v.Num > 0) || math.IsInf(v.Num, 0) {
			return Reference{}, invalid(raw, fmt.Sprintf("size[%d] must be positive", i))
		}
		ref.Size[i] = v.Num
	}
	return ref, nil
}
