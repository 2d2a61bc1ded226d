package scene

import (
	"github.com/go-gl/mathgl/mgl64"

	"sodareplay/internal/assetref"
)

// Kind identifies an entity variant.
type Kind string

const (
	KindStaticMesh   Kind = "static_mesh"
	KindPlayerRig    Kind = "player_rig"
	KindGUIElement   Kind = "gui_element"
	KindCharacterRig Kind = "character_rig"
	KindImagePlane   Kind = "image_plane"
	KindSpeaker      Kind = "speaker"
)

// Entity is implemented by every placed object.
type Entity interface {
	EntityID() string
	EntityKind() Kind
}

// Transform places an entity. Rotation is XYZ Euler in radians.
type Transform struct {
	Location mgl64.Vec3 `json:"location"`
	Rotation mgl64.Vec3 `json:"rotation"`
	Scale    mgl64.Vec3 `json:"scale"`
}

// Identity is the origin transform with unit scale.
func Identity() Transform {
	return Transform{Scale: mgl64.Vec3{1, 1, 1}}
}

// Primitive is a generated mesh standing in for an inline descriptor.
type Primitive struct {
	Shape string     `json:"shape"`
	Box   bool       `json:"box"`
	Size  mgl64.Vec3 `json:"size"`
}

// Scale returns the scale applied to a unit-2 primitive mesh of this size.
func (p Primitive) Scale() mgl64.Vec3 { return p.Size.Mul(0.5) }

// StaticMesh is an unanimated map placement.
type StaticMesh struct {
	ID        string       `json:"id"`
	Key       assetref.Key `json:"key"`
	Source    string       `json:"source"`
	Primitive *Primitive   `json:"primitive,omitempty"`
	Transform Transform    `json:"transform"`
}

func (m *StaticMesh) EntityID() string { return m.ID }
func (m *StaticMesh) EntityKind() Kind { return KindStaticMesh }

// PlayerRig is an empty rig animated per frame.
type PlayerRig struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Slot      int               `json:"slot"`
	Transform Transform         `json:"transform"`
	Location  Track[mgl64.Vec3] `json:"location"`
	Rotation  Track[mgl64.Vec3] `json:"rotation"`
}

func (p *PlayerRig) EntityID() string { return p.ID }
func (p *PlayerRig) EntityKind() Kind { return KindPlayerRig }

// GUIElement is a text object created the first frame its path appears.
type GUIElement struct {
	ID         string        `json:"id"`
	Path       string        `json:"path"`
	FirstFrame int           `json:"first_frame"`
	Transform  Transform     `json:"transform"`
	Text       Track[string] `json:"text"`
	Visible    Track[bool]   `json:"visible"`
}

func (g *GUIElement) EntityID() string { return g.ID }
func (g *GUIElement) EntityKind() Kind { return KindGUIElement }

// CharacterPart is one mesh or primitive of a character rig.
type CharacterPart struct {
	Source    string     `json:"source"`
	Primitive *Primitive `json:"primitive,omitempty"`
}

// CharacterRig parents a character's parts under one empty.
type CharacterRig struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Transform Transform       `json:"transform"`
	Parts     []CharacterPart `json:"parts"`
}

func (c *CharacterRig) EntityID() string { return c.ID }
func (c *CharacterRig) EntityKind() Kind { return KindCharacterRig }

// Material binds an image as base color.
type Material struct {
	Name    string `json:"name"`
	Texture string `json:"texture"`
}

// ImagePlane shows a GUI image on a 2x2 plane at the origin.
type ImagePlane struct {
	ID        string    `json:"id"`
	Material  string    `json:"material"`
	Transform Transform `json:"transform"`
}

func (p *ImagePlane) EntityID() string { return p.ID }
func (p *ImagePlane) EntityKind() Kind { return KindImagePlane }

// Speaker plays a sound from the origin.
type Speaker struct {
	ID        string    `json:"id"`
	Sound     string    `json:"sound"`
	Transform Transform `json:"transform"`
}

func (s *Speaker) EntityID() string { return s.ID }
func (s *Speaker) EntityKind() Kind { return KindSpeaker }

// AnimationClip references an imported animation file.
type AnimationClip struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

// Scene is the reconstructed description handed to a rendering host.
type Scene struct {
	FrameStart   int             `json:"frame_start"`
	FrameEnd     int             `json:"frame_end"`
	Materials    []Material      `json:"materials"`
	Animations   []AnimationClip `json:"animations"`
	StaticMeshes []*StaticMesh   `json:"static_meshes"`
	Characters   []*CharacterRig `json:"characters"`
	Players      []*PlayerRig    `json:"players"`
	GUI          []*GUIElement   `json:"gui"`
	ImagePlanes  []*ImagePlane   `json:"image_planes"`
	Speakers     []*Speaker      `json:"speakers"`
}

// Entities lists every entity in a stable order.
func (s *Scene) Entities() []Entity {
	var out []Entity
	for _, e := range s.StaticMeshes {
		out = append(out, e)
	}
	for _, e := range s.Characters {
		out = append(out, e)
	}
	for _, e := range s.Players {
		out = append(out, e)
	}
	for _, e := range s.GUI {
		out = append(out, e)
	}
	for _, e := range s.ImagePlanes {
		out = append(out, e)
	}
	for _, e := range s.Speakers {
		out = append(out, e)
	}
	return out
}

// Player returns the rig at roster slot i.
func (s *Scene) Player(slot int) (*PlayerRig, bool) {
	if slot < 0 || slot >= len(s.Players) {
		return nil, false
	}
	return s.Players[slot], true
}

// GUIByID returns a GUI element by entity ID.
func (s *Scene) GUIByID(id string) (*GUIElement, bool) {
	for _, g := range s.GUI {
		if g.ID == id {
			return g, true
		}
	}
	return nil, false
}
