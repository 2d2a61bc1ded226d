package scene

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"sodareplay/internal/assetref"
	"sodareplay/internal/capture"
	"sodareplay/internal/config"
	"sodareplay/internal/logging"
	"sodareplay/internal/manifest"
	"sodareplay/internal/services"
)

// RosterPolicy decides what happens when a frame's player count differs from
// the roster seeded on the first frame.
type RosterPolicy string

const (
	// RosterStrict rejects the capture.
	RosterStrict RosterPolicy = config.RosterStrict
	// RosterIgnoreExtra drops players beyond the roster; missing players hold.
	RosterIgnoreExtra RosterPolicy = config.RosterIgnoreExtra
	// RosterFreezeMissing drops extras and keys missing players at their last pose.
	RosterFreezeMissing RosterPolicy = config.RosterFreezeMissing
)

// ParseRosterPolicy validates a policy name. Empty selects RosterStrict.
func ParseRosterPolicy(value string) (RosterPolicy, error) {
	switch p := RosterPolicy(strings.ToLower(strings.TrimSpace(value))); p {
	case "":
		return RosterStrict, nil
	case RosterStrict, RosterIgnoreExtra, RosterFreezeMissing:
		return p, nil
	default:
		return "", services.Wrap(services.ErrConfiguration, "scene", "roster policy", fmt.Sprintf("unknown value %q", value), nil)
	}
}

// Option customizes a Builder.
type Option func(*Builder)

// WithRosterPolicy selects the roster reconciliation policy.
func WithRosterPolicy(p RosterPolicy) Option {
	return func(b *Builder) {
		if p != "" {
			b.policy = p
		}
	}
}

// WithLogger sets the builder logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) { b.logger = logging.NewComponentLogger(logger, "scene") }
}

// Builder accumulates scene state across reconstruction steps.
type Builder struct {
	assets manifest.Assets
	policy RosterPolicy
	logger *slog.Logger

	scene     *Scene
	seeded    bool
	lastFrame int
	gui       map[string]*GUIElement
	warned    map[string]bool
}

// NewBuilder starts an empty scene over assets.
func NewBuilder(assets manifest.Assets, opts ...Option) *Builder {
	b := &Builder{
		assets: assets,
		policy: RosterStrict,
		logger: logging.NewComponentLogger(nil, "scene"),
		scene:  &Scene{FrameStart: 1},
		gui:    map[string]*GUIElement{},
		warned: map[string]bool{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// PlaceLibrary adds entities for indexed assets that are not tied to the
// timeline: materials for textures, image planes for GUI images, speakers for
// sounds, animation clips, and one rig per character.
func (b *Builder) PlaceLibrary() {
	keys := make([]assetref.Key, 0, len(b.assets.Index))
	for key := range b.assets.Index {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, key := range keys {
		category, _ := key.Category()
		for _, path := range b.assets.Index[key] {
			name := filepath.Base(path)
			switch {
			case key.IsPrimitive():
				// placed through map parts only
			case category == assetref.CategoryTexture:
				b.scene.Materials = append(b.scene.Materials, Material{Name: name, Texture: path})
			case category == assetref.CategoryGUI:
				b.scene.Materials = append(b.scene.Materials, Material{Name: name, Texture: path})
				b.scene.ImagePlanes = append(b.scene.ImagePlanes, &ImagePlane{
					ID:        "Plane_" + string(key),
					Material:  name,
					Transform: Identity(),
				})
			case category == assetref.CategorySound:
				b.scene.Speakers = append(b.scene.Speakers, &Speaker{ID: name, Sound: path, Transform: Identity()})
			case category == assetref.CategoryAnimation:
				b.scene.Animations = append(b.scene.Animations, AnimationClip{Name: string(key), Source: path})
			}
		}
	}

	names := make([]string, 0, len(b.assets.Characters))
	for name := range b.assets.Characters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rig := &CharacterRig{ID: name, Name: name, Transform: Identity()}
		for _, path := range b.assets.Characters[name] {
			part := CharacterPart{Source: path}
			if strings.EqualFold(filepath.Ext(path), ".json") {
				part.Primitive = b.loadPrimitive(path)
			}
			rig.Parts = append(rig.Parts, part)
		}
		b.scene.Characters = append(b.scene.Characters, rig)
	}
}

// PlaceStatic emits one static mesh per resolved path of each map part.
// Parts whose mesh was never resolved are skipped. It returns the number of
// meshes placed.
func (b *Builder) PlaceStatic(parts []capture.MapPart) int {
	placed := 0
	skipped := 0
	for i, part := range parts {
		paths := b.assets.Lookup(part.Key)
		if part.Key == "" || len(paths) == 0 {
			skipped++
			continue
		}
		for j, path := range paths {
			mesh := &StaticMesh{
				ID:     fmt.Sprintf("%s.%d.%d", part.Key, i+1, j+1),
				Key:    part.Key,
				Source: path,
				Transform: Transform{
					Location: part.Position,
					Rotation: part.Rotation,
					Scale:    mgl64.Vec3{1, 1, 1},
				},
			}
			if part.Key.IsPrimitive() {
				if prim := b.loadPrimitive(path); prim != nil {
					mesh.Primitive = prim
					mesh.Transform.Scale = prim.Scale()
				}
			}
			b.scene.StaticMeshes = append(b.scene.StaticMeshes, mesh)
			placed++
		}
	}
	if skipped > 0 {
		b.logger.Debug("map parts without resolved meshes skipped", logging.Int("skipped", skipped))
	}
	return placed
}

// SeedRoster creates one player rig per entry of the first frame, indexed by
// position. It may only be called once.
func (b *Builder) SeedRoster(players []capture.PlayerPose) error {
	if b.seeded {
		return fmt.Errorf("roster already seeded")
	}
	b.seeded = true
	for i, p := range players {
		b.scene.Players = append(b.scene.Players, &PlayerRig{
			ID:        PlayerRigID(i, p.Name),
			Name:      p.Name,
			Slot:      i,
			Transform: Identity(),
			Location:  NewTrack[mgl64.Vec3]("location", InterpolationLinear),
			Rotation:  NewTrack[mgl64.Vec3]("rotation_euler", InterpolationLinear),
		})
	}
	return nil
}

// PlayerRigID names the rig for roster slot; the slot keeps IDs unique when
// names repeat or are empty.
func PlayerRigID(slot int, name string) string {
	if name == "" {
		return fmt.Sprintf("Player_%d", slot)
	}
	return fmt.Sprintf("Player_%d_%s", slot, name)
}

// ApplyFrame keys players and GUI elements for frame f. Frames must be
// applied in increasing order after SeedRoster.
func (b *Builder) ApplyFrame(f capture.Frame) error {
	if !b.seeded {
		return fmt.Errorf("apply frame %d: roster not seeded", f.Index)
	}
	if f.Index <= b.lastFrame {
		return fmt.Errorf("apply frame %d: frames must increase (last %d)", f.Index, b.lastFrame)
	}
	if err := b.applyPlayers(f); err != nil {
		return err
	}
	for _, state := range f.GUI {
		b.applyGUI(f.Index, state)
	}
	b.lastFrame = f.Index
	return nil
}

func (b *Builder) applyPlayers(f capture.Frame) error {
	roster := len(b.scene.Players)
	count := len(f.Players)
	if count != roster {
		if b.policy == RosterStrict {
			return &capture.MalformedError{
				Field:  "players",
				Frame:  f.Index,
				Reason: fmt.Sprintf("roster has %d players, frame has %d", roster, count),
			}
		}
		b.warnOnce("roster_mismatch", "player count differs from roster",
			logging.Int(logging.FieldFrame, f.Index),
			logging.Int("roster", roster),
			logging.Int("players", count),
			logging.String("policy", string(b.policy)),
			logging.String(logging.FieldImpact, "players beyond the roster are dropped"),
		)
	}

	for i, rig := range b.scene.Players {
		if i < count {
			pose := f.Players[i]
			rig.Transform.Location = pose.Position
			rig.Transform.Rotation = pose.Rotation
			rig.Location.Insert(f.Index, pose.Position)
			rig.Rotation.Insert(f.Index, pose.Rotation)
			continue
		}
		if b.policy == RosterFreezeMissing {
			if last, ok := rig.Location.Last(); ok {
				rig.Location.Insert(f.Index, last.Value)
			}
			if last, ok := rig.Rotation.Last(); ok {
				rig.Rotation.Insert(f.Index, last.Value)
			}
		}
	}
	return nil
}

// GUIElementID derives the entity ID for a GUI path.
func GUIElementID(path string) string {
	return "GUI_" + strings.ReplaceAll(path, ".", "_")
}

func (b *Builder) applyGUI(frame int, state capture.GUIState) {
	id := GUIElementID(state.Path)
	elem, ok := b.gui[id]
	if !ok {
		elem = &GUIElement{
			ID:         id,
			Path:       state.Path,
			FirstFrame: frame,
			Transform:  Identity(),
			Text:       NewTrack[string]("body", InterpolationConstant),
			Visible:    NewTrack[bool]("visible", InterpolationConstant),
		}
		b.gui[id] = elem
		b.scene.GUI = append(b.scene.GUI, elem)
	}
	elem.Text.Insert(frame, state.Text)
	elem.Visible.Insert(frame, state.Visible)
}

// Finalize sets the frame extent to n and returns the scene.
func (b *Builder) Finalize(n int) *Scene {
	b.scene.FrameStart = 1
	b.scene.FrameEnd = n
	return b.scene
}

func (b *Builder) loadPrimitive(path string) *Primitive {
	data, err := os.ReadFile(path)
	if err == nil {
		var ref assetref.Reference
		if ref, err = assetref.Normalize(data); err == nil && ref.IsPrimitive() {
			return &Primitive{Shape: ref.Shape, Box: ref.IsBox(), Size: mgl64.Vec3(ref.Size)}
		}
		if err == nil {
			err = fmt.Errorf("not a primitive descriptor")
		}
	}
	logging.WarnWithContext(b.logger, "primitive descriptor unreadable", "scene_primitive_unreadable",
		logging.String("path", path),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "re-resolve the manifest to rewrite descriptors"),
		logging.String(logging.FieldImpact, "placed without primitive geometry"),
	)
	return nil
}

func (b *Builder) warnOnce(event, msg string, attrs ...logging.Attr) {
	if b.warned[event] {
		return
	}
	b.warned[event] = true
	logging.WarnWithContext(b.logger, msg, event, attrs...)
}

// Reconstruct runs every builder step over timeline. Cancellation is checked
// between frames; a cancelled run returns the scene built so far alongside
// the error.
func Reconstruct(ctx context.Context, timeline *capture.Timeline, assets manifest.Assets, opts ...Option) (*Scene, error) {
	if timeline == nil || len(timeline.Frames) == 0 {
		return nil, &capture.MalformedError{Field: "frames", Reason: "empty"}
	}
	b := NewBuilder(assets, opts...)
	b.PlaceLibrary()
	b.PlaceStatic(timeline.MapParts)
	if err := b.SeedRoster(timeline.Frames[0].Players); err != nil {
		return nil, err
	}
	for _, frame := range timeline.Frames {
		if err := ctx.Err(); err != nil {
			return b.Finalize(b.lastFrame), services.Wrap(services.ErrCancelled, "scene", "reconstruct",
				fmt.Sprintf("stopped before frame %d", frame.Index), err)
		}
		if err := b.ApplyFrame(frame); err != nil {
			return nil, err
		}
	}
	scene := b.Finalize(len(timeline.Frames))
	b.logger.Info("scene reconstructed",
		logging.String(logging.FieldEventType, "scene_reconstructed"),
		logging.Int("frames", scene.FrameEnd),
		logging.Int("players", len(scene.Players)),
		logging.Int("gui_elements", len(scene.GUI)),
		logging.Int("static_meshes", len(scene.StaticMeshes)),
	)
	return scene, nil
}
