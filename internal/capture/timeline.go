package capture

import (
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/tidwall/gjson"

	"sodareplay/internal/assetref"
	"sodareplay/internal/services"
)

// MapPart is a static world placement.
type MapPart struct {
	MeshID string       `json:"mesh_id"`
	Key    assetref.Key `json:"key"`
	// Position is in world units.
	Position mgl64.Vec3 `json:"position"`
	// Rotation is XYZ Euler in radians.
	Rotation mgl64.Vec3 `json:"rotation"`
}

// PlayerPose is one player's transform in one frame.
type PlayerPose struct {
	Name     string     `json:"name"`
	Position mgl64.Vec3 `json:"position"`
	Rotation mgl64.Vec3 `json:"rotation"`
}

// GUIState is the state of one GUI element in one frame.
type GUIState struct {
	Path    string `json:"path"`
	Text    string `json:"text"`
	Visible bool   `json:"visible"`
}

// Frame is one captured tick. Index starts at 1.
type Frame struct {
	Index   int          `json:"index"`
	Players []PlayerPose `json:"players"`
	GUI     []GUIState   `json:"gui,omitempty"`
}

// Timeline is a validated capture.
type Timeline struct {
	MapParts []MapPart `json:"map_parts"`
	Frames   []Frame   `json:"frames"`
}

// Len returns the number of frames.
func (t *Timeline) Len() int { return len(t.Frames) }

// MalformedError describes the first structural problem found in a capture.
// Frame and Index are 1-based; zero means not applicable.
type MalformedError struct {
	Field  string
	Frame  int
	Index  int
	Reason string
}

func (e *MalformedError) Error() string {
	loc := e.Field
	switch {
	case e.Frame > 0 && e.Index > 0:
		loc = fmt.Sprintf("frame %d: %s[%d]", e.Frame, e.Field, e.Index)
	case e.Frame > 0:
		loc = fmt.Sprintf("frame %d: %s", e.Frame, e.Field)
	case e.Index > 0:
		loc = fmt.Sprintf("%s[%d]", e.Field, e.Index)
	}
	return fmt.Sprintf("malformed capture: %s: %s", loc, e.Reason)
}

func (e *MalformedError) Is(target error) bool { return target == services.ErrMalformedCapture }

// ReadFile loads and parses a capture file.
func ReadFile(path string) (*Timeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, services.Wrap(services.ErrNotFound, "capture", "read", path, err)
		}
		return nil, fmt.Errorf("read capture: %w", err)
	}
	return Parse(data)
}

// Validate reports whether data is a well-formed capture without keeping the
// parsed result.
func Validate(data []byte) error {
	_, err := Parse(data)
	return err
}

// Parse validates a capture document and converts it into a Timeline.
func Parse(data []byte) (*Timeline, error) {
	if !gjson.ValidBytes(data) {
		return nil, &MalformedError{Field: "capture", Reason: "not valid JSON"}
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, &MalformedError{Field: "capture", Reason: "expected an object"}
	}

	timeline := &Timeline{}
	if mapField := root.Get("map"); mapField.Exists() {
		if !mapField.IsArray() {
			return nil, &MalformedError{Field: "map", Reason: "expected an array"}
		}
		for i, item := range mapField.Array() {
			part, err := parseMapPart(item, i+1)
			if err != nil {
				return nil, err
			}
			timeline.MapParts = append(timeline.MapParts, part)
		}
	}

	frames := root.Get("frames")
	if !frames.Exists() {
		return nil, &MalformedError{Field: "frames", Reason: "missing"}
	}
	if !frames.IsArray() {
		return nil, &MalformedError{Field: "frames", Reason: "expected an array"}
	}
	items := frames.Array()
	if len(items) == 0 {
		return nil, &MalformedError{Field: "frames", Reason: "empty"}
	}
	timeline.Frames = make([]Frame, 0, len(items))
	for i, item := range items {
		frame, err := parseFrame(item, i+1)
		if err != nil {
			return nil, err
		}
		timeline.Frames = append(timeline.Frames, frame)
	}
	return timeline, nil
}

func parseMapPart(item gjson.Result, index int) (MapPart, error) {
	fail := func(field, reason string) error {
		return &MalformedError{Field: "map." + field, Index: index, Reason: reason}
	}
	if !item.IsObject() {
		return MapPart{}, fail("entry", "expected an object")
	}
	mesh := item.Get("meshId")
	if !mesh.Exists() {
		return MapPart{}, fail("meshId", "missing")
	}
	pos, err := vec3(item, "pos")
	if err != nil {
		return MapPart{}, fail("pos", err.Error())
	}
	rot, err := vec3(item, "rot")
	if err != nil {
		return MapPart{}, fail("rot", err.Error())
	}
	return MapPart{
		MeshID:   mesh.String(),
		Key:      assetref.MeshKey(mesh.String()),
		Position: pos,
		Rotation: radians(rot),
	}, nil
}

func parseFrame(item gjson.Result, index int) (Frame, error) {
	if !item.IsObject() {
		return Frame{}, &MalformedError{Field: "frame", Frame: index, Reason: "expected an object"}
	}
	players := item.Get("players")
	if !players.Exists() {
		return Frame{}, &MalformedError{Field: "players", Frame: index, Reason: "missing"}
	}
	if !players.IsArray() {
		return Frame{}, &MalformedError{Field: "players", Frame: index, Reason: "expected an array"}
	}
	frame := Frame{Index: index}
	for i, p := range players.Array() {
		fail := func(field, reason string) error {
			return &MalformedError{Field: "players." + field, Frame: index, Index: i + 1, Reason: reason}
		}
		if !p.IsObject() {
			return Frame{}, fail("entry", "expected an object")
		}
		pos, err := vec3(p, "pos")
		if err != nil {
			return Frame{}, fail("pos", err.Error())
		}
		rot, err := vec3(p, "rot")
		if err != nil {
			return Frame{}, fail("rot", err.Error())
		}
		frame.Players = append(frame.Players, PlayerPose{
			Name:     p.Get("name").String(),
			Position: pos,
			Rotation: radians(rot),
		})
	}

	gui := item.Get("guiState")
	if !gui.Exists() || gui.Type == gjson.Null {
		return frame, nil
	}
	if !gui.IsArray() {
		return Frame{}, &MalformedError{Field: "guiState", Frame: index, Reason: "expected an array"}
	}
	for i, g := range gui.Array() {
		fail := func(field, reason string) error {
			return &MalformedError{Field: "guiState." + field, Frame: index, Index: i + 1, Reason: reason}
		}
		path := g.Get("path")
		if path.Type != gjson.String || path.Str == "" {
			return Frame{}, fail("path", "missing")
		}
		visible := g.Get("visible")
		if !visible.IsBool() {
			return Frame{}, fail("visible", "expected a boolean")
		}
		frame.GUI = append(frame.GUI, GUIState{
			Path:    path.Str,
			Text:    g.Get("text").String(),
			Visible: visible.Bool(),
		})
	}
	return frame, nil
}

func vec3(obj gjson.Result, field string) (mgl64.Vec3, error) {
	value := obj.Get(field)
	if !value.Exists() {
		return mgl64.Vec3{}, fmt.Errorf("missing")
	}
	if !value.IsArray() {
		return mgl64.Vec3{}, fmt.Errorf("expected an array of 3 numbers")
	}
	items := value.Array()
	if len(items) != 3 {
		return mgl64.Vec3{}, fmt.Errorf("expected 3 components, got %d", len(items))
	}
	var out mgl64.Vec3
	for i, c := range items {
		if c.Type != gjson.Number {
			return mgl64.Vec3{}, fmt.Errorf("component %d is not a number", i)
		}
		out[i] = c.Num
	}
	return out, nil
}

func radians(deg mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{mgl64.DegToRad(deg[0]), mgl64.DegToRad(deg[1]), mgl64.DegToRad(deg[2])}
}
