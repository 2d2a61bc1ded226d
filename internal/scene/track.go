package scene

import "sort"

// Interpolation tells the host how to evaluate a track between keys.
type Interpolation string

const (
	InterpolationLinear   Interpolation = "linear"
	InterpolationConstant Interpolation = "constant"
)

// Keyframe is one explicit value at a frame.
type Keyframe[T any] struct {
	Frame int `json:"frame"`
	Value T   `json:"value"`
}

// Track is a sparse, frame-ordered channel.
type Track[T any] struct {
	Channel       string        `json:"channel"`
	Interpolation Interpolation `json:"interpolation"`
	Keys          []Keyframe[T] `json:"keys"`
}

// NewTrack returns an empty track for channel.
func NewTrack[T any](channel string, interp Interpolation) Track[T] {
	return Track[T]{Channel: channel, Interpolation: interp}
}

// Insert sets the key at frame, replacing an existing key at that frame.
func (t *Track[T]) Insert(frame int, value T) {
	n := len(t.Keys)
	if n == 0 || t.Keys[n-1].Frame < frame {
		t.Keys = append(t.Keys, Keyframe[T]{Frame: frame, Value: value})
		return
	}
	i := sort.Search(n, func(i int) bool { return t.Keys[i].Frame >= frame })
	if i < n && t.Keys[i].Frame == frame {
		t.Keys[i].Value = value
		return
	}
	t.Keys = append(t.Keys, Keyframe[T]{})
	copy(t.Keys[i+1:], t.Keys[i:])
	t.Keys[i] = Keyframe[T]{Frame: frame, Value: value}
}

// Len returns the number of keys.
func (t *Track[T]) Len() int { return len(t.Keys) }

// Frames lists keyed frames in order.
func (t *Track[T]) Frames() []int {
	out := make([]int, len(t.Keys))
	for i, k := range t.Keys {
		out[i] = k.Frame
	}
	return out
}

// Last returns the most recent key.
func (t *Track[T]) Last() (Keyframe[T], bool) {
	if len(t.Keys) == 0 {
		return Keyframe[T]{}, false
	}
	return t.Keys[len(t.Keys)-1], true
}

// Hold returns the value held at frame: the last key at or before it.
func (t *Track[T]) Hold(frame int) (T, bool) {
	i := sort.Search(len(t.Keys), func(i int) bool { return t.Keys[i].Frame > frame })
	if i == 0 {
		var zero T
		return zero, false
	}
	return t.Keys[i-1].Value, true
}
