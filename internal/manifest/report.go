package manifest

import (
	"encoding/json"
	"time"

	"sodareplay/internal/assetref"
)

// Outcome classifies the handling of one reference.
type Outcome string

const (
	OutcomeFetched   Outcome = "fetched"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeReused    Outcome = "reused"
	OutcomeWritten   Outcome = "written"
	OutcomeFailed    Outcome = "failed"
	OutcomeInvalid   Outcome = "invalid"
	OutcomeCancelled Outcome = "cancelled"
)

// Succeeded reports whether the asset is present on disk after the run.
func (o Outcome) Succeeded() bool {
	switch o {
	case OutcomeFetched, OutcomeSkipped, OutcomeReused, OutcomeWritten:
		return true
	}
	return false
}

// Retryable reports whether re-submitting the reference could succeed.
func (o Outcome) Retryable() bool {
	return o == OutcomeFailed || o == OutcomeCancelled
}

// Result is the record of one manifest reference.
type Result struct {
	Section   Section         `json:"section"`
	Character string          `json:"character,omitempty"`
	Key       assetref.Key    `json:"key,omitempty"`
	Path      string          `json:"path,omitempty"`
	Outcome   Outcome         `json:"outcome"`
	Error     string          `json:"error,omitempty"`
	ErrorKind string          `json:"error_kind,omitempty"`
	Raw       json.RawMessage `json:"raw"`

	err error
}

// Err returns the underlying error, if any.
func (r Result) Err() error { return r.err }

// Duplicate notes a key referenced more than once in one manifest. Distinct
// is set when the occurrences carried different descriptors that were merged.
type Duplicate struct {
	Key         assetref.Key `json:"key"`
	Occurrences int          `json:"occurrences"`
	Distinct    bool         `json:"distinct"`
}

// Summary counts outcomes across a run.
type Summary struct {
	Total     int `json:"total"`
	Fetched   int `json:"fetched"`
	Skipped   int `json:"skipped"`
	Reused    int `json:"reused"`
	Written   int `json:"written"`
	Failed    int `json:"failed"`
	Invalid   int `json:"invalid"`
	Cancelled int `json:"cancelled"`
}

func (s *Summary) add(o Outcome) {
	s.Total++
	switch o {
	case OutcomeFetched:
		s.Fetched++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeReused:
		s.Reused++
	case OutcomeWritten:
		s.Written++
	case OutcomeFailed:
		s.Failed++
	case OutcomeInvalid:
		s.Invalid++
	case OutcomeCancelled:
		s.Cancelled++
	}
}

// Problems is the number of references that did not resolve.
func (s Summary) Problems() int { return s.Failed + s.Invalid + s.Cancelled }

// Assets is the resolved asset index handed to the scene reconstructor.
type Assets struct {
	// Index maps keys of flat (non-character) references to their paths.
	Index map[assetref.Key][]string `json:"index"`
	// Characters maps character names to resolved part paths, in part order.
	Characters map[string][]string `json:"characters"`
}

// NewAssets returns an empty index.
func NewAssets() Assets {
	return Assets{Index: map[assetref.Key][]string{}, Characters: map[string][]string{}}
}

// Lookup returns the paths resolved for key.
func (a Assets) Lookup(key assetref.Key) []string {
	return a.Index[key]
}

func (a Assets) add(key assetref.Key, path string) {
	for _, existing := range a.Index[key] {
		if existing == path {
			return
		}
	}
	a.Index[key] = append(a.Index[key], path)
}

// Report aggregates a resolution run.
type Report struct {
	RunID      string      `json:"run_id"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Assets     Assets      `json:"assets"`
	Results    []Result    `json:"results"`
	Duplicates []Duplicate `json:"duplicates,omitempty"`
	Summary    Summary     `json:"summary"`
	// Cancelled is set when the run stopped before every job ran.
	Cancelled bool `json:"cancelled"`
}

// OK reports whether every reference resolved.
func (r *Report) OK() bool { return r.Summary.Problems() == 0 }

// Errors returns the per-asset errors in job order.
func (r *Report) Errors() []error {
	var errs []error
	for _, res := range r.Results {
		if res.err != nil {
			errs = append(errs, res.err)
		}
	}
	return errs
}

// Failures returns the results that did not resolve.
func (r *Report) Failures() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.Outcome.Succeeded() {
			out = append(out, res)
		}
	}
	return out
}

// RetryManifest rebuilds a manifest holding only retryable references.
func RetryManifest(results []Result) *Manifest {
	m := &Manifest{}
	charIndex := map[string]int{}
	for _, res := range results {
		if !res.Outcome.Retryable() || len(res.Raw) == 0 {
			continue
		}
		raw := append(json.RawMessage(nil), res.Raw...)
		switch res.Section {
		case SectionModels:
			m.Models = append(m.Models, raw)
		case SectionTextures:
			m.Textures = append(m.Textures, raw)
		case SectionAnimations:
			m.Animations = append(m.Animations, raw)
		case SectionGUIImages:
			m.GUIImages = append(m.GUIImages, raw)
		case SectionSounds:
			m.Sounds = append(m.Sounds, raw)
		case SectionCharacters:
			idx, ok := charIndex[res.Character]
			if !ok {
				idx = len(m.Characters)
				charIndex[res.Character] = idx
				m.Characters = append(m.Characters, Character{Name: res.Character})
			}
			m.Characters[idx].Parts = append(m.Characters[idx].Parts, raw)
		}
	}
	return m
}

// RetryManifest returns a manifest of this run's retryable failures.
func (r *Report) RetryManifest() *Manifest { return RetryManifest(r.Results) }
