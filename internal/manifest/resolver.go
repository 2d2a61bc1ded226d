package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"sodareplay/internal/assetref"
	"sodareplay/internal/assetstore"
	"sodareplay/internal/fileutil"
	"sodareplay/internal/logging"
	"sodareplay/internal/services"
)

// Fetcher retrieves raw asset bytes by numeric ID.
type Fetcher interface {
	Fetch(ctx context.Context, id string) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, id string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, id string) ([]byte, error) { return f(ctx, id) }

// Observer receives every finished report.
type Observer func(ctx context.Context, report *Report)

// Resolver drives the asset store for every reference in a manifest.
type Resolver struct {
	layout    assetref.Layout
	store     *assetstore.Store
	fetcher   Fetcher
	workers   int
	logger    *slog.Logger
	observers []Observer
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithWorkers bounds concurrent fetches.
func WithWorkers(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithStore shares an asset store across resolvers.
func WithStore(store *assetstore.Store) Option {
	return func(r *Resolver) {
		if store != nil {
			r.store = store
		}
	}
}

// WithObserver registers a callback run after each resolution.
func WithObserver(obs Observer) Option {
	return func(r *Resolver) {
		if obs != nil {
			r.observers = append(r.observers, obs)
		}
	}
}

// NewResolver builds a resolver writing under layout.
func NewResolver(layout assetref.Layout, fetcher Fetcher, logger *slog.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		layout:  layout,
		fetcher: fetcher,
		workers: 4,
		logger:  logging.NewComponentLogger(logger, "resolver"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.store == nil {
		r.store = assetstore.New(nil, logger)
	}
	return r
}

// Layout returns the store layout.
func (r *Resolver) Layout() assetref.Layout { return r.layout }

type job struct {
	section   Section
	character string
	raw       json.RawMessage
	ref       assetref.Reference
	key       assetref.Key
	dest      string

	// payload is the descriptor written for a primitive: the first
	// occurrence of its key in manifest order.
	payload []byte
	// merged jobs share primary's destination and take its outcome.
	merged  bool
	primary int
}

// Resolve materializes every reference of m. Per-asset failures are recorded
// in the report; the returned error is non-nil only when the store layout
// cannot be created. On cancellation the partial report is returned with
// Cancelled set.
func (r *Resolver) Resolve(ctx context.Context, m *Manifest) (*Report, error) {
	if m == nil {
		m = &Manifest{}
	}
	report := &Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Assets:    NewAssets(),
	}
	ctx = services.WithRunID(ctx, report.RunID)

	for _, dir := range r.layout.Directories() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "resolver", "prepare layout", dir, err)
		}
	}

	jobs, results := r.plan(m)
	report.Duplicates = duplicates(jobs)

	var g errgroup.Group
	g.SetLimit(r.workers)
	for i, j := range jobs {
		if j == nil || j.merged {
			continue
		}
		if ctx.Err() != nil {
			results[i] = cancelledResult(j, ctx.Err())
			continue
		}
		g.Go(func() error {
			results[i] = r.run(ctx, j)
			return nil
		})
	}
	_ = g.Wait()

	for i, j := range jobs {
		if j != nil && j.merged {
			results[i] = mergedResult(results[i], results[j.primary])
		}
	}

	for _, res := range results {
		report.Summary.add(res.Outcome)
		if res.Outcome == OutcomeCancelled {
			report.Cancelled = true
		}
		if !res.Outcome.Succeeded() {
			continue
		}
		if res.Section == SectionCharacters {
			report.Assets.Characters[res.Character] = append(report.Assets.Characters[res.Character], res.Path)
		} else {
			report.Assets.add(res.Key, res.Path)
		}
	}
	report.Results = results
	report.FinishedAt = time.Now().UTC()

	for _, obs := range r.observers {
		obs(ctx, report)
	}
	return report, nil
}

// plan normalizes every entry in processing order. Entries that fail
// normalization get a final result and a nil job.
func (r *Resolver) plan(m *Manifest) ([]*job, []Result) {
	var (
		jobs    []*job
		results []Result

		firstDescriptor = map[assetref.Key][]byte{}
		primitiveAt     = map[string]int{}
	)
	add := func(section Section, character string, raw json.RawMessage, dest func(assetref.Key) (string, error)) {
		j := &job{section: section, character: character, raw: raw}
		ref, err := assetref.Normalize(raw)
		if err == nil {
			j.ref = ref
			j.key, err = assetref.CanonicalKey(ref, section.Category())
		}
		if err == nil {
			j.dest, err = dest(j.key)
		}
		if err != nil {
			jobs = append(jobs, nil)
			results = append(results, Result{
				Section: section, Character: character, Key: j.key, Raw: raw,
				Outcome: OutcomeInvalid, Error: err.Error(), ErrorKind: services.Kind(err), err: err,
			})
			return
		}
		if ref.IsPrimitive() {
			if first, ok := firstDescriptor[j.key]; ok {
				j.payload = first
			} else {
				firstDescriptor[j.key] = ref.Raw
				j.payload = ref.Raw
			}
			if idx, ok := primitiveAt[j.dest]; ok {
				j.merged = true
				j.primary = idx
			} else {
				primitiveAt[j.dest] = len(jobs)
			}
		}
		jobs = append(jobs, j)
		results = append(results, Result{Section: section, Character: character, Key: j.key, Path: j.dest, Raw: raw})
	}
	flat := func(k assetref.Key) (string, error) { return r.layout.Path(k), nil }

	for _, raw := range m.Models {
		add(SectionModels, "", raw, flat)
	}
	for _, raw := range m.Textures {
		add(SectionTextures, "", raw, flat)
	}
	for _, raw := range m.Animations {
		add(SectionAnimations, "", raw, flat)
	}
	for _, c := range m.Characters {
		name := c.Name
		dir, dirErr := r.layout.CharacterDir(name)
		if dirErr == nil {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				dirErr = fmt.Errorf("create character directory: %w", err)
			}
		}
		for _, raw := range c.Parts {
			add(SectionCharacters, name, raw, func(k assetref.Key) (string, error) {
				if dirErr != nil {
					return "", dirErr
				}
				return r.layout.CharacterPath(name, k)
			})
		}
	}
	for _, raw := range m.GUIImages {
		add(SectionGUIImages, "", raw, flat)
	}
	for _, raw := range m.Sounds {
		add(SectionSounds, "", raw, flat)
	}
	return jobs, results
}

func (r *Resolver) run(ctx context.Context, j *job) Result {
	res := Result{Section: j.section, Character: j.character, Key: j.key, Path: j.dest, Raw: j.raw}
	if err := ctx.Err(); err != nil {
		return cancelledResult(j, err)
	}

	if j.ref.IsPrimitive() {
		// Primitive descriptors are rewritten on every run.
		if err := fileutil.WriteAtomic(j.dest, j.payload, 0o644); err != nil {
			return withError(res, OutcomeFailed, &assetstore.FetchError{Key: j.key, Cause: err})
		}
		res.Outcome = OutcomeWritten
		return res
	}

	id := j.ref.ID
	ensured, err := r.store.Ensure(ctx, j.key, func(ctx context.Context) ([]byte, error) {
		if r.fetcher == nil {
			return nil, services.Wrap(services.ErrConfiguration, "resolver", "fetch", "no asset fetcher configured", nil)
		}
		return r.fetcher.Fetch(ctx, id)
	}, j.dest)
	if err != nil {
		if services.Kind(err) == "cancelled" {
			return withError(res, OutcomeCancelled, err)
		}
		return withError(res, OutcomeFailed, err)
	}
	switch {
	case ensured.Fetched:
		res.Outcome = OutcomeFetched
	case ensured.Reused:
		res.Outcome = OutcomeReused
	default:
		res.Outcome = OutcomeSkipped
	}
	return res
}

// mergedResult reports a job that shares its destination with primary.
func mergedResult(res, primary Result) Result {
	if primary.Outcome.Succeeded() {
		res.Outcome = OutcomeSkipped
		return res
	}
	res.Outcome = primary.Outcome
	res.Error = primary.Error
	res.ErrorKind = primary.ErrorKind
	res.err = primary.err
	return res
}

func cancelledResult(j *job, cause error) Result {
	res := Result{Section: j.section, Character: j.character, Key: j.key, Path: j.dest, Raw: j.raw}
	err := &assetstore.FetchError{Key: j.key, Cause: services.Wrap(services.ErrCancelled, "resolver", "resolve", "not attempted", cause)}
	return withError(res, OutcomeCancelled, err)
}

func withError(res Result, outcome Outcome, err error) Result {
	res.Outcome = outcome
	res.err = err
	res.Error = err.Error()
	res.ErrorKind = services.Kind(err)
	return res
}

func duplicates(jobs []*job) []Duplicate {
	type seen struct {
		count    int
		first    []byte
		distinct bool
	}
	counts := map[assetref.Key]*seen{}
	var order []assetref.Key
	for _, j := range jobs {
		if j == nil {
			continue
		}
		s, ok := counts[j.key]
		if !ok {
			s = &seen{first: j.ref.Raw}
			counts[j.key] = s
			order = append(order, j.key)
		}
		s.count++
		if j.ref.IsPrimitive() && !bytes.Equal(s.first, j.ref.Raw) {
			s.distinct = true
		}
	}
	var out []Duplicate
	for _, key := range order {
		if s := counts[key]; s.count > 1 {
			out = append(out, Duplicate{Key: key, Occurrences: s.count, Distinct: s.distinct})
		}
	}
	return out
}
