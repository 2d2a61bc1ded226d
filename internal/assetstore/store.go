package assetstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"sodareplay/internal/assetref"
	"sodareplay/internal/fileutil"
	"sodareplay/internal/logging"
	"sodareplay/internal/services"
)

// FetchFunc retrieves the bytes of one asset.
type FetchFunc func(ctx context.Context) ([]byte, error)

// Result describes how Ensure satisfied a request.
type Result struct {
	Key  assetref.Key `json:"key"`
	Path string       `json:"path"`
	// Fetched is true only for the caller that performed the download.
	Fetched bool `json:"fetched"`
	// Existed is true when dest was already present before the call.
	Existed bool `json:"existed"`
	// Reused is true when dest was populated from another local copy.
	Reused bool `json:"reused"`
}

// FetchError reports a failed download or write for one key.
type FetchError struct {
	Key   assetref.Key
	Cause error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Key, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

func (e *FetchError) Is(target error) bool { return target == services.ErrAssetFetch }

// Store coordinates fetches so each key is downloaded at most once.
type Store struct {
	cache   Cache
	logger  *slog.Logger
	flights singleflight.Group
	fetches atomic.Int64
}

// New builds a store over cache. A nil cache selects a FileCache.
func New(cache Cache, logger *slog.Logger) *Store {
	if cache == nil {
		cache = NewFileCache()
	}
	return &Store{
		cache:  cache,
		logger: logging.NewComponentLogger(logger, "assetstore"),
	}
}

// Fetches returns the number of fetch invocations performed so far.
func (s *Store) Fetches() int64 { return s.fetches.Load() }

// Ensure makes key available at dest, invoking fetch only when neither dest
// nor any other local copy of key exists.
func (s *Store) Ensure(ctx context.Context, key assetref.Key, fetch FetchFunc, dest string) (Result, error) {
	result := Result{Key: key, Path: dest}
	if s.cache.Has(key, dest) {
		result.Existed = true
		return result, nil
	}
	if err := ctx.Err(); err != nil {
		return result, &FetchError{Key: key, Cause: cancelled(err)}
	}

	leader := false
	value, err, _ := s.flights.Do(string(key), func() (any, error) {
		leader = true
		return s.materialize(ctx, key, fetch, dest)
	})
	if err != nil {
		return result, err
	}
	outcome := value.(flightResult)

	if leader {
		result.Fetched = outcome.fetched
		result.Reused = !outcome.fetched && outcome.path != dest
		result.Existed = !outcome.fetched && outcome.path == dest
		return result, nil
	}

	// Joined another caller's flight; its bytes may sit at a different path.
	if outcome.path != dest {
		if err := fileutil.LinkOrCopy(outcome.path, dest); err != nil {
			return result, &FetchError{Key: key, Cause: fmt.Errorf("reuse %s: %w", outcome.path, err)}
		}
		result.Reused = true
	}
	return result, nil
}

type flightResult struct {
	path    string
	fetched bool
}

func (s *Store) materialize(ctx context.Context, key assetref.Key, fetch FetchFunc, dest string) (flightResult, error) {
	if s.cache.Has(key, dest) {
		return flightResult{path: dest}, nil
	}
	if existing, ok := s.cache.Get(key); ok && existing != dest {
		if err := fileutil.LinkOrCopy(existing, dest); err != nil {
			return flightResult{}, &FetchError{Key: key, Cause: fmt.Errorf("reuse %s: %w", existing, err)}
		}
		s.logger.Debug("asset reused from local copy",
			logging.String(logging.FieldAssetKey, string(key)),
			logging.String("source", existing),
			logging.String("path", dest))
		return flightResult{path: existing}, nil
	}

	if fetch == nil {
		return flightResult{}, &FetchError{Key: key, Cause: errors.New("no fetch function")}
	}
	s.fetches.Add(1)
	data, err := fetch(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, services.ErrTimeout) {
			err = cancelled(ctxErr)
		}
		return flightResult{}, &FetchError{Key: key, Cause: err}
	}
	if err := s.cache.Put(key, dest, data); err != nil {
		return flightResult{}, &FetchError{Key: key, Cause: fmt.Errorf("write %s: %w", dest, err)}
	}
	return flightResult{path: dest, fetched: true}, nil
}

func cancelled(err error) error {
	return services.Wrap(services.ErrCancelled, "assetstore", "ensure", "resolution cancelled", err)
}
