package daemon

import (
	"context"
	"errors"
	"sync"
	"time"

	"sodareplay/internal/api"
	"sodareplay/internal/scene"
	"sodareplay/internal/services"
)

type sceneBuildFunc func(ctx context.Context) (*scene.Scene, error)

// sceneCache holds the last reconstructed scene. Builds are serialized; an
// invalidation during a build discards that build's result.
type sceneCache struct {
	build sceneBuildFunc

	buildMu sync.Mutex

	mu      sync.Mutex
	gen     uint64
	valid   bool
	scene   *scene.Scene
	err     error
	builtAt time.Time
}

func newSceneCache(build sceneBuildFunc) *sceneCache {
	return &sceneCache{build: build}
}

func (c *sceneCache) invalidate() {
	c.mu.Lock()
	c.gen++
	c.valid = false
	c.mu.Unlock()
}

type sceneSnapshot struct {
	scene   *scene.Scene
	summary api.SceneSummary
	err     error
}

func (c *sceneCache) get(ctx context.Context) (*scene.Scene, api.SceneSummary, error) {
	if snap, ok := c.current(); ok {
		return snap.scene, snap.summary, snap.err
	}

	c.buildMu.Lock()
	defer c.buildMu.Unlock()
	if snap, ok := c.current(); ok {
		return snap.scene, snap.summary, snap.err
	}

	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	s, err := c.build(ctx)
	builtAt := time.Now()
	summary := api.SummarizeScene(s, builtAt, err)
	if errors.Is(err, services.ErrCancelled) {
		return s, summary, err
	}

	c.mu.Lock()
	if c.gen == gen {
		c.valid = true
		c.scene = s
		c.err = err
		c.builtAt = builtAt
	}
	c.mu.Unlock()
	return s, summary, err
}

func (c *sceneCache) current() (sceneSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid {
		return sceneSnapshot{}, false
	}
	return sceneSnapshot{
		scene:   c.scene,
		summary: api.SummarizeScene(c.scene, c.builtAt, c.err),
		err:     c.err,
	}, true
}

// peek returns the summary of the cached build without triggering one.
func (c *sceneCache) peek() (api.SceneSummary, bool) {
	snap, ok := c.current()
	return snap.summary, ok
}
