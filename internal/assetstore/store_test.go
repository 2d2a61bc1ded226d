package assetstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sodareplay/internal/assetref"
	"sodareplay/internal/services"
)

func bytesFetch(counter *atomic.Int64, payload string) FetchFunc {
	return func(context.Context) ([]byte, error) {
		counter.Add(1)
		return []byte(payload), nil
	}
}

func TestEnsureFetchesOnceThenSkips(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "models", "mesh_1818567076.fbx")
	store := New(nil, nil)
	var calls atomic.Int64

	first, err := store.Ensure(context.Background(), "mesh_1818567076", bytesFetch(&calls, "fbx"), dest)
	if err != nil {
		t.Fatalf("first Ensure: %v", err)
	}
	if !first.Fetched || first.Existed {
		t.Fatalf("first result = %+v", first)
	}

	second, err := store.Ensure(context.Background(), "mesh_1818567076", bytesFetch(&calls, "fbx"), dest)
	if err != nil {
		t.Fatalf("second Ensure: %v", err)
	}
	if second.Fetched || !second.Existed {
		t.Fatalf("second result = %+v", second)
	}
	if calls.Load() != 1 {
		t.Fatalf("fetch calls = %d, want 1", calls.Load())
	}
	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "fbx" {
		t.Fatalf("dest content = %q, %v", data, err)
	}
}

func TestEnsureSkipsPreexistingFile(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "tex_1.png")
	if err := os.WriteFile(dest, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	var calls atomic.Int64
	res, err := New(nil, nil).Ensure(context.Background(), "tex_1", bytesFetch(&calls, "new"), dest)
	if err != nil {
		t.Fatal(err)
	}
	if res.Fetched || !res.Existed || calls.Load() != 0 {
		t.Fatalf("result = %+v calls = %d", res, calls.Load())
	}
}

func TestEnsureConcurrentSameKeyFetchesOnce(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "mesh_5.fbx")
	store := New(nil, nil)
	var calls atomic.Int64
	release := make(chan struct{})
	fetch := func(context.Context) ([]byte, error) {
		calls.Add(1)
		<-release
		return []byte("mesh"), nil
	}

	const callers = 8
	var wg sync.WaitGroup
	results := make([]Result, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = store.Ensure(context.Background(), "mesh_5", fetch, dest)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("fetch calls = %d, want 1", calls.Load())
	}
	fetched := 0
	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d: %v", i, err)
		}
		if results[i].Fetched {
			fetched++
		}
	}
	if fetched != 1 {
		t.Fatalf("callers reporting fetched = %d, want 1", fetched)
	}
}

func TestEnsureReusesCopyAtSecondLocation(t *testing.T) {
	dir := t.TempDir()
	top := filepath.Join(dir, "models", "mesh_9.fbx")
	char := filepath.Join(dir, "models", "characters", "bob", "mesh_9.fbx")
	store := New(nil, nil)
	var calls atomic.Int64

	if _, err := store.Ensure(context.Background(), "mesh_9", bytesFetch(&calls, "nine"), top); err != nil {
		t.Fatal(err)
	}
	res, err := store.Ensure(context.Background(), "mesh_9", bytesFetch(&calls, "nine"), char)
	if err != nil {
		t.Fatal(err)
	}
	if res.Fetched || !res.Reused {
		t.Fatalf("result = %+v", res)
	}
	if calls.Load() != 1 {
		t.Fatalf("fetch calls = %d, want 1", calls.Load())
	}
	data, err := os.ReadFile(char)
	if err != nil || string(data) != "nine" {
		t.Fatalf("character copy = %q, %v", data, err)
	}
}

func TestEnsureFailureIsRetryable(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "sound_3.ogg")
	store := New(nil, nil)
	boom := errors.New("502 bad gateway")

	_, err := store.Ensure(context.Background(), "sound_3", func(context.Context) ([]byte, error) {
		return nil, boom
	}, dest)
	if !errors.Is(err, services.ErrAssetFetch) || !errors.Is(err, boom) {
		t.Fatalf("expected fetch error wrapping cause, got %v", err)
	}
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Key != "sound_3" {
		t.Fatalf("expected FetchError for sound_3, got %v", err)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Fatal("failed fetch left a file behind")
	}

	var calls atomic.Int64
	res, err := store.Ensure(context.Background(), "sound_3", bytesFetch(&calls, "ogg"), dest)
	if err != nil || !res.Fetched {
		t.Fatalf("retry result = %+v, %v", res, err)
	}
}

func TestEnsureCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls atomic.Int64
	_, err := New(nil, nil).Ensure(ctx, "anim_1", bytesFetch(&calls, "x"), filepath.Join(t.TempDir(), "a.rbxanim"))
	if !errors.Is(err, services.ErrCancelled) || !errors.Is(err, services.ErrAssetFetch) {
		t.Fatalf("expected cancelled fetch error, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatal("fetch ran on cancelled context")
	}
}

type memoryCache struct {
	mu    sync.Mutex
	items map[assetref.Key][]byte
}

func (m *memoryCache) Has(key assetref.Key, _ string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[key]
	return ok
}

func (m *memoryCache) Put(key assetref.Key, _ string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = data
	return nil
}

func (m *memoryCache) Get(key assetref.Key) (string, bool) {
	return "", m.Has(key, "")
}

func TestStoreUsesPluggableCache(t *testing.T) {
	cache := &memoryCache{items: map[assetref.Key][]byte{}}
	store := New(cache, nil)
	var calls atomic.Int64
	for i := 0; i < 3; i++ {
		if _, err := store.Ensure(context.Background(), "gui_4", bytesFetch(&calls, "png"), "unused"); err != nil {
			t.Fatal(err)
		}
	}
	if calls.Load() != 1 || store.Fetches() != 1 {
		t.Fatalf("calls = %d fetches = %d", calls.Load(), store.Fetches())
	}
	if string(cache.items["gui_4"]) != "png" {
		t.Fatalf("cache contents = %q", cache.items["gui_4"])
	}
}
