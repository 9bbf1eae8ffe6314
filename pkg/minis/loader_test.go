package minis

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestGetOrLoadHitSkipsLoader(t *testing.T) {
	e := newTestEngine(t)
	e.Set("k", []byte("cached"), 1000)

	var calls atomic.Int32
	val, shared, kind, err := e.GetOrLoad(context.Background(), "k", 1000, func(context.Context, string) ([]byte, error) {
		calls.Add(1)
		return []byte("loaded"), nil
	})
	if err != nil || kind != OK || string(val) != "cached" || shared {
		t.Fatalf("GetOrLoad hit = %q,%v,%v,%v", val, shared, kind, err)
	}
	if calls.Load() != 0 {
		t.Fatalf("loader should not run on a cache hit")
	}
}

func TestGetOrLoadMissPopulatesCache(t *testing.T) {
	e := newTestEngine(t)

	var calls atomic.Int32
	val, _, kind, err := e.GetOrLoad(context.Background(), "k", 1000, func(context.Context, string) ([]byte, error) {
		calls.Add(1)
		return []byte("from source"), nil
	})
	if err != nil || kind != OK || string(val) != "from source" {
		t.Fatalf("GetOrLoad miss = %q,%v,%v", val, kind, err)
	}
	if calls.Load() != 1 {
		t.Fatalf("loader should run exactly once, ran %d times", calls.Load())
	}

	got, gk := mustGet(t, e, "k", 1000)
	if gk != OK || got != "from source" {
		t.Fatalf("Get after GetOrLoad = %q,%v", got, gk)
	}
}

func TestGetOrLoadTypeShortCircuitsWithoutCallingLoader(t *testing.T) {
	e := newTestEngine(t)
	e.HSet("h", "f", []byte("v"), 1000)

	var calls atomic.Int32
	_, shared, kind, err := e.GetOrLoad(context.Background(), "h", 1000, func(context.Context, string) ([]byte, error) {
		calls.Add(1)
		return nil, nil
	})
	if err != nil || kind != TYPE || shared {
		t.Fatalf("GetOrLoad on wrong type = %v,%v,%v", shared, kind, err)
	}
	if calls.Load() != 0 {
		t.Fatalf("loader must not run for a TYPE mismatch")
	}
}

func TestGetOrLoadPropagatesLoaderError(t *testing.T) {
	e := newTestEngine(t)
	wantErr := errors.New("source unavailable")

	_, _, kind, err := e.GetOrLoad(context.Background(), "k", 1000, func(context.Context, string) ([]byte, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("GetOrLoad err = %v, want %v", err, wantErr)
	}
	if kind != UNKNOWN {
		t.Fatalf("GetOrLoad kind on error = %v, want UNKNOWN", kind)
	}
	if e.Exists("k", 1000) {
		t.Fatalf("a failed load must not populate the cache")
	}
}

func TestGetOrLoadConcurrentMissesShareOneLoaderCall(t *testing.T) {
	e := newTestEngine(t)

	var calls atomic.Int32
	var sharedCount atomic.Int32
	var started sync.WaitGroup
	release := make(chan struct{})

	const n = 8
	var wg sync.WaitGroup
	wg.Add(n)
	started.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			started.Done()
			_, shared, kind, err := e.GetOrLoad(context.Background(), "hot", 1000, func(context.Context, string) ([]byte, error) {
				calls.Add(1)
				<-release
				return []byte("v"), nil
			})
			if err != nil || kind != OK {
				t.Errorf("GetOrLoad = %v,%v", kind, err)
			}
			if shared {
				sharedCount.Add(1)
			}
		}()
	}
	started.Wait()
	close(release)
	wg.Wait()

	if got := calls.Load(); got < 1 || got > n {
		t.Fatalf("loader calls = %d, want between 1 and %d", got, n)
	}
	if calls.Load() == int32(n) {
		t.Fatalf("singleflight should have deduped at least some concurrent misses")
	}
}
