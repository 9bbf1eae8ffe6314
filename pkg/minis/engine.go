// Package minis - see doc.go comment in resultkind.go for the package
// overview.
//
// © 2025 minis authors. MIT License.
package minis

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/minisdb/minis/internal/common"
	"github.com/minisdb/minis/internal/ttlheap"
	"github.com/minisdb/minis/internal/workerpool"
)

// Engine is the top-level, embeddable key-value store (spec §3/§4): N
// independent shards behind one hasher, one global TTL heap shared across
// shards under its own lock, and a worker pool for offloading large
// container teardown.
//
// An Engine is safe for concurrent use by multiple goroutines once
// constructed with New.
type Engine struct {
	cfg    *config
	hasher *common.Hasher
	shards []*shard

	heapMu sync.Mutex
	heap   *ttlheap.Heap

	pool    *workerpool.Pool
	metrics metricsSink
	logger  *zap.Logger

	loaderGroup singleflight.Group

	entryCount atomic.Int64

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New constructs an Engine. The Engine is usable immediately for get/set/etc;
// call Init to start the background sweep/snapshot loop.
func New(opts ...Option) (*Engine, error) {
	cfg := defaultConfig()
	if err := applyOptions(cfg, opts); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:     cfg,
		hasher:  common.NewHasher(),
		shards:  make([]*shard, cfg.shards),
		heap:    ttlheap.New(),
		pool:    workerpool.New(cfg.workerPoolSize),
		metrics: newMetricsSink(cfg.registry),
		logger:  cfg.logger,
	}
	for i := range e.shards {
		e.shards[i] = newShard(uint8(i))
	}
	return e, nil
}

// Init starts the background maintenance loop (TTL sweep + periodic
// incremental snapshot, spec §4.5). Calling Init more than once is a no-op.
func (e *Engine) Init() {
	if e.running.Swap(true) {
		return
	}
	e.stopCh = make(chan struct{})
	e.wg.Add(1)
	go e.maintenanceLoop()
}

// Free stops the maintenance loop, drains the worker pool, and releases all
// shard and heap state. The Engine must not be used afterward.
func (e *Engine) Free() {
	if e.running.Swap(false) {
		close(e.stopCh)
		e.wg.Wait()
	}
	e.pool.Shutdown()

	e.heapMu.Lock()
	e.heap.Free()
	e.heapMu.Unlock()

	for _, s := range e.shards {
		s.mu.Lock()
		s.table.Destroy()
		s.mu.Unlock()
	}
}

func (e *Engine) maintenanceLoop() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.maintenanceInterval)
	defer ticker.Stop()

	tick := 0
	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			tick++
			start := time.Now()
			e.sweep(common.NowMicros())
			e.metrics.observeSweep(time.Since(start).Seconds())

			if e.cfg.snapshotDir != "" && tick%10 == 0 {
				if err := e.SaveIncremental(e.cfg.snapshotDir); err != nil {
					e.logger.Warn("incremental snapshot failed", zap.Error(err))
					e.metrics.incSnapshot("incremental_error")
				} else {
					e.metrics.incSnapshot("incremental_ok")
				}
			}
		}
	}
}

// shardCount returns the number of shards, always a power of two.
func (e *Engine) shardCount() int { return len(e.shards) }

// putEntry inserts or overwrites ent in s's table, reporting an incResize
// metric when the Put happens to start a new incremental resize. Callers
// must already hold s.mu.
func (e *Engine) putEntry(s *shard, key string, hash uint64, ent *Entry) bool {
	before := s.table.ResizeEpoch()
	replaced := s.table.Put(key, hash, ent)
	if s.table.ResizeEpoch() != before {
		e.metrics.incResize(s.id)
	}
	return replaced
}

// shardFor returns the shard that owns key along with key's hash (reusable
// across the batch operations so the hash is computed exactly once per key).
func (e *Engine) shardFor(key string) (*shard, uint64) {
	h := e.hasher.Hash64(key)
	return e.shards[e.shardIndex(h)], h
}

func (e *Engine) shardIndex(hash uint64) int {
	return int(hash & uint64(e.shardCount()-1))
}

// lockAscending locks the given shards in ascending index order (spec §5:
// "never lock shards out of ascending order"), skipping duplicate indices.
// It returns the deduplicated, sorted list of shards actually locked, which
// the caller must pass to unlockAscending.
func lockAscending(shards []*shard) []*shard {
	sorted := append([]*shard(nil), shards...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].id < sorted[j].id })

	deduped := sorted[:0]
	var lastID int = -1
	for _, s := range sorted {
		if int(s.id) == lastID {
			continue
		}
		lastID = int(s.id)
		deduped = append(deduped, s)
	}
	for _, s := range deduped {
		s.mu.Lock()
	}
	return deduped
}

// unlockAscending releases shards locked by lockAscending, in reverse order.
func unlockAscending(shards []*shard) {
	for i := len(shards) - 1; i >= 0; i-- {
		shards[i].mu.Unlock()
	}
}

// detachTTL removes ent from the heap if it is currently scheduled. Callers
// must already hold ent's shard lock; this takes the heap lock itself,
// respecting the shard-then-heap ordering (spec §5).
func (e *Engine) detachTTL(ent *Entry) {
	if ent.heapIdx == ttlheap.NoIndex {
		return
	}
	e.heapMu.Lock()
	e.heap.RemoveAt(ent.heapIdx)
	e.heapMu.Unlock()
	ent.expireAtUs = 0
}

// scheduleTTL arms or reschedules ent's expiration. Callers must hold ent's
// shard lock.
func (e *Engine) scheduleTTL(ent *Entry, expireAtUs uint64) {
	ent.expireAtUs = expireAtUs
	e.heapMu.Lock()
	if ent.heapIdx == ttlheap.NoIndex {
		e.heap.Add(ent, expireAtUs)
	} else {
		e.heap.UpdateDeadline(ent.heapIdx, expireAtUs)
	}
	e.heapMu.Unlock()
}

// destroyEntry releases ent's container, offloading large containers (more
// than largeContainerThreshold sub-elements) to the worker pool (spec
// §4.4/§4.6). Callers must hold ent's shard lock and must already have
// detached ent from the heap and removed it from the shard table.
func (e *Engine) destroyEntry(ent *Entry) {
	switch ent.kind {
	case KindHash:
		h := ent.hash
		if h.Len() > largeContainerThreshold {
			e.pool.Submit(func() { h.dispose() })
		} else {
			h.dispose()
		}
	case KindSortedSet:
		z := ent.zset
		if z.Len() > largeContainerThreshold {
			e.pool.Submit(func() { z.Dispose() })
		} else {
			z.Dispose()
		}
	}
	e.entryCount.Add(-1)
}

// disposeLocked detaches ent from the heap and destroys its container. ent
// must already have been removed from its shard's table, and the caller
// must hold that shard's lock.
func (e *Engine) disposeLocked(ent *Entry) {
	e.detachTTL(ent)
	e.destroyEntry(ent)
}

// admit reports whether creating one more entry would exceed the configured
// capacity (spec §7 OOM). 0 means unlimited.
func (e *Engine) admit() bool {
	if e.cfg.maxEntries <= 0 {
		return true
	}
	return e.entryCount.Load() < e.cfg.maxEntries
}
