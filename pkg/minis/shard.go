package minis

// shard.go defines shard, one of the engine's N independent partitions.
//
// © 2025 minis authors. MIT License.

import (
	"sync"
	"sync/atomic"

	"github.com/minisdb/minis/internal/rhtable"
)

// shard is one of the engine's N independent partitions (spec §3): a
// Robin-Hood table from key to *Entry, guarded by its own mutex, plus the
// bookkeeping the incremental snapshot writer (incremental.go) uses to pick
// the dirtiest shard first.
type shard struct {
	mu    sync.Mutex
	table *rhtable.Table[*Entry]
	id    uint8

	// dirty counts mutations (set/del/incr/hset/...) since the shard was
	// last fully written to an incremental snapshot. lastSaved records the
	// value of dirty as of the last successful incremental write. Both are
	// atomic so the maintenance loop can read them without taking mu (spec
	// §4.7 "dirtiest shard first" only needs an approximate ordering).
	dirty     atomic.Uint64
	lastSaved atomic.Uint64
}

func newShard(id uint8) *shard {
	return &shard{id: id, table: rhtable.New[*Entry](1024)}
}

func (s *shard) markDirty() { s.dirty.Add(1) }

// dirtGap is the approximate number of mutations this shard has accumulated
// since it was last saved.
func (s *shard) dirtGap() uint64 {
	d, last := s.dirty.Load(), s.lastSaved.Load()
	if d < last {
		return 0
	}
	return d - last
}
