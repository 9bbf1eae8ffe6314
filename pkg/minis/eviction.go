package minis

// eviction.go implements the TTL sweep of spec §4.5: a heap-driven pass
// that reclaims entries whose deadline has passed, bounded to at most
// maxSweepDisposals per invocation so a single maintenance tick cannot
// stall behind a large expiry backlog.
//
// © 2025 minis authors. MIT License.

// maxSweepDisposals bounds a single sweep call (spec §4.5: "yields after at
// most 2,000 disposals per invocation").
const maxSweepDisposals = 2000

// sweep reclaims entries whose deadline is strictly before now. It is safe
// to call concurrently with normal operations: the heap is only ever
// touched under heapMu, and an entry is only destroyed once (whichever of
// the sweep or a lazy-expiring read gets to its shard lock first wins; the
// loser finds the key already gone from the shard table and does nothing).
func (e *Engine) sweep(now uint64) {
	for disposals := 0; disposals < maxSweepDisposals; disposals++ {
		e.heapMu.Lock()
		_, deadline, ok := e.heap.Top()
		if !ok || deadline >= now {
			e.heapMu.Unlock()
			return
		}
		owner, _, _ := e.heap.PopMin()
		e.heapMu.Unlock()

		ent := owner.(*Entry)
		s := e.shards[ent.shardID]
		hash := e.hasher.Hash64(ent.key)

		s.mu.Lock()
		if cur, found := s.table.Get(ent.key, hash); found && cur == ent {
			s.table.Delete(ent.key, hash)
			e.destroyEntry(ent)
			s.markDirty()
			e.metrics.incExpire(s.id)
		}
		s.mu.Unlock()
	}
}

// NextExpiry returns the current earliest TTL deadline across all shards,
// or ok=false if no entry currently carries a TTL (spec §4.5 "next_expiry
// returns the current top deadline or infinity if empty").
func (e *Engine) NextExpiry() (deadlineUs uint64, ok bool) {
	e.heapMu.Lock()
	defer e.heapMu.Unlock()
	_, deadlineUs, ok = e.heap.Top()
	return deadlineUs, ok
}

// Evict runs one sweep pass immediately, for callers (tests, the inspector
// CLI) that want deterministic control over expiration instead of waiting
// on the maintenance loop's tick (spec §6 "evict" in the typed engine API).
func (e *Engine) Evict(now uint64) {
	e.sweep(now)
}
