package minis

// zsetcmds.go implements the sorted-set commands of spec §4.3/§4.4: zadd,
// zrem, zscore, zquery.
//
// © 2025 minis authors. MIT License.

// ZAdd creates key as an empty sorted set if it does not exist (or is
// expired, or holds a different type), then adds/updates member with
// score. Returns whether member was previously absent (spec §8 "zadd
// returns 1 iff m was absent, 0 otherwise").
func (e *Engine) ZAdd(key, member string, score float64, now uint64) (ResultKind, bool) {
	s, h := e.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.table.Get(key, h)
	if ok && ent.expired(now) {
		s.table.Delete(key, h)
		e.disposeLocked(ent)
		s.markDirty()
		ok = false
	}
	if ok && ent.kind != KindSortedSet {
		s.table.Delete(key, h)
		e.disposeLocked(ent)
		s.markDirty()
		ok = false
	}
	if !ok {
		if !e.admit() {
			return OOM, false
		}
		ent = newZSetEntry(key, s.id)
		e.putEntry(s, key, h, ent)
		e.entryCount.Add(1)
	}

	isNew := ent.zset.Add(member, score)
	s.markDirty()
	return OK, isNew
}

// ZRem removes member from key's live sorted set, returning 1 if it was
// present. If that was the last member, the containing entry is disposed.
func (e *Engine) ZRem(key, member string, now uint64) (ResultKind, int) {
	s, h := e.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := e.lookupLive(s, key, h, now)
	if !ok {
		return NIL, 0
	}
	if ent.kind != KindSortedSet {
		return TYPE, 0
	}
	if !ent.zset.Remove(member) {
		return OK, 0
	}
	s.markDirty()
	if ent.zset.Len() == 0 {
		s.table.Delete(key, h)
		e.disposeLocked(ent)
	}
	return OK, 1
}

// ZScore returns member's score within key's live sorted set.
func (e *Engine) ZScore(key, member string, now uint64) (ResultKind, float64) {
	s, h := e.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := e.lookupLive(s, key, h, now)
	if !ok {
		return NIL, 0
	}
	if ent.kind != KindSortedSet {
		return TYPE, 0
	}
	score, exists := ent.zset.Lookup(member)
	if !exists {
		return NIL, 0
	}
	return OK, score
}

// ZQuery seeks to the least (score, member) pair not less than (score,
// member) within key's live sorted set, advances by offset, then visits up
// to limit members in ascending order (spec §4.3/§4.4).
func (e *Engine) ZQuery(key string, score float64, member string, offset, limit int, now uint64, visit func(member string, score float64) bool) ResultKind {
	s, h := e.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := e.lookupLive(s, key, h, now)
	if !ok {
		return NIL
	}
	if ent.kind != KindSortedSet {
		return TYPE
	}
	ent.zset.Range(score, member, offset, limit, visit)
	return OK
}
