package minis

// hashcmds.go implements the hash-container commands of spec §4.4: hset,
// hget, hdel, hexists, hlen, hgetall. These mirror the string commands'
// lazy-expiration and type-checking discipline over a hashContainer payload
// instead of a raw byte string.
//
// © 2025 minis authors. MIT License.

// HSet creates key as an empty hash if it does not exist (or is expired,
// or holds a different type — which is destroyed first, mirroring Set's
// type-mismatch handling), then sets field within it. Returns OK plus
// whether field was previously absent (spec §4.3 "1 if field is new, 0 if
// it already existed", folded into ResultKind OK here since hset never
// fails except on type/OOM grounds — the boolean return carries the
// Redis-style "was new" signal).
func (e *Engine) HSet(key, field string, val []byte, now uint64) (ResultKind, bool) {
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
	if ok && ent.kind != KindHash {
		s.table.Delete(key, h)
		e.disposeLocked(ent)
		s.markDirty()
		ok = false
	}
	if !ok {
		if !e.admit() {
			return OOM, false
		}
		ent = newHashEntry(key, s.id)
		e.putEntry(s, key, h, ent)
		e.entryCount.Add(1)
	}

	fieldHash := e.hasher.Hash64(field)
	isNew := ent.hash.set(field, fieldHash, append([]byte(nil), val...))
	s.markDirty()
	return OK, isNew
}

// HGet invokes visit with field's value if key is a live hash containing
// field.
func (e *Engine) HGet(key, field string, now uint64, visit func(val []byte)) ResultKind {
	s, h := e.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := e.lookupLive(s, key, h, now)
	if !ok {
		return NIL
	}
	if ent.kind != KindHash {
		return TYPE
	}
	val, ok := ent.hash.get(field, e.hasher.Hash64(field))
	if !ok {
		return NIL
	}
	if visit != nil {
		visit(val)
	}
	return OK
}

// HDel removes field from key's hash. If that was the last field, the
// containing entry is disposed atomically (spec §4.4 "pop + destroy").
// Returns 1 if field was present, 0 otherwise.
func (e *Engine) HDel(key, field string, now uint64) (ResultKind, int) {
	s, h := e.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := e.lookupLive(s, key, h, now)
	if !ok {
		return NIL, 0
	}
	if ent.kind != KindHash {
		return TYPE, 0
	}
	_, existed := ent.hash.delete(field, e.hasher.Hash64(field))
	if !existed {
		return OK, 0
	}
	s.markDirty()
	if ent.hash.Len() == 0 {
		s.table.Delete(key, h)
		e.disposeLocked(ent)
	}
	return OK, 1
}

// HExists reports whether field is present in key's live hash.
func (e *Engine) HExists(key, field string, now uint64) (ResultKind, bool) {
	s, h := e.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := e.lookupLive(s, key, h, now)
	if !ok {
		return NIL, false
	}
	if ent.kind != KindHash {
		return TYPE, false
	}
	_, exists := ent.hash.get(field, e.hasher.Hash64(field))
	return OK, exists
}

// HLen returns the number of fields in key's live hash.
func (e *Engine) HLen(key string, now uint64) (ResultKind, int) {
	s, h := e.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := e.lookupLive(s, key, h, now)
	if !ok {
		return NIL, 0
	}
	if ent.kind != KindHash {
		return TYPE, 0
	}
	return OK, ent.hash.Len()
}

// HGetAll visits every (field, value) pair in key's live hash. visit
// returning false stops the scan early.
func (e *Engine) HGetAll(key string, now uint64, visit func(field string, val []byte) bool) ResultKind {
	s, h := e.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := e.lookupLive(s, key, h, now)
	if !ok {
		return NIL
	}
	if ent.kind != KindHash {
		return TYPE
	}
	ent.hash.forEach(visit)
	return OK
}
