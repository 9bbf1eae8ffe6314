package minis

// strings.go implements the string-valued and key-space-wide commands of
// spec §4.4: get/set/del/mset/mget/mdel/expire/ttl/exists/keys/incr.
//
// Every command takes an explicit "now" (microseconds since the Unix
// epoch, see internal/common.NowMicros) rather than sampling the clock
// itself, so that TTL-boundary behavior (spec §8 "expire(k,0)") is
// deterministic and testable without a real sleep.
//
// © 2025 minis authors. MIT License.

import (
	"bytes"
	"strconv"

	"github.com/minisdb/minis/internal/common"
)

// KV is one key/value pair for MSet.
type KV struct {
	Key string
	Val []byte
}

// lookupLive resolves key within an already-locked shard, lazily expiring
// and disposing it if its deadline has passed (spec §4.4 "skipping-and-
// evicting"). Callers must hold s.mu.
func (e *Engine) lookupLive(s *shard, key string, hash, now uint64) (*Entry, bool) {
	ent, ok := s.table.Get(key, hash)
	if !ok {
		return nil, false
	}
	if ent.expired(now) {
		s.table.Delete(key, hash)
		e.disposeLocked(ent)
		s.markDirty()
		e.metrics.incExpire(s.id)
		return nil, false
	}
	return ent, true
}

// Get resolves key and, if it holds a live string, invokes visit with a
// borrowed view of its bytes while the shard lock is still held. visit must
// not block and must not call back into the Engine (spec §5).
func (e *Engine) Get(key string, now uint64, visit func(val []byte)) ResultKind {
	s, h := e.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := e.lookupLive(s, key, h, now)
	if !ok {
		e.metrics.incMiss(s.id)
		return NIL
	}
	if ent.kind != KindString {
		return TYPE
	}
	e.metrics.incHit(s.id)
	if visit != nil {
		visit(ent.str)
	}
	return OK
}

// setLocked performs the Set body against an already-locked shard.
func (e *Engine) setLocked(s *shard, key string, hash uint64, val []byte, now uint64) ResultKind {
	existing, ok := s.table.Get(key, hash)
	if ok && existing.expired(now) {
		s.table.Delete(key, hash)
		e.disposeLocked(existing)
		s.markDirty()
		ok = false
	}
	if ok && existing.kind != KindString {
		// Type mismatch: destroy the old entry and fall through to create a
		// fresh string (spec §4.4 "On type mismatch, destroys the old entry
		// and creates a new string").
		s.table.Delete(key, hash)
		e.disposeLocked(existing)
		s.markDirty()
		ok = false
	}

	if !ok {
		if !e.admit() {
			return OOM
		}
		ent := newStringEntry(key, s.id, append([]byte(nil), val...))
		e.putEntry(s, key, hash, ent)
		e.entryCount.Add(1)
		s.markDirty()
		return OK
	}

	// Overwrite in place. A write is a true no-op only when the value is
	// unchanged and the key already carries no TTL (spec §4.4); otherwise
	// any existing TTL is cleared unconditionally and the shard is marked
	// dirty.
	if bytes.Equal(existing.str, val) && !existing.hasTTL() {
		return OK
	}
	e.detachTTL(existing)
	existing.str = append([]byte(nil), val...)
	s.markDirty()
	return OK
}

// Set inserts or overwrites key with val.
func (e *Engine) Set(key string, val []byte, now uint64) ResultKind {
	s, h := e.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	return e.setLocked(s, key, h, val, now)
}

func (e *Engine) delLocked(s *shard, key string, hash, now uint64) int {
	ent, ok := s.table.Delete(key, hash)
	if !ok {
		return 0
	}
	live := !ent.expired(now)
	e.disposeLocked(ent)
	s.markDirty()
	if live {
		return 1
	}
	return 0
}

// Del removes key, returning 1 if the removed entry was live (not already
// expired) or 0 if it was absent or already expired (spec §4.4).
func (e *Engine) Del(key string, now uint64) int {
	s, h := e.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	return e.delLocked(s, key, h, now)
}

// hashAll computes each key's hash and owning shard once, so a batch
// operation never rehashes a key per shard it happens to touch.
func (e *Engine) hashAll(keys []string) (hashes []uint64, shards []*shard) {
	hashes = make([]uint64, len(keys))
	shards = make([]*shard, len(keys))
	for i, k := range keys {
		h := e.hasher.Hash64(k)
		hashes[i] = h
		shards[i] = e.shards[e.shardIndex(h)]
	}
	return hashes, shards
}

// MSet writes every pair, locking the set of distinct shards referenced in
// ascending id order and releasing in reverse (spec §4.4/§5). This is the
// typed-API counterpart of the wire protocol's flat mset argument list; the
// "odd argument count" edge case named in spec §8 belongs to that (un-
// implemented, spec §1 out-of-scope) argument decoder, not this signature.
func (e *Engine) MSet(pairs []KV, now uint64) ResultKind {
	if len(pairs) == 0 {
		return OK
	}
	keys := make([]string, len(pairs))
	for i, p := range pairs {
		keys[i] = p.Key
	}
	hashes, perKeyShard := e.hashAll(keys)

	locked := lockAscending(perKeyShard)
	defer unlockAscending(locked)

	result := OK
	for i, p := range pairs {
		if r := e.setLocked(perKeyShard[i], p.Key, hashes[i], p.Val, now); r == OOM {
			result = OOM
		}
	}
	return result
}

// MGet resolves each key in keys, invoking visit once per key with its
// value (found=true) or a nil slice (found=false, including non-string
// keys). Order of visit calls matches the order of keys.
func (e *Engine) MGet(keys []string, now uint64, visit func(key string, val []byte, found bool)) {
	if len(keys) == 0 {
		return
	}
	hashes, perKeyShard := e.hashAll(keys)

	locked := lockAscending(perKeyShard)
	defer unlockAscending(locked)

	for i, k := range keys {
		s := perKeyShard[i]
		ent, ok := e.lookupLive(s, k, hashes[i], now)
		if !ok || ent.kind != KindString {
			visit(k, nil, false)
			continue
		}
		visit(k, ent.str, true)
	}
}

// MDel removes every key in keys, returning the count of entries that were
// live at removal time.
func (e *Engine) MDel(keys []string, now uint64) int {
	if len(keys) == 0 {
		return 0
	}
	hashes, perKeyShard := e.hashAll(keys)

	locked := lockAscending(perKeyShard)
	defer unlockAscending(locked)

	removed := 0
	for i, k := range keys {
		removed += e.delLocked(perKeyShard[i], k, hashes[i], now)
	}
	return removed
}

// Expire attaches (ttlMs > 0), clears (ttlMs == 0 is still a valid,
// immediately-expiring deadline per spec §8), or rejects (ttlMs < 0, ARG) a
// TTL on key. Returns NIL if key does not exist or is already expired.
func (e *Engine) Expire(key string, ttlMs int64, now uint64) ResultKind {
	if ttlMs < 0 {
		return ARG
	}
	s, h := e.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := e.lookupLive(s, key, h, now)
	if !ok {
		return NIL
	}
	e.scheduleTTL(ent, now+uint64(ttlMs)*1000)
	s.markDirty()
	return OK
}

// TTL returns -2 if key is missing (or already expired), -1 if key exists
// with no TTL, or the floored non-negative milliseconds until expiry.
func (e *Engine) TTL(key string, now uint64) int64 {
	s, h := e.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := e.lookupLive(s, key, h, now)
	if !ok {
		return -2
	}
	if !ent.hasTTL() {
		return -1
	}
	return common.MillisUntil(ent.expireAtUs, now)
}

// Exists reports whether key is present and not expired, performing the
// same lazy-expiration check as every other read (spec §4.4).
func (e *Engine) Exists(key string, now uint64) bool {
	s, h := e.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := e.lookupLive(s, key, h, now)
	return ok
}

// Keys visits every non-expired key matching pattern (glob syntax: `*`,
// `?`, `[set]`/`[^set]`, spec §4.8), one shard at a time; expired entries
// encountered during the scan are dropped (lazy expiration). visit
// returning false stops the entire scan. The result is a snapshot that is
// only consistent per-shard: other shards may have advanced between visits
// (spec §5).
func (e *Engine) Keys(pattern string, now uint64, visit func(key string) bool) {
	for _, s := range e.shards {
		if !e.scanShardKeys(s, pattern, now, visit) {
			return
		}
	}
}

// scanShardKeys scans one shard for keys%pattern, returning false if visit
// asked to stop.
func (e *Engine) scanShardKeys(s *shard, pattern string, now uint64, visit func(key string) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []string
	keepGoing := true
	s.table.ForEach(func(key string, ent *Entry) bool {
		if ent.expired(now) {
			expired = append(expired, key)
			return true
		}
		if common.GlobMatch(pattern, key) {
			keepGoing = visit(key)
		}
		return keepGoing
	})
	for _, key := range expired {
		h := e.hasher.Hash64(key)
		if ent, ok := s.table.Delete(key, h); ok {
			e.disposeLocked(ent)
			s.markDirty()
			e.metrics.incExpire(s.id)
		}
	}
	return keepGoing
}

// Incr parses key's current string value as a signed 64-bit integer, adds
// delta, and writes the result back as a new decimal string. An absent key
// is treated as 0. TTL is preserved (spec §4.4 resolves the Open Question
// in spec §9: incr must not reset expire_at).
func (e *Engine) Incr(key string, delta int64, now uint64) (ResultKind, int64) {
	s, h := e.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := e.lookupLive(s, key, h, now)
	if ok && ent.kind != KindString {
		return TYPE, 0
	}

	var cur int64
	if ok {
		parsed, err := strconv.ParseInt(string(ent.str), 10, 64)
		if err != nil {
			return ARG, 0
		}
		cur = parsed
	}

	next := cur + delta
	if (delta > 0 && next < cur) || (delta < 0 && next > cur) {
		return ARG, 0
	}

	buf := []byte(strconv.FormatInt(next, 10))
	if !ok {
		if !e.admit() {
			return OOM, 0
		}
		fresh := newStringEntry(key, s.id, buf)
		e.putEntry(s, key, h, fresh)
		e.entryCount.Add(1)
	} else {
		ent.str = buf
	}
	s.markDirty()
	return OK, next
}
