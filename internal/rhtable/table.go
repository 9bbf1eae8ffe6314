// Package rhtable implements the open-addressed Robin-Hood hash table
// described in spec §3/§4.1: linear probing with Robin-Hood stealing,
// incremental two-table resize (a bounded number of slots migrated from the
// secondary table on every operation), no-resurrection on insert during a
// resize, and backward-shift deletion.
//
// Table is generic over its value type so both the top-level key->Entry
// index (pkg/minis) and the field->value index of a hash container
// (pkg/minis/hashcontainer.go) share one implementation. Keys are always Go
// strings; callers supply the 64-bit hash (internal/common.Hasher) so the
// same hash is reused across a batch operation instead of being recomputed
// per shard.
//
// Table is not safe for concurrent use; callers serialize access with their
// own lock (the owning Shard's mutex).
//
// © 2025 minis authors. MIT License.
package rhtable

const (
	// loadFactorThreshold triggers starting an incremental resize (spec
	// §4.1 invariant ii).
	loadFactorThreshold = 0.85
	// migrateStepsPerOp bounds how many non-empty secondary slots are
	// migrated to primary on a single operation (spec §4.1 invariant iii).
	migrateStepsPerOp = 128
	// emptyDIB marks a slot as unoccupied. Probe distances are always >= 0,
	// so -1 can never collide with a real occupant.
	emptyDIB = -1
	// minCapacity is the smallest table ever allocated.
	minCapacity = 16
)

type slot[V any] struct {
	hash uint64
	dib  int32
	key  string
	val  V
}

// rawTable is a single open-addressed array; Table composes two of these
// (primary + optional secondary) to support incremental resize.
type rawTable[V any] struct {
	slots []slot[V]
	mask  uint64
	count int
}

func newRawTable[V any](capacity int) *rawTable[V] {
	capacity = nextPow2(capacity)
	t := &rawTable[V]{
		slots: make([]slot[V], capacity),
		mask:  uint64(capacity - 1),
	}
	for i := range t.slots {
		t.slots[i].dib = emptyDIB
	}
	return t
}

func nextPow2(n int) int {
	if n < minCapacity {
		n = minCapacity
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// insert performs Robin-Hood insertion/update. It returns the previous
// value and true if an existing key was overwritten.
func (t *rawTable[V]) insert(hash uint64, key string, val V) (old V, replaced bool) {
	idx := hash & t.mask
	dib := int32(0)
	curHash, curKey, curVal := hash, key, val

	for {
		s := &t.slots[idx]
		if s.dib == emptyDIB {
			s.hash, s.key, s.val, s.dib = curHash, curKey, curVal, dib
			t.count++
			return old, replaced
		}
		if s.hash == curHash && s.key == curKey {
			old = s.val
			s.val = curVal
			return old, true
		}
		if s.dib < dib {
			// Robin-Hood steal: the richer (lower-dib) occupant yields its
			// slot to the poorer (higher-dib) newcomer and continues
			// probing in its place.
			s.hash, curHash = curHash, s.hash
			s.key, curKey = curKey, s.key
			s.val, curVal = curVal, s.val
			s.dib, dib = dib, s.dib
		}
		idx = (idx + 1) & t.mask
		dib++
	}
}

func (t *rawTable[V]) lookup(hash uint64, key string) (V, bool) {
	idx := hash & t.mask
	dib := int32(0)
	for {
		s := &t.slots[idx]
		if s.dib == emptyDIB || dib > s.dib {
			var zero V
			return zero, false
		}
		if s.hash == hash && s.key == key {
			return s.val, true
		}
		idx = (idx + 1) & t.mask
		dib++
	}
}

func (t *rawTable[V]) delete(hash uint64, key string) (V, bool) {
	idx := hash & t.mask
	dib := int32(0)
	for {
		s := &t.slots[idx]
		if s.dib == emptyDIB || dib > s.dib {
			var zero V
			return zero, false
		}
		if s.hash == hash && s.key == key {
			val := s.val
			t.backwardShiftFrom(idx)
			t.count--
			return val, true
		}
		idx = (idx + 1) & t.mask
		dib++
	}
}

// backwardShiftFrom vacates idx and shifts the following run of occupied
// slots back by one, decrementing their probe distance, preserving the
// Robin-Hood ordering invariant (spec §3 invariant v / §4.1).
func (t *rawTable[V]) backwardShiftFrom(idx uint64) {
	for {
		next := (idx + 1) & t.mask
		if t.slots[next].dib <= 0 {
			t.slots[idx] = slot[V]{dib: emptyDIB}
			return
		}
		t.slots[idx] = t.slots[next]
		t.slots[idx].dib--
		idx = next
	}
}

func (t *rawTable[V]) forEach(visit func(key string, val V) bool) bool {
	for i := range t.slots {
		s := &t.slots[i]
		if s.dib == emptyDIB {
			continue
		}
		if !visit(s.key, s.val) {
			return false
		}
	}
	return true
}

// Table is the public, resize-aware hash table.
type Table[V any] struct {
	primary       *rawTable[V]
	secondary     *rawTable[V]
	migrateCursor int
	resizeEpoch   uint64
}

// New constructs an empty table with room for at least capacityHint entries
// before the first resize.
func New[V any](capacityHint int) *Table[V] {
	return &Table[V]{primary: newRawTable[V](capacityHint)}
}

// Get returns the value stored for key, consulting the secondary table (if
// a resize is in progress) when the primary misses.
func (t *Table[V]) Get(key string, hash uint64) (V, bool) {
	if v, ok := t.primary.lookup(hash, key); ok {
		t.migrate(migrateStepsPerOp)
		return v, true
	}
	if t.secondary != nil {
		if v, ok := t.secondary.lookup(hash, key); ok {
			t.migrate(migrateStepsPerOp)
			return v, true
		}
	}
	t.migrate(migrateStepsPerOp)
	var zero V
	return zero, false
}

// Put inserts or overwrites key. It reports whether an existing entry (in
// either table) was overwritten. Per the no-resurrection invariant, a key
// present in the secondary is removed there before being inserted into the
// primary.
func (t *Table[V]) Put(key string, hash uint64, val V) bool {
	replaced := false
	if t.secondary != nil {
		if _, ok := t.secondary.delete(hash, key); ok {
			replaced = true
		}
	}
	_, wasInPrimary := t.primary.insert(hash, key, val)
	replaced = replaced || wasInPrimary

	t.maybeStartResize()
	t.migrate(migrateStepsPerOp)
	return replaced
}

// Delete removes key from whichever table holds it.
func (t *Table[V]) Delete(key string, hash uint64) (V, bool) {
	if v, ok := t.primary.delete(hash, key); ok {
		t.migrate(migrateStepsPerOp)
		return v, true
	}
	if t.secondary != nil {
		if v, ok := t.secondary.delete(hash, key); ok {
			t.migrate(migrateStepsPerOp)
			return v, true
		}
	}
	t.migrate(migrateStepsPerOp)
	var zero V
	return zero, false
}

// Len returns the total number of live entries across both tables.
func (t *Table[V]) Len() int {
	n := t.primary.count
	if t.secondary != nil {
		n += t.secondary.count
	}
	return n
}

// ForEach visits every live entry. visit returning false stops the scan
// early. Order is unspecified.
func (t *Table[V]) ForEach(visit func(key string, val V) bool) {
	if !t.primary.forEach(visit) {
		return
	}
	if t.secondary != nil {
		t.secondary.forEach(visit)
	}
}

// Resizing reports whether an incremental resize is currently in progress.
func (t *Table[V]) Resizing() bool { return t.secondary != nil }

// ResizeEpoch increments every time an incremental resize is started
// (maybeStartResize). Callers that want to observe resize events (e.g. a
// metrics sink) can snapshot this before and after a mutating call and
// compare, rather than the table pushing the event through a callback.
func (t *Table[V]) ResizeEpoch() uint64 { return t.resizeEpoch }

// Destroy releases the table's backing arrays. The Table must not be used
// afterwards.
func (t *Table[V]) Destroy() {
	t.primary = nil
	t.secondary = nil
}

func (t *Table[V]) maybeStartResize() {
	if t.secondary != nil {
		return
	}
	load := float64(t.primary.count) / float64(len(t.primary.slots))
	if load < loadFactorThreshold {
		return
	}
	old := t.primary
	t.primary = newRawTable[V](len(old.slots) * 2)
	t.secondary = old
	t.migrateCursor = 0
	t.resizeEpoch++
}

// migrate drains up to n non-empty slots from the secondary table into the
// primary, freeing the secondary once it is exhausted (spec §4.1 invariant
// iii; spec §8 property 3).
func (t *Table[V]) migrate(n int) {
	if t.secondary == nil {
		return
	}
	moved := 0
	for moved < n && t.migrateCursor < len(t.secondary.slots) {
		s := &t.secondary.slots[t.migrateCursor]
		t.migrateCursor++
		if s.dib == emptyDIB {
			continue
		}
		t.primary.insert(s.hash, s.key, s.val)
		moved++
	}
	if t.migrateCursor >= len(t.secondary.slots) {
		t.secondary = nil
		t.migrateCursor = 0
	}
}
