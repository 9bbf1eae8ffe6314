package minis

// hashcontainer.go defines hashContainer, the field->value index backing a
// KindHash entry.
//
// © 2025 minis authors. MIT License.

import "github.com/minisdb/minis/internal/rhtable"

// hashContainer is the field->value index backing a KindHash entry, a thin
// adapter over rhtable.Table[[]byte] (spec §3's "hash" container; spec §4
// hset/hget/hdel/hexists/hlen/hgetall).
type hashContainer struct {
	table *rhtable.Table[[]byte]
}

func newHashContainer() *hashContainer {
	return &hashContainer{table: rhtable.New[[]byte](8)}
}

func (h *hashContainer) get(field string, hash uint64) ([]byte, bool) {
	return h.table.Get(field, hash)
}

// set reports whether field was previously absent (spec §4.3 hset
// semantics: "1 if field is new, 0 if it already existed"). Resizes of a
// single hash container's field table are not reported to minis_resizes_total;
// that metric is shard-scoped (see metrics.go), and a hash container's field
// table is private to one entry, not one of the engine's N shards.
func (h *hashContainer) set(field string, hash uint64, val []byte) bool {
	return !h.table.Put(field, hash, val)
}

func (h *hashContainer) delete(field string, hash uint64) ([]byte, bool) {
	return h.table.Delete(field, hash)
}

func (h *hashContainer) Len() int { return h.table.Len() }

func (h *hashContainer) forEach(visit func(field string, val []byte) bool) {
	h.table.ForEach(visit)
}

func (h *hashContainer) dispose() {
	h.table.Destroy()
}
