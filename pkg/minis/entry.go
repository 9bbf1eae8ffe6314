package minis

// entry.go defines Entry, the per-key record a shard's table maps string
// keys to, and Kind, the tag distinguishing the three container types a
// key can hold.
//
// © 2025 minis authors. MIT License.

import (
	"github.com/minisdb/minis/internal/ttlheap"
	"github.com/minisdb/minis/internal/zset"
)

// Kind discriminates the three container types a key can hold (spec §3).
type Kind uint8

const (
	KindString Kind = iota
	KindHash
	KindSortedSet
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindHash:
		return "hash"
	case KindSortedSet:
		return "zset"
	default:
		return "invalid"
	}
}

// largeContainerThreshold is the "more than 10,000 sub-elements" line spec
// §4.4/§5 draws between destroying a container inline and handing it to the
// worker pool.
const largeContainerThreshold = 10000

// Entry is the value stored for every key: exactly one active payload
// (string bytes, hash container, or sorted set), an optional absolute
// expiration deadline, and the bookkeeping a ttlheap.Owner needs to report
// its own slot.
//
// Entry intentionally carries all three payload fields rather than an
// interface{}: every command already switches on Kind to decide which
// field is meaningful, and a concrete struct avoids an allocation + type
// assertion on every access to the hot string path.
type Entry struct {
	key string
	kind Kind

	str  []byte
	hash *hashContainer
	zset *zset.ZSet

	expireAtUs uint64
	heapIdx    int
	shardID    uint8
}

func newStringEntry(key string, shardID uint8, val []byte) *Entry {
	return &Entry{key: key, kind: KindString, str: val, heapIdx: ttlheap.NoIndex, shardID: shardID}
}

func newHashEntry(key string, shardID uint8) *Entry {
	return &Entry{key: key, kind: KindHash, hash: newHashContainer(), heapIdx: ttlheap.NoIndex, shardID: shardID}
}

func newZSetEntry(key string, shardID uint8) *Entry {
	return &Entry{key: key, kind: KindSortedSet, zset: zset.New(), heapIdx: ttlheap.NoIndex, shardID: shardID}
}

// HeapIndex and SetHeapIndex implement ttlheap.Owner.
func (e *Entry) HeapIndex() int      { return e.heapIdx }
func (e *Entry) SetHeapIndex(i int) { e.heapIdx = i }

// hasTTL reports whether the entry currently carries an expiration
// deadline.
func (e *Entry) hasTTL() bool { return e.heapIdx != ttlheap.NoIndex }

// expired reports whether the entry's deadline, if any, is at or before
// nowUs (spec §4.2: expiry is "deadline <= now", not strictly less).
func (e *Entry) expired(nowUs uint64) bool {
	return e.hasTTL() && e.expireAtUs <= nowUs
}

// elementCount is the "sub-element" count spec §4.4/§5 uses to decide
// whether destroying this entry's container should be offloaded to the
// worker pool.
func (e *Entry) elementCount() int {
	switch e.kind {
	case KindHash:
		return e.hash.Len()
	case KindSortedSet:
		return e.zset.Len()
	default:
		return 1
	}
}
