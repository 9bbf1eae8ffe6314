// Package common collects the small, dependency-free primitives shared by
// every other package in minis: key hashing, a monotonic microsecond clock,
// little-endian helpers for the snapshot codec, and a glob matcher for the
// KEYS command.
//
// None of this package ever takes a lock; callers provide their own
// synchronization.
//
// © 2025 minis authors. MIT License.
package common

import "hash/maphash"

// Hasher computes a stable 64-bit hash for string keys. A single Hasher is
// shared by an Engine's shards so that mset/mget/mdel route every key the
// same way regardless of which shard initiates the batch.
type Hasher struct {
	seed maphash.Seed
}

// NewHasher constructs a Hasher with a fresh random seed.
func NewHasher() *Hasher {
	return &Hasher{seed: maphash.MakeSeed()}
}

// Hash64 returns the 64-bit hash of key under the Hasher's seed.
func (h *Hasher) Hash64(key string) uint64 {
	var mh maphash.Hash
	mh.SetSeed(h.seed)
	mh.WriteString(key)
	return mh.Sum64()
}
