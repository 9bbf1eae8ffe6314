package minis

// loader.go implements the singleflight-based miss-path convenience layer
// described in SPEC_FULL.md §4.9: GetOrLoad lets a caller plug an external
// source of truth (a database row, a remote RPC, a disk tier such as
// examples/disktier's Badger store) behind the string-command surface
// without every concurrent miss on the same key re-running the loader.
//
// This is an additive convenience on top of the command set spec.md §6
// names; it composes entirely out of Get/Set plus golang.org/x/sync/
// singleflight and introduces no new storage semantics.
//
// © 2025 minis authors. MIT License.

import (
	"context"
)

// LoaderFunc produces the value for key on a cache miss.
type LoaderFunc func(ctx context.Context, key string) ([]byte, error)

// GetOrLoad returns key's value, populating it via fn on a miss. Concurrent
// misses on the same key share a single call to fn (x/sync/singleflight);
// shared reports whether this caller received another goroutine's result
// rather than running fn itself. A wrong-type key (e.g. a hash) is reported
// as TYPE without invoking fn.
func (e *Engine) GetOrLoad(ctx context.Context, key string, now uint64, fn LoaderFunc) (val []byte, shared bool, kind ResultKind, err error) {
	var hit []byte
	result := e.Get(key, now, func(v []byte) { hit = append([]byte(nil), v...) })
	switch result {
	case OK:
		return hit, false, OK, nil
	case TYPE:
		return nil, false, TYPE, nil
	}

	loaded, err, shared := e.loaderGroup.Do(key, func() (any, error) {
		return fn(ctx, key)
	})
	if err != nil {
		return nil, shared, UNKNOWN, err
	}
	loadedBytes := loaded.([]byte)

	if setResult := e.Set(key, loadedBytes, now); setResult == OOM {
		return loadedBytes, shared, OOM, nil
	}
	return loadedBytes, shared, OK, nil
}
