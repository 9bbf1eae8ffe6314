package minis

// persistence.go implements the binary snapshot format of spec §4.7: a
// 12-byte header (magic, body CRC32, version) followed by a sequence of
// framed records and a 0xFF end-of-file marker, written atomically via
// temp-file + fsync + rename.
//
// © 2025 minis authors. MIT License.

import (
	"errors"
	"hash/crc32"
	"os"

	"go.uber.org/zap"

	"github.com/minisdb/minis/internal/common"
	"github.com/minisdb/minis/internal/rhtable"
	"github.com/minisdb/minis/internal/ttlheap"
)

const (
	snapshotMagic   = "M1NI"
	snapshotVersion = uint32(1)
	snapshotHeaderSize = 12

	recTypeString    = byte(0)
	recTypeSortedSet = byte(1)
	recTypeHash      = byte(2)
	recTypeEOF       = byte(0xFF)
)

// ErrCorruptSnapshot is returned by Load/LoadDir when the magic, version, or
// CRC does not match (spec §7 UNKNOWN).
var ErrCorruptSnapshot = errors.New("minis: corrupt or unsupported snapshot")

// decodedRecord is the in-memory form of one parsed record, independent of
// which Kind it represents.
type decodedRecord struct {
	key        string
	expireAtUs uint64
	kind       Kind
	str        []byte
	hashFields []hashFieldRec
	zMembers   []zMemberRec
}

type hashFieldRec struct {
	field string
	val   []byte
}

type zMemberRec struct {
	member string
	score  float64
}

// appendEntryRecord serializes ent (already known non-expired) onto dst.
func appendEntryRecord(dst []byte, ent *Entry) []byte {
	switch ent.kind {
	case KindString:
		dst = append(dst, recTypeString)
		dst = appendKeyAndDeadline(dst, ent.key, ent.expireAtUs)
		dst = common.AppendUint32(dst, uint32(len(ent.str)))
		dst = append(dst, ent.str...)
	case KindSortedSet:
		dst = append(dst, recTypeSortedSet)
		dst = appendKeyAndDeadline(dst, ent.key, ent.expireAtUs)
		dst = common.AppendUint32(dst, uint32(ent.zset.Len()))
		ent.zset.ForEach(func(member string, score float64) bool {
			dst = common.AppendFloat64(dst, score)
			dst = common.AppendUint32(dst, uint32(len(member)))
			dst = append(dst, member...)
			return true
		})
	case KindHash:
		dst = append(dst, recTypeHash)
		dst = appendKeyAndDeadline(dst, ent.key, ent.expireAtUs)
		dst = common.AppendUint32(dst, uint32(ent.hash.Len()))
		ent.hash.forEach(func(field string, val []byte) bool {
			dst = common.AppendUint32(dst, uint32(len(field)))
			dst = append(dst, field...)
			dst = common.AppendUint32(dst, uint32(len(val)))
			dst = append(dst, val...)
			return true
		})
	}
	return dst
}

func appendKeyAndDeadline(dst []byte, key string, expireAtUs uint64) []byte {
	dst = common.AppendUint32(dst, uint32(len(key)))
	dst = append(dst, key...)
	dst = common.AppendUint64(dst, expireAtUs)
	return dst
}

// cursor is a minimal bounds-checked reader over a record body.
type cursor struct {
	buf []byte
	pos int
}

func (c *cursor) byte() (byte, bool) {
	if c.pos >= len(c.buf) {
		return 0, false
	}
	b := c.buf[c.pos]
	c.pos++
	return b, true
}

func (c *cursor) take(n int) ([]byte, bool) {
	if n < 0 || c.pos+n > len(c.buf) {
		return nil, false
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, true
}

func (c *cursor) u32() (uint32, bool) {
	b, ok := c.take(4)
	if !ok {
		return 0, false
	}
	return common.Uint32(b), true
}

func (c *cursor) u64() (uint64, bool) {
	b, ok := c.take(8)
	if !ok {
		return 0, false
	}
	return common.Uint64(b), true
}

func (c *cursor) f64() (float64, bool) {
	b, ok := c.take(8)
	if !ok {
		return 0, false
	}
	return common.Float64(b), true
}

func (c *cursor) str(n uint32) (string, bool) {
	b, ok := c.take(int(n))
	if !ok {
		return "", false
	}
	return string(b), true
}

func (c *cursor) bytes(n uint32) ([]byte, bool) {
	b, ok := c.take(int(n))
	if !ok {
		return nil, false
	}
	return append([]byte(nil), b...), true
}

// decodeRecords parses every record in body up to the 0xFF terminator.
func decodeRecords(body []byte) ([]decodedRecord, error) {
	c := &cursor{buf: body}
	var out []decodedRecord
	for {
		t, ok := c.byte()
		if !ok {
			return nil, ErrCorruptSnapshot
		}
		if t == recTypeEOF {
			return out, nil
		}

		keyLen, ok := c.u32()
		if !ok {
			return nil, ErrCorruptSnapshot
		}
		key, ok := c.str(keyLen)
		if !ok {
			return nil, ErrCorruptSnapshot
		}
		expireAtUs, ok := c.u64()
		if !ok {
			return nil, ErrCorruptSnapshot
		}

		rec := decodedRecord{key: key, expireAtUs: expireAtUs}
		switch t {
		case recTypeString:
			valLen, ok := c.u32()
			if !ok {
				return nil, ErrCorruptSnapshot
			}
			val, ok := c.bytes(valLen)
			if !ok {
				return nil, ErrCorruptSnapshot
			}
			rec.kind = KindString
			rec.str = val

		case recTypeSortedSet:
			count, ok := c.u32()
			if !ok {
				return nil, ErrCorruptSnapshot
			}
			rec.kind = KindSortedSet
			rec.zMembers = make([]zMemberRec, 0, count)
			for i := uint32(0); i < count; i++ {
				score, ok := c.f64()
				if !ok {
					return nil, ErrCorruptSnapshot
				}
				nameLen, ok := c.u32()
				if !ok {
					return nil, ErrCorruptSnapshot
				}
				name, ok := c.str(nameLen)
				if !ok {
					return nil, ErrCorruptSnapshot
				}
				rec.zMembers = append(rec.zMembers, zMemberRec{member: name, score: score})
			}

		case recTypeHash:
			count, ok := c.u32()
			if !ok {
				return nil, ErrCorruptSnapshot
			}
			rec.kind = KindHash
			rec.hashFields = make([]hashFieldRec, 0, count)
			for i := uint32(0); i < count; i++ {
				fieldLen, ok := c.u32()
				if !ok {
					return nil, ErrCorruptSnapshot
				}
				field, ok := c.str(fieldLen)
				if !ok {
					return nil, ErrCorruptSnapshot
				}
				valLen, ok := c.u32()
				if !ok {
					return nil, ErrCorruptSnapshot
				}
				val, ok := c.bytes(valLen)
				if !ok {
					return nil, ErrCorruptSnapshot
				}
				rec.hashFields = append(rec.hashFields, hashFieldRec{field: field, val: val})
			}

		default:
			return nil, ErrCorruptSnapshot
		}
		out = append(out, rec)
	}
}

// buildEntry materializes rec into a fresh, unscheduled Entry. hasher is the
// owning Engine's hasher, reused so a hash container's field hashes are
// computed consistently with every other lookup against it.
func buildEntry(rec decodedRecord, shardID uint8, hasher *common.Hasher) *Entry {
	switch rec.kind {
	case KindString:
		return newStringEntry(rec.key, shardID, rec.str)
	case KindSortedSet:
		ent := newZSetEntry(rec.key, shardID)
		for _, m := range rec.zMembers {
			ent.zset.Add(m.member, m.score)
		}
		return ent
	case KindHash:
		ent := newHashEntry(rec.key, shardID)
		for _, f := range rec.hashFields {
			ent.hash.set(f.field, hasher.Hash64(f.field), f.val)
		}
		return ent
	default:
		return nil
	}
}

// buildSnapshotBody serializes every non-expired-at-now entry across all
// shards, one shard at a time (spec §5 "the source takes one shard at a
// time"): each shard's lock is held only for the duration of that shard's
// own dump, so readers of other shards proceed concurrently.
func (e *Engine) buildSnapshotBody(now uint64) []byte {
	var body []byte
	for _, s := range e.shards {
		s.mu.Lock()
		s.table.ForEach(func(key string, ent *Entry) bool {
			if ent.expireAtUs != 0 && ent.expireAtUs <= now {
				return true
			}
			body = appendEntryRecord(body, ent)
			return true
		})
		s.mu.Unlock()
	}
	body = append(body, recTypeEOF)
	return body
}

func frameSnapshot(body []byte) []byte {
	out := make([]byte, snapshotHeaderSize, snapshotHeaderSize+len(body))
	copy(out[0:4], snapshotMagic)
	common.PutUint32(out[4:8], crc32.ChecksumIEEE(body))
	common.PutUint32(out[8:12], snapshotVersion)
	return append(out, body...)
}

// parseSnapshot validates the header and CRC, then decodes the body's
// records. It performs no mutation of engine state.
func parseSnapshot(data []byte) ([]decodedRecord, error) {
	if len(data) < snapshotHeaderSize || string(data[0:4]) != snapshotMagic {
		return nil, ErrCorruptSnapshot
	}
	wantCRC := common.Uint32(data[4:8])
	version := common.Uint32(data[8:12])
	if version != snapshotVersion {
		return nil, ErrCorruptSnapshot
	}
	body := data[snapshotHeaderSize:]
	if crc32.ChecksumIEEE(body) != wantCRC {
		return nil, ErrCorruptSnapshot
	}
	return decodeRecords(body)
}

// atomicWriteFile writes data to a ".tmp" sibling of path, fsyncs it, then
// renames it over path (atomic on POSIX, spec §4.7).
func atomicWriteFile(path string, data []byte) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Save writes a full snapshot of the engine to path (spec §4.7). Entries
// whose deadline has already passed as of now are omitted.
func (e *Engine) Save(path string, now uint64) error {
	body := e.buildSnapshotBody(now)
	if err := atomicWriteFile(path, frameSnapshot(body)); err != nil {
		e.logger.Warn("snapshot save failed", zap.String("path", path), zap.Error(err))
		e.metrics.incSnapshot("full_error")
		return err
	}
	e.metrics.incSnapshot("full_ok")
	return nil
}

// Load replaces the engine's entire contents with the snapshot at path. On
// any validation failure (bad magic, version, or CRC) the engine is left
// completely untouched, and ErrCorruptSnapshot is returned (spec §7: "load
// into a fresh engine, then swap").
func (e *Engine) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		e.metrics.incSnapshot("full_error")
		return err
	}
	records, err := parseSnapshot(data)
	if err != nil {
		e.logger.Warn("snapshot load rejected", zap.String("path", path), zap.Error(err))
		e.metrics.incSnapshot("full_error")
		return err
	}
	e.restoreFrom(records)
	e.metrics.incSnapshot("full_ok")
	return nil
}

// restoreFrom clears every shard and the heap, then repopulates them from
// records. It holds every shard lock (ascending) and the heap lock for the
// duration, so concurrent readers never observe a partially-cleared engine.
func (e *Engine) restoreFrom(records []decodedRecord) {
	locked := lockAscending(e.shards)
	defer unlockAscending(locked)
	e.heapMu.Lock()
	defer e.heapMu.Unlock()

	for _, s := range e.shards {
		s.table.ForEach(func(_ string, ent *Entry) bool {
			e.destroyEntry(ent)
			return true
		})
		s.table.Destroy()
		s.table = rhtable.New[*Entry](1024)
		s.dirty.Store(0)
		s.lastSaved.Store(0)
	}
	e.heap.Free()
	e.heap = ttlheap.New()
	e.entryCount.Store(0)

	now := common.NowMicros()
	for _, rec := range records {
		if rec.expireAtUs != 0 && rec.expireAtUs <= now {
			continue
		}
		hash := e.hasher.Hash64(rec.key)
		s := e.shards[e.shardIndex(hash)]
		ent := buildEntry(rec, s.id, e.hasher)
		e.putEntry(s, rec.key, hash, ent)
		e.entryCount.Add(1)
		if rec.expireAtUs != 0 {
			ent.expireAtUs = rec.expireAtUs
			e.heap.Add(ent, rec.expireAtUs)
		}
	}
}
