package minis

// inspect.go gives cmd/minis-inspect a read-only view of a snapshot file or
// an incremental snapshot directory without constructing a live Engine: it
// reuses the same header/CRC/record decoding persistence.go already has,
// never calling restoreFrom, so inspecting a file can never mutate it.
//
// © 2025 minis authors. MIT License.

import (
	"hash/crc32"
	"os"
	"path/filepath"
	"sort"

	"github.com/minisdb/minis/internal/common"
)

// FileReport summarizes one snapshot file's header and contents.
type FileReport struct {
	Path       string
	Version    uint32
	CRC32      uint32
	CRCOK      bool
	Keys       int
	SoonestTTL uint64 // smallest nonzero expire_at_us seen, 0 if none
	OldestTTL  uint64 // largest expire_at_us seen, 0 if none
}

// InspectFile parses the header and body of the snapshot at path without
// touching any Engine state. A corrupt header or CRC is reported via CRCOK
// rather than returned as an error, so a caller can still report the parts
// of the file it could read.
func InspectFile(path string) (FileReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileReport{}, err
	}
	r := FileReport{Path: path}
	if len(data) < snapshotHeaderSize || string(data[0:4]) != snapshotMagic {
		return r, ErrCorruptSnapshot
	}
	r.CRC32 = common.Uint32(data[4:8])
	r.Version = common.Uint32(data[8:12])
	body := data[snapshotHeaderSize:]
	r.CRCOK = crc32.ChecksumIEEE(body) == r.CRC32
	if !r.CRCOK || r.Version != snapshotVersion {
		return r, nil
	}

	records, err := decodeRecords(body)
	if err != nil {
		return r, nil
	}
	r.Keys = len(records)
	for _, rec := range records {
		if rec.expireAtUs == 0 {
			continue
		}
		if r.SoonestTTL == 0 || rec.expireAtUs < r.SoonestTTL {
			r.SoonestTTL = rec.expireAtUs
		}
		if rec.expireAtUs > r.OldestTTL {
			r.OldestTTL = rec.expireAtUs
		}
	}
	return r, nil
}

// InspectDir reports every shard-<id>.mdb file found under dir, in
// ascending shard-id order. A missing shard file is simply absent from the
// result, matching LoadDir's "no file means no data for that shard"
// semantics.
func InspectDir(dir string) ([]FileReport, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var reports []FileReport
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		r, err := InspectFile(filepath.Join(dir, ent.Name()))
		if err != nil {
			r.Path = filepath.Join(dir, ent.Name())
		}
		reports = append(reports, r)
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].Path < reports[j].Path })
	return reports, nil
}
