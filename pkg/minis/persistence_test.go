package minis

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func populateSample(e *Engine, now uint64) {
	e.Set("greeting", []byte("Hello"), now)
	e.HSet("u", "name", []byte("jdoe"), now)
	e.HSet("u", "role", []byte("admin"), now)
	e.ZAdd("lb", "Alice", 100.5, now)
	e.ZAdd("lb", "Bob", 50.0, now)
	e.ZAdd("lb", "Charlie", 75.0, now)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snap.mdb")

	src := newTestEngine(t)
	populateSample(src, 1000)
	if err := src.Save(path, 1000); err != nil {
		t.Fatalf("Save: %v", err)
	}

	dst := newTestEngine(t)
	if err := dst.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}

	val, kind := mustGet(t, dst, "greeting", 1000)
	if kind != OK || val != "Hello" {
		t.Fatalf("Get(greeting) after load = %v,%v", val, kind)
	}
	if kind, score := dst.ZScore("lb", "Bob", 1000); kind != OK || score != 50.0 {
		t.Fatalf("ZScore(Bob) after load = %v,%v", kind, score)
	}
	var name []byte
	if r := dst.HGet("u", "name", 1000, func(v []byte) { name = v }); r != OK || string(name) != "jdoe" {
		t.Fatalf("HGet(u,name) after load = %v,%q", r, name)
	}
}

func TestSaveSkipsEntriesExpiredAtSaveTime(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snap.mdb")

	src := newTestEngine(t)
	src.Set("live", []byte("x"), 1000)
	src.Set("dead", []byte("x"), 1000)
	src.Expire("dead", 0, 1000) // expires immediately

	if err := src.Save(path, 1000); err != nil {
		t.Fatalf("Save: %v", err)
	}

	dst := newTestEngine(t)
	if err := dst.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !dst.Exists("live", 1000) {
		t.Fatalf("live key should survive the round trip")
	}
	if dst.Exists("dead", 1000) {
		t.Fatalf("already-expired key should have been skipped at save time")
	}
}

func TestLoadRejectsTamperedChecksum(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snap.mdb")

	src := newTestEngine(t)
	populateSample(src, 1000)
	if err := src.Save(path, 1000); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) <= snapshotHeaderSize {
		t.Fatalf("snapshot too small to tamper with")
	}
	data[snapshotHeaderSize] ^= 0xFF // flip a bit in the body
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	dst := newTestEngine(t)
	dst.Set("sentinel", []byte("untouched"), 1000)
	if err := dst.Load(path); err == nil {
		t.Fatalf("Load should reject a tampered snapshot")
	}
	// A failed Load must not clear the engine it was called on.
	if !dst.Exists("sentinel", 1000) {
		t.Fatalf("failed Load must leave the target engine's existing state intact")
	}
}

func TestLoadOfRejectedSnapshotLeavesFreshEngineEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snap.mdb")

	src := newTestEngine(t)
	populateSample(src, 1000)
	src.Save(path, 1000)

	data, _ := os.ReadFile(path)
	data[snapshotHeaderSize] ^= 0xFF
	os.WriteFile(path, data, 0o644)

	dst := newTestEngine(t)
	if err := dst.Load(path); err == nil {
		t.Fatalf("Load should reject a tampered snapshot")
	}
	if dst.Exists("greeting", 1000) {
		t.Fatalf("a fresh engine must remain empty after a rejected load")
	}
}

func TestSaveLoadSaveIsByteIdentical(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "a.mdb")
	pathB := filepath.Join(dir, "b.mdb")

	src := newTestEngine(t)
	populateSample(src, 1000)
	if err := src.Save(pathA, 1000); err != nil {
		t.Fatalf("Save A: %v", err)
	}

	mid := newTestEngine(t)
	if err := mid.Load(pathA); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := mid.Save(pathB, 1000); err != nil {
		t.Fatalf("Save B: %v", err)
	}

	a, _ := os.ReadFile(pathA)
	b, _ := os.ReadFile(pathB)
	if !bytes.Equal(a, b) {
		t.Fatalf("save -> load -> save was not byte-identical")
	}
}

func TestIncrementalSaveAndLoadDir(t *testing.T) {
	dir := t.TempDir()

	src := newTestEngine(t)
	populateSample(src, 1000)

	// Each shard with pending mutations gets its own incremental snapshot
	// file, one shard per call (spec §4.7).
	for i := 0; i < src.shardCount(); i++ {
		if err := src.SaveIncremental(dir); err != nil {
			t.Fatalf("SaveIncremental: %v", err)
		}
	}

	dst := newTestEngine(t)
	if err := dst.LoadDir(dir); err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	val, kind := mustGet(t, dst, "greeting", 1000)
	if kind != OK || val != "Hello" {
		t.Fatalf("Get(greeting) after LoadDir = %v,%v", val, kind)
	}
	if kind, score := dst.ZScore("lb", "Alice", 1000); kind != OK || score != 100.5 {
		t.Fatalf("ZScore(Alice) after LoadDir = %v,%v", kind, score)
	}
}

func TestSaveIncrementalWithNoDirtyShardsIsNoOp(t *testing.T) {
	dir := t.TempDir()
	e := newTestEngine(t)
	if err := e.SaveIncremental(dir); err != nil {
		t.Fatalf("SaveIncremental on an untouched engine: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no shard files to be written, got %v", entries)
	}
}
