package minis

import (
	"testing"
	"time"
)

func TestSweepReclaimsExpiredEntry(t *testing.T) {
	e := newTestEngine(t)
	e.Set("k", []byte("v"), 1000)
	e.Expire("k", 5, 1000)

	if _, ok := e.NextExpiry(); !ok {
		t.Fatalf("NextExpiry should report the pending TTL")
	}

	e.Evict(1000 + 5*1000 + 1)

	s, h := e.shardFor("k")
	s.mu.Lock()
	_, stillThere := s.table.Get("k", h)
	s.mu.Unlock()
	if stillThere {
		t.Fatalf("sweep should have removed the expired entry from its shard")
	}
	if _, ok := e.NextExpiry(); ok {
		t.Fatalf("heap should be empty after sweeping the only pending TTL")
	}
}

func TestSweepLeavesUnexpiredEntriesAlone(t *testing.T) {
	e := newTestEngine(t)
	e.Set("k", []byte("v"), 1000)
	e.Expire("k", 60_000, 1000)

	e.Evict(1000)

	if !e.Exists("k", 1000) {
		t.Fatalf("entry with a future deadline should survive a sweep")
	}
}

func TestDeletingLargeSortedSetDoesNotBlockOnContainerTeardown(t *testing.T) {
	e := newTestEngine(t)
	for i := 0; i < largeContainerThreshold+500; i++ {
		e.ZAdd("big", intToMember(i), float64(i), 1000)
	}

	start := time.Now()
	if n := e.Del("big", 1000); n != 1 {
		t.Fatalf("Del = %d, want 1", n)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Del of a large container took %v, want it to return promptly (teardown offloaded to the pool)", elapsed)
	}
	if e.Exists("big", 1000) {
		t.Fatalf("key should be gone from the shard immediately, even though teardown is async")
	}
}

func intToMember(i int) string {
	const digits = "0123456789"
	if i == 0 {
		return "0"
	}
	buf := make([]byte, 0, 8)
	for i > 0 {
		buf = append(buf, digits[i%10])
		i /= 10
	}
	for l, r := 0, len(buf)-1; l < r; l, r = l+1, r-1 {
		buf[l], buf[r] = buf[r], buf[l]
	}
	return string(buf)
}
