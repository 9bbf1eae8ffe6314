// Package bench provides reproducible micro-benchmarks for minis. Run via:
//   go test ./bench -bench=. -benchmem -cpu 1,4,16
//
// The benchmarks use one key/value shape throughout so results stay
// comparable across revisions:
//   • Key   – string, 1M-key dataset, reused across benches
//   • Value – 64-byte payload
//
// We measure:
//   1. Set          – write-only workload
//   2. Get          – read-only workload (after warm-up)
//   3. GetParallel  – concurrent reads (b.RunParallel)
//   4. GetOrLoad    – 90% hits, 10% misses with loader cost
//   5. Incr         – read-modify-write on a single hot counter key
//   6. ZAdd         – sorted-set insert workload
//
// Results are printed in ns/op + alloc/op so CI can diff via benchstat.
//
// NOTE: unit tests live alongside the package they exercise; this file is
// only for performance.
//
// © 2025 minis authors. MIT License.

package bench

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/minisdb/minis/pkg/minis"
)

const (
	shards = 16
	keys   = 1 << 20 // 1M keys for dataset
)

var value64 = make([]byte, 64)

func newTestEngine() *minis.Engine {
	e, err := minis.New(minis.WithShards(shards))
	if err != nil {
		panic(err)
	}
	e.Init()
	return e
}

// dataset is generated once from a fixed seed so runs are comparable across
// revisions, the same rationale as the teacher's bench harness.
var ds = func() []string {
	r := rand.New(rand.NewSource(42))
	arr := make([]string, keys)
	for i := range arr {
		arr[i] = fmt.Sprintf("k:%016x", r.Uint64())
	}
	return arr
}()

func BenchmarkSet(b *testing.B) {
	e := newTestEngine()
	defer e.Free()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Set(ds[i&(keys-1)], value64, 1)
	}
}

func BenchmarkGet(b *testing.B) {
	e := newTestEngine()
	defer e.Free()
	for _, k := range ds {
		e.Set(k, value64, 1)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Get(ds[i&(keys-1)], 1, func([]byte) {})
	}
}

func BenchmarkGetParallel(b *testing.B) {
	e := newTestEngine()
	defer e.Free()
	for _, k := range ds {
		e.Set(k, value64, 1)
	}
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		idx := rand.Intn(keys)
		for pb.Next() {
			idx = (idx + 1) & (keys - 1)
			e.Get(ds[idx], 1, func([]byte) {})
		}
	})
}

func BenchmarkGetOrLoad(b *testing.B) {
	e := newTestEngine()
	defer e.Free()
	// Preload 90% of keys to simulate a mixed hit/miss workload.
	for i, k := range ds {
		if i%10 != 0 {
			e.Set(k, value64, 1)
		}
	}
	var loaderCnt atomic.Uint64
	loader := func(ctx context.Context, key string) ([]byte, error) {
		loaderCnt.Add(1)
		return value64, nil
	}
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.GetOrLoad(ctx, ds[i&(keys-1)], 1, loader)
	}
	b.ReportMetric(float64(loaderCnt.Load())/float64(b.N)*100, "miss-%")
}

func BenchmarkIncr(b *testing.B) {
	e := newTestEngine()
	defer e.Free()
	e.Set("counter", []byte("0"), 1)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Incr("counter", 1, 1)
	}
}

func BenchmarkZAdd(b *testing.B) {
	e := newTestEngine()
	defer e.Free()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.ZAdd("lb", ds[i&(keys-1)], float64(i), 1)
	}
}
