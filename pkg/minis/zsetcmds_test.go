package minis

import (
	"fmt"
	"math"
	"testing"
)

func TestZAddReturnsNewOnlyOnce(t *testing.T) {
	e := newTestEngine(t)
	_, isNew := e.ZAdd("lb", "Alice", 100.5, 1000)
	if !isNew {
		t.Fatalf("first ZAdd should report new")
	}
	_, isNew = e.ZAdd("lb", "Alice", 200, 1000)
	if isNew {
		t.Fatalf("ZAdd updating score should report not-new")
	}
}

func TestZScoreRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	e.ZAdd("lb", "Alice", 100.5, 1000)
	kind, score := e.ZScore("lb", "Alice", 1000)
	if kind != OK || score != 100.5 {
		t.Fatalf("ZScore = %v,%v want OK,100.5", kind, score)
	}
	if kind, _ := e.ZScore("lb", "missing", 1000); kind != NIL {
		t.Fatalf("ZScore(missing) = %v, want NIL", kind)
	}
}

func TestZQueryLeaderboardOrdering(t *testing.T) {
	e := newTestEngine(t)
	e.ZAdd("lb", "Alice", 100.5, 1000)
	e.ZAdd("lb", "Bob", 50.0, 1000)
	e.ZAdd("lb", "Charlie", 75.0, 1000)

	var got []string
	kind := e.ZQuery("lb", math.Inf(-1), "", 0, 10, 1000, func(member string, score float64) bool {
		got = append(got, fmt.Sprintf("%s:%.1f", member, score))
		return true
	})
	if kind != OK {
		t.Fatalf("ZQuery = %v", kind)
	}
	want := []string{"Bob:50.0", "Charlie:75.0", "Alice:100.5"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestZRemLastMemberDisposesEntry(t *testing.T) {
	e := newTestEngine(t)
	e.ZAdd("lb", "only", 1, 1000)
	kind, n := e.ZRem("lb", "only", 1000)
	if kind != OK || n != 1 {
		t.Fatalf("ZRem = %v,%d", kind, n)
	}
	if e.Exists("lb", 1000) {
		t.Fatalf("sorted set should be gone after removing its last member")
	}
}

func TestZCommandsOnWrongTypeReturnType(t *testing.T) {
	e := newTestEngine(t)
	e.Set("s", []byte("x"), 1000)
	if kind, _ := e.ZScore("s", "m", 1000); kind != TYPE {
		t.Fatalf("ZScore on string = %v, want TYPE", kind)
	}
}
