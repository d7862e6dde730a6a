package drill

import (
	"math/rand"
	"testing"
)

func TestTrackerSeriesOrder(t *testing.T) {
	tr := NewTracker([]string{"a", "b", "c"}, SelectSeries)

	for _, want := range []string{"a", "b", "c", "a", "b"} {
		got, ok := tr.SelectNext()
		if !ok || got != want {
			t.Fatalf("SelectNext = %q, %v; want %q", got, ok, want)
		}
	}

	empty := NewTracker(nil, SelectSeries)
	if _, ok := empty.SelectNext(); ok {
		t.Fatal("empty tracker has nothing to select")
	}
}

func TestTrackerRandomPrefersPending(t *testing.T) {
	tr := NewTracker([]string{"a", "b", "c", "d"}, SelectRandom,
		WithRand(rand.New(rand.NewSource(1))))
	tr.MarkResult("a", true)
	tr.MarkResult("d", false)

	for i := 0; i < 50; i++ {
		got, ok := tr.SelectNext()
		if !ok {
			t.Fatal("random tracker never exhausts")
		}
		if got != "b" && got != "c" {
			t.Fatalf("draw %d picked %q, want a pending variation", i, got)
		}
	}
}

func TestTrackerRandomFallsBackWhenNonePending(t *testing.T) {
	tr := NewTracker([]string{"a", "b"}, SelectRandom,
		WithRand(rand.New(rand.NewSource(7))))
	tr.MarkResult("a", true)
	tr.MarkResult("b", false)

	got, ok := tr.SelectNext()
	if !ok || (got != "a" && got != "b") {
		t.Fatalf("SelectNext = %q, %v", got, ok)
	}
}

func TestTrackerMarkResult(t *testing.T) {
	tr := NewTracker([]string{"a"}, SelectSeries)

	tr.MarkResult("a", false)
	if tr.Status("a") != StatusError {
		t.Fatalf("status = %s, want error", tr.Status("a"))
	}
	tr.MarkResult("a", true)
	if tr.Status("a") != StatusSuccess {
		t.Fatalf("status = %s, want success", tr.Status("a"))
	}
	tr.MarkResult("a", false)
	if tr.Status("a") != StatusError {
		t.Fatalf("default policy should allow regression, got %s", tr.Status("a"))
	}
	tr.MarkResult("missing", true)
	if tr.Status("missing") != StatusPending {
		t.Fatal("unknown keys must stay pending")
	}
}

func TestTrackerUpgradeOnly(t *testing.T) {
	tr := NewTracker([]string{"a"}, SelectSeries, WithUpgradeOnly())

	tr.MarkResult("a", true)
	tr.MarkResult("a", false)
	if tr.Status("a") != StatusSuccess {
		t.Fatalf("upgrade-only tracker regressed to %s", tr.Status("a"))
	}
}

func TestRestoreTracker(t *testing.T) {
	snap := map[string]VariationStatus{
		"a":     StatusSuccess,
		"ghost": StatusError,
	}
	tr := RestoreTracker([]string{"a", "b"}, snap, 1, SelectSeries)

	if tr.Status("a") != StatusSuccess {
		t.Errorf("a = %s, want success", tr.Status("a"))
	}
	if tr.Status("b") != StatusPending {
		t.Errorf("b = %s, want pending", tr.Status("b"))
	}
	if got, ok := tr.SelectNext(); !ok || got != "b" {
		t.Errorf("cursor should resume at b, got %q, %v", got, ok)
	}
	if _, ok := tr.Statuses()["ghost"]; ok {
		t.Error("snapshot entry for unknown key must be dropped")
	}
}

func TestTrackerReinitialize(t *testing.T) {
	tr := NewTracker([]string{"a", "b"}, SelectSeries)
	tr.MarkResult("a", true)
	tr.SelectNext()
	tr.Reinitialize([]string{"x", "y", "z"}, []string{"y", "ghost"})

	if tr.Remaining() != 2 {
		t.Fatalf("Remaining = %d, want 2", tr.Remaining())
	}
	if tr.Status("y") != StatusSuccess {
		t.Fatalf("y = %s, want success", tr.Status("y"))
	}
	if _, ok := tr.Statuses()["a"]; ok {
		t.Fatal("old keys must be gone")
	}
	if got, ok := tr.SelectNext(); !ok || got != "x" {
		t.Fatalf("cursor should rewind to x, got %q, %v", got, ok)
	}
}
