package window

import (
	"fmt"
	"testing"
)

func TestWindowEvictsOldestBeyondCapacity(t *testing.T) {
	w, err := NewWindow(3)
	if err != nil {
		t.Fatalf("new window: %v", err)
	}

	for i := 0; i < 10; i++ {
		w.Append(Point{Timestamp: fmt.Sprintf("t%d", i), Value: float64(i)})
	}

	if w.Len() != 3 {
		t.Fatalf("expected length 3, got %d", w.Len())
	}

	got := w.Snapshot()
	for i, want := range []float64{7, 8, 9} {
		if got[i].Value != want {
			t.Errorf("snapshot[%d] = %v, want %v", i, got[i].Value, want)
		}
	}
}

func TestWindowPartialFill(t *testing.T) {
	w, _ := NewWindow(5)
	w.Append(Point{Timestamp: "a", Value: 1})
	w.Append(Point{Timestamp: "b", Value: 2})

	got := w.Snapshot()
	if len(got) != 2 || got[0].Value != 1 || got[1].Value != 2 {
		t.Fatalf("unexpected snapshot %v", got)
	}
}

func TestWindowRejectsNonPositiveCapacity(t *testing.T) {
	if _, err := NewWindow(0); err == nil {
		t.Fatal("expected error for capacity 0")
	}
	if _, err := NewWindow(-1); err == nil {
		t.Fatal("expected error for negative capacity")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	w, _ := NewWindow(2)
	w.Append(Point{Timestamp: "a", Value: 1})

	snap := w.Snapshot()
	snap[0].Value = 99

	if w.Snapshot()[0].Value != 1 {
		t.Fatal("mutating a snapshot leaked into the window")
	}
}

func TestAggregatorChannels(t *testing.T) {
	a, err := NewAggregator(2, []string{"temp1", "rh1"})
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}

	if err := a.Append("temp1", "ts1", 22.5); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := a.Append("bogus", "ts1", 1); err == nil {
		t.Fatal("expected error for unknown channel")
	}

	snap, err := a.Snapshot("temp1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap) != 1 || snap[0].Value != 22.5 {
		t.Fatalf("unexpected snapshot %v", snap)
	}

	if _, err := a.Snapshot("bogus"); err == nil {
		t.Fatal("expected error for unknown channel")
	}
}
