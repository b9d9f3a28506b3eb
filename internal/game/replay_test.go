package game

import (
	"testing"
	"time"
)

func testRing() *ReplayRing {
	return NewReplayRing(ReplayOptions{
		MaxEvents:      10000,
		Retention:      30 * time.Minute,
		SampleInterval: 100 * time.Millisecond,
		SweepInterval:  time.Minute,
	})
}

func snapAt(tick uint64) *Snapshot {
	return &Snapshot{MatchID: "m", Tick: tick, Status: StatusActive}
}

// TestSnapshotAt tests the time-indexed lookup: snapshots at relative
// times {0,100,...,500}, lookup at 250 returns the one at 200
func TestSnapshotAt(t *testing.T) {
	ring := testRing()
	start := time.Now()

	for i := 0; i <= 5; i++ {
		if !ring.Record(snapAt(uint64(i)), start.Add(time.Duration(i*100)*time.Millisecond)) {
			t.Fatalf("record %d rejected", i)
		}
	}

	snap, ok := ring.SnapshotAt(250)
	if !ok {
		t.Fatal("expected a snapshot at rel 250")
	}
	if snap.Tick != 2 {
		t.Errorf("expected snapshot with relative_time 200 (tick 2), got tick %d", snap.Tick)
	}

	// Determinism: appending beyond 250 does not change the answer.
	ring.Record(snapAt(99), start.Add(900*time.Millisecond))
	snap, ok = ring.SnapshotAt(250)
	if !ok || snap.Tick != 2 {
		t.Error("lookup at 250 changed after later appends")
	}
}

// TestSnapshotAtAfterSweep tests the retention-cutoff lookup policy:
// after sweeping below 300 a lookup at 250 finds nothing
func TestSnapshotAtAfterSweep(t *testing.T) {
	ring := testRing()
	start := time.Now()
	for i := 0; i <= 5; i++ {
		ring.Record(snapAt(uint64(i)), start.Add(time.Duration(i*100)*time.Millisecond))
	}

	removed := ring.SweepBefore(300)
	if removed != 3 {
		t.Fatalf("expected 3 entries swept, got %d", removed)
	}

	if _, ok := ring.SnapshotAt(250); ok {
		t.Error("lookup below the retention cutoff should return not found")
	}
	if snap, ok := ring.SnapshotAt(400); !ok || snap.Tick != 4 {
		t.Error("retained entries should still resolve")
	}
}

// TestSampleIntervalFloor tests that sub-interval records are
// discarded
func TestSampleIntervalFloor(t *testing.T) {
	ring := testRing()
	start := time.Now()

	if !ring.Record(snapAt(0), start) {
		t.Fatal("first record must be accepted")
	}
	if ring.Record(snapAt(1), start.Add(50*time.Millisecond)) {
		t.Error("record inside the sample interval should be discarded")
	}
	if !ring.Record(snapAt(2), start.Add(100*time.Millisecond)) {
		t.Error("record at the interval boundary should be accepted")
	}
	if got := ring.Stats(start.Add(time.Second)).Count; got != 2 {
		t.Errorf("expected 2 retained snapshots, got %d", got)
	}
}

// TestMaxEventsOverflow tests that the oldest entries drop on overflow
func TestMaxEventsOverflow(t *testing.T) {
	ring := NewReplayRing(ReplayOptions{
		MaxEvents:      3,
		Retention:      time.Hour,
		SampleInterval: time.Millisecond,
		SweepInterval:  time.Minute,
	})
	start := time.Now()
	for i := 0; i < 5; i++ {
		ring.Record(snapAt(uint64(i)), start.Add(time.Duration(i*10)*time.Millisecond))
	}

	events := ring.Since(0)
	if len(events) != 3 {
		t.Fatalf("expected 3 retained events, got %d", len(events))
	}
	if events[0].Snapshot.Tick != 2 {
		t.Errorf("oldest retained should be tick 2, got %d", events[0].Snapshot.Tick)
	}
}

// TestSince tests chronological retrieval from an offset
func TestSince(t *testing.T) {
	ring := testRing()
	start := time.Now()
	for i := 0; i <= 4; i++ {
		ring.Record(snapAt(uint64(i)), start.Add(time.Duration(i*100)*time.Millisecond))
	}

	events := ring.Since(200)
	if len(events) != 3 {
		t.Fatalf("expected 3 events since 200, got %d", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i].RelativeMS < events[i-1].RelativeMS {
			t.Fatal("events must be chronological")
		}
	}
}

// TestRetentionSweep tests time-based pruning
func TestRetentionSweep(t *testing.T) {
	ring := NewReplayRing(ReplayOptions{
		MaxEvents:      100,
		Retention:      time.Second,
		SampleInterval: time.Millisecond,
		SweepInterval:  time.Minute,
	})
	start := time.Now()
	ring.Record(snapAt(0), start)
	ring.Record(snapAt(1), start.Add(500*time.Millisecond))
	ring.Record(snapAt(2), start.Add(2*time.Second))

	removed := ring.Sweep(start.Add(2 * time.Second))
	if removed != 2 {
		t.Errorf("expected 2 swept, got %d", removed)
	}
	stats := ring.Stats(start.Add(2 * time.Second))
	if stats.Count != 1 {
		t.Errorf("expected 1 retained, got %d", stats.Count)
	}
	if stats.Dropped != 2 {
		t.Errorf("expected 2 dropped, got %d", stats.Dropped)
	}
}
