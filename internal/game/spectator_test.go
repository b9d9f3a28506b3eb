package game

import (
	"testing"
	"time"
)

func testRoom(max int) *SpectatorRoom {
	return NewSpectatorRoom("m", max, ReplayOptions{
		MaxEvents:      100,
		Retention:      time.Minute,
		SampleInterval: time.Millisecond,
		SweepInterval:  time.Minute,
	})
}

// TestSpectatorJoinLeave tests the basic join/leave cycle
func TestSpectatorJoinLeave(t *testing.T) {
	room := testRoom(100)
	sub := &stubSubscriber{id: "spec1", failAfter: -1}

	if err := room.Join(sub); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if room.Count() != 1 {
		t.Errorf("expected 1 spectator, got %d", room.Count())
	}

	if err := room.Leave("spec1"); err != nil {
		t.Fatalf("leave failed: %v", err)
	}
	if room.Count() != 0 {
		t.Errorf("expected 0 spectators, got %d", room.Count())
	}
}

// TestSpectatorDuplicateJoin tests the already_joined rejection
func TestSpectatorDuplicateJoin(t *testing.T) {
	room := testRoom(100)
	sub := &stubSubscriber{id: "spec1", failAfter: -1}

	if err := room.Join(sub); err != nil {
		t.Fatalf("first join failed: %v", err)
	}
	if err := room.Join(sub); err != ErrAlreadyJoined {
		t.Errorf("expected ErrAlreadyJoined, got %v", err)
	}
	if room.Count() != 1 {
		t.Errorf("duplicate join must not grow the room, got %d", room.Count())
	}
}

// TestSpectatorCapacity tests the MAX_SPECTATORS cap
func TestSpectatorCapacity(t *testing.T) {
	room := testRoom(2)
	for i := 0; i < 2; i++ {
		sub := &stubSubscriber{id: string(rune('a' + i)), failAfter: -1}
		if err := room.Join(sub); err != nil {
			t.Fatalf("join %d failed: %v", i, err)
		}
	}

	err := room.Join(&stubSubscriber{id: "overflow", failAfter: -1})
	if err != ErrSpectatorsFull {
		t.Errorf("expected ErrSpectatorsFull, got %v", err)
	}
}

// TestSpectatorLeaveUnknown tests leaving without joining
func TestSpectatorLeaveUnknown(t *testing.T) {
	room := testRoom(100)
	if err := room.Leave("ghost"); err != ErrSpectatorUnknown {
		t.Errorf("expected ErrSpectatorUnknown, got %v", err)
	}
}

// TestRoomForwardsBroadcasts tests the mirror path and slow-consumer
// reaping
func TestRoomForwardsBroadcasts(t *testing.T) {
	room := testRoom(100)
	healthy := &stubSubscriber{id: "ok", failAfter: -1}
	dead := &stubSubscriber{id: "dead", failAfter: 0}
	room.Join(healthy)
	room.Join(dead)

	room.OnBroadcast([]byte("payload"))

	if healthy.count() != 1 {
		t.Errorf("healthy spectator should receive the payload")
	}
	if room.Count() != 1 {
		t.Errorf("dead spectator should be reaped, count %d", room.Count())
	}
}

// TestRoomRecordsReplay tests the replay feed
func TestRoomRecordsReplay(t *testing.T) {
	room := testRoom(100)
	now := time.Now()

	if !room.Record(&Snapshot{MatchID: "m", Tick: 1}, now) {
		t.Fatal("record rejected")
	}
	stats := room.Ring().Stats(now.Add(time.Second))
	if stats.Count != 1 {
		t.Errorf("expected 1 snapshot in ring, got %d", stats.Count)
	}
}
