package game

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Capacity, duplicate and transient errors surfaced to callers as
// structured responses.
var (
	ErrAlreadyJoined    = errors.New("already_joined")
	ErrMatchFull        = errors.New("match_full")
	ErrMatchFinished    = errors.New("match_finished")
	ErrSpectatorsFull   = errors.New("spectators_full")
	ErrOperationPending = errors.New("operation_pending")
	ErrSpectatorUnknown = errors.New("spectator not found")
)

// SpectatorRoom tracks the spectators of one match and feeds the
// replay ring. Join and leave arrive from connection goroutines while
// the match loop pushes broadcasts, so the room serializes everything
// through its own lock; the pending set rejects reentrant join/leave
// races for the same id.
type SpectatorRoom struct {
	mu          sync.Mutex
	matchID     string
	max         int
	pending     map[string]struct{}
	broadcaster *Broadcaster
	ring        *ReplayRing
}

// NewSpectatorRoom creates a room with the given spectator cap and
// replay bounds.
func NewSpectatorRoom(matchID string, maxSpectators int, replay ReplayOptions) *SpectatorRoom {
	return &SpectatorRoom{
		matchID:     matchID,
		max:         maxSpectators,
		pending:     make(map[string]struct{}),
		broadcaster: NewBroadcaster(matchID),
		ring:        NewReplayRing(replay),
	}
}

// Join registers a spectator subscriber. Duplicates are rejected with
// already_joined, a full room with spectators_full, and an id whose
// previous join/leave is still in flight with operation_pending.
func (r *SpectatorRoom) Join(sub Subscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := sub.ID()
	if _, busy := r.pending[id]; busy {
		return ErrOperationPending
	}
	r.pending[id] = struct{}{}
	defer delete(r.pending, id)

	if r.broadcaster.subs[id] != nil {
		return ErrAlreadyJoined
	}
	if r.broadcaster.Count() >= r.max {
		return ErrSpectatorsFull
	}

	r.broadcaster.Add(sub)
	return nil
}

// Leave removes a spectator. Unknown ids return an error the caller
// may ignore; an in-flight operation for the id is rejected.
func (r *SpectatorRoom) Leave(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, busy := r.pending[id]; busy {
		return ErrOperationPending
	}
	r.pending[id] = struct{}{}
	defer delete(r.pending, id)

	if r.broadcaster.subs[id] == nil {
		return ErrSpectatorUnknown
	}
	r.broadcaster.Remove(id)
	return nil
}

// Count returns the current spectator count.
func (r *SpectatorRoom) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.broadcaster.Count()
}

// OnBroadcast mirrors a committed payload to the room's spectators.
// Called by the match loop on every commit.
func (r *SpectatorRoom) OnBroadcast(payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcaster.Fanout(payload)
}

// Record appends a snapshot to the replay ring, subject to its
// sampling floor.
func (r *SpectatorRoom) Record(snap *Snapshot, now time.Time) bool {
	return r.ring.Record(snap, now)
}

// Ring exposes the replay ring for lookups and sweeps.
func (r *SpectatorRoom) Ring() *ReplayRing { return r.ring }
