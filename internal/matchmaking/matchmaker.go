package matchmaking

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Mode identifies a game mode and implies the party size per match.
type Mode string

const (
	Mode1v1 Mode = "1v1"
	Mode2v2 Mode = "2v2"
	ModeFFA Mode = "ffa"
)

// partySizes maps each mode to the number of players per match.
var partySizes = map[Mode]int{
	Mode1v1: 2,
	Mode2v2: 4,
	ModeFFA: 4,
}

// PartySize returns the players per match for a mode, default 2.
func PartySize(mode Mode) int {
	if n, ok := partySizes[mode]; ok {
		return n
	}
	return 2
}

// QueueEntry is one waiting player.
type QueueEntry struct {
	PlayerID string    `json:"playerId"`
	Rating   float64   `json:"rating"`  // snapshot at enqueue
	Latency  int       `json:"latency"` // milliseconds
	Mode     Mode      `json:"mode"`
	Region   Region    `json:"region"`
	JoinedAt time.Time `json:"joinedAt"`
}

// QueueStatus is the player-visible view of their queue position.
type QueueStatus struct {
	Position int           `json:"position"` // 1-based within the queue
	WaitTime time.Duration `json:"waitTime"`
	ETA      time.Duration `json:"eta"`
}

// MatchFound is emitted when a full party has been assembled.
type MatchFound struct {
	GameID  string
	Mode    Mode
	Region  Region
	Players []QueueEntry
}

// State and duplicate errors surfaced to the protocol layer.
var (
	ErrAlreadyQueued = errors.New("already_queued")
	ErrNotQueued     = errors.New("not_in_queue")
)

// Config tunes the pairing pass.
type Config struct {
	TickInterval     time.Duration
	BaseSkillTol     float64
	MaxSkillTol      float64
	SkillWidenPerSec float64 // tolerance growth per waited second
	LatencyTol       int     // milliseconds
	QueueTimeout     time.Duration
}

// DefaultConfig returns the production pairing parameters.
func DefaultConfig() Config {
	return Config{
		TickInterval:     time.Second,
		BaseSkillTol:     100,
		MaxSkillTol:      300,
		SkillWidenPerSec: 10,
		LatencyTol:       150,
		QueueTimeout:     30 * time.Second,
	}
}

type queueKey struct {
	Mode   Mode
	Region Region
}

// Matchmaker is the single long-running pairing pipeline. It owns the
// per-(mode, region) queues and the skill-rating table; enqueue,
// dequeue and status are serialized through its lock and stay far
// below the tick interval.
type Matchmaker struct {
	mu      sync.Mutex
	cfg     Config
	queues  map[queueKey][]*QueueEntry
	byID    map[string]queueKey
	ratings *RatingTable
	policy  *RegionPolicy

	onMatchFound func(MatchFound)
	onTimeout    func(entry QueueEntry)

	nowFn func() time.Time
	seq   uint64

	stopChan chan struct{}
	stopOnce sync.Once
	running  bool
}

// New creates a matchmaker. onMatchFound receives assembled parties;
// onTimeout fires for entries that waited out the queue.
func New(cfg Config, ratings *RatingTable, policy *RegionPolicy,
	onMatchFound func(MatchFound), onTimeout func(QueueEntry)) *Matchmaker {

	if ratings == nil {
		ratings = NewRatingTable()
	}
	if policy == nil {
		policy = DefaultRegionPolicy()
	}
	return &Matchmaker{
		cfg:          cfg,
		queues:       make(map[queueKey][]*QueueEntry),
		byID:         make(map[string]queueKey),
		ratings:      ratings,
		policy:       policy,
		onMatchFound: onMatchFound,
		onTimeout:    onTimeout,
		nowFn:        time.Now,
		stopChan:     make(chan struct{}),
	}
}

// Ratings exposes the skill-rating table for outcome updates.
func (mm *Matchmaker) Ratings() *RatingTable { return mm.ratings }

// Start launches the pairing loop at the configured tick interval.
func (mm *Matchmaker) Start() {
	mm.mu.Lock()
	if mm.running {
		mm.mu.Unlock()
		return
	}
	mm.running = true
	mm.mu.Unlock()

	go func() {
		ticker := time.NewTicker(mm.cfg.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-mm.stopChan:
				return
			case <-ticker.C:
				mm.Tick(mm.nowFn())
			}
		}
	}()
	log.Printf("matchmaker started, tick %s", mm.cfg.TickInterval)
}

// Stop halts the pairing loop. Idempotent.
func (mm *Matchmaker) Stop() {
	mm.stopOnce.Do(func() { close(mm.stopChan) })
}

// Enqueue inserts a player ordered by join time. The rating snapshot
// comes from the table; duplicates are rejected.
func (mm *Matchmaker) Enqueue(playerID string, mode Mode, region Region, latency int) (int, error) {
	now := mm.nowFn()
	rating := mm.ratings.Get(playerID, now)

	mm.mu.Lock()
	defer mm.mu.Unlock()

	if _, dup := mm.byID[playerID]; dup {
		return 0, ErrAlreadyQueued
	}

	key := queueKey{Mode: mode, Region: region}
	entry := &QueueEntry{
		PlayerID: playerID,
		Rating:   rating.Rating,
		Latency:  latency,
		Mode:     mode,
		Region:   region,
		JoinedAt: now,
	}
	mm.queues[key] = append(mm.queues[key], entry)
	mm.byID[playerID] = key
	return len(mm.queues[key]), nil
}

// Dequeue removes a player if present. Removing an absent player is a
// no-op.
func (mm *Matchmaker) Dequeue(playerID string) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.removeLocked(playerID)
}

// removeLocked requires mm.mu held.
func (mm *Matchmaker) removeLocked(playerID string) *QueueEntry {
	key, ok := mm.byID[playerID]
	if !ok {
		return nil
	}
	delete(mm.byID, playerID)

	queue := mm.queues[key]
	for i, e := range queue {
		if e.PlayerID == playerID {
			mm.queues[key] = append(queue[:i], queue[i+1:]...)
			return e
		}
	}
	return nil
}

// Status reports a player's queue position and wait, or ErrNotQueued.
func (mm *Matchmaker) Status(playerID string) (QueueStatus, error) {
	now := mm.nowFn()

	mm.mu.Lock()
	defer mm.mu.Unlock()

	key, ok := mm.byID[playerID]
	if !ok {
		return QueueStatus{}, ErrNotQueued
	}
	for i, e := range mm.queues[key] {
		if e.PlayerID == playerID {
			return QueueStatus{
				Position: i + 1,
				WaitTime: now.Sub(e.JoinedAt),
				ETA:      time.Duration(i/PartySize(key.Mode)+1) * mm.cfg.TickInterval,
			}, nil
		}
	}
	return QueueStatus{}, ErrNotQueued
}

// Len returns the total number of waiting players across all queues.
func (mm *Matchmaker) Len() int {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return len(mm.byID)
}

// QueueLen returns the number of waiting players for a queue.
func (mm *Matchmaker) QueueLen(mode Mode, region Region) int {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return len(mm.queues[queueKey{Mode: mode, Region: region}])
}

// ReturnToFront reinserts entries at the head of their queue with
// their original join times, used when match creation fails.
func (mm *Matchmaker) ReturnToFront(entries []QueueEntry) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if _, dup := mm.byID[e.PlayerID]; dup {
			continue
		}
		key := queueKey{Mode: e.Mode, Region: e.Region}
		entry := e
		mm.queues[key] = append([]*QueueEntry{&entry}, mm.queues[key]...)
		mm.byID[e.PlayerID] = key
	}
}

// skillTol is the wait-widened rating tolerance for an entry.
func (mm *Matchmaker) skillTol(entry *QueueEntry, now time.Time) float64 {
	tol := mm.cfg.BaseSkillTol + now.Sub(entry.JoinedAt).Seconds()*mm.cfg.SkillWidenPerSec
	if tol > mm.cfg.MaxSkillTol {
		tol = mm.cfg.MaxSkillTol
	}
	return tol
}

// compatible applies the pairing gates: wait-widened skill tolerance,
// the hard latency gate and the region policy.
func (mm *Matchmaker) compatible(a, b *QueueEntry, now time.Time) bool {
	diff := a.Rating - b.Rating
	if diff < 0 {
		diff = -diff
	}
	if diff > mm.skillTol(a, now) {
		return false
	}

	lat := a.Latency - b.Latency
	if lat < 0 {
		lat = -lat
	}
	if lat > mm.cfg.LatencyTol {
		return false
	}

	return mm.policy.Allows(a.Region, b.Region)
}

// Tick runs one pairing pass: expire timed-out entries, then walk the
// queues in order of longest head wait, assembling parties head-first
// in FIFO order. Exported so tests can drive it with a fixed clock.
func (mm *Matchmaker) Tick(now time.Time) {
	expired, found := mm.pairLocked(now)

	// Callbacks run outside the lock: they create matches and push
	// protocol messages.
	for _, e := range expired {
		log.Printf("matchmaker: %s timed out after %s in %s/%s", e.PlayerID, now.Sub(e.JoinedAt), e.Mode, e.Region)
		if mm.onTimeout != nil {
			mm.onTimeout(e)
		}
	}
	for _, f := range found {
		log.Printf("matchmaker: %s assembled %d players (%s/%s)", f.GameID, len(f.Players), f.Mode, f.Region)
		if mm.onMatchFound != nil {
			mm.onMatchFound(f)
		}
	}
}

func (mm *Matchmaker) pairLocked(now time.Time) (expired []QueueEntry, found []MatchFound) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	// 1. Expire entries past the queue timeout.
	for _, key := range mm.sortedKeysLocked() {
		queue := mm.queues[key]
		kept := queue[:0]
		for _, e := range queue {
			if now.Sub(e.JoinedAt) >= mm.cfg.QueueTimeout {
				delete(mm.byID, e.PlayerID)
				expired = append(expired, *e)
				continue
			}
			kept = append(kept, e)
		}
		mm.queues[key] = kept
	}

	// 2. Pair, longest-waiting queue heads first.
	for _, key := range mm.sortedKeysLocked() {
		for {
			party, ok := mm.assembleLocked(key, now)
			if !ok {
				break
			}
			mm.seq++
			players := make([]QueueEntry, len(party))
			for i, e := range party {
				players[i] = *e
			}
			found = append(found, MatchFound{
				GameID:  fmt.Sprintf("match_%d_%d", now.UnixNano(), mm.seq),
				Mode:    key.Mode,
				Region:  key.Region,
				Players: players,
			})
		}
	}
	return expired, found
}

// sortedKeysLocked orders queues by their head's join time, oldest
// first. Requires mm.mu held.
func (mm *Matchmaker) sortedKeysLocked() []queueKey {
	keys := make([]queueKey, 0, len(mm.queues))
	for key, queue := range mm.queues {
		if len(queue) > 0 {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		return mm.queues[keys[i]][0].JoinedAt.Before(mm.queues[keys[j]][0].JoinedAt)
	})
	return keys
}

// assembleLocked tries to build one full party around the head of the
// given queue. Candidates come from the queue itself in FIFO order,
// then from same-mode queues in regions the policy allows. On success
// every member is removed; on failure the head is left in place.
// Requires mm.mu held.
func (mm *Matchmaker) assembleLocked(key queueKey, now time.Time) ([]*QueueEntry, bool) {
	queue := mm.queues[key]
	if len(queue) == 0 {
		return nil, false
	}

	head := queue[0]
	size := PartySize(key.Mode)
	party := []*QueueEntry{head}

	for _, e := range queue[1:] {
		if len(party) == size {
			break
		}
		if mm.compatible(head, e, now) {
			party = append(party, e)
		}
	}

	if len(party) < size {
		for otherKey, other := range mm.queues {
			if len(party) == size {
				break
			}
			if otherKey == key || otherKey.Mode != key.Mode {
				continue
			}
			if !mm.policy.Allows(key.Region, otherKey.Region) {
				continue
			}
			for _, e := range other {
				if len(party) == size {
					break
				}
				if mm.compatible(head, e, now) {
					party = append(party, e)
				}
			}
		}
	}

	if len(party) < size {
		return nil, false
	}
	for _, e := range party {
		mm.removeLocked(e.PlayerID)
	}
	return party, true
}
