package game

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/psenger/massive-multiplayer-arena/internal/game/spatial"
)

// MatchConfig parameterizes one match instance.
type MatchConfig struct {
	TickHz            int
	MinPlayers        int
	MaxPlayers        int
	MaxSpectators     int
	ScoreLimit        int
	TimeLimit         time.Duration
	Bounds            Bounds
	Friction          float64
	MaxVelocity       float64
	RegenDelay        time.Duration
	FullStateInterval time.Duration
	EmptyReapDelay    time.Duration
	GridCellSize      float64
	Replay            ReplayOptions
	Seed              int64
}

// withDefaults fills zero values with production defaults.
func (c MatchConfig) withDefaults() MatchConfig {
	if c.TickHz <= 0 {
		c.TickHz = 60
	}
	if c.MinPlayers <= 0 {
		c.MinPlayers = 2
	}
	if c.MaxPlayers <= 0 {
		c.MaxPlayers = 8
	}
	if c.MaxSpectators <= 0 {
		c.MaxSpectators = 100
	}
	if c.ScoreLimit <= 0 {
		c.ScoreLimit = 10
	}
	if c.TimeLimit <= 0 {
		c.TimeLimit = 5 * time.Minute
	}
	if c.Bounds.W <= 0 || c.Bounds.H <= 0 {
		c.Bounds = Bounds{W: 1280, H: 720}
	}
	if c.Friction <= 0 {
		c.Friction = 0.92
	}
	if c.MaxVelocity <= 0 {
		c.MaxVelocity = 400
	}
	if c.RegenDelay <= 0 {
		c.RegenDelay = 3 * time.Second
	}
	if c.FullStateInterval <= 0 {
		c.FullStateInterval = 5 * time.Second
	}
	if c.EmptyReapDelay <= 0 {
		c.EmptyReapDelay = 30 * time.Second
	}
	if c.GridCellSize <= 0 {
		c.GridCellSize = 100
	}
	if c.Replay.MaxEvents <= 0 {
		c.Replay.MaxEvents = 10000
	}
	if c.Replay.Retention <= 0 {
		c.Replay.Retention = 30 * time.Minute
	}
	if c.Replay.SampleInterval <= 0 {
		c.Replay.SampleInterval = 100 * time.Millisecond
	}
	if c.Replay.SweepInterval <= 0 {
		c.Replay.SweepInterval = time.Minute
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
	return c
}

// MatchHooks are optional callbacks crossing the telemetry boundary.
type MatchHooks struct {
	OnTick func(d time.Duration) // tick pipeline duration
	OnStop func(m *Match)        // loop exited; registry reaping
}

// MatchStats is the observability surface of one match.
type MatchStats struct {
	ID            string      `json:"id"`
	Status        MatchStatus `json:"status"`
	Tick          uint64      `json:"tick"`
	Players       int         `json:"players"`
	Alive         int         `json:"alive"`
	Spectators    int         `json:"spectators"`
	DroppedInputs uint64      `json:"droppedInputs"`
	MatchTimeMS   int64       `json:"matchTimeMs"`
	Replay        ReplayStats `json:"replay"`
}

// Match supervises one arena instance. All match state is owned by
// the run goroutine: inputs arrive on a bounded channel, every other
// operation is a closure executed between ticks, so the tick pipeline
// needs no locks.
type Match struct {
	ID string

	cfg   MatchConfig
	hooks MatchHooks

	state *MatchState
	grid  *spatial.Grid

	broadcaster *Broadcaster
	room        *SpectatorRoom

	inputs   chan Input
	commands chan func()
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	// owner/user id -> player entity id, maintained by the loop
	owners map[string]string

	droppedInputs atomic.Uint64
	reportedDrops uint64 // loop-local

	lastKeyframe time.Time
	lastSweep    time.Time
	overruns     int
}

// NewMatch creates a match in the waiting state. Start launches its
// loop.
func NewMatch(id string, cfg MatchConfig, hooks MatchHooks) *Match {
	cfg = cfg.withDefaults()

	m := &Match{
		ID:          id,
		cfg:         cfg,
		hooks:       hooks,
		state:       NewMatchState(id, cfg.Bounds, cfg.ScoreLimit, cfg.TimeLimit, cfg.Seed),
		grid:        spatial.NewGrid(cfg.Bounds.W, cfg.Bounds.H, cfg.GridCellSize),
		broadcaster: NewBroadcaster(id),
		room:        NewSpectatorRoom(id, cfg.MaxSpectators, cfg.Replay),
		inputs:      make(chan Input, 2*cfg.TickHz),
		commands:    make(chan func(), 32),
		stopChan:    make(chan struct{}),
		done:        make(chan struct{}),
		owners:      make(map[string]string),
	}

	m.spawnPowerUps(time.Now())
	return m
}

// spawnPowerUps seeds one pickup of each type at random positions.
func (m *Match) spawnPowerUps(now time.Time) {
	for _, typ := range []PowerUpType{
		PowerUpSpeedBoost, PowerUpDamageBoost, PowerUpHealthPack, PowerUpShield, PowerUpRapidFire,
	} {
		pos := m.cfg.Bounds.RandomSpawn(m.state.RNG(), PowerUpRadius)
		pu := NewPowerUp(typ, pos, now)
		m.state.AddPowerUp(pu)
		m.grid.Insert(pu.ID, pos.X, pos.Y, PowerUpRadius)
	}
}

// Start launches the match loop.
func (m *Match) Start() {
	go m.run()
	log.Printf("match %s started at %d TPS", m.ID, m.cfg.TickHz)
}

// Stop terminates the match loop. Idempotent.
func (m *Match) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}

// Done is closed once the loop has exited and cleanup finished.
func (m *Match) Done() <-chan struct{} { return m.done }

// Room returns the spectator room, whose own lock makes it safe to
// use from connection goroutines.
func (m *Match) Room() *SpectatorRoom { return m.room }

// call runs fn on the match goroutine between ticks and waits for it.
func (m *Match) call(fn func()) error {
	ran := make(chan struct{})
	wrapped := func() {
		fn()
		close(ran)
	}
	select {
	case m.commands <- wrapped:
	case <-m.stopChan:
		return ErrMatchFinished
	}
	select {
	case <-ran:
		return nil
	case <-m.stopChan:
		return ErrMatchFinished
	}
}

// Join adds a player for ownerID and subscribes sub to the state
// stream. The new subscriber immediately receives a keyframe so it
// converges without waiting for the next interval.
func (m *Match) Join(ownerID string, rating float64, sub Subscriber) (string, error) {
	var playerID string
	var joinErr error

	err := m.call(func() {
		s := m.state
		if s.Status == StatusFinished {
			joinErr = ErrMatchFinished
			return
		}
		if _, dup := m.owners[ownerID]; dup {
			joinErr = ErrAlreadyJoined
			return
		}
		if len(s.Players) >= m.cfg.MaxPlayers {
			joinErr = ErrMatchFull
			return
		}

		now := time.Now()
		p := NewPlayer(ownerID, now)
		p.Rating = rating
		p.Pos = s.Bounds.RandomSpawn(s.RNG(), PlayerRadius)
		s.AddPlayer(p)
		s.EmitEvent(EventPlayerJoined, now, map[string]any{"playerId": p.ID, "ownerId": ownerID})
		m.grid.Insert(p.ID, p.Pos.X, p.Pos.Y, PlayerRadius)
		m.owners[ownerID] = p.ID
		playerID = p.ID

		if sub != nil {
			m.broadcaster.Add(sub)
			if payload, err := KeyframeMessage(m.ID, s.Tick, now, s.Snapshot()); err == nil {
				sub.Send(payload)
			}
		}

		if s.Status == StatusWaiting && len(s.Players) >= m.cfg.MinPlayers {
			s.Status = StatusActive
			s.StartedAt = now
			s.EmitEvent(EventMatchStarted, now, nil)
			log.Printf("match %s active with %d players", m.ID, len(s.Players))
		}
	})
	if err != nil {
		return "", err
	}
	return playerID, joinErr
}

// Leave removes ownerID's player. Unknown owners are a no-op. An
// empty match schedules its reap.
func (m *Match) Leave(ownerID string) error {
	return m.call(func() {
		pid, ok := m.owners[ownerID]
		if !ok {
			return
		}
		now := time.Now()
		delete(m.owners, ownerID)
		m.grid.Remove(pid)
		m.state.RemovePlayer(pid)
		m.state.EmitEvent(EventPlayerLeft, now, map[string]any{"playerId": pid, "ownerId": ownerID})
		m.broadcaster.Remove(ownerID)

		if len(m.state.Players) == 0 {
			m.armReap()
		}
	})
}

// Unsubscribe detaches a player-stream subscriber without removing
// the player (connection loss with possible rejoin).
func (m *Match) Unsubscribe(subID string) {
	_ = m.call(func() { m.broadcaster.Remove(subID) })
}

// armReap schedules the empty-match reap. Runs on the loop goroutine.
func (m *Match) armReap() {
	delay := m.cfg.EmptyReapDelay
	time.AfterFunc(delay, func() {
		_ = m.call(func() {
			if len(m.state.Players) == 0 {
				log.Printf("match %s reaped after %s empty", m.ID, delay)
				m.Stop()
			}
		})
	})
}

// SubmitInput enqueues a player input. The queue is bounded; on
// overflow the oldest input is dropped and accounted, never the tick.
func (m *Match) SubmitInput(in Input) error {
	select {
	case <-m.stopChan:
		return ErrMatchFinished
	default:
	}

	select {
	case m.inputs <- in:
		return nil
	default:
	}

	// Queue full: drop the oldest and retry once.
	select {
	case <-m.inputs:
		m.droppedInputs.Add(1)
	default:
	}
	select {
	case m.inputs <- in:
	default:
		m.droppedInputs.Add(1)
	}
	return nil
}

// Status returns the lifecycle state.
func (m *Match) Status() MatchStatus {
	status := StatusFinished
	_ = m.call(func() { status = m.state.Status })
	return status
}

// Stats returns the observability snapshot.
func (m *Match) Stats() MatchStats {
	now := time.Now()
	stats := MatchStats{ID: m.ID, Status: StatusFinished}
	_ = m.call(func() {
		stats = MatchStats{
			ID:            m.ID,
			Status:        m.state.Status,
			Tick:          m.state.Tick,
			Players:       len(m.state.Players),
			Alive:         m.state.AliveCount(),
			Spectators:    m.room.Count(),
			DroppedInputs: m.droppedInputs.Load(),
			MatchTimeMS:   m.state.MatchTime.Milliseconds(),
			Replay:        m.room.Ring().Stats(now),
		}
	})
	return stats
}

// Snapshot returns a full serialized state, for join responses and
// admin surfaces.
func (m *Match) Snapshot() *Snapshot {
	var snap *Snapshot
	if err := m.call(func() { snap = m.state.Snapshot() }); err != nil {
		return nil
	}
	return snap
}

// run is the match loop. It owns all match state until it returns.
func (m *Match) run() {
	defer close(m.done)
	defer m.cleanup()

	tickDur := time.Second / time.Duration(m.cfg.TickHz)
	ticker := time.NewTicker(tickDur)
	defer ticker.Stop()

	m.lastKeyframe = time.Now()
	m.lastSweep = time.Now()

	for {
		select {
		case <-m.stopChan:
			return
		case fn := <-m.commands:
			fn()
		case <-ticker.C:
			start := time.Now()
			m.tick(start, tickDur)

			elapsed := time.Since(start)
			if m.hooks.OnTick != nil {
				m.hooks.OnTick(elapsed)
			}
			if elapsed > tickDur {
				// Next tick fires immediately off the ticker backlog;
				// ticks never stack beyond one.
				m.overruns++
				if m.overruns == 5 {
					log.Printf("match %s: %d consecutive tick overruns (last %s > %s budget)",
						m.ID, m.overruns, elapsed, tickDur)
				}
			} else {
				m.overruns = 0
			}

			if m.state.Status == StatusFinished {
				m.Stop()
				return
			}
		}
	}
}

// cleanup fans out match_finished and notifies the registry. The replay
// ring stays readable until the registry handle is dropped.
func (m *Match) cleanup() {
	if payload, err := EventMessage(m.ID, EventMatchFinished, map[string]any{
		"matchId": m.ID,
		"score":   m.state.Scores(),
	}); err == nil {
		m.broadcaster.Fanout(payload)
		m.room.OnBroadcast(payload)
	}
	if m.hooks.OnStop != nil {
		m.hooks.OnStop(m)
	}
	log.Printf("match %s stopped after %d ticks", m.ID, m.state.Tick)
}

// tick runs the authoritative pipeline once.
func (m *Match) tick(now time.Time, budget time.Duration) {
	s := m.state
	dt := budget.Seconds()

	// 1-2. Drain the input queue and route through the combat
	// resolver in FIFO order. Unknown owners are discarded;
	// precondition failures drop the input without reply.
drain:
	for i := 0; i < cap(m.inputs); i++ {
		select {
		case in := <-m.inputs:
			pid, ok := m.owners[in.PlayerID]
			if !ok {
				continue
			}
			in.PlayerID = pid
			_ = s.ApplyInput(in, now)
		default:
			break drain
		}
	}

	// 3-4. Physics with boundary enforcement; a single non-finite
	// recovery is tolerated per tick, more is an invariant breach.
	nonFinite := 0
	for _, p := range s.Players {
		if !p.Alive {
			continue
		}
		if err := s.IntegratePlayer(p, dt, m.cfg.Friction, m.cfg.MaxVelocity, now); err != nil {
			nonFinite++
			log.Printf("match %s: recovered %v", m.ID, err)
		}
		m.grid.Update(p.ID, p.Pos.X, p.Pos.Y, PlayerRadius)
	}
	if nonFinite > 1 {
		m.fail(now, "repeated non-finite state")
		m.commit(now)
		return
	}

	// 5. Projectiles: integrate, expire, and resolve first hits.
	m.stepProjectiles(dt, now)

	// 6-7. Collisions over grid candidates; player separation and
	// obstacle pushes.
	for _, c := range s.FindPlayerCollisions(m.grid) {
		s.SeparatePlayers(c)
	}
	for _, p := range s.Players {
		if !p.Alive {
			continue
		}
		s.ResolveObstacles(p)
		m.grid.Update(p.ID, p.Pos.X, p.Pos.Y, PlayerRadius)
	}

	s.CollectPowerUps(m.grid, now)
	s.RespawnPowerUps(now)

	// 8. Status timers and gated resource regen.
	for _, p := range s.Players {
		s.ExpirePlayerTimers(p, now)
	}
	s.RegenerateResources(dt, m.cfg.RegenDelay, now)

	if d := m.droppedInputs.Load(); d > m.reportedDrops {
		s.EmitEvent(EventDroppedInput, now, map[string]any{"count": d - m.reportedDrops})
		m.reportedDrops = d
	}

	// 9. Win and time conditions.
	s.MatchTime += budget
	if s.Status == StatusActive {
		switch {
		case s.AliveCount() <= 1:
			m.finish(now, "last_player_standing")
		case m.scoreLimitReached():
			m.finish(now, "score_limit")
		case s.MatchTime >= s.TimeLimit:
			m.finish(now, "time_limit")
		}
	}

	// 10. Commit: hand the compacted batch to the broadcaster and
	// mirror it to the spectator fabric.
	m.commit(now)
}

func (m *Match) scoreLimitReached() bool {
	for _, p := range m.state.Players {
		if p.Kills >= m.state.ScoreLimit {
			return true
		}
	}
	return false
}

// stepProjectiles advances every projectile and applies first-hit
// damage via the spatial grid, skipping owners.
func (m *Match) stepProjectiles(dt float64, now time.Time) {
	s := m.state

	for id, pr := range s.Projectiles {
		if !pr.Step(dt, s.Bounds) {
			m.grid.Remove(id)
			s.DestroyProjectile(id)
			continue
		}

		if m.projectileHitsObstacle(pr) {
			m.grid.Remove(id)
			s.DestroyProjectile(id)
			continue
		}

		m.grid.Update(id, pr.Pos.X, pr.Pos.Y, pr.Size)
		s.ProjectileMoved(pr)

		reach := pr.Size + PlayerRadius
		hit := false
		for _, cand := range m.grid.QueryRegion(pr.Pos.X-reach, pr.Pos.Y-reach, pr.Pos.X+reach, pr.Pos.Y+reach) {
			target, ok := s.Players[cand]
			if !ok || !pr.Hits(target, now) {
				continue
			}

			damage := pr.Damage
			if attacker, alive := s.Players[pr.OwnerID]; alive {
				damage = ComputeDamage(attacker, target, pr.Damage, pr.DamageType,
					pr.EffectiveRange, pr.Traveled, s.rng.Float64() < HeadshotChance,
					s.rng.Float64(), now)
				damage = applyProficiency(damage, attacker.ProficiencyLevel(pr.Weapon))
				s.DealDamage(attacker, target, damage, now)
			} else {
				s.DealDamage(nil, target, damage, now)
			}
			hit = true
			break
		}
		if hit {
			m.grid.Remove(id)
			s.DestroyProjectile(id)
		}
	}
}

func (m *Match) projectileHitsObstacle(pr *Projectile) bool {
	box := AABB{
		MinX: pr.Pos.X - pr.Size, MinY: pr.Pos.Y - pr.Size,
		MaxX: pr.Pos.X + pr.Size, MaxY: pr.Pos.Y + pr.Size,
	}
	for _, obstacle := range m.state.Obstacles {
		if obstacle.Overlaps(box) {
			return true
		}
	}
	return false
}

// finish moves the match to its terminal state.
func (m *Match) finish(now time.Time, reason string) {
	s := m.state
	s.Status = StatusFinished
	s.EmitEvent(EventMatchFinished, now, map[string]any{
		"reason": reason,
		"score":  s.Scores(),
	})
	log.Printf("match %s finished: %s", m.ID, reason)
}

// fail terminates the match on a fatal invariant breach. Other
// matches are unaffected.
func (m *Match) fail(now time.Time, reason string) {
	s := m.state
	s.Status = StatusFinished
	s.EmitEvent(EventMatchErrored, now, map[string]any{"reason": reason})
	log.Printf("match %s errored: %s", m.ID, reason)
}

// commit drains the tick's delta batch, fans it out, interleaves
// keyframes and feeds the replay ring.
func (m *Match) commit(now time.Time) {
	s := m.state
	s.Tick++
	s.LastTick = now

	keyframeDue := now.Sub(m.lastKeyframe) >= m.cfg.FullStateInterval
	ringDue := m.room.Ring().Due(now)

	var snap *Snapshot
	if keyframeDue || ringDue {
		snap = s.Snapshot()
	}

	if batch := s.DrainDeltas(); len(batch) > 0 {
		payload, err := DeltaMessage(m.ID, s.Tick, now, batch)
		if err != nil {
			log.Printf("match %s: delta encode failed: %v", m.ID, err)
		} else {
			m.broadcaster.Fanout(payload)
			m.room.OnBroadcast(payload)
		}
	}

	if keyframeDue {
		payload, err := KeyframeMessage(m.ID, s.Tick, now, snap)
		if err != nil {
			log.Printf("match %s: keyframe encode failed: %v", m.ID, err)
		} else {
			m.broadcaster.Fanout(payload)
			m.room.OnBroadcast(payload)
		}
		m.lastKeyframe = now
	}

	if snap != nil {
		m.room.Record(snap, now)
	}
	if now.Sub(m.lastSweep) >= m.cfg.Replay.SweepInterval {
		m.room.Ring().Sweep(now)
		m.lastSweep = now
	}
}

// DriveTick advances the pipeline once with an explicit clock. Test
// hook: must not be used while the loop goroutine runs.
func (m *Match) DriveTick(now time.Time) {
	m.tick(now, time.Second/time.Duration(m.cfg.TickHz))
}

// State exposes the owned state for tests driving ticks manually.
func (m *Match) State() *MatchState { return m.state }
