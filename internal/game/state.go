package game

import (
	"math/rand"
	"sort"
	"time"
)

// MatchStatus is the match lifecycle state. Finished is terminal.
type MatchStatus string

const (
	StatusWaiting  MatchStatus = "waiting"
	StatusActive   MatchStatus = "active"
	StatusFinished MatchStatus = "finished"
)

// MatchState is the authoritative state of one match. It is owned by
// the match goroutine and never shared; every mutation goes through a
// setter that records the change as a delta.
type MatchState struct {
	ID     string
	Status MatchStatus

	Players     map[string]*Player
	Projectiles map[string]*Projectile
	PowerUps    map[string]*PowerUp
	Obstacles   []AABB

	Bounds Bounds

	Tick      uint64
	StartedAt time.Time
	LastTick  time.Time
	MatchTime time.Duration

	ScoreLimit int
	TimeLimit  time.Duration

	pending []Delta
	rng     *rand.Rand
}

// NewMatchState creates an empty match in the waiting state.
func NewMatchState(id string, bounds Bounds, scoreLimit int, timeLimit time.Duration, seed int64) *MatchState {
	return &MatchState{
		ID:          id,
		Status:      StatusWaiting,
		Players:     make(map[string]*Player),
		Projectiles: make(map[string]*Projectile),
		PowerUps:    make(map[string]*PowerUp),
		Bounds:      bounds,
		ScoreLimit:  scoreLimit,
		TimeLimit:   timeLimit,
		pending:     make([]Delta, 0, 64),
		rng:         rand.New(rand.NewSource(seed)),
	}
}

// RNG exposes the match-owned deterministic random source.
func (s *MatchState) RNG() *rand.Rand { return s.rng }

// AliveCount returns the number of living players.
func (s *MatchState) AliveCount() int {
	n := 0
	for _, p := range s.Players {
		if p.Alive {
			n++
		}
	}
	return n
}

// queue appends a raw delta record.
func (s *MatchState) queue(d Delta) {
	s.pending = append(s.pending, d)
}

// playerChanged records a player_updated delta with the given changed
// fields.
func (s *MatchState) playerChanged(id string, changes map[string]any) {
	s.queue(Delta{Kind: DeltaPlayerUpdated, EntityID: id, Changes: changes})
}

// DrainDeltas compacts and returns the tick's delta batch, leaving
// the queue empty.
func (s *MatchState) DrainDeltas() []Delta {
	if len(s.pending) == 0 {
		return nil
	}
	batch := CompactDeltas(s.pending)
	s.pending = s.pending[:0]
	return batch
}

// EmitEvent queues a game_event delta.
func (s *MatchState) EmitEvent(typ GameEventType, now time.Time, payload map[string]any) {
	s.queue(Delta{Kind: DeltaGameEvent, Event: &GameEvent{
		Type:    typ,
		Tick:    s.Tick,
		TS:      now,
		Payload: payload,
	}})
}

// AddPlayer inserts a player and records the join delta.
func (s *MatchState) AddPlayer(p *Player) {
	s.Players[p.ID] = p
	s.queue(Delta{Kind: DeltaPlayerJoined, EntityID: p.ID, Changes: map[string]any{
		"player": NewPlayerView(p),
	}})
}

// RemovePlayer deletes a player and records the leave delta.
func (s *MatchState) RemovePlayer(id string) {
	if _, ok := s.Players[id]; !ok {
		return
	}
	delete(s.Players, id)
	s.queue(Delta{Kind: DeltaPlayerLeft, EntityID: id})
}

// SetPlayerMotion updates position and velocity, recording only the
// components that changed.
func (s *MatchState) SetPlayerMotion(p *Player, pos, vel Vec2) {
	changes := make(map[string]any, 2)
	if pos != p.Pos {
		p.Pos = pos
		changes["pos"] = pos
	}
	if vel != p.Vel {
		p.Vel = vel
		changes["vel"] = vel
	}
	if len(changes) > 0 {
		s.playerChanged(p.ID, changes)
	}
}

// SetPlayerHealth clamps health into [0, max], updates aliveness and
// records the change. The alive flag tracks health > 0 by definition.
func (s *MatchState) SetPlayerHealth(p *Player, health int) {
	if health < 0 {
		health = 0
	}
	if health > p.MaxHealth {
		health = p.MaxHealth
	}
	if health == p.Health {
		return
	}
	p.Health = health
	changes := map[string]any{"health": health}

	alive := health > 0
	if alive != p.Alive {
		p.Alive = alive
		changes["alive"] = alive
	}
	s.playerChanged(p.ID, changes)
}

// SetPlayerStamina records a stamina change clamped into [0, max].
func (s *MatchState) SetPlayerStamina(p *Player, stamina int) {
	if stamina < 0 {
		stamina = 0
	}
	if stamina > p.MaxStamina {
		stamina = p.MaxStamina
	}
	if stamina == p.Stamina {
		return
	}
	p.Stamina = stamina
	s.playerChanged(p.ID, map[string]any{"stamina": stamina})
}

// SetPlayerMana records a mana change clamped into [0, max].
func (s *MatchState) SetPlayerMana(p *Player, mana int) {
	if mana < 0 {
		mana = 0
	}
	if mana > p.MaxMana {
		mana = p.MaxMana
	}
	if mana == p.Mana {
		return
	}
	p.Mana = mana
	s.playerChanged(p.ID, map[string]any{"mana": mana})
}

// SetPlayerStatus arms a timed status flag and records it.
func (s *MatchState) SetPlayerStatus(p *Player, flag StatusFlag, end time.Time) {
	p.Statuses[flag] = end
	s.playerChanged(p.ID, map[string]any{"status_" + string(flag): true})
}

// ExpirePlayerTimers clears elapsed status flags and power-up buffs,
// recording what changed.
func (s *MatchState) ExpirePlayerTimers(p *Player, now time.Time) {
	for _, flag := range p.ExpireStatuses(now) {
		s.playerChanged(p.ID, map[string]any{"status_" + string(flag): false})
	}
	if p.ExpirePowerUps(now) {
		s.playerChanged(p.ID, map[string]any{"powerups": powerUpTypes(p)})
	}
}

// ApplyPowerUpEffect attaches a buff to the player and records it.
func (s *MatchState) ApplyPowerUpEffect(p *Player, typ PowerUpType, eff PowerUpEffect) {
	p.PowerUps[typ] = eff
	if typ == PowerUpShield {
		p.DamageReduction = eff.Modifier
		if p.DamageReduction > MaxDamageReduction {
			p.DamageReduction = MaxDamageReduction
		}
	}
	s.playerChanged(p.ID, map[string]any{"powerups": powerUpTypes(p)})
}

func powerUpTypes(p *Player) []string {
	types := make([]string, 0, len(p.PowerUps))
	for typ := range p.PowerUps {
		types = append(types, string(typ))
	}
	sort.Strings(types)
	return types
}

// AddProjectile inserts a projectile and records the create delta.
func (s *MatchState) AddProjectile(pr *Projectile) {
	s.Projectiles[pr.ID] = pr
	s.queue(Delta{Kind: DeltaProjectileCreated, EntityID: pr.ID, Changes: map[string]any{
		"projectile": NewProjectileView(pr),
	}})
}

// ProjectileMoved records the per-tick motion of a live projectile.
func (s *MatchState) ProjectileMoved(pr *Projectile) {
	s.queue(Delta{Kind: DeltaProjectileUpdated, EntityID: pr.ID, Changes: map[string]any{
		"pos":      pr.Pos,
		"traveled": pr.Traveled,
	}})
}

// DestroyProjectile removes a projectile and records the destroy
// delta. Unknown ids are a no-op.
func (s *MatchState) DestroyProjectile(id string) {
	if _, ok := s.Projectiles[id]; !ok {
		return
	}
	delete(s.Projectiles, id)
	s.queue(Delta{Kind: DeltaProjectileDestroyed, EntityID: id})
}

// AddPowerUp inserts a pickup and records its state.
func (s *MatchState) AddPowerUp(pu *PowerUp) {
	s.PowerUps[pu.ID] = pu
	s.PowerUpChanged(pu)
}

// PowerUpChanged records the pickup's current activation state.
func (s *MatchState) PowerUpChanged(pu *PowerUp) {
	s.queue(Delta{Kind: DeltaPowerUpState, EntityID: pu.ID, Changes: map[string]any{
		"type":   string(pu.Type),
		"pos":    pu.Pos,
		"active": pu.Active,
	}})
}

// Scores returns kills by owner id, the match's score measure.
func (s *MatchState) Scores() map[string]int {
	scores := make(map[string]int, len(s.Players))
	for _, p := range s.Players {
		scores[p.OwnerID] = p.Kills
	}
	return scores
}

// PlayerView is an immutable serialized player for keyframes and
// replay snapshots.
type PlayerView struct {
	ID        string  `json:"id"`
	OwnerID   string  `json:"ownerId"`
	Pos       Vec2    `json:"pos"`
	Vel       Vec2    `json:"vel"`
	Health    int     `json:"health"`
	MaxHealth int     `json:"maxHealth"`
	Mana      int     `json:"mana"`
	Stamina   int     `json:"stamina"`
	Alive     bool    `json:"alive"`
	Weapon    string  `json:"weapon"`
	Kills     int     `json:"kills"`
	Deaths    int     `json:"deaths"`
	Rating    float64 `json:"rating"`

	Blocking     bool     `json:"blocking,omitempty"`
	Invulnerable bool     `json:"invulnerable,omitempty"`
	Casting      bool     `json:"casting,omitempty"`
	PowerUps     []string `json:"powerups,omitempty"`
}

// NewPlayerView copies the renderable player fields.
func NewPlayerView(p *Player) PlayerView {
	now := time.Now()
	return PlayerView{
		ID:           p.ID,
		OwnerID:      p.OwnerID,
		Pos:          p.Pos,
		Vel:          p.Vel,
		Health:       p.Health,
		MaxHealth:    p.MaxHealth,
		Mana:         p.Mana,
		Stamina:      p.Stamina,
		Alive:        p.Alive,
		Weapon:       p.Weapon,
		Kills:        p.Kills,
		Deaths:       p.Deaths,
		Rating:       p.Rating,
		Blocking:     p.HasStatus(StatusBlocking, now),
		Invulnerable: p.HasStatus(StatusInvulnerable, now),
		Casting:      p.HasStatus(StatusCasting, now),
		PowerUps:     powerUpTypes(p),
	}
}

// ProjectileView is an immutable serialized projectile.
type ProjectileView struct {
	ID       string  `json:"id"`
	OwnerID  string  `json:"ownerId"`
	Pos      Vec2    `json:"pos"`
	Vel      Vec2    `json:"vel"`
	Size     float64 `json:"size"`
	Weapon   string  `json:"weapon"`
	Traveled float64 `json:"traveled"`
}

// NewProjectileView copies the renderable projectile fields.
func NewProjectileView(pr *Projectile) ProjectileView {
	return ProjectileView{
		ID:       pr.ID,
		OwnerID:  pr.OwnerID,
		Pos:      pr.Pos,
		Vel:      pr.Vel,
		Size:     pr.Size,
		Weapon:   pr.Weapon,
		Traveled: pr.Traveled,
	}
}

// PowerUpView is an immutable serialized pickup.
type PowerUpView struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Pos    Vec2   `json:"pos"`
	Active bool   `json:"active"`
}

// Snapshot is a full serialized match state, used for keyframes and
// replay recording.
type Snapshot struct {
	MatchID     string           `json:"matchId"`
	Tick        uint64           `json:"tick"`
	Status      MatchStatus      `json:"status"`
	Players     []PlayerView     `json:"players"`
	Projectiles []ProjectileView `json:"projectiles"`
	PowerUps    []PowerUpView    `json:"powerups"`
	Score       map[string]int   `json:"score"`
}

// Snapshot serializes the full state. Players are ordered by kills
// descending with id as the deterministic tie-break so clients see a
// stable leaderboard ordering.
func (s *MatchState) Snapshot() *Snapshot {
	snap := &Snapshot{
		MatchID:     s.ID,
		Tick:        s.Tick,
		Status:      s.Status,
		Players:     make([]PlayerView, 0, len(s.Players)),
		Projectiles: make([]ProjectileView, 0, len(s.Projectiles)),
		PowerUps:    make([]PowerUpView, 0, len(s.PowerUps)),
		Score:       s.Scores(),
	}

	for _, p := range s.Players {
		snap.Players = append(snap.Players, NewPlayerView(p))
	}
	sort.SliceStable(snap.Players, func(i, j int) bool {
		if snap.Players[i].Kills != snap.Players[j].Kills {
			return snap.Players[i].Kills > snap.Players[j].Kills
		}
		return snap.Players[i].ID < snap.Players[j].ID
	})

	for _, pr := range s.Projectiles {
		snap.Projectiles = append(snap.Projectiles, NewProjectileView(pr))
	}
	sort.Slice(snap.Projectiles, func(i, j int) bool {
		return snap.Projectiles[i].ID < snap.Projectiles[j].ID
	})

	for _, pu := range s.PowerUps {
		snap.PowerUps = append(snap.PowerUps, PowerUpView{
			ID: pu.ID, Type: string(pu.Type), Pos: pu.Pos, Active: pu.Active,
		})
	}
	sort.Slice(snap.PowerUps, func(i, j int) bool {
		return snap.PowerUps[i].ID < snap.PowerUps[j].ID
	})

	return snap
}
