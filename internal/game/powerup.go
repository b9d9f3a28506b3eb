package game

import (
	"fmt"
	"time"
)

// PowerUpType enumerates the pickups that can spawn on the field.
type PowerUpType string

const (
	PowerUpSpeedBoost  PowerUpType = "speed_boost"
	PowerUpDamageBoost PowerUpType = "damage_boost"
	PowerUpHealthPack  PowerUpType = "health_pack"
	PowerUpShield      PowerUpType = "shield"
	PowerUpRapidFire   PowerUpType = "rapid_fire"
)

// PowerUpRadius is the pickup collision radius.
const PowerUpRadius = 16.0

// PowerUp is a field pickup. While Active it can be collected; after
// collection it respawns in place once RespawnDelay has elapsed.
type PowerUp struct {
	ID           string        `json:"id"`
	Type         PowerUpType   `json:"type"`
	Pos          Vec2          `json:"pos"`
	Active       bool          `json:"active"`
	SpawnTime    time.Time     `json:"-"` // last deactivation time while inactive
	Duration     time.Duration `json:"-"` // buff duration on the collector
	Modifier     float64       `json:"modifier"`
	RespawnDelay time.Duration `json:"-"`
}

// powerUpDefaults maps each type to its effect magnitude and timing.
var powerUpDefaults = map[PowerUpType]struct {
	Modifier     float64
	Duration     time.Duration
	RespawnDelay time.Duration
}{
	PowerUpSpeedBoost:  {Modifier: 0.5, Duration: 8 * time.Second, RespawnDelay: 15 * time.Second},
	PowerUpDamageBoost: {Modifier: 0.5, Duration: 10 * time.Second, RespawnDelay: 20 * time.Second},
	PowerUpHealthPack:  {Modifier: 50, Duration: 0, RespawnDelay: 12 * time.Second},
	PowerUpShield:      {Modifier: 0.3, Duration: 8 * time.Second, RespawnDelay: 20 * time.Second},
	PowerUpRapidFire:   {Modifier: 0.5, Duration: 6 * time.Second, RespawnDelay: 18 * time.Second},
}

// NewPowerUp creates an active pickup of the given type at pos.
func NewPowerUp(typ PowerUpType, pos Vec2, now time.Time) *PowerUp {
	def := powerUpDefaults[typ]
	return &PowerUp{
		ID:           fmt.Sprintf("powerup_%d_%s", now.UnixNano(), typ),
		Type:         typ,
		Pos:          pos,
		Active:       true,
		SpawnTime:    now,
		Duration:     def.Duration,
		Modifier:     def.Modifier,
		RespawnDelay: def.RespawnDelay,
	}
}

// Collect deactivates the pickup and returns the buff to apply.
// Health packs return a zero-duration effect; the caller heals
// immediately instead of tracking a buff.
func (pu *PowerUp) Collect(now time.Time) PowerUpEffect {
	pu.Active = false
	pu.SpawnTime = now
	return PowerUpEffect{Modifier: pu.Modifier, EndTime: now.Add(pu.Duration)}
}

// ShouldRespawn reports whether an inactive pickup is due back.
func (pu *PowerUp) ShouldRespawn(now time.Time) bool {
	return !pu.Active && now.Sub(pu.SpawnTime) >= pu.RespawnDelay
}
