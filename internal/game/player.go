package game

import (
	"fmt"
	"time"
)

// PlayerRadius is the circular hitbox radius for every player.
const PlayerRadius = 28.0

// StatusFlag is a timed condition on a player. A flag is set while
// now < its end time and cleared on the next tick after.
type StatusFlag string

const (
	StatusBlocking     StatusFlag = "blocking"
	StatusInvulnerable StatusFlag = "invulnerable"
	StatusCasting      StatusFlag = "casting"
)

// PlayerStats are the combat-relevant attributes.
type PlayerStats struct {
	Attack      int     `json:"attack"`
	Armor       int     `json:"armor"`
	MagicResist int     `json:"magicResist"`
	CritChance  float64 `json:"critChance"` // 0..1
	Accuracy    float64 `json:"accuracy"`   // 0..1, feeds crit roll
}

// PowerUpEffect is an active buff on a player.
type PowerUpEffect struct {
	Modifier float64   `json:"modifier"`
	EndTime  time.Time `json:"endTime"`
}

// Player is a participant entity in one match. All mutation goes
// through the owning MatchState so field changes are recorded as
// deltas.
type Player struct {
	ID      string `json:"id"`
	OwnerID string `json:"ownerId"` // user/session this entity belongs to

	Pos Vec2 `json:"pos"`
	Vel Vec2 `json:"vel"`

	Health     int `json:"health"`
	MaxHealth  int `json:"maxHealth"`
	Mana       int `json:"mana"`
	MaxMana    int `json:"maxMana"`
	Stamina    int `json:"stamina"`
	MaxStamina int `json:"maxStamina"`

	Alive  bool        `json:"alive"`
	Weapon string      `json:"weapon"`
	Stats  PlayerStats `json:"stats"`

	// Timed status flags, keyed by flag with their end time.
	Statuses map[StatusFlag]time.Time `json:"-"`

	// Cooldown timestamps, set to the tick time when the action resolves.
	LastAttack time.Time `json:"-"`
	LastBlock  time.Time `json:"-"`
	LastDodge  time.Time `json:"-"`
	LastDamage time.Time `json:"-"`

	Ability  string                        `json:"ability"`
	PowerUps map[PowerUpType]PowerUpEffect `json:"-"`

	// Weapon proficiency levels, +5% damage per level.
	Proficiency map[string]int `json:"-"`

	DamageReduction float64 `json:"-"` // 0..0.8, from shield power-up

	Rating   float64   `json:"rating"` // skill rating snapshot at join
	Kills    int       `json:"kills"`
	Deaths   int       `json:"deaths"`
	JoinedAt time.Time `json:"-"`

	// fractional regen accumulators
	staminaCarry float64
	manaCarry    float64
}

// NewPlayer creates a player owned by ownerID with default loadout.
func NewPlayer(ownerID string, now time.Time) *Player {
	return &Player{
		ID:          fmt.Sprintf("player_%d_%s", now.UnixNano(), ownerID),
		OwnerID:     ownerID,
		Health:      100,
		MaxHealth:   100,
		Mana:        100,
		MaxMana:     100,
		Stamina:     100,
		MaxStamina:  100,
		Alive:       true,
		Weapon:      "fists",
		Stats:       PlayerStats{Attack: 10, CritChance: 0.05, Accuracy: 0.5},
		Statuses:    make(map[StatusFlag]time.Time),
		PowerUps:    make(map[PowerUpType]PowerUpEffect),
		Proficiency: make(map[string]int),
		Rating:      1200,
		JoinedAt:    now,
	}
}

// HasStatus reports whether flag is active at now.
func (p *Player) HasStatus(flag StatusFlag, now time.Time) bool {
	end, ok := p.Statuses[flag]
	return ok && now.Before(end)
}

// ExpireStatuses clears flags whose end time has passed and returns
// the flags that were cleared.
func (p *Player) ExpireStatuses(now time.Time) []StatusFlag {
	var cleared []StatusFlag
	for flag, end := range p.Statuses {
		if !now.Before(end) {
			delete(p.Statuses, flag)
			cleared = append(cleared, flag)
		}
	}
	return cleared
}

// ExpirePowerUps drops buffs whose end time has passed and returns
// whether anything changed.
func (p *Player) ExpirePowerUps(now time.Time) bool {
	changed := false
	for typ, eff := range p.PowerUps {
		if !now.Before(eff.EndTime) {
			delete(p.PowerUps, typ)
			if typ == PowerUpShield {
				p.DamageReduction = 0
			}
			changed = true
		}
	}
	return changed
}

// DamageBoost sums the additive damage_boost modifiers active at now.
func (p *Player) DamageBoost(now time.Time) float64 {
	boost := 0.0
	if eff, ok := p.PowerUps[PowerUpDamageBoost]; ok && now.Before(eff.EndTime) {
		boost += eff.Modifier
	}
	return boost
}

// SpeedMultiplier returns the movement multiplier from an active
// speed boost, 1.0 when none.
func (p *Player) SpeedMultiplier(now time.Time) float64 {
	if eff, ok := p.PowerUps[PowerUpSpeedBoost]; ok && now.Before(eff.EndTime) {
		return 1 + eff.Modifier
	}
	return 1
}

// CooldownMultiplier returns the attack cooldown scale from an active
// rapid_fire buff, 1.0 when none.
func (p *Player) CooldownMultiplier(now time.Time) float64 {
	if eff, ok := p.PowerUps[PowerUpRapidFire]; ok && now.Before(eff.EndTime) {
		m := 1 - eff.Modifier
		if m < 0.2 {
			m = 0.2
		}
		return m
	}
	return 1
}

// ProficiencyLevel returns the level for the given weapon.
func (p *Player) ProficiencyLevel(weapon string) int {
	return p.Proficiency[weapon]
}
