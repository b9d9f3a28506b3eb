package game

import (
	"fmt"
	"time"
)

// Projectile is a moving attack entity (arrows, bolts, fireballs).
// It travels over multiple ticks and is destroyed on its first hit,
// when it exceeds its range, or when it leaves the world.
//
// Damage holds the base weapon/ability damage; the attacker's stats
// and falloff are resolved at hit time.
type Projectile struct {
	ID      string `json:"id"`
	OwnerID string `json:"ownerId"`

	Pos  Vec2    `json:"pos"`
	Vel  Vec2    `json:"vel"` // units per second
	Size float64 `json:"size"`

	Damage         int        `json:"damage"`
	DamageType     DamageType `json:"damageType"`
	EffectiveRange float64    `json:"effectiveRange"` // falloff start
	Range          float64    `json:"range"`
	Traveled       float64    `json:"traveled"`

	Weapon    string    `json:"weapon"`
	CreatedAt time.Time `json:"-"`
}

// NewProjectile spawns a projectile from owner toward target. The
// spawn point sits on the owner's edge so the shot cannot immediately
// overlap the shooter.
func NewProjectile(owner *Player, target Vec2, weapon string, speed, size float64,
	damage int, dtype DamageType, effectiveRange, maxRange float64, now time.Time) *Projectile {

	dir := target.Sub(owner.Pos).Normalized()
	if dir == (Vec2{}) {
		dir = Vec2{X: 1}
	}
	start := owner.Pos.Add(dir.Scale(PlayerRadius + size))

	return &Projectile{
		ID:             fmt.Sprintf("proj_%d_%s", now.UnixNano(), owner.ID),
		OwnerID:        owner.ID,
		Pos:            start,
		Vel:            dir.Scale(speed),
		Size:           size,
		Damage:         damage,
		DamageType:     dtype,
		EffectiveRange: effectiveRange,
		Range:          maxRange,
		Weapon:         weapon,
		CreatedAt:      now,
	}
}

// Step integrates the projectile over dt seconds and accumulates the
// distance traveled. Returns false when the projectile must be
// destroyed (range exceeded or outside the world).
func (pr *Projectile) Step(dt float64, bounds Bounds) bool {
	move := pr.Vel.Scale(dt)
	pr.Pos = pr.Pos.Add(move)
	pr.Traveled += move.Len()

	if pr.Traveled >= pr.Range {
		return false
	}
	if !bounds.Contains(pr.Pos, 0) {
		return false
	}
	return true
}

// Hits reports whether the projectile overlaps the target player.
// A projectile never hits its own owner.
func (pr *Projectile) Hits(target *Player, now time.Time) bool {
	if !target.Alive || target.ID == pr.OwnerID {
		return false
	}
	if target.HasStatus(StatusInvulnerable, now) {
		return false
	}
	r := pr.Size + PlayerRadius
	return pr.Pos.DistSq(target.Pos) <= r*r
}
