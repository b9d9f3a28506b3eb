package game

import "time"

// AbilityKind distinguishes how a cast resolves.
type AbilityKind string

const (
	AbilityProjectile AbilityKind = "projectile" // spawns a magic projectile
	AbilityArea       AbilityKind = "area"       // instant damage in a radius
	AbilityHeal       AbilityKind = "heal"       // restores caster health
)

// Ability is a castable spell gated by mana and a cast window.
type Ability struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Kind            AbilityKind   `json:"kind"`
	ManaCost        int           `json:"manaCost"`
	Damage          int           `json:"damage"`
	Heal            int           `json:"heal"`
	Radius          float64       `json:"radius"` // area abilities only
	MaxRange        float64       `json:"maxRange"`
	CastTime        time.Duration `json:"-"` // casting status duration
	ProjectileSpeed float64       `json:"projectileSpeed"`
	ProjectileSize  float64       `json:"projectileSize"`
}

// Abilities is the table of castable abilities.
var Abilities = map[string]Ability{
	"fireball": {
		ID:              "fireball",
		Name:            "Fireball",
		Kind:            AbilityProjectile,
		ManaCost:        25,
		Damage:          35,
		MaxRange:        450,
		CastTime:        300 * time.Millisecond,
		ProjectileSpeed: 500,
		ProjectileSize:  12,
	},
	"shockwave": {
		ID:       "shockwave",
		Name:     "Shockwave",
		Kind:     AbilityArea,
		ManaCost: 40,
		Damage:   20,
		Radius:   120,
		CastTime: 500 * time.Millisecond,
	},
	"heal": {
		ID:       "heal",
		Name:     "Heal",
		Kind:     AbilityHeal,
		ManaCost: 30,
		Heal:     40,
		CastTime: 400 * time.Millisecond,
	},
}

// GetAbility returns an ability by ID and whether it exists.
func GetAbility(id string) (Ability, bool) {
	a, ok := Abilities[id]
	return a, ok
}
