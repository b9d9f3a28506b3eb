package game

import (
	"math"
	"time"

	"github.com/pkg/errors"
)

// Action is a combat input verb.
type Action string

const (
	ActionAttack Action = "attack"
	ActionBlock  Action = "block"
	ActionDodge  Action = "dodge"
	ActionCast   Action = "cast"
	ActionMove   Action = "move"
)

// Input is one dequeued player command. Inputs are applied strictly
// in dequeue order, which is also the tie-break for simultaneous
// damage within a tick.
type Input struct {
	PlayerID string
	Action   Action
	TargetID string
	Target   Vec2 // aim point / movement direction
	Ability  string
	ClientTS int64
}

// Combat balance constants. Server-authoritative.
const (
	CritMultiplier     = 1.5
	HeadshotMultiplier = 2.0
	DamageFloor        = 0.1 // falloff multiplier floor
	FalloffRate        = 0.3
	ProficiencyBonus   = 0.05 // per weapon level
	MaxDamageReduction = 0.8

	HeadshotChance = 0.1
	BlockReduction = 0.5

	BlockDuration  = 800 * time.Millisecond
	BlockCooldown  = 2 * time.Second
	BlockStamina   = 15
	DodgeDistance  = 120.0
	DodgeCooldown  = time.Second
	DodgeStamina   = 40
	DodgeInvuln    = 200 * time.Millisecond
	MoveSpeed      = 220.0 // units per second from a move input

	StaminaRegenPerSec = 10.0
	ManaRegenPerSec    = 5.0
)

// Precondition and state errors returned to the caller; these never
// terminate a match.
var (
	ErrPlayerNotFound       = errors.New("player not found")
	ErrPlayerDead           = errors.New("player dead")
	ErrOnCooldown           = errors.New("on_cooldown")
	ErrInsufficientResource = errors.New("insufficient_resource")
	ErrOutOfRange           = errors.New("out_of_range")
	ErrUnknownAbility       = errors.New("unknown ability")
)

// ApplyInput routes a dequeued input through the combat resolver.
func (s *MatchState) ApplyInput(in Input, now time.Time) error {
	actor, ok := s.Players[in.PlayerID]
	if !ok {
		return ErrPlayerNotFound
	}
	if !actor.Alive {
		return ErrPlayerDead
	}

	switch in.Action {
	case ActionMove:
		return s.applyMove(actor, in, now)
	case ActionAttack:
		return s.applyAttack(actor, in, now)
	case ActionBlock:
		return s.applyBlock(actor, now)
	case ActionDodge:
		return s.applyDodge(actor, in, now)
	case ActionCast:
		return s.applyCast(actor, in, now)
	default:
		return errors.Errorf("unknown action %q", in.Action)
	}
}

// applyMove sets the player's velocity toward the requested direction.
func (s *MatchState) applyMove(actor *Player, in Input, now time.Time) error {
	dir := in.Target.Normalized()
	speed := MoveSpeed * actor.SpeedMultiplier(now)
	s.SetPlayerMotion(actor, actor.Pos, dir.Scale(speed))
	return nil
}

// applyAttack resolves a melee swing or spawns a projectile.
func (s *MatchState) applyAttack(actor *Player, in Input, now time.Time) error {
	weapon := GetWeapon(actor.Weapon)

	cooldown := time.Duration(float64(weapon.Cooldown) * actor.CooldownMultiplier(now))
	if now.Sub(actor.LastAttack) < cooldown {
		return ErrOnCooldown
	}
	if actor.Stamina < weapon.StaminaCost {
		return ErrInsufficientResource
	}

	if weapon.IsProjectile {
		actor.LastAttack = now
		s.SetPlayerStamina(actor, actor.Stamina-weapon.StaminaCost)

		pr := NewProjectile(actor, in.Target, weapon.ID, weapon.ProjectileSpeed,
			weapon.ProjectileSize, weapon.Damage, weapon.DamageType,
			weapon.EffectiveRange, weapon.MaxRange, now)
		s.AddProjectile(pr)
		return nil
	}

	target, ok := s.Players[in.TargetID]
	if !ok {
		return ErrPlayerNotFound
	}
	if !target.Alive {
		return ErrPlayerDead
	}

	distance := actor.Pos.Dist(target.Pos)
	if distance > weapon.MaxRange+PlayerRadius {
		return ErrOutOfRange
	}

	actor.LastAttack = now
	s.SetPlayerStamina(actor, actor.Stamina-weapon.StaminaCost)

	head := s.rng.Float64() < HeadshotChance
	damage := ComputeDamage(actor, target, weapon.Damage, weapon.DamageType,
		weapon.EffectiveRange, distance, head, s.rng.Float64(), now)
	damage = applyProficiency(damage, actor.ProficiencyLevel(weapon.ID))
	s.DealDamage(actor, target, damage, now)
	return nil
}

// applyBlock raises the blocking status for its window.
func (s *MatchState) applyBlock(actor *Player, now time.Time) error {
	if now.Sub(actor.LastBlock) < BlockCooldown {
		return ErrOnCooldown
	}
	if actor.Stamina < BlockStamina {
		return ErrInsufficientResource
	}

	actor.LastBlock = now
	s.SetPlayerStamina(actor, actor.Stamina-BlockStamina)
	s.SetPlayerStatus(actor, StatusBlocking, now.Add(BlockDuration))
	return nil
}

// applyDodge displaces the actor and grants brief invulnerability.
func (s *MatchState) applyDodge(actor *Player, in Input, now time.Time) error {
	if now.Sub(actor.LastDodge) < DodgeCooldown {
		return ErrOnCooldown
	}
	if actor.Stamina < DodgeStamina {
		return ErrInsufficientResource
	}

	dir := in.Target.Normalized()
	if dir == (Vec2{}) {
		dir = actor.Vel.Normalized()
	}
	if dir == (Vec2{}) {
		dir = Vec2{X: 1}
	}

	actor.LastDodge = now
	s.SetPlayerStamina(actor, actor.Stamina-DodgeStamina)

	pos := actor.Pos.Add(dir.Scale(DodgeDistance))
	pos, _, _ = s.Bounds.Clamp(pos, PlayerRadius)
	s.SetPlayerMotion(actor, pos, actor.Vel)
	s.SetPlayerStatus(actor, StatusInvulnerable, now.Add(DodgeInvuln))
	return nil
}

// applyCast resolves the selected ability.
func (s *MatchState) applyCast(actor *Player, in Input, now time.Time) error {
	name := in.Ability
	if name == "" {
		name = actor.Ability
	}
	ability, ok := GetAbility(name)
	if !ok {
		return ErrUnknownAbility
	}
	if actor.HasStatus(StatusCasting, now) {
		return ErrOnCooldown
	}
	if actor.Mana < ability.ManaCost {
		return ErrInsufficientResource
	}

	s.SetPlayerMana(actor, actor.Mana-ability.ManaCost)
	s.SetPlayerStatus(actor, StatusCasting, now.Add(ability.CastTime))

	switch ability.Kind {
	case AbilityProjectile:
		pr := NewProjectile(actor, in.Target, ability.ID, ability.ProjectileSpeed,
			ability.ProjectileSize, ability.Damage, DamageMagic,
			ability.MaxRange, ability.MaxRange, now)
		s.AddProjectile(pr)

	case AbilityArea:
		for _, target := range s.Players {
			if target.ID == actor.ID || !target.Alive {
				continue
			}
			if actor.Pos.Dist(target.Pos) > ability.Radius {
				continue
			}
			damage := ComputeDamage(actor, target, ability.Damage, DamageMagic,
				ability.Radius, actor.Pos.Dist(target.Pos), false, s.rng.Float64(), now)
			s.DealDamage(actor, target, damage, now)
		}

	case AbilityHeal:
		s.SetPlayerHealth(actor, actor.Health+ability.Heal)
	}
	return nil
}

// ComputeDamage runs the damage pipeline in its fixed order: base,
// range falloff, crit, headshot, attacker damage boosts, defender
// mitigation. The result is at least 1.
//
// critRoll is the caller's uniform draw so resolution stays
// deterministic under the match RNG.
func ComputeDamage(attacker, defender *Player, weaponDamage int, dtype DamageType,
	effectiveRange, distance float64, head bool, critRoll float64, now time.Time) int {

	damage := float64(weaponDamage + attacker.Stats.Attack)

	if distance > effectiveRange && effectiveRange > 0 {
		falloff := 1 - (distance-effectiveRange)/effectiveRange*FalloffRate
		if falloff < DamageFloor {
			falloff = DamageFloor
		}
		damage *= falloff
	}

	if critRoll < attacker.Stats.CritChance+attacker.Stats.Accuracy*0.1 {
		damage *= CritMultiplier
	}
	if head {
		damage *= HeadshotMultiplier
	}

	damage *= 1 + attacker.DamageBoost(now)

	switch dtype {
	case DamageMagic:
		damage -= float64(defender.Stats.MagicResist)
	default:
		damage -= float64(defender.Stats.Armor)
	}

	reduction := defender.DamageReduction
	if defender.HasStatus(StatusBlocking, now) {
		reduction += BlockReduction
	}
	if reduction > MaxDamageReduction {
		reduction = MaxDamageReduction
	}
	damage *= 1 - reduction

	if damage < 1 {
		return 1
	}
	return int(math.Round(damage))
}

// applyProficiency scales a resolved hit by the attacker's weapon
// level, +5% per level, keeping the 1-damage floor.
func applyProficiency(damage, level int) int {
	if level == 0 {
		return damage
	}
	scaled := int(math.Round(float64(damage) * (1 + ProficiencyBonus*float64(level))))
	if scaled < 1 {
		return 1
	}
	return scaled
}

// DealDamage applies damage from attacker to target, honoring
// invulnerability, and credits kills. Attacker may be nil for
// environmental damage.
func (s *MatchState) DealDamage(attacker, target *Player, damage int, now time.Time) {
	if !target.Alive || target.HasStatus(StatusInvulnerable, now) {
		return
	}

	target.LastDamage = now
	s.SetPlayerHealth(target, target.Health-damage)

	if target.Alive {
		return
	}

	target.Deaths++
	s.playerChanged(target.ID, map[string]any{"deaths": target.Deaths})

	payload := map[string]any{"victimId": target.ID}
	if attacker != nil {
		attacker.Kills++
		s.playerChanged(attacker.ID, map[string]any{"kills": attacker.Kills})
		attacker.Proficiency[attacker.Weapon]++
		payload["killerId"] = attacker.ID
	}
	s.EmitEvent(EventPlayerKilled, now, payload)
}

// RegenerateResources restores stamina and mana for players who have
// not been damaged for regenDelay. Fractional regen accumulates in
// per-player carries so low tick rates do not starve.
func (s *MatchState) RegenerateResources(dt float64, regenDelay time.Duration, now time.Time) {
	for _, p := range s.Players {
		if !p.Alive || now.Sub(p.LastDamage) <= regenDelay {
			continue
		}

		if p.Stamina < p.MaxStamina {
			p.staminaCarry += StaminaRegenPerSec * dt
			if whole := int(p.staminaCarry); whole > 0 {
				p.staminaCarry -= float64(whole)
				s.SetPlayerStamina(p, p.Stamina+whole)
			}
		}
		if p.Mana < p.MaxMana {
			p.manaCarry += ManaRegenPerSec * dt
			if whole := int(p.manaCarry); whole > 0 {
				p.manaCarry -= float64(whole)
				s.SetPlayerMana(p, p.Mana+whole)
			}
		}
	}
}
