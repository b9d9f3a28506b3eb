package game

import (
	"time"

	"github.com/psenger/massive-multiplayer-arena/internal/game/spatial"
)

// Layer classifies an entity for the collision matrix.
type Layer uint8

const (
	LayerPlayer Layer = iota
	LayerProjectile
	LayerPowerUp
	LayerWall
)

// LayersCollide is the fixed allow-matrix: players collide with
// everything; projectiles additionally collide with walls; all other
// pairs are skipped in the broad phase.
func LayersCollide(a, b Layer) bool {
	if a > b {
		a, b = b, a
	}
	switch {
	case a == LayerPlayer:
		return true
	case a == LayerProjectile && b == LayerWall:
		return true
	default:
		return false
	}
}

// Collision is one detected contact between two entities.
type Collision struct {
	A, B        string
	ALayer      Layer
	BLayer      Layer
	Point       Vec2
	Normal      Vec2 // from A toward B
	Penetration float64
}

// pairKey builds an order-independent key for pair deduplication.
func pairKey(a, b string) string {
	if a < b {
		return a + "|" + b
	}
	return b + "|" + a
}

// FindPlayerCollisions runs the narrow phase over grid candidates and
// returns deduplicated player-player contacts.
func (s *MatchState) FindPlayerCollisions(grid *spatial.Grid) []Collision {
	var out []Collision
	seen := make(map[string]struct{})

	for id, p := range s.Players {
		if !p.Alive {
			continue
		}
		for _, otherID := range grid.Nearby(id, PlayerRadius) {
			other, ok := s.Players[otherID]
			if !ok || !other.Alive {
				continue
			}
			key := pairKey(id, otherID)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			if c, hit := circleCircle(id, otherID, p.Pos, other.Pos, PlayerRadius, PlayerRadius); hit {
				c.ALayer, c.BLayer = LayerPlayer, LayerPlayer
				out = append(out, c)
			}
		}
	}
	return out
}

// circleCircle performs the squared-distance narrow-phase test.
func circleCircle(aID, bID string, a, b Vec2, ra, rb float64) (Collision, bool) {
	sum := ra + rb
	distSq := a.DistSq(b)
	if distSq > sum*sum {
		return Collision{}, false
	}

	delta := b.Sub(a)
	dist := delta.Len()
	normal := delta.Normalized()
	if normal == (Vec2{}) {
		normal = Vec2{X: 1} // coincident centers: arbitrary but stable axis
	}

	return Collision{
		A:           aID,
		B:           bID,
		Point:       a.Add(normal.Scale(ra)),
		Normal:      normal,
		Penetration: sum - dist,
	}, true
}

// SeparatePlayers displaces both players of an overlapping pair along
// the contact normal by half the penetration each, then re-clamps to
// the world.
func (s *MatchState) SeparatePlayers(c Collision) {
	a, okA := s.Players[c.A]
	b, okB := s.Players[c.B]
	if !okA || !okB {
		return
	}

	half := c.Penetration / 2
	posA := a.Pos.Sub(c.Normal.Scale(half))
	posB := b.Pos.Add(c.Normal.Scale(half))

	posA, _, _ = s.Bounds.Clamp(posA, PlayerRadius)
	posB, _, _ = s.Bounds.Clamp(posB, PlayerRadius)

	s.SetPlayerMotion(a, posA, a.Vel)
	s.SetPlayerMotion(b, posB, b.Vel)
}

// ResolveObstacles pushes players out of static obstacle boxes.
func (s *MatchState) ResolveObstacles(p *Player) {
	for _, box := range s.Obstacles {
		hit, closest := box.OverlapsCircle(p.Pos, PlayerRadius)
		if !hit {
			continue
		}
		normal := p.Pos.Sub(closest).Normalized()
		if normal == (Vec2{}) {
			normal = Vec2{Y: -1}
		}
		pos := closest.Add(normal.Scale(PlayerRadius))
		pos, _, _ = s.Bounds.Clamp(pos, PlayerRadius)

		vel := p.Vel
		if normal.X != 0 {
			vel.X = 0
		}
		if normal.Y != 0 {
			vel.Y = 0
		}
		s.SetPlayerMotion(p, pos, vel)
	}
}

// CollectPowerUps picks up any active pickup overlapping an alive
// player, applies its effect and records the state flip. Health packs
// heal immediately instead of attaching a buff.
func (s *MatchState) CollectPowerUps(grid *spatial.Grid, now time.Time) {
	for _, p := range s.Players {
		if !p.Alive {
			continue
		}
		for _, id := range grid.Nearby(p.ID, PowerUpRadius) {
			pu, ok := s.PowerUps[id]
			if !ok || !pu.Active {
				continue
			}
			r := PlayerRadius + PowerUpRadius
			if p.Pos.DistSq(pu.Pos) > r*r {
				continue
			}

			eff := pu.Collect(now)
			if pu.Type == PowerUpHealthPack {
				s.SetPlayerHealth(p, p.Health+int(pu.Modifier))
			} else {
				s.ApplyPowerUpEffect(p, pu.Type, eff)
			}
			s.PowerUpChanged(pu)
			s.EmitEvent(EventPowerUpTaken, now, map[string]any{
				"playerId": p.ID,
				"type":     string(pu.Type),
			})
		}
	}
}

// RespawnPowerUps reactivates pickups whose respawn delay elapsed.
func (s *MatchState) RespawnPowerUps(now time.Time) {
	for _, pu := range s.PowerUps {
		if pu.ShouldRespawn(now) {
			pu.Active = true
			s.PowerUpChanged(pu)
		}
	}
}
