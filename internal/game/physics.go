package game

import (
	"time"

	"github.com/pkg/errors"
)

// VelocityEpsilon is the magnitude below which a velocity component
// snaps to zero.
const VelocityEpsilon = 0.01

// ErrNonFinite reports that an entity's state left the realm of
// finite floats. The integrator recovers the entity; a repeat breach
// in the same tick is fatal for the match.
var ErrNonFinite = errors.New("non-finite entity state")

// IntegratePlayer advances one player by dt seconds: position first,
// then boundary clamp, then friction and the velocity magnitude cap.
// The velocity component that drove a boundary clamp is zeroed so
// players do not accumulate speed into walls.
//
// A non-finite position or velocity resets the player to the field
// center at rest and returns ErrNonFinite; the tick itself never
// crashes.
func (s *MatchState) IntegratePlayer(p *Player, dt, friction, maxVel float64, now time.Time) error {
	if !p.Pos.IsFinite() || !p.Vel.IsFinite() {
		s.SetPlayerMotion(p, s.Bounds.Center(), Vec2{})
		return errors.Wrapf(ErrNonFinite, "player %s", p.ID)
	}

	speedCap := maxVel * p.SpeedMultiplier(now)

	pos := p.Pos.Add(p.Vel.Scale(dt))
	pos, clampedX, clampedY := s.Bounds.Clamp(pos, PlayerRadius)

	vel := p.Vel
	if clampedX {
		vel.X = 0
	}
	if clampedY {
		vel.Y = 0
	}

	vel = vel.Scale(friction).ClampLen(speedCap)
	if vel.X > -VelocityEpsilon && vel.X < VelocityEpsilon {
		vel.X = 0
	}
	if vel.Y > -VelocityEpsilon && vel.Y < VelocityEpsilon {
		vel.Y = 0
	}

	if !pos.IsFinite() || !vel.IsFinite() {
		s.SetPlayerMotion(p, s.Bounds.Center(), Vec2{})
		return errors.Wrapf(ErrNonFinite, "player %s", p.ID)
	}

	s.SetPlayerMotion(p, pos, vel)
	return nil
}
