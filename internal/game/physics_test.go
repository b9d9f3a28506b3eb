package game

import (
	"math"
	"testing"
	"time"
)

func testState() *MatchState {
	return NewMatchState("test", Bounds{W: 1280, H: 720}, 10, 5*time.Minute, 42)
}

// TestIntegrateMoves tests basic position integration
func TestIntegrateMoves(t *testing.T) {
	s := testState()
	now := time.Now()
	p := NewPlayer("alice", now)
	p.Pos = Vec2{X: 100, Y: 100}
	p.Vel = Vec2{X: 60, Y: 0}
	s.AddPlayer(p)

	if err := s.IntegratePlayer(p, 1.0, 0.92, 400, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Pos.X != 160 {
		t.Errorf("expected X 160, got %g", p.Pos.X)
	}
	if math.Abs(p.Vel.X-60*0.92) > 1e-9 {
		t.Errorf("expected friction applied, got %g", p.Vel.X)
	}
}

// TestBoundaryClampZeroesVelocity tests that a player pushed outward
// is clamped and the outward velocity component zeroed
func TestBoundaryClampZeroesVelocity(t *testing.T) {
	s := testState()
	now := time.Now()
	p := NewPlayer("edge", now)
	p.Pos = Vec2{X: 1280 - PlayerRadius, Y: 300}
	p.Vel = Vec2{X: 500, Y: 10}
	s.AddPlayer(p)

	if err := s.IntegratePlayer(p, 0.016, 0.92, 1000, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Pos.X != 1280-PlayerRadius {
		t.Errorf("expected clamped X %g, got %g", 1280-PlayerRadius, p.Pos.X)
	}
	if p.Vel.X != 0 {
		t.Errorf("outward velocity component should be zero, got %g", p.Vel.X)
	}
	if p.Vel.Y == 0 {
		t.Error("tangential velocity component should survive the clamp")
	}
}

// TestVelocityClamp tests the magnitude cap
func TestVelocityClamp(t *testing.T) {
	s := testState()
	now := time.Now()
	p := NewPlayer("fast", now)
	p.Pos = Vec2{X: 640, Y: 360}
	p.Vel = Vec2{X: 3000, Y: 4000}
	s.AddPlayer(p)

	if err := s.IntegratePlayer(p, 0.001, 1.0, 400, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if speed := p.Vel.Len(); speed > 400+1e-9 {
		t.Errorf("velocity should be capped at 400, got %g", speed)
	}
}

// TestTinyVelocitySnapsToZero tests the epsilon snap
func TestTinyVelocitySnapsToZero(t *testing.T) {
	s := testState()
	now := time.Now()
	p := NewPlayer("slow", now)
	p.Pos = Vec2{X: 640, Y: 360}
	p.Vel = Vec2{X: 0.005, Y: -0.003}
	s.AddPlayer(p)

	if err := s.IntegratePlayer(p, 0.016, 0.92, 400, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Vel != (Vec2{}) {
		t.Errorf("expected velocity snapped to zero, got %+v", p.Vel)
	}
}

// TestNonFiniteRecovery tests that NaN state resets the player
// instead of crashing the tick
func TestNonFiniteRecovery(t *testing.T) {
	s := testState()
	now := time.Now()
	p := NewPlayer("broken", now)
	p.Pos = Vec2{X: math.NaN(), Y: 100}
	p.Vel = Vec2{X: 1, Y: 1}
	s.AddPlayer(p)

	err := s.IntegratePlayer(p, 0.016, 0.92, 400, now)
	if err == nil {
		t.Fatal("expected ErrNonFinite")
	}
	if p.Pos != s.Bounds.Center() {
		t.Errorf("expected reset to center, got %+v", p.Pos)
	}
	if p.Vel != (Vec2{}) {
		t.Errorf("expected zero velocity after reset, got %+v", p.Vel)
	}
}

// TestSpeedBoostRaisesCap tests that an active speed boost widens the
// velocity cap
func TestSpeedBoostRaisesCap(t *testing.T) {
	s := testState()
	now := time.Now()
	p := NewPlayer("boosted", now)
	p.Pos = Vec2{X: 640, Y: 360}
	p.Vel = Vec2{X: 500, Y: 0}
	p.PowerUps[PowerUpSpeedBoost] = PowerUpEffect{Modifier: 0.5, EndTime: now.Add(time.Minute)}
	s.AddPlayer(p)

	if err := s.IntegratePlayer(p, 0.001, 1.0, 400, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Vel.Len() < 450 {
		t.Errorf("boosted cap should allow 500, got %g", p.Vel.Len())
	}
}
