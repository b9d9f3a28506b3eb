package game

import (
	"testing"
	"time"

	"github.com/psenger/massive-multiplayer-arena/internal/game/spatial"
)

// TestLayerMatrix tests the fixed collision allow-matrix
func TestLayerMatrix(t *testing.T) {
	cases := []struct {
		a, b Layer
		want bool
	}{
		{LayerPlayer, LayerPlayer, true},
		{LayerPlayer, LayerProjectile, true},
		{LayerPlayer, LayerPowerUp, true},
		{LayerPlayer, LayerWall, true},
		{LayerProjectile, LayerWall, true},
		{LayerProjectile, LayerProjectile, false},
		{LayerProjectile, LayerPowerUp, false},
		{LayerPowerUp, LayerPowerUp, false},
		{LayerPowerUp, LayerWall, false},
		{LayerWall, LayerWall, false},
	}
	for _, tc := range cases {
		if got := LayersCollide(tc.a, tc.b); got != tc.want {
			t.Errorf("LayersCollide(%d, %d) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
		if got := LayersCollide(tc.b, tc.a); got != tc.want {
			t.Errorf("LayersCollide(%d, %d) should be symmetric", tc.b, tc.a)
		}
	}
}

// TestFindPlayerCollisions tests overlap detection and pair dedup
func TestFindPlayerCollisions(t *testing.T) {
	s := testState()
	now := time.Now()
	grid := spatial.NewGrid(1280, 720, 100)

	a := NewPlayer("a", now)
	a.Pos = Vec2{X: 400, Y: 300}
	b := NewPlayer("b", now)
	b.Pos = Vec2{X: 400 + PlayerRadius, Y: 300} // overlapping: gap < 2r
	c := NewPlayer("c", now)
	c.Pos = Vec2{X: 900, Y: 600}

	for _, p := range []*Player{a, b, c} {
		s.AddPlayer(p)
		grid.Insert(p.ID, p.Pos.X, p.Pos.Y, PlayerRadius)
	}

	collisions := s.FindPlayerCollisions(grid)
	if len(collisions) != 1 {
		t.Fatalf("expected exactly 1 collision (deduplicated), got %d", len(collisions))
	}
	col := collisions[0]
	if col.Penetration <= 0 {
		t.Errorf("expected positive penetration, got %g", col.Penetration)
	}
}

// TestSeparatePlayers tests that overlapping players are displaced by
// half the penetration each and stay in bounds
func TestSeparatePlayers(t *testing.T) {
	s := testState()
	now := time.Now()
	grid := spatial.NewGrid(1280, 720, 100)

	a := NewPlayer("a", now)
	a.Pos = Vec2{X: 400, Y: 300}
	b := NewPlayer("b", now)
	b.Pos = Vec2{X: 420, Y: 300}
	s.AddPlayer(a)
	s.AddPlayer(b)
	grid.Insert(a.ID, a.Pos.X, a.Pos.Y, PlayerRadius)
	grid.Insert(b.ID, b.Pos.X, b.Pos.Y, PlayerRadius)

	collisions := s.FindPlayerCollisions(grid)
	if len(collisions) != 1 {
		t.Fatalf("expected 1 collision, got %d", len(collisions))
	}

	before := a.Pos.Dist(b.Pos)
	s.SeparatePlayers(collisions[0])
	after := a.Pos.Dist(b.Pos)

	if after <= before {
		t.Errorf("separation should increase distance: %g -> %g", before, after)
	}
	if after < 2*PlayerRadius-1e-6 {
		t.Errorf("players should no longer overlap, distance %g", after)
	}
	if !s.Bounds.Contains(a.Pos, PlayerRadius) || !s.Bounds.Contains(b.Pos, PlayerRadius) {
		t.Error("separated players must stay inside bounds")
	}
}

// TestProjectileNeverHitsOwner tests the owner-immunity invariant
func TestProjectileNeverHitsOwner(t *testing.T) {
	now := time.Now()
	owner := NewPlayer("owner", now)
	owner.Pos = Vec2{X: 400, Y: 300}

	pr := NewProjectile(owner, Vec2{X: 500, Y: 300}, "bow", 700, 8, 24, DamagePhysical, 350, 600, now)
	pr.Pos = owner.Pos // force dead-on overlap

	if pr.Hits(owner, now) {
		t.Error("projectile must never hit its owner")
	}
}

// TestProjectileRangeExpiry tests that a projectile spawned near its
// range limit dies within one step
func TestProjectileRangeExpiry(t *testing.T) {
	now := time.Now()
	owner := NewPlayer("owner", now)
	owner.Pos = Vec2{X: 100, Y: 300}
	bounds := Bounds{W: 1280, H: 720}

	pr := NewProjectile(owner, Vec2{X: 1000, Y: 300}, "bow", 700, 8, 24, DamagePhysical, 350, 600, now)
	pr.Traveled = pr.Range - 0.001

	if pr.Step(1.0/60, bounds) {
		t.Error("projectile at range-epsilon should be destroyed within one tick")
	}
	if pr.Traveled < pr.Range {
		t.Error("traveled distance should have reached range")
	}
}

// TestProjectileLeavesWorld tests out-of-bounds destruction
func TestProjectileLeavesWorld(t *testing.T) {
	now := time.Now()
	owner := NewPlayer("owner", now)
	owner.Pos = Vec2{X: 1270, Y: 300}
	bounds := Bounds{W: 1280, H: 720}

	pr := NewProjectile(owner, Vec2{X: 2000, Y: 300}, "bow", 700, 8, 24, DamagePhysical, 350, 600, now)

	alive := true
	for i := 0; i < 10 && alive; i++ {
		alive = pr.Step(1.0/60, bounds)
	}
	if alive {
		t.Error("projectile should be destroyed after leaving the world")
	}
}

// TestCollectPowerUps tests pickup, deactivation and respawn timing
func TestCollectPowerUps(t *testing.T) {
	s := testState()
	now := time.Now()
	grid := spatial.NewGrid(1280, 720, 100)

	p := NewPlayer("taker", now)
	p.Pos = Vec2{X: 400, Y: 300}
	s.AddPlayer(p)
	grid.Insert(p.ID, p.Pos.X, p.Pos.Y, PlayerRadius)

	pu := NewPowerUp(PowerUpDamageBoost, Vec2{X: 410, Y: 300}, now)
	s.AddPowerUp(pu)
	grid.Insert(pu.ID, pu.Pos.X, pu.Pos.Y, PowerUpRadius)

	s.CollectPowerUps(grid, now)

	if pu.Active {
		t.Error("collected power-up should be inactive")
	}
	eff, ok := p.PowerUps[PowerUpDamageBoost]
	if !ok {
		t.Fatal("player should carry the damage boost")
	}
	if eff.Modifier != 0.5 {
		t.Errorf("expected modifier 0.5, got %g", eff.Modifier)
	}

	// Not yet due
	s.RespawnPowerUps(now.Add(pu.RespawnDelay - time.Second))
	if pu.Active {
		t.Error("power-up respawned before its delay")
	}

	// Due exactly once
	s.RespawnPowerUps(now.Add(pu.RespawnDelay))
	if !pu.Active {
		t.Error("power-up should respawn after its delay")
	}
}

// TestHealthPackHealsImmediately tests the health pack path
func TestHealthPackHealsImmediately(t *testing.T) {
	s := testState()
	now := time.Now()
	grid := spatial.NewGrid(1280, 720, 100)

	p := NewPlayer("hurt", now)
	p.Pos = Vec2{X: 200, Y: 200}
	p.Health = 40
	s.AddPlayer(p)
	grid.Insert(p.ID, p.Pos.X, p.Pos.Y, PlayerRadius)

	pu := NewPowerUp(PowerUpHealthPack, Vec2{X: 205, Y: 200}, now)
	s.AddPowerUp(pu)
	grid.Insert(pu.ID, pu.Pos.X, pu.Pos.Y, PowerUpRadius)

	s.CollectPowerUps(grid, now)

	if p.Health != 90 {
		t.Errorf("expected health 90 after pack, got %d", p.Health)
	}
	if _, ok := p.PowerUps[PowerUpHealthPack]; ok {
		t.Error("health pack should not linger as a buff")
	}
}
