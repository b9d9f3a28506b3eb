package matchmaking

import (
	"math"
	"testing"
	"time"
)

// TestEvenMatchWinnerGainsHalfK tests that a 1200 vs 1200 winner
// gains exactly K/2 = 16
func TestEvenMatchWinnerGainsHalfK(t *testing.T) {
	table := NewRatingTable()
	now := time.Now()

	winner, loser := table.ApplyResult("a", "b", 1, now)
	if winner.Rating != 1216 {
		t.Errorf("expected winner at 1216, got %g", winner.Rating)
	}
	if loser.Rating != 1184 {
		t.Errorf("expected loser at 1184, got %g", loser.Rating)
	}
}

// TestZeroSum tests that rating changes sum to zero for any pairing
func TestZeroSum(t *testing.T) {
	table := NewRatingTable()
	now := time.Now()

	// Skew the ratings first.
	table.ApplyResult("a", "b", 1, now)
	table.ApplyResult("a", "b", 1, now.Add(time.Minute))

	before := table.Get("a", now).Rating + table.Get("b", now).Rating
	a, b := table.ApplyResult("a", "b", 0, now.Add(2*time.Minute))
	after := a.Rating + b.Rating

	if math.Abs(after-before) > 1e-9 {
		t.Errorf("rating changes must sum to zero: %g -> %g", before, after)
	}
}

// TestExpectedScore tests the Elo expectation formula
func TestExpectedScore(t *testing.T) {
	if e := Expected(1200, 1200); math.Abs(e-0.5) > 1e-9 {
		t.Errorf("even matchup expectation should be 0.5, got %g", e)
	}
	if e := Expected(1600, 1200); e <= 0.5 {
		t.Errorf("stronger player expectation should exceed 0.5, got %g", e)
	}
	eA := Expected(1500, 1300)
	eB := Expected(1300, 1500)
	if math.Abs(eA+eB-1) > 1e-9 {
		t.Errorf("expectations must sum to 1, got %g", eA+eB)
	}
}

// TestRatingBounds tests the floor and ceiling clamps
func TestRatingBounds(t *testing.T) {
	table := NewRatingTable()
	now := time.Now()

	table.mu.Lock()
	r := table.getOrInit("weak", now)
	r.Rating = RatingFloor + 1
	table.mu.Unlock()

	_, loser := table.ApplyResult("strong", "weak", 1, now)
	if loser.Rating < RatingFloor {
		t.Errorf("rating must not fall below the floor, got %g", loser.Rating)
	}

	table.mu.Lock()
	r = table.getOrInit("topped", now)
	r.Rating = RatingCeiling - 1
	table.mu.Unlock()

	winner, _ := table.ApplyResult("topped", "strong", 1, now)
	if winner.Rating > RatingCeiling {
		t.Errorf("rating must not exceed the ceiling, got %g", winner.Rating)
	}
}

// TestVolatilityBounds tests the volatility clip range
func TestVolatilityBounds(t *testing.T) {
	table := NewRatingTable()
	now := time.Now()

	for i := 0; i < 50; i++ {
		a, b := table.ApplyResult("a", "b", float64(i%2), now.Add(time.Duration(i)*time.Minute))
		for _, r := range []SkillRating{a, b} {
			if r.Volatility < VolatilityLo || r.Volatility > VolatilityHi {
				t.Fatalf("volatility out of [0.1, 1.0]: %g", r.Volatility)
			}
		}
	}
}

// TestInactivityDecay tests linear decay after the idle window
func TestInactivityDecay(t *testing.T) {
	table := NewRatingTable()
	now := time.Now()

	table.ApplyResult("a", "b", 1, now) // a at 1216

	// Inside the idle window: no decay.
	if r := table.Get("a", now.Add(10*24*time.Hour)); r.Rating != 1216 {
		t.Errorf("no decay expected inside the window, got %g", r.Rating)
	}

	// 10 days past the window: 10 * 2 points off.
	r := table.Get("a", now.Add(DecayAfter+10*24*time.Hour))
	if math.Abs(r.Rating-1196) > 1e-9 {
		t.Errorf("expected 1196 after decay, got %g", r.Rating)
	}
}

// TestWinLossAccounting tests games/wins/losses counters
func TestWinLossAccounting(t *testing.T) {
	table := NewRatingTable()
	now := time.Now()

	table.ApplyResult("a", "b", 1, now)
	a := table.Get("a", now)
	b := table.Get("b", now)

	if a.Games != 1 || a.Wins != 1 || a.Losses != 0 {
		t.Errorf("winner accounting wrong: %+v", a)
	}
	if b.Games != 1 || b.Wins != 0 || b.Losses != 1 {
		t.Errorf("loser accounting wrong: %+v", b)
	}
}
