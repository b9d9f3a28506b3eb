package config

import (
	"testing"
	"time"
)

// TestDefaults tests the documented default values
func TestDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Match.TickHz != 60 {
		t.Errorf("expected 60 TPS default, got %d", cfg.Match.TickHz)
	}
	if cfg.Broadcast.FullStateInterval != 5*time.Second {
		t.Errorf("expected 5s keyframe interval, got %s", cfg.Broadcast.FullStateInterval)
	}
	if cfg.Broadcast.MaxSpectators != 100 {
		t.Errorf("expected 100 spectators, got %d", cfg.Broadcast.MaxSpectators)
	}
	if cfg.Replay.MaxSnapshots != 10000 {
		t.Errorf("expected 10000 snapshots, got %d", cfg.Replay.MaxSnapshots)
	}
	if cfg.Replay.Retention != 30*time.Minute {
		t.Errorf("expected 30m retention, got %s", cfg.Replay.Retention)
	}
	if cfg.Matchmaking.BaseSkillTol != 100 || cfg.Matchmaking.MaxSkillTol != 300 {
		t.Errorf("unexpected skill tolerances: %+v", cfg.Matchmaking)
	}
	if cfg.Matchmaking.LatencyTol != 150 {
		t.Errorf("expected 150ms latency gate, got %d", cfg.Matchmaking.LatencyTol)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

// TestEnvOverrides tests environment variable precedence
func TestEnvOverrides(t *testing.T) {
	t.Setenv("TICK_HZ", "30")
	t.Setenv("WORLD_W", "1920")
	t.Setenv("QUEUE_TIMEOUT_MS", "45000")
	t.Setenv("MAX_SPECTATORS", "50")

	cfg := Load()
	if cfg.Match.TickHz != 30 {
		t.Errorf("expected TICK_HZ override 30, got %d", cfg.Match.TickHz)
	}
	if cfg.World.Width != 1920 {
		t.Errorf("expected WORLD_W override 1920, got %g", cfg.World.Width)
	}
	if cfg.Matchmaking.QueueTimeout != 45*time.Second {
		t.Errorf("expected 45s queue timeout, got %s", cfg.Matchmaking.QueueTimeout)
	}
	if cfg.Broadcast.MaxSpectators != 50 {
		t.Errorf("expected 50 spectators, got %d", cfg.Broadcast.MaxSpectators)
	}
}

// TestInvalidEnvIgnored tests that malformed values fall back to
// defaults
func TestInvalidEnvIgnored(t *testing.T) {
	t.Setenv("TICK_HZ", "not-a-number")
	cfg := Load()
	if cfg.Match.TickHz != 60 {
		t.Errorf("malformed env should fall back to default, got %d", cfg.Match.TickHz)
	}
}

// TestValidateRejectsBadConfig tests fatal configuration errors
func TestValidateRejectsBadConfig(t *testing.T) {
	cfg := Load()
	cfg.Match.TickHz = 0
	if err := cfg.Validate(); err == nil {
		t.Error("zero tick rate must be rejected")
	}

	cfg = Load()
	cfg.Match.MinPlayers = 10
	cfg.Match.MaxPlayers = 2
	if err := cfg.Validate(); err == nil {
		t.Error("min > max players must be rejected")
	}

	cfg = Load()
	cfg.World.Friction = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("friction above 1 must be rejected")
	}
}
