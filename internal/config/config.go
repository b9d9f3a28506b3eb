// Package config provides centralized configuration management.
// This is the single source of truth for all server and simulation
// settings; everything else references these values.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// WorldConfig holds arena dimensions and movement tuning.
type WorldConfig struct {
	Width       float64
	Height      float64
	Friction    float64
	MaxVelocity float64
}

// DefaultWorld returns the default arena settings.
func DefaultWorld() WorldConfig {
	return WorldConfig{
		Width:       1280,
		Height:      720,
		Friction:    0.92,
		MaxVelocity: 400,
	}
}

// WorldFromEnv returns world configuration with environment overrides.
func WorldFromEnv() WorldConfig {
	cfg := DefaultWorld()
	if w := getEnvFloat("WORLD_W", 0); w > 0 {
		cfg.Width = w
	}
	if h := getEnvFloat("WORLD_H", 0); h > 0 {
		cfg.Height = h
	}
	if f := getEnvFloat("FRICTION", 0); f > 0 {
		cfg.Friction = f
	}
	if v := getEnvFloat("MAX_VEL", 0); v > 0 {
		cfg.MaxVelocity = v
	}
	return cfg
}

// MatchConfig holds per-match simulation settings.
type MatchConfig struct {
	TickHz         int
	MinPlayers     int
	MaxPlayers     int
	ScoreLimit     int
	TimeLimit      time.Duration
	RegenDelay     time.Duration
	EmptyReapDelay time.Duration
	GridCellSize   float64
}

// DefaultMatch returns the default match settings.
func DefaultMatch() MatchConfig {
	return MatchConfig{
		TickHz:         60,
		MinPlayers:     2,
		MaxPlayers:     8,
		ScoreLimit:     10,
		TimeLimit:      5 * time.Minute,
		RegenDelay:     3 * time.Second,
		EmptyReapDelay: 30 * time.Second,
		GridCellSize:   100,
	}
}

// MatchFromEnv returns match configuration with environment overrides.
func MatchFromEnv() MatchConfig {
	cfg := DefaultMatch()
	if hz := getEnvInt("TICK_HZ", 0); hz > 0 {
		cfg.TickHz = hz
	}
	if n := getEnvInt("MIN_PLAYERS", 0); n > 0 {
		cfg.MinPlayers = n
	}
	if n := getEnvInt("MAX_PLAYERS", 0); n > 0 {
		cfg.MaxPlayers = n
	}
	if n := getEnvInt("SCORE_LIMIT", 0); n > 0 {
		cfg.ScoreLimit = n
	}
	if ms := getEnvInt("MATCH_TIMEOUT_MS", 0); ms > 0 {
		cfg.TimeLimit = time.Duration(ms) * time.Millisecond
	}
	if ms := getEnvInt("REGEN_DELAY_MS", 0); ms > 0 {
		cfg.RegenDelay = time.Duration(ms) * time.Millisecond
	}
	return cfg
}

// BroadcastConfig holds state fan-out settings.
type BroadcastConfig struct {
	FullStateInterval time.Duration
	MaxSpectators     int
}

// DefaultBroadcast returns the default fan-out settings.
func DefaultBroadcast() BroadcastConfig {
	return BroadcastConfig{
		FullStateInterval: 5 * time.Second,
		MaxSpectators:     100,
	}
}

// BroadcastFromEnv returns broadcast configuration with environment
// overrides.
func BroadcastFromEnv() BroadcastConfig {
	cfg := DefaultBroadcast()
	if ms := getEnvInt("FULL_STATE_INTERVAL_MS", 0); ms > 0 {
		cfg.FullStateInterval = time.Duration(ms) * time.Millisecond
	}
	if n := getEnvInt("MAX_SPECTATORS", 0); n > 0 {
		cfg.MaxSpectators = n
	}
	return cfg
}

// ReplayConfig bounds the per-match replay ring.
type ReplayConfig struct {
	MaxSnapshots     int
	Retention        time.Duration
	SnapshotInterval time.Duration
	SweepInterval    time.Duration
}

// DefaultReplay returns the default replay bounds.
func DefaultReplay() ReplayConfig {
	return ReplayConfig{
		MaxSnapshots:     10000,
		Retention:        30 * time.Minute,
		SnapshotInterval: 100 * time.Millisecond,
		SweepInterval:    time.Minute,
	}
}

// ReplayFromEnv returns replay configuration with environment
// overrides.
func ReplayFromEnv() ReplayConfig {
	cfg := DefaultReplay()
	if n := getEnvInt("MAX_SNAPSHOTS", 0); n > 0 {
		cfg.MaxSnapshots = n
	}
	if ms := getEnvInt("RETENTION_MS", 0); ms > 0 {
		cfg.Retention = time.Duration(ms) * time.Millisecond
	}
	if ms := getEnvInt("SNAPSHOT_INTERVAL_MS", 0); ms > 0 {
		cfg.SnapshotInterval = time.Duration(ms) * time.Millisecond
	}
	return cfg
}

// MatchmakingConfig holds the pairing parameters.
type MatchmakingConfig struct {
	TickInterval time.Duration
	BaseSkillTol float64
	MaxSkillTol  float64
	LatencyTol   int
	QueueTimeout time.Duration
}

// DefaultMatchmaking returns the default pairing parameters.
func DefaultMatchmaking() MatchmakingConfig {
	return MatchmakingConfig{
		TickInterval: time.Second,
		BaseSkillTol: 100,
		MaxSkillTol:  300,
		LatencyTol:   150,
		QueueTimeout: 30 * time.Second,
	}
}

// MatchmakingFromEnv returns matchmaking configuration with
// environment overrides.
func MatchmakingFromEnv() MatchmakingConfig {
	cfg := DefaultMatchmaking()
	if ms := getEnvInt("MATCH_TICK_MS", 0); ms > 0 {
		cfg.TickInterval = time.Duration(ms) * time.Millisecond
	}
	if tol := getEnvFloat("BASE_SKILL_TOL", 0); tol > 0 {
		cfg.BaseSkillTol = tol
	}
	if tol := getEnvFloat("MAX_SKILL_TOL", 0); tol > 0 {
		cfg.MaxSkillTol = tol
	}
	if ms := getEnvInt("LATENCY_TOL_MS", 0); ms > 0 {
		cfg.LatencyTol = ms
	}
	if ms := getEnvInt("QUEUE_TIMEOUT_MS", 0); ms > 0 {
		cfg.QueueTimeout = time.Duration(ms) * time.Millisecond
	}
	return cfg
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port        int
	CORSOrigins []string
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{Port: 3000}
}

// ServerFromEnv returns server configuration with environment
// overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()
	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	return cfg
}

// AppConfig holds the complete application configuration.
type AppConfig struct {
	World       WorldConfig
	Match       MatchConfig
	Broadcast   BroadcastConfig
	Replay      ReplayConfig
	Matchmaking MatchmakingConfig
	Server      ServerConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		World:       WorldFromEnv(),
		Match:       MatchFromEnv(),
		Broadcast:   BroadcastFromEnv(),
		Replay:      ReplayFromEnv(),
		Matchmaking: MatchmakingFromEnv(),
		Server:      ServerFromEnv(),
	}
}

// Validate rejects configurations the server cannot run with. A
// non-nil error is fatal at startup.
func (c AppConfig) Validate() error {
	if c.Match.TickHz < 1 || c.Match.TickHz > 240 {
		return errors.Errorf("TICK_HZ %d out of range [1, 240]", c.Match.TickHz)
	}
	if c.Match.MinPlayers > c.Match.MaxPlayers {
		return errors.Errorf("MIN_PLAYERS %d exceeds MAX_PLAYERS %d", c.Match.MinPlayers, c.Match.MaxPlayers)
	}
	if c.World.Width <= 0 || c.World.Height <= 0 {
		return errors.Errorf("world bounds %gx%g invalid", c.World.Width, c.World.Height)
	}
	if c.World.Friction <= 0 || c.World.Friction > 1 {
		return errors.Errorf("FRICTION %g out of range (0, 1]", c.World.Friction)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return errors.Errorf("PORT %d invalid", c.Server.Port)
	}
	return nil
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
