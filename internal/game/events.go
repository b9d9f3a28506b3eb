package game

import "time"

// GameEventType tags events surfaced to subscribers alongside entity
// deltas.
type GameEventType string

const (
	EventPlayerJoined  GameEventType = "player_joined"
	EventPlayerLeft    GameEventType = "player_left"
	EventMatchStarted  GameEventType = "match_started"
	EventMatchFinished GameEventType = "match_finished"
	EventMatchErrored  GameEventType = "match_errored"
	EventPlayerKilled  GameEventType = "player_killed"
	EventPowerUpTaken  GameEventType = "powerup_taken"
	EventDroppedInput  GameEventType = "dropped_input"
)

// GameEvent is a discrete occurrence within a match.
type GameEvent struct {
	Type    GameEventType  `json:"type"`
	Tick    uint64         `json:"tick"`
	TS      time.Time      `json:"ts"`
	Payload map[string]any `json:"payload,omitempty"`
}
