package api

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/psenger/massive-multiplayer-arena/internal/game"
	"github.com/psenger/massive-multiplayer-arena/internal/matchmaking"
)

// ClientMessage is the envelope for every client -> server message,
// keyed by Type. Unused fields stay empty per message kind.
type ClientMessage struct {
	Type     string          `json:"type"`
	MatchID  string          `json:"match_id,omitempty"`
	PlayerID string          `json:"player_id,omitempty"`
	Action   string          `json:"action,omitempty"`
	Params   json.RawMessage `json:"params,omitempty"`
	ClientTS int64           `json:"client_ts,omitempty"`
	Mode     string          `json:"mode,omitempty"`
	Region   string          `json:"region,omitempty"`
	TS       int64           `json:"ts,omitempty"`
}

// InputParams is the payload of an input message.
type InputParams struct {
	TargetID string  `json:"target_id,omitempty"`
	X        float64 `json:"x,omitempty"`
	Y        float64 `json:"y,omitempty"`
	Ability  string  `json:"ability,omitempty"`
}

// Server -> client reply and push frames. Marshal errors on these
// fixed shapes cannot happen, so builders return bytes directly.

func joinedMessage(matchID, playerID string) []byte {
	b, _ := json.Marshal(map[string]any{
		"type": "joined", "match_id": matchID, "player_id": playerID,
	})
	return b
}

func welcomeMessage(spectatorID, matchID string) []byte {
	b, _ := json.Marshal(map[string]any{
		"type": "welcome", "spectator_id": spectatorID, "match_id": matchID,
	})
	return b
}

func errorMessage(reason string) []byte {
	b, _ := json.Marshal(map[string]any{"type": "error", "reason": reason})
	return b
}

func pongMessage(clientTS int64, now time.Time) []byte {
	b, _ := json.Marshal(map[string]any{
		"type": "pong", "ts": clientTS, "server_ts": now.UnixMilli(),
	})
	return b
}

func queuedMessage(position int) []byte {
	b, _ := json.Marshal(map[string]any{"type": "queued", "position": position})
	return b
}

func leftMessage() []byte {
	b, _ := json.Marshal(map[string]any{"type": "left"})
	return b
}

func matchFoundMessage(matchID, role string) []byte {
	b, _ := json.Marshal(map[string]any{
		"type": "match_found", "match_id": matchID, "role": role,
	})
	return b
}

func queueExpiredMessage() []byte {
	b, _ := json.Marshal(map[string]any{"type": "queue_expired"})
	return b
}

func matchCreateFailedMessage() []byte {
	b, _ := json.Marshal(map[string]any{"type": "error", "reason": "match_create_failed"})
	return b
}

// reasonFor maps component errors to wire reason strings.
func reasonFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, game.ErrMatchFull):
		return "game_full"
	case errors.Is(err, game.ErrAlreadyJoined):
		return "already_joined"
	case errors.Is(err, game.ErrMatchFinished):
		return "match_finished"
	case errors.Is(err, game.ErrSpectatorsFull):
		return "spectators_full"
	case errors.Is(err, game.ErrOperationPending):
		return "operation_pending"
	case errors.Is(err, matchmaking.ErrAlreadyQueued):
		return "already_queued"
	case errors.Is(err, matchmaking.ErrNotQueued):
		return "not_in_queue"
	default:
		return "internal_error"
	}
}
