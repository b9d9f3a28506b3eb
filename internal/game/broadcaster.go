package game

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"log"
	"time"

	"github.com/klauspost/compress/gzip"
)

// CompressThreshold is the payload size in bytes above which a delta
// body is gzip-compressed before framing. Keyframes are never compressed.
const CompressThreshold = 1024

// Subscriber is an endpoint receiving a match's delta and keyframe
// stream. Send must not block: it returns false when the subscriber
// is dead or its queue is full, and the broadcaster reaps it.
type Subscriber interface {
	ID() string
	Send(payload []byte) bool
}

// Broadcaster fans committed tick batches out to its subscriber set.
// It is owned by a single goroutine (the match loop, or the spectator
// room under its lock) and is not itself synchronized.
type Broadcaster struct {
	matchID string
	subs    map[string]Subscriber
}

// NewBroadcaster creates an empty broadcaster for one match.
func NewBroadcaster(matchID string) *Broadcaster {
	return &Broadcaster{matchID: matchID, subs: make(map[string]Subscriber)}
}

// Add registers a subscriber, replacing any previous one with the
// same id.
func (b *Broadcaster) Add(sub Subscriber) { b.subs[sub.ID()] = sub }

// Remove drops a subscriber by id.
func (b *Broadcaster) Remove(id string) { delete(b.subs, id) }

// Count returns the subscriber count.
func (b *Broadcaster) Count() int { return len(b.subs) }

// Fanout delivers one framed payload to every subscriber. Dead
// subscribers (failed send) are reaped without disturbing the rest
// and their ids returned.
func (b *Broadcaster) Fanout(payload []byte) []string {
	var dead []string
	for id, sub := range b.subs {
		if !sub.Send(payload) {
			dead = append(dead, id)
		}
	}
	for _, id := range dead {
		delete(b.subs, id)
		log.Printf("broadcaster %s: dropped slow subscriber %s", b.matchID, id)
	}
	return dead
}

// DeltaMessage frames one tick's compacted delta batch. When the
// serialized batch exceeds CompressThreshold the body is gzipped and
// the frame carries compressed=true with a base64 body.
func DeltaMessage(matchID string, tick uint64, ts time.Time, deltas []Delta) ([]byte, error) {
	body, err := json.Marshal(deltas)
	if err != nil {
		return nil, err
	}

	frame := map[string]any{
		"type":     "state_delta",
		"match_id": matchID,
		"tick":     tick,
		"ts":       ts.UnixMilli(),
	}
	if len(body) > CompressThreshold {
		packed, err := gzipBytes(body)
		if err != nil {
			return nil, err
		}
		frame["compressed"] = true
		frame["deltas"] = base64.StdEncoding.EncodeToString(packed)
	} else {
		frame["deltas"] = json.RawMessage(body)
	}
	return json.Marshal(frame)
}

// KeyframeMessage frames a full state snapshot.
func KeyframeMessage(matchID string, tick uint64, ts time.Time, snap *Snapshot) ([]byte, error) {
	return json.Marshal(map[string]any{
		"type":     "state_full",
		"match_id": matchID,
		"tick":     tick,
		"ts":       ts.UnixMilli(),
		"snapshot": snap,
	})
}

// EventMessage frames a match lifecycle event push.
func EventMessage(matchID string, typ GameEventType, payload map[string]any) ([]byte, error) {
	return json.Marshal(map[string]any{
		"type":     "match_event",
		"match_id": matchID,
		"event":    string(typ),
		"payload":  payload,
	})
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
