package game

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"
	"time"
)

// stubSubscriber collects payloads; failAfter < 0 never fails. Safe
// for use from a running match loop.
type stubSubscriber struct {
	id string

	mu        sync.Mutex
	payloads  [][]byte
	failAfter int
}

func (s *stubSubscriber) ID() string { return s.id }

func (s *stubSubscriber) Send(payload []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAfter == 0 {
		return false
	}
	if s.failAfter > 0 {
		s.failAfter--
	}
	s.payloads = append(s.payloads, payload)
	return true
}

func (s *stubSubscriber) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payloads)
}

// TestFanoutReapsDeadSubscribers tests the slow-consumer rule
func TestFanoutReapsDeadSubscribers(t *testing.T) {
	b := NewBroadcaster("m")
	healthy := &stubSubscriber{id: "ok", failAfter: -1}
	dead := &stubSubscriber{id: "dead", failAfter: 0}
	b.Add(healthy)
	b.Add(dead)

	reaped := b.Fanout([]byte("tick"))
	if len(reaped) != 1 || reaped[0] != "dead" {
		t.Fatalf("expected dead subscriber reaped, got %v", reaped)
	}
	if b.Count() != 1 {
		t.Errorf("expected 1 subscriber left, got %d", b.Count())
	}

	// The healthy subscriber keeps receiving.
	b.Fanout([]byte("tick2"))
	if healthy.count() != 2 {
		t.Errorf("healthy subscriber should have 2 payloads, got %d", len(healthy.payloads))
	}
}

// TestDeltaMessageSmallUncompressed tests that small batches are
// framed as plain JSON
func TestDeltaMessageSmallUncompressed(t *testing.T) {
	payload, err := DeltaMessage("m1", 7, time.Now(), []Delta{
		{Kind: DeltaPlayerLeft, EntityID: "p1"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var frame map[string]any
	if err := json.Unmarshal(payload, &frame); err != nil {
		t.Fatalf("frame is not valid JSON: %v", err)
	}
	if frame["type"] != "state_delta" {
		t.Errorf("expected type state_delta, got %v", frame["type"])
	}
	if frame["match_id"] != "m1" {
		t.Errorf("expected match_id m1, got %v", frame["match_id"])
	}
	if _, compressed := frame["compressed"]; compressed {
		t.Error("small payload must not be compressed")
	}
}

// TestDeltaMessageCompression tests that large batches are gzipped
// and flagged, and that the body round-trips
func TestDeltaMessageCompression(t *testing.T) {
	filler := strings.Repeat("x", 64)
	batch := make([]Delta, 0, 64)
	for i := 0; i < 64; i++ {
		batch = append(batch, Delta{
			Kind:     DeltaPlayerUpdated,
			EntityID: filler,
			Changes:  map[string]any{"pos": Vec2{X: float64(i), Y: float64(i)}},
		})
	}

	payload, err := DeltaMessage("m1", 9, time.Now(), batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var frame struct {
		Type       string `json:"type"`
		Compressed bool   `json:"compressed"`
		Deltas     string `json:"deltas"`
	}
	if err := json.Unmarshal(payload, &frame); err != nil {
		t.Fatalf("frame is not valid JSON: %v", err)
	}
	if !frame.Compressed {
		t.Fatal("large payload should carry the compressed flag")
	}

	packed, err := base64.StdEncoding.DecodeString(frame.Deltas)
	if err != nil {
		t.Fatalf("body is not base64: %v", err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(packed))
	if err != nil {
		t.Fatalf("body is not gzip: %v", err)
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("decompress failed: %v", err)
	}

	var decoded []Delta
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decompressed body is not a delta batch: %v", err)
	}
	if len(decoded) != 64 {
		t.Errorf("expected 64 deltas after round-trip, got %d", len(decoded))
	}
}

// TestKeyframeMessage tests the full-state frame shape
func TestKeyframeMessage(t *testing.T) {
	s := testState()
	now := time.Now()
	s.AddPlayer(NewPlayer("p", now))

	payload, err := KeyframeMessage("m1", 3, now, s.Snapshot())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var frame struct {
		Type     string    `json:"type"`
		Tick     uint64    `json:"tick"`
		Snapshot *Snapshot `json:"snapshot"`
	}
	if err := json.Unmarshal(payload, &frame); err != nil {
		t.Fatalf("frame is not valid JSON: %v", err)
	}
	if frame.Type != "state_full" {
		t.Errorf("expected state_full, got %s", frame.Type)
	}
	if frame.Tick != 3 {
		t.Errorf("expected tick 3, got %d", frame.Tick)
	}
	if frame.Snapshot == nil || len(frame.Snapshot.Players) != 1 {
		t.Error("keyframe should embed the serialized players")
	}
}
