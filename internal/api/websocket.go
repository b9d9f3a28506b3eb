package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/psenger/massive-multiplayer-arena/internal/config"
	"github.com/psenger/massive-multiplayer-arena/internal/game"
	"github.com/psenger/massive-multiplayer-arena/internal/matchmaking"
)

const (
	sendQueueSize  = 256
	writeDeadline  = 10 * time.Second
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Session issuance lives behind the reverse proxy; origin
		// enforcement happens there.
		return true
	},
}

// Server owns the protocol boundary: it upgrades connections,
// translates JSON messages into match and matchmaker operations, and
// pushes state streams back out.
type Server struct {
	cfg        config.AppConfig
	registry   *game.Registry
	matchmaker *matchmaking.Matchmaker
	limiter    *ConnLimiter

	mu    sync.Mutex
	conns map[string]*Conn // by player id once identified
	total int
}

// NewServer wires the registry and a matchmaker configured from cfg.
func NewServer(cfg config.AppConfig, registry *game.Registry) *Server {
	s := &Server{
		cfg:      cfg,
		registry: registry,
		limiter:  NewConnLimiter(MaxWSConnectionsPerIP),
		conns:    make(map[string]*Conn),
	}

	s.matchmaker = matchmaking.New(matchmaking.Config{
		TickInterval:     cfg.Matchmaking.TickInterval,
		BaseSkillTol:     cfg.Matchmaking.BaseSkillTol,
		MaxSkillTol:      cfg.Matchmaking.MaxSkillTol,
		SkillWidenPerSec: 10,
		LatencyTol:       cfg.Matchmaking.LatencyTol,
		QueueTimeout:     cfg.Matchmaking.QueueTimeout,
	}, nil, nil, s.onMatchFound, s.onQueueTimeout)

	return s
}

// Matchmaker exposes the pairing pipeline for lifecycle control.
func (s *Server) Matchmaker() *matchmaking.Matchmaker { return s.matchmaker }

// matchConfig builds the per-match configuration from app settings.
func (s *Server) matchConfig() game.MatchConfig {
	return game.MatchConfig{
		TickHz:            s.cfg.Match.TickHz,
		MinPlayers:        s.cfg.Match.MinPlayers,
		MaxPlayers:        s.cfg.Match.MaxPlayers,
		MaxSpectators:     s.cfg.Broadcast.MaxSpectators,
		ScoreLimit:        s.cfg.Match.ScoreLimit,
		TimeLimit:         s.cfg.Match.TimeLimit,
		Bounds:            game.Bounds{W: s.cfg.World.Width, H: s.cfg.World.Height},
		Friction:          s.cfg.World.Friction,
		MaxVelocity:       s.cfg.World.MaxVelocity,
		RegenDelay:        s.cfg.Match.RegenDelay,
		FullStateInterval: s.cfg.Broadcast.FullStateInterval,
		EmptyReapDelay:    s.cfg.Match.EmptyReapDelay,
		GridCellSize:      s.cfg.Match.GridCellSize,
		Replay: game.ReplayOptions{
			MaxEvents:      s.cfg.Replay.MaxSnapshots,
			Retention:      s.cfg.Replay.Retention,
			SampleInterval: s.cfg.Replay.SnapshotInterval,
			SweepInterval:  s.cfg.Replay.SweepInterval,
		},
	}
}

// newMatch constructs a match wired to the telemetry boundary and
// registry reaping.
func (s *Server) newMatch(id string) *game.Match {
	return game.NewMatch(id, s.matchConfig(), game.MatchHooks{
		OnTick: RecordTick,
		OnStop: func(m *game.Match) {
			s.registry.Remove(m.ID)
			UpdateActiveMatches(s.registry.Count())
		},
	})
}

// CreateMatch creates (or returns) a match by id. Creation is
// idempotent through the registry.
func (s *Server) CreateMatch(id string) *game.Match {
	m, created := s.registry.GetOrCreate(id, func() *game.Match { return s.newMatch(id) })
	if created {
		RecordMatchCreated()
		UpdateActiveMatches(s.registry.Count())
	}
	return m
}

// onMatchFound materializes a matchmaker party into a live match. On
// creation failure the players return to the head of their queue with
// their original join times.
func (s *Server) onMatchFound(f matchmaking.MatchFound) {
	RecordPairEmitted()
	UpdateQueueDepth(s.matchmaker.Len())

	m := s.CreateMatch(f.GameID)

	joined := make([]string, 0, len(f.Players))
	var failed bool
	for _, qe := range f.Players {
		c := s.connFor(qe.PlayerID)
		var sub game.Subscriber
		if c != nil {
			sub = c
		}
		if _, err := m.Join(qe.PlayerID, qe.Rating, sub); err != nil {
			log.Printf("match %s: creation join failed for %s: %v", f.GameID, qe.PlayerID, err)
			failed = true
			break
		}
		joined = append(joined, qe.PlayerID)
	}

	if failed {
		for _, pid := range joined {
			_ = m.Leave(pid)
		}
		s.matchmaker.ReturnToFront(f.Players)
		for _, qe := range f.Players {
			if c := s.connFor(qe.PlayerID); c != nil {
				c.Send(matchCreateFailedMessage())
			}
		}
		return
	}

	for _, qe := range f.Players {
		if c := s.connFor(qe.PlayerID); c != nil {
			c.attachMatch(m)
			c.Send(matchFoundMessage(f.GameID, "player"))
		}
	}
}

// onQueueTimeout pushes queue_expired; the client may re-enqueue.
func (s *Server) onQueueTimeout(e matchmaking.QueueEntry) {
	RecordQueueTimeout()
	UpdateQueueDepth(s.matchmaker.Len())
	if c := s.connFor(e.PlayerID); c != nil {
		c.Send(queueExpiredMessage())
	}
}

func (s *Server) register(playerID string, c *Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[playerID] = c
}

func (s *Server) unregister(playerID string, c *Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns[playerID] == c {
		delete(s.conns, playerID)
	}
}

func (s *Server) connFor(playerID string) *Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns[playerID]
}

// HandleWebSocket upgrades a client connection and runs its pumps.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)

	s.mu.Lock()
	total := s.total
	s.mu.Unlock()
	if total >= MaxWSConnectionsTotal {
		RecordConnectionRejected("ws_total_limit")
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}
	if !s.limiter.Allow(ip) {
		RecordConnectionRejected("ws_ip_limit")
		http.Error(w, "too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.limiter.Release(ip)
		log.Printf("websocket upgrade error: %v", err)
		return
	}

	c := &Conn{
		id:      fmt.Sprintf("conn_%d", time.Now().UnixNano()),
		ws:      ws,
		srv:     s,
		ip:      ip,
		send:    make(chan []byte, sendQueueSize),
		closed:  make(chan struct{}),
		limiter: newInputLimiter(),
	}

	s.mu.Lock()
	s.total++
	UpdateWSConnections(s.total)
	s.mu.Unlock()

	go c.writePump()
	go c.readPump()
}

// Conn is one client connection. It implements game.Subscriber: Send
// never blocks, and a full queue marks the subscriber dead so the
// broadcaster drops it (slow consumer rule).
type Conn struct {
	id  string
	ws  *websocket.Conn
	srv *Server
	ip  string

	send      chan []byte
	closed    chan struct{}
	closeOnce sync.Once
	limiter   *rate.Limiter

	mu          sync.Mutex
	playerID    string
	spectatorID string
	match       *game.Match
	spectating  *game.Match
	latency     int
}

// ID identifies this connection in subscriber sets: the player id
// once identified, otherwise the connection id.
func (c *Conn) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playerID != "" {
		return c.playerID
	}
	return c.id
}

// Send queues a payload without blocking. False means dead or slow.
func (c *Conn) Send(payload []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Conn) attachMatch(m *game.Match) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.match = m
}

func (c *Conn) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.ws.Close()
	})
}

// writePump drains the send queue onto the socket.
func (c *Conn) writePump() {
	for {
		select {
		case payload := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.close()
				return
			}
		case <-c.closed:
			return
		}
	}
}

// readPump parses client messages and dispatches them. Invalid input
// is logged and dropped without a reply.
func (c *Conn) readPump() {
	defer c.teardown()

	c.ws.SetReadLimit(maxMessageSize)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		IncrementWSMessages()

		if !c.limiter.Allow() {
			RecordInvalidInput()
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			RecordInvalidInput()
			log.Printf("conn %s: malformed message dropped", c.id)
			continue
		}
		c.handle(msg)
	}
}

// teardown releases everything this connection touched.
func (c *Conn) teardown() {
	c.close()

	c.mu.Lock()
	playerID := c.playerID
	spectatorID := c.spectatorID
	match := c.match
	spectating := c.spectating
	c.mu.Unlock()

	if playerID != "" {
		if match != nil {
			_ = match.Leave(playerID)
		}
		c.srv.matchmaker.Dequeue(playerID)
		UpdateQueueDepth(c.srv.matchmaker.Len())
		c.srv.unregister(playerID, c)
	}
	if spectating != nil && spectatorID != "" {
		_ = spectating.Room().Leave(spectatorID)
	}

	c.srv.limiter.Release(c.ip)
	c.srv.mu.Lock()
	c.srv.total--
	UpdateWSConnections(c.srv.total)
	c.srv.mu.Unlock()
}

func (c *Conn) handle(msg ClientMessage) {
	switch msg.Type {
	case "join_match":
		c.handleJoin(msg)
	case "input":
		c.handleInput(msg)
	case "spectate":
		c.handleSpectate(msg)
	case "ping":
		c.handlePing(msg)
	case "queue_join":
		c.handleQueueJoin(msg)
	case "queue_leave":
		c.handleQueueLeave(msg)
	default:
		RecordInvalidInput()
	}
}

func (c *Conn) handleJoin(msg ClientMessage) {
	if msg.MatchID == "" || msg.PlayerID == "" {
		RecordInvalidInput()
		return
	}
	m := c.srv.registry.Get(msg.MatchID)
	if m == nil {
		c.Send(errorMessage("not_found"))
		return
	}

	// Identify first so the subscriber is keyed by the player id the
	// match uses on leave.
	c.mu.Lock()
	c.playerID = msg.PlayerID
	c.mu.Unlock()

	rating := c.srv.matchmaker.Ratings().Get(msg.PlayerID, time.Now())
	if _, err := m.Join(msg.PlayerID, rating.Rating, c); err != nil {
		c.Send(errorMessage(reasonFor(err)))
		return
	}

	c.attachMatch(m)
	c.srv.register(msg.PlayerID, c)
	c.Send(joinedMessage(msg.MatchID, msg.PlayerID))
}

func (c *Conn) handleInput(msg ClientMessage) {
	c.mu.Lock()
	match := c.match
	playerID := c.playerID
	c.mu.Unlock()

	if match == nil || playerID == "" || msg.Action == "" {
		RecordInvalidInput()
		return
	}

	var params InputParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			RecordInvalidInput()
			return
		}
	}

	_ = match.SubmitInput(game.Input{
		PlayerID: playerID,
		Action:   game.Action(msg.Action),
		TargetID: params.TargetID,
		Target:   game.Vec2{X: params.X, Y: params.Y},
		Ability:  params.Ability,
		ClientTS: msg.ClientTS,
	})
}

func (c *Conn) handleSpectate(msg ClientMessage) {
	if msg.MatchID == "" {
		RecordInvalidInput()
		return
	}
	m := c.srv.registry.Get(msg.MatchID)
	if m == nil {
		c.Send(errorMessage("not_found"))
		return
	}

	specID := c.ID()
	if err := m.Room().Join(c); err != nil {
		c.Send(errorMessage(reasonFor(err)))
		return
	}

	c.mu.Lock()
	c.spectatorID = specID
	c.spectating = m
	c.mu.Unlock()
	c.Send(welcomeMessage(specID, msg.MatchID))
}

func (c *Conn) handlePing(msg ClientMessage) {
	now := time.Now()
	if msg.TS > 0 {
		// One-way delay estimate from the client clock; good enough
		// for the matchmaking latency gate.
		lat := now.UnixMilli() - msg.TS
		if lat < 0 {
			lat = 0
		}
		if lat > 999 {
			lat = 999
		}
		c.mu.Lock()
		c.latency = int(lat)
		c.mu.Unlock()
	}
	c.Send(pongMessage(msg.TS, now))
}

func (c *Conn) handleQueueJoin(msg ClientMessage) {
	if msg.PlayerID == "" || msg.Mode == "" || msg.Region == "" {
		RecordInvalidInput()
		return
	}

	c.mu.Lock()
	latency := c.latency
	c.mu.Unlock()

	pos, err := c.srv.matchmaker.Enqueue(msg.PlayerID,
		matchmaking.Mode(msg.Mode), matchmaking.Region(msg.Region), latency)
	if err != nil {
		c.Send(errorMessage(reasonFor(err)))
		return
	}

	c.mu.Lock()
	c.playerID = msg.PlayerID
	c.mu.Unlock()
	c.srv.register(msg.PlayerID, c)
	UpdateQueueDepth(c.srv.matchmaker.Len())
	c.Send(queuedMessage(pos))
}

func (c *Conn) handleQueueLeave(msg ClientMessage) {
	if msg.PlayerID == "" {
		RecordInvalidInput()
		return
	}
	c.srv.matchmaker.Dequeue(msg.PlayerID)
	UpdateQueueDepth(c.srv.matchmaker.Len())
	c.Send(leftMessage())
}
