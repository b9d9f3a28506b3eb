package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/psenger/massive-multiplayer-arena/internal/game"
)

// NewRouter constructs the HTTP router. The function is pure: no
// goroutines, no listeners, safe under httptest.
func NewRouter(s *Server) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"matches": s.registry.Count(),
			"queued":  s.matchmaker.Len(),
		})
	})

	r.Get("/ws", s.HandleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Get("/matches", s.handleListMatches)
		r.Route("/matches/{id}", func(r chi.Router) {
			r.Get("/stats", s.handleMatchStats)
			r.Get("/replay", s.handleReplay)
			r.Get("/replay/at", s.handleReplayAt)
		})
	})

	return r
}

func (s *Server) handleListMatches(w http.ResponseWriter, r *http.Request) {
	matches := make([]game.MatchStats, 0, s.registry.Count())
	s.registry.Range(func(m *game.Match) bool {
		matches = append(matches, m.Stats())
		return true
	})
	writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
}

func (s *Server) handleMatchStats(w http.ResponseWriter, r *http.Request) {
	m := s.registry.Get(chi.URLParam(r, "id"))
	if m == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "not_found"})
		return
	}
	writeJSON(w, http.StatusOK, m.Stats())
}

func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	m := s.registry.Get(chi.URLParam(r, "id"))
	if m == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "not_found"})
		return
	}

	from := int64(0)
	if v := r.URL.Query().Get("from"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_input"})
			return
		}
		from = parsed
	}

	events := m.Room().Ring().Since(from)
	writeJSON(w, http.StatusOK, map[string]any{
		"match_id": m.ID,
		"events":   events,
		"stats":    m.Room().Ring().Stats(time.Now()),
	})
}

func (s *Server) handleReplayAt(w http.ResponseWriter, r *http.Request) {
	m := s.registry.Get(chi.URLParam(r, "id"))
	if m == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "not_found"})
		return
	}

	rel, err := strconv.ParseInt(r.URL.Query().Get("t"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_input"})
		return
	}

	snap, ok := m.Room().Ring().SnapshotAt(rel)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "not_found"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
