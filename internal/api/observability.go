package api

import (
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics with bounded cardinality (no per-player or per-match labels).
var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arena_tick_duration_seconds",
		Help:    "Time spent in one match tick pipeline",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.0166, 0.025, 0.05, 0.1},
	})

	activeMatches = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_active_matches",
		Help: "Currently running matches",
	})

	matchesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_matches_created_total",
		Help: "Matches created since start",
	})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_matchmaking_queue_depth",
		Help: "Players waiting across all matchmaking queues",
	})

	pairsEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_matchmaking_matches_total",
		Help: "Parties assembled by the matchmaker",
	})

	queueTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_matchmaking_timeouts_total",
		Help: "Queue entries expired by timeout",
	})

	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_websocket_messages_total",
		Help: "Total WebSocket messages received",
	})

	invalidInputs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_invalid_inputs_total",
		Help: "Client messages dropped for schema or rate violations",
	})

	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_connection_rejected_total",
		Help: "Connections rejected by limits",
	}, []string{"reason"}) // bounded: "ws_total_limit", "ws_ip_limit"
)

// RecordTick records one tick pipeline duration.
func RecordTick(d time.Duration) { tickDuration.Observe(d.Seconds()) }

// UpdateActiveMatches updates the live-match gauge.
func UpdateActiveMatches(n int) { activeMatches.Set(float64(n)) }

// RecordMatchCreated counts a new match.
func RecordMatchCreated() { matchesCreated.Inc() }

// UpdateQueueDepth updates the matchmaking depth gauge.
func UpdateQueueDepth(n int) { queueDepth.Set(float64(n)) }

// RecordPairEmitted counts an assembled party.
func RecordPairEmitted() { pairsEmitted.Inc() }

// RecordQueueTimeout counts an expired queue entry.
func RecordQueueTimeout() { queueTimeouts.Inc() }

// UpdateWSConnections updates the connection gauge.
func UpdateWSConnections(n int) { wsConnectionsActive.Set(float64(n)) }

// IncrementWSMessages counts a received client message.
func IncrementWSMessages() { wsMessagesTotal.Inc() }

// RecordInvalidInput counts a dropped client message.
func RecordInvalidInput() { invalidInputs.Inc() }

// RecordConnectionRejected increments the rejection counter.
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// ObservabilityConfig configures the debug server.
type ObservabilityConfig struct {
	Enabled    bool
	ListenAddr string // must stay on localhost in production
}

// DefaultObservabilityConfig returns safe defaults.
func DefaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060",
	}
}

// StartDebugServer starts the internal observability server with
// pprof and the Prometheus endpoint. It must bind to localhost only.
func StartDebugServer(cfg ObservabilityConfig) {
	if !cfg.Enabled {
		log.Println("debug server disabled")
		return
	}

	if cfg.ListenAddr != "127.0.0.1:6060" && cfg.ListenAddr != "localhost:6060" {
		if os.Getenv("ALLOW_DEBUG_EXTERNAL") != "true" {
			log.Println("debug server forced to localhost")
			cfg.ListenAddr = "127.0.0.1:6060"
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	go func() {
		log.Printf("debug server on %s (pprof, metrics)", cfg.ListenAddr)
		if err := http.ListenAndServe(cfg.ListenAddr, mux); err != nil {
			log.Printf("debug server error: %v", err)
		}
	}()
}
