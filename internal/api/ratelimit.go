package api

import (
	"net"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

const (
	// MaxWSConnectionsTotal caps concurrent WebSocket connections.
	MaxWSConnectionsTotal = 2000

	// MaxWSConnectionsPerIP caps WebSocket connections per source IP.
	MaxWSConnectionsPerIP = 10

	// InputRatePerSec is the per-connection input message budget.
	InputRatePerSec = 120
	InputBurst      = 30
)

// ConnLimiter tracks WebSocket connection slots per IP.
type ConnLimiter struct {
	mu     sync.Mutex
	perIP  map[string]int
	maxPer int
}

// NewConnLimiter creates a per-IP connection limiter.
func NewConnLimiter(maxPerIP int) *ConnLimiter {
	return &ConnLimiter{perIP: make(map[string]int), maxPer: maxPerIP}
}

// Allow reserves a slot for the IP. Release must be called when the
// connection closes.
func (l *ConnLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.perIP[ip] >= l.maxPer {
		return false
	}
	l.perIP[ip]++
	return true
}

// Release frees a slot for the IP.
func (l *ConnLimiter) Release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n := l.perIP[ip]; n <= 1 {
		delete(l.perIP, ip)
	} else {
		l.perIP[ip] = n - 1
	}
}

// newInputLimiter builds the per-connection input flood limiter.
func newInputLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(InputRatePerSec), InputBurst)
}

// GetClientIP extracts the client IP, honoring X-Forwarded-For from
// the reverse proxy.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
