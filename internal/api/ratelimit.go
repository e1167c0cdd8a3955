package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Budget is a per-client token bucket
type Budget struct {
	PerSecond float64 // Sustained requests per second
	Burst     int
}

func (b Budget) limiter() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(b.PerSecond), b.Burst)
}

// RateLimitConfig gives read-only views and controls separate budgets, so a
// client polling frames can never starve its own input posts.
type RateLimitConfig struct {
	Views           Budget        // GET: hud, snapshot, frame, health
	Controls        Budget        // POST: input, commands, lifecycle, shop
	CleanupInterval time.Duration // How often idle clients are forgotten
}

// DefaultRateLimitConfig lets a browser post held input once per tick while
// polling views at a modest rate.
var DefaultRateLimitConfig = RateLimitConfig{
	Views:           Budget{PerSecond: 20, Burst: 40},
	Controls:        Budget{PerSecond: 60, Burst: 120},
	CleanupInterval: 5 * time.Minute,
}

// Request classes, also used as metric labels
const (
	classView    = "view"
	classControl = "control"
)

// requestClass sorts a request into a budget by method
func requestClass(r *http.Request) string {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return classView
	default:
		return classControl
	}
}

// clientBudgets holds one client's buckets
type clientBudgets struct {
	view     *rate.Limiter
	control  *rate.Limiter
	lastSeen atomic.Int64 // UnixNano
}

// IPRateLimiter applies per-IP view and control budgets to HTTP requests
type IPRateLimiter struct {
	clients  sync.Map // map[string]*clientBudgets
	tracked  atomic.Int64
	config   RateLimitConfig
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewIPRateLimiter creates a limiter. A positive CleanupInterval starts the
// goroutine that forgets idle clients; call Stop to end it.
func NewIPRateLimiter(cfg RateLimitConfig) *IPRateLimiter {
	rl := &IPRateLimiter{
		config:   cfg,
		stopChan: make(chan struct{}),
	}
	if cfg.CleanupInterval > 0 {
		go rl.cleanupLoop()
	}
	return rl
}

// Stop stops the cleanup goroutine
func (rl *IPRateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopChan)
	})
}

func (rl *IPRateLimiter) budgets(ip string) *clientBudgets {
	now := time.Now().UnixNano()
	if v, ok := rl.clients.Load(ip); ok {
		c := v.(*clientBudgets)
		c.lastSeen.Store(now)
		return c
	}

	c := &clientBudgets{
		view:    rl.config.Views.limiter(),
		control: rl.config.Controls.limiter(),
	}
	c.lastSeen.Store(now)
	actual, loaded := rl.clients.LoadOrStore(ip, c)
	if !loaded {
		UpdateRateLimitClients(int(rl.tracked.Add(1)))
	}
	return actual.(*clientBudgets)
}

func (rl *IPRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopChan:
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

// cleanup forgets clients idle for two intervals
func (rl *IPRateLimiter) cleanup() {
	cutoff := time.Now().Add(-2 * rl.config.CleanupInterval).UnixNano()
	rl.clients.Range(func(key, value interface{}) bool {
		if value.(*clientBudgets).lastSeen.Load() < cutoff {
			rl.clients.Delete(key)
			rl.tracked.Add(-1)
		}
		return true
	})
	UpdateRateLimitClients(int(rl.tracked.Load()))
}

// Allow spends one token of the class budget for ip
func (rl *IPRateLimiter) Allow(ip, class string) bool {
	c := rl.budgets(ip)
	limiter := c.view
	if class == classControl {
		limiter = c.control
	}
	allowed := limiter.Allow()
	RecordRateLimit(class, allowed)
	return allowed
}

// Middleware rejects requests over their class budget with 429
func (rl *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(GetClientIP(r), requestClass(r)) {
			RecordConnectionRejected("rate_limit")
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetClientIP extracts the client IP, preferring proxy headers.
// The headers can be spoofed unless a trusted proxy sets them.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// WebSocketRateLimiter caps concurrent WebSocket connections per IP
type WebSocketRateLimiter struct {
	connections sync.Map // map[string]*atomic.Int32
	maxPerIP    int32
}

// NewWebSocketRateLimiter creates a connection limiter
func NewWebSocketRateLimiter(maxPerIP int) *WebSocketRateLimiter {
	return &WebSocketRateLimiter{maxPerIP: int32(maxPerIP)}
}

// Allow reserves a connection slot for ip
func (wrl *WebSocketRateLimiter) Allow(ip string) bool {
	actual, _ := wrl.connections.LoadOrStore(ip, new(atomic.Int32))
	counter := actual.(*atomic.Int32)

	for {
		current := counter.Load()
		if current >= wrl.maxPerIP {
			return false
		}
		if counter.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

// Release frees a slot reserved by Allow
func (wrl *WebSocketRateLimiter) Release(ip string) {
	if v, ok := wrl.connections.Load(ip); ok {
		v.(*atomic.Int32).Add(-1)
	}
}

// GetConnectionCount returns the open connections for ip
func (wrl *WebSocketRateLimiter) GetConnectionCount(ip string) int {
	if v, ok := wrl.connections.Load(ip); ok {
		return int(v.(*atomic.Int32).Load())
	}
	return 0
}

// AllowedOrigins lists extra exact origins accepted for WebSocket upgrades.
// Localhost and 127.0.0.1 on any port are always accepted.
var AllowedOrigins = []string{}

// IsAllowedOrigin checks if an origin may open a WebSocket.
// An empty origin (non-browser client) is allowed.
func IsAllowedOrigin(origin string) bool {
	if origin == "" {
		return true
	}

	for _, prefix := range []string{"http://localhost", "http://127.0.0.1", "https://localhost"} {
		if origin == prefix || strings.HasPrefix(origin, prefix+":") {
			return true
		}
	}

	for _, allowed := range AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}
