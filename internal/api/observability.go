package api

import (
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"time"

	"rocket-arena/internal/game"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics with bounded cardinality (labels only take enum values)
var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arena_tick_duration_seconds",
		Help:    "Time spent in a simulation tick including event dispatch",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.016},
	})

	renderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arena_render_duration_seconds",
		Help:    "Time spent rendering a PNG frame",
		Buckets: []float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1},
	})

	carCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_cars",
		Help: "Live cars in the current wave",
	})

	allyCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_allies",
		Help: "Live allies",
	})

	waveGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_wave",
		Help: "Current wave number",
	})

	currencyGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_currency",
		Help: "Persisted currency balance",
	})

	simEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_events_total",
		Help: "Simulation events by type",
	}, []string{"type"})

	sessionOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_session_outcomes_total",
		Help: "Finished waves by outcome",
	}, []string{"outcome"}) // Bounded: "won", "lost_lives", "lost_timer"

	purchases = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_ally_purchases_total",
		Help: "Ally purchase attempts by result",
	}, []string{"result"})

	// DoS detection metrics - use ONLY bounded label values
	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections rejected by rate limiter or origin check",
	}, []string{"reason"}) // Bounded: "rate_limit", "origin", "ws_total_limit", "ws_ip_limit"

	rateLimitDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_rate_limit_decisions_total",
		Help: "HTTP rate limit decisions by request class",
	}, []string{"class", "result"}) // Bounded: view|control, allowed|rejected

	rateLimitClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_rate_limit_clients",
		Help: "Client IPs currently holding a rate limit budget",
	})

	// HTTP metrics with bounded labels
	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"}) // endpoint is path pattern, not full URL

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "Total WebSocket messages sent",
	})
)

// EventLogStats is the subset of the engine the event log gauges read
type EventLogStats interface {
	GetEventLogStats() map[string]interface{}
}

// ObservabilityConfig configures the debug server
type ObservabilityConfig struct {
	Enabled       bool
	ListenAddr    string // MUST be "127.0.0.1:6060" in production
	BasicAuthUser string // Optional basic auth
	BasicAuthPass string
}

// DefaultObservabilityConfig returns safe defaults
func DefaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060", // Localhost only - NEVER expose externally
	}
}

// RegisterEventLogGauges exposes the engine's event log counters
func RegisterEventLogGauges(src EventLogStats) {
	read := func(key string) func() float64 {
		return func() float64 {
			if v, ok := src.GetEventLogStats()[key].(uint64); ok {
				return float64(v)
			}
			return 0
		}
	}
	prometheus.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "event_log_total",
			Help: "Total records accepted by the event log",
		}, read("total")),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "event_log_dropped_total",
			Help: "Records dropped due to rate limiting or buffer overflow",
		}, read("dropped")),
	)
}

// StartDebugServer starts the internal observability server
// CRITICAL: This MUST bind to localhost only to prevent pprof-based DoS
func StartDebugServer(cfg ObservabilityConfig) error {
	if !cfg.Enabled {
		log.Println("📊 Debug server disabled")
		return nil
	}

	if cfg.ListenAddr != "127.0.0.1:6060" && cfg.ListenAddr != "localhost:6060" {
		if os.Getenv("ALLOW_DEBUG_EXTERNAL") != "true" {
			log.Println("⚠️ Debug server forced to localhost for security")
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

	var handler http.Handler = mux
	if cfg.BasicAuthUser != "" {
		handler = basicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass, mux)
	}

	go func() {
		log.Printf("📊 Debug server starting on %s", cfg.ListenAddr)
		log.Printf("   - pprof:   http://%s/debug/pprof/", cfg.ListenAddr)
		log.Printf("   - metrics: http://%s/metrics", cfg.ListenAddr)

		if err := http.ListenAndServe(cfg.ListenAddr, handler); err != nil {
			log.Printf("⚠️ Debug server error: %v", err)
		}
	}()

	return nil
}

// basicAuthMiddleware adds basic authentication to the handler
func basicAuthMiddleware(user, pass string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="debug"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RecordTick records tick timing and the HUD gauges
func RecordTick(duration time.Duration, hud game.HUD) {
	tickDuration.Observe(duration.Seconds())
	carCount.Set(float64(hud.Cars))
	allyCount.Set(float64(hud.Allies))
	waveGauge.Set(float64(hud.Wave))
	currencyGauge.Set(float64(hud.Currency))
}

// RecordEvent counts a simulation event and any session outcome it carries
func RecordEvent(ev game.Event) {
	simEvents.WithLabelValues(ev.Type.String()).Inc()

	switch ev.Type {
	case game.EventTypeSessionWon:
		sessionOutcomes.WithLabelValues("won").Inc()
	case game.EventTypeSessionLost:
		if ev.Value == game.LoseReasonTimer {
			sessionOutcomes.WithLabelValues("lost_timer").Inc()
		} else {
			sessionOutcomes.WithLabelValues("lost_lives").Inc()
		}
	}
}

// RecordPurchase counts an ally purchase attempt
func RecordPurchase(result game.PurchaseResult) {
	purchases.WithLabelValues(result.String()).Inc()
}

// RecordRender records render timing for metrics
func RecordRender(duration time.Duration) {
	renderDuration.Observe(duration.Seconds())
}

// RecordConnectionRejected increments the rejection counter
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordRateLimit counts one rate limit decision
func RecordRateLimit(class string, allowed bool) {
	result := "allowed"
	if !allowed {
		result = "rejected"
	}
	rateLimitDecisions.WithLabelValues(class, result).Inc()
}

// UpdateRateLimitClients sets the number of tracked client IPs
func UpdateRateLimitClients(n int) {
	rateLimitClients.Set(float64(n))
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, endpoint string, status int, duration time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	requestTotal.WithLabelValues(method, endpoint, http.StatusText(status)).Inc()
}

// UpdateWSConnections updates WebSocket connection count
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

// IncrementWSMessages increments WebSocket message counter
func IncrementWSMessages() {
	wsMessagesTotal.Inc()
}
