package api

import (
	"io"
	"net/http"
	"sync"
	"time"

	"rocket-arena/internal/game"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// EngineInterface defines the engine methods used by the API.
// This interface enables mocking for tests without spinning up the tick loop.
// Keep this minimal - only include methods the API layer actually calls.
type EngineInterface interface {
	// HUD returns the current display record
	HUD() game.HUD
	// GetSnapshot returns the latest lock-free immutable snapshot
	GetSnapshot() *game.Snapshot
	// StartSession begins a fresh run at wave 1
	StartSession()
	// Restart reinitializes the run
	Restart()
	// NextWave continues after a win; false from any other phase
	NextWave() bool
	// PurchaseAlly spends currency on an ally
	PurchaseAlly() game.PurchaseResult
	// SetInput replaces the held action set
	SetInput(in game.Input)
	// Submit queues a command for the next tick
	Submit(c game.Command) bool
}

// FrameRenderer draws a snapshot as PNG
type FrameRenderer interface {
	EncodePNG(w io.Writer, snap *game.Snapshot) error
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
// This struct is designed for dependency injection and testability.
//
// Example usage in tests:
//
//	cfg := api.RouterConfig{
//	    Engine: mockEngine,
//	    RateLimitConfig: &api.RateLimitConfig{
//	        Views:    api.Budget{PerSecond: 1000, Burst: 1000}, // High limits for tests
//	        Controls: api.Budget{PerSecond: 1000, Burst: 1000},
//	    },
//	}
//	router := api.NewRouter(cfg)
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Engine is the arena engine (required)
	Engine EngineInterface

	// Renderer serves /api/frame.png. If nil the route answers 503.
	Renderer FrameRenderer

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is optional configuration for the rate limiter.
	// Only used if RateLimiter is nil. If both are nil, uses DefaultRateLimitConfig.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins is an optional list of allowed CORS origins.
	// If nil, localhost origins are allowed.
	CORSOrigins []string

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

// routerHandlers holds the handler functions for the router.
type routerHandlers struct {
	engine   EngineInterface
	renderer FrameRenderer
	frameMu  sync.Mutex // Renderers reuse their drawing context
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// IMPORTANT: This function is PURE - it has no side effects:
//   - No goroutines are started
//   - No network listeners are opened
//   - No background workers are launched
//
// This makes it safe to use in tests with httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware - Order matters!
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	// Rate limiting (BEFORE CORS to reject early and save CPU)
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = []string{
			"http://localhost:*",
			"http://127.0.0.1:*",
		}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	h := &routerHandlers{
		engine:   cfg.Engine,
		renderer: cfg.Renderer,
	}

	r.Route("/api", func(r chi.Router) {
		// Read-only views
		r.Get("/hud", h.handleGetHUD)
		r.Get("/snapshot", h.handleGetSnapshot)
		r.Get("/frame.png", h.handleGetFrame)

		// Lifecycle controls
		r.Post("/session/start", h.handleSessionStart)
		r.Post("/session/restart", h.handleSessionRestart)
		r.Post("/session/next-wave", h.handleNextWave)

		// Shop
		r.Post("/shop/ally", h.handlePurchaseAlly)

		// Input
		r.Post("/input", h.handleInput)
		r.Post("/command", h.handleCommand)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	})

	return r
}

// metricsMiddleware records latency and status per route pattern
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				endpoint = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RecordRequest(r.Method, endpoint, status, time.Since(start))
	})
}
