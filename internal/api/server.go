package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"rocket-arena/internal/config"
	"rocket-arena/internal/game"

	"github.com/go-chi/chi/v5"
)

// Server is the HTTP API server with WebSocket support.
// It combines the HTTP router with WebSocket hub for real-time updates.
type Server struct {
	engine      *game.Engine
	cfg         config.ServerConfig
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *IPRateLimiter
	httpServer  *http.Server
}

// NewServer creates a new API server around a running engine.
//
// IMPORTANT: Background workers do NOT start until Start() is called.
// Tests can construct the server and use Router() without goroutines.
//
// For testing HTTP endpoints without WebSocket support, use NewRouter() directly.
func NewServer(engine *game.Engine, renderer FrameRenderer, cfg config.ServerConfig) *Server {
	s := &Server{
		engine: engine,
		cfg:    cfg,
		wsHub:  NewWebSocketHub(engine),
	}

	s.rateLimiter = NewIPRateLimiter(DefaultRateLimitConfig)

	s.router = NewRouter(RouterConfig{
		Engine:      engine,
		Renderer:    renderer,
		RateLimiter: s.rateLimiter,
	})

	// The hub needs its own instance, so /ws cannot live in NewRouter
	s.router.Get("/ws", s.wsHub.HandleWebSocket)

	return s
}

// Start wires engine callbacks, starts the hub workers and serves HTTP.
// It blocks until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.engine.SetEventHandler(func(ev game.Event) {
		RecordEvent(ev)
		if ev.Type != game.EventTypeProjectileFired {
			s.wsHub.Broadcast(EventSim, ev)
		}
	})
	s.engine.SetTickHandler(func(elapsed time.Duration, hud game.HUD) {
		RecordTick(elapsed, hud)
	})
	s.engine.SetHUDSink(s.wsHub)

	go s.wsHub.Run()
	s.wsHub.StartBroadcastLoop(s.cfg.BroadcastRate)

	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("🌐 API server starting on %s", addr)
	log.Printf("🎮 Arena viewer: ws://localhost%s/ws", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Router returns the HTTP handler for use with httptest.
func (s *Server) Router() http.Handler {
	return s.router
}

// Hub returns the WebSocket hub
func (s *Server) Hub() *WebSocketHub {
	return s.wsHub
}

// Shutdown stops accepting requests and closes every viewer connection
func (s *Server) Shutdown(ctx context.Context) error {
	s.Stop()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Stop performs graceful shutdown of background workers.
func (s *Server) Stop() {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	s.wsHub.Stop()
	s.engine.SetEventHandler(nil)
	s.engine.SetTickHandler(nil)
	s.engine.SetHUDSink(nil)
}
