package api

import (
	"bytes"
	"encoding/json"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"rocket-arena/internal/game"
	"rocket-arena/internal/render"
)

// ============================================================================
// Mock Implementations
// ============================================================================

// mockEngine implements EngineInterface without a tick loop
type mockEngine struct {
	mu        sync.Mutex
	hud       game.HUD
	snap      game.Snapshot
	input     game.Input
	submitted []game.Command
	queueFull bool
	starts    int
	restarts  int
	purchase  game.PurchaseResult
}

func newMockEngine() *mockEngine {
	return &mockEngine{
		hud: game.HUD{Phase: game.PhaseIdle, Lives: 3, Currency: 150},
		snap: game.Snapshot{
			Sequence: 1,
			Width:    800,
			Height:   500,
			FloorY:   480,
			Platform: game.Rect{X: 60, Y: 360, W: 220, H: 20},
			Entities: []game.EntityView{
				{Kind: game.KindPlayer, X: 100, Y: 444, W: 24, H: 36, Facing: 1},
			},
		},
	}
}

func (m *mockEngine) HUD() game.HUD {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hud
}

func (m *mockEngine) GetSnapshot() *game.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.snap.Copy()
	return &snap
}

func (m *mockEngine) StartSession() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts++
	m.hud.Phase = game.PhaseRunning
	m.hud.Wave = 1
}

func (m *mockEngine) Restart() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restarts++
	m.hud.Phase = game.PhaseRunning
	m.hud.Wave = 1
}

func (m *mockEngine) NextWave() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hud.Phase != game.PhaseWon {
		return false
	}
	m.hud.Phase = game.PhaseRunning
	m.hud.Wave++
	return true
}

func (m *mockEngine) PurchaseAlly() game.PurchaseResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.purchase
}

func (m *mockEngine) SetInput(in game.Input) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.input = in
}

func (m *mockEngine) Submit(c game.Command) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queueFull {
		return false
	}
	m.submitted = append(m.submitted, c)
	return true
}

func (m *mockEngine) commands() []game.Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]game.Command(nil), m.submitted...)
}

func newTestServer(t *testing.T, engine EngineInterface, renderer FrameRenderer) *httptest.Server {
	t.Helper()
	router := NewRouter(RouterConfig{
		Engine:   engine,
		Renderer: renderer,
		RateLimitConfig: &RateLimitConfig{
			Views:    Budget{PerSecond: 1000, Burst: 1000},
			Controls: Budget{PerSecond: 1000, Burst: 1000},
		},
		DisableLogging: true,
	})
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// ============================================================================
// Router Tests
// ============================================================================

func TestNewRouterHasNoSideEffects(t *testing.T) {
	router := NewRouter(RouterConfig{
		Engine:          newMockEngine(),
		RateLimitConfig: &RateLimitConfig{Views: Budget{PerSecond: 1000, Burst: 1000}},
		DisableLogging:  true,
	})
	if router == nil {
		t.Fatal("Router should not be nil")
	}
}

func TestAPIGetHUD(t *testing.T) {
	ts := newTestServer(t, newMockEngine(), nil)

	resp, err := http.Get(ts.URL + "/api/hud")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var hud map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&hud); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if hud["phase"] != "idle" {
		t.Errorf("phase = %v, want idle", hud["phase"])
	}
	if hud["currency"] != float64(150) {
		t.Errorf("currency = %v, want 150", hud["currency"])
	}
}

func TestAPIGetSnapshot(t *testing.T) {
	ts := newTestServer(t, newMockEngine(), nil)

	resp, err := http.Get(ts.URL + "/api/snapshot")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	var snap game.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(snap.Entities) != 1 || snap.Entities[0].Kind != game.KindPlayer {
		t.Errorf("entities = %+v, want the player only", snap.Entities)
	}
	if snap.Platform.W != 220 {
		t.Errorf("platform width = %v, want 220", snap.Platform.W)
	}
}

func TestAPIFrame(t *testing.T) {
	t.Run("without renderer", func(t *testing.T) {
		ts := newTestServer(t, newMockEngine(), nil)
		resp, err := http.Get(ts.URL + "/api/frame.png")
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("Expected 503, got %d", resp.StatusCode)
		}
	})

	t.Run("with renderer", func(t *testing.T) {
		ts := newTestServer(t, newMockEngine(), render.NewRenderer(200, 125))
		resp, err := http.Get(ts.URL + "/api/frame.png")
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		defer resp.Body.Close()

		if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
			t.Errorf("Content-Type = %q, want image/png", ct)
		}
		img, err := png.Decode(resp.Body)
		if err != nil {
			t.Fatalf("png.Decode: %v", err)
		}
		if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 125 {
			t.Errorf("frame size = %v, want 200x125", b.Size())
		}
	})
}

func TestAPISessionLifecycle(t *testing.T) {
	engine := newMockEngine()
	ts := newTestServer(t, engine, nil)

	resp := postJSON(t, ts.URL+"/api/session/start", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start: expected 200, got %d", resp.StatusCode)
	}
	engine.mu.Lock()
	starts := engine.starts
	engine.mu.Unlock()
	if starts != 1 {
		t.Errorf("starts = %d, want 1", starts)
	}

	// Not won yet
	resp = postJSON(t, ts.URL+"/api/session/next-wave", "")
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("next-wave while running: expected 409, got %d", resp.StatusCode)
	}

	engine.mu.Lock()
	engine.hud.Phase = game.PhaseWon
	engine.mu.Unlock()

	resp = postJSON(t, ts.URL+"/api/session/next-wave", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("next-wave after win: expected 200, got %d", resp.StatusCode)
	}
	if hud := engine.HUD(); hud.Wave != 2 {
		t.Errorf("wave = %d, want 2", hud.Wave)
	}

	resp = postJSON(t, ts.URL+"/api/session/restart", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("restart: expected 200, got %d", resp.StatusCode)
	}
	engine.mu.Lock()
	restarts := engine.restarts
	engine.mu.Unlock()
	if restarts != 1 {
		t.Errorf("restarts = %d, want 1", restarts)
	}
}

func TestAPIPurchaseAlly(t *testing.T) {
	tests := []struct {
		name        string
		result      game.PurchaseResult
		wantSuccess bool
		wantResult  string
	}{
		{"ok", game.PurchaseOK, true, "ok"},
		{"insufficient funds", game.PurchaseInsufficientFunds, false, "insufficient_funds"},
		{"at cap", game.PurchaseAtCap, false, "at_cap"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newMockEngine()
			engine.purchase = tt.result
			ts := newTestServer(t, engine, nil)

			resp := postJSON(t, ts.URL+"/api/shop/ally", "")
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("Expected 200, got %d", resp.StatusCode)
			}

			var body struct {
				Success bool   `json:"success"`
				Result  string `json:"result"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if body.Success != tt.wantSuccess || body.Result != tt.wantResult {
				t.Errorf("got (%v, %q), want (%v, %q)", body.Success, body.Result, tt.wantSuccess, tt.wantResult)
			}
		})
	}
}

func TestAPIInput(t *testing.T) {
	engine := newMockEngine()
	ts := newTestServer(t, engine, nil)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantHeld   game.Action
	}{
		{
			name:       "move and fire",
			body:       `{"actions": ["move-left", "fire"]}`,
			wantStatus: http.StatusOK,
			wantHeld:   game.ActionMoveLeft | game.ActionFire,
		},
		{
			name:       "unknown actions ignored",
			body:       `{"actions": ["jump", "teleport"]}`,
			wantStatus: http.StatusOK,
			wantHeld:   game.ActionJump,
		},
		{
			name:       "aimed fire",
			body:       `{"actions": ["fire-at"], "aim": {"x": 10, "y": 20}}`,
			wantStatus: http.StatusOK,
			wantHeld:   game.ActionFireAt,
		},
		{
			name:       "invalid json",
			body:       `{invalid}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine.SetInput(game.Input{})
			resp := postJSON(t, ts.URL+"/api/input", tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("Expected %d, got %d", tt.wantStatus, resp.StatusCode)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			engine.mu.Lock()
			held := engine.input.Held
			engine.mu.Unlock()
			if held != tt.wantHeld {
				t.Errorf("held = %b, want %b", held, tt.wantHeld)
			}
		})
	}
}

func TestAPICommand(t *testing.T) {
	t.Run("queued", func(t *testing.T) {
		engine := newMockEngine()
		ts := newTestServer(t, engine, nil)

		resp := postJSON(t, ts.URL+"/api/command", `{"command": "purchase-ally"}`)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected 200, got %d", resp.StatusCode)
		}
		cmds := engine.commands()
		if len(cmds) != 1 || cmds[0].Kind != game.CommandPurchaseAlly {
			t.Errorf("submitted = %+v, want one purchase command", cmds)
		}
	})

	t.Run("unknown command", func(t *testing.T) {
		ts := newTestServer(t, newMockEngine(), nil)
		resp := postJSON(t, ts.URL+"/api/command", `{"command": "pause"}`)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("queue full", func(t *testing.T) {
		engine := newMockEngine()
		engine.queueFull = true
		ts := newTestServer(t, engine, nil)
		resp := postJSON(t, ts.URL+"/api/command", `{"command": "start"}`)
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("Expected 503, got %d", resp.StatusCode)
		}
	})
}

func TestAPIRateLimit(t *testing.T) {
	router := NewRouter(RouterConfig{
		Engine:          newMockEngine(),
		RateLimitConfig: &RateLimitConfig{
			Views:    Budget{PerSecond: 1, Burst: 2},
			Controls: Budget{PerSecond: 1000, Burst: 1000},
		},
		DisableLogging:  true,
	})
	ts := httptest.NewServer(router)
	defer ts.Close()

	var limited bool
	for i := 0; i < 5; i++ {
		resp, err := http.Get(ts.URL + "/api/hud")
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = true
		}
	}
	if !limited {
		t.Error("expected a 429 after exhausting the burst")
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, newMockEngine(), nil)
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
}

func TestIsAllowedOrigin(t *testing.T) {
	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost", true},
		{"http://localhost:5173", true},
		{"http://127.0.0.1:3000", true},
		{"http://localhost.evil.com", false},
		{"https://example.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			if got := IsAllowedOrigin(tt.origin); got != tt.want {
				t.Errorf("IsAllowedOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}
