package api

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"rocket-arena/internal/game"
)

// Handler methods for routerHandlers
// These are used by both the standalone router (for testing) and the full Server.

func (h *routerHandlers) handleGetHUD(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.HUD())
}

func (h *routerHandlers) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	// Copy before encoding: the pool recycles the slot after two more ticks
	snap := h.engine.GetSnapshot().Copy()
	writeJSON(w, snap)
}

func (h *routerHandlers) handleGetFrame(w http.ResponseWriter, r *http.Request) {
	if h.renderer == nil {
		writeError(w, "Renderer not configured", http.StatusServiceUnavailable)
		return
	}

	snap := h.engine.GetSnapshot().Copy()

	start := time.Now()
	var buf bytes.Buffer
	h.frameMu.Lock()
	err := h.renderer.EncodePNG(&buf, &snap)
	h.frameMu.Unlock()
	RecordRender(time.Since(start))

	if err != nil {
		log.Printf("❌ Frame render failed: %v", err)
		writeError(w, "Render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

func (h *routerHandlers) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	h.engine.StartSession()
	writeJSON(w, map[string]interface{}{"success": true, "hud": h.engine.HUD()})
}

func (h *routerHandlers) handleSessionRestart(w http.ResponseWriter, r *http.Request) {
	h.engine.Restart()
	writeJSON(w, map[string]interface{}{"success": true, "hud": h.engine.HUD()})
}

func (h *routerHandlers) handleNextWave(w http.ResponseWriter, r *http.Request) {
	if !h.engine.NextWave() {
		writeError(w, "Next wave is only available after clearing a wave", http.StatusConflict)
		return
	}
	writeJSON(w, map[string]interface{}{"success": true, "hud": h.engine.HUD()})
}

func (h *routerHandlers) handlePurchaseAlly(w http.ResponseWriter, r *http.Request) {
	result := h.engine.PurchaseAlly()
	RecordPurchase(result)
	writeJSON(w, map[string]interface{}{
		"success": result == game.PurchaseOK,
		"result":  result,
		"hud":     h.engine.HUD(),
	})
}

// inputRequest is the wire form of the held action set
type inputRequest struct {
	Actions []string   `json:"actions"`
	Aim     *game.Vec2 `json:"aim,omitempty"`
}

func (req inputRequest) toInput() game.Input {
	return game.InputFromNames(req.Actions, req.Aim)
}

func (h *routerHandlers) handleInput(w http.ResponseWriter, r *http.Request) {
	var req inputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	// Unknown action names are ignored, not rejected
	h.engine.SetInput(req.toInput())
	writeJSON(w, map[string]bool{"success": true})
}

// commandRequest queues a command for the next tick
type commandRequest struct {
	Command string `json:"command"`
	inputRequest
}

func (h *routerHandlers) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	kind, ok := game.ParseCommandKind(req.Command)
	if !ok {
		writeError(w, "Unknown command", http.StatusBadRequest)
		return
	}
	if !h.engine.Submit(game.Command{Kind: kind, Input: req.toInput()}) {
		writeError(w, "Command queue full", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, map[string]bool{"queued": true})
}

// Helper functions (package-level for reuse)

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
