package api

import (
	"encoding/json"
	"log"
	"math"
	"net/http"
	"sync"
	"time"

	"rocket-arena/internal/game"

	"github.com/gorilla/websocket"
)

const (
	// MaxWSConnectionsTotal is the maximum number of WebSocket connections allowed
	MaxWSConnectionsTotal = 500

	// MaxWSConnectionsPerIP is the maximum WebSocket connections per IP
	MaxWSConnectionsPerIP = 10

	// maxWSMessageSize bounds a single client message
	maxWSMessageSize = 4096
)

// Broadcast event names
const (
	EventSnapshot = "arena:snapshot"
	EventHUD      = "arena:hud"
	EventSim      = "arena:event"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")

		if IsAllowedOrigin(origin) {
			return true
		}

		log.Printf("⚠️ WebSocket connection rejected from origin: %s", origin)
		RecordConnectionRejected("origin")
		return false
	},
}

// wsClient tracks a WebSocket connection with its source IP
type wsClient struct {
	conn *websocket.Conn
	ip   string
}

// clientMessage is what a client may send: held input or a lifecycle command
type clientMessage struct {
	Type    string     `json:"type"` // "input" or "command"
	Command string     `json:"command,omitempty"`
	Actions []string   `json:"actions,omitempty"`
	Aim     *game.Vec2 `json:"aim,omitempty"`
}

// WebSocketHub fans arena state out to viewers and feeds their input back
// into the engine's command queue
type WebSocketHub struct {
	clients    map[*websocket.Conn]*wsClient
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *websocket.Conn
	stop       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex

	engine EngineInterface

	hudMu   sync.Mutex
	lastHUD game.HUD

	// Connection limiting per IP
	wsLimiter *WebSocketRateLimiter
}

// NewWebSocketHub creates a new hub with connection limiting
func NewWebSocketHub(engine EngineInterface) *WebSocketHub {
	return &WebSocketHub{
		clients:    make(map[*websocket.Conn]*wsClient),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *websocket.Conn),
		stop:       make(chan struct{}),
		engine:     engine,
		wsLimiter:  NewWebSocketRateLimiter(MaxWSConnectionsPerIP),
	}
}

// Run serves registrations and broadcasts until Stop
func (h *WebSocketHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.conn] = client
			count := len(h.clients)
			h.mu.Unlock()

			log.Printf("📱 Client connected from %s (%d total)", client.ip, count)
			UpdateWSConnections(count)

		case conn := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(conn)
			count := len(h.clients)
			h.mu.Unlock()

			log.Printf("📱 Client disconnected (%d remaining)", count)
			UpdateWSConnections(count)

		case message := <-h.broadcast:
			h.mu.Lock()
			for conn := range h.clients {
				conn.SetWriteDeadline(time.Now().Add(time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					h.removeLocked(conn)
				}
			}
			UpdateWSConnections(len(h.clients))
			h.mu.Unlock()
			IncrementWSMessages()

		case <-h.stop:
			h.mu.Lock()
			for conn := range h.clients {
				h.removeLocked(conn)
			}
			h.mu.Unlock()
			UpdateWSConnections(0)
			return
		}
	}
}

// removeLocked drops a client and frees its IP slot (caller holds mu)
func (h *WebSocketHub) removeLocked(conn *websocket.Conn) {
	client, ok := h.clients[conn]
	if !ok {
		return
	}
	h.wsLimiter.Release(client.ip)
	delete(h.clients, conn)
	conn.Close()
}

// Stop ends Run and the broadcast loop, closing every connection
func (h *WebSocketHub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// Broadcast sends a message to all connected clients
func (h *WebSocketHub) Broadcast(event string, data interface{}) {
	msg := map[string]interface{}{
		"event": event,
		"data":  data,
	}

	jsonBytes, err := json.Marshal(msg)
	if err != nil {
		return
	}

	select {
	case h.broadcast <- jsonBytes:
	default:
		// Channel full, skip (backpressure)
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// UpdateHUD broadcasts the HUD when anything but the tick counter or the
// sub-second part of the timer changed
func (h *WebSocketHub) UpdateHUD(hud game.HUD) {
	key := hud
	key.Tick = 0
	key.TimeRemaining = math.Ceil(hud.TimeRemaining)

	h.hudMu.Lock()
	changed := key != h.lastHUD
	h.lastHUD = key
	h.hudMu.Unlock()

	if changed {
		h.Broadcast(EventHUD, hud)
	}
}

// StartBroadcastLoop publishes the latest snapshot at a fixed interval while
// anyone is watching. Snapshots are copied so the pool can recycle the slot.
func (h *WebSocketHub) StartBroadcastLoop(interval time.Duration) {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		var lastSeq uint64
		for {
			select {
			case <-h.stop:
				return
			case <-ticker.C:
			}
			if h.ClientCount() == 0 {
				continue
			}

			snap := h.engine.GetSnapshot()
			if snap == nil || snap.Sequence == lastSeq {
				continue
			}
			lastSeq = snap.Sequence
			h.Broadcast(EventSnapshot, snap.Copy())
		}
	}()
}

// HandleWebSocket handles incoming WebSocket connections with DoS protection
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)

	if total := h.ClientCount(); total >= MaxWSConnectionsTotal {
		log.Printf("⚠️ WebSocket connection rejected: total limit reached (%d)", total)
		RecordConnectionRejected("ws_total_limit")
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}

	if !h.wsLimiter.Allow(ip) {
		log.Printf("⚠️ WebSocket connection rejected from %s: per-IP limit reached", ip)
		RecordConnectionRejected("ws_ip_limit")
		http.Error(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		h.wsLimiter.Release(ip)
		return
	}
	conn.SetReadLimit(maxWSMessageSize)

	select {
	case h.register <- &wsClient{conn: conn, ip: ip}:
	case <-h.stop:
		conn.Close()
		h.wsLimiter.Release(ip)
		return
	}

	// Greet with the current HUD so viewers render before the next broadcast
	h.Broadcast(EventHUD, h.engine.HUD())

	go h.readLoop(conn, ip)
}

// readLoop forwards client messages to the engine until the socket closes
func (h *WebSocketHub) readLoop(conn *websocket.Conn, ip string) {
	defer func() {
		select {
		case h.unregister <- conn:
		case <-h.stop:
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		h.handleMessage(msg, ip)
	}
}

// handleMessage queues a client message as an engine command. Malformed or
// unknown messages are dropped.
func (h *WebSocketHub) handleMessage(msg clientMessage, ip string) {
	var cmd game.Command
	switch msg.Type {
	case "input":
		cmd = game.Command{Kind: game.CommandInput, Input: game.InputFromNames(msg.Actions, msg.Aim)}
	case "command":
		kind, ok := game.ParseCommandKind(msg.Command)
		if !ok {
			log.Printf("📨 Unknown WebSocket command from %s: %q", ip, msg.Command)
			return
		}
		cmd = game.Command{Kind: kind, Input: game.InputFromNames(msg.Actions, msg.Aim)}
	default:
		return
	}

	if !h.engine.Submit(cmd) {
		log.Printf("⚠️ Command queue full, dropped %q from %s", msg.Type, ip)
	}
}
