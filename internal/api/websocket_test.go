package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"rocket-arena/internal/game"

	"github.com/gorilla/websocket"
)

func startHub(t *testing.T, engine EngineInterface) (*WebSocketHub, *httptest.Server) {
	t.Helper()
	hub := NewWebSocketHub(engine)
	go hub.Run()
	ts := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(func() {
		hub.Stop()
		ts.Close()
	})
	return hub, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readEvent reads messages until one with the wanted event name arrives
func readEvent(t *testing.T, conn *websocket.Conn, event string) json.RawMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", event, err)
		}
		var msg struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("bad message %s: %v", data, err)
		}
		if msg.Event == event {
			return msg.Data
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWebSocketGreetsWithHUD(t *testing.T) {
	_, ts := startHub(t, newMockEngine())
	conn := dial(t, ts)

	var hud game.HUD
	if err := json.Unmarshal(readEvent(t, conn, EventHUD), &hud); err != nil {
		t.Fatalf("decode HUD: %v", err)
	}
	if hud.Currency != 150 {
		t.Errorf("currency = %d, want 150", hud.Currency)
	}
}

func TestWebSocketBroadcastsSnapshots(t *testing.T) {
	hub, ts := startHub(t, newMockEngine())
	conn := dial(t, ts)
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	hub.StartBroadcastLoop(10 * time.Millisecond)

	var snap game.Snapshot
	if err := json.Unmarshal(readEvent(t, conn, EventSnapshot), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Sequence != 1 || len(snap.Entities) != 1 {
		t.Errorf("snapshot = seq %d with %d entities, want seq 1 with 1", snap.Sequence, len(snap.Entities))
	}
}

func TestWebSocketClientMessages(t *testing.T) {
	engine := newMockEngine()
	_, ts := startHub(t, engine)
	conn := dial(t, ts)

	messages := []string{
		`{"type": "input", "actions": ["move-right", "jump"]}`,
		`{"type": "command", "command": "next-wave"}`,
		`{"type": "command", "command": "self-destruct"}`, // dropped
		`{"type": "chat", "text": "hi"}`,                   // dropped
		`not json`,                                         // dropped
	}
	for _, m := range messages {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
			t.Fatalf("WriteMessage: %v", err)
		}
	}

	waitFor(t, func() bool { return len(engine.commands()) >= 2 })
	// Let any stray message land before counting
	time.Sleep(20 * time.Millisecond)

	cmds := engine.commands()
	if len(cmds) != 2 {
		t.Fatalf("submitted %d commands, want 2: %+v", len(cmds), cmds)
	}
	if cmds[0].Kind != game.CommandInput || cmds[0].Input.Held != game.ActionMoveRight|game.ActionJump {
		t.Errorf("first command = %+v, want held move-right|jump input", cmds[0])
	}
	if cmds[1].Kind != game.CommandNextWave {
		t.Errorf("second command = %+v, want next-wave", cmds[1])
	}
}

func TestWebSocketDisconnectReleasesSlot(t *testing.T) {
	hub, ts := startHub(t, newMockEngine())
	conn := dial(t, ts)
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	conn.Close()
	waitFor(t, func() bool { return hub.ClientCount() == 0 })

	if n := hub.wsLimiter.GetConnectionCount("127.0.0.1"); n != 0 {
		t.Errorf("per-IP count = %d after disconnect, want 0", n)
	}
}

func TestUpdateHUDSkipsTickOnlyChanges(t *testing.T) {
	hub := NewWebSocketHub(newMockEngine())

	hud := game.HUD{Phase: game.PhaseRunning, Wave: 1, TimeRemaining: 89.5, Tick: 30}
	hub.UpdateHUD(hud)

	hud.Tick = 31
	hud.TimeRemaining = 89.4 // same whole second
	hub.UpdateHUD(hud)

	hud.Score = 10
	hub.UpdateHUD(hud)

	if n := len(hub.broadcast); n != 2 {
		t.Errorf("queued %d HUD broadcasts, want 2", n)
	}
}
