package ipc

import (
	"bytes"
	"encoding/binary"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"rocket-arena/internal/config"
	"rocket-arena/internal/game"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestFramingOverPipe(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go func() {
		WriteMessage(server, MsgTypeConfig, ConfigMessage{Width: 800, Height: 500, TickRate: 60, FPS: 30})
		WriteMessage(server, MsgTypePing, nil)
	}()

	msgType, body, err := ReadMessage(client)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if msgType != MsgTypeConfig {
		t.Fatalf("type = %#x, want config", msgType)
	}
	cfg, err := DecodeConfig(body)
	if err != nil {
		t.Fatalf("DecodeConfig: %v", err)
	}
	if cfg.Width != 800 || cfg.TickRate != 60 || cfg.FPS != 30 {
		t.Errorf("config = %+v", cfg)
	}

	msgType, body, err = ReadMessage(client)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if msgType != MsgTypePing || len(body) != 0 {
		t.Errorf("got type %#x with %d bytes, want an empty ping", msgType, len(body))
	}
}

func TestReadMessageRejectsBadHeaders(t *testing.T) {
	header := func(version uint16, length uint32) []byte {
		b := make([]byte, HeaderSize)
		binary.LittleEndian.PutUint16(b[0:2], version)
		b[2] = MsgTypeSnapshot
		binary.LittleEndian.PutUint32(b[4:8], length)
		return b
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"wrong version", header(ProtocolVersion+1, 0)},
		{"oversized", header(ProtocolVersion, MaxMessageSize+1)},
		{"truncated body", append(header(ProtocolVersion, 10), 1, 2, 3)},
		{"short header", []byte{1, 0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := ReadMessage(bytes.NewReader(tt.data)); err == nil {
				t.Error("ReadMessage accepted a bad frame")
			}
		})
	}
}

func TestRemoteBeforeConnect(t *testing.T) {
	r := NewRemote(NewSubscriber(filepath.Join(t.TempDir(), "none.sock")))

	snap := r.GetSnapshot()
	if snap == nil || snap.HUD.Phase != game.PhaseIdle || len(snap.Entities) != 0 {
		t.Errorf("snapshot = %+v, want an empty idle snapshot", snap)
	}
	if r.Submit(game.Command{Kind: game.CommandStart}) {
		t.Error("Submit succeeded without a connection")
	}
}

func shortSocketPath(t *testing.T) string {
	t.Helper()
	// Unix socket paths are limited to about 100 bytes
	dir, err := os.MkdirTemp("", "ra")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "arena.sock")
}

func TestPublisherToSubscriber(t *testing.T) {
	path := shortSocketPath(t)

	engine := game.NewEngine(game.EngineConfig{Game: config.DefaultGame(), Seed: 9})
	engine.StartSession()

	pub := NewPublisher(path, engine)
	pub.SetConfig(800, 500, 60, 100)
	if err := pub.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer pub.Stop()

	sub := NewSubscriber(path)
	cues := make(chan game.SoundID, 16)
	sub.OnSnapshot(func(msg *SnapshotMessage) {
		for _, id := range msg.SoundIDs() {
			cues <- id
		}
	})
	if err := sub.Start(); err != nil {
		t.Fatalf("Subscriber Start: %v", err)
	}
	defer sub.Stop()

	cfg := sub.WaitForConfig(3 * time.Second)
	if cfg == nil {
		t.Fatal("no config received")
	}
	if cfg.Width != 800 || cfg.FPS != 100 {
		t.Errorf("config = %+v", cfg)
	}
	waitFor(t, "client registration", func() bool { return pub.ClientCount() == 1 })

	pub.StartFeed(engine, 100)
	remote := NewRemote(sub)
	waitFor(t, "first snapshot", func() bool { return len(remote.GetSnapshot().Entities) > 0 })

	snap := remote.GetSnapshot()
	if snap.HUD.Phase != game.PhaseRunning || snap.HUD.Wave != 1 {
		t.Errorf("remote HUD = %+v, want running wave 1", snap.HUD)
	}
	// Player, one ally and four cars
	if len(snap.Entities) != 6 || snap.Entities[0].Kind != game.KindPlayer {
		t.Errorf("remote entities = %d (first %s), want 6 starting with the player",
			len(snap.Entities), snap.Entities[0].Kind)
	}
	if snap.Width != 800 || snap.FloorY != 480 {
		t.Errorf("arena %vx%v floor %v", snap.Width, snap.Height, snap.FloorY)
	}

	// Cues ride along with the next new snapshot
	pub.Play(game.SoundWon)
	engine.Tick()
	select {
	case id := <-cues:
		if id != game.SoundWon {
			t.Errorf("cue = %s, want won", id)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("cue never arrived")
	}

	// Commands travel back into the engine queue
	in := game.Input{Held: game.ActionMoveLeft | game.ActionFireAt, Aim: game.Vec2{X: 12, Y: 34}}
	if !remote.Submit(game.Command{Kind: game.CommandInput, Input: in}) {
		t.Fatal("Submit failed while connected")
	}
	waitFor(t, "command relay", func() bool { return engine.PendingCommands() == 1 })

	stats := pub.GetStats()
	if stats["commands_received"] != int64(1) {
		t.Errorf("stats = %v, want one command received", stats)
	}
}

type countingSink struct{ n atomic.Int32 }

func (c *countingSink) Submit(game.Command) bool {
	c.n.Add(1)
	return true
}

func TestPublisherDropsCommandsWithoutSink(t *testing.T) {
	path := shortSocketPath(t)

	pub := NewPublisher(path, nil)
	if err := pub.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer pub.Stop()

	sub := NewSubscriber(path)
	sub.Start()
	defer sub.Stop()

	waitFor(t, "connection", sub.IsConnected)
	if !sub.SendCommand(game.Command{Kind: game.CommandStart}) {
		t.Fatal("SendCommand failed while connected")
	}
	waitFor(t, "rejection", func() bool { return pub.GetStats()["commands_rejected"] == int64(1) })

	sink := &countingSink{}
	pub.SetCommandSink(sink)
	sub.SendCommand(game.Command{Kind: game.CommandStart})
	waitFor(t, "relay", func() bool { return pub.GetStats()["commands_received"] == int64(1) })
	if got := sink.n.Load(); got != 1 {
		t.Errorf("sink saw %d commands, want 1", got)
	}
}

func TestPublisherStopDisconnectsClients(t *testing.T) {
	path := shortSocketPath(t)

	pub := NewPublisher(path, nil)
	if err := pub.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	sub := NewSubscriber(path)
	sub.Start()
	defer sub.Stop()
	waitFor(t, "connection", sub.IsConnected)

	pub.Stop()
	pub.Stop() // Idempotent

	waitFor(t, "disconnect", func() bool { return !sub.IsConnected() })
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("socket file still present after Stop: %v", err)
	}
}

func TestPublisherIgnoresCuesWhenNotRunning(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("TCP transport has no socket path to break")
	}
	pub := NewPublisher(filepath.Join(t.TempDir(), "missing", "arena.sock"), nil)
	if err := pub.Start(); err == nil {
		pub.Stop()
		t.Fatal("Start succeeded on a socket in a missing directory")
	}

	pub.Play(game.SoundFire)
	if cues := pub.takeCues(); cues != nil {
		t.Errorf("failed publisher buffered cues %v", cues)
	}
	if pub.GetStats()["running"] != false {
		t.Error("failed publisher reports running")
	}
}
