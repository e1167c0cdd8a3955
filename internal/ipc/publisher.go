package ipc

import (
	"errors"
	"io"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"rocket-arena/internal/game"
)

// MaxPendingCues bounds cues buffered between two published snapshots
const MaxPendingCues = 64

// CommandSink receives commands sent by clients (the engine's Submit)
type CommandSink interface {
	Submit(c game.Command) bool
}

// SnapshotSource is polled by the feed loop
type SnapshotSource interface {
	GetSnapshot() *game.Snapshot
}

// Publisher publishes arena snapshots to connected clients and relays their
// commands back to the engine
type Publisher struct {
	socketPath string
	listener   net.Listener

	sink   CommandSink
	sinkMu sync.RWMutex

	// Connected clients
	clients   map[net.Conn]struct{}
	clientsMu sync.RWMutex

	// Snapshot channel (ring buffer behavior - drop old if full)
	snapshotCh chan *SnapshotMessage

	// Cues raised since the last publish
	cues   []game.SoundID
	cuesMu sync.Mutex

	// Config to send to new clients
	config   ConfigMessage
	configMu sync.RWMutex

	// Stats
	clientCount      int32 // atomic
	snapshotsSent    int64 // atomic
	droppedFrames    int64 // atomic
	commandsReceived int64 // atomic
	commandsRejected int64 // atomic

	// Control
	running int32 // atomic
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewPublisher creates a publisher. sink may be nil for a view-only feed.
func NewPublisher(socketPath string, sink CommandSink) *Publisher {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}

	return &Publisher{
		socketPath: socketPath,
		sink:       sink,
		clients:    make(map[net.Conn]struct{}),
		snapshotCh: make(chan *SnapshotMessage, 8), // Buffer 8 frames
		stopCh:     make(chan struct{}),
	}
}

// SetCommandSink replaces the receiver of client commands. Servers whose
// engine also uses the publisher as an audio sink set it after both exist.
func (p *Publisher) SetCommandSink(sink CommandSink) {
	p.sinkMu.Lock()
	p.sink = sink
	p.sinkMu.Unlock()
}

// SetConfig sets the configuration sent to new clients
func (p *Publisher) SetConfig(width, height, tickRate, fps int) {
	p.configMu.Lock()
	p.config = ConfigMessage{
		Width:    width,
		Height:   height,
		TickRate: tickRate,
		FPS:      fps,
	}
	p.configMu.Unlock()
}

// Start opens the socket and starts the accept and broadcast loops
func (p *Publisher) Start() error {
	if !atomic.CompareAndSwapInt32(&p.running, 0, 1) {
		return nil // Already running
	}

	listener, err := CreatePlatformListener(p.socketPath)
	if err != nil {
		atomic.StoreInt32(&p.running, 0)
		return err
	}
	p.listener = listener

	p.wg.Add(2)
	go p.acceptLoop()
	go p.broadcastLoop()

	log.Printf("📡 IPC Publisher started on %s", GetPlatformAddress(p.socketPath))
	return nil
}

// Stop closes every client and the listener, then waits for all loops
func (p *Publisher) Stop() {
	if !atomic.CompareAndSwapInt32(&p.running, 1, 0) {
		return // Not running
	}

	close(p.stopCh)

	if p.listener != nil {
		p.listener.Close()
	}

	p.clientsMu.Lock()
	for conn := range p.clients {
		conn.Close()
	}
	p.clientsMu.Unlock()

	p.wg.Wait()

	CleanupSocket(p.socketPath)
	log.Println("📡 IPC Publisher stopped")
}

// Play buffers a cue for the next snapshot, so the publisher can sit next to
// the local audio bank as an engine AudioSink
func (p *Publisher) Play(id game.SoundID) {
	if atomic.LoadInt32(&p.running) == 0 {
		return
	}
	p.cuesMu.Lock()
	if len(p.cues) < MaxPendingCues {
		p.cues = append(p.cues, id)
	}
	p.cuesMu.Unlock()
}

func (p *Publisher) takeCues() []game.SoundID {
	p.cuesMu.Lock()
	defer p.cuesMu.Unlock()
	if len(p.cues) == 0 {
		return nil
	}
	out := p.cues
	p.cues = nil
	return out
}

// Publish converts and queues a snapshot for broadcast. Non-blocking: drops
// the oldest queued message when the buffer is full.
func (p *Publisher) Publish(snapshot *game.Snapshot) {
	if atomic.LoadInt32(&p.running) == 0 {
		return
	}

	msg := FromSnapshot(snapshot, p.takeCues())

	select {
	case p.snapshotCh <- msg:
	default:
		select {
		case old := <-p.snapshotCh:
			atomic.AddInt64(&p.droppedFrames, 1)
			// Carry cues forward so dropped frames stay audible
			msg.Cues = append(old.Cues, msg.Cues...)
		default:
		}
		select {
		case p.snapshotCh <- msg:
		default:
		}
	}
}

// StartFeed polls source fps times per second and publishes every snapshot
// with a new sequence. It stops with the publisher.
func (p *Publisher) StartFeed(source SnapshotSource, fps int) {
	if fps <= 0 {
		fps = 30
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ticker := time.NewTicker(time.Second / time.Duration(fps))
		defer ticker.Stop()

		var lastSeq uint64
		for {
			select {
			case <-p.stopCh:
				return
			case <-ticker.C:
				snap := source.GetSnapshot()
				if snap == nil || snap.Sequence == lastSeq {
					continue
				}
				lastSeq = snap.Sequence
				p.Publish(snap)
			}
		}
	}()
}

// GetStats returns publisher statistics
func (p *Publisher) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"running":           atomic.LoadInt32(&p.running) == 1,
		"clients":           atomic.LoadInt32(&p.clientCount),
		"snapshots_sent":    atomic.LoadInt64(&p.snapshotsSent),
		"dropped_frames":    atomic.LoadInt64(&p.droppedFrames),
		"commands_received": atomic.LoadInt64(&p.commandsReceived),
		"commands_rejected": atomic.LoadInt64(&p.commandsRejected),
	}
}

// ClientCount returns the number of connected clients
func (p *Publisher) ClientCount() int {
	return int(atomic.LoadInt32(&p.clientCount))
}

func (p *Publisher) acceptLoop() {
	defer p.wg.Done()

	for atomic.LoadInt32(&p.running) == 1 {
		conn, err := p.listener.Accept()
		if err != nil {
			if atomic.LoadInt32(&p.running) == 0 {
				return // Expected during shutdown
			}
			log.Printf("⚠️ IPC accept error: %v", err)
			continue
		}

		p.addClient(conn)
	}
}

// addClient sends the config first so it always precedes any snapshot
func (p *Publisher) addClient(conn net.Conn) {
	p.configMu.RLock()
	config := p.config
	p.configMu.RUnlock()

	conn.SetWriteDeadline(time.Now().Add(time.Second))
	if err := WriteMessage(conn, MsgTypeConfig, config); err != nil {
		log.Printf("⚠️ Failed to send config to client: %v", err)
		conn.Close()
		return
	}

	p.clientsMu.Lock()
	if atomic.LoadInt32(&p.running) == 0 {
		p.clientsMu.Unlock()
		conn.Close()
		return
	}
	p.clients[conn] = struct{}{}
	p.wg.Add(1)
	p.clientsMu.Unlock()

	count := atomic.AddInt32(&p.clientCount, 1)
	log.Printf("✅ IPC client connected (total: %d)", count)

	go p.readLoop(conn)
}

func (p *Publisher) removeClient(conn net.Conn) {
	p.clientsMu.Lock()
	if _, ok := p.clients[conn]; ok {
		delete(p.clients, conn)
		conn.Close()
		p.clientsMu.Unlock()

		count := atomic.AddInt32(&p.clientCount, -1)
		log.Printf("🔌 IPC client disconnected (remaining: %d)", count)
	} else {
		p.clientsMu.Unlock()
	}
}

// readLoop relays client commands until the connection closes
func (p *Publisher) readLoop(conn net.Conn) {
	defer p.wg.Done()
	defer p.removeClient(conn)

	for {
		msgType, data, err := ReadMessage(conn)
		if err != nil {
			if atomic.LoadInt32(&p.running) == 1 && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Printf("⚠️ IPC client read error: %v", err)
			}
			return
		}

		switch msgType {
		case MsgTypeCommand:
			p.handleCommand(data)
		case MsgTypePing:
			conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
			WriteMessage(conn, MsgTypePong, nil)
		}
	}
}

func (p *Publisher) handleCommand(data []byte) {
	msg, err := DecodeCommand(data)
	if err != nil {
		log.Printf("⚠️ Failed to decode command: %v", err)
		atomic.AddInt64(&p.commandsRejected, 1)
		return
	}
	p.sinkMu.RLock()
	sink := p.sink
	p.sinkMu.RUnlock()
	if sink == nil || !sink.Submit(msg.ToCommand()) {
		atomic.AddInt64(&p.commandsRejected, 1)
		return
	}
	atomic.AddInt64(&p.commandsReceived, 1)
}

func (p *Publisher) broadcastLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		case msg := <-p.snapshotCh:
			p.broadcast(msg)
		}
	}
}

func (p *Publisher) broadcast(msg *SnapshotMessage) {
	p.clientsMu.RLock()
	clients := make([]net.Conn, 0, len(p.clients))
	for conn := range p.clients {
		clients = append(clients, conn)
	}
	p.clientsMu.RUnlock()

	var failed []net.Conn
	for _, conn := range clients {
		conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
		if err := WriteMessage(conn, MsgTypeSnapshot, msg); err != nil {
			failed = append(failed, conn)
		}
	}

	for _, conn := range failed {
		p.removeClient(conn)
	}

	if len(clients) > 0 && len(failed) < len(clients) {
		atomic.AddInt64(&p.snapshotsSent, 1)
	}
}
