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

// Subscriber receives arena snapshots from the server and reconnects when
// the server goes away
type Subscriber struct {
	socketPath string
	conn       net.Conn
	connMu     sync.Mutex

	// Latest snapshot (lock-free access)
	latestSnapshot atomic.Value // *SnapshotMessage

	// Config received from server
	config   ConfigMessage
	configMu sync.RWMutex
	configCh chan ConfigMessage

	// Stats
	snapshotsReceived int64 // atomic
	reconnects        int64 // atomic
	errors            int64 // atomic

	// Control
	running int32 // atomic
	stopCh  chan struct{}
	wg      sync.WaitGroup

	// Callbacks, set before Start
	onSnapshot   func(*SnapshotMessage)
	onConfig     func(*ConfigMessage)
	onConnect    func()
	onDisconnect func()
}

// NewSubscriber creates a new IPC subscriber
func NewSubscriber(socketPath string) *Subscriber {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}

	return &Subscriber{
		socketPath: socketPath,
		configCh:   make(chan ConfigMessage, 1),
		stopCh:     make(chan struct{}),
	}
}

// OnSnapshot sets a callback run on the read goroutine for every snapshot
func (s *Subscriber) OnSnapshot(fn func(*SnapshotMessage)) {
	s.onSnapshot = fn
}

// OnConfig sets a callback for when config is received
func (s *Subscriber) OnConfig(fn func(*ConfigMessage)) {
	s.onConfig = fn
}

// OnConnect sets a callback for when connection is established
func (s *Subscriber) OnConnect(fn func()) {
	s.onConnect = fn
}

// OnDisconnect sets a callback for when connection is lost
func (s *Subscriber) OnDisconnect(fn func()) {
	s.onDisconnect = fn
}

// Start starts the connection loop
func (s *Subscriber) Start() error {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return nil // Already running
	}

	s.wg.Add(1)
	go s.connectionLoop()

	log.Printf("📡 IPC Subscriber started, connecting to %s", GetPlatformAddress(s.socketPath))
	return nil
}

// Stop closes the connection and waits for the loop to exit
func (s *Subscriber) Stop() {
	if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
		return // Not running
	}

	close(s.stopCh)

	// Closing the connection unblocks the read loop
	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	log.Println("📡 IPC Subscriber stopped")
}

// GetLatestSnapshot returns the most recent snapshot (lock-free)
func (s *Subscriber) GetLatestSnapshot() *SnapshotMessage {
	if val := s.latestSnapshot.Load(); val != nil {
		return val.(*SnapshotMessage)
	}
	return nil
}

// GetConfig returns the last received configuration
func (s *Subscriber) GetConfig() ConfigMessage {
	s.configMu.RLock()
	defer s.configMu.RUnlock()
	return s.config
}

// WaitForConfig blocks until config is received or timeout
func (s *Subscriber) WaitForConfig(timeout time.Duration) *ConfigMessage {
	select {
	case cfg := <-s.configCh:
		return &cfg
	case <-time.After(timeout):
		return nil
	case <-s.stopCh:
		return nil
	}
}

// SendCommand forwards c to the server. Returns false while disconnected or
// when the write fails.
func (s *Subscriber) SendCommand(c game.Command) bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return false
	}
	s.conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
	if err := WriteMessage(s.conn, MsgTypeCommand, FromCommand(c)); err != nil {
		atomic.AddInt64(&s.errors, 1)
		return false
	}
	return true
}

// GetStats returns subscriber statistics
func (s *Subscriber) GetStats() (received int64, reconnects int64, errors int64) {
	return atomic.LoadInt64(&s.snapshotsReceived),
		atomic.LoadInt64(&s.reconnects),
		atomic.LoadInt64(&s.errors)
}

// IsConnected returns whether the subscriber is connected
func (s *Subscriber) IsConnected() bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn != nil
}

func (s *Subscriber) connectionLoop() {
	defer s.wg.Done()

	for atomic.LoadInt32(&s.running) == 1 {
		conn, err := ConnectPlatform(s.socketPath)
		if err != nil {
			select {
			case <-s.stopCh:
				return
			case <-time.After(ReconnectDelay):
				continue
			}
		}

		s.connMu.Lock()
		if atomic.LoadInt32(&s.running) == 0 {
			s.connMu.Unlock()
			conn.Close()
			return
		}
		s.conn = conn
		s.connMu.Unlock()

		log.Printf("✅ Connected to arena server at %s", GetPlatformAddress(s.socketPath))
		if s.onConnect != nil {
			s.onConnect()
		}

		s.readLoop(conn)

		s.connMu.Lock()
		s.conn = nil
		s.connMu.Unlock()
		conn.Close()

		if s.onDisconnect != nil {
			s.onDisconnect()
		}

		atomic.AddInt64(&s.reconnects, 1)

		select {
		case <-s.stopCh:
			return
		case <-time.After(ReconnectDelay):
		}
	}
}

// readLoop blocks on the connection; Stop closes it to end the loop
func (s *Subscriber) readLoop(conn net.Conn) {
	for atomic.LoadInt32(&s.running) == 1 {
		msgType, data, err := ReadMessage(conn)
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Println("🔌 Server closed connection")
				return
			}
			if atomic.LoadInt32(&s.running) == 1 {
				log.Printf("⚠️ IPC read error: %v", err)
				atomic.AddInt64(&s.errors, 1)
			}
			return
		}

		switch msgType {
		case MsgTypeSnapshot:
			s.handleSnapshot(data)

		case MsgTypeConfig:
			s.handleConfig(data)

		case MsgTypePing:
			s.connMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
			WriteMessage(conn, MsgTypePong, nil)
			s.connMu.Unlock()
		}
	}
}

func (s *Subscriber) handleSnapshot(data []byte) {
	snapshot, err := DecodeSnapshot(data)
	if err != nil {
		log.Printf("⚠️ Failed to decode snapshot: %v", err)
		atomic.AddInt64(&s.errors, 1)
		return
	}

	s.latestSnapshot.Store(snapshot)
	atomic.AddInt64(&s.snapshotsReceived, 1)

	if s.onSnapshot != nil {
		s.onSnapshot(snapshot)
	}
}

func (s *Subscriber) handleConfig(data []byte) {
	config, err := DecodeConfig(data)
	if err != nil {
		log.Printf("⚠️ Failed to decode config: %v", err)
		atomic.AddInt64(&s.errors, 1)
		return
	}

	s.configMu.Lock()
	s.config = *config
	s.configMu.Unlock()

	log.Printf("📺 Received arena config: %dx%d, %d TPS, feed at %d FPS",
		config.Width, config.Height, config.TickRate, config.FPS)

	// Keep only the newest config in the channel
	select {
	case <-s.configCh:
	default:
	}
	select {
	case s.configCh <- *config:
	default:
	}

	if s.onConfig != nil {
		s.onConfig(config)
	}
}
