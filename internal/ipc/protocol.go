// Package ipc links the arena server to out-of-process viewers (the streamer,
// a spectating terminal) over a local socket. Snapshots flow out, commands
// flow back in.
package ipc

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

const (
	// DefaultSocketPath is the Unix socket path for IPC
	DefaultSocketPath = "/tmp/rocket-arena.sock"

	// DefaultTCPPort is used instead of the socket where Unix sockets are unreliable
	DefaultTCPPort = "127.0.0.1:7890"

	// Message types
	MsgTypeSnapshot byte = 0x01
	MsgTypePing     byte = 0x02
	MsgTypePong     byte = 0x03
	MsgTypeConfig   byte = 0x04
	MsgTypeCommand  byte = 0x05

	// Protocol version for compatibility checking
	ProtocolVersion uint16 = 1

	// Connection settings
	MaxMessageSize = 1024 * 1024 // 1MB max message
	WriteTimeout   = 50 * time.Millisecond
	ReadTimeout    = 100 * time.Millisecond
	ReconnectDelay = 500 * time.Millisecond
)

// SnapshotMessage carries one arena snapshot plus the sound cues raised
// since the previous message.
type SnapshotMessage struct {
	Sequence   uint64
	Timestamp  int64 // Unix nano
	TickNumber uint64
	Seed       int64

	Width, Height float64
	FloorY        float64
	Platform      RectData

	Entities []EntityData
	HUD      HUDData
	Cues     []uint8
}

// RectData is the IPC representation of an axis-aligned box
type RectData struct {
	X, Y, W, H float64
}

// EntityData is the IPC representation of an entity view
type EntityData struct {
	Kind   uint8
	Visual uint8
	X, Y   float64
	W, H   float64
	Facing int
	Health int
}

// HUDData is the IPC representation of the HUD record
type HUDData struct {
	Phase           uint8
	Score           int
	Lives           int
	Wave            int
	TimeRemaining   float64
	TimerEnabled    bool
	Currency        int
	PurchasedAllies int
	Allies          int
	Cars            int
	Tick            uint64
}

// ConfigMessage is sent to every client right after it connects
type ConfigMessage struct {
	Width    int
	Height   int
	TickRate int
	FPS      int // Rate the publisher feeds snapshots at
}

// CommandMessage is a host command sent from a client back to the engine
type CommandMessage struct {
	Kind uint8
	Held uint16
	AimX float64
	AimY float64
}

// Header is the message header for framing
type Header struct {
	Version  uint16
	Type     byte
	Reserved byte
	Length   uint32
}

const HeaderSize = 8 // 2 + 1 + 1 + 4

var bufferPool = sync.Pool{
	New: func() interface{} { return new(bytes.Buffer) },
}

// WriteMessage writes a framed message to w
func WriteMessage(w io.Writer, msgType byte, data interface{}) error {
	body := bufferPool.Get().(*bytes.Buffer)
	body.Reset()
	defer bufferPool.Put(body)

	if data != nil {
		if err := gob.NewEncoder(body).Encode(data); err != nil {
			return fmt.Errorf("gob encode: %w", err)
		}
	}
	if body.Len() > MaxMessageSize {
		return fmt.Errorf("message too large: %d > %d", body.Len(), MaxMessageSize)
	}

	// Header and body go out in one write so concurrent frames never interleave
	frame := make([]byte, HeaderSize, HeaderSize+body.Len())
	binary.LittleEndian.PutUint16(frame[0:2], ProtocolVersion)
	frame[2] = msgType
	binary.LittleEndian.PutUint32(frame[4:8], uint32(body.Len()))
	frame = append(frame, body.Bytes()...)

	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadMessage reads a framed message from r
func ReadMessage(r io.Reader) (byte, []byte, error) {
	headerBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return 0, nil, err
	}

	header := Header{
		Version: binary.LittleEndian.Uint16(headerBuf[0:2]),
		Type:    headerBuf[2],
		Length:  binary.LittleEndian.Uint32(headerBuf[4:8]),
	}

	if header.Version != ProtocolVersion {
		return 0, nil, fmt.Errorf("version mismatch: got %d, want %d", header.Version, ProtocolVersion)
	}
	if header.Length > MaxMessageSize {
		return 0, nil, fmt.Errorf("message too large: %d > %d", header.Length, MaxMessageSize)
	}

	var body []byte
	if header.Length > 0 {
		body = make([]byte, header.Length)
		if _, err := io.ReadFull(r, body); err != nil {
			return 0, nil, fmt.Errorf("read body: %w", err)
		}
	}

	return header.Type, body, nil
}

func decode(data []byte, out interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(out)
}

// DecodeSnapshot decodes a snapshot body
func DecodeSnapshot(data []byte) (*SnapshotMessage, error) {
	var msg SnapshotMessage
	if err := decode(data, &msg); err != nil {
		return nil, fmt.Errorf("gob decode snapshot: %w", err)
	}
	return &msg, nil
}

// DecodeConfig decodes a config body
func DecodeConfig(data []byte) (*ConfigMessage, error) {
	var msg ConfigMessage
	if err := decode(data, &msg); err != nil {
		return nil, fmt.Errorf("gob decode config: %w", err)
	}
	return &msg, nil
}

// DecodeCommand decodes a command body
func DecodeCommand(data []byte) (*CommandMessage, error) {
	var msg CommandMessage
	if err := decode(data, &msg); err != nil {
		return nil, fmt.Errorf("gob decode command: %w", err)
	}
	return &msg, nil
}

// CleanupSocket removes the socket file if it exists
func CleanupSocket(path string) error {
	if _, err := os.Stat(path); err == nil {
		return os.Remove(path)
	}
	return nil
}
