package game

import (
	"encoding/json"
	"time"
)

// EventType enum for event classification
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypeTick              // Tick boundary with RNG seed
	EventTypeProjectileFired
	EventTypeProjectileHit
	EventTypeEnemyDied
	EventTypePlayerHit
	EventTypeAllyHit
	EventTypeAllyLost
	EventTypeCurrencyChanged
	EventTypeAllyPurchased
	EventTypeSessionStarted
	EventTypeSessionWon
	EventTypeSessionLost
)

// EventVersion for backwards compatibility in replay
const EventVersion uint8 = 1

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypeTick:
		return "tick"
	case EventTypeProjectileFired:
		return "projectile_fired"
	case EventTypeProjectileHit:
		return "projectile_hit"
	case EventTypeEnemyDied:
		return "enemy_died"
	case EventTypePlayerHit:
		return "player_hit"
	case EventTypeAllyHit:
		return "ally_hit"
	case EventTypeAllyLost:
		return "ally_lost"
	case EventTypeCurrencyChanged:
		return "currency_changed"
	case EventTypeAllyPurchased:
		return "ally_purchased"
	case EventTypeSessionStarted:
		return "session_started"
	case EventTypeSessionWon:
		return "session_won"
	case EventTypeSessionLost:
		return "session_lost"
	default:
		return "unknown"
	}
}

// MarshalText lets event types appear by name in JSON
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Event is a pure state-transition record produced by the simulation.
// The engine dispatches these to audio, HUD and persistence; the core never
// calls a collaborator itself.
type Event struct {
	Type  EventType `json:"type"`
	Tick  uint64    `json:"tick"`
	Owner Owner     `json:"owner,omitempty"` // ProjectileFired / ProjectileHit
	At    Vec2      `json:"at"`              // Where it happened
	Value int       `json:"value,omitempty"` // Remaining health/lives, new currency, wave...
}

// LoseReason explains a SessionLost event
const (
	LoseReasonLives = 1
	LoseReasonTimer = 2
)

// Record is the envelope written to the event log
type Record struct {
	Version   uint8           `json:"version"`   // Schema version
	Type      EventType       `json:"type"`      // Event type
	Timestamp int64           `json:"timestamp"` // Unix nano
	Sequence  uint64          `json:"sequence"`  // Monotonic sequence
	TickNum   uint64          `json:"tickNum"`   // Game tick this occurred in
	Payload   json.RawMessage `json:"payload"`   // JSON-encoded payload
}

// TickPayload contains tick boundary information for replay
type TickPayload struct {
	RNGSeed int64  `json:"rngSeed"`
	Phase   string `json:"phase"`
	Cars    int    `json:"cars"`
	Allies  int    `json:"allies"`
	Rockets int    `json:"rockets"`
}

// EncodePayload marshals a payload to JSON bytes
func EncodePayload(payload interface{}) json.RawMessage {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// NewRecord wraps a payload with the current timestamp
func NewRecord(eventType EventType, tickNum uint64, payload interface{}) Record {
	return Record{
		Version:   EventVersion,
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		TickNum:   tickNum,
		Payload:   EncodePayload(payload),
	}
}
