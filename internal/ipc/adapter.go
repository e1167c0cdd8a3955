package ipc

import (
	"sync"
	"time"

	"rocket-arena/internal/game"
)

// FromSnapshot converts a game snapshot to an IPC message. The snapshot is
// read once and not retained, so pool-backed snapshots are safe to pass.
func FromSnapshot(s *game.Snapshot, cues []game.SoundID) *SnapshotMessage {
	msg := &SnapshotMessage{
		Sequence:   s.Sequence,
		Timestamp:  s.Timestamp.UnixNano(),
		TickNumber: s.TickNumber,
		Seed:       s.RNGSeed,
		Width:      s.Width,
		Height:     s.Height,
		FloorY:     s.FloorY,
		Platform:   RectData{X: s.Platform.X, Y: s.Platform.Y, W: s.Platform.W, H: s.Platform.H},
		HUD: HUDData{
			Phase:           uint8(s.HUD.Phase),
			Score:           s.HUD.Score,
			Lives:           s.HUD.Lives,
			Wave:            s.HUD.Wave,
			TimeRemaining:   s.HUD.TimeRemaining,
			TimerEnabled:    s.HUD.TimerEnabled,
			Currency:        s.HUD.Currency,
			PurchasedAllies: s.HUD.PurchasedAllies,
			Allies:          s.HUD.Allies,
			Cars:            s.HUD.Cars,
			Tick:            s.HUD.Tick,
		},
	}

	msg.Entities = make([]EntityData, len(s.Entities))
	for i, e := range s.Entities {
		msg.Entities[i] = EntityData{
			Kind:   uint8(e.Kind),
			Visual: uint8(e.Visual),
			X:      e.X,
			Y:      e.Y,
			W:      e.W,
			H:      e.H,
			Facing: e.Facing,
			Health: e.Health,
		}
	}

	if len(cues) > 0 {
		msg.Cues = make([]uint8, len(cues))
		for i, c := range cues {
			msg.Cues[i] = uint8(c)
		}
	}

	return msg
}

// ToSnapshot converts an IPC message back to a game snapshot so the
// renderer and terminal view can draw remote state unchanged.
func (msg *SnapshotMessage) ToSnapshot() *game.Snapshot {
	snap := &game.Snapshot{
		Sequence:   msg.Sequence,
		Timestamp:  time.Unix(0, msg.Timestamp),
		TickNumber: msg.TickNumber,
		RNGSeed:    msg.Seed,
		Width:      msg.Width,
		Height:     msg.Height,
		FloorY:     msg.FloorY,
		Platform:   game.Rect{X: msg.Platform.X, Y: msg.Platform.Y, W: msg.Platform.W, H: msg.Platform.H},
		HUD: game.HUD{
			Phase:           game.Phase(msg.HUD.Phase),
			Score:           msg.HUD.Score,
			Lives:           msg.HUD.Lives,
			Wave:            msg.HUD.Wave,
			TimeRemaining:   msg.HUD.TimeRemaining,
			TimerEnabled:    msg.HUD.TimerEnabled,
			Currency:        msg.HUD.Currency,
			PurchasedAllies: msg.HUD.PurchasedAllies,
			Allies:          msg.HUD.Allies,
			Cars:            msg.HUD.Cars,
			Tick:            msg.HUD.Tick,
		},
	}

	snap.Entities = make([]game.EntityView, len(msg.Entities))
	for i, e := range msg.Entities {
		snap.Entities[i] = game.EntityView{
			Kind:   game.Kind(e.Kind),
			Visual: game.Visual(e.Visual),
			X:      e.X,
			Y:      e.Y,
			W:      e.W,
			H:      e.H,
			Facing: e.Facing,
			Health: e.Health,
		}
	}

	return snap
}

// SoundIDs returns the cues carried by the message
func (msg *SnapshotMessage) SoundIDs() []game.SoundID {
	ids := make([]game.SoundID, len(msg.Cues))
	for i, c := range msg.Cues {
		ids[i] = game.SoundID(c)
	}
	return ids
}

// FromCommand converts a host command to its wire form
func FromCommand(c game.Command) CommandMessage {
	return CommandMessage{
		Kind: uint8(c.Kind),
		Held: uint16(c.Input.Held),
		AimX: c.Input.Aim.X,
		AimY: c.Input.Aim.Y,
	}
}

// ToCommand converts a wire command back to a host command
func (m CommandMessage) ToCommand() game.Command {
	return game.Command{
		Kind: game.CommandKind(m.Kind),
		Input: game.Input{
			Held: game.Action(m.Held),
			Aim:  game.Vec2{X: m.AimX, Y: m.AimY},
		},
	}
}

// Remote presents a subscriber as an engine to viewers: it serves the
// latest received snapshot and forwards commands over the socket.
type Remote struct {
	sub *Subscriber

	mu      sync.Mutex
	lastSeq uint64
	current *game.Snapshot
}

// NewRemote wraps a started or not-yet-started subscriber
func NewRemote(sub *Subscriber) *Remote {
	return &Remote{
		sub:     sub,
		current: &game.Snapshot{},
	}
}

// GetSnapshot returns the latest remote snapshot, or an empty idle snapshot
// until the first one arrives. Conversion happens once per new sequence.
func (r *Remote) GetSnapshot() *game.Snapshot {
	msg := r.sub.GetLatestSnapshot()

	r.mu.Lock()
	defer r.mu.Unlock()
	if msg != nil && (msg.Sequence != r.lastSeq || r.current.Sequence == 0) {
		r.current = msg.ToSnapshot()
		r.lastSeq = msg.Sequence
	}
	return r.current
}

// Submit sends c to the server. Returns false while disconnected.
func (r *Remote) Submit(c game.Command) bool {
	return r.sub.SendCommand(c)
}
