package streaming

import (
	"rocket-arena/internal/game"
	"rocket-arena/internal/ipc"
)

// SnapshotSource is where the stream reads arena state from: a local
// *game.Engine or an *ipc.Remote fed by the server process
type SnapshotSource interface {
	GetSnapshot() *game.Snapshot
}

// NewIPCSource returns a source backed by the server socket. Cues carried by
// remote snapshots are replayed into sink so the stream's audio matches the
// server's events. Call before sub.Start.
func NewIPCSource(sub *ipc.Subscriber, sink game.AudioSink) *ipc.Remote {
	if sink != nil {
		sub.OnSnapshot(func(msg *ipc.SnapshotMessage) {
			for _, id := range msg.SoundIDs() {
				sink.Play(id)
			}
		})
	}
	return ipc.NewRemote(sub)
}
