package game

import (
	"sync/atomic"
	"time"
)

// Snapshot is an immutable copy of the world for rendering.
// Uses value types (not pointers) so readers never race the tick driver.
type Snapshot struct {
	Sequence   uint64    `json:"sequence"`
	Timestamp  time.Time `json:"timestamp"`
	TickNumber uint64    `json:"tick"`
	RNGSeed    int64     `json:"seed"` // Seed for deterministic replay

	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	FloorY   float64 `json:"floorY"`
	Platform Rect    `json:"platform"`

	// Pre-allocated, never grows beyond the entity limits
	Entities []EntityView `json:"entities"`
	HUD      HUD          `json:"hud"`
}

// Copy returns a deep copy safe to keep after the pool recycles the slot
func (s *Snapshot) Copy() Snapshot {
	out := *s
	out.Entities = append([]EntityView(nil), s.Entities...)
	return out
}

// SnapshotPool pre-allocates snapshots to avoid GC pressure.
// Uses triple buffering for lock-free producer/consumer.
type SnapshotPool struct {
	snapshots [3]Snapshot // Triple buffer
	writeIdx  uint32      // atomic - producer index
	readIdx   uint32      // atomic - consumer index
	sequence  uint64      // atomic - monotonic sequence
}

// NewSnapshotPool creates a pool sized for capacity entities per snapshot
func NewSnapshotPool(capacity int) *SnapshotPool {
	pool := &SnapshotPool{}
	for i := 0; i < 3; i++ {
		pool.snapshots[i].Entities = make([]EntityView, 0, capacity)
	}
	return pool
}

// AcquireWrite gets the next write slot (producer only, called from the tick).
// Returns a snapshot with a reset entity slice but preserved capacity.
func (p *SnapshotPool) AcquireWrite() *Snapshot {
	idx := atomic.AddUint32(&p.writeIdx, 1) % 3
	snap := &p.snapshots[idx]

	snap.Entities = snap.Entities[:0]
	snap.HUD = HUD{}
	snap.Sequence = atomic.AddUint64(&p.sequence, 1)
	snap.Timestamp = time.Now()

	return snap
}

// PublishWrite marks the write complete and advances the read pointer
func (p *SnapshotPool) PublishWrite() {
	atomic.StoreUint32(&p.readIdx, atomic.LoadUint32(&p.writeIdx))
}

// AcquireRead gets the latest complete snapshot (consumers: render, api).
// Before the first publish it returns the zero snapshot.
func (p *SnapshotPool) AcquireRead() *Snapshot {
	idx := atomic.LoadUint32(&p.readIdx) % 3
	return &p.snapshots[idx]
}

// fillSnapshot copies the world into snap
func (w *World) fillSnapshot(snap *Snapshot) {
	snap.TickNumber = w.Tick
	snap.RNGSeed = w.Seed
	snap.Width = w.Arena.Width
	snap.Height = w.Arena.Height
	snap.FloorY = w.Arena.FloorY
	snap.Platform = w.Arena.Platform
	snap.Entities = w.Views(snap.Entities)
	snap.HUD = w.HUD()
}
