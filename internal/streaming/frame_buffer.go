package streaming

import (
	"sync/atomic"
)

// BufferSize is the default number of frame slots; ~533ms at 30 FPS.
// One slot always stays empty to tell full from empty.
const BufferSize = 16

// FrameRingBuffer decouples rendering from ffmpeg writes. A single producer
// (the render loop) and a single consumer (the async writer) share it
// without locks. A full buffer drops the new frame instead of blocking.
type FrameRingBuffer struct {
	frames    [][]byte
	readIdx   uint32 // atomic - consumer index
	writeIdx  uint32 // atomic - producer index
	frameSize int

	// Stats
	framesWritten uint64 // atomic
	framesDropped uint64 // atomic
	framesRead    uint64 // atomic
}

// NewFrameRingBuffer pre-allocates slots frames of frameSize bytes.
// slots <= 1 uses BufferSize.
func NewFrameRingBuffer(frameSize, slots int) *FrameRingBuffer {
	if slots <= 1 {
		slots = BufferSize
	}
	rb := &FrameRingBuffer{
		frames:    make([][]byte, slots),
		frameSize: frameSize,
	}
	for i := range rb.frames {
		rb.frames[i] = make([]byte, frameSize)
	}
	return rb
}

func (rb *FrameRingBuffer) next(i uint32) uint32 {
	return (i + 1) % uint32(len(rb.frames))
}

// TryWrite copies frame into the next slot. Returns false when the buffer is
// full or the frame has the wrong size.
func (rb *FrameRingBuffer) TryWrite(frame []byte) bool {
	if len(frame) != rb.frameSize {
		return false
	}

	currentWrite := atomic.LoadUint32(&rb.writeIdx)
	nextWrite := rb.next(currentWrite)

	if nextWrite == atomic.LoadUint32(&rb.readIdx) {
		atomic.AddUint64(&rb.framesDropped, 1)
		return false
	}

	copy(rb.frames[currentWrite], frame)

	atomic.StoreUint32(&rb.writeIdx, nextWrite)
	atomic.AddUint64(&rb.framesWritten, 1)
	return true
}

// TryRead returns the oldest frame, or nil when empty. The slice stays
// valid until the producer wraps around to its slot.
func (rb *FrameRingBuffer) TryRead() []byte {
	readIdx := atomic.LoadUint32(&rb.readIdx)
	if readIdx == atomic.LoadUint32(&rb.writeIdx) {
		return nil
	}

	frame := rb.frames[readIdx]

	atomic.StoreUint32(&rb.readIdx, rb.next(readIdx))
	atomic.AddUint64(&rb.framesRead, 1)
	return frame
}

// Available returns the number of frames waiting to be read
func (rb *FrameRingBuffer) Available() int {
	readIdx := atomic.LoadUint32(&rb.readIdx)
	writeIdx := atomic.LoadUint32(&rb.writeIdx)

	if writeIdx >= readIdx {
		return int(writeIdx - readIdx)
	}
	return len(rb.frames) - int(readIdx) + int(writeIdx)
}

// Capacity returns the maximum number of buffered frames
func (rb *FrameRingBuffer) Capacity() int {
	return len(rb.frames) - 1
}

// GetStats returns buffer statistics
func (rb *FrameRingBuffer) GetStats() (written, dropped, read uint64) {
	return atomic.LoadUint64(&rb.framesWritten),
		atomic.LoadUint64(&rb.framesDropped),
		atomic.LoadUint64(&rb.framesRead)
}

// Reset empties the buffer and clears the stats. Not safe while the
// producer or consumer is running.
func (rb *FrameRingBuffer) Reset() {
	atomic.StoreUint32(&rb.readIdx, 0)
	atomic.StoreUint32(&rb.writeIdx, 0)
	atomic.StoreUint64(&rb.framesWritten, 0)
	atomic.StoreUint64(&rb.framesDropped, 0)
	atomic.StoreUint64(&rb.framesRead, 0)
}
