package streaming

import (
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// MaxConsecutiveErrors before the output is reported lost
	MaxConsecutiveErrors = 10
	// BackpressureWarningThreshold warns when a write takes this many frame intervals
	BackpressureWarningThreshold = 2.0
	// BackpressureLogInterval rate-limits backpressure warnings
	BackpressureLogInterval = 5 * time.Second
)

// AsyncFrameWriter drains a ring buffer into ffmpeg's stdin at a steady
// rate, so a slow encoder or network never stalls the render loop.
type AsyncFrameWriter struct {
	ringBuffer *FrameRingBuffer
	pipe       io.Writer
	stopChan   chan struct{}
	wg         sync.WaitGroup
	running    int32 // atomic

	// Stats
	framesWritten      uint64 // atomic
	writeErrors        uint64 // atomic
	avgWriteTimeNs     int64  // atomic
	maxWriteTimeNs     int64  // atomic
	backpressureEvents int64  // atomic

	consecutiveErrors int32 // atomic
	connectionLost    int32 // atomic

	mu                  sync.Mutex
	lastBackpressureLog time.Time
	onConnectionLost    func()
}

// NewAsyncFrameWriter creates a writer draining ringBuffer into pipe
func NewAsyncFrameWriter(ringBuffer *FrameRingBuffer, pipe io.Writer) *AsyncFrameWriter {
	return &AsyncFrameWriter{
		ringBuffer: ringBuffer,
		pipe:       pipe,
		stopChan:   make(chan struct{}),
	}
}

// SetOnConnectionLost sets a callback run once after MaxConsecutiveErrors
// failed writes in a row
func (w *AsyncFrameWriter) SetOnConnectionLost(callback func()) {
	w.mu.Lock()
	w.onConnectionLost = callback
	w.mu.Unlock()
}

// IsConnectionLost reports whether the output has been declared lost
func (w *AsyncFrameWriter) IsConnectionLost() bool {
	return atomic.LoadInt32(&w.connectionLost) == 1
}

// Start writes up to one frame per tick at fps
func (w *AsyncFrameWriter) Start(fps int) {
	if !atomic.CompareAndSwapInt32(&w.running, 0, 1) {
		return // Already running
	}
	if fps <= 0 {
		fps = 30
	}

	atomic.StoreInt32(&w.connectionLost, 0)
	atomic.StoreInt32(&w.consecutiveErrors, 0)

	w.stopChan = make(chan struct{})
	w.wg.Add(1)

	go func() {
		defer w.wg.Done()

		frameInterval := time.Second / time.Duration(fps)
		ticker := time.NewTicker(frameInterval)
		defer ticker.Stop()

		for {
			select {
			case <-w.stopChan:
				return
			case <-ticker.C:
				if atomic.LoadInt32(&w.connectionLost) == 1 {
					continue
				}
				if frame := w.ringBuffer.TryRead(); frame != nil {
					w.write(frame, frameInterval)
				}
			}
		}
	}()
}

func (w *AsyncFrameWriter) write(frame []byte, frameInterval time.Duration) {
	start := time.Now()
	_, err := w.pipe.Write(frame)
	writeTime := time.Since(start)

	if err != nil {
		atomic.AddUint64(&w.writeErrors, 1)
		errCount := atomic.AddInt32(&w.consecutiveErrors, 1)
		if errCount <= 3 {
			log.Printf("❌ Frame write error (%d/%d): %v", errCount, MaxConsecutiveErrors, err)
		}
		if errCount >= MaxConsecutiveErrors && atomic.CompareAndSwapInt32(&w.connectionLost, 0, 1) {
			log.Printf("🔴 Stream output lost after %d consecutive errors", errCount)
			w.mu.Lock()
			callback := w.onConnectionLost
			w.mu.Unlock()
			if callback != nil {
				go callback()
			}
		}
		return
	}

	atomic.StoreInt32(&w.consecutiveErrors, 0)
	atomic.AddUint64(&w.framesWritten, 1)

	// Exponential moving average
	avgNs := atomic.LoadInt64(&w.avgWriteTimeNs)
	atomic.StoreInt64(&w.avgWriteTimeNs, (avgNs*9+writeTime.Nanoseconds())/10)
	if writeTime.Nanoseconds() > atomic.LoadInt64(&w.maxWriteTimeNs) {
		atomic.StoreInt64(&w.maxWriteTimeNs, writeTime.Nanoseconds())
	}

	if float64(writeTime) >= BackpressureWarningThreshold*float64(frameInterval) {
		atomic.AddInt64(&w.backpressureEvents, 1)

		w.mu.Lock()
		shouldLog := time.Since(w.lastBackpressureLog) > BackpressureLogInterval
		if shouldLog {
			w.lastBackpressureLog = time.Now()
		}
		w.mu.Unlock()

		if shouldLog {
			log.Printf("⚠️ Backpressure: ffmpeg write took %.0fms (target %.1fms); consider lowering STREAM_BITRATE",
				writeTime.Seconds()*1000, frameInterval.Seconds()*1000)
		}
	}
}

// Stop stops the writer and waits for it to finish
func (w *AsyncFrameWriter) Stop() {
	if !atomic.CompareAndSwapInt32(&w.running, 1, 0) {
		return // Not running
	}
	close(w.stopChan)
	w.wg.Wait()
}

// IsRunning returns whether the writer is currently running
func (w *AsyncFrameWriter) IsRunning() bool {
	return atomic.LoadInt32(&w.running) == 1
}

// GetStats returns writer and buffer statistics
func (w *AsyncFrameWriter) GetStats() map[string]interface{} {
	bufWritten, bufDropped, bufRead := w.ringBuffer.GetStats()

	return map[string]interface{}{
		"framesWritten":      atomic.LoadUint64(&w.framesWritten),
		"writeErrors":        atomic.LoadUint64(&w.writeErrors),
		"connectionLost":     w.IsConnectionLost(),
		"avgWriteTimeMs":     float64(atomic.LoadInt64(&w.avgWriteTimeNs)) / 1e6,
		"maxWriteTimeMs":     float64(atomic.LoadInt64(&w.maxWriteTimeNs)) / 1e6,
		"backpressureEvents": atomic.LoadInt64(&w.backpressureEvents),
		"bufferAvailable":    w.ringBuffer.Available(),
		"bufferWritten":      bufWritten,
		"bufferDropped":      bufDropped,
		"bufferRead":         bufRead,
	}
}
