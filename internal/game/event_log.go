package game

import (
	"encoding/json"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	EventBufferSize    = 1024                   // Circular buffer size
	MaxEventsPerSec    = 5000                   // Global rate limit
	MaxEventsPerType   = 1000                   // Per event type rate limit per second
	BatchFlushSize     = 64                     // Records per batch write
	BatchFlushInterval = 100 * time.Millisecond // How often to flush
)

// EventLog is a bounded, rate-limited JSONL audit log of simulation records.
// Under pressure it drops the oldest records rather than slowing the tick.
type EventLog struct {
	buffer    [EventBufferSize]Record
	writeHead uint64 // atomic - producer position
	readHead  uint64 // atomic - consumer position
	bufMu     sync.Mutex

	globalLimiter *rate.Limiter
	typeLimiters  map[EventType]*rate.Limiter

	writerWg sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	file   *os.File
	fileMu sync.Mutex

	droppedCount uint64 // atomic
	totalCount   uint64 // atomic
}

// NewEventLog creates a stopped event log
func NewEventLog() *EventLog {
	el := &EventLog{
		globalLimiter: rate.NewLimiter(MaxEventsPerSec, MaxEventsPerSec/10),
		typeLimiters:  make(map[EventType]*rate.Limiter),
		stopChan:      make(chan struct{}),
	}
	for t := EventTypeTick; t <= EventTypeSessionLost; t++ {
		el.typeLimiters[t] = rate.NewLimiter(MaxEventsPerType, MaxEventsPerType/10)
	}
	return el
}

// Start opens filePath for append (if not empty) and starts the writer.
func (el *EventLog) Start(filePath string) error {
	if el.running.Load() {
		return nil
	}

	if filePath != "" {
		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		el.file = file
	}

	el.running.Store(true)
	el.writerWg.Add(1)
	go el.writerLoop()

	return nil
}

// Stop flushes pending records and closes the file
func (el *EventLog) Stop() {
	el.stopOnce.Do(func() {
		if !el.running.Load() {
			return
		}
		el.running.Store(false)
		close(el.stopChan)
		el.writerWg.Wait()

		el.fileMu.Lock()
		if el.file != nil {
			el.file.Close()
		}
		el.fileMu.Unlock()
	})
}

// Emit queues a record. Returns false if it was rate limited or the log is
// not running.
func (el *EventLog) Emit(rec Record) bool {
	if !el.running.Load() {
		return false
	}

	if !el.globalLimiter.Allow() {
		atomic.AddUint64(&el.droppedCount, 1)
		return false
	}
	if lim, ok := el.typeLimiters[rec.Type]; ok && !lim.Allow() {
		atomic.AddUint64(&el.droppedCount, 1)
		return false
	}

	el.bufMu.Lock()
	head := atomic.AddUint64(&el.writeHead, 1)
	if head-atomic.LoadUint64(&el.readHead) > EventBufferSize {
		// Rolling window: overwrite the oldest record
		atomic.AddUint64(&el.readHead, 1)
		atomic.AddUint64(&el.droppedCount, 1)
	}
	rec.Sequence = head
	el.buffer[head%EventBufferSize] = rec
	el.bufMu.Unlock()

	atomic.AddUint64(&el.totalCount, 1)
	return true
}

// EmitEvent wraps a simulation event in a record
func (el *EventLog) EmitEvent(ev Event) bool {
	return el.Emit(NewRecord(ev.Type, ev.Tick, ev))
}

func (el *EventLog) writerLoop() {
	defer el.writerWg.Done()

	ticker := time.NewTicker(BatchFlushInterval)
	defer ticker.Stop()

	batch := make([]Record, 0, BatchFlushSize)
	for {
		select {
		case <-el.stopChan:
			for {
				batch = el.collectBatch(batch[:0])
				if len(batch) == 0 {
					return
				}
				el.flushBatch(batch)
			}
		case <-ticker.C:
			batch = el.collectBatch(batch[:0])
			if len(batch) > 0 {
				el.flushBatch(batch)
			}
		}
	}
}

// collectBatch reads available records in sequence order
func (el *EventLog) collectBatch(batch []Record) []Record {
	el.bufMu.Lock()
	defer el.bufMu.Unlock()

	head := atomic.LoadUint64(&el.writeHead)
	tail := atomic.LoadUint64(&el.readHead)
	for i := tail + 1; i <= head && len(batch) < BatchFlushSize; i++ {
		batch = append(batch, el.buffer[i%EventBufferSize])
	}
	atomic.AddUint64(&el.readHead, uint64(len(batch)))
	return batch
}

// flushBatch appends newline-delimited JSON
func (el *EventLog) flushBatch(batch []Record) {
	el.fileMu.Lock()
	defer el.fileMu.Unlock()

	if el.file == nil {
		return
	}
	for _, rec := range batch {
		data, err := json.Marshal(rec)
		if err != nil {
			continue
		}
		el.file.Write(append(data, '\n'))
	}
}

// GetStats returns counters for the debug endpoint
func (el *EventLog) GetStats() map[string]interface{} {
	head := atomic.LoadUint64(&el.writeHead)
	tail := atomic.LoadUint64(&el.readHead)

	return map[string]interface{}{
		"total":   atomic.LoadUint64(&el.totalCount),
		"dropped": atomic.LoadUint64(&el.droppedCount),
		"pending": head - tail,
		"running": el.running.Load(),
	}
}

// GetDroppedCount returns the number of dropped records
func (el *EventLog) GetDroppedCount() uint64 {
	return atomic.LoadUint64(&el.droppedCount)
}

// GetTotalCount returns the number of accepted records
func (el *EventLog) GetTotalCount() uint64 {
	return atomic.LoadUint64(&el.totalCount)
}
