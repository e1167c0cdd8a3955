package spatial

import (
	"runtime"
	"sync/atomic"
)

// CacheLineSize is the typical CPU cache line size (64 bytes on x86-64)
const CacheLineSize = 64

// Padding ensures variables don't share cache lines (prevents false sharing)
type Padding [CacheLineSize]byte

// slot pairs a value with the sequence number that says who may touch it next
type slot[T any] struct {
	seq  uint64
	item T
}

// LockFreeQueue is a bounded MPSC ring buffer (Vyukov style).
// Any number of goroutines may push; exactly one goroutine pops.
// A producer publishes a slot by bumping its sequence after writing the item,
// so the consumer never observes a claimed-but-unwritten slot.
//
// Memory Layout (prevents false sharing):
// [Padding][head][Padding][tail][Padding][data...]
type LockFreeQueue[T any] struct {
	_pad0 Padding

	head  uint64 // Next write position (producers)
	_pad1 Padding

	tail  uint64 // Next read position (consumer)
	_pad2 Padding

	mask  uint64 // Capacity mask for fast modulo (capacity-1)
	_pad3 Padding

	slots []slot[T]
}

// NewLockFreeQueue creates a new queue.
// capacity is rounded up to the next power of 2.
func NewLockFreeQueue[T any](capacity int) *LockFreeQueue[T] {
	size := 1
	for size < capacity {
		size <<= 1
	}

	q := &LockFreeQueue[T]{
		mask:  uint64(size - 1),
		slots: make([]slot[T], size),
	}
	for i := range q.slots {
		q.slots[i].seq = uint64(i)
	}
	return q
}

// TryPush attempts to add an item to the queue.
// Returns false if the queue is full. Safe for concurrent producers.
func (q *LockFreeQueue[T]) TryPush(item T) bool {
	for {
		head := atomic.LoadUint64(&q.head)
		s := &q.slots[head&q.mask]
		seq := atomic.LoadUint64(&s.seq)

		switch {
		case seq == head:
			if atomic.CompareAndSwapUint64(&q.head, head, head+1) {
				s.item = item
				atomic.StoreUint64(&s.seq, head+1)
				return true
			}
		case seq < head:
			return false // Slot not yet consumed: full
		}

		// Another producer won the slot, retry
		runtime.Gosched()
	}
}

// TryPop removes the oldest item. Returns (zero, false) if empty.
// Must only be called from the single consumer.
func (q *LockFreeQueue[T]) TryPop() (T, bool) {
	var zero T

	tail := atomic.LoadUint64(&q.tail)
	s := &q.slots[tail&q.mask]
	if atomic.LoadUint64(&s.seq) != tail+1 {
		return zero, false
	}

	item := s.item
	s.item = zero
	atomic.StoreUint64(&q.tail, tail+1)
	atomic.StoreUint64(&s.seq, tail+q.mask+1)
	return item, true
}

// Drain pops every available item into fn, returning how many were handled.
// Consumer only.
func (q *LockFreeQueue[T]) Drain(fn func(T)) int {
	n := 0
	for {
		item, ok := q.TryPop()
		if !ok {
			return n
		}
		fn(item)
		n++
	}
}

// Len returns the approximate number of queued items
func (q *LockFreeQueue[T]) Len() int {
	head := atomic.LoadUint64(&q.head)
	tail := atomic.LoadUint64(&q.tail)
	if head < tail {
		return 0
	}
	return int(head - tail)
}

// Cap returns the queue capacity
func (q *LockFreeQueue[T]) Cap() int {
	return int(q.mask + 1)
}
