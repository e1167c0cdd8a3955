package spatial

import (
	"runtime"
	"sync"
	"testing"
	"time"
)

func TestGridQueryRadius(t *testing.T) {
	g := NewGrid(800, 500, 64, 40)

	g.Insert(0, 100, 100)
	g.Insert(1, 110, 105)
	g.Insert(2, 700, 450)
	g.Insert(3, 120, 90)

	got := g.QueryRadius(105, 100, 20)
	want := []uint32{3, 1, 0}
	if len(got) != len(want) {
		t.Fatalf("QueryRadius = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("QueryRadius = %v, want %v (latest inserted first)", got, want)
		}
	}

	if far := g.QueryRadius(400, 250, 10); len(far) != 0 {
		t.Errorf("empty area returned %v", far)
	}
}

func TestGridClampsOutsidePositions(t *testing.T) {
	g := NewGrid(800, 500, 64, 40)
	g.Insert(7, -50, 900)

	got := g.QueryRadius(0, 499, 1)
	if len(got) != 1 || got[0] != 7 {
		t.Errorf("QueryRadius = %v, want [7] from the border cell", got)
	}
}

func TestGridClear(t *testing.T) {
	g := NewGrid(800, 500, 64, 40)
	g.Insert(0, 10, 10)
	g.Clear()

	if got := g.QueryRadius(10, 10, 100); len(got) != 0 {
		t.Errorf("QueryRadius after Clear = %v", got)
	}
}

func TestGridDimensions(t *testing.T) {
	tests := []struct {
		name               string
		w, h, cell         float64
		wantCols, wantRows int
		wantCell           float64
	}{
		{"arena", 800, 500, 64, 13, 8, 64},
		{"exact fit", 640, 320, 64, 10, 5, 64},
		{"default cell", 800, 500, 0, 8, 5, 100},
		{"degenerate", 0, 0, 64, 1, 1, 64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cols, rows, cell := NewGrid(tt.w, tt.h, tt.cell, 16).Dimensions()
			if cols != tt.wantCols || rows != tt.wantRows || cell != tt.wantCell {
				t.Errorf("Dimensions = (%d, %d, %v), want (%d, %d, %v)",
					cols, rows, cell, tt.wantCols, tt.wantRows, tt.wantCell)
			}
		})
	}
}

func TestQueueFIFO(t *testing.T) {
	q := NewLockFreeQueue[int](5)
	if q.Cap() != 8 {
		t.Fatalf("Cap = %d, want 8 (rounded up)", q.Cap())
	}

	for i := 0; i < 8; i++ {
		if !q.TryPush(i) {
			t.Fatalf("TryPush(%d) refused", i)
		}
	}
	if q.TryPush(99) {
		t.Error("TryPush accepted on a full queue")
	}
	if q.Len() != 8 {
		t.Errorf("Len = %d, want 8", q.Len())
	}

	for want := 0; want < 8; want++ {
		got, ok := q.TryPop()
		if !ok || got != want {
			t.Fatalf("TryPop = (%d, %v), want (%d, true)", got, ok, want)
		}
	}
	if _, ok := q.TryPop(); ok {
		t.Error("TryPop succeeded on an empty queue")
	}

	// Slots are reusable after wrapping
	q.TryPush(100)
	q.TryPush(101)
	var drained []int
	if n := q.Drain(func(v int) { drained = append(drained, v) }); n != 2 {
		t.Errorf("Drain = %d, want 2", n)
	}
	if len(drained) != 2 || drained[0] != 100 || drained[1] != 101 {
		t.Errorf("drained %v, want [100 101]", drained)
	}
}

func TestQueueConcurrentProducers(t *testing.T) {
	const producers = 8
	const perProducer = 500
	const total = producers * perProducer

	q := NewLockFreeQueue[int](256)
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				for !q.TryPush(p*perProducer + i) {
					runtime.Gosched()
				}
			}
		}(p)
	}

	// Every value arrives once, and each producer's values arrive in push order
	seen := make(map[int]bool, total)
	last := make([]int, producers)
	for i := range last {
		last[i] = -1
	}
	deadline := time.Now().Add(5 * time.Second)
	for len(seen) < total {
		v, ok := q.TryPop()
		if !ok {
			if time.Now().After(deadline) {
				t.Fatalf("lost values: got %d of %d", len(seen), total)
			}
			runtime.Gosched()
			continue
		}
		if seen[v] {
			t.Fatalf("value %d delivered twice", v)
		}
		seen[v] = true

		p, i := v/perProducer, v%perProducer
		if i <= last[p] {
			t.Fatalf("producer %d out of order: %d after %d", p, i, last[p])
		}
		last[p] = i
	}
	wg.Wait()
}

func BenchmarkGridQuery(b *testing.B) {
	g := NewGrid(800, 500, 64, 40)
	for i := 0; i < 40; i++ {
		g.Insert(uint32(i), float64(i*20), 470)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g.QueryRadius(400, 470, 25)
	}
}

func BenchmarkQueuePushPop(b *testing.B) {
	q := NewLockFreeQueue[int](256)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		q.TryPush(i)
		q.TryPop()
	}
}
