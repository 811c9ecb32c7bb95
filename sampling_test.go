package perfcore

import (
	"testing"
	"time"
)

func TestSystemLoad_Bounds(t *testing.T) {
	load := NewSystemLoad()
	time.Sleep(20 * time.Millisecond)

	v, err := load.CPULoad()
	if err != nil {
		t.Skipf("cpu counters unavailable: %v", err)
	}
	if v < 0 || v > 100 {
		t.Errorf("Expected load within 0..100, got %.2f", v)
	}
}

func TestSystemHeap_Bounds(t *testing.T) {
	heap, err := NewSystemHeap()
	if err != nil {
		t.Skipf("memory counters unavailable: %v", err)
	}

	total := heap.TotalHeapBytes()
	if total == 0 {
		t.Fatalf("Expected non-zero total memory")
	}
	if free := heap.FreeHeapBytes(); free > total {
		t.Errorf("Expected free ≤ total, got %d > %d", free, total)
	}

	a := NewAllocator(DefaultConfig().Allocator, heap, discardLogger())
	if p := a.MemoryPressure(); p < 0 || p > 100 {
		t.Errorf("Expected pressure within 0..100, got %.2f", p)
	}
}
