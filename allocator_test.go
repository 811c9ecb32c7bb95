package perfcore

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/mock/gomock"
)

func newTestAllocator(cfg AllocatorConfig, heap HeapSource) *Allocator {
	return NewAllocator(cfg, heap, discardLogger())
}

func TestAllocator_PoolAllocation(t *testing.T) {
	a := newTestAllocator(DefaultConfig().Allocator, nil)

	h1, err := a.Allocate(t0, 10)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if h1.Origin() != OriginPool {
		t.Errorf("Expected pool origin, got %s", h1.Origin())
	}

	buf := a.Bytes(h1)
	if len(buf) != 10 || cap(buf) != 12 {
		t.Errorf("Expected len 10 cap 12, got len %d cap %d", len(buf), cap(buf))
	}

	h2, _ := a.Allocate(t0, 7)
	blocks := a.Blocks()
	if len(blocks) != 2 {
		t.Fatalf("Expected 2 descriptors, got %d", len(blocks))
	}
	if blocks[1].Handle != h2 || blocks[1].Offset != 12 || blocks[1].Size != 8 {
		t.Errorf("Expected second block at offset 12 size 8, got %+v", blocks[1])
	}
	if a.Stats().PoolUsed != 20 {
		t.Errorf("Expected 20 bytes used, got %d", a.Stats().PoolUsed)
	}
}

func TestAllocator_InvalidSize(t *testing.T) {
	a := newTestAllocator(DefaultConfig().Allocator, nil)

	for _, size := range []int{0, -1} {
		if _, err := a.Allocate(t0, size); !errors.Is(err, ErrInvalidSize) {
			t.Errorf("Allocate(%d): expected ErrInvalidSize, got %v", size, err)
		}
	}
	if a.Stats().TotalAllocations != 0 {
		t.Errorf("Expected no allocations, got %d", a.Stats().TotalAllocations)
	}
}

func TestAllocator_DescriptorCapacity(t *testing.T) {
	cfg := DefaultConfig().Allocator
	a := newTestAllocator(cfg, nil)

	origins := map[Origin]int{}
	for i := 0; i < cfg.MaxBlocks+8; i++ {
		h, err := a.Allocate(t0, 16)
		if err != nil {
			t.Fatalf("Allocate #%d failed: %v", i, err)
		}
		origins[h.Origin()]++
	}

	if origins[OriginPool] != cfg.MaxBlocks {
		t.Errorf("Expected %d pool allocations, got %d", cfg.MaxBlocks, origins[OriginPool])
	}
	if origins[OriginGeneral] != 8 {
		t.Errorf("Expected 8 general fallbacks, got %d", origins[OriginGeneral])
	}
	if n := len(a.Blocks()); n > cfg.MaxBlocks {
		t.Errorf("Descriptor table grew past capacity: %d > %d", n, cfg.MaxBlocks)
	}
	if a.Stats().PoolFailures != 8 {
		t.Errorf("Expected 8 pool failures, got %d", a.Stats().PoolFailures)
	}
}

func TestAllocator_ArenaExhaustion(t *testing.T) {
	cfg := DefaultConfig().Allocator
	cfg.ArenaSize = 64
	a := newTestAllocator(cfg, nil)

	h1, _ := a.Allocate(t0, 60)
	h2, _ := a.Allocate(t0, 8)

	if h1.Origin() != OriginPool {
		t.Errorf("Expected first request from pool, got %s", h1.Origin())
	}
	if h2.Origin() != OriginGeneral {
		t.Errorf("Expected overflow to general heap, got %s", h2.Origin())
	}
	if len(a.Bytes(h2)) != 8 {
		t.Errorf("Expected 8 usable bytes from general heap, got %d", len(a.Bytes(h2)))
	}
}

func TestAllocator_SecondaryBudget(t *testing.T) {
	cfg := DefaultConfig().Allocator
	cfg.SecondaryBudget = 4096
	a := newTestAllocator(cfg, nil)

	h1, _ := a.Allocate(t0, 2000)
	h2, _ := a.Allocate(t0, 2000)
	h3, _ := a.Allocate(t0, 2000)

	if h1.Origin() != OriginSecondary || h2.Origin() != OriginSecondary {
		t.Errorf("Expected secondary origin, got %s and %s", h1.Origin(), h2.Origin())
	}
	if h3.Origin() != OriginGeneral {
		t.Errorf("Expected general fallback once budget is spent, got %s", h3.Origin())
	}

	if err := a.Release(t0, h1); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	h4, _ := a.Allocate(t0, 2000)
	if h4.Origin() != OriginSecondary {
		t.Errorf("Expected released budget to be reusable, got %s", h4.Origin())
	}
}

func TestAllocator_Release(t *testing.T) {
	a := newTestAllocator(DefaultConfig().Allocator, nil)

	pool, _ := a.Allocate(t0, 32)
	general := a.allocateGeneral(32)

	if err := a.Release(t0, pool); err != nil {
		t.Errorf("Release(pool) failed: %v", err)
	}
	if err := a.Release(t0, general); err != nil {
		t.Errorf("Release(general) failed: %v", err)
	}
	if a.Bytes(pool) != nil {
		t.Errorf("Expected released handle to resolve to nil")
	}

	for _, h := range []Handle{pool, general, 0, Handle(42)} {
		if err := a.Release(t0, h); !errors.Is(err, ErrUnknownHandle) {
			t.Errorf("Release(%s): expected ErrUnknownHandle, got %v", h, err)
		}
	}

	stats := a.Stats()
	if stats.Releases != 2 || stats.UnknownReleases != 4 {
		t.Errorf("Expected 2 releases and 4 unknown, got %d and %d", stats.Releases, stats.UnknownReleases)
	}
}

func TestAllocator_DefragmentConvergence(t *testing.T) {
	a := newTestAllocator(DefaultConfig().Allocator, nil)

	handles := make([]Handle, 10)
	for i := range handles {
		h, err := a.Allocate(t0, 16)
		if err != nil {
			t.Fatalf("Allocate failed: %v", err)
		}
		buf := a.Bytes(h)
		for j := range buf {
			buf[j] = byte(i)
		}
		handles[i] = h
	}

	// Keep blocks 3 and 7, free the rest.
	for i, h := range handles {
		if i != 3 && i != 7 {
			a.Release(t0, h)
		}
	}
	if frag := a.Fragmentation(); frag != 0.8 {
		t.Errorf("Expected fragmentation 0.8, got %.2f", frag)
	}

	if !a.Defragment() {
		t.Fatal("Expected compaction above threshold")
	}
	if frag := a.Fragmentation(); frag != 0 {
		t.Errorf("Expected fragmentation 0 after compaction, got %.2f", frag)
	}
	if used := a.Stats().PoolUsed; used != 32 {
		t.Errorf("Expected write offset 32, got %d", used)
	}

	for _, i := range []int{3, 7} {
		buf := a.Bytes(handles[i])
		if len(buf) != 16 {
			t.Fatalf("Handle %s lost after compaction", handles[i])
		}
		for _, b := range buf {
			if b != byte(i) {
				t.Errorf("Block %d content corrupted: got %d", i, b)
				break
			}
		}
	}

	if a.Defragment() {
		t.Errorf("Expected second Defragment to be a no-op")
	}
	AssertNoOverlap(t, a.Blocks(), AssertionConfigFor(DefaultConfig()))
}

func TestAllocator_DefragmentBelowThreshold(t *testing.T) {
	a := newTestAllocator(DefaultConfig().Allocator, nil)

	var first Handle
	for i := 0; i < 10; i++ {
		h, _ := a.Allocate(t0, 16)
		if i == 0 {
			first = h
		}
	}
	a.Release(t0, first)

	if a.Defragment() {
		t.Errorf("Expected no compaction at fragmentation %.2f", a.Fragmentation())
	}
	if !a.GarbageCollect(t0) {
		t.Errorf("Expected GarbageCollect to compact any freed block")
	}
	if n := len(a.Blocks()); n != 9 {
		t.Errorf("Expected 9 descriptors after GC, got %d", n)
	}
}

func TestAllocator_MaintainTimedGC(t *testing.T) {
	cfg := DefaultConfig().Allocator
	a := newTestAllocator(cfg, nil)

	h, _ := a.Allocate(t0, 16)
	a.Allocate(t0, 16)
	a.Release(t0, h)

	a.Maintain(t0)
	if a.Stats().GCRuns != 0 {
		t.Fatalf("Expected no GC on the first cycle")
	}

	a.Maintain(t0.Add(cfg.GCInterval))
	stats := a.Stats()
	if stats.GCRuns != 1 {
		t.Errorf("Expected 1 GC run, got %d", stats.GCRuns)
	}
	if stats.FreedBlocks != 0 || stats.LiveBlocks != 1 {
		t.Errorf("Expected freed block reclaimed, got %d live %d freed", stats.LiveBlocks, stats.FreedBlocks)
	}
}

func TestAllocator_HeapLowWater(t *testing.T) {
	ctrl := gomock.NewController(t)
	heap := NewMockHeapSource(ctrl)
	heap.EXPECT().FreeHeapBytes().Return(uint64(1024)).AnyTimes()
	heap.EXPECT().TotalHeapBytes().Return(uint64(4096)).AnyTimes()

	a := newTestAllocator(DefaultConfig().Allocator, heap)
	h, _ := a.Allocate(t0, 16)
	a.Allocate(t0, 16)
	a.Release(t0, h)

	gcBefore := a.Stats().GCRuns
	a.Maintain(t0.Add(time.Second))
	if a.Stats().GCRuns != gcBefore+1 {
		t.Errorf("Expected low-water GC, got %d runs", a.Stats().GCRuns)
	}

	if p := a.MemoryPressure(); p != 75 {
		t.Errorf("Expected heap pressure 75%%, got %.1f%%", p)
	}
}

func TestAllocator_MemoryPressure(t *testing.T) {
	a := newTestAllocator(DefaultConfig().Allocator, &fakeHeap{free: 1 << 20, total: 1 << 20})

	if p := a.MemoryPressure(); p != 0 {
		t.Errorf("Expected 0%% pressure, got %.1f%%", p)
	}
	for i := 0; i < 8; i++ {
		a.Allocate(t0, 1024)
	}
	if p := a.MemoryPressure(); p != 50 {
		t.Errorf("Expected 50%% pool pressure, got %.1f%%", p)
	}
}

func TestAllocator_Disabled(t *testing.T) {
	cfg := DefaultConfig().Allocator
	cfg.Enabled = false
	a := newTestAllocator(cfg, nil)

	h, err := a.Allocate(t0, 16)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if h.Origin() != OriginGeneral {
		t.Errorf("Expected pass-through to general heap, got %s", h.Origin())
	}
	if a.Capacity() != 0 {
		t.Errorf("Expected no arena, got %d bytes", a.Capacity())
	}
}

func TestAllocator_ChurnKeepsBlocksDisjoint(t *testing.T) {
	cfg := DefaultConfig()
	a := newTestAllocator(cfg.Allocator, nil)

	var live []Handle
	now := t0
	for i := 0; i < 500; i++ {
		now = now.Add(100 * time.Millisecond)
		if i%3 == 2 && len(live) > 0 {
			a.Release(now, live[0])
			live = live[1:]
		} else if h, err := a.Allocate(now, 8+(i*37)%500); err == nil && h.Origin() == OriginPool {
			live = append(live, h)
		}
		a.Maintain(now)
	}

	AssertNoOverlap(t, a.Blocks(), AssertionConfigFor(cfg))
	if a.LiveBytes() > a.Capacity() {
		t.Errorf("Live bytes %d exceed arena %d", a.LiveBytes(), a.Capacity())
	}
}
