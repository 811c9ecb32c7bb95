package perfcore

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// Origin records which region served an allocation.
type Origin uint8

const (
	OriginPool Origin = iota + 1
	OriginSecondary
	OriginGeneral
)

func (o Origin) String() string {
	switch o {
	case OriginPool:
		return "pool"
	case OriginSecondary:
		return "secondary"
	case OriginGeneral:
		return "general"
	}
	return "unknown"
}

const originShift = 56

// Handle identifies one allocation. The origin is encoded in the top byte, so
// a release never has to guess which region the memory came from. The zero
// Handle is never issued.
type Handle uint64

// Origin returns the region that issued h.
func (h Handle) Origin() Origin {
	return Origin(h >> originShift)
}

func (h Handle) String() string {
	return fmt.Sprintf("%s#%d", h.Origin(), uint64(h)&(1<<originShift-1))
}

// MemoryBlock is one pool descriptor.
type MemoryBlock struct {
	Handle    Handle
	Offset    int // byte offset into the arena
	Size      int // aligned size
	Requested int // size the caller asked for
	InUse     bool
	AllocTime time.Time
	LastUsed  time.Time
}

// AllocatorStats is a read-only view of the allocator counters.
type AllocatorStats struct {
	TotalAllocations     int64
	PoolAllocations      int64
	SecondaryAllocations int64
	GeneralAllocations   int64
	PoolFailures         int64
	SecondaryFailures    int64
	Releases             int64
	UnknownReleases      int64
	Defragmentations     int64
	GCRuns               int64

	PoolUsed       int // arena write offset
	PoolLive       int // bytes held by in-use blocks
	PoolCapacity   int
	SecondaryUsed  int
	SecondaryLimit int
	LiveBlocks     int
	FreedBlocks    int
	Fragmentation  float64
	MemoryPressure float64
}

type sideBuffer struct {
	buf  []byte
	size int // aligned size charged against the region
}

// Allocator serves small requests from a fixed arena with a bounded
// descriptor table, large requests from a budgeted secondary region, and
// everything else from the Go heap. It is not safe for concurrent use; Core
// serializes access.
type Allocator struct {
	cfg    AllocatorConfig
	heap   HeapSource
	logger *slog.Logger

	arena       []byte
	blocks      []MemoryBlock // fixed capacity MaxBlocks
	nblocks     int
	writeOffset int

	secondary     map[Handle]sideBuffer
	secondaryUsed int
	general       map[Handle]sideBuffer

	seq    uint64
	lastGC time.Time

	allocations *xsync.Counter

	poolAllocs, secondaryAllocs, generalAllocs int64
	poolFailures, secondaryFailures            int64
	releases, unknownReleases                  int64
	defrags, gcRuns                            int64
}

// NewAllocator builds an allocator. heap may be nil, in which case only the
// arena contributes to memory pressure and the low-water GC trigger never fires.
func NewAllocator(cfg AllocatorConfig, heap HeapSource, logger *slog.Logger) *Allocator {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Allocator{
		cfg:         cfg,
		heap:        heap,
		logger:      logger,
		allocations: xsync.NewCounter(),
	}
	a.Reset()
	return a
}

// Reset drops every allocation and zeroes all counters.
func (a *Allocator) Reset() {
	if a.cfg.Enabled {
		a.arena = make([]byte, a.cfg.ArenaSize)
		a.blocks = make([]MemoryBlock, a.cfg.MaxBlocks)
	} else {
		a.arena, a.blocks = nil, nil
	}
	a.nblocks = 0
	a.writeOffset = 0
	a.secondary = make(map[Handle]sideBuffer)
	a.secondaryUsed = 0
	a.general = make(map[Handle]sideBuffer)
	a.seq = 0
	a.lastGC = time.Time{}
	a.allocations.Reset()
	a.poolAllocs, a.secondaryAllocs, a.generalAllocs = 0, 0, 0
	a.poolFailures, a.secondaryFailures = 0, 0
	a.releases, a.unknownReleases = 0, 0
	a.defrags, a.gcRuns = 0, 0
}

func (a *Allocator) align(size int) int {
	mask := a.cfg.Alignment - 1
	return (size + mask) &^ mask
}

func (a *Allocator) nextHandle(o Origin) Handle {
	a.seq++
	return Handle(uint64(o)<<originShift | a.seq)
}

// Allocate returns a handle to size bytes. Pool and secondary exhaustion are
// normal outcomes and fall through to the general heap, so the only error is
// ErrInvalidSize.
func (a *Allocator) Allocate(now time.Time, size int) (Handle, error) {
	if size <= 0 {
		return 0, fmt.Errorf("allocate %d bytes: %w", size, ErrInvalidSize)
	}

	if a.cfg.Enabled {
		if size <= a.cfg.SmallThreshold {
			h, err := a.allocatePool(now, size)
			if err == nil {
				return h, nil
			}
			a.poolFailures++
			a.logger.Debug("pool allocation failed, using general heap",
				"size", size, "err", err)
		} else {
			h, err := a.allocateSecondary(size)
			if err == nil {
				return h, nil
			}
			a.secondaryFailures++
			a.logger.Debug("secondary allocation failed, using general heap",
				"size", size, "err", err)
		}
	}

	h := a.allocateGeneral(size)
	if a.heapLow() {
		a.GarbageCollect(now)
	}
	return h, nil
}

func (a *Allocator) allocatePool(now time.Time, size int) (Handle, error) {
	aligned := a.align(size)
	if a.writeOffset+aligned > len(a.arena) {
		return 0, fmt.Errorf("%w: %d of %d bytes used, need %d",
			ErrPoolExhausted, a.writeOffset, len(a.arena), aligned)
	}
	if a.nblocks >= len(a.blocks) {
		return 0, fmt.Errorf("%w: all %d descriptors claimed", ErrPoolExhausted, len(a.blocks))
	}

	h := a.nextHandle(OriginPool)
	a.blocks[a.nblocks] = MemoryBlock{
		Handle:    h,
		Offset:    a.writeOffset,
		Size:      aligned,
		Requested: size,
		InUse:     true,
		AllocTime: now,
		LastUsed:  now,
	}
	a.nblocks++
	a.writeOffset += aligned
	a.poolAllocs++
	a.allocations.Inc()
	return h, nil
}

func (a *Allocator) allocateSecondary(size int) (Handle, error) {
	aligned := a.align(size)
	if a.secondaryUsed+aligned > a.cfg.SecondaryBudget {
		return 0, fmt.Errorf("%w: %d of %d bytes used, need %d",
			ErrSecondaryExhausted, a.secondaryUsed, a.cfg.SecondaryBudget, aligned)
	}

	h := a.nextHandle(OriginSecondary)
	a.secondary[h] = sideBuffer{buf: make([]byte, size), size: aligned}
	a.secondaryUsed += aligned
	a.secondaryAllocs++
	a.allocations.Inc()
	return h, nil
}

func (a *Allocator) allocateGeneral(size int) Handle {
	h := a.nextHandle(OriginGeneral)
	a.general[h] = sideBuffer{buf: make([]byte, size), size: size}
	a.generalAllocs++
	a.allocations.Inc()
	return h
}

// Bytes resolves h to its current backing memory, or nil if h is not live.
// Pool blocks may move during compaction; resolve again after every Tick
// instead of holding on to the slice.
func (a *Allocator) Bytes(h Handle) []byte {
	switch h.Origin() {
	case OriginPool:
		if i := a.findBlock(h); i >= 0 {
			b := a.blocks[i]
			return a.arena[b.Offset : b.Offset+b.Requested : b.Offset+b.Size]
		}
	case OriginSecondary:
		if sb, ok := a.secondary[h]; ok {
			return sb.buf
		}
	case OriginGeneral:
		if sb, ok := a.general[h]; ok {
			return sb.buf
		}
	}
	return nil
}

func (a *Allocator) findBlock(h Handle) int {
	for i := 0; i < a.nblocks; i++ {
		if a.blocks[i].Handle == h && a.blocks[i].InUse {
			return i
		}
	}
	return -1
}

// Release returns h to the region that issued it. Releasing an unknown or
// already released handle changes nothing and reports ErrUnknownHandle.
func (a *Allocator) Release(now time.Time, h Handle) error {
	switch h.Origin() {
	case OriginPool:
		if i := a.findBlock(h); i >= 0 {
			a.blocks[i].InUse = false
			a.blocks[i].LastUsed = now
			a.releases++
			return nil
		}
	case OriginSecondary:
		if sb, ok := a.secondary[h]; ok {
			delete(a.secondary, h)
			a.secondaryUsed -= sb.size
			if a.secondaryUsed < 0 {
				a.secondaryUsed = 0
			}
			a.releases++
			return nil
		}
	case OriginGeneral:
		if _, ok := a.general[h]; ok {
			delete(a.general, h)
			a.releases++
			return nil
		}
	}
	a.unknownReleases++
	return fmt.Errorf("release %s: %w", h, ErrUnknownHandle)
}

// Fragmentation is the share of descriptors that are freed but not yet
// reclaimed. It is 0 when the table is empty.
func (a *Allocator) Fragmentation() float64 {
	if a.nblocks == 0 {
		return 0
	}
	return float64(a.freedBlocks()) / float64(a.nblocks)
}

func (a *Allocator) freedBlocks() int {
	freed := 0
	for i := 0; i < a.nblocks; i++ {
		if !a.blocks[i].InUse {
			freed++
		}
	}
	return freed
}

// Defragment compacts the arena when fragmentation has reached the configured
// threshold and reports whether it did anything.
func (a *Allocator) Defragment() bool {
	if !a.cfg.Enabled || a.Fragmentation() < a.cfg.DefragThreshold {
		return false
	}
	a.compact()
	return true
}

// compact slides every live block toward the front of the arena in descriptor
// order, drops freed descriptors and lowers the write offset to the new
// high-water mark.
func (a *Allocator) compact() {
	offset := 0
	kept := 0
	for i := 0; i < a.nblocks; i++ {
		b := a.blocks[i]
		if !b.InUse {
			continue
		}
		if b.Offset != offset {
			copy(a.arena[offset:offset+b.Size], a.arena[b.Offset:b.Offset+b.Size])
			b.Offset = offset
		}
		a.blocks[kept] = b
		offset += b.Size
		kept++
	}
	for i := kept; i < a.nblocks; i++ {
		a.blocks[i] = MemoryBlock{}
	}

	reclaimed := a.writeOffset - offset
	a.nblocks = kept
	a.writeOffset = offset
	a.defrags++
	a.logger.Debug("arena compacted", "live_blocks", kept, "reclaimed_bytes", reclaimed)
}

// GarbageCollect compacts away every freed descriptor regardless of the
// fragmentation threshold. There is no tracing; only released blocks are
// reclaimed. It reports whether any compaction happened.
func (a *Allocator) GarbageCollect(now time.Time) bool {
	a.lastGC = now
	a.gcRuns++
	if !a.cfg.Enabled || a.freedBlocks() == 0 {
		return false
	}
	a.compact()
	return true
}

// Maintain runs the periodic housekeeping of one control cycle: the timed GC,
// the low-water GC, or a threshold defragmentation, in that order.
func (a *Allocator) Maintain(now time.Time) {
	if a.lastGC.IsZero() {
		a.lastGC = now
	}
	switch {
	case now.Sub(a.lastGC) >= a.cfg.GCInterval:
		a.GarbageCollect(now)
	case a.heapLow():
		a.logger.Warn("general heap below low-water mark, collecting",
			"free", a.heap.FreeHeapBytes(), "low_water", a.cfg.HeapLowWater)
		a.GarbageCollect(now)
	default:
		a.Defragment()
	}
}

func (a *Allocator) heapLow() bool {
	return a.heap != nil && a.heap.FreeHeapBytes() < a.cfg.HeapLowWater
}

// MemoryPressure returns the higher of arena usage and general heap usage,
// in percent.
func (a *Allocator) MemoryPressure() float64 {
	pressure := 0.0
	if len(a.arena) > 0 {
		pressure = 100 * float64(a.writeOffset) / float64(len(a.arena))
	}
	if a.heap != nil {
		if total := a.heap.TotalHeapBytes(); total > 0 {
			free := a.heap.FreeHeapBytes()
			if free > total {
				free = total
			}
			heapPressure := 100 * float64(total-free) / float64(total)
			if heapPressure > pressure {
				pressure = heapPressure
			}
		}
	}
	return clamp(pressure, 0, 100)
}

// LiveBytes is the total aligned size of in-use pool blocks.
func (a *Allocator) LiveBytes() int {
	live := 0
	for i := 0; i < a.nblocks; i++ {
		if a.blocks[i].InUse {
			live += a.blocks[i].Size
		}
	}
	return live
}

// Blocks returns a copy of the descriptor table.
func (a *Allocator) Blocks() []MemoryBlock {
	out := make([]MemoryBlock, a.nblocks)
	copy(out, a.blocks[:a.nblocks])
	return out
}

// Capacity returns the arena size in bytes.
func (a *Allocator) Capacity() int {
	return len(a.arena)
}

// Stats snapshots the allocator counters.
func (a *Allocator) Stats() AllocatorStats {
	freed := a.freedBlocks()
	return AllocatorStats{
		TotalAllocations:     a.allocations.Value(),
		PoolAllocations:      a.poolAllocs,
		SecondaryAllocations: a.secondaryAllocs,
		GeneralAllocations:   a.generalAllocs,
		PoolFailures:         a.poolFailures,
		SecondaryFailures:    a.secondaryFailures,
		Releases:             a.releases,
		UnknownReleases:      a.unknownReleases,
		Defragmentations:     a.defrags,
		GCRuns:               a.gcRuns,
		PoolUsed:             a.writeOffset,
		PoolLive:             a.LiveBytes(),
		PoolCapacity:         len(a.arena),
		SecondaryUsed:        a.secondaryUsed,
		SecondaryLimit:       a.cfg.SecondaryBudget,
		LiveBlocks:           a.nblocks - freed,
		FreedBlocks:          freed,
		Fragmentation:        a.Fragmentation(),
		MemoryPressure:       a.MemoryPressure(),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
