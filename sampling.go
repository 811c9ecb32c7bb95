package perfcore

import (
	"errors"
	"fmt"
	"sync"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
)

// SystemLoad reads total CPU utilization from the operating system. Each call
// reports the utilization since the previous call.
type SystemLoad struct{}

// NewSystemLoad primes the OS counters so the first CPULoad call has a
// baseline.
func NewSystemLoad() *SystemLoad {
	_, _ = cpu.Percent(0, false)
	return &SystemLoad{}
}

// CPULoad implements LoadSource.
func (SystemLoad) CPULoad() (float64, error) {
	v, err := cpu.Percent(0, false)
	if err != nil {
		return 0, fmt.Errorf("read cpu percent: %w", err)
	}
	if len(v) == 0 {
		return 0, errors.New("read cpu percent: no data")
	}
	return clamp(v[0], 0, 100), nil
}

// SystemHeap reports available system memory as the general heap. When the
// OS query fails it keeps answering with the last good reading.
type SystemHeap struct {
	mu    sync.Mutex
	free  uint64
	total uint64
}

// NewSystemHeap takes a first reading.
func NewSystemHeap() (*SystemHeap, error) {
	h := &SystemHeap{}
	if err := h.refresh(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *SystemHeap) refresh() error {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return fmt.Errorf("read virtual memory: %w", err)
	}
	h.free, h.total = vm.Available, vm.Total
	return nil
}

// FreeHeapBytes implements HeapSource and refreshes the reading.
func (h *SystemHeap) FreeHeapBytes() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	_ = h.refresh()
	return h.free
}

// TotalHeapBytes implements HeapSource from the last reading.
func (h *SystemHeap) TotalHeapBytes() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.total
}
