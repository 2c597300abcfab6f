package latency

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Histogram is a thread-safe rolling window of latency samples with
// interpolated percentile calculation. The window is a circular buffer;
// once full, new samples overwrite the oldest.
type Histogram struct {
	mu      sync.RWMutex
	samples []float64 // milliseconds
	maxSize int
	current int
	full    bool
}

// NewHistogram creates a histogram with the given rolling window size.
func NewHistogram(maxSize int) *Histogram {
	if maxSize <= 0 {
		maxSize = 512
	}
	return &Histogram{samples: make([]float64, maxSize), maxSize: maxSize}
}

// Record adds one latency measurement.
func (h *Histogram) Record(d time.Duration) {
	h.RecordMs(float64(d.Nanoseconds()) / 1e6)
}

// RecordMs adds one latency measurement in milliseconds.
func (h *Histogram) RecordMs(ms float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.samples[h.current] = ms
	h.current = (h.current + 1) % h.maxSize
	if !h.full && h.current == 0 {
		h.full = true
	}
}

// Percentile returns the interpolated percentile (p in 0..1) in ms.
func (h *Histogram) Percentile(p float64) float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	size := h.size()
	if size == 0 {
		return 0
	}

	values := make([]float64, size)
	if h.full {
		copy(values, h.samples)
	} else {
		copy(values, h.samples[:h.current])
	}
	sort.Float64s(values)

	idx := p * float64(size-1)
	lower := int(math.Floor(idx))
	upper := int(math.Ceil(idx))
	if lower == upper {
		return values[lower]
	}
	w := idx - float64(lower)
	return values[lower]*(1-w) + values[upper]*w
}

// P95 returns the 95th percentile in ms.
func (h *Histogram) P95() float64 { return h.Percentile(0.95) }

// Count returns the number of samples currently in the window.
func (h *Histogram) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.size()
}

// Reset clears the window.
func (h *Histogram) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = 0
	h.full = false
	for i := range h.samples {
		h.samples[i] = 0
	}
}

func (h *Histogram) size() int {
	if h.full {
		return h.maxSize
	}
	return h.current
}
