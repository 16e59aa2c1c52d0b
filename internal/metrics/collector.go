// Package metrics keeps bounded rolling-window statistics and monotonic
// counters for the streaming pipeline. One Collector is shared process-wide;
// every method is safe for concurrent use.
package metrics

import (
	"math"
	"sort"
	"sync"
	"time"
)

// DefaultWindowSize bounds each named metric window unless overridden.
const DefaultWindowSize = 100

// Stats summarizes one metric window at the time of the call.
type Stats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Stdev  float64 `json:"stdev"`
	P95    float64 `json:"p95"`
	P99    float64 `json:"p99"`
}

// Collector stores a bounded FIFO window of samples per metric name plus a
// set of independent monotonic counters. Windows evict their oldest sample
// once at capacity; counters only move forward. Both clear together on Reset.
type Collector struct {
	mu       sync.RWMutex
	capacity int
	windows  map[string][]float64
	counters map[string]int64
	started  time.Time
}

// Option configures a Collector.
type Option func(*Collector)

// WithWindowSize overrides the per-metric window capacity.
func WithWindowSize(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// NewCollector returns an empty Collector.
func NewCollector(opts ...Option) *Collector {
	c := &Collector{
		capacity: DefaultWindowSize,
		windows:  make(map[string][]float64),
		counters: make(map[string]int64),
		started:  time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Record appends value to the named window, evicting the oldest sample when
// the window is full.
func (c *Collector) Record(name string, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	w := c.windows[name]
	if len(w) == c.capacity {
		copy(w, w[1:])
		w = w[:len(w)-1]
	}
	c.windows[name] = append(w, value)
}

// Increment adds amount to the named counter.
func (c *Collector) Increment(name string, amount int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[name] += amount
}

// Counter returns the current value of the named counter.
func (c *Collector) Counter(name string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counters[name]
}

// Stats computes summary statistics over the named window. The zero Stats is
// returned for unknown or empty windows.
func (c *Collector) Stats(name string) Stats {
	c.mu.RLock()
	w := c.windows[name]
	sorted := make([]float64, len(w))
	copy(sorted, w)
	c.mu.RUnlock()

	n := len(sorted)
	if n == 0 {
		return Stats{}
	}
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(n)

	var stdev float64
	if n >= 2 {
		var sq float64
		for _, v := range sorted {
			d := v - mean
			sq += d * d
		}
		stdev = math.Sqrt(sq / float64(n))
	}

	return Stats{
		Count:  n,
		Mean:   mean,
		Median: median(sorted),
		Min:    sorted[0],
		Max:    sorted[n-1],
		Stdev:  stdev,
		P95:    percentile(sorted, 0.95),
		P99:    percentile(sorted, 0.99),
	}
}

// Summary returns stats for every known window, all counter values, and the
// collector uptime.
func (c *Collector) Summary() (map[string]Stats, map[string]int64, time.Duration) {
	c.mu.RLock()
	names := make([]string, 0, len(c.windows))
	for name := range c.windows {
		names = append(names, name)
	}
	counters := make(map[string]int64, len(c.counters))
	for name, v := range c.counters {
		counters[name] = v
	}
	uptime := time.Since(c.started)
	c.mu.RUnlock()

	stats := make(map[string]Stats, len(names))
	for _, name := range names {
		stats[name] = c.Stats(name)
	}
	return stats, counters, uptime
}

// Reset clears every window and counter and restarts the uptime clock.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.windows = make(map[string][]float64)
	c.counters = make(map[string]int64)
	c.started = time.Now()
}

// median expects sorted input and averages the middle pair for even lengths.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// percentile uses nearest-rank on sorted input: index floor(p*n), clamped to
// the last element.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	idx := int(float64(n) * p)
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}
