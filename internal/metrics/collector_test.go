package metrics

import (
	"math"
	"sync"
	"testing"
)

func TestCollector_WindowEviction(t *testing.T) {
	c := NewCollector()
	for i := 1; i <= 150; i++ {
		c.Record("latency", float64(i))
	}

	stats := c.Stats("latency")
	if stats.Count != 100 {
		t.Fatalf("Count = %d, want 100", stats.Count)
	}
	// Values 51..150 survive; everything older is evicted.
	if stats.Min != 51 {
		t.Errorf("Min = %v, want 51", stats.Min)
	}
	if stats.Max != 150 {
		t.Errorf("Max = %v, want 150", stats.Max)
	}
}

func TestCollector_Percentiles(t *testing.T) {
	c := NewCollector()
	for i := 1; i <= 100; i++ {
		c.Record("latency", float64(i))
	}

	stats := c.Stats("latency")
	if stats.P95 != 96 {
		t.Errorf("P95 = %v, want 96 (sorted index 95)", stats.P95)
	}
	if stats.P99 != 100 {
		t.Errorf("P99 = %v, want 100", stats.P99)
	}
	if stats.Median != 50.5 {
		t.Errorf("Median = %v, want 50.5", stats.Median)
	}
	if stats.Mean != 50.5 {
		t.Errorf("Mean = %v, want 50.5", stats.Mean)
	}
}

func TestCollector_PercentileClamped(t *testing.T) {
	c := NewCollector()
	c.Record("single", 42)

	stats := c.Stats("single")
	if stats.P95 != 42 || stats.P99 != 42 {
		t.Errorf("P95/P99 = %v/%v, want 42 for a single sample", stats.P95, stats.P99)
	}
}

func TestCollector_StdevNeedsTwoSamples(t *testing.T) {
	c := NewCollector()
	c.Record("m", 10)
	if got := c.Stats("m").Stdev; got != 0 {
		t.Errorf("Stdev with one sample = %v, want 0", got)
	}

	c.Record("m", 20)
	// Population stdev of {10, 20} is 5.
	if got := c.Stats("m").Stdev; math.Abs(got-5) > 1e-9 {
		t.Errorf("Stdev = %v, want 5", got)
	}
}

func TestCollector_UnknownMetric(t *testing.T) {
	c := NewCollector()
	if got := c.Stats("missing"); got != (Stats{}) {
		t.Errorf("Stats for unknown metric = %+v, want zero value", got)
	}
}

func TestCollector_Counters(t *testing.T) {
	c := NewCollector()
	c.Increment("chunks", 1)
	c.Increment("chunks", 2)
	if got := c.Counter("chunks"); got != 3 {
		t.Errorf("Counter = %d, want 3", got)
	}

	// Counters never evict; windows filling up does not touch them.
	for i := 0; i < 500; i++ {
		c.Record("noise", float64(i))
	}
	if got := c.Counter("chunks"); got != 3 {
		t.Errorf("Counter after window churn = %d, want 3", got)
	}
}

func TestCollector_Reset(t *testing.T) {
	c := NewCollector()
	c.Record("m", 1)
	c.Increment("n", 1)
	c.Reset()

	if got := c.Stats("m").Count; got != 0 {
		t.Errorf("window survived Reset: Count = %d", got)
	}
	if got := c.Counter("n"); got != 0 {
		t.Errorf("counter survived Reset: %d", got)
	}
}

func TestCollector_Summary(t *testing.T) {
	c := NewCollector()
	c.Record("a", 1)
	c.Record("b", 2)
	c.Increment("n", 7)

	stats, counters, uptime := c.Summary()
	if len(stats) != 2 {
		t.Errorf("Summary stats count = %d, want 2", len(stats))
	}
	if counters["n"] != 7 {
		t.Errorf("Summary counter = %d, want 7", counters["n"])
	}
	if uptime < 0 {
		t.Errorf("uptime = %v, want non-negative", uptime)
	}
}

func TestCollector_ConcurrentWriters(t *testing.T) {
	c := NewCollector(WithWindowSize(32))
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				c.Record("shared", float64(i))
				c.Increment("total", 1)
				c.Stats("shared")
			}
		}()
	}
	wg.Wait()

	if got := c.Counter("total"); got != 1600 {
		t.Errorf("Counter = %d, want 1600", got)
	}
	if got := c.Stats("shared").Count; got != 32 {
		t.Errorf("window Count = %d, want capacity 32", got)
	}
}
