package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCountersUseAllLabels(t *testing.T) {
	mc := NewCollector()

	mc.IncrementCounter("http_requests", map[string]string{"status": "200", "method": "GET"})
	mc.IncrementCounter("http_requests", map[string]string{"method": "GET", "status": "200"})
	mc.IncrementCounter("http_requests", map[string]string{"method": "GET", "status": "404"})
	mc.IncrementCounter("reports_submitted", nil)

	counters := mc.Counters()
	assert.Equal(t, int64(2), counters["http_requests"]["method:GET,status:200"])
	assert.Equal(t, int64(1), counters["http_requests"]["method:GET,status:404"])
	assert.Equal(t, int64(1), counters["reports_submitted"]["default"])
}

func TestLatencyWindow(t *testing.T) {
	mc := NewCollector()
	for i := 0; i < maxLatencySamples+20; i++ {
		mc.ObserveLatency("request", 10*time.Millisecond)
	}
	mc.ObserveLatency("request", 30*time.Millisecond)

	stats := mc.Latencies()["request"]
	assert.Equal(t, float64(maxLatencySamples), stats["samples"])
	assert.Equal(t, 30.0, stats["max_ms"])
	assert.InDelta(t, 10.2, stats["avg_ms"], 0.001)
}

func TestConcurrentUse(t *testing.T) {
	mc := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mc.IncrementCounter("hits", nil)
			mc.ObserveLatency("hits", time.Millisecond)
			_ = mc.Counters()
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), mc.Counters()["hits"]["default"])
}
