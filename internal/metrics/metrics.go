package metrics

import (
	"sort"
	"strings"
	"sync"
	"time"
)

const maxLatencySamples = 100

type Collector struct {
	counters  map[string]map[string]int64
	latencies map[string][]time.Duration
	started   time.Time
	mutex     sync.RWMutex
}

func NewCollector() *Collector {
	return &Collector{
		counters:  make(map[string]map[string]int64),
		latencies: make(map[string][]time.Duration),
		started:   time.Now(),
	}
}

// IncrementCounter bumps the series for name keyed by every label, sorted.
func (mc *Collector) IncrementCounter(name string, labels map[string]string) {
	key := labelKey(labels)

	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	if _, exists := mc.counters[name]; !exists {
		mc.counters[name] = make(map[string]int64)
	}
	mc.counters[name][key]++
}

func (mc *Collector) ObserveLatency(name string, duration time.Duration) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	samples := append(mc.latencies[name], duration)
	if len(samples) > maxLatencySamples {
		samples = samples[len(samples)-maxLatencySamples:]
	}
	mc.latencies[name] = samples
}

func (mc *Collector) Counters() map[string]map[string]int64 {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()

	counters := make(map[string]map[string]int64, len(mc.counters))
	for name, series := range mc.counters {
		counters[name] = make(map[string]int64, len(series))
		for label, value := range series {
			counters[name][label] = value
		}
	}
	return counters
}

// Latencies reports the average and max over the retained window, in ms.
func (mc *Collector) Latencies() map[string]map[string]float64 {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()

	result := make(map[string]map[string]float64)
	for name, durations := range mc.latencies {
		if len(durations) == 0 {
			continue
		}
		var sum, max time.Duration
		for _, d := range durations {
			sum += d
			if d > max {
				max = d
			}
		}
		result[name] = map[string]float64{
			"avg_ms":  float64(sum) / float64(len(durations)) / float64(time.Millisecond),
			"max_ms":  float64(max) / float64(time.Millisecond),
			"samples": float64(len(durations)),
		}
	}
	return result
}

func (mc *Collector) Uptime() time.Duration {
	return time.Since(mc.started)
}

func labelKey(labels map[string]string) string {
	if len(labels) == 0 {
		return "default"
	}
	parts := make([]string, 0, len(labels))
	for k, v := range labels {
		parts = append(parts, k+":"+v)
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}
