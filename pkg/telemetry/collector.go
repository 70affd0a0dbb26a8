package telemetry

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace is the metrics namespace used when none is given.
const DefaultNamespace = "domkit"

// CacheSnapshot is a point-in-time view of one helper cache.
type CacheSnapshot struct {
	Hits          uint64
	Misses        uint64
	Evictions     uint64
	Invalidations uint64
	Sweeps        uint64
	Size          int
	Uptime        time.Duration
}

// HitRatio returns hits / (hits + misses), or 0 before any lookup.
func (s CacheSnapshot) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// ReactiveSnapshot is a point-in-time view of a reactive runtime.
type ReactiveSnapshot struct {
	Bindings int
	Runs     uint64
	Skips    uint64
	Errors   uint64
}

// Collector exports helper caches and reactive runtimes as Prometheus
// metrics. Sources are read at scrape time.
type Collector struct {
	mu       sync.RWMutex
	caches   map[string]func() CacheSnapshot
	reactive map[string]func() ReactiveSnapshot

	hits, misses, evictions, invalidations, sweeps *prometheus.Desc
	entries, hitRatio, uptime                      *prometheus.Desc
	bindings, runs, skips, errors                  *prometheus.Desc
}

// NewCollector creates a collector. An empty namespace selects
// DefaultNamespace.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	cache := []string{"helper"}
	rt := []string{"runtime"}
	desc := func(name, help string, labels []string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}
	return &Collector{
		caches:   make(map[string]func() CacheSnapshot),
		reactive: make(map[string]func() ReactiveSnapshot),

		hits:          desc("cache_hits_total", "Lookups served from the cache", cache),
		misses:        desc("cache_misses_total", "Lookups that queried the document", cache),
		evictions:     desc("cache_evictions_total", "Entries evicted by the size bound", cache),
		invalidations: desc("cache_invalidations_total", "Entries dropped by mutation-driven invalidation", cache),
		sweeps:        desc("cache_sweeps_total", "Completed idle sweep passes", cache),
		entries:       desc("cache_entries", "Entries currently cached", cache),
		hitRatio:      desc("cache_hit_ratio", "Hits divided by total lookups", cache),
		uptime:        desc("cache_uptime_seconds", "Seconds since the helper was created", cache),

		bindings: desc("reactive_bindings", "Active bindings", rt),
		runs:     desc("reactive_binding_runs_total", "Binding executions that applied a new value", rt),
		skips:    desc("reactive_binding_skips_total", "Binding executions whose value was unchanged", rt),
		errors:   desc("reactive_binding_errors_total", "Binding executions that failed", rt),
	}
}

// AddCache registers a cache source under name, replacing any previous one.
func (c *Collector) AddCache(name string, fn func() CacheSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.caches[name] = fn
}

// AddReactive registers a reactive runtime source under name.
func (c *Collector) AddReactive(name string, fn func() ReactiveSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reactive[name] = fn
}

// Remove drops every source registered under name.
func (c *Collector) Remove(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.caches, name)
	delete(c.reactive, name)
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.hits, c.misses, c.evictions, c.invalidations, c.sweeps,
		c.entries, c.hitRatio, c.uptime,
		c.bindings, c.runs, c.skips, c.errors,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	caches := make(map[string]func() CacheSnapshot, len(c.caches))
	for k, v := range c.caches {
		caches[k] = v
	}
	reactive := make(map[string]func() ReactiveSnapshot, len(c.reactive))
	for k, v := range c.reactive {
		reactive[k] = v
	}
	c.mu.RUnlock()

	for _, name := range sortedKeys(caches) {
		s := caches[name]()
		ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(s.Hits), name)
		ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(s.Misses), name)
		ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(s.Evictions), name)
		ch <- prometheus.MustNewConstMetric(c.invalidations, prometheus.CounterValue, float64(s.Invalidations), name)
		ch <- prometheus.MustNewConstMetric(c.sweeps, prometheus.CounterValue, float64(s.Sweeps), name)
		ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(s.Size), name)
		ch <- prometheus.MustNewConstMetric(c.hitRatio, prometheus.GaugeValue, s.HitRatio(), name)
		ch <- prometheus.MustNewConstMetric(c.uptime, prometheus.GaugeValue, s.Uptime.Seconds(), name)
	}
	for _, name := range sortedKeys(reactive) {
		s := reactive[name]()
		ch <- prometheus.MustNewConstMetric(c.bindings, prometheus.GaugeValue, float64(s.Bindings), name)
		ch <- prometheus.MustNewConstMetric(c.runs, prometheus.CounterValue, float64(s.Runs), name)
		ch <- prometheus.MustNewConstMetric(c.skips, prometheus.CounterValue, float64(s.Skips), name)
		ch <- prometheus.MustNewConstMetric(c.errors, prometheus.CounterValue, float64(s.Errors), name)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
