package query

import (
	"time"

	"github.com/vango-dev/domkit/pkg/telemetry"
)

// Stats is a snapshot of an engine's counters.
type Stats struct {
	Hits          uint64        `json:"hits"`
	Misses        uint64        `json:"misses"`
	CacheSize     int           `json:"cacheSize"`
	HitRate       float64       `json:"hitRate"`
	Uptime        time.Duration `json:"uptime"`
	Evictions     uint64        `json:"evictions"`
	Invalidations uint64        `json:"invalidations"`
	Sweeps        uint64        `json:"sweeps"`
}

// Snapshot converts s for the metrics collector.
func (s Stats) Snapshot() telemetry.CacheSnapshot {
	return telemetry.CacheSnapshot{
		Hits:          s.Hits,
		Misses:        s.Misses,
		Evictions:     s.Evictions,
		Invalidations: s.Invalidations,
		Sweeps:        s.Sweeps,
		Size:          s.CacheSize,
		Uptime:        s.Uptime,
	}
}

// EventKind names an engine event.
type EventKind string

const (
	EventHit        EventKind = "hit"
	EventMiss       EventKind = "miss"
	EventInvalidate EventKind = "invalidate"
	EventEvict      EventKind = "evict"
	EventSweep      EventKind = "sweep"
	EventClear      EventKind = "clear"
	EventDestroy    EventKind = "destroy"
)

// Event is published to hooks registered with OnEvent.
type Event struct {
	Kind   EventKind `json:"kind"`
	Helper string    `json:"helper"`
	Key    string    `json:"key,omitempty"`
	Count  int       `json:"count,omitempty"`
	Time   time.Time `json:"time"`
}

// OnEvent registers fn for engine events and returns a function that removes
// it. Hooks run synchronously on the goroutine that caused the event and must
// not call back into the engine's mutating methods.
func (e *Engine[K, V, R]) OnEvent(fn func(Event)) (remove func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextHook++
	id := e.nextHook
	e.hooks[id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.hooks, id)
	}
}

func (e *Engine[K, V, R]) emit(ev Event) {
	e.mu.Lock()
	if len(e.hooks) == 0 {
		e.mu.Unlock()
		return
	}
	hooks := make([]func(Event), 0, len(e.hooks))
	for _, fn := range e.hooks {
		hooks = append(hooks, fn)
	}
	e.mu.Unlock()

	ev.Helper = e.strategy.Name
	ev.Time = time.Now()
	for _, fn := range hooks {
		fn(ev)
	}
}
