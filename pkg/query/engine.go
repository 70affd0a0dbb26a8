package query

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/simplelru"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vango-dev/domkit/internal/config"
	"github.com/vango-dev/domkit/pkg/dom"
	"github.com/vango-dev/domkit/pkg/telemetry"
	"github.com/vango-dev/domkit/pkg/watch"
)

// Strategy configures an Engine for one lookup family.
type Strategy[K comparable, V any, R any] struct {
	// Name identifies the helper in logs, events and metrics.
	Name string

	// Query performs the uncached lookup.
	Query func(K) (V, error)

	// Valid reports whether a cached result may still be served.
	Valid func(R) bool

	// Affected reports whether a mutation batch may have changed the result
	// for key.
	Affected func(b watch.Batch, key K) bool

	// Structural clears the whole cache on any childList change.
	Structural bool

	// Wrap decorates a fresh result before it is cached. When nil, V must
	// be R.
	Wrap func(K, V) R

	// Members lists the elements a result denotes, for the diagnostics side
	// table. Optional.
	Members func(R) []*dom.Element

	// KeyString renders keys for logs. Defaults to fmt.Sprint.
	KeyString func(K) string
}

type entry[R any] struct {
	result    R
	createdAt time.Time
}

// Engine memoizes lookups against a live document and invalidates them from
// debounced mutation batches. It is safe for concurrent use.
type Engine[K comparable, V any, R any] struct {
	id       string
	strategy Strategy[K, V, R]
	doc      *dom.Document
	watcher  *watch.Watcher
	meta     *sideTable
	created  time.Time
	base     *slog.Logger

	mu            sync.Mutex
	logger        *slog.Logger
	opts          config.Options
	cache         *simplelru.LRU[K, *entry[R]]
	hits          uint64
	misses        uint64
	evictions     uint64
	invalidations uint64
	sweeps        uint64
	destroyed     bool
	sweepTimer    *time.Timer
	sweepGen      uint64
	unsubscribe   func()
	hooks         map[uint64]func(Event)
	nextHook      uint64
}

// Option configures an Engine.
type Option func(*settings)

type settings struct {
	opts   config.Options
	logger *slog.Logger
}

// WithOptions sets the engine options. Invalid options are replaced by
// defaults field by field.
func WithOptions(o config.Options) Option {
	return func(s *settings) { s.opts = o }
}

// WithLogger sets the base logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates an engine over doc. It starts watching the document body as
// soon as it exists and schedules the idle sweeper when AutoCleanup is set.
func New[K comparable, V any, R any](doc *dom.Document, strategy Strategy[K, V, R], opts ...Option) *Engine[K, V, R] {
	s := settings{opts: config.Default(), logger: slog.Default()}
	for _, opt := range opts {
		opt(&s)
	}
	s.opts = sanitize(s.opts)
	if strategy.KeyString == nil {
		strategy.KeyString = func(k K) string { return fmt.Sprint(k) }
	}
	if strategy.Name == "" {
		strategy.Name = "query"
	}

	cache, _ := simplelru.NewLRU[K, *entry[R]](s.opts.MaxCacheSize, nil)
	id := uuid.NewString()
	base := s.logger.With("component", strategy.Name, "instance", id)

	e := &Engine[K, V, R]{
		id:       id,
		strategy: strategy,
		doc:      doc,
		meta:     newSideTable(),
		created:  time.Now(),
		base:     base,
		logger:   loggerFor(base, s.opts),
		opts:     s.opts,
		cache:    cache,
		hooks:    make(map[uint64]func(Event)),
	}
	e.watcher = watch.New(doc, watch.WithLogger(e.logger), watch.WithDelay(s.opts.DebounceDelay))
	e.unsubscribe = e.watcher.Subscribe(e.onBatch)
	e.watcher.Start()

	e.mu.Lock()
	e.scheduleSweepLocked()
	e.mu.Unlock()
	return e
}

func loggerFor(base *slog.Logger, o config.Options) *slog.Logger {
	if !o.EnableLogging {
		return slog.New(slog.DiscardHandler)
	}
	return base
}

// sanitize replaces out-of-range fields with defaults.
func sanitize(o config.Options) config.Options {
	d := config.Default()
	if o.MaxCacheSize <= 0 {
		o.MaxCacheSize = d.MaxCacheSize
	}
	if o.CleanupInterval <= 0 {
		o.CleanupInterval = d.CleanupInterval
	}
	if o.DebounceDelay <= 0 {
		o.DebounceDelay = d.DebounceDelay
	}
	if o.PollInterval <= 0 {
		o.PollInterval = d.PollInterval
	}
	return o
}

// ID returns the engine's instance id.
func (e *Engine[K, V, R]) ID() string { return e.id }

// Name returns the strategy name.
func (e *Engine[K, V, R]) Name() string { return e.strategy.Name }

// Document returns the document the engine queries.
func (e *Engine[K, V, R]) Document() *dom.Document { return e.doc }

// Watcher returns the engine's mutation watcher.
func (e *Engine[K, V, R]) Watcher() *watch.Watcher { return e.watcher }

// Logger returns the logger in effect, which discards everything while
// logging is disabled.
func (e *Engine[K, V, R]) Logger() *slog.Logger {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.logger
}

// Options returns the options in effect.
func (e *Engine[K, V, R]) Options() config.Options {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opts
}

// Get returns the cached result for key when it is still valid, otherwise it
// queries the document, wraps and caches the fresh result. After Destroy it
// queries without caching.
func (e *Engine[K, V, R]) Get(key K) (R, error) {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return e.fetch(key)
	}
	if ent, ok := e.cache.Peek(key); ok {
		if e.strategy.Valid(ent.result) {
			e.hits++
			e.mu.Unlock()
			e.emit(Event{Kind: EventHit, Key: e.strategy.KeyString(key)})
			return ent.result, nil
		}
		e.cache.Remove(key)
		e.invalidations++
	}
	e.mu.Unlock()

	r, err := e.fetch(key)
	if err != nil {
		e.mu.Lock()
		e.misses++
		e.mu.Unlock()
		return r, err
	}

	keyStr := e.strategy.KeyString(key)
	if !e.strategy.Valid(r) {
		// Results that would fail their next validity check are not cached.
		e.mu.Lock()
		if !e.destroyed {
			e.misses++
		}
		e.mu.Unlock()
		e.emit(Event{Kind: EventMiss, Key: keyStr})
		return r, nil
	}

	var evicted []K
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return r, nil
	}
	if ent, ok := e.cache.Peek(key); ok && e.strategy.Valid(ent.result) {
		// Another goroutine filled the slot while we queried.
		e.hits++
		e.mu.Unlock()
		return ent.result, nil
	}
	e.misses++
	e.cache.Remove(key)
	for e.cache.Len() >= e.opts.MaxCacheSize {
		k, _, ok := e.cache.RemoveOldest()
		if !ok {
			break
		}
		e.evictions++
		evicted = append(evicted, k)
	}
	now := time.Now()
	e.cache.Add(key, &entry[R]{result: r, createdAt: now})
	e.mu.Unlock()

	if e.strategy.Members != nil {
		for _, el := range e.strategy.Members(r) {
			e.meta.record(el, Meta{Helper: e.strategy.Name, Key: keyStr, InsertedAt: now})
		}
	}
	e.emit(Event{Kind: EventMiss, Key: keyStr})
	for _, k := range evicted {
		e.emit(Event{Kind: EventEvict, Key: e.strategy.KeyString(k)})
	}
	return r, nil
}

func (e *Engine[K, V, R]) fetch(key K) (R, error) {
	v, err := e.strategy.Query(key)
	if err != nil {
		var zero R
		return zero, err
	}
	if e.strategy.Wrap != nil {
		return e.strategy.Wrap(key, v), nil
	}
	r, _ := any(v).(R)
	return r, nil
}

// Peek returns the cached result for key without validating it or touching
// statistics.
func (e *Engine[K, V, R]) Peek(key K) (R, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ent, ok := e.cache.Peek(key)
	if !ok {
		var zero R
		return zero, false
	}
	return ent.result, true
}

// CreatedAt returns when the entry for key was inserted.
func (e *Engine[K, V, R]) CreatedAt(key K) (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ent, ok := e.cache.Peek(key)
	if !ok {
		return time.Time{}, false
	}
	return ent.createdAt, true
}

// Meta returns the diagnostics record for an element returned by a fresh
// query.
func (e *Engine[K, V, R]) Meta(el *dom.Element) (Meta, bool) {
	return e.meta.lookup(el)
}

// Invalidate drops the entry for key and reports whether one existed.
func (e *Engine[K, V, R]) Invalidate(key K) bool {
	e.mu.Lock()
	ok := e.cache.Remove(key)
	if ok {
		e.invalidations++
	}
	e.mu.Unlock()
	if ok {
		e.emit(Event{Kind: EventInvalidate, Key: e.strategy.KeyString(key), Count: 1})
	}
	return ok
}

// InvalidateWhere drops every entry whose key satisfies pred and returns how
// many were dropped.
func (e *Engine[K, V, R]) InvalidateWhere(pred func(K) bool) int {
	e.mu.Lock()
	var dropped []K
	for _, k := range e.cache.Keys() {
		if pred(k) {
			e.cache.Remove(k)
			dropped = append(dropped, k)
		}
	}
	e.invalidations += uint64(len(dropped))
	e.mu.Unlock()

	for _, k := range dropped {
		e.emit(Event{Kind: EventInvalidate, Key: e.strategy.KeyString(k), Count: 1})
	}
	return len(dropped)
}

// Clear drops every entry. Statistics are kept.
func (e *Engine[K, V, R]) Clear() int {
	e.mu.Lock()
	n := e.cache.Len()
	e.cache.Purge()
	e.mu.Unlock()
	e.emit(Event{Kind: EventClear, Count: n})
	return n
}

func (e *Engine[K, V, R]) onBatch(b watch.Batch) {
	telemetry.Span(context.Background(), "domkit.query.invalidate", func(ctx context.Context) {
		var n int
		if e.strategy.Structural && b.Structural {
			e.mu.Lock()
			n = e.cache.Len()
			e.cache.Purge()
			e.invalidations += uint64(n)
			e.mu.Unlock()
			if n > 0 {
				e.emit(Event{Kind: EventInvalidate, Count: n})
			}
		} else if e.strategy.Affected != nil {
			n = e.InvalidateWhere(func(k K) bool { return e.strategy.Affected(b, k) })
		}
		telemetry.AddAttributes(ctx,
			attribute.String("domkit.helper", e.strategy.Name),
			attribute.Int("domkit.invalidated", n),
		)
		e.Logger().Debug("query: invalidation pass", "batch", b.String(), "invalidated", n)
	})
}

// Sweep removes every entry that fails the validity check and returns how
// many were removed.
func (e *Engine[K, V, R]) Sweep() int {
	var removed []K
	telemetry.Span(context.Background(), "domkit.query.sweep", func(ctx context.Context) {
		e.mu.Lock()
		if e.destroyed {
			e.mu.Unlock()
			return
		}
		for _, k := range e.cache.Keys() {
			ent, ok := e.cache.Peek(k)
			if ok && !e.strategy.Valid(ent.result) {
				e.cache.Remove(k)
				removed = append(removed, k)
			}
		}
		e.invalidations += uint64(len(removed))
		e.sweeps++
		logger := e.logger
		e.mu.Unlock()

		telemetry.AddAttributes(ctx,
			attribute.String("domkit.helper", e.strategy.Name),
			attribute.Int("domkit.removed", len(removed)),
		)
		logger.Debug("query: sweep", "removed", len(removed))
	})
	e.emit(Event{Kind: EventSweep, Count: len(removed)})
	return len(removed)
}

// scheduleSweepLocked (re)arms the idle sweeper. Caller holds e.mu.
func (e *Engine[K, V, R]) scheduleSweepLocked() {
	if e.sweepTimer != nil {
		e.sweepTimer.Stop()
		e.sweepTimer = nil
	}
	e.sweepGen++
	if e.destroyed || !e.opts.AutoCleanup {
		return
	}
	gen := e.sweepGen
	e.sweepTimer = time.AfterFunc(e.opts.CleanupInterval, func() { e.runSweep(gen) })
}

func (e *Engine[K, V, R]) runSweep(gen uint64) {
	e.mu.Lock()
	stale := e.destroyed || gen != e.sweepGen
	e.mu.Unlock()
	if stale {
		return
	}

	e.Sweep()

	e.mu.Lock()
	defer e.mu.Unlock()
	if gen == e.sweepGen {
		e.scheduleSweepLocked()
	}
}

// Sweeping reports whether the idle sweeper is scheduled.
func (e *Engine[K, V, R]) Sweeping() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sweepTimer != nil
}

// Configure applies new options. Shrinking MaxCacheSize evicts the oldest
// entries; changing the cleanup settings reschedules the sweeper.
func (e *Engine[K, V, R]) Configure(o config.Options) {
	o = sanitize(o)

	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return
	}
	prev := e.opts
	e.opts = o
	e.logger = loggerFor(e.base, o)
	if o.MaxCacheSize != prev.MaxCacheSize {
		e.evictions += uint64(e.cache.Resize(o.MaxCacheSize))
	}
	if o.AutoCleanup != prev.AutoCleanup || o.CleanupInterval != prev.CleanupInterval {
		e.scheduleSweepLocked()
	}
	e.mu.Unlock()

	e.watcher.SetDelay(o.DebounceDelay)
	e.watcher.SetLogger(e.Logger())
}

// Destroy stops the watcher and the sweeper and drops the cache. It is
// idempotent; later lookups query the document without caching.
func (e *Engine[K, V, R]) Destroy() {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return
	}
	e.destroyed = true
	e.scheduleSweepLocked()
	e.cache.Purge()
	unsubscribe := e.unsubscribe
	e.unsubscribe = nil
	e.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	e.watcher.Stop()
	e.emit(Event{Kind: EventDestroy})

	e.mu.Lock()
	e.hooks = make(map[uint64]func(Event))
	e.mu.Unlock()
}

// Destroyed reports whether Destroy has been called.
func (e *Engine[K, V, R]) Destroyed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.destroyed
}

// Len returns the number of cached entries.
func (e *Engine[K, V, R]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cache.Len()
}

// Keys returns the cached keys, oldest first.
func (e *Engine[K, V, R]) Keys() []K {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cache.Keys()
}

// Stats returns a snapshot of the engine's counters.
func (e *Engine[K, V, R]) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := Stats{
		Hits:          e.hits,
		Misses:        e.misses,
		CacheSize:     e.cache.Len(),
		Uptime:        time.Since(e.created),
		Evictions:     e.evictions,
		Invalidations: e.invalidations,
		Sweeps:        e.sweeps,
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}
