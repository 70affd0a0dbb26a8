package watch

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/vango-dev/domkit/internal/errors"
	"github.com/vango-dev/domkit/pkg/dom"
	"github.com/vango-dev/domkit/pkg/telemetry"
)

// DefaultDelay is the debounce window used when none is configured.
const DefaultDelay = 16 * time.Millisecond

// Watcher observes a document body and hands debounced, folded batches of
// mutation records to its subscribers.
type Watcher struct {
	doc    *dom.Document
	logger *slog.Logger

	mu       sync.Mutex
	delay    time.Duration
	observer *dom.MutationObserver
	pending  []dom.MutationRecord
	timer    *time.Timer
	gen      uint64
	started  bool
	stopped  bool
	subs     map[uint64]func(Batch)
	nextSub  uint64
	batches  uint64
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithDelay sets the debounce window.
func WithDelay(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.delay = d
		}
	}
}

// New creates a watcher for doc. It does not observe until Start.
func New(doc *dom.Document, opts ...Option) *Watcher {
	w := &Watcher{
		doc:    doc,
		logger: slog.Default(),
		delay:  DefaultDelay,
		subs:   make(map[uint64]func(Batch)),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins observing the body, or defers until the document has one.
// Calling Start more than once, or after Stop, does nothing.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.started || w.stopped {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()

	w.doc.OnReady(w.observe)
}

func (w *Watcher) observe() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped || w.observer != nil {
		return
	}
	body := w.doc.Body()
	if body == nil {
		return
	}
	obs := dom.NewMutationObserver(w.enqueue)
	err := obs.Observe(body, dom.MutationObserverInit{
		ChildList:         true,
		Attributes:        true,
		Subtree:           true,
		AttributeOldValue: true,
	})
	if err != nil {
		w.logger.Error("watch: observe failed", "error", err)
		return
	}
	w.observer = obs
	w.logger.Debug("watch: observing body")
}

// enqueue is the observer callback. It accumulates records and restarts the
// debounce timer.
func (w *Watcher) enqueue(recs []dom.MutationRecord, _ *dom.MutationObserver) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.pending = append(w.pending, recs...)
	if w.timer != nil {
		w.timer.Stop()
	}
	w.gen++
	gen := w.gen
	w.timer = time.AfterFunc(w.delay, func() { w.fire(gen) })
}

func (w *Watcher) fire(gen uint64) {
	w.mu.Lock()
	if w.stopped || gen != w.gen {
		w.mu.Unlock()
		return
	}
	recs := w.pending
	w.pending = nil
	w.timer = nil
	w.mu.Unlock()

	w.dispatch(recs)
}

// Flush delivers any pending records immediately and returns the batch that
// was dispatched. It returns an empty batch when nothing was pending or the
// watcher is stopped.
func (w *Watcher) Flush() Batch {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return newBatch()
	}
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.gen++
	recs := w.pending
	w.pending = nil
	obs := w.observer
	w.mu.Unlock()

	if obs != nil {
		recs = append(recs, obs.TakeRecords()...)
	}
	return w.dispatch(recs)
}

func (w *Watcher) dispatch(recs []dom.MutationRecord) Batch {
	if len(recs) == 0 {
		return newBatch()
	}
	var b Batch
	telemetry.Span(context.Background(), "domkit.watch.batch", func(ctx context.Context) {
		var errs []error
		b, errs = Fold(recs)
		for _, err := range errs {
			w.log().Warn("watch: mutation record skipped", "error", err)
		}
		telemetry.AddAttributes(ctx,
			attribute.Int("domkit.records", b.Records),
			attribute.Int("domkit.skipped", b.Skipped),
			attribute.Bool("domkit.structural", b.Structural),
		)

		w.mu.Lock()
		if w.stopped {
			w.mu.Unlock()
			return
		}
		w.batches++
		subs := make([]func(Batch), 0, len(w.subs))
		for _, id := range sortedIDs(w.subs) {
			subs = append(subs, w.subs[id])
		}
		logger := w.logger
		w.mu.Unlock()

		logger.Debug("watch: dispatching batch", "batch", b.String(), "subscribers", len(subs))
		for _, fn := range subs {
			w.notify(fn, b)
		}
	})
	return b
}

func (w *Watcher) notify(fn func(Batch), b Batch) {
	defer func() {
		if r := recover(); r != nil {
			w.log().Error("watch: subscriber panicked", "error", errors.FromPanic(r, "E010"))
		}
	}()
	fn(b)
}

// Subscribe registers fn for every future batch. The returned function
// removes the subscription.
func (w *Watcher) Subscribe(fn func(Batch)) (unsubscribe func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextSub++
	id := w.nextSub
	w.subs[id] = fn
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.subs, id)
	}
}

// SetDelay changes the debounce window for subsequent records.
func (w *Watcher) SetDelay(d time.Duration) {
	if d <= 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.delay = d
}

// SetLogger replaces the logger.
func (w *Watcher) SetLogger(l *slog.Logger) {
	if l == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.logger = l
}

func (w *Watcher) log() *slog.Logger {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.logger
}

// Delay returns the current debounce window.
func (w *Watcher) Delay() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.delay
}

// Observing reports whether the body is currently observed.
func (w *Watcher) Observing() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.observer != nil && !w.stopped
}

// Batches returns how many non-empty batches were dispatched.
func (w *Watcher) Batches() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.batches
}

// Stop disconnects the observer and cancels the pending timer. Pending
// records are dropped and timers that fire later do nothing. Stop is
// idempotent.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	w.gen++
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.pending = nil
	obs := w.observer
	w.observer = nil
	w.subs = make(map[uint64]func(Batch))
	w.mu.Unlock()

	if obs != nil {
		obs.Disconnect()
	}
}

// Stopped reports whether Stop has been called.
func (w *Watcher) Stopped() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stopped
}

// Fold summarizes records into a Batch. A record that cannot be folded is
// skipped and reported as an E010 error; the rest are still folded.
func Fold(records []dom.MutationRecord) (Batch, []error) {
	b := newBatch()
	var errs []error
	for i, rec := range records {
		if err := foldOne(&b, rec); err != nil {
			b.Skipped++
			errs = append(errs, err.WithKey(fmt.Sprintf("record %d", i)))
		}
	}
	return b, errs
}

func foldOne(b *Batch, rec dom.MutationRecord) (err *errors.DomkitError) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.FromPanic(r, "E010")
		}
	}()
	b.fold(rec)
	return nil
}

func sortedIDs(m map[uint64]func(Batch)) []uint64 {
	return slices.Sorted(maps.Keys(m))
}
