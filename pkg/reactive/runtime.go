package reactive

import (
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/google/uuid"

	"github.com/vango-dev/domkit/internal/config"
	"github.com/vango-dev/domkit/internal/errors"
	"github.com/vango-dev/domkit/pkg/dom"
	"github.com/vango-dev/domkit/pkg/telemetry"
	"github.com/vango-dev/domkit/pkg/watch"
)

// Resolver maps a binding target to an element.
type Resolver func(target string) (*dom.Element, error)

// Option configures a Runtime.
type Option func(*settings)

type settings struct {
	opts     config.Options
	logger   *slog.Logger
	resolver Resolver
	watcher  *watch.Watcher
}

// WithOptions sets the options. Only EnableLogging is used.
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

// WithResolver sets how Bind and Unbind targets are resolved.
func WithResolver(r Resolver) Option {
	return func(s *settings) { s.resolver = r }
}

// WithWatcher subscribes the runtime to w so bindings of removed elements
// are cleaned up.
func WithWatcher(w *watch.Watcher) Option {
	return func(s *settings) { s.watcher = w }
}

// Runtime owns reactive state proxies and the bindings that depend on them.
// It is safe for concurrent use; dependency tracking is per goroutine and
// binding runs are serialized.
type Runtime struct {
	id       string
	base     *slog.Logger
	resolver Resolver
	exec     execLock

	runs        atomic.Uint64
	skips       atomic.Uint64
	errorsTotal atomic.Uint64
	nextID      atomic.Uint64

	mu          sync.Mutex
	logger      *slog.Logger
	roots       map[unsafe.Pointer]*Object
	bindings    map[*dom.Element][]*Binding
	closed      bool
	unsubscribe func()
}

// New creates a runtime.
func New(opts ...Option) *Runtime {
	s := settings{opts: config.Default(), logger: slog.Default()}
	for _, opt := range opts {
		opt(&s)
	}
	id := uuid.NewString()
	rt := &Runtime{
		id:       id,
		base:     s.logger.With("component", "reactive", "instance", id),
		resolver: s.resolver,
		roots:    make(map[unsafe.Pointer]*Object),
		bindings: make(map[*dom.Element][]*Binding),
	}
	rt.logger = loggerFor(rt.base, s.opts)
	if s.watcher != nil {
		rt.unsubscribe = s.watcher.Subscribe(rt.onBatch)
	}
	return rt
}

func loggerFor(base *slog.Logger, o config.Options) *slog.Logger {
	if !o.EnableLogging {
		return slog.New(slog.DiscardHandler)
	}
	return base
}

// ID returns the runtime's instance id.
func (r *Runtime) ID() string { return r.id }

func (r *Runtime) log() *slog.Logger {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.logger
}

// Configure applies new options. Only EnableLogging is used.
func (r *Runtime) Configure(o config.Options) {
	r.mu.Lock()
	r.logger = loggerFor(r.base, o)
	r.mu.Unlock()
}

// State returns the reactive proxy for data. The same map always yields
// the same proxy.
func (r *Runtime) State(data map[string]any) *Object {
	if data == nil {
		data = make(map[string]any)
	}
	id := identity(data)
	r.mu.Lock()
	defer r.mu.Unlock()
	if obj, ok := r.roots[id]; ok {
		return obj
	}
	obj := newObject(r, data)
	r.roots[id] = obj
	return obj
}

// Batch runs fn with notifications deferred until it returns.
func (r *Runtime) Batch(fn func()) { Batch(fn) }

func (r *Runtime) resolve(target string) (*dom.Element, error) {
	if r.resolver == nil {
		return nil, errors.New("E006").WithKey(target).WithDetail("no resolver configured")
	}
	el, err := r.resolver(target)
	if err != nil {
		return nil, errors.FromError(err, "E006").WithKey(target)
	}
	if el == nil {
		return nil, errors.New("E006").WithKey(target)
	}
	return el, nil
}

// Bind binds fn to the content of the element target resolves to. The
// function runs immediately and again whenever state it read changes.
func (r *Runtime) Bind(target string, fn func() any) (*Binding, error) {
	el, err := r.resolve(target)
	if err != nil {
		r.log().Warn("reactive: binding target not found", "target", target, "error", err)
		return nil, err
	}
	return r.BindElement(el, "", fn)
}

// BindProps binds one function per property of the element target resolves
// to. Properties are bound in sorted order.
func (r *Runtime) BindProps(target string, props map[string]func() any) ([]*Binding, error) {
	el, err := r.resolve(target)
	if err != nil {
		r.log().Warn("reactive: binding target not found", "target", target, "error", err)
		return nil, err
	}
	out := make([]*Binding, 0, len(props))
	for _, prop := range slices.Sorted(maps.Keys(props)) {
		b, err := r.BindElement(el, prop, props[prop])
		if err != nil {
			return out, err
		}
		out = append(out, b)
	}
	return out, nil
}

// BindAll registers bindings from a map of targets. Each value is either a
// func() any for a content binding or a map[string]func() any for property
// bindings. Failing targets are reported together; the others still bind.
func (r *Runtime) BindAll(targets map[string]any) ([]*Binding, error) {
	var out []*Binding
	var errs []error
	for _, target := range slices.Sorted(maps.Keys(targets)) {
		switch fn := targets[target].(type) {
		case func() any:
			b, err := r.Bind(target, fn)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			out = append(out, b)
		case map[string]func() any:
			bs, err := r.BindProps(target, fn)
			out = append(out, bs...)
			if err != nil {
				errs = append(errs, err)
			}
		default:
			errs = append(errs, errors.New("E004").WithKey(target).
				WithDetail("binding must be func() any or map[string]func() any"))
		}
	}
	return out, errors.Join(errs...)
}

// BindElement binds fn to prop of el, or to its content when prop is
// empty.
func (r *Runtime) BindElement(el *dom.Element, prop string, fn func() any) (*Binding, error) {
	if el == nil {
		return nil, errors.New("E006").WithDetail("nil element")
	}
	if fn == nil {
		return nil, errors.New("E004").WithKey(prop).WithDetail("nil binding function")
	}
	b := &Binding{
		id:       r.nextID.Add(1),
		rt:       r,
		element:  el,
		property: prop,
		fn:       fn,
		edges:    make(map[edge]struct{}),
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, errors.New("E005").WithKey("reactive")
	}
	r.bindings[el] = append(r.bindings[el], b)
	r.mu.Unlock()

	b.run()
	return b, nil
}

// Unbind removes every binding of the element target resolves to and
// returns how many were removed.
func (r *Runtime) Unbind(target string) (int, error) {
	el, err := r.resolve(target)
	if err != nil {
		return 0, err
	}
	return r.UnbindElement(el), nil
}

// UnbindElement removes every binding of el.
func (r *Runtime) UnbindElement(el *dom.Element) int {
	r.mu.Lock()
	bs := r.bindings[el]
	delete(r.bindings, el)
	r.mu.Unlock()
	for _, b := range bs {
		b.cleanup()
	}
	return len(bs)
}

// Bindings returns the live bindings of el in creation order.
func (r *Runtime) Bindings(el *dom.Element) []*Binding {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.bindings[el])
}

// onBatch drops the bindings of elements removed from the document.
func (r *Runtime) onBatch(b watch.Batch) {
	if len(b.Removed) == 0 {
		return
	}
	removed := 0
	for _, el := range b.Removed {
		if el.IsConnected() {
			continue
		}
		removed += r.UnbindElement(el)
	}
	if removed > 0 {
		r.log().Debug("reactive: cleaned up bindings of removed elements", "bindings", removed)
	}
}

// Stats returns binding counters.
func (r *Runtime) Stats() telemetry.ReactiveSnapshot {
	r.mu.Lock()
	n := 0
	for _, bs := range r.bindings {
		n += len(bs)
	}
	r.mu.Unlock()
	return telemetry.ReactiveSnapshot{
		Bindings: n,
		Runs:     r.runs.Load(),
		Skips:    r.skips.Load(),
		Errors:   r.errorsTotal.Load(),
	}
}

// Close removes every binding and stops watching. It is idempotent.
func (r *Runtime) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	all := r.bindings
	r.bindings = make(map[*dom.Element][]*Binding)
	clear(r.roots)
	unsubscribe := r.unsubscribe
	r.unsubscribe = nil
	r.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	for _, bs := range all {
		for _, b := range bs {
			b.cleanup()
		}
	}
}

// Closed reports whether Close was called.
func (r *Runtime) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
