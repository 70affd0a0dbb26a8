package domkit

import (
	"strings"
	"sync"

	"github.com/vango-dev/domkit/internal/errors"
	"github.com/vango-dev/domkit/pkg/dom"
	"github.com/vango-dev/domkit/pkg/enhance"
	"github.com/vango-dev/domkit/pkg/helpers"
	"github.com/vango-dev/domkit/pkg/query"
	"github.com/vango-dev/domkit/pkg/reactive"
	"github.com/vango-dev/domkit/pkg/telemetry"
)

// Kit bundles the lookup helpers and the reactive runtime of one document.
// Every Kit owns its own instances; nothing is shared between kits.
type Kit struct {
	doc *dom.Document
	cfg Config

	// Elements looks up elements by id.
	Elements *helpers.Elements
	// Collections looks up live collections by class, tag or name.
	Collections *helpers.Collections
	// Selector looks up elements by CSS selector.
	Selector *helpers.Selector
	// Reactive owns reactive state and bindings.
	Reactive *reactive.Runtime

	collector *telemetry.Collector

	mu     sync.Mutex
	closed bool
	hooks  []func()
}

// New creates a kit for doc. Helpers start watching the document body as
// soon as it exists.
func New(doc *dom.Document, cfg Config) *Kit {
	cfg = cfg.withDefaults()
	k := &Kit{doc: doc, cfg: cfg}

	hopts := []helpers.Option{helpers.WithOptions(cfg.Options), helpers.WithLogger(cfg.Logger)}
	k.Elements = helpers.NewElements(doc, hopts...)
	k.Collections = helpers.NewCollections(doc, hopts...)
	k.Selector = helpers.NewSelector(doc, hopts...)
	k.Reactive = reactive.New(
		reactive.WithOptions(cfg.Options),
		reactive.WithLogger(cfg.Logger),
		reactive.WithResolver(k.Resolve),
		reactive.WithWatcher(k.Elements.Watcher()),
	)

	k.collector = telemetry.NewCollector(cfg.Namespace)
	k.collector.AddCache(k.Elements.HelperName(), func() telemetry.CacheSnapshot { return k.Elements.Stats().Snapshot() })
	k.collector.AddCache(k.Collections.HelperName(), func() telemetry.CacheSnapshot { return k.Collections.Stats().Snapshot() })
	k.collector.AddCache(k.Selector.HelperName(), func() telemetry.CacheSnapshot { return k.Selector.Stats().Snapshot() })
	k.collector.AddReactive("reactive", k.Reactive.Stats)
	if cfg.Registerer != nil {
		if err := cfg.Registerer.Register(k.collector); err != nil {
			cfg.Logger.Warn("domkit: metrics collector not registered", "error", err)
		}
	}
	return k
}

// Document returns the kit's document.
func (k *Kit) Document() *dom.Document { return k.doc }

// Collector returns the Prometheus collector exporting the kit's stats.
func (k *Kit) Collector() *telemetry.Collector { return k.collector }

// Resolve maps a binding target to an element. "#id" goes through
// Elements; a bare word is tried as an id first and then as a selector;
// anything else goes through Selector.
func (k *Kit) Resolve(target string) (*dom.Element, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, errors.New("E001").WithKey(target)
	}
	id, hashed := strings.CutPrefix(target, "#")
	if !strings.ContainsAny(id, selectorChars) {
		if el := k.Elements.Get(id); el != nil {
			return el.Raw(), nil
		}
		if hashed {
			return nil, errors.New("E006").WithKey(target)
		}
	}
	if el := k.Selector.Query(target); el != nil {
		return el.Raw(), nil
	}
	return nil, errors.New("E006").WithKey(target)
}

// selectorChars mark a target as a selector rather than a single id.
const selectorChars = " \t\n#.[]:>+~*,()="

// Get looks up an element by id.
func (k *Kit) Get(id string) *enhance.Element { return k.Elements.Get(id) }

// Query returns the first element matching sel.
func (k *Kit) Query(sel string) *enhance.Element { return k.Selector.Query(sel) }

// QueryAll returns every element matching sel.
func (k *Kit) QueryAll(sel string) *enhance.Collection { return k.Selector.QueryAll(sel) }

// State returns the reactive proxy for data.
func (k *Kit) State(data map[string]any) *reactive.Object { return k.Reactive.State(data) }

// Bind binds fn to the content of target.
func (k *Kit) Bind(target string, fn func() any) (*reactive.Binding, error) {
	return k.Reactive.Bind(target, fn)
}

// Options returns the options in effect.
func (k *Kit) Options() Options { return k.Elements.Options() }

// Configure validates o and applies it to every helper.
func (k *Kit) Configure(o Options) error {
	if err := o.Validate(); err != nil {
		return err
	}
	k.Elements.Configure(o)
	k.Collections.Configure(o)
	k.Selector.Configure(o)
	k.Reactive.Configure(o)
	return nil
}

// Stats returns the cache statistics of every helper keyed by helper name.
func (k *Kit) Stats() map[string]query.Stats {
	return map[string]query.Stats{
		k.Elements.HelperName():    k.Elements.Stats(),
		k.Collections.HelperName(): k.Collections.Stats(),
		k.Selector.HelperName():    k.Selector.Stats(),
	}
}

// ReactiveStats returns the binding counters.
func (k *Kit) ReactiveStats() telemetry.ReactiveSnapshot { return k.Reactive.Stats() }

// ClearCache drops every cached lookup of every helper.
func (k *Kit) ClearCache() {
	k.Elements.ClearCache()
	k.Collections.ClearCache()
	k.Selector.ClearCache()
}

// Sweep runs one idle sweep on every helper and returns the entries removed.
func (k *Kit) Sweep() int {
	return k.Elements.Sweep() + k.Collections.Sweep() + k.Selector.Sweep()
}

// OnEvent registers fn with every helper's event hook.
func (k *Kit) OnEvent(fn func(query.Event)) (remove func()) {
	removes := []func(){
		k.Elements.OnEvent(fn),
		k.Collections.OnEvent(fn),
		k.Selector.OnEvent(fn),
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			for _, r := range removes {
				r()
			}
		})
	}
}

// OnClose registers fn to run when the kit closes.
func (k *Kit) OnClose(fn func()) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.hooks = append(k.hooks, fn)
}

// Close tears the kit down the way a page unload would: bindings are
// removed, caches cleared, watchers and sweepers stopped, and the metrics
// collector unregistered. It is idempotent.
func (k *Kit) Close() {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return
	}
	k.closed = true
	hooks := k.hooks
	k.hooks = nil
	k.mu.Unlock()

	k.Reactive.Close()
	k.Elements.Destroy()
	k.Collections.Destroy()
	k.Selector.Destroy()
	if k.cfg.Registerer != nil {
		k.cfg.Registerer.Unregister(k.collector)
	}
	for _, fn := range hooks {
		fn()
	}
}

// Closed reports whether Close was called.
func (k *Kit) Closed() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.closed
}
