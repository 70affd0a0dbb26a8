package reactive

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/vango-dev/domkit/internal/errors"
	"github.com/vango-dev/domkit/pkg/dom"
	"github.com/vango-dev/domkit/pkg/enhance"
)

// State is the lifecycle state of a Binding.
type State int

const (
	// StateUninitialized: created, not run yet.
	StateUninitialized State = iota
	// StateActive: ran at least once and is up to date.
	StateActive
	// StateStalePending: a dependency changed and a re-run is due.
	StateStalePending
	// StateCleanedUp: removed. Terminal.
	StateCleanedUp
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	case StateStalePending:
		return "stale"
	case StateCleanedUp:
		return "cleaned-up"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Binding ties a function over reactive state to an element. Whenever a
// value the function read changes, the function re-runs and its result is
// written to the element.
type Binding struct {
	id       uint64
	rt       *Runtime
	element  *dom.Element
	property string
	fn       func() any

	// runner holds the goroutine executing the binding.
	runner atomic.Uint64

	mu        sync.Mutex
	state     State
	lastValue any
	hasValue  bool
	edges     map[edge]struct{}
	lastErr   error
}

// ID returns the binding's creation sequence number.
func (b *Binding) ID() uint64 { return b.id }

// Element returns the bound element.
func (b *Binding) Element() *dom.Element { return b.element }

// Property returns the bound property, or "" for content bindings.
func (b *Binding) Property() string { return b.property }

// State returns the lifecycle state.
func (b *Binding) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// LastValue returns a copy of the last applied value.
func (b *Binding) LastValue() any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastValue
}

// Err returns the error of the last run, if it failed.
func (b *Binding) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

// Dependencies returns how many proxy keys the binding currently reads.
func (b *Binding) Dependencies() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.edges)
}

func (b *Binding) addEdge(d *depTable, key string) {
	b.mu.Lock()
	live := b.state != StateCleanedUp
	if live {
		b.edges[edge{deps: d, key: key}] = struct{}{}
	}
	b.mu.Unlock()
	if !live {
		d.remove(key, b)
	}
}

// dropEdges detaches the binding from every proxy key it read.
func (b *Binding) dropEdges() {
	b.mu.Lock()
	old := b.edges
	b.edges = make(map[edge]struct{})
	b.mu.Unlock()
	for e := range old {
		e.deps.remove(e.key, b)
	}
}

func (b *Binding) markStale() {
	b.mu.Lock()
	if b.state == StateActive {
		b.state = StateStalePending
	}
	b.mu.Unlock()
}

// run re-executes the function and applies the result. A run triggered by
// the binding's own writes is skipped. Runs of one runtime are serialized;
// a run may start others on the same goroutine.
func (b *Binding) run() {
	gid := goroutineID()
	if b.runner.Load() == gid {
		return
	}
	b.rt.exec.lock(gid)
	defer b.rt.exec.unlock()
	b.runner.Store(gid)
	defer b.runner.Store(0)

	if b.State() == StateCleanedUp {
		return
	}
	b.dropEdges()

	value, err := b.evaluate()
	if err == nil {
		err = b.commit(value)
	}

	b.mu.Lock()
	b.lastErr = err
	if b.state != StateCleanedUp {
		b.state = StateActive
	}
	b.mu.Unlock()

	if err != nil {
		b.rt.errorsTotal.Add(1)
		b.rt.log().Error("reactive: binding failed",
			"binding", b.id, "element", b.element.String(), "error", err)
	}
}

// evaluate runs the function with b as the innermost tracking binding.
func (b *Binding) evaluate() (value any, err error) {
	pop := push(b)
	defer pop()
	defer func() {
		if r := recover(); r != nil {
			err = errors.FromPanic(r, "E004").WithKey(b.describe())
		}
	}()
	return b.fn(), nil
}

// commit applies value unless it equals the last applied one. Proxies are
// compared and stored by their current contents.
func (b *Binding) commit(value any) error {
	switch v := value.(type) {
	case *Object:
		value = v.Snapshot()
	case *Array:
		value = v.Snapshot()
	}
	b.mu.Lock()
	unchanged := b.hasValue && enhance.Equal(value, b.lastValue)
	b.mu.Unlock()
	if unchanged {
		b.rt.skips.Add(1)
		return nil
	}
	b.rt.runs.Add(1)

	if err := b.apply(value); err != nil {
		return errors.New("E004").WithKey(b.describe()).Wrap(err)
	}
	b.mu.Lock()
	b.lastValue = enhance.Clone(value)
	b.hasValue = true
	b.mu.Unlock()
	return nil
}

func (b *Binding) describe() string {
	if b.property == "" {
		return b.element.String()
	}
	return b.element.String() + "." + b.property
}

// apply writes value to the element: primitives go to the property or the
// text content, maps are applied key by key like an update, slices go to
// the property or are joined into the text, and elements replace the
// children.
func (b *Binding) apply(value any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.FromPanic(r, "E003")
		}
	}()
	el := b.element
	switch v := value.(type) {
	case *enhance.Element:
		return el.ReplaceChildren(v.Raw())
	case *dom.Element:
		return el.ReplaceChildren(v)
	case *Object:
		return b.apply(v.Snapshot())
	case *Array:
		return b.apply(v.Snapshot())
	case map[string]any:
		if b.property != "" {
			return enhance.Apply(el, b.property, v)
		}
		var errs []error
		for _, key := range slices.Sorted(maps.Keys(v)) {
			if err := enhance.Apply(el, key, v[key]); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	rv := reflect.ValueOf(value)
	if value != nil && (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) {
		if b.property != "" {
			return enhance.Apply(el, b.property, value)
		}
		parts := make([]string, rv.Len())
		for i := range parts {
			parts[i] = dom.ToString(rv.Index(i).Interface())
		}
		el.SetTextContent(strings.Join(parts, ""))
		return nil
	}
	if b.property != "" {
		return enhance.Apply(el, b.property, value)
	}
	el.SetTextContent(dom.ToString(value))
	return nil
}

// cleanup moves the binding to its terminal state and detaches it.
func (b *Binding) cleanup() {
	b.mu.Lock()
	if b.state == StateCleanedUp {
		b.mu.Unlock()
		return
	}
	b.state = StateCleanedUp
	b.lastValue = nil
	b.mu.Unlock()
	b.dropEdges()
}
