package reactive

import (
	"maps"
	"slices"
	"sync"

	"github.com/vango-dev/domkit/pkg/enhance"
)

// Object is a reactive view over a map[string]any. Reads made while a
// binding executes register the binding as a dependent of the key; writes
// re-run the dependents. Writes go through to the underlying map.
type Object struct {
	rt   *Runtime
	deps depTable

	mu       sync.Mutex
	data     map[string]any
	children map[string]any
}

func newObject(rt *Runtime, data map[string]any) *Object {
	return &Object{rt: rt, data: data, children: make(map[string]any)}
}

// Get returns the value at key. Nested maps and slices come back as
// *Object and *Array; repeated reads return the same proxy.
func (o *Object) Get(key string) any {
	o.deps.track(key)
	o.mu.Lock()
	defer o.mu.Unlock()
	v, ok := o.data[key]
	if !ok {
		return nil
	}
	return o.wrapLocked(key, v)
}

func (o *Object) wrapLocked(key string, v any) any {
	if c, ok := o.children[key]; ok {
		return c
	}
	var child any
	switch x := v.(type) {
	case map[string]any:
		if x == nil {
			return v
		}
		child = newObject(o.rt, x)
	case []any:
		arr := newArray(o.rt, x)
		arr.adopt(o.writeback(key))
		child = arr
	default:
		return v
	}
	o.children[key] = child
	return child
}

// writeback stores an array's new backing slice under key while the array
// is still the value held there.
func (o *Object) writeback(key string) func(*Array, []any) {
	return func(a *Array, items []any) {
		o.mu.Lock()
		defer o.mu.Unlock()
		if o.children[key] == a {
			o.data[key] = items
		}
	}
}

// Object returns the nested object at key, or nil.
func (o *Object) Object(key string) *Object {
	child, _ := o.Get(key).(*Object)
	return child
}

// Array returns the nested array at key, or nil.
func (o *Object) Array(key string) *Array {
	child, _ := o.Get(key).(*Array)
	return child
}

// Has reports whether key is present.
func (o *Object) Has(key string) bool {
	o.deps.track(key)
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.data[key]
	return ok
}

// Keys returns the keys in sorted order.
func (o *Object) Keys() []string {
	o.deps.track(keysKey)
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Sorted(maps.Keys(o.data))
}

// Len returns the number of keys.
func (o *Object) Len() int {
	o.deps.track(keysKey)
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.data)
}

// Set writes v under key and re-runs the dependents of key. Writing the
// value already held is a no-op.
func (o *Object) Set(key string, v any) {
	o.mu.Lock()
	old, had := o.data[key]
	switch x := v.(type) {
	case *Object:
		if had && o.children[key] == x {
			o.mu.Unlock()
			return
		}
		o.data[key] = x.data
		o.children[key] = x
	case *Array:
		if had && o.children[key] == x {
			o.mu.Unlock()
			return
		}
		o.data[key] = x.raw()
		o.children[key] = x
		x.adopt(o.writeback(key))
	default:
		if had && sameValue(old, v) {
			o.mu.Unlock()
			return
		}
		o.data[key] = v
		delete(o.children, key)
	}
	o.mu.Unlock()

	keys := []string{key}
	if !had {
		keys = append(keys, keysKey)
	}
	notify(o.deps.dependents(keys...))
}

// Delete removes key and re-runs its dependents.
func (o *Object) Delete(key string) {
	o.mu.Lock()
	_, had := o.data[key]
	delete(o.data, key)
	delete(o.children, key)
	o.mu.Unlock()
	if had {
		notify(o.deps.dependents(key, keysKey))
	}
}

// Snapshot returns a deep copy of the underlying map. It does not register
// dependencies.
func (o *Object) Snapshot() map[string]any {
	o.mu.Lock()
	defer o.mu.Unlock()
	return enhance.Clone(o.data).(map[string]any)
}

// Dependents returns how many binding edges point at this object.
func (o *Object) Dependents() int { return o.deps.count() }
