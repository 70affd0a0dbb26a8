package reactive

import (
	"maps"
	"slices"
	"strconv"
	"sync"
	"unsafe"

	"github.com/vango-dev/domkit/pkg/enhance"
)

// Array is a reactive view over a []any. Index reads depend on the index,
// Len depends on length, and every mutating method re-runs all dependents
// of the array.
type Array struct {
	rt   *Runtime
	deps depTable

	mu     sync.Mutex
	items  []any
	arrays map[int]*Array
	objs   map[unsafe.Pointer]*Object
	owners []func(*Array, []any)
}

func newArray(rt *Runtime, items []any) *Array {
	return &Array{
		rt:     rt,
		items:  items,
		arrays: make(map[int]*Array),
		objs:   make(map[unsafe.Pointer]*Object),
	}
}

// adopt registers a container that stores this array's backing slice.
func (a *Array) adopt(fn func(*Array, []any)) {
	a.mu.Lock()
	a.owners = append(a.owners, fn)
	a.mu.Unlock()
}

func (a *Array) raw() []any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.items
}

func (a *Array) wrapLocked(i int) any {
	v := a.items[i]
	switch x := v.(type) {
	case map[string]any:
		id := identity(x)
		if id == nil {
			return v
		}
		if obj, ok := a.objs[id]; ok {
			return obj
		}
		obj := newObject(a.rt, x)
		a.objs[id] = obj
		return obj
	case []any:
		if child, ok := a.arrays[i]; ok {
			return child
		}
		child := newArray(a.rt, x)
		child.adopt(func(c *Array, items []any) {
			a.mu.Lock()
			defer a.mu.Unlock()
			if a.arrays[i] == c && i < len(a.items) {
				a.items[i] = items
			}
		})
		a.arrays[i] = child
		return child
	}
	return v
}

// Get returns the element at i, or nil when i is out of range.
func (a *Array) Get(i int) any {
	a.deps.track(strconv.Itoa(i))
	a.mu.Lock()
	defer a.mu.Unlock()
	if i < 0 || i >= len(a.items) {
		return nil
	}
	return a.wrapLocked(i)
}

// Len returns the number of elements.
func (a *Array) Len() int {
	a.deps.track(lengthKey)
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.items)
}

// Values returns every element, wrapped like Get. It depends on the length
// and on each index.
func (a *Array) Values() []any {
	a.deps.track(lengthKey)
	a.mu.Lock()
	n := len(a.items)
	out := make([]any, n)
	for i := range n {
		out[i] = a.wrapLocked(i)
	}
	a.mu.Unlock()
	for i := range n {
		a.deps.track(strconv.Itoa(i))
	}
	return out
}

// Set writes v at index i, growing the array with nils when i is past the
// end. Negative indexes are ignored.
func (a *Array) Set(i int, v any) {
	if i < 0 {
		return
	}
	v = unwrap(v)
	a.mu.Lock()
	grew := i >= len(a.items)
	if !grew && sameValue(a.items[i], v) {
		a.mu.Unlock()
		return
	}
	if grew {
		a.items = append(a.items, make([]any, i-len(a.items)+1)...)
	}
	a.items[i] = v
	delete(a.arrays, i)
	items, owners := a.items, slices.Clone(a.owners)
	a.mu.Unlock()

	a.publish(items, owners)
	keys := []string{strconv.Itoa(i)}
	if grew {
		keys = append(keys, lengthKey)
	}
	notify(a.deps.dependents(keys...))
}

// Push appends values and returns the new length.
func (a *Array) Push(values ...any) int {
	var n int
	a.mutate(func(items []any) []any {
		items = append(items, unwrapAll(values)...)
		n = len(items)
		return items
	})
	return n
}

// Pop removes and returns the last element.
func (a *Array) Pop() any {
	var out any
	a.mutate(func(items []any) []any {
		if len(items) == 0 {
			return items
		}
		out = items[len(items)-1]
		return items[:len(items)-1]
	})
	return out
}

// Shift removes and returns the first element.
func (a *Array) Shift() any {
	var out any
	a.mutate(func(items []any) []any {
		if len(items) == 0 {
			return items
		}
		out = items[0]
		return slices.Delete(items, 0, 1)
	})
	return out
}

// Unshift prepends values and returns the new length.
func (a *Array) Unshift(values ...any) int {
	var n int
	a.mutate(func(items []any) []any {
		items = slices.Insert(items, 0, unwrapAll(values)...)
		n = len(items)
		return items
	})
	return n
}

// Splice removes deleteCount elements at start, inserts values there and
// returns the removed elements. A negative start counts from the end.
func (a *Array) Splice(start, deleteCount int, values ...any) []any {
	var removed []any
	a.mutate(func(items []any) []any {
		n := len(items)
		if start < 0 {
			start = max(n+start, 0)
		}
		start = min(start, n)
		deleteCount = min(max(deleteCount, 0), n-start)
		removed = slices.Clone(items[start : start+deleteCount])
		items = slices.Delete(items, start, start+deleteCount)
		return slices.Insert(items, start, unwrapAll(values)...)
	})
	return removed
}

// Reverse reverses the array in place.
func (a *Array) Reverse() {
	a.mutate(func(items []any) []any {
		slices.Reverse(items)
		return items
	})
}

// Sort sorts the array in place with cmp, keeping equal elements in order.
func (a *Array) Sort(cmp func(x, y any) int) {
	a.mutate(func(items []any) []any {
		slices.SortStableFunc(items, cmp)
		return items
	})
}

// Snapshot returns a deep copy of the elements without registering
// dependencies.
func (a *Array) Snapshot() []any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return enhance.Clone(a.items).([]any)
}

// Dependents returns how many binding edges point at this array.
func (a *Array) Dependents() int { return a.deps.count() }

// mutate applies fn to the backing slice and re-runs every dependent.
func (a *Array) mutate(fn func([]any) []any) {
	a.mu.Lock()
	a.items = fn(a.items)
	clear(a.arrays)
	a.pruneLocked()
	items, owners := a.items, slices.Clone(a.owners)
	a.mu.Unlock()

	a.publish(items, owners)
	notify(a.deps.dependents())
}

// pruneLocked drops cached object proxies whose maps left the array.
func (a *Array) pruneLocked() {
	present := make(map[unsafe.Pointer]struct{}, len(a.objs))
	for _, v := range a.items {
		if m, ok := v.(map[string]any); ok {
			present[identity(m)] = struct{}{}
		}
	}
	maps.DeleteFunc(a.objs, func(id unsafe.Pointer, _ *Object) bool {
		_, ok := present[id]
		return !ok
	})
}

func (a *Array) publish(items []any, owners []func(*Array, []any)) {
	for _, fn := range owners {
		fn(a, items)
	}
}

func unwrapAll(values []any) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = unwrap(v)
	}
	return out
}
