package reactive

import (
	"maps"
	"slices"
	"sync"
)

// keysKey is the dependency key for reads that enumerate a proxy's keys.
const keysKey = "\x00keys"

// lengthKey is the dependency key for array length reads.
const lengthKey = "length"

// depTable maps the keys of one proxy to the bindings that read them.
type depTable struct {
	mu    sync.Mutex
	byKey map[string]map[*Binding]struct{}
}

// track records that the executing binding read key.
func (d *depTable) track(key string) {
	b := currentBinding()
	if b == nil {
		return
	}
	d.mu.Lock()
	if d.byKey == nil {
		d.byKey = make(map[string]map[*Binding]struct{})
	}
	set := d.byKey[key]
	if set == nil {
		set = make(map[*Binding]struct{})
		d.byKey[key] = set
	}
	set[b] = struct{}{}
	d.mu.Unlock()
	b.addEdge(d, key)
}

func (d *depTable) remove(key string, b *Binding) {
	d.mu.Lock()
	defer d.mu.Unlock()
	set := d.byKey[key]
	delete(set, b)
	if len(set) == 0 {
		delete(d.byKey, key)
	}
}

// dependents returns the bindings that read any of keys, or every
// dependent of the proxy when keys is empty.
func (d *depTable) dependents(keys ...string) []*Binding {
	d.mu.Lock()
	defer d.mu.Unlock()
	seen := make(map[*Binding]struct{})
	if len(keys) == 0 {
		for _, set := range d.byKey {
			maps.Copy(seen, set)
		}
	} else {
		for _, k := range keys {
			maps.Copy(seen, d.byKey[k])
		}
	}
	return sortBindings(seen)
}

// count returns the number of distinct key edges.
func (d *depTable) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, set := range d.byKey {
		n += len(set)
	}
	return n
}

func sortBindings(set map[*Binding]struct{}) []*Binding {
	return slices.SortedFunc(maps.Keys(set), func(a, b *Binding) int {
		switch {
		case a.id < b.id:
			return -1
		case a.id > b.id:
			return 1
		}
		return 0
	})
}

// edge is one key of one proxy a binding depends on.
type edge struct {
	deps *depTable
	key  string
}

// notify re-runs bindings, or queues them while the current goroutine is
// inside Batch.
func notify(bindings []*Binding) {
	if len(bindings) == 0 {
		return
	}
	if ctx := peekTracking(); ctx != nil && ctx.batchDepth > 0 {
		for _, b := range bindings {
			b.markStale()
		}
		ctx.pending = append(ctx.pending, bindings...)
		return
	}
	for _, b := range bindings {
		b.markStale()
	}
	for _, b := range bindings {
		b.run()
	}
}
