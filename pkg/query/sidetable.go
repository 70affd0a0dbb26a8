package query

import (
	"runtime"
	"sync"
	"time"
	"weak"

	"github.com/vango-dev/domkit/pkg/dom"
)

// Meta is the diagnostics record kept for an element returned by a fresh
// query.
type Meta struct {
	Helper     string
	Key        string
	InsertedAt time.Time
}

// sideTable maps elements to Meta without keeping them alive. Entries are
// dropped by a runtime cleanup once the element is collected.
type sideTable struct {
	mu      sync.Mutex
	entries map[weak.Pointer[dom.Element]]Meta
}

func newSideTable() *sideTable {
	return &sideTable{entries: make(map[weak.Pointer[dom.Element]]Meta)}
}

func (t *sideTable) record(el *dom.Element, m Meta) {
	if el == nil {
		return
	}
	wp := weak.Make(el)

	t.mu.Lock()
	_, existed := t.entries[wp]
	t.entries[wp] = m
	t.mu.Unlock()

	if !existed {
		runtime.AddCleanup(el, t.drop, wp)
	}
}

func (t *sideTable) drop(wp weak.Pointer[dom.Element]) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, wp)
}

func (t *sideTable) lookup(el *dom.Element) (Meta, bool) {
	if el == nil {
		return Meta{}, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.entries[weak.Make(el)]
	return m, ok
}

func (t *sideTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
