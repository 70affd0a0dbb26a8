package dom

import (
	"errors"
	"log/slog"
	"slices"
	"sync"
)

// MutationType identifies the kind of change a MutationRecord describes.
type MutationType string

const (
	MutationChildList  MutationType = "childList"
	MutationAttributes MutationType = "attributes"
)

// MutationRecord describes one change to the tree.
//
// AddedNodes and RemovedNodes hold only element nodes: the roots of the
// subtrees that were inserted or removed. Text-only changes produce a
// childList record with both lists empty.
type MutationRecord struct {
	Type          MutationType
	Target        *Element
	AddedNodes    []*Element
	RemovedNodes  []*Element
	AttributeName string
	OldValue      string
}

// MutationObserverInit selects what an observation reports.
type MutationObserverInit struct {
	ChildList         bool
	Attributes        bool
	Subtree           bool
	AttributeOldValue bool
	AttributeFilter   []string
}

// MutationCallback receives delivered records.
type MutationCallback func(records []MutationRecord, observer *MutationObserver)

// ErrObserveDetached is returned when observing an element of another
// document or a nil target.
var ErrObserveDetached = errors.New("dom: observe target must be an element of the document")

type observation struct {
	target *node
	init   MutationObserverInit
}

// MutationObserver queues MutationRecords for observed subtrees and delivers
// them to its callback after the mutating call has released the document.
type MutationObserver struct {
	callback MutationCallback

	mu           sync.Mutex
	doc          *Document
	observations []observation
	pending      []MutationRecord
}

// NewMutationObserver creates an observer that is not observing anything yet.
func NewMutationObserver(cb MutationCallback) *MutationObserver {
	return &MutationObserver{callback: cb}
}

// Observe starts (or replaces) observation of target.
func (o *MutationObserver) Observe(target *Element, init MutationObserverInit) error {
	if target == nil {
		return ErrObserveDetached
	}
	n := target.n()
	d := n.doc

	d.mu.Lock()
	defer d.mu.Unlock()

	o.mu.Lock()
	if o.doc != nil && o.doc != d {
		o.mu.Unlock()
		return ErrObserveDetached
	}
	o.doc = d
	replaced := false
	for i := range o.observations {
		if o.observations[i].target == n {
			o.observations[i].init = init
			replaced = true
		}
	}
	if !replaced {
		o.observations = append(o.observations, observation{target: n, init: init})
	}
	o.mu.Unlock()

	if !slices.Contains(d.observers, o) {
		d.observers = append(d.observers, o)
	}
	return nil
}

// Disconnect stops all observations and drops undelivered records.
func (o *MutationObserver) Disconnect() {
	o.mu.Lock()
	d := o.doc
	o.observations = nil
	o.pending = nil
	o.mu.Unlock()
	if d == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for i, obs := range d.observers {
		if obs == o {
			d.observers = append(d.observers[:i], d.observers[i+1:]...)
			break
		}
	}
}

// TakeRecords returns and clears the undelivered records.
func (o *MutationObserver) TakeRecords() []MutationRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	recs := o.pending
	o.pending = nil
	return recs
}

func (o *MutationObserver) hasPending() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending) > 0
}

// offer queues rec when one of the observations covers target.
func (o *MutationObserver) offer(rec MutationRecord, target *node) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, obs := range o.observations {
		if obs.target != target && !(obs.init.Subtree && obs.target.isInclusiveAncestorOf(target)) {
			continue
		}
		switch rec.Type {
		case MutationChildList:
			if !obs.init.ChildList {
				continue
			}
		case MutationAttributes:
			if !obs.init.Attributes {
				continue
			}
			if len(obs.init.AttributeFilter) > 0 && !slices.Contains(obs.init.AttributeFilter, rec.AttributeName) {
				continue
			}
			if !obs.init.AttributeOldValue {
				rec.OldValue = ""
			}
		}
		o.pending = append(o.pending, rec)
		return
	}
}

func (o *MutationObserver) invoke(recs []MutationRecord) {
	defer func() {
		if r := recover(); r != nil {
			slog.Default().Warn("dom: mutation observer callback panicked", "panic", r)
		}
	}()
	if o.callback != nil {
		o.callback(recs, o)
	}
}

// enqueueLocked offers rec to every registered observer. Caller holds d.mu.
func (d *Document) enqueueLocked(rec MutationRecord, target *node) {
	for _, o := range d.observers {
		o.offer(rec, target)
	}
}

// deliver drains pending records into observer callbacks. Only one goroutine
// delivers at a time; records queued meanwhile are picked up by the active
// delivery loop.
func (d *Document) deliver() {
	for {
		if !d.delivering.CompareAndSwap(false, true) {
			return
		}
		for {
			d.mu.RLock()
			observers := slices.Clone(d.observers)
			d.mu.RUnlock()

			delivered := false
			for _, o := range observers {
				if recs := o.TakeRecords(); len(recs) > 0 {
					delivered = true
					o.invoke(recs)
				}
			}
			if !delivered {
				break
			}
		}
		d.delivering.Store(false)
		if !d.hasPendingRecords() {
			return
		}
	}
}

func (d *Document) hasPendingRecords() bool {
	d.mu.RLock()
	observers := slices.Clone(d.observers)
	d.mu.RUnlock()
	for _, o := range observers {
		if o.hasPending() {
			return true
		}
	}
	return false
}
