package dom

// Event is a dispatched DOM event.
type Event struct {
	Type          string
	Bubbles       bool
	Detail        any
	Target        *Element
	CurrentTarget *Element

	defaultPrevented bool
	stopped          bool
}

// NewEvent creates an event of the given type.
func NewEvent(typ string, bubbles bool) *Event {
	return &Event{Type: typ, Bubbles: bubbles}
}

// PreventDefault marks the event as canceled.
func (e *Event) PreventDefault() { e.defaultPrevented = true }

// DefaultPrevented reports whether PreventDefault was called.
func (e *Event) DefaultPrevented() bool { return e.defaultPrevented }

// StopPropagation prevents further bubbling.
func (e *Event) StopPropagation() { e.stopped = true }

// EventListener is a registered handler. Listener identity is the pointer, so
// the same *EventListener must be passed to RemoveEventListener.
type EventListener struct {
	Handle func(*Event)
	Once   bool
}

// Listen wraps fn in an EventListener.
func Listen(fn func(*Event)) *EventListener {
	return &EventListener{Handle: fn}
}

// AddEventListener registers l for events of type typ. Adding the same
// listener twice is a no-op.
func (e *Element) AddEventListener(typ string, l *EventListener) {
	if l == nil || typ == "" {
		return
	}
	n := e.n()
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	for _, existing := range n.listeners[typ] {
		if existing == l {
			return
		}
	}
	if n.listeners == nil {
		n.listeners = make(map[string][]*EventListener)
	}
	n.listeners[typ] = append(n.listeners[typ], l)
}

// RemoveEventListener unregisters l.
func (e *Element) RemoveEventListener(typ string, l *EventListener) {
	n := e.n()
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	list := n.listeners[typ]
	for i, existing := range list {
		if existing == l {
			n.listeners[typ] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(n.listeners[typ]) == 0 {
		delete(n.listeners, typ)
	}
}

// ListenerCount returns the number of listeners registered for typ.
func (e *Element) ListenerCount(typ string) int {
	n := e.n()
	n.doc.mu.RLock()
	defer n.doc.mu.RUnlock()
	return len(n.listeners[typ])
}

// DispatchEvent runs listeners on e and, for bubbling events, its ancestors.
// It returns false if a listener called PreventDefault.
func (e *Element) DispatchEvent(ev *Event) bool {
	if ev == nil {
		return true
	}
	ev.Target = e
	path := []*node{e.n()}
	if ev.Bubbles {
		e.n().doc.mu.RLock()
		for p := e.n().parent; p != nil && p.typ == ElementNode; p = p.parent {
			path = append(path, p)
		}
		e.n().doc.mu.RUnlock()
	}

	for _, n := range path {
		ev.CurrentTarget = n.element()
		for _, l := range n.snapshotListeners(ev.Type) {
			if l.Once {
				n.element().RemoveEventListener(ev.Type, l)
			}
			if l.Handle != nil {
				l.Handle(ev)
			}
		}
		if ev.stopped {
			break
		}
	}
	return !ev.defaultPrevented
}

func (n *node) snapshotListeners(typ string) []*EventListener {
	n.doc.mu.RLock()
	defer n.doc.mu.RUnlock()
	return append([]*EventListener(nil), n.listeners[typ]...)
}
