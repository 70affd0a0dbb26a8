package enhance

import (
	"log/slog"
	"sync"

	"github.com/vango-dev/domkit/pkg/dom"
)

type markerKey struct{}

// enhanceMu serializes the check-and-set of the enhancement marker.
var enhanceMu sync.Mutex

// Element decorates a *dom.Element with Update and update middleware.
type Element struct {
	raw    *dom.Element
	logger *slog.Logger

	mu         sync.RWMutex
	middleware []UpdateMiddleware
}

// Option configures enhancement.
type Option func(*settings)

type settings struct {
	logger *slog.Logger
}

// WithLogger sets the logger used for failed update entries.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

func newSettings(opts []Option) settings {
	s := settings{logger: slog.Default()}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Enhance returns the wrapper for raw, creating it on first use. Enhancing
// the same element again returns the same *Element. A nil raw yields nil.
func Enhance(raw *dom.Element, opts ...Option) *Element {
	if raw == nil {
		return nil
	}
	enhanceMu.Lock()
	defer enhanceMu.Unlock()
	if el, ok := raw.Expando(markerKey{}).(*Element); ok {
		return el
	}
	s := newSettings(opts)
	el := &Element{raw: raw, logger: s.logger}
	raw.SetExpando(markerKey{}, el)
	return el
}

// IsEnhanced reports whether raw already carries a wrapper.
func IsEnhanced(raw *dom.Element) bool {
	if raw == nil {
		return false
	}
	_, ok := raw.Expando(markerKey{}).(*Element)
	return ok
}

// Raw returns the underlying element.
func (e *Element) Raw() *dom.Element {
	if e == nil {
		return nil
	}
	return e.raw
}

// ID returns the element id.
func (e *Element) ID() string { return e.raw.ID() }

// TextContent returns the element's text.
func (e *Element) TextContent() string { return e.raw.TextContent() }

// String describes the element for logs.
func (e *Element) String() string { return e.raw.String() }

// Use appends middleware to the element's update pipeline. Middleware runs in
// registration order, outermost first.
func (e *Element) Use(mw ...UpdateMiddleware) *Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.middleware = append(e.middleware, mw...)
	return e
}

// Update applies updates and returns e for chaining. Failed entries are
// logged and skipped; the others still apply.
func (e *Element) Update(updates Updates) *Element {
	e.UpdateReport(updates)
	return e
}

// UpdateReport applies updates like Update and returns what happened.
func (e *Element) UpdateReport(updates Updates) UpdateReport {
	if e == nil || len(updates) == 0 {
		return UpdateReport{}
	}
	e.mu.RLock()
	chain := make([]UpdateMiddleware, len(e.middleware))
	copy(chain, e.middleware)
	e.mu.RUnlock()

	var fn UpdateFunc = applyAll
	for i := len(chain) - 1; i >= 0; i-- {
		fn = chain[i](fn)
	}
	report := fn(e, updates)
	for _, key := range report.FailedKeys() {
		e.logger.Error("enhance: update entry failed", "element", e.raw.String(), "error", report.Errors[key])
	}
	return report
}
