package helpers

import (
	"context"
	"time"

	"github.com/vango-dev/domkit/internal/errors"
	"github.com/vango-dev/domkit/pkg/dom"
	"github.com/vango-dev/domkit/pkg/enhance"
	"github.com/vango-dev/domkit/pkg/query"
	"github.com/vango-dev/domkit/pkg/watch"
)

// Elements looks up elements by id.
type Elements struct {
	*helper[string, *dom.Element, *enhance.Element]
	doc *dom.Document
}

// NewElements creates an id lookup helper for doc.
func NewElements(doc *dom.Document, opts ...Option) *Elements {
	s := newSettings(opts)
	e := &Elements{doc: doc}
	engine := query.New(doc, query.Strategy[string, *dom.Element, *enhance.Element]{
		Name: "elements",
		Query: func(id string) (*dom.Element, error) {
			return doc.GetElementByID(id), nil
		},
		Wrap: func(_ string, raw *dom.Element) *enhance.Element {
			return enhance.Enhance(raw, enhance.WithLogger(e.logger()))
		},
		Valid: func(el *enhance.Element) bool {
			return el != nil && doc.Contains(el.Raw())
		},
		Affected: func(b watch.Batch, id string) bool {
			return b.HasID(id)
		},
		Members: func(el *enhance.Element) []*dom.Element {
			if el == nil {
				return nil
			}
			return []*dom.Element{el.Raw()}
		},
	}, s.engineOptions()...)
	e.helper = &helper[string, *dom.Element, *enhance.Element]{engine: engine}
	return e
}

// Get returns the element with the given id, or nil.
func (e *Elements) Get(id string) *enhance.Element {
	if !validID(id) {
		e.warnInvalid("id", id)
		return nil
	}
	el, _ := e.engine.Get(id)
	return el
}

// Exists reports whether an element with the id is connected.
func (e *Elements) Exists(id string) bool {
	return e.Get(id) != nil
}

// GetMultiple looks up several ids. Missing ids map to nil.
func (e *Elements) GetMultiple(ids ...string) map[string]*enhance.Element {
	out := make(map[string]*enhance.Element, len(ids))
	for _, id := range ids {
		out[id] = e.Get(id)
	}
	return out
}

// Require returns the element or an E001/E007 error.
func (e *Elements) Require(id string) (*enhance.Element, error) {
	if !validID(id) {
		return nil, errors.New("E001").WithKey(id)
	}
	if el := e.Get(id); el != nil {
		return el, nil
	}
	return nil, errors.New("E007").WithKey(id).
		WithSuggestion("check the id or use WaitFor if the element is rendered later")
}

// WaitFor polls until the element exists. It fails with E020 once timeout
// elapses.
func (e *Elements) WaitFor(ctx context.Context, id string, timeout time.Duration) (*enhance.Element, error) {
	if !validID(id) {
		return nil, errors.New("E001").WithKey(id)
	}
	return poll(ctx, e.Options().PollInterval, timeout, "#"+id, func() (*enhance.Element, bool) {
		el := e.Get(id)
		return el, el != nil
	})
}

// Document returns the document the helper queries.
func (e *Elements) Document() *dom.Document { return e.doc }
