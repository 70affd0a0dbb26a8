package helpers

import (
	"context"
	"strings"
	"time"

	"github.com/vango-dev/domkit/internal/errors"
	"github.com/vango-dev/domkit/pkg/dom"
	"github.com/vango-dev/domkit/pkg/enhance"
	"github.com/vango-dev/domkit/pkg/query"
	"github.com/vango-dev/domkit/pkg/watch"
)

// SelectorKey identifies a selector lookup.
type SelectorKey struct {
	Selector string
	All      bool
}

func (k SelectorKey) String() string {
	if k.All {
		return "all:" + k.Selector
	}
	return "one:" + k.Selector
}

type selectorMatch struct {
	one *dom.Element
	all *dom.NodeList
}

// SelectorResult is a cached selector lookup: a single element for Query, a
// static collection for QueryAll.
type SelectorResult struct {
	One *enhance.Element
	All *enhance.Collection
}

// Selector looks up elements by CSS selector. Results are static snapshots
// that the helper invalidates on any structural change.
type Selector struct {
	*helper[SelectorKey, selectorMatch, *SelectorResult]
	doc *dom.Document
}

// NewSelector creates a selector lookup helper for doc.
func NewSelector(doc *dom.Document, opts ...Option) *Selector {
	s := newSettings(opts)
	sel := &Selector{doc: doc}
	engine := query.New(doc, query.Strategy[SelectorKey, selectorMatch, *SelectorResult]{
		Name:  "selector",
		Query: sel.query,
		Wrap: func(_ SelectorKey, m selectorMatch) *SelectorResult {
			opt := enhance.WithLogger(sel.logger())
			if m.all != nil {
				return &SelectorResult{All: enhance.EnhanceList(m.all, opt)}
			}
			return &SelectorResult{One: enhance.Enhance(m.one, opt)}
		},
		Valid: func(r *SelectorResult) bool {
			if r.All != nil {
				return r.All.Len() == 0 || doc.Contains(r.All.Item(0))
			}
			return r.One != nil && doc.Contains(r.One.Raw())
		},
		Structural: true,
		Affected:   affectsSelector,
		Members: func(r *SelectorResult) []*dom.Element {
			if r.All != nil {
				return r.All.Items()
			}
			if r.One != nil {
				return []*dom.Element{r.One.Raw()}
			}
			return nil
		},
		KeyString: SelectorKey.String,
	}, s.engineOptions()...)
	sel.helper = &helper[SelectorKey, selectorMatch, *SelectorResult]{engine: engine}
	return sel
}

func (s *Selector) query(k SelectorKey) (selectorMatch, error) {
	if k.All {
		list, err := s.doc.QuerySelectorAll(k.Selector)
		return selectorMatch{all: list}, err
	}
	el, err := s.doc.QuerySelector(k.Selector)
	return selectorMatch{one: el}, err
}

// affectsSelector narrows attribute-only batches to selectors mentioning an
// affected id, class or attribute name.
func affectsSelector(b watch.Batch, k SelectorKey) bool {
	for _, tok := range b.Tokens() {
		if strings.Contains(k.Selector, tok) {
			return true
		}
	}
	return false
}

func (s *Selector) lookup(sel string, all bool) (*SelectorResult, bool) {
	if strings.TrimSpace(sel) == "" {
		s.warnInvalid("selector", sel)
		return nil, false
	}
	r, err := s.engine.Get(SelectorKey{Selector: sel, All: all})
	if err != nil {
		s.logger().Warn("helpers: invalid selector",
			"error", errors.New("E002").WithKey(sel).Wrap(err))
		return nil, false
	}
	return r, true
}

// Query returns the first element matching sel, or nil. Invalid selectors
// are logged and yield nil.
func (s *Selector) Query(sel string) *enhance.Element {
	r, ok := s.lookup(sel, false)
	if !ok {
		return nil
	}
	return r.One
}

// QueryAll returns every element matching sel. Invalid selectors are logged
// and yield an empty collection.
func (s *Selector) QueryAll(sel string) *enhance.Collection {
	r, ok := s.lookup(sel, true)
	if !ok || r.All == nil {
		return enhance.Empty(enhance.WithLogger(s.logger()))
	}
	return r.All
}

// WaitFor polls until an element matches sel.
func (s *Selector) WaitFor(ctx context.Context, sel string, timeout time.Duration) (*enhance.Element, error) {
	if err := s.check(sel); err != nil {
		return nil, err
	}
	return poll(ctx, s.Options().PollInterval, timeout, sel, func() (*enhance.Element, bool) {
		el := s.Query(sel)
		return el, el != nil
	})
}

// WaitForAll polls until at least atLeast elements match sel.
func (s *Selector) WaitForAll(ctx context.Context, sel string, atLeast int, timeout time.Duration) (*enhance.Collection, error) {
	if err := s.check(sel); err != nil {
		return nil, err
	}
	if atLeast < 1 {
		atLeast = 1
	}
	return poll(ctx, s.Options().PollInterval, timeout, sel, func() (*enhance.Collection, bool) {
		col := s.QueryAll(sel)
		return col, col.Len() >= atLeast
	})
}

func (s *Selector) check(sel string) error {
	if strings.TrimSpace(sel) == "" {
		return errors.New("E001").WithKey(sel)
	}
	if _, err := s.doc.QuerySelector(sel); err != nil {
		return errors.New("E002").WithKey(sel).Wrap(err)
	}
	return nil
}

// Document returns the document the helper queries.
func (s *Selector) Document() *dom.Document { return s.doc }
