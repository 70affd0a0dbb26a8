package helpers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vango-dev/domkit/internal/errors"
	"github.com/vango-dev/domkit/pkg/dom"
	"github.com/vango-dev/domkit/pkg/enhance"
	"github.com/vango-dev/domkit/pkg/query"
	"github.com/vango-dev/domkit/pkg/watch"
)

// Kind selects a collection lookup.
type Kind string

const (
	KindClassName Kind = "className"
	KindTagName   Kind = "tagName"
	KindName      Kind = "name"
)

// CollectionKey identifies a collection lookup.
type CollectionKey struct {
	Kind  Kind
	Value string
}

func (k CollectionKey) String() string { return string(k.Kind) + ":" + k.Value }

// Collections looks up live collections by class name, tag name or name
// attribute. Results are never nil.
type Collections struct {
	*helper[CollectionKey, *dom.HTMLCollection, *enhance.Collection]
	doc *dom.Document
}

// NewCollections creates a collection lookup helper for doc.
func NewCollections(doc *dom.Document, opts ...Option) *Collections {
	s := newSettings(opts)
	c := &Collections{doc: doc}
	engine := query.New(doc, query.Strategy[CollectionKey, *dom.HTMLCollection, *enhance.Collection]{
		Name:  "collections",
		Query: c.query,
		Wrap: func(_ CollectionKey, raw *dom.HTMLCollection) *enhance.Collection {
			return enhance.EnhanceList(raw, enhance.WithLogger(c.logger()))
		},
		Valid: func(col *enhance.Collection) bool {
			return col.Len() == 0 || doc.Contains(col.Item(0))
		},
		Affected: affectsCollection,
		Members: func(col *enhance.Collection) []*dom.Element {
			return col.Items()
		},
		KeyString: CollectionKey.String,
	}, s.engineOptions()...)
	c.helper = &helper[CollectionKey, *dom.HTMLCollection, *enhance.Collection]{engine: engine}
	return c
}

func (c *Collections) query(k CollectionKey) (*dom.HTMLCollection, error) {
	switch k.Kind {
	case KindClassName:
		return c.doc.GetElementsByClassName(k.Value), nil
	case KindTagName:
		return c.doc.GetElementsByTagName(k.Value), nil
	case KindName:
		return c.doc.GetElementsByName(k.Value), nil
	default:
		return nil, fmt.Errorf("unknown collection kind %q", k.Kind)
	}
}

func affectsCollection(b watch.Batch, k CollectionKey) bool {
	switch k.Kind {
	case KindClassName:
		for _, name := range strings.Fields(k.Value) {
			if b.HasClass(name) {
				return true
			}
		}
		return false
	case KindTagName:
		return b.HasTag(k.Value)
	case KindName:
		return b.HasName(k.Value)
	}
	return false
}

// Get returns the collection for kind and value. Invalid input yields an
// empty collection.
func (c *Collections) Get(kind Kind, value string) *enhance.Collection {
	if !validKey(value) {
		c.warnInvalid(string(kind), value)
		return enhance.Empty(enhance.WithLogger(c.logger()))
	}
	col, err := c.engine.Get(CollectionKey{Kind: kind, Value: value})
	if err != nil {
		c.logger().Warn("helpers: collection lookup failed",
			"error", errors.FromError(err, "E001").WithKey(string(kind)))
		return enhance.Empty(enhance.WithLogger(c.logger()))
	}
	return col
}

// ClassName returns the elements carrying every class in names.
func (c *Collections) ClassName(names string) *enhance.Collection {
	return c.Get(KindClassName, names)
}

// TagName returns the elements with the tag. "*" matches every element.
func (c *Collections) TagName(tag string) *enhance.Collection {
	return c.Get(KindTagName, tag)
}

// Name returns the elements whose name attribute equals name.
func (c *Collections) Name(name string) *enhance.Collection {
	return c.Get(KindName, name)
}

// WaitFor polls until the collection has at least one member.
func (c *Collections) WaitFor(ctx context.Context, kind Kind, value string, timeout time.Duration) (*enhance.Collection, error) {
	if !validKey(value) {
		return nil, errors.New("E001").WithKey(value)
	}
	target := CollectionKey{Kind: kind, Value: value}.String()
	return poll(ctx, c.Options().PollInterval, timeout, target, func() (*enhance.Collection, bool) {
		col := c.Get(kind, value)
		return col, col.Len() > 0
	})
}

// Document returns the document the helper queries.
func (c *Collections) Document() *dom.Document { return c.doc }
