package enhance

import (
	"iter"
	"log/slog"

	"github.com/vango-dev/domkit/pkg/dom"
)

// Collection decorates a live or static element list with array helpers and
// bulk DOM operations. Members are enhanced on access.
type Collection struct {
	list   dom.ElementList
	logger *slog.Logger
	opts   []Option
}

// EnhanceList wraps list. Wrapping a *Collection returns it unchanged and a
// nil list yields an empty collection.
func EnhanceList(list dom.ElementList, opts ...Option) *Collection {
	if c, ok := list.(*Collection); ok {
		return c
	}
	if list == nil {
		list = dom.NewNodeList(nil)
	}
	s := newSettings(opts)
	return &Collection{list: list, logger: s.logger, opts: opts}
}

// Empty returns an empty static collection.
func Empty(opts ...Option) *Collection {
	return EnhanceList(dom.NewNodeList(nil), opts...)
}

func (c *Collection) derive(items []*dom.Element) *Collection {
	return &Collection{list: dom.NewNodeList(items), logger: c.logger, opts: c.opts}
}

// Source returns the wrapped list.
func (c *Collection) Source() dom.ElementList { return c.list }

// Len returns the number of members.
func (c *Collection) Len() int { return c.list.Len() }

// Items returns the raw members.
func (c *Collection) Items() []*dom.Element { return c.list.Items() }

// Item returns the raw member at i, or nil when out of range.
func (c *Collection) Item(i int) *dom.Element { return c.list.Item(i) }

// At returns the enhanced member at i. Negative indexes count from the end.
func (c *Collection) At(i int) *Element {
	if i < 0 {
		i += c.list.Len()
	}
	if i < 0 {
		return nil
	}
	return Enhance(c.list.Item(i), c.opts...)
}

// First returns the first member or nil.
func (c *Collection) First() *Element { return c.At(0) }

// Last returns the last member or nil.
func (c *Collection) Last() *Element { return c.At(-1) }

// IsEmpty reports whether the collection has no members.
func (c *Collection) IsEmpty() bool { return c.list.Len() == 0 }

// All iterates over index and enhanced member.
func (c *Collection) All() iter.Seq2[int, *Element] {
	return func(yield func(int, *Element) bool) {
		for i, raw := range c.list.Items() {
			if !yield(i, Enhance(raw, c.opts...)) {
				return
			}
		}
	}
}

// Slice returns the enhanced members.
func (c *Collection) Slice() []*Element {
	items := c.list.Items()
	out := make([]*Element, 0, len(items))
	for _, raw := range items {
		out = append(out, Enhance(raw, c.opts...))
	}
	return out
}

// ForEach calls fn for every member.
func (c *Collection) ForEach(fn func(el *Element, i int)) *Collection {
	for i, el := range c.All() {
		fn(el, i)
	}
	return c
}

// Map returns fn applied to every member.
func (c *Collection) Map(fn func(el *Element, i int) any) []any {
	return MapOf(c, fn)
}

// MapOf is the typed form of Collection.Map.
func MapOf[T any](c *Collection, fn func(el *Element, i int) T) []T {
	out := make([]T, 0, c.Len())
	for i, el := range c.All() {
		out = append(out, fn(el, i))
	}
	return out
}

// Filter returns a static collection of the members satisfying fn.
func (c *Collection) Filter(fn func(el *Element, i int) bool) *Collection {
	var keep []*dom.Element
	for i, el := range c.All() {
		if fn(el, i) {
			keep = append(keep, el.Raw())
		}
	}
	return c.derive(keep)
}

// Find returns the first member satisfying fn, or nil.
func (c *Collection) Find(fn func(el *Element, i int) bool) *Element {
	for i, el := range c.All() {
		if fn(el, i) {
			return el
		}
	}
	return nil
}

// Some reports whether any member satisfies fn.
func (c *Collection) Some(fn func(el *Element, i int) bool) bool {
	return c.Find(fn) != nil
}

// Every reports whether all members satisfy fn. It is true for an empty
// collection.
func (c *Collection) Every(fn func(el *Element, i int) bool) bool {
	for i, el := range c.All() {
		if !fn(el, i) {
			return false
		}
	}
	return true
}

// Reduce folds the members into an accumulator.
func (c *Collection) Reduce(fn func(acc any, el *Element, i int) any, initial any) any {
	acc := initial
	for i, el := range c.All() {
		acc = fn(acc, el, i)
	}
	return acc
}

// Visible returns the members whose computed style renders them.
func (c *Collection) Visible() *Collection {
	return c.Filter(func(el *Element, _ int) bool { return el.Raw().IsVisible() })
}

// Hidden returns the members that are not visible.
func (c *Collection) Hidden() *Collection {
	return c.Filter(func(el *Element, _ int) bool { return !el.Raw().IsVisible() })
}

// Enabled returns the members without a disabled attribute.
func (c *Collection) Enabled() *Collection {
	return c.Filter(func(el *Element, _ int) bool { return !el.Raw().HasAttribute("disabled") })
}

// Disabled returns the members with a disabled attribute.
func (c *Collection) Disabled() *Collection {
	return c.Filter(func(el *Element, _ int) bool { return el.Raw().HasAttribute("disabled") })
}

// AddClass adds class names to every member.
func (c *Collection) AddClass(names ...string) *Collection {
	return c.each("addClass", func(raw *dom.Element) error { return raw.ClassList().Add(names...) })
}

// RemoveClass removes class names from every member.
func (c *Collection) RemoveClass(names ...string) *Collection {
	return c.each("removeClass", func(raw *dom.Element) error { return raw.ClassList().Remove(names...) })
}

// ToggleClass toggles a class name on every member.
func (c *Collection) ToggleClass(name string, force ...bool) *Collection {
	return c.each("toggleClass", func(raw *dom.Element) error {
		_, err := raw.ClassList().Toggle(name, force...)
		return err
	})
}

// SetStyle applies style properties to every member.
func (c *Collection) SetStyle(styles map[string]any) *Collection {
	return c.each("setStyle", func(raw *dom.Element) error { return Apply(raw, "style", styles) })
}

// SetAttribute sets an attribute on every member.
func (c *Collection) SetAttribute(name, value string) *Collection {
	return c.each("setAttribute", func(raw *dom.Element) error { return raw.SetAttribute(name, value) })
}

// On adds l to every member.
func (c *Collection) On(typ string, l *dom.EventListener) *Collection {
	return c.each("on", func(raw *dom.Element) error {
		raw.AddEventListener(typ, l)
		return nil
	})
}

// Off removes l from every member.
func (c *Collection) Off(typ string, l *dom.EventListener) *Collection {
	return c.each("off", func(raw *dom.Element) error {
		raw.RemoveEventListener(typ, l)
		return nil
	})
}

// Update applies updates to every current member through each member's own
// update pipeline.
func (c *Collection) Update(updates Updates) *Collection {
	for _, el := range c.All() {
		if el == nil {
			continue
		}
		el.Update(updates)
	}
	return c
}

func (c *Collection) each(op string, fn func(*dom.Element) error) *Collection {
	for _, raw := range c.list.Items() {
		if raw == nil {
			continue
		}
		if err := fn(raw); err != nil {
			c.logger.Error("enhance: bulk operation failed", "op", op, "element", raw.String(), "error", err)
		}
	}
	return c
}
