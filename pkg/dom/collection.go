package dom

// ElementList is the read surface shared by HTMLCollection and NodeList.
type ElementList interface {
	Len() int
	Item(i int) *Element
	Items() []*Element
}

// HTMLCollection is a live collection: every access re-evaluates the filter
// against the current tree.
type HTMLCollection struct {
	doc   *Document
	root  *node
	match func(*node) bool
}

func newHTMLCollection(d *Document, root *node, match func(*node) bool) *HTMLCollection {
	return &HTMLCollection{doc: d, root: root, match: match}
}

func (c *HTMLCollection) collect(limit int) []*Element {
	c.doc.mu.RLock()
	defer c.doc.mu.RUnlock()
	var out []*Element
	c.root.walk(func(n *node) bool {
		if n.typ == ElementNode && c.match(n) {
			out = append(out, n.element())
			if limit > 0 && len(out) >= limit {
				return false
			}
		}
		return true
	})
	return out
}

// Len returns the number of matching elements.
func (c *HTMLCollection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.collect(0))
}

// Item returns the i-th matching element, or nil when out of range.
func (c *HTMLCollection) Item(i int) *Element {
	if c == nil || i < 0 {
		return nil
	}
	items := c.collect(i + 1)
	if i >= len(items) {
		return nil
	}
	return items[i]
}

// Items returns a snapshot of the matching elements.
func (c *HTMLCollection) Items() []*Element {
	if c == nil {
		return nil
	}
	return c.collect(0)
}

// NodeList is a static list captured at query time.
type NodeList struct {
	items []*Element
}

// NewNodeList returns a static list over items.
func NewNodeList(items []*Element) *NodeList {
	return &NodeList{items: append([]*Element(nil), items...)}
}

// Len returns the number of elements.
func (l *NodeList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.items)
}

// Item returns the i-th element, or nil when out of range.
func (l *NodeList) Item(i int) *Element {
	if l == nil || i < 0 || i >= len(l.items) {
		return nil
	}
	return l.items[i]
}

// Items returns a copy of the elements.
func (l *NodeList) Items() []*Element {
	if l == nil {
		return nil
	}
	return append([]*Element(nil), l.items...)
}
