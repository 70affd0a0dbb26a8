package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// NodeType is the node type discriminator.
type NodeType uint8

const (
	ElementNode  NodeType = 1
	TextNode     NodeType = 3
	CommentNode  NodeType = 8
	DocumentNode NodeType = 9
	DoctypeNode  NodeType = 10
)

// String returns the string representation of the NodeType.
func (t NodeType) String() string {
	switch t {
	case ElementNode:
		return "Element"
	case TextNode:
		return "Text"
	case CommentNode:
		return "Comment"
	case DocumentNode:
		return "Document"
	case DoctypeNode:
		return "Doctype"
	default:
		return "Unknown"
	}
}

// node is a tree node. Elements are exposed as *Element, which shares the
// same underlying struct, so conversions between the two keep identity.
type node struct {
	doc  *Document
	typ  NodeType
	data string // tag name for elements, text for text and comment nodes

	attrs []html.Attribute

	parent, firstChild, lastChild, prev, next *node

	listeners map[string][]*EventListener
	expando   map[any]any
}

func (n *node) element() *Element {
	if n == nil || n.typ != ElementNode {
		return nil
	}
	return (*Element)(n)
}

// appendChild links c as the last child of n. c must be detached.
func (n *node) appendChild(c *node) {
	c.parent = n
	c.prev = n.lastChild
	c.next = nil
	if n.lastChild != nil {
		n.lastChild.next = c
	} else {
		n.firstChild = c
	}
	n.lastChild = c
}

// insertBefore links c before ref. ref nil appends.
func (n *node) insertBefore(c, ref *node) {
	if ref == nil {
		n.appendChild(c)
		return
	}
	c.parent = n
	c.next = ref
	c.prev = ref.prev
	if ref.prev != nil {
		ref.prev.next = c
	} else {
		n.firstChild = c
	}
	ref.prev = c
}

// unlink detaches n from its parent.
func (n *node) unlink() {
	p := n.parent
	if p == nil {
		return
	}
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		p.firstChild = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		p.lastChild = n.prev
	}
	n.parent, n.prev, n.next = nil, nil, nil
}

// isInclusiveAncestorOf reports whether n is other or one of its ancestors.
func (n *node) isInclusiveAncestorOf(other *node) bool {
	for c := other; c != nil; c = c.parent {
		if c == n {
			return true
		}
	}
	return false
}

// root returns the topmost ancestor of n.
func (n *node) root() *node {
	r := n
	for r.parent != nil {
		r = r.parent
	}
	return r
}

// walk visits n's descendants in tree order. Returning false stops the walk.
func (n *node) walk(fn func(*node) bool) bool {
	for c := n.firstChild; c != nil; c = c.next {
		if !fn(c) {
			return false
		}
		if !c.walk(fn) {
			return false
		}
	}
	return true
}

// elementsUnder returns n (if it is an element) and all element descendants.
func (n *node) elementsUnder() []*Element {
	var out []*Element
	if n.typ == ElementNode {
		out = append(out, n.element())
	}
	n.walk(func(c *node) bool {
		if c.typ == ElementNode {
			out = append(out, c.element())
		}
		return true
	})
	return out
}

func (n *node) attr(name string) (string, bool) {
	for _, a := range n.attrs {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// setAttr stores the attribute and returns the previous value.
func (n *node) setAttr(name, value string) (string, bool) {
	for i, a := range n.attrs {
		if a.Namespace == "" && a.Key == name {
			n.attrs[i].Val = value
			return a.Val, true
		}
	}
	n.attrs = append(n.attrs, html.Attribute{Key: name, Val: value})
	return "", false
}

func (n *node) removeAttr(name string) (string, bool) {
	for i, a := range n.attrs {
		if a.Namespace == "" && a.Key == name {
			n.attrs = append(n.attrs[:i], n.attrs[i+1:]...)
			return a.Val, true
		}
	}
	return "", false
}

func (n *node) textContent() string {
	switch n.typ {
	case TextNode, CommentNode:
		return n.data
	}
	var b strings.Builder
	n.walk(func(c *node) bool {
		if c.typ == TextNode {
			b.WriteString(c.data)
		}
		return true
	})
	return b.String()
}

// clone deep-copies n into doc without parent links. Listeners and expando
// slots are not copied, matching cloneNode.
func (n *node) clone(doc *Document, deep bool) *node {
	c := &node{doc: doc, typ: n.typ, data: n.data}
	if len(n.attrs) > 0 {
		c.attrs = append([]html.Attribute(nil), n.attrs...)
	}
	if deep {
		for ch := n.firstChild; ch != nil; ch = ch.next {
			c.appendChild(ch.clone(doc, true))
		}
	}
	return c
}

// fromHTML converts a parsed html.Node subtree into doc nodes.
func fromHTML(doc *Document, h *html.Node) *node {
	n := &node{doc: doc}
	switch h.Type {
	case html.ElementNode:
		n.typ = ElementNode
		n.data = strings.ToLower(h.Data)
		if len(h.Attr) > 0 {
			n.attrs = make([]html.Attribute, 0, len(h.Attr))
			for _, a := range h.Attr {
				n.attrs = append(n.attrs, html.Attribute{Namespace: a.Namespace, Key: strings.ToLower(a.Key), Val: a.Val})
			}
		}
	case html.TextNode:
		n.typ = TextNode
		n.data = h.Data
	case html.CommentNode:
		n.typ = CommentNode
		n.data = h.Data
	case html.DoctypeNode:
		n.typ = DoctypeNode
		n.data = h.Data
	case html.DocumentNode:
		n.typ = DocumentNode
	default:
		return nil
	}
	for c := h.FirstChild; c != nil; c = c.NextSibling {
		if cn := fromHTML(doc, c); cn != nil {
			n.appendChild(cn)
		}
	}
	return n
}
