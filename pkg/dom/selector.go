package dom

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// SelectorError reports a selector that failed to parse.
type SelectorError struct {
	Selector string
	Err      error
}

// Error implements the error interface.
func (e *SelectorError) Error() string {
	return fmt.Sprintf("dom: invalid selector %q: %v", e.Selector, e.Err)
}

// Unwrap returns the underlying parse error.
func (e *SelectorError) Unwrap() error {
	return e.Err
}

// compiled caches parsed selectors. Selector text is small and reused
// heavily, so the cache is never pruned.
var compiled sync.Map // string -> cascadia.Selector

func compileSelector(sel string) (cascadia.Selector, error) {
	if v, ok := compiled.Load(sel); ok {
		return v.(cascadia.Selector), nil
	}
	if strings.TrimSpace(sel) == "" {
		return nil, &SelectorError{Selector: sel, Err: fmt.Errorf("empty selector")}
	}
	s, err := cascadia.Compile(sel)
	if err != nil {
		return nil, &SelectorError{Selector: sel, Err: err}
	}
	compiled.Store(sel, s)
	return s, nil
}

// mirror is an html.Node copy of a tree, used for selector matching and
// serialization.
type mirror struct {
	version uint64
	root    *html.Node
	fwd     map[*node]*html.Node
	back    map[*html.Node]*node
}

func buildMirror(root *node) *mirror {
	m := &mirror{
		fwd:  make(map[*node]*html.Node),
		back: make(map[*html.Node]*node),
	}
	m.root = m.convert(root)
	return m
}

func (m *mirror) convert(n *node) *html.Node {
	h := toHTMLNode(n)
	if h == nil {
		return nil
	}
	m.fwd[n] = h
	m.back[h] = n
	for c := n.firstChild; c != nil; c = c.next {
		if hc := m.convert(c); hc != nil {
			h.AppendChild(hc)
		}
	}
	return h
}

func toHTMLNode(n *node) *html.Node {
	h := &html.Node{}
	switch n.typ {
	case ElementNode:
		h.Type = html.ElementNode
		h.Data = n.data
		h.DataAtom = atom.Lookup([]byte(n.data))
		if len(n.attrs) > 0 {
			h.Attr = append([]html.Attribute(nil), n.attrs...)
		}
	case TextNode:
		h.Type = html.TextNode
		h.Data = n.data
	case CommentNode:
		h.Type = html.CommentNode
		h.Data = n.data
	case DoctypeNode:
		h.Type = html.DoctypeNode
		h.Data = n.data
	case DocumentNode:
		h.Type = html.DocumentNode
	default:
		return nil
	}
	return h
}

// mirrorLocked returns the mirror of the whole document, rebuilding it when
// the document changed. Caller holds d.mu for reading.
func (d *Document) mirrorLocked() *mirror {
	d.mirrorMu.Lock()
	defer d.mirrorMu.Unlock()
	if d.mirror != nil && d.mirror.version == d.version {
		return d.mirror
	}
	m := buildMirror(d.root)
	m.version = d.version
	d.mirror = m
	return m
}

// selectLocked returns the element descendants of scope matching sel in tree
// order. scope itself is never included. Caller holds d.mu for reading.
func (d *Document) selectLocked(scope *node, sel cascadia.Selector, first bool) []*Element {
	var m *mirror
	if scope.root() == d.root {
		m = d.mirrorLocked()
	} else {
		m = buildMirror(scope.root())
	}
	start := m.fwd[scope]
	if start == nil {
		return nil
	}

	var out []*Element
	var visit func(h *html.Node) bool
	visit = func(h *html.Node) bool {
		for c := h.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && sel.Match(c) {
				out = append(out, m.back[c].element())
				if first {
					return false
				}
			}
			if !visit(c) {
				return false
			}
		}
		return true
	}
	visit(start)
	return out
}

// matchesLocked reports whether n matches sel in the context of its tree.
func (d *Document) matchesLocked(n *node, sel cascadia.Selector) bool {
	var m *mirror
	if n.root() == d.root {
		m = d.mirrorLocked()
	} else {
		m = buildMirror(n.root())
	}
	h := m.fwd[n]
	return h != nil && sel.Match(h)
}

// renderNode serializes n and its subtree.
func renderNode(n *node) string {
	m := buildMirror(n)
	var buf bytes.Buffer
	if err := html.Render(&buf, m.root); err != nil {
		return ""
	}
	return buf.String()
}
