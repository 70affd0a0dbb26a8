package dom

import (
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/net/html"
)

// Document is a live document tree.
type Document struct {
	mu sync.RWMutex

	root *node

	// version increments on every mutation; the selector mirror is keyed by it.
	version uint64

	mirrorMu sync.Mutex
	mirror   *mirror

	// observers registered via MutationObserver.Observe.
	observers []*MutationObserver

	// delivering guards the record delivery loop against re-entry.
	delivering atomic.Bool

	// readyFns run once the body element exists.
	readyFns []func()

	activeElement *node
}

// NewDocument returns an empty document with html, head and body elements.
func NewDocument() *Document {
	doc, _ := ParseString("<!DOCTYPE html><html><head></head><body></body></html>")
	return doc
}

// NewBodylessDocument returns a document with only an html element. Attach a
// body with DocumentElement().AppendChild to trigger OnReady callbacks.
func NewBodylessDocument() *Document {
	d := &Document{}
	d.root = &node{doc: d, typ: DocumentNode}
	d.root.appendChild(&node{doc: d, typ: ElementNode, data: "html"})
	return d
}

// Parse parses an HTML document.
func Parse(r io.Reader) (*Document, error) {
	h, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	d := &Document{}
	d.root = fromHTML(d, h)
	return d, nil
}

// ParseString parses an HTML document from a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// DocumentElement returns the html element.
func (d *Document) DocumentElement() *Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.documentElementLocked().element()
}

func (d *Document) documentElementLocked() *node {
	for c := d.root.firstChild; c != nil; c = c.next {
		if c.typ == ElementNode {
			return c
		}
	}
	return nil
}

func (d *Document) childOfHTMLLocked(tag string) *node {
	htmlEl := d.documentElementLocked()
	if htmlEl == nil {
		return nil
	}
	for c := htmlEl.firstChild; c != nil; c = c.next {
		if c.typ == ElementNode && c.data == tag {
			return c
		}
	}
	return nil
}

// Body returns the body element, or nil when it does not exist yet.
func (d *Document) Body() *Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.childOfHTMLLocked("body").element()
}

// Head returns the head element, or nil.
func (d *Document) Head() *Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.childOfHTMLLocked("head").element()
}

// ActiveElement returns the focused element, or the body.
func (d *Document) ActiveElement() *Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.activeElement != nil && d.root.isInclusiveAncestorOf(d.activeElement) {
		return d.activeElement.element()
	}
	return d.childOfHTMLLocked("body").element()
}

// Version returns the mutation counter of the document.
func (d *Document) Version() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.version
}

// OnReady runs fn once the document has a body. If the body already exists fn
// runs immediately on the calling goroutine.
func (d *Document) OnReady(fn func()) {
	d.mu.Lock()
	if d.childOfHTMLLocked("body") == nil {
		d.readyFns = append(d.readyFns, fn)
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()
	fn()
}

// CreateElement returns a new detached element owned by d.
func (d *Document) CreateElement(tag string) *Element {
	return (&node{doc: d, typ: ElementNode, data: strings.ToLower(tag)}).element()
}

// Contains reports whether el is attached to d.
func (d *Document) Contains(el *Element) bool {
	if el == nil {
		return false
	}
	n := el.n()
	if n.doc != d || n.typ != ElementNode {
		return false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.root.isInclusiveAncestorOf(n)
}

// GetElementByID returns the first connected element with the given id.
func (d *Document) GetElementByID(id string) *Element {
	if id == "" {
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	var found *node
	d.root.walk(func(n *node) bool {
		if n.typ == ElementNode {
			if v, ok := n.attr("id"); ok && v == id {
				found = n
				return false
			}
		}
		return true
	})
	return found.element()
}

// GetElementsByClassName returns a live collection of elements carrying all
// of the whitespace-separated class names.
func (d *Document) GetElementsByClassName(names string) *HTMLCollection {
	classes := strings.Fields(names)
	return newHTMLCollection(d, d.root, func(n *node) bool {
		if len(classes) == 0 {
			return false
		}
		v, _ := n.attr("class")
		have := strings.Fields(v)
		for _, want := range classes {
			if !containsToken(have, want) {
				return false
			}
		}
		return true
	})
}

// GetElementsByTagName returns a live collection of elements with the tag
// name. "*" matches every element.
func (d *Document) GetElementsByTagName(tag string) *HTMLCollection {
	tag = strings.ToLower(tag)
	return newHTMLCollection(d, d.root, func(n *node) bool {
		return tag == "*" || n.data == tag
	})
}

// GetElementsByName returns a live collection of elements whose name
// attribute equals name.
func (d *Document) GetElementsByName(name string) *HTMLCollection {
	return newHTMLCollection(d, d.root, func(n *node) bool {
		v, ok := n.attr("name")
		return ok && v == name
	})
}

// QuerySelector returns the first element matching sel, or nil.
func (d *Document) QuerySelector(sel string) (*Element, error) {
	s, err := compileSelector(sel)
	if err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	found := d.selectLocked(d.root, s, true)
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}

// QuerySelectorAll returns a static list of all elements matching sel.
func (d *Document) QuerySelectorAll(sel string) (*NodeList, error) {
	s, err := compileSelector(sel)
	if err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return &NodeList{items: d.selectLocked(d.root, s, false)}, nil
}

// HTML serializes the whole document.
func (d *Document) HTML() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return renderNode(d.root)
}

// mutate runs fn under the write lock, bumps the version, then delivers
// queued mutation records and runs pending ready callbacks.
func (d *Document) mutate(fn func()) {
	d.mu.Lock()
	fn()
	d.version++
	var ready []func()
	if len(d.readyFns) > 0 && d.childOfHTMLLocked("body") != nil {
		ready = d.readyFns
		d.readyFns = nil
	}
	d.mu.Unlock()

	for _, f := range ready {
		f()
	}
	d.deliver()
}

func containsToken(tokens []string, tok string) bool {
	for _, t := range tokens {
		if t == tok {
			return true
		}
	}
	return false
}
