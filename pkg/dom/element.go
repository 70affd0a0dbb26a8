package dom

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Errors returned by tree and attribute operations.
var (
	ErrHierarchy        = errors.New("dom: hierarchy request error")
	ErrNotFound         = errors.New("dom: node is not a child of this element")
	ErrWrongDocument    = errors.New("dom: node belongs to another document")
	ErrInvalidCharacter = errors.New("dom: invalid character in name")
)

// Element is an element node. Elements are compared by pointer identity.
type Element node

func (e *Element) n() *node { return (*node)(e) }

// OwnerDocument returns the document that created e.
func (e *Element) OwnerDocument() *Document { return e.doc }

// TagName returns the upper-cased tag name, as browsers report it for HTML.
func (e *Element) TagName() string { return strings.ToUpper(e.data) }

// LocalName returns the lower-cased tag name.
func (e *Element) LocalName() string { return e.data }

// String returns a short description such as div#app.card.
func (e *Element) String() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(e.data)
	if id := e.ID(); id != "" {
		b.WriteString("#" + id)
	}
	for _, c := range e.ClassList().Values() {
		b.WriteString("." + c)
	}
	return b.String()
}

// ID returns the id attribute.
func (e *Element) ID() string { return e.GetAttribute("id") }

// SetID sets the id attribute.
func (e *Element) SetID(id string) error { return e.SetAttribute("id", id) }

// ClassName returns the class attribute.
func (e *Element) ClassName() string { return e.GetAttribute("class") }

// SetClassName replaces the class attribute.
func (e *Element) SetClassName(v string) error { return e.SetAttribute("class", v) }

// GetAttribute returns the attribute value, or "" when absent.
func (e *Element) GetAttribute(name string) string {
	v, _ := e.LookupAttribute(name)
	return v
}

// LookupAttribute returns the attribute value and whether it is present.
func (e *Element) LookupAttribute(name string) (string, bool) {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return e.n().attr(strings.ToLower(name))
}

// HasAttribute reports whether the attribute is present.
func (e *Element) HasAttribute(name string) bool {
	_, ok := e.LookupAttribute(name)
	return ok
}

// Attributes returns a copy of all attributes.
func (e *Element) Attributes() map[string]string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	out := make(map[string]string, len(e.attrs))
	for _, a := range e.attrs {
		out[a.Key] = a.Val
	}
	return out
}

// AttributeNames returns the attribute names in sorted order.
func (e *Element) AttributeNames() []string {
	attrs := e.Attributes()
	names := make([]string, 0, len(attrs))
	for k := range attrs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ValidAttributeName reports whether name can be used as an attribute name.
func ValidAttributeName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r <= ' ', r == 0x7f:
			return false
		case strings.ContainsRune("\"'>/=<", r):
			return false
		}
	}
	return true
}

// SetAttribute sets an attribute, queueing an attributes record.
func (e *Element) SetAttribute(name, value string) error {
	if !ValidAttributeName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidCharacter, name)
	}
	name = strings.ToLower(name)
	n := e.n()
	n.doc.mutate(func() {
		old, _ := n.setAttr(name, value)
		n.doc.enqueueLocked(MutationRecord{
			Type:          MutationAttributes,
			Target:        e,
			AttributeName: name,
			OldValue:      old,
		}, n)
	})
	return nil
}

// RemoveAttribute removes an attribute. Removing an absent attribute queues
// no record.
func (e *Element) RemoveAttribute(name string) {
	name = strings.ToLower(name)
	n := e.n()
	n.doc.mutate(func() {
		old, ok := n.removeAttr(name)
		if !ok {
			return
		}
		n.doc.enqueueLocked(MutationRecord{
			Type:          MutationAttributes,
			Target:        e,
			AttributeName: name,
			OldValue:      old,
		}, n)
	})
}

// ToggleAttribute toggles a boolean attribute. force, when given, selects
// add (true) or remove (false). It returns whether the attribute is present
// afterwards.
func (e *Element) ToggleAttribute(name string, force ...bool) (bool, error) {
	has := e.HasAttribute(name)
	want := !has
	if len(force) > 0 {
		want = force[0]
	}
	switch {
	case want && !has:
		return true, e.SetAttribute(name, "")
	case !want && has:
		e.RemoveAttribute(name)
	}
	return want, nil
}

// ClassList returns the token list backed by the class attribute.
func (e *Element) ClassList() *TokenList {
	return &TokenList{el: e, attr: "class"}
}

// Style returns the declaration block backed by the style attribute.
func (e *Element) Style() *Style {
	return &Style{el: e}
}

// Dataset returns the data-* attribute map.
func (e *Element) Dataset() *Dataset {
	return &Dataset{el: e}
}

// TextContent returns the concatenated text of all descendants.
func (e *Element) TextContent() string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return e.n().textContent()
}

// SetTextContent replaces all children with a single text node.
func (e *Element) SetTextContent(s string) {
	n := e.n()
	n.doc.mutate(func() {
		removed := n.removeAllChildrenLocked()
		if s != "" {
			n.appendChild(&node{doc: n.doc, typ: TextNode, data: s})
		}
		n.doc.enqueueLocked(MutationRecord{Type: MutationChildList, Target: e, RemovedNodes: removed}, n)
	})
}

// AppendText appends a text node.
func (e *Element) AppendText(s string) {
	n := e.n()
	n.doc.mutate(func() {
		n.appendChild(&node{doc: n.doc, typ: TextNode, data: s})
		n.doc.enqueueLocked(MutationRecord{Type: MutationChildList, Target: e}, n)
	})
}

func (n *node) removeAllChildrenLocked() []*Element {
	var removed []*Element
	for c := n.firstChild; c != nil; {
		next := c.next
		c.unlink()
		if c.typ == ElementNode {
			removed = append(removed, c.element())
		}
		c = next
	}
	return removed
}

// InnerHTML serializes e's children.
func (e *Element) InnerHTML() string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	var b strings.Builder
	for c := e.firstChild; c != nil; c = c.next {
		b.WriteString(renderNode(c))
	}
	return b.String()
}

// SetInnerHTML parses s as a fragment and replaces e's children with it.
func (e *Element) SetInnerHTML(s string) error {
	ctx := &html.Node{Type: html.ElementNode, Data: e.data, DataAtom: atom.Lookup([]byte(e.data))}
	frag, err := html.ParseFragment(strings.NewReader(s), ctx)
	if err != nil {
		return err
	}
	n := e.n()
	n.doc.mutate(func() {
		removed := n.removeAllChildrenLocked()
		var added []*Element
		for _, h := range frag {
			c := fromHTML(n.doc, h)
			if c == nil {
				continue
			}
			n.appendChild(c)
			if c.typ == ElementNode {
				added = append(added, c.element())
			}
		}
		n.doc.enqueueLocked(MutationRecord{Type: MutationChildList, Target: e, AddedNodes: added, RemovedNodes: removed}, n)
	})
	return nil
}

// OuterHTML serializes e including its own tag.
func (e *Element) OuterHTML() string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return renderNode(e.n())
}

// Parent returns the parent element, or nil.
func (e *Element) Parent() *Element {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return e.parent.element()
}

// Children returns the element children.
func (e *Element) Children() []*Element {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	var out []*Element
	for c := e.firstChild; c != nil; c = c.next {
		if c.typ == ElementNode {
			out = append(out, c.element())
		}
	}
	return out
}

// Subtree returns e followed by all of its element descendants in tree order.
func (e *Element) Subtree() []*Element {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return e.n().elementsUnder()
}

// IsConnected reports whether e is attached to its document.
func (e *Element) IsConnected() bool {
	return e.doc.Contains(e)
}

// Contains reports whether other is e or a descendant of e.
func (e *Element) Contains(other *Element) bool {
	if other == nil {
		return false
	}
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return e.n().isInclusiveAncestorOf(other.n())
}

// AppendChild appends child, moving it if it already has a parent.
func (e *Element) AppendChild(child *Element) error {
	return e.InsertBefore(child, nil)
}

// InsertBefore inserts child before ref. A nil ref appends.
func (e *Element) InsertBefore(child, ref *Element) error {
	if child == nil {
		return ErrHierarchy
	}
	p, c := e.n(), child.n()
	if c.doc != p.doc {
		return ErrWrongDocument
	}
	var err error
	p.doc.mutate(func() {
		if c.isInclusiveAncestorOf(p) {
			err = ErrHierarchy
			return
		}
		var refNode *node
		if ref != nil {
			refNode = ref.n()
			if refNode.parent != p {
				err = ErrNotFound
				return
			}
			if refNode == c {
				refNode = c.next
			}
		}
		if old := c.parent; old != nil {
			c.unlink()
			p.doc.enqueueLocked(MutationRecord{Type: MutationChildList, Target: old.element(), RemovedNodes: []*Element{child}}, old)
		}
		p.insertBefore(c, refNode)
		p.doc.enqueueLocked(MutationRecord{Type: MutationChildList, Target: e, AddedNodes: []*Element{child}}, p)
	})
	return err
}

// Append appends elements and strings (as text nodes).
func (e *Element) Append(items ...any) error {
	for _, it := range items {
		switch v := it.(type) {
		case *Element:
			if err := e.AppendChild(v); err != nil {
				return err
			}
		case string:
			e.AppendText(v)
		default:
			e.AppendText(fmt.Sprint(v))
		}
	}
	return nil
}

// RemoveChild detaches child from e.
func (e *Element) RemoveChild(child *Element) error {
	if child == nil {
		return ErrNotFound
	}
	p, c := e.n(), child.n()
	var err error
	p.doc.mutate(func() {
		if c.parent != p {
			err = ErrNotFound
			return
		}
		c.unlink()
		p.doc.enqueueLocked(MutationRecord{Type: MutationChildList, Target: e, RemovedNodes: []*Element{child}}, p)
	})
	return err
}

// Remove detaches e from its parent, if any.
func (e *Element) Remove() {
	n := e.n()
	n.doc.mutate(func() {
		parent := n.parent
		if parent == nil {
			return
		}
		n.unlink()
		n.doc.enqueueLocked(MutationRecord{Type: MutationChildList, Target: parent.element(), RemovedNodes: []*Element{e}}, parent)
	})
}

// ReplaceChildren replaces all children of e with children.
func (e *Element) ReplaceChildren(children ...*Element) error {
	p := e.n()
	for _, ch := range children {
		if ch == nil || ch.n().doc != p.doc {
			return ErrWrongDocument
		}
	}
	var err error
	p.doc.mutate(func() {
		for _, ch := range children {
			if ch.n().isInclusiveAncestorOf(p) {
				err = ErrHierarchy
				return
			}
		}
		removed := p.removeAllChildrenLocked()
		for _, ch := range children {
			c := ch.n()
			if old := c.parent; old != nil {
				c.unlink()
				p.doc.enqueueLocked(MutationRecord{Type: MutationChildList, Target: old.element(), RemovedNodes: []*Element{ch}}, old)
			}
			p.appendChild(c)
		}
		p.doc.enqueueLocked(MutationRecord{Type: MutationChildList, Target: e, AddedNodes: children, RemovedNodes: removed}, p)
	})
	return err
}

// CloneNode returns a detached copy of e.
func (e *Element) CloneNode(deep bool) *Element {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return e.n().clone(e.doc, deep).element()
}

// Matches reports whether e matches sel.
func (e *Element) Matches(sel string) (bool, error) {
	s, err := compileSelector(sel)
	if err != nil {
		return false, err
	}
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return e.doc.matchesLocked(e.n(), s), nil
}

// Closest returns the nearest inclusive ancestor matching sel.
func (e *Element) Closest(sel string) (*Element, error) {
	s, err := compileSelector(sel)
	if err != nil {
		return nil, err
	}
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	for n := e.n(); n != nil && n.typ == ElementNode; n = n.parent {
		if e.doc.matchesLocked(n, s) {
			return n.element(), nil
		}
	}
	return nil, nil
}

// QuerySelector returns the first descendant matching sel.
func (e *Element) QuerySelector(sel string) (*Element, error) {
	s, err := compileSelector(sel)
	if err != nil {
		return nil, err
	}
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	found := e.doc.selectLocked(e.n(), s, true)
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}

// QuerySelectorAll returns all descendants matching sel.
func (e *Element) QuerySelectorAll(sel string) (*NodeList, error) {
	s, err := compileSelector(sel)
	if err != nil {
		return nil, err
	}
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return &NodeList{items: e.doc.selectLocked(e.n(), s, false)}, nil
}

// GetElementsByTagName returns a live collection of descendants.
func (e *Element) GetElementsByTagName(tag string) *HTMLCollection {
	tag = strings.ToLower(tag)
	return newHTMLCollection(e.doc, e.n(), func(n *node) bool {
		return tag == "*" || n.data == tag
	})
}

// Focus makes e the active element and dispatches a focus event.
func (e *Element) Focus() {
	e.doc.mu.Lock()
	e.doc.activeElement = e.n()
	e.doc.mu.Unlock()
	e.DispatchEvent(NewEvent("focus", false))
}

// Blur clears focus from e and dispatches a blur event.
func (e *Element) Blur() {
	e.doc.mu.Lock()
	was := e.doc.activeElement == e.n()
	if was {
		e.doc.activeElement = nil
	}
	e.doc.mu.Unlock()
	if was {
		e.DispatchEvent(NewEvent("blur", false))
	}
}

// Click dispatches a bubbling click event unless e is disabled.
func (e *Element) Click() {
	if e.HasAttribute("disabled") {
		return
	}
	e.DispatchEvent(NewEvent("click", true))
}

// ComputedStyle resolves display and visibility through the ancestor chain
// and returns the declared value for anything else.
func (e *Element) ComputedStyle(prop string) string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	switch prop {
	case "display":
		for n := e.n(); n != nil && n.typ == ElementNode; n = n.parent {
			if _, hidden := n.attr("hidden"); hidden {
				return "none"
			}
			if v := declaredStyle(n, "display"); v == "none" {
				return "none"
			}
		}
		if v := declaredStyle(e.n(), "display"); v != "" {
			return v
		}
		return "block"
	case "visibility":
		for n := e.n(); n != nil && n.typ == ElementNode; n = n.parent {
			if v := declaredStyle(n, "visibility"); v != "" {
				return v
			}
		}
		return "visible"
	default:
		return declaredStyle(e.n(), cssName(prop))
	}
}

// IsVisible reports whether e is connected and rendered.
func (e *Element) IsVisible() bool {
	if !e.IsConnected() {
		return false
	}
	if e.ComputedStyle("display") == "none" {
		return false
	}
	v := e.ComputedStyle("visibility")
	return v != "hidden" && v != "collapse"
}

// Expando returns the value stored in e's private slot for key.
func (e *Element) Expando(key any) any {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return e.expando[key]
}

// SetExpando stores v in e's private slot for key. Expando slots are not
// attributes and never produce mutation records.
func (e *Element) SetExpando(key, v any) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if e.expando == nil {
		e.expando = make(map[any]any)
	}
	e.expando[key] = v
}

// DeleteExpando clears the slot for key.
func (e *Element) DeleteExpando(key any) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	delete(e.expando, key)
}
