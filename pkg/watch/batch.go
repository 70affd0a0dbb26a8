package watch

import (
	"fmt"
	"slices"
	"strings"

	"github.com/vango-dev/domkit/pkg/dom"
)

// Batch is the folded summary of one debounced burst of mutation records.
type Batch struct {
	// Records is the number of records folded into the batch.
	Records int

	// Skipped counts records that failed to fold.
	Skipped int

	// Structural is set when any childList record was seen.
	Structural bool

	IDs        map[string]struct{}
	Classes    map[string]struct{}
	Tags       map[string]struct{}
	Names      map[string]struct{}
	Attributes map[string]struct{}

	// Added and Removed list every element of the inserted and removed
	// subtrees, roots first.
	Added   []*dom.Element
	Removed []*dom.Element
}

func newBatch() Batch {
	return Batch{
		IDs:        make(map[string]struct{}),
		Classes:    make(map[string]struct{}),
		Tags:       make(map[string]struct{}),
		Names:      make(map[string]struct{}),
		Attributes: make(map[string]struct{}),
	}
}

// Empty reports whether the batch carries no change.
func (b Batch) Empty() bool {
	return b.Records == 0
}

// HasID reports whether elements with the id were added, removed or renamed.
func (b Batch) HasID(id string) bool { return has(b.IDs, id) }

// HasClass reports whether the class name was affected.
func (b Batch) HasClass(name string) bool { return has(b.Classes, name) }

// HasTag reports whether elements with the tag were added or removed.
func (b Batch) HasTag(tag string) bool { return has(b.Tags, strings.ToLower(tag)) || (tag == "*" && len(b.Tags) > 0) }

// HasName reports whether the name attribute value was affected.
func (b Batch) HasName(name string) bool { return has(b.Names, name) }

// HasAttribute reports whether the attribute was mutated.
func (b Batch) HasAttribute(name string) bool { return has(b.Attributes, name) }

// Tokens returns every id, class and attribute name touched by attribute
// records, for best-effort selector narrowing.
func (b Batch) Tokens() []string {
	out := make([]string, 0, len(b.IDs)+len(b.Classes)+len(b.Attributes))
	for _, m := range []map[string]struct{}{b.IDs, b.Classes, b.Attributes} {
		for k := range m {
			out = append(out, k)
		}
	}
	return out
}

// String summarizes the batch for logs.
func (b Batch) String() string {
	return fmt.Sprintf("batch{records=%d structural=%t ids=%d classes=%d tags=%d names=%d attrs=%d added=%d removed=%d}",
		b.Records, b.Structural, len(b.IDs), len(b.Classes), len(b.Tags), len(b.Names), len(b.Attributes), len(b.Added), len(b.Removed))
}

func has(m map[string]struct{}, k string) bool {
	if k == "" {
		return false
	}
	_, ok := m[k]
	return ok
}

func addTokens(m map[string]struct{}, s string) {
	for _, t := range strings.Fields(s) {
		m[t] = struct{}{}
	}
}

// addChangedTokens adds the tokens present in exactly one of before and after.
func addChangedTokens(m map[string]struct{}, before, after string) {
	old := strings.Fields(before)
	cur := strings.Fields(after)
	for _, t := range old {
		if !slices.Contains(cur, t) {
			m[t] = struct{}{}
		}
	}
	for _, t := range cur {
		if !slices.Contains(old, t) {
			m[t] = struct{}{}
		}
	}
}

func add(m map[string]struct{}, s string) {
	if s != "" {
		m[s] = struct{}{}
	}
}

// noteElement records the lookup criteria an element can satisfy.
func (b *Batch) noteElement(el *dom.Element) {
	attrs := el.Attributes()
	add(b.IDs, attrs["id"])
	addTokens(b.Classes, attrs["class"])
	add(b.Names, attrs["name"])
	add(b.Tags, el.LocalName())
}

// fold adds one record to the batch.
func (b *Batch) fold(rec dom.MutationRecord) {
	switch rec.Type {
	case dom.MutationChildList:
		b.Structural = true
		for _, root := range rec.AddedNodes {
			for _, el := range root.Subtree() {
				b.noteElement(el)
				b.Added = append(b.Added, el)
			}
		}
		for _, root := range rec.RemovedNodes {
			for _, el := range root.Subtree() {
				b.noteElement(el)
				b.Removed = append(b.Removed, el)
			}
		}
	case dom.MutationAttributes:
		if rec.Target == nil {
			panic("attribute record without target")
		}
		add(b.Attributes, rec.AttributeName)
		current := rec.Target.GetAttribute(rec.AttributeName)
		switch rec.AttributeName {
		case "id":
			add(b.IDs, rec.OldValue)
			add(b.IDs, current)
		case "class":
			addChangedTokens(b.Classes, rec.OldValue, current)
		case "name":
			add(b.Names, rec.OldValue)
			add(b.Names, current)
		}
	default:
		panic(fmt.Sprintf("unknown mutation type %q", rec.Type))
	}
	b.Records++
}
