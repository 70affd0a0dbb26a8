package dom

import (
	"fmt"
	"strings"
	"unicode"
)

// Dataset is a DOMStringMap view over data-* attributes. Keys are camelCase.
type Dataset struct {
	el *Element
}

// dataAttrName converts a camelCase dataset key to its data-* attribute name.
func dataAttrName(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: empty dataset key", ErrSyntax)
	}
	for i := 0; i+1 < len(key); i++ {
		if key[i] == '-' && key[i+1] >= 'a' && key[i+1] <= 'z' {
			return "", fmt.Errorf("%w: dataset key %q", ErrSyntax, key)
		}
	}
	name := "data-" + cssName(key)
	if !ValidAttributeName(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidCharacter, key)
	}
	return name, nil
}

// datasetKey converts data-foo-bar to fooBar.
func datasetKey(attr string) string {
	rest := strings.TrimPrefix(attr, "data-")
	var b strings.Builder
	upper := false
	for _, r := range rest {
		if r == '-' {
			upper = true
			continue
		}
		if upper {
			b.WriteRune(unicode.ToUpper(r))
			upper = false
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Get returns the value for key and whether it is set.
func (d *Dataset) Get(key string) (string, bool) {
	name, err := dataAttrName(key)
	if err != nil {
		return "", false
	}
	return d.el.LookupAttribute(name)
}

// Set stores value under key.
func (d *Dataset) Set(key, value string) error {
	name, err := dataAttrName(key)
	if err != nil {
		return err
	}
	if cur, ok := d.el.LookupAttribute(name); ok && cur == value {
		return nil
	}
	return d.el.SetAttribute(name, value)
}

// Delete removes key.
func (d *Dataset) Delete(key string) {
	name, err := dataAttrName(key)
	if err != nil {
		return
	}
	d.el.RemoveAttribute(name)
}

// All returns every data-* entry keyed by camelCase name.
func (d *Dataset) All() map[string]string {
	out := make(map[string]string)
	for k, v := range d.el.Attributes() {
		if strings.HasPrefix(k, "data-") {
			out[datasetKey(k)] = v
		}
	}
	return out
}
