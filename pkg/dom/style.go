package dom

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var propertyNamePattern = regexp.MustCompile(`^(--[A-Za-z0-9_-]+|-?[a-z][a-z0-9-]*)$`)

// Style is a CSSStyleDeclaration view over the style attribute.
type Style struct {
	el *Element
}

type declaration struct {
	name, value string
}

// cssName converts a camelCase property name to its hyphenated form.
// Custom properties (--x) pass through untouched.
func cssName(name string) string {
	if strings.HasPrefix(name, "--") {
		return name
	}
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func parseDeclarations(s string) []declaration {
	var out []declaration
	for _, part := range strings.Split(s, ";") {
		name, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if !strings.HasPrefix(name, "--") {
			name = strings.ToLower(name)
		}
		value = strings.TrimSpace(value)
		if name == "" {
			continue
		}
		replaced := false
		for i := range out {
			if out[i].name == name {
				out[i].value = value
				replaced = true
			}
		}
		if !replaced {
			out = append(out, declaration{name: name, value: value})
		}
	}
	return out
}

func serializeDeclarations(decls []declaration) string {
	parts := make([]string, 0, len(decls))
	for _, d := range decls {
		parts = append(parts, d.name+": "+d.value+";")
	}
	return strings.Join(parts, " ")
}

// declaredStyle reads a declared property from n. Caller holds the lock.
func declaredStyle(n *node, name string) string {
	v, _ := n.attr("style")
	for _, d := range parseDeclarations(v) {
		if d.name == name {
			return d.value
		}
	}
	return ""
}

func validateDeclaration(name, value string) error {
	if !propertyNamePattern.MatchString(name) {
		return fmt.Errorf("%w: invalid style property %q", ErrSyntax, name)
	}
	if strings.ContainsAny(value, ";{}") {
		return fmt.Errorf("%w: invalid value %q for style property %q", ErrSyntax, value, name)
	}
	return nil
}

// GetPropertyValue returns the declared value of a property. Both camelCase
// and hyphenated names are accepted.
func (s *Style) GetPropertyValue(name string) string {
	name = cssName(name)
	for _, d := range parseDeclarations(s.el.GetAttribute("style")) {
		if d.name == name {
			return d.value
		}
	}
	return ""
}

// SetProperty sets a property. An empty value removes it. Malformed names and
// values are rejected with ErrSyntax.
func (s *Style) SetProperty(name, value string) error {
	name = cssName(name)
	value = strings.TrimSpace(value)
	if err := validateDeclaration(name, value); err != nil {
		return err
	}
	decls := parseDeclarations(s.el.GetAttribute("style"))
	idx := -1
	for i, d := range decls {
		if d.name == name {
			idx = i
			break
		}
	}
	switch {
	case value == "" && idx < 0:
		return nil
	case value == "":
		decls = append(decls[:idx], decls[idx+1:]...)
	case idx >= 0:
		if decls[idx].value == value {
			return nil
		}
		decls[idx].value = value
	default:
		decls = append(decls, declaration{name: name, value: value})
	}
	if len(decls) == 0 {
		s.el.RemoveAttribute("style")
		return nil
	}
	return s.el.SetAttribute("style", serializeDeclarations(decls))
}

// RemoveProperty removes a property and returns its previous value.
func (s *Style) RemoveProperty(name string) string {
	old := s.GetPropertyValue(name)
	if old != "" {
		_ = s.SetProperty(name, "")
	}
	return old
}

// CSSText returns the serialized declarations.
func (s *Style) CSSText() string {
	return serializeDeclarations(parseDeclarations(s.el.GetAttribute("style")))
}

// SetCSSText replaces all declarations.
func (s *Style) SetCSSText(text string) error {
	decls := parseDeclarations(text)
	for _, d := range decls {
		if err := validateDeclaration(d.name, d.value); err != nil {
			return err
		}
	}
	if len(decls) == 0 {
		s.el.RemoveAttribute("style")
		return nil
	}
	return s.el.SetAttribute("style", serializeDeclarations(decls))
}

// Properties returns all declared properties keyed by hyphenated name.
func (s *Style) Properties() map[string]string {
	decls := parseDeclarations(s.el.GetAttribute("style"))
	out := make(map[string]string, len(decls))
	for _, d := range decls {
		out[d.name] = d.value
	}
	return out
}
