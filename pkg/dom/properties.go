package dom

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrReadOnly is returned when assigning a read-only property.
var ErrReadOnly = errors.New("dom: property is read-only")

// Property describes a reflected element property.
type Property struct {
	Name string
	Get  func(*Element) any
	Set  func(*Element, any) error
}

// Writable reports whether the property accepts assignment.
func (p Property) Writable() bool { return p.Set != nil }

// Assign sets the property, failing with ErrReadOnly when it has no setter.
func (p Property) Assign(e *Element, v any) error {
	if p.Set == nil {
		return fmt.Errorf("%w: %s", ErrReadOnly, p.Name)
	}
	return p.Set(e, v)
}

// Method is a callable element method. Arguments are positional.
type Method func(e *Element, args ...any) (any, error)

// ToString converts a property value to its string form.
func ToString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// ToBool converts a property value using JavaScript truthiness.
func ToBool(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case int:
		return x != 0
	case int64:
		return x != 0
	case float64:
		return x != 0
	default:
		return true
	}
}

func stringAttrProp(name, attr string) Property {
	return Property{
		Name: name,
		Get:  func(e *Element) any { return e.GetAttribute(attr) },
		Set:  func(e *Element, v any) error { return e.SetAttribute(attr, ToString(v)) },
	}
}

func boolAttrProp(name, attr string) Property {
	return Property{
		Name: name,
		Get:  func(e *Element) any { return e.HasAttribute(attr) },
		Set: func(e *Element, v any) error {
			_, err := e.ToggleAttribute(attr, ToBool(v))
			return err
		},
	}
}

func readOnlyProp(name string, get func(*Element) any) Property {
	return Property{Name: name, Get: get}
}

var properties = map[string]Property{
	"textContent": {
		Name: "textContent",
		Get:  func(e *Element) any { return e.TextContent() },
		Set: func(e *Element, v any) error {
			e.SetTextContent(ToString(v))
			return nil
		},
	},
	"innerText": {
		Name: "innerText",
		Get:  func(e *Element) any { return e.TextContent() },
		Set: func(e *Element, v any) error {
			e.SetTextContent(ToString(v))
			return nil
		},
	},
	"innerHTML": {
		Name: "innerHTML",
		Get:  func(e *Element) any { return e.InnerHTML() },
		Set:  func(e *Element, v any) error { return e.SetInnerHTML(ToString(v)) },
	},
	"tabIndex": {
		Name: "tabIndex",
		Get: func(e *Element) any {
			i, err := strconv.Atoi(e.GetAttribute("tabindex"))
			if err != nil {
				return -1
			}
			return i
		},
		Set: func(e *Element, v any) error {
			i, err := strconv.Atoi(ToString(v))
			if err != nil {
				return fmt.Errorf("dom: tabIndex: %w", err)
			}
			return e.SetAttribute("tabindex", strconv.Itoa(i))
		},
	},

	"id":          stringAttrProp("id", "id"),
	"className":   stringAttrProp("className", "class"),
	"title":       stringAttrProp("title", "title"),
	"lang":        stringAttrProp("lang", "lang"),
	"dir":         stringAttrProp("dir", "dir"),
	"href":        stringAttrProp("href", "href"),
	"src":         stringAttrProp("src", "src"),
	"alt":         stringAttrProp("alt", "alt"),
	"type":        stringAttrProp("type", "type"),
	"name":        stringAttrProp("name", "name"),
	"placeholder": stringAttrProp("placeholder", "placeholder"),
	"value":       stringAttrProp("value", "value"),
	"htmlFor":     stringAttrProp("htmlFor", "for"),

	"hidden":   boolAttrProp("hidden", "hidden"),
	"disabled": boolAttrProp("disabled", "disabled"),
	"checked":  boolAttrProp("checked", "checked"),
	"required": boolAttrProp("required", "required"),
	"readOnly": boolAttrProp("readOnly", "readonly"),
	"selected": boolAttrProp("selected", "selected"),
	"multiple": boolAttrProp("multiple", "multiple"),

	"tagName":     readOnlyProp("tagName", func(e *Element) any { return e.TagName() }),
	"localName":   readOnlyProp("localName", func(e *Element) any { return e.LocalName() }),
	"outerHTML":   readOnlyProp("outerHTML", func(e *Element) any { return e.OuterHTML() }),
	"isConnected": readOnlyProp("isConnected", func(e *Element) any { return e.IsConnected() }),
	"childElementCount": readOnlyProp("childElementCount", func(e *Element) any {
		return len(e.Children())
	}),
}

var methods = map[string]Method{
	"focus": func(e *Element, _ ...any) (any, error) { e.Focus(); return nil, nil },
	"blur":  func(e *Element, _ ...any) (any, error) { e.Blur(); return nil, nil },
	"click": func(e *Element, _ ...any) (any, error) { e.Click(); return nil, nil },
	"remove": func(e *Element, _ ...any) (any, error) {
		e.Remove()
		return nil, nil
	},
	"scrollIntoView": func(e *Element, _ ...any) (any, error) { return nil, nil },
	"append": func(e *Element, args ...any) (any, error) {
		return nil, e.Append(args...)
	},
	"replaceChildren": func(e *Element, args ...any) (any, error) {
		children := make([]*Element, 0, len(args))
		for _, a := range args {
			c, ok := a.(*Element)
			if !ok {
				return nil, fmt.Errorf("%w: replaceChildren expects elements, got %T", ErrHierarchy, a)
			}
			children = append(children, c)
		}
		return nil, e.ReplaceChildren(children...)
	},
	"toggleAttribute": func(e *Element, args ...any) (any, error) {
		if len(args) == 0 {
			return nil, fmt.Errorf("%w: toggleAttribute needs a name", ErrSyntax)
		}
		if len(args) > 1 {
			return e.ToggleAttribute(ToString(args[0]), ToBool(args[1]))
		}
		return e.ToggleAttribute(ToString(args[0]))
	},
	"dispatchEvent": func(e *Element, args ...any) (any, error) {
		if len(args) == 0 {
			return nil, fmt.Errorf("%w: dispatchEvent needs an event", ErrSyntax)
		}
		switch ev := args[0].(type) {
		case *Event:
			return e.DispatchEvent(ev), nil
		case string:
			return e.DispatchEvent(NewEvent(ev, true)), nil
		default:
			return nil, fmt.Errorf("%w: dispatchEvent expects *Event or string, got %T", ErrSyntax, ev)
		}
	},
}

// LookupProperty returns the reflected property with the given name.
func LookupProperty(name string) (Property, bool) {
	p, ok := properties[name]
	return p, ok
}

// LookupMethod returns the element method with the given name.
func LookupMethod(name string) (Method, bool) {
	m, ok := methods[name]
	return m, ok
}

// Get reads a reflected property, returning nil for unknown names.
func (e *Element) Get(name string) any {
	if p, ok := properties[name]; ok {
		return p.Get(e)
	}
	return nil
}
