package enhance

import (
	"fmt"
	"maps"
	"slices"

	"github.com/vango-dev/domkit/internal/errors"
	"github.com/vango-dev/domkit/pkg/dom"
)

// Updates maps update keys to values. Keys are applied in sorted order.
type Updates map[string]any

// UpdateFunc applies updates to an element.
type UpdateFunc func(el *Element, updates Updates) UpdateReport

// UpdateMiddleware wraps the update pipeline. A middleware may consume keys
// it understands and pass the rest to next.
type UpdateMiddleware func(next UpdateFunc) UpdateFunc

// UpdateReport lists the keys that were applied and the ones that failed.
type UpdateReport struct {
	Applied []string
	Errors  map[string]error
}

// OK reports whether every entry applied.
func (r UpdateReport) OK() bool { return len(r.Errors) == 0 }

// FailedKeys returns the failed keys in sorted order.
func (r UpdateReport) FailedKeys() []string {
	return slices.Sorted(maps.Keys(r.Errors))
}

// Merge folds other into r.
func (r UpdateReport) Merge(other UpdateReport) UpdateReport {
	r.Applied = append(r.Applied, other.Applied...)
	for k, err := range other.Errors {
		if r.Errors == nil {
			r.Errors = make(map[string]error)
		}
		r.Errors[k] = err
	}
	return r
}

func applyAll(el *Element, updates Updates) UpdateReport {
	var report UpdateReport
	for _, key := range slices.Sorted(maps.Keys(updates)) {
		if err := Apply(el.raw, key, updates[key]); err != nil {
			if report.Errors == nil {
				report.Errors = make(map[string]error)
			}
			report.Errors[key] = err
			continue
		}
		report.Applied = append(report.Applied, key)
	}
	return report
}

// Apply applies one update entry to el. Recognized pseudo-keys are handled
// first, then element methods, then writable properties; any other key is
// set as an attribute. Panics are recovered and returned as E003 errors.
func Apply(el *dom.Element, key string, value any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.FromPanic(r, "E003").WithKey(key)
		}
	}()
	if el == nil {
		return errors.New("E003").WithKey(key).WithDetail("nil element")
	}
	if err := apply(el, key, value); err != nil {
		return errors.New("E003").WithKey(key).Wrap(err)
	}
	return nil
}

func apply(el *dom.Element, key string, value any) error {
	switch key {
	case "style":
		return applyStyle(el, value)
	case "classList":
		return applyClassList(el, value)
	case "dataset":
		return applyDataset(el, value)
	case "setAttribute":
		return applySetAttribute(el, value)
	case "removeAttribute":
		for _, name := range stringList(value) {
			el.RemoveAttribute(name)
		}
		return nil
	case "addEventListener":
		return applyListeners(el, value, true)
	case "removeEventListener":
		return applyListeners(el, value, false)
	}
	if m, ok := dom.LookupMethod(key); ok {
		_, err := m(el, spread(value)...)
		return err
	}
	if p, ok := dom.LookupProperty(key); ok && p.Writable() {
		return p.Assign(el, value)
	}
	return el.SetAttribute(key, dom.ToString(value))
}

func spread(value any) []any {
	switch v := value.(type) {
	case nil:
		return nil
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	default:
		return []any{v}
	}
}

// stringList accepts a string, []string or []any of strings.
func stringList(value any) []string {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, x := range v {
			out = append(out, dom.ToString(x))
		}
		return out
	default:
		return []string{dom.ToString(v)}
	}
}

// stringMap accepts map[string]any or map[string]string. A nil value in a
// map[string]any is reported as absent in the second map.
func stringMap(value any) (map[string]string, map[string]bool, error) {
	switch v := value.(type) {
	case map[string]string:
		return v, nil, nil
	case map[string]any:
		out := make(map[string]string, len(v))
		unset := make(map[string]bool)
		for k, x := range v {
			if x == nil {
				unset[k] = true
				continue
			}
			out[k] = dom.ToString(x)
		}
		return out, unset, nil
	case Updates:
		return stringMap(map[string]any(v))
	default:
		return nil, nil, fmt.Errorf("expected a map, got %T", value)
	}
}

func applyStyle(el *dom.Element, value any) error {
	style := el.Style()
	if css, ok := value.(string); ok {
		return style.SetCSSText(css)
	}
	set, unset, err := stringMap(value)
	if err != nil {
		return err
	}
	var errs []error
	for _, name := range slices.Sorted(maps.Keys(unset)) {
		style.RemoveProperty(name)
	}
	for _, name := range slices.Sorted(maps.Keys(set)) {
		if style.GetPropertyValue(name) == set[name] {
			continue
		}
		if err := style.SetProperty(name, set[name]); err != nil {
			errs = append(errs, fmt.Errorf("style %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func applyClassList(el *dom.Element, value any) error {
	list := el.ClassList()
	switch v := value.(type) {
	case string, []string, []any:
		return list.Add(stringList(v)...)
	}
	ops, ok := value.(map[string]any)
	if !ok {
		if u, isUpdates := value.(Updates); isUpdates {
			ops = u
		} else {
			return fmt.Errorf("classList expects a map of operations, got %T", value)
		}
	}
	var errs []error
	for _, op := range []string{"remove", "add", "toggle", "replace"} {
		arg, present := ops[op]
		if !present {
			continue
		}
		var err error
		switch op {
		case "add":
			err = list.Add(stringList(arg)...)
		case "remove":
			err = list.Remove(stringList(arg)...)
		case "toggle":
			for _, tok := range stringList(arg) {
				if _, terr := list.Toggle(tok); terr != nil {
					err = terr
				}
			}
		case "replace":
			pair := stringList(arg)
			if len(pair) != 2 {
				err = fmt.Errorf("classList replace expects [old, new], got %d values", len(pair))
				break
			}
			_, err = list.Replace(pair[0], pair[1])
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("classList %s: %w", op, err))
		}
	}
	for op := range ops {
		if !slices.Contains([]string{"remove", "add", "toggle", "replace"}, op) {
			errs = append(errs, fmt.Errorf("classList: unknown operation %q", op))
		}
	}
	return errors.Join(errs...)
}

func applyDataset(el *dom.Element, value any) error {
	set, unset, err := stringMap(value)
	if err != nil {
		return err
	}
	ds := el.Dataset()
	var errs []error
	for _, k := range slices.Sorted(maps.Keys(unset)) {
		ds.Delete(k)
	}
	for _, k := range slices.Sorted(maps.Keys(set)) {
		if cur, ok := ds.Get(k); ok && cur == set[k] {
			continue
		}
		if err := ds.Set(k, set[k]); err != nil {
			errs = append(errs, fmt.Errorf("dataset %s: %w", k, err))
		}
	}
	return errors.Join(errs...)
}

func applySetAttribute(el *dom.Element, value any) error {
	if pair, ok := value.([]any); ok && len(pair) == 2 {
		return el.SetAttribute(dom.ToString(pair[0]), dom.ToString(pair[1]))
	}
	if pair, ok := value.([]string); ok && len(pair) == 2 {
		return el.SetAttribute(pair[0], pair[1])
	}
	set, unset, err := stringMap(value)
	if err != nil {
		return err
	}
	var errs []error
	for _, name := range slices.Sorted(maps.Keys(unset)) {
		el.RemoveAttribute(name)
	}
	for _, name := range slices.Sorted(maps.Keys(set)) {
		if cur, ok := el.LookupAttribute(name); ok && cur == set[name] {
			continue
		}
		if err := el.SetAttribute(name, set[name]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// applyListeners accepts a map from event type to a *dom.EventListener, a
// func(*dom.Event) (add only) or a slice of listeners.
func applyListeners(el *dom.Element, value any, add bool) error {
	var byType map[string]any
	switch v := value.(type) {
	case map[string]any:
		byType = v
	case Updates:
		byType = v
	case map[string]*dom.EventListener:
		byType = make(map[string]any, len(v))
		for k, l := range v {
			byType[k] = l
		}
	default:
		return fmt.Errorf("expected a map of event listeners, got %T", value)
	}
	var errs []error
	for _, typ := range slices.Sorted(maps.Keys(byType)) {
		listeners, err := toListeners(byType[typ], add)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", typ, err))
			continue
		}
		for _, l := range listeners {
			if add {
				el.AddEventListener(typ, l)
			} else {
				el.RemoveEventListener(typ, l)
			}
		}
	}
	return errors.Join(errs...)
}

func toListeners(v any, add bool) ([]*dom.EventListener, error) {
	switch x := v.(type) {
	case *dom.EventListener:
		return []*dom.EventListener{x}, nil
	case []*dom.EventListener:
		return x, nil
	case func(*dom.Event):
		if !add {
			return nil, fmt.Errorf("functions cannot be removed, pass the *dom.EventListener")
		}
		return []*dom.EventListener{dom.Listen(x)}, nil
	case []any:
		var out []*dom.EventListener
		for _, item := range x {
			ls, err := toListeners(item, add)
			if err != nil {
				return nil, err
			}
			out = append(out, ls...)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported listener %T", v)
	}
}
