// Package enhance decorates raw elements and element lists returned by the
// lookup helpers.
//
// An enhanced Element adds Update, a declarative way to apply many changes
// at once:
//
//	el.Update(enhance.Updates{
//	    "style":       map[string]any{"color": "red"},
//	    "classList":   map[string]any{"add": "active", "remove": "idle"},
//	    "textContent": "Saved",
//	    "aria-busy":   "false",
//	})
//
// Keys are dispatched in this order: the pseudo-keys style, classList,
// dataset, setAttribute, removeAttribute, addEventListener and
// removeEventListener; element methods such as focus or append; writable
// properties such as textContent or hidden; anything else becomes an
// attribute. An entry that fails is logged and skipped. Update never panics.
//
// Feature layers hook into Update with middleware, consuming the keys they
// own and delegating the rest:
//
//	form.Use(func(next enhance.UpdateFunc) enhance.UpdateFunc { ... })
//
// A Collection wraps a live or static list with iteration, filtering and
// bulk helpers.
package enhance
