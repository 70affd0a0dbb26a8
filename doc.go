// Package domkit is a caching query layer over a live document.
//
// A Kit bundles three lookup helpers and a reactive runtime for one
// document:
//
//   - Elements memoizes id lookups.
//   - Collections memoizes live class, tag and name collections.
//   - Selector memoizes CSS selector lookups.
//   - Reactive binds element content and properties to reactive state.
//
// Cached results are served while they are still valid and invalidated
// from debounced mutation batches, so repeated lookups of the same key do
// not touch the document. Results come back enhanced: elements accept
// bulk updates and collections carry functional and bulk helpers.
//
//	doc, _ := dom.ParseString(page)
//	kit := domkit.New(doc, domkit.Config{})
//	defer kit.Close()
//
//	kit.Get("status").Update(enhance.Updates{"textContent": "ready"})
//	kit.QueryAll(".field").AddClass("checked")
//
//	state := kit.State(map[string]any{"count": 0})
//	kit.Bind("#count", func() any { return state.Get("count") })
//	state.Set("count", 1)
package domkit
