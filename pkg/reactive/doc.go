// Package reactive binds element content and properties to functions over
// reactive state.
//
// State is held in proxies over plain maps and slices. While a binding
// function runs, every key it reads through a proxy records the binding as a
// dependent; writing the key re-runs the dependents and applies their new
// values to the bound elements.
//
//	rt := reactive.New(reactive.WithResolver(resolve))
//	state := rt.State(map[string]any{"count": 0})
//	rt.Bind("#counter", func() any { return state.Get("count") })
//	state.Set("count", 1) // #counter now reads "1"
//
// Tracking is per goroutine. A binding that runs inside another binding
// attributes its reads to itself and restores the outer binding when it
// returns.
package reactive
