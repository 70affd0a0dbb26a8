// Package helpers provides the three lookup families built on the query
// engine: Elements (by id), Collections (by class name, tag name or name
// attribute) and Selector (by CSS selector).
//
// Each helper owns its own cache, watcher and sweeper. Lookups never fail:
// invalid input is logged and yields nil or an empty collection. Only the
// WaitFor family returns errors, E020 when the timeout elapses.
//
//	els := helpers.NewElements(doc)
//	defer els.Destroy()
//	if btn := els.Get("save"); btn != nil {
//	    btn.Update(enhance.Updates{"disabled": true})
//	}
package helpers
