// Package query provides Engine, the memoizing lookup cache shared by the
// element, collection and selector helpers.
//
// An Engine is configured by a Strategy: the raw query, a validity check
// applied on every read, a predicate mapping mutation batches to affected
// keys, and an optional wrapper applied to fresh results.
//
//	e := query.New(doc, query.Strategy[string, *dom.Element, *dom.Element]{
//	    Name:     "elements",
//	    Query:    func(id string) (*dom.Element, error) { return doc.GetElementByID(id), nil },
//	    Valid:    doc.Contains,
//	    Affected: func(b watch.Batch, id string) bool { return b.HasID(id) },
//	})
//	defer e.Destroy()
//
// The cache is bounded by MaxCacheSize and evicts in insertion order. Reads
// never reorder entries. An idle sweeper drops entries whose elements were
// detached without the watcher noticing.
package query
