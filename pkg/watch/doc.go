// Package watch turns mutation records of a live document into debounced
// invalidation batches.
//
// A Watcher observes the body subtree once the document has a body. Records
// delivered within the debounce window are folded into one Batch naming the
// ids, class names, tag names, name values and attributes that changed, and
// every subscriber receives it:
//
//	w := watch.New(doc, watch.WithDelay(16*time.Millisecond))
//	w.Start()
//	defer w.Stop()
//	unsubscribe := w.Subscribe(func(b watch.Batch) { ... })
//
// Invalidation is eventually consistent: a batch is dispatched only after the
// window has passed without new records, or when Flush is called.
package watch
