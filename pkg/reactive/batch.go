package reactive

// Batch groups state writes into a single notification phase. Bindings
// affected by writes inside fn re-run once, in creation order, when the
// outermost Batch on the current goroutine returns.
//
// Batches can be nested. Notifications only fire when the outermost batch
// completes.
//
// Example:
//
//	reactive.Batch(func() {
//	    state.Set("first", "Ada")
//	    state.Set("last", "Lovelace")
//	})
//	// a binding reading both keys runs once
func Batch(fn func()) {
	ctx, gid := tracking()
	ctx.batchDepth++

	defer func() {
		ctx.batchDepth--
		if ctx.batchDepth == 0 {
			processPending(ctx)
		}
		release(ctx, gid)
	}()

	fn()
}

// maxPasses bounds the re-runs of bindings that keep writing state they
// depend on.
const maxPasses = 100

// processPending deduplicates and runs the bindings queued by a batch.
// Bindings queued while they run are processed in a further pass.
func processPending(ctx *trackingContext) {
	for pass := 0; len(ctx.pending) > 0; pass++ {
		queued := ctx.pending
		if pass == maxPasses {
			ctx.pending = nil
			queued[0].rt.log().Error("reactive: binding cycle did not settle",
				"passes", maxPasses, "pending", len(queued))
			return
		}
		ctx.pending = nil

		seen := make(map[*Binding]struct{}, len(queued))
		for _, b := range queued {
			seen[b] = struct{}{}
		}
		for _, b := range sortBindings(seen) {
			b.run()
		}
	}
}
