package reactive

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// trackingContext holds the reactive state of one goroutine.
type trackingContext struct {
	// stack lists the bindings executing on this goroutine, innermost last.
	// Reads are attributed to the top of the stack.
	stack []*Binding

	// batchDepth counts nested Batch calls. While positive, notifications
	// are queued instead of run.
	batchDepth int

	// pending accumulates bindings to re-run when the outermost batch ends.
	pending []*Binding
}

func (c *trackingContext) idle() bool {
	return len(c.stack) == 0 && c.batchDepth == 0 && len(c.pending) == 0
}

// trackingContexts stores per-goroutine tracking contexts.
var trackingContexts sync.Map

// goroutineID parses the current goroutine id from the runtime stack header
// "goroutine <id> [...]".
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] == ' ' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}

// tracking returns the context of the current goroutine and its id, creating
// the context when needed. Pair it with release.
func tracking() (*trackingContext, uint64) {
	gid := goroutineID()
	if ctx, ok := trackingContexts.Load(gid); ok {
		return ctx.(*trackingContext), gid
	}
	ctx := &trackingContext{}
	trackingContexts.Store(gid, ctx)
	return ctx, gid
}

// peekTracking returns the current goroutine's context without creating one.
func peekTracking() *trackingContext {
	if ctx, ok := trackingContexts.Load(goroutineID()); ok {
		return ctx.(*trackingContext)
	}
	return nil
}

// release drops the context once nothing is executing or batched, so
// finished goroutines do not leave entries behind.
func release(ctx *trackingContext, gid uint64) {
	if ctx.idle() {
		trackingContexts.Delete(gid)
	}
}

// currentBinding returns the innermost executing binding, or nil when reads
// are untracked.
func currentBinding() *Binding {
	ctx := peekTracking()
	if ctx == nil || len(ctx.stack) == 0 {
		return nil
	}
	return ctx.stack[len(ctx.stack)-1]
}

// push makes b the innermost binding and returns the function restoring the
// previous one.
func push(b *Binding) (pop func()) {
	ctx, gid := tracking()
	ctx.stack = append(ctx.stack, b)
	return func() {
		ctx.stack[len(ctx.stack)-1] = nil
		ctx.stack = ctx.stack[:len(ctx.stack)-1]
		release(ctx, gid)
	}
}

// Untracked runs fn without attributing its reads to the executing binding.
func Untracked(fn func()) {
	ctx, gid := tracking()
	saved := ctx.stack
	ctx.stack = nil
	defer func() {
		ctx.stack = saved
		release(ctx, gid)
	}()
	fn()
}

// execLock serializes binding runs of one runtime. The goroutine holding it
// may acquire it again, so a run can synchronously trigger other bindings.
type execLock struct {
	mu    sync.Mutex
	owner atomic.Uint64
	depth int
}

func (l *execLock) lock(gid uint64) {
	if l.owner.Load() == gid {
		l.depth++
		return
	}
	l.mu.Lock()
	l.owner.Store(gid)
	l.depth = 1
}

func (l *execLock) unlock() {
	l.depth--
	if l.depth == 0 {
		l.owner.Store(0)
		l.mu.Unlock()
	}
}
