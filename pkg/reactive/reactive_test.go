package reactive

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vango-dev/domkit/internal/config"
	"github.com/vango-dev/domkit/internal/errors"
	"github.com/vango-dev/domkit/pkg/dom"
	"github.com/vango-dev/domkit/pkg/watch"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const page = `<!DOCTYPE html><html><body>
<div id="app">
  <span id="count">?</span>
  <span id="name"></span>
  <ul id="list"><li>x</li></ul>
  <button id="save" class="btn">Save</button>
</div>
</body></html>`

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func resolverFor(doc *dom.Document) Resolver {
	return func(target string) (*dom.Element, error) {
		if id, ok := strings.CutPrefix(target, "#"); ok && !strings.ContainsAny(id, " .[:>") {
			return doc.GetElementByID(id), nil
		}
		return doc.QuerySelector(target)
	}
}

func setup(t *testing.T, opts ...Option) (*dom.Document, *Runtime, *syncBuffer) {
	t.Helper()
	doc, err := dom.ParseString(page)
	require.NoError(t, err)
	logs := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	rt := New(append([]Option{
		WithResolver(resolverFor(doc)),
		WithLogger(logger),
		WithOptions(config.New(config.WithLogging(true))),
	}, opts...)...)
	t.Cleanup(rt.Close)
	return doc, rt, logs
}

func TestBindUpdatesTextSynchronously(t *testing.T) {
	doc, rt, _ := setup(t)
	state := rt.State(map[string]any{"count": 0})

	b, err := rt.Bind("#count", func() any { return state.Get("count") })
	require.NoError(t, err)
	count := doc.GetElementByID("count")
	assert.Equal(t, "0", count.TextContent())
	assert.Equal(t, StateActive, b.State())

	state.Set("count", 1)
	assert.Equal(t, "1", count.TextContent())

	runs := rt.Stats().Runs
	state.Set("count", 1)
	assert.Equal(t, "1", count.TextContent())
	assert.Equal(t, runs, rt.Stats().Runs)
	assert.Equal(t, 1, b.Dependencies())
	assert.Nil(t, peekTracking(), "tracking context is released after the run")
}

func TestSetSameValueIsNoop(t *testing.T) {
	_, rt, _ := setup(t)
	tags := []any{"a"}
	cfg := map[string]any{"dark": true}
	state := rt.State(map[string]any{"n": 1, "tags": tags, "cfg": cfg})

	calls := 0
	_, err := rt.Bind("#name", func() any {
		calls++
		state.Get("n")
		state.Get("tags")
		state.Get("cfg")
		return "fixed"
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	state.Set("n", 1)
	state.Set("tags", tags)
	state.Set("cfg", cfg)
	state.Set("cfg", state.Object("cfg"))
	assert.Equal(t, 1, calls)

	state.Set("cfg", map[string]any{"dark": true})
	assert.Equal(t, 2, calls, "an equal but distinct map is a new value")
	assert.Equal(t, uint64(1), rt.Stats().Skips, "the unchanged result is not re-applied")
}

func TestNestedProxiesAreStable(t *testing.T) {
	_, rt, _ := setup(t)
	raw := map[string]any{
		"user":  map[string]any{"name": "ada"},
		"items": []any{map[string]any{"id": 1}, []any{1, 2}},
	}
	state := rt.State(raw)

	assert.Same(t, state, rt.State(raw))
	assert.Same(t, state.Object("user"), state.Object("user"))
	items := state.Array("items")
	require.NotNil(t, items)
	assert.Same(t, items, state.Array("items"))
	assert.Same(t, items.Get(0), items.Get(0))
	assert.Same(t, items.Get(1), items.Get(1))

	first := items.Get(0)
	items.Push("tail")
	assert.Same(t, first, items.Get(0), "object identity survives array mutation")
	assert.Len(t, raw["items"], 3, "array writes reach the underlying map")

	state.Object("user").Set("name", "grace")
	assert.Equal(t, "grace", raw["user"].(map[string]any)["name"])
}

func TestArrayMutationsNotifyAllDependents(t *testing.T) {
	doc, rt, _ := setup(t)
	state := rt.State(map[string]any{"items": []any{"a", "b"}})
	items := state.Array("items")

	lenCalls, headCalls := 0, 0
	_, err := rt.BindElement(doc.GetElementByID("count"), "", func() any {
		lenCalls++
		return items.Len()
	})
	require.NoError(t, err)
	_, err = rt.BindElement(doc.GetElementByID("name"), "", func() any {
		headCalls++
		return items.Get(0)
	})
	require.NoError(t, err)

	assert.Equal(t, 3, items.Push("c"))
	assert.Equal(t, "3", doc.GetElementByID("count").TextContent())
	assert.Equal(t, 2, lenCalls)
	assert.Equal(t, 2, headCalls)

	assert.Equal(t, "a", items.Shift())
	assert.Equal(t, "b", doc.GetElementByID("name").TextContent())

	items.Unshift("z")
	items.Reverse()
	assert.Equal(t, []any{"c", "b", "z"}, items.Snapshot())
	items.Sort(func(x, y any) int { return strings.Compare(x.(string), y.(string)) })
	assert.Equal(t, []any{"b", "c", "z"}, items.Snapshot())
	assert.Equal(t, []any{"c"}, items.Splice(-2, 1, "x", "y"))
	assert.Equal(t, []any{"b", "x", "y", "z"}, items.Snapshot())
	assert.Equal(t, "z", items.Pop())
	assert.Equal(t, "3", doc.GetElementByID("count").TextContent())

	headCalls = 0
	items.Set(1, "q")
	assert.Zero(t, headCalls, "index writes only notify that index")
	items.Set(0, "first")
	assert.Equal(t, 1, headCalls)
	assert.Equal(t, "first", doc.GetElementByID("name").TextContent())
}

func TestBatchRunsEachBindingOnce(t *testing.T) {
	doc, rt, _ := setup(t)
	state := rt.State(map[string]any{"first": "Ada", "last": "Lovelace"})

	calls := 0
	_, err := rt.Bind("#name", func() any {
		calls++
		return state.Get("first").(string) + " " + state.Get("last").(string)
	})
	require.NoError(t, err)

	Batch(func() {
		state.Set("first", "Grace")
		Batch(func() { state.Set("last", "Hopper") })
		assert.Equal(t, 1, calls, "nested batches defer until the outermost ends")
	})
	assert.Equal(t, 2, calls)
	assert.Equal(t, "Grace Hopper", doc.GetElementByID("name").TextContent())
	assert.Nil(t, peekTracking())
}

func TestNestedBindingRestoresOuter(t *testing.T) {
	doc, rt, _ := setup(t)
	state := rt.State(map[string]any{"outer": "o", "inner": "i"})

	var once sync.Once
	outerCalls, innerCalls := 0, 0
	_, err := rt.Bind("#count", func() any {
		outerCalls++
		once.Do(func() {
			_, err := rt.Bind("#name", func() any {
				innerCalls++
				return state.Get("inner")
			})
			assert.NoError(t, err)
		})
		return state.Get("outer")
	})
	require.NoError(t, err)
	require.Equal(t, 1, outerCalls)
	require.Equal(t, 1, innerCalls)

	state.Set("inner", "i2")
	assert.Equal(t, 1, outerCalls, "the inner read is not attributed to the outer binding")
	assert.Equal(t, 2, innerCalls)
	assert.Equal(t, "i2", doc.GetElementByID("name").TextContent())

	state.Set("outer", "o2")
	assert.Equal(t, 2, outerCalls)
	assert.Equal(t, "o2", doc.GetElementByID("count").TextContent())
}

func TestRerunReplacesDependencies(t *testing.T) {
	_, rt, _ := setup(t)
	state := rt.State(map[string]any{"useA": true, "a": 1, "b": 2})

	calls := 0
	_, err := rt.Bind("#count", func() any {
		calls++
		if state.Get("useA").(bool) {
			return state.Get("a")
		}
		return state.Get("b")
	})
	require.NoError(t, err)

	state.Set("useA", false)
	require.Equal(t, 2, calls)
	state.Set("a", 10)
	assert.Equal(t, 2, calls, "a is no longer read")
	state.Set("b", 20)
	assert.Equal(t, 3, calls)
}

func TestBindingFailureIsContained(t *testing.T) {
	doc, rt, logs := setup(t)
	state := rt.State(map[string]any{"n": 1})

	bad, err := rt.Bind("#name", func() any {
		if state.Get("n").(int) > 1 {
			panic("boom")
		}
		return "ok"
	})
	require.NoError(t, err)
	_, err = rt.Bind("#count", func() any { return state.Get("n") })
	require.NoError(t, err)

	state.Set("n", 2)
	assert.Equal(t, "2", doc.GetElementByID("count").TextContent())
	assert.Equal(t, "ok", doc.GetElementByID("name").TextContent())
	assert.ErrorIs(t, bad.Err(), errors.New("E004"))
	assert.Equal(t, StateActive, bad.State())
	assert.Equal(t, uint64(1), rt.Stats().Errors)
	assert.Contains(t, logs.String(), "binding failed")

	state.Set("n", 0)
	assert.NoError(t, bad.Err())
}

func TestApplyDispatch(t *testing.T) {
	doc, rt, _ := setup(t)
	state := rt.State(map[string]any{"label": "Save", "busy": false})
	save := doc.GetElementByID("save")

	_, err := rt.BindElement(save, "", func() any {
		return map[string]any{"title": state.Get("label"), "disabled": state.Get("busy")}
	})
	require.NoError(t, err)
	assert.Equal(t, "Save", save.GetAttribute("title"))
	assert.False(t, save.HasAttribute("disabled"))

	state.Set("busy", true)
	assert.True(t, save.HasAttribute("disabled"))

	_, err = rt.BindProps("#save", map[string]func() any{
		"style":     func() any { return map[string]any{"color": "red"} },
		"className": func() any { return "btn " + state.Get("label").(string) },
	})
	require.NoError(t, err)
	assert.Equal(t, "red", save.Style().GetPropertyValue("color"))
	assert.Equal(t, "btn Save", save.ClassName())

	_, err = rt.Bind("#name", func() any { return []any{"a", 1, "b"} })
	require.NoError(t, err)
	assert.Equal(t, "a1b", doc.GetElementByID("name").TextContent())

	li := doc.CreateElement("li")
	li.SetTextContent("fresh")
	_, err = rt.Bind("#list", func() any { return li })
	require.NoError(t, err)
	list := doc.GetElementByID("list")
	require.Len(t, list.Children(), 1)
	assert.Same(t, li, list.Children()[0])
}

func TestBindAllAndUnbind(t *testing.T) {
	doc, rt, _ := setup(t)
	state := rt.State(map[string]any{"n": 3})

	bs, err := rt.BindAll(map[string]any{
		"#count":  func() any { return state.Get("n") },
		"#save":   map[string]func() any{"title": func() any { return state.Get("n") }},
		"#absent": func() any { return 1 },
		"#name":   "not a function",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.New("E006"))
	assert.ErrorIs(t, err, errors.New("E004"))
	assert.Len(t, bs, 2)
	assert.Equal(t, 2, rt.Stats().Bindings)

	n, err := rt.Unbind("#count")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, StateCleanedUp, bs[0].State())
	assert.Zero(t, bs[0].Dependencies())

	state.Set("n", 4)
	assert.Equal(t, "3", doc.GetElementByID("count").TextContent())
	assert.Equal(t, "4", doc.GetElementByID("save").GetAttribute("title"))
	assert.Equal(t, 1, state.Dependents())

	_, err = rt.Bind(".missing", func() any { return nil })
	assert.ErrorIs(t, err, errors.New("E006"))
}

func TestRemovedElementsDropBindings(t *testing.T) {
	doc, err := dom.ParseString(page)
	require.NoError(t, err)
	w := watch.New(doc, watch.WithDelay(time.Hour))
	w.Start()
	defer w.Stop()
	rt := New(WithResolver(resolverFor(doc)), WithWatcher(w))
	defer rt.Close()

	state := rt.State(map[string]any{"n": 1})
	b, err := rt.Bind("#count", func() any { return state.Get("n") })
	require.NoError(t, err)
	_, err = rt.Bind("#save", func() any { return state.Get("n") })
	require.NoError(t, err)

	doc.GetElementByID("count").Remove()
	w.Flush()

	assert.Equal(t, StateCleanedUp, b.State())
	assert.Equal(t, 1, rt.Stats().Bindings)
	assert.Equal(t, 1, state.Dependents())
}

func TestCloseIsIdempotent(t *testing.T) {
	_, rt, _ := setup(t)
	state := rt.State(nil)
	b, err := rt.Bind("#count", func() any { return state.Get("x") })
	require.NoError(t, err)

	rt.Close()
	rt.Close()
	assert.True(t, rt.Closed())
	assert.Equal(t, StateCleanedUp, b.State())
	_, err = rt.Bind("#count", func() any { return 1 })
	assert.ErrorIs(t, err, errors.New("E005"))
}

func TestConcurrentGoroutinesTrackIndependently(t *testing.T) {
	doc, rt, _ := setup(t)
	state := rt.State(map[string]any{"a": 0, "b": 0})
	count, name := doc.GetElementByID("count"), doc.GetElementByID("name")

	var wg sync.WaitGroup
	for _, tc := range []struct {
		el  *dom.Element
		key string
	}{{count, "a"}, {name, "b"}} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := rt.BindElement(tc.el, "", func() any { return state.Get(tc.key) })
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	for _, b := range rt.Bindings(count) {
		assert.Equal(t, 1, b.Dependencies())
	}
	state.Set("b", 7)
	assert.Equal(t, "0", count.TextContent())
	assert.Equal(t, "7", name.TextContent())
}

func TestProxyResultsReapplyOnChange(t *testing.T) {
	doc, rt, _ := setup(t)
	state := rt.State(map[string]any{
		"items": []any{"a", "b"},
		"attrs": map[string]any{"title": "one"},
	})

	_, err := rt.Bind("#name", func() any {
		items := state.Array("items")
		items.Len()
		return items
	})
	require.NoError(t, err)
	name := doc.GetElementByID("name")
	assert.Equal(t, "ab", name.TextContent())
	state.Array("items").Push("c")
	assert.Equal(t, "abc", name.TextContent())

	save := doc.GetElementByID("save")
	_, err = rt.BindElement(save, "", func() any {
		attrs := state.Object("attrs")
		attrs.Get("title")
		return attrs
	})
	require.NoError(t, err)
	assert.Equal(t, "one", save.GetAttribute("title"))
	state.Object("attrs").Set("title", "two")
	assert.Equal(t, "two", save.GetAttribute("title"))
}

func TestCrossTriggeringBindingsDoNotDeadlock(t *testing.T) {
	doc, rt, _ := setup(t)
	state := rt.State(map[string]any{"x": 0, "y": 0})
	count, name := doc.GetElementByID("count"), doc.GetElementByID("name")

	_, err := rt.BindElement(count, "", func() any {
		v := state.Get("x")
		state.Set("y", v)
		return v
	})
	require.NoError(t, err)
	_, err = rt.BindElement(name, "", func() any {
		v := state.Get("y")
		state.Set("x", v)
		return v
	})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		for i := range 50 {
			wg.Add(2)
			go func() {
				defer wg.Done()
				state.Set("x", 2*i+10)
			}()
			go func() {
				defer wg.Done()
				state.Set("y", 2*i+11)
			}()
		}
		wg.Wait()
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("writers on different goroutines blocked each other")
	}
	assert.Equal(t, count.TextContent(), name.TextContent())
	assert.Equal(t, state.Get("x"), state.Get("y"))
}
