package domkit

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vango-dev/domkit/internal/config"
	"github.com/vango-dev/domkit/internal/errors"
	"github.com/vango-dev/domkit/pkg/dom"
	"github.com/vango-dev/domkit/pkg/enhance"
	"github.com/vango-dev/domkit/pkg/query"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const page = `<!DOCTYPE html><html><body>
<main id="main">
  <h1 id="title">Inbox</h1>
  <ul id="mail">
    <li class="msg unread" name="m1">one</li>
    <li class="msg" name="m2">two</li>
  </ul>
  <span id="unread"></span>
</main>
</body></html>`

func newKit(t *testing.T, cfg Config) (*dom.Document, *Kit) {
	t.Helper()
	doc, err := dom.ParseString(page)
	require.NoError(t, err)
	if cfg.Options == (Options{}) {
		cfg.Options = config.New(config.WithDebounceDelay(5 * time.Millisecond))
	}
	k := New(doc, cfg)
	t.Cleanup(k.Close)
	return doc, k
}

func TestKitLookups(t *testing.T) {
	_, k := newKit(t, Config{})

	title := k.Get("title")
	require.NotNil(t, title)
	assert.Same(t, title, k.Get("title"))
	assert.Equal(t, 2, k.QueryAll("#mail li").Len())
	assert.Equal(t, 1, k.Collections.ClassName("unread").Len())
	assert.Equal(t, "two", k.Query("li[name=m2]").TextContent())

	stats := k.Stats()
	require.Contains(t, stats, "elements")
	require.Contains(t, stats, "collections")
	require.Contains(t, stats, "selector")
	assert.Equal(t, uint64(1), stats["elements"].Hits)
	assert.Equal(t, 2, stats["selector"].CacheSize)

	k.ClearCache()
	for name, s := range k.Stats() {
		assert.Zero(t, s.CacheSize, name)
	}
}

func TestKitResolve(t *testing.T) {
	_, k := newKit(t, Config{})

	el, err := k.Resolve("#title")
	require.NoError(t, err)
	assert.Equal(t, "title", el.ID())

	el, err = k.Resolve("unread")
	require.NoError(t, err)
	assert.Equal(t, "SPAN", el.TagName())

	el, err = k.Resolve("h1")
	require.NoError(t, err, "bare words fall back to selectors")
	assert.Equal(t, "title", el.ID())

	el, err = k.Resolve("#mail .unread")
	require.NoError(t, err)
	assert.Equal(t, "one", el.TextContent())

	_, err = k.Resolve("#nope")
	assert.ErrorIs(t, err, errors.New("E006"))
	_, err = k.Resolve("  ")
	assert.ErrorIs(t, err, errors.New("E001"))
}

func TestKitBindings(t *testing.T) {
	doc, k := newKit(t, Config{})
	state := k.State(map[string]any{"unread": 1})

	_, err := k.Bind("#unread", func() any { return state.Get("unread") })
	require.NoError(t, err)
	unread := doc.GetElementByID("unread")
	assert.Equal(t, "1", unread.TextContent())

	state.Set("unread", 2)
	assert.Equal(t, "2", unread.TextContent())
	assert.Equal(t, 1, k.ReactiveStats().Bindings)

	unread.Remove()
	require.Eventually(t, func() bool { return k.ReactiveStats().Bindings == 0 },
		time.Second, 5*time.Millisecond)
}

func TestKitConfigure(t *testing.T) {
	_, k := newKit(t, Config{})

	err := k.Configure(config.New(config.WithMaxCacheSize(0)))
	assert.ErrorIs(t, err, errors.New("E030"))

	require.NoError(t, k.Configure(config.New(config.WithMaxCacheSize(1))))
	assert.Equal(t, 1, k.Options().MaxCacheSize)
	k.Get("title")
	k.Get("unread")
	assert.Equal(t, 1, k.Stats()["elements"].CacheSize)
	assert.Equal(t, uint64(1), k.Stats()["elements"].Evictions)
}

func TestKitEvents(t *testing.T) {
	_, k := newKit(t, Config{})

	var mu sync.Mutex
	var kinds []query.EventKind
	remove := k.OnEvent(func(e query.Event) {
		mu.Lock()
		defer mu.Unlock()
		kinds = append(kinds, e.Kind)
	})
	k.Get("title")
	k.Get("title")
	k.Collections.TagName("li")
	remove()
	remove()
	k.Get("unread")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []query.EventKind{query.EventMiss, query.EventHit, query.EventMiss}, kinds)
}

func TestKitMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, k := newKit(t, Config{Registerer: reg})

	k.Get("title")
	k.Get("title")
	count, err := testutil.GatherAndCount(reg, "domkit_cache_hits_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count, "one series per helper")

	k.Close()
	count, err = testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Zero(t, count, "closing unregisters the collector")
}

func TestKitClose(t *testing.T) {
	_, k := newKit(t, Config{})
	closed := 0
	k.OnClose(func() { closed++ })

	k.Close()
	k.Close()
	assert.True(t, k.Closed())
	assert.Equal(t, 1, closed)
	assert.True(t, k.Elements.Destroyed())
	assert.True(t, k.Reactive.Closed())
	assert.NotNil(t, k.Get("title"), "lookups still answer after close")
	assert.Zero(t, k.Stats()["elements"].CacheSize)
}

func TestKitsAreIndependent(t *testing.T) {
	_, a := newKit(t, Config{})
	_, b := newKit(t, Config{})

	a.Get("title")
	assert.Zero(t, b.Stats()["elements"].Misses)
	a.Close()
	assert.False(t, b.Closed())
	require.NotNil(t, b.Get("title"))
	b.Get("title").Update(enhance.Updates{"textContent": "Archive"})
	assert.Equal(t, "Archive", b.Get("title").TextContent())
}
