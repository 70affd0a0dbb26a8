package inspect_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vango-dev/domkit"
	"github.com/vango-dev/domkit/pkg/dom"
	"github.com/vango-dev/domkit/pkg/inspect"
	"github.com/vango-dev/domkit/pkg/query"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const page = `<!DOCTYPE html><html><body>
<div id="a" class="card">A</div>
<div id="b" class="card">B</div>
</body></html>`

func setup(t *testing.T) (*domkit.Kit, *inspect.Server, *httptest.Server) {
	t.Helper()
	doc, err := dom.ParseString(page)
	require.NoError(t, err)
	kit := domkit.New(doc, domkit.Config{})
	s := inspect.New(kit)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Close()
		srv.Close()
		http.DefaultClient.CloseIdleConnections()
		kit.Close()
	})
	return kit, s, srv
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func post(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(url, "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestStats(t *testing.T) {
	kit, _, srv := setup(t)
	kit.Get("a")
	kit.Get("a")

	resp, body := get(t, srv.URL+"/stats")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var stats inspect.StatsResponse
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.Equal(t, uint64(1), stats.Helpers["elements"].Hits)
	assert.Equal(t, uint64(1), stats.Helpers["elements"].Misses)
	assert.InDelta(t, 0.5, stats.Helpers["elements"].HitRate, 1e-9)
	assert.Zero(t, stats.Reactive.Bindings)

	resp, body = get(t, srv.URL+"/stats/elements")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var one query.Stats
	require.NoError(t, json.Unmarshal(body, &one))
	assert.Equal(t, 1, one.CacheSize)

	resp, _ = get(t, srv.URL+"/stats/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestClearAndSweep(t *testing.T) {
	kit, _, srv := setup(t)
	kit.Get("a")
	kit.QueryAll(".card")

	resp, _ := post(t, srv.URL+"/clear")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	for name, st := range kit.Stats() {
		assert.Zero(t, st.CacheSize, name)
	}

	kit.Get("b")
	resp, body := post(t, srv.URL+"/sweep")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"removed":0}`, string(body), "connected results survive a sweep")

	resp, _ = get(t, srv.URL+"/clear")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestMetrics(t *testing.T) {
	kit, _, srv := setup(t)
	kit.Get("a")
	get(t, srv.URL+"/healthz")

	resp, body := get(t, srv.URL+"/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	text := string(body)
	assert.Contains(t, text, `domkit_cache_misses_total{helper="elements"} 1`)
	assert.Contains(t, text, `domkit_inspect_requests_total{route="/healthz",status="204"} 1`)
	assert.Contains(t, text, "domkit_reactive_bindings")
}

func TestEventStream(t *testing.T) {
	kit, s, srv := setup(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return s.StreamClients() == 1 }, time.Second, 5*time.Millisecond)

	kit.Get("a")
	kit.Get("a")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var first, second query.Event
	require.NoError(t, conn.ReadJSON(&first))
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, query.EventMiss, first.Kind)
	assert.Equal(t, "elements", first.Helper)
	assert.Equal(t, "a", first.Key)
	assert.Equal(t, query.EventHit, second.Kind)

	s.Close()
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	assert.Zero(t, s.StreamClients())
}
