package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vango-dev/domkit"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreAnyFunction("os/signal.loop"))
}

const page = `<!DOCTYPE html><html><body>
<h1 id="title">Inbox</h1>
<ul id="mail">
  <li class="msg unread">one</li>
  <li class="msg">two</li>
</ul>
</body></html>`

// lockedBuffer is safe to read while a command is still writing.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func writePage(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)

	out, err = run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Go version:")
}

func TestQueryJSON(t *testing.T) {
	path := writePage(t, page)
	out, err := run(t, "query", path, "#title", ".msg", ".missing", "--repeat", "3", "--json")
	require.NoError(t, err)

	var report queryReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report.Results, 3)
	assert.Equal(t, selectorResult{Selector: "#title", Matches: 1}, report.Results[0])
	assert.Equal(t, selectorResult{Selector: ".msg", Matches: 2}, report.Results[1])
	assert.Equal(t, selectorResult{Selector: ".missing", Matches: 0}, report.Results[2])

	assert.Equal(t, uint64(2), report.Stats["elements"].Hits)
	assert.Equal(t, uint64(1), report.Stats["elements"].Misses)
	assert.Equal(t, uint64(4), report.Stats["selector"].Hits)
	assert.Equal(t, uint64(2), report.Stats["selector"].Misses)
}

func TestQueryText(t *testing.T) {
	path := writePage(t, page)
	out, err := run(t, "query", path, "#title", "#nope", "--first")
	require.NoError(t, err)
	assert.Contains(t, out, "#title: 1 match(es)")
	assert.Contains(t, out, "#nope: no matches")
	assert.Contains(t, out, "HIT RATE")
	assert.Contains(t, out, "elements")
}

func TestQueryErrors(t *testing.T) {
	path := writePage(t, page)

	_, err := run(t, "query", path)
	assert.Error(t, err, "a selector is required")

	_, err = run(t, "query", path, "#title", "--repeat", "0")
	assert.ErrorContains(t, err, "--repeat")

	_, err = run(t, "query", filepath.Join(t.TempDir(), "missing.html"), "#title")
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = run(t, "query", path, "#title", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestQueryConfigFile(t *testing.T) {
	path := writePage(t, page)
	cfg := filepath.Join(t.TempDir(), "domkit.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("maxCacheSize: 1\n"), 0o644))

	out, err := run(t, "query", path, "#title", "#mail", "--json", "--config", cfg)
	require.NoError(t, err)
	var report queryReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 1, report.Stats["elements"].CacheSize)
	assert.Equal(t, uint64(1), report.Stats["elements"].Evictions)
}

func TestIsIDSelector(t *testing.T) {
	assert.True(t, isIDSelector("#title"))
	assert.True(t, isIDSelector("#a-b_c9"))
	assert.False(t, isIDSelector("#"))
	assert.False(t, isIDSelector("title"))
	assert.False(t, isIDSelector("#mail li"))
	assert.False(t, isIDSelector("#a.b"))
}

func TestReload(t *testing.T) {
	path := writePage(t, page)
	doc, err := parseFile(path)
	require.NoError(t, err)
	kit := domkit.New(doc, domkit.Config{})
	defer kit.Close()

	require.NotNil(t, kit.Get("title"))
	require.NoError(t, os.WriteFile(path, []byte(`<html><body><h2 id="other">Archive</h2></body></html>`), 0o644))
	require.NoError(t, reload(doc, path))

	assert.Nil(t, doc.GetElementByID("title"))
	assert.Nil(t, kit.Get("title"), "removed elements are not served from the cache")
	require.NotNil(t, kit.Get("other"))
	assert.Equal(t, "Archive", kit.Get("other").TextContent())
}

func TestFollowFile(t *testing.T) {
	path := writePage(t, page)
	doc, err := parseFile(path)
	require.NoError(t, err)
	kit := domkit.New(doc, domkit.Config{})
	defer kit.Close()

	out := &lockedBuffer{}
	fw := followFile(kit, path, []string{".msg"}, out, 10*time.Millisecond, false)
	assert.Contains(t, out.String(), ".msg: 2 match(es)")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fw.Start(ctx) }()
	require.Eventually(t, fw.IsRunning, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	updated := strings.Replace(page, `<li class="msg">two</li>`, `<li class="msg">two</li><li class="msg">three</li>`, 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), ".msg: 3 match(es)")
	}, 2*time.Second, 5*time.Millisecond)
	assert.Contains(t, out.String(), "Reloaded")

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestServe(t *testing.T) {
	path := writePage(t, page)
	out := &lockedBuffer{}
	cmd := newRootCmd()
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs([]string{"serve", path, "--addr", "127.0.0.1:0"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	addr := regexp.MustCompile(`http://[0-9.:]+`)
	require.Eventually(t, func() bool { return addr.MatchString(out.String()) },
		2*time.Second, 5*time.Millisecond)
	base := addr.FindString(out.String())

	resp, err := http.Get(base + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(base + "/stats/elements")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	http.DefaultClient.CloseIdleConnections()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("serve did not stop")
	}
	assert.Contains(t, out.String(), "Inspector stopped")
}
