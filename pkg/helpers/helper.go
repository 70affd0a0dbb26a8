package helpers

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vango-dev/domkit/internal/config"
	"github.com/vango-dev/domkit/internal/errors"
	"github.com/vango-dev/domkit/pkg/dom"
	"github.com/vango-dev/domkit/pkg/query"
	"github.com/vango-dev/domkit/pkg/watch"
)

// Option configures a helper.
type Option func(*settings)

type settings struct {
	opts   config.Options
	logger *slog.Logger
}

// WithOptions sets the helper options.
func WithOptions(o config.Options) Option {
	return func(s *settings) { s.opts = o }
}

// WithLogger sets the base logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

func newSettings(opts []Option) settings {
	s := settings{opts: config.Default(), logger: slog.Default()}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func (s settings) engineOptions() []query.Option {
	return []query.Option{query.WithOptions(s.opts), query.WithLogger(s.logger)}
}

// helper carries the lifecycle operations shared by every lookup family.
type helper[K comparable, V any, R any] struct {
	engine *query.Engine[K, V, R]
}

// HelperName returns the name used in logs and metrics.
func (h *helper[K, V, R]) HelperName() string { return h.engine.Name() }

// Stats returns the cache statistics.
func (h *helper[K, V, R]) Stats() query.Stats { return h.engine.Stats() }

// ClearCache drops every cached lookup.
func (h *helper[K, V, R]) ClearCache() { h.engine.Clear() }

// Configure applies new options.
func (h *helper[K, V, R]) Configure(o config.Options) { h.engine.Configure(o) }

// Options returns the options in effect.
func (h *helper[K, V, R]) Options() config.Options { return h.engine.Options() }

// Destroy stops watching and sweeping. Lookups keep working uncached.
func (h *helper[K, V, R]) Destroy() { h.engine.Destroy() }

// Destroyed reports whether Destroy was called.
func (h *helper[K, V, R]) Destroyed() bool { return h.engine.Destroyed() }

// Watcher returns the helper's mutation watcher.
func (h *helper[K, V, R]) Watcher() *watch.Watcher { return h.engine.Watcher() }

// OnEvent registers an engine event hook.
func (h *helper[K, V, R]) OnEvent(fn func(query.Event)) (remove func()) {
	return h.engine.OnEvent(fn)
}

// Sweep runs one idle sweep pass immediately.
func (h *helper[K, V, R]) Sweep() int { return h.engine.Sweep() }

// Meta returns diagnostics for an element returned by a fresh lookup.
func (h *helper[K, V, R]) Meta(el *dom.Element) (query.Meta, bool) { return h.engine.Meta(el) }

func (h *helper[K, V, R]) logger() *slog.Logger { return h.engine.Logger() }

func (h *helper[K, V, R]) warnInvalid(kind, key string) {
	h.logger().Warn("helpers: invalid lookup key", "kind", kind,
		"error", errors.New("E001").WithKey(fmt.Sprintf("%q", key)))
}

// validKey rejects empty keys and keys with surrounding whitespace.
func validKey(key string) bool {
	return key != "" && strings.TrimSpace(key) == key
}

// validID additionally rejects inner whitespace.
func validID(id string) bool {
	return validKey(id) && !strings.ContainsAny(id, " \t\n\r\f")
}

// poll calls probe every interval until it reports a value, ctx is done or
// timeout elapses. A zero timeout waits on ctx alone.
func poll[T any](ctx context.Context, interval, timeout time.Duration, target string, probe func() (T, bool)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if v, ok := probe(); ok {
			return v, nil
		}
		select {
		case <-ctx.Done():
			var zero T
			if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
				return zero, errors.New("E020").WithKey(target).
					WithDetail(fmt.Sprintf("%s did not appear within %s", target, timeout))
			}
			return zero, ctx.Err()
		case <-ticker.C:
		}
	}
}
