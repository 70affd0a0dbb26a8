package domkit

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/domkit/internal/config"
	"github.com/vango-dev/domkit/pkg/telemetry"
)

// =============================================================================
// Configuration Types
// =============================================================================

// Options is the helper configuration shared by every lookup helper.
type Options = config.Options

// Config configures a Kit.
type Config struct {
	// Options configures caching, sweeping, debouncing and logging.
	// The zero value is replaced by DefaultOptions.
	Options Options

	// Logger is the structured logger for every helper.
	// If nil, slog.Default() is used.
	Logger *slog.Logger

	// Registerer receives the kit's Prometheus collector.
	// If nil, metrics are collected but not registered anywhere.
	Registerer prometheus.Registerer

	// Namespace prefixes metric names. Defaults to "domkit".
	Namespace string
}

// DefaultOptions returns the default helper options.
func DefaultOptions() Options { return config.Default() }

// LoadOptions reads options from a JSON or YAML file. Missing fields keep
// their defaults.
func LoadOptions(path string) (Options, error) { return config.LoadFile(path) }

func (c Config) withDefaults() Config {
	if c.Options == (Options{}) {
		c.Options = config.Default()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Namespace == "" {
		c.Namespace = telemetry.DefaultNamespace
	}
	return c
}
