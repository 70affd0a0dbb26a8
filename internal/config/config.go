package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/vango-dev/domkit/internal/errors"
)

const (
	// DefaultCleanupInterval is the idle sweep period.
	DefaultCleanupInterval = 30 * time.Second

	// DefaultMaxCacheSize bounds each helper's cache.
	DefaultMaxCacheSize = 1000

	// DefaultDebounceDelay coalesces mutation bursts into one invalidation pass.
	DefaultDebounceDelay = 16 * time.Millisecond

	// DefaultPollInterval is the wait-for-element polling period.
	DefaultPollInterval = 100 * time.Millisecond
)

// Options configures a helper.
type Options struct {
	// EnableLogging turns warnings for degraded lookups and failed updates on.
	EnableLogging bool `koanf:"enableLogging" json:"enableLogging"`

	// AutoCleanup runs the idle sweeper.
	AutoCleanup bool `koanf:"autoCleanup" json:"autoCleanup"`

	// CleanupInterval is the idle sweep period.
	CleanupInterval time.Duration `koanf:"cleanupInterval" json:"cleanupInterval"`

	// MaxCacheSize bounds the number of cached lookups per helper.
	MaxCacheSize int `koanf:"maxCacheSize" json:"maxCacheSize"`

	// DebounceDelay is the mutation coalescing window.
	DebounceDelay time.Duration `koanf:"debounceDelay" json:"debounceDelay"`

	// PollInterval is the wait-for-element polling period.
	PollInterval time.Duration `koanf:"pollInterval" json:"pollInterval"`
}

// Default returns the default options.
func Default() Options {
	return Options{
		EnableLogging:   false,
		AutoCleanup:     true,
		CleanupInterval: DefaultCleanupInterval,
		MaxCacheSize:    DefaultMaxCacheSize,
		DebounceDelay:   DefaultDebounceDelay,
		PollInterval:    DefaultPollInterval,
	}
}

// Option mutates Options.
type Option func(*Options)

// WithLogging toggles logging.
func WithLogging(enabled bool) Option {
	return func(o *Options) { o.EnableLogging = enabled }
}

// WithAutoCleanup toggles the idle sweeper.
func WithAutoCleanup(enabled bool) Option {
	return func(o *Options) { o.AutoCleanup = enabled }
}

// WithCleanupInterval sets the idle sweep period.
func WithCleanupInterval(d time.Duration) Option {
	return func(o *Options) { o.CleanupInterval = d }
}

// WithMaxCacheSize sets the cache bound.
func WithMaxCacheSize(n int) Option {
	return func(o *Options) { o.MaxCacheSize = n }
}

// WithDebounceDelay sets the mutation coalescing window.
func WithDebounceDelay(d time.Duration) Option {
	return func(o *Options) { o.DebounceDelay = d }
}

// WithPollInterval sets the wait polling period.
func WithPollInterval(d time.Duration) Option {
	return func(o *Options) { o.PollInterval = d }
}

// New returns the defaults with opts applied.
func New(opts ...Option) Options {
	o := Default()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Apply returns a copy of o with opts applied.
func (o Options) Apply(opts ...Option) Options {
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Validate reports out-of-range values.
func (o Options) Validate() error {
	switch {
	case o.MaxCacheSize <= 0:
		return errors.New("E030").WithKey("maxCacheSize").
			WithDetail(fmt.Sprintf("maxCacheSize must be positive, got %d", o.MaxCacheSize))
	case o.CleanupInterval <= 0:
		return errors.New("E030").WithKey("cleanupInterval").
			WithDetail(fmt.Sprintf("cleanupInterval must be positive, got %s", o.CleanupInterval))
	case o.DebounceDelay < 0:
		return errors.New("E030").WithKey("debounceDelay").
			WithDetail(fmt.Sprintf("debounceDelay must not be negative, got %s", o.DebounceDelay))
	case o.PollInterval <= 0:
		return errors.New("E030").WithKey("pollInterval").
			WithDetail(fmt.Sprintf("pollInterval must be positive, got %s", o.PollInterval))
	}
	return nil
}

// Format is a configuration file format.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, true
	case ".yaml", ".yml":
		return FormatYAML, true
	}
	return "", false
}

// Parse decodes options from data. Keys absent from data keep their default
// values.
func Parse(data []byte, format Format) (Options, error) {
	var parser koanf.Parser
	switch format {
	case FormatJSON:
		parser = json.Parser()
	case FormatYAML:
		parser = yaml.Parser()
	default:
		return Options{}, errors.New("E031").WithDetail(fmt.Sprintf("unsupported format %q", format))
	}

	opts := Default()
	if len(data) == 0 {
		return opts, nil
	}

	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return Options{}, errors.New("E031").Wrap(err)
	}
	if err := k.UnmarshalWithConf("", &opts, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Options{}, errors.New("E031").Wrap(err)
	}
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// LoadFile reads options from a JSON or YAML file.
func LoadFile(path string) (Options, error) {
	format, ok := FormatFromPath(path)
	if !ok {
		return Options{}, errors.New("E031").WithKey(path).
			WithSuggestion("Use a .json, .yaml or .yml file")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, errors.New("E031").WithKey(path).Wrap(err)
	}
	opts, err := Parse(data, format)
	if err != nil {
		return Options{}, err
	}
	return opts, nil
}
