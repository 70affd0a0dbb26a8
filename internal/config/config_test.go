package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/domkit/internal/errors"
)

func TestDefaultsAreValid(t *testing.T) {
	opts := Default()
	require.NoError(t, opts.Validate())
	assert.True(t, opts.AutoCleanup)
	assert.False(t, opts.EnableLogging)
	assert.Equal(t, DefaultMaxCacheSize, opts.MaxCacheSize)
}

func TestFunctionalOptions(t *testing.T) {
	opts := New(
		WithLogging(true),
		WithAutoCleanup(false),
		WithMaxCacheSize(5),
		WithDebounceDelay(time.Millisecond),
		WithCleanupInterval(time.Second),
		WithPollInterval(5*time.Millisecond),
	)
	assert.True(t, opts.EnableLogging)
	assert.False(t, opts.AutoCleanup)
	assert.Equal(t, 5, opts.MaxCacheSize)
	assert.Equal(t, time.Millisecond, opts.DebounceDelay)

	again := opts.Apply(WithMaxCacheSize(9))
	assert.Equal(t, 9, again.MaxCacheSize)
	assert.Equal(t, 5, opts.MaxCacheSize, "Apply must not modify the receiver")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
		key  string
	}{
		{"zero cache", WithMaxCacheSize(0), "maxCacheSize"},
		{"zero sweep", WithCleanupInterval(0), "cleanupInterval"},
		{"negative debounce", WithDebounceDelay(-time.Millisecond), "debounceDelay"},
		{"zero poll", WithPollInterval(0), "pollInterval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.opt).Validate()
			require.ErrorIs(t, err, errors.New("E030"))
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestParseJSON(t *testing.T) {
	opts, err := Parse([]byte(`{"maxCacheSize": 50, "debounceDelay": "5ms", "enableLogging": true}`), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, 50, opts.MaxCacheSize)
	assert.Equal(t, 5*time.Millisecond, opts.DebounceDelay)
	assert.True(t, opts.EnableLogging)
	assert.Equal(t, DefaultCleanupInterval, opts.CleanupInterval, "absent keys keep defaults")
}

func TestParseYAML(t *testing.T) {
	opts, err := Parse([]byte("autoCleanup: false\ncleanupInterval: 2s\n"), FormatYAML)
	require.NoError(t, err)
	assert.False(t, opts.AutoCleanup)
	assert.Equal(t, 2*time.Second, opts.CleanupInterval)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte(`{`), FormatJSON)
	assert.ErrorIs(t, err, errors.New("E031"))

	_, err = Parse([]byte(`maxCacheSize: -1`), FormatYAML)
	assert.ErrorIs(t, err, errors.New("E030"))

	_, err = Parse(nil, Format("toml"))
	assert.ErrorIs(t, err, errors.New("E031"))
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "domkit.yml")
	require.NoError(t, os.WriteFile(path, []byte("maxCacheSize: 7\n"), 0o644))

	opts, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 7, opts.MaxCacheSize)

	_, err = LoadFile(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, errors.New("E031"))

	_, err = LoadFile(filepath.Join(dir, "domkit.ini"))
	assert.ErrorIs(t, err, errors.New("E031"))
}
