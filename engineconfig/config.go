// Package engineconfig holds the engine's tunable knobs: buffer policies,
// debug output sink, metrics namespace, and rate-limiter defaults for the
// illustrative adapters. None of these affect combinator semantics; they
// only affect resource usage and observability.
package engineconfig

import (
	"errors"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultMergeBufferSize is the buffer size of Merge's output channel
	// unless a caller sets another via WithMergeBufferSize (0: unbuffered).
	DefaultMergeBufferSize = 0
	// DefaultRateLimiterBurst is the token-bucket burst size DefaultConfig
	// sets, used by adapter.RateLimitedWithConfig unless overridden.
	DefaultRateLimiterBurst = 1
)

var (
	// ErrInvalidMergeBufferSize is returned by Validate for a negative
	// merge buffer size.
	ErrInvalidMergeBufferSize = errors.New("engineconfig: merge buffer size must be non-negative")
	// ErrInvalidRateLimiterBurst is returned by Validate for a non-positive
	// rate limiter burst.
	ErrInvalidRateLimiterBurst = errors.New("engineconfig: rate limiter burst must be positive")
)

// TeeBufferPolicy selects how Tee buffers a lagging consumer branch.
type TeeBufferPolicy int

const (
	// TeeBufferUnbounded lets a lagging branch's queue grow without limit,
	// the default, required so pipe's two tee'd branches never deadlock
	// each other.
	TeeBufferUnbounded TeeBufferPolicy = iota
)

// Config holds the engine's runtime-tunable settings.
type Config struct {
	// TeeBufferPolicy controls Tee's per-consumer buffering strategy.
	TeeBufferPolicy TeeBufferPolicy

	// MergeBufferSize sets the channel buffer size Merge uses for its
	// output channel. Default: 0 (unbuffered, lowest latency).
	MergeBufferSize int

	// DebugWriter is where debugtap.DebugWithConfig writes its
	// human-readable trace.
	// Default: os.Stderr.
	DebugWriter io.Writer

	// PrometheusNamespace overrides the namespace metrics are registered
	// under. Default: "langstream".
	PrometheusNamespace string

	// RateLimiterBurst sets the token-bucket burst size used by
	// adapter.RateLimitedWithConfig. adapter.RateLimited overwrites it with
	// its own burst argument.
	RateLimiterBurst int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		TeeBufferPolicy:     TeeBufferUnbounded,
		MergeBufferSize:     DefaultMergeBufferSize,
		DebugWriter:         os.Stderr,
		PrometheusNamespace: "langstream",
		RateLimiterBurst:    DefaultRateLimiterBurst,
	}
}

// Validate checks the configuration for internally inconsistent values.
func (c *Config) Validate() error {
	if c.MergeBufferSize < 0 {
		return ErrInvalidMergeBufferSize
	}
	if c.RateLimiterBurst <= 0 {
		return ErrInvalidRateLimiterBurst
	}
	return nil
}

// WithTeeBufferPolicy sets the Tee buffering strategy.
func (c *Config) WithTeeBufferPolicy(policy TeeBufferPolicy) *Config {
	c.TeeBufferPolicy = policy
	return c
}

// WithMergeBufferSize sets Merge's output channel buffer size.
func (c *Config) WithMergeBufferSize(size int) *Config {
	c.MergeBufferSize = size
	return c
}

// WithDebugWriter sets the sink debugtap.DebugWithConfig writes its trace to.
func (c *Config) WithDebugWriter(w io.Writer) *Config {
	c.DebugWriter = w
	return c
}

// WithPrometheusNamespace overrides the metrics namespace.
func (c *Config) WithPrometheusNamespace(namespace string) *Config {
	c.PrometheusNamespace = namespace
	return c
}

// WithRateLimiterBurst sets the burst size adapter.RateLimitedWithConfig uses.
func (c *Config) WithRateLimiterBurst(burst int) *Config {
	c.RateLimiterBurst = burst
	return c
}

// fileConfig mirrors the subset of Config that is meaningfully
// file-serializable; DebugWriter is an io.Writer and has no YAML form.
type fileConfig struct {
	MergeBufferSize     int    `yaml:"merge_buffer_size"`
	PrometheusNamespace string `yaml:"prometheus_namespace"`
	RateLimiterBurst    int    `yaml:"rate_limiter_burst"`
}

// LoadFromYAML reads a Config from a YAML file, applying DefaultConfig for
// any field the file doesn't set.
func LoadFromYAML(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fc fileConfig
	cfg := DefaultConfig()
	fc.MergeBufferSize = cfg.MergeBufferSize
	fc.PrometheusNamespace = cfg.PrometheusNamespace
	fc.RateLimiterBurst = cfg.RateLimiterBurst
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return nil, err
	}
	cfg.MergeBufferSize = fc.MergeBufferSize
	cfg.PrometheusNamespace = fc.PrometheusNamespace
	cfg.RateLimiterBurst = fc.RateLimiterBurst
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
