package engineconfig_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rogeriochaves/langstream/engineconfig"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := engineconfig.DefaultConfig()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "langstream", cfg.PrometheusNamespace)
	assert.Equal(t, engineconfig.DefaultRateLimiterBurst, cfg.RateLimiterBurst)
}

func TestValidateRejectsNegativeMergeBuffer(t *testing.T) {
	cfg := engineconfig.DefaultConfig().WithMergeBufferSize(-1)
	assert.ErrorIs(t, cfg.Validate(), engineconfig.ErrInvalidMergeBufferSize)
}

func TestValidateRejectsNonPositiveBurst(t *testing.T) {
	cfg := engineconfig.DefaultConfig().WithRateLimiterBurst(0)
	assert.ErrorIs(t, cfg.Validate(), engineconfig.ErrInvalidRateLimiterBurst)
}

func TestFluentBuilderChains(t *testing.T) {
	cfg := engineconfig.DefaultConfig().
		WithMergeBufferSize(4).
		WithPrometheusNamespace("custom").
		WithRateLimiterBurst(10)
	assert.Equal(t, 4, cfg.MergeBufferSize)
	assert.Equal(t, "custom", cfg.PrometheusNamespace)
	assert.Equal(t, 10, cfg.RateLimiterBurst)
}

func TestLoadFromYAMLAppliesDefaultsForMissingFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rate_limiter_burst: 5\n"), 0o644))

	cfg, err := engineconfig.LoadFromYAML(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.RateLimiterBurst)
	assert.Equal(t, "langstream", cfg.PrometheusNamespace)
}

func TestLoadFromYAMLMissingFile(t *testing.T) {
	_, err := engineconfig.LoadFromYAML(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
