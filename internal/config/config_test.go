package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{"API_BASE_URL", "HTTP_PORT", "DEFAULT_THRESHOLD", "DEFAULT_VARIATIONS", "DOWNLOAD_DELAY", "REQUEST_TIMEOUT"} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()
	assert.Equal(t, "", cfg.APIBaseURL, "explicitly empty variables are kept")
	assert.Equal(t, 0.85, cfg.DefaultThreshold)
	assert.Equal(t, 2, cfg.DefaultVariations)
	assert.Equal(t, 500*time.Millisecond, cfg.DownloadDelay)
	assert.Equal(t, time.Duration(0), cfg.RequestTimeout)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://studio.example.com")
	t.Setenv("DEFAULT_THRESHOLD", "0.7")
	t.Setenv("DEFAULT_VARIATIONS", "4")
	t.Setenv("DOWNLOAD_DELAY", "1s")
	t.Setenv("BYPASS_HEADER", "x-skip")

	cfg := FromEnv()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "https://studio.example.com", cfg.APIBaseURL)
	assert.Equal(t, 0.7, cfg.DefaultThreshold)
	assert.Equal(t, 4, cfg.DefaultVariations)
	assert.Equal(t, time.Second, cfg.DownloadDelay)
	assert.Equal(t, "x-skip", cfg.BypassHeader)
}

func TestValidate(t *testing.T) {
	base := Config{APIBaseURL: "http://localhost:8000", DefaultThreshold: 0.85, DefaultVariations: 2}
	require.NoError(t, base.Validate())

	bad := base
	bad.APIBaseURL = "localhost"
	assert.Error(t, bad.Validate())

	bad = base
	bad.DefaultVariations = 0
	assert.Error(t, bad.Validate())

	bad = base
	bad.DefaultThreshold = 0.99
	assert.Error(t, bad.Validate())
}
