package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.BackendURL)
	assert.Equal(t, uint64(1), cfg.ChainID)
	assert.Equal(t, "uniswap-v3", cfg.Dex)
	assert.Equal(t, 30, cfg.TimeframeDays)
	assert.Equal(t, "historical", cfg.AprMethod)
	assert.Equal(t, 350*time.Millisecond, cfg.DistributionDebounce)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("RANGESCOPE_BACKEND", "https://positions.example.com")
	t.Setenv("RANGESCOPE_APR_METHOD", "spot")
	t.Setenv("RANGESCOPE_TIMEFRAME_DAYS", "7")

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "https://positions.example.com", cfg.BackendURL)
	assert.Equal(t, "spot", cfg.AprMethod)
	assert.Equal(t, 7, cfg.TimeframeDays)
}

func TestLoadRejectsBadAprMethod(t *testing.T) {
	t.Setenv("RANGESCOPE_APR_METHOD", "vibes")

	_, err := Load("", nil)
	assert.Error(t, err)
}
