package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"API_KEY", "API_URL", "REGION", "PROFILE_ID", "URL", "LEDGER_PATH", "LOG_FORMAT",
		"REQUEST_TIMEOUT", "READY_TIMEOUT", "CLOSE_TIMEOUT", "POLL_INTERVAL", "MAX_POLL_INTERVAL",
		"MIN_BALANCE", "REQUESTS_PER_SECOND", "MAX_CONCURRENT", "BURST",
	} {
		t.Setenv(envPrefix+name, "")
		os.Unsetenv(envPrefix + name)
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := LoadFromBytes([]byte("api_key: sk_test\n"))
	require.NoError(t, err)

	assert.Equal(t, DefaultAPIURL, cfg.APIURL)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 60*time.Second, cfg.ReadyTimeout)
	assert.Equal(t, 10*time.Second, cfg.CloseTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 5*time.Second, cfg.MaxPollInterval)
	assert.InDelta(t, 0.50, cfg.MinBalance, 1e-9)
	assert.Equal(t, int64(10), cfg.MaxConcurrent)
	assert.Zero(t, cfg.RequestsPerSecond)
}

func TestLoadFromBytes(t *testing.T) {
	t.Setenv("TEST_CLOUDBROWSER_KEY", "sk_from_env")

	cfg, err := LoadFromBytes([]byte(`
api_key: ${TEST_CLOUDBROWSER_KEY}
api_url: https://api.example.com/v1/
region: BR
ready_timeout: 2m
poll_interval: 250ms
requests_per_second: 5
ledger_path: ${TEST_CLOUDBROWSER_LEDGER:-/tmp/usage.db}
logging:
  level: debug
  format: json
`))
	require.NoError(t, err)

	assert.Equal(t, "sk_from_env", cfg.APIKey)
	assert.Equal(t, "https://api.example.com/v1", cfg.APIURL)
	assert.Equal(t, "BR", cfg.Region)
	assert.Equal(t, 2*time.Minute, cfg.ReadyTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 1, cfg.Burst)
	assert.Equal(t, "/tmp/usage.db", cfg.LedgerPath)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "cloudbrowser.yml")
	require.NoError(t, os.WriteFile(path, []byte("api_key: sk_file\nregion: DE\nmax_concurrent: 3\n"), 0644))

	t.Setenv("CLOUDBROWSER_API_KEY", "sk_env")
	t.Setenv("CLOUDBROWSER_READY_TIMEOUT", "45s")
	t.Setenv("CLOUDBROWSER_MIN_BALANCE", "2.5")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sk_env", cfg.APIKey)
	assert.Equal(t, "DE", cfg.Region)
	assert.Equal(t, int64(3), cfg.MaxConcurrent)
	assert.Equal(t, 45*time.Second, cfg.ReadyTimeout)
	assert.InDelta(t, 2.5, cfg.MinBalance, 1e-9)
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)

	t.Setenv("CLOUDBROWSER_READY_TIMEOUT", "soon")
	_, err = Load("")
	assert.ErrorContains(t, err, "CLOUDBROWSER_READY_TIMEOUT")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad url", "api_url: localhost:8080", "api_url"},
		{"negative timeout", "request_timeout: -1s", "request_timeout"},
		{"poll ceiling below interval", "poll_interval: 2s\nmax_poll_interval: 1s", "max_poll_interval"},
		{"negative concurrency", "max_concurrent: -2", "max_concurrent"},
		{"negative rate", "requests_per_second: -1", "requests_per_second"},
		{"log format", "logging:\n  format: xml", "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tt.yaml))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestRequireAPIKey(t *testing.T) {
	cfg, err := LoadFromBytes([]byte("region: US"))
	require.NoError(t, err)
	assert.Error(t, cfg.RequireAPIKey())

	cfg.APIKey = "sk"
	assert.NoError(t, cfg.RequireAPIKey())
}
