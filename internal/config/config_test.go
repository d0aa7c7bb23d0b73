package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.ListenAddr)
	assert.Equal(t, "https://api.abacus.ai", cfg.AbacusBaseURL)
	assert.Equal(t, 120*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "app/static/index.html", cfg.IndexFile)
	assert.False(t, cfg.ExposeErrorDetails)
	assert.Empty(t, cfg.AllowedOrigins)
}

func TestParse_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("ABACUS_API_KEY", "key-1")
	t.Setenv("ABACUS_DEPLOYMENT_ID", "dep-1")
	t.Setenv("ABACUS_DEPLOYMENT_TOKEN", "tok-1")
	t.Setenv("REQUEST_TIMEOUT", "15s")
	t.Setenv("ALLOWED_ORIGINS", "http://a.example, http://b.example ,")
	t.Setenv("EXPOSE_ERROR_DETAILS", "yes")

	cfg, err := Parse(nil)
	require.NoError(t, err)

	assert.Equal(t, "key-1", cfg.AbacusAPIKey)
	assert.Equal(t, "dep-1", cfg.AbacusDeploymentID)
	assert.Equal(t, "tok-1", cfg.AbacusDeploymentToken)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.AllowedOrigins)
	assert.True(t, cfg.ExposeErrorDetails)
	assert.NoError(t, cfg.Validate())
}

func TestParse_FlagOverridesEnv(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":9000")

	cfg, err := Parse([]string{"--listen-addr", ":9100", "--a2a", "--a2a-port", "9200"})
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.ListenAddr)
	assert.True(t, cfg.A2AEnabled)
	assert.Equal(t, 9200, cfg.A2APort)
}

func TestParse_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
abacus_api_key: file-key
abacus_deployment_id: file-dep
request_timeout: 45s
allowed_origins:
  - http://ui.example
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("ABACUS_DEPLOYMENT_ID", "env-dep")

	cfg, err := Parse(nil)
	require.NoError(t, err)

	assert.Equal(t, "file-key", cfg.AbacusAPIKey)
	assert.Equal(t, "env-dep", cfg.AbacusDeploymentID, "environment wins over file")
	assert.Equal(t, 45*time.Second, cfg.RequestTimeout)
	assert.Equal(t, []string{"http://ui.example"}, cfg.AllowedOrigins)
}

func TestParse_MissingConfigFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := Parse(nil)
	assert.Error(t, err)
}

func TestValidate_MissingCredentials(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ABACUS_API_KEY")
	assert.Contains(t, err.Error(), "ABACUS_DEPLOYMENT_ID")
	assert.Contains(t, err.Error(), "ABACUS_DEPLOYMENT_TOKEN")
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    time.Duration
		wantErr bool
	}{
		{"parses duration", "3s", 3 * time.Second, false},
		{"zero is kept for Validate", "0s", 0, false},
		{"falls back on empty", "", time.Minute, false},
		{"rejects garbage", "soon", time.Minute, true},
		{"rejects missing unit", "2m30", time.Minute, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tc.value)
			got, err := getEnvDuration("TEST_DURATION", time.Minute)
			if tc.wantErr {
				assert.ErrorContains(t, err, "TEST_DURATION")
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParse_MalformedEnv(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT", "2m30")
	t.Setenv("A2A_PORT", "eighty")

	_, err := Parse(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REQUEST_TIMEOUT")
	assert.Contains(t, err.Error(), "A2A_PORT")
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{LogLevel: "warn", LogFormat: "json"}
	log := cfg.NewLogger(&buf)

	log.Info("hidden")
	log.Warn("shown", "k", "v")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"k":"v"`)
}
