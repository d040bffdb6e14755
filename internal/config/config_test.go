package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "acdc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadClient_Defaults(t *testing.T) {
	t.Setenv("ACDC_URL", "")
	t.Setenv("ACDC_SCHEMA", "")
	cfg, err := LoadClient(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/acdc/api", cfg.URL)
	assert.Equal(t, "FAST", cfg.Schema)
	assert.Equal(t, time.Second, cfg.Debounce)
	assert.Equal(t, 500*time.Millisecond, cfg.Reconnect.Initial)
	assert.Equal(t, uint64(10), cfg.Reconnect.MaxAttempts)
}

func TestLoadClient_FileAndEnv(t *testing.T) {
	path := writeFile(t, `
url: http://turbines:9000/acdc/api
schema: ElastoDyn
debounce: 250ms
reconnect:
  initial: 1s
  max: 1m
  max_attempts: 3
metrics_addr: ":9101"
`)
	t.Setenv("ACDC_URL", "")
	t.Setenv("ACDC_SCHEMA", "AeroDyn15")

	cfg, err := LoadClient(path)
	require.NoError(t, err)
	assert.Equal(t, "http://turbines:9000/acdc/api", cfg.URL)
	assert.Equal(t, "AeroDyn15", cfg.Schema)
	assert.Equal(t, 250*time.Millisecond, cfg.Debounce)
	assert.Equal(t, time.Minute, cfg.Reconnect.Max)
	assert.Equal(t, uint64(3), cfg.Reconnect.MaxAttempts)
	assert.Equal(t, ":9101", cfg.MetricsAddr)
}

func TestLoadClient_Invalid(t *testing.T) {
	t.Setenv("ACDC_SCHEMA", "")
	tests := []struct {
		name string
		body string
		env  string
	}{
		{"bad scheme", "", "ftp://host/api"},
		{"backoff max below initial", "reconnect:\n  initial: 10s\n  max: 1s\n", ""},
		{"jitter", "reconnect:\n  jitter_percent: 150\n", ""},
		{"yaml", "url: [", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ACDC_URL", tt.env)
			_, err := LoadClient(writeFile(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestServerFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ACDC_ROOT", "/srv/acdc")
	t.Setenv("ACDC_SCHEMA_DIR", "")
	t.Setenv("ACDC_MAX_UPLOAD", "1048576")
	t.Setenv("ACDC_EVAL_STEP", "50ms")

	cfg, err := ServerFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "/srv/acdc", cfg.Root)
	assert.Equal(t, int64(1<<20), cfg.MaxUpload)
	assert.Equal(t, 50*time.Millisecond, cfg.EvalStep)

	t.Setenv("PORT", "http")
	_, err = ServerFromEnv()
	assert.Error(t, err)
}
