package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/tally/internal/constants"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv(constants.APIURLEnvVar, "")
	t.Setenv(constants.DatabaseEnvVar, "")
	t.Setenv(constants.DebugEnvVar, "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, constants.DefaultAPIURL, cfg.APIURL)
	assert.Equal(t, constants.DefaultHTTPTimeout, cfg.Timeout)
	assert.Equal(t, constants.DefaultMaxAttempts, cfg.MaxAttempts)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	t.Setenv(constants.APIURLEnvVar, "")
	t.Setenv(constants.DatabaseEnvVar, "")
	t.Setenv(constants.DebugEnvVar, "")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api_url: https://example.test/
database: `+filepath.Join(dir, "t.db")+`
timeout: 5s
max_attempts: 3
debug: true
`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://example.test", cfg.APIURL)
	assert.Equal(t, filepath.Join(dir, "t.db"), cfg.Database)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.True(t, cfg.Debug)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api_ulr: https://typo.test\n"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(constants.APIURLEnvVar, "http://localhost:8080")
	t.Setenv(constants.DatabaseEnvVar, "/tmp/env.db")
	t.Setenv(constants.DebugEnvVar, "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.APIURL)
	assert.Equal(t, "/tmp/env.db", cfg.Database)
	assert.True(t, cfg.Debug)
}

func TestEnvDebugInvalid(t *testing.T) {
	t.Setenv(constants.DebugEnvVar, "sometimes")

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv(constants.APIURLEnvVar, "")
	t.Setenv(constants.DatabaseEnvVar, "")
	t.Setenv(constants.DebugEnvVar, "")

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.APIURL = "https://saved.test"
	cfg.MaxAttempts = 4

	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://saved.test", loaded.APIURL)
	assert.Equal(t, 4, loaded.MaxAttempts)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"ftp scheme", func(c *Config) { c.APIURL = "ftp://x.test" }, true},
		{"no host", func(c *Config) { c.APIURL = "https://" }, true},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, true},
		{"negative attempts", func(c *Config) { c.MaxAttempts = -1 }, true},
		{"empty database", func(c *Config) { c.Database = " " }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".config/tally"), ExpandPath("~/.config/tally"))
	assert.Equal(t, "/abs/path", ExpandPath("/abs/path"))
	assert.Equal(t, "", ExpandPath(""))
}
