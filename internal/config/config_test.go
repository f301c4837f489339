package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "DB_PATH", "LOG_DIR", "PTYHOST_CONFIG_FILE", "PTYHOST_ADDR",
		"PTYHOST_MAX_SESSIONS", "PTYHOST_SHELL", "PTYHOST_HELPER", "PTYHOST_COLS",
		"PTYHOST_ROWS", "PTYHOST_LOG_LEVEL", "PTYHOST_LOG_FORMAT",
		"PTYHOST_RING_BUFFER_SIZE", "PTYHOST_DRAIN_TIMEOUT",
	} {
		t.Setenv(key, "")
	}
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ptyhost.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Addr)
	require.Equal(t, 10, cfg.MaxSessions)
	require.Equal(t, 80, cfg.Cols)
	require.Equal(t, 24, cfg.Rows)
	require.Equal(t, 200*time.Millisecond, cfg.DrainTimeout)
	require.NotEmpty(t, cfg.DefaultShell)
	require.NoError(t, cfg.Validate())
}

func TestLoadLayers(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
addr: ":9000"
db_path: /tmp/x.db
max_sessions: 4
cols: 132
rows: 43
log_format: json
drain_timeout: 1s
`)
	t.Setenv("PTYHOST_MAX_SESSIONS", "7")
	t.Setenv("LOG_DIR", "/var/log/ptyhost")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.Addr)
	require.Equal(t, "/tmp/x.db", cfg.DBPath)
	require.Equal(t, 7, cfg.MaxSessions, "environment overrides the file")
	require.Equal(t, "/var/log/ptyhost", cfg.LogDir)
	require.Equal(t, 132, cfg.Cols)
	require.Equal(t, 43, cfg.Rows)
	require.Equal(t, "json", cfg.LogFormat)
	require.Equal(t, time.Second, cfg.DrainTimeout)

	t.Setenv("PORT", "7070")
	cfg, err = Load(path)
	require.NoError(t, err)
	require.Equal(t, ":7070", cfg.Addr)
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err, "an explicit file must exist")

	_, err = Load(writeFile(t, "max_sessions: [1, 2]"))
	require.Error(t, err)

	_, err = Load(writeFile(t, "drain_timeout: soon"))
	require.Error(t, err)

	t.Setenv("PTYHOST_COLS", "wide")
	_, err = Load(writeFile(t, ""))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero sessions", func(c *Config) { c.MaxSessions = 0 }},
		{"zero cols", func(c *Config) { c.Cols = 0 }},
		{"huge rows", func(c *Config) { c.Rows = 70000 }},
		{"zero ring buffer", func(c *Config) { c.RingBufferSize = 0 }},
		{"negative drain", func(c *Config) { c.DrainTimeout = -time.Second }},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
