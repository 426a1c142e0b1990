package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func clearOMGEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"OMG_SOCKET_PATH", "OMG_DAEMON_DATA_DIR", "XDG_RUNTIME_DIR",
		"XDG_DATA_HOME", "XDG_CONFIG_HOME", "OMG_LOG_LEVEL", "OMG_LOG_JSON",
		"OMG_STATUS_INTERVAL", "OMG_DRAIN_DEADLINE", "OMG_RATE_LIMIT_PER_SEC",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_ExplicitOverrideWins(t *testing.T) {
	clearOMGEnv(t)
	t.Setenv("OMG_SOCKET_PATH", "/custom/omg.sock")
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/custom/omg.sock", cfg.SocketPath)
	assert.Equal(t, "/custom/omg.sock.pid", cfg.PidfilePath)
}

func TestLoad_FallsBackToXDGRuntimeDir(t *testing.T) {
	clearOMGEnv(t)
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/run/user/1000/omg.sock", cfg.SocketPath)
}

func TestLoad_DataDirFromXDGDataHome(t *testing.T) {
	clearOMGEnv(t)
	t.Setenv("XDG_DATA_HOME", "/home/user/.local/share")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/home/user/.local/share/omg", cfg.DataDir)
	assert.Equal(t, filepath.Join(cfg.DataDir, "status.fast"), cfg.StatusPath)
}

func TestLoad_DefaultsPopulated(t *testing.T) {
	clearOMGEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 200, cfg.RateLimit)
}

func TestLoad_AppliesFileOverrideWhenEnvUnset(t *testing.T) {
	clearOMGEnv(t)
	xdgConfig := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdgConfig)

	path := ConfigFilePath()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
	require.NoError(t, os.WriteFile(path, []byte("socket_path: /from/file/omg.sock\nrate_limit_per_sec: 77\n"), 0600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/from/file/omg.sock", cfg.SocketPath)
	assert.Equal(t, 77, cfg.RateLimit)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearOMGEnv(t)
	xdgConfig := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdgConfig)
	t.Setenv("OMG_SOCKET_PATH", "/from/env/omg.sock")

	path := ConfigFilePath()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
	require.NoError(t, os.WriteFile(path, []byte("socket_path: /from/file/omg.sock\n"), 0600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/from/env/omg.sock", cfg.SocketPath)
}

func TestConfig_DumpYAMLRoundTrips(t *testing.T) {
	clearOMGEnv(t)
	cfg, err := Load()
	require.NoError(t, err)

	data, err := cfg.DumpYAML()
	require.NoError(t, err)

	var fc fileConfig
	require.NoError(t, yaml.Unmarshal(data, &fc))
	assert.Equal(t, cfg.SocketPath, fc.SocketPath)
	assert.Equal(t, cfg.RateLimit, fc.RateLimit)
}
