package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// rawEnv binds the daemon's environment variables. Fields with an
// explicit envconfig tag are read as-is; envconfig.Process is called
// with an empty prefix since every tag already names its full
// variable.
type rawEnv struct {
	SocketPath     string        `envconfig:"OMG_SOCKET_PATH"`
	DataDir        string        `envconfig:"OMG_DAEMON_DATA_DIR"`
	XDGRuntimeDir  string        `envconfig:"XDG_RUNTIME_DIR"`
	XDGDataHome    string        `envconfig:"XDG_DATA_HOME"`
	XDGConfigHome  string        `envconfig:"XDG_CONFIG_HOME"`
	LogLevel       string        `envconfig:"OMG_LOG_LEVEL" default:"info"`
	LogJSON        bool          `envconfig:"OMG_LOG_JSON" default:"false"`
	StatusInterval time.Duration `envconfig:"OMG_STATUS_INTERVAL" default:"30s"`
	DrainDeadline  time.Duration `envconfig:"OMG_DRAIN_DEADLINE" default:"10s"`
	RateLimit      int           `envconfig:"OMG_RATE_LIMIT_PER_SEC" default:"200"`
}

// Config holds the fully-resolved runtime paths and tunables the
// daemon uses. Unlike rawEnv, every path here is absolute and ready to
// use — precedence (explicit OMG_* override, then XDG, then the
// hardcoded fallback) has already been applied.
type Config struct {
	SocketPath     string
	PidfilePath    string
	DataDir        string
	StatusPath     string
	LogLevel       string
	LogJSON        bool
	StatusInterval time.Duration
	DrainDeadline  time.Duration
	RateLimit      int
}

// statusFileName is the fixed FastStatus file name under DataDir.
const statusFileName = "status.fast"

// dbFileName is PKV's own database file name; kept here only so doctor
// tooling can locate it next to the resolved DataDir.
const dbFileName = "omg.db"

// fileConfig is the shape of the optional omgd.yaml file: the same
// tunables as rawEnv, minus the XDG/OMG_* path inputs that only make
// sense as environment variables. Every field is optional; a file that
// sets only one knob is valid.
type fileConfig struct {
	SocketPath     string `yaml:"socket_path,omitempty"`
	DataDir        string `yaml:"data_dir,omitempty"`
	LogLevel       string `yaml:"log_level,omitempty"`
	LogJSON        *bool  `yaml:"log_json,omitempty"`
	StatusInterval string `yaml:"status_interval,omitempty"`
	DrainDeadline  string `yaml:"drain_deadline,omitempty"`
	RateLimit      int    `yaml:"rate_limit_per_sec,omitempty"`
}

// ConfigFilePath returns the optional omgd.yaml location: under
// XDG_CONFIG_HOME if set, else $HOME/.config/omg/omgd.yaml. The file
// need not exist — Load silently skips it when absent.
func ConfigFilePath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "omg", "omgd.yaml")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "omg", "omgd.yaml")
	}
	return filepath.Join(os.TempDir(), "omg", "omgd.yaml")
}

// applyFileOverrides reads path (if it exists) and, for each knob it
// sets, exports the corresponding OMG_* environment variable — but
// only when that variable isn't already set, so an explicit
// environment override always wins over the file: precedence is env
// var, then file, then default.
func applyFileOverrides(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	setIfUnset("OMG_SOCKET_PATH", fc.SocketPath)
	setIfUnset("OMG_DAEMON_DATA_DIR", fc.DataDir)
	setIfUnset("OMG_LOG_LEVEL", fc.LogLevel)
	if fc.LogJSON != nil {
		setIfUnset("OMG_LOG_JSON", strconv.FormatBool(*fc.LogJSON))
	}
	setIfUnset("OMG_STATUS_INTERVAL", fc.StatusInterval)
	setIfUnset("OMG_DRAIN_DEADLINE", fc.DrainDeadline)
	if fc.RateLimit > 0 {
		setIfUnset("OMG_RATE_LIMIT_PER_SEC", strconv.Itoa(fc.RateLimit))
	}
	return nil
}

// setIfUnset exports value under envVar unless envVar is already
// present and non-empty — an empty environment value is treated the
// same as absent throughout this package (see rawEnv/envconfig).
func setIfUnset(envVar, value string) {
	if value == "" {
		return
	}
	if cur, ok := os.LookupEnv(envVar); !ok || cur == "" {
		os.Setenv(envVar, value)
	}
}

// Load reads the optional omgd.yaml file, then the environment, and
// resolves every daemon path. Environment variables always take
// precedence over the file.
func Load() (*Config, error) {
	if err := applyFileOverrides(ConfigFilePath()); err != nil {
		return nil, err
	}

	// envconfig treats a set-but-empty variable as present (and cannot
	// parse "" as a bool, duration or int), so clear empty ones first to
	// let them fall back to their defaults like absent ones.
	for _, k := range []string{"OMG_SOCKET_PATH", "OMG_DAEMON_DATA_DIR", "XDG_RUNTIME_DIR", "XDG_DATA_HOME", "XDG_CONFIG_HOME", "OMG_LOG_LEVEL", "OMG_LOG_JSON", "OMG_STATUS_INTERVAL", "OMG_DRAIN_DEADLINE", "OMG_RATE_LIMIT_PER_SEC"} {
		if v, ok := os.LookupEnv(k); ok && v == "" {
			os.Unsetenv(k)
		}
	}

	var raw rawEnv
	if err := envconfig.Process("", &raw); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	socketPath := raw.SocketPath
	if socketPath == "" {
		if raw.XDGRuntimeDir != "" {
			socketPath = filepath.Join(raw.XDGRuntimeDir, "omg.sock")
		} else {
			socketPath = filepath.Join(os.TempDir(), "omg.sock")
		}
	}

	dataDir := raw.DataDir
	if dataDir == "" {
		if raw.XDGDataHome != "" {
			dataDir = filepath.Join(raw.XDGDataHome, "omg")
		} else if home, err := os.UserHomeDir(); err == nil {
			dataDir = filepath.Join(home, ".local", "share", "omg")
		} else {
			dataDir = filepath.Join(os.TempDir(), "omg")
		}
	}

	cfg := &Config{
		SocketPath:     socketPath,
		PidfilePath:    socketPath + ".pid",
		DataDir:        dataDir,
		StatusPath:     filepath.Join(dataDir, statusFileName),
		LogLevel:       raw.LogLevel,
		LogJSON:        raw.LogJSON,
		StatusInterval: raw.StatusInterval,
		DrainDeadline:  raw.DrainDeadline,
		RateLimit:      raw.RateLimit,
	}
	return cfg, nil
}

// DumpYAML renders the resolved configuration in the same shape Load
// reads back via ConfigFilePath, so `omgd doctor --dump-config` and a
// hand-edited omgd.yaml round-trip through the same fields.
func (c *Config) DumpYAML() ([]byte, error) {
	logJSON := c.LogJSON
	fc := fileConfig{
		SocketPath:     c.SocketPath,
		DataDir:        c.DataDir,
		LogLevel:       c.LogLevel,
		LogJSON:        &logJSON,
		StatusInterval: c.StatusInterval.String(),
		DrainDeadline:  c.DrainDeadline.String(),
		RateLimit:      c.RateLimit,
	}
	return yaml.Marshal(fc)
}

// DBPath is PKV's database file path under DataDir.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, dbFileName)
}

// EnsureDataDir creates DataDir (and any missing parents) with
// owner-only permissions.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0700)
}
