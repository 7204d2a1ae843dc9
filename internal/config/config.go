package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
}

// Store contains SQLite record store settings.
type Store struct {
	BusyTimeoutMS int `toml:"busy_timeout_ms"`
}

// Jobs contains defaults applied to newly created jobs and dequeue limits.
type Jobs struct {
	DefaultMaxRetries   int `toml:"default_max_retries"`
	DefaultTimeEstimate int `toml:"default_time_estimate"`
	MaxTraversalDepth   int `toml:"max_traversal_depth"`
	ClaimAttempts       int `toml:"claim_attempts"`
}

// Worker contains polling worker settings. Intervals are in seconds.
// RateLimit caps claims per second across all lanes (0 disables it) and
// MetricsAddr, when set, serves Prometheus metrics while the worker runs.
type Worker struct {
	ID                 string  `toml:"id"`
	Queue              string  `toml:"queue"`
	Concurrency        int     `toml:"concurrency"`
	PollInterval       int     `toml:"poll_interval"`
	ErrorRetryInterval int     `toml:"error_retry_interval"`
	RateLimit          float64 `toml:"rate_limit"`
	RateBurst          int     `toml:"rate_burst"`
	MetricsAddr        string  `toml:"metrics_addr"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for bgjob.
//
// Configuration sections by subsystem:
//   - Paths: data directory holding the database, log file, and worker locks
//   - Store: SQLite busy timeout
//   - Jobs: retry and time estimate defaults, traversal and claim limits
//   - Worker: identity, queue, concurrency, and poll intervals
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	Store   Store   `toml:"store"`
	Jobs    Jobs    `toml:"jobs"`
	Worker  Worker  `toml:"worker"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigLocation)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigLocation)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs(projectConfigFileName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data and lock directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.LockDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DBPath returns the SQLite database location.
func (c *Config) DBPath() string {
	return filepath.Join(c.Paths.DataDir, databaseFileName)
}

// LogPath returns the log file location.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.DataDir, logFileName)
}

// LockDir returns the directory holding per-worker lock files.
func (c *Config) LockDir() string {
	return filepath.Join(c.Paths.DataDir, lockDirName)
}

// BusyTimeout returns the SQLite busy timeout as a duration.
func (c *Config) BusyTimeout() time.Duration {
	return time.Duration(c.Store.BusyTimeoutMS) * time.Millisecond
}

// PollInterval returns the worker idle poll interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Worker.PollInterval) * time.Second
}

// ErrorRetryInterval returns the pause after a failed poll.
func (c *Config) ErrorRetryInterval() time.Duration {
	return time.Duration(c.Worker.ErrorRetryInterval) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
