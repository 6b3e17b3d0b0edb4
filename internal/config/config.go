// Package config holds the TOML settings file and its load/save cycle.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultNominalFPS       = 30
	DefaultCacheMaxEntries  = 100
	DefaultCacheMaxMemoryMB = 50
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
	DefaultMonitorInterval  = 2 * time.Second
)

// Config is the settings file at <configDir>/shimeji.toml.
type Config struct {
	Version string `toml:"version"`

	// AssetsDir overrides assets discovery. Empty means walk up from the
	// working directory looking for an assets folder.
	AssetsDir string `toml:"assetsDir"`

	NominalFPS       int `toml:"nominalFps"`
	CacheMaxEntries  int `toml:"cacheMaxEntries"`
	CacheMaxMemoryMB int `toml:"cacheMaxMemoryMb"`

	LogLevel  string `toml:"logLevel"`
	LogFormat string `toml:"logFormat"`

	MonitorInterval time.Duration `toml:"monitorInterval"`

	// MetricsAddr enables the Prometheus endpoint when non-empty, e.g.
	// "localhost:9090".
	MetricsAddr string `toml:"metricsAddr"`

	Mute bool `toml:"mute"`

	WriteDerived bool `toml:"writeDerived"`
}

// Default returns a config with every field populated.
func Default() Config {
	return Config{
		Version:          "1.0",
		NominalFPS:       DefaultNominalFPS,
		CacheMaxEntries:  DefaultCacheMaxEntries,
		CacheMaxMemoryMB: DefaultCacheMaxMemoryMB,
		LogLevel:         DefaultLogLevel,
		LogFormat:        DefaultLogFormat,
		MonitorInterval:  DefaultMonitorInterval,
		WriteDerived:     true,
	}
}

// CacheMaxBytes converts the configured memory bound to bytes.
func (c *Config) CacheMaxBytes() int64 {
	return int64(c.CacheMaxMemoryMB) << 20
}

// Path returns the default settings location under the user config
// directory.
func Path() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = "."
	}
	return filepath.Join(base, "shimeji", "shimeji.toml")
}

// Load reads the settings file. A missing file yields the defaults;
// present fields override them, absent fields keep them.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	if c.NominalFPS <= 0 {
		c.NominalFPS = DefaultNominalFPS
	}
	if c.CacheMaxEntries <= 0 {
		c.CacheMaxEntries = DefaultCacheMaxEntries
	}
	if c.CacheMaxMemoryMB <= 0 {
		c.CacheMaxMemoryMB = DefaultCacheMaxMemoryMB
	}
	if c.MonitorInterval <= 0 {
		c.MonitorInterval = DefaultMonitorInterval
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
}

// Save writes the settings file, creating parent directories as needed.
func Save(cfg Config, path string) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Init writes a default settings file unless one already exists.
func Init(path string) (Config, error) {
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}
	cfg := Default()
	if err := Save(cfg, path); err != nil {
		return cfg, err
	}
	return cfg, nil
}
