// Package config loads application configuration from a YAML file with
// STOCKPILOT_* environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// keyReplacer maps nested keys to env var segments, e.g.
// remote.base_url -> STOCKPILOT_REMOTE_BASE_URL.
var keyReplacer = strings.NewReplacer(".", "_")

type Config struct {
	UserID       string             `mapstructure:"user_id"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Remote       RemoteConfig       `mapstructure:"remote"`
	Sync         SyncConfig         `mapstructure:"sync"`
	Connectivity ConnectivityConfig `mapstructure:"connectivity"`
	Dashboard    DashboardConfig    `mapstructure:"dashboard"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type RemoteConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Timeout string `mapstructure:"timeout"`
}

func (r RemoteConfig) GetTimeout() time.Duration {
	d, _ := time.ParseDuration(r.Timeout)
	return d
}

type SyncConfig struct {
	Interval   string `mapstructure:"interval"`
	MaxRetries int    `mapstructure:"max_retries"`
}

func (s SyncConfig) GetInterval() time.Duration {
	d, _ := time.ParseDuration(s.Interval)
	return d
}

type ConnectivityConfig struct {
	Interval         string `mapstructure:"interval"`
	FailureThreshold int    `mapstructure:"failure_threshold"`
	ProbeTimeout     string `mapstructure:"probe_timeout"`
}

func (c ConnectivityConfig) GetInterval() time.Duration {
	d, _ := time.ParseDuration(c.Interval)
	return d
}

func (c ConnectivityConfig) GetProbeTimeout() time.Duration {
	d, _ := time.ParseDuration(c.ProbeTimeout)
	return d
}

type DashboardConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	FileEnable bool   `mapstructure:"file_enable"`
}

// Load reads the config file at path. An empty path falls back to
// stockpilot.yaml in the working directory; a missing file yields the
// defaults. Environment variables like STOCKPILOT_REMOTE_BASE_URL
// override file values.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("user_id", "default")
	v.SetDefault("database.path", "stockpilot.db")
	v.SetDefault("remote.base_url", "http://localhost:9000")
	v.SetDefault("remote.timeout", "10s")
	v.SetDefault("sync.interval", "30s")
	v.SetDefault("sync.max_retries", 3)
	v.SetDefault("connectivity.interval", "10s")
	v.SetDefault("connectivity.failure_threshold", 2)
	v.SetDefault("connectivity.probe_timeout", "5s")
	v.SetDefault("dashboard.enabled", false)
	v.SetDefault("dashboard.port", 8080)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "stockpilot.log")
	v.SetDefault("logging.file_enable", false)

	v.SetEnvPrefix("STOCKPILOT")
	v.SetEnvKeyReplacer(keyReplacer)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("stockpilot")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			// No file is fine, defaults and env apply.
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
