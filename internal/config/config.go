package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds backend connection settings
type ServerConfig struct {
	URL               string        `mapstructure:"url"`
	Token             string        `mapstructure:"token"`
	TokenFile         string        `mapstructure:"token_file"` // takes precedence over token when set
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"` // 0 disables rate limiting
	Burst             int           `mapstructure:"burst"`
}

// CacheConfig holds client-side cache settings
type CacheConfig struct {
	Dir            string        `mapstructure:"dir"` // list snapshot directory, empty for memory only
	StaleTime      time.Duration `mapstructure:"stale_time"`
	RefetchOnFocus bool          `mapstructure:"refetch_on_focus"`
	PageSize       int           `mapstructure:"page_size"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Timeout:           30 * time.Second,
			MaxRetries:        3,
			RequestsPerSecond: 10,
			Burst:             5,
		},
		Cache: CacheConfig{
			Dir:            defaultCachePath(),
			StaleTime:      time.Minute,
			RefetchOnFocus: false,
			PageSize:       10,
		},
		Logging: LoggingConfig{
			File:  defaultLogPath(),
			Level: "INFO",
		},
	}
}

// defaultLogPath returns the default log file path for the current OS
func defaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "folio", "folio.log")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "folio", "folio.log")
	}
}

// DefaultConfigPath returns the default config directory for the current OS
func DefaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "folio")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "folio")
	}
}

// defaultCachePath returns the default cache directory path for the current OS
func defaultCachePath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "folio", "cache")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "folio", "cache")
	}
}

var envKeyReplacer = strings.NewReplacer(".", "_")

func newViper(dirs ...string) *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, d := range dirs {
		v.AddConfigPath(d)
	}

	// Environment variable overrides, e.g. FOLIO_SERVER_URL
	v.SetEnvPrefix("FOLIO")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	// Defaults are registered so environment overrides of nested keys are
	// seen by Unmarshal.
	def := DefaultConfig()
	v.SetDefault("server.url", def.Server.URL)
	v.SetDefault("server.token", def.Server.Token)
	v.SetDefault("server.token_file", def.Server.TokenFile)
	v.SetDefault("server.timeout", def.Server.Timeout)
	v.SetDefault("server.max_retries", def.Server.MaxRetries)
	v.SetDefault("server.requests_per_second", def.Server.RequestsPerSecond)
	v.SetDefault("server.burst", def.Server.Burst)
	v.SetDefault("cache.dir", def.Cache.Dir)
	v.SetDefault("cache.stale_time", def.Cache.StaleTime)
	v.SetDefault("cache.refetch_on_focus", def.Cache.RefetchOnFocus)
	v.SetDefault("cache.page_size", def.Cache.PageSize)
	v.SetDefault("logging.file", def.Logging.File)
	v.SetDefault("logging.level", def.Logging.Level)
	return v
}

// LoadConfig loads configuration from the default locations and environment
func LoadConfig() (*Config, error) {
	return Load(DefaultConfigPath(), ".")
}

// Load reads config.yaml from the first of dirs that has one. A missing
// file is not an error.
func Load(dirs ...string) (*Config, error) {
	v := newViper(dirs...)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to config.yaml in dir, or the default location when
// dir is empty
func SaveConfig(cfg *Config, dir string) error {
	if dir == "" {
		dir = DefaultConfigPath()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.Set("server.url", cfg.Server.URL)
	v.Set("server.token", cfg.Server.Token)
	v.Set("server.token_file", cfg.Server.TokenFile)
	v.Set("server.timeout", cfg.Server.Timeout.String())
	v.Set("server.max_retries", cfg.Server.MaxRetries)
	v.Set("server.requests_per_second", cfg.Server.RequestsPerSecond)
	v.Set("server.burst", cfg.Server.Burst)

	v.Set("cache.dir", cfg.Cache.Dir)
	v.Set("cache.stale_time", cfg.Cache.StaleTime.String())
	v.Set("cache.refetch_on_focus", cfg.Cache.RefetchOnFocus)
	v.Set("cache.page_size", cfg.Cache.PageSize)

	v.Set("logging.file", cfg.Logging.File)
	v.Set("logging.level", cfg.Logging.Level)

	configFile := filepath.Join(dir, "config.yaml")
	if err := v.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveToken updates just the token in the configuration at dir
func SaveToken(token, dir string) error {
	if dir == "" {
		dir = DefaultConfigPath()
	}
	cfg, err := Load(dir)
	if err != nil {
		return err
	}
	cfg.Server.Token = token
	return SaveConfig(cfg, dir)
}

// IsConfigured returns true if the server URL and a credential are set
func (c *Config) IsConfigured() bool {
	return c.Server.URL != "" && (c.Server.Token != "" || c.Server.TokenFile != "")
}

// ClearCache removes all persisted list snapshots
func (c *Config) ClearCache() error {
	if c.Cache.Dir == "" {
		return nil
	}
	if err := os.RemoveAll(c.Cache.Dir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}
