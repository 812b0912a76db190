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

// SourceType identifies the media server backend
type SourceType string

const (
	SourceTypeJellyfin SourceType = "jellyfin"
	SourceTypePlex     SourceType = "plex" // detected, not supported
)

// Subtitle selection modes
const (
	SubtitleModeNone       = "none"
	SubtitleModeAlways     = "always"
	SubtitleModeDefault    = "default"
	SubtitleModeSmart      = "smart"
	SubtitleModeOnlyForced = "only_forced"
)

// Config holds all application configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Suggestions SuggestionsConfig `mapstructure:"suggestions"`
	Client      ClientConfig      `mapstructure:"client"`
	Playback    PlaybackConfig    `mapstructure:"playback"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

// ServerConfig identifies the server and the signed-in user. The token itself
// lives in the session store, not here.
type ServerConfig struct {
	Type     SourceType `mapstructure:"type"`
	URL      string     `mapstructure:"url"`
	ServerID string     `mapstructure:"server_id"`
	UserID   string     `mapstructure:"user_id"`
	Username string     `mapstructure:"username"`
}

// SuggestionsConfig tunes the background suggestion pipeline
type SuggestionsConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	InitialDelay    time.Duration `mapstructure:"initial_delay"` // used when the cache already has data
	MemoryEntries   int           `mapstructure:"memory_entries"`
	SeedLimit       int           `mapstructure:"seed_limit"`
	ContextualLimit int           `mapstructure:"contextual_limit"`
	RandomLimit     int           `mapstructure:"random_limit"`
	FreshLimit      int           `mapstructure:"fresh_limit"`
	Concurrency     int           `mapstructure:"concurrency"`
}

// ClientConfig controls how hard we lean on the server
type ClientConfig struct {
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	BreakerFailures   uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout    time.Duration `mapstructure:"breaker_timeout"`
}

// PlaybackConfig holds track preferences
type PlaybackConfig struct {
	AudioLanguage    string `mapstructure:"audio_language"`
	SubtitleLanguage string `mapstructure:"subtitle_language"`
	SubtitleMode     string `mapstructure:"subtitle_mode"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// CacheConfig locates the durable cache. An empty dir keeps everything in memory.
type CacheConfig struct {
	Dir string `mapstructure:"dir"`
}

// MetricsConfig holds the Prometheus listener address; empty disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Type: SourceTypeJellyfin,
		},
		Suggestions: SuggestionsConfig{
			Interval:        12 * time.Hour,
			InitialDelay:    30 * time.Second,
			MemoryEntries:   8,
			SeedLimit:       3,
			ContextualLimit: 12,
			RandomLimit:     8,
			FreshLimit:      8,
			Concurrency:     2,
		},
		Client: ClientConfig{
			Timeout:           60 * time.Second,
			RequestsPerSecond: 10,
			Burst:             5,
			BreakerFailures:   5,
			BreakerTimeout:    30 * time.Second,
		},
		Playback: PlaybackConfig{
			AudioLanguage:    "en",
			SubtitleLanguage: "en",
			SubtitleMode:     SubtitleModeSmart,
		},
		Logging: LoggingConfig{
			File:  defaultLogPath(),
			Level: "INFO",
		},
		Cache: CacheConfig{
			Dir: defaultCachePath(),
		},
	}
}

// defaultLogPath returns the default log file path for the current OS
func defaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "kinotv", "kinotv.log")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "kinotv", "kinotv.log")
	}
}

// DefaultConfigDir returns the default config directory for the current OS
func DefaultConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "kinotv")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "kinotv")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "kinotv")
	}
}

// defaultCachePath returns the default cache directory path for the current OS
func defaultCachePath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "kinotv", "cache")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "kinotv", "cache")
	}
}

// setDefaults registers every default with v so env overrides and
// Unmarshal see the full key set.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("server.type", cfg.Server.Type)
	v.SetDefault("server.url", cfg.Server.URL)
	v.SetDefault("server.server_id", cfg.Server.ServerID)
	v.SetDefault("server.user_id", cfg.Server.UserID)
	v.SetDefault("server.username", cfg.Server.Username)

	v.SetDefault("suggestions.interval", cfg.Suggestions.Interval)
	v.SetDefault("suggestions.initial_delay", cfg.Suggestions.InitialDelay)
	v.SetDefault("suggestions.memory_entries", cfg.Suggestions.MemoryEntries)
	v.SetDefault("suggestions.seed_limit", cfg.Suggestions.SeedLimit)
	v.SetDefault("suggestions.contextual_limit", cfg.Suggestions.ContextualLimit)
	v.SetDefault("suggestions.random_limit", cfg.Suggestions.RandomLimit)
	v.SetDefault("suggestions.fresh_limit", cfg.Suggestions.FreshLimit)
	v.SetDefault("suggestions.concurrency", cfg.Suggestions.Concurrency)

	v.SetDefault("client.timeout", cfg.Client.Timeout)
	v.SetDefault("client.requests_per_second", cfg.Client.RequestsPerSecond)
	v.SetDefault("client.burst", cfg.Client.Burst)
	v.SetDefault("client.breaker_failures", cfg.Client.BreakerFailures)
	v.SetDefault("client.breaker_timeout", cfg.Client.BreakerTimeout)

	v.SetDefault("playback.audio_language", cfg.Playback.AudioLanguage)
	v.SetDefault("playback.subtitle_language", cfg.Playback.SubtitleLanguage)
	v.SetDefault("playback.subtitle_mode", cfg.Playback.SubtitleMode)

	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("cache.dir", cfg.Cache.Dir)
	v.SetDefault("metrics.addr", cfg.Metrics.Addr)
}

// Load reads configuration into v from configFile (or the default config
// directory when empty) and KINOTV_* environment variables.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	cfg := DefaultConfig()
	setDefaults(v, cfg)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(DefaultConfigDir())
	}

	// KINOTV_SERVER_URL overrides server.url
	v.SetEnvPrefix("KINOTV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(configFile != "" && errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Playback.SubtitleMode {
	case SubtitleModeNone, SubtitleModeAlways, SubtitleModeDefault, SubtitleModeSmart, SubtitleModeOnlyForced:
	default:
		return fmt.Errorf("invalid playback.subtitle_mode %q", c.Playback.SubtitleMode)
	}
	if c.Suggestions.Interval <= 0 {
		return fmt.Errorf("suggestions.interval must be positive")
	}
	if c.Suggestions.InitialDelay < 0 {
		return fmt.Errorf("suggestions.initial_delay must not be negative")
	}
	if c.Server.Type != "" && c.Server.Type != SourceTypeJellyfin {
		return fmt.Errorf("unsupported server type %q", c.Server.Type)
	}
	return nil
}

// SaveServer writes the server section through v to the file v was loaded
// from, or to config.yaml in the default config directory.
func SaveServer(v *viper.Viper, server ServerConfig) error {
	v.Set("server.type", server.Type)
	v.Set("server.url", server.URL)
	v.Set("server.server_id", server.ServerID)
	v.Set("server.user_id", server.UserID)
	v.Set("server.username", server.Username)
	return write(v)
}

// ClearServer removes the signed-in user while preserving other settings.
func ClearServer(v *viper.Viper) error {
	return SaveServer(v, ServerConfig{Type: SourceTypeJellyfin})
}

func write(v *viper.Viper) error {
	configFile := v.ConfigFileUsed()
	if configFile == "" {
		configFile = filepath.Join(DefaultConfigDir(), "config.yaml")
	}

	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := v.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// IsConfigured returns true if a server and user are set
func (c *Config) IsConfigured() bool {
	return c.Server.URL != "" && c.Server.UserID != "" && c.Server.ServerID != ""
}

// ExpandHome expands a leading ~ to the user's home directory.
func ExpandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, path[1:]), nil
}
