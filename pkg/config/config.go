// Package config provides configuration management for the retainer profiler.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Profile  ProfileConfig  `mapstructure:"profile"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Log      LogConfig      `mapstructure:"log"`
}

// ProfileConfig holds retainer-pass configuration.
type ProfileConfig struct {
	Version        string `mapstructure:"version"`
	Scheme         string `mapstructure:"scheme"` // info, ccs or cc
	StackChunkSize int    `mapstructure:"stack_chunk_size"`
	MaxStackChunks int    `mapstructure:"max_stack_chunks"` // 0 is unbounded
	Validate       bool   `mapstructure:"validate"`
	ResetStatics   bool   `mapstructure:"reset_statics"`
	CensusTop      int    `mapstructure:"census_top"`
	OutputDir      string `mapstructure:"output_dir"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Type     string `mapstructure:"type"` // sqlite, postgres or mysql
	Path     string `mapstructure:"path"` // sqlite file, ":memory:" allowed
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	MaxConns int    `mapstructure:"max_conns"`
}

// StorageConfig holds object storage configuration.
type StorageConfig struct {
	Type      string `mapstructure:"type"` // cos, local, or empty for none
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	SecretID  string `mapstructure:"secret_id"`
	SecretKey string `mapstructure:"secret_key"`
	Domain    string `mapstructure:"domain"`     // e.g., "myqcloud.com"
	Scheme    string `mapstructure:"scheme"`     // e.g., "https" or "http"
	LocalPath string `mapstructure:"local_path"` // for local storage
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"` // empty logs to stdout
}

// Load reads configuration from the specified file path. A missing file
// leaves the defaults in place. RETAINER_PROF_* environment variables
// override file values, e.g. RETAINER_PROF_PROFILE_SCHEME.
func Load(configPath string) (*Config, error) {
	v := newViper()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/retainer-prof")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return decode(v)
}

// LoadFromReader loads configuration from in-memory content (useful for testing).
func LoadFromReader(configType string, content []byte) (*Config, error) {
	v := newViper()
	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("RETAINER_PROF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("profile.version", "1.0.0")
	v.SetDefault("profile.scheme", "info")
	v.SetDefault("profile.stack_chunk_size", 1024)
	v.SetDefault("profile.max_stack_chunks", 0)
	v.SetDefault("profile.validate", false)
	v.SetDefault("profile.reset_statics", false)
	v.SetDefault("profile.census_top", 20)
	v.SetDefault("profile.output_dir", "./output")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.path", "./retainer-prof.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.max_conns", 10)

	// no upload unless a backend is configured
	v.SetDefault("storage.type", "")
	v.SetDefault("storage.local_path", "./storage")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.output_path", "")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Profile.Scheme) {
	case "info", "ccs", "cc":
	default:
		return fmt.Errorf("unsupported retainer scheme: %s", c.Profile.Scheme)
	}
	if c.Profile.StackChunkSize < 1 {
		return fmt.Errorf("stack chunk size must be at least 1")
	}
	if c.Profile.MaxStackChunks < 0 {
		return fmt.Errorf("max stack chunks must not be negative")
	}

	if c.Database.Enabled {
		switch c.Database.Type {
		case "sqlite":
			if c.Database.Path == "" {
				return fmt.Errorf("sqlite database path is required")
			}
		case "postgres", "mysql":
			if c.Database.Host == "" {
				return fmt.Errorf("database host is required")
			}
		default:
			return fmt.Errorf("unsupported database type: %s", c.Database.Type)
		}
	}

	// Storage config validation is delegated to storage package
	return nil
}

// EnsureOutputDir creates the output directory if it doesn't exist.
func (c *Config) EnsureOutputDir() error {
	if c.Profile.OutputDir == "" {
		return nil
	}
	return os.MkdirAll(c.Profile.OutputDir, 0755)
}

// GetTaskDir returns the task-specific output directory path.
func (c *Config) GetTaskDir(taskUUID string) string {
	return filepath.Join(c.Profile.OutputDir, taskUUID)
}
