// Package config loads mount configuration from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/c2h5oh/datasize"
	"gopkg.in/yaml.v3"

	"devfs/internal/logging"
)

// DefaultMaxFileSize bounds the content buffer of a single file.
const DefaultMaxFileSize = 16 * datasize.MB

// Config holds everything needed to mount the device filesystem.
type Config struct {
	// Mount
	MountPoint string `yaml:"mount_point"`
	AllowOther bool   `yaml:"allow_other"`
	UID        uint32 `yaml:"uid"`
	GID        uint32 `yaml:"gid"`

	// Device document
	DocumentPath string `yaml:"document_path"`
	BackupCount  int    `yaml:"backup_count"`
	Restore      bool   `yaml:"restore"`

	// Content
	MaxFileSize datasize.ByteSize `yaml:"max_file_size"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	LogOutput string `yaml:"log_output"`

	// Metrics listener, empty disables it
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		UID:          safeIntToUint32(os.Getuid()),
		GID:          safeIntToUint32(os.Getgid()),
		DocumentPath: "devices.json",
		BackupCount:  5,
		Restore:      true,
		MaxFileSize:  DefaultMaxFileSize,
		LogLevel:     "info",
		LogFormat:    "console",
		LogOutput:    "stdout",
	}
}

// Load reads configuration with defaults, then the YAML file at path (if
// path is non-empty), then environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.MountPoint = envOr("DEVFS_MOUNT", c.MountPoint)
	c.DocumentPath = envOr("DEVFS_DOCUMENT", c.DocumentPath)
	c.LogLevel = envOr("LOG_LEVEL", c.LogLevel)
	c.LogFormat = envOr("LOG_FORMAT", c.LogFormat)
	c.LogOutput = envOr("LOG_OUTPUT", c.LogOutput)
	c.MetricsAddr = envOr("DEVFS_METRICS_ADDR", c.MetricsAddr)
	c.AllowOther = envBool("DEVFS_ALLOW_OTHER", c.AllowOther)
	c.Restore = envBool("DEVFS_RESTORE", c.Restore)

	if v := os.Getenv("DEVFS_BACKUP_COUNT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid DEVFS_BACKUP_COUNT %q: %w", v, err)
		}
		c.BackupCount = n
	}
	if v := os.Getenv("DEVFS_MAX_FILE_SIZE"); v != "" {
		var size datasize.ByteSize
		if err := size.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("invalid DEVFS_MAX_FILE_SIZE %q: %w", v, err)
		}
		c.MaxFileSize = size
	}

	// PUID/PGID for container setups
	if v := os.Getenv("PUID"); v != "" {
		if puid, err := strconv.ParseUint(v, 10, 32); err == nil {
			c.UID = uint32(puid)
		}
	}
	if v := os.Getenv("PGID"); v != "" {
		if pgid, err := strconv.ParseUint(v, 10, 32); err == nil {
			c.GID = uint32(pgid)
		}
	}
	return nil
}

// Validate checks the values that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error
	if c.DocumentPath == "" {
		errs = append(errs, errors.New("document_path is required"))
	}
	if c.BackupCount < 0 {
		errs = append(errs, fmt.Errorf("backup_count must not be negative, got %d", c.BackupCount))
	}
	if c.MaxFileSize == 0 {
		errs = append(errs, errors.New("max_file_size must be positive"))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format must be console or json, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// LoggingOptions converts the logging fields for logging.Configure.
func (c *Config) LoggingOptions() logging.Options {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		level = logging.LevelInfo
	}
	return logging.Options{
		Level:  level,
		Format: c.LogFormat,
		Output: c.LogOutput,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func safeIntToUint32(n int) uint32 {
	if n < 0 {
		return 0
	}
	return uint32(n)
}
