package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"tabd/internal/constants"
)

// Load reads configuration from a TOML file, applies defaults and expands
// environment references.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	expandEnvVars(&cfg)

	return &cfg, nil
}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() []error {
	var errors []error

	if c.Crontab.Path == "" && c.Crontab.JobsDir == "" {
		errors = append(errors, fmt.Errorf("crontab.path or crontab.jobs_dir is required"))
	}
	if c.Crontab.Timezone != "" {
		if _, err := time.LoadLocation(c.Crontab.Timezone); err != nil {
			errors = append(errors, fmt.Errorf("invalid crontab.timezone: %s", c.Crontab.Timezone))
		}
	}

	switch c.Executor.Type {
	case "local":
	case "docker":
		if c.Executor.Docker.Image == "" {
			errors = append(errors, fmt.Errorf("executor.docker.image is required when executor type is 'docker'"))
		}
	default:
		errors = append(errors, fmt.Errorf("invalid executor.type: %s (expected: local, docker)", c.Executor.Type))
	}

	if c.Dispatch.PoolSize <= 0 {
		errors = append(errors, fmt.Errorf("dispatch.pool_size must be positive"))
	}
	if c.Dispatch.QueueSize <= 0 {
		errors = append(errors, fmt.Errorf("dispatch.queue_size must be positive"))
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errors = append(errors, fmt.Errorf("invalid logging.level: %s (expected: debug, info, warn, error)", c.Logging.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errors = append(errors, fmt.Errorf("invalid logging.format: %s (expected: json, text)", c.Logging.Format))
	}
	if c.Logging.Output == "" {
		errors = append(errors, fmt.Errorf("logging.output is required"))
	}

	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		errors = append(errors, fmt.Errorf("metrics.listen is required when metrics are enabled"))
	}

	return errors
}

// Location resolves the configured timezone, falling back to local time.
func (c *Config) Location() *time.Location {
	if c.Crontab.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Crontab.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func applyDefaults(c *Config) {
	if c.Crontab.Path == "" && c.Crontab.JobsDir == "" {
		c.Crontab.Path = constants.DefaultCrontabPath
	}

	if c.Executor.Type == "" {
		c.Executor.Type = "local"
	}

	if c.Dispatch.PoolSize == 0 {
		c.Dispatch.PoolSize = constants.DefaultPoolSize
	}
	if c.Dispatch.QueueSize == 0 {
		c.Dispatch.QueueSize = constants.DefaultQueueSize
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}

	if c.Metrics.Listen == "" {
		c.Metrics.Listen = ":9471"
	}
}

func expandEnvVars(c *Config) {
	c.Crontab.Path = expandEnv(c.Crontab.Path)
	c.Crontab.JobsDir = expandEnv(c.Crontab.JobsDir)
	c.Logging.Output = expandEnv(c.Logging.Output)
	c.Executor.Docker.Image = expandEnv(c.Executor.Docker.Image)
	c.Metrics.Listen = expandEnv(c.Metrics.Listen)
}
