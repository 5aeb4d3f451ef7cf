// Package config provides configuration loading and validation for tabd.
// It supports TOML configuration files with environment variable expansion,
// default values, and validation.
//
// Configuration structure:
//   - [crontab]: job table path, manifest directory, timezone
//   - [executor]: executor selection and docker settings
//   - [dispatch]: worker pool sizing
//   - [logging]: level, format, and output
//   - [metrics]: Prometheus listener
//
// String values may reference environment variables using ${VAR} or
// ${VAR:default} syntax.
package config

// Config represents the main daemon configuration.
type Config struct {
	Crontab  CrontabConfig  `toml:"crontab"`
	Executor ExecutorConfig `toml:"executor"`
	Dispatch DispatchConfig `toml:"dispatch"`
	Logging  LoggingConfig  `toml:"logging"`
	Metrics  MetricsConfig  `toml:"metrics"`
}

// CrontabConfig locates the job table and controls recurrence evaluation.
type CrontabConfig struct {
	Path     string `toml:"path"`
	JobsDir  string `toml:"jobs_dir"` // optional directory of YAML manifests
	Timezone string `toml:"timezone"` // IANA name; empty means local time
}

// ExecutorConfig selects and configures the external executor.
type ExecutorConfig struct {
	Type   string       `toml:"type"` // "local" or "docker"
	Docker DockerConfig `toml:"docker"`
}

// DockerConfig describes job containers.
type DockerConfig struct {
	Image       string   `toml:"image"`
	MemoryLimit string   `toml:"memory_limit"`
	CPULimit    float64  `toml:"cpu_limit"`
	PidsLimit   int64    `toml:"pids_limit"`
	SecurityOpt []string `toml:"security_opt"`
}

// DispatchConfig sizes the dispatch worker pool.
type DispatchConfig struct {
	PoolSize  int `toml:"pool_size"`
	QueueSize int `toml:"queue_size"`
}

// LoggingConfig mirrors logger.Config.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}

// MetricsConfig controls the optional Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}
