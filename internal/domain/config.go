package domain

import (
	"log/slog"
	"time"
)

type Config struct {
	DataDir  string       `json:"data_dir" yaml:"data_dir"`
	InMemory bool         `json:"in_memory" yaml:"in_memory"`
	Logger   *slog.Logger `json:"-" yaml:"-"`

	Engine  EngineConfig  `json:"engine" yaml:"engine"`
	Storage StorageConfig `json:"storage" yaml:"storage"`
	HTTP    HTTPConfig    `json:"http" yaml:"http"`
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`
}

type EngineConfig struct {
	// MaxConcurrentNodes bounds each ready batch; 0 means unbounded.
	MaxConcurrentNodes int           `json:"max_concurrent_nodes" yaml:"max_concurrent_nodes"`
	DefaultTimeout     time.Duration `json:"default_timeout" yaml:"default_timeout"`
	ShutdownTimeout    time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
	PersistCheckpoints bool          `json:"persist_checkpoints" yaml:"persist_checkpoints"`
}

type StorageConfig struct {
	SyncWrites     bool          `json:"sync_writes" yaml:"sync_writes"`
	GCInterval     time.Duration `json:"gc_interval" yaml:"gc_interval"`
	GCDiscardRatio float64       `json:"gc_discard_ratio" yaml:"gc_discard_ratio"`
}

type HTTPConfig struct {
	Enabled        bool          `json:"enabled" yaml:"enabled"`
	Addr           string        `json:"addr" yaml:"addr"`
	AllowedOrigins []string      `json:"allowed_origins" yaml:"allowed_origins"`
	ReadTimeout    time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout   time.Duration `json:"write_timeout" yaml:"write_timeout"`
	IdleTimeout    time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

type TracingConfig struct {
	ServiceName string `json:"service_name" yaml:"service_name"`
}

type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config " + e.Field + ": " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func NewConfigError(field string, err error) *ConfigError {
	return &ConfigError{Field: field, Err: err}
}
