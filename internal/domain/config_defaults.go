package domain

import (
	"io"
	"log/slog"
	"time"
)

func DefaultConfig() *Config {
	return &Config{
		Engine:  DefaultEngineConfig(),
		Storage: DefaultStorageConfig(),
		HTTP:    DefaultHTTPConfig(),
		Tracing: DefaultTracingConfig(),
	}
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxConcurrentNodes: 0,
		DefaultTimeout:     DefaultExecutionTimeout,
		ShutdownTimeout:    30 * time.Second,
		PersistCheckpoints: true,
	}
}

func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		SyncWrites:     false,
		GCInterval:     10 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Enabled:        false,
		Addr:           ":8080",
		AllowedOrigins: []string{"*"},
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
	}
}

func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "weft",
	}
}

// NewConfigFromSimple builds a config around a data directory. An empty
// dataDir selects in-memory storage.
func NewConfigFromSimple(dataDir string, logger *slog.Logger) *Config {
	config := DefaultConfig()
	config.DataDir = dataDir
	config.InMemory = dataDir == ""
	config.Logger = logger

	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return config
}

func (c *Config) WithHTTP(addr string, allowedOrigins ...string) *Config {
	c.HTTP.Enabled = true
	if addr != "" {
		c.HTTP.Addr = addr
	}
	if len(allowedOrigins) > 0 {
		c.HTTP.AllowedOrigins = allowedOrigins
	}
	return c
}

func (c *Config) WithEngineSettings(maxConcurrentNodes int, defaultTimeout time.Duration) *Config {
	c.Engine.MaxConcurrentNodes = maxConcurrentNodes
	if defaultTimeout > 0 {
		c.Engine.DefaultTimeout = defaultTimeout
	}
	return c
}

func (c *Config) Validate() error {
	if !c.InMemory && c.DataDir == "" {
		return NewConfigError("data_dir", ErrInvalidConfig)
	}
	if c.Logger == nil {
		return NewConfigError("logger", ErrInvalidConfig)
	}

	if c.Engine.MaxConcurrentNodes < 0 {
		return NewConfigError("engine.max_concurrent_nodes", ErrInvalidConfig)
	}
	if c.Engine.DefaultTimeout <= 0 {
		return NewConfigError("engine.default_timeout", ErrInvalidConfig)
	}
	if c.Engine.ShutdownTimeout <= 0 {
		return NewConfigError("engine.shutdown_timeout", ErrInvalidConfig)
	}

	if c.Storage.GCDiscardRatio < 0 || c.Storage.GCDiscardRatio >= 1 {
		return NewConfigError("storage.gc_discard_ratio", ErrInvalidConfig)
	}

	if c.HTTP.Enabled && c.HTTP.Addr == "" {
		return NewConfigError("http.addr", ErrInvalidConfig)
	}

	return nil
}
