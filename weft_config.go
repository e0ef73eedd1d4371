package weft

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/eleven-am/weft/internal/domain"
	"gopkg.in/yaml.v3"
)

type Config = domain.Config

type EngineConfig = domain.EngineConfig

type StorageConfig = domain.StorageConfig

type HTTPConfig = domain.HTTPConfig

type TracingConfig = domain.TracingConfig

func DefaultConfig() *Config {
	return domain.DefaultConfig()
}

func DefaultEngineConfig() EngineConfig {
	return domain.DefaultEngineConfig()
}

func DefaultStorageConfig() StorageConfig {
	return domain.DefaultStorageConfig()
}

func DefaultHTTPConfig() HTTPConfig {
	return domain.DefaultHTTPConfig()
}

// LoadConfig reads a YAML file over the defaults. Durations use Go syntax
// ("30s", "5m"). A file without data_dir selects in-memory storage.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(raw, config); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", domain.ErrInvalidConfig, path, err)
	}

	if config.DataDir == "" {
		config.InMemory = true
	}
	config.Logger = slog.Default()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

type ConfigBuilder struct {
	config *Config
}

// NewConfigBuilder starts from the defaults. An empty dataDir selects
// in-memory storage.
func NewConfigBuilder(dataDir string) *ConfigBuilder {
	return &ConfigBuilder{config: domain.NewConfigFromSimple(dataDir, nil)}
}

func (cb *ConfigBuilder) WithLogger(logger *slog.Logger) *ConfigBuilder {
	if logger != nil {
		cb.config.Logger = logger
	}
	return cb
}

func (cb *ConfigBuilder) WithEngineSettings(maxConcurrentNodes int, defaultTimeout time.Duration) *ConfigBuilder {
	cb.config.WithEngineSettings(maxConcurrentNodes, defaultTimeout)
	return cb
}

func (cb *ConfigBuilder) WithShutdownTimeout(timeout time.Duration) *ConfigBuilder {
	cb.config.Engine.ShutdownTimeout = timeout
	return cb
}

func (cb *ConfigBuilder) WithCheckpoints(enabled bool) *ConfigBuilder {
	cb.config.Engine.PersistCheckpoints = enabled
	return cb
}

func (cb *ConfigBuilder) WithSyncWrites(enabled bool) *ConfigBuilder {
	cb.config.Storage.SyncWrites = enabled
	return cb
}

func (cb *ConfigBuilder) WithValueLogGC(interval time.Duration, discardRatio float64) *ConfigBuilder {
	cb.config.Storage.GCInterval = interval
	cb.config.Storage.GCDiscardRatio = discardRatio
	return cb
}

func (cb *ConfigBuilder) WithHTTP(addr string, allowedOrigins ...string) *ConfigBuilder {
	cb.config.WithHTTP(addr, allowedOrigins...)
	return cb
}

func (cb *ConfigBuilder) WithServiceName(name string) *ConfigBuilder {
	cb.config.Tracing.ServiceName = name
	return cb
}

func (cb *ConfigBuilder) Build() *Config {
	return cb.config
}
