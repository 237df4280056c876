package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/blockfile/internal/bytesize"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
// Zero values are replaced; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyStorageDefaults(&cfg.Storage)
	applyCatalogDefaults(&cfg.Catalog)
	applyBatchDefaults(&cfg.Batch)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	// Commands print results on stdout, so logs go to stderr.
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	applyProfilingDefaults(&cfg.Profiling)
}

func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
			"mutex_duration",
		}
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyStorageDefaults(cfg *StorageConfig) {
	if cfg.Path == "" {
		cfg.Path = filepath.Join(getDataDir(), "data.blk")
	}
	if cfg.BlockLen == 0 {
		cfg.BlockLen = 4 * bytesize.KiB
	}
}

func applyCatalogDefaults(cfg *CatalogConfig) {
	if cfg.Path == "" {
		cfg.Path = filepath.Join(getDataDir(), "catalog")
	}
}

func applyBatchDefaults(cfg *BatchConfig) {
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 4
	}
	if cfg.Interval == 0 {
		cfg.Interval = 10 * time.Millisecond
	}
}

// GetDefaultConfig returns a Config with all default values applied.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
