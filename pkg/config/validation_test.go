package config

import (
	"strings"
	"testing"

	"github.com/marmos91/blockfile/internal/bytesize"
)

func TestValidate_ValidConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if err := Validate(cfg); err != nil {
		t.Errorf("Expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "INVALID"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for invalid log level")
	}
	if !strings.Contains(err.Error(), "oneof") {
		t.Errorf("Expected 'oneof' validation error, got: %v", err)
	}
}

func TestValidate_InvalidLogFormat(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Format = "xml"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for invalid log format")
	}
}

func TestValidate_InvalidMetricsPort(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Metrics.Port = 70000

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for port out of range")
	}
	if !strings.Contains(err.Error(), "max") {
		t.Errorf("Expected 'max' validation error, got: %v", err)
	}
}

func TestValidate_MissingStoragePath(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Storage.Path = ""

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for missing storage path")
	}
	errStr := strings.ToLower(err.Error())
	if !strings.Contains(errStr, "storage") || !strings.Contains(errStr, "path") {
		t.Errorf("Expected error about storage path, got: %v", err)
	}
}

func TestValidate_BlockLen(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Storage.BlockLen = 0
	if err := Validate(cfg); err == nil {
		t.Error("Expected validation error for zero block length")
	}

	cfg = GetDefaultConfig()
	cfg.Storage.BlockLen = 2 * bytesize.GiB
	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for oversized block length")
	}
	if !strings.Contains(err.Error(), "block_len") {
		t.Errorf("Expected error about block_len, got: %v", err)
	}
}

func TestValidate_TelemetryEnabledWithoutEndpoint(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.Endpoint = ""

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for telemetry enabled without endpoint")
	}
	if !strings.Contains(strings.ToLower(err.Error()), "telemetry.endpoint") {
		t.Errorf("Expected error about telemetry endpoint, got: %v", err)
	}
}

func TestValidate_TelemetrySampleRate(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Telemetry.SampleRate = 1.5

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for sample rate out of range")
	}
}

func TestValidate_UnknownProfileType(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Telemetry.Profiling.ProfileTypes = []string{"cpu", "heap"}

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for unknown profile type")
	}
}

func TestValidate_BackupEndpointWithoutBucket(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Backup.S3.Endpoint = "http://localhost:9000"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for endpoint without bucket")
	}
	if !strings.Contains(err.Error(), "bucket") {
		t.Errorf("Expected error about bucket, got: %v", err)
	}
}

func TestValidate_BackupPartialCredentials(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Backup.S3.Bucket = "snapshots"
	cfg.Backup.S3.AccessKeyID = "AKIAEXAMPLE"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for access key without secret")
	}
	if !strings.Contains(err.Error(), "SecretAccessKey") {
		t.Errorf("Expected error about SecretAccessKey, got: %v", err)
	}

	cfg.Backup.S3.SecretAccessKey = "secret"
	if err := Validate(cfg); err != nil {
		t.Errorf("Expected full credentials to validate, got: %v", err)
	}
}

func TestValidate_LogLevelNormalization(t *testing.T) {
	for _, level := range []string{"info", "INFO", "debug", "DEBUG", "warn", "WARN", "error", "ERROR"} {
		cfg := GetDefaultConfig()
		cfg.Logging.Level = level

		if err := Validate(cfg); err != nil {
			t.Errorf("Validation failed for level %q: %v", level, err)
		}
		if cfg.Logging.Level != level {
			t.Errorf("Expected level to remain %q after validation, got %q", level, cfg.Logging.Level)
		}
	}

	cfg := &Config{Logging: LoggingConfig{Level: "info"}}
	ApplyDefaults(cfg)
	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected ApplyDefaults to normalize 'info' to 'INFO', got %q", cfg.Logging.Level)
	}
}
