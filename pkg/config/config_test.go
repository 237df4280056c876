package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/blockfile/internal/bytesize"
)

// yamlSafePath converts a filesystem path to a YAML-safe representation.
// On Windows, backslashes in double-quoted YAML strings are escape sequences.
func yamlSafePath(p string) string {
	return filepath.ToSlash(p)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
logging:
  level: "debug"

storage:
  path: "`+yamlSafePath(dir)+`/data.blk"
  block_len: 64Ki
  secure_erase: true

batch:
  interval: 250ms
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level, "level is normalized")
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "stderr", cfg.Logging.Output)
	assert.Equal(t, yamlSafePath(dir)+"/data.blk", cfg.Storage.Path)
	assert.Equal(t, 64*bytesize.KiB, cfg.Storage.BlockLen)
	assert.True(t, cfg.Storage.SecureErase)
	assert.Equal(t, 250*time.Millisecond, cfg.Batch.Interval)
	assert.Equal(t, 4, cfg.Batch.Concurrency)
	assert.NotEmpty(t, cfg.Catalog.Path)
}

func TestLoad_NumericBlockLen(t *testing.T) {
	path := writeConfig(t, `
storage:
  path: /tmp/x.blk
  block_len: 512
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, bytesize.ByteSize(512), cfg.Storage.BlockLen)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, `
storage:
  path: /tmp/x.blk
  block_len: 4Ki
`)
	t.Setenv("BLOCKFILE_STORAGE_BLOCK_LEN", "8Ki")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8*bytesize.KiB, cfg.Storage.BlockLen)
}

func TestLoad_NoConfigFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 4*bytesize.KiB, cfg.Storage.BlockLen)
	assert.NoError(t, Validate(cfg))
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "storage: [unterminated\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	path := writeConfig(t, `
logging:
  format: xml
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestMustLoad_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")

	_, err := MustLoad(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blockfile init --config")
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := GetDefaultConfig()
	cfg.Storage.Path = "/var/lib/blockfile/data.blk"
	cfg.Storage.BlockLen = 16 * bytesize.KiB
	cfg.Backup.S3 = S3Config{Bucket: "snapshots", Region: "eu-west-1", KeyPrefix: "nightly/"}

	require.NoError(t, SaveConfig(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	if filepath.Separator == '/' {
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestConfigDir_XDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg/config")
	t.Setenv("XDG_DATA_HOME", "/xdg/data")

	assert.Equal(t, filepath.Join("/xdg/config", "blockfile"), GetConfigDir())
	assert.Equal(t, filepath.Join("/xdg/config", "blockfile", "config.yaml"), GetDefaultConfigPath())
	assert.Equal(t, filepath.Join("/xdg/data", "blockfile", "data.blk"), GetDefaultConfig().Storage.Path)
}
