package blockfile

import (
	"errors"
	"os"

	"github.com/marmos91/blockfile/pkg/blockfile/layout"
)

// DefaultBlockLen is the payload capacity used when Config.BlockLen is zero.
const DefaultBlockLen = 4096

// Config configures an Engine.
type Config struct {
	// Path is the storage file. It is created when absent.
	Path string

	// BlockLen is the payload capacity of each block. For an existing file
	// it must equal the value stored in the file header.
	BlockLen uint32

	// SecureErase zero-fills the payload region on delete and the unused
	// tail of a block on write, so stale bytes never stay on disk.
	SecureErase bool

	// SyncWrites flushes file data to stable storage after every write,
	// delete and growth.
	SyncWrites bool

	// FileMode is used when creating the storage file. Default 0644.
	FileMode os.FileMode

	// Metrics receives engine metrics. Nil disables collection.
	Metrics *Metrics
}

// DefaultConfig returns a Config for path with default settings.
func DefaultConfig(path string) Config {
	return Config{
		Path:     path,
		BlockLen: DefaultBlockLen,
		FileMode: 0644,
	}
}

func (c *Config) applyDefaults() {
	if c.BlockLen == 0 {
		c.BlockLen = DefaultBlockLen
	}
	if c.FileMode == 0 {
		c.FileMode = 0644
	}
}

func (c *Config) validate() (layout.Geometry, error) {
	if c.Path == "" {
		return layout.Geometry{}, errors.New("path is required")
	}
	return layout.NewGeometry(c.BlockLen)
}
