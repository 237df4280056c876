//go:build linux

package blockfile

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// extendFile grows f from size from to size to with fallocate, which reserves
// the space up front. File systems without fallocate fall back to truncate.
func extendFile(f *os.File, from, to int64) error {
	err := unix.Fallocate(int(f.Fd()), 0, from, to-from)
	if errors.Is(err, unix.EOPNOTSUPP) || errors.Is(err, unix.ENOSYS) {
		return f.Truncate(to)
	}
	return err
}

// syncData flushes file data and the size change, skipping unrelated metadata.
func syncData(f *os.File) error {
	return unix.Fdatasync(int(f.Fd()))
}
