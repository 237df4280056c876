//go:build !linux

package blockfile

import "os"

func extendFile(f *os.File, _, to int64) error {
	return f.Truncate(to)
}

func syncData(f *os.File) error {
	return f.Sync()
}
