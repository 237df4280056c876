//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd

package logger

// isTerminal disables colors on platforms without termios.
func isTerminal(uintptr) bool {
	return false
}
