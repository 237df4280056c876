package catalog

import (
	"fmt"
	"strings"

	"github.com/marmos91/blockfile/internal/logger"
)

// badgerLogger routes BadgerDB's internal logging into the application
// logger. Badger's info output is chatty, so it is demoted to debug.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...any) {
	logger.Error(badgerMessage(format, args), logger.KeyOp, "catalog")
}

func (badgerLogger) Warningf(format string, args ...any) {
	logger.Warn(badgerMessage(format, args), logger.KeyOp, "catalog")
}

func (badgerLogger) Infof(format string, args ...any) {
	logger.Debug(badgerMessage(format, args), logger.KeyOp, "catalog")
}

func (badgerLogger) Debugf(format string, args ...any) {
	logger.Debug(badgerMessage(format, args), logger.KeyOp, "catalog")
}

func badgerMessage(format string, args []any) string {
	return strings.TrimSpace(fmt.Sprintf(format, args...))
}
