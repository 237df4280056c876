package blockfile

import (
	"context"
	"io"

	"github.com/marmos91/blockfile/internal/logger"
	"github.com/marmos91/blockfile/internal/telemetry"
)

// Snapshot writes a byte-for-byte copy of the storage file to w and returns
// the number of bytes written. All other engine operations wait until the
// copy is complete, so the image is consistent and can be opened as a
// storage file of its own.
func (e *Engine) Snapshot(ctx context.Context, w io.Writer) (written int64, err error) {
	e.gate.Lock()
	defer e.gate.Unlock()

	if e.closed {
		return 0, e.opError(OpSnapshot, ErrClosed)
	}

	ctx, end := e.begin(ctx, OpSnapshot, telemetry.SpanEngineSnapshot)
	defer end(&err)

	if err := ctx.Err(); err != nil {
		return 0, e.opError(OpSnapshot, err)
	}

	size := e.geo.FileSize(e.blockCount.Load())
	written, err = io.Copy(w, io.NewSectionReader(e.file, 0, size))
	if err != nil {
		return written, e.opError(OpSnapshot, ioFailure(err))
	}

	logger.InfoCtx(ctx, "Snapshot written", logger.KeyBytes, written)
	return written, nil
}
