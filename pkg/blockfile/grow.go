package blockfile

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/marmos91/blockfile/internal/logger"
	"github.com/marmos91/blockfile/internal/telemetry"
)

// extend grows the storage file between two sizes. Tests replace it to
// simulate partial failures.
var extend = extendFile

// grow appends exactly n free blocks to the file and returns their indices.
// The new blocks go straight to the caller instead of through the registry,
// so a concurrent writer cannot take them before the caller retries.
func (e *Engine) grow(ctx context.Context, n int) ([]uint32, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanEngineGrow, telemetry.GrowBlocks(n))
	start := time.Now()

	e.growMu.Lock()
	defer e.growMu.Unlock()

	old := e.blockCount.Load()
	if uint64(old)+uint64(n) > math.MaxUint32 {
		err := fmt.Errorf("%w: growing %d blocks by %d exhausts the index space", ErrOutOfRange, old, n)
		telemetry.EndSpan(span, err)
		return nil, err
	}
	next := old + uint32(n)

	// New space reads as zeros, so every added block has data length 0.
	if err := extend(e.file, e.geo.FileSize(old), e.geo.FileSize(next)); err != nil {
		// The file must stay header + whole frames; drop any partial extension.
		if terr := e.file.Truncate(e.geo.FileSize(old)); terr != nil {
			logger.ErrorCtx(ctx, "Failed to restore file size after growth error",
				logger.KeyBlocks, old, logger.Err(terr))
		}
		err = ioFailure(fmt.Errorf("extend file to %d blocks: %w", next, err))
		telemetry.EndSpan(span, err)
		return nil, err
	}
	if err := e.syncIfConfigured(); err != nil {
		telemetry.EndSpan(span, err)
		return nil, err
	}
	e.blockCount.Store(next)

	indices := make([]uint32, n)
	for i := range indices {
		indices[i] = old + uint32(i)
	}

	e.metrics.ObserveGrow(n)
	e.metrics.ObserveOperation(OpGrow, start, nil)
	logger.DebugCtx(ctx, "Grew block file", "from", old, "to", next)
	telemetry.EndSpan(span, nil)
	return indices, nil
}
