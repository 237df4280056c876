package blockfile

import (
	"context"
	"fmt"

	"github.com/marmos91/blockfile/internal/logger"
	"github.com/marmos91/blockfile/internal/telemetry"
	"github.com/marmos91/blockfile/pkg/blockfile/access"
	"github.com/marmos91/blockfile/pkg/blockfile/layout"
)

// Write stores payload and returns the indices of the blocks holding it, one
// per BlockLen-sized chunk in chunk order. An empty payload stores nothing
// and returns an empty slice.
//
// Free blocks are reused before the file grows. Blocks are written in
// ascending index order regardless of the order of the returned indices.
//
// If a block write fails, every block acquired for this call is returned to
// the free registry once its on-disk length is zero again, and the error is
// returned. The file may have grown.
func (e *Engine) Write(ctx context.Context, payload []byte) (indices []uint32, err error) {
	if err := e.acquireGate(); err != nil {
		return nil, e.opError(OpWrite, err)
	}
	defer e.gate.RUnlock()

	ctx, end := e.begin(ctx, OpWrite, telemetry.SpanEngineWrite, telemetry.Bytes(int64(len(payload))))
	defer end(&err)

	if err := ctx.Err(); err != nil {
		return nil, e.opError(OpWrite, err)
	}

	n := e.geo.ChunkCount(len(payload))
	if n == 0 {
		return []uint32{}, nil
	}

	indices, deficit := e.free.Acquire(n)
	if deficit > 0 {
		grown, err := e.grow(ctx, deficit)
		if err != nil {
			e.releaseUnwritten(ctx, indices)
			return nil, e.opError(OpWrite, err)
		}
		indices = append(indices, grown...)
	}

	plan := access.Order(indices)
	chunks := access.Gather(plan, e.chunks(payload, n))

	for k, index := range plan.Sorted {
		if err := e.writeBlock(index, chunks[k]); err != nil {
			e.abortWrite(ctx, plan.Sorted[:k+1], plan.Sorted[k+1:])
			return nil, e.blockError(OpWrite, index, err)
		}
	}

	if err := e.syncIfConfigured(); err != nil {
		e.abortWrite(ctx, plan.Sorted, nil)
		return nil, e.opError(OpWrite, err)
	}

	e.metrics.ObserveTransfer(OpWrite, n, int64(len(payload)))
	e.metrics.SetBlocks(e.blockCount.Load(), e.free.Len())
	logger.DebugCtx(ctx, "Wrote payload", logger.KeyBlocks, n, logger.KeyBytes, len(payload), "grown", deficit)

	return indices, nil
}

// chunks splits payload into n slices of at most BlockLen bytes.
func (e *Engine) chunks(payload []byte, n int) [][]byte {
	bl := int(e.geo.BlockLen)
	out := make([][]byte, n)
	for i := range out {
		lo := i * bl
		out[i] = payload[lo:min(lo+bl, len(payload))]
	}
	return out
}

// writeBlock stores one chunk, length prefix and payload, with a single
// positional write.
func (e *Engine) writeBlock(index uint32, chunk []byte) error {
	buf := e.frames.Get()
	defer e.frames.Put(buf)

	frame, err := e.geo.EncodeFrame(buf, chunk, e.cfg.SecureErase)
	if err != nil {
		return err
	}
	if _, err := e.dev.WriteAt(frame, e.geo.Offset(index)); err != nil {
		return ioFailure(err)
	}
	return nil
}

// abortWrite undoes a partially applied write. Blocks in touched may hold
// data and are released only after their length prefix is zeroed again;
// blocks in untouched still read as free on disk and are released directly.
func (e *Engine) abortWrite(ctx context.Context, touched, untouched []uint32) {
	reset := make([]uint32, 0, len(touched))
	for _, index := range touched {
		if err := e.resetLength(index); err != nil {
			// Leaving the block out of the registry keeps it from being handed
			// out while its on-disk state is unknown. A reopen rescans it.
			logger.ErrorCtx(ctx, "Failed to reset block after write error",
				logger.KeyIndex, index, logger.Err(err))
			continue
		}
		reset = append(reset, index)
	}
	e.releaseUnwritten(ctx, append(reset, untouched...))
}

func (e *Engine) releaseUnwritten(ctx context.Context, indices []uint32) {
	if len(indices) == 0 {
		return
	}
	if err := e.free.Release(indices...); err != nil {
		logger.ErrorCtx(ctx, "Failed to return blocks to the free registry",
			logger.KeyBlocks, len(indices), logger.Err(err))
	}
}

// resetLength writes a zero length prefix for index.
func (e *Engine) resetLength(index uint32) error {
	var hdr [layout.BlockHeaderSize]byte
	if _, err := e.dev.WriteAt(hdr[:], e.geo.Offset(index)); err != nil {
		return ioFailure(fmt.Errorf("reset length: %w", err))
	}
	return nil
}
