package blockfile

import (
	"context"
	"fmt"

	"github.com/marmos91/blockfile/internal/logger"
	"github.com/marmos91/blockfile/internal/telemetry"
)

// Delete frees the blocks at indices so later writes can reuse them. With
// Config.SecureErase the payload region is zero-filled as well.
//
// Every index is bounds-checked before anything changes. Blocks are then
// freed one by one in request order; deleting a block that is already free,
// including an index repeated within indices, fails with ErrInvalidBlock.
// Blocks freed before the failing index stay freed.
func (e *Engine) Delete(ctx context.Context, indices []uint32) error {
	return e.reclaim(ctx, OpDelete, indices, e.cfg.SecureErase)
}

// Erase is Delete with the payload region always zero-filled.
func (e *Engine) Erase(ctx context.Context, indices []uint32) error {
	return e.reclaim(ctx, OpErase, indices, true)
}

func (e *Engine) reclaim(ctx context.Context, op string, indices []uint32, zero bool) (err error) {
	if err := e.acquireGate(); err != nil {
		return e.opError(op, err)
	}
	defer e.gate.RUnlock()

	ctx, end := e.begin(ctx, op, telemetry.SpanEngineDelete, telemetry.Blocks(len(indices)))
	defer end(&err)

	if err := ctx.Err(); err != nil {
		return e.opError(op, err)
	}
	if err := e.checkRange(op, indices); err != nil {
		return err
	}

	freed := 0
	defer func() {
		if freed == 0 {
			return
		}
		if serr := e.syncIfConfigured(); serr != nil && err == nil {
			err = e.opError(op, serr)
		}
		e.metrics.ObserveTransfer(op, freed, 0)
		e.metrics.SetBlocks(e.blockCount.Load(), e.free.Len())
		logger.DebugCtx(ctx, "Freed blocks", logger.KeyBlocks, freed, "erase", zero)
	}()

	for _, index := range indices {
		if err := e.freeBlock(index, zero); err != nil {
			return e.blockError(op, index, err)
		}
		freed++
	}
	return nil
}

// freeBlock resets the block at index to the free state on disk and then
// returns it to the registry.
func (e *Engine) freeBlock(index uint32, zero bool) error {
	if e.free.Contains(index) {
		return fmt.Errorf("%w: block is already free", ErrInvalidBlock)
	}

	if zero {
		buf := e.frames.Get()
		defer e.frames.Put(buf)
		clear(buf)
		if _, err := e.dev.WriteAt(buf, e.geo.Offset(index)); err != nil {
			return ioFailure(err)
		}
	} else if err := e.resetLength(index); err != nil {
		return err
	}

	// A concurrent delete of the same block can win the race between the
	// membership check and here; Release reports that as ErrInvalidBlock.
	return e.free.Release(index)
}
