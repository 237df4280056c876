package blockfile

import (
	"bytes"
	"context"
	"errors"
	"io"
	"iter"

	"github.com/marmos91/blockfile/internal/telemetry"
	"github.com/marmos91/blockfile/pkg/blockfile/access"
	"github.com/marmos91/blockfile/pkg/blockfile/layout"
)

const (
	// streamWindow is the number of blocks ReadStream reads per batch.
	streamWindow = 64

	// splitReadSize is the largest frame read with a single call. Larger
	// frames read the length prefix first and then only the used payload.
	splitReadSize = 256 << 10
)

// Read returns the payload stored in each block of indices, in the order of
// indices. Blocks are read in ascending index order. A free block yields an
// empty chunk.
//
// Every index is checked before any I/O; an index at or beyond the block
// count fails the whole call with ErrOutOfRange.
func (e *Engine) Read(ctx context.Context, indices []uint32) (blocks [][]byte, err error) {
	if err := e.acquireGate(); err != nil {
		return nil, e.opError(OpRead, err)
	}
	defer e.gate.RUnlock()

	ctx, end := e.begin(ctx, OpRead, telemetry.SpanEngineRead, telemetry.Blocks(len(indices)))
	defer end(&err)

	if err := ctx.Err(); err != nil {
		return nil, e.opError(OpRead, err)
	}
	if err := e.checkRange(OpRead, indices); err != nil {
		return nil, err
	}
	return e.readBatch(indices)
}

// ReadAll reads indices and concatenates their payloads.
func (e *Engine) ReadAll(ctx context.Context, indices []uint32) ([]byte, error) {
	blocks, err := e.Read(ctx, indices)
	if err != nil {
		return nil, err
	}
	return bytes.Join(blocks, nil), nil
}

// ReadStream returns a lazy sequence yielding the payload of each block of
// indices, in the order of indices. Blocks are read in windows of up to 64;
// within a window access is in ascending index order.
//
// Bounds are checked for all indices before the first chunk is yielded. The
// sequence stops at the first error, which is yielded with a nil chunk.
// Ranging over the sequence again reads the blocks again.
func (e *Engine) ReadStream(ctx context.Context, indices []uint32) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		if err := e.acquireGate(); err != nil {
			yield(nil, e.opError(OpRead, err))
			return
		}
		err := e.checkRange(OpRead, indices)
		e.gate.RUnlock()
		if err != nil {
			yield(nil, err)
			return
		}

		for lo := 0; lo < len(indices); lo += streamWindow {
			blocks, err := e.readWindow(ctx, indices[lo:min(lo+streamWindow, len(indices))])
			if err != nil {
				yield(nil, err)
				return
			}
			for _, b := range blocks {
				if !yield(b, nil) {
					return
				}
			}
		}
	}
}

// readWindow reads one ReadStream window. The gate is held only while the
// window is read, never while the consumer handles chunks.
func (e *Engine) readWindow(ctx context.Context, window []uint32) (blocks [][]byte, err error) {
	if err := e.acquireGate(); err != nil {
		return nil, e.opError(OpRead, err)
	}
	defer e.gate.RUnlock()

	ctx, end := e.begin(ctx, OpRead, telemetry.SpanEngineRead, telemetry.Blocks(len(window)))
	defer end(&err)

	if err := ctx.Err(); err != nil {
		return nil, e.opError(OpRead, err)
	}
	return e.readBatch(window)
}

// readBatch reads indices in ascending order and returns the payloads in
// request order. Bounds must already be checked.
func (e *Engine) readBatch(indices []uint32) ([][]byte, error) {
	plan := access.Order(indices)
	inPlanOrder := make([][]byte, plan.Len())

	var total int64
	for k, index := range plan.Sorted {
		data, err := e.readBlock(index)
		if err != nil {
			return nil, e.blockError(OpRead, index, err)
		}
		inPlanOrder[k] = data
		total += int64(len(data))
	}

	e.metrics.ObserveTransfer(OpRead, plan.Len(), total)
	return access.Scatter(plan, inPlanOrder), nil
}

// readBlock returns a copy of the payload stored in the block at index.
func (e *Engine) readBlock(index uint32) ([]byte, error) {
	off := e.geo.Offset(index)

	if e.geo.FrameSize() <= splitReadSize {
		buf := e.frames.Get()
		defer e.frames.Put(buf)

		if err := readFull(e.dev, buf, off); err != nil {
			return nil, err
		}
		n, err := e.geo.DecodeBlockHeader(buf)
		if err != nil {
			return nil, err
		}
		return bytes.Clone(buf[layout.BlockHeaderSize : layout.BlockHeaderSize+n]), nil
	}

	var hdr [layout.BlockHeaderSize]byte
	if err := readFull(e.dev, hdr[:], off); err != nil {
		return nil, err
	}
	n, err := e.geo.DecodeBlockHeader(hdr[:])
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	if n > 0 {
		if err := readFull(e.dev, out, off+layout.BlockHeaderSize); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// readFull reads len(buf) bytes at off. A reader may report io.EOF together
// with a full read at the end of the file; that is not an error here.
func readFull(r io.ReaderAt, buf []byte, off int64) error {
	n, err := r.ReadAt(buf, off)
	if err != nil && !(errors.Is(err, io.EOF) && n == len(buf)) {
		return ioFailure(err)
	}
	return nil
}
