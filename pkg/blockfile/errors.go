package blockfile

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/blockfile/pkg/blockfile/freelist"
	"github.com/marmos91/blockfile/pkg/blockfile/layout"
)

// Engine errors. Callers should match them with errors.Is; every error
// returned by an Engine method wraps one of these inside a *BlockError.
var (
	// ErrOutOfRange indicates a block index at or beyond the current block count.
	ErrOutOfRange = errors.New("block index out of range")

	// ErrCorruptHeader indicates a missing or invalid storage header, a block
	// length that differs from the requested one, a file size that is not a
	// header plus whole blocks, or a block header with an impossible length.
	ErrCorruptHeader = layout.ErrCorruptHeader

	// ErrIOFailure wraps an error from the underlying file. The original
	// error stays reachable through errors.Is and errors.As.
	ErrIOFailure = errors.New("i/o failure")

	// ErrInvalidBlock indicates a delete of a block that is already free.
	ErrInvalidBlock = freelist.ErrInvalidBlock

	// ErrClosed indicates use of an engine after Close.
	ErrClosed = errors.New("engine is closed")
)

// NoIndex marks a BlockError that does not concern a single block.
const NoIndex int64 = -1

// BlockError wraps an engine sentinel error with the operation, the storage
// file and, when relevant, the block index involved.
//
//	err := engine.Delete(ctx, []uint32{7})
//	errors.Is(err, blockfile.ErrInvalidBlock) // true if 7 was free
type BlockError struct {
	// Op is the engine operation: "open", "read", "write", "delete", ...
	Op string

	// Path is the storage file path.
	Path string

	// Index is the block that failed, or NoIndex.
	Index int64

	Err error
}

func (e *BlockError) Error() string {
	if e.Index == NoIndex {
		return fmt.Sprintf("blockfile %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("blockfile %s %s: block %d: %v", e.Op, e.Path, e.Index, e.Err)
}

func (e *BlockError) Unwrap() error {
	return e.Err
}

func (e *Engine) opError(op string, err error) error {
	return &BlockError{Op: op, Path: e.path, Index: NoIndex, Err: err}
}

func (e *Engine) blockError(op string, index uint32, err error) error {
	return &BlockError{Op: op, Path: e.path, Index: int64(index), Err: err}
}

// ioFailure tags err as an ErrIOFailure while keeping it matchable.
func ioFailure(err error) error {
	if err == nil || errors.Is(err, ErrIOFailure) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrIOFailure, err)
}

// errorClass maps err to a short label used in metrics.
func errorClass(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrOutOfRange):
		return "out_of_range"
	case errors.Is(err, ErrCorruptHeader):
		return "corrupt_header"
	case errors.Is(err, ErrInvalidBlock):
		return "invalid_block"
	case errors.Is(err, ErrIOFailure):
		return "io_failure"
	case errors.Is(err, ErrClosed):
		return "closed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
