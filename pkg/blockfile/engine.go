// Package blockfile implements a block-structured storage engine backed by a
// single file.
//
// Payloads are split into chunks of at most BlockLen bytes and stored in
// fixed-size blocks addressed by zero-based index. Deleted blocks are reused
// before the file grows; the file never shrinks.
//
// # Concurrency
//
// An Engine is safe for concurrent use. Block I/O is positional (ReadAt and
// WriteAt), so operations on disjoint blocks do not contend. Three locks
// cover the shared state:
//
//   - the free registry has its own mutex, held only for bookkeeping
//   - growMu serializes file growth; the new block count is published only
//     after the file has been extended
//   - gate is read-held by every operation and write-held by Close and
//     Snapshot, which need the file quiescent
//
// Opening the same file from two engines at once is not supported.
package blockfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/marmos91/blockfile/internal/logger"
	"github.com/marmos91/blockfile/internal/telemetry"
	"github.com/marmos91/blockfile/pkg/blockfile/freelist"
	"github.com/marmos91/blockfile/pkg/blockfile/layout"
	"github.com/marmos91/blockfile/pkg/bufpool"
)

// device is the positional I/O surface the engine uses for block access.
type device interface {
	io.ReaderAt
	io.WriterAt
}

// Engine stores payloads in the blocks of one storage file.
type Engine struct {
	path    string
	geo     layout.Geometry
	cfg     Config
	metrics *Metrics

	file *os.File
	dev  device

	gate   sync.RWMutex
	closed bool

	growMu     sync.Mutex
	blockCount atomic.Uint32

	free   *freelist.Registry
	frames *bufpool.Pool
}

// Stats describes the block usage of an open engine.
type Stats struct {
	BlockLen      uint32 `json:"block_len" yaml:"block_len"`
	BlockCount    uint32 `json:"block_count" yaml:"block_count"`
	FreeCount     int    `json:"free_count" yaml:"free_count"`
	OccupiedCount int    `json:"occupied_count" yaml:"occupied_count"`
	FileSize      int64  `json:"file_size" yaml:"file_size"`
}

// Open opens the storage file at cfg.Path, creating it when it does not exist
// or is empty, and rebuilds the free registry from a full scan.
//
// An existing file must carry the same block length as cfg.BlockLen and have
// a size of exactly one header plus a whole number of blocks; otherwise Open
// fails with ErrCorruptHeader.
func Open(cfg Config) (*Engine, error) {
	cfg.applyDefaults()
	start := time.Now()

	geo, err := cfg.validate()
	if err != nil {
		return nil, &BlockError{Op: OpOpen, Path: cfg.Path, Index: NoIndex, Err: err}
	}

	e := &Engine{
		path:    cfg.Path,
		geo:     geo,
		cfg:     cfg,
		metrics: cfg.Metrics,
		free:    freelist.New(),
		frames:  bufpool.New(int(geo.FrameSize())),
	}

	if err := e.load(); err != nil {
		if e.file != nil {
			_ = e.file.Close()
		}
		err = e.opError(OpOpen, err)
		e.metrics.ObserveOperation(OpOpen, start, err)
		return nil, err
	}

	e.metrics.ObserveOperation(OpOpen, start, nil)
	e.metrics.SetBlocks(e.blockCount.Load(), e.free.Len())

	logger.Info("Block file opened",
		logger.KeyPath, e.path,
		"block_len", geo.BlockLen,
		logger.KeyBlocks, e.blockCount.Load(),
		"free", e.free.Len(),
		logger.KeyDuration, time.Since(start).Milliseconds())

	return e, nil
}

// OpenPath opens path with blockLen and default settings. Unlike Open it
// does not default a zero blockLen; that fails with ErrCorruptHeader before
// the file is touched.
func OpenPath(path string, blockLen uint32) (*Engine, error) {
	if _, err := layout.NewGeometry(blockLen); err != nil {
		return nil, &BlockError{Op: OpOpen, Path: path, Index: NoIndex, Err: err}
	}
	cfg := DefaultConfig(path)
	cfg.BlockLen = blockLen
	return Open(cfg)
}

func (e *Engine) load() error {
	f, err := os.OpenFile(e.path, os.O_RDWR|os.O_CREATE, e.cfg.FileMode)
	if err != nil {
		return ioFailure(err)
	}
	e.file = f
	e.dev = f

	info, err := f.Stat()
	if err != nil {
		return ioFailure(err)
	}

	if info.Size() == 0 {
		if _, err := f.WriteAt(layout.EncodeHeader(e.geo), 0); err != nil {
			return ioFailure(fmt.Errorf("write storage header: %w", err))
		}
		if e.cfg.SyncWrites {
			if err := f.Sync(); err != nil {
				return ioFailure(err)
			}
		}
		logger.Debug("Initialized new block file", logger.KeyPath, e.path, "block_len", e.geo.BlockLen)
		return nil
	}

	if info.Size() < layout.HeaderSize {
		_, err := e.geo.Validate(info.Size())
		return err
	}

	header := make([]byte, layout.HeaderSize)
	if _, err := f.ReadAt(header, 0); err != nil {
		return ioFailure(fmt.Errorf("read storage header: %w", err))
	}
	stored, err := layout.DecodeHeader(header)
	if err != nil {
		return err
	}
	if stored.BlockLen != e.geo.BlockLen {
		return fmt.Errorf("%w: file block length %d, requested %d",
			ErrCorruptHeader, stored.BlockLen, e.geo.BlockLen)
	}

	count, err := e.geo.Validate(info.Size())
	if err != nil {
		return err
	}

	free, err := e.free.InitializeFromScan(f, e.geo, count)
	if err != nil {
		if errors.Is(err, ErrCorruptHeader) {
			return err
		}
		return ioFailure(err)
	}
	e.blockCount.Store(count)

	logger.Debug("Scanned block file", logger.KeyPath, e.path, logger.KeyBlocks, count, "free", free)
	return nil
}

// acquireGate read-locks the gate for the duration of one operation.
func (e *Engine) acquireGate() error {
	e.gate.RLock()
	if e.closed {
		e.gate.RUnlock()
		return ErrClosed
	}
	return nil
}

// begin starts the span, log scope and timer for op. The returned function
// must be deferred with a pointer to the operation's error result.
func (e *Engine) begin(ctx context.Context, op, span string, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	attrs = append(attrs, telemetry.Path(e.path))
	ctx, sp := telemetry.StartSpan(ctx, span, attrs...)

	lc := logger.FromContext(ctx)
	if lc == nil {
		lc = logger.NewLogContext(op, e.path)
	} else {
		lc = lc.Clone()
		lc.Op, lc.Path, lc.StartTime = op, e.path, time.Now()
	}
	lc = lc.WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx))
	ctx = logger.WithContext(ctx, lc)

	return ctx, func(errp *error) {
		var err error
		if errp != nil {
			err = *errp
		}
		telemetry.EndSpan(sp, err)
		e.metrics.ObserveOperation(op, lc.StartTime, err)
		if err != nil {
			logger.WarnCtx(ctx, "Block operation failed", logger.Err(err))
			return
		}
		logger.DebugCtx(ctx, "Block operation completed", logger.KeyDuration, lc.DurationMs())
	}
}

// checkRange fails with ErrOutOfRange on the first index at or beyond the
// current block count.
func (e *Engine) checkRange(op string, indices []uint32) error {
	count := e.blockCount.Load()
	for _, index := range indices {
		if index >= count {
			return e.blockError(op, index, fmt.Errorf("%w: %d blocks", ErrOutOfRange, count))
		}
	}
	return nil
}

// BlockLen returns the payload capacity of each block.
func (e *Engine) BlockLen() uint32 {
	return e.geo.BlockLen
}

// Path returns the storage file path.
func (e *Engine) Path() string {
	return e.path
}

// Stat reports block usage.
func (e *Engine) Stat() (Stats, error) {
	if err := e.acquireGate(); err != nil {
		return Stats{}, e.opError("stat", err)
	}
	defer e.gate.RUnlock()

	count := e.blockCount.Load()
	free := e.free.Len()
	return Stats{
		BlockLen:      e.geo.BlockLen,
		BlockCount:    count,
		FreeCount:     free,
		OccupiedCount: int(count) - free,
		FileSize:      e.geo.FileSize(count),
	}, nil
}

// FreeBlocks returns the free block indices in ascending order.
func (e *Engine) FreeBlocks() []uint32 {
	return e.free.Snapshot()
}

// Sync flushes the storage file to stable storage.
func (e *Engine) Sync() error {
	if err := e.acquireGate(); err != nil {
		return e.opError(OpSync, err)
	}
	defer e.gate.RUnlock()

	if err := e.file.Sync(); err != nil {
		return e.opError(OpSync, ioFailure(err))
	}
	return nil
}

// syncIfConfigured flushes file data when SyncWrites is set.
func (e *Engine) syncIfConfigured() error {
	if !e.cfg.SyncWrites {
		return nil
	}
	return ioFailure(syncData(e.file))
}

// Close waits for in-flight operations and closes the file. Calling Close
// more than once is a no-op.
func (e *Engine) Close() error {
	e.gate.Lock()
	defer e.gate.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	var err error
	if e.cfg.SyncWrites {
		err = e.file.Sync()
	}
	if cerr := e.file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return e.opError(OpClose, ioFailure(err))
	}

	logger.Info("Block file closed", logger.KeyPath, e.path, logger.KeyBlocks, e.blockCount.Load())
	return nil
}
