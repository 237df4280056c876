// Package batch queues engine requests and serves them in IO cycles.
//
// A cycle drains everything submitted so far and serves it in three phases:
// all reads, then all writes, then all deletes. Reads within a cycle run
// concurrently; writes and deletes run one at a time in submission order.
// A read therefore observes the state left by the previous cycle even if a
// write or delete touching the same block was submitted before it.
package batch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/marmos91/blockfile/internal/logger"
	"github.com/marmos91/blockfile/internal/telemetry"
)

// Engine is the block storage a Queue serves requests against.
// *blockfile.Engine satisfies it.
type Engine interface {
	Read(ctx context.Context, indices []uint32) ([][]byte, error)
	Write(ctx context.Context, payload []byte) ([]uint32, error)
	Delete(ctx context.Context, indices []uint32) error
}

// Config tunes a Queue.
type Config struct {
	// Concurrency bounds the reads served in parallel. Default 4.
	Concurrency int

	// Interval between cycles in Run. Default 10ms.
	Interval time.Duration
}

// CycleStats counts the requests served by one cycle.
type CycleStats struct {
	Reads   int
	Writes  int
	Deletes int
	Failed  int
}

// Total returns the number of requests served.
func (s CycleStats) Total() int {
	return s.Reads + s.Writes + s.Deletes
}

type request struct {
	future  *Future
	indices []uint32
	payload []byte
}

// Queue collects requests until the next cycle. Safe for concurrent use.
type Queue struct {
	engine Engine
	cfg    Config

	mu      sync.Mutex
	reads   []*request
	writes  []*request
	deletes []*request

	// cycleMu keeps cycles from overlapping.
	cycleMu sync.Mutex
}

// New creates a Queue serving requests against engine.
func New(engine Engine, cfg Config) *Queue {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Millisecond
	}
	return &Queue{engine: engine, cfg: cfg}
}

// SubmitRead queues a read of indices.
func (q *Queue) SubmitRead(indices []uint32) *Future {
	return q.submit(KindRead, &request{indices: indices})
}

// SubmitWrite queues a write of payload.
func (q *Queue) SubmitWrite(payload []byte) *Future {
	return q.submit(KindWrite, &request{payload: payload})
}

// SubmitDelete queues a delete of indices.
func (q *Queue) SubmitDelete(indices []uint32) *Future {
	return q.submit(KindDelete, &request{indices: indices})
}

func (q *Queue) submit(kind Kind, r *request) *Future {
	r.future = newFuture(uuid.NewString(), kind)

	q.mu.Lock()
	switch kind {
	case KindRead:
		q.reads = append(q.reads, r)
	case KindWrite:
		q.writes = append(q.writes, r)
	case KindDelete:
		q.deletes = append(q.deletes, r)
	}
	q.mu.Unlock()

	logger.Debug("Request queued", logger.KeyOp, kind.String(), logger.KeyRequestID, r.future.ID)
	return r.future
}

// Pending returns the number of requests waiting for a cycle.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.reads) + len(q.writes) + len(q.deletes)
}

func (q *Queue) drain() (reads, writes, deletes []*request) {
	q.mu.Lock()
	defer q.mu.Unlock()

	reads, writes, deletes = q.reads, q.writes, q.deletes
	q.reads, q.writes, q.deletes = nil, nil, nil
	return reads, writes, deletes
}

// Clear fails every pending request with ErrCleared and returns how many
// there were.
func (q *Queue) Clear() int {
	reads, writes, deletes := q.drain()
	n := 0
	for _, list := range [][]*request{reads, writes, deletes} {
		for _, r := range list {
			r.future.resolve(Result{}, ErrCleared)
			n++
		}
	}
	if n > 0 {
		logger.Debug("Cleared pending requests", "count", n)
	}
	return n
}

// Cycle serves every request pending at the time of the call. Individual
// request failures are delivered through their futures; Cycle itself fails
// only when ctx ends, in which case the requests not yet started fail with
// the context error.
func (q *Queue) Cycle(ctx context.Context) (stats CycleStats, err error) {
	q.cycleMu.Lock()
	defer q.cycleMu.Unlock()

	reads, writes, deletes := q.drain()
	if len(reads)+len(writes)+len(deletes) == 0 {
		return CycleStats{}, nil
	}

	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanBatchCycle,
		telemetry.Blocks(len(reads)+len(writes)+len(deletes)))
	defer func() { telemetry.EndSpan(span, err) }()
	start := time.Now()

	var mu sync.Mutex
	record := func(kind Kind, failed bool) {
		mu.Lock()
		defer mu.Unlock()
		switch kind {
		case KindRead:
			stats.Reads++
		case KindWrite:
			stats.Writes++
		case KindDelete:
			stats.Deletes++
		}
		if failed {
			stats.Failed++
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(q.cfg.Concurrency)
	for _, r := range reads {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				r.future.resolve(Result{}, err)
				return err
			}
			blocks, err := q.engine.Read(requestContext(gctx, r), r.indices)
			r.future.resolve(Result{Blocks: blocks}, err)
			record(KindRead, err != nil)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		q.abandon(err, writes, deletes)
		return stats, err
	}

	for i, r := range writes {
		if err := ctx.Err(); err != nil {
			q.abandon(err, writes[i:], deletes)
			return stats, err
		}
		indices, err := q.engine.Write(requestContext(ctx, r), r.payload)
		r.future.resolve(Result{Indices: indices}, err)
		record(KindWrite, err != nil)
	}

	for i, r := range deletes {
		if err := ctx.Err(); err != nil {
			q.abandon(err, deletes[i:])
			return stats, err
		}
		err := q.engine.Delete(requestContext(ctx, r), r.indices)
		r.future.resolve(Result{}, err)
		record(KindDelete, err != nil)
	}

	logger.DebugCtx(ctx, "IO cycle completed",
		"reads", stats.Reads, "writes", stats.Writes, "deletes", stats.Deletes,
		"failed", stats.Failed, logger.KeyDuration, time.Since(start).Milliseconds())
	return stats, nil
}

func (q *Queue) abandon(err error, lists ...[]*request) {
	for _, list := range lists {
		for _, r := range list {
			r.future.resolve(Result{}, err)
		}
	}
}

// requestContext tags ctx with the request ID for logs and traces.
func requestContext(ctx context.Context, r *request) context.Context {
	lc := logger.FromContext(ctx)
	if lc == nil {
		lc = logger.NewLogContext(r.future.Kind.String(), "")
	}
	telemetry.AddEvent(ctx, "request", telemetry.RequestID(r.future.ID))
	return logger.WithContext(ctx, lc.WithRequestID(r.future.ID))
}

// Run cycles every Interval until ctx ends. Requests still pending when it
// returns fail with ErrCleared.
func (q *Queue) Run(ctx context.Context) error {
	ticker := time.NewTicker(q.cfg.Interval)
	defer ticker.Stop()
	defer q.Clear()

	logger.Info("IO cycle loop started", "interval", q.cfg.Interval.String(), "concurrency", q.cfg.Concurrency)

	for {
		select {
		case <-ctx.Done():
			logger.Info("IO cycle loop stopped")
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			if _, err := q.Cycle(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("IO cycle failed", logger.Err(err))
			}
		}
	}
}
