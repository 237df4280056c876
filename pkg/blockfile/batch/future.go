package batch

import (
	"context"
	"errors"
)

// ErrCleared is the result of a request dropped by Clear or by Run stopping.
var ErrCleared = errors.New("request cleared before it was served")

// Kind is the type of a queued request.
type Kind int

const (
	KindRead Kind = iota
	KindWrite
	KindDelete
)

func (k Kind) String() string {
	switch k {
	case KindRead:
		return "read"
	case KindWrite:
		return "write"
	case KindDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Result holds what a served request produced. Blocks is set for reads,
// Indices for writes; a delete produces neither.
type Result struct {
	Blocks  [][]byte
	Indices []uint32
}

// Future is the pending outcome of a submitted request.
type Future struct {
	// ID identifies the request in logs and traces.
	ID   string
	Kind Kind

	done   chan struct{}
	result Result
	err    error
}

func newFuture(id string, kind Kind) *Future {
	return &Future{ID: id, Kind: kind, done: make(chan struct{})}
}

// resolve completes the future. It must be called exactly once.
func (f *Future) resolve(res Result, err error) {
	f.result, f.err = res, err
	close(f.done)
}

// Done is closed once the request has been served or cleared.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the request is served or ctx ends.
func (f *Future) Wait(ctx context.Context) (Result, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
