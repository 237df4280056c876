package batch

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/blockfile/pkg/blockfile"
)

// ============================================================================
// Helpers
// ============================================================================

func openEngine(t *testing.T) *blockfile.Engine {
	t.Helper()
	e, err := blockfile.OpenPath(filepath.Join(t.TempDir(), "data.blk"), 8)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func waitResult(t *testing.T, f *Future) (Result, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return f.Wait(ctx)
}

// fakeEngine records the order of calls and tracks concurrent reads.
type fakeEngine struct {
	mu    sync.Mutex
	calls []string

	readDelay time.Duration
	inFlight  atomic.Int32
	maxFlight atomic.Int32

	writeErr error
}

func (f *fakeEngine) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeEngine) Read(_ context.Context, indices []uint32) ([][]byte, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxFlight.Load()
		if n <= cur || f.maxFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	time.Sleep(f.readDelay)
	f.record("read")
	return make([][]byte, len(indices)), nil
}

func (f *fakeEngine) Write(_ context.Context, payload []byte) ([]uint32, error) {
	f.record("write:" + string(payload))
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	return []uint32{0}, nil
}

func (f *fakeEngine) Delete(_ context.Context, _ []uint32) error {
	f.record("delete")
	return nil
}

// ============================================================================
// Tests
// ============================================================================

func TestCycle_PhaseOrder(t *testing.T) {
	fe := &fakeEngine{}
	q := New(fe, Config{Concurrency: 1})

	q.SubmitDelete([]uint32{0})
	q.SubmitWrite([]byte("a"))
	q.SubmitRead([]uint32{0})
	q.SubmitWrite([]byte("b"))
	q.SubmitDelete([]uint32{1})

	stats, err := q.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CycleStats{Reads: 1, Writes: 2, Deletes: 2}, stats)
	assert.Equal(t, []string{"read", "write:a", "write:b", "delete", "delete"}, fe.calls)
	assert.Zero(t, q.Pending())
}

func TestCycle_Empty(t *testing.T) {
	q := New(&fakeEngine{}, Config{})
	stats, err := q.Cycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Total())
}

func TestCycle_ReadConcurrencyBound(t *testing.T) {
	fe := &fakeEngine{readDelay: 5 * time.Millisecond}
	q := New(fe, Config{Concurrency: 3})

	futures := make([]*Future, 12)
	for i := range futures {
		futures[i] = q.SubmitRead([]uint32{uint32(i)})
	}

	_, err := q.Cycle(context.Background())
	require.NoError(t, err)
	for _, f := range futures {
		_, err := waitResult(t, f)
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, fe.maxFlight.Load(), int32(3))
	assert.Greater(t, fe.maxFlight.Load(), int32(1))
}

func TestCycle_AgainstEngine(t *testing.T) {
	e := openEngine(t)
	q := New(e, Config{})

	w := q.SubmitWrite([]byte("hello, blocks"))
	_, err := q.Cycle(context.Background())
	require.NoError(t, err)

	res, err := waitResult(t, w)
	require.NoError(t, err)
	require.Len(t, res.Indices, 2)

	// A read and a delete in the same cycle: the read is served first and
	// still sees the data.
	r := q.SubmitRead(res.Indices)
	d := q.SubmitDelete(res.Indices)
	_, err = q.Cycle(context.Background())
	require.NoError(t, err)

	got, err := waitResult(t, r)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("hello, b"), []byte("locks")}, got.Blocks)

	_, err = waitResult(t, d)
	require.NoError(t, err)
	assert.Equal(t, res.Indices, e.FreeBlocks())
}

func TestCycle_RequestErrorsGoToFutures(t *testing.T) {
	e := openEngine(t)
	q := New(e, Config{})

	bad := q.SubmitRead([]uint32{42})
	good := q.SubmitWrite([]byte("x"))

	stats, err := q.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)

	_, err = waitResult(t, bad)
	assert.ErrorIs(t, err, blockfile.ErrOutOfRange)

	res, err := waitResult(t, good)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0}, res.Indices)
}

func TestCycle_CanceledContext(t *testing.T) {
	fe := &fakeEngine{}
	q := New(fe, Config{})

	r := q.SubmitRead([]uint32{0})
	w := q.SubmitWrite([]byte("a"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Cycle(ctx)
	require.ErrorIs(t, err, context.Canceled)

	_, err = waitResult(t, r)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = waitResult(t, w)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fe.calls)
}

func TestClear(t *testing.T) {
	q := New(&fakeEngine{}, Config{})

	futures := []*Future{
		q.SubmitRead([]uint32{0}),
		q.SubmitWrite([]byte("a")),
		q.SubmitDelete([]uint32{0}),
	}
	assert.Equal(t, 3, q.Pending())
	assert.Equal(t, 3, q.Clear())
	assert.Zero(t, q.Pending())

	for _, f := range futures {
		_, err := waitResult(t, f)
		assert.ErrorIs(t, err, ErrCleared)
	}
}

func TestFuture_WaitTimeout(t *testing.T) {
	q := New(&fakeEngine{}, Config{})
	f := q.SubmitWrite([]byte("a"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case <-f.Done():
		t.Fatal("future resolved without a cycle")
	default:
	}
}

func TestRequestIDs(t *testing.T) {
	q := New(&fakeEngine{}, Config{})

	seen := make(map[string]bool)
	for range 50 {
		f := q.SubmitRead(nil)
		_, err := uuid.Parse(f.ID)
		require.NoError(t, err)
		assert.False(t, seen[f.ID], "duplicate request id %s", f.ID)
		seen[f.ID] = true
	}
}

func TestRun(t *testing.T) {
	fe := &fakeEngine{writeErr: errors.New("disk full")}
	q := New(fe, Config{Interval: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- q.Run(ctx) }()

	_, err := waitResult(t, q.SubmitWrite([]byte("a")))
	assert.EqualError(t, err, "disk full")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "read", KindRead.String())
	assert.Equal(t, "write", KindWrite.String())
	assert.Equal(t, "delete", KindDelete.String())
	assert.Equal(t, "unknown", Kind(9).String())
}
