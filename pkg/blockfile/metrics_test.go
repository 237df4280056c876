package blockfile

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.ObserveOperation(OpRead, time.Now(), nil)
		m.ObserveTransfer(OpRead, 1, 10)
		m.ObserveGrow(3)
		m.SetBlocks(4, 1)
	})
}

func TestMetrics_Registration(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	require.NotNil(t, m)

	assert.Panics(t, func() { NewMetrics(reg) }, "duplicate registration")
	assert.NotNil(t, NewMetrics(nil), "unregistered metrics for tests")
}

func TestMetrics_EngineOperations(t *testing.T) {
	ctx := context.Background()
	m := NewMetrics(prometheus.NewRegistry())

	cfg := DefaultConfig(filepath.Join(t.TempDir(), "data.blk"))
	cfg.BlockLen = testBlockLen
	cfg.Metrics = m
	e, err := Open(cfg)
	require.NoError(t, err)
	defer e.Close()

	indices, err := e.Write(ctx, pattern(3*testBlockLen, 1))
	require.NoError(t, err)
	_, err = e.Read(ctx, indices)
	require.NoError(t, err)
	require.NoError(t, e.Delete(ctx, indices[:1]))
	assert.ErrorIs(t, e.Delete(ctx, indices[:1]), ErrInvalidBlock)
	_, err = e.Read(ctx, []uint32{99})
	assert.ErrorIs(t, err, ErrOutOfRange)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues(OpOpen, "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues(OpWrite, "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues(OpRead, "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues(OpRead, "out_of_range")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues(OpDelete, "invalid_block")))

	assert.Equal(t, float64(3*testBlockLen), testutil.ToFloat64(m.bytes.WithLabelValues(OpWrite)))
	assert.Equal(t, float64(3*testBlockLen), testutil.ToFloat64(m.bytes.WithLabelValues(OpRead)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.grown))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.blockCount))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.freeCount))
}
