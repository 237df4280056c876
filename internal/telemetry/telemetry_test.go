package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/grafana/pyroscope-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "blockfile", cfg.ServiceName)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestConfig_Profiling(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ServiceVersion = "1.2.3"

	prof := cfg.Profiling(true, "http://pyroscope:4040", []string{"cpu", "mutex_count"})
	assert.True(t, prof.Enabled)
	assert.Equal(t, ServiceName, prof.ServiceName)
	assert.Equal(t, "1.2.3", prof.ServiceVersion)
	assert.Equal(t, "http://pyroscope:4040", prof.Endpoint)
	assert.Equal(t, []string{"cpu", "mutex_count"}, prof.ProfileTypes)

	stop, err := InitProfiling(cfg.Profiling(false, "", nil))
	require.NoError(t, err)
	assert.NoError(t, stop())
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()

	shutdown, err := Init(ctx, DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(ctx))
	assert.False(t, IsEnabled())
}

func TestStartSpan_NoOp(t *testing.T) {
	ctx, span := StartSpan(context.Background(), SpanEngineRead, Blocks(4), Path("/tmp/x.blk"))
	require.NotNil(t, ctx)
	require.NotNil(t, span)

	assert.Empty(t, TraceID(ctx), "no-op spans carry no trace ID")
	assert.Empty(t, SpanID(ctx))

	require.NotPanics(t, func() {
		AddEvent(ctx, "grow", GrowBlocks(2))
		EndSpan(span, errors.New("boom"))
	})
}

func TestEndSpan_NilError(t *testing.T) {
	_, span := StartSpan(context.Background(), SpanEngineWrite)
	require.NotPanics(t, func() { EndSpan(span, nil) })
}

func TestSampler(t *testing.T) {
	assert.Contains(t, sampler(1).Description(), "AlwaysOn")
	assert.Contains(t, sampler(0).Description(), "AlwaysOff")
	assert.Contains(t, sampler(0.5).Description(), "TraceIDRatioBased")
}

func TestParseProfileTypes(t *testing.T) {
	types, err := ParseProfileTypes([]string{"cpu", "mutex_count"})
	require.NoError(t, err)
	assert.Equal(t, []pyroscope.ProfileType{pyroscope.ProfileCPU, pyroscope.ProfileMutexCount}, types)

	_, err = ParseProfileTypes([]string{"heap"})
	assert.Error(t, err)
}

func TestInitProfilingDisabled(t *testing.T) {
	stop, err := InitProfiling(ProfilingConfig{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, stop())
}
