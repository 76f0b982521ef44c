package observability

import (
	"context"
	"errors"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestInitTracing_Disabled(t *testing.T) {
	shutdown, err := InitTracing(TracingConfig{ServiceName: "postapp-test"})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracing_Stdout(t *testing.T) {
	shutdown, err := InitTracing(TracingConfig{
		ServiceName:  "postapp-test",
		Enabled:      true,
		Exporter:     "stdout",
		SamplerRatio: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	ctx, finish := StartRepositorySpan(context.Background(), "sqlite", "posts", "Create")
	assert.True(t, trace.SpanFromContext(ctx).SpanContext().IsValid())
	finish(errors.New("boom"))
}

func TestStartRepositorySpan_RecordsLatency(t *testing.T) {
	_, finish := StartRepositorySpan(context.Background(), "sqlite", "metrics_probe", "Probe")
	finish(nil)

	var m dto.Metric
	obs, err := DatabaseQueryLatency.GetMetricWithLabelValues("Probe", "metrics_probe")
	require.NoError(t, err)
	require.NoError(t, obs.(interface{ Write(*dto.Metric) error }).Write(&m))
	assert.Equal(t, uint64(1), m.GetHistogram().GetSampleCount())
}

func TestRepoLogger_NilSafe(t *testing.T) {
	var l *RepoLogger
	assert.NotPanics(t, func() {
		l.LogCreate(context.Background(), map[string]any{"id": 1})
		l.LogError(context.Background(), errors.New("x"), "create")
	})
	NewRepoLogger("posts").LogUpdate(context.Background(), map[string]any{"id": 1})
}
