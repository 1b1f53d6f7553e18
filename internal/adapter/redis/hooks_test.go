package redis

import (
	"context"
	"testing"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ognjhunt/blueprintxr/internal/adapter/metrics"
)

func TestStateValue(t *testing.T) {
	assert.Equal(t, 0, stateValue(circuitbreaker.ClosedState))
	assert.Equal(t, 1, stateValue(circuitbreaker.HalfOpenState))
	assert.Equal(t, 2, stateValue(circuitbreaker.OpenState))
}

func TestMetricsHook_RecordsCommands(t *testing.T) {
	m := metrics.NewRedisMetrics(prometheus.NewRegistry())
	client := setupTestClient(t, NewMetricsHook(m), NewCircuitBreakerHook(nil))
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "k", "v", 0).Err())
	require.NoError(t, client.Get(ctx, "k").Err())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("set", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("get", "success")))
}
