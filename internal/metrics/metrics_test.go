package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRegistered(t *testing.T) {
	before := testutil.ToFloat64(EncodingFailures.WithLabelValues("weight"))
	EncodingFailures.WithLabelValues("weight").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(EncodingFailures.WithLabelValues("weight")))

	before = testutil.ToFloat64(AutoFlushes)
	AutoFlushes.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(AutoFlushes))

	PendingItems.WithLabelValues("insert").Set(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(PendingItems.WithLabelValues("insert")))
}

func TestReindexAndListenerMetrics(t *testing.T) {
	RowsReindexed.WithLabelValues("ca_objects").Add(5)
	assert.GreaterOrEqual(t, testutil.ToFloat64(RowsReindexed.WithLabelValues("ca_objects")), float64(5))

	before := testutil.ToFloat64(EventsProcessed.WithLabelValues("save", "ok"))
	EventsProcessed.WithLabelValues("save", "ok").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(EventsProcessed.WithLabelValues("save", "ok")))
}
