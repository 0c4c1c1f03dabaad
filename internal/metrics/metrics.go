package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Encoding
	EncodingFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "searchsync_encoding_failures_total",
		Help: "The total number of field values that could not be encoded and were omitted",
	}, []string{"datatype"})

	// Buffering
	PendingItems = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "searchsync_pending_items",
		Help: "The number of items waiting in a write buffer",
	}, []string{"kind"})

	AutoFlushes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "searchsync_auto_flushes_total",
		Help: "The total number of flushes triggered by the buffer size threshold",
	})

	// Commit
	Flushes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "searchsync_flushes_total",
		Help: "The total number of buffer flushes by outcome",
	}, []string{"outcome"})

	FlushLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "searchsync_flush_latency_seconds",
		Help: "The latency of bulk commits",
	})

	BulkOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "searchsync_bulk_operations_total",
		Help: "The total number of bulk operations sent by type",
	}, []string{"type"})

	BulkItemFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "searchsync_bulk_item_failures_total",
		Help: "The total number of bulk items rejected by the search index",
	})

	// Search
	Searches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "searchsync_searches_total",
		Help: "The total number of searches by outcome",
	}, []string{"outcome"})

	SortRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "searchsync_sort_retries_total",
		Help: "The total number of searches retried without an unmapped sort field",
	})

	// Reindex
	RowsReindexed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "searchsync_rows_reindexed_total",
		Help: "The total number of rows written during a reindex by table",
	}, []string{"table"})

	// Listener
	EventsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "searchsync_events_processed_total",
		Help: "The total number of change events processed by kind and outcome",
	}, []string{"kind", "outcome"})

	EventLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "searchsync_event_latency_seconds",
		Help: "The time from receiving a change event to its flush",
	})

	// Puller
	ChangesPulled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "searchsync_changes_pulled_total",
		Help: "The total number of change log entries read from the change stream by type",
	}, []string{"type"})

	Checkpoints = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "searchsync_puller_checkpoints_total",
		Help: "The total number of resume token saves by outcome",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(EncodingFailures)
	prometheus.MustRegister(PendingItems)
	prometheus.MustRegister(AutoFlushes)
	prometheus.MustRegister(Flushes)
	prometheus.MustRegister(FlushLatency)
	prometheus.MustRegister(BulkOperations)
	prometheus.MustRegister(BulkItemFailures)
	prometheus.MustRegister(Searches)
	prometheus.MustRegister(SortRetries)
	prometheus.MustRegister(RowsReindexed)
	prometheus.MustRegister(EventsProcessed)
	prometheus.MustRegister(EventLatency)
	prometheus.MustRegister(ChangesPulled)
	prometheus.MustRegister(Checkpoints)
}
