package ports

// Metric names understood by Observability implementations.
const (
	MetricRecordsIngested   = "factorybatch_records_ingested_total"
	MetricEventsRejected    = "factorybatch_events_rejected_total"
	MetricDLQ               = "factorybatch_dlq_total"
	MetricQueueDropped      = "factorybatch_queue_dropped_total"
	MetricRowsWritten       = "factorybatch_extract_rows_written_total"
	MetricRowsSkipped       = "factorybatch_extract_rows_skipped_total"
	MetricExtractFailures   = "factorybatch_extract_failures_total"
	MetricQueueLength       = "factorybatch_queue_length"
	MetricLastWindowStart   = "factorybatch_last_window_start_seconds"
	MetricStoreWriteLatency = "factorybatch_store_write_latency_seconds"
	MetricExtractDuration   = "factorybatch_extract_duration_seconds"
)
