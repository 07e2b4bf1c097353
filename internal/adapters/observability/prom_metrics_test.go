package observability

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap/zaptest"

	"github.com/ghalamif/FactoryBatch/internal/ports"
)

func TestPromObsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs := NewPromObsWith(reg, zaptest.NewLogger(t))

	obs.IncCounter(ports.MetricRecordsIngested, 5)
	if got := testutil.ToFloat64(obs.counters[ports.MetricRecordsIngested]); got != 5 {
		t.Fatalf("expected ingested counter 5, got %f", got)
	}

	obs.IncCounter(ports.MetricRowsSkipped, 2)
	if got := testutil.ToFloat64(obs.counters[ports.MetricRowsSkipped]); got != 2 {
		t.Fatalf("expected skipped counter 2, got %f", got)
	}

	obs.SetGauge(ports.MetricQueueLength, 42)
	if got := testutil.ToFloat64(obs.gauges[ports.MetricQueueLength]); got != 42 {
		t.Fatalf("expected queue gauge 42, got %f", got)
	}

	obs.ObserveLatency(ports.MetricStoreWriteLatency, 0.5)
	hCollector := obs.histos[ports.MetricStoreWriteLatency].(prometheus.Collector)
	if samples := testutil.CollectAndCount(hCollector); samples != 1 {
		t.Fatalf("expected latency histogram to record 1 sample, got %d", samples)
	}

	obs.RecordDLQ([]byte(`{"machine_id":`), errors.New("unexpected EOF"))
	if got := testutil.ToFloat64(obs.counters[ports.MetricDLQ]); got != 1 {
		t.Fatalf("expected dlq counter 1, got %f", got)
	}

	// Unknown names are ignored rather than panicking.
	obs.IncCounter("nope", 1)
	obs.SetGauge("nope", 1)
	obs.ObserveLatency("nope", 1)
}

func TestPromObsLogsThroughZap(t *testing.T) {
	obs := NewPromObsWith(prometheus.NewRegistry(), zaptest.NewLogger(t))
	obs.LogInfo("extract_complete", ports.Field{Key: "rows", Value: 3})
	obs.LogError("store_scan_failed", errors.New("boom"), ports.Field{Key: "window", Value: "x"})
	obs.LogCritical("relay_drop", errors.New("queue full"))
}

func TestNewLogger(t *testing.T) {
	if _, err := NewLogger("info", "json"); err != nil {
		t.Fatalf("json logger: %v", err)
	}
	if _, err := NewLogger("debug", "console"); err != nil {
		t.Fatalf("console logger: %v", err)
	}
	if _, err := NewLogger("loud", "json"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
	if _, err := NewLogger("info", "xml"); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

func TestPromObsSharesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewPromObsWith(reg, zaptest.NewLogger(t))
	second := NewPromObsWith(reg, zaptest.NewLogger(t))

	first.IncCounter(ports.MetricRowsWritten, 1)
	second.IncCounter(ports.MetricRowsWritten, 2)
	if got := testutil.ToFloat64(second.counters[ports.MetricRowsWritten]); got != 3 {
		t.Fatalf("expected shared counter 3, got %f", got)
	}
}
