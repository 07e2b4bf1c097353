package observability

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ghalamif/FactoryBatch/internal/ports"
)

// maxDLQPayloadLog bounds how much of a rejected payload is echoed to the log.
const maxDLQPayloadLog = 512

type PromObs struct {
	log      *zap.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

// NewPromObs registers the pipeline metrics on the default registerer.
func NewPromObs(log *zap.Logger) *PromObs {
	return NewPromObsWith(prometheus.DefaultRegisterer, log)
}

func NewPromObsWith(reg prometheus.Registerer, log *zap.Logger) *PromObs {
	if log == nil {
		log = zap.NewNop()
	}

	ingested := prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricRecordsIngested,
		Help: "Buffer records written by the ingestion adapter.",
	})
	rejected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricEventsRejected,
		Help: "Inbound events rejected as malformed.",
	})
	dlq := prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricDLQ,
		Help: "Inbound payloads routed to the dead-letter path.",
	})
	queueDrops := prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricQueueDropped,
		Help: "Events lost due to relay queue backpressure policies.",
	})
	rowsWritten := prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricRowsWritten,
		Help: "Rows exported to batch files.",
	})
	rowsSkipped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricRowsSkipped,
		Help: "In-window buffer records skipped as malformed during extraction.",
	})
	extractFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricExtractFailures,
		Help: "Extraction runs that aborted without producing a file.",
	})
	queueGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: ports.MetricQueueLength,
		Help: "Current number of events buffered in the relay queue.",
	})
	windowGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: ports.MetricLastWindowStart,
		Help: "Start of the last window exported successfully, as a unix timestamp.",
	})
	writeLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    ports.MetricStoreWriteLatency,
		Help:    "Latency of one buffer store write.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})
	extractDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    ports.MetricExtractDuration,
		Help:    "Wall time of one extraction run.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
	})

	ingested = register(reg, ingested)
	rejected = register(reg, rejected)
	dlq = register(reg, dlq)
	queueDrops = register(reg, queueDrops)
	rowsWritten = register(reg, rowsWritten)
	rowsSkipped = register(reg, rowsSkipped)
	extractFailures = register(reg, extractFailures)
	queueGauge = register(reg, queueGauge)
	windowGauge = register(reg, windowGauge)
	writeLatency = register(reg, writeLatency)
	extractDuration = register(reg, extractDuration)

	return &PromObs{
		log: log,
		counters: map[string]prometheus.Counter{
			ports.MetricRecordsIngested: ingested,
			ports.MetricEventsRejected:  rejected,
			ports.MetricDLQ:             dlq,
			ports.MetricQueueDropped:    queueDrops,
			ports.MetricRowsWritten:     rowsWritten,
			ports.MetricRowsSkipped:     rowsSkipped,
			ports.MetricExtractFailures: extractFailures,
		},
		gauges: map[string]prometheus.Gauge{
			ports.MetricQueueLength:     queueGauge,
			ports.MetricLastWindowStart: windowGauge,
		},
		histos: map[string]prometheus.Observer{
			ports.MetricStoreWriteLatency: writeLatency,
			ports.MetricExtractDuration:   extractDuration,
		},
	}
}

// register adds c to reg, reusing the collector already registered under the
// same name so several runtimes can share one process.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.log.Info(msg, zapFields(fields)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	p.log.Error(msg, append(zapFields(fields), zap.Error(err))...)
}

// LogCritical is for conditions that lose data.
func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	p.log.Error(msg, append(zapFields(fields), zap.Error(err), zap.Bool("critical", true))...)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func (p *PromObs) RecordDLQ(payload []byte, err error) {
	p.IncCounter(ports.MetricDLQ, 1)
	if len(payload) > maxDLQPayloadLog {
		payload = payload[:maxDLQPayloadLog]
	}
	p.log.Warn("dlq_payload", zap.ByteString("payload", payload), zap.Error(err))
}

func zapFields(fields []ports.Field) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}

var _ ports.Observability = (*PromObs)(nil)
