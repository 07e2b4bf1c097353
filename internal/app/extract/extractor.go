package extract

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ghalamif/FactoryBatch/internal/domain"
	"github.com/ghalamif/FactoryBatch/internal/ports"
)

// Extractor exports one closed window of the buffer store per run.
type Extractor struct {
	store   ports.BufferStore
	objects ports.ObjectStore
	obs     ports.Observability

	prefix  string
	window  time.Duration
	timeout time.Duration
	now     func() time.Time
}

type Option func(*Extractor)

func WithPrefix(prefix string) Option {
	return func(e *Extractor) { e.prefix = prefix }
}

func WithWindow(size time.Duration) Option {
	return func(e *Extractor) { e.window = size }
}

// WithTimeout bounds one run, covering the store read and the upload.
func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) { e.timeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

func NewExtractor(store ports.BufferStore, objects ports.ObjectStore, obs ports.Observability, opts ...Option) *Extractor {
	e := &Extractor{
		store:   store,
		objects: objects,
		obs:     obs,
		prefix:  DefaultPrefix,
		window:  domain.DefaultWindow,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run extracts the window that closed most recently according to the clock.
func (e *Extractor) Run(ctx context.Context) (domain.ExtractResult, error) {
	return e.Extract(ctx, e.now())
}

// Extract exports the window ending at now floored to the window size.
func (e *Extractor) Extract(ctx context.Context, now time.Time) (domain.ExtractResult, error) {
	return e.ExtractWindow(ctx, domain.WindowEndingAt(now, e.window))
}

// ExtractWindow exports w. Either the complete file is uploaded or nothing
// is; store and upload errors are returned unchanged for the caller to retry.
func (e *Extractor) ExtractWindow(ctx context.Context, w domain.TimeWindow) (domain.ExtractResult, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	started := time.Now()
	defer func() {
		e.obs.ObserveLatency(ports.MetricExtractDuration, time.Since(started).Seconds())
	}()

	res := domain.ExtractResult{WindowStart: w.Start, WindowEnd: w.End}

	rows, stats, err := e.collect(ctx, w)
	if err != nil {
		return e.fail(res, domain.KindOf(err, domain.ErrorKindStoreUnavailable), fmt.Errorf("scan buffer for %s: %w", w, err))
	}
	res.RowsSkipped = stats.skipped
	if stats.skipped > 0 {
		e.obs.IncCounter(ports.MetricRowsSkipped, float64(stats.skipped))
	}
	if stats.badTimestamps > 0 {
		e.obs.LogInfo("records_without_valid_timestamp",
			ports.Field{Key: "window", Value: w.String()},
			ports.Field{Key: "count", Value: stats.badTimestamps},
		)
	}

	if len(rows) == 0 {
		res.Status = domain.StatusEmpty
		e.obs.LogInfo("extract_empty_window",
			ports.Field{Key: "window", Value: w.String()},
			ports.Field{Key: "rows_skipped", Value: res.RowsSkipped},
		)
		return res, nil
	}

	body, err := EncodeCSV(rows)
	if err != nil {
		return e.fail(res, domain.ErrorKindMalformedInput, fmt.Errorf("encode %s: %w", w, err))
	}

	key := ObjectKey(e.prefix, w)
	if err := ctx.Err(); err != nil {
		return e.fail(res, domain.KindOf(err, domain.ErrorKindObjectStoreUnavailable), err)
	}
	if err := e.objects.Put(ctx, key, body, "text/csv"); err != nil {
		return e.fail(res, domain.KindOf(err, domain.ErrorKindObjectStoreUnavailable), fmt.Errorf("upload %s: %w", key, err))
	}

	res.Status = domain.StatusOK
	res.Key = key
	res.RowsWritten = len(rows)
	e.obs.IncCounter(ports.MetricRowsWritten, float64(len(rows)))
	e.obs.SetGauge(ports.MetricLastWindowStart, float64(w.Start.Unix()))
	e.obs.LogInfo("extract_complete",
		ports.Field{Key: "window", Value: w.String()},
		ports.Field{Key: "key", Value: key},
		ports.Field{Key: "rows_written", Value: res.RowsWritten},
		ports.Field{Key: "rows_skipped", Value: res.RowsSkipped},
		ports.Field{Key: "destination", Value: e.objects.Name()},
	)
	return res, nil
}

func (e *Extractor) fail(res domain.ExtractResult, kind domain.ErrorKind, err error) (domain.ExtractResult, error) {
	res.Status = domain.StatusFailed
	res.ErrorKind = kind
	res.Error = err.Error()
	e.obs.IncCounter(ports.MetricExtractFailures, 1)
	e.obs.LogError("extract_failed", err, ports.Field{Key: "window_start", Value: res.WindowStart})
	return res, err
}

type scanStats struct {
	skipped       int
	badTimestamps int
}

type row struct {
	at  time.Time
	rec domain.BufferRecord
}

// collect reads every record inside w, narrowing the read when the store
// supports it. Records outside w are dropped here regardless of how they
// were read.
func (e *Extractor) collect(ctx context.Context, w domain.TimeWindow) ([]domain.BufferRecord, scanStats, error) {
	var (
		stats scanStats
		kept  []row
	)
	visit := func(rec *domain.BufferRecord) error {
		at, err := rec.EventTime()
		if err != nil {
			stats.badTimestamps++
			return nil
		}
		if !w.Contains(at) {
			return nil
		}
		if !rec.Message.Complete() {
			stats.skipped++
			return nil
		}
		kept = append(kept, row{at: at, rec: *rec})
		return nil
	}

	var err error
	if rs, ok := e.store.(ports.RangeScanner); ok {
		err = rs.ScanRange(ctx, w, visit)
	} else {
		err = e.store.Scan(ctx, visit)
	}
	if err != nil {
		return nil, stats, err
	}

	sort.Slice(kept, func(i, j int) bool {
		if !kept[i].at.Equal(kept[j].at) {
			return kept[i].at.Before(kept[j].at)
		}
		if kept[i].rec.ID != kept[j].rec.ID {
			return kept[i].rec.ID < kept[j].rec.ID
		}
		return kept[i].rec.Timestamp < kept[j].rec.Timestamp
	})

	out := make([]domain.BufferRecord, len(kept))
	for i := range kept {
		out[i] = kept[i].rec
	}
	return out, stats, nil
}
