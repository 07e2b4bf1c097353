package factorybatch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ghalamif/FactoryBatch/internal/adapters/bufferstore"
	"github.com/ghalamif/FactoryBatch/internal/adapters/catalog"
	"github.com/ghalamif/FactoryBatch/internal/adapters/httpapi"
	"github.com/ghalamif/FactoryBatch/internal/adapters/kafka"
	"github.com/ghalamif/FactoryBatch/internal/adapters/objectstore"
	"github.com/ghalamif/FactoryBatch/internal/adapters/observability"
	"github.com/ghalamif/FactoryBatch/internal/adapters/opcua"
	"github.com/ghalamif/FactoryBatch/internal/adapters/queue"
	"github.com/ghalamif/FactoryBatch/internal/app/extract"
	"github.com/ghalamif/FactoryBatch/internal/app/ingest"
	"github.com/ghalamif/FactoryBatch/internal/app/pipeline"
	"github.com/ghalamif/FactoryBatch/internal/app/schedule"
	"github.com/ghalamif/FactoryBatch/internal/domain"
	"github.com/ghalamif/FactoryBatch/internal/ports"
)

// RuntimeOption customizes the dependencies used by Runtime.
type RuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	store         BufferStore
	objects       ObjectStore
	catalog       Catalog
	queue         EventQueue
	sources       []Source
	observability Observability
	logger        *zap.Logger
	now           func() time.Time
}

// WithBufferStore injects a buffer store instead of the configured driver.
func WithBufferStore(s BufferStore) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.store = s
	}
}

// WithObjectStore injects the destination for exported files.
func WithObjectStore(s ObjectStore) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.objects = s
	}
}

// WithCatalog injects the schema-discovery trigger.
func WithCatalog(c Catalog) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.catalog = c
	}
}

// WithEventQueue injects a custom relay queue implementation.
func WithEventQueue(q EventQueue) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.queue = q
	}
}

// WithSource adds an in-process event source (MQTT, Modbus, simulators, etc.).
func WithSource(src Source) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.sources = append(o.sources, src)
	}
}

// WithObservability plugs in a custom observability backend.
func WithObservability(obs Observability) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

// WithLogger sets the zap logger used by the default observability backend.
func WithLogger(l *zap.Logger) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.logger = l
	}
}

// WithClock replaces the wall clock for ingestion ids and extraction windows.
func WithClock(now func() time.Time) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.now = now
	}
}

// Runtime wires the buffer store, ingestion adapter, batch extractor and
// catalog together and exposes lifecycle hooks for embedding FactoryBatch
// inside any Go service.
type Runtime struct {
	cfg     *Config
	policy  ports.Policy
	log     *zap.Logger
	obs     ports.Observability
	store   ports.BufferStore
	objects ports.ObjectStore
	catalog ports.Catalog
	queue   ports.EventQueue
	sources []ports.Source
	ingest  *ingest.Service
	extract *extract.Extractor
	now     func() time.Time
	db      *sql.DB
	closers []func() error

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	metricsSrv  *http.Server
	httpSrv     *http.Server
	consumer    *kafka.Consumer
	gaugeStopCh chan struct{}
}

// NewRuntime bootstraps the configured adapters. Callers can use
// RuntimeOption values to override any dependency.
func NewRuntime(ctx context.Context, cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	rt := &Runtime{
		cfg:    cfg,
		policy: cfg.Policy,
		now:    overrides.now,
	}
	if rt.now == nil {
		rt.now = time.Now
	}

	rt.log = overrides.logger
	if rt.log == nil {
		l, err := observability.NewLogger(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return nil, err
		}
		rt.log = l
	}
	rt.obs = overrides.observability
	if rt.obs == nil {
		rt.obs = observability.NewPromObs(rt.log)
	}

	clients := &awsClients{cfg: cfg.AWS}
	var err error

	rt.store = overrides.store
	if rt.store == nil {
		if rt.store, err = rt.openBufferStore(ctx, clients); err != nil {
			return nil, errors.Join(err, rt.closeAll())
		}
	}

	rt.objects = overrides.objects
	if rt.objects == nil {
		if rt.objects, err = openObjectStore(ctx, cfg.Export, clients); err != nil {
			return nil, errors.Join(err, rt.closeAll())
		}
	}

	rt.catalog = overrides.catalog
	if rt.catalog == nil {
		if rt.catalog, err = openCatalog(ctx, cfg.Catalog, clients, rt.obs); err != nil {
			return nil, errors.Join(err, rt.closeAll())
		}
	}

	rt.queue = overrides.queue
	if rt.queue == nil {
		rt.queue = queue.NewMemQueue(cfg.Policy.MaxQueueLen)
	}

	rt.sources = overrides.sources
	if cfg.OPCUA != nil {
		col, err := opcua.NewCollector(*cfg.OPCUA, rt.obs)
		if err != nil {
			return nil, errors.Join(err, rt.closeAll())
		}
		rt.sources = append(rt.sources, col)
	}

	ingestOpts := []ingest.Option{
		ingest.WithClock(rt.now),
		ingest.WithTimeout(cfg.Ingest.Timeout),
	}
	if cfg.Ingest.ArchivePrefix != "" {
		ingestOpts = append(ingestOpts, ingest.WithArchive(rt.objects, cfg.Ingest.ArchivePrefix))
	}
	rt.ingest = ingest.NewService(rt.store, rt.obs, ingestOpts...)
	rt.extract = extract.NewExtractor(rt.store, rt.objects, rt.obs,
		extract.WithPrefix(cfg.Export.Prefix),
		extract.WithWindow(cfg.Extract.Window),
		extract.WithTimeout(cfg.Extract.Timeout),
		extract.WithClock(rt.now),
	)

	return rt, nil
}

func (r *Runtime) openBufferStore(ctx context.Context, clients *awsClients) (ports.BufferStore, error) {
	c := r.cfg.Buffer
	switch c.Driver {
	case "memory":
		return bufferstore.NewMemoryStore(), nil
	case "file":
		fs, err := bufferstore.NewFileStore(c.Dir, c.SyncWrites)
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, fs.Close)
		return fs, nil
	case "postgres":
		db, err := sql.Open("postgres", c.ConnString)
		if err != nil {
			return nil, err
		}
		r.db = db
		ps, err := bufferstore.NewPostgresStore(db, c.Table)
		if err != nil {
			return nil, err
		}
		if err := ps.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("postgres schema: %w", err)
		}
		return ps, nil
	case "dynamodb":
		client, err := clients.dynamo(ctx)
		if err != nil {
			return nil, err
		}
		return bufferstore.NewDynamoStore(client, c.Table, c.TimeIndex), nil
	default:
		return nil, fmt.Errorf("unsupported buffer driver %q", c.Driver)
	}
}

func openObjectStore(ctx context.Context, c ExportConfig, clients *awsClients) (ports.ObjectStore, error) {
	switch c.Driver {
	case "local":
		return objectstore.NewLocalStore(c.Dir)
	case "s3":
		client, err := clients.s3(ctx)
		if err != nil {
			return nil, err
		}
		return objectstore.NewS3Store(client, c.Bucket), nil
	default:
		return nil, fmt.Errorf("unsupported export driver %q", c.Driver)
	}
}

func openCatalog(ctx context.Context, c CatalogConfig, clients *awsClients, obs ports.Observability) (ports.Catalog, error) {
	switch c.Driver {
	case "none", "":
		return catalog.Noop{}, nil
	case "glue":
		client, err := clients.glue(ctx)
		if err != nil {
			return nil, err
		}
		return catalog.NewGlueCrawler(client, c.Crawler, obs, catalog.WithRetryAfter(c.Delay)), nil
	default:
		return nil, fmt.Errorf("unsupported catalog driver %q", c.Driver)
	}
}

// Ingest runs one ingestion invocation for a raw payload.
func (r *Runtime) Ingest(ctx context.Context, payload []byte) (IngestResult, error) {
	return r.ingest.HandlePayload(ctx, payload)
}

// IngestEvent runs one ingestion invocation for an already-decoded event.
func (r *Runtime) IngestEvent(ctx context.Context, ev *Event) (IngestResult, error) {
	return r.ingest.Ingest(ctx, ev)
}

// Extract exports the window closed most recently before now.
func (r *Runtime) Extract(ctx context.Context, now time.Time) (ExtractResult, error) {
	return r.extract.Extract(ctx, now)
}

// ExtractWindow exports an explicit window, e.g. to recover a missed hour.
// start must fall on a window boundary so the rerun overwrites that window's
// file instead of writing an overlapping one.
func (r *Runtime) ExtractWindow(ctx context.Context, start time.Time) (ExtractResult, error) {
	w, err := domain.AlignedWindowStartingAt(start, r.cfg.Extract.Window)
	if err != nil {
		return ExtractResult{
			Status:    domain.StatusRejected,
			ErrorKind: domain.ErrorKindMalformedInput,
			Error:     err.Error(),
		}, err
	}
	return r.extract.ExtractWindow(ctx, w)
}

// RefreshCatalog triggers schema discovery over the export prefix.
func (r *Runtime) RefreshCatalog(ctx context.Context) error {
	return r.catalog.Refresh(ctx)
}

// Scheduler builds the in-process extraction schedule.
func (r *Runtime) Scheduler() (*schedule.Scheduler, error) {
	return schedule.New(schedule.Config{
		Cadence:    r.cfg.Extract.Cadence,
		Offset:     r.cfg.Extract.Offset,
		CrawlDelay: r.cfg.Catalog.Delay,
	}, r.extract, r.catalog, r.obs, schedule.WithClock(r.now))
}

// Logger returns the runtime's zap logger.
func (r *Runtime) Logger() *zap.Logger { return r.log }

// Start launches every long-running component: sources and the relay, the
// Kafka consumer, the HTTP push endpoint, the extraction schedule and the
// metrics server. It returns immediately; call Run to block on a context
// instead.
func (r *Runtime) Start(ctx context.Context) error {
	if r == nil {
		return fmt.Errorf("runtime is nil")
	}
	ctx, r.cancel = context.WithCancel(ctx)

	for _, src := range r.sources {
		if err := pipeline.RunCollect(src, r.queue, r.policy, r.obs); err != nil {
			r.cancel()
			return err
		}
	}
	if len(r.sources) > 0 {
		r.goRun(func() error {
			pipeline.RunRelay(ctx, r.queue, r.ingest, r.policy, r.obs)
			return nil
		}, "relay")
	}

	if k := r.cfg.Kafka; k.Topic != "" {
		r.consumer = kafka.NewConsumer(kafka.NewReader(kafka.ReaderConfig{
			Brokers: k.Brokers,
			Topic:   k.Topic,
			GroupID: k.GroupID,
		}), r.ingest, r.obs)
		r.goRun(func() error { return r.consumer.Run(ctx) }, "kafka_consumer")
	}

	if r.cfg.Extract.Schedule {
		sched, err := r.Scheduler()
		if err != nil {
			r.cancel()
			return err
		}
		r.goRun(func() error { return sched.Run(ctx) }, "scheduler")
	}

	r.startHTTP()
	r.startMetrics()
	return nil
}

func (r *Runtime) goRun(fn func() error, name string) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := fn(); err != nil {
			r.obs.LogCritical(name+"_exited", err)
		}
	}()
}

// Run starts the runtime and blocks until the provided context is cancelled.
// Upon cancellation it attempts a graceful shutdown.
func (r *Runtime) Run(ctx context.Context) error {
	if err := r.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.Shutdown(shutdownCtx)
}

// Shutdown stops sources, servers and background loops, then releases the
// store's resources.
func (r *Runtime) Shutdown(ctx context.Context) error {
	var errs []error

	if r.gaugeStopCh != nil {
		close(r.gaugeStopCh)
		r.gaugeStopCh = nil
	}

	for _, srv := range []*http.Server{r.httpSrv, r.metricsSrv} {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}

	for _, src := range r.sources {
		if err := src.Stop(); err != nil {
			errs = append(errs, err)
		}
	}

	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()

	if r.consumer != nil {
		if err := r.consumer.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	errs = append(errs, r.closeAll())
	_ = r.log.Sync()
	return errors.Join(errs...)
}

func (r *Runtime) closeAll() error {
	var errs []error
	for _, c := range r.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			errs = append(errs, err)
		}
		r.db = nil
	}
	return errors.Join(errs...)
}

func (r *Runtime) startHTTP() {
	if r.cfg.HTTP.Addr == "" {
		return
	}
	gin.SetMode(gin.ReleaseMode)
	r.httpSrv = &http.Server{
		Addr:              r.cfg.HTTP.Addr,
		Handler:           httpapi.NewHandler(r.ingest, r.obs).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := r.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.obs.LogCritical("http_server_exited", err)
		}
	}()
}

func (r *Runtime) startMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.metricsSrv = &http.Server{
		Addr:    r.cfg.Metrics.Addr,
		Handler: mux,
	}

	go func() {
		if err := r.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.obs.LogCritical("metrics_server_exited", err)
		}
	}()

	r.gaugeStopCh = make(chan struct{})
	go r.recordResourceGauges(r.gaugeStopCh, time.Second)
}

func (r *Runtime) recordResourceGauges(stop <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.obs.SetGauge(ports.MetricQueueLength, float64(r.queue.Len()))
		}
	}
}
