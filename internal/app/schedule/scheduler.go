package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ghalamif/FactoryBatch/internal/domain"
	"github.com/ghalamif/FactoryBatch/internal/ports"
)

// Extractor is the part of the batch extractor the scheduler drives.
type Extractor interface {
	Extract(ctx context.Context, now time.Time) (domain.ExtractResult, error)
}

// Config controls tick alignment. Ticks fire at every multiple of Cadence
// plus Offset; the catalog refresh follows a successful export by CrawlDelay.
type Config struct {
	Cadence    time.Duration
	Offset     time.Duration
	CrawlDelay time.Duration
}

func (c Config) validate() error {
	if c.Cadence <= 0 {
		return errors.New("schedule: cadence must be positive")
	}
	if c.Offset < 0 || c.Offset >= c.Cadence {
		return fmt.Errorf("schedule: offset %s must be in [0, %s)", c.Offset, c.Cadence)
	}
	if c.CrawlDelay < 0 || c.Offset+c.CrawlDelay >= c.Cadence {
		return fmt.Errorf("schedule: offset+crawl delay %s must be shorter than cadence %s", c.Offset+c.CrawlDelay, c.Cadence)
	}
	return nil
}

// Scheduler runs extraction on a fixed cadence and refreshes the catalog
// only after an export was actually written.
type Scheduler struct {
	cfg     Config
	ex      Extractor
	catalog ports.Catalog
	obs     ports.Observability

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

type Option func(*Scheduler)

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithSleep replaces the context-aware wait used between ticks.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Scheduler) { s.sleep = sleep }
}

func New(cfg Config, ex Extractor, catalog ports.Catalog, obs ports.Observability, opts ...Option) (*Scheduler, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	s := &Scheduler{
		cfg:     cfg,
		ex:      ex,
		catalog: catalog,
		obs:     obs,
		now:     time.Now,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Next returns the first tick strictly after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	t = t.UTC()
	next := t.Truncate(s.cfg.Cadence).Add(s.cfg.Offset)
	for !next.After(t) {
		next = next.Add(s.cfg.Cadence)
	}
	return next
}

// Run ticks until ctx is cancelled. Tick failures are logged and the loop
// moves on to the next window; there is no automatic backfill.
func (s *Scheduler) Run(ctx context.Context) error {
	s.obs.LogInfo("scheduler_started",
		ports.Field{Key: "cadence", Value: s.cfg.Cadence.String()},
		ports.Field{Key: "offset", Value: s.cfg.Offset.String()},
		ports.Field{Key: "catalog", Value: s.catalog.Name()},
	)
	for {
		at := s.Next(s.now())
		if err := s.sleep(ctx, at.Sub(s.now())); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if _, err := s.Tick(ctx, at); err != nil {
			s.obs.LogError("scheduled_tick_failed", err, ports.Field{Key: "tick", Value: at})
		}
		if err := ctx.Err(); err != nil {
			return nil
		}
	}
}

// Tick extracts the window closed by the tick at and, when a file was
// written, triggers the catalog refresh after the crawl delay.
func (s *Scheduler) Tick(ctx context.Context, at time.Time) (domain.ExtractResult, error) {
	res, err := s.ex.Extract(ctx, at)
	if err != nil {
		return res, err
	}
	if res.Status != domain.StatusOK {
		return res, nil
	}

	if s.cfg.CrawlDelay > 0 {
		if err := s.sleep(ctx, s.cfg.CrawlDelay); err != nil {
			return res, err
		}
	}
	if err := s.catalog.Refresh(ctx); err != nil {
		s.obs.LogError("catalog_refresh_failed", err, ports.Field{Key: "catalog", Value: s.catalog.Name()})
		return res, fmt.Errorf("refresh catalog: %w", err)
	}
	return res, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
