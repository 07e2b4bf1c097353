package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	"github.com/aws/aws-sdk-go-v2/service/glue/types"

	"github.com/ghalamif/FactoryBatch/internal/ports"
)

// GlueAPI is the subset of the Glue client the crawler trigger uses.
type GlueAPI interface {
	StartCrawler(ctx context.Context, in *glue.StartCrawlerInput, optFns ...func(*glue.Options)) (*glue.StartCrawlerOutput, error)
}

// ErrCrawlerBusy is returned when the crawler is still running a pass that
// may have started before the newest file was written.
var ErrCrawlerBusy = errors.New("catalog: crawler still running")

// GlueCrawler refreshes the table definition by starting a crawler over the
// export prefix.
type GlueCrawler struct {
	client     GlueAPI
	name       string
	obs        ports.Observability
	retryAfter time.Duration
}

type GlueOption func(*GlueCrawler)

// WithRetryAfter sets how long Refresh waits before its single retry when the
// crawler is already running.
func WithRetryAfter(d time.Duration) GlueOption {
	return func(g *GlueCrawler) { g.retryAfter = d }
}

func NewGlueCrawler(client GlueAPI, name string, obs ports.Observability, opts ...GlueOption) *GlueCrawler {
	g := &GlueCrawler{client: client, name: name, obs: obs, retryAfter: time.Minute}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *GlueCrawler) Name() string { return "glue:" + g.name }

// Refresh starts the crawler. A pass already in progress may have listed the
// prefix before the new file landed, so Refresh waits retryAfter and starts
// the crawler once more; a crawler still busy then yields ErrCrawlerBusy.
func (g *GlueCrawler) Refresh(ctx context.Context) error {
	err := g.start(ctx)
	if !isRunning(err) {
		return err
	}

	g.obs.LogInfo("crawler_already_running",
		ports.Field{Key: "crawler", Value: g.name},
		ports.Field{Key: "retry_after", Value: g.retryAfter.String()},
	)
	if g.retryAfter > 0 {
		t := time.NewTimer(g.retryAfter)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}

	err = g.start(ctx)
	if isRunning(err) {
		return fmt.Errorf("%w: %s", ErrCrawlerBusy, g.name)
	}
	return err
}

func (g *GlueCrawler) start(ctx context.Context) error {
	_, err := g.client.StartCrawler(ctx, &glue.StartCrawlerInput{Name: aws.String(g.name)})
	if isRunning(err) {
		return err
	}
	if err != nil {
		return fmt.Errorf("start crawler %s: %w", g.name, err)
	}
	g.obs.LogInfo("crawler_started", ports.Field{Key: "crawler", Value: g.name})
	return nil
}

func isRunning(err error) bool {
	var running *types.CrawlerRunningException
	return errors.As(err, &running)
}

// Noop is used when no schema-discovery service is attached.
type Noop struct{}

func (Noop) Refresh(context.Context) error { return nil }
func (Noop) Name() string                  { return "none" }

var (
	_ ports.Catalog = (*GlueCrawler)(nil)
	_ ports.Catalog = Noop{}
)
