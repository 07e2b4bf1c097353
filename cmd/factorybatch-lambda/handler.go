package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/events"

	factorybatch "github.com/ghalamif/FactoryBatch"
)

// runtime is the part of factorybatch.Runtime the function handlers use.
type runtime interface {
	Ingest(ctx context.Context, payload []byte) (factorybatch.IngestResult, error)
	Extract(ctx context.Context, now time.Time) (factorybatch.ExtractResult, error)
}

// selectHandler picks the entry point by name. One deployment package serves
// both functions; FACTORYBATCH_HANDLER tells them apart.
func selectHandler(name string, rt runtime) (any, error) {
	switch name {
	case "", "ingest":
		return ingestHandler(rt), nil
	case "extract":
		return extractHandler(rt), nil
	default:
		return nil, fmt.Errorf("unknown handler %q: want ingest or extract", name)
	}
}

// ingestHandler receives the raw event published by the message router. A
// rejected payload is acknowledged; only store failures make the invocation
// fail so the platform retries it.
func ingestHandler(rt runtime) func(context.Context, json.RawMessage) (factorybatch.IngestResult, error) {
	return func(ctx context.Context, payload json.RawMessage) (factorybatch.IngestResult, error) {
		return rt.Ingest(ctx, payload)
	}
}

// extractHandler runs on the scheduled rule. The event time, not the wall
// clock, picks the window so a delayed invocation still exports the hour it
// was scheduled for.
func extractHandler(rt runtime) func(context.Context, events.CloudWatchEvent) (factorybatch.ExtractResult, error) {
	return func(ctx context.Context, ev events.CloudWatchEvent) (factorybatch.ExtractResult, error) {
		now := ev.Time
		if now.IsZero() {
			now = time.Now()
		}
		return rt.Extract(ctx, now)
	}
}
