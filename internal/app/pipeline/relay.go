package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ghalamif/FactoryBatch/internal/domain"
	"github.com/ghalamif/FactoryBatch/internal/ports"
)

// defaultDrainTimeout bounds the shutdown drain when the policy sets none.
const defaultDrainTimeout = 10 * time.Second

// Ingester is the ingestion entry point the relay hands events to.
type Ingester interface {
	Ingest(ctx context.Context, ev *domain.Event) (domain.IngestResult, error)
}

// RunRelay drains q into ing until ctx is cancelled. Each event is one
// ingestion invocation. A failed event is dead-lettered rather than retried:
// readings written before the failure are already in the buffer.
//
// On cancellation the events still queued are delivered under a fresh
// deadline (Policy.DrainTimeout); whatever misses it is dead-lettered, so no
// queued event disappears without a record.
func RunRelay(ctx context.Context, q ports.EventQueue, ing Ingester, pol ports.Policy, obs ports.Observability) {
	for {
		if ctx.Err() != nil {
			drainRelay(q, nil, ing, pol, obs)
			return
		}
		obs.SetGauge(ports.MetricQueueLength, float64(q.Len()))

		batch := q.DequeueBatch(pol.MaxBatchSize)
		if len(batch) == 0 {
			select {
			case <-ctx.Done():
				drainRelay(q, nil, ing, pol, obs)
				return
			case <-time.After(idleSleep(pol)):
			}
			continue
		}

		for i, ev := range batch {
			if ctx.Err() != nil {
				drainRelay(q, batch[i:], ing, pol, obs)
				return
			}
			relayOne(ctx, ing, ev, obs)
		}
	}
}

// drainRelay delivers pending, then everything left in q.
func drainRelay(q ports.EventQueue, pending []*domain.Event, ing Ingester, pol ports.Policy, obs ports.Observability) {
	timeout := pol.DrainTimeout
	if timeout <= 0 {
		timeout = defaultDrainTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	size := pol.MaxBatchSize
	if size <= 0 {
		size = 1
	}

	var delivered, deadLettered int
	for {
		for _, ev := range pending {
			if err := ctx.Err(); err != nil {
				deadLetter(ev, fmt.Errorf("relay shutdown: %w", err), obs)
				deadLettered++
				continue
			}
			if relayOne(ctx, ing, ev, obs) {
				delivered++
			} else {
				deadLettered++
			}
		}
		pending = q.DequeueBatch(size)
		if len(pending) == 0 {
			break
		}
	}

	obs.SetGauge(ports.MetricQueueLength, float64(q.Len()))
	if delivered+deadLettered > 0 {
		obs.LogInfo("relay_drained",
			ports.Field{Key: "delivered", Value: delivered},
			ports.Field{Key: "dead_lettered", Value: deadLettered},
		)
	}
}

func relayOne(ctx context.Context, ing Ingester, ev *domain.Event, obs ports.Observability) bool {
	if _, err := ing.Ingest(ctx, ev); err != nil {
		obs.LogError("relay_ingest_failed", err, ports.Field{Key: "readings", Value: len(ev.Readings)})
		deadLetter(ev, err, obs)
		return false
	}
	return true
}

func deadLetter(ev *domain.Event, err error, obs ports.Observability) {
	payload, _ := json.Marshal(ev.Readings)
	obs.RecordDLQ(payload, err)
}

func idleSleep(pol ports.Policy) time.Duration {
	if pol.IdleSleep <= 0 {
		return 5 * time.Millisecond
	}
	return pol.IdleSleep
}
