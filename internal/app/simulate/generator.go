package simulate

import (
	"context"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ghalamif/FactoryBatch/internal/domain"
	"github.com/ghalamif/FactoryBatch/internal/ports"
)

// Ranges of the synthetic sensor values.
var (
	minTemperature = decimal.NewFromInt(65)
	maxTemperature = decimal.NewFromInt(90)
	minVibration   = decimal.RequireFromString("0.1")
	maxVibration   = decimal.RequireFromString("0.9")
)

// Publisher delivers one synthetic reading to the ingestion transport.
type Publisher interface {
	Publish(ctx context.Context, r domain.Reading) error
}

// Generator produces readings for one machine: temperature in [65, 90] with
// two decimal places, vibration in [0.1, 0.9] with three.
type Generator struct {
	machineID string
	rnd       *rand.Rand
	now       func() time.Time
}

func NewGenerator(machineID string, seed int64, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{machineID: machineID, rnd: rand.New(rand.NewSource(seed)), now: now}
}

func (g *Generator) Next() domain.Reading {
	return domain.Reading{
		MachineID:   g.machineID,
		Temperature: g.uniform(minTemperature, maxTemperature, 2),
		Vibration:   g.uniform(minVibration, maxVibration, 3),
		Timestamp:   g.now().UTC().Format("2006-01-02T15:04:05Z"),
	}
}

func (g *Generator) uniform(lo, hi decimal.Decimal, places int32) decimal.Decimal {
	span := hi.Sub(lo)
	return lo.Add(span.Mul(decimal.NewFromFloat(g.rnd.Float64()))).Round(places)
}

// Run publishes one reading every interval until ctx is cancelled. Publish
// failures are logged and the loop continues with the next reading.
func Run(ctx context.Context, g *Generator, pub Publisher, interval time.Duration, obs ports.Observability) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		r := g.Next()
		if err := pub.Publish(ctx, r); err != nil {
			obs.LogError("simulate_publish_failed", err, ports.Field{Key: "machine_id", Value: r.MachineID})
		} else {
			obs.LogInfo("simulate_published",
				ports.Field{Key: "machine_id", Value: r.MachineID},
				ports.Field{Key: "temperature", Value: domain.FormatDecimal(r.Temperature)},
				ports.Field{Key: "vibration", Value: domain.FormatDecimal(r.Vibration)},
			)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
