package simulate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghalamif/FactoryBatch/internal/app/ingest"
	"github.com/ghalamif/FactoryBatch/internal/domain"
	"github.com/ghalamif/FactoryBatch/internal/ports"
)

func TestGeneratorRangesAndPrecision(t *testing.T) {
	at := time.Date(2024, 1, 1, 10, 15, 0, 123, time.UTC)
	g := NewGenerator("M01", 42, func() time.Time { return at })

	for i := 0; i < 500; i++ {
		r := g.Next()
		assert.Equal(t, "M01", r.MachineID)
		assert.Equal(t, "2024-01-01T10:15:00Z", r.Timestamp)

		assert.True(t, r.Temperature.GreaterThanOrEqual(minTemperature) && r.Temperature.LessThanOrEqual(maxTemperature), r.Temperature.String())
		assert.True(t, r.Vibration.GreaterThanOrEqual(minVibration) && r.Vibration.LessThanOrEqual(maxVibration), r.Vibration.String())
		assert.Equal(t, int32(-2), r.Temperature.Exponent())
		assert.Equal(t, int32(-3), r.Vibration.Exponent())
	}
}

func TestGeneratorIsDeterministicForSeed(t *testing.T) {
	now := func() time.Time { return time.Unix(0, 0) }
	a, b := NewGenerator("M01", 7, now), NewGenerator("M01", 7, now)
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Next(), b.Next())
	}
}

func TestGeneratedReadingsAreIngestible(t *testing.T) {
	g := NewGenerator("M01", 1, nil)
	pub := &capturePublisher{}
	require.NoError(t, pub.Publish(context.Background(), g.Next()))

	_, err := ingest.Decode(pub.payloads[0])
	require.NoError(t, err)
}

func TestRunPublishesUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pub := &capturePublisher{after: 3, cancel: cancel, failFirst: true}

	err := Run(ctx, NewGenerator("M01", 1, nil), pub, time.Millisecond, nopObs{})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, pub.calls, 3)
}

type capturePublisher struct {
	mu        sync.Mutex
	payloads  [][]byte
	calls     int
	after     int
	cancel    context.CancelFunc
	failFirst bool
}

func (c *capturePublisher) Publish(_ context.Context, r domain.Reading) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.cancel != nil && c.calls >= c.after {
		c.cancel()
	}
	if c.failFirst && c.calls == 1 {
		return errors.New("broker unavailable")
	}
	c.payloads = append(c.payloads, []byte(`{"machine_id":"`+r.MachineID+`","temperature":`+
		domain.FormatDecimal(r.Temperature)+`,"vibration":`+domain.FormatDecimal(r.Vibration)+
		`,"timestamp":"`+r.Timestamp+`"}`))
	return nil
}

type nopObs struct{}

func (nopObs) LogInfo(string, ...ports.Field)            {}
func (nopObs) LogError(string, error, ...ports.Field)    {}
func (nopObs) LogCritical(string, error, ...ports.Field) {}
func (nopObs) IncCounter(string, float64)                {}
func (nopObs) ObserveLatency(string, float64)            {}
func (nopObs) SetGauge(string, float64)                  {}
func (nopObs) RecordDLQ([]byte, error)                   {}
