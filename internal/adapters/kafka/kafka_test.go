package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghalamif/FactoryBatch/internal/adapters/bufferstore"
	"github.com/ghalamif/FactoryBatch/internal/app/ingest"
	"github.com/ghalamif/FactoryBatch/internal/domain"
	"github.com/ghalamif/FactoryBatch/internal/ports"
)

type fakeReader struct {
	mu        sync.Mutex
	pending   []kafkago.Message
	committed []int64
	cancel    context.CancelFunc
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pending) == 0 {
		f.cancel()
		return kafkago.Message{}, context.Canceled
	}
	m := f.pending[0]
	f.pending = f.pending[1:]
	return m, nil
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error { return nil }

func TestConsumerCommitsAfterIngest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &fakeReader{cancel: cancel, pending: []kafkago.Message{
		{Offset: 1, Value: []byte(`{"machine_id":"M01","temperature":72.34,"vibration":0.42,"timestamp":"2024-01-01T10:15:00Z"}`)},
		{Offset: 2, Value: []byte(`{"machine_id":`)},
		{Offset: 3, Value: []byte(`{"records":[{"machine_id":"M02","temperature":70,"vibration":0.1,"timestamp":"2024-01-01T10:16:00Z"}]}`)},
	}}
	store := bufferstore.NewMemoryStore()
	svc := ingest.NewService(store, nopObs{})

	require.NoError(t, NewConsumer(reader, svc, nopObs{}).Run(ctx))
	assert.Equal(t, []int64{1, 2, 3}, reader.committed, "malformed messages are committed too")
	assert.Equal(t, 2, store.Len())
}

type flakyHandler struct {
	fails int
	calls int
}

func (h *flakyHandler) HandlePayload(context.Context, []byte) (domain.IngestResult, error) {
	h.calls++
	if h.calls <= h.fails {
		return domain.IngestResult{Status: domain.StatusFailed}, errors.New("throttled")
	}
	return domain.IngestResult{Status: domain.StatusOK, RecordsWritten: 1}, nil
}

func TestConsumerRetriesStoreFailuresBeforeCommit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &fakeReader{cancel: cancel, pending: []kafkago.Message{{Offset: 7, Value: []byte(`{}`)}}}
	h := &flakyHandler{fails: 2}
	c := NewConsumer(reader, h, nopObs{})
	c.backoff = time.Millisecond

	require.NoError(t, c.Run(ctx))
	assert.Equal(t, 3, h.calls)
	assert.Equal(t, []int64{7}, reader.committed)
}

func TestConsumerStopsRetryingOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	reader := &fakeReader{cancel: cancel, pending: []kafkago.Message{{Offset: 9}}}
	h := &flakyHandler{fails: 1 << 30}
	c := NewConsumer(reader, h, nopObs{})
	c.backoff = time.Millisecond

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	require.NoError(t, c.Run(ctx))
	assert.Empty(t, reader.committed)
}

type fakeWriter struct {
	msgs []kafkago.Message
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestPublisherKeysByMachine(t *testing.T) {
	w := &fakeWriter{}
	p := NewPublisher(w)
	require.NoError(t, p.Publish(context.Background(), domain.Reading{
		MachineID:   "M01",
		Temperature: decimal.RequireFromString("72.30"),
		Vibration:   decimal.RequireFromString("0.420"),
		Timestamp:   "2024-01-01T10:15:00Z",
	}))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "M01", string(w.msgs[0].Key))
	assert.JSONEq(t, `{"machine_id":"M01","temperature":72.30,"vibration":0.420,"timestamp":"2024-01-01T10:15:00Z"}`, string(w.msgs[0].Value))

	ev, err := ingest.Decode(w.msgs[0].Value)
	require.NoError(t, err)
	assert.Equal(t, "72.30", domain.FormatDecimal(ev.Readings[0].Temperature))

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &raw))
	assert.Equal(t, "0.420", string(raw["vibration"]))
}

type nopObs struct{}

func (nopObs) LogInfo(string, ...ports.Field)            {}
func (nopObs) LogError(string, error, ...ports.Field)    {}
func (nopObs) LogCritical(string, error, ...ports.Field) {}
func (nopObs) IncCounter(string, float64)                {}
func (nopObs) ObserveLatency(string, float64)            {}
func (nopObs) SetGauge(string, float64)                  {}
func (nopObs) RecordDLQ([]byte, error)                   {}
