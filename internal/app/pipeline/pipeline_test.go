package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ghalamif/FactoryBatch/internal/adapters/queue"
	"github.com/ghalamif/FactoryBatch/internal/domain"
	"github.com/ghalamif/FactoryBatch/internal/ports"
)

func TestEnqueueWithPolicyBlock(t *testing.T) {
	q := &mockQueue{}
	q.failures = 1

	pol := ports.Policy{
		OnQueueFull: "block",
		IdleSleep:   time.Millisecond,
	}
	obs := &mockObs{}

	if ok := enqueueWithPolicy(q, &domain.Event{}, pol, obs); !ok {
		t.Fatalf("expected enqueue to eventually succeed")
	}
	if q.calls != 2 {
		t.Fatalf("expected two enqueue attempts, got %d", q.calls)
	}
}

func TestEnqueueWithPolicyDrop(t *testing.T) {
	q := &mockQueue{failAlways: true}
	pol := ports.Policy{
		OnQueueFull: "drop",
	}
	obs := &mockObs{}

	if ok := enqueueWithPolicy(q, &domain.Event{}, pol, obs); ok {
		t.Fatalf("expected enqueueWithPolicy to fail")
	}
	if len(obs.errs()) == 0 {
		t.Fatalf("expected drop to log an error")
	}
}

func TestEnqueueWithPolicyInvalid(t *testing.T) {
	q := &mockQueue{failAlways: true}
	obs := &mockObs{}

	if ok := enqueueWithPolicy(q, &domain.Event{}, ports.Policy{OnQueueFull: "maybe"}, obs); ok {
		t.Fatalf("expected unknown policy to reject")
	}
	if len(obs.errs()) != 1 {
		t.Fatalf("expected one policy error, got %d", len(obs.errs()))
	}
}

func TestCollectAndRelayDeliverEveryEvent(t *testing.T) {
	src := &chanSource{events: []*domain.Event{
		domain.SingleEvent(domain.Reading{MachineID: "M01"}),
		domain.SingleEvent(domain.Reading{MachineID: "M02"}),
		domain.BatchEvent([]domain.Reading{{MachineID: "M03"}, {MachineID: "M04"}}),
	}}
	q := queue.NewMemQueue(16)
	pol := ports.Policy{MaxQueueLen: 16, MaxBatchSize: 2, IdleSleep: time.Millisecond, OnQueueFull: "block"}
	obs := &mockObs{}

	if err := RunCollect(src, q, pol, obs); err != nil {
		t.Fatalf("collect: %v", err)
	}

	ing := &mockIngester{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunRelay(ctx, q, ing, pol, obs)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for ing.count() < 3 {
		select {
		case <-deadline:
			t.Fatalf("relay delivered %d events, want 3", ing.count())
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	<-done

	if got := ing.machines(); len(got) != 4 || got[0] != "M01" || got[3] != "M04" {
		t.Fatalf("unexpected delivery order %v", got)
	}
}

func TestRelayDeadLettersFailedEvents(t *testing.T) {
	q := queue.NewMemQueue(4)
	q.Enqueue(domain.SingleEvent(domain.Reading{MachineID: "M01"}))
	ing := &mockIngester{err: errors.New("store unavailable")}
	obs := &mockObs{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunRelay(ctx, q, ing, ports.Policy{MaxBatchSize: 4, IdleSleep: time.Millisecond}, obs)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt32(&obs.dlq) == 0 {
		select {
		case <-deadline:
			t.Fatalf("expected failed event to be dead-lettered")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	<-done

	if q.Len() != 0 {
		t.Fatalf("failed event must not be requeued")
	}
}

func queuedEvents(n int) *queue.MemQueue {
	q := queue.NewMemQueue(n)
	for i := 0; i < n; i++ {
		q.Enqueue(domain.SingleEvent(domain.Reading{MachineID: "M01"}))
	}
	return q
}

func TestRelayDeliversQueuedEventsOnShutdown(t *testing.T) {
	q := queuedEvents(10)
	ing := &mockIngester{delay: 10 * time.Millisecond}
	obs := &mockObs{}
	pol := ports.Policy{MaxBatchSize: 1, IdleSleep: time.Millisecond, DrainTimeout: 5 * time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunRelay(ctx, q, ing, pol, obs)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()
	<-done

	if ing.count() != 10 {
		t.Fatalf("expected all 10 queued events ingested, got %d", ing.count())
	}
	if q.Len() != 0 || atomic.LoadInt32(&obs.dlq) != 0 {
		t.Fatalf("expected empty queue and no dead letters, got len=%d dlq=%d", q.Len(), obs.dlq)
	}
}

func TestRelayDeadLettersWhatMissesTheDrainDeadline(t *testing.T) {
	q := queuedEvents(10)
	ing := &mockIngester{delay: 20 * time.Millisecond}
	obs := &mockObs{}
	pol := ports.Policy{MaxBatchSize: 1, IdleSleep: time.Millisecond, DrainTimeout: time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	RunRelay(ctx, q, ing, pol, obs)

	dlq := int(atomic.LoadInt32(&obs.dlq))
	if dlq == 0 {
		t.Fatalf("expected events past the drain deadline to be dead-lettered")
	}
	if ing.count()+dlq != 10 || q.Len() != 0 {
		t.Fatalf("every queued event must be ingested or dead-lettered: ingested=%d dlq=%d left=%d", ing.count(), dlq, q.Len())
	}
}

type chanSource struct {
	events []*domain.Event
}

func (s *chanSource) Start(out chan<- *domain.Event) error {
	go func() {
		for _, ev := range s.events {
			out <- ev
		}
		close(out)
	}()
	return nil
}

func (s *chanSource) Stop() error { return nil }

type mockIngester struct {
	mu    sync.Mutex
	seen  []*domain.Event
	err   error
	delay time.Duration
}

func (m *mockIngester) Ingest(_ context.Context, ev *domain.Event) (domain.IngestResult, error) {
	time.Sleep(m.delay)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen = append(m.seen, ev)
	if m.err != nil {
		return domain.IngestResult{Status: domain.StatusFailed}, m.err
	}
	return domain.IngestResult{Status: domain.StatusOK, RecordsWritten: len(ev.Readings)}, nil
}

func (m *mockIngester) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}

func (m *mockIngester) machines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, ev := range m.seen {
		for _, r := range ev.Readings {
			out = append(out, r.MachineID)
		}
	}
	return out
}

type mockQueue struct {
	failures   int32
	failAlways bool
	calls      int
}

func (m *mockQueue) Enqueue(*domain.Event) bool {
	m.calls++
	if m.failAlways {
		return false
	}
	if atomic.LoadInt32(&m.failures) > 0 {
		atomic.AddInt32(&m.failures, -1)
		return false
	}
	return true
}

func (m *mockQueue) DequeueBatch(int) []*domain.Event { return nil }
func (m *mockQueue) Len() int                         { return 0 }

type mockObs struct {
	mu     sync.Mutex
	errors []error
	dlq    int32
}

func (m *mockObs) LogInfo(string, ...ports.Field) {}
func (m *mockObs) LogError(_ string, err error, _ ...ports.Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, err)
}
func (m *mockObs) LogCritical(string, error, ...ports.Field) {}
func (m *mockObs) IncCounter(string, float64)                {}
func (m *mockObs) ObserveLatency(string, float64)            {}
func (m *mockObs) SetGauge(string, float64)                  {}
func (m *mockObs) RecordDLQ([]byte, error)                   { atomic.AddInt32(&m.dlq, 1) }

func (m *mockObs) errs() []error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors
}
