package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/ghalamif/FactoryBatch/internal/domain"
	"github.com/ghalamif/FactoryBatch/internal/ports"
)

// archiveKeyLayout keeps archive keys free of colons and sortable by arrival.
const archiveKeyLayout = "2006-01-02T15-04-05.000000000Z"

// IDGenerator returns the unique part of a buffer record id.
type IDGenerator func() string

// Service turns inbound events into buffer records. One record is written per
// reading; nothing is written unless every reading in the event is valid.
type Service struct {
	store   ports.BufferStore
	obs     ports.Observability
	now     func() time.Time
	newID   IDGenerator
	timeout time.Duration

	archive       ports.ObjectStore
	archivePrefix string
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(gen IDGenerator) Option {
	return func(s *Service) { s.newID = gen }
}

// WithTimeout bounds one invocation, including every store write.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// WithArchive keeps a copy of every accepted raw payload under prefix.
func WithArchive(store ports.ObjectStore, prefix string) Option {
	return func(s *Service) {
		s.archive = store
		s.archivePrefix = prefix
	}
}

func NewService(store ports.BufferStore, obs ports.Observability, opts ...Option) *Service {
	s := &Service{
		store: store,
		obs:   obs,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandlePayload decodes a raw payload and ingests it. Malformed payloads are
// rejected without touching the store and do not return an error, so queue
// consumers can acknowledge them.
func (s *Service) HandlePayload(ctx context.Context, payload []byte) (domain.IngestResult, error) {
	ev, err := Decode(payload)
	if err != nil {
		s.obs.RecordDLQ(payload, err)
		s.obs.IncCounter(ports.MetricEventsRejected, 1)
		return domain.IngestResult{
			Status:    domain.StatusRejected,
			ErrorKind: domain.ErrorKindMalformedInput,
			Error:     err.Error(),
		}, nil
	}

	res, err := s.Ingest(ctx, ev)
	if err != nil {
		return res, err
	}
	if s.archive != nil {
		s.archiveRaw(ctx, payload)
	}
	return res, nil
}

// Ingest writes one buffer record per reading of an already-decoded event.
// Store failures are returned unchanged; records written before the failure
// stay in the buffer.
func (s *Service) Ingest(ctx context.Context, ev *domain.Event) (domain.IngestResult, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	res := domain.IngestResult{Status: domain.StatusOK, Kind: ev.Kind.String()}
	ingestedAt := s.now().UTC().Format(time.RFC3339Nano)

	for _, r := range ev.Readings {
		rec := &domain.BufferRecord{
			ID:        ingestedAt + "#" + s.newID(),
			Timestamp: r.Timestamp,
			Message:   r.Message(),
		}

		start := time.Now()
		err := s.store.Put(ctx, rec)
		s.obs.ObserveLatency(ports.MetricStoreWriteLatency, time.Since(start).Seconds())
		if err != nil {
			s.obs.LogError("buffer_put_failed", err,
				ports.Field{Key: "id", Value: rec.ID},
				ports.Field{Key: "machine_id", Value: r.MachineID},
			)
			res.Status = domain.StatusFailed
			res.ErrorKind = domain.KindOf(err, domain.ErrorKindStoreUnavailable)
			res.Error = err.Error()
			return res, fmt.Errorf("buffer put %s: %w", rec.ID, err)
		}
		res.RecordsWritten++
		s.obs.IncCounter(ports.MetricRecordsIngested, 1)
	}

	s.obs.LogInfo("event_ingested",
		ports.Field{Key: "kind", Value: res.Kind},
		ports.Field{Key: "records", Value: res.RecordsWritten},
	)
	return res, nil
}

// archiveRaw is best effort: the buffer already holds the readings.
func (s *Service) archiveRaw(ctx context.Context, payload []byte) {
	if !json.Valid(payload) {
		return
	}
	key := path.Join(s.archivePrefix, s.now().UTC().Format(archiveKeyLayout)+"_"+s.newID()+".json")
	if err := s.archive.Put(ctx, key, payload, "application/json"); err != nil {
		s.obs.LogError("archive_put_failed", err, ports.Field{Key: "key", Value: key})
	}
}
