package factorybatch

import (
	"github.com/ghalamif/FactoryBatch/internal/domain"
	"github.com/ghalamif/FactoryBatch/internal/ports"
)

// Reading is one validated sensor reading.
type Reading = domain.Reading

// Event is a decoded inbound payload: a single reading or a batch.
type Event = domain.Event

// BufferRecord is one row of the append-only buffer store.
type BufferRecord = domain.BufferRecord

// TimeWindow is a half-open extraction interval.
type TimeWindow = domain.TimeWindow

// IngestResult and ExtractResult are the structured outcomes of invocations.
type (
	IngestResult  = domain.IngestResult
	ExtractResult = domain.ExtractResult
)

// BufferStore persists raw records between ingestion and extraction.
type BufferStore = ports.BufferStore

// ObjectStore receives exported batch files.
type ObjectStore = ports.ObjectStore

// Catalog is the schema-discovery service refreshed after each export.
type Catalog = ports.Catalog

// Source streams events produced in-process (OPC UA, simulators) into the relay.
type Source = ports.Source

// EventQueue is the bounded queue between sources and the ingestion adapter.
type EventQueue = ports.EventQueue

// Observability emits metrics and logs about throughput, latency and DLQ conditions.
type Observability = ports.Observability

// Field is a structured log field used by Observability implementations.
type Field = ports.Field

// Status is the outcome of an ingest or extract invocation.
type Status = domain.Status

const (
	StatusOK       = domain.StatusOK
	StatusEmpty    = domain.StatusEmpty
	StatusRejected = domain.StatusRejected
	StatusFailed   = domain.StatusFailed
)
