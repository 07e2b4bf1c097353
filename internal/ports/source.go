package ports

import "github.com/ghalamif/FactoryBatch/internal/domain"

// Source pushes decoded telemetry events produced in-process (OPC UA,
// simulators) into the ingestion relay.
type Source interface {
	Start(out chan<- *domain.Event) error
	Stop() error
}
