package factorybatch

import (
	"context"
	"time"

	"go.uber.org/zap"

	base "github.com/ghalamif/FactoryBatch/pkg/factorybatch"
)

// Type aliases so consumers can import github.com/ghalamif/FactoryBatch directly.
type (
	Config          = base.Config
	Policy          = base.Policy
	BufferConfig    = base.BufferConfig
	ExportConfig    = base.ExportConfig
	ExtractConfig   = base.ExtractConfig
	CatalogConfig   = base.CatalogConfig
	IngestConfig    = base.IngestConfig
	AWSConfig       = base.AWSConfig
	KafkaConfig     = base.KafkaConfig
	HTTPConfig      = base.HTTPConfig
	MetricsConfig   = base.MetricsConfig
	LogConfig       = base.LogConfig
	SimulatorConfig = base.SimulatorConfig
	OPCUAConfig     = base.OPCUAConfig
	OPCUAMachine    = base.OPCUAMachine
	Runtime         = base.Runtime
	RuntimeOption   = base.RuntimeOption
	Reading         = base.Reading
	Event           = base.Event
	BufferRecord    = base.BufferRecord
	TimeWindow      = base.TimeWindow
	IngestResult    = base.IngestResult
	ExtractResult   = base.ExtractResult
	BufferStore     = base.BufferStore
	ObjectStore     = base.ObjectStore
	Catalog         = base.Catalog
	Source          = base.Source
	EventQueue      = base.EventQueue
	Observability   = base.Observability
	Field           = base.Field
	Status          = base.Status
)

const (
	StatusOK       = base.StatusOK
	StatusEmpty    = base.StatusEmpty
	StatusRejected = base.StatusRejected
	StatusFailed   = base.StatusFailed
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func ConfigFromEnv() (*Config, error) {
	return base.ConfigFromEnv()
}

// Runtime and options.
func NewRuntime(ctx context.Context, cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	return base.NewRuntime(ctx, cfg, opts...)
}

func WithBufferStore(s BufferStore) RuntimeOption {
	return base.WithBufferStore(s)
}

func WithObjectStore(s ObjectStore) RuntimeOption {
	return base.WithObjectStore(s)
}

func WithCatalog(c Catalog) RuntimeOption {
	return base.WithCatalog(c)
}

func WithEventQueue(q EventQueue) RuntimeOption {
	return base.WithEventQueue(q)
}

func WithSource(src Source) RuntimeOption {
	return base.WithSource(src)
}

func WithObservability(obs Observability) RuntimeOption {
	return base.WithObservability(obs)
}

func WithLogger(l *zap.Logger) RuntimeOption {
	return base.WithLogger(l)
}

func WithClock(now func() time.Time) RuntimeOption {
	return base.WithClock(now)
}
