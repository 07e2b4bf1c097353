package factorybatch

import (
	"github.com/ghalamif/FactoryBatch/internal/adapters/opcua"
	"github.com/ghalamif/FactoryBatch/internal/app/config"
	"github.com/ghalamif/FactoryBatch/internal/ports"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// Policy controls the relay queue thresholds.
	Policy = ports.Policy
	// BufferConfig selects and configures the buffer store.
	BufferConfig = config.BufferConfig
	// ExportConfig selects where batch files are written.
	ExportConfig = config.ExportConfig
	// ExtractConfig sets the window, timeout and schedule of extraction.
	ExtractConfig = config.ExtractConfig
	// CatalogConfig configures schema discovery.
	CatalogConfig = config.CatalogConfig
	// IngestConfig configures the ingestion adapter.
	IngestConfig = config.IngestConfig
	AWSConfig    = config.AWSConfig
	KafkaConfig  = config.KafkaConfig
	HTTPConfig   = config.HTTPConfig
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
	LogConfig     = config.LogConfig
	// SimulatorConfig configures the synthetic publisher.
	SimulatorConfig = config.SimulatorConfig
	// OPCUAConfig holds connection and machine node details.
	OPCUAConfig = opcua.Config
	// OPCUAMachine names one machine's temperature and vibration nodes.
	OPCUAMachine = opcua.MachineNodes
)

// LoadConfig loads YAML from disk using the internal config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// ConfigFromEnv builds a configuration from environment variables only.
func ConfigFromEnv() (*Config, error) {
	return config.FromEnv()
}
