package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ghalamif/FactoryBatch/internal/adapters/opcua"
	"github.com/ghalamif/FactoryBatch/internal/ports"
)

type Config struct {
	Buffer    BufferConfig    `yaml:"buffer"`
	Export    ExportConfig    `yaml:"export"`
	Extract   ExtractConfig   `yaml:"extract"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Ingest    IngestConfig    `yaml:"ingest"`
	AWS       AWSConfig       `yaml:"aws"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	OPCUA     *opcua.Config   `yaml:"opcua"`
	HTTP      HTTPConfig      `yaml:"http"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Policy    ports.Policy    `yaml:"policy"`
	Log       LogConfig       `yaml:"log"`
	Simulator SimulatorConfig `yaml:"simulator"`
}

// BufferConfig selects the buffer store. Driver is one of memory, file,
// postgres or dynamodb.
type BufferConfig struct {
	Driver     string `yaml:"driver"`
	Dir        string `yaml:"dir"`
	SyncWrites bool   `yaml:"sync_writes"`
	ConnString string `yaml:"conn_string"`
	Table      string `yaml:"table"`
	// TimeIndex names the DynamoDB index keyed by hour bucket, if any.
	TimeIndex string `yaml:"time_index"`
}

// ExportConfig selects where batch files go. Driver is s3 or local.
type ExportConfig struct {
	Driver string `yaml:"driver"`
	Bucket string `yaml:"bucket"`
	Dir    string `yaml:"dir"`
	Prefix string `yaml:"prefix"`
}

type ExtractConfig struct {
	Window   time.Duration `yaml:"window"`
	Timeout  time.Duration `yaml:"timeout"`
	Schedule bool          `yaml:"schedule"`
	Cadence  time.Duration `yaml:"cadence"`
	Offset   time.Duration `yaml:"offset"`
}

// CatalogConfig selects the schema-discovery trigger. Driver is glue or none.
type CatalogConfig struct {
	Driver  string        `yaml:"driver"`
	Crawler string        `yaml:"crawler"`
	Delay   time.Duration `yaml:"delay"`
}

type IngestConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	ArchivePrefix string        `yaml:"archive_prefix"`
}

type AWSConfig struct {
	Region string `yaml:"region"`
	// Endpoint overrides every AWS service endpoint (LocalStack, MinIO).
	Endpoint string `yaml:"endpoint"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"group_id"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type SimulatorConfig struct {
	MachineID string        `yaml:"machine_id"`
	Interval  time.Duration `yaml:"interval"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// FromEnv builds a configuration from the environment alone, for hosts that
// ship no config file. Storage defaults to DynamoDB and S3 there.
func FromEnv() (*Config, error) {
	return fromEnv(os.Getenv)
}

func fromEnv(getenv func(string) string) (*Config, error) {
	cfg := Config{
		Buffer: BufferConfig{Driver: "dynamodb"},
		Export: ExportConfig{Driver: "s3"},
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}
	if cfg.Catalog.Driver == "" && cfg.Catalog.Crawler != "" {
		cfg.Catalog.Driver = "glue"
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overlays environment variables on top of the file. The unprefixed
// names are the ones the deployed functions have always been given.
func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	var errs []error
	dur := func(key string, dst *time.Duration) {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}

	str("DYNAMODB_TABLE_NAME", &c.Buffer.Table)
	str("BUCKET_NAME", &c.Export.Bucket)

	str("FACTORYBATCH_BUFFER_DRIVER", &c.Buffer.Driver)
	str("FACTORYBATCH_BUFFER_TABLE", &c.Buffer.Table)
	str("FACTORYBATCH_BUFFER_TIME_INDEX", &c.Buffer.TimeIndex)
	str("FACTORYBATCH_BUFFER_CONN_STRING", &c.Buffer.ConnString)
	str("FACTORYBATCH_BUFFER_DIR", &c.Buffer.Dir)
	str("FACTORYBATCH_EXPORT_DRIVER", &c.Export.Driver)
	str("FACTORYBATCH_EXPORT_BUCKET", &c.Export.Bucket)
	str("FACTORYBATCH_EXPORT_DIR", &c.Export.Dir)
	str("FACTORYBATCH_EXPORT_PREFIX", &c.Export.Prefix)
	str("FACTORYBATCH_CATALOG_DRIVER", &c.Catalog.Driver)
	str("FACTORYBATCH_CRAWLER_NAME", &c.Catalog.Crawler)
	str("FACTORYBATCH_ARCHIVE_PREFIX", &c.Ingest.ArchivePrefix)
	str("FACTORYBATCH_AWS_REGION", &c.AWS.Region)
	str("FACTORYBATCH_AWS_ENDPOINT", &c.AWS.Endpoint)
	str("FACTORYBATCH_LOG_LEVEL", &c.Log.Level)
	str("FACTORYBATCH_LOG_FORMAT", &c.Log.Format)
	dur("FACTORYBATCH_WINDOW", &c.Extract.Window)
	dur("FACTORYBATCH_EXTRACT_TIMEOUT", &c.Extract.Timeout)
	dur("FACTORYBATCH_INGEST_TIMEOUT", &c.Ingest.Timeout)

	if v := strings.TrimSpace(getenv("FACTORYBATCH_KAFKA_BROKERS")); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	str("FACTORYBATCH_KAFKA_TOPIC", &c.Kafka.Topic)

	return errors.Join(errs...)
}

func (c *Config) applyDefaults() {
	if c.Policy.MaxQueueLen == 0 {
		c.Policy.MaxQueueLen = 100_000
	}
	if c.Policy.MaxBatchSize == 0 {
		c.Policy.MaxBatchSize = 500
	}
	if c.Policy.IdleSleep == 0 {
		c.Policy.IdleSleep = 5 * time.Millisecond
	}
	if c.Policy.DrainTimeout == 0 {
		c.Policy.DrainTimeout = 10 * time.Second
	}
	if c.Policy.OnQueueFull == "" {
		c.Policy.OnQueueFull = "block"
	}

	if c.Buffer.Driver == "" {
		c.Buffer.Driver = "file"
	}
	if c.Buffer.Dir == "" {
		c.Buffer.Dir = "./data/buffer"
	}
	if c.Buffer.Table == "" {
		c.Buffer.Table = "factory_telemetry"
	}

	if c.Export.Driver == "" {
		c.Export.Driver = "local"
	}
	if c.Export.Dir == "" {
		c.Export.Dir = "./data/export"
	}
	if c.Export.Prefix == "" {
		c.Export.Prefix = "iot-data"
	}

	if c.Extract.Window == 0 {
		c.Extract.Window = time.Hour
	}
	if c.Extract.Timeout == 0 {
		c.Extract.Timeout = 5 * time.Minute
	}
	if c.Extract.Cadence == 0 {
		c.Extract.Cadence = c.Extract.Window
	}

	if c.Catalog.Driver == "" {
		c.Catalog.Driver = "none"
	}
	if c.Catalog.Delay == 0 {
		c.Catalog.Delay = 5 * time.Minute
	}

	if c.Ingest.Timeout == 0 {
		c.Ingest.Timeout = 10 * time.Second
	}

	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "factorybatch-ingest"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Simulator.MachineID == "" {
		c.Simulator.MachineID = "M01"
	}
	if c.Simulator.Interval == 0 {
		c.Simulator.Interval = time.Minute
	}

	if c.OPCUA != nil {
		c.OPCUA.ApplyDefaults()
	}
}

func (c *Config) validate() error {
	switch c.Buffer.Driver {
	case "memory", "file":
	case "postgres":
		if c.Buffer.ConnString == "" {
			return fmt.Errorf("buffer.conn_string is required for postgres")
		}
	case "dynamodb":
		if c.Buffer.Table == "" {
			return fmt.Errorf("buffer.table is required for dynamodb")
		}
	default:
		return fmt.Errorf("buffer.driver %q is not supported", c.Buffer.Driver)
	}

	switch c.Export.Driver {
	case "local":
	case "s3":
		if c.Export.Bucket == "" {
			return fmt.Errorf("export.bucket is required for s3")
		}
	default:
		return fmt.Errorf("export.driver %q is not supported", c.Export.Driver)
	}

	switch c.Catalog.Driver {
	case "none":
	case "glue":
		if c.Catalog.Crawler == "" {
			return fmt.Errorf("catalog.crawler is required for glue")
		}
	default:
		return fmt.Errorf("catalog.driver %q is not supported", c.Catalog.Driver)
	}

	if c.Extract.Window <= 0 {
		return fmt.Errorf("extract.window must be positive")
	}
	if c.Extract.Cadence != c.Extract.Window {
		return fmt.Errorf("extract.cadence %s must equal extract.window %s", c.Extract.Cadence, c.Extract.Window)
	}
	if c.Extract.Schedule && c.Extract.Offset+c.Catalog.Delay >= c.Extract.Cadence {
		return fmt.Errorf("extract.offset + catalog.delay must be shorter than extract.cadence")
	}
	// A busy Glue crawler is retried once after another catalog.delay.
	if c.Extract.Schedule && c.Catalog.Driver == "glue" && c.Extract.Offset+2*c.Catalog.Delay >= c.Extract.Cadence {
		return fmt.Errorf("extract.offset + 2*catalog.delay must be shorter than extract.cadence with a glue catalog")
	}
	if c.Kafka.Topic != "" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka.topic is set")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format %q is not supported", c.Log.Format)
	}
	if c.OPCUA != nil {
		if err := c.OPCUA.Validate(); err != nil {
			return fmt.Errorf("opcua config: %w", err)
		}
	}
	return nil
}
