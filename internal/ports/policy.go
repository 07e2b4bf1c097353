package ports

import "time"

type Policy struct {
	MaxQueueLen  int           `yaml:"max_queue_len"`
	MaxBatchSize int           `yaml:"max_batch_size"`
	IdleSleep    time.Duration `yaml:"idle_sleep"`
	// DrainTimeout bounds delivery of queued events at shutdown.
	DrainTimeout time.Duration `yaml:"drain_timeout"`

	OnQueueFull string `yaml:"on_queue_full"` // "reject", "block", "drop"
}
