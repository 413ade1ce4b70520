package module

import (
	"time"

	"contribot/internal/platform/config"
	"contribot/internal/services/annotate/domain"
	"contribot/internal/services/annotate/queue"
)

// Queue backends
const (
	BackendPG    = "pg"
	BackendRedis = "redis"
)

// Options holds configuration for the annotate module
type Options struct {
	Backend     string
	BatchSize   int
	Budget      time.Duration
	Lease       time.Duration
	MaxAttempts int
	Stream      queue.StreamConfig
}

// FromConfig reads ANNOTATE_* settings
func FromConfig(cfg config.Conf) Options {
	ac := cfg.Prefix("ANNOTATE_")
	attempts := ac.MayInt("MAX_ATTEMPTS", queue.DefaultMaxAttempts)
	return Options{
		Backend:     ac.MayEnum("QUEUE", BackendPG, BackendPG, BackendRedis),
		BatchSize:   ac.MayInt("BATCH_SIZE", domain.DefaultBatchSize),
		Budget:      ac.MayDuration("BUDGET", 10*time.Minute),
		Lease:       ac.MayDuration("LEASE", queue.DefaultLease),
		MaxAttempts: attempts,
		Stream: queue.StreamConfig{
			Stream:      ac.MayString("STREAM", "contribot:annotate"),
			Group:       ac.MayString("GROUP", "annotators"),
			Consumer:    ac.MayString("CONSUMER", "worker-1"),
			MaxAttempts: attempts,
		},
	}
}
