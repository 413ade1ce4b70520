package module

import (
	"time"

	"contribot/internal/platform/config"
	"contribot/internal/services/pipeline/continuation"
	"contribot/internal/services/pipeline/service"
)

// Continuation channels
const (
	ChannelPG    = "pg"
	ChannelRedis = "redis"
)

// Options holds configuration for the pipeline module and its entry points
type Options struct {
	Service       service.Config
	Continuations string
	ContinueKey   string

	// TriggerKeys are "label:secret" pairs; empty leaves the trigger API open
	TriggerKeys []string
	Docs        bool
	CORSOrigins []string
	// Profiler mounts pprof under /debug, behind the trigger key
	Profiler bool

	Schedule Schedule
}

// Schedule holds the cron specs of each job; "off" disables one
type Schedule struct {
	Scrape   string
	Annotate string
	Continue string
}

// FromConfig reads PIPELINE_*, API_* and SCHEDULE_* settings
func FromConfig(cfg config.Conf) Options {
	pc := cfg.Prefix("PIPELINE_")
	api := cfg.Prefix("API_")
	sc := cfg.Prefix("SCHEDULE_")
	return Options{
		Service: service.Config{
			StepBatch:   pc.MayInt("STEP_BATCH", 25),
			StepRetries: pc.MayInt("STEP_RETRIES", 3),
			RetryBase:   pc.MayDuration("RETRY_BASE", time.Second),
			RetryMax:    pc.MayDuration("RETRY_MAX", 30*time.Second),
			Budget:      pc.MayDuration("BUDGET", 0),
			DrainBatch:  pc.MayInt("DRAIN_BATCH", 0),
			DrainBudget: pc.MayDuration("DRAIN_BUDGET", 5*time.Minute),
		},
		Continuations: pc.MayEnum("CONTINUATIONS", ChannelPG, ChannelPG, ChannelRedis),
		ContinueKey:   pc.MayString("CONTINUE_KEY", continuation.DefaultKey),
		TriggerKeys:   api.MayCSV("TRIGGER_KEY", nil),
		Docs:          api.MayBool("DOCS", true),
		CORSOrigins:   api.MayCSV("CORS_ORIGINS", nil),
		Profiler:      api.MayBool("PROFILER", false),
		Schedule: Schedule{
			Scrape:   sc.MayString("SCRAPE", "0 */6 * * *"),
			Annotate: sc.MayString("ANNOTATE", "*/15 * * * *"),
			Continue: sc.MayString("CONTINUE", "*/5 * * * *"),
		},
	}
}
