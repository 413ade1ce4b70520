package module

import (
	"testing"
	"time"

	"contribot/internal/platform/config"
	kit "contribot/internal/platform/testkit"
)

func TestFromConfig(t *testing.T) {
	t.Setenv("CT_PIPELINE_STEP_BATCH", "10")
	t.Setenv("CT_PIPELINE_BUDGET", "45m")
	t.Setenv("CT_PIPELINE_CONTINUATIONS", "Redis")
	t.Setenv("CT_API_TRIGGER_KEY", "cron:abc, ops:def")
	t.Setenv("CT_SCHEDULE_CONTINUE", "off")

	o := FromConfig(config.New().Prefix("CT_"))
	kit.MustEqual(t, o.Service.StepBatch, 10, "step batch")
	kit.MustEqual(t, o.Service.StepRetries, 3, "retries default")
	kit.MustEqual(t, o.Service.Budget, 45*time.Minute, "budget")
	kit.MustEqual(t, o.Continuations, ChannelRedis, "channel")
	kit.MustEqual(t, len(o.TriggerKeys), 2, "keys")
	kit.MustEqual(t, o.Schedule.Continue, "off", "continue spec")
	kit.MustEqual(t, o.Schedule.Scrape, "0 */6 * * *", "scrape default")
}

func TestFromConfigRejectsUnknownChannel(t *testing.T) {
	t.Setenv("CT_PIPELINE_CONTINUATIONS", "kafka")
	kit.MustPanic(t, func() { FromConfig(config.New().Prefix("CT_")) })
}
