package pg

import (
	"bytes"
	"context"
	"testing"

	"contribot/internal/platform/logger"
	kit "contribot/internal/platform/testkit"
)

func TestCompact(t *testing.T) {
	t.Parallel()
	got := Compact("SELECT id\n\tFROM repositories\n   WHERE id = $1")
	kit.MustEqual(t, got, "SELECT id FROM repositories WHERE id = $1", "compact")
}

func TestTracerLogsSlowAtWarn(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	tr := Tracer(logger.New(logger.Options{Level: "error", Writer: &buf}))
	ctx := logger.WithRun(context.Background(), "run-1")

	tr.OnQuery(ctx, QueryEvent{SQL: "SELECT 1", ElapsedUS: 900_000, Slow: true})

	out := buf.String()
	kit.MustContain(t, out, `"level":"warn"`)
	kit.MustContain(t, out, `"run_id":"run-1"`)
	kit.MustContain(t, out, `"sql":"SELECT 1"`)
}
