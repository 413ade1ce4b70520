package service

import (
	"context"
	"time"

	"contribot/internal/platform/logger"
	"contribot/internal/services/pipeline/domain"
)

const runEventsTable = "pipeline_run_events"

// mirror copies a finished run into the clickhouse analytics table when one is configured
func (s *Svc) mirror(ctx context.Context, run domain.Run) {
	if s.CH == nil {
		return
	}
	finished := s.now().UTC()
	if run.FinishedAt != nil {
		finished = run.FinishedAt.UTC()
	}
	t := run.Totals
	row := []any{
		run.ID,
		string(run.Trigger),
		run.Depth,
		string(run.State),
		run.Reason,
		u32(t.Repos.New),
		u32(t.Repos.Updated),
		u32(t.Issues.New),
		u32(t.Issues.Updated),
		u32(t.Issues.Closed),
		u32(t.Repos.Queued + t.Issues.Queued),
		u32(t.Repos.Errors + t.Issues.Errors + t.Sources.Failed + t.Annotations.Failed),
		run.StartedAt.UTC(),
		finished,
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.CH.Insert(wctx, runEventsTable, [][]any{row}); err != nil {
		logger.From(ctx, s.Log).Warn().Err(err).Msg("run event mirror failed")
	}
}

func u32(n int) uint32 {
	if n < 0 {
		return 0
	}
	return uint32(n)
}
