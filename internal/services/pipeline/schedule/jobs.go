package schedule

import (
	"context"
	"errors"
	"time"

	"contribot/internal/platform/logger"
	annotatedom "contribot/internal/services/annotate/domain"
	"contribot/internal/services/pipeline/domain"
)

// Job names
const (
	JobScrape   = "scrape"
	JobAnnotate = "annotate"
	JobContinue = "continue"
)

// Scrape starts a fresh run per tick. A pause is not an error here; the
// continuation job picks the cursor up
func Scrape(r domain.RunnerPort, req domain.Request, log logger.Logger) JobFunc {
	req.Trigger = domain.TriggerSchedule
	return func(ctx context.Context) error {
		out, err := r.Run(ctx, req)
		if err != nil {
			return err
		}
		log.Info().Str("run_id", out.RunID).Str("state", string(out.State)).
			Bool("continuation", out.ContinuationScheduled).Msg("scheduled scrape finished")
		return nil
	}
}

// Annotate drains the annotation queue within budget
func Annotate(p annotatedom.ProcessorPort, batchSize int, budget time.Duration, log logger.Logger) JobFunc {
	return func(ctx context.Context) error {
		res, err := p.Drain(ctx, batchSize, budget)
		if err != nil {
			return err
		}
		log.Info().Int("batches", res.Batches).Int("processed", res.Processed).Int("failed", res.Failed).
			Int("remaining", res.Remaining).Bool("budget_spent", res.BudgetSpent).Msg("scheduled drain finished")
		return nil
	}
}

// Continue resumes at most one paused run per tick
func Continue(c domain.Continuations, r domain.RunnerPort, log logger.Logger) JobFunc {
	return func(ctx context.Context) error {
		cur, ok, err := c.Take(ctx)
		if err != nil || !ok {
			return err
		}
		out, err := r.Resume(ctx, cur)
		if errors.Is(err, domain.ErrCredentialRejected) {
			log.Error().Str("run_id", cur.RunID).Msg("resumed run aborted; check the GitHub token")
			return nil
		}
		if err != nil {
			return err
		}
		log.Info().Str("run_id", out.RunID).Str("state", string(out.State)).Msg("continuation finished")
		return nil
	}
}
