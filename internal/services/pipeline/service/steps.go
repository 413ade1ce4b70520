package service

import (
	"context"

	"contribot/internal/modkit/repokit"
	perr "contribot/internal/platform/errors"
	"contribot/internal/platform/logger"
	ptime "contribot/internal/platform/time"
	"contribot/internal/services/pipeline/domain"
)

type stepFunc func(ctx context.Context) (domain.Totals, error)

// step runs fn at most once per (run, key). A recorded step returns its stats
// untouched; a new one records its stats and folds them into the run totals in
// one transaction. Both the work and the ledger write are retried while they
// fail with a retryable error. On failure the partial stats are returned with
// the error
func (s *Svc) step(ctx context.Context, runID, key string, fn stepFunc) (domain.Totals, error) {
	log := logger.From(ctx, s.Log).With().Str("step", key).Logger()

	if st, done, err := s.repo().StepStats(ctx, runID, key); err != nil {
		return domain.Totals{}, err
	} else if done {
		log.Debug().Msg("step already completed; replaying stats")
		return st, nil
	}

	var st domain.Totals
	err := s.retry(ctx, log, "step failed", func(ctx context.Context) error {
		var err error
		st, err = fn(ctx)
		return err
	})
	if err != nil {
		return st, err
	}

	err = s.retry(ctx, log, "recording step failed", func(ctx context.Context) error {
		return s.DB.Tx(ctx, func(q repokit.Queryer) error {
			r := repokit.MustBind(s.Binder, q)
			inserted, err := r.InsertStep(ctx, runID, key, st)
			if err != nil || !inserted {
				return err
			}
			return r.AddTotals(ctx, runID, st)
		})
	})
	return st, err
}

// retry runs op until it succeeds, fails for good, or spends StepRetries attempts
func (s *Svc) retry(ctx context.Context, log logger.Logger, msg string, op func(context.Context) error) error {
	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil || !perr.Retryable(err) || attempt >= s.cfg.StepRetries {
			return err
		}
		wait := ptime.Backoff(s.cfg.RetryBase, s.cfg.RetryMax, attempt)
		log.Warn().Err(err).Int("attempt", attempt).Dur("backoff", wait).Msg(msg + "; retrying")
		if serr := s.sleep(ctx, wait); serr != nil {
			return serr
		}
	}
}

// fold adds stats that are not tied to a step, such as the partial work of a
// halted step or the source and drain phases
func (s *Svc) fold(ctx context.Context, runID string, delta domain.Totals) {
	if delta == (domain.Totals{}) {
		return
	}
	if err := s.repo().AddTotals(context.WithoutCancel(ctx), runID, delta); err != nil {
		logger.From(ctx, s.Log).Error().Err(err).Msg("folding totals failed")
	}
}
