// Package service drains the annotation queue through the summarizer
package service

import (
	"context"
	"errors"
	"time"

	"contribot/internal/core/work"
	"contribot/internal/modkit/repokit"
	perr "contribot/internal/platform/errors"
	"contribot/internal/platform/logger"
	"contribot/internal/services/annotate/domain"
	"contribot/internal/services/annotate/repo"
)

// Svc implements domain.ProcessorPort
type Svc struct {
	db     repokit.TxRunner
	binder repokit.Binder[repo.Repo]
	src    domain.WorkSource
	sum    domain.Summarizer
	log    logger.Logger
	now    func() time.Time
}

var _ domain.ProcessorPort = (*Svc)(nil)

// Option tweaks the service
type Option func(*Svc)

// WithClock swaps the clock Drain measures its budget with
func WithClock(now func() time.Time) Option { return func(s *Svc) { s.now = now } }

// New constructs the processor
func New(db repokit.TxRunner, binder repokit.Binder[repo.Repo], src domain.WorkSource, sum domain.Summarizer, log logger.Logger, opts ...Option) *Svc {
	if db == nil || src == nil {
		panic("annotate.Service requires a TxRunner and a WorkSource")
	}
	s := &Svc{db: db, binder: binder, src: src, sum: sum, log: log, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ProcessBatch handles up to batchSize items. Item failures are recorded on the
// item and never fail the batch; only the pull itself can
func (s *Svc) ProcessBatch(ctx context.Context, batchSize int) (domain.BatchResult, error) {
	if batchSize <= 0 {
		batchSize = domain.DefaultBatchSize
	}
	log := logger.From(ctx, s.log)

	items, err := s.src.SelectPending(ctx, batchSize)
	if err != nil {
		return domain.BatchResult{}, err
	}

	var res domain.BatchResult
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := s.src.MarkProcessing(ctx, it); err != nil {
			if errors.Is(err, domain.ErrClaimed) {
				continue
			}
			log.Warn().Err(err).Str("item", it.String()).Msg("claim failed")
			continue
		}

		res.Processed++
		if err := s.process(ctx, it); err != nil {
			res.Failed++
			log.Warn().Err(err).Str("item", it.String()).Int("attempts", it.Attempts+1).Msg("annotation failed")
			if merr := s.src.MarkFailed(ctx, it, err.Error()); merr != nil {
				log.Error().Err(merr).Str("item", it.String()).Msg("recording failure failed")
			}
			continue
		}
		res.Success++
		if err := s.src.MarkCompleted(ctx, it); err != nil {
			// the annotation is stored; the item comes back after its lease and is overwritten
			log.Warn().Err(err).Str("item", it.String()).Msg("completing item failed")
		}
	}

	remaining, err := s.src.CountPending(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("pending count unavailable")
		res.Remaining = domain.RemainingUnknown
		res.HasMore = len(items) == batchSize
	} else {
		res.Remaining = remaining
		res.HasMore = remaining > 0
	}
	return res, nil
}

// Drain runs batches until the queue reports empty or budget is spent.
// The budget is only checked between batches; zero means no budget
func (s *Svc) Drain(ctx context.Context, batchSize int, budget time.Duration) (domain.DrainResult, error) {
	start := s.now()
	var out domain.DrainResult
	defer func() { out.Elapsed = s.now().Sub(start) }()

	for {
		if budget > 0 && s.now().Sub(start) >= budget {
			out.BudgetSpent = true
			return out, nil
		}
		br, err := s.ProcessBatch(ctx, batchSize)
		out.Batches++
		out.Processed += br.Processed
		out.Success += br.Success
		out.Failed += br.Failed
		out.Remaining = br.Remaining
		if err != nil {
			return out, err
		}
		// nothing claimable this round; stop rather than spin on items held elsewhere
		if !br.HasMore || br.Processed == 0 {
			return out, nil
		}
	}
}

func (s *Svc) process(ctx context.Context, it work.Item) error {
	if s.sum == nil {
		return perr.Unavailablef("no summarizer configured")
	}
	rp := repokit.MustBind(s.binder, s.db)

	switch it.Kind {
	case work.KindRepo:
		t, err := rp.LoadRepo(ctx, it.EntityID)
		if err != nil {
			return err
		}
		out, err := s.sum.SummarizeRepo(ctx, t.Owner, t.Name, t.Languages)
		if err != nil {
			return err
		}
		return rp.UpsertAnnotation(ctx, domain.Annotation{
			EntityType: work.KindRepo,
			EntityID:   t.ID,
			Summary:    &out.Summary,
		})

	case work.KindIssue:
		t, err := rp.LoadIssue(ctx, it.EntityID)
		if err != nil {
			return err
		}
		out, err := s.sum.AnalyzeIssue(ctx, t.Owner, t.Name, t.Title, t.Body)
		if err != nil {
			return err
		}
		return rp.UpsertAnnotation(ctx, domain.Annotation{
			EntityType: work.KindIssue,
			EntityID:   t.ID,
			Intro:      &out.Intro,
			Difficulty: out.Difficulty,
			FirstSteps: out.FirstSteps,
		})
	}
	return perr.Validationf("unknown work kind %q", it.Kind)
}
