package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"contribot/internal/adapters/sources"
	"contribot/internal/core/ref"
	perr "contribot/internal/platform/errors"
	"contribot/internal/platform/logger"
	"contribot/internal/services/pipeline/domain"
	reconciledom "contribot/internal/services/reconcile/domain"
)

const (
	reasonCredential = "credential rejected"
	reasonFailed     = "pipeline run failed"
)

type sourceBatch struct {
	source sources.Source
	refs   []ref.Repo
	from   int
}

// execute walks the states from wherever resume points, or from the start
func (s *Svc) execute(ctx context.Context, run domain.Run, resume *domain.Cursor) (domain.Outcome, error) {
	started := s.now()
	depth := reconciledom.Depth(run.Depth)

	if resume == nil || resume.Phase != domain.PhaseIssues {
		batches, out, err := s.fetchSources(ctx, run, resume)
		if err != nil {
			return out, err
		}
		if out, stop, err := s.reconcileRepos(ctx, run, depth, batches, started); stop {
			return out, err
		}
	}

	from := 0
	if resume != nil && resume.Phase == domain.PhaseIssues {
		from = resume.Index
	}
	if out, stop, err := s.reconcileIssues(ctx, run, from, started); stop {
		return out, err
	}

	if s.Drainer != nil {
		if err := s.enter(ctx, run.ID, domain.StateDrainingAnnotationQueue); err != nil {
			return s.fail(ctx, run, domain.StateDrainingAnnotationQueue, err)
		}
		dr, err := s.Drainer.Drain(ctx, s.cfg.DrainBatch, s.cfg.DrainBudget)
		s.fold(ctx, run.ID, domain.FromDrain(dr))
		if err != nil {
			if ctx.Err() != nil {
				return s.fail(ctx, run, domain.StateDrainingAnnotationQueue, err)
			}
			logger.From(ctx, s.Log).Warn().Err(err).Msg("annotation drain stopped early")
		}
	}

	if err := s.enter(ctx, run.ID, domain.StateSummarizing); err != nil {
		return s.fail(ctx, run, domain.StateSummarizing, err)
	}
	if err := s.repo().FinishRun(ctx, run.ID, domain.StateDone, domain.StatusDone, "", nil); err != nil {
		return s.fail(ctx, run, domain.StateSummarizing, err)
	}
	out := s.outcome(ctx, run.ID, domain.StateDone, "", nil)
	logger.From(ctx, s.Log).Info().
		Int("repos_new", out.Totals.Repos.New).
		Int("repos_updated", out.Totals.Repos.Updated).
		Int("issues_new", out.Totals.Issues.New).
		Int("issues_closed", out.Totals.Issues.Closed).
		Int("annotated", out.Totals.Annotations.Success).
		Msg("run done")
	return out, nil
}

func (s *Svc) fetchSources(ctx context.Context, run domain.Run, resume *domain.Cursor) ([]sourceBatch, domain.Outcome, error) {
	log := logger.From(ctx, s.Log)
	if err := s.enter(ctx, run.ID, domain.StateFetchingSources); err != nil {
		out, err := s.fail(ctx, run, domain.StateFetchingSources, err)
		return nil, out, err
	}

	enabled := s.Catalog.Enabled()
	skipUntil := -1
	if resume != nil {
		for i, src := range enabled {
			if src.ID == resume.SourceID {
				skipUntil = i
				break
			}
		}
		if skipUntil < 0 {
			log.Warn().Str("source", resume.SourceID).Msg("cursor source no longer enabled; resuming from the first source")
		}
	}

	var batches []sourceBatch
	for i, src := range enabled {
		if run.Scope != "" && src.ID != run.Scope {
			continue
		}
		if i < skipUntil {
			continue
		}
		refs, err := s.Catalog.Fetch(ctx, src)
		var stats domain.Totals
		if err != nil {
			if ctx.Err() != nil {
				out, err := s.fail(ctx, run, domain.StateFetchingSources, err)
				return nil, out, err
			}
			stats.Sources.Failed++
			log.Warn().Err(err).Str("source", src.ID).Msg("source skipped")
		} else {
			stats.Sources.Fetched++
			stats.Sources.Refs += len(refs)
		}
		// a resumed run fetches its cursor source again; the step ledger keeps
		// that fetch out of the totals
		if _, serr := s.step(ctx, run.ID, "sources/"+src.ID, func(context.Context) (domain.Totals, error) {
			return stats, nil
		}); serr != nil {
			out, serr := s.fail(ctx, run, domain.StateFetchingSources, serr)
			return nil, out, serr
		}
		if err != nil {
			continue
		}
		b := sourceBatch{source: src, refs: refs}
		if i == skipUntil {
			b.from = resume.Index
		}
		batches = append(batches, b)
	}
	return batches, domain.Outcome{}, nil
}

func (s *Svc) reconcileRepos(ctx context.Context, run domain.Run, depth reconciledom.Depth, batches []sourceBatch, started time.Time) (domain.Outcome, bool, error) {
	if err := s.enter(ctx, run.ID, domain.StateReconcilingRepos); err != nil {
		out, err := s.fail(ctx, run, domain.StateReconcilingRepos, err)
		return out, true, err
	}
	for _, b := range batches {
		for start := max(b.from, 0); start < len(b.refs); start += s.cfg.StepBatch {
			end := min(start+s.cfg.StepBatch, len(b.refs))
			cur := domain.Cursor{Phase: domain.PhaseRepos, SourceID: b.source.ID, Index: start}
			if s.budgetSpent(started) {
				out, err := s.pause(ctx, run, cur, perr.ErrWallClockCeiling)
				return out, true, err
			}

			key := fmt.Sprintf("repos/%s/%d-%d", b.source.ID, start, end)
			st, err := s.step(ctx, run.ID, key, func(ctx context.Context) (domain.Totals, error) {
				rs, err := s.Repos.ProcessRepos(ctx, b.refs[:end], reconciledom.Options{Depth: depth, StartAt: start})
				return domain.Totals{Repos: rs}, err
			})
			if err != nil {
				s.fold(ctx, run.ID, st)
				out, err := s.halt(ctx, run, domain.StateReconcilingRepos, cur, err)
				return out, true, err
			}
		}
	}
	return domain.Outcome{}, false, nil
}

func (s *Svc) reconcileIssues(ctx context.Context, run domain.Run, from int, started time.Time) (domain.Outcome, bool, error) {
	log := logger.From(ctx, s.Log)
	if err := s.enter(ctx, run.ID, domain.StateFetchingReposForIssues); err != nil {
		out, err := s.fail(ctx, run, domain.StateFetchingReposForIssues, err)
		return out, true, err
	}
	repos, err := s.Issues.ReposForIssues(ctx, run.Scope)
	if err != nil {
		out, err := s.halt(ctx, run, domain.StateFetchingReposForIssues, domain.Cursor{Phase: domain.PhaseIssues}, err)
		return out, true, err
	}

	if err := s.enter(ctx, run.ID, domain.StateReconcilingIssues); err != nil {
		out, err := s.fail(ctx, run, domain.StateReconcilingIssues, err)
		return out, true, err
	}
	for start := max(from, 0); start < len(repos); start += s.cfg.StepBatch {
		end := min(start+s.cfg.StepBatch, len(repos))
		chunk := repos[start:end]
		cur := domain.Cursor{Phase: domain.PhaseIssues, Index: start}
		if s.budgetSpent(started) {
			out, err := s.pause(ctx, run, cur, perr.ErrWallClockCeiling)
			return out, true, err
		}

		key := fmt.Sprintf("issues/%d-%d", chunk[0].ID, chunk[len(chunk)-1].ID)
		st, err := s.step(ctx, run.ID, key, func(ctx context.Context) (domain.Totals, error) {
			var t domain.Totals
			for j, r := range chunk {
				is, err := s.Issues.ProcessRepoIssues(ctx, r, r.Label)
				if perr.Halts(err) {
					// the resume re-attempts this repository, so its partial stats stay out
					return t, &reconciledom.HaltError{Index: start + j, Err: err}
				}
				t.Issues.Add(is)
				if err == nil {
					continue
				}
				t.Issues.Errors++
				log.Warn().Err(err).Str("repo", r.Slug()).Msg("issue reconciliation skipped")
			}
			return t, nil
		})
		if err != nil {
			s.fold(ctx, run.ID, st)
			out, err := s.halt(ctx, run, domain.StateReconcilingIssues, cur, err)
			return out, true, err
		}
	}
	return domain.Outcome{}, false, nil
}

// halt routes a step error: rejected credentials abort, ceilings pause at the
// halted index (or at cur when none is known), anything else fails the run
func (s *Svc) halt(ctx context.Context, run domain.Run, state domain.State, cur domain.Cursor, err error) (domain.Outcome, error) {
	if perr.IsCode(err, perr.ErrorCodeUnauthorized) {
		return s.abort(ctx, run, err)
	}
	if perr.IsResourceCeiling(err) {
		var h *reconciledom.HaltError
		if errors.As(err, &h) {
			cur.Index = h.Index
		}
		return s.pause(ctx, run, cur, err)
	}
	return s.fail(ctx, run, state, err)
}

func (s *Svc) enter(ctx context.Context, runID string, state domain.State) error {
	logger.From(ctx, s.Log).Debug().Str("state", string(state)).Msg("state entered")
	return s.repo().SetState(ctx, runID, state)
}

func (s *Svc) pause(ctx context.Context, run domain.Run, cur domain.Cursor, cause error) (domain.Outcome, error) {
	log := logger.From(ctx, s.Log)
	cur.RunID = run.ID
	cur.Ceiling = perr.CeilingOf(cause).String()
	reason := "resource ceiling: " + cur.Ceiling

	if err := s.repo().FinishRun(context.WithoutCancel(ctx), run.ID, domain.StatePaused, domain.StatusPaused, reason, &cur); err != nil {
		log.Error().Err(err).Msg("recording pause failed")
	}

	scheduled := false
	if s.Continuations != nil {
		if err := s.Continuations.Send(context.WithoutCancel(ctx), cur); err != nil {
			log.Warn().Err(err).Msg("continuation hand-off failed; resume manually")
		} else {
			scheduled = true
		}
	}
	log.Warn().Str("phase", string(cur.Phase)).Str("source", cur.SourceID).Int("index", cur.Index).
		Str("ceiling", cur.Ceiling).Bool("continuation", scheduled).Msg("run paused")

	out := s.outcome(ctx, run.ID, domain.StatePaused, reason, &cur)
	out.ContinuationScheduled = scheduled
	return out, nil
}

func (s *Svc) abort(ctx context.Context, run domain.Run, cause error) (domain.Outcome, error) {
	log := logger.From(ctx, s.Log)
	if err := s.repo().FinishRun(context.WithoutCancel(ctx), run.ID, domain.StateAborted, domain.StatusAborted, reasonCredential, nil); err != nil {
		log.Error().Err(err).Msg("recording abort failed")
	}
	log.Error().Err(cause).Msg("run aborted: upstream credential rejected")
	return s.outcome(ctx, run.ID, domain.StateAborted, reasonCredential, nil), domain.CredentialRejected(cause)
}

func (s *Svc) fail(ctx context.Context, run domain.Run, state domain.State, cause error) (domain.Outcome, error) {
	log := logger.From(ctx, s.Log)
	if err := s.repo().FinishRun(context.WithoutCancel(ctx), run.ID, state, domain.StatusFailed, reasonFailed, nil); err != nil {
		log.Error().Err(err).Msg("recording failure failed")
	}
	log.Error().Err(cause).Str("state", string(state)).Msg(reasonFailed)
	return s.outcome(ctx, run.ID, state, reasonFailed, nil), cause
}

// outcome reads the folded totals back and mirrors the finished run to clickhouse
func (s *Svc) outcome(ctx context.Context, runID string, state domain.State, reason string, cur *domain.Cursor) domain.Outcome {
	out := domain.Outcome{RunID: runID, State: state, Reason: reason, Cursor: cur}
	run, err := s.repo().GetRun(context.WithoutCancel(ctx), runID)
	if err != nil {
		logger.From(ctx, s.Log).Warn().Err(err).Msg("reading run totals failed")
		return out
	}
	out.Totals = run.Totals
	s.mirror(ctx, run)
	return out
}
