package service

import (
	"context"
	"errors"

	gh "contribot/internal/adapters/github"
	"contribot/internal/core/fingerprint"
	"contribot/internal/core/ref"
	"contribot/internal/core/work"
	perr "contribot/internal/platform/errors"
	"contribot/internal/platform/logger"
	"contribot/internal/services/reconcile/domain"
)

type repoOutcome uint8

const (
	repoUnchanged repoOutcome = iota
	repoNew
	repoUpdated
)

// ProcessRepos reconciles references one by one. Rejected credentials abort,
// a ceiling halts with the index reached, anything else is counted and skipped
func (s *Svc) ProcessRepos(ctx context.Context, refs []ref.Repo, opts domain.Options) (domain.RepoStats, error) {
	var st domain.RepoStats
	if opts.Depth == "" {
		opts.Depth = domain.DepthCountOnly
	}
	log := logger.From(ctx, s.log)

	for i := max(opts.StartAt, 0); i < len(refs); i++ {
		r := refs[i]

		stored, outcome, err := s.reconcileRepo(ctx, r, opts.Depth)
		if err != nil {
			switch {
			case perr.IsCode(err, perr.ErrorCodeUnauthorized):
				return st, err
			case perr.IsResourceCeiling(err):
				return st, &domain.HaltError{Index: i, Err: err}
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return st, err
			}
			st.Discovered++
			st.Errors++
			log.Warn().Err(err).Str("repo", r.Slug()).Str("source", r.SourceID).Int("index", i).Msg("repository skipped")
			continue
		}
		st.Discovered++

		prio := work.PriorityChanged
		switch outcome {
		case repoNew:
			st.New++
			prio = work.PriorityNew
		case repoUpdated:
			st.Updated++
		default:
			st.Unchanged++
			continue
		}

		queued, err := s.enqueue(ctx, work.Item{Kind: work.KindRepo, EntityID: stored.ID, Priority: prio},
			func(ctx context.Context) error {
				stored.MetadataHash = ""
				return s.repo().UpdateRepo(ctx, stored)
			})
		switch {
		case err != nil:
			st.Errors++
		case queued:
			st.Queued++
		}
	}
	return st, nil
}

// reconcileRepo observes r and writes it when new or changed; the returned
// record carries its stored id
func (s *Svc) reconcileRepo(ctx context.Context, r ref.Repo, depth domain.Depth) (domain.Repository, repoOutcome, error) {
	var (
		langs gh.Languages
		count int
		err   error
	)
	if depth == domain.DepthFull {
		langs, err = s.gw.FetchLanguages(ctx, r.Owner, r.Name)
	} else {
		count, err = s.gw.FetchIssueLabelCount(ctx, r.Owner, r.Name, r.Label)
	}
	if err != nil {
		return domain.Repository{}, repoUnchanged, err
	}

	rp := s.repo()
	existing, found, err := rp.FindRepo(ctx, r.Owner, r.Name)
	if err != nil {
		return domain.Repository{}, repoUnchanged, err
	}

	next := domain.Repository{
		ID:       existing.ID,
		Owner:    r.Owner,
		Name:     r.Name,
		URL:      "https://github.com/" + r.Slug(),
		Label:    r.Label,
		SourceID: r.SourceID,
	}
	if depth == domain.DepthFull {
		next.LanguagesOrdered, next.LanguagesRaw = langs.Ordered, langs.Raw
		next.OpenIssueCount = existing.OpenIssueCount
	} else {
		// a count-only pass never sees languages; hash what is stored so the
		// digest only moves when a tracked field does
		next.LanguagesOrdered, next.LanguagesRaw = existing.LanguagesOrdered, existing.LanguagesRaw
		next.OpenIssueCount = count
	}
	next.MetadataHash = string(fingerprint.HashRepoMetadata(r.Owner, r.Name, r.Label, r.SourceID, next.LanguagesOrdered))

	if !found {
		id, err := rp.InsertRepo(ctx, next)
		if err != nil {
			return domain.Repository{}, repoUnchanged, err
		}
		next.ID = id
		return next, repoNew, nil
	}

	changed := next.MetadataHash != existing.MetadataHash ||
		(depth == domain.DepthCountOnly && count != existing.OpenIssueCount)
	if !changed {
		return existing, repoUnchanged, nil
	}
	if err := rp.UpdateRepo(ctx, next); err != nil {
		return domain.Repository{}, repoUnchanged, err
	}
	return next, repoUpdated, nil
}

// enqueue sends it and reports whether it went out. A failed send runs forget,
// which clears the stored hash so the next observation sees a change and
// enqueues the record again
func (s *Svc) enqueue(ctx context.Context, it work.Item, forget func(context.Context) error) (bool, error) {
	if s.queue == nil {
		return false, nil
	}
	err := s.queue.Send(ctx, it)
	if err == nil {
		return true, nil
	}
	log := logger.From(ctx, s.log)
	if ferr := forget(ctx); ferr != nil {
		log.Error().Err(err).AnErr("forget_err", ferr).Str("item", it.String()).Msg("enqueue failed and the record could not be marked for retry")
		return false, err
	}
	log.Warn().Err(err).Str("item", it.String()).Msg("enqueue failed; retried on the next observation")
	return false, err
}
