package service

import (
	"context"

	gh "contribot/internal/adapters/github"
	"contribot/internal/core/fingerprint"
	"contribot/internal/core/work"
	perr "contribot/internal/platform/errors"
	"contribot/internal/platform/logger"
	"contribot/internal/platform/store"
	ptime "contribot/internal/platform/time"
	"contribot/internal/services/reconcile/domain"
	"contribot/internal/services/reconcile/repo"
)

// ProcessRepoIssues reconciles the open listing of one repository under label.
// New issues go in chunks; a failed chunk is counted and later chunks still run
func (s *Svc) ProcessRepoIssues(ctx context.Context, r domain.Repository, label string) (domain.IssueStats, error) {
	var st domain.IssueStats
	log := logger.From(ctx, s.log).With().Str("repo", r.Slug()).Logger()

	listing, err := s.gw.FetchAllIssues(ctx, r.Owner, r.Name, label, "open")
	if err != nil {
		return st, err
	}
	st.Processed = len(listing)

	rp := s.repo()
	stored, err := rp.IssueHashes(ctx, r.ID)
	if err != nil {
		return st, err
	}

	var fresh, changed []domain.Issue
	for _, it := range listing {
		next := fromRemote(r.ID, it)
		cur, ok := stored[it.Number]
		switch {
		case !ok:
			fresh = append(fresh, next)
		case cur.MetadataHash == next.MetadataHash:
			st.Unchanged++
		default:
			next.ID = cur.ID
			changed = append(changed, next)
		}
	}

	chunk := store.RowsPerStatement(repo.IssueColumns, s.cfg.InsertChunk)
	for start := 0; start < len(fresh); start += chunk {
		part := fresh[start:min(start+chunk, len(fresh))]
		inserted, err := rp.InsertIssues(ctx, r.ID, part)
		if err != nil {
			if perr.Halts(err) {
				return st, err
			}
			st.Errors += len(part)
			log.Warn().Err(err).Int("chunk_start", start).Int("chunk_size", len(part)).Msg("issue chunk insert failed; retried next run")
			continue
		}
		st.New += len(inserted)
		byNumber := make(map[int]domain.Issue, len(part))
		for _, is := range part {
			byNumber[is.Number] = is
		}
		for _, ins := range inserted {
			is := byNumber[ins.Number]
			is.ID = ins.ID
			s.enqueueIssue(ctx, rp, is, work.PriorityNew, &st)
		}
	}

	for _, is := range changed {
		if err := rp.UpdateIssue(ctx, is); err != nil {
			if perr.Halts(err) {
				return st, err
			}
			st.Errors++
			log.Warn().Err(err).Int("number", is.Number).Msg("issue update failed")
			continue
		}
		st.Updated++
		s.enqueueIssue(ctx, rp, is, work.PriorityChanged, &st)
	}

	closed, err := s.DetectClosedIssues(ctx, r, listing)
	st.Closed = closed
	return st, err
}

// enqueueIssue queues is; a failed send is counted as an error and the stored
// hash is cleared so the issue shows up as changed next run
func (s *Svc) enqueueIssue(ctx context.Context, rp repo.Repo, is domain.Issue, prio int, st *domain.IssueStats) {
	queued, err := s.enqueue(ctx, work.Item{Kind: work.KindIssue, EntityID: is.ID, Priority: prio},
		func(ctx context.Context) error {
			is.MetadataHash = ""
			return rp.UpdateIssue(ctx, is)
		})
	switch {
	case err != nil:
		st.Errors++
	case queued:
		st.Queued++
	}
}

// DetectClosedIssues closes stored open issues that left the listing, but only
// once a re-fetch confirms they are closed upstream
func (s *Svc) DetectClosedIssues(ctx context.Context, r domain.Repository, openListing []gh.Issue) (int, error) {
	log := logger.From(ctx, s.log).With().Str("repo", r.Slug()).Logger()
	rp := s.repo()

	open, err := rp.OpenIssues(ctx, r.ID)
	if err != nil {
		return 0, err
	}
	listed := make(map[int]struct{}, len(openListing))
	for _, it := range openListing {
		listed[it.Number] = struct{}{}
	}
	byNumber := make(map[int]domain.Issue)
	var candidates []int
	for _, is := range open {
		if _, ok := listed[is.Number]; !ok {
			candidates = append(candidates, is.Number)
			byNumber[is.Number] = is
		}
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	fetched, err := s.gw.BatchFetchIssues(ctx, r.Owner, r.Name, candidates)
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, n := range candidates {
		it, ok := fetched[n]
		if !ok {
			log.Info().Int("number", n).Msg("closed candidate not found upstream; left untouched")
			continue
		}
		if it.State != "closed" {
			continue
		}
		next := fromRemote(r.ID, it)
		next.ID = byNumber[n].ID
		if err := rp.UpdateIssue(ctx, next); err != nil {
			if perr.Halts(err) {
				return closed, err
			}
			log.Warn().Err(err).Int("number", n).Msg("closing issue failed")
			continue
		}
		closed++
	}
	return closed, nil
}

func fromRemote(repoID int64, it gh.Issue) domain.Issue {
	return domain.Issue{
		RepositoryID:    repoID,
		Number:          it.Number,
		Title:           it.Title,
		Body:            it.Body,
		State:           it.State,
		CommentCount:    it.CommentCount,
		Assignees:       it.Assignees,
		URL:             it.URL,
		MetadataHash:    string(fingerprint.HashIssueMetadata(it.CommentCount, it.State, it.Assignees)),
		SourceCreatedAt: ptime.Ptr(it.CreatedAt),
		SourceUpdatedAt: ptime.Ptr(it.UpdatedAt),
	}
}
