// Package service implements repository and issue reconciliation
package service

import (
	"context"

	"contribot/internal/modkit/repokit"
	"contribot/internal/platform/logger"
	"contribot/internal/services/reconcile/domain"
	"contribot/internal/services/reconcile/repo"
)

// DefaultInsertChunk is the issue insert batch size
const DefaultInsertChunk = 500

// Config carries runtime knobs
type Config struct {
	// InsertChunk is capped so a chunk never exceeds the bind parameter limit
	InsertChunk int
}

// Svc implements the reconcile ports
type Svc struct {
	db     repokit.TxRunner
	binder repokit.Binder[repo.Repo]
	gw     domain.Gateway
	queue  domain.Enqueuer
	log    logger.Logger
	cfg    Config
}

var (
	_ domain.RepoReconcilerPort  = (*Svc)(nil)
	_ domain.IssueReconcilerPort = (*Svc)(nil)
)

// New constructs the reconcile service
func New(db repokit.TxRunner, binder repokit.Binder[repo.Repo], gw domain.Gateway, q domain.Enqueuer, log logger.Logger, cfg Config) *Svc {
	if db == nil {
		panic("reconcile.Service requires a non nil TxRunner")
	}
	if cfg.InsertChunk <= 0 {
		cfg.InsertChunk = DefaultInsertChunk
	}
	return &Svc{db: db, binder: binder, gw: gw, queue: q, log: log, cfg: cfg}
}

func (s *Svc) repo() repo.Repo { return repokit.MustBind(s.binder, s.db) }

// ReposForIssues lists stored repositories, optionally for one source
func (s *Svc) ReposForIssues(ctx context.Context, sourceID string) ([]domain.Repository, error) {
	return s.repo().ListRepos(ctx, sourceID)
}
