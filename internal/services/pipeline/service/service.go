// Package service orchestrates one discovery run from sources to annotations
package service

import (
	"context"
	"time"

	"contribot/internal/modkit/repokit"
	perr "contribot/internal/platform/errors"
	"contribot/internal/platform/logger"
	"contribot/internal/platform/store"
	ptime "contribot/internal/platform/time"
	"contribot/internal/services/pipeline/domain"
	"contribot/internal/services/pipeline/repo"
	reconciledom "contribot/internal/services/reconcile/domain"

	"github.com/google/uuid"
)

// Config carries the orchestrator knobs
type Config struct {
	// StepBatch is how many refs or repositories one step covers
	StepBatch int
	// StepRetries bounds attempts of a step failing with a retryable error
	StepRetries int
	RetryBase   time.Duration
	RetryMax    time.Duration
	// Budget is the wall-clock allowance of one run; zero disables it
	Budget time.Duration
	// Depth applies when a request leaves it empty
	Depth reconciledom.Depth

	DrainBatch  int
	DrainBudget time.Duration
}

func (c Config) withDefaults() Config {
	if c.StepBatch <= 0 {
		c.StepBatch = 25
	}
	if c.StepRetries <= 0 {
		c.StepRetries = 3
	}
	if c.RetryBase <= 0 {
		c.RetryBase = time.Second
	}
	if c.RetryMax <= 0 {
		c.RetryMax = 30 * time.Second
	}
	if c.Depth == "" {
		c.Depth = reconciledom.DepthCountOnly
	}
	return c
}

// Deps are the collaborators of a run. Drainer, Continuations, CH and RunLog are optional
type Deps struct {
	DB            repokit.TxRunner
	Binder        repokit.Binder[repo.Repo]
	Catalog       domain.Catalog
	Repos         reconciledom.RepoReconcilerPort
	Issues        reconciledom.IssueReconcilerPort
	Drainer       domain.Drainer
	Continuations domain.Continuations
	CH            store.Clickhouse
	RunLog        domain.RunLogger
	Log           logger.Logger
}

// Svc implements domain.RunnerPort and domain.QueryPort
type Svc struct {
	Deps
	cfg   Config
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
	newID func() string
}

var (
	_ domain.RunnerPort = (*Svc)(nil)
	_ domain.QueryPort  = (*Svc)(nil)
)

// Option tweaks the service
type Option func(*Svc)

// WithClock swaps the clock and the sleeper used for budgets and retry backoff
func WithClock(now func() time.Time, sleep func(context.Context, time.Duration) error) Option {
	return func(s *Svc) { s.now, s.sleep = now, sleep }
}

// WithIDs swaps the run id generator
func WithIDs(newID func() string) Option { return func(s *Svc) { s.newID = newID } }

// New constructs the orchestrator
func New(d Deps, cfg Config, opts ...Option) *Svc {
	if d.DB == nil || d.Binder == nil {
		panic("pipeline.Service requires a TxRunner and a run repo binder")
	}
	if d.Catalog == nil || d.Repos == nil || d.Issues == nil {
		panic("pipeline.Service requires a catalog and both reconcilers")
	}
	s := &Svc{Deps: d, cfg: cfg.withDefaults(), now: time.Now, sleep: ptime.Sleep, newID: uuid.NewString}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Svc) repo() repo.Repo { return repokit.MustBind(s.Binder, s.DB) }

// Run starts a fresh run
func (s *Svc) Run(ctx context.Context, req domain.Request) (domain.Outcome, error) {
	if req.SourceID != "" && !s.knownSource(req.SourceID) {
		return domain.Outcome{}, perr.InvalidArgf("unknown or disabled source %q", req.SourceID)
	}
	depth := req.Depth
	if depth == "" {
		depth = s.cfg.Depth
	}
	trigger := req.Trigger
	if trigger == "" {
		trigger = domain.TriggerCLI
	}
	run := domain.Run{
		ID:        s.newID(),
		Trigger:   trigger,
		Depth:     string(depth),
		Scope:     req.SourceID,
		State:     domain.StateFetchingSources,
		Status:    domain.StatusRunning,
		StartedAt: s.now().UTC(),
	}
	if err := s.repo().CreateRun(ctx, run); err != nil {
		return domain.Outcome{}, err
	}
	s.tagRun(run.ID)
	ctx = logger.WithRun(ctx, run.ID)
	logger.From(ctx, s.Log).Info().Str("trigger", string(trigger)).Str("depth", run.Depth).Str("scope", run.Scope).Msg("run started")
	return s.execute(ctx, run, nil)
}

// Resume re-enters a paused run at c
func (s *Svc) Resume(ctx context.Context, c domain.Cursor) (domain.Outcome, error) {
	run, err := s.repo().ReopenRun(ctx, c.RunID, domain.TriggerContinuation)
	if err != nil {
		return domain.Outcome{RunID: c.RunID}, err
	}
	s.tagRun(run.ID)
	ctx = logger.WithRun(ctx, run.ID)
	logger.From(ctx, s.Log).Info().Str("phase", string(c.Phase)).Str("source", c.SourceID).Int("index", c.Index).Msg("run resumed")
	return s.execute(ctx, run, &c)
}

// GetRun reads one run record
func (s *Svc) GetRun(ctx context.Context, id string) (domain.Run, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Run{}, perr.InvalidArgf("run id %q is not a uuid", id)
	}
	return s.repo().GetRun(ctx, id)
}

func (s *Svc) tagRun(id string) {
	if s.RunLog != nil {
		s.RunLog.SetRun(id)
	}
}

func (s *Svc) knownSource(id string) bool {
	for _, src := range s.Catalog.Enabled() {
		if src.ID == id {
			return true
		}
	}
	return false
}

func (s *Svc) budgetSpent(started time.Time) bool {
	return s.cfg.Budget > 0 && s.now().Sub(started) >= s.cfg.Budget
}
