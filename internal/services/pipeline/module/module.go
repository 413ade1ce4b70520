// Package module wires the run orchestrator, its trigger API and scheduler
package module

import (
	"time"

	"contribot/internal/modkit"
	perr "contribot/internal/platform/errors"
	phttp "contribot/internal/platform/net/http"
	"contribot/internal/platform/net/middleware"
	annotatedom "contribot/internal/services/annotate/domain"
	"contribot/internal/services/pipeline/continuation"
	"contribot/internal/services/pipeline/domain"
	pipehttp "contribot/internal/services/pipeline/http"
	"contribot/internal/services/pipeline/repo"
	"contribot/internal/services/pipeline/schedule"
	"contribot/internal/services/pipeline/service"
	reconcilemod "contribot/internal/services/reconcile/module"
)

// Ports exposed by the pipeline module
type Ports struct {
	Runner        domain.RunnerPort
	Runs          domain.QueryPort
	Continuations domain.Continuations
}

// Module implements modkit.Module
type Module struct {
	deps    modkit.Deps
	opts    Options
	ports   Ports
	drain   annotatedom.ProcessorPort
	started time.Time
}

// Option adjusts the orchestrator collaborators
type Option func(*service.Deps)

// WithRunLog hands every run id to l so shipped log lines land under that run
func WithRunLog(l domain.RunLogger) Option { return func(d *service.Deps) { d.RunLog = l } }

// New wires the orchestrator over the reconcile ports and the annotation processor.
// proc may be nil for processes that never drain
func New(deps modkit.Deps, catalog domain.Catalog, rec reconcilemod.Ports, proc annotatedom.ProcessorPort, options ...Option) (*Module, error) {
	opts := FromConfig(deps.Cfg)
	if deps.PG == nil {
		return nil, perr.InvalidArgf("pipeline module needs postgres")
	}

	var conts domain.Continuations
	switch opts.Continuations {
	case ChannelRedis:
		if deps.Redis == nil {
			return nil, perr.InvalidArgf("PIPELINE_CONTINUATIONS=redis needs CONTRIBOT_REDIS_ENABLED")
		}
		conts = continuation.NewRedis(deps.Redis, opts.ContinueKey)
	default:
		conts = continuation.NewPG(deps.PG)
	}

	cfg := opts.Service
	cfg.Depth = rec.Depth
	d := service.Deps{
		DB:            deps.PG,
		Binder:        repo.NewPG(),
		Catalog:       catalog,
		Repos:         rec.Repos,
		Issues:        rec.Issues,
		Continuations: conts,
		CH:            deps.CH,
		Log:           deps.Component("pipeline"),
	}
	if proc != nil {
		d.Drainer = proc
	}
	for _, o := range options {
		o(&d)
	}
	svc := service.New(d, cfg)
	return &Module{
		deps:    deps,
		opts:    opts,
		ports:   Ports{Runner: svc, Runs: svc, Continuations: conts},
		drain:   proc,
		started: time.Now(),
	}, nil
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return "pipeline" }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// Options returns the resolved configuration
func (m *Module) Options() Options { return m.opts }

// MountRoutes mounts /healthz, /docs and the /v1 trigger routes, plus pprof when
// enabled. The trigger routes need a bearer key only when one is configured
func (m *Module) MountRoutes(r phttp.Router) {
	if len(m.opts.CORSOrigins) > 0 {
		r.Use(middleware.CORS(middleware.CORSOptions{AllowedOrigins: m.opts.CORSOrigins, MaxAge: 300}))
	}
	pipehttp.RegisterHealth(r, m.started)
	phttp.MountDocs(r, pipehttp.OpenAPI, m.opts.Docs)

	built := modkit.Build(
		modkit.WithName(m.Name()),
		modkit.WithPrefix("/v1"),
		modkit.WithRegister(func(v1 phttp.Router) {
			pipehttp.Register(v1, pipehttp.Deps{
				Runner:      m.ports.Runner,
				Runs:        m.ports.Runs,
				Processor:   m.drain,
				DrainBatch:  m.opts.Service.DrainBatch,
				DrainBudget: m.opts.Service.DrainBudget,
				Log:         m.deps.Component("trigger"),
			})
		}),
	)
	keys := middleware.ParseTriggerKeys(m.opts.TriggerKeys)
	if len(keys) > 0 {
		built.Mw = append(built.Mw, middleware.TriggerAuth(keys))
	} else {
		m.deps.Log.Warn().Msg("no trigger key configured; trigger API is unauthenticated")
	}
	built.Mount(r)

	if m.opts.Profiler {
		r.Group(func(g phttp.Router) {
			if len(keys) > 0 {
				g.Use(middleware.TriggerAuth(keys))
			}
			phttp.MountProfiler(g, "/debug", true)
		})
	}
}

// Scheduler builds the cron jobs from the SCHEDULE_* specs. req scopes the
// scrape job; the drain job is left out when the module has no processor
func (m *Module) Scheduler(req domain.Request) (*schedule.Scheduler, error) {
	log := m.deps.Component("schedule")
	s := schedule.New(m.deps.Log)
	if err := s.Add(schedule.JobScrape, m.opts.Schedule.Scrape, schedule.Scrape(m.ports.Runner, req, log)); err != nil {
		return nil, err
	}
	if m.drain != nil {
		job := schedule.Annotate(m.drain, m.opts.Service.DrainBatch, m.opts.Service.DrainBudget, log)
		if err := s.Add(schedule.JobAnnotate, m.opts.Schedule.Annotate, job); err != nil {
			return nil, err
		}
	}
	if err := s.Add(schedule.JobContinue, m.opts.Schedule.Continue, schedule.Continue(m.ports.Continuations, m.ports.Runner, log)); err != nil {
		return nil, err
	}
	return s, nil
}
