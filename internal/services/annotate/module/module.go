// Package module wires the annotation queue and processor
package module

import (
	"context"

	"contribot/internal/modkit"
	perr "contribot/internal/platform/errors"
	phttp "contribot/internal/platform/net/http"
	"contribot/internal/services/annotate/domain"
	"contribot/internal/services/annotate/queue"
	"contribot/internal/services/annotate/repo"
	"contribot/internal/services/annotate/service"
)

// Ports exposed by the annotate module
type Ports struct {
	// Queue is handed to the reconcilers
	Queue     domain.Queue
	Processor domain.ProcessorPort
	Options   Options
}

// Module implements modkit.Module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New builds the configured queue backend and the processor. sum may be nil for
// processes that only enqueue
func New(ctx context.Context, deps modkit.Deps, sum domain.Summarizer) (*Module, error) {
	opts := FromConfig(deps.Cfg)
	if deps.PG == nil {
		return nil, perr.InvalidArgf("annotate module needs postgres")
	}

	var backend domain.Backend
	switch opts.Backend {
	case BackendRedis:
		s, err := queue.NewStream(ctx, deps.Redis, opts.Stream, deps.Component("annotate.queue"))
		if err != nil {
			return nil, err
		}
		backend = s
	default:
		backend = queue.NewPG(deps.PG, opts.MaxAttempts, opts.Lease)
	}

	svc := service.New(deps.PG, repo.NewPG(), backend, sum, deps.Component("annotate"))
	return &Module{deps: deps, ports: Ports{Queue: backend, Processor: svc, Options: opts}}, nil
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return "annotate" }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// MountRoutes satisfies modkit.Module
func (m *Module) MountRoutes(phttp.Router) {}
