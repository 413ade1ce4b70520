// Package module wires the reconcile service
package module

import (
	"contribot/internal/modkit"
	phttp "contribot/internal/platform/net/http"
	"contribot/internal/services/reconcile/domain"
	"contribot/internal/services/reconcile/repo"
	"contribot/internal/services/reconcile/service"
)

// Ports exposed by the reconcile module
type Ports struct {
	Repos  domain.RepoReconcilerPort
	Issues domain.IssueReconcilerPort
	Depth  domain.Depth
}

// Module implements modkit.Module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the reconcile module over gw and the annotation queue q
func New(deps modkit.Deps, gw domain.Gateway, q domain.Enqueuer) *Module {
	opts := FromConfig(deps.Cfg)
	svc := service.New(deps.PG, repo.NewPG(), gw, q, deps.Component("reconcile"), service.Config{
		InsertChunk: opts.InsertChunk,
	})
	return &Module{deps: deps, ports: Ports{Repos: svc, Issues: svc, Depth: opts.Depth}}
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return "reconcile" }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// MountRoutes satisfies modkit.Module
func (m *Module) MountRoutes(phttp.Router) {}
