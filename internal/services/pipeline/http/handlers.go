// Package http exposes the pipeline trigger endpoints
package http

import (
	_ "embed"
	"net/http"
	"time"

	"contribot/internal/core/version"
	perr "contribot/internal/platform/errors"
	"contribot/internal/platform/logger"
	phttp "contribot/internal/platform/net/http"
	annotatedom "contribot/internal/services/annotate/domain"
	"contribot/internal/services/pipeline/domain"
	reconciledom "contribot/internal/services/reconcile/domain"
)

// OpenAPI is the trigger API document served under /docs
//
//go:embed openapi.json
var OpenAPI []byte

// Fixed client-facing messages; the detail stays in the run's log stream
const (
	msgCredential = "upstream credential rejected; check the GitHub token"
	msgFailed     = "pipeline run failed"
	msgDrain      = "annotation drain failed"
)

// Deps are the handler dependencies
type Deps struct {
	Runner    domain.RunnerPort
	Runs      domain.QueryPort
	Processor annotatedom.ProcessorPort
	// DrainBatch and DrainBudget bound POST /annotate
	DrainBatch  int
	DrainBudget time.Duration
	Log         logger.Logger
}

type handlers struct{ deps Deps }

// Register mounts the trigger routes; auth is the caller's concern
func Register(r phttp.Router, d Deps) {
	h := &handlers{deps: d}
	phttp.PostJSON(r, "/scrape", h.scrape)
	phttp.PostJSON(r, "/annotate", h.annotate)
	phttp.GetJSON(r, "/runs/{id}", h.run)
}

// RegisterHealth mounts the unauthenticated probe
func RegisterHealth(r phttp.Router, started time.Time) {
	phttp.GetJSON(r, "/healthz", func(*http.Request) phttp.Response {
		return phttp.OK(HealthResponse{
			OK:      true,
			Version: version.Info().Version,
			Started: started.UTC().Format(time.RFC3339),
			Now:     time.Now().UTC().Format(time.RFC3339),
		})
	})
}

// ScrapeRequest starts or resumes a discovery run
type ScrapeRequest struct {
	Depth  string `json:"depth"  validate:"omitempty,oneof=count count-only full" example:"count"`
	Source string `json:"source" validate:"omitempty,max=100" example:"awesome-go"`
}

// AnnotateRequest overrides the drain bounds
type AnnotateRequest struct {
	BatchSize int    `json:"batch_size" validate:"omitempty,min=1,max=100" example:"5"`
	Budget    string `json:"budget"     validate:"omitempty" example:"10m"`
}

// HealthResponse is the probe payload
type HealthResponse struct {
	OK      bool   `json:"ok"      example:"true"`
	Version string `json:"version" example:"0.3.0"`
	Started string `json:"started" example:"2026-03-01T10:00:00Z"`
	Now     string `json:"now"     example:"2026-03-01T10:05:00Z"`
}

// @Summary Run one discovery pass
// @Tags Pipeline
// @Accept json
// @Produce json
// @Param body body ScrapeRequest false "scope and depth"
// @Success 200 {object} domain.Outcome "run done"
// @Success 202 {object} domain.Outcome "run paused; cursor attached"
// @Failure 424 {object} phttp.Envelope "upstream credential rejected"
// @Failure 500 {object} phttp.Envelope "pipeline run failed"
// @Router /v1/scrape [post]
func (h *handlers) scrape(r *http.Request, in ScrapeRequest) phttp.Response {
	req := domain.Request{Trigger: domain.TriggerAPI, SourceID: in.Source}
	if in.Depth != "" {
		d, err := reconciledom.ParseDepth(in.Depth)
		if err != nil {
			return phttp.Error(perr.Wrapf(err, perr.ErrorCodeValidation, "depth"))
		}
		req.Depth = d
	}
	out, err := h.deps.Runner.Run(r.Context(), req)
	return h.outcome(r, out, err)
}

// outcome maps a run result onto the wire without leaking internal text
func (h *handlers) outcome(r *http.Request, out domain.Outcome, err error) phttp.Response {
	log := logger.From(r.Context(), h.deps.Log)
	switch {
	case err == nil && out.State == domain.StatePaused:
		return phttp.Accepted(out)
	case err == nil:
		return phttp.OK(out)
	case perr.IsCode(err, perr.ErrorCodeUnauthorized):
		log.Error().Err(err).Str("run_id", out.RunID).Msg("scrape aborted")
		return phttp.ErrorStatus(http.StatusFailedDependency, perr.New(perr.ErrorCodeUnauthorized, msgCredential))
	case perr.IsCode(err, perr.ErrorCodeInvalidArgument), perr.IsCode(err, perr.ErrorCodeValidation):
		return phttp.Error(err)
	default:
		log.Error().Err(err).Str("run_id", out.RunID).Str("state", string(out.State)).Msg("scrape failed")
		return phttp.ErrorStatus(http.StatusInternalServerError, perr.New(perr.ErrorCodeUnknown, msgFailed))
	}
}

// @Summary Drain the annotation queue within a budget
// @Tags Pipeline
// @Accept json
// @Produce json
// @Param body body AnnotateRequest false "drain bounds"
// @Success 200 {object} annotatedom.DrainResult
// @Failure 500 {object} phttp.Envelope
// @Router /v1/annotate [post]
func (h *handlers) annotate(r *http.Request, in AnnotateRequest) phttp.Response {
	if h.deps.Processor == nil {
		return phttp.Error(perr.Unavailablef("annotation is not configured in this process"))
	}
	batch, budget := h.deps.DrainBatch, h.deps.DrainBudget
	if in.BatchSize > 0 {
		batch = in.BatchSize
	}
	if in.Budget != "" {
		d, err := time.ParseDuration(in.Budget)
		if err != nil || d <= 0 {
			return phttp.Error(perr.Validationf("budget must be a positive duration like 5m"))
		}
		budget = d
	}
	res, err := h.deps.Processor.Drain(r.Context(), batch, budget)
	if err != nil {
		logger.From(r.Context(), h.deps.Log).Error().Err(err).Int("processed", res.Processed).Msg("drain failed")
		return phttp.ErrorStatus(http.StatusInternalServerError, perr.New(perr.ErrorCodeUnknown, msgDrain))
	}
	return phttp.OK(res)
}

// @Summary Read one run record
// @Tags Pipeline
// @Produce json
// @Param id path string true "run id"
// @Success 200 {object} domain.Run
// @Failure 404 {object} phttp.Envelope
// @Router /v1/runs/{id} [get]
func (h *handlers) run(r *http.Request) phttp.Response {
	run, err := h.deps.Runs.GetRun(r.Context(), phttp.URLParam(r, "id"))
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) || perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
			return phttp.Error(err)
		}
		logger.From(r.Context(), h.deps.Log).Error().Err(err).Msg("run lookup failed")
		return phttp.ErrorStatus(http.StatusInternalServerError, perr.New(perr.ErrorCodeUnknown, "run lookup failed"))
	}
	return phttp.OK(run)
}
