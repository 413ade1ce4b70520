package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	perr "contribot/internal/platform/errors"
	"contribot/internal/platform/logger"
	phttp "contribot/internal/platform/net/http"
	kit "contribot/internal/platform/testkit"
	annotatedom "contribot/internal/services/annotate/domain"
	"contribot/internal/services/pipeline/domain"
	reconciledom "contribot/internal/services/reconcile/domain"

	"github.com/go-chi/chi/v5"
)

type stubRunner struct {
	out domain.Outcome
	err error
	req domain.Request
}

func (s *stubRunner) Run(_ context.Context, req domain.Request) (domain.Outcome, error) {
	s.req = req
	return s.out, s.err
}

func (s *stubRunner) Resume(context.Context, domain.Cursor) (domain.Outcome, error) {
	return s.out, s.err
}

type stubRuns struct{}

func (stubRuns) GetRun(_ context.Context, id string) (domain.Run, error) {
	switch id {
	case "11111111-1111-1111-1111-111111111111":
		return domain.Run{ID: id, State: domain.StateDone, Status: domain.StatusDone}, nil
	case "broken":
		return domain.Run{}, errors.New("pq: relation pipeline_runs is locked by pid 42")
	}
	return domain.Run{}, perr.NotFoundf("run %s", id)
}

type stubProcessor struct {
	batch  int
	budget time.Duration
	err    error
}

func (p *stubProcessor) ProcessBatch(context.Context, int) (annotatedom.BatchResult, error) {
	return annotatedom.BatchResult{}, nil
}

func (p *stubProcessor) Drain(_ context.Context, batch int, budget time.Duration) (annotatedom.DrainResult, error) {
	p.batch, p.budget = batch, budget
	return annotatedom.DrainResult{Batches: 1, Processed: 2, Success: 2}, p.err
}

func serve(t *testing.T, runner *stubRunner, proc *stubProcessor, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	m := chi.NewRouter()
	r := phttp.AdaptChi(m)
	RegisterHealth(r, time.Unix(0, 0))
	r.Route("/v1", func(v1 phttp.Router) {
		Register(v1, Deps{Runner: runner, Runs: stubRuns{}, Processor: proc, DrainBatch: 5, DrainBudget: time.Minute, Log: logger.Nop()})
	})
	rr := httptest.NewRecorder()
	m.ServeHTTP(rr, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rr
}

func TestScrapeOutcomes(t *testing.T) {
	t.Parallel()
	secret := "token ghp_leaky was rejected by api.github.com"
	cases := []struct {
		name     string
		out      domain.Outcome
		err      error
		status   int
		contains string
		hidden   string
	}{
		{"done", domain.Outcome{RunID: "r", State: domain.StateDone}, nil, http.StatusOK, `"state":"done"`, ""},
		{
			"paused",
			domain.Outcome{RunID: "r", State: domain.StatePaused, ContinuationScheduled: true, Cursor: &domain.Cursor{RunID: "r", Phase: domain.PhaseRepos, SourceID: "awesome", Index: 40}},
			nil, http.StatusAccepted, `"index":40`, "",
		},
		{
			"credential",
			domain.Outcome{RunID: "r", State: domain.StateAborted},
			domain.CredentialRejected(perr.Unauthorizedf("%s", secret)),
			http.StatusFailedDependency, "check the GitHub token", "ghp_leaky",
		},
		{"failed", domain.Outcome{RunID: "r"}, errors.New("pgx: " + secret), http.StatusInternalServerError, msgFailed, "ghp_leaky"},
		{"bad source", domain.Outcome{}, perr.InvalidArgf(`unknown or disabled source "x"`), http.StatusUnprocessableEntity, "unknown or disabled source", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rr := serve(t, &stubRunner{out: tc.out, err: tc.err}, &stubProcessor{}, http.MethodPost, "/v1/scrape", `{}`)
			kit.MustEqual(t, rr.Code, tc.status, "status")
			kit.MustContain(t, rr.Body.String(), tc.contains)
			if tc.hidden != "" && strings.Contains(rr.Body.String(), tc.hidden) {
				t.Fatalf("internal detail leaked: %s", rr.Body.String())
			}
		})
	}
}

func TestScrapeRequestBinding(t *testing.T) {
	t.Parallel()
	runner := &stubRunner{out: domain.Outcome{State: domain.StateDone}}
	rr := serve(t, runner, &stubProcessor{}, http.MethodPost, "/v1/scrape", `{"depth":"full","source":"awesome"}`)
	kit.MustEqual(t, rr.Code, http.StatusOK, "status")
	kit.MustEqual(t, runner.req.Depth, reconciledom.DepthFull, "depth")
	kit.MustEqual(t, runner.req.SourceID, "awesome", "source")
	kit.MustEqual(t, runner.req.Trigger, domain.TriggerAPI, "trigger")

	rr = serve(t, runner, &stubProcessor{}, http.MethodPost, "/v1/scrape", `{"depth":"deep"}`)
	kit.MustEqual(t, rr.Code, http.StatusBadRequest, "bad depth")
}

func TestAnnotate(t *testing.T) {
	t.Parallel()
	p := &stubProcessor{}
	rr := serve(t, &stubRunner{}, p, http.MethodPost, "/v1/annotate", ``)
	kit.MustEqual(t, rr.Code, http.StatusOK, "status")
	kit.MustEqual(t, p.batch, 5, "default batch")
	kit.MustEqual(t, p.budget, time.Minute, "default budget")

	rr = serve(t, &stubRunner{}, p, http.MethodPost, "/v1/annotate", `{"batch_size":9,"budget":"30s"}`)
	kit.MustEqual(t, rr.Code, http.StatusOK, "status")
	kit.MustEqual(t, p.batch, 9, "batch")
	kit.MustEqual(t, p.budget, 30*time.Second, "budget")

	rr = serve(t, &stubRunner{}, p, http.MethodPost, "/v1/annotate", `{"budget":"soon"}`)
	kit.MustEqual(t, rr.Code, http.StatusBadRequest, "bad budget")

	p.err = errors.New("dial tcp 10.0.0.3:5432: refused")
	rr = serve(t, &stubRunner{}, p, http.MethodPost, "/v1/annotate", ``)
	kit.MustEqual(t, rr.Code, http.StatusInternalServerError, "drain failure")
	if strings.Contains(rr.Body.String(), "10.0.0.3") {
		t.Fatal("internal detail leaked")
	}
}

func TestRunLookup(t *testing.T) {
	t.Parallel()
	cases := []struct {
		path   string
		status int
	}{
		{"/v1/runs/11111111-1111-1111-1111-111111111111", http.StatusOK},
		{"/v1/runs/22222222-2222-2222-2222-222222222222", http.StatusNotFound},
		{"/v1/runs/broken", http.StatusInternalServerError},
	}
	for _, c := range cases {
		rr := serve(t, &stubRunner{}, &stubProcessor{}, http.MethodGet, c.path, "")
		kit.MustEqual(t, rr.Code, c.status, c.path)
	}
}

func TestHealthAndDocs(t *testing.T) {
	t.Parallel()
	rr := serve(t, &stubRunner{}, &stubProcessor{}, http.MethodGet, "/healthz", "")
	kit.MustEqual(t, rr.Code, http.StatusOK, "health")
	kit.MustContain(t, rr.Body.String(), `"ok":true`)
	kit.MustContain(t, string(OpenAPI), `"/v1/scrape"`)
}
