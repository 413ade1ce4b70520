package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	perr "contribot/internal/platform/errors"
	kit "contribot/internal/platform/testkit"

	"github.com/go-chi/chi/v5"
)

type trigger struct {
	Source string `json:"source"`
}

func TestRouterAndResponses(t *testing.T) {
	t.Parallel()

	m := chi.NewRouter()
	r := AdaptChi(m)
	r.Route("/v1", func(v1 Router) {
		GetJSON(v1, "/runs/{id}", func(req *http.Request) Response {
			if URLParam(req, "id") == "missing" {
				return Error(perr.NotFoundf("run not found"))
			}
			return OK(map[string]string{"id": URLParam(req, "id")})
		})
		PostJSON(v1, "/scrape", func(_ *http.Request, in trigger) Response {
			if in.Source == "boom" {
				return ErrorStatus(http.StatusFailedDependency, perr.Unauthorizedf("upstream credential rejected"))
			}
			return Accepted(in)
		})
	})

	cases := []struct {
		method, path, body string
		status             int
		contains           string
	}{
		{http.MethodGet, "/v1/runs/abc", "", http.StatusOK, `"id":"abc"`},
		{http.MethodGet, "/v1/runs/missing", "", http.StatusNotFound, "run not found"},
		{http.MethodPost, "/v1/scrape", `{"source":"awesome"}`, http.StatusAccepted, `"source":"awesome"`},
		{http.MethodPost, "/v1/scrape", ``, http.StatusAccepted, `"status":"Accepted"`},
		{http.MethodPost, "/v1/scrape", `{"source":"boom"}`, http.StatusFailedDependency, "credential rejected"},
		{http.MethodPost, "/v1/scrape", `{bad`, http.StatusBadRequest, "invalid JSON"},
	}
	for _, c := range cases {
		rr := httptest.NewRecorder()
		m.ServeHTTP(rr, httptest.NewRequest(c.method, c.path, strings.NewReader(c.body)))
		if rr.Code != c.status {
			t.Fatalf("%s %s: status %d, want %d (%s)", c.method, c.path, rr.Code, c.status, rr.Body.String())
		}
		kit.MustContain(t, rr.Body.String(), c.contains)
	}
}

func TestRespondError(t *testing.T) {
	t.Parallel()
	rr := httptest.NewRecorder()
	RespondError(rr, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("plain"))
	kit.MustEqual(t, rr.Code, http.StatusInternalServerError, "status")
	kit.MustContain(t, rr.Header().Get("Content-Type"), "application/json")
}

func TestMountDocs(t *testing.T) {
	t.Parallel()
	m := chi.NewRouter()
	MountDocs(AdaptChi(m), []byte(`{"openapi":"3.0.0"}`), true)

	rr := httptest.NewRecorder()
	m.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/docs/doc.json", nil))
	kit.MustEqual(t, rr.Code, http.StatusOK, "status")
	kit.MustContain(t, rr.Body.String(), "openapi")
}
