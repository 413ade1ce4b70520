package bind

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	perr "contribot/internal/platform/errors"
	kit "contribot/internal/platform/testkit"
)

type scrapeBody struct {
	Depth  string `json:"depth" validate:"omitempty,oneof=count full"`
	Source string `json:"source"`
}

func req(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/v1/scrape", strings.NewReader(body))
}

func TestParseJSON(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name  string
		body  string
		opts  []JSONOptions
		code  perr.ErrorCode
		depth string
	}{
		{name: "ok", body: `{"depth":"full"}`, depth: "full"},
		{name: "empty rejected", body: ``, code: perr.ErrorCodeJSON},
		{name: "empty allowed", body: ``, opts: []JSONOptions{{AllowEmptyBody: true}}},
		{name: "unknown field", body: `{"nope":1}`, code: perr.ErrorCodeJSON},
		{name: "trailing data", body: `{"depth":"count"}{}`, code: perr.ErrorCodeJSON},
		{name: "bad enum", body: `{"depth":"deep"}`, code: perr.ErrorCodeValidation},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := ParseJSON[scrapeBody](req(c.body), c.opts...)
			if c.code != perr.ErrorCodeUnknown {
				kit.MustEqual(t, perr.CodeOf(err), c.code, "code")
				return
			}
			kit.NoErr(t, err)
			kit.MustEqual(t, got.Depth, c.depth, "depth")
		})
	}
}
