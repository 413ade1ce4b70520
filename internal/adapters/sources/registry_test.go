package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"contribot/internal/platform/logger"
	kit "contribot/internal/platform/testkit"
)

func TestParseAppliesDefaults(t *testing.T) {
	t.Parallel()
	f, err := Parse([]byte(`
defaults:
  label: help wanted
sources:
  - id: a
    url: https://example.com/a.md
  - id: b
    adapter: YAML
    url: https://example.com/b.yaml
    label: easy
    enabled: false
`))
	kit.NoErr(t, err)
	kit.MustEqual(t, f.Sources[0].Adapter, KindMarkdown, "default adapter")
	kit.MustEqual(t, f.Sources[0].Label, "help wanted", "default label")
	kit.MustEqual(t, f.Sources[1].Adapter, KindYAML, "lower-cased adapter")

	r := NewRegistry(f, nil, logger.Nop())
	enabled := r.Enabled()
	kit.MustEqual(t, len(enabled), 1, "enabled")
	kit.MustEqual(t, enabled[0].ID, "a", "enabled id")
	if _, ok := r.Lookup("b"); !ok {
		t.Fatal("disabled sources are still known")
	}
}

func TestParseRejectsBadConfig(t *testing.T) {
	t.Parallel()
	_, err := Parse([]byte(`
sources:
  - id: a
    adapter: rss
    url: ftp://x
  - id: a
    url: https://example.com
`))
	if err == nil {
		t.Fatal("want validation error")
	}
	for _, want := range []string{"unknown", "http(s)", "duplicated"} {
		kit.MustContain(t, err.Error(), want)
	}
}

func TestEmbeddedDefaultsLoad(t *testing.T) {
	t.Parallel()
	f, err := Load("")
	kit.NoErr(t, err)
	if len(f.Sources) == 0 {
		t.Fatal("embedded list is empty")
	}
}

func TestFetchAllKeepsGoing(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "down.json") {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`["foo/bar", "acme/widget"]`))
	}))
	t.Cleanup(srv.Close)

	f, err := Parse([]byte(`
sources:
  - id: down
    adapter: json
    url: ` + srv.URL + `/down.json
  - id: up
    adapter: json
    url: ` + srv.URL + `/up.json
`))
	kit.NoErr(t, err)

	batches := NewRegistry(f, srv.Client(), logger.Nop()).FetchAll(context.Background())
	kit.MustEqual(t, len(batches), 2, "batches")
	if batches[0].Err == nil {
		t.Fatal("first source should report its failure")
	}
	kit.NoErr(t, batches[1].Err)
	kit.MustEqual(t, len(batches[1].Refs), 2, "refs from healthy source")
	kit.MustEqual(t, batches[1].Refs[0].SourceID, "up", "source id")
}
