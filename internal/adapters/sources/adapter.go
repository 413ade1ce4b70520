// Package sources turns curated lists of repositories into references.
// A bad entry is skipped and a bad payload yields an empty list
package sources

import (
	"context"
	"io"
	"net/http"
	"time"

	"contribot/internal/core/ref"
	perr "contribot/internal/platform/errors"
	"contribot/internal/platform/logger"
	"contribot/internal/platform/validate"

	"golang.org/x/text/cases"
)

const maxPayload = 8 << 20

// Adapter fetches one curated list
type Adapter interface {
	Fetch(ctx context.Context, sourceURL string) ([]ref.Repo, error)
}

// Entry is one raw list item before defaults and validation
type Entry struct {
	Owner string
	Name  string
	Label string
}

// ParseFunc reads a whole payload. An error means the payload itself is unusable
type ParseFunc func(body []byte, log logger.Logger) ([]Entry, error)

// candidate is what an entry must satisfy to become a reference
type candidate struct {
	Slug  string `json:"repo" validate:"required,repo_slug"`
	Label string `json:"label" validate:"required,max=100"`
}

// HTTPAdapter downloads a payload and hands it to a parser
type HTTPAdapter struct {
	kind     string
	sourceID string
	label    string
	parse    ParseFunc
	client   *http.Client
	log      logger.Logger
}

// NewHTTPAdapter builds an adapter for one source. client may be nil
func NewHTTPAdapter(kind, sourceID, defaultLabel string, parse ParseFunc, client *http.Client, log logger.Logger) *HTTPAdapter {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPAdapter{
		kind:     kind,
		sourceID: sourceID,
		label:    defaultLabel,
		parse:    parse,
		client:   client,
		log:      logger.Component(log, "sources").With().Str("source", sourceID).Str("adapter", kind).Logger(),
	}
}

// Fetch downloads sourceURL and returns the valid, de-duplicated references
func (a *HTTPAdapter) Fetch(ctx context.Context, sourceURL string) ([]ref.Repo, error) {
	body, err := a.download(ctx, sourceURL)
	if err != nil {
		return nil, err
	}
	return a.FromPayload(body), nil
}

// FromPayload parses an already fetched payload
func (a *HTTPAdapter) FromPayload(body []byte) []ref.Repo {
	entries, err := a.parse(body, a.log)
	if err != nil {
		a.log.Warn().Err(err).Int("bytes", len(body)).Msg("source payload malformed; nothing taken from it")
		return nil
	}
	return a.normalize(entries)
}

func (a *HTTPAdapter) download(ctx context.Context, sourceURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "source %s url", a.sourceID)
	}
	req.Header.Set("User-Agent", "contribot")
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "source %s unreachable", a.sourceID)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			a.log.Error().Err(cerr).Msg("source close body failed")
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, perr.Newf(perr.ErrorCodeUnavailable, "source %s returned status %d", a.sourceID, resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxPayload))
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "source %s read failed", a.sourceID)
	}
	return b, nil
}

// normalize applies the default label, validates and drops case-folded duplicates
func (a *HTTPAdapter) normalize(entries []Entry) []ref.Repo {
	fold := cases.Fold()
	seen := make(map[string]struct{}, len(entries))
	out := make([]ref.Repo, 0, len(entries))
	for i, e := range entries {
		label := e.Label
		if label == "" {
			label = a.label
		}
		c := candidate{Slug: e.Owner + "/" + e.Name, Label: label}
		if err := validate.Struct(c); err != nil {
			field, msg := validate.FieldAndMessage(perr.Root(err))
			a.log.Warn().Int("entry", i).Str("repo", c.Slug).Str("field", field).Str("problem", msg).Msg("skipping invalid source entry")
			continue
		}
		key := fold.String(c.Slug)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ref.Repo{Owner: e.Owner, Name: e.Name, SourceID: a.sourceID, Label: label})
	}
	return out
}
