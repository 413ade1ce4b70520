package github

import (
	"context"
	"fmt"

	perr "contribot/internal/platform/errors"

	gh "github.com/google/go-github/v68/github"
)

// FetchLanguages returns the language breakdown. No languages is not an error
func (g *Gateway) FetchLanguages(ctx context.Context, owner, name string) (Languages, error) {
	raw, _, err := g.rest.Repositories.ListLanguages(ctx, owner, name)
	if err != nil {
		return Languages{}, classify(err, fmt.Sprintf("languages of %s/%s", owner, name))
	}
	return toLanguages(raw), nil
}

// FetchAllIssues pages through issues carrying label in state.
// Stops at an empty or short page, the last page, or the page cap
func (g *Gateway) FetchAllIssues(ctx context.Context, owner, name, label, state string) ([]Issue, error) {
	if state == "" {
		state = "open"
	}
	opt := &gh.IssueListByRepoOptions{
		State:       state,
		ListOptions: gh.ListOptions{PerPage: perPage},
	}
	if label != "" {
		opt.Labels = []string{label}
	}

	var out []Issue
	for page := 1; page <= g.opts.MaxPages; page++ {
		opt.Page = page
		batch, resp, err := g.rest.Issues.ListByRepo(ctx, owner, name, opt)
		if err != nil {
			return nil, classify(err, fmt.Sprintf("issues of %s/%s", owner, name))
		}
		for _, it := range batch {
			if it == nil || it.IsPullRequest() {
				continue
			}
			out = append(out, toIssue(it))
		}
		if len(batch) < perPage || resp == nil || resp.NextPage == 0 {
			return out, nil
		}
		if page == g.opts.MaxPages {
			g.log.Warn().
				Str("repo", owner+"/"+name).
				Str("label", label).
				Int("max_pages", g.opts.MaxPages).
				Int("issues", len(out)).
				Msg("issue listing hit the page cap; remaining pages skipped")
		}
	}
	return out, nil
}

// FetchIssue re-fetches one issue
func (g *Gateway) FetchIssue(ctx context.Context, owner, name string, number int) (Issue, error) {
	it, _, err := g.rest.Issues.Get(ctx, owner, name, number)
	if err != nil {
		return Issue{}, classify(err, fmt.Sprintf("issue %s/%s#%d", owner, name, number))
	}
	return toIssue(it), nil
}

// BatchFetchIssues fetches each number on its own. Missing and otherwise
// failing issues are left out; rejected credentials and ceilings stop the batch
func (g *Gateway) BatchFetchIssues(ctx context.Context, owner, name string, numbers []int) (map[int]Issue, error) {
	out := make(map[int]Issue, len(numbers))
	for _, n := range numbers {
		it, err := g.FetchIssue(ctx, owner, name, n)
		switch {
		case err == nil:
			out[n] = it
		case perr.Halts(err):
			return out, err
		case perr.IsCode(err, perr.ErrorCodeNotFound):
			g.log.Debug().Str("repo", owner+"/"+name).Int("number", n).Msg("issue gone upstream")
		default:
			g.log.Warn().Err(err).Str("repo", owner+"/"+name).Int("number", n).Msg("issue refetch failed; skipping")
		}
	}
	return out, nil
}
