package github

import (
	"context"
	"fmt"

	perr "contribot/internal/platform/errors"

	"github.com/shurcooL/githubv4"
)

// labelCountQuery asks for the open issue total under one label
type labelCountQuery struct {
	Repository *struct {
		Issues struct {
			TotalCount githubv4.Int
		} `graphql:"issues(states: OPEN, labels: $labels)"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}

// FetchIssueLabelCount is a single aggregate query. An unresolvable
// repository comes back as NotFound
func (g *Gateway) FetchIssueLabelCount(ctx context.Context, owner, name, label string) (int, error) {
	var q labelCountQuery
	vars := map[string]any{
		"owner":  githubv4.String(owner),
		"name":   githubv4.String(name),
		"labels": []githubv4.String{githubv4.String(label)},
	}
	err := g.gql.Query(ctx, &q, vars)
	what := fmt.Sprintf("repository %s/%s", owner, name)
	if err != nil {
		if _, ok := perr.As(err); ok || perr.Halts(err) {
			return 0, err
		}
		if q.Repository == nil {
			return 0, perr.Wrapf(err, perr.ErrorCodeNotFound, "%s not found", what)
		}
		return 0, classify(err, what)
	}
	if q.Repository == nil {
		return 0, perr.NotFoundf("%s not found", what)
	}
	return int(q.Repository.Issues.TotalCount), nil
}
