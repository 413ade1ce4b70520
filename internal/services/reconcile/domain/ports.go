package domain

import (
	"context"

	gh "contribot/internal/adapters/github"
	"contribot/internal/core/ref"
	"contribot/internal/core/work"
)

// Gateway is the slice of the code-hosting API reconciliation uses
type Gateway interface {
	FetchLanguages(ctx context.Context, owner, name string) (gh.Languages, error)
	FetchIssueLabelCount(ctx context.Context, owner, name, label string) (int, error)
	FetchAllIssues(ctx context.Context, owner, name, label, state string) ([]gh.Issue, error)
	BatchFetchIssues(ctx context.Context, owner, name string, numbers []int) (map[int]gh.Issue, error)
}

// Enqueuer hands work to the annotation queue
type Enqueuer interface {
	Send(ctx context.Context, item work.Item) error
}

// RepoReconcilerPort discovers and refreshes repositories
type RepoReconcilerPort interface {
	ProcessRepos(ctx context.Context, refs []ref.Repo, opts Options) (RepoStats, error)
}

// IssueReconcilerPort refreshes the issues of stored repositories
type IssueReconcilerPort interface {
	ProcessRepoIssues(ctx context.Context, repo Repository, label string) (IssueStats, error)
	DetectClosedIssues(ctx context.Context, repo Repository, openListing []gh.Issue) (int, error)
	ReposForIssues(ctx context.Context, sourceID string) ([]Repository, error)
}
