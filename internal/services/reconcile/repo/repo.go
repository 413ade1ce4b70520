// Package repo provides the reconcile repository implementation
package repo

import (
	"context"
	"fmt"
	"strings"

	"contribot/internal/modkit/repokit"
	perr "contribot/internal/platform/errors"
	"contribot/internal/platform/store"
	"contribot/internal/services/reconcile/domain"
)

// IssueColumns is the bind-parameter width of one inserted issue row
const IssueColumns = 11

// Repo defines the reconcile repository contract
type Repo interface {
	// Repositories
	FindRepo(ctx context.Context, owner, name string) (domain.Repository, bool, error)
	InsertRepo(ctx context.Context, r domain.Repository) (int64, error)
	UpdateRepo(ctx context.Context, r domain.Repository) error
	ListRepos(ctx context.Context, sourceID string) ([]domain.Repository, error)

	// Issues
	IssueHashes(ctx context.Context, repoID int64) (map[int]domain.Issue, error)
	OpenIssues(ctx context.Context, repoID int64) ([]domain.Issue, error)
	InsertIssues(ctx context.Context, repoID int64, issues []domain.Issue) ([]domain.InsertedIssue, error)
	UpdateIssue(ctx context.Context, is domain.Issue) error
}

type (
	// PG is a Postgres reconcile repository
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG constructs a Postgres reconcile repository
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind binds a Queryer to a Postgres implementation of Repo
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

const repoCols = `id, owner, name, url, languages_ordered, languages_raw, label, source_id,
	metadata_hash, open_issue_count, created_at, updated_at`

func scanRepo(row store.Row) (domain.Repository, error) {
	var r domain.Repository
	err := row.Scan(&r.ID, &r.Owner, &r.Name, &r.URL, &r.LanguagesOrdered, &r.LanguagesRaw,
		&r.Label, &r.SourceID, &r.MetadataHash, &r.OpenIssueCount, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

// FindRepo looks a repository up by identity
func (r *queries) FindRepo(ctx context.Context, owner, name string) (domain.Repository, bool, error) {
	const sql = `SELECT ` + repoCols + ` FROM repositories WHERE owner = $1 AND name = $2`
	got, err := store.One(ctx, r.q, scanRepo, sql, owner, name)
	if err == perr.ErrNotFound {
		return domain.Repository{}, false, nil
	}
	if err != nil {
		return domain.Repository{}, false, perr.FromPostgresf(err, "find repository %s/%s", owner, name)
	}
	return got, true, nil
}

// InsertRepo creates a record and returns its id
func (r *queries) InsertRepo(ctx context.Context, in domain.Repository) (int64, error) {
	const sql = `
		INSERT INTO repositories
			(owner, name, url, languages_ordered, languages_raw, label, source_id, metadata_hash, open_issue_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	id, err := store.Scalar[int64](ctx, r.q, sql, in.Owner, in.Name, in.URL, in.LanguagesOrdered,
		jsonbOrNil(in.LanguagesRaw), in.Label, in.SourceID, in.MetadataHash, in.OpenIssueCount)
	if err != nil {
		return 0, perr.FromPostgresf(err, "insert repository %s", in.Slug())
	}
	return id, nil
}

// UpdateRepo rewrites the observed fields of an existing record
func (r *queries) UpdateRepo(ctx context.Context, in domain.Repository) error {
	const sql = `
		UPDATE repositories
		SET languages_ordered = $2,
		    languages_raw     = $3,
		    label             = $4,
		    source_id         = $5,
		    metadata_hash     = $6,
		    open_issue_count  = $7,
		    updated_at        = now()
		WHERE id = $1
	`
	err := store.ExecOne(ctx, r.q, sql, in.ID, in.LanguagesOrdered, jsonbOrNil(in.LanguagesRaw),
		in.Label, in.SourceID, in.MetadataHash, in.OpenIssueCount)
	return perr.FromPostgresf(err, "update repository %s", in.Slug())
}

// ListRepos returns stored repositories, all or for one source, oldest first
func (r *queries) ListRepos(ctx context.Context, sourceID string) ([]domain.Repository, error) {
	const sql = `SELECT ` + repoCols + ` FROM repositories WHERE ($1 = '' OR source_id = $1) ORDER BY id`
	out, err := store.Many(ctx, r.q, scanRepo, sql, sourceID)
	return out, perr.FromPostgres(err, "list repositories")
}

// IssueHashes returns id, state and hash of every stored issue keyed by number
func (r *queries) IssueHashes(ctx context.Context, repoID int64) (map[int]domain.Issue, error) {
	const sql = `SELECT id, issue_number, state, metadata_hash FROM issues WHERE repository_id = $1`
	rows, err := store.Many(ctx, r.q, func(row store.Row) (domain.Issue, error) {
		is := domain.Issue{RepositoryID: repoID}
		err := row.Scan(&is.ID, &is.Number, &is.State, &is.MetadataHash)
		return is, err
	}, sql, repoID)
	if err != nil {
		return nil, perr.FromPostgresf(err, "issue hashes of repository %d", repoID)
	}
	out := make(map[int]domain.Issue, len(rows))
	for _, is := range rows {
		out[is.Number] = is
	}
	return out, nil
}

// OpenIssues returns stored issues still marked open
func (r *queries) OpenIssues(ctx context.Context, repoID int64) ([]domain.Issue, error) {
	const sql = `
		SELECT id, issue_number, title, body, state, comment_count, assignees, url, metadata_hash
		FROM issues
		WHERE repository_id = $1 AND state = 'open'
		ORDER BY issue_number
	`
	out, err := store.Many(ctx, r.q, func(row store.Row) (domain.Issue, error) {
		is := domain.Issue{RepositoryID: repoID}
		err := row.Scan(&is.ID, &is.Number, &is.Title, &is.Body, &is.State, &is.CommentCount,
			&is.Assignees, &is.URL, &is.MetadataHash)
		return is, err
	}, sql, repoID)
	return out, perr.FromPostgresf(err, "open issues of repository %d", repoID)
}

// InsertIssues writes one multi-row statement and returns the rows it created.
// Callers keep len(issues)*IssueColumns within store.MaxBindParams
func (r *queries) InsertIssues(ctx context.Context, repoID int64, issues []domain.Issue) ([]domain.InsertedIssue, error) {
	if len(issues) == 0 {
		return nil, nil
	}
	if len(issues)*IssueColumns > store.MaxBindParams {
		return nil, perr.InvalidArgf("insert of %d issues exceeds the bind parameter limit", len(issues))
	}
	var b strings.Builder
	b.WriteString(`INSERT INTO issues (repository_id, issue_number, title, body, state, comment_count,
		assignees, url, metadata_hash, source_created_at, source_updated_at) VALUES `)
	args := make([]any, 0, len(issues)*IssueColumns)
	for i, is := range issues {
		if i > 0 {
			b.WriteString(", ")
		}
		base := i * IssueColumns
		b.WriteByte('(')
		for c := 1; c <= IssueColumns; c++ {
			if c > 1 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", base+c)
		}
		b.WriteByte(')')
		args = append(args, repoID, is.Number, is.Title, is.Body, is.State, is.CommentCount,
			is.Assignees, is.URL, is.MetadataHash, is.SourceCreatedAt, is.SourceUpdatedAt)
	}
	b.WriteString(` ON CONFLICT (repository_id, issue_number) DO NOTHING RETURNING id, issue_number`)

	out, err := store.Many(ctx, r.q, func(row store.Row) (domain.InsertedIssue, error) {
		var ins domain.InsertedIssue
		err := row.Scan(&ins.ID, &ins.Number)
		return ins, err
	}, b.String(), args...)
	if err != nil {
		return nil, perr.FromPostgresf(err, "insert %d issues of repository %d", len(issues), repoID)
	}
	return out, nil
}

// UpdateIssue rewrites one issue, title and body included
func (r *queries) UpdateIssue(ctx context.Context, is domain.Issue) error {
	const sql = `
		UPDATE issues
		SET title             = $2,
		    body              = $3,
		    state             = $4,
		    comment_count     = $5,
		    assignees         = $6,
		    url               = $7,
		    metadata_hash     = $8,
		    source_updated_at = COALESCE($9, source_updated_at),
		    observed_at       = now()
		WHERE id = $1
	`
	err := store.ExecOne(ctx, r.q, sql, is.ID, is.Title, is.Body, is.State, is.CommentCount,
		is.Assignees, is.URL, is.MetadataHash, is.SourceUpdatedAt)
	return perr.FromPostgresf(err, "update issue %d", is.ID)
}

// jsonbOrNil keeps an absent breakdown as SQL NULL
func jsonbOrNil(m map[string]int64) any {
	if m == nil {
		return nil
	}
	return m
}
