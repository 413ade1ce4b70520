// Package repo reads annotation targets and stores annotations
package repo

import (
	"context"

	"contribot/internal/core/work"
	"contribot/internal/modkit/repokit"
	perr "contribot/internal/platform/errors"
	"contribot/internal/platform/store"
	pstrings "contribot/internal/platform/strings"
	"contribot/internal/services/annotate/domain"
)

// Repo is the annotation storage surface
type Repo interface {
	LoadRepo(ctx context.Context, id int64) (domain.RepoTarget, error)
	LoadIssue(ctx context.Context, id int64) (domain.IssueTarget, error)
	UpsertAnnotation(ctx context.Context, a domain.Annotation) error
	GetAnnotation(ctx context.Context, kind work.Kind, id int64) (domain.Annotation, error)
}

// PG binds Repo to postgres
type PG struct{}

// NewPG returns the postgres binder
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind satisfies repokit.Binder
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

type queries struct{ q repokit.Queryer }

func (r *queries) LoadRepo(ctx context.Context, id int64) (domain.RepoTarget, error) {
	out, err := store.One(ctx, r.q, func(row store.Row) (domain.RepoTarget, error) {
		var t domain.RepoTarget
		err := row.Scan(&t.ID, &t.Owner, &t.Name, &t.Languages)
		return t, err
	}, `SELECT id, owner, name, languages_ordered FROM repositories WHERE id = $1`, id)
	if err == perr.ErrNotFound {
		return out, perr.NotFoundf("repository %d", id)
	}
	return out, perr.FromPostgresf(err, "load repository %d", id)
}

func (r *queries) LoadIssue(ctx context.Context, id int64) (domain.IssueTarget, error) {
	out, err := store.One(ctx, r.q, func(row store.Row) (domain.IssueTarget, error) {
		var (
			t    domain.IssueTarget
			body *string
		)
		err := row.Scan(&t.ID, &t.Owner, &t.Name, &t.Title, &body)
		t.Body = pstrings.Deref(body)
		return t, err
	}, `
SELECT i.id, r.owner, r.name, i.title, i.body
FROM issues i
JOIN repositories r ON r.id = i.repository_id
WHERE i.id = $1`, id)
	if err == perr.ErrNotFound {
		return out, perr.NotFoundf("issue %d", id)
	}
	return out, perr.FromPostgresf(err, "load issue %d", id)
}

func (r *queries) UpsertAnnotation(ctx context.Context, a domain.Annotation) error {
	var difficulty any
	if a.Difficulty > 0 {
		difficulty = a.Difficulty
	}
	_, err := r.q.Exec(ctx, `
INSERT INTO annotations (entity_type, entity_id, summary, intro, difficulty, first_steps, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, now())
ON CONFLICT (entity_type, entity_id) DO UPDATE SET
    summary     = EXCLUDED.summary,
    intro       = EXCLUDED.intro,
    difficulty  = EXCLUDED.difficulty,
    first_steps = EXCLUDED.first_steps,
    updated_at  = now()`,
		string(a.EntityType), a.EntityID, a.Summary, a.Intro, difficulty, a.FirstSteps)
	return perr.FromPostgresf(err, "upsert annotation %s:%d", a.EntityType, a.EntityID)
}

func (r *queries) GetAnnotation(ctx context.Context, kind work.Kind, id int64) (domain.Annotation, error) {
	out, err := store.One(ctx, r.q, func(row store.Row) (domain.Annotation, error) {
		var (
			a          domain.Annotation
			entity     string
			difficulty *int16
		)
		err := row.Scan(&entity, &a.EntityID, &a.Summary, &a.Intro, &difficulty, &a.FirstSteps, &a.UpdatedAt)
		a.EntityType = work.Kind(entity)
		if difficulty != nil {
			a.Difficulty = int(*difficulty)
		}
		return a, err
	}, `
SELECT entity_type, entity_id, summary, intro, difficulty, first_steps, updated_at
FROM annotations WHERE entity_type = $1 AND entity_id = $2`, string(kind), id)
	if err == perr.ErrNotFound {
		return out, perr.NotFoundf("annotation %s:%d", kind, id)
	}
	return out, perr.FromPostgresf(err, "get annotation %s:%d", kind, id)
}
