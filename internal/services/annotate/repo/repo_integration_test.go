//go:build integration_pg

package repo

import (
	"context"
	"testing"

	"contribot/internal/core/work"
	"contribot/internal/modkit/repokit"
	perr "contribot/internal/platform/errors"
	"contribot/internal/platform/store"
	"contribot/internal/platform/store/pgtest"
	kit "contribot/internal/platform/testkit"
	"contribot/internal/services/annotate/domain"
)

func TestAnnotationUpsertOverwrites(t *testing.T) {
	db := pgtest.Start(t)
	ctx := context.Background()
	r := repokit.MustBind(NewPG(), db)

	id, err := store.Scalar[int64](ctx, db, `
INSERT INTO repositories (owner, name, url, languages_ordered, label, source_id, metadata_hash)
VALUES ('foo', 'bar', 'u', ARRAY['Go'], 'l', 's', 'h') RETURNING id`)
	kit.NoErr(t, err)

	tgt, err := r.LoadRepo(ctx, id)
	kit.NoErr(t, err)
	kit.MustEqual(t, tgt.Languages[0], "Go", "languages")

	_, err = r.LoadRepo(ctx, id+100)
	if !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("missing repo = %v", err)
	}

	first, second := "first", "second"
	kit.NoErr(t, r.UpsertAnnotation(ctx, domain.Annotation{EntityType: work.KindRepo, EntityID: id, Summary: &first}))
	kit.NoErr(t, r.UpsertAnnotation(ctx, domain.Annotation{EntityType: work.KindRepo, EntityID: id, Summary: &second}))

	got, err := r.GetAnnotation(ctx, work.KindRepo, id)
	kit.NoErr(t, err)
	kit.MustEqual(t, *got.Summary, "second", "overwritten")
	n, err := store.Scalar[int64](ctx, db, `SELECT count(*) FROM annotations`)
	kit.NoErr(t, err)
	kit.MustEqual(t, n, int64(1), "one row per entity")
}
