package schema

import (
	"context"
	"strings"
	"testing"

	"contribot/internal/platform/logger"
	"contribot/internal/platform/store"
	kit "contribot/internal/platform/testkit"
)

func TestPostgresMigrationsOrdered(t *testing.T) {
	t.Parallel()
	migs, err := Postgres()
	kit.NoErr(t, err)
	if len(migs) < 3 {
		t.Fatalf("want at least 3 migrations, got %d", len(migs))
	}
	for i := 1; i < len(migs); i++ {
		if migs[i-1].Version >= migs[i].Version {
			t.Fatalf("migrations out of order: %s then %s", migs[i-1].Version, migs[i].Version)
		}
	}
	kit.MustContain(t, migs[0].SQL, "CREATE TABLE IF NOT EXISTS repositories")
}

// ledgerDB remembers which versions were recorded and every statement executed
type ledgerDB struct {
	applied map[string]bool
	execs   []string
}

type tag int64

func (t tag) String() string      { return "" }
func (t tag) RowsAffected() int64 { return int64(t) }

type boolRow struct{ v bool }

func (r boolRow) Scan(dest ...any) error {
	*(dest[0].(*bool)) = r.v
	return nil
}

func (d *ledgerDB) Exec(_ context.Context, sql string, args ...any) (store.CommandTag, error) {
	d.execs = append(d.execs, sql)
	if strings.HasPrefix(sql, "INSERT INTO schema_migrations") {
		d.applied[args[0].(string)] = true
	}
	return tag(1), nil
}

func (d *ledgerDB) Query(context.Context, string, ...any) (store.Rows, error) { return nil, nil }

func (d *ledgerDB) QueryRow(_ context.Context, _ string, args ...any) store.Row {
	return boolRow{v: d.applied[args[0].(string)]}
}

func (d *ledgerDB) Tx(_ context.Context, fn func(store.RowQuerier) error) error { return fn(d) }

func TestApplySkipsRecordedVersions(t *testing.T) {
	t.Parallel()
	db := &ledgerDB{applied: map[string]bool{"0001_catalog": true}}

	got, err := Apply(context.Background(), db, logger.Nop())
	kit.NoErr(t, err)
	for _, v := range got {
		if v == "0001_catalog" {
			t.Fatal("recorded migration re-applied")
		}
	}
	kit.MustEqual(t, len(got) > 0, true, "applied something")

	again, err := Apply(context.Background(), db, logger.Nop())
	kit.NoErr(t, err)
	kit.MustEqual(t, len(again), 0, "second apply")
}
