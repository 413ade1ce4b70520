// Package schema applies the embedded SQL migrations
package schema

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"contribot/internal/platform/logger"
	"contribot/internal/platform/store"
)

//go:embed sql/*.sql
var pgFS embed.FS

//go:embed clickhouse/*.sql
var chFS embed.FS

const ledgerDDL = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version    TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Migration is one embedded file
type Migration struct {
	Version string
	SQL     string
}

// Postgres lists the postgres migrations in apply order
func Postgres() ([]Migration, error) { return load(pgFS, "sql") }

// Clickhouse lists the clickhouse DDL in apply order
func Clickhouse() ([]Migration, error) { return load(chFS, "clickhouse") }

func load(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	out := make([]Migration, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		b, err := fs.ReadFile(fsys, dir+"/"+e.Name())
		if err != nil {
			return nil, err
		}
		out = append(out, Migration{Version: strings.TrimSuffix(e.Name(), ".sql"), SQL: string(b)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Apply runs every postgres migration not yet in schema_migrations, each in its own
// transaction, and returns the versions it applied
func Apply(ctx context.Context, db store.TxRunner, log logger.Logger) ([]string, error) {
	if _, err := db.Exec(ctx, ledgerDDL); err != nil {
		return nil, fmt.Errorf("migrations ledger: %w", err)
	}
	migs, err := Postgres()
	if err != nil {
		return nil, err
	}
	var applied []string
	for _, m := range migs {
		done, err := store.Scalar[bool](ctx, db,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, m.Version)
		if err != nil {
			return applied, err
		}
		if done {
			continue
		}
		err = db.Tx(ctx, func(q store.RowQuerier) error {
			if _, err := q.Exec(ctx, m.SQL); err != nil {
				return err
			}
			_, err := q.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.Version)
			return err
		})
		if err != nil {
			return applied, fmt.Errorf("migration %s: %w", m.Version, err)
		}
		log.Info().Str("version", m.Version).Msg("migration applied")
		applied = append(applied, m.Version)
	}
	return applied, nil
}

// ApplyClickhouse runs the idempotent clickhouse DDL
func ApplyClickhouse(ctx context.Context, ch store.Clickhouse, log logger.Logger) error {
	migs, err := Clickhouse()
	if err != nil {
		return err
	}
	for _, m := range migs {
		if err := ch.Exec(ctx, m.SQL); err != nil {
			return fmt.Errorf("clickhouse %s: %w", m.Version, err)
		}
		log.Info().Str("version", m.Version).Msg("clickhouse ddl applied")
	}
	return nil
}
