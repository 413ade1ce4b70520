package continuation

import (
	"context"

	"contribot/internal/modkit/repokit"
	perr "contribot/internal/platform/errors"
	"contribot/internal/platform/store"
	"contribot/internal/services/pipeline/domain"
)

// PG keeps cursors in run_continuations and hands each out once
type PG struct{ db repokit.TxRunner }

var _ domain.Continuations = (*PG)(nil)

// NewPG builds the table channel
func NewPG(db repokit.TxRunner) *PG { return &PG{db: db} }

// Send stores c
func (p *PG) Send(ctx context.Context, c domain.Cursor) error {
	_, err := p.db.Exec(ctx,
		`INSERT INTO run_continuations (run_id, source_id, idx, phase, ceiling) VALUES ($1, $2, $3, $4, $5)`,
		c.RunID, c.SourceID, c.Index, string(c.Phase), c.Ceiling)
	return perr.FromPostgresf(err, "store continuation for run %s", c.RunID)
}

// Take deletes and returns the oldest cursor; concurrent takers skip locked rows
func (p *PG) Take(ctx context.Context) (domain.Cursor, bool, error) {
	c, err := store.One(ctx, p.db, func(row store.Row) (domain.Cursor, error) {
		var (
			c     domain.Cursor
			phase string
		)
		err := row.Scan(&c.RunID, &c.SourceID, &c.Index, &phase, &c.Ceiling)
		c.Phase = domain.Phase(phase)
		return c, err
	}, `
		DELETE FROM run_continuations
		WHERE id = (
			SELECT id FROM run_continuations ORDER BY id LIMIT 1 FOR UPDATE SKIP LOCKED
		)
		RETURNING run_id::text, source_id, idx, phase, ceiling`)
	if err == perr.ErrNotFound {
		return domain.Cursor{}, false, nil
	}
	if err != nil {
		return domain.Cursor{}, false, perr.FromPostgres(err, "take continuation")
	}
	return c, true, nil
}
