// Package queue holds the annotation queue backends
package queue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"contribot/internal/core/work"
	"contribot/internal/modkit/repokit"
	perr "contribot/internal/platform/errors"
	"contribot/internal/platform/store"
	pstrings "contribot/internal/platform/strings"
	"contribot/internal/services/annotate/domain"
)

const (
	// DefaultMaxAttempts is how often an item is retried before it parks as failed
	DefaultMaxAttempts = 3
	// DefaultLease is how long a processing row stays claimed before it is up for grabs again
	DefaultLease = 10 * time.Minute
)

// PG is a status-column queue on annotation_queue
type PG struct {
	db          repokit.TxRunner
	maxAttempts int
	lease       time.Duration
}

var _ domain.Backend = (*PG)(nil)

// NewPG builds the postgres queue
func NewPG(db repokit.TxRunner, maxAttempts int, lease time.Duration) *PG {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if lease <= 0 {
		lease = DefaultLease
	}
	return &PG{db: db, maxAttempts: maxAttempts, lease: lease}
}

// claimable matches pending rows and processing rows whose lease ran out
const claimable = `(status = 'pending' OR (status = 'processing' AND updated_at < now() - make_interval(secs => $%d)))`

// Send inserts a pending row
func (p *PG) Send(ctx context.Context, it work.Item) error {
	if !it.Valid() {
		return perr.InvalidArgf("invalid work item %s", it)
	}
	_, err := p.db.Exec(ctx,
		`INSERT INTO annotation_queue (kind, entity_id, priority) VALUES ($1, $2, $3)`,
		string(it.Kind), it.EntityID, it.Priority)
	return perr.FromPostgresf(err, "enqueue %s", it)
}

// SelectPending lists claimable rows, higher priority first
func (p *PG) SelectPending(ctx context.Context, limit int) ([]work.Item, error) {
	if limit <= 0 {
		limit = domain.DefaultBatchSize
	}
	out, err := store.Many(ctx, p.db, scanItem, `
SELECT id, kind, entity_id, priority, attempts
FROM annotation_queue
WHERE `+fmt.Sprintf(claimable, 2)+`
ORDER BY priority DESC, id
LIMIT $1`, limit, p.lease.Seconds())
	return out, perr.FromPostgres(err, "select pending annotation work")
}

// MarkProcessing claims the row; ErrClaimed when another worker got there first
func (p *PG) MarkProcessing(ctx context.Context, it work.Item) error {
	id, err := rowID(it)
	if err != nil {
		return err
	}
	tag, err := p.db.Exec(ctx, `
UPDATE annotation_queue SET status = 'processing', updated_at = now()
WHERE id = $1 AND `+fmt.Sprintf(claimable, 2), id, p.lease.Seconds())
	if err != nil {
		return perr.FromPostgresf(err, "claim %s", it)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrClaimed
	}
	return nil
}

// MarkCompleted finishes the row
func (p *PG) MarkCompleted(ctx context.Context, it work.Item) error {
	id, err := rowID(it)
	if err != nil {
		return err
	}
	_, err = p.db.Exec(ctx, `
UPDATE annotation_queue SET status = 'completed', last_error = NULL, updated_at = now()
WHERE id = $1`, id)
	return perr.FromPostgresf(err, "complete %s", it)
}

// MarkFailed counts the attempt and returns the row to pending until attempts run out
func (p *PG) MarkFailed(ctx context.Context, it work.Item, reason string) error {
	id, err := rowID(it)
	if err != nil {
		return err
	}
	_, err = p.db.Exec(ctx, `
UPDATE annotation_queue SET
    attempts   = attempts + 1,
    last_error = $2,
    status     = CASE WHEN attempts + 1 >= $3 THEN 'failed' ELSE 'pending' END,
    updated_at = now()
WHERE id = $1`, id, pstrings.Truncate(reason, 2000), p.maxAttempts)
	return perr.FromPostgresf(err, "fail %s", it)
}

// CountPending counts rows waiting for a worker
func (p *PG) CountPending(ctx context.Context) (int, error) {
	n, err := store.Scalar[int64](ctx, p.db, `SELECT count(*) FROM annotation_queue WHERE status = 'pending'`)
	return int(n), perr.FromPostgres(err, "count pending annotation work")
}

func scanItem(row store.Row) (work.Item, error) {
	var (
		it   work.Item
		id   int64
		kind string
	)
	err := row.Scan(&id, &kind, &it.EntityID, &it.Priority, &it.Attempts)
	it.ID = strconv.FormatInt(id, 10)
	it.Kind = work.Kind(kind)
	return it, err
}

func rowID(it work.Item) (int64, error) {
	id, err := strconv.ParseInt(it.ID, 10, 64)
	if err != nil {
		return 0, perr.InvalidArgf("work item %s has no queue row id", it)
	}
	return id, nil
}
