// Package repo persists pipeline runs, their steps and folded totals
package repo

import (
	"context"
	"encoding/json"
	"time"

	"contribot/internal/modkit/repokit"
	perr "contribot/internal/platform/errors"
	"contribot/internal/platform/store"
	"contribot/internal/services/pipeline/domain"
)

// Repo is the run bookkeeping surface
type Repo interface {
	CreateRun(ctx context.Context, r domain.Run) error
	// ReopenRun flips a paused run back to running and clears its cursor
	ReopenRun(ctx context.Context, id string, trigger domain.Trigger) (domain.Run, error)
	SetState(ctx context.Context, id string, state domain.State) error
	FinishRun(ctx context.Context, id string, state domain.State, status domain.Status, reason string, cursor *domain.Cursor) error
	GetRun(ctx context.Context, id string) (domain.Run, error)

	StepStats(ctx context.Context, runID, key string) (domain.Totals, bool, error)
	// InsertStep records a completed step once; false when it was already there
	InsertStep(ctx context.Context, runID, key string, stats domain.Totals) (bool, error)
	// AddTotals folds delta into the run totals under a row lock
	AddTotals(ctx context.Context, runID string, delta domain.Totals) error
}

// PG binds Repo to postgres
type PG struct{}

// NewPG returns the postgres binder
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind satisfies repokit.Binder
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

type queries struct{ q repokit.Queryer }

const runCols = `id::text, trigger, depth, scope, state, status, COALESCE(reason, ''), cursor, totals, started_at, finished_at`

func scanRun(row store.Row) (domain.Run, error) {
	var (
		r              domain.Run
		cursor, totals []byte
	)
	if err := row.Scan(&r.ID, &r.Trigger, &r.Depth, &r.Scope, &r.State, &r.Status, &r.Reason,
		&cursor, &totals, &r.StartedAt, &r.FinishedAt); err != nil {
		return r, err
	}
	if len(cursor) > 0 && string(cursor) != "null" {
		r.Cursor = &domain.Cursor{}
		if err := json.Unmarshal(cursor, r.Cursor); err != nil {
			return r, err
		}
	}
	if len(totals) > 0 {
		if err := json.Unmarshal(totals, &r.Totals); err != nil {
			return r, err
		}
	}
	return r, nil
}

func (r *queries) CreateRun(ctx context.Context, run domain.Run) error {
	totals, err := json.Marshal(run.Totals)
	if err != nil {
		return err
	}
	started := run.StartedAt
	if started.IsZero() {
		started = time.Now().UTC()
	}
	_, err = r.q.Exec(ctx, `
		INSERT INTO pipeline_runs (id, trigger, depth, scope, state, status, totals, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, string(run.Trigger), run.Depth, run.Scope, string(run.State), string(run.Status), totals, started)
	return perr.FromPostgresf(err, "create run %s", run.ID)
}

func (r *queries) ReopenRun(ctx context.Context, id string, trigger domain.Trigger) (domain.Run, error) {
	out, err := store.One(ctx, r.q, scanRun, `
		UPDATE pipeline_runs
		SET status = 'running', trigger = $2, cursor = NULL, reason = NULL, finished_at = NULL
		WHERE id = $1 AND status = 'paused'
		RETURNING `+runCols, id, string(trigger))
	if err == perr.ErrNotFound {
		return out, perr.NotFoundf("paused run %s", id)
	}
	return out, perr.FromPostgresf(err, "reopen run %s", id)
}

func (r *queries) SetState(ctx context.Context, id string, state domain.State) error {
	err := store.ExecOne(ctx, r.q, `UPDATE pipeline_runs SET state = $2 WHERE id = $1`, id, string(state))
	return perr.FromPostgresf(err, "set state of run %s", id)
}

func (r *queries) FinishRun(ctx context.Context, id string, state domain.State, status domain.Status, reason string, cursor *domain.Cursor) error {
	var cur any
	if cursor != nil {
		b, err := json.Marshal(cursor)
		if err != nil {
			return err
		}
		cur = b
	}
	err := store.ExecOne(ctx, r.q, `
		UPDATE pipeline_runs
		SET state = $2, status = $3, reason = NULLIF($4, ''), cursor = $5, finished_at = now()
		WHERE id = $1`, id, string(state), string(status), reason, cur)
	return perr.FromPostgresf(err, "finish run %s", id)
}

func (r *queries) GetRun(ctx context.Context, id string) (domain.Run, error) {
	out, err := store.One(ctx, r.q, scanRun, `SELECT `+runCols+` FROM pipeline_runs WHERE id = $1`, id)
	if err == perr.ErrNotFound {
		return out, perr.NotFoundf("run %s", id)
	}
	return out, perr.FromPostgresf(err, "get run %s", id)
}

func (r *queries) StepStats(ctx context.Context, runID, key string) (domain.Totals, bool, error) {
	raw, err := store.One(ctx, r.q, func(row store.Row) ([]byte, error) {
		var b []byte
		err := row.Scan(&b)
		return b, err
	}, `SELECT stats FROM pipeline_steps WHERE run_id = $1 AND step_key = $2`, runID, key)
	if err == perr.ErrNotFound {
		return domain.Totals{}, false, nil
	}
	if err != nil {
		return domain.Totals{}, false, perr.FromPostgresf(err, "step %s of run %s", key, runID)
	}
	var st domain.Totals
	if err := json.Unmarshal(raw, &st); err != nil {
		return st, false, perr.Wrapf(err, perr.ErrorCodeJSON, "decode step %s", key)
	}
	return st, true, nil
}

func (r *queries) InsertStep(ctx context.Context, runID, key string, stats domain.Totals) (bool, error) {
	b, err := json.Marshal(stats)
	if err != nil {
		return false, err
	}
	tag, err := r.q.Exec(ctx, `
		INSERT INTO pipeline_steps (run_id, step_key, stats) VALUES ($1, $2, $3)
		ON CONFLICT (run_id, step_key) DO NOTHING`, runID, key, b)
	if err != nil {
		return false, perr.FromPostgresf(err, "record step %s of run %s", key, runID)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *queries) AddTotals(ctx context.Context, runID string, delta domain.Totals) error {
	raw, err := store.Scalar[[]byte](ctx, r.q, `SELECT totals FROM pipeline_runs WHERE id = $1 FOR UPDATE`, runID)
	if err != nil {
		return perr.FromPostgresf(err, "lock totals of run %s", runID)
	}
	var t domain.Totals
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &t); err != nil {
			return perr.Wrapf(err, perr.ErrorCodeJSON, "decode totals of run %s", runID)
		}
	}
	t.Add(delta)
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	_, err = r.q.Exec(ctx, `UPDATE pipeline_runs SET totals = $2 WHERE id = $1`, runID, b)
	return perr.FromPostgresf(err, "update totals of run %s", runID)
}
