//go:build integration_pg

package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"contribot/internal/core/work"
	"contribot/internal/platform/store/pgtest"
	kit "contribot/internal/platform/testkit"
	"contribot/internal/services/annotate/domain"
)

func TestPGQueueLifecycle(t *testing.T) {
	db := pgtest.Start(t)
	ctx := context.Background()
	q := NewPG(db, 2, time.Minute)

	kit.NoErr(t, q.Send(ctx, work.Item{Kind: work.KindRepo, EntityID: 1, Priority: work.PriorityChanged}))
	kit.NoErr(t, q.Send(ctx, work.Item{Kind: work.KindIssue, EntityID: 2, Priority: work.PriorityNew}))
	if err := q.Send(ctx, work.Item{Kind: "pr", EntityID: 3}); err == nil {
		t.Fatal("invalid item accepted")
	}

	items, err := q.SelectPending(ctx, 5)
	kit.NoErr(t, err)
	kit.MustEqual(t, len(items), 2, "pending")
	kit.MustEqual(t, items[0].Kind, work.KindIssue, "higher priority first")

	kit.NoErr(t, q.MarkProcessing(ctx, items[0]))
	if err := q.MarkProcessing(ctx, items[0]); !errors.Is(err, domain.ErrClaimed) {
		t.Fatalf("second claim = %v, want ErrClaimed", err)
	}
	kit.NoErr(t, q.MarkCompleted(ctx, items[0]))

	kit.NoErr(t, q.MarkProcessing(ctx, items[1]))
	kit.NoErr(t, q.MarkFailed(ctx, items[1], "model timeout"))
	n, err := q.CountPending(ctx)
	kit.NoErr(t, err)
	kit.MustEqual(t, n, 1, "first failure returns to pending")

	kit.NoErr(t, q.MarkProcessing(ctx, items[1]))
	kit.NoErr(t, q.MarkFailed(ctx, items[1], "model timeout"))
	n, err = q.CountPending(ctx)
	kit.NoErr(t, err)
	kit.MustEqual(t, n, 0, "attempts exhausted")
}
