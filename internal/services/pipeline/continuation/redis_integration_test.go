//go:build integration_redis

package continuation

import (
	"context"
	"testing"
	"time"

	kit "contribot/internal/platform/testkit"
	"contribot/internal/services/pipeline/domain"

	"github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestRedisListIsFIFO(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })
	addr, err := c.Endpoint(ctx, "")
	kit.NoErr(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })

	ch := NewRedis(rdb, "")
	_, ok, err := ch.Take(ctx)
	kit.NoErr(t, err)
	kit.MustEqual(t, ok, false, "empty")

	a := domain.Cursor{RunID: "a", Phase: domain.PhaseRepos, SourceID: "s", Index: 1, Ceiling: "requests"}
	kit.NoErr(t, ch.Send(ctx, a))
	kit.NoErr(t, ch.Send(ctx, domain.Cursor{RunID: "b", Phase: domain.PhaseIssues}))

	got, ok, err := ch.Take(ctx)
	kit.NoErr(t, err)
	kit.MustEqual(t, ok, true, "first")
	kit.MustEqual(t, got, a, "round trip")
	got, _, err = ch.Take(ctx)
	kit.NoErr(t, err)
	kit.MustEqual(t, got.RunID, "b", "second")
}
