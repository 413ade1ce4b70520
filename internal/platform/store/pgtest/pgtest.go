//go:build integration_pg

// Package pgtest boots a throwaway postgres with the schema applied, for
// integration tests run with -tags integration_pg
package pgtest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"contribot/internal/platform/logger"
	"contribot/internal/platform/store"
	"contribot/internal/platform/store/schema"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Start runs postgres:16-alpine, applies migrations and returns the TxRunner.
// The container is terminated on test cleanup
func Start(t *testing.T) store.TxRunner {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "postgres",
				"POSTGRES_DB":       "contribot",
			},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("5432/tcp"),
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			).WithDeadline(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := c.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("mapped port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://postgres:postgres@%s:%s/contribot?sslmode=disable", host, port.Port())
	s, err := store.Open(ctx, store.Config{
		AppName: "contribot-test",
		PG:      store.PGConfig{Enabled: true, URL: dsn, MaxConns: 4},
	}, store.WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })

	if _, err := schema.Apply(ctx, s.PG, logger.Nop()); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return s.PG
}
