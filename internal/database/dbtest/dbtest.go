// Package dbtest starts a throwaway PostgreSQL for integration tests.
package dbtest

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/abduss/filedrive/internal/database"
)

// Postgres holds a migrated database started for one test.
type Postgres struct {
	Pool         *pgxpool.Pool
	DSN          string
	MigrationURL string
}

// Start skips the test unless TEST_INTEGRATION is set, then runs postgres in a
// container and applies all migrations.
func Start(t *testing.T) *Postgres {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION not set")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("filedrive_test"),
		postgres.WithUsername("filedrive"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("postgres connection string: %v", err)
	}
	migrationURL := "pgx5://" + strings.TrimPrefix(dsn, "postgres://")

	if err := database.Migrate(migrationURL, zap.NewNop()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	pool, err := database.Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	return &Postgres{Pool: pool, DSN: dsn, MigrationURL: migrationURL}
}
