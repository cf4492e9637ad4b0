//go:build integration

package migrations

import (
	"context"
	"database/sql"
	"io"
	"testing"
	"time"

	"eventpilot/internal/logger"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestMigrationsAgainstPostgres(t *testing.T) {
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("eventpilot"),
		postgres.WithUsername("eventpilot"),
		postgres.WithPassword("eventpilot"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	defer func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}()

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)

	runner := NewRunner(db, logger.NewWithWriter(io.Discard, "error"))
	defer runner.Close()

	require.NoError(t, runner.RunMigrations())
	version, err := runner.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(4), version)

	var count int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM information_schema.tables WHERE table_name = 'valet_records'`).Scan(&count))
	assert.Equal(t, 1, count)

	require.NoError(t, runner.MigrateTo(2))
	version, err = runner.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)

	require.NoError(t, runner.MigrateDown())
	version, err = runner.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
}
