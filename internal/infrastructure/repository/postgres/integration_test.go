//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testcontainers "github.com/testcontainers/testcontainers-go"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"sensor-proxy/internal/domain"
	"sensor-proxy/internal/infrastructure/repository/postgres"
)

func TestRepositoryIntegration(t *testing.T) {
	ctx := context.Background()

	container, err := postgrescontainer.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgrescontainer.WithDatabase("sensors"),
		postgrescontainer.WithUsername("postgres"),
		postgrescontainer.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, container.Terminate(context.Background()))
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := postgres.Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	t.Log("step 1: migrations are idempotent")
	require.NoError(t, postgres.ApplyMigrations(ctx, db, nil))
	require.NoError(t, postgres.ApplyMigrations(ctx, db, nil))

	repo, err := postgres.New(postgres.Config{DB: db, BatchSize: 2, BatchTimeout: 20 * time.Millisecond})
	require.NoError(t, err)

	t.Log("step 2: write readings through the batch writer")
	base := time.Now().UTC().Truncate(time.Millisecond)
	value := 3.5
	require.NoError(t, repo.Add(ctx, domain.SensorRecord{Sensor: "dev.temp", Value: "3.5", Numeric: &value, Status: domain.StatusNominal, Timestamp: base}))
	require.NoError(t, repo.Add(ctx, domain.SensorRecord{Sensor: "dev.temp", Value: "4", Status: domain.StatusWarn, Timestamp: base.Add(time.Second)}))
	require.NoError(t, repo.Close())

	t.Log("step 3: read them back")
	latest, err := repo.Latest(ctx, "dev.temp")
	require.NoError(t, err)
	assert.Equal(t, "4", latest.Value)
	assert.Equal(t, domain.StatusWarn, latest.Status)
	assert.Nil(t, latest.Numeric)

	history, err := repo.History(ctx, "dev.temp", base.Add(-time.Second), base.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.NotNil(t, history[0].Numeric)
	assert.Equal(t, 3.5, *history[0].Numeric)
	assert.True(t, base.Equal(history[0].Timestamp))

	_, err = repo.Latest(ctx, "dev.missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
