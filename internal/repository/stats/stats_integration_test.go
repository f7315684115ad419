//go:build integration

package stats

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jgivc/pkgfetch/internal/common"
	"github.com/jgivc/pkgfetch/internal/entity"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	cl := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() {
		cl.Close()
	})

	require.NoError(t, cl.Ping(ctx).Err())

	return cl
}

func TestStatsRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	repo := NewStatsRepository(startRedis(t), slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := repo.PackageStatus(ctx, "a")
	require.ErrorIs(t, err, common.ErrPackageNotFound)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, &entity.Stats{}, stats)

	started := time.Now().Add(-time.Minute).Truncate(time.Second)
	finished := time.Now().Truncate(time.Second)

	require.NoError(t, repo.Record(ctx, &entity.BatchResult{
		ID:     "batch-1",
		Status: entity.BatchSuccess,
		Results: []entity.PackageResult{
			{Identity: "a", Outcome: entity.OutcomeReused, Source: "/var/cache/pkg"},
			{Identity: "b", Outcome: entity.OutcomeFetched, Source: "http://m/b.pkg", Unverified: true},
		},
		Started:  started,
		Finished: finished,
	}))

	require.NoError(t, repo.Record(ctx, &entity.BatchResult{
		ID:       "batch-2",
		Status:   entity.BatchFailure,
		Results:  []entity.PackageResult{{Identity: "a", Outcome: entity.OutcomeFailed}},
		Failed:   "a",
		Started:  started,
		Finished: finished,
	}))

	stats, err = repo.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, &entity.Stats{
		Reused:     1,
		Fetched:    1,
		Failed:     1,
		Batches:    2,
		LastBatch:  "batch-2",
		LastStatus: "failure",
	}, stats)

	status, err := repo.PackageStatus(ctx, "b")
	require.NoError(t, err)
	require.Equal(t, "fetched", status.Outcome)
	require.Equal(t, "http://m/b.pkg", status.Source)
	require.True(t, status.Unverified)
	require.Equal(t, "batch-1", status.Batch)
	require.True(t, finished.Equal(status.UpdatedAt))

	status, err = repo.PackageStatus(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, "failed", status.Outcome)
	require.Equal(t, "batch-2", status.Batch)
}
