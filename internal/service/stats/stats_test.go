package stats

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/jgivc/pkgfetch/internal/common"
	"github.com/jgivc/pkgfetch/internal/entity"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	stats    *entity.Stats
	packages map[string]*entity.PackageStatus
	err      error
}

func (r *fakeRepo) Stats(ctx context.Context) (*entity.Stats, error) {
	return r.stats, r.err
}

func (r *fakeRepo) PackageStatus(ctx context.Context, identity string) (*entity.PackageStatus, error) {
	if r.err != nil {
		return nil, r.err
	}

	status, exists := r.packages[identity]
	if !exists {
		return nil, common.ErrPackageNotFound
	}

	return status, nil
}

func TestStatsService(t *testing.T) {
	repo := &fakeRepo{
		stats:    &entity.Stats{Fetched: 3, Batches: 1},
		packages: map[string]*entity.PackageStatus{"a": {Identity: "a", Outcome: "reused"}},
	}
	srv := NewStatsService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))

	stats, err := srv.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(3), stats.Fetched)

	status, err := srv.PackageStatus(context.Background(), "a")
	require.NoError(t, err)
	require.Equal(t, "reused", status.Outcome)

	_, err = srv.PackageStatus(context.Background(), "b")
	require.ErrorIs(t, err, common.ErrPackageNotFound)
}

func TestStatsServiceRepoError(t *testing.T) {
	boom := errors.New("boom")
	srv := NewStatsService(&fakeRepo{err: boom}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := srv.Stats(context.Background())
	require.ErrorIs(t, err, boom)

	_, err = srv.PackageStatus(context.Background(), "a")
	require.ErrorIs(t, err, boom)
}
