package stats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jgivc/pkgfetch/internal/common"
	"github.com/jgivc/pkgfetch/internal/entity"
)

const (
	serviceName = "stats"
)

type StatsRepository interface {
	Stats(ctx context.Context) (*entity.Stats, error)
	PackageStatus(ctx context.Context, identity string) (*entity.PackageStatus, error)
}

type statsService struct {
	repo StatsRepository
	log  *slog.Logger
}

func NewStatsService(repo StatsRepository, log *slog.Logger) *statsService {
	return &statsService{
		repo: repo,
		log:  log.With(slog.String("service", serviceName)),
	}
}

func (s *statsService) Stats(ctx context.Context) (*entity.Stats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		s.log.Error("Cannot get stats", slog.Any("error", err))

		return nil, fmt.Errorf("cannot get stats: %w", err)
	}

	return stats, nil
}

func (s *statsService) PackageStatus(ctx context.Context, identity string) (*entity.PackageStatus, error) {
	status, err := s.repo.PackageStatus(ctx, identity)
	if err != nil {
		if !errors.Is(err, common.ErrPackageNotFound) {
			s.log.Error("Cannot get package status", slog.String("package", identity), slog.Any("error", err))
		}

		return nil, fmt.Errorf("cannot get package %s status: %w", identity, err)
	}

	return status, nil
}
