package stats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jgivc/pkgfetch/internal/common"
	"github.com/jgivc/pkgfetch/internal/entity"
	"github.com/redis/go-redis/v9"
)

const (
	KeyCounters  = "oc" // HASH. outcome counters: reused, fetched, failed, batches
	KeyLastBatch = "lb" // HASH. id, status, failed, started, finished
	KeyPackage   = "pk" // HASH. pk:identity outcome, source, unverified, batch, updated

	KeySeparator = ":"

	fieldBatches    = "batches"
	fieldID         = "id"
	fieldStatus     = "status"
	fieldFailed     = "failed"
	fieldStarted    = "started"
	fieldFinished   = "finished"
	fieldOutcome    = "outcome"
	fieldSource     = "source"
	fieldUnverified = "unverified"
	fieldBatch      = "batch"
	fieldUpdated    = "updated"
)

type statsRepository struct {
	cl  *redis.Client
	log *slog.Logger
}

func NewStatsRepository(cl *redis.Client, log *slog.Logger) *statsRepository {
	return &statsRepository{
		cl:  cl,
		log: log.With(slog.String("item", "StatsRepository")),
	}
}

// Record stores the outcome of every package of res and updates the counters in one transaction.
func (r *statsRepository) Record(ctx context.Context, res *entity.BatchResult) error {
	pipe := r.cl.TxPipeline()

	pipe.HIncrBy(ctx, KeyCounters, fieldBatches, 1)
	for _, pr := range res.Results {
		pipe.HIncrBy(ctx, KeyCounters, pr.Outcome.String(), 1)
		pipe.HSet(ctx, getKey(KeyPackage, pr.Identity),
			fieldOutcome, pr.Outcome.String(),
			fieldSource, pr.Source,
			fieldUnverified, strconv.FormatBool(pr.Unverified),
			fieldBatch, res.ID,
			fieldUpdated, res.Finished.Format(time.RFC3339),
		)
	}

	pipe.Del(ctx, KeyLastBatch)
	pipe.HSet(ctx, KeyLastBatch,
		fieldID, res.ID,
		fieldStatus, res.Status.String(),
		fieldFailed, res.Failed,
		fieldStarted, res.Started.Format(time.RFC3339),
		fieldFinished, res.Finished.Format(time.RFC3339),
	)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cannot record batch %s: %w", res.ID, err)
	}

	r.log.Debug("Batch recorded", slog.String("batch", res.ID), slog.Int("packages", len(res.Results)))

	return nil
}

func (r *statsRepository) Stats(ctx context.Context) (*entity.Stats, error) {
	pipe := r.cl.Pipeline()
	countersCmd := pipe.HGetAll(ctx, KeyCounters)
	lastCmd := pipe.HGetAll(ctx, KeyLastBatch)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("cannot get stats: %w", err)
	}

	counters := countersCmd.Val()
	last := lastCmd.Val()

	return &entity.Stats{
		Reused:     r.counter(counters, entity.OutcomeReused.String()),
		Fetched:    r.counter(counters, entity.OutcomeFetched.String()),
		Failed:     r.counter(counters, entity.OutcomeFailed.String()),
		Batches:    r.counter(counters, fieldBatches),
		LastBatch:  last[fieldID],
		LastStatus: last[fieldStatus],
	}, nil
}

func (r *statsRepository) PackageStatus(ctx context.Context, identity string) (*entity.PackageStatus, error) {
	fields, err := r.cl.HGetAll(ctx, getKey(KeyPackage, identity)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, common.ErrPackageNotFound
		}

		return nil, fmt.Errorf("cannot get package %s status: %w", identity, err)
	}

	if len(fields) < 1 {
		return nil, common.ErrPackageNotFound
	}

	status := &entity.PackageStatus{
		Identity:   identity,
		Outcome:    fields[fieldOutcome],
		Source:     fields[fieldSource],
		Unverified: fields[fieldUnverified] == "true",
		Batch:      fields[fieldBatch],
	}

	if updated, err := time.Parse(time.RFC3339, fields[fieldUpdated]); err == nil {
		status.UpdatedAt = updated
	}

	return status, nil
}

func (r *statsRepository) counter(counters map[string]string, field string) int64 {
	val, exists := counters[field]
	if !exists {
		return 0
	}

	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		r.log.Error("Cannot convert counter value", slog.String("field", field), slog.Any("error", err))

		return 0
	}

	return n
}

func getKey(keys ...string) string {
	return strings.Join(keys, KeySeparator)
}
