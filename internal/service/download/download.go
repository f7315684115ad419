package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jgivc/pkgfetch/internal/common"
	"github.com/jgivc/pkgfetch/internal/entity"
	"github.com/jgivc/pkgfetch/internal/service/event"
	"github.com/jgivc/pkgfetch/internal/storage/replica"
	"github.com/jgivc/pkgfetch/internal/util"
	"github.com/spf13/afero"
)

const (
	PrimaryDirMode = 0o755

	recordTimeout = 5 * time.Second
)

type CacheProbe interface {
	Validate(pkg *entity.PackageDescriptor, path string) (entity.Validity, error)
	Locate(pkg *entity.PackageDescriptor, primary string, secondaries []string) *entity.CacheHit
}

type MirrorFetcher interface {
	Fetch(ctx context.Context, url, dst string, expectedSize int64, onSample func(entity.Sample)) (int64, error)
}

type OutcomeRecorder interface {
	Record(ctx context.Context, res *entity.BatchResult) error
}

// Coordinator drives one batch at a time over a pending set.
type Coordinator struct {
	running  atomic.Bool
	fs       afero.Fs
	probe    CacheProbe
	fetcher  MirrorFetcher
	recorder OutcomeRecorder
	sink     chan<- entity.Event
	log      *slog.Logger
}

// NewCoordinator creates a coordinator. recorder and sink may be nil.
func NewCoordinator(fs afero.Fs, probe CacheProbe, fetcher MirrorFetcher, recorder OutcomeRecorder,
	sink chan<- entity.Event, log *slog.Logger) *Coordinator {
	return &Coordinator{
		fs:       fs,
		probe:    probe,
		fetcher:  fetcher,
		recorder: recorder,
		sink:     sink,
		log:      log.With(slog.String("item", "DownloadCoordinator")),
	}
}

// batch is the state of one Run.
type batch struct {
	result   *entity.BatchResult
	events   *event.Emitter
	replicas *replica.Group
	caches   entity.Caches
	total    int
	done     int
	log      *slog.Logger
}

/*
Run places every pending package into caches.Primary.

Packages are reused from the primary cache, copied from a secondary cache or
downloaded from their mirrors, in that order of preference. The first package
that cannot be obtained stops the batch; the returned error is a
*common.PackageError and the remaining packages stay in pending.

Every replication job started during the run has finished when Run returns.
*/
func (c *Coordinator) Run(ctx context.Context, pending *entity.PendingSet, caches entity.Caches) (*entity.BatchResult, error) {
	if !c.running.CompareAndSwap(false, true) {
		c.log.Warn("Batch has already started")

		return nil, common.ErrBatchAlreadyRunning
	}
	defer c.running.Store(false)

	if err := c.fs.MkdirAll(caches.Primary, PrimaryDirMode); err != nil {
		c.log.Error("Cannot create primary cache", slog.String("path", caches.Primary), slog.Any("error", err))

		return nil, fmt.Errorf("%w: cannot create primary cache %s: %w", common.ErrFilesystem, caches.Primary, err)
	}

	id := uuid.NewString()
	b := &batch{
		result: &entity.BatchResult{
			ID:      id,
			Status:  entity.BatchSuccess,
			Started: time.Now(),
		},
		events:   event.NewEmitter(c.sink, c.log),
		replicas: replica.NewGroup(c.fs, c.log),
		caches:   caches,
		total:    pending.Len(),
		log:      c.log.With(slog.String("batch", id)),
	}

	b.log.Info("Start batch", slog.String("primary", caches.Primary), slog.Int("packages", b.total))

	err := c.run(ctx, b, pending)

	b.replicas.Wait()
	b.events.Text(entity.EventProgressVisible, entity.ProgressHide)

	b.result.Finished = time.Now()
	if err != nil {
		b.result.Status = entity.BatchFailure
	}

	c.record(ctx, b)

	b.log.Info("Batch finished",
		slog.String("status", b.result.Status.String()),
		slog.Int("reused", b.result.Count(entity.OutcomeReused)),
		slog.Int("fetched", b.result.Count(entity.OutcomeFetched)),
		slog.Duration("elapsed", b.result.Finished.Sub(b.result.Started)))

	return b.result, err
}

func (c *Coordinator) run(ctx context.Context, b *batch, pending *entity.PendingSet) error {
	b.events.Text(entity.EventProgressVisible, entity.ProgressShow)
	b.events.Percent(entity.EventBatchPercent, 0)

	for {
		pkg, ok := pending.Pop()
		if !ok {
			return nil
		}

		b.events.Percent(entity.EventFilePercent, 0)
		b.events.Text(entity.EventStatusText,
			fmt.Sprintf("Downloading %s %s (%d/%d)...", pkg.Identity, pkg.Version, b.done+1, b.total))

		res, err := c.process(ctx, b, pkg)
		if err != nil {
			b.result.Results = append(b.result.Results, entity.PackageResult{
				Identity: pkg.Identity,
				Outcome:  entity.OutcomeFailed,
			})
			b.result.Failed = pkg.Identity

			if errors.Is(err, common.ErrMirrorsExhausted) {
				msg := fmt.Sprintf("Cannot download %s, even after trying all available mirrors", pkg.Filename)
				b.events.Text(entity.EventStatusText, msg)
				b.log.Error(msg, slog.String("package", pkg.Identity))
			} else {
				b.log.Error("Batch interrupted", slog.String("package", pkg.Identity), slog.Any("error", err))
			}

			return &common.PackageError{Identity: pkg.Identity, Err: err}
		}

		b.result.Results = append(b.result.Results, res)
		b.done++

		b.events.Text(entity.EventSpeedText, "")
		b.events.Percent(entity.EventBatchPercent, util.Round2(float64(b.done)/float64(b.total)))
	}
}

func (c *Coordinator) process(ctx context.Context, b *batch, pkg *entity.PackageDescriptor) (entity.PackageResult, error) {
	if err := ctx.Err(); err != nil {
		return entity.PackageResult{}, err
	}

	if hit := c.probe.Locate(pkg, b.caches.Primary, b.caches.Secondary); hit != nil {
		unverified := hit.Validity == entity.Unverifiable
		if unverified {
			c.unverifiable(b, pkg)
		}

		b.log.Debug("Package found in cache", slog.String("package", pkg.Identity), slog.String("dir", hit.Dir))

		return entity.PackageResult{
			Identity:   pkg.Identity,
			Outcome:    entity.OutcomeReused,
			Source:     hit.Dir,
			Unverified: unverified,
		}, nil
	}

	return c.download(ctx, b, pkg)
}

// download tries every mirror of pkg once, in order.
func (c *Coordinator) download(ctx context.Context, b *batch, pkg *entity.PackageDescriptor) (entity.PackageResult, error) {
	dst := filepath.Join(b.caches.Primary, pkg.Filename)
	log := b.log.With(slog.String("package", pkg.Identity))

	onSample := func(s entity.Sample) {
		b.events.Percent(entity.EventFilePercent, s.Percent)
		b.events.Text(entity.EventSpeedText, util.FormatSpeed(s.Percent, s.BytesPerSecond))
	}

	for _, url := range pkg.URLs {
		if url == "" {
			log.Debug("Package has an empty url for this mirror", slog.String("version", pkg.Version))

			continue
		}

		if _, err := c.fetcher.Fetch(ctx, url, dst, pkg.Size, onSample); err != nil {
			if ctx.Err() != nil {
				return entity.PackageResult{}, ctx.Err()
			}

			log.Debug("Cannot download, will try another mirror", slog.String("url", url), slog.Any("error", err))

			continue
		}

		validity, err := c.probe.Validate(pkg, dst)
		if err != nil {
			log.Debug("Cannot validate downloaded file", slog.String("url", url), slog.Any("error", err))

			continue
		}

		if !validity.Usable() {
			log.Debug("Hash of downloaded file does not match, will try another mirror",
				slog.String("url", url), slog.Any("error", common.ErrIntegrity))

			if err := c.fs.Remove(dst); err != nil {
				log.Debug("Cannot remove downloaded file", slog.String("path", dst), slog.Any("error", err))
			}

			continue
		}

		unverified := validity == entity.Unverifiable
		if unverified {
			c.unverifiable(b, pkg)
		}

		b.replicas.Go(dst, b.caches.Secondary)

		return entity.PackageResult{
			Identity:   pkg.Identity,
			Outcome:    entity.OutcomeFetched,
			Source:     url,
			Unverified: unverified,
		}, nil
	}

	return entity.PackageResult{}, common.ErrMirrorsExhausted
}

func (c *Coordinator) unverifiable(b *batch, pkg *entity.PackageDescriptor) {
	b.log.Debug("Checksum unavailable for package", slog.String("package", pkg.Identity))
	b.events.Text(entity.EventHashUnverifiable, pkg.Identity)
}

func (c *Coordinator) record(ctx context.Context, b *batch) {
	if c.recorder == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if err := c.recorder.Record(ctx, b.result); err != nil {
		b.log.Warn("Cannot record batch result", slog.Any("error", err))
	}
}
