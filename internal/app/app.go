package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/jgivc/pkgfetch/internal/adapter/hasher"
	"github.com/jgivc/pkgfetch/internal/adapter/manifest"
	"github.com/jgivc/pkgfetch/internal/adapter/mirror"
	"github.com/jgivc/pkgfetch/internal/adapter/progress"
	"github.com/jgivc/pkgfetch/internal/common"
	"github.com/jgivc/pkgfetch/internal/config"
	"github.com/jgivc/pkgfetch/internal/entity"
	httphandler "github.com/jgivc/pkgfetch/internal/handler/http"
	"github.com/jgivc/pkgfetch/internal/repository/stats"
	"github.com/jgivc/pkgfetch/internal/service/download"
	sstats "github.com/jgivc/pkgfetch/internal/service/stats"
	"github.com/jgivc/pkgfetch/internal/storage/cache"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
)

const (
	pingTimeout     = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

var ErrNoLedger = errors.New("redis.url is required to serve stats")

type ManifestLoader interface {
	Load(path string) (*entity.PendingSet, error)
}

type App struct {
	cfg         *config.Config
	fs          afero.Fs
	rdb         *redis.Client
	ledger      download.OutcomeRecorder
	manifest    ManifestLoader
	coordinator *download.Coordinator
	events      chan entity.Event
	progressWG  sync.WaitGroup
	srv         *http.Server
	log         *slog.Logger
}

// Options tune how an App reports progress.
type Options struct {
	// Progress receives the terminal progress bar. nil disables it.
	Progress io.Writer

	// LogOutput defaults to os.Stderr.
	LogOutput io.Writer

	// Fs defaults to the OS filesystem.
	Fs afero.Fs
}

func New(cfg *config.Config, opts Options) (*App, error) {
	if opts.LogOutput == nil {
		opts.LogOutput = os.Stderr
	}

	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}

	log, err := NewLogger(opts.LogOutput, cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:      cfg,
		fs:       opts.Fs,
		manifest: manifest.NewReader(opts.Fs, log),
		log:      log,
	}

	if cfg.Redis.URL != "" {
		if err := a.connectRedis(); err != nil {
			return nil, err
		}
	}

	h, err := hasher.NewHasher(a.fs, cfg.Fetcher.Hash)
	if err != nil {
		a.Close()

		return nil, fmt.Errorf("cannot create hasher: %w", err)
	}

	fetcher := mirror.NewFetcher(a.fs, mirror.Options{
		ConnectTimeout: cfg.Fetcher.ConnectTimeout,
		ReadTimeout:    cfg.Fetcher.ReadTimeout,
		Cooldown:       cfg.Fetcher.Cooldown,
		ChunkSize:      cfg.Fetcher.ChunkSize,
		RateLimit:      cfg.Fetcher.RateLimit,
		UserAgent:      cfg.Fetcher.UserAgent,
	}, log)

	if opts.Progress != nil && cfg.Events.Progress {
		a.events = make(chan entity.Event, cfg.Events.Buffer)

		bar := progress.NewSink(opts.Progress, log)
		a.progressWG.Add(1)
		go func() {
			defer a.progressWG.Done()
			bar.Consume(context.Background(), a.events)
		}()
	}

	var sink chan<- entity.Event
	if a.events != nil {
		sink = a.events
	}

	a.coordinator = download.NewCoordinator(a.fs, cache.NewProbe(a.fs, h, log), fetcher, a.ledger, sink, log)

	return a, nil
}

func NewLogger(w io.Writer, level string) (*slog.Logger, error) {
	lo := &slog.HandlerOptions{}
	switch level {
	case config.LogLevelInfo:
		lo.Level = slog.LevelInfo
	case config.LogLevelWarn:
		lo.Level = slog.LevelWarn
	case config.LogLevelError:
		lo.Level = slog.LevelError
	case config.LogLevelDebug:
		lo.Level = slog.LevelDebug
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}

	return slog.New(slog.NewTextHandler(w, lo)), nil
}

func (a *App) connectRedis() error {
	opt, err := redis.ParseURL(a.cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("cannot parse redis url: %w", err)
	}

	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		rdb.Close()

		return fmt.Errorf("cannot connect to redis: %w", err)
	}

	a.rdb = rdb
	a.ledger = stats.NewStatsRepository(rdb, a.log)

	return nil
}

// Fetch loads the configured manifest and runs one batch over it.
func (a *App) Fetch(ctx context.Context) (*entity.BatchResult, error) {
	if a.cfg.Manifest == "" {
		return nil, fmt.Errorf("%w: no manifest configured", common.ErrInvalidManifest)
	}

	pending, err := a.manifest.Load(a.cfg.Manifest)
	if err != nil {
		return nil, fmt.Errorf("cannot load manifest: %w", err)
	}

	return a.coordinator.Run(ctx, pending, entity.Caches{
		Primary:   a.cfg.Cache.Primary,
		Secondary: a.cfg.Cache.Secondary,
	})
}

// Serve starts the status server in the background.
func (a *App) Serve() error {
	if a.rdb == nil {
		return ErrNoLedger
	}

	srv := sstats.NewStatsService(stats.NewStatsRepository(a.rdb, a.log), a.log)

	mux := http.NewServeMux()
	mux.Handle("GET /stats/{$}", httphandler.NewStatsHandler(srv, a.log))
	mux.Handle("GET /package/{id}/{$}", httphandler.NewPackageHandler(srv, a.log))
	mux.Handle("POST /fetch/{$}", httphandler.NewFetchHandler(a, a.log))

	a.srv = &http.Server{
		Addr:    a.cfg.Listen,
		Handler: mux,
	}

	go func() {
		a.log.Info("Start listen", slog.String("addr", a.cfg.Listen))

		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("Could not serve", slog.String("listen_addr", a.cfg.Listen), slog.Any("error", err))
			os.Exit(2)
		}
	}()

	return nil
}

func (a *App) Stop() {
	if a.srv == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.srv.Shutdown(ctx); err != nil {
		a.log.Error("Cannot shutdown server", slog.Any("error", err))
	}
}

// Close releases the progress sink and the redis client. No batch may run after Close.
func (a *App) Close() {
	if a.events != nil {
		close(a.events)
		a.progressWG.Wait()
		a.events = nil
	}

	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.Debug("Cannot close redis client", slog.Any("error", err))
		}
	}
}
