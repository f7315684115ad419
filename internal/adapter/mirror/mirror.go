package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/jgivc/pkgfetch/internal/common"
	"github.com/jgivc/pkgfetch/internal/entity"
	"github.com/jgivc/pkgfetch/internal/util"
	"github.com/spf13/afero"
	"golang.org/x/time/rate"
)

const (
	PartSuffix = ".part"

	// Percent step per chunk when the total size is unknown.
	unknownSizeStep = 0.01
	unknownSizeCap  = 0.99

	fileMode = 0o644
)

var errReadTimeout = errors.New("read timeout")

// Options configures the fetcher.
type Options struct {
	// ConnectTimeout bounds dialing and the TLS handshake.
	// Default: 30s
	ConnectTimeout time.Duration

	// ReadTimeout bounds the wait for response headers and for every chunk of the body.
	// Default: 30s
	ReadTimeout time.Duration

	// Cooldown is the pause after a connection error or a timeout.
	// Default: 60s
	Cooldown time.Duration

	// ChunkSize is the read buffer size.
	// Default: 8KiB
	ChunkSize int

	// RateLimit caps the transfer rate in bytes per second. 0 disables it.
	RateLimit int64

	UserAgent string
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		ConnectTimeout: 30 * time.Second,
		ReadTimeout:    30 * time.Second,
		Cooldown:       60 * time.Second,
		ChunkSize:      8 * 1024,
	}
}

// Sleeper pauses for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

type fetcher struct {
	fs      afero.Fs
	client  *http.Client
	opts    Options
	limiter *rate.Limiter
	sleep   Sleeper
	log     *slog.Logger
}

func NewFetcher(fs afero.Fs, opts Options, log *slog.Logger) *fetcher {
	return NewFetcherWithSleeper(fs, opts, SleepContext, log)
}

func NewFetcherWithSleeper(fs afero.Fs, opts Options, sleep Sleeper, log *slog.Logger) *fetcher {
	def := DefaultOptions()
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = def.ConnectTimeout
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = def.ReadTimeout
	}
	if opts.Cooldown < 0 {
		opts.Cooldown = 0
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = def.ChunkSize
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   opts.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   opts.ConnectTimeout,
		ResponseHeaderTimeout: opts.ReadTimeout,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
	}

	f := &fetcher{
		fs:     fs,
		client: &http.Client{Transport: transport},
		opts:   opts,
		sleep:  sleep,
		log:    log.With(slog.String("item", "MirrorFetcher")),
	}

	if opts.RateLimit > 0 {
		burst := max(int(opts.RateLimit), opts.ChunkSize)
		f.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return f
}

/*
Fetch downloads url into dst. The body is streamed into dst.part which is renamed
to dst once the transfer is complete.

Connection errors and timeouts are followed by the cooldown pause before Fetch returns.
A cancelled ctx is returned as is.
*/
func (f *fetcher) Fetch(ctx context.Context, url, dst string, expectedSize int64, onSample func(entity.Sample)) (int64, error) {
	if url == "" {
		return 0, common.ErrEmptyURL
	}

	log := f.log.With(slog.String("url", url))

	n, err := f.fetch(ctx, url, dst, expectedSize, onSample)
	if err == nil {
		log.Debug("Downloaded", slog.String("path", dst), slog.Int64("bytes", n))

		return n, nil
	}

	if errors.Is(err, common.ErrConnection) || errors.Is(err, common.ErrTimeout) {
		log.Debug("Cannot download, will try another mirror after cooldown",
			slog.Duration("cooldown", f.opts.Cooldown), slog.Any("error", err))

		if serr := f.sleep(ctx, f.opts.Cooldown); serr != nil {
			return n, serr
		}

		return n, err
	}

	log.Debug("Cannot download, will try another mirror", slog.Any("error", err))

	return n, err
}

func (f *fetcher) fetch(ctx context.Context, url, dst string, expectedSize int64, onSample func(entity.Sample)) (int64, error) {
	reqCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: cannot create request: %w", common.ErrTransport, err)
	}

	if f.opts.UserAgent != "" {
		req.Header.Set("User-Agent", f.opts.UserAgent)
	}

	watchdog := time.AfterFunc(f.opts.ReadTimeout, func() {
		cancel(errReadTimeout)
	})
	defer watchdog.Stop()

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, f.transportError(ctx, reqCtx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("%w: %s", common.ErrBadStatus, resp.Status)
	}

	total := resp.ContentLength
	if total <= 0 {
		total = expectedSize
	}
	if total < 0 {
		total = 0
	}

	tmp := dst + PartSuffix
	out, err := f.fs.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, fileMode)
	if err != nil {
		return 0, fmt.Errorf("%w: cannot create %s: %w", common.ErrFilesystem, tmp, err)
	}

	written, err := f.stream(ctx, reqCtx, watchdog, out, resp.Body, total, onSample)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("%w: cannot close %s: %w", common.ErrFilesystem, tmp, cerr)
	}

	if err != nil {
		f.fs.Remove(tmp)

		return written, err
	}

	if err := f.fs.Rename(tmp, dst); err != nil {
		f.fs.Remove(tmp)

		return written, fmt.Errorf("%w: cannot rename %s: %w", common.ErrFilesystem, tmp, err)
	}

	return written, nil
}

func (f *fetcher) stream(ctx, reqCtx context.Context, watchdog *time.Timer, out io.Writer, body io.Reader, total int64, onSample func(entity.Sample)) (int64, error) {
	var (
		completed int64
		percent   float64
		start     = time.Now()
		buf       = make([]byte, f.opts.ChunkSize)
	)

	for {
		watchdog.Reset(f.opts.ReadTimeout)

		n, rerr := body.Read(buf)
		if n > 0 {
			if f.limiter != nil {
				watchdog.Stop()
				if err := f.limiter.WaitN(ctx, n); err != nil {
					if ctx.Err() != nil {
						return completed, ctx.Err()
					}

					return completed, fmt.Errorf("%w: rate limiter: %w", common.ErrTransport, err)
				}
			}

			if _, err := out.Write(buf[:n]); err != nil {
				return completed, fmt.Errorf("%w: cannot write: %w", common.ErrFilesystem, err)
			}

			completed += int64(n)

			prev := percent
			percent = nextPercent(percent, completed, total)
			if percent != prev && onSample != nil {
				onSample(entity.Sample{
					Percent:        percent,
					BytesPerSecond: throughput(completed, time.Since(start)),
					Completed:      completed,
					Total:          total,
				})
			}
		}

		if rerr == io.EOF {
			return completed, nil
		}

		if rerr != nil {
			return completed, f.transportError(ctx, reqCtx, rerr)
		}
	}
}

func (f *fetcher) transportError(ctx, reqCtx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if errors.Is(context.Cause(reqCtx), errReadTimeout) {
		return fmt.Errorf("%w: no data for %s", common.ErrTimeout, f.opts.ReadTimeout)
	}

	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return fmt.Errorf("%w: %w", common.ErrTimeout, err)
	}

	return fmt.Errorf("%w: %w", common.ErrConnection, err)
}

func nextPercent(prev float64, completed, total int64) float64 {
	if total > 0 {
		return min(util.Round2(float64(completed)/float64(total)), 1)
	}

	return min(util.Round2(prev+unknownSizeStep), unknownSizeCap)
}

func throughput(completed int64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return float64(completed)
	}

	return float64(completed) / elapsed.Seconds()
}

// SleepContext waits for d unless ctx is done first.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
