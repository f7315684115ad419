package progress

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/jgivc/pkgfetch/internal/entity"
	"github.com/schollz/progressbar/v3"
)

const (
	barMax      = 100
	barWidth    = 30
	barThrottle = 65 * time.Millisecond
)

type Bar interface {
	Set(n int) error
	Describe(description string)
	Finish() error
}

// sink renders the coordinator event stream on a terminal.
type sink struct {
	w      io.Writer
	newBar func(w io.Writer) Bar
	bar    Bar
	status string
	speed  string
	batch  float64
	log    *slog.Logger
}

func NewSink(w io.Writer, log *slog.Logger) *sink {
	return &sink{
		w:      w,
		newBar: newProgressBar,
		log:    log.With(slog.String("item", "ProgressSink")),
	}
}

func newProgressBar(w io.Writer) Bar {
	return progressbar.NewOptions(
		barMax,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetWidth(barWidth),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionThrottle(barThrottle),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(w)
		}),
	)
}

// Consume renders events until the channel is closed or ctx is done.
func (s *sink) Consume(ctx context.Context, events <-chan entity.Event) {
	defer s.finish()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}

			s.handle(ev)
		}
	}
}

func (s *sink) handle(ev entity.Event) {
	switch ev.Kind {
	case entity.EventProgressVisible:
		if ev.Text == entity.ProgressHide {
			s.finish()

			return
		}

		s.ensure()
	case entity.EventBatchPercent:
		s.batch = ev.Percent
		s.describe()
	case entity.EventFilePercent:
		s.ensure().Set(int(math.Round(ev.Percent * barMax)))
	case entity.EventStatusText:
		s.status = ev.Text
		s.describe()
	case entity.EventSpeedText:
		s.speed = ev.Text
		s.describe()
	case entity.EventHashUnverifiable:
		s.log.Warn("Checksum unavailable, package is not verified", slog.String("package", ev.Text))
	default:
		s.log.Debug("Unknown event", slog.String("kind", string(ev.Kind)))
	}
}

func (s *sink) ensure() Bar {
	if s.bar == nil {
		s.bar = s.newBar(s.w)
	}

	return s.bar
}

func (s *sink) describe() {
	desc := fmt.Sprintf("[%3d%%] %s", int(math.Round(s.batch*barMax)), s.status)
	if s.speed != "" {
		desc += " | " + s.speed
	}

	s.ensure().Describe(desc)
}

func (s *sink) finish() {
	if s.bar == nil {
		return
	}

	if err := s.bar.Finish(); err != nil {
		s.log.Debug("Cannot finish progress bar", slog.Any("error", err))
	}

	s.bar = nil
}
