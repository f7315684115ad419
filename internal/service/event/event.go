package event

import (
	"log/slog"

	"github.com/jgivc/pkgfetch/internal/entity"
)

// Emitter delivers events to a bounded channel without ever blocking.
// It remembers the last event of every kind and drops an exact repeat.
// A nil sink turns every event into a debug log line.
type Emitter struct {
	sink chan<- entity.Event
	last map[entity.EventKind]entity.Event
	log  *slog.Logger
}

func NewEmitter(sink chan<- entity.Event, log *slog.Logger) *Emitter {
	return &Emitter{
		sink: sink,
		last: make(map[entity.EventKind]entity.Event),
		log:  log.With(slog.String("item", "Emitter")),
	}
}

// Emit reports whether the event was delivered or logged.
func (e *Emitter) Emit(ev entity.Event) bool {
	if e.sink == nil {
		if ev.Kind != entity.EventFilePercent {
			e.log.Debug(string(ev.Kind), slog.String("text", ev.Text), slog.Float64("percent", ev.Percent))
		}

		return true
	}

	if last, exists := e.last[ev.Kind]; exists && last == ev {
		return false
	}

	e.last[ev.Kind] = ev

	select {
	case e.sink <- ev:
		return true
	default:
		return false
	}
}

func (e *Emitter) Text(kind entity.EventKind, text string) bool {
	return e.Emit(entity.Event{Kind: kind, Text: text})
}

func (e *Emitter) Percent(kind entity.EventKind, percent float64) bool {
	return e.Emit(entity.Event{Kind: kind, Percent: percent})
}
