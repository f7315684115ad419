package entity

type EventKind string

const (
	EventProgressVisible  EventKind = "progress_visible"
	EventBatchPercent     EventKind = "batch_percent"
	EventFilePercent      EventKind = "file_percent"
	EventStatusText       EventKind = "status_text"
	EventSpeedText        EventKind = "speed_text"
	EventHashUnverifiable EventKind = "hash_unverifiable"
)

const (
	ProgressShow = "show"
	ProgressHide = "hide"
)

// Event is a single status update. Percent is used by the percent kinds, Text by the others.
type Event struct {
	Kind    EventKind
	Text    string
	Percent float64
}

// Sample is a progress measurement taken while a file is transferred.
type Sample struct {
	Percent        float64
	BytesPerSecond float64
	Completed      int64
	Total          int64 // 0 when unknown
}
