package protocol

// TimelineEventKind is the closed set of event kinds written to
// job_timeline.jsonl.
type TimelineEventKind string

const (
	EventStateEnter TimelineEventKind = "STATE_ENTER"
	EventStateExit  TimelineEventKind = "STATE_EXIT"
	EventAction     TimelineEventKind = "ACTION"
	EventDone       TimelineEventKind = "DONE"
	EventFail       TimelineEventKind = "FAIL"
)

// TimelineLevel mirrors common log severities for timeline consumers that
// want to filter without parsing `event`.
type TimelineLevel string

const (
	LevelInfo  TimelineLevel = "info"
	LevelWarn  TimelineLevel = "warn"
	LevelError TimelineLevel = "error"
)

// TimelineEvent is one append-only line of job_timeline.jsonl. The
// timeline is crash-safe via line-buffered appends and is never rewritten.
type TimelineEvent struct {
	Timestamp string         `json:"ts"`
	JobID     string         `json:"job_id"`
	Level     TimelineLevel  `json:"level"`
	Event     TimelineEventKind `json:"event"`
	State     string         `json:"state,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}
