package orchestrator

import (
	"encoding/json"
	"path/filepath"

	"github.com/quillhq/skillpilot/internal/diskio"
	"github.com/quillhq/skillpilot/internal/protocol"
)

// timelinePath returns the fixed job_timeline.jsonl location under runDir.
func (o *Orchestrator) timelinePath() string {
	return filepath.Join(o.cfg.RunDir, "job_timeline.jsonl")
}

// emit appends one event to job_timeline.jsonl. The timeline is
// append-only and crash-safe via O_APPEND line writes; no event is ever
// rewritten.
func (o *Orchestrator) emit(level protocol.TimelineLevel, kind protocol.TimelineEventKind, state string, data map[string]any) {
	ev := protocol.TimelineEvent{
		Timestamp: protocol.NowISO8601(),
		JobID:     o.jobID,
		Level:     level,
		Event:     kind,
		State:     state,
		Data:      data,
	}
	b, err := json.Marshal(ev)
	if err != nil {
		o.log.Warn("marshal timeline event", "error", err)
		return
	}
	if err := diskio.AppendLine(o.timelinePath(), b); err != nil {
		o.log.Warn("append timeline event", "error", err)
	}
}

func (o *Orchestrator) enterState(state string) {
	o.log.Info("state enter", "state", state)
	o.emit(protocol.LevelInfo, protocol.EventStateEnter, state, nil)
}

func (o *Orchestrator) exitState(state string, data map[string]any) {
	o.emit(protocol.LevelInfo, protocol.EventStateExit, state, data)
}

func (o *Orchestrator) action(state string, data map[string]any) {
	o.emit(protocol.LevelInfo, protocol.EventAction, state, data)
}

func (o *Orchestrator) done() {
	o.emit(protocol.LevelInfo, protocol.EventDone, "", nil)
}

func (o *Orchestrator) failEvent(errType protocol.ErrorType, message string) {
	o.emit(protocol.LevelError, protocol.EventFail, "", map[string]any{
		"error_type": errType,
		"message":    message,
	})
}
