package protocol

import "fmt"

// Result is the Runner's at-most-once response to a Request. A Result file
// for a given request_id is written exactly once; its presence makes any
// later re-observation of that request a no-op.
type Result struct {
	SchemaVersion string     `json:"schema_version"`
	RequestID     string     `json:"request_id"`
	JobID         string     `json:"job_id"`
	Status        Status     `json:"status"`
	ErrorType     ErrorType  `json:"error_type"`
	ExitReason    ExitReason `json:"exit_reason,omitempty"`
	Message       string     `json:"message,omitempty"`
	StartedAt     string     `json:"started_at"`
	FinishedAt    string     `json:"finished_at"`
	OutputPath    string     `json:"output_path,omitempty"`
	TailPath      string     `json:"tail_path,omitempty"`
	EvidencePaths []string   `json:"evidence_paths,omitempty"`
	ContentHash   string     `json:"content_hash,omitempty"`
	Stats         *ResultStats `json:"stats,omitempty"`
}

// ResultStats carries best-effort counters about the executed request.
type ResultStats struct {
	BytesRead   int64 `json:"bytes_read,omitempty"`
	ChunksRead  int64 `json:"chunks_read,omitempty"`
	DurationMS  int64 `json:"duration_ms,omitempty"`
}

// ResultFilename mirrors the request's filename, keyed by seq+request_id.
func ResultFilename(seq int64, requestID string) string {
	return fmt.Sprintf("cmd_%d_%s.json", seq, requestID)
}

// Validate checks the result is self-consistent: finished_at must not
// precede started_at, and request_id must be set.
func (r *Result) Validate() error {
	if r.RequestID == "" {
		return fmt.Errorf("protocol: result missing request_id")
	}
	started, err := ParseTimestamp(r.StartedAt)
	if err != nil {
		return fmt.Errorf("protocol: result started_at: %w", err)
	}
	finished, err := ParseTimestamp(r.FinishedAt)
	if err != nil {
		return fmt.Errorf("protocol: result finished_at: %w", err)
	}
	if finished.Before(started) {
		return fmt.Errorf("protocol: result finished_at precedes started_at")
	}
	switch r.Status {
	case StatusPass, StatusFail, StatusTimeout, StatusCancelled:
	default:
		return fmt.Errorf("protocol: invalid status %q", r.Status)
	}
	return nil
}
