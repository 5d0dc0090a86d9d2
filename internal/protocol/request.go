package protocol

import "fmt"

// Marker describes the completion sentinel a Runner watches for in the
// tool's output stream.
type Marker struct {
	Prefix string     `json:"prefix"`
	Token  string     `json:"token,omitempty"`
	Mode   MarkerMode `json:"mode"`
}

// DefaultMarkerPrefix is chosen to be unlikely in legitimate EDA tool
// output.
const DefaultMarkerPrefix = "__SP_DONE__"

// Request is an immutable unit of work submitted by the Orchestrator into
// queue/. Once written it is never modified; request_id is globally unique
// and seq is monotonic per run-dir.
type Request struct {
	SchemaVersion string       `json:"schema_version"`
	RequestID     string       `json:"request_id"`
	JobID         string       `json:"job_id"`
	Seq           int64        `json:"seq"`
	Kind          string       `json:"kind"`
	Payload       string       `json:"payload"`
	TimeoutS      int          `json:"timeout_s,omitempty"`
	CancelPolicy  CancelPolicy `json:"cancel_policy"`
	Marker        Marker       `json:"marker"`
	CreatedAt     string       `json:"created_at"`
}

// DefaultTimeoutS is used when a Request does not specify timeout_s.
const DefaultTimeoutS = 300

// NewRequest builds a Request with defaults applied (kind=tcl,
// cancel_policy=ctrl_c, marker token defaulting to the request id).
func NewRequest(requestID, jobID string, seq int64, payload string) *Request {
	r := &Request{
		SchemaVersion: SchemaVersion,
		RequestID:     requestID,
		JobID:         jobID,
		Seq:           seq,
		Kind:          "tcl",
		Payload:       payload,
		CancelPolicy:  CancelCtrlC,
		Marker: Marker{
			Prefix: DefaultMarkerPrefix,
			Token:  requestID,
			Mode:   MarkerRunnerInject,
		},
		CreatedAt: NowISO8601(),
	}
	return r
}

// TimeoutOrDefault returns the effective per-request timeout.
func (r *Request) TimeoutOrDefault() int {
	if r.TimeoutS <= 0 {
		return DefaultTimeoutS
	}
	return r.TimeoutS
}

// MarkerText returns the literal bytes the Marker Engine should watch for.
func (m Marker) MarkerText() string {
	if m.Token == "" {
		return m.Prefix
	}
	return m.Prefix + " " + m.Token
}

// QueueFilename is the deterministic file name a Request is written under
// in queue/ (and, after acceptance, inflight/).
func (r *Request) QueueFilename() string {
	return fmt.Sprintf("cmd_%d_%s.json", r.Seq, r.RequestID)
}

// Validate performs structural checks beyond JSON-schema validation —
// invariants that are awkward to express in JSON Schema alone.
func (r *Request) Validate() error {
	if r.RequestID == "" {
		return fmt.Errorf("protocol: request_id is required")
	}
	if r.JobID == "" {
		return fmt.Errorf("protocol: job_id is required")
	}
	if r.Seq <= 0 {
		return fmt.Errorf("protocol: seq must be positive")
	}
	if r.Marker.Prefix == "" {
		return fmt.Errorf("protocol: marker.prefix is required")
	}
	switch r.Marker.Mode {
	case MarkerRunnerInject, MarkerPayloadContains:
	default:
		return fmt.Errorf("protocol: invalid marker.mode %q", r.Marker.Mode)
	}
	switch r.CancelPolicy {
	case CancelCtrlC, CancelTerminateTool, CancelTerminateSession:
	default:
		return fmt.Errorf("protocol: invalid cancel_policy %q", r.CancelPolicy)
	}
	return nil
}
