package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/quillhq/skillpilot/internal/diskio"
	"github.com/quillhq/skillpilot/internal/marker"
	"github.com/quillhq/skillpilot/internal/protocol"
	"github.com/quillhq/skillpilot/internal/ptysession"
)

// runRequest moves one queued request into inflight/, executes it against
// the PTY, writes its result, and removes the inflight entry. It never
// returns an error for request-level failures: those are encoded into
// the Result and the queue drain continues.
// A non-nil error here means something went wrong with the Runner's own
// bookkeeping (disk I/O), which is fatal to the session.
func (r *Runner) runRequest(ctx context.Context, req *protocol.Request, queueFile string) error {
	inflightPath := r.layout.path("inflight", queueFile)
	if err := diskio.Rename(r.layout.path("queue", queueFile), inflightPath); err != nil {
		return fmt.Errorf("runner: accept request %s: %w", req.RequestID, err)
	}

	r.phase = protocol.PhaseBusy
	if err := r.publishState(req.RequestID); err != nil {
		return err
	}

	res := r.executeOne(ctx, req)

	if res.OutputPath != "" {
		if hash, err := diskio.HashFile(res.OutputPath); err == nil {
			res.ContentHash = hash
		}
	}

	if _, err := diskio.WriteAtomicJSON(r.layout.path("result", protocol.ResultFilename(req.Seq, req.RequestID)), res); err != nil {
		return fmt.Errorf("runner: write result %s: %w", req.RequestID, err)
	}
	if err := r.index.Record(req.RequestID, res.Status); err != nil {
		r.log.Warn("record result index", "request_id", req.RequestID, "error", err)
	}
	if err := diskio.RemoveIfExists(inflightPath); err != nil {
		return fmt.Errorf("runner: clear inflight %s: %w", req.RequestID, err)
	}

	r.phase = protocol.PhaseIdle
	if err := r.publishState(""); err != nil {
		return err
	}
	r.log.Info("request completed", "request_id", req.RequestID, "status", res.Status, "exit_reason", res.ExitReason)
	return nil
}

// executeOne runs the read loop for a single accepted request: write the
// payload (with an injected marker line when requested), then poll the PTY
// and the control plane in lockstep at pollQuantum until the marker is
// seen, the request times out, a control signal interrupts it, or the tool
// dies.
func (r *Runner) executeOne(ctx context.Context, req *protocol.Request) protocol.Result {
	startedAt := protocol.NowISO8601()
	start := time.Now()

	outputPath := r.layout.path("output", fmt.Sprintf("req_%d_%s.out", req.Seq, req.RequestID))
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return r.fail(req, startedAt, protocol.ErrorCmdFail, protocol.ExitToolDied, fmt.Sprintf("create output file: %v", err))
	}

	payload := req.Payload
	if req.Marker.Mode == protocol.MarkerRunnerInject {
		payload += injectedMarkerLine(req.Marker)
	}
	if err := r.sess.Write([]byte(payload)); err != nil {
		return r.fail(req, startedAt, protocol.ErrorCmdFail, protocol.ExitToolDied, fmt.Sprintf("write payload: %v", err))
	}

	m := marker.New(req.Marker.MarkerText(), marker.DefaultMaxBuffer)
	deadline := start.Add(time.Duration(req.TimeoutOrDefault()) * time.Second)

	var bytesRead, chunksRead int64
	buf := make([]byte, 4096)

	for {
		select {
		case <-ctx.Done():
			return r.cancelledResult(req, startedAt, protocol.ExitStopRequested, bytesRead, chunksRead, start)
		default:
		}

		n, err := r.sess.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			bytesRead += int64(n)
			chunksRead++
			if werr := diskio.AppendBytes(outputPath, chunk); werr != nil {
				r.log.Warn("append output", "request_id", req.RequestID, "error", werr)
			}
			if werr := diskio.AppendBytes(r.layout.sessionOutPath(), chunk); werr != nil {
				r.log.Warn("append session.out", "request_id", req.RequestID, "error", werr)
			}
			if m.Feed(chunk) {
				return protocol.Result{
					SchemaVersion: protocol.SchemaVersion,
					RequestID:     req.RequestID,
					JobID:         req.JobID,
					Status:        protocol.StatusPass,
					ErrorType:     protocol.ErrorNone,
					ExitReason:    protocol.ExitMarkerSeen,
					StartedAt:     startedAt,
					FinishedAt:    protocol.NowISO8601(),
					OutputPath:    outputPath,
					Stats:         &protocol.ResultStats{BytesRead: bytesRead, ChunksRead: chunksRead, DurationMS: time.Since(start).Milliseconds()},
				}
			}
		}

		if err == ptysession.ErrToolExited {
			return r.fail(req, startedAt, protocol.ErrorToolCrash, protocol.ExitToolDied, "tool process exited before marker was seen")
		}
		if err != nil {
			return r.fail(req, startedAt, protocol.ErrorCmdFail, protocol.ExitToolDied, fmt.Sprintf("read: %v", err))
		}

		if time.Now().After(deadline) {
			return protocol.Result{
				SchemaVersion: protocol.SchemaVersion,
				RequestID:     req.RequestID,
				JobID:         req.JobID,
				Status:        protocol.StatusTimeout,
				ErrorType:     protocol.ErrorNone,
				ExitReason:    protocol.ExitTimeout,
				StartedAt:     startedAt,
				FinishedAt:    protocol.NowISO8601(),
				OutputPath:    outputPath,
				Stats:         &protocol.ResultStats{BytesRead: bytesRead, ChunksRead: chunksRead, DurationMS: time.Since(start).Milliseconds()},
			}
		}

		cancel, stop, lease := r.pollControl()
		if cancelTargets(cancel, req.RequestID) {
			r.consumeCancel()
			return r.applyCancelPolicy(req, startedAt, protocol.ExitCtrlC, bytesRead, chunksRead, start, outputPath)
		}
		if stop != nil {
			mode := stop.Mode
			if mode == protocol.StopForce {
				r.consumeStop()
				if err := r.sess.Kill(); err != nil {
					r.log.Warn("kill tool on force stop", "request_id", req.RequestID, "error", err)
				}
				r.phase = protocol.PhaseStopping
				return r.cancelledResultAt(req, startedAt, protocol.ExitStopRequested, bytesRead, chunksRead, start, outputPath)
			}
			// GRACEFUL stop lets the current request finish; leave stop.json
			// in place so the Runner honors it once back in IDLE.
		}
		if r.cfg.EnableLease && lease != nil && lease.IsExpired() {
			return r.applyCancelPolicy(req, startedAt, protocol.ExitLeaseExpired, bytesRead, chunksRead, start, outputPath)
		}
	}
}

// applyCancelPolicy escalates the interruption according to the
// request's declared cancel_policy.
func (r *Runner) applyCancelPolicy(req *protocol.Request, startedAt string, reason protocol.ExitReason, bytesRead, chunksRead int64, start time.Time, outputPath string) protocol.Result {
	switch req.CancelPolicy {
	case protocol.CancelCtrlC:
		if err := r.sess.SendCtrlC(); err != nil {
			r.log.Warn("send ctrl-c", "request_id", req.RequestID, "error", err)
		}
	case protocol.CancelTerminateTool:
		if err := r.sess.Terminate(500 * time.Millisecond); err != nil {
			r.log.Warn("terminate tool", "request_id", req.RequestID, "error", err)
		}
	case protocol.CancelTerminateSession:
		if err := r.sess.Kill(); err != nil {
			r.log.Warn("kill tool", "request_id", req.RequestID, "error", err)
		}
		r.phase = protocol.PhaseStopping
	}
	return protocol.Result{
		SchemaVersion: protocol.SchemaVersion,
		RequestID:     req.RequestID,
		JobID:         req.JobID,
		Status:        protocol.StatusCancelled,
		ErrorType:     protocol.ErrorNone,
		ExitReason:    reason,
		StartedAt:     startedAt,
		FinishedAt:    protocol.NowISO8601(),
		OutputPath:    outputPath,
		Stats:         &protocol.ResultStats{BytesRead: bytesRead, ChunksRead: chunksRead, DurationMS: time.Since(start).Milliseconds()},
	}
}

func (r *Runner) cancelledResult(req *protocol.Request, startedAt string, reason protocol.ExitReason, bytesRead, chunksRead int64, start time.Time) protocol.Result {
	return r.cancelledResultAt(req, startedAt, reason, bytesRead, chunksRead, start, "")
}

func (r *Runner) cancelledResultAt(req *protocol.Request, startedAt string, reason protocol.ExitReason, bytesRead, chunksRead int64, start time.Time, outputPath string) protocol.Result {
	return protocol.Result{
		SchemaVersion: protocol.SchemaVersion,
		RequestID:     req.RequestID,
		JobID:         req.JobID,
		Status:        protocol.StatusCancelled,
		ErrorType:     protocol.ErrorNone,
		ExitReason:    reason,
		StartedAt:     startedAt,
		FinishedAt:    protocol.NowISO8601(),
		OutputPath:    outputPath,
		Stats:         &protocol.ResultStats{BytesRead: bytesRead, ChunksRead: chunksRead, DurationMS: time.Since(start).Milliseconds()},
	}
}

func (r *Runner) fail(req *protocol.Request, startedAt string, errType protocol.ErrorType, reason protocol.ExitReason, message string) protocol.Result {
	return protocol.Result{
		SchemaVersion: protocol.SchemaVersion,
		RequestID:     req.RequestID,
		JobID:         req.JobID,
		Status:        protocol.StatusFail,
		ErrorType:     errType,
		ExitReason:    reason,
		Message:       message,
		StartedAt:     startedAt,
		FinishedAt:    protocol.NowISO8601(),
	}
}

// injectedMarkerLine renders the completion sentinel as a line the tool
// will echo verbatim to stdout via its own print primitive, for the
// Tcl-like dialect the targeted tools speak.
func injectedMarkerLine(m protocol.Marker) string {
	return fmt.Sprintf("\nputs \"%s\"\n", m.MarkerText())
}
