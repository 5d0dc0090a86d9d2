package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/quillhq/skillpilot/internal/diskio"
	"github.com/quillhq/skillpilot/internal/protocol"
	"github.com/quillhq/skillpilot/internal/ptysession"
	"github.com/quillhq/skillpilot/internal/resultindex"
)

// pollQuantum is the fixed period the main loop and the PTY read loop
// both use, so byte reads and control-file checks interleave on the same
// cadence.
const pollQuantum = 100 * time.Millisecond

// Config describes one Runner invocation: a run-dir, a tool-launch
// descriptor, and the liveness knobs.
type Config struct {
	RunDir            string
	Launch            ptysession.Spec
	HeartbeatInterval time.Duration
	EnableLease       bool
	Logger            *slog.Logger
}

// Runner owns one PTY-backed tool session bound to one run-dir; a
// run-dir is opened by exactly one Runner at a time.
type Runner struct {
	cfg       Config
	layout    layout
	log       *slog.Logger
	sessionID string
	runnerPID int

	sess   *ptysession.Session
	index  *resultindex.Index
	phase  protocol.Phase
	lastHB time.Time
}

// New constructs a Runner for cfg. It does not touch the filesystem or
// launch the tool — call Run to do that.
func New(cfg Config) *Runner {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 5 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		cfg:       cfg,
		layout:    newLayout(cfg.RunDir),
		log:       log.With("component", "runner", "run_dir", cfg.RunDir),
		sessionID: ulid.Make().String(),
		runnerPID: os.Getpid(),
		phase:     protocol.PhaseStarting,
	}
}

// Run drives the full phase state machine (STARTING -> IDLE <-> BUSY ->
// STOPPING) until a stop signal or lease expiry is consumed, or ctx is
// cancelled. It returns nil once the Runner has exited cleanly, leaving the
// filesystem consistent.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.enterStarting(); err != nil {
		return err
	}
	defer r.enterStopping()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		switch r.phase {
		case protocol.PhaseIdle:
			done, err := r.tickIdle(ctx)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		case protocol.PhaseError:
			return nil
		default:
			return fmt.Errorf("runner: unexpected phase %q in main loop", r.phase)
		}
	}
}

// enterStarting opens the PTY, launches the tool, runs boot commands,
// rebuilds the result index, and publishes state.json + session/ready.
func (r *Runner) enterStarting() error {
	if err := r.layout.ensureSkeleton(); err != nil {
		return err
	}
	if err := r.recoverInflight(); err != nil {
		return err
	}

	idx, err := resultindex.Load(r.layout.path("state", "result_index.msgpack"), r.layout.resultDir())
	if err != nil {
		r.log.Warn("result index rebuild fell back to full scan", "error", err)
	}
	r.index = idx

	sess, err := ptysession.Start(r.cfg.Launch)
	if err != nil {
		r.phase = protocol.PhaseError
		if werr := r.publishState(""); werr != nil {
			r.log.Warn("write starting-failure state", "error", werr)
		}
		return fmt.Errorf("runner: session start: %w", err)
	}
	r.sess = sess

	r.phase = protocol.PhaseIdle
	if err := r.publishState(""); err != nil {
		return err
	}
	if err := r.refreshHeartbeat(); err != nil {
		return err
	}
	if _, err := diskio.WriteAtomic(r.layout.readyPath(), []byte(protocol.NowISO8601())); err != nil {
		return fmt.Errorf("runner: publish ready: %w", err)
	}
	r.log.Info("session started", "tool_pid", sess.PID(), "session_id", r.sessionID)
	return nil
}

// tickIdle performs one IDLE-phase iteration: heartbeat refresh, control
// check, and a scan-and-maybe-execute of queue/. It returns done=true once
// a stop/lease signal has ended the session.
func (r *Runner) tickIdle(ctx context.Context) (done bool, err error) {
	if time.Since(r.lastHB) >= r.cfg.HeartbeatInterval {
		if err := r.refreshHeartbeat(); err != nil {
			return false, err
		}
	}

	cancel, stop, lease := r.pollControl()
	if cancel != nil {
		// No request is running; an idle cancel has nothing to target.
		r.consumeCancel()
	}
	if stop != nil {
		r.consumeStop()
		return true, nil
	}
	if r.cfg.EnableLease && lease != nil && lease.IsExpired() {
		r.log.Info("lease expired while idle, stopping")
		return true, nil
	}

	req, queueFile, err := r.nextQueuedRequest()
	if err != nil {
		return false, err
	}
	if req == nil {
		time.Sleep(pollQuantum)
		return false, nil
	}

	if err := r.runRequest(ctx, req, queueFile); err != nil {
		return false, err
	}
	return false, nil
}

// nextQueuedRequest scans queue/ in ascending seq order and returns the
// first request that does not already have a result. Queue files may have
// been written by a driver process other than this binary, so the raw
// bytes are schema-validated before unmarshalling. A request with an
// existing result is discarded without re-execution.
func (r *Runner) nextQueuedRequest() (req *protocol.Request, filename string, err error) {
	names, err := diskio.ListSorted(r.layout.queueDir(), "cmd_", ".json")
	if err != nil {
		return nil, "", fmt.Errorf("runner: scan queue: %w", err)
	}
	seqOf := func(name string) int64 {
		s := strings.TrimPrefix(name, "cmd_")
		if i := strings.IndexByte(s, '_'); i >= 0 {
			s = s[:i]
		}
		n, _ := strconv.ParseInt(s, 10, 64)
		return n
	}
	sort.SliceStable(names, func(i, j int) bool { return seqOf(names[i]) < seqOf(names[j]) })
	for _, name := range names {
		raw, err := os.ReadFile(r.layout.path("queue", name))
		if err != nil {
			if !os.IsNotExist(err) {
				r.log.Warn("skip unreadable queue entry", "file", name, "error", err)
			}
			continue
		}
		if err := protocol.ValidateRequestJSON(raw); err != nil {
			r.log.Warn("skip malformed queue entry", "file", name, "error", err)
			continue
		}
		var candidate protocol.Request
		if err := json.Unmarshal(raw, &candidate); err != nil {
			r.log.Warn("skip undecodable queue entry", "file", name, "error", err)
			continue
		}
		if r.index.Has(candidate.RequestID) {
			if err := diskio.RemoveIfExists(r.layout.path("queue", name)); err != nil {
				r.log.Warn("discard completed queue entry", "file", name, "error", err)
			}
			continue
		}
		return &candidate, name, nil
	}
	return nil, "", nil
}

// recoverInflight renames any file left under inflight/ back to queue/.
// An inflight entry at startup means a previous runner died mid-request;
// requests are declared idempotent by their authors, so re-execution is
// safe.
func (r *Runner) recoverInflight() error {
	names, err := diskio.ListSorted(r.layout.inflightDir(), "cmd_", ".json")
	if err != nil {
		return fmt.Errorf("runner: scan inflight: %w", err)
	}
	for _, name := range names {
		src := r.layout.path("inflight", name)
		dst := r.layout.path("queue", name)
		if err := diskio.Rename(src, dst); err != nil {
			return fmt.Errorf("runner: requeue inflight %s: %w", name, err)
		}
		r.log.Info("requeued inflight request after restart", "file", name)
	}
	return nil
}

func (r *Runner) refreshHeartbeat() error {
	hb := protocol.Heartbeat{Timestamp: protocol.NowMillis()}
	if _, err := diskio.WriteAtomicJSON(r.layout.heartbeatPath(), hb); err != nil {
		return fmt.Errorf("runner: write heartbeat: %w", err)
	}
	r.lastHB = time.Now()
	return nil
}

func (r *Runner) publishState(currentRequestID string) error {
	toolPID := 0
	if r.sess != nil {
		toolPID = r.sess.PID()
	}
	st := protocol.State{
		SchemaVersion:    protocol.SchemaVersion,
		Phase:            r.phase,
		SessionID:        r.sessionID,
		RunnerPID:        r.runnerPID,
		ToolPID:          toolPID,
		CurrentRequestID: currentRequestID,
		UpdatedAt:        protocol.NowISO8601(),
	}
	if _, err := diskio.WriteAtomicJSON(r.layout.statePath(), st); err != nil {
		return fmt.Errorf("runner: write state: %w", err)
	}
	return nil
}

// enterStopping closes the PTY session, tearing down the tool process if
// it is still alive. Errors are logged, never returned, since Stopping is
// reached from a defer and must always complete.
func (r *Runner) enterStopping() {
	r.phase = protocol.PhaseStopping
	if err := r.publishState(""); err != nil {
		r.log.Warn("publish stopping state", "error", err)
	}
	if r.sess != nil {
		if r.sess.Alive() {
			if err := r.sess.Terminate(500 * time.Millisecond); err != nil {
				r.log.Warn("terminate tool on shutdown", "error", err)
			}
		}
		if err := r.sess.Close(); err != nil {
			r.log.Warn("close pty", "error", err)
		}
	}
	r.log.Info("session stopped")
}
