// Package orchestrator implements the per-job state machine: it
// sequences PREPARE_RUNDIR -> LOCATE_DB -> START_SESSION -> RESTORE_DB
// -> RUN_SKILL -> VALIDATE_OUTPUTS -> SUMMARIZE -> DONE, fails fast on
// the first non-PASS outcome in any state, and delegates to the
// contract validator and debug bundle builder on every terminal FAIL.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/quillhq/skillpilot/internal/diskio"
	"github.com/quillhq/skillpilot/internal/locator"
	"github.com/quillhq/skillpilot/internal/protocol"
	"github.com/quillhq/skillpilot/internal/ptysession"
	"github.com/quillhq/skillpilot/internal/runner"
)

// Outcome is the closed result of one Orchestrator.Run call.
type Outcome string

const (
	OutcomePass          Outcome = "PASS"
	OutcomeFail          Outcome = "FAIL"
	OutcomeNeedsSelection Outcome = "NEEDS_SELECTION"
)

// Config describes one job: where it runs, what design to locate, what
// skill to compile, and how to launch the tool.
type Config struct {
	RunDir   string
	CWD      string
	Query    string
	Explicit string // caller-supplied selection, resuming a NEEDS_SELECTION pause
	Skill    Skill

	Launch            ptysession.Spec
	HeartbeatInterval time.Duration
	EnableLease       bool
	LeaseTTL          time.Duration

	ScanDepth           int
	SessionStartTimeout time.Duration
	AckTimeout          time.Duration

	Logger *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.SessionStartTimeout <= 0 {
		c.SessionStartTimeout = 30 * time.Second
	}
	if c.AckTimeout <= 0 {
		c.AckTimeout = 300 * time.Second
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 5 * time.Second
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = time.Hour
	}
}

// Result is what Run returns: a terminal outcome plus enough detail for
// the caller (typically the driver CLI) to act on it.
type Result struct {
	Outcome      Outcome
	ErrorType    protocol.ErrorType
	Candidates   []locator.Candidate
	ManifestPath string
	SummaryPath  string
}

// Orchestrator executes one job against one run-dir.
type Orchestrator struct {
	cfg      Config
	jobID    string
	log      *slog.Logger
	manifest *protocol.Manifest

	seq     int64
	lastAck *protocol.Result

	runnerCancel context.CancelFunc
	runnerDone   chan error
}

// New constructs an Orchestrator for cfg.
func New(cfg Config) *Orchestrator {
	cfg.applyDefaults()
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	jobID := ulid.Make().String()
	return &Orchestrator{
		cfg:   cfg,
		jobID: jobID,
		log:   log.With("component", "orchestrator", "run_dir", cfg.RunDir, "job_id", jobID),
	}
}

// Run drives the full state sequence to completion, to NEEDS_SELECTION,
// or to a terminal FAIL. It always stops the session (if one was
// started) before returning, on PASS and FAIL alike.
func (o *Orchestrator) Run(ctx context.Context) (Result, error) {
	if err := o.prepareRunDir(); err != nil {
		return Result{}, err
	}
	defer o.stopSession()

	locResult, err := o.locateDB()
	if err != nil {
		return o.fail(protocol.ErrorLocatorFail, err.Error())
	}
	switch locResult.Outcome {
	case locator.OutcomeNeedsSelect:
		o.manifest.Status = "NEEDS_SELECTION"
		o.manifest.Design = &protocol.ManifestDesign{
			Query:       o.cfg.Query,
			LocatorMode: "scan",
			Candidates:  toManifestCandidates(locResult.Candidates),
		}
		o.writeManifest()
		return Result{Outcome: OutcomeNeedsSelection, Candidates: locResult.Candidates, ManifestPath: o.manifestPath()}, nil
	case locator.OutcomeNotFound:
		return o.fail(protocol.ErrorLocatorFail, locResult.Reason)
	}

	o.manifest.Design = &protocol.ManifestDesign{
		Query:          o.cfg.Query,
		DesignPath:     locResult.DesignPath,
		DesignDataPath: locResult.DesignDataPath,
		LocatorMode:    locatorMode(o.cfg.Query),
		SelectionReason: locResult.Reason,
		Candidates:     toManifestCandidates(locResult.Candidates),
	}
	o.writeManifest()

	if err := o.startSession(ctx); err != nil {
		return o.fail(protocol.ErrorSessionStartFail, err.Error())
	}

	if errType, msg := o.restoreDB(ctx, locResult); errType != protocol.ErrorNone {
		return o.fail(errType, msg)
	}

	if errType, msg := o.runSkill(ctx); errType != protocol.ErrorNone {
		return o.fail(errType, msg)
	}

	if errType, msg := o.validateOutputs(); errType != protocol.ErrorNone {
		return o.fail(errType, msg)
	}

	summaryPath, err := o.summarize()
	if err != nil {
		return o.fail(protocol.ErrorCmdFail, err.Error())
	}

	o.manifest.SetStatus("PASS", protocol.ErrorNone)
	o.writeManifest()
	o.done()
	return Result{Outcome: OutcomePass, ErrorType: protocol.ErrorNone, ManifestPath: o.manifestPath(), SummaryPath: summaryPath}, nil
}

func locatorMode(query string) string {
	if query == "" {
		return "scan"
	}
	return "auto"
}

func toManifestCandidates(cands []locator.Candidate) []protocol.LocatorCandidate {
	out := make([]protocol.LocatorCandidate, 0, len(cands))
	for _, c := range cands {
		out = append(out, protocol.LocatorCandidate{Path: c.Path, MTime: c.MTime, Size: c.Size})
	}
	return out
}

// startSession launches a Session Runner for this run-dir in-process
// and polls session/ready until it appears or the configured timeout
// elapses. The Runner touches the run-dir exclusively through the same
// diskio primitives it would use as a separate OS process, so the
// filesystem protocol is identical either way; "runner start" is the
// separate-process deployment of the same loop.
func (o *Orchestrator) startSession(parent context.Context) error {
	o.enterState("START_SESSION")
	if o.cfg.EnableLease {
		if err := o.grantLease(); err != nil {
			return err
		}
	}
	ctx, cancel := context.WithCancel(parent)
	o.runnerCancel = cancel

	r := runner.New(runner.Config{
		RunDir:            o.cfg.RunDir,
		Launch:            o.cfg.Launch,
		HeartbeatInterval: o.cfg.HeartbeatInterval,
		EnableLease:       o.cfg.EnableLease,
		Logger:            o.log,
	})

	done := make(chan error, 1)
	o.runnerDone = done
	go func() { done <- r.Run(ctx) }()

	readyPath := joinRunDir(o.cfg.RunDir, "session", "ready")
	deadline := time.Now().Add(o.cfg.SessionStartTimeout)
	for time.Now().Before(deadline) {
		if fileExists(readyPath) {
			o.exitState("START_SESSION", nil)
			return nil
		}
		select {
		case err := <-done:
			o.exitState("START_SESSION", map[string]any{"error": fmt.Sprint(err)})
			return fmt.Errorf("orchestrator: runner exited before ready: %w", err)
		case <-time.After(50 * time.Millisecond):
		}
	}
	cancel()
	return fmt.Errorf("orchestrator: session did not become ready within %s", o.cfg.SessionStartTimeout)
}

// grantLease writes (or extends) the session's lease: time-bounded
// permission for the Runner to stay alive, expiring LeaseTTL from now.
// Refreshed on every request submission so a healthy job never lets its
// Runner lapse, while an Orchestrator that dies stops renewing and the
// Runner winds itself down once the last grant expires.
func (o *Orchestrator) grantLease() error {
	lease := protocol.Lease{
		LeaseID:   ulid.Make().String(),
		ExpiresAt: protocol.FormatMillis(time.Now().UTC().Add(o.cfg.LeaseTTL)),
		Owner:     o.jobID,
	}
	leasePath := joinRunDir(o.cfg.RunDir, "state", "lease.json")
	if _, err := diskio.WriteAtomicJSON(leasePath, lease); err != nil {
		return fmt.Errorf("orchestrator: write lease: %w", err)
	}
	return nil
}

// stopSession requests a graceful stop and waits briefly for the runner
// goroutine to exit. Safe to call even if no session was started.
func (o *Orchestrator) stopSession() {
	if o.runnerCancel == nil {
		return
	}
	stopPath := joinRunDir(o.cfg.RunDir, "ctl", "stop.json")
	_ = writeStopSignal(stopPath)

	select {
	case <-o.runnerDone:
	case <-time.After(5 * time.Second):
		o.runnerCancel()
	}
}
