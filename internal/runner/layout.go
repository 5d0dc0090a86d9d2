// Package runner implements the Session Runner: the process that owns a
// PTY to the tool, drains queue/, detects per-request completion via the
// marker engine, enforces timeout and cancellation, and maintains
// liveness and crash recovery.
package runner

import (
	"fmt"
	"os"
	"path/filepath"
)

// Directory names under a run-dir.
const (
	dirQueue    = "queue"
	dirInflight = "inflight"
	dirResult   = "result"
	dirOutput   = "output"
	dirLog      = "log"
	dirCtl      = "ctl"
	dirState    = "state"
	dirSession  = "session"
)

const (
	fileSessionOut = "session.out"
	fileState      = "state.json"
	fileHeartbeat  = "heartbeat.json"
	fileLease      = "lease.json"
	fileCancel     = "cancel.json"
	fileStop       = "stop.json"
	fileReady      = "ready"
)

// layout resolves the fixed set of paths a Runner reads and writes under
// one run-dir.
type layout struct {
	root string
}

func newLayout(runDir string) layout {
	return layout{root: runDir}
}

func (l layout) path(parts ...string) string {
	return filepath.Join(append([]string{l.root}, parts...)...)
}

func (l layout) queueDir() string    { return l.path(dirQueue) }
func (l layout) inflightDir() string { return l.path(dirInflight) }
func (l layout) resultDir() string   { return l.path(dirResult) }
func (l layout) outputDir() string   { return l.path(dirOutput) }
func (l layout) ctlDir() string      { return l.path(dirCtl) }

func (l layout) sessionOutPath() string { return l.path(dirLog, fileSessionOut) }
func (l layout) statePath() string      { return l.path(dirState, fileState) }
func (l layout) heartbeatPath() string  { return l.path(dirState, fileHeartbeat) }
func (l layout) leasePath() string      { return l.path(dirState, fileLease) }
func (l layout) cancelPath() string     { return l.path(dirCtl, fileCancel) }
func (l layout) stopPath() string       { return l.path(dirCtl, fileStop) }
func (l layout) readyPath() string      { return l.path(dirSession, fileReady) }

// ensureSkeleton creates every directory the Runner owns. Safe to call
// against an already-populated run-dir (e.g. one an Orchestrator already
// wrote scripts/ or reports/ into).
func (l layout) ensureSkeleton() error {
	dirs := []string{
		l.queueDir(), l.inflightDir(), l.resultDir(), l.outputDir(),
		l.path(dirLog), l.ctlDir(), l.path(dirState), l.path(dirSession),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("runner: mkdir %s: %w", d, err)
		}
	}
	return nil
}
