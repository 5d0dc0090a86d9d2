// Package ptysession wraps a single PTY-backed child process: the EDA
// tool a Session Runner drives for the lifetime of a run-dir. Built on
// github.com/creack/pty; StartWithSize hands back the master *os.File
// directly, so there is no manual master/slave fd bookkeeping.
package ptysession

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/creack/pty"

	"github.com/quillhq/skillpilot/internal/procutil"
)

// Spec is the tool-launch descriptor: argv, working directory and the
// boot commands to run once the PTY is up.
type Spec struct {
	Argv         []string
	WorkDir      string
	BootCommands []string
	Env          []string
}

// Session is a live PTY-backed child process. Not safe for concurrent
// Read/Write from multiple goroutines against the same method — the Runner
// owns one Session per in-flight request-processing loop and serializes
// access to it itself.
type Session struct {
	cmd *exec.Cmd
	ptm *os.File
	pid int
}

// Start spawns the process described by spec attached to a new PTY. The
// child becomes its own session/process-group leader (via exec.Cmd's
// Setsid), so a later SignalGroup/TerminateGroup reaches the whole tree the
// tool may have forked, not just the immediate child.
func Start(spec Spec) (*Session, error) {
	if len(spec.Argv) == 0 {
		return nil, errors.New("ptysession: empty argv")
	}
	cmd := exec.Command(spec.Argv[0], spec.Argv[1:]...)
	cmd.Dir = spec.WorkDir
	if len(spec.Env) > 0 {
		cmd.Env = spec.Env
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	ptm, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: 40, Cols: 120})
	if err != nil {
		return nil, fmt.Errorf("ptysession: start %v: %w", spec.Argv, err)
	}

	s := &Session{cmd: cmd, ptm: ptm, pid: cmd.Process.Pid}

	for _, boot := range spec.BootCommands {
		if err := s.Write([]byte(boot + "\n")); err != nil {
			s.Close()
			return nil, fmt.Errorf("ptysession: boot command %q: %w", boot, err)
		}
	}
	return s, nil
}

// PID returns the tool process's PID, also the process-group ID since the
// child was started with Setsid.
func (s *Session) PID() int {
	return s.pid
}

// Write sends raw bytes to the PTY master: command payloads, the injected
// marker line, or a single Ctrl-C byte (0x03) for cancel_policy=ctrl_c.
func (s *Session) Write(p []byte) error {
	_, err := s.ptm.Write(p)
	if err != nil {
		return fmt.Errorf("ptysession: write: %w", err)
	}
	return nil
}

// SendCtrlC writes the interrupt byte the way a terminal would on Ctrl-C.
func (s *Session) SendCtrlC() error {
	return s.Write([]byte{0x03})
}

// Read performs one bounded read from the PTY master, returning within
// quantum regardless of whether data arrived. A zero n with a nil err means
// the quantum elapsed with nothing to read — the Runner's poll loop treats
// that as "keep polling", not an error. io.EOF (or the PTY-closed variant)
// surfaces as ErrToolExited so the caller can distinguish "tool exited"
// from "transient read timeout".
func (s *Session) Read(buf []byte) (n int, err error) {
	deadline := time.Now().Add(readQuantum)
	if err := s.ptm.SetReadDeadline(deadline); err != nil {
		return 0, fmt.Errorf("ptysession: set read deadline: %w", err)
	}
	n, err = s.ptm.Read(buf)
	if err == nil {
		return n, nil
	}
	if isTimeout(err) {
		return n, nil
	}
	if isProcessExited(err) {
		return n, ErrToolExited
	}
	return n, fmt.Errorf("ptysession: read: %w", err)
}

// readQuantum bounds a single Read so the Runner's loop is never kept
// from checking cancel/stop/lease state for longer than one ~100ms tick.
const readQuantum = 100 * time.Millisecond

// ErrToolExited is returned by Read once the PTY slave side has closed
// because the tool process exited.
var ErrToolExited = errors.New("ptysession: tool exited")

func isTimeout(err error) bool {
	var ne interface{ Timeout() bool }
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}

func isProcessExited(err error) bool {
	// The PTY master read returns EIO once the slave has no more writers,
	// which on Linux is how a closed PTY surfaces rather than a clean EOF.
	return errors.Is(err, syscall.EIO) || errors.Is(err, os.ErrClosed) || errors.Is(err, io.EOF)
}

// Alive reports whether the tool process is still running.
func (s *Session) Alive() bool {
	return procutil.PIDAlive(s.pid)
}

// SignalGroup delivers sig to the tool's process group.
func (s *Session) SignalGroup(sig syscall.Signal) error {
	return procutil.SignalGroup(s.pid, sig)
}

// Terminate implements cancel_policy=terminate_tool and
// terminate_session's process teardown: SIGTERM to the group, a grace
// period, then SIGKILL to the group if the group leader is still alive.
func (s *Session) Terminate(grace time.Duration) error {
	return procutil.TerminateGroup(s.pid, func() {
		if grace > 0 {
			time.Sleep(grace)
		}
	})
}

// Kill sends SIGKILL unconditionally.
func (s *Session) Kill() error {
	return procutil.KillGroup(s.pid)
}

// Wait blocks until the tool process exits and returns its error (nil on
// a clean exit), the way exec.Cmd.Wait does.
func (s *Session) Wait() error {
	return s.cmd.Wait()
}

// Close releases the PTY master file descriptor. It does not signal the
// child — callers that want the process gone must Terminate or Kill first.
func (s *Session) Close() error {
	if s.ptm == nil {
		return nil
	}
	err := s.ptm.Close()
	s.ptm = nil
	return err
}
