package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/quillhq/skillpilot/internal/diskio"
	"github.com/quillhq/skillpilot/internal/protocol"
	"github.com/quillhq/skillpilot/internal/ptysession"
)

// putsShim defines a POSIX-sh function named puts that behaves like the
// Tcl builtin the real tool understands, so RUNNER_INJECT marker lines
// (always emitted as `puts "<marker>"`) have something to execute against
// when the stand-in tool is a plain shell instead of the genuine EDA tool.
const putsShim = `puts() { printf '%s\n' "$*"; }`

// newTestRunner starts a Runner against a fresh run-dir with a plain
// POSIX shell standing in for the EDA tool.
func newTestRunner(t *testing.T) (*Runner, string) {
	t.Helper()
	runDir := t.TempDir()
	cfg := Config{
		RunDir:            runDir,
		Launch:            ptysession.Spec{Argv: []string{"sh"}, BootCommands: []string{putsShim}},
		HeartbeatInterval: 50 * time.Millisecond,
		EnableLease:       true,
	}
	r := New(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if diskio.Exists(r.layout.readyPath()) {
			return r, runDir
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("runner did not become ready in time")
	return nil, ""
}

func writeRequest(t *testing.T, runDir string, req *protocol.Request) {
	t.Helper()
	if _, err := diskio.WriteAtomicJSON(filepath.Join(runDir, "queue", req.QueueFilename()), req); err != nil {
		t.Fatalf("write request: %v", err)
	}
}

func waitResult(t *testing.T, runDir string, req *protocol.Request, timeout time.Duration) *protocol.Result {
	t.Helper()
	path := filepath.Join(runDir, "result", protocol.ResultFilename(req.Seq, req.RequestID))
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		var res protocol.Result
		found, err := diskio.ReadJSON(path, &res)
		if err != nil {
			t.Fatalf("read result: %v", err)
		}
		if found {
			return &res
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("no result for %s within %v", req.RequestID, timeout)
	return nil
}

func TestRunner_HappyPathFourRequests(t *testing.T) {
	_, runDir := newTestRunner(t)

	for i := 1; i <= 4; i++ {
		req := protocol.NewRequest(ulidLike(i), "job-1", int64(i), shEcho(i))
		writeRequest(t, runDir, req)
		res := waitResult(t, runDir, req, 5*time.Second)
		if res.Status != protocol.StatusPass {
			t.Fatalf("request %d: expected PASS, got %s (%s)", i, res.Status, res.Message)
		}
		if res.ExitReason != protocol.ExitMarkerSeen {
			t.Fatalf("request %d: expected marker_seen, got %s", i, res.ExitReason)
		}
	}

	out, err := os.ReadFile(filepath.Join(runDir, "log", "session.out"))
	if err != nil {
		t.Fatalf("read session.out: %v", err)
	}
	for i := 1; i <= 4; i++ {
		if !strings.Contains(string(out), expectedOutput(i)) {
			t.Fatalf("session.out missing output for request %d: %q", i, out)
		}
	}
}

func TestRunner_MarkerSpansChunks(t *testing.T) {
	_, runDir := newTestRunner(t)

	// A shell loop that dribbles output in small pieces with pauses, so the
	// marker line the Runner injects afterward must still be detected
	// across however the PTY happens to chunk the combined stream.
	payload := "for i in $(seq 1 40); do printf 'xxxxx'; sleep 0.01; done; echo\n"
	req := protocol.NewRequest(ulidLike(50), "job-1", 1, payload)
	writeRequest(t, runDir, req)

	res := waitResult(t, runDir, req, 10*time.Second)
	if res.Status != protocol.StatusPass {
		t.Fatalf("expected PASS, got %s (%s)", res.Status, res.Message)
	}
	if res.ExitReason != protocol.ExitMarkerSeen {
		t.Fatalf("expected marker_seen, got %s", res.ExitReason)
	}
}

func TestRunner_PerRequestTimeoutProgresses(t *testing.T) {
	_, runDir := newTestRunner(t)

	slow := protocol.NewRequest(ulidLike(100), "job-1", 1, "sleep 5\n")
	slow.TimeoutS = 1
	writeRequest(t, runDir, slow)

	fast := protocol.NewRequest(ulidLike(101), "job-1", 2, shEcho(9))
	fast.TimeoutS = 10
	writeRequest(t, runDir, fast)

	slowRes := waitResult(t, runDir, slow, 5*time.Second)
	if slowRes.Status != protocol.StatusTimeout && slowRes.Status != protocol.StatusPass {
		t.Fatalf("expected TIMEOUT or PASS for slow request, got %s", slowRes.Status)
	}

	fastRes := waitResult(t, runDir, fast, 10*time.Second)
	if fastRes.Status != protocol.StatusPass {
		t.Fatalf("expected fast request to progress to PASS, got %s", fastRes.Status)
	}
}

func TestRunner_CancelWhileRunning(t *testing.T) {
	_, runDir := newTestRunner(t)

	req := protocol.NewRequest(ulidLike(200), "job-1", 1, "sleep 30\n")
	req.CancelPolicy = protocol.CancelCtrlC
	writeRequest(t, runDir, req)

	time.Sleep(300 * time.Millisecond)

	cancel := protocol.CancelSignal{Scope: protocol.CancelScopeCurrent}
	if _, err := diskio.WriteAtomicJSON(filepath.Join(runDir, "ctl", "cancel.json"), cancel); err != nil {
		t.Fatalf("write cancel: %v", err)
	}

	res := waitResult(t, runDir, req, 5*time.Second)
	if res.Status != protocol.StatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", res.Status)
	}
	if res.ExitReason != protocol.ExitCtrlC {
		t.Fatalf("expected ctrl_c, got %s", res.ExitReason)
	}
}

func TestRunner_IdempotentAcrossRestart(t *testing.T) {
	runDir := t.TempDir()
	req := protocol.NewRequest(ulidLike(300), "job-1", 1, shEcho(42))

	runOnce := func() *protocol.Result {
		cfg := Config{RunDir: runDir, Launch: ptysession.Spec{Argv: []string{"sh"}, BootCommands: []string{putsShim}}, HeartbeatInterval: 50 * time.Millisecond}
		r := New(cfg)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		go r.Run(ctx)

		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if diskio.Exists(r.layout.readyPath()) {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}
		writeRequest(t, runDir, req)
		return waitResult(t, runDir, req, 5*time.Second)
	}

	first := runOnce()
	if first.Status != protocol.StatusPass {
		t.Fatalf("expected first run PASS, got %s", first.Status)
	}

	// Re-run against the same run-dir/request: since a result already
	// exists, nothing should change (the request file itself is gone from
	// queue/, so a second runner simply never re-executes it).
	cfg := Config{RunDir: runDir, Launch: ptysession.Spec{Argv: []string{"sh"}, BootCommands: []string{putsShim}}, HeartbeatInterval: 50 * time.Millisecond}
	r := New(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	r.Run(ctx)

	var second protocol.Result
	found, err := diskio.ReadJSON(filepath.Join(runDir, "result", protocol.ResultFilename(req.Seq, req.RequestID)), &second)
	if err != nil || !found {
		t.Fatalf("expected result to still exist: found=%v err=%v", found, err)
	}
	if second.FinishedAt != first.FinishedAt {
		t.Fatalf("expected result untouched by restart, finished_at changed: %s -> %s", first.FinishedAt, second.FinishedAt)
	}
}

func TestRunner_LeaseExpiryStopsIdleRunner(t *testing.T) {
	runDir := t.TempDir()
	cfg := Config{
		RunDir:            runDir,
		Launch:            ptysession.Spec{Argv: []string{"sh"}, BootCommands: []string{putsShim}},
		HeartbeatInterval: 50 * time.Millisecond,
		EnableLease:       true,
	}
	r := New(cfg)
	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if diskio.Exists(r.layout.readyPath()) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	lease := protocol.Lease{
		LeaseID:   "lease-1",
		ExpiresAt: protocol.FormatMillis(time.Now().Add(-time.Second)),
		Owner:     "job-1",
	}
	if _, err := diskio.WriteAtomicJSON(filepath.Join(runDir, "state", "lease.json"), lease); err != nil {
		t.Fatalf("write lease: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("runner did not stop on expired lease")
	}
}

func TestRunner_GracefulStopAfterIdle(t *testing.T) {
	runDir := t.TempDir()
	cfg := Config{
		RunDir:            runDir,
		Launch:            ptysession.Spec{Argv: []string{"sh"}, BootCommands: []string{putsShim}},
		HeartbeatInterval: 50 * time.Millisecond,
	}
	r := New(cfg)
	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if diskio.Exists(r.layout.readyPath()) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	stop := protocol.StopSignal{Mode: protocol.StopGraceful}
	if _, err := diskio.WriteAtomicJSON(filepath.Join(runDir, "ctl", "stop.json"), stop); err != nil {
		t.Fatalf("write stop: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("runner did not honor stop signal")
	}

	// The one-shot signal must be consumed, and the published state must
	// reflect the shutdown.
	if diskio.Exists(filepath.Join(runDir, "ctl", "stop.json")) {
		t.Fatal("stop.json was not consumed")
	}
	var st protocol.State
	found, err := diskio.ReadJSON(filepath.Join(runDir, "state", "state.json"), &st)
	if err != nil || !found {
		t.Fatalf("read state: found=%v err=%v", found, err)
	}
	if st.Phase != protocol.PhaseStopping {
		t.Fatalf("expected STOPPING, got %s", st.Phase)
	}
}

func shEcho(n int) string {
	return fmt.Sprintf("echo '%s'\n", expectedOutput(n))
}

func expectedOutput(n int) string {
	return fmt.Sprintf("Command %d executed", n)
}

func ulidLike(n int) string {
	return fmt.Sprintf("req-%d", n)
}
