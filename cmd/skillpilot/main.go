// Command skillpilot drives the Session Runner and the Orchestrator from
// the command line: "runner start" owns one run-dir's PTY-backed tool
// session; "runner tail/cancel/stop" act on a run-dir another process's
// "runner start" owns; "orchestrate" drives a full job end to end;
// "status" reads back a job's terminal disposition from its manifest.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "--version", "-v", "version":
		fmt.Println("skillpilot dev")
		os.Exit(0)
	case "runner":
		runnerCmd(os.Args[2:])
	case "orchestrate":
		os.Exit(orchestrateCmd(os.Args[2:]))
	case "status":
		os.Exit(statusCmd(os.Args[2:]))
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  skillpilot runner start --run-dir <dir> [--work-dir <dir>] [--heartbeat-interval-s <n>] [--no-lease] [--boot <cmd>]... [--env <K=V>]... -- <tool argv...>")
	fmt.Fprintln(os.Stderr, "  skillpilot runner tail --run-dir <dir> [--follow]")
	fmt.Fprintln(os.Stderr, "  skillpilot runner cancel --run-dir <dir> [--request-id <id>]")
	fmt.Fprintln(os.Stderr, "  skillpilot runner stop --run-dir <dir> [--force]")
	fmt.Fprintln(os.Stderr, "  skillpilot orchestrate --cwd <dir> --run-dir <dir> --skill <skill.yaml> --contract <contract.yaml> [--query <design>] [--select <path>] [--boot <cmd>]... -- <tool argv...>")
	fmt.Fprintln(os.Stderr, "  skillpilot status --run-dir <dir>")
}

func runnerCmd(args []string) {
	if len(args) < 1 {
		usage()
		os.Exit(1)
	}
	switch args[0] {
	case "start":
		os.Exit(runnerStart(args[1:]))
	case "tail":
		os.Exit(runnerTail(args[1:]))
	case "cancel":
		os.Exit(runnerCancel(args[1:]))
	case "stop":
		os.Exit(runnerStop(args[1:]))
	default:
		usage()
		os.Exit(1)
	}
}

// signalCancelContext returns a context cancelled on SIGINT/SIGTERM so a
// long-running "runner start" or "orchestrate" shuts down cleanly rather
// than dying mid-write.
func signalCancelContext() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	stopCh := make(chan struct{})
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-stopCh:
		}
	}()
	return ctx, func() {
		signal.Stop(sigCh)
		close(stopCh)
		cancel()
	}
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
