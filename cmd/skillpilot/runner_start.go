package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/quillhq/skillpilot/internal/ptysession"
	"github.com/quillhq/skillpilot/internal/runner"
)

// runnerStart parses "runner start" flags and blocks running a Session
// Runner against one run-dir until it exits (via ctl/stop.json, a lease
// expiry, or a signal). Everything after a bare "--" is the tool argv,
// the way many CLIs separate their own flags from a wrapped command.
func runnerStart(args []string) int {
	var runDir, workDir string
	var heartbeatSeconds int
	var noLease bool
	var bootCommands []string
	var env []string
	var argv []string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--":
			argv = append(argv, args[i+1:]...)
			i = len(args)
		case "--run-dir":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--run-dir requires a value")
				return 1
			}
			runDir = args[i]
		case "--work-dir":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--work-dir requires a value")
				return 1
			}
			workDir = args[i]
		case "--heartbeat-interval-s":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--heartbeat-interval-s requires a value")
				return 1
			}
			n, err := strconv.Atoi(args[i])
			if err != nil || n <= 0 {
				fmt.Fprintf(os.Stderr, "invalid --heartbeat-interval-s value: %q\n", args[i])
				return 1
			}
			heartbeatSeconds = n
		case "--no-lease":
			noLease = true
		case "--boot":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--boot requires a value")
				return 1
			}
			bootCommands = append(bootCommands, args[i])
		case "--env":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--env requires a value")
				return 1
			}
			env = append(env, args[i])
		default:
			fmt.Fprintf(os.Stderr, "unknown arg: %s\n", args[i])
			return 1
		}
	}

	if runDir == "" || len(argv) == 0 {
		fmt.Fprintln(os.Stderr, "--run-dir and a tool argv (after --) are required")
		return 1
	}

	cfg := runner.Config{
		RunDir: runDir,
		Launch: ptysession.Spec{
			Argv:         argv,
			WorkDir:      workDir,
			BootCommands: bootCommands,
			Env:          env,
		},
		EnableLease: !noLease,
		Logger:      newLogger(),
	}
	if heartbeatSeconds > 0 {
		cfg.HeartbeatInterval = time.Duration(heartbeatSeconds) * time.Second
	}

	ctx, cleanup := signalCancelContext()
	defer cleanup()

	r := runner.New(cfg)
	if err := r.Run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("run_dir=%s\nstatus=stopped\n", runDir)
	return 0
}
