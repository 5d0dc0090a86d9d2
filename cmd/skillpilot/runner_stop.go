package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/quillhq/skillpilot/internal/diskio"
	"github.com/quillhq/skillpilot/internal/protocol"
)

// runnerStop writes ctl/stop.json for a peer "runner start" process.
// GRACEFUL (the default) lets an in-flight request finish before the
// session winds down; --force aborts the current request and tears the
// tool down immediately. Writing a stop for a session that is already
// stopping is harmless: the signal is consumed once and ignored after.
func runnerStop(args []string) int {
	var runDir string
	var force bool

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--run-dir":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--run-dir requires a value")
				return 1
			}
			runDir = args[i]
		case "--force":
			force = true
		default:
			fmt.Fprintf(os.Stderr, "unknown arg: %s\n", args[i])
			return 1
		}
	}
	if runDir == "" {
		fmt.Fprintln(os.Stderr, "--run-dir is required")
		return 1
	}

	sig := protocol.StopSignal{Mode: protocol.StopGraceful}
	if force {
		sig.Mode = protocol.StopForce
	}

	path := filepath.Join(runDir, "ctl", "stop.json")
	if _, err := diskio.WriteAtomicJSON(path, sig); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("stop_written=%s mode=%s\n", path, sig.Mode)
	return 0
}
