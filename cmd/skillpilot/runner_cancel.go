package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/quillhq/skillpilot/internal/diskio"
	"github.com/quillhq/skillpilot/internal/protocol"
)

// runnerCancel writes ctl/cancel.json for a peer "runner start" process to
// pick up on its next poll tick. With --request-id it targets that specific
// request (BY_ID); without it, it targets whatever is currently in flight
// (CURRENT) — a no-op if the Runner happens to be idle.
func runnerCancel(args []string) int {
	var runDir, requestID string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--run-dir":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--run-dir requires a value")
				return 1
			}
			runDir = args[i]
		case "--request-id":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--request-id requires a value")
				return 1
			}
			requestID = args[i]
		default:
			fmt.Fprintf(os.Stderr, "unknown arg: %s\n", args[i])
			return 1
		}
	}
	if runDir == "" {
		fmt.Fprintln(os.Stderr, "--run-dir is required")
		return 1
	}

	sig := protocol.CancelSignal{Scope: protocol.CancelScopeCurrent}
	if requestID != "" {
		sig.Scope = protocol.CancelScopeByID
		sig.RequestID = requestID
	}

	path := filepath.Join(runDir, "ctl", "cancel.json")
	if _, err := diskio.WriteAtomicJSON(path, sig); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("cancel_written=%s scope=%s\n", path, sig.Scope)
	return 0
}
