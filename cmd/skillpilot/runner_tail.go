package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/quillhq/skillpilot/internal/diskio"
	"github.com/quillhq/skillpilot/internal/protocol"
)

// runnerTail prints the Runner's current state.json and the session's
// combined output log, optionally following the log as the Runner appends
// to it (the disk-as-API analogue of `tail -f` against a process's stdout).
func runnerTail(args []string) int {
	var runDir string
	var follow bool

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--run-dir":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--run-dir requires a value")
				return 1
			}
			runDir = args[i]
		case "--follow", "-f":
			follow = true
		default:
			fmt.Fprintf(os.Stderr, "unknown arg: %s\n", args[i])
			return 1
		}
	}
	if runDir == "" {
		fmt.Fprintln(os.Stderr, "--run-dir is required")
		return 1
	}

	printState(runDir)

	sessionOut := filepath.Join(runDir, "log", "session.out")
	offset, err := printFromStart(sessionOut)
	if err != nil && !os.IsNotExist(err) {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if !follow {
		return 0
	}

	for {
		time.Sleep(200 * time.Millisecond)
		offset, err = printFrom(sessionOut, offset)
		if err != nil && !os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}
}

func printState(runDir string) {
	var st protocol.State
	found, err := diskio.ReadJSON(filepath.Join(runDir, "state", "state.json"), &st)
	if err != nil || !found {
		return
	}
	fmt.Printf("phase=%s session_id=%s tool_pid=%d current_request_id=%s updated_at=%s\n",
		st.Phase, st.SessionID, st.ToolPID, st.CurrentRequestID, st.UpdatedAt)
}

func printFromStart(path string) (int64, error) {
	return printFrom(path, 0)
}

// printFrom writes path's content from offset onward to stdout and returns
// the new end-of-file offset, tolerating a file that has not been created
// yet (offset stays 0).
func printFrom(path string, offset int64) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return offset, nil
		}
		return offset, err
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return offset, err
	}
	n, err := io.Copy(os.Stdout, f)
	if err != nil {
		return offset, err
	}
	return offset + n, nil
}
