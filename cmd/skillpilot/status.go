package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/quillhq/skillpilot/internal/protocol"
)

// statusCmd prints the terminal disposition of a job by reading back its
// manifest: status and error_type are the two fields a driver keys on.
// The raw bytes are schema-validated before unmarshalling, since the
// manifest may have been written by a different version of this binary.
func statusCmd(args []string) int {
	var runDir string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--run-dir":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--run-dir requires a value")
				return 1
			}
			runDir = args[i]
		default:
			fmt.Fprintf(os.Stderr, "unknown arg: %s\n", args[i])
			return 1
		}
	}
	if runDir == "" {
		fmt.Fprintln(os.Stderr, "--run-dir is required")
		return 1
	}

	path := filepath.Join(runDir, "job_manifest.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if err := protocol.ValidateManifestJSON(raw); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	var m protocol.Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	fmt.Printf("job_id=%s status=%s error_type=%s\n", m.JobID, m.Status, m.ErrorType)
	if m.Status == "FAIL" {
		fmt.Printf("debug_bundle=%s\n", filepath.Join(runDir, "debug_bundle", "index.json"))
		return 1
	}
	return 0
}
