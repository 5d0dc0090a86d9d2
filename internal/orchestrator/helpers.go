package orchestrator

import (
	"os"
	"path/filepath"

	"github.com/quillhq/skillpilot/internal/diskio"
	"github.com/quillhq/skillpilot/internal/protocol"
)

func joinRunDir(runDir string, parts ...string) string {
	return filepath.Join(append([]string{runDir}, parts...)...)
}

func fileExists(path string) bool {
	return diskio.Exists(path)
}

func writeStopSignal(path string) error {
	_, err := diskio.WriteAtomicJSON(path, protocol.StopSignal{Mode: protocol.StopGraceful})
	return err
}

// runDirSkeleton lists the directories the Orchestrator owns under a
// run-dir. The Runner creates queue/inflight/result/output/log/ctl/
// state/session on its own STARTING entry; scripts/ and reports/ are
// Orchestrator-side, and debug_bundle/ appears only on FAIL.
var runDirSkeleton = []string{
	"scripts", "reports",
}

func ensureRunDirSkeleton(runDir string) error {
	for _, d := range runDirSkeleton {
		if err := os.MkdirAll(filepath.Join(runDir, d), 0o755); err != nil {
			return err
		}
	}
	return nil
}
