// Package debugbundle assembles, for every terminal FAIL, a minimal
// reproducible evidence snapshot under debug_bundle/. It never fails the
// job further: missing sources are simply omitted.
package debugbundle

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/quillhq/skillpilot/internal/diskio"
	"github.com/quillhq/skillpilot/internal/protocol"
)

// TailLines is the number of trailing lines captured from each known
// session log.
const TailLines = 2000

// KnownSessionLogs are the log files the builder attempts to tail. Not all
// of them exist for every run-dir layout (tool.stdout.log/stderr.log are
// only produced by adapters that split stdout/stderr instead of sharing
// one PTY stream) — a missing file is skipped, never an error.
var KnownSessionLogs = []string{
	filepath.Join("log", "session.out"),
	filepath.Join("session", "supervisor.log"),
	filepath.Join("session", "tool.stdout.log"),
	filepath.Join("session", "tool.stderr.log"),
}

// Input bundles everything the builder may draw evidence from. Every field
// is optional; a zero value simply means that source is omitted from the
// bundle.
type Input struct {
	RunDir       string
	JobID        string
	ErrorType    protocol.ErrorType
	Manifest     *protocol.Manifest
	TimelinePath string
	LastAck      *protocol.Result
	ReportsDir   string
	ContractPath string
	Notes        string
}

// Build assembles debug_bundle/ under input.RunDir and returns the
// written index. Errors encountered copying individual sources surface
// as absent pointers in the index rather than propagating; the builder
// must never make a failing job fail harder.
func Build(input Input) (*protocol.DebugBundleIndex, error) {
	bundleDir := filepath.Join(input.RunDir, "debug_bundle")
	if err := os.MkdirAll(bundleDir, 0o755); err != nil {
		return nil, fmt.Errorf("debugbundle: mkdir %s: %w", bundleDir, err)
	}

	pointers := make(map[string]string)
	hashes := make(map[string]string)
	record := func(key, path, hash string, ok bool) {
		if !ok {
			return
		}
		pointers[key] = path
		if hash != "" {
			hashes[key] = hash
		}
	}

	if input.Manifest != nil {
		path, hash, ok := writeJSONCopy(bundleDir, "manifest.json", input.Manifest)
		record("manifest", path, hash, ok)
	}

	if input.TimelinePath != "" {
		path, hash, ok := copyFile(bundleDir, "job_timeline.jsonl", input.TimelinePath)
		record("timeline", path, hash, ok)
	}

	if input.LastAck != nil {
		path, hash, ok := writeJSONCopy(bundleDir, "last_ack.json", input.LastAck)
		record("last_ack", path, hash, ok)
	}

	for _, rel := range KnownSessionLogs {
		src := filepath.Join(input.RunDir, rel)
		name := strings.ReplaceAll(rel, string(filepath.Separator), "_")
		path, hash, ok := tailFile(bundleDir, name, src, TailLines)
		record(name, path, hash, ok)
	}

	if input.ReportsDir != "" {
		path, hash, ok := writeReportsInventory(bundleDir, input.ReportsDir)
		record("reports_inventory", path, hash, ok)
	}

	if input.ContractPath != "" {
		path, hash, ok := copyFile(bundleDir, filepath.Base(input.ContractPath), input.ContractPath)
		record("contract", path, hash, ok)
	}

	if strings.TrimSpace(input.Notes) != "" {
		notesPath := filepath.Join(bundleDir, "notes.txt")
		if hash, err := diskio.WriteAtomic(notesPath, []byte(input.Notes)); err == nil {
			record("notes", notesPath, hash, true)
		}
	}

	idx := &protocol.DebugBundleIndex{
		SchemaVersion: protocol.SchemaVersion,
		JobID:         input.JobID,
		ErrorType:     input.ErrorType,
		Summary:       summaryFor(input.ErrorType),
		GeneratedAt:   protocol.NowISO8601(),
		Pointers:      pointers,
		ContentHashes: hashes,
		NextActions:   NextActions(input.ErrorType),
	}

	if _, err := diskio.WriteAtomicJSON(filepath.Join(bundleDir, "index.json"), idx); err != nil {
		return idx, fmt.Errorf("debugbundle: write index: %w", err)
	}
	return idx, nil
}

func summaryFor(errType protocol.ErrorType) string {
	return fmt.Sprintf("job terminated with error_type=%s", errType)
}

func writeJSONCopy(bundleDir, name string, v any) (string, string, bool) {
	path := filepath.Join(bundleDir, name)
	hash, err := diskio.WriteAtomicJSON(path, v)
	if err != nil {
		return "", "", false
	}
	return path, hash, true
}

func copyFile(bundleDir, name, src string) (string, string, bool) {
	b, err := os.ReadFile(src)
	if err != nil {
		return "", "", false
	}
	dst := filepath.Join(bundleDir, name)
	hash, err := diskio.WriteAtomic(dst, b)
	if err != nil {
		return "", "", false
	}
	return dst, hash, true
}

// tailFile copies the last n lines of src into bundleDir/name. A missing
// src is silently skipped.
func tailFile(bundleDir, name, src string, n int) (string, string, bool) {
	f, err := os.Open(src)
	if err != nil {
		return "", "", false
	}
	defer f.Close()

	lines, err := tailLines(f, n)
	if err != nil {
		return "", "", false
	}
	dst := filepath.Join(bundleDir, name)
	hash, err := diskio.WriteAtomic(dst, []byte(strings.Join(lines, "\n")))
	if err != nil {
		return "", "", false
	}
	return dst, hash, true
}

// tailLines reads r fully and keeps at most the last n lines. Run-dir logs
// are bounded in practice (one session's worth of PTY output), so reading
// the whole file is acceptable here rather than seeking from the end.
func tailLines(r io.Reader, n int) ([]string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	s := string(b)
	trailing := strings.HasSuffix(s, "\n")
	all := strings.Split(strings.TrimSuffix(s, "\n"), "\n")
	if len(all) > n {
		all = all[len(all)-n:]
	}
	if trailing {
		all = append(all, "")
	}
	return all, nil
}

func writeReportsInventory(bundleDir, reportsDir string) (string, string, bool) {
	var entries []protocol.ReportsInventoryEntry
	_ = filepath.Walk(reportsDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		rel, rerr := filepath.Rel(reportsDir, path)
		if rerr != nil {
			rel = path
		}
		entries = append(entries, protocol.ReportsInventoryEntry{
			Path:  rel,
			Size:  info.Size(),
			MTime: protocol.FormatISO8601(info.ModTime()),
		})
		return nil
	})
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	path := filepath.Join(bundleDir, "reports_inventory.json")
	hash, err := diskio.WriteAtomicJSON(path, entries)
	if err != nil {
		return "", "", false
	}
	return path, hash, true
}
