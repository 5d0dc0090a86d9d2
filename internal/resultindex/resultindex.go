// Package resultindex implements a local, non-authoritative cache that
// accelerates the Runner's idempotency check from an O(n) result/
// directory scan to an O(1) map lookup on long-running sessions with
// thousands of completed requests.
//
// The on-disk snapshot is msgpack-encoded. result/*.json remains the
// single source of truth: a missing or corrupt snapshot triggers a full
// rebuild from result/, never a failure.
package resultindex

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/quillhq/skillpilot/internal/diskio"
	"github.com/quillhq/skillpilot/internal/protocol"
)

// Entry is the minimal per-request record persisted in the snapshot: just
// enough to answer "does a result already exist", plus the status for
// diagnostics.
type Entry struct {
	RequestID string          `msgpack:"request_id"`
	Status    protocol.Status `msgpack:"status"`
}

// Index is an in-memory set of request IDs known to have a result on disk.
type Index struct {
	snapshotPath string
	entries      map[string]Entry
}

// Has reports whether a result already exists for requestID.
func (idx *Index) Has(requestID string) bool {
	if idx == nil {
		return false
	}
	_, ok := idx.entries[requestID]
	return ok
}

// Record adds requestID to the index and persists the snapshot. Errors
// writing the snapshot are non-fatal to the caller — the snapshot is
// advisory, and result/<file>.json having been written is what actually
// matters for idempotency.
func (idx *Index) Record(requestID string, status protocol.Status) error {
	if idx.entries == nil {
		idx.entries = make(map[string]Entry)
	}
	idx.entries[requestID] = Entry{RequestID: requestID, Status: status}
	return idx.save()
}

func (idx *Index) save() error {
	list := make([]Entry, 0, len(idx.entries))
	for _, e := range idx.entries {
		list = append(list, e)
	}
	b, err := msgpack.Marshal(list)
	if err != nil {
		return fmt.Errorf("resultindex: marshal snapshot: %w", err)
	}
	if _, err := diskio.WriteAtomic(idx.snapshotPath, b); err != nil {
		return fmt.Errorf("resultindex: write snapshot: %w", err)
	}
	return nil
}

// Load reads the msgpack snapshot at snapshotPath. If it is absent or
// fails to decode, Load falls back to a full rebuild by scanning every
// result/*.json file in resultDir, so the returned error is advisory: a
// non-nil error still returns a fully usable *Index built from the
// authoritative source.
func Load(snapshotPath, resultDir string) (*Index, error) {
	idx := &Index{snapshotPath: snapshotPath, entries: make(map[string]Entry)}

	b, readErr := os.ReadFile(snapshotPath)
	if readErr == nil {
		var list []Entry
		if err := msgpack.Unmarshal(b, &list); err == nil {
			for _, e := range list {
				idx.entries[e.RequestID] = e
			}
			return idx, nil
		}
	}

	names, err := diskio.ListSorted(resultDir, "cmd_", ".json")
	if err != nil {
		return idx, fmt.Errorf("resultindex: rebuild scan: %w", err)
	}
	for _, name := range names {
		var res protocol.Result
		found, err := diskio.ReadJSON(filepath.Join(resultDir, name), &res)
		if err != nil || !found {
			continue
		}
		idx.entries[res.RequestID] = Entry{RequestID: res.RequestID, Status: res.Status}
	}
	if err := idx.save(); err != nil {
		return idx, fmt.Errorf("resultindex: persist rebuilt snapshot: %w", err)
	}
	return idx, nil
}
