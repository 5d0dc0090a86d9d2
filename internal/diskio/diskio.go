// Package diskio is the control plane: a small set of pure filesystem
// primitives that give every other component crash-safe, atomic reads
// and writes. Every file visible under a run-dir is either complete
// (post-rename) or absent; partial writes never appear.
package diskio

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zeebo/blake3"
)

// WriteAtomic writes data to path via a same-directory temp file, fsyncs
// it, then renames it into place. Parent directories are created on
// demand. Returns the BLAKE3 content hash of data (hex-encoded), useful
// for result/debug-bundle integrity pointers.
func WriteAtomic(path string, data []byte) (contentHash string, err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("diskio: mkdir %s: %w", dir, err)
	}
	tmp := fmt.Sprintf("%s.tmp.%d", path, os.Getpid())
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("diskio: create temp %s: %w", tmp, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("diskio: write temp %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("diskio: fsync temp %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("diskio: close temp %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("diskio: rename %s -> %s: %w", tmp, path, err)
	}
	return ContentHash(data), nil
}

// WriteAtomicJSON marshals v with a stable two-space indent and writes it
// atomically to path.
func WriteAtomicJSON(path string, v any) (contentHash string, err error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("diskio: marshal %s: %w", path, err)
	}
	return WriteAtomic(path, b)
}

// ContentHash returns the hex-encoded BLAKE3 hash of data.
func ContentHash(data []byte) string {
	sum := blake3.Sum256(data)
	return fmt.Sprintf("%x", sum[:])
}

// HashFile streams path through BLAKE3 and returns the hex-encoded hash.
// Used to stamp result files with an integrity pointer to their (possibly
// large) raw output capture without loading it whole.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("diskio: open %s: %w", path, err)
	}
	defer f.Close()
	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("diskio: hash %s: %w", path, err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// ReadJSON unmarshals path into v. A missing file is success with v
// left untouched and found=false.
func ReadJSON(path string, v any) (found bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("diskio: read %s: %w", path, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return true, fmt.Errorf("diskio: decode %s: %w", path, err)
	}
	return true, nil
}

// ListSorted returns file names directly under dir that start with prefix
// and end with suffix, sorted lexically for deterministic queue scans. A
// missing directory yields an empty slice, not an error.
func ListSorted(dir, prefix, suffix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("diskio: readdir %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if prefix != "" && !strings.HasPrefix(name, prefix) {
			continue
		}
		if suffix != "" && !strings.HasSuffix(name, suffix) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// AppendLine appends line plus a trailing newline to path, opening it
// O_APPEND so concurrent writers never interleave mid-line. Used only for
// the timeline and session.out, the two append-only aggregates in the
// data model.
func AppendLine(path string, line []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("diskio: mkdir %s: %w", filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("diskio: open %s: %w", path, err)
	}
	defer f.Close()
	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, line...)
	buf = append(buf, '\n')
	if _, err := f.Write(buf); err != nil {
		return fmt.Errorf("diskio: append %s: %w", path, err)
	}
	return nil
}

// AppendBytes is like AppendLine but writes raw bytes with no added
// newline, used for streaming tool output into log/session.out.
func AppendBytes(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("diskio: mkdir %s: %w", filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("diskio: open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("diskio: append %s: %w", path, err)
	}
	return nil
}

// Rename atomically moves src to dst. Both must reside on the same
// filesystem — this is how queue -> inflight -> result transitions stay
// atomic without a transaction log.
func Rename(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("diskio: mkdir %s: %w", filepath.Dir(dst), err)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("diskio: rename %s -> %s: %w", src, dst, err)
	}
	return nil
}

// Exists reports whether path exists (regardless of type).
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// RemoveIfExists deletes path, treating a missing file as success — used
// when consuming one-shot control signals.
func RemoveIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("diskio: remove %s: %w", path, err)
	}
	return nil
}
