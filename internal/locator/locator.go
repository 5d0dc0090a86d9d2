// Package locator resolves a design query to a concrete
// (design, design_data) file pair, either by trusting an explicit path
// or by scanning the working directory for candidates.
package locator

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DefaultScanDepth bounds the scan: .enc files in directories more than
// three levels below cwd are ignored (the walk still descends into them).
const DefaultScanDepth = 3

// Candidate describes one *.enc file discovered during a scan, mirroring
// the Orchestrator-facing structure in protocol.ManifestDesign.Candidates.
type Candidate struct {
	Path  string
	MTime string
	Size  int64
}

// Outcome is the closed result of one Locate call.
type Outcome string

const (
	OutcomeLocated     Outcome = "LOCATED"
	OutcomeNeedsSelect Outcome = "NEEDS_SELECTION"
	OutcomeNotFound    Outcome = "NOT_FOUND"
)

// Result is what Locate returns. LOCATED sets DesignPath/DesignDataPath
// and a Reason ("direct_match" or "unique_scan_result"; a unique scan
// result also lists its one Candidate); NEEDS_SELECTION sets Candidates;
// NOT_FOUND sets only Reason.
type Result struct {
	Outcome        Outcome
	DesignPath     string
	DesignDataPath string
	Candidates     []Candidate
	Reason         string
}

// Locator resolves design queries against one working directory.
type Locator struct {
	CWD       string
	ScanDepth int
}

// New builds a Locator with DefaultScanDepth applied if depth <= 0.
func New(cwd string, depth int) *Locator {
	if depth <= 0 {
		depth = DefaultScanDepth
	}
	return &Locator{CWD: cwd, ScanDepth: depth}
}

// Locate resolves query to a design pair, choosing explicit-path or
// scan mode from the query's shape.
func (l *Locator) Locate(query string) Result {
	if isExplicitPath(query) {
		return l.locateExplicit(query)
	}
	return l.locateScan(query)
}

// isExplicitPath decides the resolution mode: a path
// separator, a leading "./"/".\\", or a ".enc" suffix all indicate the
// caller means a specific file, not a name to search for.
func isExplicitPath(query string) bool {
	return strings.ContainsAny(query, `/\`) ||
		strings.HasSuffix(query, ".enc") ||
		strings.HasPrefix(query, "./") ||
		strings.HasPrefix(query, `.\`)
}

func (l *Locator) locateExplicit(query string) Result {
	encPath := query
	if !filepath.IsAbs(encPath) {
		encPath = filepath.Join(l.CWD, encPath)
	}
	encPath = filepath.Clean(encPath)

	if _, err := os.Stat(encPath); err != nil {
		return Result{Outcome: OutcomeNotFound, Reason: "explicit_path_not_found"}
	}

	datPath := findEncDat(encPath)
	if datPath == "" {
		return Result{Outcome: OutcomeNotFound, Reason: "enc_dat_missing"}
	}

	return Result{
		Outcome:        OutcomeLocated,
		DesignPath:     encPath,
		DesignDataPath: datPath,
		Reason:         "direct_match",
	}
}

func (l *Locator) locateScan(query string) Result {
	var candidates []Candidate

	root := l.CWD
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if filepath.Ext(path) != ".enc" {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		depth := strings.Count(rel, string(filepath.Separator))
		if depth > l.ScanDepth {
			return nil
		}
		stem := strings.TrimSuffix(filepath.Base(path), ".enc")
		if query != "" && stem != query {
			return nil
		}
		datPath := findEncDat(path)
		if datPath == "" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		candidates = append(candidates, Candidate{
			Path:  path,
			MTime: info.ModTime().UTC().Format(time.RFC3339),
			Size:  info.Size(),
		})
		return nil
	})

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Path < candidates[j].Path })

	switch len(candidates) {
	case 0:
		return Result{Outcome: OutcomeNotFound, Reason: "no_candidates"}
	case 1:
		return Result{
			Outcome:        OutcomeLocated,
			DesignPath:     candidates[0].Path,
			DesignDataPath: findEncDat(candidates[0].Path),
			Candidates:     candidates,
			Reason:         "unique_scan_result",
		}
	default:
		return Result{Outcome: OutcomeNeedsSelect, Candidates: candidates, Reason: "multiple_candidates"}
	}
}

// findEncDat tries both companion-file naming conventions:
// "<enc_path>.dat" and "<stem>.enc.dat" alongside it.
func findEncDat(encPath string) string {
	direct := encPath + ".dat"
	if _, err := os.Stat(direct); err == nil {
		return direct
	}
	stem := strings.TrimSuffix(filepath.Base(encPath), ".enc")
	alt := filepath.Join(filepath.Dir(encPath), stem+".enc.dat")
	if _, err := os.Stat(alt); err == nil {
		return alt
	}
	return ""
}
