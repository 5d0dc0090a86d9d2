package locator

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path string, data string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLocate_MultiCandidate(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "a", "AAA.enc"), "x")
	writeFile(t, filepath.Join(cwd, "a", "AAA.enc.dat"), "x")
	writeFile(t, filepath.Join(cwd, "b", "AAA.enc"), "x")
	writeFile(t, filepath.Join(cwd, "b", "AAA.enc.dat"), "x")

	res := New(cwd, 0).Locate("AAA")
	if res.Outcome != OutcomeNeedsSelect {
		t.Fatalf("expected NEEDS_SELECTION, got %s (%s)", res.Outcome, res.Reason)
	}
	if len(res.Candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(res.Candidates))
	}
}

func TestLocate_UniqueScanResult(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "only", "BBB.enc"), "x")
	writeFile(t, filepath.Join(cwd, "only", "BBB.enc.dat"), "x")

	res := New(cwd, 0).Locate("BBB")
	if res.Outcome != OutcomeLocated {
		t.Fatalf("expected LOCATED, got %s (%s)", res.Outcome, res.Reason)
	}
	if res.DesignDataPath == "" {
		t.Fatal("expected design data path to be resolved")
	}
}

func TestLocate_NoCandidates(t *testing.T) {
	cwd := t.TempDir()
	res := New(cwd, 0).Locate("NOPE")
	if res.Outcome != OutcomeNotFound || res.Reason != "no_candidates" {
		t.Fatalf("expected NOT_FOUND/no_candidates, got %s/%s", res.Outcome, res.Reason)
	}
}

func TestLocate_ExplicitPathMissing(t *testing.T) {
	cwd := t.TempDir()
	res := New(cwd, 0).Locate("./missing.enc")
	if res.Outcome != OutcomeNotFound || res.Reason != "explicit_path_not_found" {
		t.Fatalf("expected explicit_path_not_found, got %s/%s", res.Outcome, res.Reason)
	}
}

func TestLocate_ExplicitPathMissingCompanion(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "solo.enc"), "x")

	res := New(cwd, 0).Locate("./solo.enc")
	if res.Outcome != OutcomeNotFound || res.Reason != "enc_dat_missing" {
		t.Fatalf("expected enc_dat_missing, got %s/%s", res.Outcome, res.Reason)
	}
}

func TestLocate_ExplicitDirectMatch(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "solo.enc"), "x")
	writeFile(t, filepath.Join(cwd, "solo.enc.dat"), "x")

	res := New(cwd, 0).Locate("./solo.enc")
	if res.Outcome != OutcomeLocated || res.Reason != "direct_match" {
		t.Fatalf("expected direct_match, got %s/%s", res.Outcome, res.Reason)
	}
}

func TestLocate_RespectsScanDepth(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "a", "b", "c", "d", "DEEP.enc"), "x")
	writeFile(t, filepath.Join(cwd, "a", "b", "c", "d", "DEEP.enc.dat"), "x")

	res := New(cwd, 2).Locate("DEEP")
	if res.Outcome != OutcomeNotFound {
		t.Fatalf("expected a file beyond scan depth to be invisible, got %s", res.Outcome)
	}
}
