package contract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/quillhq/skillpilot/internal/protocol"
)

func sampleContract() *protocol.Contract {
	return &protocol.Contract{
		SchemaVersion: protocol.SchemaVersion,
		Name:          "demo_skill",
		Version:       "1.0",
		Outputs: protocol.ContractOutputs{
			Required: []protocol.RequiredOutput{
				{Path: "reports/summary.txt", NonEmpty: true},
				{Path: "reports/logs/*.log", NonEmpty: false},
			},
		},
		DebugHints: []string{"check the tool log", "verify the design was restored"},
	}
}

func TestValidateStatic_OK(t *testing.T) {
	if err := ValidateStatic(sampleContract()); err != nil {
		t.Fatalf("expected valid contract, got %v", err)
	}
}

func TestValidateStatic_EmptyRequiredOutputs(t *testing.T) {
	c := sampleContract()
	c.Outputs.Required = nil
	if err := ValidateStatic(c); err == nil {
		t.Fatal("expected error for empty required_outputs")
	}
}

func TestValidateStatic_PathNotRootedAtReports(t *testing.T) {
	c := sampleContract()
	c.Outputs.Required[0].Path = "out/summary.txt"
	if err := ValidateStatic(c); err == nil {
		t.Fatal("expected error for path outside reports/")
	}
}

func TestValidateStatic_PathTraversal(t *testing.T) {
	c := sampleContract()
	c.Outputs.Required[0].Path = "reports/../secret"
	if err := ValidateStatic(c); err == nil {
		t.Fatal("expected error for path traversal")
	}
}

func TestValidateStatic_AbsolutePath(t *testing.T) {
	c := sampleContract()
	c.Outputs.Required[0].Path = "/etc/passwd"
	if err := ValidateStatic(c); err == nil {
		t.Fatal("expected error for absolute path")
	}
}

func TestValidateStatic_TooFewDebugHints(t *testing.T) {
	c := sampleContract()
	c.DebugHints = []string{"only one"}
	if err := ValidateStatic(c); err == nil {
		t.Fatal("expected error for too few debug hints")
	}
}

func TestValidateRuntime_Missing(t *testing.T) {
	dir := t.TempDir()
	res := ValidateRuntime(sampleContract(), dir)
	if res.Outcome != OutcomeMissing {
		t.Fatalf("expected OUTPUT_MISSING, got %s", res.Outcome)
	}
}

func TestValidateRuntime_Empty(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "summary.txt"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	res := ValidateRuntime(sampleContract(), dir)
	if res.Outcome != OutcomeEmpty {
		t.Fatalf("expected OUTPUT_EMPTY, got %s (%s)", res.Outcome, res.Reason)
	}
}

func TestValidateRuntime_OK(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "summary.txt"), []byte("done"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "logs"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "logs", "run.log"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	res := ValidateRuntime(sampleContract(), dir)
	if res.Outcome != OutcomeOK {
		t.Fatalf("expected OK, got %s (%s)", res.Outcome, res.Reason)
	}
}

func TestValidateRuntime_MissingDominatesEmpty(t *testing.T) {
	dir := t.TempDir()
	// missing.txt is declared first and absent; summary.txt is declared
	// second and zero-byte. Both MISSING and EMPTY apply, and the first
	// failure in declaration order (MISSING) must win.
	c := sampleContract()
	c.Outputs.Required = []protocol.RequiredOutput{
		{Path: "reports/missing.txt", NonEmpty: true},
		{Path: "reports/summary.txt", NonEmpty: true},
	}
	if err := os.WriteFile(filepath.Join(dir, "summary.txt"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	res := ValidateRuntime(c, dir)
	if res.Outcome != OutcomeMissing || res.Failing != "reports/missing.txt" {
		t.Fatalf("expected MISSING on first declared output, got %s/%s", res.Outcome, res.Failing)
	}
}
