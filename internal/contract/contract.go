// Package contract implements the contract validator: static structural
// checks on a skill-authored Contract plus runtime glob matching of
// declared required_outputs against a reports directory.
package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/quillhq/skillpilot/internal/protocol"
)

// Outcome is the closed result of a validation pass.
type Outcome string

const (
	OutcomeOK            Outcome = "OK"
	OutcomeMissing       Outcome = "OUTPUT_MISSING"
	OutcomeEmpty         Outcome = "OUTPUT_EMPTY"
	OutcomeInvalid       Outcome = "CONTRACT_INVALID"
)

// Result reports the disposition of one validation pass, plus enough
// detail to populate a debug bundle's next_actions.
type Result struct {
	Outcome Outcome
	Reason  string
	// Failing is the glob pattern (contract-relative, i.e. with the
	// "reports/" prefix) that triggered a non-OK outcome, empty when OK.
	Failing string
}

// MinDebugHints is the static-validation floor: a contract carrying
// fewer than two debug hints is itself structurally defective.
const MinDebugHints = 2

// ValidateStatic performs the pre-run structural checks:
// required_outputs must be non-empty; every path must be rooted at
// "reports/", relative, and free of ".."; and at least MinDebugHints
// debug_hints must be present.
func ValidateStatic(c *protocol.Contract) error {
	if c == nil {
		return fmt.Errorf("contract: nil contract")
	}
	if len(c.Outputs.Required) == 0 {
		return fmt.Errorf("contract: required_outputs must not be empty")
	}
	for _, ro := range c.Outputs.Required {
		if err := validatePath(ro.Path); err != nil {
			return fmt.Errorf("contract: required output %q: %w", ro.Path, err)
		}
	}
	if len(c.DebugHints) < MinDebugHints {
		return fmt.Errorf("contract: need at least %d debug_hints, got %d", MinDebugHints, len(c.DebugHints))
	}
	return nil
}

func validatePath(p string) error {
	if !strings.HasPrefix(p, "reports/") {
		return fmt.Errorf("path must begin with reports/")
	}
	if filepath.IsAbs(p) {
		return fmt.Errorf("path must not be absolute")
	}
	if hasWindowsDriveLetter(p) {
		return fmt.Errorf("path must not carry a drive letter")
	}
	if strings.Contains(p, "..") {
		return fmt.Errorf("path must not contain ..")
	}
	return nil
}

func hasWindowsDriveLetter(p string) bool {
	return len(p) >= 2 && p[1] == ':' && ((p[0] >= 'A' && p[0] <= 'Z') || (p[0] >= 'a' && p[0] <= 'z'))
}

// ValidateRuntime matches each required output's glob against reportsDir.
// Missing dominates Empty when both would apply: the first failure in
// declaration order wins. A glob that matches multiple
// files only passes when all matches satisfy non_empty.
func ValidateRuntime(c *protocol.Contract, reportsDir string) Result {
	for _, ro := range c.Outputs.Required {
		pattern := strings.TrimPrefix(ro.Path, "reports/")
		matches, err := doublestar.Glob(os.DirFS(reportsDir), pattern)
		if err != nil {
			return Result{Outcome: OutcomeInvalid, Reason: fmt.Sprintf("bad glob %q: %v", pattern, err), Failing: ro.Path}
		}
		if len(matches) == 0 {
			return Result{Outcome: OutcomeMissing, Reason: fmt.Sprintf("no file matched %q", ro.Path), Failing: ro.Path}
		}
		if !ro.NonEmpty {
			continue
		}
		for _, m := range matches {
			info, err := os.Stat(filepath.Join(reportsDir, m))
			if err != nil {
				return Result{Outcome: OutcomeMissing, Reason: fmt.Sprintf("matched file vanished: %s", m), Failing: ro.Path}
			}
			if info.Size() == 0 {
				return Result{Outcome: OutcomeEmpty, Reason: fmt.Sprintf("%s is zero-byte", m), Failing: ro.Path}
			}
		}
	}
	return Result{Outcome: OutcomeOK}
}

// ErrorType maps a validation Outcome to the protocol's closed error
// taxonomy, for the Orchestrator to embed in the manifest on FAIL.
func (r Result) ErrorType() protocol.ErrorType {
	switch r.Outcome {
	case OutcomeMissing:
		return protocol.ErrorOutputMissing
	case OutcomeEmpty:
		return protocol.ErrorOutputEmpty
	case OutcomeInvalid:
		return protocol.ErrorContractInvalid
	default:
		return protocol.ErrorNone
	}
}
