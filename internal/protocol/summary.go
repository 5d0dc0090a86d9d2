package protocol

import (
	"fmt"
	"strings"
)

// Summary is the final, human- and machine-readable outcome of a job.
type Summary struct {
	SchemaVersion string         `json:"schema_version"`
	JobID         string         `json:"job_id"`
	Status        string         `json:"status"`
	ErrorType     ErrorType      `json:"error_type"`
	Design        ManifestDesign `json:"design"`
	Skill         ManifestSkill  `json:"skill"`
	Metrics       map[string]any `json:"metrics,omitempty"`
	Evidence      SummaryEvidence `json:"evidence"`
}

type SummaryEvidence struct {
	RunDir     string `json:"run_dir"`
	SummaryMD  string `json:"summary_md"`
	ReportsDir string `json:"reports_dir"`
}

// RenderMarkdown produces the summary.md contents: headings and a
// bullet evidence list, no templating engine.
func (s *Summary) RenderMarkdown(findings, risks string) string {
	var b strings.Builder
	fmt.Fprintln(&b, "# Job Summary")
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "## Conclusion")
	fmt.Fprintf(&b, "- **Status**: %s\n", s.Status)
	fmt.Fprintf(&b, "- **Error Type**: %s\n", s.ErrorType)
	fmt.Fprintln(&b)
	if strings.TrimSpace(findings) != "" {
		fmt.Fprintln(&b, "## Key Findings")
		fmt.Fprintln(&b, findings)
		fmt.Fprintln(&b)
	}
	if strings.TrimSpace(risks) != "" {
		fmt.Fprintln(&b, "## Risks / Issues")
		fmt.Fprintln(&b, risks)
		fmt.Fprintln(&b)
	}
	fmt.Fprintln(&b, "## Evidence Paths")
	fmt.Fprintf(&b, "- **run_dir**: `%s`\n", s.Evidence.RunDir)
	fmt.Fprintf(&b, "- **summary.md**: `%s`\n", s.Evidence.SummaryMD)
	fmt.Fprintf(&b, "- **reports_dir**: `%s`\n", s.Evidence.ReportsDir)
	return b.String()
}
