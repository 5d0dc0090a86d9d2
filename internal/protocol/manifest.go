package protocol

// Manifest is the single-source-of-truth for one job: design resolution,
// skill identity, final status and artifact pointers. Overwritten
// atomically on every phase transition — never partially mutated.
type Manifest struct {
	SchemaVersion string          `json:"schema_version"`
	JobID         string          `json:"job_id"`
	CreatedAt     string          `json:"created_at"`
	Status        string          `json:"status"` // RUNNING | PASS | FAIL | NEEDS_SELECTION
	ErrorType     ErrorType       `json:"error_type"`
	Runtime       ManifestRuntime `json:"runtime"`
	Design        *ManifestDesign `json:"design,omitempty"`
	Skill         *ManifestSkill  `json:"skill,omitempty"`
	Artifacts     ManifestArtifacts `json:"artifacts"`
}

type ManifestRuntime struct {
	CWD    string `json:"cwd"`
	RunDir string `json:"run_dir"`
}

type ManifestDesign struct {
	Query         string              `json:"query"`
	DesignPath    string              `json:"design_path"`
	DesignDataPath string             `json:"design_data_path"`
	LocatorMode   string              `json:"locator_mode"`
	SelectionReason string            `json:"selection_reason,omitempty"`
	Candidates    []LocatorCandidate  `json:"candidates,omitempty"`
}

type LocatorCandidate struct {
	Path  string `json:"path"`
	MTime string `json:"mtime"`
	Size  int64  `json:"size"`
}

type ManifestSkill struct {
	Name         string `json:"name"`
	Version      string `json:"version"`
	ContractPath string `json:"contract_path"`
}

type ManifestArtifacts struct {
	Timeline        string `json:"timeline,omitempty"`
	SummaryJSON      string `json:"summary_json,omitempty"`
	SummaryMD        string `json:"summary_md,omitempty"`
	ReportsDir       string `json:"reports_dir,omitempty"`
	SessionDir       string `json:"session_dir,omitempty"`
	DebugBundleDir   string `json:"debug_bundle_dir,omitempty"`
}

// NewManifest builds a freshly-started manifest with status=RUNNING.
func NewManifest(jobID, cwd, runDir string) *Manifest {
	return &Manifest{
		SchemaVersion: SchemaVersion,
		JobID:         jobID,
		CreatedAt:     NowISO8601(),
		Status:        "RUNNING",
		ErrorType:     ErrorNone,
		Runtime:       ManifestRuntime{CWD: cwd, RunDir: runDir},
		Artifacts: ManifestArtifacts{
			Timeline:   "job_timeline.jsonl",
			SummaryJSON: "summary.json",
			SummaryMD:   "summary.md",
			ReportsDir:  "reports",
			SessionDir:  "session",
		},
	}
}

// SetStatus overwrites the manifest's terminal status fields in place.
func (m *Manifest) SetStatus(status string, errType ErrorType) {
	m.Status = status
	m.ErrorType = errType
}
