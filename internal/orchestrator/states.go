package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/quillhq/skillpilot/internal/contract"
	"github.com/quillhq/skillpilot/internal/debugbundle"
	"github.com/quillhq/skillpilot/internal/diskio"
	"github.com/quillhq/skillpilot/internal/locator"
	"github.com/quillhq/skillpilot/internal/protocol"
)

func (o *Orchestrator) manifestPath() string {
	return joinRunDir(o.cfg.RunDir, "job_manifest.json")
}

func (o *Orchestrator) writeManifest() {
	if _, err := diskio.WriteAtomicJSON(o.manifestPath(), o.manifest); err != nil {
		o.log.Warn("write manifest", "error", err)
	}
}

// prepareRunDir creates the Orchestrator-owned skeleton and writes the
// initial manifest.
func (o *Orchestrator) prepareRunDir() error {
	o.enterState("PREPARE_RUNDIR")
	if err := ensureRunDirSkeleton(o.cfg.RunDir); err != nil {
		return fmt.Errorf("orchestrator: prepare run-dir: %w", err)
	}
	o.manifest = protocol.NewManifest(o.jobID, o.cfg.CWD, o.cfg.RunDir)
	o.manifest.Skill = &protocol.ManifestSkill{
		Name:         o.cfg.Skill.Name,
		Version:      o.cfg.Skill.Version,
		ContractPath: o.cfg.Skill.ContractPath,
	}
	o.writeManifest()
	o.exitState("PREPARE_RUNDIR", nil)
	return nil
}

// locateDB resolves the design query. An explicit resume selection
// takes precedence over the cwd scan, so a NEEDS_SELECTION pause can be
// resumed by re-invoking with a concrete choice.
func (o *Orchestrator) locateDB() (locator.Result, error) {
	o.enterState("LOCATE_DB")
	loc := locator.New(o.cfg.CWD, o.cfg.ScanDepth)

	query := o.cfg.Query
	if o.cfg.Explicit != "" {
		query = o.cfg.Explicit
	}
	res := loc.Locate(query)
	o.exitState("LOCATE_DB", map[string]any{"outcome": res.Outcome, "reason": res.Reason})
	return res, nil
}

// restoreDB submits the restore request and awaits its ack.
func (o *Orchestrator) restoreDB(ctx context.Context, loc locator.Result) (protocol.ErrorType, string) {
	o.enterState("RESTORE_DB")
	step := Step{
		Action: "restore",
		Args: map[string]string{
			"design": loc.DesignPath,
			"data":   loc.DesignDataPath,
		},
	}
	res, err := o.submitAndAwait(ctx, step)
	if err != nil {
		o.exitState("RESTORE_DB", map[string]any{"error": err.Error()})
		return protocol.ErrorQueueTimeout, err.Error()
	}
	if res.Status != protocol.StatusPass {
		o.exitState("RESTORE_DB", map[string]any{"status": res.Status, "message": res.Message})
		return protocol.ErrorRestoreFail, res.Message
	}
	o.exitState("RESTORE_DB", map[string]any{"status": res.Status})
	return protocol.ErrorNone, ""
}

// runSkill submits the skill's compiled steps in sequence, propagating
// the first non-PASS ack's error_type.
func (o *Orchestrator) runSkill(ctx context.Context) (protocol.ErrorType, string) {
	o.enterState("RUN_SKILL")
	for i, step := range o.cfg.Skill.Steps {
		res, err := o.submitAndAwait(ctx, step)
		if err != nil {
			o.exitState("RUN_SKILL", map[string]any{"step": i, "error": err.Error()})
			return protocol.ErrorQueueTimeout, err.Error()
		}
		if res.Status != protocol.StatusPass {
			errType := res.ErrorType
			if errType == "" || errType == protocol.ErrorNone {
				errType = protocol.ErrorCmdFail
			}
			o.exitState("RUN_SKILL", map[string]any{"step": i, "status": res.Status, "message": res.Message})
			return errType, res.Message
		}
	}
	o.exitState("RUN_SKILL", map[string]any{"steps": len(o.cfg.Skill.Steps)})
	return protocol.ErrorNone, ""
}

// validateOutputs delegates to the contract validator.
func (o *Orchestrator) validateOutputs() (protocol.ErrorType, string) {
	o.enterState("VALIDATE_OUTPUTS")
	c, err := protocol.LoadContract(o.cfg.Skill.ContractPath)
	if err != nil {
		o.exitState("VALIDATE_OUTPUTS", map[string]any{"error": err.Error()})
		return protocol.ErrorContractInvalid, err.Error()
	}
	if err := contract.ValidateStatic(c); err != nil {
		o.exitState("VALIDATE_OUTPUTS", map[string]any{"error": err.Error()})
		return protocol.ErrorContractInvalid, err.Error()
	}
	res := contract.ValidateRuntime(c, joinRunDir(o.cfg.RunDir, "reports"))
	o.exitState("VALIDATE_OUTPUTS", map[string]any{"outcome": res.Outcome, "reason": res.Reason})
	if res.Outcome != contract.OutcomeOK {
		return res.ErrorType(), res.Reason
	}
	return protocol.ErrorNone, ""
}

// summarize writes summary.json and its human-readable summary.md
// counterpart.
func (o *Orchestrator) summarize() (string, error) {
	o.enterState("SUMMARIZE")
	design := protocol.ManifestDesign{}
	if o.manifest.Design != nil {
		design = *o.manifest.Design
	}
	skill := protocol.ManifestSkill{}
	if o.manifest.Skill != nil {
		skill = *o.manifest.Skill
	}
	summary := &protocol.Summary{
		SchemaVersion: protocol.SchemaVersion,
		JobID:         o.jobID,
		Status:        "PASS",
		ErrorType:     protocol.ErrorNone,
		Design:        design,
		Skill:         skill,
		Evidence: protocol.SummaryEvidence{
			RunDir:     o.cfg.RunDir,
			SummaryMD:  filepath.Join(o.cfg.RunDir, "summary.md"),
			ReportsDir: joinRunDir(o.cfg.RunDir, "reports"),
		},
	}
	summaryPath := joinRunDir(o.cfg.RunDir, "summary.json")
	if _, err := diskio.WriteAtomicJSON(summaryPath, summary); err != nil {
		return "", fmt.Errorf("orchestrator: write summary.json: %w", err)
	}
	mdPath := joinRunDir(o.cfg.RunDir, "summary.md")
	if _, err := diskio.WriteAtomic(mdPath, []byte(summary.RenderMarkdown("", ""))); err != nil {
		return "", fmt.Errorf("orchestrator: write summary.md: %w", err)
	}
	o.exitState("SUMMARIZE", nil)
	return summaryPath, nil
}

// fail is the single terminal-FAIL path: overwrite the manifest, invoke
// the Debug Bundle Builder, and return the enclosing Result. Errors from
// the builder itself are logged, never escalated.
func (o *Orchestrator) fail(errType protocol.ErrorType, message string) (Result, error) {
	o.manifest.SetStatus("FAIL", errType)
	o.writeManifest()
	o.failEvent(errType, message)

	if _, err := debugbundle.Build(debugbundle.Input{
		RunDir:       o.cfg.RunDir,
		JobID:        o.jobID,
		ErrorType:    errType,
		Manifest:     o.manifest,
		TimelinePath: o.timelinePath(),
		LastAck:      o.lastAck,
		ReportsDir:   joinRunDir(o.cfg.RunDir, "reports"),
		ContractPath: o.cfg.Skill.ContractPath,
		Notes:        message,
	}); err != nil {
		o.log.Warn("build debug bundle", "error", err)
	}

	return Result{Outcome: OutcomeFail, ErrorType: errType, ManifestPath: o.manifestPath()}, fmt.Errorf("orchestrator: job failed: %s: %s", errType, message)
}
