package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/quillhq/skillpilot/internal/orchestrator"
	"github.com/quillhq/skillpilot/internal/ptysession"
)

// skillFile is the on-disk YAML form of an already-reduced skill: an
// ordered list of (action, args, timeout) triples plus identity. The
// richer Markdown authoring surface reduces to this before it ever
// reaches the orchestrator.
type skillFile struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Steps   []struct {
		Action   string            `yaml:"action"`
		Args     map[string]string `yaml:"args"`
		TimeoutS int               `yaml:"timeout_s"`
	} `yaml:"steps"`
}

func loadSkill(path, contractPath string) (orchestrator.Skill, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return orchestrator.Skill{}, fmt.Errorf("read skill %s: %w", path, err)
	}
	var sf skillFile
	if err := yaml.Unmarshal(b, &sf); err != nil {
		return orchestrator.Skill{}, fmt.Errorf("parse skill %s: %w", path, err)
	}
	if sf.Name == "" {
		return orchestrator.Skill{}, fmt.Errorf("skill %s: name is required", path)
	}
	if len(sf.Steps) == 0 {
		return orchestrator.Skill{}, fmt.Errorf("skill %s: at least one step is required", path)
	}
	sk := orchestrator.Skill{
		Name:         sf.Name,
		Version:      sf.Version,
		ContractPath: contractPath,
	}
	for _, st := range sf.Steps {
		if st.Action == "" {
			return orchestrator.Skill{}, fmt.Errorf("skill %s: step with empty action", path)
		}
		sk.Steps = append(sk.Steps, orchestrator.Step{Action: st.Action, Args: st.Args, TimeoutS: st.TimeoutS})
	}
	return sk, nil
}

// orchestrateCmd drives one full job: locate the design, start a session,
// restore, run the skill's steps, validate outputs, summarize. Exit 0 on
// PASS; 1 otherwise. A NEEDS_SELECTION pause prints the candidate paths so
// the caller can re-invoke with --select.
func orchestrateCmd(args []string) int {
	var cwd, runDir, skillPath, contractPath, query, selection string
	var bootCommands []string
	var argv []string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--":
			argv = append(argv, args[i+1:]...)
			i = len(args)
		case "--cwd":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--cwd requires a value")
				return 1
			}
			cwd = args[i]
		case "--run-dir":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--run-dir requires a value")
				return 1
			}
			runDir = args[i]
		case "--skill":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--skill requires a value")
				return 1
			}
			skillPath = args[i]
		case "--contract":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--contract requires a value")
				return 1
			}
			contractPath = args[i]
		case "--query":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--query requires a value")
				return 1
			}
			query = args[i]
		case "--select":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--select requires a value")
				return 1
			}
			selection = args[i]
		case "--boot":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--boot requires a value")
				return 1
			}
			bootCommands = append(bootCommands, args[i])
		default:
			fmt.Fprintf(os.Stderr, "unknown arg: %s\n", args[i])
			return 1
		}
	}

	if cwd == "" || runDir == "" || skillPath == "" || contractPath == "" {
		fmt.Fprintln(os.Stderr, "--cwd, --run-dir, --skill and --contract are required")
		return 1
	}
	if len(argv) == 0 {
		fmt.Fprintln(os.Stderr, "a tool argv (after --) is required")
		return 1
	}

	skill, err := loadSkill(skillPath, contractPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	cfg := orchestrator.Config{
		RunDir:   runDir,
		CWD:      cwd,
		Query:    query,
		Explicit: selection,
		Skill:    skill,
		Launch: ptysession.Spec{
			Argv:         argv,
			WorkDir:      cwd,
			BootCommands: bootCommands,
		},
		EnableLease: true,
		Logger:      newLogger(),
	}

	ctx, cleanup := signalCancelContext()
	defer cleanup()

	o := orchestrator.New(cfg)
	res, err := o.Run(ctx)

	switch res.Outcome {
	case orchestrator.OutcomePass:
		fmt.Printf("status=PASS manifest=%s summary=%s\n", res.ManifestPath, res.SummaryPath)
		return 0
	case orchestrator.OutcomeNeedsSelection:
		fmt.Println("status=NEEDS_SELECTION")
		for _, c := range res.Candidates {
			fmt.Printf("candidate=%s mtime=%s size=%d\n", c.Path, c.MTime, c.Size)
		}
		fmt.Fprintln(os.Stderr, "multiple designs matched; re-run with --select <path>")
		return 1
	default:
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
		fmt.Printf("status=FAIL error_type=%s manifest=%s\n", res.ErrorType, res.ManifestPath)
		return 1
	}
}
