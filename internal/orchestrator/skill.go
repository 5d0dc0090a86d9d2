package orchestrator

import (
	"fmt"
	"sort"
	"strings"
)

// Step is one reduced unit of work from the skill authoring format: an
// (action, args, timeout) triple. The Markdown loader that produces
// these lives outside this package; a Skill arrives here already
// reduced.
type Step struct {
	Action   string
	Args     map[string]string
	TimeoutS int
}

// Skill is one compiled playbook: an ordered list of Steps plus the
// contract the produced reports/ artifacts must satisfy.
type Skill struct {
	Name         string
	Version      string
	ContractPath string
	Steps        []Step
}

// CompilePayload formats one Step into the tool's poke dialect,
// "poke::<action> -<arg> <value> ...", with args rendered in
// lexical order so the same Step always produces byte-identical payload
// text.
func (s Step) CompilePayload() string {
	var b strings.Builder
	fmt.Fprintf(&b, "poke::%s", s.Action)
	keys := make([]string, 0, len(s.Args))
	for k := range s.Args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " -%s %s", k, s.Args[k])
	}
	return b.String()
}
