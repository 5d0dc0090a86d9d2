package protocol

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Contract is the declarative statement of output artifacts a skill
// must produce. Authored as YAML by skill authors; it is the only YAML
// document in the wire protocol, everything else is JSON.
type Contract struct {
	SchemaVersion string              `yaml:"schema_version" json:"schema_version"`
	Name          string              `yaml:"name" json:"name"`
	Version       string              `yaml:"version" json:"version"`
	Tool          string              `yaml:"tool,omitempty" json:"tool,omitempty"`
	Description   string              `yaml:"description,omitempty" json:"description,omitempty"`
	Scripts       []ContractScript    `yaml:"scripts,omitempty" json:"scripts,omitempty"`
	Outputs       ContractOutputs     `yaml:"outputs" json:"outputs"`
	DebugHints    []string            `yaml:"debug_hints,omitempty" json:"debug_hints,omitempty"`
}

type ContractScript struct {
	Name  string `yaml:"name" json:"name"`
	Entry string `yaml:"entry" json:"entry"`
}

type ContractOutputs struct {
	Required []RequiredOutput `yaml:"required" json:"required"`
}

// RequiredOutput pairs a glob pattern (rooted at reports/) with a
// non-emptiness requirement.
type RequiredOutput struct {
	Path        string `yaml:"path" json:"path"`
	NonEmpty    bool   `yaml:"non_empty" json:"non_empty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// LoadContract reads and parses a Contract from a YAML file on disk.
// Static structural validation is the contract validator's job
// (internal/contract), not done here.
func LoadContract(path string) (*Contract, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("protocol: read contract %s: %w", path, err)
	}
	var c Contract
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("protocol: parse contract %s: %w", path, err)
	}
	if c.SchemaVersion == "" {
		c.SchemaVersion = SchemaVersion
	}
	return &c, nil
}
