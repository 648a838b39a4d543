package protocol

import "github.com/hashicorp/hcl/v2"

// protocolFile is the root decode target for one protocol definition file.
type protocolFile struct {
	Experiments []*experimentBlock `hcl:"experiment,block"`
}

type experimentBlock struct {
	Label       string       `hcl:"label,label"`
	Name        string       `hcl:"name"`
	Owner       string       `hcl:"owner,optional"`
	SharedWith  []string     `hcl:"shared_with,optional"`
	Description string       `hcl:"description,optional"`
	Steps       []*stepBlock `hcl:"step,block"`
}

// stepBlock keeps duration as a string and metadata as a raw expression; both
// are validated during translation so a broken file fails with diagnostics
// instead of a half-built experiment.
type stepBlock struct {
	Label     string         `hcl:"label,label"`
	Name      string         `hcl:"name"`
	Duration  string         `hcl:"duration"`
	Type      string         `hcl:"type"`
	DependsOn []string       `hcl:"depends_on,optional"`
	Resource  string         `hcl:"resource,optional"`
	Notes     string         `hcl:"notes,optional"`
	Metadata  hcl.Expression `hcl:"metadata,optional"`
}
