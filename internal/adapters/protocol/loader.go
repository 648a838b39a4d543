package protocol

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/eleven-am/benchtop/internal/codec"
	"github.com/eleven-am/benchtop/internal/domain"
)

// Loader parses declarative protocol files into experiments ready for
// registration. Step labels are file-local symbolic names: every step gets a
// generated id and depends_on labels are rewritten to those ids before the
// experiment leaves the loader.
type Loader struct {
	logger *slog.Logger
	parser *hclparse.Parser
}

func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}

	return &Loader{
		logger: logger.With("component", "protocol-loader"),
		parser: hclparse.NewParser(),
	}
}

// LoadFile parses one protocol file into its experiments. Any parse, decode
// or translation problem fails the whole file.
func (l *Loader) LoadFile(path string) ([]*domain.Experiment, error) {
	file, diags := l.parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse protocol file %s: %w", path, diags)
	}

	experiments, err := l.decode(file)
	if err != nil {
		return nil, fmt.Errorf("protocol file %s: %w", path, err)
	}

	l.logger.Debug("protocol file loaded", "path", path, "experiments", len(experiments))
	return experiments, nil
}

// LoadDir loads every *.hcl file in dir in lexical order and concatenates
// the results.
func (l *Loader) LoadDir(dir string) ([]*domain.Experiment, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read protocol directory %s: %w", dir, err)
	}

	var experiments []*domain.Experiment
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".hcl" {
			continue
		}
		loaded, err := l.LoadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		experiments = append(experiments, loaded...)
	}

	return experiments, nil
}

func (l *Loader) decode(file *hcl.File) ([]*domain.Experiment, error) {
	var root protocolFile
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, diags
	}

	var diags hcl.Diagnostics
	experiments := make([]*domain.Experiment, 0, len(root.Experiments))
	for _, block := range root.Experiments {
		experiment, blockDiags := buildExperiment(block)
		diags = append(diags, blockDiags...)
		if blockDiags.HasErrors() {
			continue
		}
		experiments = append(experiments, experiment)
	}

	if diags.HasErrors() {
		return nil, diags
	}
	return experiments, nil
}

func buildExperiment(block *experimentBlock) (*domain.Experiment, hcl.Diagnostics) {
	var diags hcl.Diagnostics

	experiment := domain.NewExperiment(block.Name, block.Description)
	if block.Owner != "" {
		experiment.WithOwner(block.Owner)
	}
	if len(block.SharedWith) > 0 {
		experiment.WithSharedWith(block.SharedWith...)
	}

	byLabel := make(map[string]*domain.Step, len(block.Steps))
	for _, raw := range block.Steps {
		if _, dup := byLabel[raw.Label]; dup {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Duplicate step label",
				Detail:   fmt.Sprintf("Step %q is defined more than once in experiment %q.", raw.Label, block.Label),
			})
			continue
		}

		step, stepDiags := buildStep(block.Label, raw)
		diags = append(diags, stepDiags...)
		if stepDiags.HasErrors() {
			continue
		}
		byLabel[raw.Label] = step
	}

	// Second pass rewrites dependency labels to generated ids. Cycles are
	// left for the scheduling pass; the loader only rejects what is
	// statically wrong in the file.
	linked := make(map[string]bool, len(block.Steps))
	for _, raw := range block.Steps {
		step, ok := byLabel[raw.Label]
		if !ok || linked[raw.Label] {
			continue
		}
		linked[raw.Label] = true

		for _, dep := range raw.DependsOn {
			if dep == raw.Label {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Self dependency",
					Detail:   fmt.Sprintf("Step %q in experiment %q depends on itself.", raw.Label, block.Label),
				})
				continue
			}
			target, ok := byLabel[dep]
			if !ok {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Unknown dependency label",
					Detail:   fmt.Sprintf("Step %q in experiment %q depends on %q, which is not defined.", raw.Label, block.Label, dep),
				})
				continue
			}
			step.WithDependencies(target.ID)
		}

		experiment.AddStep(step)
	}

	return experiment, diags
}

func buildStep(experimentLabel string, raw *stepBlock) (*domain.Step, hcl.Diagnostics) {
	var diags hcl.Diagnostics

	duration, err := time.ParseDuration(raw.Duration)
	if err != nil || duration <= 0 {
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid step duration",
			Detail: fmt.Sprintf("Step %q in experiment %q has duration %q; expected a positive duration such as \"30m\" or \"1h30m\".",
				raw.Label, experimentLabel, raw.Duration),
		})
	}

	stepType := domain.StepType(raw.Type)
	if !stepType.Valid() {
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Unknown step type",
			Detail: fmt.Sprintf("Step %q in experiment %q has type %q; must be one of fixed_duration, task, fixed_start, automated_task.",
				raw.Label, experimentLabel, raw.Type),
		})
	}

	metadata, metaDiags := decodeMetadata(experimentLabel, raw)
	diags = append(diags, metaDiags...)

	if diags.HasErrors() {
		return nil, diags
	}

	step := domain.NewStep(raw.Name, duration, stepType)
	if raw.Resource != "" {
		step.WithResource(raw.Resource)
	}
	if raw.Notes != "" {
		step.WithNotes(raw.Notes)
	}
	if len(metadata) > 0 {
		step.WithMetadata(metadata)
	}

	return step, nil
}

// decodeMetadata evaluates the metadata expression to a literal value and
// round-trips it through JSON into the step's free-form map.
func decodeMetadata(experimentLabel string, raw *stepBlock) (map[string]interface{}, hcl.Diagnostics) {
	if raw.Metadata == nil {
		return nil, nil
	}

	value, diags := raw.Metadata.Value(nil)
	if diags.HasErrors() {
		return nil, diags
	}
	if value.IsNull() {
		return nil, nil
	}

	payload, err := ctyjson.Marshal(value, value.Type())
	if err != nil {
		return nil, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid step metadata",
			Detail: fmt.Sprintf("Step %q in experiment %q has metadata that cannot be encoded: %s.",
				raw.Label, experimentLabel, err),
			Subject: raw.Metadata.Range().Ptr(),
		}}
	}

	var metadata map[string]interface{}
	if err := codec.Unmarshal(payload, &metadata); err != nil {
		return nil, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid step metadata",
			Detail: fmt.Sprintf("Step %q in experiment %q has metadata that is not an object.",
				raw.Label, experimentLabel),
			Subject: raw.Metadata.Range().Ptr(),
		}}
	}

	return metadata, nil
}
