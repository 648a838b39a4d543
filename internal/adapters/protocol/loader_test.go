package protocol

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/benchtop/internal/domain"
)

const dishProtocol = `
experiment "dish_1" {
  name        = "Dish 1 Processing"
  owner       = "mark"
  shared_with = ["ava"]
  description = "Standard treatment and imaging pass."

  step "pretreat" {
    name     = "Pretreat D1"
    duration = "30m"
    type     = "fixed_duration"
  }

  step "treat" {
    name       = "Treat D1"
    duration   = "1h"
    type       = "fixed_duration"
    depends_on = ["pretreat"]
  }

  step "wash" {
    name       = "Wash D1"
    duration   = "4m"
    type       = "task"
    depends_on = ["treat"]
    notes      = "Two rinse cycles with PBS."
  }

  step "recover" {
    name       = "Recovery"
    duration   = "1h"
    type       = "fixed_start"
    depends_on = ["wash"]
  }

  step "image_setup" {
    name       = "Imaging Setup"
    duration   = "5m"
    type       = "task"
    depends_on = ["recover"]
  }

  step "image_capture" {
    name       = "Image Capture"
    duration   = "20m"
    type       = "automated_task"
    depends_on = ["image_setup"]
    resource   = "microscope"
    metadata = {
      magnification = 40
      channels      = ["dapi", "gfp"]
    }
  }
}
`

func newTestLoader() *Loader {
	return NewLoader(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func writeProtocol(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func stepByName(t *testing.T, experiment *domain.Experiment, name string) *domain.Step {
	t.Helper()
	for _, step := range experiment.Steps {
		if step.Name == name {
			return step
		}
	}
	t.Fatalf("step %q not found in experiment %q", name, experiment.Name)
	return nil
}

func TestLoaderDishFixture(t *testing.T) {
	path := writeProtocol(t, t.TempDir(), "dish_1.hcl", dishProtocol)

	experiments, err := newTestLoader().LoadFile(path)
	require.NoError(t, err)
	require.Len(t, experiments, 1)

	experiment := experiments[0]
	assert.Equal(t, "Dish 1 Processing", experiment.Name)
	assert.Equal(t, "mark", experiment.Owner)
	assert.Equal(t, []string{"ava"}, experiment.SharedWith)
	assert.Equal(t, "Standard treatment and imaging pass.", experiment.Description)
	require.Len(t, experiment.Steps, 6)

	pretreat := stepByName(t, experiment, "Pretreat D1")
	assert.Equal(t, domain.StepTypeFixedDuration, pretreat.Type)
	assert.Equal(t, 30*time.Minute, pretreat.Duration)
	assert.Empty(t, pretreat.Dependencies)
	assert.Equal(t, domain.StepStatusPending, pretreat.Status)

	treat := stepByName(t, experiment, "Treat D1")
	require.Len(t, treat.Dependencies, 1)
	assert.Equal(t, pretreat.ID, treat.Dependencies[0], "dependency labels must be rewritten to generated ids")

	wash := stepByName(t, experiment, "Wash D1")
	assert.Equal(t, domain.StepTypeTask, wash.Type)
	assert.Equal(t, domain.ResourceUserAttention, wash.ResourceNeeded)
	assert.Equal(t, "Two rinse cycles with PBS.", wash.Notes)
	assert.Equal(t, []string{treat.ID}, wash.Dependencies)

	recovery := stepByName(t, experiment, "Recovery")
	assert.Equal(t, domain.StepTypeFixedStart, recovery.Type)

	capture := stepByName(t, experiment, "Image Capture")
	assert.Equal(t, domain.StepTypeAutomatedTask, capture.Type)
	assert.Equal(t, "microscope", capture.ResourceNeeded)
	assert.Equal(t, []string{stepByName(t, experiment, "Imaging Setup").ID}, capture.Dependencies)
	assert.EqualValues(t, 40, capture.Metadata["magnification"])
	assert.Equal(t, []interface{}{"dapi", "gfp"}, capture.Metadata["channels"])
}

func TestLoaderRejectsUnknownDependency(t *testing.T) {
	content := `
experiment "broken" {
  name = "Broken"

  step "wash" {
    name       = "Wash"
    duration   = "4m"
    type       = "task"
    depends_on = ["missing"]
  }
}
`
	path := writeProtocol(t, t.TempDir(), "broken.hcl", content)

	_, err := newTestLoader().LoadFile(path)
	require.Error(t, err)
	assert.ErrorContains(t, err, "Unknown dependency label")
	assert.ErrorContains(t, err, `"missing"`)
}

func TestLoaderRejectsBadDuration(t *testing.T) {
	content := `
experiment "broken" {
  name = "Broken"

  step "wash" {
    name     = "Wash"
    duration = "soon"
    type     = "task"
  }
}
`
	path := writeProtocol(t, t.TempDir(), "broken.hcl", content)

	_, err := newTestLoader().LoadFile(path)
	require.Error(t, err)
	assert.ErrorContains(t, err, "Invalid step duration")
}

func TestLoaderRejectsUnknownType(t *testing.T) {
	content := `
experiment "broken" {
  name = "Broken"

  step "wash" {
    name     = "Wash"
    duration = "4m"
    type     = "interpretive_dance"
  }
}
`
	path := writeProtocol(t, t.TempDir(), "broken.hcl", content)

	_, err := newTestLoader().LoadFile(path)
	require.Error(t, err)
	assert.ErrorContains(t, err, "Unknown step type")
}

func TestLoaderRejectsDuplicateLabel(t *testing.T) {
	content := `
experiment "broken" {
  name = "Broken"

  step "wash" {
    name     = "Wash"
    duration = "4m"
    type     = "task"
  }

  step "wash" {
    name     = "Wash Again"
    duration = "5m"
    type     = "task"
  }
}
`
	path := writeProtocol(t, t.TempDir(), "broken.hcl", content)

	_, err := newTestLoader().LoadFile(path)
	require.Error(t, err)
	assert.ErrorContains(t, err, "Duplicate step label")
}

func TestLoaderRejectsSelfDependency(t *testing.T) {
	content := `
experiment "broken" {
  name = "Broken"

  step "wash" {
    name       = "Wash"
    duration   = "4m"
    type       = "task"
    depends_on = ["wash"]
  }
}
`
	path := writeProtocol(t, t.TempDir(), "broken.hcl", content)

	_, err := newTestLoader().LoadFile(path)
	require.Error(t, err)
	assert.ErrorContains(t, err, "Self dependency")
}

func TestLoaderRejectsMalformedFile(t *testing.T) {
	path := writeProtocol(t, t.TempDir(), "broken.hcl", `experiment "x" {`)

	_, err := newTestLoader().LoadFile(path)
	require.Error(t, err)
}

func TestLoaderLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeProtocol(t, dir, "b_second.hcl", `
experiment "second" {
  name = "Second"

  step "only" {
    name     = "Only"
    duration = "5m"
    type     = "task"
  }
}
`)
	writeProtocol(t, dir, "a_first.hcl", `
experiment "first" {
  name = "First"

  step "only" {
    name     = "Only"
    duration = "5m"
    type     = "task"
  }
}
`)
	writeProtocol(t, dir, "notes.txt", "not a protocol")

	experiments, err := newTestLoader().LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, experiments, 2)
	assert.Equal(t, "First", experiments[0].Name)
	assert.Equal(t, "Second", experiments[1].Name)

	_, err = newTestLoader().LoadDir(filepath.Join(dir, "missing"))
	require.Error(t, err)
}
