package ports

import (
	"context"
	"time"

	"github.com/eleven-am/benchtop/internal/domain"
)

type SchedulerPort interface {
	Start(ctx context.Context) error
	Stop() error

	AddExperiment(experiment *domain.Experiment) error

	GetStep(id string) (*domain.Step, error)
	AllSteps() []*domain.Step
	UpcomingSteps(window time.Duration) []*domain.Step
	Experiments() []*domain.Experiment

	StartStep(id string, at *time.Time) error
	PauseStep(id string) error
	CompleteStep(id string, at *time.Time) error
	OverrideStep(id string, status domain.StepStatus) error

	// CalculateInitialSchedule places every step that has not yet run
	// relative to base (zero base means now). A cycle surfaces as
	// *domain.CycleError while the rest of the pass still applies.
	CalculateInitialSchedule(base time.Time) (*domain.ScheduleReport, error)

	CheckForConflicts() []domain.ResourceConflict
	CheckTimeouts() []*domain.Step
}
