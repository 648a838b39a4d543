package domain

import (
	"time"

	"github.com/google/uuid"
)

type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusReady     StepStatus = "ready"
	StepStatusRunning   StepStatus = "running"
	StepStatusPaused    StepStatus = "paused"
	StepStatusCompleted StepStatus = "completed"
	StepStatusSkipped   StepStatus = "skipped"
	StepStatusError     StepStatus = "error"
)

func (s StepStatus) Valid() bool {
	switch s {
	case StepStatusPending, StepStatusReady, StepStatusRunning, StepStatusPaused,
		StepStatusCompleted, StepStatusSkipped, StepStatusError:
		return true
	}
	return false
}

func (s StepStatus) Terminal() bool {
	return s == StepStatusCompleted || s == StepStatusSkipped
}

type StepType string

const (
	StepTypeFixedDuration StepType = "fixed_duration"
	StepTypeTask          StepType = "task"
	StepTypeFixedStart    StepType = "fixed_start"
	StepTypeAutomatedTask StepType = "automated_task"
)

func (t StepType) Valid() bool {
	switch t {
	case StepTypeFixedDuration, StepTypeTask, StepTypeFixedStart, StepTypeAutomatedTask:
		return true
	}
	return false
}

// Pausable reports whether the type supports the pause/resume contract.
// Timers, count-up anchors and resource-locked automation run to completion
// uninterrupted.
func (t StepType) Pausable() bool {
	return t == StepTypeTask
}

// ResourceUserAttention is the implicit resource a bench task occupies when
// no explicit token is given.
const ResourceUserAttention = "user_attention"

type Step struct {
	ID             string                 `json:"id"`
	Name           string                 `json:"name"`
	Duration       time.Duration          `json:"duration"`
	Type           StepType               `json:"step_type"`
	Dependencies   []string               `json:"dependencies,omitempty"`
	ResourceNeeded string                 `json:"resource_needed,omitempty"`
	Notes          string                 `json:"notes,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`

	ScheduledStart        *time.Time `json:"scheduled_start,omitempty"`
	ScheduledEnd          *time.Time `json:"scheduled_end,omitempty"`
	EarliestPossibleStart *time.Time `json:"earliest_possible_start,omitempty"`
	LatestAllowedStart    *time.Time `json:"latest_allowed_start,omitempty"`

	ActualStart *time.Time    `json:"actual_start,omitempty"`
	ActualEnd   *time.Time    `json:"actual_end,omitempty"`
	Elapsed     time.Duration `json:"elapsed"`

	Status StepStatus `json:"status"`
}

func NewStep(name string, duration time.Duration, stepType StepType) *Step {
	step := &Step{
		ID:       uuid.New().String(),
		Name:     name,
		Duration: duration,
		Type:     stepType,
		Status:   StepStatusPending,
	}
	if stepType == StepTypeTask {
		step.ResourceNeeded = ResourceUserAttention
	}
	return step
}

func (s *Step) WithDependencies(ids ...string) *Step {
	s.Dependencies = append(s.Dependencies, ids...)
	return s
}

func (s *Step) WithResource(token string) *Step {
	s.ResourceNeeded = token
	return s
}

func (s *Step) WithNotes(notes string) *Step {
	s.Notes = notes
	return s
}

func (s *Step) WithMetadata(metadata map[string]interface{}) *Step {
	if s.Metadata == nil {
		s.Metadata = make(map[string]interface{}, len(metadata))
	}
	for k, v := range metadata {
		s.Metadata[k] = v
	}
	return s
}

// Start moves a ready or paused step into running. Resuming overwrites
// actual_start; time already worked is banked in Elapsed.
func (s *Step) Start(at time.Time) error {
	if s.Status != StepStatusReady && s.Status != StepStatusPaused {
		return &TransitionError{
			StepID: s.ID,
			Step:   s.Name,
			Op:     "start",
			From:   s.Status,
			Reason: "only ready or paused steps can start",
		}
	}
	start := at
	s.ActualStart = &start
	s.Status = StepStatusRunning
	return nil
}

func (s *Step) Pause(at time.Time) error {
	if !s.Type.Pausable() {
		return &TransitionError{
			StepID: s.ID,
			Step:   s.Name,
			Op:     "pause",
			From:   s.Status,
			Reason: string(s.Type) + " steps are not pausable",
		}
	}
	if s.Status != StepStatusRunning {
		return &TransitionError{
			StepID: s.ID,
			Step:   s.Name,
			Op:     "pause",
			From:   s.Status,
			Reason: "only running steps can pause",
		}
	}
	if s.ActualStart != nil {
		s.Elapsed += at.Sub(*s.ActualStart)
	}
	s.Status = StepStatusPaused
	return nil
}

func (s *Step) Complete(at time.Time) error {
	if s.Status != StepStatusRunning && s.Status != StepStatusPaused {
		return &TransitionError{
			StepID: s.ID,
			Step:   s.Name,
			Op:     "complete",
			From:   s.Status,
			Reason: "only running or paused steps can complete",
		}
	}
	end := at
	s.ActualEnd = &end
	if s.Status == StepStatusRunning && s.ActualStart != nil {
		s.Elapsed += end.Sub(*s.ActualStart)
	}
	s.Status = StepStatusCompleted
	return nil
}

// Override force-sets an administrative status. Finished steps stay finished.
func (s *Step) Override(status StepStatus) error {
	if status != StepStatusSkipped && status != StepStatusError {
		return &TransitionError{
			StepID: s.ID,
			Step:   s.Name,
			Op:     "override",
			From:   s.Status,
			Reason: "override target must be skipped or error",
		}
	}
	if s.Status.Terminal() {
		return &TransitionError{
			StepID: s.ID,
			Step:   s.Name,
			Op:     "override",
			From:   s.Status,
			Reason: "step already finished",
		}
	}
	s.Status = status
	return nil
}

// Schedule places the step, keeping scheduled_end anchored to
// scheduled_start + duration.
func (s *Step) Schedule(start time.Time) {
	begin := start
	end := start.Add(s.Duration)
	s.ScheduledStart = &begin
	s.ScheduledEnd = &end
}

func (s *Step) ExpectedEnd() *time.Time {
	if s.ActualStart != nil {
		switch s.Status {
		case StepStatusRunning, StepStatusPaused:
			end := s.ActualStart.Add(s.Duration)
			return &end
		case StepStatusCompleted:
			if s.ActualEnd != nil {
				return cloneTime(s.ActualEnd)
			}
		}
	}
	if s.ScheduledStart != nil {
		end := s.ScheduledStart.Add(s.Duration)
		return &end
	}
	return nil
}

// ActiveElapsed is the time worked so far, including the open running
// interval.
func (s *Step) ActiveElapsed(now time.Time) time.Duration {
	if s.Status == StepStatusRunning && s.ActualStart != nil {
		return s.Elapsed + now.Sub(*s.ActualStart)
	}
	return s.Elapsed
}

func (s *Step) Overdue(now time.Time) bool {
	return s.Status == StepStatusRunning && s.ActiveElapsed(now) > s.Duration
}

func (s *Step) Clone() *Step {
	if s == nil {
		return nil
	}
	clone := *s
	if s.Dependencies != nil {
		clone.Dependencies = append([]string(nil), s.Dependencies...)
	}
	if s.Metadata != nil {
		clone.Metadata = make(map[string]interface{}, len(s.Metadata))
		for k, v := range s.Metadata {
			clone.Metadata[k] = v
		}
	}
	clone.ScheduledStart = cloneTime(s.ScheduledStart)
	clone.ScheduledEnd = cloneTime(s.ScheduledEnd)
	clone.EarliestPossibleStart = cloneTime(s.EarliestPossibleStart)
	clone.LatestAllowedStart = cloneTime(s.LatestAllowedStart)
	clone.ActualStart = cloneTime(s.ActualStart)
	clone.ActualEnd = cloneTime(s.ActualEnd)
	return &clone
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	copied := *t
	return &copied
}
