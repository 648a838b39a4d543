package domain

import (
	"time"
)

// Event is anything the scheduler publishes onto the event queue. Key gives
// generic subscribers a stable routing string.
type Event interface {
	Key() string
}

type StepReadyEvent struct {
	StepID         string     `json:"step_id"`
	StepName       string     `json:"step_name"`
	ExperimentID   string     `json:"experiment_id"`
	ExperimentName string     `json:"experiment_name"`
	Recipients     []string   `json:"recipients,omitempty"`
	EarliestStart  *time.Time `json:"earliest_start,omitempty"`
	ReadyAt        time.Time  `json:"ready_at"`
}

func (e *StepReadyEvent) Key() string { return "step:" + e.StepID + ":ready" }

type StepStartedEvent struct {
	StepID         string    `json:"step_id"`
	StepName       string    `json:"step_name"`
	ExperimentID   string    `json:"experiment_id"`
	ExperimentName string    `json:"experiment_name"`
	Recipients     []string  `json:"recipients,omitempty"`
	StartedAt      time.Time `json:"started_at"`
}

func (e *StepStartedEvent) Key() string { return "step:" + e.StepID + ":started" }

type StepPausedEvent struct {
	StepID         string        `json:"step_id"`
	StepName       string        `json:"step_name"`
	ExperimentID   string        `json:"experiment_id"`
	ExperimentName string        `json:"experiment_name"`
	Recipients     []string      `json:"recipients,omitempty"`
	PausedAt       time.Time     `json:"paused_at"`
	Elapsed        time.Duration `json:"elapsed"`
}

func (e *StepPausedEvent) Key() string { return "step:" + e.StepID + ":paused" }

type StepCompletedEvent struct {
	StepID         string        `json:"step_id"`
	StepName       string        `json:"step_name"`
	ExperimentID   string        `json:"experiment_id"`
	ExperimentName string        `json:"experiment_name"`
	Recipients     []string      `json:"recipients,omitempty"`
	CompletedAt    time.Time     `json:"completed_at"`
	Elapsed        time.Duration `json:"elapsed"`
}

func (e *StepCompletedEvent) Key() string { return "step:" + e.StepID + ":completed" }

type StepTimeoutEvent struct {
	StepID         string        `json:"step_id"`
	StepName       string        `json:"step_name"`
	ExperimentID   string        `json:"experiment_id"`
	ExperimentName string        `json:"experiment_name"`
	Recipients     []string      `json:"recipients,omitempty"`
	Duration       time.Duration `json:"duration"`
	Active         time.Duration `json:"active"`
	DetectedAt     time.Time     `json:"detected_at"`
}

func (e *StepTimeoutEvent) Key() string { return "step:" + e.StepID + ":timeout" }

type ResourceConflictEvent struct {
	Resource            string    `json:"resource"`
	StepID              string    `json:"step_id"`
	StepName            string    `json:"step_name"`
	ExperimentID        string    `json:"experiment_id"`
	ConflictingStepID   string    `json:"conflicting_step_id"`
	ConflictingStepName string    `json:"conflicting_step_name"`
	ConflictingExpID    string    `json:"conflicting_experiment_id"`
	Recipients          []string  `json:"recipients,omitempty"`
	DetectedAt          time.Time `json:"detected_at"`
}

func (e *ResourceConflictEvent) Key() string { return "conflict:" + e.Resource }

type ScheduleComputedEvent struct {
	Base       time.Time `json:"base"`
	Placed     int       `json:"placed"`
	Unplaced   []string  `json:"unplaced,omitempty"`
	Cycle      []string  `json:"cycle,omitempty"`
	ComputedAt time.Time `json:"computed_at"`
}

func (e *ScheduleComputedEvent) Key() string { return "schedule:computed" }
