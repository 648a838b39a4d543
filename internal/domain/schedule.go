package domain

import (
	"time"
)

// ScheduleReport summarizes one initial scheduling pass. Unplaced carries
// the ids the pass could not place (sorted); Cycle carries the subset that
// forms the detected dependency cycle, when there is one.
type ScheduleReport struct {
	Base     time.Time `json:"base"`
	Placed   int       `json:"placed"`
	Unplaced []string  `json:"unplaced,omitempty"`
	Cycle    []string  `json:"cycle,omitempty"`
}

// ResourceConflict names two concurrently running steps holding the same
// exclusive resource. StepID always sorts before OtherID so a pair is
// reported in a stable orientation.
type ResourceConflict struct {
	Resource  string `json:"resource"`
	StepID    string `json:"step_id"`
	StepName  string `json:"step_name"`
	OtherID   string `json:"other_step_id"`
	OtherName string `json:"other_step_name"`
}
