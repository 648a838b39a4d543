package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type ErrorType int

const (
	ErrorTypeValidation ErrorType = iota
	ErrorTypeNotFound
	ErrorTypeConflict
	ErrorTypeInternal
)

type Error struct {
	Type    ErrorType
	Message string
	Details map[string]interface{}
}

func (e Error) Error() string {
	return e.Message
}

var (
	ErrAlreadyStarted       = errors.New("adapter already started")
	ErrNotStarted           = errors.New("adapter not started")
	ErrStepNotFound         = errors.New("step not found")
	ErrExperimentNotFound   = errors.New("experiment not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrInvalidConfig        = errors.New("invalid configuration")
	ErrStoreClosed          = errors.New("notification store closed")
	ErrRouterClosed         = errors.New("push router closed")
	ErrQueueFull            = errors.New("event queue full")
)

// TransitionError reports a state-machine guard failure. It is warning
// class: the step is untouched and the caller may carry on.
type TransitionError struct {
	StepID string
	Step   string
	Op     string
	From   StepStatus
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("step[%s] %s rejected: %s (status %s)", e.Step, e.Op, e.Reason, e.From)
}

// CycleError names the steps left unplaceable by a scheduling pass because
// they participate in (or sit behind) a dependency cycle. Members are sorted
// so the report is deterministic.
type CycleError struct {
	Steps []string
}

func NewCycleError(ids []string) *CycleError {
	members := append([]string(nil), ids...)
	sort.Strings(members)
	return &CycleError{Steps: members}
}

func (e *CycleError) Error() string {
	return "dependency cycle detected among steps: " + strings.Join(e.Steps, ", ")
}

// DuplicateStepError flags a step id that is already registered, naming both
// experiments involved.
type DuplicateStepError struct {
	StepID     string
	Experiment string
	Existing   string
}

func (e *DuplicateStepError) Error() string {
	return fmt.Sprintf("step %s from experiment %s already registered by experiment %s",
		e.StepID, e.Experiment, e.Existing)
}

func IsTransition(err error) bool {
	var transitionErr *TransitionError
	return errors.As(err, &transitionErr)
}

func IsCycle(err error) bool {
	var cycleErr *CycleError
	return errors.As(err, &cycleErr)
}

func IsDuplicateStep(err error) bool {
	var duplicateErr *DuplicateStepError
	return errors.As(err, &duplicateErr)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrStepNotFound) ||
		errors.Is(err, ErrExperimentNotFound) ||
		errors.Is(err, ErrNotificationNotFound)
}

func IsAlreadyStarted(err error) bool {
	return errors.Is(err, ErrAlreadyStarted)
}

func IsNotStarted(err error) bool {
	return errors.Is(err, ErrNotStarted)
}

func IsInvalidConfig(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}
