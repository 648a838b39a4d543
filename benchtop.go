// Package benchtop provides a temporal orchestration core for laboratory protocols.
//
// Benchtop models experiments as graphs of timed steps and keeps the bench
// schedule honest while the experiment actually runs. It provides:
//   - Dependency-driven readiness: steps become startable the moment their
//     upstream steps complete
//   - Anchored scheduling that projects start times forward from what has
//     really happened, not from the original plan
//   - Resource conflict detection across concurrently running experiments
//   - Timeout monitoring for steps that overrun their expected duration
//   - A notification pipeline with per-recipient inboxes and live push
//     subscriptions
//   - HCL protocol files for declaring experiments outside of code
//
// Basic usage:
//
//	manager, err := benchtop.New(logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	manager.Start(context.Background())
//	defer manager.Stop()
//
//	manager.LoadProtocolFile("protocols/dish1.hcl")
//	manager.CalculateInitialSchedule(time.Now())
//
//	sub, _ := manager.SubscribeNotifications("mark")
//	for notification := range sub.C {
//		fmt.Println(notification.Title)
//	}
package benchtop

import (
	"log/slog"
	"time"

	"github.com/eleven-am/benchtop/internal/core"
	"github.com/eleven-am/benchtop/internal/domain"
	"github.com/eleven-am/benchtop/internal/ports"
)

// Manager is the main orchestration engine that manages experiment
// registration, step scheduling, timeout monitoring, and notifications.
type Manager = core.Manager

// Experiment is a named collection of steps owned by a collaborator and
// optionally shared with others.
type Experiment = domain.Experiment

// Step is a single unit of work inside an experiment, with a duration,
// a temporal type, and dependencies on other steps.
type Step = domain.Step

// StepStatus represents the lifecycle state of a step.
type StepStatus = domain.StepStatus

// StepType describes how a step relates to the clock.
type StepType = domain.StepType

// Notification is a message produced by the scheduler or by collaborators,
// persisted per recipient and optionally pushed to live subscribers.
type Notification = domain.Notification

// NotificationType categorizes what a notification is about.
type NotificationType = domain.NotificationType

// NotificationPriority orders notifications by urgency.
type NotificationPriority = domain.NotificationPriority

// Action is one interaction attached to a notification.
type Action = domain.Action

// ActionType describes how an action is rendered.
type ActionType = domain.ActionType

// DeliveryMethod names a channel a notification is delivered through.
type DeliveryMethod = domain.DeliveryMethod

// ScheduleReport summarizes one forward scheduling pass.
type ScheduleReport = domain.ScheduleReport

// ResourceConflict describes two steps contending for the same resource.
type ResourceConflict = domain.ResourceConflict

// Subscription is a live push feed of notifications for one recipient.
type Subscription = ports.Subscription

// Event types for step lifecycle monitoring

// StepReadyEvent is emitted when all of a step's dependencies are complete.
type StepReadyEvent = domain.StepReadyEvent

// StepStartedEvent is emitted when a step begins running.
type StepStartedEvent = domain.StepStartedEvent

// StepPausedEvent is emitted when a running step is paused.
type StepPausedEvent = domain.StepPausedEvent

// StepCompletedEvent is emitted when a step finishes.
type StepCompletedEvent = domain.StepCompletedEvent

// StepTimeoutEvent is emitted when a running step exceeds its expected duration.
type StepTimeoutEvent = domain.StepTimeoutEvent

// ResourceConflictEvent is emitted when two steps need the same resource at once.
type ResourceConflictEvent = domain.ResourceConflictEvent

// ScheduleComputedEvent is emitted after a scheduling pass completes.
type ScheduleComputedEvent = domain.ScheduleComputedEvent

// Event is the interface all published events satisfy.
type Event = domain.Event

// Step lifecycle states
const (
	StepStatusPending   = domain.StepStatusPending
	StepStatusReady     = domain.StepStatusReady
	StepStatusRunning   = domain.StepStatusRunning
	StepStatusPaused    = domain.StepStatusPaused
	StepStatusCompleted = domain.StepStatusCompleted
	StepStatusSkipped   = domain.StepStatusSkipped
	StepStatusError     = domain.StepStatusError
)

// Temporal step types
const (
	// StepTypeFixedDuration runs for its stated duration once started.
	StepTypeFixedDuration = domain.StepTypeFixedDuration

	// StepTypeTask is hands-on work whose duration is an estimate.
	StepTypeTask = domain.StepTypeTask

	// StepTypeFixedStart must begin at its scheduled wall-clock time.
	StepTypeFixedStart = domain.StepTypeFixedStart

	// StepTypeAutomatedTask runs on equipment without an operator present.
	StepTypeAutomatedTask = domain.StepTypeAutomatedTask
)

// ResourceUserAttention is the implicit resource claimed by hands-on steps.
const ResourceUserAttention = domain.ResourceUserAttention

// Notification types
const (
	NotificationStepReady        = domain.NotificationStepReady
	NotificationStepCompleted    = domain.NotificationStepCompleted
	NotificationStepPaused       = domain.NotificationStepPaused
	NotificationStepTimeout      = domain.NotificationStepTimeout
	NotificationResourceConflict = domain.NotificationResourceConflict
	NotificationUserAttention    = domain.NotificationUserAttention
	NotificationGeneralInfo      = domain.NotificationGeneralInfo
	NotificationError            = domain.NotificationError
	NotificationCustom           = domain.NotificationCustom
)

// Notification priorities
const (
	PriorityLow      = domain.PriorityLow
	PriorityMedium   = domain.PriorityMedium
	PriorityHigh     = domain.PriorityHigh
	PriorityCritical = domain.PriorityCritical
)

// Notification action types
const (
	ActionLink    = domain.ActionLink
	ActionButton  = domain.ActionButton
	ActionForm    = domain.ActionForm
	ActionDismiss = domain.ActionDismiss
	ActionSnooze  = domain.ActionSnooze
)

// Delivery methods
const (
	DeliveryInApp = domain.DeliveryInApp
	DeliveryEmail = domain.DeliveryEmail
	DeliveryPush  = domain.DeliveryPush
	DeliverySMS   = domain.DeliverySMS
)

// Sentinel errors returned by Manager operations.
var (
	ErrStepNotFound         = domain.ErrStepNotFound
	ErrExperimentNotFound   = domain.ErrExperimentNotFound
	ErrNotificationNotFound = domain.ErrNotificationNotFound
	ErrInvalidConfig        = domain.ErrInvalidConfig
	ErrAlreadyStarted       = domain.ErrAlreadyStarted
	ErrNotStarted           = domain.ErrNotStarted
)

// New creates a manager with default configuration and the given logger.
// A nil logger discards all output.
func New(logger *slog.Logger) (*Manager, error) {
	return core.New(domain.NewConfigFromSimple(logger))
}

// NewWithConfig creates a manager from a complete configuration object.
//
// Example:
//
//	config := benchtop.DefaultConfig().
//	    WithLogger(logger).
//	    WithLookaheadWindow(2 * time.Hour)
//	manager, err := benchtop.NewWithConfig(config)
func NewWithConfig(config *Config) (*Manager, error) {
	return core.New(config)
}

// NewExperiment creates an experiment with a fresh ID and no steps.
func NewExperiment(name, description string) *Experiment {
	return domain.NewExperiment(name, description)
}

// NewStep creates a pending step with a fresh ID.
func NewStep(name string, duration time.Duration, stepType StepType) *Step {
	return domain.NewStep(name, duration, stepType)
}

// NewNotification creates a notification ready for Manager.Notify. Recipients,
// step linkage, and delivery methods are attached with the With* builders.
func NewNotification(title, message string, typ NotificationType, priority NotificationPriority) *Notification {
	return domain.NewNotification(title, message, typ, priority)
}

// IsNotFound reports whether err indicates a missing step, experiment, or
// notification.
func IsNotFound(err error) bool {
	return domain.IsNotFound(err)
}

// IsTransition reports whether err is a rejected step state transition.
func IsTransition(err error) bool {
	return domain.IsTransition(err)
}

// IsCycle reports whether err is a dependency cycle detected during scheduling.
func IsCycle(err error) bool {
	return domain.IsCycle(err)
}

// IsDuplicateStep reports whether err is a duplicate step registration.
func IsDuplicateStep(err error) bool {
	return domain.IsDuplicateStep(err)
}
