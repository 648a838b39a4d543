package notifications

import (
	"fmt"
	"time"

	"github.com/eleven-am/benchtop/internal/domain"
)

// Factory constructors for every notification scenario. The dispatcher uses
// the event-driven ones; UserAttention, GeneralInfo, ErrorReport and Custom
// are built by collaborators and handed to Notify directly. Each constructor
// finishes with decorate, which owns the type-to-action matrix.

func StepReady(event *domain.StepReadyEvent) *domain.Notification {
	notification := domain.NewNotification(
		fmt.Sprintf("Step Ready: %s", event.StepName),
		fmt.Sprintf("The step '%s' in experiment '%s' is ready to start.", event.StepName, event.ExperimentName),
		domain.NotificationStepReady,
		domain.PriorityMedium,
	).
		WithRecipients(event.Recipients...).
		WithStep(event.ExperimentID, event.StepID)

	if event.EarliestStart != nil {
		notification.WithMetadata(map[string]interface{}{
			"earliest_possible_start": event.EarliestStart.Format(time.RFC3339),
		})
	}

	return decorate(notification)
}

func StepCompleted(event *domain.StepCompletedEvent) *domain.Notification {
	notification := domain.NewNotification(
		fmt.Sprintf("Step Completed: %s", event.StepName),
		fmt.Sprintf("The step '%s' in experiment '%s' has been completed.", event.StepName, event.ExperimentName),
		domain.NotificationStepCompleted,
		domain.PriorityLow,
	).
		WithRecipients(event.Recipients...).
		WithStep(event.ExperimentID, event.StepID)

	return decorate(notification)
}

func StepPaused(event *domain.StepPausedEvent) *domain.Notification {
	notification := domain.NewNotification(
		fmt.Sprintf("Step Paused: %s", event.StepName),
		fmt.Sprintf("The step '%s' in experiment '%s' has been paused.", event.StepName, event.ExperimentName),
		domain.NotificationStepPaused,
		domain.PriorityMedium,
	).
		WithRecipients(event.Recipients...).
		WithStep(event.ExperimentID, event.StepID).
		WithMetadata(map[string]interface{}{
			"elapsed": event.Elapsed.String(),
		})

	return decorate(notification)
}

func StepTimeout(event *domain.StepTimeoutEvent) *domain.Notification {
	notification := domain.NewNotification(
		fmt.Sprintf("Step Timeout: %s", event.StepName),
		fmt.Sprintf("The step '%s' in experiment '%s' has exceeded its expected duration.", event.StepName, event.ExperimentName),
		domain.NotificationStepTimeout,
		domain.PriorityMedium,
	).
		WithRecipients(event.Recipients...).
		WithStep(event.ExperimentID, event.StepID)

	return decorate(notification)
}

func ResourceConflict(event *domain.ResourceConflictEvent) *domain.Notification {
	notification := domain.NewNotification(
		fmt.Sprintf("Resource Conflict: %s", event.Resource),
		fmt.Sprintf("Resource conflict detected: '%s' and '%s' both need '%s'.",
			event.StepName, event.ConflictingStepName, event.Resource),
		domain.NotificationResourceConflict,
		domain.PriorityHigh,
	).
		WithRecipients(event.Recipients...).
		WithStep(event.ExperimentID, event.StepID).
		WithMetadata(map[string]interface{}{
			"resource":              event.Resource,
			"conflicting_step_id":   event.ConflictingStepID,
			"conflicting_step_name": event.ConflictingStepName,
		})

	return decorate(notification)
}

// UserAttention flags a step that needs hands-on intervention. Recipients
// default to the experiment's owner and shared-with set.
func UserAttention(step *domain.Step, experiment *domain.Experiment, recipients ...string) *domain.Notification {
	if len(recipients) == 0 {
		recipients = experiment.Recipients()
	}

	notification := domain.NewNotification(
		fmt.Sprintf("Attention Required: %s", step.Name),
		fmt.Sprintf("Your attention is required for step '%s' in experiment '%s'.", step.Name, experiment.Name),
		domain.NotificationUserAttention,
		domain.PriorityHigh,
	).
		WithRecipients(recipients...).
		WithStep(experiment.ID, step.ID)

	return decorate(notification)
}

func GeneralInfo(title, message string, recipients ...string) *domain.Notification {
	notification := domain.NewNotification(title, message, domain.NotificationGeneralInfo, domain.PriorityMedium).
		WithRecipients(recipients...)
	return decorate(notification)
}

// ErrorReport builds an error notification. Low and Medium are escalated to
// High; Critical stays Critical.
func ErrorReport(title, message string, priority domain.NotificationPriority, recipients ...string) *domain.Notification {
	notification := domain.NewNotification(title, message, domain.NotificationError, priority).
		WithRecipients(recipients...)
	return decorate(notification)
}

func Custom(title, message string, priority domain.NotificationPriority, recipients ...string) *domain.Notification {
	notification := domain.NewNotification(title, message, domain.NotificationCustom, priority).
		WithRecipients(recipients...)
	return decorate(notification)
}

// decorate attaches the fixed, type-specific action set and applies the error
// escalation rule. Actions that reference a step are only attached when the
// notification carries one.
func decorate(notification *domain.Notification) *domain.Notification {
	switch notification.Type {
	case domain.NotificationStepReady:
		if notification.StepID != "" {
			notification.WithActions(domain.Action{
				ID:    "start_step",
				Type:  domain.ActionButton,
				Label: "Start Step",
				Data:  map[string]interface{}{"step_id": notification.StepID},
			})
		}

	case domain.NotificationStepPaused:
		if notification.StepID != "" {
			notification.WithActions(domain.Action{
				ID:    "resume_step",
				Type:  domain.ActionButton,
				Label: "Resume Step",
				Data:  map[string]interface{}{"step_id": notification.StepID},
			})
		}

	case domain.NotificationStepTimeout:
		if notification.StepID != "" {
			notification.WithActions(domain.Action{
				ID:    "complete_step",
				Type:  domain.ActionButton,
				Label: "Mark as Complete",
				Data:  map[string]interface{}{"step_id": notification.StepID},
			})
		}

	case domain.NotificationResourceConflict:
		conflicting, _ := notification.Metadata["conflicting_step_id"].(string)
		if notification.StepID != "" && conflicting != "" {
			notification.WithActions(
				domain.Action{
					ID:    "pause_step",
					Type:  domain.ActionButton,
					Label: "Pause Current Step",
					Data:  map[string]interface{}{"step_id": notification.StepID},
				},
				domain.Action{
					ID:    "pause_conflicting_step",
					Type:  domain.ActionButton,
					Label: "Pause Conflicting Step",
					Data:  map[string]interface{}{"step_id": conflicting},
				},
			)
		}

	case domain.NotificationUserAttention:
		if notification.StepID != "" {
			notification.WithActions(domain.Action{
				ID:    "view_step",
				Type:  domain.ActionLink,
				Label: "View Step",
				Data: map[string]interface{}{
					"link": fmt.Sprintf("/run/%s?focus=%s", notification.ExperimentID, notification.StepID),
				},
			})
		}

	case domain.NotificationError:
		if notification.Priority.Rank() < domain.PriorityHigh.Rank() {
			notification.Priority = domain.PriorityHigh
		}

	case domain.NotificationStepCompleted, domain.NotificationGeneralInfo, domain.NotificationCustom:
	}

	return notification
}
