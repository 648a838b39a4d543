package domain

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationStepReady        NotificationType = "step_ready"
	NotificationStepCompleted    NotificationType = "step_completed"
	NotificationStepPaused       NotificationType = "step_paused"
	NotificationStepTimeout      NotificationType = "step_timeout"
	NotificationResourceConflict NotificationType = "resource_conflict"
	NotificationUserAttention    NotificationType = "user_attention_required"
	NotificationGeneralInfo      NotificationType = "general_info"
	NotificationError            NotificationType = "error"
	NotificationCustom           NotificationType = "custom"
)

type NotificationPriority string

const (
	PriorityLow      NotificationPriority = "low"
	PriorityMedium   NotificationPriority = "medium"
	PriorityHigh     NotificationPriority = "high"
	PriorityCritical NotificationPriority = "critical"
)

// Rank orders priorities for escalation and overflow decisions. Unknown
// values rank lowest.
func (p NotificationPriority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityCritical:
		return 4
	}
	return 0
}

type ActionType string

const (
	ActionLink    ActionType = "link"
	ActionButton  ActionType = "button"
	ActionForm    ActionType = "form"
	ActionDismiss ActionType = "dismiss"
	ActionSnooze  ActionType = "snooze"
)

// Action is one interaction attached to a notification, rendered by the
// collaborator layer.
type Action struct {
	ID    string                 `json:"id"`
	Type  ActionType             `json:"type"`
	Label string                 `json:"label"`
	Data  map[string]interface{} `json:"data,omitempty"`
}

type DeliveryMethod string

const (
	DeliveryInApp DeliveryMethod = "in_app"
	DeliveryEmail DeliveryMethod = "email"
	DeliveryPush  DeliveryMethod = "push"
	DeliverySMS   DeliveryMethod = "sms"
)

type Notification struct {
	ID           string                 `json:"id"`
	Title        string                 `json:"title"`
	Message      string                 `json:"message"`
	Type         NotificationType       `json:"type"`
	Priority     NotificationPriority   `json:"priority"`
	Recipients   []string               `json:"recipients"`
	ExperimentID string                 `json:"experiment_id,omitempty"`
	StepID       string                 `json:"step_id,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	Actions      []Action               `json:"actions,omitempty"`
	Delivery     []DeliveryMethod       `json:"delivery_methods,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	Read         bool                   `json:"is_read"`
	Dismissed    bool                   `json:"is_dismissed"`
}

func NewNotification(title, message string, typ NotificationType, priority NotificationPriority) *Notification {
	return &Notification{
		ID:        uuid.New().String(),
		Title:     title,
		Message:   message,
		Type:      typ,
		Priority:  priority,
		CreatedAt: time.Now(),
	}
}

func (n *Notification) WithRecipients(recipients ...string) *Notification {
	n.Recipients = append(n.Recipients, recipients...)
	return n
}

func (n *Notification) WithStep(experimentID, stepID string) *Notification {
	n.ExperimentID = experimentID
	n.StepID = stepID
	return n
}

// WithMetadata merges entries into the notification's metadata, new values
// winning on collision and slices appending.
func (n *Notification) WithMetadata(metadata map[string]interface{}) *Notification {
	merged, err := MergeMetadata(n.Metadata, metadata)
	if err != nil {
		return n
	}
	n.Metadata = merged
	return n
}

func (n *Notification) WithActions(actions ...Action) *Notification {
	n.Actions = append(n.Actions, actions...)
	return n
}

func (n *Notification) WithDelivery(methods ...DeliveryMethod) *Notification {
	n.Delivery = append(n.Delivery, methods...)
	return n
}
