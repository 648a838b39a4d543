package notifications

import (
	"log/slog"

	"github.com/eleven-am/benchtop/internal/domain"
	"github.com/eleven-am/benchtop/internal/ports"
)

// Dispatcher turns scheduler events into notifications and fans them out.
// Every notification is persisted first, then pushed to live subscribers of
// each recipient. Neither side rolls the other back: a store failure is
// logged and the push still happens.
type Dispatcher struct {
	logger   *slog.Logger
	store    ports.NotificationStore
	router   ports.PushRouter
	delivery []domain.DeliveryMethod
}

func NewDispatcher(config domain.NotificationsConfig, store ports.NotificationStore, router ports.PushRouter, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	delivery := config.DeliveryMethods
	if len(delivery) == 0 {
		delivery = domain.DefaultNotificationsConfig().DeliveryMethods
	}

	return &Dispatcher{
		logger:   logger.With("component", "notification-dispatcher"),
		store:    store,
		router:   router,
		delivery: delivery,
	}
}

// Register subscribes the dispatcher to every event type it reacts to.
func (d *Dispatcher) Register(events ports.EventManager) error {
	if err := events.OnStepReady(func(event *domain.StepReadyEvent) {
		d.dispatch(StepReady(event))
	}); err != nil {
		return err
	}
	if err := events.OnStepCompleted(func(event *domain.StepCompletedEvent) {
		d.dispatch(StepCompleted(event))
	}); err != nil {
		return err
	}
	if err := events.OnStepPaused(func(event *domain.StepPausedEvent) {
		d.dispatch(StepPaused(event))
	}); err != nil {
		return err
	}
	if err := events.OnStepTimeout(func(event *domain.StepTimeoutEvent) {
		d.dispatch(StepTimeout(event))
	}); err != nil {
		return err
	}
	return events.OnResourceConflict(func(event *domain.ResourceConflictEvent) {
		d.dispatch(ResourceConflict(event))
	})
}

// Notify persists the notification, then pushes it to every recipient's live
// subscriptions. The store error, if any, is returned after the push attempt.
func (d *Dispatcher) Notify(notification *domain.Notification) error {
	if notification == nil {
		return domain.Error{
			Type:    domain.ErrorTypeValidation,
			Message: "notification must not be nil",
		}
	}

	if len(notification.Delivery) == 0 {
		notification.WithDelivery(d.delivery...)
	}

	saveErr := d.store.Save(notification)
	if saveErr != nil {
		d.logger.Error("notification not persisted, pushing anyway",
			"notification_id", notification.ID,
			"type", notification.Type,
			"error", saveErr.Error())
	}

	for _, recipient := range notification.Recipients {
		d.router.Publish(recipient, notification)
	}

	return saveErr
}

func (d *Dispatcher) Notifications(recipient string, unreadOnly bool) ([]*domain.Notification, error) {
	return d.store.ForRecipient(recipient, unreadOnly)
}

func (d *Dispatcher) UnreadCount(recipient string) (int, error) {
	return d.store.UnreadCount(recipient)
}

func (d *Dispatcher) MarkRead(id string) error {
	return d.store.MarkRead(id)
}

func (d *Dispatcher) MarkDismissed(id string) error {
	return d.store.MarkDismissed(id)
}

func (d *Dispatcher) Delete(id string) error {
	return d.store.Delete(id)
}

// dispatch is the event-handler path. Failures are already logged in Notify
// and must not propagate into the event loop.
func (d *Dispatcher) dispatch(notification *domain.Notification) {
	_ = d.Notify(notification)
}
