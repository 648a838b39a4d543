package ports

import "github.com/eleven-am/benchtop/internal/domain"

type Dispatcher interface {
	// Notify persists the notification and pushes it to live subscribers.
	// Persistence failures are returned; push delivery stays best effort.
	Notify(notification *domain.Notification) error

	Notifications(recipient string, unreadOnly bool) ([]*domain.Notification, error)
	UnreadCount(recipient string) (int, error)
	MarkRead(id string) error
	MarkDismissed(id string) error
	Delete(id string) error
}
