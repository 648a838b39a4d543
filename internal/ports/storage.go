package ports

import "github.com/eleven-am/benchtop/internal/domain"

type NotificationStore interface {
	Save(notification *domain.Notification) error
	Get(id string) (*domain.Notification, error)

	// ForRecipient returns notifications newest first. With unreadOnly set,
	// read and dismissed notifications are filtered out.
	ForRecipient(recipient string, unreadOnly bool) ([]*domain.Notification, error)
	UnreadCount(recipient string) (int, error)

	MarkRead(id string) error
	MarkDismissed(id string) error
	Delete(id string) error

	Close() error
}
