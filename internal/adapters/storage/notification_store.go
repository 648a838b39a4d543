package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"

	"github.com/eleven-am/benchtop/internal/codec"
	"github.com/eleven-am/benchtop/internal/domain"
)

const (
	notificationPrefix = "notification:"
	inboxPrefix        = "inbox:"
)

// NotificationStore keeps notifications in an embedded Badger instance opened
// strictly in memory. Every notification is stored once under its id, plus one
// inbox index entry per recipient. Inbox keys embed an inverted creation
// timestamp so a forward prefix scan yields newest first without sorting.
type NotificationStore struct {
	logger *slog.Logger
	db     *badger.DB

	mu     sync.RWMutex
	closed bool
}

// NewNotificationStore opens a fresh in-memory store. The contents live and
// die with the process.
func NewNotificationStore(logger *slog.Logger) (*NotificationStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open notification store: %w", err)
	}

	return &NotificationStore{
		logger: logger.With("component", "notification-store"),
		db:     db,
	}, nil
}

func notificationKey(id string) []byte {
	return []byte(notificationPrefix + id)
}

func inboxKey(recipient string, createdAt time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d:%s", inboxPrefix, recipient, math.MaxInt64-createdAt.UnixNano(), id))
}

func recipientPrefix(recipient string) []byte {
	return []byte(inboxPrefix + recipient + ":")
}

// Save writes the notification payload and one inbox entry per recipient in a
// single transaction.
func (s *NotificationStore) Save(notification *domain.Notification) error {
	if notification == nil || notification.ID == "" {
		return domain.Error{
			Type:    domain.ErrorTypeValidation,
			Message: "notification must have an id",
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return domain.ErrStoreClosed
	}

	payload, err := codec.Marshal(notification)
	if err != nil {
		return fmt.Errorf("marshal notification %q: %w", notification.ID, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(notificationKey(notification.ID), payload); err != nil {
			return err
		}
		for _, recipient := range notification.Recipients {
			key := inboxKey(recipient, notification.CreatedAt, notification.ID)
			if err := txn.Set(key, []byte(notification.ID)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save notification %q: %w", notification.ID, err)
	}

	s.logger.Debug("notification saved",
		"notification_id", notification.ID,
		"type", notification.Type,
		"recipients", len(notification.Recipients))
	return nil
}

func (s *NotificationStore) Get(id string) (*domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, domain.ErrStoreClosed
	}

	var notification *domain.Notification
	err := s.db.View(func(txn *badger.Txn) error {
		found, err := getNotification(txn, id)
		if err != nil {
			return err
		}
		notification = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return notification, nil
}

// ForRecipient walks the recipient's inbox index newest first. With
// unreadOnly set, read and dismissed notifications are skipped.
func (s *NotificationStore) ForRecipient(recipient string, unreadOnly bool) ([]*domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, domain.ErrStoreClosed
	}

	var notifications []*domain.Notification
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := recipientPrefix(recipient)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			id, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}

			notification, err := getNotification(txn, string(id))
			if errors.Is(err, domain.ErrNotificationNotFound) {
				s.logger.Debug("inbox entry without payload, skipping",
					"recipient", recipient,
					"notification_id", string(id))
				continue
			}
			if err != nil {
				return err
			}

			if unreadOnly && (notification.Read || notification.Dismissed) {
				continue
			}
			notifications = append(notifications, notification)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list notifications for %q: %w", recipient, err)
	}
	return notifications, nil
}

func (s *NotificationStore) UnreadCount(recipient string) (int, error) {
	notifications, err := s.ForRecipient(recipient, true)
	if err != nil {
		return 0, err
	}
	return len(notifications), nil
}

func (s *NotificationStore) MarkRead(id string) error {
	return s.update(id, func(notification *domain.Notification) {
		notification.Read = true
	})
}

func (s *NotificationStore) MarkDismissed(id string) error {
	return s.update(id, func(notification *domain.Notification) {
		notification.Dismissed = true
	})
}

// Delete removes the payload and every recipient's inbox entry.
func (s *NotificationStore) Delete(id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return domain.ErrStoreClosed
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		notification, err := getNotification(txn, id)
		if err != nil {
			return err
		}

		if err := txn.Delete(notificationKey(id)); err != nil {
			return err
		}
		for _, recipient := range notification.Recipients {
			key := inboxKey(recipient, notification.CreatedAt, id)
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug("notification deleted", "notification_id", id)
	return nil
}

func (s *NotificationStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	s.logger.Debug("closing notification store")
	return s.db.Close()
}

// update rewrites a stored payload in place. Inbox keys embed only the
// creation time, which never changes, so the index needs no touch-up.
func (s *NotificationStore) update(id string, mutate func(*domain.Notification)) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return domain.ErrStoreClosed
	}

	return s.db.Update(func(txn *badger.Txn) error {
		notification, err := getNotification(txn, id)
		if err != nil {
			return err
		}

		mutate(notification)

		payload, err := codec.Marshal(notification)
		if err != nil {
			return fmt.Errorf("marshal notification %q: %w", id, err)
		}
		return txn.Set(notificationKey(id), payload)
	})
}

func getNotification(txn *badger.Txn, id string) (*domain.Notification, error) {
	item, err := txn.Get(notificationKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("notification %q: %w", id, domain.ErrNotificationNotFound)
	}
	if err != nil {
		return nil, err
	}

	payload, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}

	var notification domain.Notification
	if err := codec.Unmarshal(payload, &notification); err != nil {
		return nil, fmt.Errorf("unmarshal notification %q: %w", id, err)
	}
	return &notification, nil
}
