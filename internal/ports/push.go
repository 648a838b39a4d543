package ports

import "github.com/eleven-am/benchtop/internal/domain"

// Subscription is a live notification feed for one recipient. C stays open
// until Close is called or the router shuts down.
type Subscription struct {
	ID        string
	Recipient string
	C         <-chan *domain.Notification
	Cancel    func()
}

func (s *Subscription) Close() {
	if s.Cancel != nil {
		s.Cancel()
	}
}

type PushRouter interface {
	Subscribe(recipient string) (*Subscription, error)

	// Publish fans the notification out to every live subscriber of the
	// recipient. Delivery is best effort: a full subscriber buffer drops
	// low priority notifications rather than blocking the caller.
	Publish(recipient string, notification *domain.Notification)

	Close() error
}
