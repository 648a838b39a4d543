package push

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/eleven-am/benchtop/internal/domain"
	"github.com/eleven-am/benchtop/internal/ports"
)

// Router fans notifications out to live subscribers over bounded
// per-subscription channels. Publish never blocks: when a subscriber's
// buffer is full, High and Critical notifications evict the oldest buffered
// entry to make room and anything lower is dropped with a log line. A slow
// or disconnected listener therefore never stalls the publishing side.
type Router struct {
	logger     *slog.Logger
	bufferSize int

	mu          sync.RWMutex
	closed      bool
	subscribers map[string]map[string]*subscriber
}

type subscriber struct {
	id        string
	recipient string
	ch        chan *domain.Notification

	closeMu sync.Mutex
	closed  bool
}

// Option configures a Router.
type Option func(*Router)

// WithBufferSize sets the channel depth for new subscriptions.
func WithBufferSize(size int) Option {
	return func(r *Router) {
		if size > 0 {
			r.bufferSize = size
		}
	}
}

// WithLogger sets the logger used to report drops and evictions.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRouter creates a push router. Without options it uses slog.Default and
// the default push buffer size.
func NewRouter(opts ...Option) *Router {
	r := &Router{
		logger:      slog.Default(),
		bufferSize:  domain.DefaultPushConfig().BufferSize,
		subscribers: make(map[string]map[string]*subscriber),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "push-router")
	return r
}

// Subscribe opens a notification feed for the recipient. Every live
// subscription of the same recipient receives its own copy of each published
// notification. The returned subscription must be closed when no longer
// consumed, otherwise urgent notifications keep evicting its backlog.
func (r *Router) Subscribe(recipient string) (*ports.Subscription, error) {
	if recipient == "" {
		return nil, domain.Error{
			Type:    domain.ErrorTypeValidation,
			Message: "recipient must not be empty",
		}
	}

	sub := &subscriber{
		id:        uuid.New().String(),
		recipient: recipient,
		ch:        make(chan *domain.Notification, r.bufferSize),
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, domain.ErrRouterClosed
	}
	if r.subscribers[recipient] == nil {
		r.subscribers[recipient] = make(map[string]*subscriber)
	}
	r.subscribers[recipient][sub.id] = sub
	r.mu.Unlock()

	r.logger.Debug("subscription opened",
		"recipient", recipient,
		"subscription_id", sub.id)

	return &ports.Subscription{
		ID:        sub.id,
		Recipient: recipient,
		C:         sub.ch,
		Cancel: func() {
			r.remove(sub)
		},
	}, nil
}

// Publish delivers the notification to every subscriber of the recipient.
// It never blocks; full buffers are resolved by priority.
func (r *Router) Publish(recipient string, notification *domain.Notification) {
	if notification == nil {
		return
	}

	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return
	}
	subs := make([]*subscriber, 0, len(r.subscribers[recipient]))
	for _, sub := range r.subscribers[recipient] {
		subs = append(subs, sub)
	}
	r.mu.RUnlock()

	for _, sub := range subs {
		sub.deliver(notification, r.logger)
	}
}

// Close shuts the router down and closes every subscription channel.
// Subsequent Subscribe calls fail and Publish becomes a no-op. Close is
// idempotent.
func (r *Router) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true

	var all []*subscriber
	for _, subs := range r.subscribers {
		for _, sub := range subs {
			all = append(all, sub)
		}
	}
	r.subscribers = make(map[string]map[string]*subscriber)
	r.mu.Unlock()

	for _, sub := range all {
		sub.close()
	}

	r.logger.Debug("push router closed", "subscriptions_closed", len(all))
	return nil
}

func (r *Router) remove(sub *subscriber) {
	r.mu.Lock()
	if subs := r.subscribers[sub.recipient]; subs != nil {
		delete(subs, sub.id)
		if len(subs) == 0 {
			delete(r.subscribers, sub.recipient)
		}
	}
	r.mu.Unlock()

	sub.close()
}

func (s *subscriber) deliver(notification *domain.Notification, logger *slog.Logger) {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return
	}

	select {
	case s.ch <- notification:
		return
	default:
	}

	if notification.Priority.Rank() < domain.PriorityHigh.Rank() {
		logger.Warn("notification dropped, subscriber buffer full",
			"recipient", s.recipient,
			"subscription_id", s.id,
			"notification_id", notification.ID,
			"priority", notification.Priority)
		return
	}

	// Urgent delivery: push out the oldest buffered entry. The consumer may
	// drain concurrently, so both channel operations stay non-blocking.
	select {
	case evicted := <-s.ch:
		logger.Warn("notification evicted for urgent delivery",
			"recipient", s.recipient,
			"subscription_id", s.id,
			"evicted_id", evicted.ID,
			"notification_id", notification.ID,
			"priority", notification.Priority)
	default:
	}
	select {
	case s.ch <- notification:
	default:
		logger.Warn("notification dropped, subscriber buffer full",
			"recipient", s.recipient,
			"subscription_id", s.id,
			"notification_id", notification.ID,
			"priority", notification.Priority)
	}
}

// close is idempotent so a subscription Close racing a router Close stays
// safe.
func (s *subscriber) close() {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
