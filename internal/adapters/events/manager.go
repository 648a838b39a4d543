package events

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/eleven-am/benchtop/internal/domain"
	"github.com/google/uuid"
)

// Manager decouples scheduler transitions from listener delivery through a
// bounded queue. Publish never blocks: a full queue drops the event. One
// consumer goroutine drains the queue and invokes handlers synchronously, so
// listeners observe events in publish order.
type Manager struct {
	logger    *slog.Logger
	queueSize int

	mu      sync.RWMutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	queue   chan domain.Event
	wg      sync.WaitGroup

	stepReadyHandlers        []func(*domain.StepReadyEvent)
	stepStartedHandlers      []func(*domain.StepStartedEvent)
	stepPausedHandlers       []func(*domain.StepPausedEvent)
	stepCompletedHandlers    []func(*domain.StepCompletedEvent)
	stepTimeoutHandlers      []func(*domain.StepTimeoutEvent)
	resourceConflictHandlers []func(*domain.ResourceConflictEvent)
	scheduleComputedHandlers []func(*domain.ScheduleComputedEvent)
	genericHandlers          []genericSubscription
}

type genericSubscription struct {
	id      string
	pattern string
	handler func(string, domain.Event)
}

func NewManager(config domain.EventsConfig, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	queueSize := config.QueueSize
	if queueSize <= 0 {
		queueSize = domain.DefaultEventsConfig().QueueSize
	}

	return &Manager{
		logger:    logger.With("component", "event-manager"),
		queueSize: queueSize,
	}
}

func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return domain.ErrAlreadyStarted
	}

	m.ctx, m.cancel = context.WithCancel(ctx)
	m.queue = make(chan domain.Event, m.queueSize)
	m.running = true

	m.wg.Add(1)
	go m.consume(m.ctx, m.queue)

	m.logger.Debug("event manager started", "queue_size", m.queueSize)
	return nil
}

func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return domain.ErrNotStarted
	}
	m.cancel()
	m.running = false
	m.mu.Unlock()

	m.wg.Wait()
	m.logger.Debug("event manager stopped")
	return nil
}

// Publish enqueues the event without blocking. Events published while the
// manager is stopped, or while the queue is full, are dropped with a
// warning.
func (m *Manager) Publish(event domain.Event) error {
	if event == nil {
		return domain.Error{Type: domain.ErrorTypeValidation, Message: "event is nil"}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.running {
		m.logger.Warn("event dropped, manager not running", "key", event.Key())
		return domain.ErrNotStarted
	}

	select {
	case m.queue <- event:
		return nil
	default:
		m.logger.Warn("event dropped, queue full", "key", event.Key())
		return domain.ErrQueueFull
	}
}

func (m *Manager) consume(ctx context.Context, queue chan domain.Event) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-queue:
			m.dispatch(event)
		}
	}
}

func (m *Manager) dispatch(event domain.Event) {
	switch typed := event.(type) {
	case *domain.StepReadyEvent:
		m.notifyStepReady(typed)
	case *domain.StepStartedEvent:
		m.notifyStepStarted(typed)
	case *domain.StepPausedEvent:
		m.notifyStepPaused(typed)
	case *domain.StepCompletedEvent:
		m.notifyStepCompleted(typed)
	case *domain.StepTimeoutEvent:
		m.notifyStepTimeout(typed)
	case *domain.ResourceConflictEvent:
		m.notifyResourceConflict(typed)
	case *domain.ScheduleComputedEvent:
		m.notifyScheduleComputed(typed)
	}

	m.notifyGeneric(event.Key(), event)
}

func (m *Manager) OnStepReady(handler func(*domain.StepReadyEvent)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stepReadyHandlers = append(m.stepReadyHandlers, handler)
	return nil
}

func (m *Manager) OnStepStarted(handler func(*domain.StepStartedEvent)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stepStartedHandlers = append(m.stepStartedHandlers, handler)
	return nil
}

func (m *Manager) OnStepPaused(handler func(*domain.StepPausedEvent)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stepPausedHandlers = append(m.stepPausedHandlers, handler)
	return nil
}

func (m *Manager) OnStepCompleted(handler func(*domain.StepCompletedEvent)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stepCompletedHandlers = append(m.stepCompletedHandlers, handler)
	return nil
}

func (m *Manager) OnStepTimeout(handler func(*domain.StepTimeoutEvent)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stepTimeoutHandlers = append(m.stepTimeoutHandlers, handler)
	return nil
}

func (m *Manager) OnResourceConflict(handler func(*domain.ResourceConflictEvent)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resourceConflictHandlers = append(m.resourceConflictHandlers, handler)
	return nil
}

func (m *Manager) OnScheduleComputed(handler func(*domain.ScheduleComputedEvent)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scheduleComputedHandlers = append(m.scheduleComputedHandlers, handler)
	return nil
}

// Subscribe registers a handler for every event whose key matches the
// pattern: "*" matches everything, a trailing "*" matches a prefix, anything
// else matches exactly.
func (m *Manager) Subscribe(pattern string, handler func(string, domain.Event)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.genericHandlers = append(m.genericHandlers, genericSubscription{
		id:      uuid.New().String(),
		pattern: pattern,
		handler: handler,
	})
	return nil
}

func (m *Manager) Unsubscribe(pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var filtered []genericSubscription
	for _, sub := range m.genericHandlers {
		if sub.pattern != pattern {
			filtered = append(filtered, sub)
		}
	}
	m.genericHandlers = filtered
	return nil
}

func (m *Manager) notifyStepReady(event *domain.StepReadyEvent) {
	m.mu.RLock()
	handlers := make([]func(*domain.StepReadyEvent), len(m.stepReadyHandlers))
	copy(handlers, m.stepReadyHandlers)
	m.mu.RUnlock()

	for _, handler := range handlers {
		m.safeCall(func() { handler(event) })
	}
}

func (m *Manager) notifyStepStarted(event *domain.StepStartedEvent) {
	m.mu.RLock()
	handlers := make([]func(*domain.StepStartedEvent), len(m.stepStartedHandlers))
	copy(handlers, m.stepStartedHandlers)
	m.mu.RUnlock()

	for _, handler := range handlers {
		m.safeCall(func() { handler(event) })
	}
}

func (m *Manager) notifyStepPaused(event *domain.StepPausedEvent) {
	m.mu.RLock()
	handlers := make([]func(*domain.StepPausedEvent), len(m.stepPausedHandlers))
	copy(handlers, m.stepPausedHandlers)
	m.mu.RUnlock()

	for _, handler := range handlers {
		m.safeCall(func() { handler(event) })
	}
}

func (m *Manager) notifyStepCompleted(event *domain.StepCompletedEvent) {
	m.mu.RLock()
	handlers := make([]func(*domain.StepCompletedEvent), len(m.stepCompletedHandlers))
	copy(handlers, m.stepCompletedHandlers)
	m.mu.RUnlock()

	for _, handler := range handlers {
		m.safeCall(func() { handler(event) })
	}
}

func (m *Manager) notifyStepTimeout(event *domain.StepTimeoutEvent) {
	m.mu.RLock()
	handlers := make([]func(*domain.StepTimeoutEvent), len(m.stepTimeoutHandlers))
	copy(handlers, m.stepTimeoutHandlers)
	m.mu.RUnlock()

	for _, handler := range handlers {
		m.safeCall(func() { handler(event) })
	}
}

func (m *Manager) notifyResourceConflict(event *domain.ResourceConflictEvent) {
	m.mu.RLock()
	handlers := make([]func(*domain.ResourceConflictEvent), len(m.resourceConflictHandlers))
	copy(handlers, m.resourceConflictHandlers)
	m.mu.RUnlock()

	for _, handler := range handlers {
		m.safeCall(func() { handler(event) })
	}
}

func (m *Manager) notifyScheduleComputed(event *domain.ScheduleComputedEvent) {
	m.mu.RLock()
	handlers := make([]func(*domain.ScheduleComputedEvent), len(m.scheduleComputedHandlers))
	copy(handlers, m.scheduleComputedHandlers)
	m.mu.RUnlock()

	for _, handler := range handlers {
		m.safeCall(func() { handler(event) })
	}
}

func (m *Manager) notifyGeneric(key string, event domain.Event) {
	m.mu.RLock()
	var matching []func(string, domain.Event)
	for _, sub := range m.genericHandlers {
		if m.patternMatches(sub.pattern, key) {
			matching = append(matching, sub.handler)
		}
	}
	m.mu.RUnlock()

	for _, handler := range matching {
		m.safeCall(func() { handler(key, event) })
	}
}

func (m *Manager) patternMatches(pattern, key string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(key, prefix)
	}
	return pattern == key
}

func (m *Manager) safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("event handler panicked", "panic", r)
		}
	}()
	fn()
}
