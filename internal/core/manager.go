package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/eleven-am/benchtop/internal/adapters/events"
	"github.com/eleven-am/benchtop/internal/adapters/notifications"
	"github.com/eleven-am/benchtop/internal/adapters/protocol"
	"github.com/eleven-am/benchtop/internal/adapters/push"
	"github.com/eleven-am/benchtop/internal/adapters/scheduler"
	"github.com/eleven-am/benchtop/internal/adapters/storage"
	"github.com/eleven-am/benchtop/internal/domain"
	"github.com/eleven-am/benchtop/internal/ports"
)

type StepReadyEvent = domain.StepReadyEvent
type StepStartedEvent = domain.StepStartedEvent
type StepPausedEvent = domain.StepPausedEvent
type StepCompletedEvent = domain.StepCompletedEvent
type StepTimeoutEvent = domain.StepTimeoutEvent
type ResourceConflictEvent = domain.ResourceConflictEvent
type ScheduleComputedEvent = domain.ScheduleComputedEvent

// Manager wires the scheduling engine, event manager, notification store,
// push router and dispatcher into one runnable unit. It owns their
// lifecycles and exposes the combined API the root facade re-exports.
type Manager struct {
	scheduler  ports.SchedulerPort
	events     ports.EventManager
	store      ports.NotificationStore
	router     ports.PushRouter
	dispatcher ports.Dispatcher
	loader     ports.ProtocolLoader

	config *domain.Config
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New validates the configuration and constructs the full component graph.
// Nothing runs until Start.
func New(config *domain.Config) (*Manager, error) {
	if config == nil {
		config = domain.DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	eventManager := events.NewManager(config.Events, logger)

	store, err := storage.NewNotificationStore(logger)
	if err != nil {
		return nil, err
	}

	router := push.NewRouter(
		push.WithBufferSize(config.Push.BufferSize),
		push.WithLogger(logger),
	)

	dispatcher := notifications.NewDispatcher(config.Notifications, store, router, logger)
	if err := dispatcher.Register(eventManager); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("register dispatcher: %w", err)
	}

	engine := scheduler.New(config.Scheduler, eventManager, logger)

	return &Manager{
		scheduler:  engine,
		events:     eventManager,
		store:      store,
		router:     router,
		dispatcher: dispatcher,
		loader:     protocol.NewLoader(logger),
		config:     config,
		logger:     logger.With("component", "benchtop"),
	}, nil
}

// Start brings the event manager up before the scheduler so no transition
// event ever finds the queue missing.
func (m *Manager) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)

	if err := m.events.Start(runCtx); err != nil {
		cancel()
		return fmt.Errorf("start event manager: %w", err)
	}

	if err := m.scheduler.Start(runCtx); err != nil {
		_ = m.events.Stop()
		cancel()
		return fmt.Errorf("start scheduler: %w", err)
	}

	m.ctx, m.cancel = runCtx, cancel
	m.logger.Info("benchtop started")
	return nil
}

// Stop tears components down in reverse start order, then closes the push
// router and the store.
func (m *Manager) Stop() error {
	if m.cancel != nil {
		m.cancel()
	}

	if err := m.scheduler.Stop(); err != nil {
		m.logger.Warn("scheduler stop", "error", err.Error())
	}
	if err := m.events.Stop(); err != nil {
		m.logger.Warn("event manager stop", "error", err.Error())
	}
	if err := m.router.Close(); err != nil {
		m.logger.Warn("push router close", "error", err.Error())
	}
	if err := m.store.Close(); err != nil {
		m.logger.Warn("notification store close", "error", err.Error())
	}

	m.logger.Info("benchtop stopped")
	return nil
}

func (m *Manager) AddExperiment(experiment *domain.Experiment) error {
	return m.scheduler.AddExperiment(experiment)
}

// LoadProtocolFile parses one protocol file and registers every experiment
// it defines.
func (m *Manager) LoadProtocolFile(path string) ([]*domain.Experiment, error) {
	experiments, err := m.loader.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return m.registerLoaded(experiments)
}

// LoadProtocolDir loads every *.hcl file in the directory and registers the
// experiments in file order.
func (m *Manager) LoadProtocolDir(dir string) ([]*domain.Experiment, error) {
	experiments, err := m.loader.LoadDir(dir)
	if err != nil {
		return nil, err
	}
	return m.registerLoaded(experiments)
}

func (m *Manager) registerLoaded(experiments []*domain.Experiment) ([]*domain.Experiment, error) {
	for _, experiment := range experiments {
		if err := m.scheduler.AddExperiment(experiment); err != nil {
			return nil, fmt.Errorf("register experiment %q: %w", experiment.Name, err)
		}
	}
	return experiments, nil
}

func (m *Manager) GetStep(id string) (*domain.Step, error) {
	return m.scheduler.GetStep(id)
}

func (m *Manager) AllSteps() []*domain.Step {
	return m.scheduler.AllSteps()
}

func (m *Manager) UpcomingSteps(window time.Duration) []*domain.Step {
	return m.scheduler.UpcomingSteps(window)
}

func (m *Manager) Experiments() []*domain.Experiment {
	return m.scheduler.Experiments()
}

func (m *Manager) StartStep(id string, at *time.Time) error {
	return m.scheduler.StartStep(id, at)
}

func (m *Manager) PauseStep(id string) error {
	return m.scheduler.PauseStep(id)
}

func (m *Manager) CompleteStep(id string, at *time.Time) error {
	return m.scheduler.CompleteStep(id, at)
}

func (m *Manager) OverrideStep(id string, status domain.StepStatus) error {
	return m.scheduler.OverrideStep(id, status)
}

func (m *Manager) CalculateInitialSchedule(base time.Time) (*domain.ScheduleReport, error) {
	return m.scheduler.CalculateInitialSchedule(base)
}

func (m *Manager) CheckForConflicts() []domain.ResourceConflict {
	return m.scheduler.CheckForConflicts()
}

func (m *Manager) CheckTimeouts() []*domain.Step {
	return m.scheduler.CheckTimeouts()
}

// Notify emits a manually constructed notification through the dispatcher.
func (m *Manager) Notify(notification *domain.Notification) error {
	return m.dispatcher.Notify(notification)
}

func (m *Manager) Notifications(recipient string, unreadOnly bool) ([]*domain.Notification, error) {
	return m.dispatcher.Notifications(recipient, unreadOnly)
}

func (m *Manager) UnreadCount(recipient string) (int, error) {
	return m.dispatcher.UnreadCount(recipient)
}

func (m *Manager) MarkRead(id string) error {
	return m.dispatcher.MarkRead(id)
}

func (m *Manager) MarkDismissed(id string) error {
	return m.dispatcher.MarkDismissed(id)
}

func (m *Manager) DeleteNotification(id string) error {
	return m.dispatcher.Delete(id)
}

// SubscribeNotifications opens a live notification feed for the recipient.
func (m *Manager) SubscribeNotifications(recipient string) (*ports.Subscription, error) {
	return m.router.Subscribe(recipient)
}

func (m *Manager) OnStepReady(handler func(*StepReadyEvent)) error {
	return m.events.OnStepReady(handler)
}

func (m *Manager) OnStepStarted(handler func(*StepStartedEvent)) error {
	return m.events.OnStepStarted(handler)
}

func (m *Manager) OnStepPaused(handler func(*StepPausedEvent)) error {
	return m.events.OnStepPaused(handler)
}

func (m *Manager) OnStepCompleted(handler func(*StepCompletedEvent)) error {
	return m.events.OnStepCompleted(handler)
}

func (m *Manager) OnStepTimeout(handler func(*StepTimeoutEvent)) error {
	return m.events.OnStepTimeout(handler)
}

func (m *Manager) OnResourceConflict(handler func(*ResourceConflictEvent)) error {
	return m.events.OnResourceConflict(handler)
}

func (m *Manager) OnScheduleComputed(handler func(*ScheduleComputedEvent)) error {
	return m.events.OnScheduleComputed(handler)
}

func (m *Manager) Subscribe(pattern string, handler func(key string, event domain.Event)) error {
	return m.events.Subscribe(pattern, handler)
}

func (m *Manager) Unsubscribe(pattern string) error {
	return m.events.Unsubscribe(pattern)
}
