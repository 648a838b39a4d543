package ports

import (
	"context"

	"github.com/eleven-am/benchtop/internal/domain"
)

type EventManager interface {
	Start(ctx context.Context) error
	Stop() error

	// Publish enqueues an event without blocking; when the queue is full the
	// event is dropped and ErrQueueFull returned.
	Publish(event domain.Event) error

	OnStepReady(handler func(event *domain.StepReadyEvent)) error
	OnStepStarted(handler func(event *domain.StepStartedEvent)) error
	OnStepPaused(handler func(event *domain.StepPausedEvent)) error
	OnStepCompleted(handler func(event *domain.StepCompletedEvent)) error
	OnStepTimeout(handler func(event *domain.StepTimeoutEvent)) error
	OnResourceConflict(handler func(event *domain.ResourceConflictEvent)) error
	OnScheduleComputed(handler func(event *domain.ScheduleComputedEvent)) error

	Subscribe(pattern string, handler func(key string, event domain.Event)) error
	Unsubscribe(pattern string) error
}
