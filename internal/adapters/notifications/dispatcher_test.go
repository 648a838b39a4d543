package notifications

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/benchtop/internal/adapters/events"
	"github.com/eleven-am/benchtop/internal/domain"
	"github.com/eleven-am/benchtop/internal/ports"
)

type fakeStore struct {
	mu        sync.Mutex
	saved     []*domain.Notification
	failSave  bool
	read      []string
	dismissed []string
	deleted   []string
	canned    []*domain.Notification
}

func (f *fakeStore) Save(notification *domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave {
		return errors.New("store unavailable")
	}
	f.saved = append(f.saved, notification)
	return nil
}

func (f *fakeStore) Get(id string) (*domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.saved {
		if n.ID == id {
			return n, nil
		}
	}
	return nil, domain.ErrNotificationNotFound
}

func (f *fakeStore) ForRecipient(recipient string, unreadOnly bool) ([]*domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.canned, nil
}

func (f *fakeStore) UnreadCount(recipient string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.canned), nil
}

func (f *fakeStore) MarkRead(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.read = append(f.read, id)
	return nil
}

func (f *fakeStore) MarkDismissed(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dismissed = append(f.dismissed, id)
	return nil
}

func (f *fakeStore) Delete(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) savedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

func (f *fakeStore) savedByType(typ domain.NotificationType) *domain.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.saved {
		if n.Type == typ {
			return n
		}
	}
	return nil
}

type fakeRouter struct {
	mu        sync.Mutex
	published map[string][]*domain.Notification
}

func newFakeRouter() *fakeRouter {
	return &fakeRouter{published: make(map[string][]*domain.Notification)}
}

func (f *fakeRouter) Subscribe(recipient string) (*ports.Subscription, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeRouter) Publish(recipient string, notification *domain.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published[recipient] = append(f.published[recipient], notification)
}

func (f *fakeRouter) Close() error { return nil }

func (f *fakeRouter) publishedTo(recipient string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published[recipient])
}

func newTestDispatcher(store *fakeStore, router *fakeRouter) *Dispatcher {
	return NewDispatcher(domain.DefaultNotificationsConfig(), store, router, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestDispatcherNotify(t *testing.T) {
	store := &fakeStore{}
	router := newFakeRouter()
	dispatcher := newTestDispatcher(store, router)

	notification := GeneralInfo("Maintenance", "Incubator offline.", "mark", "sofia")
	require.NoError(t, dispatcher.Notify(notification))

	assert.Equal(t, 1, store.savedCount())
	assert.Equal(t, 1, router.publishedTo("mark"))
	assert.Equal(t, 1, router.publishedTo("sofia"))
	assert.Equal(t, []domain.DeliveryMethod{domain.DeliveryInApp}, notification.Delivery,
		"default delivery methods are stamped when none are set")

	explicit := GeneralInfo("Reminder", "Check incubator.", "mark").
		WithDelivery(domain.DeliveryEmail)
	require.NoError(t, dispatcher.Notify(explicit))
	assert.Equal(t, []domain.DeliveryMethod{domain.DeliveryEmail}, explicit.Delivery)
}

func TestDispatcherStoreFailureStillPushes(t *testing.T) {
	store := &fakeStore{failSave: true}
	router := newFakeRouter()
	dispatcher := newTestDispatcher(store, router)

	notification := GeneralInfo("Maintenance", "Incubator offline.", "mark")
	err := dispatcher.Notify(notification)
	require.Error(t, err)

	assert.Equal(t, 0, store.savedCount())
	assert.Equal(t, 1, router.publishedTo("mark"), "push must still happen when the store fails")
}

func TestDispatcherNotifyValidation(t *testing.T) {
	dispatcher := newTestDispatcher(&fakeStore{}, newFakeRouter())

	err := dispatcher.Notify(nil)
	require.Error(t, err)
	domainErr, ok := err.(domain.Error)
	require.True(t, ok)
	assert.Equal(t, domain.ErrorTypeValidation, domainErr.Type)
}

func TestDispatcherReadSideDelegation(t *testing.T) {
	store := &fakeStore{canned: []*domain.Notification{
		GeneralInfo("one", "1", "mark"),
		GeneralInfo("two", "2", "mark"),
	}}
	dispatcher := newTestDispatcher(store, newFakeRouter())

	list, err := dispatcher.Notifications("mark", false)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	count, err := dispatcher.UnreadCount("mark")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, dispatcher.MarkRead("n1"))
	require.NoError(t, dispatcher.MarkDismissed("n2"))
	require.NoError(t, dispatcher.Delete("n3"))
	assert.Equal(t, []string{"n1"}, store.read)
	assert.Equal(t, []string{"n2"}, store.dismissed)
	assert.Equal(t, []string{"n3"}, store.deleted)
}

func TestDispatcherRegister(t *testing.T) {
	store := &fakeStore{}
	router := newFakeRouter()
	dispatcher := newTestDispatcher(store, router)

	manager := events.NewManager(domain.EventsConfig{QueueSize: 16}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, dispatcher.Register(manager))
	require.NoError(t, manager.Start(context.Background()))
	defer func() {
		require.NoError(t, manager.Stop())
	}()

	require.NoError(t, manager.Publish(&domain.StepReadyEvent{
		StepID:         "step-1",
		StepName:       "Wash",
		ExperimentID:   "exp-1",
		ExperimentName: "Dish 1",
		Recipients:     []string{"mark"},
		ReadyAt:        time.Now(),
	}))
	require.NoError(t, manager.Publish(&domain.ResourceConflictEvent{
		Resource:            "microscope",
		StepID:              "step-2",
		StepName:            "Image Capture",
		ExperimentID:        "exp-1",
		ConflictingStepID:   "step-3",
		ConflictingStepName: "Calibration",
		ConflictingExpID:    "exp-2",
		Recipients:          []string{"mark"},
		DetectedAt:          time.Now(),
	}))

	require.Eventually(t, func() bool {
		return store.savedCount() == 2
	}, 2*time.Second, 5*time.Millisecond)

	ready := store.savedByType(domain.NotificationStepReady)
	require.NotNil(t, ready)
	assert.Equal(t, "Step Ready: Wash", ready.Title)
	require.Len(t, ready.Actions, 1)
	assert.Equal(t, "start_step", ready.Actions[0].ID)

	conflict := store.savedByType(domain.NotificationResourceConflict)
	require.NotNil(t, conflict)
	assert.Len(t, conflict.Actions, 2)
	assert.Equal(t, 2, router.publishedTo("mark"))
}
