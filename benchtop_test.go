package benchtop

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "benchtop.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
scheduler:
  lookahead_window: 2h
events:
  queue_size: 64
notifications:
  delivery_methods: [in_app, email]
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Hour, config.Scheduler.LookaheadWindow)
	assert.Equal(t, 30*time.Second, config.Scheduler.TimeoutCheckInterval)
	assert.Equal(t, 64, config.Events.QueueSize)
	assert.Equal(t, DefaultPushConfig().BufferSize, config.Push.BufferSize)
	assert.Equal(t, []DeliveryMethod{DeliveryInApp, DeliveryEmail}, config.Notifications.DeliveryMethods)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "scheduler:\n  lookahead_window: soon\n"))
	require.ErrorContains(t, err, "lookahead_window")

	_, err = LoadConfig(writeConfig(t, "notifications:\n  delivery_methods: [pigeon]\n"))
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = LoadConfig(writeConfig(t, "events: [not, a, mapping]\n"))
	require.Error(t, err)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestConfigBuilder(t *testing.T) {
	config := NewConfigBuilder(nil).
		WithLookaheadWindow(45 * time.Minute).
		WithTimeoutCheckInterval(5 * time.Second).
		WithEventQueueSize(32).
		WithPushBufferSize(8).
		WithDeliveryMethods(DeliveryEmail).
		Build()

	require.NoError(t, config.Validate())
	assert.Equal(t, 45*time.Minute, config.Scheduler.LookaheadWindow)
	assert.Equal(t, 5*time.Second, config.Scheduler.TimeoutCheckInterval)
	assert.Equal(t, 32, config.Events.QueueSize)
	assert.Equal(t, 8, config.Push.BufferSize)
	assert.Equal(t, []DeliveryMethod{DeliveryEmail}, config.Notifications.DeliveryMethods)
}

func TestPublicFacade(t *testing.T) {
	manager, err := New(nil)
	require.NoError(t, err)
	require.NoError(t, manager.Start(context.Background()))
	defer manager.Stop()

	sub, err := manager.SubscribeNotifications("ava")
	require.NoError(t, err)
	defer sub.Close()

	notification := NewNotification("Plate ready", "Collect from incubator 2.", NotificationGeneralInfo, PriorityMedium).
		WithRecipients("ava")
	require.NoError(t, manager.Notify(notification))

	select {
	case pushed := <-sub.C:
		assert.Equal(t, "Plate ready", pushed.Title)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a pushed notification")
	}

	assert.True(t, IsNotFound(manager.MarkRead("missing")))

	experiment := NewExperiment("Dish 2", "").WithOwner("ava")
	experiment.AddStep(NewStep("Seed", 15*time.Minute, StepTypeTask))
	require.NoError(t, manager.AddExperiment(experiment))
	assert.Len(t, manager.Experiments(), 1)
}
