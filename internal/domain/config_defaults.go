package domain

import (
	"io"
	"log/slog"
	"time"
)

func DefaultConfig() *Config {
	return &Config{
		Scheduler:     DefaultSchedulerConfig(),
		Events:        DefaultEventsConfig(),
		Notifications: DefaultNotificationsConfig(),
		Push:          DefaultPushConfig(),
	}
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		LookaheadWindow:      time.Hour,
		TimeoutCheckInterval: 30 * time.Second,
	}
}

func DefaultEventsConfig() EventsConfig {
	return EventsConfig{
		QueueSize: 256,
	}
}

func DefaultNotificationsConfig() NotificationsConfig {
	return NotificationsConfig{
		DeliveryMethods: []DeliveryMethod{DeliveryInApp},
	}
}

func DefaultPushConfig() PushConfig {
	return PushConfig{
		BufferSize: 16,
	}
}

func NewConfigFromSimple(logger *slog.Logger) *Config {
	config := DefaultConfig()
	config.Logger = logger

	if logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return config
}

func (c *Config) WithLogger(logger *slog.Logger) *Config {
	c.Logger = logger
	return c
}

func (c *Config) WithLookaheadWindow(window time.Duration) *Config {
	c.Scheduler.LookaheadWindow = window
	return c
}

func (c *Config) WithTimeoutCheckInterval(interval time.Duration) *Config {
	c.Scheduler.TimeoutCheckInterval = interval
	return c
}

func (c *Config) WithEventQueueSize(size int) *Config {
	c.Events.QueueSize = size
	return c
}

func (c *Config) WithPushBufferSize(size int) *Config {
	c.Push.BufferSize = size
	return c
}

func (c *Config) WithDeliveryMethods(methods ...DeliveryMethod) *Config {
	c.Notifications.DeliveryMethods = methods
	return c
}
