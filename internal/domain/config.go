package domain

import (
	"fmt"
	"log/slog"
	"time"
)

type Config struct {
	Logger *slog.Logger `json:"-" yaml:"-"`

	Scheduler     SchedulerConfig     `json:"scheduler" yaml:"scheduler"`
	Events        EventsConfig        `json:"events" yaml:"events"`
	Notifications NotificationsConfig `json:"notifications" yaml:"notifications"`
	Push          PushConfig          `json:"push" yaml:"push"`
}

type SchedulerConfig struct {
	LookaheadWindow      time.Duration `json:"lookahead_window" yaml:"lookahead_window"`
	TimeoutCheckInterval time.Duration `json:"timeout_check_interval" yaml:"timeout_check_interval"`
}

type EventsConfig struct {
	QueueSize int `json:"queue_size" yaml:"queue_size"`
}

type NotificationsConfig struct {
	DeliveryMethods []DeliveryMethod `json:"delivery_methods" yaml:"delivery_methods"`
}

type PushConfig struct {
	BufferSize int `json:"buffer_size" yaml:"buffer_size"`
}

func (c *Config) Validate() error {
	if c.Scheduler.LookaheadWindow <= 0 {
		return fmt.Errorf("%w: scheduler lookahead_window must be positive", ErrInvalidConfig)
	}
	if c.Scheduler.TimeoutCheckInterval <= 0 {
		return fmt.Errorf("%w: scheduler timeout_check_interval must be positive", ErrInvalidConfig)
	}
	if c.Events.QueueSize <= 0 {
		return fmt.Errorf("%w: events queue_size must be positive", ErrInvalidConfig)
	}
	if c.Push.BufferSize <= 0 {
		return fmt.Errorf("%w: push buffer_size must be positive", ErrInvalidConfig)
	}
	for _, method := range c.Notifications.DeliveryMethods {
		switch method {
		case DeliveryInApp, DeliveryEmail, DeliveryPush, DeliverySMS:
		default:
			return fmt.Errorf("%w: unknown delivery method %q", ErrInvalidConfig, method)
		}
	}
	return nil
}
