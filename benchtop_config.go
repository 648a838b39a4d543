package benchtop

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eleven-am/benchtop/internal/domain"
)

type Config = domain.Config

type SchedulerConfig = domain.SchedulerConfig

type EventsConfig = domain.EventsConfig

type NotificationsConfig = domain.NotificationsConfig

type PushConfig = domain.PushConfig

func DefaultConfig() *Config {
	return domain.DefaultConfig()
}

func DefaultSchedulerConfig() SchedulerConfig {
	return domain.DefaultSchedulerConfig()
}

func DefaultEventsConfig() EventsConfig {
	return domain.DefaultEventsConfig()
}

func DefaultNotificationsConfig() NotificationsConfig {
	return domain.DefaultNotificationsConfig()
}

func DefaultPushConfig() PushConfig {
	return domain.DefaultPushConfig()
}

// configFile mirrors Config with durations as strings so config files can say
// "45m" instead of a nanosecond count.
type configFile struct {
	Scheduler struct {
		LookaheadWindow      string `yaml:"lookahead_window"`
		TimeoutCheckInterval string `yaml:"timeout_check_interval"`
	} `yaml:"scheduler"`
	Events struct {
		QueueSize int `yaml:"queue_size"`
	} `yaml:"events"`
	Notifications struct {
		DeliveryMethods []string `yaml:"delivery_methods"`
	} `yaml:"notifications"`
	Push struct {
		BufferSize int `yaml:"buffer_size"`
	} `yaml:"push"`
}

// LoadConfig reads a YAML configuration file and lays it over the defaults.
// Fields absent from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	var file configFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	override, err := file.toConfig()
	if err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	config := DefaultConfig()
	if err := domain.MergeConfig(config, override); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (f *configFile) toConfig() (*Config, error) {
	config := &Config{}

	if f.Scheduler.LookaheadWindow != "" {
		window, err := time.ParseDuration(f.Scheduler.LookaheadWindow)
		if err != nil {
			return nil, fmt.Errorf("scheduler lookahead_window: %w", err)
		}
		config.Scheduler.LookaheadWindow = window
	}

	if f.Scheduler.TimeoutCheckInterval != "" {
		interval, err := time.ParseDuration(f.Scheduler.TimeoutCheckInterval)
		if err != nil {
			return nil, fmt.Errorf("scheduler timeout_check_interval: %w", err)
		}
		config.Scheduler.TimeoutCheckInterval = interval
	}

	config.Events.QueueSize = f.Events.QueueSize
	config.Push.BufferSize = f.Push.BufferSize

	for _, method := range f.Notifications.DeliveryMethods {
		config.Notifications.DeliveryMethods = append(config.Notifications.DeliveryMethods, DeliveryMethod(method))
	}

	return config, nil
}

type ConfigBuilder struct {
	config *Config
}

func NewConfigBuilder(logger *slog.Logger) *ConfigBuilder {
	return &ConfigBuilder{config: domain.NewConfigFromSimple(logger)}
}

func (cb *ConfigBuilder) WithLookaheadWindow(window time.Duration) *ConfigBuilder {
	cb.config.WithLookaheadWindow(window)
	return cb
}

func (cb *ConfigBuilder) WithTimeoutCheckInterval(interval time.Duration) *ConfigBuilder {
	cb.config.WithTimeoutCheckInterval(interval)
	return cb
}

func (cb *ConfigBuilder) WithEventQueueSize(size int) *ConfigBuilder {
	cb.config.WithEventQueueSize(size)
	return cb
}

func (cb *ConfigBuilder) WithPushBufferSize(size int) *ConfigBuilder {
	cb.config.WithPushBufferSize(size)
	return cb
}

func (cb *ConfigBuilder) WithDeliveryMethods(methods ...DeliveryMethod) *ConfigBuilder {
	cb.config.WithDeliveryMethods(methods...)
	return cb
}

func (cb *ConfigBuilder) Build() *Config {
	return cb.config
}
