package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	defaultCreateWindow = time.Hour
	defaultRenewWindow  = 90 * 24 * time.Hour
)

// SubscriptionConfig controls what the managed subscription watches and how
// far out expirations are requested. MaxWindow caps both windows at the
// remote API's maximum allowed lease; zero means no cap.
type SubscriptionConfig struct {
	Resource     string        `koanf:"resource" mapstructure:"resource"`
	ChangeType   string        `koanf:"change_type" mapstructure:"change_type"`
	CreateWindow time.Duration `koanf:"create_window" mapstructure:"create_window"`
	RenewWindow  time.Duration `koanf:"renew_window" mapstructure:"renew_window"`
	MaxWindow    time.Duration `koanf:"max_window" mapstructure:"max_window"`
}

type Config struct {
	ServiceName      string             `koanf:"service_name" mapstructure:"service_name"`
	NotificationHost string             `koanf:"notification_host" mapstructure:"notification_host"`
	Subscription     SubscriptionConfig `koanf:"subscription" mapstructure:"subscription"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "graphwatch",
		Subscription: SubscriptionConfig{
			Resource:     "me",
			ChangeType:   "updated",
			CreateWindow: defaultCreateWindow,
			RenewWindow:  defaultRenewWindow,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Subscription.CreateWindow < 0 {
		return fmt.Errorf("core: subscription.create_window must not be negative")
	}
	if c.Subscription.RenewWindow < 0 {
		return fmt.Errorf("core: subscription.renew_window must not be negative")
	}
	if c.Subscription.MaxWindow < 0 {
		return fmt.Errorf("core: subscription.max_window must not be negative")
	}
	return nil
}
