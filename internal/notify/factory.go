package notify

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/leozw/farm-guardian/internal/config"
	rediscache "github.com/leozw/farm-guardian/internal/storage/redis"
)

// Notifier drivers. webhook+redis posts directly and also queues for the
// relay worker.
const (
	DriverNone         = "none"
	DriverWebhook      = "webhook"
	DriverRedis        = "redis"
	DriverWebhookRedis = "webhook+redis"
)

// New builds the notifier selected by cfg.Driver. The returned cleanup
// releases any connection the notifier holds.
func New(cfg config.NotifierConfig, logger *zap.Logger) (Notifier, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Driver {
	case "", DriverNone:
		return Nop{}, noop, nil
	case DriverWebhook:
		if cfg.WebhookURL == "" {
			return nil, noop, fmt.Errorf("notifier driver %q requires a webhook url", cfg.Driver)
		}
		return NewWebhookNotifier(cfg.WebhookURL, cfg.Timeout, cfg.RatePerSecond, cfg.Burst), noop, nil
	case DriverRedis:
		if cfg.RedisURL == "" {
			return nil, noop, fmt.Errorf("notifier driver %q requires a redis url", cfg.Driver)
		}
		client := rediscache.NewClient(cfg.RedisURL)
		return NewRedisNotifier(client, cfg.RedisKey, logger), client.Close, nil
	case DriverWebhookRedis:
		if cfg.WebhookURL == "" || cfg.RedisURL == "" {
			return nil, noop, fmt.Errorf("notifier driver %q requires a webhook url and a redis url", cfg.Driver)
		}
		client := rediscache.NewClient(cfg.RedisURL)
		return Multi{
			NewWebhookNotifier(cfg.WebhookURL, cfg.Timeout, cfg.RatePerSecond, cfg.Burst),
			NewRedisNotifier(client, cfg.RedisKey, logger),
		}, client.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown notifier driver %q", cfg.Driver)
	}
}
