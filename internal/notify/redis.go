package notify

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/leozw/farm-guardian/internal/queue"
	rediscache "github.com/leozw/farm-guardian/internal/storage/redis"
)

// RedisNotifier pushes notifications onto a Redis queue for an out-of-process
// relay and caches the last status seen per channel.
type RedisNotifier struct {
	queue  *queue.RedisQueue
	cache  *rediscache.Client
	logger *zap.Logger
}

func NewRedisNotifier(cache *rediscache.Client, queueName string, logger *zap.Logger) *RedisNotifier {
	return &RedisNotifier{
		queue:  queue.NewRedisQueue(cache.Client, queueName),
		cache:  cache,
		logger: logger,
	}
}

func (r *RedisNotifier) Notify(ctx context.Context, n Notification) error {
	if err := r.queue.Push(ctx, ToJob(n)); err != nil {
		return &DeliveryError{Notifier: "redis", Err: err}
	}

	if n.ChannelName != "" {
		if err := r.cache.CacheChannelStatus(ctx, n.ChannelName, n); err != nil {
			r.logger.Warn("Failed to cache channel status",
				zap.String("channel", n.ChannelName),
				zap.Error(err))
		}
	}
	return nil
}

func ToJob(n Notification) *queue.Job {
	return &queue.Job{
		ID:          n.ID.String(),
		Event:       n.Event,
		ChannelName: n.ChannelName,
		Status:      n.Status,
		CreatedAt:   n.Timestamp,
	}
}

// FromJob rebuilds a notification popped off the queue. A malformed id
// gets a fresh one rather than failing the relay.
func FromJob(job *queue.Job) Notification {
	n := Notification{
		Event:       job.Event,
		ChannelName: job.ChannelName,
		Status:      job.Status,
		Timestamp:   job.CreatedAt,
	}
	if id, err := uuid.Parse(job.ID); err == nil {
		n.ID = id
	} else {
		n.ID = uuid.New()
	}
	return n
}
