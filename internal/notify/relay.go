package notify

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/leozw/farm-guardian/internal/metrics"
	"github.com/leozw/farm-guardian/internal/queue"
)

// Relay drains notifications queued by RedisNotifier and forwards each to
// target. Failed forwards are logged and dropped; there is no retry.
type Relay struct {
	queue       *queue.RedisQueue
	target      Notifier
	metrics     *metrics.Collector
	logger      *zap.Logger
	popTimeout  time.Duration
	sendTimeout time.Duration
}

func NewRelay(q *queue.RedisQueue, target Notifier, metrics *metrics.Collector, logger *zap.Logger, sendTimeout time.Duration) *Relay {
	if sendTimeout <= 0 {
		sendTimeout = 5 * time.Second
	}
	return &Relay{
		queue:       q,
		target:      target,
		metrics:     metrics,
		logger:      logger,
		popTimeout:  time.Second,
		sendTimeout: sendTimeout,
	}
}

func (r *Relay) Run(ctx context.Context) {
	r.logger.Info("Relay started", zap.String("queue", r.queue.Name()))

	for {
		if ctx.Err() != nil {
			r.logger.Info("Relay stopped")
			return
		}

		if _, err := r.relayOne(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("Failed to read notification queue", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
}

// relayOne forwards at most one queued notification. It reports whether
// one was popped; forwarding failures are not returned.
func (r *Relay) relayOne(ctx context.Context) (bool, error) {
	job, err := r.queue.Pop(ctx, r.popTimeout)
	if err != nil {
		if errors.Is(err, queue.ErrTimeout) {
			return false, nil
		}
		return false, err
	}

	n := FromJob(job)
	sendCtx, cancel := context.WithTimeout(ctx, r.sendTimeout)
	defer cancel()

	start := time.Now()
	if err := r.target.Notify(sendCtx, n); err != nil {
		r.metrics.RecordNotification("failed", time.Since(start))
		r.logger.Warn("Failed to relay notification",
			zap.String("notification_id", n.ID.String()),
			zap.String("event", n.Event),
			zap.String("channel", n.ChannelName),
			zap.Error(err))
		return true, nil
	}

	r.metrics.RecordNotification("delivered", time.Since(start))
	return true, nil
}
