package activity

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/leozw/farm-guardian/internal/config"
	"github.com/leozw/farm-guardian/internal/db"
	"github.com/leozw/farm-guardian/internal/metrics"
	"github.com/leozw/farm-guardian/internal/notify"
)

// Entry is what callers hand to Append; the sink assigns id and timestamp.
type Entry struct {
	AccountID   int64
	AccountName string
	ChannelID   string
	ChannelName string
	Event       string
	Status      db.LogStatus
	Details     string
}

// Sink is the append-only activity log. Appended entries are forwarded to a
// Notifier from a background dispatcher; forwarding never blocks or fails
// an append.
type Sink struct {
	repo      *db.Repository
	notifier  notify.Notifier
	metrics   *metrics.Collector
	logger    *zap.Logger
	retention int
	timeout   time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan notify.Notification
	wg     sync.WaitGroup
}

func NewSink(
	repo *db.Repository,
	notifier notify.Notifier,
	metrics *metrics.Collector,
	logger *zap.Logger,
	activityCfg config.ActivityConfig,
	timeout time.Duration,
) *Sink {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	retention := activityCfg.Retention
	if retention <= 0 {
		retention = config.DefaultRetention
	}
	queueSize := activityCfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Sink{
		repo:      repo,
		notifier:  notifier,
		metrics:   metrics,
		logger:    logger,
		retention: retention,
		timeout:   timeout,
		queue:     make(chan notify.Notification, queueSize),
	}
}

// Append stores the entry, evicts the oldest logs beyond the retention
// window and queues the entry for forwarding.
func (s *Sink) Append(ctx context.Context, e Entry) db.Log {
	log, evicted := s.repo.AppendLog(db.Log{
		AccountID:   e.AccountID,
		AccountName: e.AccountName,
		ChannelID:   e.ChannelID,
		ChannelName: e.ChannelName,
		Event:       e.Event,
		Status:      e.Status,
		Details:     e.Details,
	}, s.retention)

	if evicted > 0 {
		s.metrics.RecordEvicted(evicted)
	}
	s.metrics.RecordLog(log.Status)

	s.enqueue(notify.NewNotification(log.Event, log.ChannelName, string(log.Status), log.CreatedAt))
	return log
}

func (s *Sink) enqueue(n notify.Notification) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.metrics.RecordNotification("dropped", 0)
		return
	}

	select {
	case s.queue <- n:
		s.metrics.SetQueuedNotifications(len(s.queue))
	default:
		s.logger.Warn("Notification queue full, dropping notification",
			zap.String("event", n.Event),
			zap.String("channel", n.ChannelName))
		s.metrics.RecordNotification("dropped", 0)
	}
}

// Start runs the dispatcher until ctx is done or Close drains the queue.
func (s *Sink) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case n, ok := <-s.queue:
				if !ok {
					return
				}
				s.metrics.SetQueuedNotifications(len(s.queue))
				s.deliver(ctx, n)
			}
		}
	}()
}

func (s *Sink) deliver(ctx context.Context, n notify.Notification) {
	deliverCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := s.notifier.Notify(deliverCtx, n)
	latency := time.Since(start)

	if err != nil {
		s.logger.Warn("Failed to forward notification",
			zap.String("notification_id", n.ID.String()),
			zap.String("event", n.Event),
			zap.String("channel", n.ChannelName),
			zap.Duration("latency", latency),
			zap.Error(err))
		s.metrics.RecordNotification("failed", latency)
		return
	}
	s.metrics.RecordNotification("delivered", latency)
}

// Close stops accepting notifications and waits for the dispatcher to
// forward what is already queued.
func (s *Sink) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// Recent returns the newest logs first. A non-positive limit returns the
// whole retained window.
func (s *Sink) Recent(limit int) []db.Log {
	return newestFirst(s.repo.ListLogs(), limit, func(db.Log) bool { return true })
}

func (s *Sink) ByAccount(accountID int64, limit int) []db.Log {
	return newestFirst(s.repo.ListLogs(), limit, func(l db.Log) bool {
		return l.AccountID == accountID
	})
}

func (s *Sink) ByChannel(channelName string, limit int) []db.Log {
	return newestFirst(s.repo.ListLogs(), limit, func(l db.Log) bool {
		return l.ChannelName == channelName
	})
}

func newestFirst(logs []db.Log, limit int, keep func(db.Log) bool) []db.Log {
	result := make([]db.Log, 0)
	for i := len(logs) - 1; i >= 0; i-- {
		if !keep(logs[i]) {
			continue
		}
		result = append(result, logs[i])
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result
}
