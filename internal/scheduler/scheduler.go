package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/leozw/farm-guardian/internal/config"
	"github.com/leozw/farm-guardian/internal/db"
	"github.com/leozw/farm-guardian/internal/farms"
	"github.com/leozw/farm-guardian/internal/metrics"
	"github.com/leozw/farm-guardian/internal/predictions"
)

// PredictionFeed reports the prediction currently open on a farm's channel.
// It returns a nil prediction when nothing is open.
type PredictionFeed interface {
	OpenPrediction(ctx context.Context, farm db.Farm) (*predictions.Prediction, error)
}

type PredictionJob struct {
	Farm db.Farm
}

type Scheduler struct {
	farms   *farms.Service
	engine  *predictions.Engine
	feed    PredictionFeed
	metrics *metrics.Collector
	logger  *zap.Logger
	config  config.SchedulerConfig
	workers []*Worker
	wg      sync.WaitGroup
}

func NewScheduler(svc *farms.Service, engine *predictions.Engine, feed PredictionFeed, metrics *metrics.Collector, logger *zap.Logger, cfg config.SchedulerConfig) *Scheduler {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.Spec == "" {
		cfg.Spec = "@every 30s"
	}
	return &Scheduler{
		farms:   svc,
		engine:  engine,
		feed:    feed,
		metrics: metrics,
		logger:  logger,
		config:  cfg,
	}
}

// Start runs scheduling rounds on the configured cron spec until ctx is
// done, then waits for in-flight jobs to finish.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("Starting scheduler",
		zap.Int("worker_count", s.config.WorkerCount),
		zap.String("spec", s.config.Spec))

	workQueue := make(chan *PredictionJob, s.config.QueueSize)

	c := cron.New()
	if _, err := c.AddFunc(s.config.Spec, func() { s.scheduleRound(ctx, workQueue) }); err != nil {
		return fmt.Errorf("invalid scheduler spec %q: %w", s.config.Spec, err)
	}

	s.workers = make([]*Worker, s.config.WorkerCount)
	for i := 0; i < s.config.WorkerCount; i++ {
		worker := NewWorker(i, workQueue, s.farms, s.engine, s.feed, s.metrics, s.logger)
		s.workers[i] = worker
		s.wg.Add(1)
		go func(w *Worker) {
			defer s.wg.Done()
			w.Start(ctx)
		}(worker)
	}

	c.Start()
	<-ctx.Done()

	s.logger.Info("Stopping scheduler")
	<-c.Stop().Done()
	close(workQueue)
	s.wg.Wait()
	return nil
}

// scheduleRound queues one job per enabled farm with predictions turned on.
func (s *Scheduler) scheduleRound(ctx context.Context, workQueue chan<- *PredictionJob) int {
	if ctx.Err() != nil {
		return 0
	}

	queued := 0
	for _, farm := range s.farms.ListFarms(ctx) {
		if !farm.Enabled || !farm.Features.Predictions {
			continue
		}

		select {
		case workQueue <- &PredictionJob{Farm: farm}:
			queued++
			s.logger.Debug("Scheduled prediction check",
				zap.Int64("farm_id", farm.ID),
				zap.String("channel", farm.ChannelName),
			)
		default:
			s.metrics.RecordSchedulerJob("dropped")
			s.logger.Warn("Work queue full, dropping prediction check",
				zap.Int64("farm_id", farm.ID),
				zap.String("channel", farm.ChannelName),
			)
		}
	}
	return queued
}
