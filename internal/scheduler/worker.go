package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/leozw/farm-guardian/internal/db"
	"github.com/leozw/farm-guardian/internal/farms"
	"github.com/leozw/farm-guardian/internal/metrics"
	"github.com/leozw/farm-guardian/internal/predictions"
)

type Worker struct {
	id        int
	workQueue <-chan *PredictionJob
	farms     *farms.Service
	engine    *predictions.Engine
	feed      PredictionFeed
	metrics   *metrics.Collector
	logger    *zap.Logger
}

func NewWorker(id int, workQueue <-chan *PredictionJob, svc *farms.Service, engine *predictions.Engine, feed PredictionFeed, metrics *metrics.Collector, logger *zap.Logger) *Worker {
	return &Worker{
		id:        id,
		workQueue: workQueue,
		farms:     svc,
		engine:    engine,
		feed:      feed,
		metrics:   metrics,
		logger:    logger.With(zap.Int("worker_id", id)),
	}
}

func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Worker stopped")
			return
		case job, ok := <-w.workQueue:
			if !ok {
				w.logger.Info("Work queue closed")
				return
			}
			w.processJob(ctx, job)
		}
	}
}

func (w *Worker) processJob(ctx context.Context, job *PredictionJob) {
	start := time.Now()
	farm := job.Farm

	prediction, err := w.feed.OpenPrediction(ctx, farm)
	if err != nil {
		w.metrics.RecordSchedulerJob("feed_error")
		w.logger.Error("Failed to fetch open prediction",
			zap.Error(err),
			zap.Int64("farm_id", farm.ID),
			zap.String("channel", farm.ChannelName),
		)
		return
	}
	if prediction == nil {
		w.metrics.RecordSchedulerJob("idle")
		return
	}

	decision := w.engine.Decide(*prediction, farm.PredictionSettings, 0)
	w.metrics.RecordDecision(decision.Strategy, decision.NoBet, decision.Payout)

	_, err = w.farms.RecordPrediction(ctx, farm.ID, farms.PredictionRecord{
		PredictionID: prediction.ID,
		Title:        prediction.Title,
		Strategy:     decision.Strategy,
		OutcomeID:    decision.OutcomeID,
		OutcomeTitle: outcomeTitle(*prediction, decision.OutcomeID),
		Bet:          decision.Bet,
		Payout:       decision.Payout,
		NoBet:        decision.NoBet,
	})
	if err != nil {
		var nf *db.NotFoundError
		if errors.As(err, &nf) {
			// Farm was removed after the round was scheduled.
			w.metrics.RecordSchedulerJob("stale")
			return
		}
		w.metrics.RecordSchedulerJob("failed")
		w.logger.Error("Failed to record prediction",
			zap.Error(err),
			zap.Int64("farm_id", farm.ID),
		)
		return
	}

	w.metrics.RecordSchedulerJob("completed")
	w.logger.Debug("Prediction processed",
		zap.Int64("farm_id", farm.ID),
		zap.String("prediction_id", prediction.ID),
		zap.Bool("no_bet", decision.NoBet),
		zap.Duration("duration", time.Since(start)),
	)
}

func outcomeTitle(p predictions.Prediction, id string) string {
	for _, o := range p.Outcomes {
		if o.ID == id {
			return o.Title
		}
	}
	return ""
}
