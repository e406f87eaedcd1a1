package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/leozw/farm-guardian/internal/activity"
	"github.com/leozw/farm-guardian/internal/api"
	"github.com/leozw/farm-guardian/internal/api/handlers"
	"github.com/leozw/farm-guardian/internal/config"
	"github.com/leozw/farm-guardian/internal/db"
	"github.com/leozw/farm-guardian/internal/farms"
	"github.com/leozw/farm-guardian/internal/metrics"
	"github.com/leozw/farm-guardian/internal/notify"
	"github.com/leozw/farm-guardian/internal/predictions"
	"github.com/leozw/farm-guardian/internal/scheduler"
	"github.com/leozw/farm-guardian/internal/stats"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	repo := db.NewRepository()
	metricsCollector := metrics.NewCollector(cfg.Metrics)

	notifier, closeNotifier, err := notify.New(cfg.Notifier, logger)
	if err != nil {
		logger.Fatal("Failed to configure notifier", zap.Error(err))
	}
	defer closeNotifier()

	sink := activity.NewSink(repo, notifier, metricsCollector, logger, cfg.Activity, cfg.Notifier.Timeout)
	aggregator := stats.NewAggregator(repo, metricsCollector)
	farmService := farms.NewService(repo, sink, aggregator, logger, metricsCollector)
	engine := predictions.NewEngine(nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The dispatcher outlives ctx so Close can drain queued notifications.
	sinkCtx, sinkCancel := context.WithCancel(context.Background())
	defer sinkCancel()
	sink.Start(sinkCtx)
	go metricsCollector.StartRemoteWrite(ctx, logger)

	schedDone := make(chan struct{})
	if cfg.Scheduler.Enabled {
		var feed scheduler.PredictionFeed = scheduler.NopFeed{}
		if cfg.Scheduler.FeedURL != "" {
			feed = scheduler.NewHTTPFeed(cfg.Scheduler.FeedURL, cfg.Scheduler.FeedTimeout)
		}
		sched := scheduler.NewScheduler(farmService, engine, feed, metricsCollector, logger, cfg.Scheduler)
		go func() {
			defer close(schedDone)
			if err := sched.Start(ctx); err != nil {
				logger.Error("Scheduler stopped", zap.Error(err))
			}
		}()
	} else {
		close(schedDone)
	}

	handler := handlers.NewHandler(farmService, sink, engine, metricsCollector, logger)
	server := api.NewServer(cfg, handler, metricsCollector, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: server.Router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("API server started",
		zap.String("port", cfg.Server.Port),
		zap.String("notifier", cfg.Notifier.Driver),
		zap.Bool("scheduler", cfg.Scheduler.Enabled))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	cancel()
	<-schedDone
	sink.Close()

	logger.Info("Server exited")
}
