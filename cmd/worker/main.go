package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/leozw/farm-guardian/internal/config"
	"github.com/leozw/farm-guardian/internal/metrics"
	"github.com/leozw/farm-guardian/internal/notify"
	"github.com/leozw/farm-guardian/internal/queue"
	"github.com/leozw/farm-guardian/internal/storage/redis"
)

// The worker relays notifications the API queued in Redis to the
// configured webhook.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if cfg.Notifier.RedisURL == "" || cfg.Notifier.WebhookURL == "" {
		logger.Fatal("Worker requires both REDIS_URL and NOTIFIER_WEBHOOK_URL")
	}

	cache := redis.NewClient(cfg.Notifier.RedisURL)
	defer cache.Close()

	metricsCollector := metrics.NewCollector(cfg.Metrics)
	target := notify.NewWebhookNotifier(cfg.Notifier.WebhookURL, cfg.Notifier.Timeout, cfg.Notifier.RatePerSecond, cfg.Notifier.Burst)
	relay := notify.NewRelay(queue.NewRedisQueue(cache.Client, cfg.Notifier.RedisKey), target, metricsCollector, logger, cfg.Notifier.Timeout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go relay.Run(ctx)
	go metricsCollector.StartRemoteWrite(ctx, logger)

	metricsSrv := &http.Server{Addr: ":" + cfg.Server.Port, Handler: metricsCollector.Handler()}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	logger.Info("Worker started", zap.String("queue", cfg.Notifier.RedisKey))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	cancel()
	_ = metricsSrv.Shutdown(context.Background())
	logger.Info("Worker exited")
}
