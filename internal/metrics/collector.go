package metrics

import (
	"net/http"
	"time"

	"github.com/leozw/farm-guardian/internal/config"
	"github.com/leozw/farm-guardian/internal/db"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	// Stat snapshot
	activeFarms    prometheus.Gauge
	pointsClaimed  prometheus.Gauge
	watchHours     prometheus.Gauge
	predictionRate prometheus.Gauge

	lifecycleEvents *prometheus.CounterVec
	activityLogs    *prometheus.CounterVec
	logsEvicted     prometheus.Counter

	notificationsTotal  *prometheus.CounterVec
	notificationLatency prometheus.Histogram
	notificationsQueued prometheus.Gauge

	decisionsTotal *prometheus.CounterVec
	payoutPoints   prometheus.Histogram

	schedulerJobs *prometheus.CounterVec
}

func NewCollector(cfg config.MetricsConfig) *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		config:   &cfg,
		registry: reg,

		activeFarms: factory.NewGauge(prometheus.GaugeOpts{
			Name: "farm_active_farms",
			Help: "Number of farms currently present",
		}),
		pointsClaimed: factory.NewGauge(prometheus.GaugeOpts{
			Name: "farm_points_claimed",
			Help: "Channel points claimed across all farms",
		}),
		watchHours: factory.NewGauge(prometheus.GaugeOpts{
			Name: "farm_watch_hours",
			Help: "Accrued watch time across all farms in hours",
		}),
		predictionRate: factory.NewGauge(prometheus.GaugeOpts{
			Name: "farm_prediction_rate",
			Help: "Current prediction success rate percentage",
		}),

		lifecycleEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "farm_lifecycle_events_total",
				Help: "Farm and account lifecycle events",
			},
			[]string{"event"},
		),
		activityLogs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "farm_activity_logs_total",
				Help: "Activity log entries appended",
			},
			[]string{"status"},
		),
		logsEvicted: factory.NewCounter(prometheus.CounterOpts{
			Name: "farm_activity_logs_evicted_total",
			Help: "Activity log entries evicted by retention",
		}),

		notificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "farm_notifications_total",
				Help: "Notification forward attempts by result",
			},
			[]string{"result"},
		),
		notificationLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "farm_notification_latency_seconds",
			Help:    "Latency of notification forwards",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		notificationsQueued: factory.NewGauge(prometheus.GaugeOpts{
			Name: "farm_notifications_queued",
			Help: "Notifications waiting to be forwarded",
		}),

		decisionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "farm_prediction_decisions_total",
				Help: "Prediction decisions by strategy and result",
			},
			[]string{"strategy", "result"},
		),
		payoutPoints: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "farm_prediction_payout_points",
			Help:    "Estimated payout of placed predictions",
			Buckets: prometheus.ExponentialBuckets(100, 2, 12),
		}),

		schedulerJobs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "farm_scheduler_jobs_total",
				Help: "Automation jobs by outcome",
			},
			[]string{"result"},
		),
	}
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) RecordStat(stat db.Stat) {
	c.activeFarms.Set(float64(stat.ActiveFarms))
	c.pointsClaimed.Set(float64(stat.PointsClaimed))
	c.watchHours.Set(stat.WatchHours)
	c.predictionRate.Set(stat.PredictionRate)
}

func (c *Collector) RecordLifecycle(event string) {
	c.lifecycleEvents.WithLabelValues(event).Inc()
}

func (c *Collector) RecordLog(status db.LogStatus) {
	c.activityLogs.WithLabelValues(string(status)).Inc()
}

func (c *Collector) RecordEvicted(n int) {
	c.logsEvicted.Add(float64(n))
}

func (c *Collector) RecordNotification(result string, latency time.Duration) {
	c.notificationsTotal.WithLabelValues(result).Inc()
	if latency > 0 {
		c.notificationLatency.Observe(latency.Seconds())
	}
}

func (c *Collector) SetQueuedNotifications(n int) {
	c.notificationsQueued.Set(float64(n))
}

func (c *Collector) RecordDecision(strategy db.Strategy, noBet bool, payout int64) {
	result := "bet"
	if noBet {
		result = "no_bet"
	}
	c.decisionsTotal.WithLabelValues(string(strategy), result).Inc()
	if !noBet {
		c.payoutPoints.Observe(float64(payout))
	}
}

func (c *Collector) RecordSchedulerJob(result string) {
	c.schedulerJobs.WithLabelValues(result).Inc()
}
