package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Activity  ActivityConfig
	Notifier  NotifierConfig
	Scheduler SchedulerConfig
	Metrics   MetricsConfig
}

type ServerConfig struct {
	Port      string
	Mode      string
	JWTSecret string
	RateLimit float64
	RateBurst int
}

type ActivityConfig struct {
	Retention int
	QueueSize int
}

type NotifierConfig struct {
	Driver        string
	WebhookURL    string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	RedisURL      string
	RedisKey      string
}

type SchedulerConfig struct {
	Enabled     bool
	Spec        string
	WorkerCount int
	QueueSize   int
	FeedURL     string
	FeedTimeout time.Duration
}

type MetricsConfig struct {
	RemoteWriteURL string
	TenantHeader   string
	TenantID       string
	BatchSize      int
	FlushInterval  time.Duration
	AuthToken      string
}

func Load() (*Config, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("FARM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Override with environment variables
	if url := os.Getenv("NOTIFIER_WEBHOOK_URL"); url != "" {
		cfg.Notifier.WebhookURL = url
	}
	if url := os.Getenv("REDIS_URL"); url != "" {
		cfg.Notifier.RedisURL = url
	}
	if url := os.Getenv("REMOTE_WRITE_URL"); url != "" {
		cfg.Metrics.RemoteWriteURL = url
	}
	if token := os.Getenv("REMOTE_WRITE_AUTH_TOKEN"); token != "" {
		cfg.Metrics.AuthToken = token
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Server.JWTSecret = secret
	}

	if cfg.Activity.Retention <= 0 {
		cfg.Activity.Retention = DefaultRetention
	}

	return &cfg, nil
}

// DefaultRetention is how many activity logs are kept when not configured.
const DefaultRetention = 1000

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.ratelimit", 20)
	v.SetDefault("server.rateburst", 40)
	v.SetDefault("activity.retention", DefaultRetention)
	v.SetDefault("activity.queuesize", 256)
	v.SetDefault("notifier.driver", "none")
	v.SetDefault("notifier.timeout", "5s")
	v.SetDefault("notifier.ratepersecond", 5)
	v.SetDefault("notifier.burst", 10)
	v.SetDefault("notifier.rediskey", "farm:notifications")
	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.spec", "@every 30s")
	v.SetDefault("scheduler.workercount", 4)
	v.SetDefault("scheduler.queuesize", 100)
	v.SetDefault("scheduler.feedtimeout", "10s")
	v.SetDefault("metrics.tenantheader", "X-Scope-OrgID")
	v.SetDefault("metrics.tenantid", "farm-guardian")
	v.SetDefault("metrics.batchsize", 1000)
	v.SetDefault("metrics.flushinterval", "15s")
}
