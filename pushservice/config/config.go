package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"github.com/tinywideclouds/go-onesignal-service/pkg/push"
)

const (
	DefaultAPIURL     = "https://onesignal.com/api/v1"
	DefaultTTL        = 604800 // 7 days
	DefaultPriority   = push.PriorityNormal
	DefaultTimeout    = 30 * time.Second
	DefaultRetryTimes = 3
	DefaultRetrySleep = 1000 * time.Millisecond

	DefaultDedupTTL        = 24 * time.Hour
	DefaultDedupCollection = "push-delivery-claims"
)

// OneSignalConfig holds the provider credentials and delivery behaviour.
type OneSignalConfig struct {
	AppID      string
	RestAPIKey string
	// UserAuthKey is only needed for app management calls; it is carried but unused by sends.
	UserAuthKey      string
	AndroidChannelID string
	APIURL           string

	DefaultTTL      *int
	DefaultPriority *int

	LoggingEnabled bool
	LogLevel       string
	LogChannel     string

	ThrowExceptions bool

	HTTPTimeout time.Duration
	RetryTimes  int
	RetrySleep  time.Duration
}

// Settings converts the config into the client's settings.
func (c OneSignalConfig) Settings() push.Settings {
	return push.Settings{
		AppID:            c.AppID,
		RestAPIKey:       c.RestAPIKey,
		AndroidChannelID: c.AndroidChannelID,
		DefaultTTL:       c.DefaultTTL,
		DefaultPriority:  c.DefaultPriority,
		Logging: push.LoggingSettings{
			Enabled: c.LoggingEnabled,
			Level:   ParseLogLevel(c.LogLevel),
			Channel: c.LogChannel,
		},
		ThrowExceptions: c.ThrowExceptions,
	}
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// DedupConfig controls the delivery claims that stop a redelivered Pub/Sub
// message from pushing twice. Claims live in Firestore, fronted by Redis when enabled.
type DedupConfig struct {
	Enabled    bool
	TTL        time.Duration
	Collection string
}

// Config defines the *single*, authoritative configuration.
type Config struct {
	ProjectID              string
	ListenAddr             string
	SubscriptionID         string
	SubscriptionDLQTopicID string
	NumPipelineWorkers     int

	// TopicID is the ingestion topic the subscription is attached to.
	TopicID string
	// EventsTopicID receives sending/sent/failed events. Empty disables publishing.
	EventsTopicID string

	CorsConfig middleware.CorsConfig
	OneSignal  OneSignalConfig
	Redis      RedisConfig
	Dedup      DedupConfig

	PubsubConsumerConfig *messagepipeline.GooglePubsubConsumerConfig
}

// UpdateConfigWithEnvOverrides applies environment variables and final validation.
func UpdateConfigWithEnvOverrides(cfg *Config, logger *slog.Logger) (*Config, error) {
	logger.Debug("Applying environment variable overrides...")

	// 1. Service Overrides
	if val := os.Getenv("PROJECT_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "PROJECT_ID", "source", "env")
		cfg.ProjectID = val
	}
	if val := os.Getenv("PORT"); val != "" {
		logger.Debug("Overriding config value", "key", "PORT", "source", "env")
		cfg.ListenAddr = ":" + val
	}
	if val := os.Getenv("SUBSCRIPTION_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "SUBSCRIPTION_ID", "source", "env")
		cfg.SubscriptionID = val
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(val)
	}
	if val := os.Getenv("SUBSCRIPTION_DLQ_TOPIC_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "SUBSCRIPTION_DLQ_TOPIC_ID", "source", "env")
		cfg.SubscriptionDLQTopicID = val
	}
	if val := os.Getenv("TOPIC_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "TOPIC_ID", "source", "env")
		cfg.TopicID = val
	}
	if val := os.Getenv("EVENTS_TOPIC_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "EVENTS_TOPIC_ID", "source", "env")
		cfg.EventsTopicID = val
	}
	if val := os.Getenv("NUM_PIPELINE_WORKERS"); val != "" {
		if workers, err := strconv.Atoi(val); err == nil && workers > 0 {
			logger.Debug("Overriding config value", "key", "NUM_PIPELINE_WORKERS", "source", "env")
			cfg.NumPipelineWorkers = workers
		}
	}

	// 2. OneSignal Overrides
	applyOneSignalOverrides(&cfg.OneSignal, logger)

	// 3. Delivery claim overrides
	applyDedupOverrides(cfg, logger)

	// CORS Overrides
	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		logger.Debug("Overriding config value", "key", "CORS_ALLOWED_ORIGINS", "source", "env")
		rawOrigins := strings.Split(corsOrigins, ",")
		var cleanOrigins []string
		for _, o := range rawOrigins {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				cleanOrigins = append(cleanOrigins, trimmed)
			}
		}
		cfg.CorsConfig.AllowedOrigins = cleanOrigins
	}

	// 4. Final Validation
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("project_id is required (set via YAML or PROJECT_ID env var)")
	}
	if cfg.SubscriptionID == "" {
		return nil, fmt.Errorf("subscription_id is required (set via YAML or SUBSCRIPTION_ID env var)")
	}
	if err := cfg.OneSignal.Settings().Validate(); err != nil {
		return nil, err
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.NumPipelineWorkers <= 0 {
		cfg.NumPipelineWorkers = 1
	}
	if cfg.OneSignal.APIURL == "" {
		cfg.OneSignal.APIURL = DefaultAPIURL
	}
	if cfg.OneSignal.HTTPTimeout <= 0 {
		cfg.OneSignal.HTTPTimeout = DefaultTimeout
	}

	if cfg.Dedup.TTL <= 0 {
		cfg.Dedup.TTL = DefaultDedupTTL
	}
	if cfg.Dedup.Collection == "" {
		cfg.Dedup.Collection = DefaultDedupCollection
	}

	if cfg.PubsubConsumerConfig == nil && cfg.SubscriptionID != "" {
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
	}

	logger.Debug("Configuration finalized and validated successfully")
	return cfg, nil
}

func applyDedupOverrides(cfg *Config, logger *slog.Logger) {
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		logger.Debug("Overriding config value", "key", "REDIS_ADDR", "source", "env")
		cfg.Redis.Addr = val
		cfg.Redis.Enabled = true
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		cfg.Redis.Password = val
	}
	if val := os.Getenv("REDIS_DB"); val != "" {
		if db, err := strconv.Atoi(val); err == nil {
			cfg.Redis.DB = db
		}
	}
	if val := os.Getenv("REDIS_ENABLED"); val != "" {
		enabled, _ := strconv.ParseBool(val)
		cfg.Redis.Enabled = enabled
	}
	if val := os.Getenv("DEDUP_ENABLED"); val != "" {
		enabled, _ := strconv.ParseBool(val)
		cfg.Dedup.Enabled = enabled
	}
	if val := os.Getenv("DEDUP_TTL"); val != "" {
		if ttl, err := time.ParseDuration(val); err == nil && ttl > 0 {
			logger.Debug("Overriding config value", "key", "DEDUP_TTL", "source", "env")
			cfg.Dedup.TTL = ttl
		}
	}
	if val := os.Getenv("DEDUP_COLLECTION"); val != "" {
		cfg.Dedup.Collection = val
	}
}

func applyOneSignalOverrides(sc *OneSignalConfig, logger *slog.Logger) {
	str := func(key string, dst *string) {
		if val := os.Getenv(key); val != "" {
			logger.Debug("Overriding config value", "key", key, "source", "env")
			*dst = val
		}
	}
	str("ONESIGNAL_APP_ID", &sc.AppID)
	str("ONESIGNAL_REST_API_KEY", &sc.RestAPIKey)
	str("ONESIGNAL_USER_AUTH_KEY", &sc.UserAuthKey)
	str("ONESIGNAL_ANDROID_CHANNEL_ID", &sc.AndroidChannelID)
	str("ONESIGNAL_API_URL", &sc.APIURL)
	str("ONESIGNAL_LOG_LEVEL", &sc.LogLevel)
	str("ONESIGNAL_LOG_CHANNEL", &sc.LogChannel)

	if val := os.Getenv("ONESIGNAL_DEFAULT_TTL"); val != "" {
		if ttl, err := strconv.Atoi(val); err == nil && ttl >= 0 {
			logger.Debug("Overriding config value", "key", "ONESIGNAL_DEFAULT_TTL", "source", "env")
			sc.DefaultTTL = &ttl
		}
	}
	if val := os.Getenv("ONESIGNAL_DEFAULT_PRIORITY"); val != "" {
		if priority, err := strconv.Atoi(val); err == nil {
			logger.Debug("Overriding config value", "key", "ONESIGNAL_DEFAULT_PRIORITY", "source", "env")
			sc.DefaultPriority = &priority
		}
	}
	if val := os.Getenv("ONESIGNAL_LOGGING_ENABLED"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			sc.LoggingEnabled = enabled
		}
	}
	if val := os.Getenv("ONESIGNAL_THROW_EXCEPTIONS"); val != "" {
		if throw, err := strconv.ParseBool(val); err == nil {
			sc.ThrowExceptions = throw
		}
	}
	if val := os.Getenv("ONESIGNAL_HTTP_TIMEOUT"); val != "" {
		if secs, err := strconv.Atoi(val); err == nil && secs > 0 {
			sc.HTTPTimeout = time.Duration(secs) * time.Second
		}
	}
	if val := os.Getenv("ONESIGNAL_RETRY_TIMES"); val != "" {
		if times, err := strconv.Atoi(val); err == nil && times >= 0 {
			sc.RetryTimes = times
		}
	}
	if val := os.Getenv("ONESIGNAL_RETRY_SLEEP"); val != "" {
		if ms, err := strconv.Atoi(val); err == nil && ms >= 0 {
			sc.RetrySleep = time.Duration(ms) * time.Millisecond
		}
	}
}

// ParseLogLevel maps a level name to a slog level. Syslog style names are
// folded into the nearest slog level; unknown names give info.
func ParseLogLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "critical", "alert", "emergency":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
