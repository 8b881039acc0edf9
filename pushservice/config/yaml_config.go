package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

type YamlCorsConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	Role           string   `yaml:"role"`
}

type YamlRedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Enabled  bool   `yaml:"enabled"`
}

type YamlDedupConfig struct {
	Enabled bool `yaml:"enabled"`
	// TTL is a Go duration string, e.g. "24h".
	TTL        string `yaml:"ttl"`
	Collection string `yaml:"collection"`
}

type YamlDefaultsConfig struct {
	TTL      *int `yaml:"ttl"`
	Priority *int `yaml:"priority"`
}

type YamlLoggingConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Level   string `yaml:"level"`
	Channel string `yaml:"channel"`
}

type YamlRetryConfig struct {
	Times *int `yaml:"times"`
	// Sleep is in milliseconds.
	Sleep *int `yaml:"sleep"`
}

type YamlHTTPConfig struct {
	// Timeout is in seconds.
	Timeout int             `yaml:"timeout"`
	Retry   YamlRetryConfig `yaml:"retry"`
}

type YamlOneSignalConfig struct {
	AppID            string             `yaml:"app_id"`
	RestAPIKey       string             `yaml:"rest_api_key"`
	UserAuthKey      string             `yaml:"user_auth_key"`
	AndroidChannelID string             `yaml:"android_channel_id"`
	APIURL           string             `yaml:"api_url"`
	Defaults         YamlDefaultsConfig `yaml:"defaults"`
	Logging          YamlLoggingConfig  `yaml:"logging"`
	ThrowExceptions  *bool              `yaml:"throw_exceptions"`
	HTTP             YamlHTTPConfig     `yaml:"http"`
}

// YamlConfig is the structure that mirrors the raw config.yaml file.
type YamlConfig struct {
	ProjectID              string              `yaml:"project_id"`
	ListenAddr             string              `yaml:"listen_addr"`
	TopicID                string              `yaml:"topic_id"`
	EventsTopicID          string              `yaml:"events_topic_id"`
	SubscriptionID         string              `yaml:"subscription_id"`
	SubscriptionDLQTopicID string              `yaml:"subscription_dlq_topic_id"`
	CorsConfig             YamlCorsConfig      `yaml:"cors"`
	OneSignal              YamlOneSignalConfig `yaml:"onesignal"`
	RedisConfig            YamlRedisConfig     `yaml:"redis"`
	DedupConfig            YamlDedupConfig     `yaml:"dedup"`
	NumPipelineWorkers     int                 `yaml:"num_pipeline_workers"`
}

// NewConfigFromYaml converts the YamlConfig into a clean, base Config struct.
// Unset OneSignal options receive their documented defaults.
func NewConfigFromYaml(baseCfg *YamlConfig, logger *slog.Logger) (*Config, error) {
	logger.Debug("Mapping YAML config to base config struct")

	cfg := &Config{
		ProjectID:      baseCfg.ProjectID,
		ListenAddr:     baseCfg.ListenAddr,
		TopicID:        baseCfg.TopicID,
		EventsTopicID:  baseCfg.EventsTopicID,
		SubscriptionID: baseCfg.SubscriptionID,
		CorsConfig: middleware.CorsConfig{
			AllowedOrigins: baseCfg.CorsConfig.AllowedOrigins,
			Role:           middleware.CorsRole(baseCfg.CorsConfig.Role),
		},
		OneSignal:              newOneSignalConfig(baseCfg.OneSignal),
		Redis: RedisConfig{
			Addr:     baseCfg.RedisConfig.Addr,
			Password: baseCfg.RedisConfig.Password,
			DB:       baseCfg.RedisConfig.DB,
			Enabled:  baseCfg.RedisConfig.Enabled,
		},
		Dedup: DedupConfig{
			Enabled:    baseCfg.DedupConfig.Enabled,
			TTL:        DefaultDedupTTL,
			Collection: baseCfg.DedupConfig.Collection,
		},
		SubscriptionDLQTopicID: baseCfg.SubscriptionDLQTopicID,
		NumPipelineWorkers:     baseCfg.NumPipelineWorkers,
	}

	if raw := baseCfg.DedupConfig.TTL; raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid dedup.ttl %q: %w", raw, err)
		}
		cfg.Dedup.TTL = ttl
	}
	if cfg.Dedup.Collection == "" {
		cfg.Dedup.Collection = DefaultDedupCollection
	}

	if cfg.SubscriptionID != "" {
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
	}

	logger.Debug("YAML config mapping complete",
		"project_id", cfg.ProjectID,
		"listen_addr", cfg.ListenAddr,
		"subscription_id", cfg.SubscriptionID,
		"onesignal_app_id", cfg.OneSignal.AppID,
	)

	return cfg, nil
}

func newOneSignalConfig(y YamlOneSignalConfig) OneSignalConfig {
	c := OneSignalConfig{
		AppID:            y.AppID,
		RestAPIKey:       y.RestAPIKey,
		UserAuthKey:      y.UserAuthKey,
		AndroidChannelID: y.AndroidChannelID,
		APIURL:           y.APIURL,
		DefaultTTL:       y.Defaults.TTL,
		DefaultPriority:  y.Defaults.Priority,
		LoggingEnabled:   boolOr(y.Logging.Enabled, true),
		LogLevel:         y.Logging.Level,
		LogChannel:       y.Logging.Channel,
		ThrowExceptions:  boolOr(y.ThrowExceptions, true),
		HTTPTimeout:      time.Duration(y.HTTP.Timeout) * time.Second,
		RetryTimes:       DefaultRetryTimes,
		RetrySleep:       DefaultRetrySleep,
	}

	if c.DefaultTTL == nil {
		ttl := DefaultTTL
		c.DefaultTTL = &ttl
	}
	if c.DefaultPriority == nil {
		priority := DefaultPriority
		c.DefaultPriority = &priority
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = DefaultTimeout
	}
	if y.HTTP.Retry.Times != nil {
		c.RetryTimes = *y.HTTP.Retry.Times
	}
	if y.HTTP.Retry.Sleep != nil {
		c.RetrySleep = time.Duration(*y.HTTP.Retry.Sleep) * time.Millisecond
	}
	return c
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
