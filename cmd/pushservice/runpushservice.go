package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gopkg.in/yaml.v3"

	"github.com/tinywideclouds/go-onesignal-service/internal/events"
	"github.com/tinywideclouds/go-onesignal-service/internal/platform/onesignal"
	"github.com/tinywideclouds/go-onesignal-service/internal/storage/cache"
	fsStore "github.com/tinywideclouds/go-onesignal-service/internal/storage/firestore"
	"github.com/tinywideclouds/go-onesignal-service/pkg/dispatch"
	"github.com/tinywideclouds/go-onesignal-service/pkg/push"
	"github.com/tinywideclouds/go-onesignal-service/pushservice"
	"github.com/tinywideclouds/go-onesignal-service/pushservice/config"
)

//go:embed local.yaml
var configFile []byte

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: config.ParseLogLevel(os.Getenv("LOG_LEVEL")),
	})).With("service", "go-onesignal-service")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Config Loading ---
	var yamlCfg config.YamlConfig
	if err := yaml.Unmarshal(configFile, &yamlCfg); err != nil {
		logger.Error("Failed to unmarshal embedded yaml config", "err", err)
		os.Exit(1)
	}
	baseCfg, err := config.NewConfigFromYaml(&yamlCfg, logger)
	if err != nil {
		logger.Error("Failed to map yaml config", "err", err)
		os.Exit(1)
	}
	cfg, err := config.UpdateConfigWithEnvOverrides(baseCfg, logger)
	if err != nil {
		logger.Error("Config failed", "err", err)
		os.Exit(1)
	}

	// --- Infrastructure Clients ---
	psClient, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		logger.Error("PubSub client failed", "err", err)
		os.Exit(1)
	}
	defer psClient.Close()

	// --- Event Sinks ---
	sinks := push.EventSinks{events.NewLogSink(logger)}
	var eventSink *events.PubsubSink
	if cfg.EventsTopicID != "" {
		publisher := events.NewPubsubPublisher(psClient, cfg.EventsTopicID)
		defer publisher.Stop()
		eventSink = events.NewPubsubSink(publisher, cfg.OneSignal.AppID, logger)
		sinks = append(sinks, eventSink)
		logger.Info("Event publishing enabled", "topic", cfg.EventsTopicID)
	}

	// --- OneSignal Client ---
	transport := onesignal.NewTransport(cfg.OneSignal, logger)
	client, err := push.NewClient(cfg.OneSignal.Settings(), transport, logger, push.WithEventSink(sinks))
	if err != nil {
		logger.Error("OneSignal client failed", "err", err)
		os.Exit(1)
	}

	// --- Auth ---
	identityURL := os.Getenv("IDENTITY_SERVICE_URL")
	if identityURL == "" {
		identityURL = "http://localhost:3000"
	}
	jwksURL, err := middleware.DiscoverAndValidateJWTConfig(identityURL, middleware.RSA256, logger)
	if err != nil {
		logger.Error("JWT config discovery failed", "identity_url", identityURL, "err", err)
		os.Exit(1)
	}
	authMiddleware, err := middleware.NewJWKSAuthMiddleware(jwksURL, logger)
	if err != nil {
		logger.Error("JWKS auth middleware failed", "err", err)
		os.Exit(1)
	}

	// --- Consumer & Service ---
	consumer, err := newIngestionConsumer(ctx, cfg, psClient, logger)
	if err != nil {
		logger.Error("Ingestion consumer failed", "err", err)
		os.Exit(1)
	}

	// --- Delivery Claims (Decorated) ---
	var serviceOpts []pushservice.Option
	if cfg.Dedup.Enabled {
		fsClient, err := firestore.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			logger.Error("Firestore client failed", "err", err)
			os.Exit(1)
		}
		defer fsClient.Close()

		firestoreClaims := fsStore.NewClaimStore(fsClient, cfg.Dedup.Collection)
		go purgeExpiredClaims(ctx, firestoreClaims, cfg.Dedup.TTL, logger)

		var claims dispatch.ClaimStore = firestoreClaims
		logger.Info("ClaimStore initialized", "type", "firestore", "collection", cfg.Dedup.Collection)

		if cfg.Redis.Enabled {
			logger.Info("Initializing Redis Cache layer...", "addr", cfg.Redis.Addr)
			redisClient, err := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
			if err != nil {
				logger.Error("Failed to connect to Redis", "err", err)
				os.Exit(1)
			}
			defer redisClient.Close()
			claims = cache.NewCachedClaimStore(claims, redisClient, logger)
			logger.Info("ClaimStore upgraded", "type", "redis_cached_firestore")
		}
		serviceOpts = append(serviceOpts, pushservice.WithClaimStore(claims, cfg.Dedup.TTL))
	}

	service, err := pushservice.New(cfg, consumer, client, authMiddleware, logger, serviceOpts...)
	if err != nil {
		logger.Error("Service creation failed", "err", err)
		os.Exit(1)
	}

	go func() {
		logger.Info("Starting service...", "addr", cfg.ListenAddr)
		if err := service.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Service shutdown with error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := service.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", "err", err)
	}
	if eventSink != nil {
		eventSink.Wait()
	}
}

func newIngestionConsumer(ctx context.Context, cfg *config.Config, psClient *pubsub.Client, logger *slog.Logger) (messagepipeline.MessageConsumer, error) {
	sub := resourceName(cfg.ProjectID, "subscriptions", cfg.PubsubConsumerConfig.SubscriptionID)
	topic := resourceName(cfg.ProjectID, "topics", cfg.TopicID)

	subConfig := &pubsubpb.Subscription{
		Name:               sub,
		Topic:              topic,
		AckDeadlineSeconds: 30,
	}
	if cfg.SubscriptionDLQTopicID != "" {
		subConfig.DeadLetterPolicy = &pubsubpb.DeadLetterPolicy{
			DeadLetterTopic:     resourceName(cfg.ProjectID, "topics", cfg.SubscriptionDLQTopicID),
			MaxDeliveryAttempts: 5,
		}
	}

	logger.Debug("Ensuring subscription exists", "sub", subConfig.Name, "topic", subConfig.Topic)
	if _, err := psClient.SubscriptionAdminClient.CreateSubscription(ctx, subConfig); err != nil {
		if status.Code(err) != codes.AlreadyExists {
			return nil, fmt.Errorf("could not create subscription %s: %w", sub, err)
		}
		logger.Debug("Subscription already exists, skipping creation", "sub", subConfig.Name)
	}

	return messagepipeline.NewGooglePubsubConsumer(
		messagepipeline.NewGooglePubsubConsumerDefaults(subConfig.Name), psClient, logger,
	)
}

// purgeExpiredClaims sweeps the claim collection once per ttl until ctx ends.
func purgeExpiredClaims(ctx context.Context, store *fsStore.ClaimStore, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		removed, err := store.PurgeExpired(ctx)
		if err != nil && ctx.Err() == nil {
			logger.Warn("Failed to purge expired delivery claims", "err", err)
		} else if removed > 0 {
			logger.Info("Purged expired delivery claims", "count", removed)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func resourceName(project, kind, id string) string {
	return fmt.Sprintf("projects/%s/%s/%s", project, kind, id)
}
