// Package pushservice assembles the OneSignal push service: the Pub/Sub
// ingestion pipeline and the HTTP send API on a shared base server.
package pushservice

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/microservice"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"github.com/tinywideclouds/go-onesignal-service/internal/api"
	"github.com/tinywideclouds/go-onesignal-service/internal/pipeline"
	"github.com/tinywideclouds/go-onesignal-service/pkg/dispatch"
	"github.com/tinywideclouds/go-onesignal-service/pushservice/config"
)

// Option customises the assembled service.
type Option func(*[]pipeline.ProcessorOption)

// WithClaimStore enables duplicate suppression for redelivered messages.
func WithClaimStore(store dispatch.ClaimStore, ttl time.Duration) Option {
	return func(opts *[]pipeline.ProcessorOption) {
		*opts = append(*opts, pipeline.WithClaimStore(store, ttl))
	}
}

type Wrapper struct {
	*microservice.BaseServer
	pipelineService *messagepipeline.StreamingService[dispatch.Request]
	logger          *slog.Logger
}

// New assembles the service.
func New(
	cfg *config.Config,
	consumer messagepipeline.MessageConsumer,
	sender dispatch.Sender,
	authMiddleware func(http.Handler) http.Handler,
	logger *slog.Logger,
	opts ...Option,
) (*Wrapper, error) {
	baseServer := microservice.NewBaseServer(logger, cfg.ListenAddr)

	var processorOpts []pipeline.ProcessorOption
	for _, opt := range opts {
		opt(&processorOpts)
	}
	processor := pipeline.NewProcessor(sender, logger, processorOpts...)

	streamingService, err := messagepipeline.NewStreamingService(
		messagepipeline.StreamingServiceConfig{NumWorkers: cfg.NumPipelineWorkers},
		consumer,
		pipeline.PushRequestTransformer,
		processor,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create streaming service: %w", err)
	}

	notificationAPI := api.NewNotificationAPI(sender, logger)

	mux := baseServer.Mux()
	corsMiddleware := middleware.NewCorsMiddleware(cfg.CorsConfig, logger)

	mux.Handle("POST /api/v1/notifications", corsMiddleware(authMiddleware(http.HandlerFunc(notificationAPI.Send))))

	// CORS preflight for the API namespace.
	mux.Handle("OPTIONS /api/v1/", corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	return &Wrapper{
		BaseServer:      baseServer,
		pipelineService: streamingService,
		logger:          logger,
	}, nil
}

func (w *Wrapper) Start(ctx context.Context) error {
	w.logger.Info("Push ingestion pipeline starting...")
	if err := w.pipelineService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start ingestion pipeline: %w", err)
	}
	w.SetReady(true)
	w.logger.Info("Service is now ready.")
	return w.BaseServer.Start()
}

func (w *Wrapper) Shutdown(ctx context.Context) error {
	w.logger.Info("Shutting down service components...")
	var finalErr error
	if err := w.pipelineService.Stop(ctx); err != nil {
		w.logger.Error("Ingestion pipeline shutdown failed.", "err", err)
		finalErr = err
	}
	if err := w.BaseServer.Shutdown(ctx); err != nil {
		w.logger.Error("HTTP server shutdown failed.", "err", err)
		finalErr = err
	}
	w.logger.Info("Service shutdown complete.")
	return finalErr
}
