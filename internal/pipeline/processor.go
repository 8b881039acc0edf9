package pipeline

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-onesignal-service/pkg/dispatch"
	"github.com/tinywideclouds/go-onesignal-service/pkg/push"
)

type processorOptions struct {
	claims   dispatch.ClaimStore
	claimTTL time.Duration
}

// ProcessorOption customises NewProcessor.
type ProcessorOption func(*processorOptions)

// WithClaimStore claims each Pub/Sub message id before sending so a
// redelivered message is acknowledged without pushing twice.
func WithClaimStore(store dispatch.ClaimStore, ttl time.Duration) ProcessorOption {
	return func(o *processorOptions) {
		o.claims = store
		o.claimTTL = ttl
	}
}

// NewProcessor creates the stage that delivers each decoded request through
// the sender.
//
// Returning an error nacks the message so Pub/Sub redelivers it. Only
// failures that can heal on a retry do that: transport errors (status 0),
// 429 and 5xx. Everything else is logged and acknowledged.
func NewProcessor(sender dispatch.Sender, logger *slog.Logger, opts ...ProcessorOption) messagepipeline.StreamProcessor[dispatch.Request] {
	logger = logger.With("component", "PushProcessor")
	var o processorOptions
	for _, opt := range opts {
		opt(&o)
	}

	return func(ctx context.Context, original messagepipeline.Message, request *dispatch.Request) error {
		procLogger := logger.With("pubsub_msg_id", original.ID)

		claimKey := "push:" + original.ID
		held := false
		if o.claims != nil && original.ID != "" {
			claimed, err := o.claims.Claim(ctx, claimKey, o.claimTTL)
			switch {
			case err != nil:
				procLogger.Warn("Delivery claim failed, sending unguarded", "err", err)
			case !claimed:
				procLogger.Info("Message already delivered; acknowledging duplicate.")
				return nil
			default:
				held = true
			}
		}

		result, err := dispatch.Deliver(ctx, sender, request)
		if err != nil {
			if push.IsValidationError(err) {
				procLogger.Warn("Dropping undeliverable push request", "err", err)
				return nil
			}
			if failed, ok := push.AsDeliveryFailed(err); ok && !retryable(failed.StatusCode) {
				procLogger.Error("OneSignal rejected push request", "status", failed.StatusCode, "errors", failed.Errors)
				return nil
			}
			procLogger.Error("Push delivery failed, will retry", "err", err)
			if held {
				if relErr := o.claims.Release(ctx, claimKey); relErr != nil {
					procLogger.Warn("Failed to release delivery claim", "err", relErr)
				}
			}
			return err
		}

		if result == nil {
			procLogger.Info("Push request has no title or body; dropping.")
			return nil
		}
		if !result.IsSuccessful() {
			procLogger.Error("OneSignal did not accept push request", "status", result.StatusCode(), "errors", result.Errors())
			return nil
		}

		procLogger.Info("Push dispatched", "notification_id", result.NotificationID(), "recipients", result.Recipients())
		return nil
	}
}

func retryable(status int) bool {
	return status == 0 || status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}
