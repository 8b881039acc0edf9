package events

import (
	"context"
	"log/slog"

	"github.com/tinywideclouds/go-onesignal-service/pkg/push"
)

// LogSink writes every event to the logger at debug level.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger.With("component", "LogEventSink")}
}

func (s *LogSink) Sending(ctx context.Context, _ *push.Message, payload push.Payload) {
	s.logger.DebugContext(ctx, "Push sending", "kind", KindSending, "payload", payload)
}

func (s *LogSink) Sent(ctx context.Context, _ *push.Message, result *push.Result) {
	ev := sentEvent(result)
	s.logger.DebugContext(ctx, "Push sent", "kind", ev.Kind, "notification_id", ev.NotificationID, "recipients", ev.Recipients)
}

func (s *LogSink) Failed(ctx context.Context, _ *push.Message, err error) {
	ev := failedEvent(err)
	s.logger.DebugContext(ctx, "Push failed", "kind", ev.Kind, "status", ev.StatusCode, "errors", ev.Errors, "err", ev.Error)
}
