package push

import (
	"context"
	"fmt"
	"log/slog"
)

// EventSink observes the lifecycle of a send. Calls are fire-and-forget: a
// sink cannot change the outcome of Send, and a panicking sink is recovered.
type EventSink interface {
	// Sending fires after validation, right before the transport call.
	Sending(ctx context.Context, msg *Message, payload Payload)
	// Sent fires after OneSignal accepted the notification.
	Sent(ctx context.Context, msg *Message, result *Result)
	// Failed fires when a DeliveryFailedError is returned or the transport failed.
	Failed(ctx context.Context, msg *Message, err error)
}

// NopEventSink ignores all events.
type NopEventSink struct{}

func (NopEventSink) Sending(context.Context, *Message, Payload) {}
func (NopEventSink) Sent(context.Context, *Message, *Result)    {}
func (NopEventSink) Failed(context.Context, *Message, error)    {}

// EventSinks fans every event out to each sink in order.
type EventSinks []EventSink

func (s EventSinks) Sending(ctx context.Context, msg *Message, payload Payload) {
	for _, sink := range s {
		sink.Sending(ctx, msg, payload)
	}
}

func (s EventSinks) Sent(ctx context.Context, msg *Message, result *Result) {
	for _, sink := range s {
		sink.Sent(ctx, msg, result)
	}
}

func (s EventSinks) Failed(ctx context.Context, msg *Message, err error) {
	for _, sink := range s {
		sink.Failed(ctx, msg, err)
	}
}

// emit runs one sink call, turning a panic into an error log.
func emit(logger *slog.Logger, event string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Event sink panicked", "event", event, "err", fmt.Sprint(r))
		}
	}()
	fn()
}
