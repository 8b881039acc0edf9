package events_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-onesignal-service/internal/events"
	"github.com/tinywideclouds/go-onesignal-service/pkg/push"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakePublisher struct {
	mu         sync.Mutex
	events     []events.Event
	attributes []map[string]string
	err        error
}

func (f *fakePublisher) Publish(_ context.Context, data []byte, attributes map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ev events.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return err
	}
	f.events = append(f.events, ev)
	f.attributes = append(f.attributes, attributes)
	return f.err
}

func (f *fakePublisher) published() []events.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]events.Event(nil), f.events...)
}

func TestPubsubSink_Envelopes(t *testing.T) {
	ctx := context.Background()
	msg := push.NewMessage().WithBody("Hi").ToUser(1)

	t.Run("Sending carries the payload", func(t *testing.T) {
		pub := &fakePublisher{}
		sink := events.NewPubsubSink(pub, "app-1", newTestLogger())

		sink.Sending(ctx, msg, msg.Build())
		sink.Wait()

		published := pub.published()
		require.Len(t, published, 1)
		ev := published[0]
		assert.Equal(t, events.KindSending, ev.Kind)
		assert.Equal(t, "app-1", ev.AppID)
		assert.False(t, ev.OccurredAt.IsZero())
		_, err := uuid.Parse(ev.EventID)
		assert.NoError(t, err)
		assert.Equal(t, map[string]any{"en": "Hi"}, ev.Payload["contents"])
		assert.Equal(t, map[string]string{"kind": "sending", "app_id": "app-1"}, pub.attributes[0])
	})

	t.Run("Sent carries the outcome", func(t *testing.T) {
		pub := &fakePublisher{}
		sink := events.NewPubsubSink(pub, "app-1", newTestLogger())

		sink.Sent(ctx, msg, push.NewResult(map[string]any{"id": "n-9", "recipients": 4}, 200))
		sink.Wait()

		published := pub.published()
		require.Len(t, published, 1)
		assert.Equal(t, events.KindSent, published[0].Kind)
		assert.Equal(t, "n-9", published[0].NotificationID)
		assert.Equal(t, 4, published[0].Recipients)
		assert.Equal(t, 200, published[0].StatusCode)
		assert.Nil(t, published[0].Payload)
	})

	t.Run("Failed carries provider errors", func(t *testing.T) {
		pub := &fakePublisher{}
		sink := events.NewPubsubSink(pub, "app-1", newTestLogger())

		sink.Failed(ctx, msg, &push.DeliveryFailedError{Errors: []any{"Invalid player ids"}, StatusCode: 400})
		sink.Wait()

		published := pub.published()
		require.Len(t, published, 1)
		assert.Equal(t, events.KindFailed, published[0].Kind)
		assert.Equal(t, 400, published[0].StatusCode)
		assert.Equal(t, []any{"Invalid player ids"}, published[0].Errors)
		assert.Contains(t, published[0].Error, "Invalid player ids")
	})

	t.Run("Event ids are unique", func(t *testing.T) {
		pub := &fakePublisher{}
		sink := events.NewPubsubSink(pub, "app-1", newTestLogger())

		sink.Failed(ctx, msg, errors.New("boom"))
		sink.Failed(ctx, msg, errors.New("boom"))
		sink.Wait()

		published := pub.published()
		require.Len(t, published, 2)
		assert.NotEqual(t, published[0].EventID, published[1].EventID)
	})
}

func TestPubsubSink_PublishFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	pub := &fakePublisher{err: errors.New("topic not found")}
	sink := events.NewPubsubSink(pub, "app-1", logger)

	sink.Sent(context.Background(), push.NewMessage(), push.NewResult(map[string]any{"id": "n-1"}, 200))
	sink.Wait()

	assert.Contains(t, buf.String(), "Failed to publish event")
	assert.Contains(t, buf.String(), "topic not found")
}

func TestPubsubSink_OutlivesCanceledContext(t *testing.T) {
	pub := &fakePublisher{}
	sink := events.NewPubsubSink(pub, "app-1", newTestLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink.Sent(ctx, push.NewMessage(), push.NewResult(map[string]any{"id": "n-1"}, 200))
	sink.Wait()

	assert.Len(t, pub.published(), 1)
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	sink := events.NewLogSink(logger)
	ctx := context.Background()
	msg := push.NewMessage().WithBody("Hi")

	sink.Sending(ctx, msg, msg.Build())
	sink.Sent(ctx, msg, push.NewResult(map[string]any{"id": "n-5"}, 200))
	sink.Failed(ctx, msg, &push.DeliveryFailedError{Errors: []any{}, StatusCode: 500})

	out := buf.String()
	assert.Contains(t, out, "Push sending")
	assert.Contains(t, out, "notification_id=n-5")
	assert.Contains(t, out, "status=500")
	assert.Contains(t, out, "component=LogEventSink")
}
