package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/tinywideclouds/go-onesignal-service/pkg/push"
)

const defaultPublishTimeout = 10 * time.Second

// Publisher sends one encoded event.
type Publisher interface {
	Publish(ctx context.Context, data []byte, attributes map[string]string) error
}

// PubsubPublisher publishes to a single Pub/Sub topic.
type PubsubPublisher struct {
	publisher *pubsub.Publisher
}

// NewPubsubPublisher accepts a topic id or a full topic name.
func NewPubsubPublisher(client *pubsub.Client, topicID string) *PubsubPublisher {
	return &PubsubPublisher{publisher: client.Publisher(topicID)}
}

func (p *PubsubPublisher) Publish(ctx context.Context, data []byte, attributes map[string]string) error {
	result := p.publisher.Publish(ctx, &pubsub.Message{Data: data, Attributes: attributes})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Stop flushes pending messages and releases the publisher.
func (p *PubsubPublisher) Stop() {
	p.publisher.Stop()
}

// PubsubSink is a push.EventSink that publishes each event asynchronously.
// Publish failures are logged and never reach the sender.
type PubsubSink struct {
	publisher Publisher
	appID     string
	timeout   time.Duration
	logger    *slog.Logger
	now       func() time.Time
	wg        sync.WaitGroup
}

func NewPubsubSink(publisher Publisher, appID string, logger *slog.Logger) *PubsubSink {
	return &PubsubSink{
		publisher: publisher,
		appID:     appID,
		timeout:   defaultPublishTimeout,
		logger:    logger.With("component", "PubsubEventSink"),
		now:       time.Now,
	}
}

func (s *PubsubSink) Sending(ctx context.Context, _ *push.Message, payload push.Payload) {
	s.publish(ctx, Event{Kind: KindSending, Payload: payload})
}

func (s *PubsubSink) Sent(ctx context.Context, _ *push.Message, result *push.Result) {
	s.publish(ctx, sentEvent(result))
}

func (s *PubsubSink) Failed(ctx context.Context, _ *push.Message, err error) {
	s.publish(ctx, failedEvent(err))
}

// Wait blocks until every in-flight publish has finished.
func (s *PubsubSink) Wait() {
	s.wg.Wait()
}

func (s *PubsubSink) publish(ctx context.Context, ev Event) {
	ev.EventID = uuid.NewString()
	ev.AppID = s.appID
	ev.OccurredAt = s.now().UTC()

	data, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("Failed to encode event", "kind", ev.Kind, "err", err)
		return
	}
	attributes := map[string]string{"kind": ev.Kind, "app_id": ev.AppID}

	// The caller's request may finish before the publish does.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		if err := s.publisher.Publish(pubCtx, data, attributes); err != nil {
			s.logger.Warn("Failed to publish event", "kind", ev.Kind, "event_id", ev.EventID, "err", err)
		}
	}()
}
