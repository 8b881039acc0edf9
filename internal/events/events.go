// Package events publishes the delivery lifecycle of the push client.
package events

import (
	"time"

	"github.com/tinywideclouds/go-onesignal-service/pkg/push"
)

// Event kinds.
const (
	KindSending = "sending"
	KindSent    = "sent"
	KindFailed  = "failed"
)

// Event is the JSON envelope published for every lifecycle step.
type Event struct {
	EventID        string       `json:"event_id"`
	Kind           string       `json:"kind"`
	AppID          string       `json:"app_id"`
	OccurredAt     time.Time    `json:"occurred_at"`
	NotificationID string       `json:"notification_id,omitempty"`
	Recipients     int          `json:"recipients,omitempty"`
	StatusCode     int          `json:"status_code,omitempty"`
	Errors         []any        `json:"errors,omitempty"`
	Error          string       `json:"error,omitempty"`
	Payload        push.Payload `json:"payload,omitempty"`
}

func sentEvent(result *push.Result) Event {
	return Event{
		Kind:           KindSent,
		NotificationID: result.NotificationID(),
		Recipients:     result.Recipients(),
		StatusCode:     result.StatusCode(),
	}
}

func failedEvent(err error) Event {
	ev := Event{Kind: KindFailed, Error: err.Error()}
	if failed, ok := push.AsDeliveryFailed(err); ok {
		ev.StatusCode = failed.StatusCode
		ev.Errors = failed.Errors
	}
	return ev
}
