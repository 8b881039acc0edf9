package dispatch

import (
	"context"
	"time"

	"github.com/tinywideclouds/go-onesignal-service/pkg/push"
)

// Sender defines the contract adapters use to deliver a push message.
// *push.Client satisfies it.
type Sender interface {
	// Send validates and delivers one message; see push.Client.Send for the error contract.
	Send(ctx context.Context, msg *push.Message) (*push.Result, error)
}

// Notification is anything that can render itself as a push message.
// Returning nil means the notification has nothing to push and is skipped.
type Notification interface {
	ToPush() *push.Message
}

// Deliver renders the notification and sends it. A notification that renders
// to nil yields (nil, nil) without calling the sender.
func Deliver(ctx context.Context, sender Sender, n Notification) (*push.Result, error) {
	msg := n.ToPush()
	if msg == nil {
		return nil, nil
	}
	return sender.Send(ctx, msg)
}

// ClaimStore records which ingestion messages have been delivered so a
// redelivered message does not push twice.
type ClaimStore interface {
	// Claim returns true when key was not held and is now claimed for ttl.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release drops a claim so the next delivery attempt can proceed.
	Release(ctx context.Context, key string) error
}
