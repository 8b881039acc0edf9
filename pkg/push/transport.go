package push

import "context"

// Transport performs the create-notification call against OneSignal.
//
// The returned map is the decoded JSON body with the HTTP status code merged
// in under StatusCodeKey. An error means no usable response was received.
// Retries, timeouts and cancellation are the transport's concern.
type Transport interface {
	CreateNotification(ctx context.Context, payload Payload) (map[string]any, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, payload Payload) (map[string]any, error)

func (f TransportFunc) CreateNotification(ctx context.Context, payload Payload) (map[string]any, error) {
	return f(ctx, payload)
}
