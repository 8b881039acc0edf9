// Package pipeline contains the core message processing components for the service.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-onesignal-service/pkg/dispatch"
)

// PushRequestTransformer is a dataflow Transformer that decodes a raw message
// payload into a dispatch.Request.
//
// Malformed payloads are returned with skip=true so the StreamingService
// leaves them to the subscription's dead-letter policy.
func PushRequestTransformer(
	_ context.Context,
	msg *messagepipeline.Message,
) (*dispatch.Request, bool, error) {
	var req dispatch.Request
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return nil, true, fmt.Errorf("failed to unmarshal push request from message %s: %w", msg.ID, err)
	}
	return &req, false, nil
}
