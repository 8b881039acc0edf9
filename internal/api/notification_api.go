package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"github.com/tinywideclouds/go-microservice-base/pkg/response"
	"github.com/tinywideclouds/go-onesignal-service/pkg/dispatch"
	"github.com/tinywideclouds/go-onesignal-service/pkg/push"
	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"
)

// maxRequestBytes bounds a single push request body.
const maxRequestBytes = 64 << 10

// NotificationAPI serves the synchronous send endpoint.
type NotificationAPI struct {
	Sender dispatch.Sender
	Logger *slog.Logger
}

// NewNotificationAPI creates the API handlers around a sender.
func NewNotificationAPI(sender dispatch.Sender, logger *slog.Logger) *NotificationAPI {
	return &NotificationAPI{
		Sender: sender,
		Logger: logger.With("component", "NotificationAPI"),
	}
}

// SendResponse is the body of a 202 reply.
type SendResponse struct {
	ID         string `json:"id"`
	Recipients int    `json:"recipients"`
	Successful bool   `json:"successful"`
	Errors     []any  `json:"errors"`
}

// Send delivers a push request synchronously.
func (api *NotificationAPI) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok || userID == "" {
		response.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	logger := api.Logger.With("user", userID)
	if handle, ok := middleware.GetUserHandleFromContext(ctx); ok {
		if caller, err := urn.Parse(handle); err == nil {
			logger = logger.With("caller", caller.String())
		} else {
			logger = logger.With("caller", handle)
		}
	}

	var req dispatch.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		logger.Warn("Send: JSON Decode failed", "err", err)
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}

	msg := req.ToPush()
	if msg == nil {
		response.WriteJSONError(w, http.StatusBadRequest, "title or body is required")
		return
	}

	result, err := api.Sender.Send(ctx, msg)
	if err != nil {
		var ve *push.ValidationError
		if errors.As(err, &ve) {
			logger.Warn("Send: Validation failed", "err", err)
			response.WriteJSONError(w, http.StatusBadRequest, ve.Error())
			return
		}
		logger.Error("Send: Delivery failed", "err", err)
		response.WriteJSONError(w, http.StatusBadGateway, "notification delivery failed")
		return
	}

	logger.Info("Send: Notification accepted", "notification_id", result.NotificationID(), "recipients", result.Recipients())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(SendResponse{
		ID:         result.NotificationID(),
		Recipients: result.Recipients(),
		Successful: result.IsSuccessful(),
		Errors:     result.Errors(),
	})
}
