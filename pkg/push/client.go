package push

import (
	"context"
	"log/slog"
)

// LoggingSettings controls what the client logs about each send.
type LoggingSettings struct {
	Enabled bool
	// Level is used for the outbound payload and success logs. Failures always log at error.
	Level slog.Level
	// Channel is attached to every record as the "channel" attribute when set.
	Channel string
}

// Settings is the resolved OneSignal configuration the client runs with.
type Settings struct {
	AppID      string
	RestAPIKey string

	// AndroidChannelID is applied to messages that have no channel of their own.
	AndroidChannelID string
	// DefaultTTL and DefaultPriority are applied when the message leaves them unset.
	DefaultTTL      *int
	DefaultPriority *int

	Logging LoggingSettings

	// ThrowExceptions makes Send return a DeliveryFailedError for failed
	// deliveries. When false, Send returns the unsuccessful Result instead.
	ThrowExceptions bool
}

// NewSettings returns settings with logging and ThrowExceptions enabled.
func NewSettings(appID, restAPIKey string) Settings {
	return Settings{
		AppID:           appID,
		RestAPIKey:      restAPIKey,
		Logging:         LoggingSettings{Enabled: true, Level: slog.LevelInfo},
		ThrowExceptions: true,
	}
}

// Validate reports the first missing required setting.
func (s Settings) Validate() error {
	if s.AppID == "" {
		return &ConfigurationError{Field: "app_id", Reason: "is required (set ONESIGNAL_APP_ID)"}
	}
	if s.RestAPIKey == "" {
		return &ConfigurationError{Field: "rest_api_key", Reason: "is required (set ONESIGNAL_REST_API_KEY)"}
	}
	return nil
}

// Option configures optional Client collaborators.
type Option func(*Client)

// WithEventSink registers the observer for sending, sent and failed events.
func WithEventSink(sink EventSink) Option {
	return func(c *Client) {
		if sink != nil {
			c.events = sink
		}
	}
}

// Client sends push messages through a Transport. It holds no mutable state,
// so it is safe for concurrent use when the transport and logger are.
type Client struct {
	settings  Settings
	transport Transport
	events    EventSink
	logger    *slog.Logger
}

// NewClient validates the settings and returns a ready client.
func NewClient(settings Settings, transport Transport, logger *slog.Logger, opts ...Option) (*Client, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if transport == nil {
		return nil, &ConfigurationError{Field: "transport", Reason: "must not be nil"}
	}

	logger = logger.With("component", "OneSignalClient")
	if settings.Logging.Channel != "" {
		logger = logger.With("channel", settings.Logging.Channel)
	}

	c := &Client{
		settings:  settings,
		transport: transport,
		events:    NopEventSink{},
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) AppID() string {
	return c.settings.AppID
}

func (c *Client) AndroidChannelID() string {
	return c.settings.AndroidChannelID
}

// Send delivers one message.
//
// It returns a *ValidationError when the message is nil or has no contents
// or no audience; nothing is sent in that case. Failed deliveries return a
// *DeliveryFailedError when ThrowExceptions is set, otherwise the
// unsuccessful Result with a nil error.
func (c *Client) Send(ctx context.Context, msg *Message) (*Result, error) {
	if msg == nil {
		return nil, &ValidationError{Err: ErrMissingContents}
	}
	c.applyDefaults(msg)

	payload := msg.Build()
	if err := validate(payload); err != nil {
		return nil, err
	}

	emit(c.logger, "sending", func() { c.events.Sending(ctx, msg, payload) })

	if c.shouldLog() {
		c.logger.Log(ctx, c.settings.Logging.Level, "Sending OneSignal notification",
			"app_id", c.settings.AppID,
			"data", payload,
		)
	}

	raw, err := c.transport.CreateNotification(ctx, payload)
	if err != nil {
		return c.transportFailed(ctx, msg, err)
	}

	statusCode, _ := toInt(raw[StatusCodeKey])
	result := NewResult(raw, statusCode)

	if !result.IsSuccessful() {
		if c.shouldLog() {
			c.logger.Error("OneSignal notification failed",
				"errors", result.Errors(),
				"status_code", statusCode,
			)
		}
		if c.settings.ThrowExceptions {
			failure := &DeliveryFailedError{Errors: result.Errors(), StatusCode: statusCode}
			emit(c.logger, "failed", func() { c.events.Failed(ctx, msg, failure) })
			return nil, failure
		}
		return result, nil
	}

	if c.shouldLog() {
		c.logger.Log(ctx, c.settings.Logging.Level, "OneSignal notification sent successfully",
			"notification_id", result.NotificationID(),
			"recipients", result.Recipients(),
		)
	}
	emit(c.logger, "sent", func() { c.events.Sent(ctx, msg, result) })

	return result, nil
}

// transportFailed handles a transport error. The failed event fires whether
// or not the error is returned.
func (c *Client) transportFailed(ctx context.Context, msg *Message, err error) (*Result, error) {
	if c.shouldLog() {
		c.logger.Error("OneSignal notification exception", "err", err)
	}

	emit(c.logger, "failed", func() { c.events.Failed(ctx, msg, err) })

	if c.settings.ThrowExceptions {
		return nil, &DeliveryFailedError{Errors: []any{}, Cause: err}
	}
	return NewResult(map[string]any{"errors": []any{err.Error()}}, 0), nil
}

// applyDefaults fills the fields the caller left unset.
func (c *Client) applyDefaults(msg *Message) {
	if msg.AndroidChannelID() == nil && c.settings.AndroidChannelID != "" {
		id := c.settings.AndroidChannelID
		msg.SetAndroidChannelID(&id)
	}
	if msg.TTL() == nil && c.settings.DefaultTTL != nil {
		msg.SetTTL(c.settings.DefaultTTL)
	}
	if msg.Priority() == nil && c.settings.DefaultPriority != nil {
		msg.SetPriority(*c.settings.DefaultPriority)
	}
}

func (c *Client) shouldLog() bool {
	return c.settings.Logging.Enabled
}

func validate(payload Payload) error {
	if isEmpty(payload["contents"]) {
		return &ValidationError{Err: ErrMissingContents}
	}
	if isEmpty(payload["include_external_user_ids"]) &&
		isEmpty(payload["filters"]) &&
		isEmpty(payload["included_segments"]) {
		return &ValidationError{Err: ErrMissingAudience}
	}
	return nil
}
