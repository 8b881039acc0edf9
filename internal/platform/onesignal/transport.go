// Package onesignal provides the HTTP transport for the OneSignal REST API.
package onesignal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tinywideclouds/go-onesignal-service/pkg/push"
	"github.com/tinywideclouds/go-onesignal-service/pushservice/config"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 1 << 20

// retryableStatusError marks a response worth retrying (429 / 5xx).
type retryableStatusError struct {
	statusCode int
}

func (e *retryableStatusError) Error() string {
	return fmt.Sprintf("onesignal responded with status %d", e.statusCode)
}

// Transport posts notification payloads to the OneSignal REST API.
type Transport struct {
	appID      string
	restAPIKey string
	endpoint   string
	retryTimes int
	retrySleep time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

// Option customises the transport.
type Option func(*Transport)

// WithHTTPClient replaces the default client (its timeout is left untouched).
func WithHTTPClient(client *http.Client) Option {
	return func(t *Transport) {
		if client != nil {
			t.httpClient = client
		}
	}
}

// NewTransport creates a transport for the configured app and endpoint.
func NewTransport(cfg config.OneSignalConfig, logger *slog.Logger, opts ...Option) *Transport {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = config.DefaultAPIURL
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = config.DefaultTimeout
	}

	t := &Transport{
		appID:      cfg.AppID,
		restAPIKey: cfg.RestAPIKey,
		endpoint:   strings.TrimRight(apiURL, "/") + "/notifications",
		retryTimes: cfg.RetryTimes,
		retrySleep: cfg.RetrySleep,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "OneSignalTransport"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// CreateNotification posts the payload to /notifications and returns the
// decoded body with the status code under push.StatusCodeKey.
//
// Network errors, 429 and 5xx responses are retried; RetryTimes counts the
// total attempts. When the retries are exhausted on a 429/5xx the last
// response is returned without error so the caller can classify it.
func (t *Transport) CreateNotification(ctx context.Context, payload push.Payload) (map[string]any, error) {
	body := maps.Clone(payload)
	if body == nil {
		body = push.Payload{}
	}
	body["app_id"] = t.appID

	payloadBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	var response map[string]any
	operation := func() error {
		resp, err := t.post(ctx, payloadBytes)
		if err != nil {
			return err
		}
		response = resp

		status, _ := resp[push.StatusCodeKey].(int)
		if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
			return &retryableStatusError{statusCode: status}
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		t.logger.Warn("OneSignal request failed, retrying", "err", err, "wait", wait)
	}

	err = backoff.RetryNotify(operation, t.backoff(ctx), notify)
	if err != nil {
		var statusErr *retryableStatusError
		if errors.As(err, &statusErr) && response != nil {
			return response, nil
		}
		return nil, fmt.Errorf("onesignal transport failed: %w", err)
	}
	return response, nil
}

func (t *Transport) post(ctx context.Context, payload []byte) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", authorization(t.restAPIKey))

	resp, err := t.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	decoded := decodeBody(raw)
	decoded[push.StatusCodeKey] = resp.StatusCode
	return decoded, nil
}

func (t *Transport) backoff(ctx context.Context) backoff.BackOff {
	retries := t.retryTimes - 1
	if retries < 0 {
		retries = 0
	}
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(t.retrySleep), uint64(retries))
	return backoff.WithContext(b, ctx)
}

// decodeBody parses a JSON object body. Anything else (HTML error pages,
// arrays, plain text) becomes a single error entry.
func decodeBody(raw []byte) map[string]any {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return map[string]any{}
	}
	var decoded map[string]any
	if err := json.Unmarshal(trimmed, &decoded); err != nil || decoded == nil {
		return map[string]any{"errors": []any{string(trimmed)}}
	}
	return decoded
}

// authorization picks the header scheme: v2 keys use "Key", legacy keys "Basic".
func authorization(restAPIKey string) string {
	if strings.HasPrefix(restAPIKey, "os_v2_") {
		return "Key " + restAPIKey
	}
	return "Basic " + restAPIKey
}
