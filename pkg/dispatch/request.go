// Package dispatch contains the wire form of a push request and the contracts
// the ingestion adapters (Pub/Sub pipeline, HTTP API) depend on.
package dispatch

import (
	"github.com/tinywideclouds/go-onesignal-service/pkg/push"
)

// TagFilter targets devices by tag. Relation defaults to "=".
type TagFilter struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Relation string `json:"relation,omitempty"`
}

// Request is the JSON document published to the ingestion topic or posted
// to the API.
type Request struct {
	Title    string `json:"title,omitempty"`
	Body     string `json:"body,omitempty"`
	Language string `json:"language,omitempty"`

	Data map[string]any `json:"data,omitempty"`

	TTL              *int   `json:"ttl,omitempty"`
	Priority         *int   `json:"priority,omitempty"`
	AndroidChannelID string `json:"android_channel_id,omitempty"`
	ImageURL         string `json:"image_url,omitempty"`

	Name                string `json:"name,omitempty"`
	Type                string `json:"type,omitempty"`
	LogKey              string `json:"log_key,omitempty"`
	NotificationID      *int64 `json:"notification_id,omitempty"`
	IntelligentDelivery bool   `json:"intelligent_delivery,omitempty"`

	ExternalUserIDs []int64       `json:"external_user_ids,omitempty"`
	Segments        []string      `json:"segments,omitempty"`
	Tags            []TagFilter   `json:"tags,omitempty"`
	Buttons         []push.Button `json:"buttons,omitempty"`
}

// ToPush builds the push message. A request without a title or body has
// nothing to show and returns nil.
func (r *Request) ToPush() *push.Message {
	if r.Title == "" && r.Body == "" {
		return nil
	}

	msg := push.NewMessage()
	for k, v := range r.Data {
		msg.AddData(k, v)
	}
	if r.Title != "" {
		msg.WithTitle(r.Title, r.Language)
	}
	if r.Body != "" {
		msg.WithBody(r.Body, r.Language)
	}

	msg.SetTTL(r.TTL)
	if r.Priority != nil {
		msg.SetPriority(*r.Priority)
	}
	if r.AndroidChannelID != "" {
		channel := r.AndroidChannelID
		msg.SetAndroidChannelID(&channel)
	}
	msg.WithImage(r.ImageURL)

	if r.Name != "" {
		msg.WithName(r.Name)
	}
	if r.Type != "" {
		msg.WithType(r.Type)
	}
	if r.LogKey != "" {
		msg.WithLogKey(r.LogKey)
	}
	if r.NotificationID != nil {
		msg.WithNotificationID(*r.NotificationID)
	}
	if r.IntelligentDelivery {
		msg.WithIntelligentDeliveryDelayed()
	}

	if len(r.ExternalUserIDs) > 0 {
		msg.ToExternalUserIDs(r.ExternalUserIDs)
	}
	if len(r.Segments) > 0 {
		msg.ToSegments(r.Segments)
	}
	for _, tag := range r.Tags {
		msg.ToTag(tag.Key, tag.Value, tag.Relation)
	}
	for _, b := range r.Buttons {
		msg.AddButton(b.ID, b.Text, b.URL)
	}
	return msg
}
