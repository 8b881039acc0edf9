package push_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-onesignal-service/pkg/push"
)

func TestMessage_Build(t *testing.T) {
	t.Run("Body and Title mirror into data", func(t *testing.T) {
		p := push.NewMessage().
			WithTitle("Hello").
			WithBody("World").
			WithBody("Monde", "fr").
			Build()

		assert.Equal(t, map[string]string{"en": "World", "fr": "Monde"}, p["contents"])
		assert.Equal(t, map[string]string{"en": "Hello"}, p["headings"])

		data := p["data"].(map[string]any)
		assert.Equal(t, "Monde", data["message"])
		assert.Equal(t, "Hello", data["title"])
	})

	t.Run("Injects default notification id and type", func(t *testing.T) {
		p := push.NewMessage().WithBody("x").Build()

		data := p["data"].(map[string]any)
		assert.Equal(t, -1, data["notification_id"])
		assert.Equal(t, push.TypeNotification, data["type"])
	})

	t.Run("Caller values for notification id and type win", func(t *testing.T) {
		p := push.NewMessage().
			WithNotificationID(42).
			WithType("chat").
			WithLogKey("log-1").
			Build()

		data := p["data"].(map[string]any)
		assert.Equal(t, int64(42), data["notification_id"])
		assert.Equal(t, "chat", data["type"])
		assert.Equal(t, "log-1", data["log_key"])
	})

	t.Run("Is idempotent and does not mutate the message", func(t *testing.T) {
		msg := push.NewMessage().WithBody("x").ToSubscribedSegment().WithImage("https://x/y.jpg")

		first := msg.Build()
		second := msg.Build()
		assert.Equal(t, first, second)

		// Mutating the returned payload must not leak back into the builder.
		first["data"].(map[string]any)["extra"] = true
		assert.NotContains(t, msg.Build()["data"], "extra")
	})

	t.Run("Always emits the core sections", func(t *testing.T) {
		p := push.NewMessage().Build()

		for _, key := range []string{"contents", "headings", "data", "ttl", "android_channel_id", "priority", "filters", "buttons"} {
			assert.Contains(t, p, key)
		}
		assert.Nil(t, p["ttl"])
		assert.Nil(t, p["priority"])
		assert.Nil(t, p["android_channel_id"])
	})

	t.Run("Omits empty optional sections", func(t *testing.T) {
		p := push.NewMessage().WithBody("x").Build()

		for _, key := range []string{"name", "delayed_option", "ios_attachments", "big_picture", "include_external_user_ids", "included_segments"} {
			assert.NotContains(t, p, key)
		}
	})

	t.Run("Includes optional sections when set", func(t *testing.T) {
		p := push.NewMessage().
			WithName("campaign").
			WithIntelligentDeliveryDelayed().
			ToUser(7).
			ToUser(8).
			Build()

		assert.Equal(t, "campaign", p["name"])
		assert.Equal(t, push.DelayedOptionLastActive, p["delayed_option"])
		assert.Equal(t, []int64{7, 8}, p["include_external_user_ids"])
	})

	t.Run("ToExternalUserIDs replaces previous targets", func(t *testing.T) {
		p := push.NewMessage().ToUser(1).ToExternalUserIDs([]int64{2, 3}).Build()
		assert.Equal(t, []int64{2, 3}, p["include_external_user_ids"])
	})
}

func TestMessage_ZeroValue(t *testing.T) {
	t.Run("Mutators work without NewMessage", func(t *testing.T) {
		var m push.Message
		assert.NotPanics(t, func() {
			m.WithTitle("Hello").WithBody("hi").AddData("k", "v").WithImage("https://x/y.jpg").ToUser(1)
		})

		p := m.Build()
		assert.Equal(t, map[string]string{"en": "hi"}, p["contents"])
		assert.Equal(t, map[string]string{"en": "Hello"}, p["headings"])
		assert.Equal(t, "v", p["data"].(map[string]any)["k"])
		assert.Equal(t, "https://x/y.jpg", p["big_picture"])
		assert.Equal(t, []int64{1}, p["include_external_user_ids"])
	})

	t.Run("Empty message builds empty sections", func(t *testing.T) {
		var m push.Message
		p := m.Build()

		assert.Equal(t, map[string]string{}, p["contents"])
		assert.Equal(t, map[string]string{}, p["headings"])
		assert.Equal(t, push.TypeNotification, p["data"].(map[string]any)["type"])
	})
}

func TestMessage_WithImage(t *testing.T) {
	t.Run("Empty url leaves attachments absent", func(t *testing.T) {
		p := push.NewMessage().WithImage("").Build()

		assert.NotContains(t, p, "ios_attachments")
		assert.NotContains(t, p, "big_picture")
		assert.NotContains(t, p["data"], "imageUrl")
	})

	t.Run("Url sets data and attachments", func(t *testing.T) {
		p := push.NewMessage().WithImage("https://x/y.jpg").Build()

		assert.Equal(t, "https://x/y.jpg", p["data"].(map[string]any)["imageUrl"])
		assert.Equal(t, map[string]string{"image": "https://x/y.jpg"}, p["ios_attachments"])
		assert.Equal(t, "https://x/y.jpg", p["big_picture"])
	})
}

func TestMessage_Targeting(t *testing.T) {
	t.Run("Segments append in order", func(t *testing.T) {
		p := push.NewMessage().ToSegments([]string{"A", "B"}).ToSegment("C").Build()
		assert.Equal(t, []string{"A", "B", "C"}, p["included_segments"])
	})

	t.Run("Named segment shortcuts", func(t *testing.T) {
		p := push.NewMessage().
			ToSubscribedSegment().
			ToActiveSegment().
			ToInactiveSegment().
			ToEngagedSegment().
			Build()

		assert.Equal(t, []string{"Subscribed Users", "Active Users", "Inactive Users", "Engaged Users"}, p["included_segments"])
	})

	t.Run("ToTag appends tag filters with default relation", func(t *testing.T) {
		p := push.NewMessage().
			ToTag("level", "10", ">").
			AddFilter(push.Filter{"operator": "OR"}).
			ToTag("vip", "true").
			Build()

		assert.Equal(t, []push.Filter{
			{"field": "tag", "key": "level", "relation": ">", "value": "10"},
			{"operator": "OR"},
			{"field": "tag", "key": "vip", "relation": "=", "value": "true"},
		}, p["filters"])
	})
}

func TestMessage_Attributes(t *testing.T) {
	ttl := 60
	channel := "alerts"

	msg := push.NewMessage().
		SetTTL(&ttl).
		SetAndroidChannelID(&channel).
		WithHighPriority().
		AddButton("open", "Open", "https://app/open").
		AddButton("dismiss", "Dismiss")

	ttl = 1 // the message keeps its own copy
	p := msg.Build()

	assert.Equal(t, 60, p["ttl"])
	assert.Equal(t, "alerts", p["android_channel_id"])
	assert.Equal(t, push.PriorityHigh, p["priority"])
	assert.Equal(t, []push.Button{
		{ID: "open", Text: "Open", URL: "https://app/open"},
		{ID: "dismiss", Text: "Dismiss"},
	}, p["buttons"])

	require.NotNil(t, msg.Priority())
	assert.Equal(t, push.PriorityNormal, *msg.WithDefaultPriority().Priority())
}

func TestMessage_MarshalJSON(t *testing.T) {
	msg := push.NewMessage().WithBody("x").ToSegment("A").AddButton("b", "B")

	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, []any{"A"}, decoded["included_segments"])
	assert.Equal(t, []any{map[string]any{"id": "b", "text": "B"}}, decoded["buttons"])
	assert.Nil(t, decoded["ttl"])
	assert.Equal(t, msg.Build(), msg.ToArray())
}
