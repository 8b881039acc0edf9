// Package push contains the OneSignal message builder, the delivery client and
// the typed view over provider responses.
package push

import (
	"encoding/json"
	"maps"
	"slices"
)

const (
	// TypeNotification is the default value of data["type"].
	TypeNotification = "notification"

	PriorityHigh   = 10
	PriorityNormal = 5

	// DefaultLanguage is used by WithBody and WithTitle when no language is given.
	DefaultLanguage = "en"

	// DelayedOptionLastActive enables OneSignal intelligent delivery.
	DelayedOptionLastActive = "last-active"

	// unsetNotificationID marks a notification that has no id in the caller's system.
	unsetNotificationID = -1
)

// Named audience segments provided by OneSignal out of the box.
const (
	SegmentSubscribed = "Subscribed Users"
	SegmentActive     = "Active Users"
	SegmentInactive   = "Inactive Users"
	SegmentEngaged    = "Engaged Users"
)

// Payload is the normalized request body handed to the transport.
type Payload map[string]any

// Filter is a single audience filter entry. Tag filters carry field, key,
// relation and value; operator entries ({"operator": "OR"}) are also accepted.
type Filter map[string]any

// Button is an action button rendered with the notification.
type Button struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	URL  string `json:"url,omitempty"`
}

// Message accumulates notification attributes. Mutators never validate and
// always return the receiver; validation happens in Client.Send.
// The zero value is an empty message ready for use. A Message is not safe
// for concurrent mutation.
type Message struct {
	contents         map[string]string
	headings         map[string]string
	data             map[string]any
	ttl              *int
	androidChannelID *string
	priority         *int
	filters          []Filter
	buttons          []Button
	attachments      map[string]string
	externalUserIDs  []int64
	segments         []string
	delayedOption    string
	name             string
}

// NewMessage returns an empty message.
func NewMessage() *Message {
	return &Message{
		contents:    map[string]string{},
		headings:    map[string]string{},
		data:        map[string]any{},
		attachments: map[string]string{},
	}
}

// SetContents replaces the body texts keyed by language.
func (m *Message) SetContents(contents map[string]string) *Message {
	m.contents = maps.Clone(contents)
	if m.contents == nil {
		m.contents = map[string]string{}
	}
	return m
}

// WithBody sets the body for a language (default "en") and mirrors it into
// data["message"] for clients that read the data payload only.
func (m *Message) WithBody(body string, language ...string) *Message {
	if m.contents == nil {
		m.contents = map[string]string{}
	}
	m.contents[lang(language)] = body
	return m.AddData("message", body)
}

// SetHeadings replaces the titles keyed by language.
func (m *Message) SetHeadings(headings map[string]string) *Message {
	m.headings = maps.Clone(headings)
	if m.headings == nil {
		m.headings = map[string]string{}
	}
	return m
}

// WithTitle sets the title for a language (default "en") and mirrors it into
// data["title"].
func (m *Message) WithTitle(title string, language ...string) *Message {
	if m.headings == nil {
		m.headings = map[string]string{}
	}
	m.headings[lang(language)] = title
	return m.AddData("title", title)
}

// SetData replaces the custom data payload.
func (m *Message) SetData(data map[string]any) *Message {
	m.data = maps.Clone(data)
	if m.data == nil {
		m.data = map[string]any{}
	}
	return m
}

// AddData sets a single custom data key.
func (m *Message) AddData(key string, value any) *Message {
	if m.data == nil {
		m.data = map[string]any{}
	}
	m.data[key] = value
	return m
}

// SetTTL sets the time to live in seconds. nil clears it.
func (m *Message) SetTTL(ttl *int) *Message {
	m.ttl = cloneInt(ttl)
	return m
}

func (m *Message) TTL() *int {
	return cloneInt(m.ttl)
}

func (m *Message) SetAndroidChannelID(id *string) *Message {
	if id == nil {
		m.androidChannelID = nil
		return m
	}
	v := *id
	m.androidChannelID = &v
	return m
}

func (m *Message) AndroidChannelID() *string {
	if m.androidChannelID == nil {
		return nil
	}
	v := *m.androidChannelID
	return &v
}

// SetPriority accepts any integer; PriorityHigh and PriorityNormal are the
// levels OneSignal documents.
func (m *Message) SetPriority(priority int) *Message {
	m.priority = &priority
	return m
}

func (m *Message) Priority() *int {
	return cloneInt(m.priority)
}

func (m *Message) WithHighPriority() *Message {
	return m.SetPriority(PriorityHigh)
}

func (m *Message) WithDefaultPriority() *Message {
	return m.SetPriority(PriorityNormal)
}

func (m *Message) SetFilters(filters []Filter) *Message {
	m.filters = slices.Clone(filters)
	return m
}

func (m *Message) AddFilter(filter Filter) *Message {
	m.filters = append(m.filters, filter)
	return m
}

// ToTag targets devices by tag. The relation (default "=") is passed through
// to OneSignal as is.
func (m *Message) ToTag(key, value string, relation ...string) *Message {
	rel := "="
	if len(relation) > 0 && relation[0] != "" {
		rel = relation[0]
	}
	return m.AddFilter(Filter{
		"field":    "tag",
		"key":      key,
		"relation": rel,
		"value":    value,
	})
}

func (m *Message) SetButtons(buttons []Button) *Message {
	m.buttons = slices.Clone(buttons)
	return m
}

// AddButton appends an action button. The optional url opens when the button is tapped.
func (m *Message) AddButton(id, text string, url ...string) *Message {
	b := Button{ID: id, Text: text}
	if len(url) > 0 {
		b.URL = url[0]
	}
	m.buttons = append(m.buttons, b)
	return m
}

func (m *Message) ToSegment(segment string) *Message {
	m.segments = append(m.segments, segment)
	return m
}

// ToSegments appends the segments, keeping order.
func (m *Message) ToSegments(segments []string) *Message {
	m.segments = append(m.segments, segments...)
	return m
}

func (m *Message) ToSubscribedSegment() *Message { return m.ToSegment(SegmentSubscribed) }
func (m *Message) ToActiveSegment() *Message     { return m.ToSegment(SegmentActive) }
func (m *Message) ToInactiveSegment() *Message   { return m.ToSegment(SegmentInactive) }
func (m *Message) ToEngagedSegment() *Message    { return m.ToSegment(SegmentEngaged) }

// WithImage attaches a big picture. An empty url is ignored.
func (m *Message) WithImage(url string) *Message {
	if url == "" {
		return m
	}
	m.AddData("imageUrl", url)
	if m.attachments == nil {
		m.attachments = map[string]string{}
	}
	m.attachments["image"] = url
	return m
}

func (m *Message) WithType(notificationType string) *Message {
	return m.AddData("type", notificationType)
}

func (m *Message) WithNotificationType() *Message {
	return m.WithType(TypeNotification)
}

func (m *Message) WithLogKey(logKey string) *Message {
	return m.AddData("log_key", logKey)
}

// WithNotificationID records the id the caller's own notification system uses.
func (m *Message) WithNotificationID(id int64) *Message {
	return m.AddData("notification_id", id)
}

func (m *Message) WithIntelligentDeliveryDelayed() *Message {
	m.delayedOption = DelayedOptionLastActive
	return m
}

func (m *Message) WithName(name string) *Message {
	m.name = name
	return m
}

// ToUser appends an external user id to the targets.
func (m *Message) ToUser(externalUserID int64) *Message {
	m.externalUserIDs = append(m.externalUserIDs, externalUserID)
	return m
}

// ToExternalUserIDs replaces the external user id targets.
func (m *Message) ToExternalUserIDs(ids []int64) *Message {
	m.externalUserIDs = slices.Clone(ids)
	return m
}

// Build returns the OneSignal request body for the current state. It does not
// modify the message, so repeated calls return equal payloads.
//
// data.notification_id defaults to -1 and data.type to "notification". The
// name, delayed_option, attachment and targeting sections are omitted when empty.
func (m *Message) Build() Payload {
	data := maps.Clone(m.data)
	if data == nil {
		data = map[string]any{}
	}
	if _, ok := data["notification_id"]; !ok {
		data["notification_id"] = unsetNotificationID
	}
	if t, ok := data["type"]; !ok || t == nil || t == "" {
		data["type"] = TypeNotification
	}

	p := Payload{
		"contents":           cloneTexts(m.contents),
		"headings":           cloneTexts(m.headings),
		"data":               data,
		"ttl":                intOrNil(m.ttl),
		"android_channel_id": nil,
		"priority":           intOrNil(m.priority),
		"filters":            cloneFilters(m.filters),
		"buttons":            nonNilButtons(m.buttons),
	}
	if m.androidChannelID != nil {
		p["android_channel_id"] = *m.androidChannelID
	}

	if m.name != "" {
		p["name"] = m.name
	}
	if m.delayedOption != "" {
		p["delayed_option"] = m.delayedOption
	}
	if len(m.attachments) > 0 {
		p["ios_attachments"] = maps.Clone(m.attachments)
		p["big_picture"] = m.attachments["image"]
	}
	if len(m.externalUserIDs) > 0 {
		p["include_external_user_ids"] = slices.Clone(m.externalUserIDs)
	}
	if len(m.segments) > 0 {
		p["included_segments"] = slices.Clone(m.segments)
	}
	return p
}

// ToArray is an alias of Build.
func (m *Message) ToArray() Payload {
	return m.Build()
}

func (m *Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Build())
}

func lang(language []string) string {
	if len(language) > 0 && language[0] != "" {
		return language[0]
	}
	return DefaultLanguage
}

func cloneTexts(texts map[string]string) map[string]string {
	if texts == nil {
		return map[string]string{}
	}
	return maps.Clone(texts)
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func intOrNil(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func cloneFilters(filters []Filter) []Filter {
	out := make([]Filter, 0, len(filters))
	for _, f := range filters {
		out = append(out, maps.Clone(f))
	}
	return out
}

func nonNilButtons(buttons []Button) []Button {
	if buttons == nil {
		return []Button{}
	}
	return slices.Clone(buttons)
}
