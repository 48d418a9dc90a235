// Package model defines data structures for the support desk.
package model

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Sender identifies who appended an event to the log.
type Sender string

const (
	SenderParticipant Sender = "participant"
	SenderOperator    Sender = "operator"
)

// Legacy sender values written by the site widget.
const (
	legacySenderUser  = "user"
	legacySenderAdmin = "admin"
)

// Normalize maps legacy aliases onto the canonical senders. It returns ""
// for missing or unknown values.
func (s Sender) Normalize() Sender {
	switch strings.ToLower(strings.TrimSpace(string(s))) {
	case string(SenderParticipant), legacySenderUser:
		return SenderParticipant
	case string(SenderOperator), legacySenderAdmin:
		return SenderOperator
	default:
		return ""
	}
}

// EventKind distinguishes transcript messages from bookkeeping events.
type EventKind string

const (
	KindMessage     EventKind = "message"
	KindReadReceipt EventKind = "read_receipt"
)

// EventID is an opaque identifier. Legacy records use millisecond
// numbers, newer ones UUID strings; both decode into the same type.
type EventID string

// UnmarshalJSON accepts strings, numbers and null.
func (id *EventID) UnmarshalJSON(data []byte) error {
	var f FlexString
	if err := f.UnmarshalJSON(data); err != nil {
		return err
	}
	*id = EventID(f)
	return nil
}

// FlexString decodes a JSON string, number or boolean as text. The site
// widget wrote ids and times as whatever the browser had at hand. null,
// objects and arrays decode as "".
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*f = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
	case data[0] == '{' || data[0] == '[':
		*f = ""
	default:
		*f = FlexString(data)
	}
	return nil
}

// Event is one immutable record of the chat log. Field names on the wire
// are those of the legacy chatHistory slot.
type Event struct {
	ID     EventID   `json:"id,omitempty"`
	Sender Sender    `json:"sender"`
	Kind   EventKind `json:"kind,omitempty"`

	// Participant identity
	UserEmail string `json:"userEmail,omitempty"`
	UserID    string `json:"userId,omitempty"`
	UserName  string `json:"userName,omitempty"`

	// Operator events only
	TargetKey string `json:"targetUserId,omitempty"`

	// Content
	Text          string `json:"text,omitempty"`
	AttachmentRef string `json:"image,omitempty"`
	TopicTag      string `json:"topic,omitempty"`

	// Timestamp is an RFC 3339 instant; Clock is the legacy bare "HH:MM".
	Timestamp string `json:"timestamp,omitempty"`
	Clock     string `json:"time,omitempty"`
}

// UnmarshalJSON decodes a log record without rejecting it for a field of
// the wrong JSON type. Unusable values decode as "" and are handled by
// the reconciler like missing ones.
func (e *Event) UnmarshalJSON(data []byte) error {
	var w struct {
		ID            FlexString `json:"id"`
		Sender        FlexString `json:"sender"`
		Kind          FlexString `json:"kind"`
		UserEmail     FlexString `json:"userEmail"`
		UserID        FlexString `json:"userId"`
		UserName      FlexString `json:"userName"`
		TargetKey     FlexString `json:"targetUserId"`
		Text          FlexString `json:"text"`
		AttachmentRef FlexString `json:"image"`
		TopicTag      FlexString `json:"topic"`
		Timestamp     FlexString `json:"timestamp"`
		Clock         FlexString `json:"time"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*e = Event{
		ID:            EventID(w.ID),
		Sender:        Sender(w.Sender),
		Kind:          EventKind(w.Kind),
		UserEmail:     string(w.UserEmail),
		UserID:        string(w.UserID),
		UserName:      string(w.UserName),
		TargetKey:     string(w.TargetKey),
		Text:          string(w.Text),
		AttachmentRef: string(w.AttachmentRef),
		TopicTag:      string(w.TopicTag),
		Timestamp:     string(w.Timestamp),
		Clock:         string(w.Clock),
	}
	return nil
}

// EffectiveKind defaults a missing kind to KindMessage.
func (e Event) EffectiveKind() EventKind {
	if e.Kind == "" {
		return KindMessage
	}
	return e.Kind
}

// HasAttachment reports whether the event carries a usable attachment.
func (e Event) HasAttachment() bool {
	ref := strings.TrimSpace(e.AttachmentRef)
	return ref != "" && ref != "null" && ref != "undefined"
}
