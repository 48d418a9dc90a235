package model

import (
	"encoding/json"
	"time"
)

// Message is an Event placed on a thread's timeline.
type Message struct {
	Event

	// At is the normalized, comparable instant of the event.
	At time.Time `json:"at"`
	// Position is the event's index in the log snapshot.
	Position int `json:"position"`
	// Synthetic is set when At was derived rather than recorded.
	Synthetic bool `json:"synthetic,omitempty"`
}

// UnmarshalJSON decodes the embedded event and the timeline fields. It
// keeps the Event decoder from swallowing the whole object.
func (m *Message) UnmarshalJSON(data []byte) error {
	if err := m.Event.UnmarshalJSON(data); err != nil {
		return err
	}
	var aux struct {
		At        time.Time `json:"at"`
		Position  int       `json:"position"`
		Synthetic bool      `json:"synthetic"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	m.At, m.Position, m.Synthetic = aux.At, aux.Position, aux.Synthetic
	return nil
}

// Thread is the derived per-participant view of the log.
type Thread struct {
	ParticipantKey string    `json:"participant_key"`
	DisplayName    string    `json:"display_name"`
	Email          string    `json:"email,omitempty"`
	Messages       []Message `json:"messages"`

	LastMessagePreview      string     `json:"last_message_preview"`
	LastMessageTime         time.Time  `json:"last_message_time"`
	LastOperatorMessageTime *time.Time `json:"last_operator_message_time,omitempty"`
	UnreadCount             int        `json:"unread_count"`

	// Selected is a transient annotation, never persisted.
	Selected bool `json:"selected,omitempty"`
}

// Summary returns the thread without its transcript.
func (t *Thread) Summary() ThreadSummary {
	return ThreadSummary{
		ParticipantKey:          t.ParticipantKey,
		DisplayName:             t.DisplayName,
		Email:                   t.Email,
		MessageCount:            len(t.Messages),
		LastMessagePreview:      t.LastMessagePreview,
		LastMessageTime:         t.LastMessageTime,
		LastOperatorMessageTime: t.LastOperatorMessageTime,
		UnreadCount:             t.UnreadCount,
		Selected:                t.Selected,
	}
}

// Clone returns a deep copy of the thread.
func (t *Thread) Clone() Thread {
	c := *t
	c.Messages = append([]Message(nil), t.Messages...)
	if t.LastOperatorMessageTime != nil {
		v := *t.LastOperatorMessageTime
		c.LastOperatorMessageTime = &v
	}
	return c
}

// ThreadSummary is a thread list entry.
type ThreadSummary struct {
	ParticipantKey          string     `json:"participant_key"`
	DisplayName             string     `json:"display_name"`
	Email                   string     `json:"email,omitempty"`
	MessageCount            int        `json:"message_count"`
	LastMessagePreview      string     `json:"last_message_preview"`
	LastMessageTime         time.Time  `json:"last_message_time"`
	LastOperatorMessageTime *time.Time `json:"last_operator_message_time,omitempty"`
	UnreadCount             int        `json:"unread_count"`
	Selected                bool       `json:"selected,omitempty"`
}

// ListThreadsResponse is the response for listing threads.
type ListThreadsResponse struct {
	Threads     []ThreadSummary `json:"threads"`
	Total       int             `json:"total"`
	TotalUnread int             `json:"total_unread"`
	Dropped     int             `json:"dropped,omitempty"`
}
