package model

import (
	"time"
)

// SendReplyRequest is the request to send an operator reply.
type SendReplyRequest struct {
	Text string `json:"text"`
}

// SendReplyResponse is the response after sending a reply.
type SendReplyResponse struct {
	Event  Event  `json:"event"`
	Thread Thread `json:"thread"`
}

// DraftResponse carries a suggested reply that has not been sent.
type DraftResponse struct {
	Draft    string `json:"draft"`
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
}

// UnreadResponse is the sidebar badge payload.
type UnreadResponse struct {
	TotalUnread int `json:"total_unread"`
	Threads     int `json:"threads"`
}

// ThreadsEvent is pushed to stream subscribers after every change.
type ThreadsEvent struct {
	Threads     []ThreadSummary `json:"threads"`
	TotalUnread int             `json:"total_unread"`
	Version     uint64          `json:"version"`
}

// ErrorEvent represents an error event.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HeartbeatEvent represents a heartbeat event.
type HeartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}
