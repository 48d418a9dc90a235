package model

import (
	"encoding/json"
	"testing"
)

func TestSenderNormalize(t *testing.T) {
	tests := []struct {
		in   Sender
		want Sender
	}{
		{"participant", SenderParticipant},
		{"user", SenderParticipant},
		{"USER", SenderParticipant},
		{"operator", SenderOperator},
		{"admin", SenderOperator},
		{"", ""},
		{"bot", ""},
	}
	for _, tt := range tests {
		if got := tt.in.Normalize(); got != tt.want {
			t.Errorf("Sender(%q).Normalize() = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEventDecodesLegacyRecords(t *testing.T) {
	raw := `[
		{"id": 1712345678901, "sender": "user", "userEmail": "a@x.com", "text": "hi", "time": "09:15"},
		{"id": "0190f0c4-8f3e-7c55-9a57-6d3f3b1f2a10", "sender": "admin", "targetUserId": "a@x.com", "text": "hello", "timestamp": "2024-05-01T09:16:00.000Z"},
		{"id": null, "sender": "user", "userId": "u-1", "image": "data:image/png;base64,AAAA"}
	]`

	var events []Event
	if err := json.Unmarshal([]byte(raw), &events); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].ID != "1712345678901" {
		t.Fatalf("numeric id decoded as %q", events[0].ID)
	}
	if events[1].ID != "0190f0c4-8f3e-7c55-9a57-6d3f3b1f2a10" {
		t.Fatalf("string id decoded as %q", events[1].ID)
	}
	if events[2].ID != "" {
		t.Fatalf("null id decoded as %q", events[2].ID)
	}
	if events[1].TargetKey != "a@x.com" {
		t.Fatalf("targetUserId not mapped: %+v", events[1])
	}
	if events[0].Clock != "09:15" {
		t.Fatalf("legacy clock not mapped: %+v", events[0])
	}
	if !events[2].HasAttachment() || events[0].HasAttachment() {
		t.Fatalf("attachment detection wrong")
	}
	if events[0].EffectiveKind() != KindMessage {
		t.Fatalf("missing kind should default to message")
	}
}

func TestEventDecodesNonStringFields(t *testing.T) {
	raw := `[
		{"sender": "user", "userId": 12345, "text": "hi"},
		{"sender": "user", "userEmail": "b@x.com", "timestamp": 1714554000000, "time": null},
		{"sender": "admin", "targetUserId": 12345, "text": 42, "image": false, "topic": {"x": 1}}
	]`

	var events []Event
	if err := json.Unmarshal([]byte(raw), &events); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if events[0].UserID != "12345" {
		t.Fatalf("numeric userId decoded as %q", events[0].UserID)
	}
	if events[1].Timestamp != "1714554000000" || events[1].Clock != "" {
		t.Fatalf("numeric timestamp decoded as %+v", events[1])
	}
	if events[2].TargetKey != "12345" || events[2].Text != "42" {
		t.Fatalf("operator record decoded as %+v", events[2])
	}
	if events[2].TopicTag != "" {
		t.Fatalf("object topic should decode empty, got %q", events[2].TopicTag)
	}
}

func TestMessageDecodesTimelineFields(t *testing.T) {
	raw := `{"sender":"user","userEmail":"a@x.com","text":"hi","at":"2024-05-01T09:00:00Z","position":3,"synthetic":true}`

	var m Message
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.UserEmail != "a@x.com" || m.Text != "hi" {
		t.Fatalf("event fields lost: %+v", m.Event)
	}
	if m.Position != 3 || !m.Synthetic || m.At.IsZero() {
		t.Fatalf("timeline fields lost: %+v", m)
	}
}

func TestThreadClone(t *testing.T) {
	th := Thread{ParticipantKey: "a@x.com", Messages: []Message{{Position: 0}}}
	c := th.Clone()
	c.Messages[0].Position = 9
	if th.Messages[0].Position != 0 {
		t.Fatalf("clone shares transcript storage")
	}
}
