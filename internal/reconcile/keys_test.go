package reconcile

import (
	"testing"

	"github.com/capitalize-ai/support-desk/internal/model"
)

func TestIsValidKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"a@x.com", true},
		{"u-42", true},
		{"", false},
		{"   ", false},
		{"null", false},
		{"undefined", false},
		{"anonymous", false},
		{"Anonymous", false},
	}
	for _, tt := range tests {
		if got := IsValidKey(tt.key); got != tt.want {
			t.Errorf("IsValidKey(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestResolveParticipantKey(t *testing.T) {
	tests := []struct {
		name     string
		event    model.Event
		wantKey  string
		wantTier Tier
		wantOK   bool
	}{
		{
			name:     "email wins over id",
			event:    model.Event{UserEmail: "a@x.com", UserID: "b@x.com"},
			wantKey:  "a@x.com",
			wantTier: TierEmail,
			wantOK:   true,
		},
		{
			name:     "sentinel email falls through to key-like id",
			event:    model.Event{UserEmail: "undefined", UserID: "b@x.com"},
			wantKey:  "b@x.com",
			wantTier: TierKeyLikeID,
			wantOK:   true,
		},
		{
			name:     "plain id as last resort",
			event:    model.Event{UserEmail: "null", UserID: "u-7"},
			wantKey:  "u-7",
			wantTier: TierID,
			wantOK:   true,
		},
		{
			name:   "anonymous id is rejected",
			event:  model.Event{UserID: "anonymous"},
			wantOK: false,
		},
		{
			name:   "nothing to resolve",
			event:  model.Event{UserName: "Sara"},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, tier, ok := ResolveParticipantKey(tt.event)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if key != tt.wantKey || tier != tt.wantTier {
				t.Fatalf("got (%q, %v), want (%q, %v)", key, tier, tt.wantKey, tt.wantTier)
			}
		})
	}
}
