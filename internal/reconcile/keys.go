// Package reconcile turns the flat support chat log into per-participant
// threads with unread tracking.
package reconcile

import (
	"strings"

	"github.com/capitalize-ai/support-desk/internal/model"
)

// Tier names the rule that produced a participant key.
type Tier int

const (
	TierNone Tier = iota
	TierEmail
	TierKeyLikeID
	TierID
)

func (t Tier) String() string {
	switch t {
	case TierEmail:
		return "email"
	case TierKeyLikeID:
		return "key_like_id"
	case TierID:
		return "id"
	default:
		return "none"
	}
}

// Sentinels written by clients that had no identity to send.
var missingKeys = map[string]struct{}{
	"null":      {},
	"undefined": {},
	"anonymous": {},
}

// IsValidKey reports whether k can identify a participant.
func IsValidKey(k string) bool {
	trimmed := strings.TrimSpace(k)
	if trimmed == "" {
		return false
	}
	_, missing := missingKeys[strings.ToLower(trimmed)]
	return !missing
}

func isKeyLike(k string) bool {
	return strings.Contains(k, "@")
}

type keyTier struct {
	tier Tier
	pick func(e model.Event) string
}

// keyTiers is evaluated in order; the first valid candidate wins.
var keyTiers = []keyTier{
	{TierEmail, func(e model.Event) string { return e.UserEmail }},
	{TierKeyLikeID, func(e model.Event) string {
		if isKeyLike(e.UserID) {
			return e.UserID
		}
		return ""
	}},
	{TierID, func(e model.Event) string { return e.UserID }},
}

// ResolveParticipantKey picks the thread key of a participant event.
// ok is false when no tier yields a valid key.
func ResolveParticipantKey(e model.Event) (key string, tier Tier, ok bool) {
	for _, kt := range keyTiers {
		if candidate := kt.pick(e); IsValidKey(candidate) {
			return candidate, kt.tier, true
		}
	}
	return "", TierNone, false
}
