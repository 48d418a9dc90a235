package middleware

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/capitalize-ai/support-desk/internal/reconcile"
)

const (
	maxMessageBytes = 10000
	maxKeyBytes     = 320
)

// ValidateMessageContent validates an operator reply.
func ValidateMessageContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.New("content cannot be empty")
	}
	if len(content) > maxMessageBytes {
		return errors.New("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("content must be valid UTF-8")
	}
	return nil
}

// ValidateParticipantKey validates a thread key taken from a URL.
func ValidateParticipantKey(key string) error {
	if !reconcile.IsValidKey(key) {
		return errors.New("invalid participant key")
	}
	if len(key) > maxKeyBytes {
		return errors.New("participant key exceeds maximum length")
	}
	if !utf8.ValidString(key) {
		return errors.New("participant key must be valid UTF-8")
	}
	return nil
}
