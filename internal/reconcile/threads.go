package reconcile

import (
	"strings"

	"github.com/capitalize-ai/support-desk/internal/model"
)

// FindThread looks a thread up by exact participant key.
func FindThread(threads []model.Thread, key string) (*model.Thread, bool) {
	for i := range threads {
		if threads[i].ParticipantKey == key {
			return &threads[i], true
		}
	}
	return nil, false
}

// TotalUnread sums unread counts across threads.
func TotalUnread(threads []model.Thread) int {
	total := 0
	for _, th := range threads {
		total += th.UnreadCount
	}
	return total
}

// FilterThreads keeps threads whose key, name or preview contains query,
// ignoring case. An empty query keeps everything.
func FilterThreads(threads []model.Thread, query string) []model.Thread {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return threads
	}
	out := make([]model.Thread, 0, len(threads))
	for _, th := range threads {
		if strings.Contains(strings.ToLower(th.ParticipantKey), query) ||
			strings.Contains(strings.ToLower(th.DisplayName), query) ||
			strings.Contains(strings.ToLower(th.LastMessagePreview), query) {
			out = append(out, th)
		}
	}
	return out
}
