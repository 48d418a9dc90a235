package service

import (
	"errors"

	"github.com/capitalize-ai/support-desk/internal/model"
	"github.com/capitalize-ai/support-desk/internal/store"
)

// Subscribe registers for thread list changes. The channel holds at most
// the latest pending event; slow readers skip intermediate versions.
func (s *SupportService) Subscribe() chan model.ThreadsEvent {
	ch := make(chan model.ThreadsEvent, 1)
	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()
	return ch
}

// Unsubscribe removes and closes ch.
func (s *SupportService) Unsubscribe(ch chan model.ThreadsEvent) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if _, ok := s.subs[ch]; ok {
		delete(s.subs, ch)
		close(ch)
	}
}

// Subscribers returns the number of active subscriptions.
func (s *SupportService) Subscribers() int {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return len(s.subs)
}

func (s *SupportService) publish(ev model.ThreadsEvent) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- ev:
			continue
		default:
		}
		// Replace the stale pending event.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ev:
		default:
		}
	}
}

func isCorrupt(err error) bool {
	return errors.Is(err, store.ErrCorruptLog)
}
