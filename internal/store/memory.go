package store

import (
	"context"
	"sync"

	"github.com/capitalize-ai/support-desk/internal/model"
)

// MemoryStore keeps the slot in process. Writes are pushed to watchers.
type MemoryStore struct {
	mu       sync.Mutex
	data     []byte
	watchers map[chan struct{}]struct{}
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{watchers: make(map[chan struct{}]struct{})}
}

// NewMemoryStoreWith returns a store seeded with events.
func NewMemoryStoreWith(events ...model.Event) *MemoryStore {
	s := NewMemoryStore()
	s.data, _ = EncodeLog(events)
	return s
}

// Backend implements Named.
func (s *MemoryStore) Backend() string { return "memory" }

// Load decodes the slot.
func (s *MemoryStore) Load(ctx context.Context) ([]model.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return DecodeLog(s.data)
}

// Append rewrites the slot with e added.
func (s *MemoryStore) Append(ctx context.Context, e model.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := appendEncoded(s.data, e)
	if err != nil {
		return err
	}
	s.data = next
	s.notifyLocked()
	return nil
}

// Clear empties the slot.
func (s *MemoryStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = nil
	s.notifyLocked()
	return nil
}

// SetRaw overwrites the slot verbatim, as another writer would.
func (s *MemoryStore) SetRaw(v []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append([]byte(nil), v...)
	s.notifyLocked()
}

// Watch implements Watcher.
func (s *MemoryStore) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.watchers[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.watchers, ch)
		s.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

func (s *MemoryStore) notifyLocked() {
	for ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Close is a no-op; watchers end with their contexts.
func (s *MemoryStore) Close() error { return nil }
