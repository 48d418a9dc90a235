// Package store persists the shared chat log. Every backend keeps the
// whole log as one JSON array under a single named slot and rewrites it on
// each append; the last writer wins.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/capitalize-ai/support-desk/internal/config"
	"github.com/capitalize-ai/support-desk/internal/model"
	"github.com/capitalize-ai/support-desk/pkg/logger"
	"github.com/capitalize-ai/support-desk/pkg/metrics"
)

var (
	// ErrCorruptLog is returned when the slot holds something other than a
	// JSON array of events. Decoders still return whatever they salvaged.
	ErrCorruptLog = errors.New("corrupt message log")

	// ErrUnknownBackend is returned by Open for an unregistered backend.
	ErrUnknownBackend = errors.New("unknown store backend")
)

// LogStore reads and writes the chat log slot.
type LogStore interface {
	Load(ctx context.Context) ([]model.Event, error)
	Append(ctx context.Context, e model.Event) error
	Clear(ctx context.Context) error
	Close() error
}

// Watcher is implemented by stores that can push change notifications.
// The channel receives a value after every write, including writes made by
// other processes, and is closed when ctx ends.
type Watcher interface {
	Watch(ctx context.Context) (<-chan struct{}, error)
}

// DecodeLog decodes a slot value. An empty or null slot is an empty log.
// Anything that is not a JSON array yields an empty log and ErrCorruptLog.
// Array elements that fail to decode are dropped and reported the same way
// alongside the events that did decode.
func DecodeLog(data []byte) ([]model.Event, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return []model.Event{}, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return []model.Event{}, fmt.Errorf("%w: %v", ErrCorruptLog, err)
	}

	events := make([]model.Event, 0, len(raw))
	bad := 0
	for _, r := range raw {
		var e model.Event
		if err := json.Unmarshal(r, &e); err != nil {
			bad++
			continue
		}
		events = append(events, e)
	}
	if bad > 0 {
		return events, fmt.Errorf("%w: dropped %d malformed events", ErrCorruptLog, bad)
	}
	return events, nil
}

// EncodeLog encodes events as a slot value. A nil log encodes as [].
func EncodeLog(events []model.Event) ([]byte, error) {
	if events == nil {
		events = []model.Event{}
	}
	data, err := json.Marshal(events)
	if err != nil {
		return nil, fmt.Errorf("failed to encode log: %w", err)
	}
	return data, nil
}

// appendEncoded decodes the current slot value, appends e and re-encodes.
// A corrupt slot is replaced by whatever could be salvaged plus e.
func appendEncoded(current []byte, e model.Event) ([]byte, error) {
	events, err := DecodeLog(current)
	if err != nil && !errors.Is(err, ErrCorruptLog) {
		return nil, err
	}
	return EncodeLog(append(events, e))
}

// SafeLoad loads the log and never fails: read errors and corruption are
// logged at warn level and degrade to an empty (or salvaged) log.
func SafeLoad(ctx context.Context, s LogStore, log *logger.Logger) []model.Event {
	events, err := s.Load(ctx)
	if err == nil {
		return events
	}

	if errors.Is(err, ErrCorruptLog) {
		log.Warn("message log is corrupt, continuing with salvaged events",
			zap.Int("kept", len(events)),
			zap.Error(err),
		)
		metrics.RecordStoreError(BackendName(s), "decode")
		if events == nil {
			events = []model.Event{}
		}
		return events
	}

	log.Warn("failed to load message log, continuing with empty log", zap.Error(err))
	metrics.RecordStoreError(BackendName(s), "load")
	return []model.Event{}
}

// Named is implemented by stores that report their backend name.
type Named interface {
	Backend() string
}

// BackendName reports the backend of s for logs and metrics.
func BackendName(s LogStore) string {
	if n, ok := s.(Named); ok {
		return n.Backend()
	}
	return "unknown"
}

// OpenFunc opens a backend from configuration.
type OpenFunc func(ctx context.Context, cfg *config.Config, log *logger.Logger) (LogStore, error)

var (
	backendsMu sync.RWMutex
	backends   = map[string]OpenFunc{}
)

// Register makes a backend available to Open. Backends living outside this
// package register themselves from init.
func Register(name string, fn OpenFunc) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	if fn == nil {
		panic("store: Register open func is nil")
	}
	if _, dup := backends[name]; dup {
		panic("store: Register called twice for backend " + name)
	}
	backends[name] = fn
}

// Backends lists the registered backend names.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open opens the backend named by cfg.StoreBackend.
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (LogStore, error) {
	backendsMu.RLock()
	fn, ok := backends[cfg.StoreBackend]
	backendsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %v)", ErrUnknownBackend, cfg.StoreBackend, Backends())
	}

	s, err := fn(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.StoreBackend, err)
	}
	log.Info("message log store opened",
		zap.String("backend", cfg.StoreBackend),
		zap.String("slot", cfg.StoreSlot),
	)
	return s, nil
}

func init() {
	Register(config.BackendFile, func(_ context.Context, cfg *config.Config, _ *logger.Logger) (LogStore, error) {
		return NewFileStore(cfg.StorePath, cfg.StoreSlot)
	})
	Register(config.BackendSQLite, func(ctx context.Context, cfg *config.Config, _ *logger.Logger) (LogStore, error) {
		return NewSQLiteStore(ctx, cfg.StorePath, cfg.StoreSlot)
	})
	Register(config.BackendMemory, func(context.Context, *config.Config, *logger.Logger) (LogStore, error) {
		return NewMemoryStore(), nil
	})
}
