package nats

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/capitalize-ai/support-desk/internal/config"
	"github.com/capitalize-ai/support-desk/internal/model"
	"github.com/capitalize-ai/support-desk/internal/store"
	"github.com/capitalize-ai/support-desk/pkg/logger"
)

// ErrNotConnected is returned while the connection is down.
var ErrNotConnected = errors.New("nats: not connected")

const (
	// DefaultBucket is the key/value bucket holding the chat log.
	DefaultBucket = "SUPPORT_DESK"

	// appendRetries bounds compare-and-set attempts when writers race.
	appendRetries = 5
)

// KVStore keeps the chat log under one key of a JetStream KV bucket. It
// implements store.LogStore and store.Watcher.
type KVStore struct {
	client *Client
	owned  bool
	kv     jetstream.KeyValue
	key    string
	logger *logger.Logger
}

// NewKVStore binds to bucket, creating it if it does not exist.
func NewKVStore(ctx context.Context, client *Client, bucket, key string, log *logger.Logger) (*KVStore, error) {
	js := client.JetStream()

	kv, err := js.KeyValue(ctx, bucket)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      bucket,
			Description: "Support desk chat log",
			History:     5,
			Storage:     jetstream.FileStorage,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to bind key/value bucket %s: %w", bucket, err)
	}

	return &KVStore{
		client: client,
		kv:     kv,
		key:    key,
		logger: log.Named("kv").With(zap.String("bucket", bucket), zap.String("key", key)),
	}, nil
}

// Backend implements store.Named.
func (s *KVStore) Backend() string { return config.BackendNATS }

func (s *KVStore) get(ctx context.Context) ([]byte, uint64, error) {
	if !s.client.IsConnected() {
		return nil, 0, ErrNotConnected
	}
	entry, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return entry.Value(), entry.Revision(), nil
}

// Load reads the current slot value.
func (s *KVStore) Load(ctx context.Context) ([]model.Event, error) {
	v, _, err := s.get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", s.key, err)
	}
	return store.DecodeLog(v)
}

// Append rewrites the slot with e added. The write is conditional on the
// revision that was read and is retried when another writer got there
// first.
func (s *KVStore) Append(ctx context.Context, e model.Event) error {
	for attempt := 1; ; attempt++ {
		cur, rev, err := s.get(ctx)
		if err != nil {
			return fmt.Errorf("failed to get %s: %w", s.key, err)
		}
		next, err := store.EncodeLog(appendTo(cur, e))
		if err != nil {
			return err
		}

		if rev == 0 {
			_, err = s.kv.Create(ctx, s.key, next)
		} else {
			_, err = s.kv.Update(ctx, s.key, next, rev)
		}
		if err == nil {
			return nil
		}
		if !errors.Is(err, jetstream.ErrKeyExists) || attempt >= appendRetries {
			return fmt.Errorf("failed to put %s: %w", s.key, err)
		}
		s.logger.Debug("append lost a race, retrying", zap.Int("attempt", attempt))
	}
}

func appendTo(cur []byte, e model.Event) []model.Event {
	events, _ := store.DecodeLog(cur)
	return append(events, e)
}

// Clear deletes the key. Watchers see the delete marker.
func (s *KVStore) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, s.key); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete %s: %w", s.key, err)
	}
	return nil
}

// Watch implements store.Watcher. Every put or delete of the key, from any
// process, produces one tick.
func (s *KVStore) Watch(ctx context.Context) (<-chan struct{}, error) {
	w, err := s.kv.Watch(ctx, s.key, jetstream.UpdatesOnly())
	if err != nil {
		return nil, fmt.Errorf("failed to watch %s: %w", s.key, err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer func() { _ = w.Stop() }()
		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-w.Updates():
				if !ok {
					return
				}
				if entry == nil {
					continue
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}

// Close releases the connection when the store opened it itself.
func (s *KVStore) Close() error {
	if s.owned {
		s.client.Close()
	}
	return nil
}

func openKV(ctx context.Context, cfg *config.Config, log *logger.Logger) (store.LogStore, error) {
	client, err := Connect(ctx, ConfigFrom(cfg), log)
	if err != nil {
		return nil, err
	}
	bucket := cfg.NATSBucket
	if bucket == "" {
		bucket = DefaultBucket
	}
	s, err := NewKVStore(ctx, client, bucket, cfg.StoreSlot, log)
	if err != nil {
		client.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

func init() {
	store.Register(config.BackendNATS, openKV)
}
