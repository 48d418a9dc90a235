// Package service provides the support desk operations on top of the
// shared chat log.
package service

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/support-desk/internal/model"
	"github.com/capitalize-ai/support-desk/internal/reconcile"
	"github.com/capitalize-ai/support-desk/internal/session"
	"github.com/capitalize-ai/support-desk/internal/store"
	"github.com/capitalize-ai/support-desk/pkg/logger"
	"github.com/capitalize-ai/support-desk/pkg/metrics"
	"github.com/capitalize-ai/support-desk/pkg/tracing"
)

// Options tunes a SupportService.
type Options struct {
	// PersistReadReceipts writes a read_receipt event when a thread is
	// selected, so the read state is shared with other operators.
	PersistReadReceipts bool

	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// SupportService owns the operator session for one process. Every
// operation holds the session lock from read to reconcile.
type SupportService struct {
	store   store.LogStore
	engine  *session.Engine
	opts    Options
	logger  *logger.Logger
	backend string

	mu       sync.Mutex
	sess     session.Session
	snapshot []byte
	loaded   bool
	version  uint64

	subMu sync.Mutex
	subs  map[chan model.ThreadsEvent]struct{}
}

// NewSupportService creates a new support service. A nil engine uses the
// default reconciler.
func NewSupportService(st store.LogStore, engine *session.Engine, opts Options, log *logger.Logger) *SupportService {
	if engine == nil {
		engine = session.NewEngine(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &SupportService{
		store:   st,
		engine:  engine,
		opts:    opts,
		logger:  log.Named("support"),
		backend: store.BackendName(st),
		subs:    make(map[chan model.ThreadsEvent]struct{}),
	}
}

func (s *SupportService) now() time.Time {
	return s.opts.Now().UTC().Round(0)
}

// Refresh reloads the log and reconciles it when it changed since the last
// load. It reports whether the thread set was rebuilt.
func (s *SupportService) Refresh(ctx context.Context) bool {
	s.mu.Lock()
	changed := s.refreshLocked(ctx)
	var ev model.ThreadsEvent
	if changed {
		ev = s.threadsEventLocked()
	}
	s.mu.Unlock()

	if changed {
		s.publish(ev)
	}
	return changed
}

func (s *SupportService) refreshLocked(ctx context.Context) bool {
	ctx, span := tracing.Start(ctx, "support.refresh", "backend", s.backend)
	defer span.End()

	events := store.SafeLoad(ctx, s.store, s.logger)
	encoded, err := store.EncodeLog(events)
	if err != nil {
		s.logger.Warn("failed to fingerprint log", zap.Error(err))
	}
	if s.loaded && err == nil && bytes.Equal(encoded, s.snapshot) {
		return false
	}

	start := time.Now()
	s.sess = s.engine.Reconcile(s.sess, events, s.now())
	s.snapshot = encoded
	s.loaded = true
	s.version++

	metrics.RecordReconcile(
		time.Since(start).Seconds(),
		len(events),
		len(s.sess.Threads),
		reconcile.TotalUnread(s.sess.Threads),
		s.sess.Dropped,
	)
	s.logger.Debug("log reconciled",
		zap.Int("events", len(events)),
		zap.Int("threads", len(s.sess.Threads)),
		zap.Int("dropped", s.sess.Dropped),
		zap.Uint64("version", s.version),
	)
	return true
}

func (s *SupportService) ensureLoadedLocked(ctx context.Context) {
	if !s.loaded {
		s.refreshLocked(ctx)
	}
}

// Threads lists thread summaries, most recent first, optionally filtered.
func (s *SupportService) Threads(ctx context.Context, filter string) model.ListThreadsResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoadedLocked(ctx)

	threads := reconcile.FilterThreads(s.sess.Threads, filter)
	resp := model.ListThreadsResponse{
		Threads:     summaries(threads),
		Total:       len(threads),
		TotalUnread: reconcile.TotalUnread(s.sess.Threads),
		Dropped:     s.sess.Dropped,
	}
	return resp
}

// Thread returns one thread with its transcript without selecting it.
func (s *SupportService) Thread(ctx context.Context, key string) (model.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoadedLocked(ctx)

	th, ok := reconcile.FindThread(s.sess.Threads, key)
	if !ok {
		return model.Thread{}, session.ErrThreadNotFound
	}
	return th.Clone(), nil
}

// TotalUnread returns the badge count.
func (s *SupportService) TotalUnread(ctx context.Context) model.UnreadResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoadedLocked(ctx)

	return model.UnreadResponse{
		TotalUnread: reconcile.TotalUnread(s.sess.Threads),
		Threads:     len(s.sess.Threads),
	}
}

// Select opens a thread, marking it read.
func (s *SupportService) Select(ctx context.Context, key string) (model.Thread, error) {
	ctx, span := tracing.Start(ctx, "support.select", "thread", key)
	defer span.End()

	s.mu.Lock()
	th, ev, err := s.selectLocked(ctx, key)
	s.mu.Unlock()
	if err != nil {
		span.RecordError(err)
		return model.Thread{}, err
	}

	s.publish(ev)
	return th, nil
}

func (s *SupportService) selectLocked(ctx context.Context, key string) (model.Thread, model.ThreadsEvent, error) {
	s.ensureLoadedLocked(ctx)

	now := s.now()
	next, th, err := s.engine.SelectThread(s.sess, key, now)
	if err != nil {
		return model.Thread{}, model.ThreadsEvent{}, err
	}
	s.sess = next
	s.version++

	if s.opts.PersistReadReceipts {
		if err := s.store.Append(ctx, session.ReadReceipt(key, now)); err != nil {
			metrics.RecordStoreError(s.backend, "append")
			s.logger.Warn("failed to persist read receipt",
				zap.String("participant_key", key),
				zap.Error(err),
			)
		} else {
			metrics.RepliesTotal.WithLabelValues(string(model.KindReadReceipt)).Inc()
			s.refreshLocked(ctx)
		}
	}

	if cur, ok := reconcile.FindThread(s.sess.Threads, key); ok {
		th = cur
	}
	return th.Clone(), s.threadsEventLocked(), nil
}

// Reply appends an operator message to the thread with key and persists
// it. The log is re-read first so the append lands on the latest version.
func (s *SupportService) Reply(ctx context.Context, key, text string) (model.SendReplyResponse, error) {
	ctx, span := tracing.Start(ctx, "support.reply", "thread", key)
	defer span.End()

	s.mu.Lock()
	resp, ev, err := s.replyLocked(ctx, key, text)
	s.mu.Unlock()
	if err != nil {
		span.RecordError(err)
		return model.SendReplyResponse{}, err
	}

	s.publish(ev)
	return resp, nil
}

func (s *SupportService) replyLocked(ctx context.Context, key, text string) (model.SendReplyResponse, model.ThreadsEvent, error) {
	s.refreshLocked(ctx)

	now := s.now()
	selected, _, err := s.engine.SelectThread(s.sess, key, now)
	if err != nil {
		return model.SendReplyResponse{}, model.ThreadsEvent{}, err
	}
	next, event, err := s.engine.AppendOperatorMessage(selected, text, now)
	if err != nil {
		return model.SendReplyResponse{}, model.ThreadsEvent{}, err
	}

	if err := s.store.Append(ctx, event); err != nil {
		metrics.RecordStoreError(s.backend, "append")
		return model.SendReplyResponse{}, model.ThreadsEvent{}, fmt.Errorf("failed to persist reply: %w", err)
	}
	metrics.RepliesTotal.WithLabelValues(string(model.KindMessage)).Inc()

	s.sess = next
	s.version++
	s.refreshLocked(ctx)

	th, ok := reconcile.FindThread(s.sess.Threads, key)
	if !ok {
		return model.SendReplyResponse{}, model.ThreadsEvent{}, session.ErrThreadNotFound
	}

	s.logger.Info("operator reply sent",
		zap.String("participant_key", key),
		zap.String("event_id", string(event.ID)),
	)
	return model.SendReplyResponse{Event: event, Thread: th.Clone()}, s.threadsEventLocked(), nil
}

// ClearHistory deletes the whole log.
func (s *SupportService) ClearHistory(ctx context.Context) error {
	ctx, span := tracing.Start(ctx, "support.clear")
	defer span.End()

	s.mu.Lock()
	if err := s.store.Clear(ctx); err != nil {
		s.mu.Unlock()
		metrics.RecordStoreError(s.backend, "clear")
		span.RecordError(err)
		return fmt.Errorf("failed to clear history: %w", err)
	}
	s.sess = s.engine.New(nil, s.now())
	s.snapshot, _ = store.EncodeLog(nil)
	s.loaded = true
	s.version++
	metrics.RecordReconcile(0, 0, 0, 0, 0)
	ev := s.threadsEventLocked()
	s.mu.Unlock()

	s.logger.Info("chat history cleared")
	s.publish(ev)
	return nil
}

// Ready reports whether the store can be read.
func (s *SupportService) Ready(ctx context.Context) error {
	_, err := s.store.Load(ctx)
	if err != nil && !isCorrupt(err) {
		return err
	}
	return nil
}

// Snapshot returns the current thread list event without reloading.
func (s *SupportService) Snapshot(ctx context.Context) model.ThreadsEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoadedLocked(ctx)
	return s.threadsEventLocked()
}

func (s *SupportService) threadsEventLocked() model.ThreadsEvent {
	return model.ThreadsEvent{
		Threads:     summaries(s.sess.Threads),
		TotalUnread: reconcile.TotalUnread(s.sess.Threads),
		Version:     s.version,
	}
}

func summaries(threads []model.Thread) []model.ThreadSummary {
	out := make([]model.ThreadSummary, len(threads))
	for i := range threads {
		out[i] = threads[i].Summary()
	}
	return out
}
