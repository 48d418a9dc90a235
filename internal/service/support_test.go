package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/support-desk/internal/model"
	"github.com/capitalize-ai/support-desk/internal/session"
	"github.com/capitalize-ai/support-desk/internal/store"
	"github.com/capitalize-ai/support-desk/pkg/logger"
)

var base = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

type stepClock struct {
	mu  sync.Mutex
	cur time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Minute)
	return c.cur
}

func participantAt(key, text string, at time.Time) model.Event {
	return model.Event{
		Sender:    "user",
		UserEmail: key,
		Text:      text,
		Timestamp: at.Format(time.RFC3339Nano),
	}
}

func newTestService(t *testing.T, opts Options, events ...model.Event) (*SupportService, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStoreWith(events...)
	if opts.Now == nil {
		opts.Now = (&stepClock{cur: base.Add(time.Hour)}).Now
	}
	return NewSupportService(st, nil, opts, logger.NewNop()), st
}

func TestThreadsListsSummaries(t *testing.T) {
	svc, _ := newTestService(t, Options{},
		participantAt("a@x.com", "hi", base),
		participantAt("b@x.com", "refund", base.Add(time.Minute)),
		model.Event{Sender: "user", UserID: "anonymous", Text: "lost"},
	)

	resp := svc.Threads(context.Background(), "")
	require.Len(t, resp.Threads, 2)
	assert.Equal(t, "b@x.com", resp.Threads[0].ParticipantKey)
	assert.Equal(t, 2, resp.TotalUnread)
	assert.Equal(t, 1, resp.Dropped)
	assert.Equal(t, 1, resp.Threads[0].MessageCount)

	filtered := svc.Threads(context.Background(), "REFUND")
	require.Len(t, filtered.Threads, 1)
	assert.Equal(t, 1, filtered.Total)
	assert.Equal(t, 2, filtered.TotalUnread, "badge counts every thread")
}

func TestSelectMarksReadUntilLogChanges(t *testing.T) {
	svc, st := newTestService(t, Options{}, participantAt("a@x.com", "hi", base))
	ctx := context.Background()

	th, err := svc.Select(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, 0, th.UnreadCount)
	assert.True(t, th.Selected)

	assert.False(t, svc.Refresh(ctx), "unchanged log must not rebuild")
	assert.Equal(t, 0, svc.TotalUnread(ctx).TotalUnread)

	require.NoError(t, st.Append(ctx, participantAt("b@x.com", "yo", base)))
	assert.True(t, svc.Refresh(ctx))
	assert.Equal(t, 2, svc.TotalUnread(ctx).TotalUnread, "local read stamp is discarded on reconcile")

	got, err := svc.Thread(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, got.Selected, "selection survives reconcile")
}

func TestSelectPersistsReadReceipt(t *testing.T) {
	svc, st := newTestService(t, Options{PersistReadReceipts: true}, participantAt("a@x.com", "hi", base))
	ctx := context.Background()

	_, err := svc.Select(ctx, "a@x.com")
	require.NoError(t, err)

	events, err := st.Load(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.KindReadReceipt, events[1].Kind)
	assert.Equal(t, "a@x.com", events[1].TargetKey)

	other := NewSupportService(st, nil, Options{Now: (&stepClock{cur: base.Add(2 * time.Hour)}).Now}, logger.NewNop())
	assert.Equal(t, 0, other.TotalUnread(ctx).TotalUnread, "second operator sees the thread as read")
}

func TestSelectUnknownThread(t *testing.T) {
	svc, _ := newTestService(t, Options{}, participantAt("a@x.com", "hi", base))
	_, err := svc.Select(context.Background(), "A@X.COM")
	assert.ErrorIs(t, err, session.ErrThreadNotFound)
}

func TestReplyPersistsAndClearsUnread(t *testing.T) {
	svc, st := newTestService(t, Options{}, participantAt("a@x.com", "hi", base))
	ctx := context.Background()

	resp, err := svc.Reply(ctx, "a@x.com", "  hello there ")
	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.Event.Text)
	assert.Equal(t, "a@x.com", resp.Event.TargetKey)
	assert.Equal(t, model.SenderOperator, resp.Event.Sender)
	assert.NotEmpty(t, resp.Event.ID)
	assert.Equal(t, 0, resp.Thread.UnreadCount)
	assert.Len(t, resp.Thread.Messages, 2)
	assert.Equal(t, "hello there", resp.Thread.LastMessagePreview)

	events, err := st.Load(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, resp.Event.ID, events[1].ID)
}

func TestReplyPicksUpExternalWrites(t *testing.T) {
	svc, st := newTestService(t, Options{}, participantAt("a@x.com", "hi", base))
	ctx := context.Background()
	svc.Refresh(ctx)

	require.NoError(t, st.Append(ctx, participantAt("b@x.com", "new here", base)))

	_, err := svc.Reply(ctx, "b@x.com", "welcome")
	require.NoError(t, err)

	events, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, events, 3, "reply must not overwrite the external append")
}

func TestReplyErrors(t *testing.T) {
	svc, _ := newTestService(t, Options{}, participantAt("a@x.com", "hi", base))
	ctx := context.Background()

	_, err := svc.Reply(ctx, "a@x.com", "   ")
	assert.ErrorIs(t, err, session.ErrEmptyMessage)

	_, err = svc.Reply(ctx, "nobody@x.com", "hello")
	assert.ErrorIs(t, err, session.ErrThreadNotFound)
}

type brokenAppendStore struct{ *store.MemoryStore }

func (brokenAppendStore) Append(context.Context, model.Event) error {
	return errors.New("quota exceeded")
}

func TestReplyStoreFailureLeavesSessionUntouched(t *testing.T) {
	st := brokenAppendStore{store.NewMemoryStoreWith(participantAt("a@x.com", "hi", base))}
	svc := NewSupportService(st, nil, Options{Now: (&stepClock{cur: base}).Now}, logger.NewNop())
	ctx := context.Background()

	_, err := svc.Reply(ctx, "a@x.com", "hello")
	require.Error(t, err)

	th, err := svc.Thread(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Len(t, th.Messages, 1)
	assert.Equal(t, 1, th.UnreadCount)
}

func TestClearHistory(t *testing.T) {
	svc, st := newTestService(t, Options{}, participantAt("a@x.com", "hi", base))
	ctx := context.Background()

	require.NoError(t, svc.ClearHistory(ctx))
	assert.Empty(t, svc.Threads(ctx, "").Threads)

	events, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestCorruptStoreDegradesToEmpty(t *testing.T) {
	svc, st := newTestService(t, Options{})
	st.SetRaw([]byte(`{"oops":true}`))

	ctx := context.Background()
	assert.Empty(t, svc.Threads(ctx, "").Threads)
	assert.NoError(t, svc.Ready(ctx))
}

func TestSubscribersReceiveChanges(t *testing.T) {
	svc, _ := newTestService(t, Options{}, participantAt("a@x.com", "hi", base))
	ctx := context.Background()

	ch := svc.Subscribe()
	defer svc.Unsubscribe(ch)

	require.True(t, svc.Refresh(ctx))
	select {
	case ev := <-ch:
		require.Len(t, ev.Threads, 1)
		assert.Equal(t, 1, ev.TotalUnread)
	case <-time.After(time.Second):
		t.Fatal("no threads event")
	}

	_, err := svc.Reply(ctx, "a@x.com", "hello")
	require.NoError(t, err)
	select {
	case ev := <-ch:
		assert.Equal(t, 0, ev.TotalUnread)
	case <-time.After(time.Second):
		t.Fatal("no threads event after reply")
	}
}

func TestSlowSubscriberGetsLatestOnly(t *testing.T) {
	svc, _ := newTestService(t, Options{}, participantAt("a@x.com", "hi", base))
	ch := svc.Subscribe()

	svc.publish(model.ThreadsEvent{Version: 1})
	svc.publish(model.ThreadsEvent{Version: 2})

	ev := <-ch
	assert.Equal(t, uint64(2), ev.Version)

	svc.Unsubscribe(ch)
	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, svc.Subscribers())
	svc.Unsubscribe(ch)
}
