package reconcile

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/support-desk/internal/model"
)

func ts(t time.Time) string { return t.Format(time.RFC3339Nano) }

var (
	t0 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	t1 = t0.Add(5 * time.Minute)
	t2 = t1.Add(5 * time.Minute)
)

func participant(key, text string, at time.Time) model.Event {
	return model.Event{Sender: model.SenderParticipant, UserEmail: key, Text: text, Timestamp: ts(at)}
}

func operator(target, text string, at time.Time) model.Event {
	return model.Event{Sender: model.SenderOperator, TargetKey: target, Text: text, Timestamp: ts(at)}
}

func TestSingleParticipantMessage(t *testing.T) {
	res := Reconcile([]model.Event{participant("a@x.com", "hi", t0)}, refTime)

	require.Len(t, res.Threads, 1)
	th := res.Threads[0]
	assert.Equal(t, "a@x.com", th.ParticipantKey)
	assert.Equal(t, 1, th.UnreadCount)
	assert.Nil(t, th.LastOperatorMessageTime)
	assert.Equal(t, "hi", th.LastMessagePreview)
	assert.True(t, th.LastMessageTime.Equal(t0))
}

func TestOperatorReplyClearsUnread(t *testing.T) {
	log := []model.Event{
		participant("a@x.com", "hi", t0),
		operator("a@x.com", "hello", t1),
	}
	res := Reconcile(log, refTime)

	require.Len(t, res.Threads, 1)
	th := res.Threads[0]
	assert.Equal(t, 0, th.UnreadCount)
	require.NotNil(t, th.LastOperatorMessageTime)
	assert.True(t, th.LastOperatorMessageTime.Equal(t1))
	require.Len(t, th.Messages, 2)
	assert.Equal(t, model.SenderOperator, th.Messages[1].Sender.Normalize())
}

func TestNewParticipantMessageAfterReply(t *testing.T) {
	log := []model.Event{
		participant("a@x.com", "hi", t0),
		operator("a@x.com", "hello", t1),
		participant("a@x.com", "still there?", t2),
	}
	res := Reconcile(log, refTime)

	require.Len(t, res.Threads, 1)
	assert.Equal(t, 1, res.Threads[0].UnreadCount)
	assert.Equal(t, "still there?", res.Threads[0].LastMessagePreview)
}

func TestAnonymousProducesNoThreads(t *testing.T) {
	log := []model.Event{
		{Sender: model.SenderParticipant, UserID: "anonymous", Text: "x"},
		{Sender: "user", UserEmail: "null", UserID: "undefined", Text: "y"},
	}
	res := Reconcile(log, refTime)

	assert.Empty(t, res.Threads)
	assert.Equal(t, 2, res.Dropped)
}

func TestSameMinuteClockStrings(t *testing.T) {
	log := []model.Event{
		{Sender: "user", UserEmail: "a@x.com", Text: "first", Clock: "09:15"},
		{Sender: "user", UserEmail: "a@x.com", Text: "second", Clock: "09:15"},
	}
	res := Reconcile(log, refTime)

	require.Len(t, res.Threads, 1)
	msgs := res.Threads[0].Messages
	require.Len(t, msgs, 2)
	assert.False(t, msgs[0].At.Equal(msgs[1].At), "timestamps collided")
	assert.Equal(t, "first", msgs[0].Text)
	assert.Equal(t, "second", msgs[1].Text)
	assert.True(t, msgs[0].Synthetic)
}

func TestNonStringLegacyFieldsStillGroup(t *testing.T) {
	raw := `[
		{"sender":"user","userId":12345,"text":"order 77?"},
		{"sender":"user","userEmail":"b@x.com","text":"hello","timestamp":1714554000000},
		{"sender":"admin","targetUserId":12345,"text":"shipped"}
	]`
	var log []model.Event
	require.NoError(t, json.Unmarshal([]byte(raw), &log))

	res := Reconcile(log, refTime)
	require.Len(t, res.Threads, 2)
	assert.Zero(t, res.Dropped)

	byKey := map[string]model.Thread{}
	for _, th := range res.Threads {
		byKey[th.ParticipantKey] = th
	}

	numeric, ok := byKey["12345"]
	require.True(t, ok, "numeric userId should key its own thread")
	require.Len(t, numeric.Messages, 2)
	assert.Equal(t, "shipped", numeric.Messages[1].Text)
	assert.Equal(t, 0, numeric.UnreadCount)

	b := byKey["b@x.com"]
	require.Len(t, b.Messages, 1)
	assert.True(t, b.Messages[0].Synthetic)
	assert.Equal(t, 1, b.UnreadCount)
}

func TestReconcileIsIdempotent(t *testing.T) {
	log := []model.Event{
		participant("a@x.com", "hi", t0),
		{Sender: "user", UserID: "u-9", UserName: "Reza", Clock: "08:00"},
		operator("a@x.com", "hello", t1),
		{Sender: "user", UserEmail: "b@x.com", AttachmentRef: "data:image/png;base64,AA"},
		{Sender: "user", UserID: "anonymous"},
		{Text: "no sender"},
	}
	first := Reconcile(log, refTime)
	second := Reconcile(log, refTime)

	assert.Equal(t, first, second)
}

func TestOperatorEventsAttachByExactKeyOnly(t *testing.T) {
	log := []model.Event{
		participant("a@x.com", "hi", t0),
		participant("b@x.com", "hey", t0.Add(time.Minute)),
		operator("A@X.COM", "wrong case", t1),
		operator("b@x.com", "for b", t1),
		operator("ghost@x.com", "nobody", t2),
	}
	res := Reconcile(log, refTime)

	a, ok := FindThread(res.Threads, "a@x.com")
	require.True(t, ok)
	b, ok := FindThread(res.Threads, "b@x.com")
	require.True(t, ok)

	assert.Nil(t, a.LastOperatorMessageTime)
	assert.Equal(t, 1, a.UnreadCount)
	assert.Len(t, a.Messages, 1)

	require.NotNil(t, b.LastOperatorMessageTime)
	assert.True(t, b.LastOperatorMessageTime.Equal(t1))
	assert.Equal(t, 0, b.UnreadCount)
	assert.Len(t, b.Messages, 2)
}

func TestOperatorEventBeforeFirstParticipantEventStillAttaches(t *testing.T) {
	log := []model.Event{
		operator("a@x.com", "welcome", t0),
		participant("a@x.com", "thanks", t1),
	}
	res := Reconcile(log, refTime)

	require.Len(t, res.Threads, 1)
	th := res.Threads[0]
	require.Len(t, th.Messages, 2)
	assert.Equal(t, "welcome", th.Messages[0].Text)
	assert.Equal(t, 1, th.UnreadCount)
}

func TestReadReceiptMovesOperatorTimeWithoutTranscriptEntry(t *testing.T) {
	receipt := operator("a@x.com", "", t1)
	receipt.Kind = model.KindReadReceipt
	log := []model.Event{participant("a@x.com", "hi", t0), receipt}

	res := Reconcile(log, refTime)

	require.Len(t, res.Threads, 1)
	th := res.Threads[0]
	assert.Len(t, th.Messages, 1)
	assert.Equal(t, 0, th.UnreadCount)
	require.NotNil(t, th.LastOperatorMessageTime)
	assert.True(t, th.LastOperatorMessageTime.Equal(t1))
}

func TestUnreadCountMatchesOperatorActivity(t *testing.T) {
	log := []model.Event{
		participant("a@x.com", "1", t0),
		participant("b@x.com", "2", t0.Add(time.Second)),
		operator("a@x.com", "r", t1),
		participant("a@x.com", "3", t2),
		participant("b@x.com", "4", t2),
		{Sender: "user", UserID: "c@x.com", Clock: "07:30"},
	}
	res := Reconcile(log, refTime)

	for _, th := range res.Threads {
		want := 0
		for _, m := range th.Messages {
			if m.Sender.Normalize() != model.SenderParticipant {
				continue
			}
			if th.LastOperatorMessageTime == nil || m.At.After(*th.LastOperatorMessageTime) {
				want++
			}
		}
		assert.Equal(t, want, th.UnreadCount, "thread %s", th.ParticipantKey)
	}
}

func TestThreadsSortedMostRecentFirst(t *testing.T) {
	log := []model.Event{
		participant("old@x.com", "old", t0),
		participant("new@x.com", "new", t2),
		participant("mid@x.com", "mid", t1),
	}
	res := Reconcile(log, refTime)

	require.Len(t, res.Threads, 3)
	assert.Equal(t, "new@x.com", res.Threads[0].ParticipantKey)
	assert.Equal(t, "mid@x.com", res.Threads[1].ParticipantKey)
	assert.Equal(t, "old@x.com", res.Threads[2].ParticipantKey)
}

func TestTranscriptToleranceBandKeepsLogOrder(t *testing.T) {
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	log := []model.Event{
		participant("a@x.com", "typed first", base.Add(400*time.Millisecond)),
		participant("a@x.com", "typed second", base.Add(100*time.Millisecond)),
		participant("a@x.com", "much earlier", base.Add(-10*time.Second)),
	}
	res := Reconcile(log, refTime)

	msgs := res.Threads[0].Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, "much earlier", msgs[0].Text)
	assert.Equal(t, "typed first", msgs[1].Text)
	assert.Equal(t, "typed second", msgs[2].Text)
}

func TestDisplayNameAndPreviewFallbacks(t *testing.T) {
	log := []model.Event{
		{Sender: "user", UserID: "u-1", AttachmentRef: "data:image/png;base64,AA", Timestamp: ts(t0)},
		{Sender: "user", UserEmail: "b@x.com", UserName: "Bita", Text: "  salam  ", Timestamp: ts(t0)},
	}
	res := Reconcile(log, refTime)

	u1, ok := FindThread(res.Threads, "u-1")
	require.True(t, ok)
	assert.Equal(t, "u-1", u1.DisplayName)
	assert.Equal(t, DefaultAttachmentPreview, u1.LastMessagePreview)
	assert.Empty(t, u1.Email)

	b, ok := FindThread(res.Threads, "b@x.com")
	require.True(t, ok)
	assert.Equal(t, "Bita", b.DisplayName)
	assert.Equal(t, "salam", b.LastMessagePreview)
	assert.Equal(t, "b@x.com", b.Email)
}

func TestMissingSenderIsSkipped(t *testing.T) {
	res := Reconcile([]model.Event{{UserEmail: "a@x.com", Text: "?"}}, refTime)
	assert.Empty(t, res.Threads)
	assert.Equal(t, 1, res.Skipped)
}

func TestFilterAndTotals(t *testing.T) {
	log := []model.Event{
		{Sender: "user", UserEmail: "a@x.com", UserName: "Ali", Text: "refund please", Timestamp: ts(t0)},
		participant("b@x.com", "shipping", t1),
		participant("b@x.com", "again", t2),
	}
	res := Reconcile(log, refTime)

	assert.Equal(t, 3, TotalUnread(res.Threads))
	assert.Len(t, FilterThreads(res.Threads, "ali"), 1)
	assert.Len(t, FilterThreads(res.Threads, "AGAIN"), 1)
	assert.Len(t, FilterThreads(res.Threads, ""), 2)
	assert.Empty(t, FilterThreads(res.Threads, "zzz"))
}
