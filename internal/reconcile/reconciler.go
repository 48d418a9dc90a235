package reconcile

import (
	"sort"
	"strings"
	"time"

	"github.com/capitalize-ai/support-desk/internal/model"
)

const (
	// DefaultSortTolerance is the band within which transcript order
	// falls back to log order.
	DefaultSortTolerance = time.Second

	// DefaultAttachmentPreview stands in for messages that only carry an
	// attachment.
	DefaultAttachmentPreview = "📷 Image"
)

// Options tunes a Reconciler.
type Options struct {
	SyntheticStep     time.Duration
	SortTolerance     time.Duration
	AttachmentPreview string
	// ClockLocation is the zone of legacy "HH:MM" clocks. Nil means the
	// zone of the reconcile instant.
	ClockLocation *time.Location
}

// DefaultOptions returns the options used by Reconcile.
func DefaultOptions() Options {
	return Options{
		SyntheticStep:     DefaultSyntheticStep,
		SortTolerance:     DefaultSortTolerance,
		AttachmentPreview: DefaultAttachmentPreview,
	}
}

// Result is the outcome of one reconciliation pass.
type Result struct {
	Threads []model.Thread
	// Dropped counts participant events without a valid key.
	Dropped int
	// Skipped counts events with a missing or unknown sender.
	Skipped int
}

// Reconciler derives threads from a log snapshot. It holds no state
// between passes.
type Reconciler struct {
	opts       Options
	normalizer Normalizer
}

// New creates a reconciler. Zero fields in opts take their defaults.
func New(opts Options) *Reconciler {
	def := DefaultOptions()
	if opts.SyntheticStep <= 0 {
		opts.SyntheticStep = def.SyntheticStep
	}
	if opts.SortTolerance <= 0 {
		opts.SortTolerance = def.SortTolerance
	}
	if opts.AttachmentPreview == "" {
		opts.AttachmentPreview = def.AttachmentPreview
	}
	return &Reconciler{
		opts:       opts,
		normalizer: Normalizer{Step: opts.SyntheticStep, ClockLocation: opts.ClockLocation},
	}
}

var defaultReconciler = New(DefaultOptions())

// Reconcile runs a pass with the default options.
func Reconcile(log []model.Event, asOf time.Time) *Result {
	return defaultReconciler.Reconcile(log, asOf)
}

type threadBuilder struct {
	thread model.Thread
	named  bool
}

// Reconcile groups the log into threads. asOf anchors every derived
// timestamp, so the same (log, asOf) pair always yields the same result.
func (r *Reconciler) Reconcile(log []model.Event, asOf time.Time) *Result {
	res := &Result{}
	builders := make(map[string]*threadBuilder)
	var order []string

	total := len(log)
	type pending struct {
		event    model.Event
		position int
	}
	var operatorEvents []pending

	for i, e := range log {
		switch e.Sender.Normalize() {
		case model.SenderParticipant:
			if e.EffectiveKind() != model.KindMessage {
				continue
			}
			key, _, ok := ResolveParticipantKey(e)
			if !ok {
				res.Dropped++
				continue
			}
			b, exists := builders[key]
			if !exists {
				b = &threadBuilder{thread: model.Thread{ParticipantKey: key}}
				builders[key] = b
				order = append(order, key)
			}
			if !b.named && strings.TrimSpace(e.UserName) != "" {
				b.thread.DisplayName = strings.TrimSpace(e.UserName)
				b.named = true
			}
			if b.thread.Email == "" && IsValidKey(e.UserEmail) {
				b.thread.Email = e.UserEmail
			}
			r.appendMessage(&b.thread, e, i, total, asOf)

		case model.SenderOperator:
			if e.TargetKey == "" {
				continue
			}
			operatorEvents = append(operatorEvents, pending{event: e, position: i})

		default:
			res.Skipped++
		}
	}

	for _, p := range operatorEvents {
		b, ok := builders[p.event.TargetKey]
		if !ok {
			continue
		}
		at, _ := r.normalizer.Normalize(p.event, p.position, total, asOf)
		if last := b.thread.LastOperatorMessageTime; last == nil || at.After(*last) {
			v := at
			b.thread.LastOperatorMessageTime = &v
		}
		if p.event.EffectiveKind() == model.KindMessage {
			r.appendMessage(&b.thread, p.event, p.position, total, asOf)
		}
	}

	res.Threads = make([]model.Thread, 0, len(order))
	for _, key := range order {
		th := builders[key].thread
		if th.DisplayName == "" {
			th.DisplayName = th.Email
		}
		if th.DisplayName == "" {
			th.DisplayName = th.ParticipantKey
		}
		if th.Email == "" && isKeyLike(th.ParticipantKey) {
			th.Email = th.ParticipantKey
		}
		th.UnreadCount = CountUnread(th.Messages, th.LastOperatorMessageTime)
		r.sortMessages(th.Messages)
		res.Threads = append(res.Threads, th)
	}

	SortThreads(res.Threads)
	return res
}

func (r *Reconciler) appendMessage(th *model.Thread, e model.Event, position, total int, asOf time.Time) {
	at, synthetic := r.normalizer.Normalize(e, position, total, asOf)
	th.Messages = append(th.Messages, model.Message{
		Event:     e,
		At:        at,
		Position:  position,
		Synthetic: synthetic,
	})
	if len(th.Messages) == 1 || at.After(th.LastMessageTime) {
		th.LastMessageTime = at
		th.LastMessagePreview = r.Preview(e)
	}
}

// Preview is the one-line summary of an event shown in thread lists.
func (r *Reconciler) Preview(e model.Event) string {
	if text := strings.TrimSpace(e.Text); text != "" {
		return text
	}
	if e.HasAttachment() {
		return r.opts.AttachmentPreview
	}
	return ""
}

// sortMessages orders a transcript ascending by time. Instants inside the
// same tolerance band keep log order.
func (r *Reconciler) sortMessages(msgs []model.Message) {
	tol := r.opts.SortTolerance
	sort.SliceStable(msgs, func(i, j int) bool {
		bi, bj := msgs[i].At.Truncate(tol), msgs[j].At.Truncate(tol)
		if !bi.Equal(bj) {
			return bi.Before(bj)
		}
		return msgs[i].Position < msgs[j].Position
	})
}

// CountUnread counts participant messages newer than the last operator
// activity. Every participant message is unread when lastOperator is nil.
func CountUnread(msgs []model.Message, lastOperator *time.Time) int {
	n := 0
	for _, m := range msgs {
		if m.Sender.Normalize() != model.SenderParticipant {
			continue
		}
		if lastOperator == nil || m.At.After(*lastOperator) {
			n++
		}
	}
	return n
}

// SortThreads orders threads most recently active first.
func SortThreads(threads []model.Thread) {
	sort.SliceStable(threads, func(i, j int) bool {
		ti, tj := threads[i].LastMessageTime, threads[j].LastMessageTime
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return threads[i].ParticipantKey < threads[j].ParticipantKey
	})
}
