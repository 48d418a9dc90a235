// Package session holds the operator's view of the support log as an
// explicit value. Every function returns a new Session and leaves its
// input untouched.
package session

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/capitalize-ai/support-desk/internal/model"
	"github.com/capitalize-ai/support-desk/internal/reconcile"
)

var (
	// ErrThreadNotFound is returned when no thread has the requested key.
	ErrThreadNotFound = errors.New("thread not found")
	// ErrNoSelection is returned when a reply is attempted with no thread selected.
	ErrNoSelection = errors.New("no thread selected")
	// ErrEmptyMessage is returned for blank operator replies.
	ErrEmptyMessage = errors.New("message text is empty")
)

// Session is the log snapshot plus everything derived from it.
type Session struct {
	Log     []model.Event
	AsOf    time.Time
	Threads []model.Thread
	Dropped int

	// SelectedKey survives reconciliation; read stamps do not.
	SelectedKey string
}

// Engine binds session operations to a reconciler.
type Engine struct {
	reconciler *reconcile.Reconciler
}

// NewEngine creates an engine. A nil reconciler uses the defaults.
func NewEngine(r *reconcile.Reconciler) *Engine {
	if r == nil {
		r = reconcile.New(reconcile.DefaultOptions())
	}
	return &Engine{reconciler: r}
}

// New builds a reconciled session from a log snapshot taken at asOf.
func (e *Engine) New(log []model.Event, asOf time.Time) Session {
	return e.Reconcile(Session{}, log, asOf)
}

// Reconcile recomputes every thread from log. The selection is kept but
// any local read stamp applied by SelectThread is discarded.
func (e *Engine) Reconcile(s Session, log []model.Event, asOf time.Time) Session {
	res := e.reconciler.Reconcile(log, asOf)

	next := Session{
		Log:         log,
		AsOf:        asOf,
		Threads:     res.Threads,
		Dropped:     res.Dropped,
		SelectedKey: s.SelectedKey,
	}
	if th, ok := reconcile.FindThread(next.Threads, next.SelectedKey); ok {
		th.Selected = true
	}
	return next
}

// SelectThread marks the thread with key as selected and read. The read
// stamp is local to the returned session and is not written to the log.
func (e *Engine) SelectThread(s Session, key string, now time.Time) (Session, *model.Thread, error) {
	if _, ok := reconcile.FindThread(s.Threads, key); !ok {
		return s, nil, ErrThreadNotFound
	}

	next := s
	next.SelectedKey = key
	next.Threads = make([]model.Thread, len(s.Threads))
	for i := range s.Threads {
		next.Threads[i] = s.Threads[i].Clone()
		next.Threads[i].Selected = false
	}

	th, _ := reconcile.FindThread(next.Threads, key)
	stamp := now
	th.UnreadCount = 0
	th.LastOperatorMessageTime = &stamp
	th.Selected = true
	return next, th, nil
}

// Selected returns the currently selected thread.
func (s Session) Selected() (*model.Thread, bool) {
	if s.SelectedKey == "" {
		return nil, false
	}
	return reconcile.FindThread(s.Threads, s.SelectedKey)
}

// NewOperatorMessage builds a reply addressed to the selected thread.
// The target is the thread's resolved key, never a raw caller value.
func (s Session) NewOperatorMessage(text string, now time.Time) (model.Event, error) {
	th, ok := s.Selected()
	if !ok {
		return model.Event{}, ErrNoSelection
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Event{}, ErrEmptyMessage
	}
	return model.Event{
		ID:        newEventID(),
		Sender:    model.SenderOperator,
		Kind:      model.KindMessage,
		TargetKey: th.ParticipantKey,
		Text:      text,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}, nil
}

// AppendOperatorMessage appends a reply to the selected thread and
// reconciles the new log in full.
func (e *Engine) AppendOperatorMessage(s Session, text string, now time.Time) (Session, model.Event, error) {
	ev, err := s.NewOperatorMessage(text, now)
	if err != nil {
		return s, model.Event{}, err
	}
	log := make([]model.Event, 0, len(s.Log)+1)
	log = append(log, s.Log...)
	log = append(log, ev)
	return e.Reconcile(s, log, now), ev, nil
}

// ReadReceipt builds the persisted form of a read stamp for key.
func ReadReceipt(key string, now time.Time) model.Event {
	return model.Event{
		ID:        newEventID(),
		Sender:    model.SenderOperator,
		Kind:      model.KindReadReceipt,
		TargetKey: key,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}

func newEventID() model.EventID {
	return model.EventID(uuid.Must(uuid.NewV7()).String())
}
