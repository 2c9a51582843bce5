package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"chat-room/contract"
	"chat-room/domain"
	"chat-room/domain/event"
	errs "chat-room/errors"
	"chat-room/projection"
)

type viewState int

const (
	stateUninitialized viewState = iota
	stateLoading
	stateLive
	stateClosed
)

// ChatView owns the rendered message list of one room view. It merges a
// one-shot snapshot with the live event stream and exposes the composer
// action. Collaborators are injected at construction so a fake backend
// and channel can drive it in tests.
//
// Lifecycle: Start establishes the subscription and loads the snapshot
// exactly once; Stop tears the subscription down exactly once. There is
// no implicit re-subscription. The subscription is opened before the
// snapshot fetch, and events arriving while the snapshot is loading are
// buffered and replayed once it settles, so the load/subscribe race
// cannot lose an event; the timeline's id dedup makes the replay safe.
type ChatView struct {
	log     *slog.Logger
	backend contract.Backend
	channel contract.LiveChannel

	mu         sync.Mutex
	state      viewState
	timeline   *projection.Timeline
	buffer     []event.ChangeEvent
	sub        contract.Subscription
	unsubOnce  sync.Once
	submitting bool
	submitErr  error
	loadErr    error

	initial    []domain.Message
	hasInitial bool
}

type ViewOption func(*ChatView)

// WithInitialMessages supplies a pre-fetched snapshot, e.g. from a
// server-rendered pass. The loader step is then skipped entirely; it is
// not a fallback on fetch failure.
func WithInitialMessages(messages []domain.Message) ViewOption {
	return func(v *ChatView) {
		v.initial = messages
		v.hasInitial = true
	}
}

func NewChatView(log *slog.Logger, backend contract.Backend, channel contract.LiveChannel, opts ...ViewOption) *ChatView {
	v := &ChatView{
		log:      log,
		backend:  backend,
		channel:  channel,
		timeline: projection.NewTimeline(log),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Start subscribes to the live channel, then loads the snapshot. A
// snapshot failure degrades to an empty list: the user sees "no
// messages" instead of a hard failure, and the cause stays available
// via LoadError. Start may be called once.
func (v *ChatView) Start(ctx context.Context) error {
	v.mu.Lock()
	if v.state != stateUninitialized {
		v.mu.Unlock()
		return fmt.Errorf("view already started")
	}
	v.state = stateLoading
	v.mu.Unlock()

	// Subscribe first: events published during the snapshot fetch land
	// in the Loading buffer instead of being missed.
	sub, err := v.channel.Subscribe(v)
	if err != nil {
		v.mu.Lock()
		v.state = stateClosed
		v.mu.Unlock()
		return fmt.Errorf("live channel subscription failed: %w", err)
	}
	v.mu.Lock()
	if v.state == stateClosed {
		// Stop raced the subscription: release it and bail out.
		v.mu.Unlock()
		v.unsubOnce.Do(sub.Unsubscribe)
		return nil
	}
	v.sub = sub
	v.mu.Unlock()

	snapshot, loadErr := v.loadSnapshot(ctx)

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state == stateClosed {
		// Torn down while the fetch was in flight: discard the result.
		return nil
	}

	v.loadErr = loadErr
	v.timeline.Load(snapshot)
	v.state = stateLive

	for _, e := range v.buffer {
		_ = v.timeline.Consume(ctx, e)
	}
	v.buffer = nil
	return nil
}

func (v *ChatView) loadSnapshot(ctx context.Context) ([]domain.Message, error) {
	if v.hasInitial {
		return v.initial, nil
	}

	rows, err := v.backend.FetchLiveMessages(ctx)
	if err != nil {
		var fe *errs.FetchError
		if !errors.As(err, &fe) {
			fe = &errs.FetchError{Message: err.Error(), Err: err}
		}
		v.log.Error("Snapshot load failed, starting with an empty room",
			"code", fe.Code, "error", fe.Message)
		return nil, fe
	}

	// A single malformed row must not block the rest of the history.
	messages := make([]domain.Message, 0, len(rows))
	for _, raw := range rows {
		m, err := domain.Normalize(raw)
		if err != nil {
			v.log.Warn("Dropping invalid snapshot row", "error", err)
			continue
		}
		messages = append(messages, m)
	}
	return messages, nil
}

// Consume receives one live change notification. Events are serialized
// under the view mutex: two events are never folded concurrently even
// if the transport delivers them from different goroutines.
func (v *ChatView) Consume(ctx context.Context, e event.ChangeEvent) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch v.state {
	case stateClosed:
		return nil
	case stateLive:
		return v.timeline.Consume(ctx, e)
	default:
		v.buffer = append(v.buffer, e)
		return nil
	}
}

// Submit validates and writes one message. The new row is never
// appended here: the sender sees their own message only once the insert
// event comes back through the live channel. At most one write is in
// flight per view; a second call while one is pending is rejected.
func (v *ChatView) Submit(ctx context.Context, text string) error {
	cmd := domain.PostMessageCommand{Body: text}
	if err := cmd.Validate(); err != nil {
		return err
	}

	v.mu.Lock()
	if v.state == stateClosed {
		v.mu.Unlock()
		return errs.ErrViewClosed
	}
	if v.submitting {
		v.mu.Unlock()
		return errs.ErrSubmitInFlight
	}
	v.submitting = true
	v.submitErr = nil
	v.mu.Unlock()

	_, err := v.backend.InsertMessage(ctx, cmd.Trimmed())

	v.mu.Lock()
	defer v.mu.Unlock()
	v.submitting = false
	if v.state == stateClosed {
		// Resolved after teardown: report to the caller, touch nothing.
		return err
	}
	if err != nil {
		var se *errs.SubmitError
		if !errors.As(err, &se) {
			se = &errs.SubmitError{Message: err.Error(), Err: err}
		}
		v.submitErr = se
		return se
	}
	return nil
}

// Stop closes the view and releases the live channel exactly once.
// Safe to call before Start, after Start, or repeatedly.
func (v *ChatView) Stop() {
	v.mu.Lock()
	alreadyClosed := v.state == stateClosed
	v.state = stateClosed
	v.buffer = nil
	sub := v.sub
	v.mu.Unlock()

	if alreadyClosed || sub == nil {
		return
	}
	v.unsubOnce.Do(sub.Unsubscribe)
}

// Messages returns the rendered list: each live message at most once,
// ordered by creation time.
func (v *ChatView) Messages() []domain.Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.timeline.Messages()
}

func (v *ChatView) Submitting() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.submitting
}

// SubmitError returns the error of the last failed submit, or nil after
// a success. This is the inline notice shown next to the composer.
func (v *ChatView) SubmitError() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.submitErr
}

// LoadError reports why the snapshot degraded to an empty list, if it did.
func (v *ChatView) LoadError() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loadErr
}
