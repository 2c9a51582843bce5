// Package projection builds local timelines from observed events.
// Handles ordering, deduplication, and soft-delete tombstones.
// Does not emit events or interact with UI directly.
package projection

import (
	"context"
	"log/slog"

	"chat-room/domain"
	"chat-room/domain/event"

	"github.com/google/uuid"
)

// Timeline holds the ordered, duplicate-free list of live messages for
// one view. It is owned by a single writer and is not safe for
// concurrent use; the owning view serializes all mutation.
//
// Invariants held after every operation:
//   - each live message id appears at most once
//   - messages are ordered by CreatedAt ascending, ties kept in
//     arrival order
//   - no soft-deleted message is present
type Timeline struct {
	log      *slog.Logger
	messages []domain.Message
	present  map[uuid.UUID]struct{}
}

func NewTimeline(log *slog.Logger) *Timeline {
	return &Timeline{
		log:     log,
		present: make(map[uuid.UUID]struct{}),
	}
}

// Load populates the timeline from a snapshot. Rows go through the same
// insert path as live events, so a snapshot delivered out of order or
// racing an already-applied insert event still yields a consistent list.
func (t *Timeline) Load(messages []domain.Message) {
	for _, m := range messages {
		t.insert(m)
	}
}

// Consume folds one change notification into the timeline. A malformed
// or invalid payload is logged and dropped, leaving prior state
// untouched; it never propagates past this boundary.
func (t *Timeline) Consume(_ context.Context, e event.ChangeEvent) error {
	switch e.Kind {
	case event.KindInsert:
		m, ok := t.normalized(e)
		if !ok {
			return nil
		}
		// A message cannot usefully arrive already deleted.
		if m.Deleted() {
			return nil
		}
		t.insert(m)
	case event.KindUpdate:
		m, ok := t.normalized(e)
		if !ok {
			return nil
		}
		if m.Deleted() {
			t.remove(m.ID)
			return nil
		}
		t.upsert(m)
	case event.KindDelete:
		id, err := uuid.Parse(e.OldID)
		if err != nil {
			t.log.Warn("Dropping delete event with invalid id", "old_id", e.OldID, "error", err)
			return nil
		}
		t.remove(id)
	default:
		t.log.Warn("Dropping event of unknown kind", "kind", e.Kind)
	}
	return nil
}

// Messages returns a copy of the rendered list.
func (t *Timeline) Messages() []domain.Message {
	out := make([]domain.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

func (t *Timeline) Len() int {
	return len(t.messages)
}

func (t *Timeline) normalized(e event.ChangeEvent) (domain.Message, bool) {
	if e.Record == nil {
		t.log.Warn("Dropping event without record", "kind", e.Kind)
		return domain.Message{}, false
	}
	m, err := domain.Normalize(*e.Record)
	if err != nil {
		t.log.Warn("Dropping invalid record", "kind", e.Kind, "error", err)
		return domain.Message{}, false
	}
	return m, true
}

// insert appends the message at its CreatedAt position. A duplicate id
// is a no-op: a late snapshot racing an insert event must not produce
// two entries.
func (t *Timeline) insert(m domain.Message) {
	if _, ok := t.present[m.ID]; ok {
		return
	}

	// Walk back from the tail: most events arrive roughly in order, and
	// stopping at the first CreatedAt <= m.CreatedAt keeps ties stable.
	pos := len(t.messages)
	for pos > 0 && t.messages[pos-1].CreatedAt.After(m.CreatedAt) {
		pos--
	}

	t.messages = append(t.messages, domain.Message{})
	copy(t.messages[pos+1:], t.messages[pos:])
	t.messages[pos] = m
	t.present[m.ID] = struct{}{}
}

// upsert replaces the entry with a matching id in place, or inserts the
// message when absent so that a missed insert event is tolerated.
func (t *Timeline) upsert(m domain.Message) {
	if _, ok := t.present[m.ID]; !ok {
		t.insert(m)
		return
	}
	for i := range t.messages {
		if t.messages[i].ID == m.ID {
			t.messages[i] = m
			return
		}
	}
}

func (t *Timeline) remove(id uuid.UUID) {
	if _, ok := t.present[id]; !ok {
		return
	}
	delete(t.present, id)
	for i := range t.messages {
		if t.messages[i].ID == id {
			t.messages = append(t.messages[:i], t.messages[i+1:]...)
			return
		}
	}
}
