// Package event defines the change notifications delivered by the live
// channel for the message collection.
package event

import "chat-room/domain"

type Kind string

const (
	KindInsert Kind = "insert"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// ChangeEvent is one change notification. Insert and update events carry
// the new record; delete events carry only the identifier of the old row.
// Delivery is at-least-once and in backend order; consumers are expected
// to deduplicate by id.
type ChangeEvent struct {
	Kind   Kind               `json:"kind"`
	Record *domain.RawMessage `json:"record,omitempty"`
	OldID  string             `json:"old_id,omitempty"`
}

func Inserted(m domain.Message) ChangeEvent {
	raw := domain.ToRaw(m)
	return ChangeEvent{Kind: KindInsert, Record: &raw}
}

func Updated(m domain.Message) ChangeEvent {
	raw := domain.ToRaw(m)
	return ChangeEvent{Kind: KindUpdate, Record: &raw}
}

func Deleted(id string) ChangeEvent {
	return ChangeEvent{Kind: KindDelete, OldID: id}
}
