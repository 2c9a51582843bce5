// Package domain contains core concepts of the chat room.
// This file defines the Message entity and its normalization rules.
// Messages are immutable once normalized and validated by the domain.
package domain

import (
	"fmt"
	"strings"
	"time"

	errs "chat-room/errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// Message represents a chat message as rendered by a view.
// A non-nil DeletedAt marks the message as soft deleted; such a
// message never appears in a timeline.
type Message struct {
	ID        uuid.UUID // unique identifier, assigned by the backend
	Body      string
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

func (m Message) Deleted() bool {
	return m.DeletedAt != nil
}

// RawMessage is the wire representation of a message. Every field is a
// string so that a malformed row can cross the boundary and be rejected
// in one place instead of blowing up a decoder.
type RawMessage struct {
	ID        string  `json:"id" validate:"required"`
	Body      string  `json:"body" validate:"required"`
	CreatedAt string  `json:"created_at" validate:"required"`
	UpdatedAt string  `json:"updated_at" validate:"required"`
	DeletedAt *string `json:"deleted_at"`
}

// Normalize is the single choke point all ingestion paths go through:
// snapshot rows, insert payloads and update payloads. It rejects records
// whose id is not a UUID, whose body is empty, or whose timestamps are
// not parseable instants. It is pure: a failure leaves no state behind.
func Normalize(raw RawMessage) (Message, error) {
	if err := validate.Struct(raw); err != nil {
		return Message{}, fmt.Errorf("%w: %v", errs.ErrInvalidRecord, err)
	}

	id, err := uuid.Parse(raw.ID)
	if err != nil {
		return Message{}, fmt.Errorf("%w: id %q: %v", errs.ErrInvalidRecord, raw.ID, err)
	}

	createdAt, err := parseInstant(raw.CreatedAt)
	if err != nil {
		return Message{}, fmt.Errorf("%w: created_at: %v", errs.ErrInvalidRecord, err)
	}
	updatedAt, err := parseInstant(raw.UpdatedAt)
	if err != nil {
		return Message{}, fmt.Errorf("%w: updated_at: %v", errs.ErrInvalidRecord, err)
	}

	var deletedAt *time.Time
	if raw.DeletedAt != nil {
		t, err := parseInstant(*raw.DeletedAt)
		if err != nil {
			return Message{}, fmt.Errorf("%w: deleted_at: %v", errs.ErrInvalidRecord, err)
		}
		deletedAt = &t
	}

	return Message{
		ID:        id,
		Body:      raw.Body,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
		DeletedAt: deletedAt,
	}, nil
}

// ToRaw serializes a message back to its wire shape.
// Timestamps cross the boundary as ISO-8601 strings.
func ToRaw(m Message) RawMessage {
	raw := RawMessage{
		ID:        m.ID.String(),
		Body:      m.Body,
		CreatedAt: formatInstant(m.CreatedAt),
		UpdatedAt: formatInstant(m.UpdatedAt),
	}
	if m.DeletedAt != nil {
		s := formatInstant(*m.DeletedAt)
		raw.DeletedAt = &s
	}
	return raw
}

func parseInstant(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func formatInstant(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// PostMessageCommand carries a write request from a composer.
// The body must be non-empty after trimming surrounding whitespace.
type PostMessageCommand struct {
	Body string
}

// Validate rejects a blank body locally, before any backend round-trip.
func (c PostMessageCommand) Validate() error {
	if strings.TrimSpace(c.Body) == "" {
		return errs.ErrEmptyBody
	}
	return nil
}

// Trimmed returns the body with surrounding whitespace removed,
// which is the form actually written to the backend.
func (c PostMessageCommand) Trimmed() string {
	return strings.TrimSpace(c.Body)
}
