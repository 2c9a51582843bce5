package domain

import (
	"testing"
	"time"

	errs "chat-room/errors"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func validRaw() RawMessage {
	return RawMessage{
		ID:        uuid.NewString(),
		Body:      "hello room",
		CreatedAt: "2026-08-29T10:15:00.000Z",
		UpdatedAt: "2026-08-29T10:15:00.000Z",
	}
}

func TestNormalize_Success(t *testing.T) {
	req := require.New(t)
	raw := validRaw()

	m, err := Normalize(raw)
	req.NoError(err)
	req.Equal(raw.ID, m.ID.String())
	req.Equal("hello room", m.Body)
	req.Equal(time.Date(2026, 8, 29, 10, 15, 0, 0, time.UTC), m.CreatedAt)
	req.False(m.Deleted())
}

func TestNormalize_DeletedAt(t *testing.T) {
	req := require.New(t)
	raw := validRaw()
	raw.DeletedAt = lo.ToPtr("2026-08-29T10:16:00.000Z")

	m, err := Normalize(raw)
	req.NoError(err)
	req.True(m.Deleted())
	req.Equal(time.Date(2026, 8, 29, 10, 16, 0, 0, time.UTC), *m.DeletedAt)
}

func TestNormalize_OffsetTimestampIsConvertedToUTC(t *testing.T) {
	req := require.New(t)
	raw := validRaw()
	raw.CreatedAt = "2026-08-29T12:15:00+02:00"

	m, err := Normalize(raw)
	req.NoError(err)
	req.Equal(time.Date(2026, 8, 29, 10, 15, 0, 0, time.UTC), m.CreatedAt)
}

func TestNormalize_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RawMessage)
	}{
		{"id is not a uuid", func(r *RawMessage) { r.ID = "not-a-uuid" }},
		{"missing id", func(r *RawMessage) { r.ID = "" }},
		{"empty body", func(r *RawMessage) { r.Body = "" }},
		{"unparseable created_at", func(r *RawMessage) { r.CreatedAt = "yesterday" }},
		{"unparseable updated_at", func(r *RawMessage) { r.UpdatedAt = "2026-13-45" }},
		{"unparseable deleted_at", func(r *RawMessage) { r.DeletedAt = lo.ToPtr("soon") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			raw := validRaw()
			tt.mutate(&raw)

			_, err := Normalize(raw)
			req.ErrorIs(err, errs.ErrInvalidRecord)
		})
	}
}

func TestToRaw_KeepsTombstone(t *testing.T) {
	req := require.New(t)
	now := time.Date(2026, 8, 29, 10, 15, 0, 0, time.UTC)
	m := Message{
		ID:        uuid.New(),
		Body:      "bye",
		CreatedAt: now,
		UpdatedAt: now,
		DeletedAt: lo.ToPtr(now.Add(time.Minute)),
	}

	raw := ToRaw(m)
	req.NotNil(raw.DeletedAt)

	back, err := Normalize(raw)
	req.NoError(err)
	req.Equal(m.ID, back.ID)
	req.True(back.Deleted())
}

func TestPostMessageCommand_Validate(t *testing.T) {
	req := require.New(t)

	req.NoError(PostMessageCommand{Body: "hi"}.Validate())
	req.ErrorIs(PostMessageCommand{Body: ""}.Validate(), errs.ErrEmptyBody)
	req.ErrorIs(PostMessageCommand{Body: "   \t\n"}.Validate(), errs.ErrEmptyBody)
}

func TestPostMessageCommand_Trimmed(t *testing.T) {
	req := require.New(t)
	req.Equal("hi there", PostMessageCommand{Body: "  hi there \n"}.Trimmed())
}
