package runtime

import (
	"context"
	"log/slog"

	"chat-room/contract"
	"chat-room/domain"
	"chat-room/domain/event"
	"chat-room/moderation"
	"chat-room/observability"
	"chat-room/repositories"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// LocalBackend binds the message repository, the moderation step, the
// search index and the broker into one contract.Backend. Every write
// persists first and publishes its change event second: a view can
// observe an event for a row the snapshot already contains (handled by
// reconciliation), but never an event for a row that was not stored.
type LocalBackend struct {
	log       *slog.Logger
	repo      repositories.IMessageRepository
	index     repositories.ISearchIndex
	moderator *moderation.Moderator
	broker    *Broker
	stats     *observability.Stats
}

func NewLocalBackend(log *slog.Logger, repo repositories.IMessageRepository,
	index repositories.ISearchIndex, moderator *moderation.Moderator,
	broker *Broker, stats *observability.Stats) *LocalBackend {
	return &LocalBackend{
		log:       log,
		repo:      repo,
		index:     index,
		moderator: moderator,
		broker:    broker,
		stats:     stats,
	}
}

var _ contract.Backend = (*LocalBackend)(nil)

// FetchLiveMessages returns the snapshot rows: non-deleted messages in
// creation order.
func (b *LocalBackend) FetchLiveMessages(_ context.Context) ([]domain.RawMessage, error) {
	messages, err := b.repo.GetLive()
	if err != nil {
		return nil, err
	}
	return lo.Map(messages, func(m domain.Message, _ int) domain.RawMessage {
		return domain.ToRaw(m)
	}), nil
}

// InsertMessage moderates, persists and publishes one message.
func (b *LocalBackend) InsertMessage(_ context.Context, body string) (domain.RawMessage, error) {
	stored := body
	if b.moderator != nil {
		censored, found := b.moderator.Censor(body)
		if len(found) > 0 {
			lang := moderation.DetectLanguage(body)
			b.stats.CensoredBodies.Add(1)
			b.stats.RecordLanguage(lang)
			b.log.Info("Censored message body", "words", len(found), "lang", lang)
			stored = censored
		}
	}

	message, err := b.repo.Insert(stored)
	if err != nil {
		return domain.RawMessage{}, err
	}
	b.stats.MessagesStored.Add(1)

	if b.index != nil {
		if err := b.index.Index(message); err != nil {
			b.log.Warn("Failed to index message", "id", message.ID, "error", err)
		}
	}

	b.broker.Publish(event.Inserted(message))
	return domain.ToRaw(message), nil
}

// SoftDeleteMessage marks the row deleted and publishes the transition
// as an update event carrying the non-null deleted_at, which is what
// removes the message from every live view.
func (b *LocalBackend) SoftDeleteMessage(_ context.Context, id uuid.UUID) error {
	message, err := b.repo.SoftDelete(id)
	if err != nil {
		return err
	}
	if b.index != nil {
		if err := b.index.Deindex(id); err != nil {
			b.log.Warn("Failed to deindex message", "id", id, "error", err)
		}
	}
	b.broker.Publish(event.Updated(message))
	return nil
}

// PurgeMessage physically removes the row and publishes a delete event,
// which carries only the identifier.
func (b *LocalBackend) PurgeMessage(_ context.Context, id uuid.UUID) error {
	if err := b.repo.Purge(id); err != nil {
		return err
	}
	if b.index != nil {
		if err := b.index.Deindex(id); err != nil {
			b.log.Warn("Failed to deindex message", "id", id, "error", err)
		}
	}
	b.broker.Publish(event.Deleted(id.String()))
	return nil
}
