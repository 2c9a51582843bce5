package runtime_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"chat-room/domain"
	"chat-room/domain/event"
	errs "chat-room/errors"
	"chat-room/mocks"
	"chat-room/moderation"
	"chat-room/observability"
	"chat-room/runtime"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type backendFixture struct {
	repo    *mocks.MockIMessageRepository
	broker  *runtime.Broker
	stats   *observability.Stats
	backend *runtime.LocalBackend
}

func newBackendFixture(t *testing.T) backendFixture {
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	moderator, err := moderation.NewModerator([]string{"badger"}, '*')
	require.NoError(t, err)

	f := backendFixture{
		repo:  mocks.NewMockIMessageRepository(ctrl),
		stats: observability.NewStats(),
	}
	f.broker = runtime.NewBroker(log, 16, f.stats)
	f.backend = runtime.NewLocalBackend(log, f.repo, nil, &moderator, f.broker, f.stats)
	return f
}

// drain attaches a collecting sink and runs the fanout until count events arrived.
func drain(t *testing.T, broker *runtime.Broker, count int) func() []event.ChangeEvent {
	t.Helper()
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockEventSink(ctrl)

	done := make(chan struct{})
	var events []event.ChangeEvent
	sink.EXPECT().Consume(gomock.Any(), gomock.Any()).Do(
		func(_ context.Context, evt event.ChangeEvent) {
			events = append(events, evt)
			if len(events) == count {
				close(done)
			}
		}).Return(nil).Times(count)

	_, err := broker.Subscribe(sink)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		_ = broker.FanoutWorker(time.Second).Run(ctx)
	}()

	return func() []event.ChangeEvent {
		select {
		case <-done:
		case <-time.After(time.Second):
			require.Fail(t, "events did not arrive in time")
		}
		return events
	}
}

func TestLocalBackend_InsertMessagePersistsAndPublishes(t *testing.T) {
	req := require.New(t)
	f := newBackendFixture(t)
	collected := drain(t, f.broker, 1)

	stored := liveMessage("hello room")
	f.repo.EXPECT().Insert("hello room").Return(stored, nil)

	row, err := f.backend.InsertMessage(context.Background(), "hello room")
	req.NoError(err)
	req.Equal(stored.ID.String(), row.ID)

	events := collected()
	req.Equal(event.KindInsert, events[0].Kind)
	req.Equal(stored.ID.String(), events[0].Record.ID)
	req.Equal(uint64(1), f.stats.MessagesStored.Load())
}

func TestLocalBackend_InsertMessageCensorsBeforeStoring(t *testing.T) {
	req := require.New(t)
	f := newBackendFixture(t)
	collected := drain(t, f.broker, 1)

	// The repository must only ever see the masked body
	stored := liveMessage("that ****** again")
	f.repo.EXPECT().Insert("that ****** again").Return(stored, nil)

	_, err := f.backend.InsertMessage(context.Background(), "that badger again")
	req.NoError(err)

	req.Equal("that ****** again", collected()[0].Record.Body)
	req.Equal(uint64(1), f.stats.CensoredBodies.Load())
}

func TestLocalBackend_InsertMessageRepositoryFailure(t *testing.T) {
	req := require.New(t)
	f := newBackendFixture(t)

	f.repo.EXPECT().Insert(gomock.Any()).Return(domain.Message{}, errs.ErrUnknownMessage)

	_, err := f.backend.InsertMessage(context.Background(), "doomed")
	req.Error(err)
	// Nothing stored, nothing published
	req.Equal(uint64(0), f.stats.MessagesStored.Load())
	req.Equal(uint64(0), f.stats.EventsPublished.Load())
}

func TestLocalBackend_SoftDeletePublishesTombstoneUpdate(t *testing.T) {
	req := require.New(t)
	f := newBackendFixture(t)
	collected := drain(t, f.broker, 1)

	m := liveMessage("bye")
	deleted := m
	deleted.DeletedAt = lo.ToPtr(time.Now().UTC())
	f.repo.EXPECT().SoftDelete(m.ID).Return(deleted, nil)

	req.NoError(f.backend.SoftDeleteMessage(context.Background(), m.ID))

	events := collected()
	req.Equal(event.KindUpdate, events[0].Kind)
	req.NotNil(events[0].Record.DeletedAt)
}

func TestLocalBackend_PurgePublishesDeleteEvent(t *testing.T) {
	req := require.New(t)
	f := newBackendFixture(t)
	collected := drain(t, f.broker, 1)

	id := uuid.New()
	f.repo.EXPECT().Purge(id).Return(nil)

	req.NoError(f.backend.PurgeMessage(context.Background(), id))

	events := collected()
	req.Equal(event.KindDelete, events[0].Kind)
	req.Equal(id.String(), events[0].OldID)
	req.Nil(events[0].Record)
}

func TestLocalBackend_FetchLiveMessages(t *testing.T) {
	req := require.New(t)
	f := newBackendFixture(t)

	first := liveMessage("first")
	second := liveMessage("second")
	f.repo.EXPECT().GetLive().Return([]domain.Message{first, second}, nil)

	rows, err := f.backend.FetchLiveMessages(context.Background())
	req.NoError(err)
	req.Len(rows, 2)
	req.Equal(first.ID.String(), rows[0].ID)
	req.Equal("second", rows[1].Body)
}
