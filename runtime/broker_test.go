package runtime_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"chat-room/domain"
	"chat-room/domain/event"
	"chat-room/mocks"
	"chat-room/observability"
	"chat-room/runtime"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func liveMessage(body string) domain.Message {
	now := time.Now().UTC()
	return domain.Message{ID: uuid.New(), Body: body, CreatedAt: now, UpdatedAt: now}
}

func TestBroker_FanoutDeliversInPublishOrder(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	stats := observability.NewStats()
	broker := runtime.NewBroker(log, 16, stats)

	mockSink := mocks.NewMockEventSink(ctrl)
	_, err := broker.Subscribe(mockSink)
	req.NoError(err)
	req.Equal(1, broker.Subscribers())

	done := make(chan struct{})
	var seen []event.Kind
	// Given the sink records every delivered event
	mockSink.EXPECT().Consume(gomock.Any(), gomock.Any()).Do(
		func(_ context.Context, evt event.ChangeEvent) {
			seen = append(seen, evt.Kind)
			if len(seen) == 3 {
				close(done)
			}
		}).Return(nil).Times(3)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = broker.FanoutWorker(time.Second).Run(ctx)
	}()

	// When three events are published
	m := liveMessage("hello")
	broker.Publish(event.Inserted(m))
	broker.Publish(event.Updated(m))
	broker.Publish(event.Deleted(m.ID.String()))

	// Then they arrive in publish order
	select {
	case <-done:
	case <-time.After(time.Second):
		req.Fail("Fanout did not deliver in time")
	}
	req.Equal([]event.Kind{event.KindInsert, event.KindUpdate, event.KindDelete}, seen)
	req.Equal(uint64(3), stats.EventsPublished.Load())
}

func TestBroker_UnsubscribedSinkReceivesNothing(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	stats := observability.NewStats()
	broker := runtime.NewBroker(log, 16, stats)

	gone := mocks.NewMockEventSink(ctrl)
	kept := mocks.NewMockEventSink(ctrl)

	sub, err := broker.Subscribe(gone)
	req.NoError(err)
	_, err = broker.Subscribe(kept)
	req.NoError(err)

	sub.Unsubscribe()
	sub.Unsubscribe()
	req.Equal(1, broker.Subscribers())

	done := make(chan struct{})
	// Only the remaining sink is consumed; "gone" has no expectation.
	kept.EXPECT().Consume(gomock.Any(), gomock.Any()).Do(
		func(context.Context, event.ChangeEvent) {
			close(done)
		}).Return(nil).Times(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = broker.FanoutWorker(time.Second).Run(ctx)
	}()

	broker.Publish(event.Inserted(liveMessage("only for kept")))

	select {
	case <-done:
	case <-time.After(time.Second):
		req.Fail("Fanout did not deliver in time")
	}
}

func TestBroker_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	stats := observability.NewStats()
	// Given a tiny buffer and no fanout worker draining it
	broker := runtime.NewBroker(log, 1, stats)

	m := liveMessage("flood")
	broker.Publish(event.Inserted(m))
	broker.Publish(event.Inserted(m))
	broker.Publish(event.Inserted(m))

	// Then the overflow is counted, not blocked on
	req.Equal(uint64(1), stats.EventsPublished.Load())
	req.Equal(uint64(2), stats.EventsDropped.Load())
}
