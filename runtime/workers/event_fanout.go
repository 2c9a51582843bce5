package workers

import (
	"context"
	"log/slog"
	"time"

	"chat-room/contract"
	"chat-room/domain/event"
)

// EventFanout broadcasts change events to the room's subscribers.
//
// It provides best-effort fan-out with no guarantees regarding
// durability or retries. EventFanout is not a message broker.
//
// Delivery is sequential: one event is handed to every sink before the
// next event is taken from the channel, which preserves per-subscriber
// ordering. A sink that exceeds the timeout only loses its own event.
type EventFanout struct {
	log         *slog.Logger
	events      chan event.ChangeEvent
	sinks       func() []contract.EventSink
	sinkTimeout time.Duration
}

func NewEventFanout(log *slog.Logger, events chan event.ChangeEvent,
	sinks func() []contract.EventSink, sinkTimeout time.Duration) *EventFanout {
	return &EventFanout{log: log, events: events, sinks: sinks, sinkTimeout: sinkTimeout}
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case evt := <-w.events:
			w.Fanout(ctx, evt)
		case <-ctx.Done():
			w.log.Debug("Context done, stopping event fanout")
			return nil
		}
	}
}

// Fanout delivers one event to every active sink in subscription order.
func (w *EventFanout) Fanout(ctx context.Context, evt event.ChangeEvent) {
	for _, sink := range w.sinks() {
		sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
		if err := sink.Consume(sinkCtx, evt); err != nil {
			w.log.Warn("Sink failed to consume event", "kind", evt.Kind, "error", err)
		}
		cancel()
	}
}
