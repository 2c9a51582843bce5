package runtime

import (
	"log/slog"
	"sync"
	"time"

	"chat-room/contract"
	"chat-room/domain/event"
	"chat-room/observability"
	"chat-room/runtime/workers"

	"github.com/google/uuid"
)

// Broker is the live channel hub of the room. Publishers hand it change
// events; a single fanout worker drains them in order and delivers each
// one to every registered sink. With one draining goroutine, delivery
// order per subscriber always matches publish order.
type Broker struct {
	log      *slog.Logger
	registry *Registry
	events   chan event.ChangeEvent
	stats    *observability.Stats
}

func NewBroker(log *slog.Logger, bufferSize int, stats *observability.Stats) *Broker {
	return &Broker{
		log:      log,
		registry: NewRegistry(),
		events:   make(chan event.ChangeEvent, bufferSize),
		stats:    stats,
	}
}

// Publish enqueues one change event for fanout. The room keeps serving
// when a slow consumer fills the buffer; the event is dropped and
// counted instead of blocking the write path.
func (b *Broker) Publish(e event.ChangeEvent) {
	select {
	case b.events <- e:
		b.stats.EventsPublished.Add(1)
	default:
		b.stats.EventsDropped.Add(1)
		b.log.Warn("Event buffer full, dropping change event", "kind", e.Kind)
	}
}

// Subscribe registers a sink with the room. It implements
// contract.LiveChannel so an in-process view can attach directly.
func (b *Broker) Subscribe(sink contract.EventSink) (contract.Subscription, error) {
	id := b.registry.Subscribe(sink)
	return &brokerSubscription{broker: b, id: id}, nil
}

// FanoutWorker builds the supervised worker draining the event channel.
func (b *Broker) FanoutWorker(sinkTimeout time.Duration) contract.Worker {
	return workers.NewEventFanout(b.log, b.events, b.registry.Sinks, sinkTimeout)
}

func (b *Broker) Subscribers() int {
	return b.registry.Len()
}

type brokerSubscription struct {
	broker *Broker
	id     uuid.UUID
	once   sync.Once
}

// Unsubscribe releases the channel. Safe to call even if no event ever
// arrived, and safe to call twice.
func (s *brokerSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.broker.registry.Unsubscribe(s.id)
	})
}
