package runtime

import (
	"testing"

	"chat-room/contract"
	"chat-room/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestRegistry_SinksKeepSubscriptionOrder(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	registry := NewRegistry()

	first := mocks.NewMockEventSink(ctrl)
	second := mocks.NewMockEventSink(ctrl)
	third := mocks.NewMockEventSink(ctrl)

	registry.Subscribe(first)
	secondID := registry.Subscribe(second)
	registry.Subscribe(third)

	req.Equal([]contract.EventSink{first, second, third}, registry.Sinks())

	// Removing the middle subscriber keeps the relative order of the rest
	registry.Unsubscribe(secondID)
	req.Equal([]contract.EventSink{first, third}, registry.Sinks())
	req.Equal(2, registry.Len())
}

func TestRegistry_UnsubscribeIsIdempotent(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	registry := NewRegistry()

	id := registry.Subscribe(mocks.NewMockEventSink(ctrl))
	registry.Unsubscribe(id)
	registry.Unsubscribe(id)
	registry.Unsubscribe(uuid.New())

	req.Equal(0, registry.Len())
	req.Empty(registry.Sinks())
}
