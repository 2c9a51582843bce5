//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"chat-room/domain"
	"chat-room/domain/event"

	"github.com/google/uuid"
)

// Backend is the persistence/query collaborator injected into a view at
// construction. It is never a module-wide singleton, so tests can
// substitute a fake.
type Backend interface {
	// FetchLiveMessages returns the raw rows whose deleted_at is null,
	// ordered by created_at ascending.
	FetchLiveMessages(ctx context.Context) ([]domain.RawMessage, error)
	// InsertMessage writes a new message with server-assigned id and
	// timestamps. The resulting row reaches views through the live
	// channel, not through this return value.
	InsertMessage(ctx context.Context, body string) (domain.RawMessage, error)
	// SoftDeleteMessage marks a message deleted. Views observe the
	// removal as an update event carrying a non-null deleted_at.
	SoftDeleteMessage(ctx context.Context, id uuid.UUID) error
}

// LiveChannel delivers change notifications for the message collection.
type LiveChannel interface {
	Subscribe(sink EventSink) (Subscription, error)
}

// Subscription releases a live channel. Unsubscribe must be safe to call
// even if no event ever arrived, and must be idempotent.
type Subscription interface {
	Unsubscribe()
}

type EventSink interface {
	Consume(ctx context.Context, e event.ChangeEvent) error
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker
// lifecycle events, avoiding the need for manual naming in the Worker
// interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
