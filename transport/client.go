package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"chat-room/contract"
	"chat-room/domain"
	"chat-room/domain/event"
	errs "chat-room/errors"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// RemoteBackend implements contract.Backend against a room server.
type RemoteBackend struct {
	baseURL string
	client  *http.Client
}

func NewRemoteBackend(baseURL string, client *http.Client) *RemoteBackend {
	if client == nil {
		client = http.DefaultClient
	}
	return &RemoteBackend{baseURL: baseURL, client: client}
}

var _ contract.Backend = (*RemoteBackend)(nil)

func (b *RemoteBackend) FetchLiveMessages(ctx context.Context) ([]domain.RawMessage, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/messages", nil)
	if err != nil {
		return nil, &errs.FetchError{Message: err.Error(), Err: err}
	}
	response, err := b.client.Do(request)
	if err != nil {
		return nil, &errs.FetchError{Message: err.Error(), Err: err}
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, &errs.FetchError{
			Code:    strconv.Itoa(response.StatusCode),
			Message: readErrorMessage(response.Body),
		}
	}

	var rows []domain.RawMessage
	if err := json.NewDecoder(response.Body).Decode(&rows); err != nil {
		return nil, &errs.FetchError{Message: fmt.Sprintf("undecodable snapshot payload: %v", err), Err: err}
	}
	return rows, nil
}

func (b *RemoteBackend) InsertMessage(ctx context.Context, body string) (domain.RawMessage, error) {
	payload, err := json.Marshal(postRequest{Body: body})
	if err != nil {
		return domain.RawMessage{}, &errs.SubmitError{Message: err.Error(), Err: err}
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return domain.RawMessage{}, &errs.SubmitError{Message: err.Error(), Err: err}
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := b.client.Do(request)
	if err != nil {
		return domain.RawMessage{}, &errs.SubmitError{Message: err.Error(), Err: err}
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusCreated {
		return domain.RawMessage{}, &errs.SubmitError{Message: readErrorMessage(response.Body)}
	}

	var row domain.RawMessage
	if err := json.NewDecoder(response.Body).Decode(&row); err != nil {
		return domain.RawMessage{}, &errs.SubmitError{Message: fmt.Sprintf("undecodable insert response: %v", err), Err: err}
	}
	return row, nil
}

func (b *RemoteBackend) SoftDeleteMessage(ctx context.Context, id uuid.UUID) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		fmt.Sprintf("%s/messages/%s", b.baseURL, id), nil)
	if err != nil {
		return err
	}
	response, err := b.client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	switch response.StatusCode {
	case http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return errs.ErrUnknownMessage
	default:
		return fmt.Errorf("delete failed: %s", readErrorMessage(response.Body))
	}
}

// readErrorMessage extracts the server error notice, falling back to
// the raw body when it is not the JSON error shape.
func readErrorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return err.Error()
	}
	var response errorResponse
	if err := json.Unmarshal(raw, &response); err == nil && response.Error != "" {
		return response.Error
	}
	return string(raw)
}

// WSChannel implements contract.LiveChannel over a websocket. Each
// Subscribe dials its own connection and drives the sink from a single
// read loop, so events reach the sink in delivery order.
type WSChannel struct {
	url string
	log *slog.Logger
}

func NewWSChannel(url string, log *slog.Logger) *WSChannel {
	return &WSChannel{url: url, log: log}
}

var _ contract.LiveChannel = (*WSChannel)(nil)

func (c *WSChannel) Subscribe(sink contract.EventSink) (contract.Subscription, error) {
	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("live channel dial failed: %w", err)
	}

	sub := &wsSubscription{conn: conn}
	go c.receive(conn, sink, sub)
	return sub, nil
}

func (c *WSChannel) receive(conn *websocket.Conn, sink contract.EventSink, sub *wsSubscription) {
	for {
		var evt event.ChangeEvent
		if err := conn.ReadJSON(&evt); err != nil {
			if !sub.closed.Load() {
				c.log.Warn("Live channel read failed", "error", err)
			}
			return
		}
		if sub.closed.Load() {
			// Unsubscribed while a frame was in flight: discard it.
			return
		}
		if err := sink.Consume(context.Background(), evt); err != nil {
			c.log.Warn("Sink failed to consume event", "kind", evt.Kind, "error", err)
		}
	}
}

type wsSubscription struct {
	conn   *websocket.Conn
	once   sync.Once
	closed atomic.Bool
}

func (s *wsSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.closed.Store(true)
		_ = s.conn.Close()
	})
}
