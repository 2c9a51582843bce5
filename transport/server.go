// Package transport exposes the room over HTTP and websocket: snapshot
// and write operations as routes, the live channel as a websocket
// stream of change events.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"chat-room/contract"
	"chat-room/domain"
	"chat-room/domain/event"
	errs "chat-room/errors"

	"github.com/felixge/httpsnoop"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

type Server struct {
	log        *slog.Logger
	backend    contract.Backend
	channel    contract.LiveChannel
	connBuffer int
	upgrader   websocket.Upgrader
}

func NewServer(log *slog.Logger, backend contract.Backend, channel contract.LiveChannel, connBuffer int) *Server {
	return &Server{
		log:        log,
		backend:    backend,
		channel:    channel,
		connBuffer: connBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Router wires the routes with a request logging middleware.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			m := httpsnoop.CaptureMetrics(handler, writer, request)
			s.log.Info("handled", "method", request.Method, "url", request.URL,
				"duration", m.Duration, "status", m.Code)
		})
	})

	r.Methods(http.MethodGet).Path("/messages").HandlerFunc(s.listMessages)
	r.Methods(http.MethodPost).Path("/messages").HandlerFunc(s.postMessage)
	r.Methods(http.MethodDelete).Path("/messages/{id}").HandlerFunc(s.deleteMessage)
	r.Methods(http.MethodGet).Path("/subscribe").HandlerFunc(s.subscribe)
	return r
}

type postRequest struct {
	Body string `json:"body"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) listMessages(writer http.ResponseWriter, request *http.Request) {
	rows, err := s.backend.FetchLiveMessages(request.Context())
	if err != nil {
		s.writeError(writer, http.StatusInternalServerError, err.Error())
		return
	}
	if rows == nil {
		rows = []domain.RawMessage{}
	}
	s.writeJSON(writer, http.StatusOK, rows)
}

func (s *Server) postMessage(writer http.ResponseWriter, request *http.Request) {
	var req postRequest
	if err := json.NewDecoder(request.Body).Decode(&req); err != nil {
		s.writeError(writer, http.StatusBadRequest, "malformed request body")
		return
	}

	cmd := domain.PostMessageCommand{Body: req.Body}
	if err := cmd.Validate(); err != nil {
		s.writeError(writer, http.StatusUnprocessableEntity, err.Error())
		return
	}

	row, err := s.backend.InsertMessage(request.Context(), cmd.Trimmed())
	if err != nil {
		s.writeError(writer, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(writer, http.StatusCreated, row)
}

func (s *Server) deleteMessage(writer http.ResponseWriter, request *http.Request) {
	id, err := uuid.Parse(mux.Vars(request)["id"])
	if err != nil {
		s.writeError(writer, http.StatusBadRequest, "invalid message id")
		return
	}

	if err := s.backend.SoftDeleteMessage(request.Context(), id); err != nil {
		if errors.Is(err, errs.ErrUnknownMessage) {
			s.writeError(writer, http.StatusNotFound, err.Error())
			return
		}
		s.writeError(writer, http.StatusInternalServerError, err.Error())
		return
	}
	writer.WriteHeader(http.StatusNoContent)
}

// subscribe upgrades the connection and streams change events until the
// peer goes away. Events are written by a single goroutine, so a
// session can never observe two events out of publish order.
func (s *Server) subscribe(writer http.ResponseWriter, request *http.Request) {
	conn, err := s.upgrader.Upgrade(writer, request, nil)
	if err != nil {
		s.log.Error("Failed to upgrade connection", "error", err)
		return
	}
	defer conn.Close()

	session := &wsSession{out: make(chan event.ChangeEvent, s.connBuffer)}
	sub, err := s.channel.Subscribe(session)
	if err != nil {
		s.log.Error("Failed to subscribe session", "error", err)
		return
	}
	defer sub.Unsubscribe()

	// The peer sends nothing meaningful; the read loop only detects
	// the close handshake.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case evt := <-session.out:
			if err := conn.WriteJSON(evt); err != nil {
				s.log.Debug("Session write failed, dropping subscriber", "error", err)
				return
			}
		case <-done:
			return
		case <-request.Context().Done():
			return
		}
	}
}

func (s *Server) writeJSON(writer http.ResponseWriter, status int, payload any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	if err := json.NewEncoder(writer).Encode(payload); err != nil {
		s.log.Error("Failed to encode response", "error", err)
	}
}

func (s *Server) writeError(writer http.ResponseWriter, status int, message string) {
	s.writeJSON(writer, status, errorResponse{Error: message})
}

// wsSession adapts one websocket connection to the EventSink contract.
type wsSession struct {
	out chan event.ChangeEvent
}

func (s *wsSession) Consume(ctx context.Context, e event.ChangeEvent) error {
	select {
	case s.out <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
