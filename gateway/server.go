// Package gateway upgrades authenticated HTTP requests to WebSocket
// streams and binds each stream to the coordinator addressed by its
// routing key: the conversation id for rooms, a fixed key for presence.
package gateway

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"realtime-core/contract"
	"realtime-core/domain"
	"realtime-core/domain/event"
	"realtime-core/errors"
	"realtime-core/runtime"
)

// subscribeRetries bounds the race between grabbing a room actor handle
// and that actor tearing itself down on idle.
const subscribeRetries = 3

type Server struct {
	log        *slog.Logger
	dispatcher *runtime.Dispatcher
	archive    contract.MessageArchiver
	identity   Identity
	upgrader   websocket.Upgrader
	bufferSize int
}

func NewServer(log *slog.Logger, dispatcher *runtime.Dispatcher,
	archive contract.MessageArchiver, identity Identity, connectionBufferSize int) *Server {
	return &Server{
		log:        log,
		dispatcher: dispatcher,
		archive:    archive,
		identity:   identity,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin screening happens upstream with the rest of auth.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		bufferSize: connectionBufferSize,
	}
}

func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/rooms/{conversation}", s.handleRoomSocket)
	mux.HandleFunc("GET /ws/presence", s.handlePresenceSocket)
	mux.HandleFunc("GET /rooms/{conversation}/messages", s.handleHistory)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

// handleRoomSocket runs the subscribe operation for one conversation and
// then pumps inbound frames until the client goes away. Identity is
// checked before any registry mutation.
func (s *Server) handleRoomSocket(w http.ResponseWriter, r *http.Request) {
	userID, err := s.identity.FromRequest(r)
	if err != nil {
		http.Error(w, "missing caller identity", http.StatusUnauthorized)
		return
	}
	conversationID := r.PathValue("conversation")
	if conversationID == "" {
		http.Error(w, "missing conversation id", http.StatusBadRequest)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	conn := NewConn(userID, ws, s.bufferSize)

	var room *runtime.RoomActor
	for attempt := 0; ; attempt++ {
		room = s.dispatcher.Room(conversationID)
		if room.Subscribe(conn) {
			break
		}
		if attempt == subscribeRetries {
			s.log.Error("Could not subscribe to room",
				"conversation_id", conversationID, "error", errors.ErrActorStopped)
			_ = conn.Close()
			return
		}
	}
	defer func() {
		_ = conn.Close()
		room.Drop(conn.ID())
	}()

	presence := s.dispatcher.Presence()
	s.readLoop(ws, conn, func(frame Frame) {
		switch frame.Type {
		case frameMessage:
			payload, err := decodePayload[MessageFrame](frame)
			if err != nil {
				s.rejectFrame(conn, frame.Type, err)
				return
			}
			room.Publish(userID, payload.Content, domain.MessageType(payload.Type))
		case frameTyping:
			payload, err := decodePayload[TypingFrame](frame)
			if err != nil {
				s.rejectFrame(conn, frame.Type, err)
				return
			}
			room.SetTyping(userID, payload.IsTyping)
			presence.NoteTyping(userID, conversationID, payload.IsTyping)
		case framePong:
			// Liveness comes from transport state, not pong receipt.
		default:
			s.rejectFrame(conn, frame.Type, errors.ErrUnknownFrameType)
		}
	})
}

// handlePresenceSocket runs the subscribe operation against the single
// platform-wide presence coordinator; the new subscriber receives a full
// state snapshot before any delta.
func (s *Server) handlePresenceSocket(w http.ResponseWriter, r *http.Request) {
	userID, err := s.identity.FromRequest(r)
	if err != nil {
		http.Error(w, "missing caller identity", http.StatusUnauthorized)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	conn := NewConn(userID, ws, s.bufferSize)

	presence := s.dispatcher.Presence()
	if !presence.Subscribe(conn) {
		s.log.Error("Presence coordinator unavailable", "error", errors.ErrActorStopped)
		_ = conn.Close()
		return
	}
	defer func() {
		_ = conn.Close()
		presence.Drop(conn.ID())
	}()

	s.readLoop(ws, conn, func(frame Frame) {
		switch frame.Type {
		case framePresence:
			payload, err := decodePayload[PresenceFrame](frame)
			if err != nil {
				s.rejectFrame(conn, frame.Type, err)
				return
			}
			presence.SetPresence(userID, domain.PresenceStatus(payload.Status),
				payload.Device, payload.ActiveConversation)
		case frameTyping:
			payload, err := decodePayload[TypingFrame](frame)
			if err == nil && payload.ConversationID == "" {
				err = fmt.Errorf("%w: missing conversation_id", errors.ErrMalformedFrame)
			}
			if err != nil {
				s.rejectFrame(conn, frame.Type, err)
				return
			}
			presence.NoteTyping(userID, payload.ConversationID, payload.IsTyping)
		case framePong:
		default:
			s.rejectFrame(conn, frame.Type, errors.ErrUnknownFrameType)
		}
	})
}

// readLoop pumps inbound frames into the dispatch callback. A malformed
// frame rejects only that frame; the connection and every other subscriber
// stay untouched.
func (s *Server) readLoop(ws *websocket.Conn, conn *Conn, dispatch func(frame Frame)) {
	ws.SetReadLimit(maxMessageSize)
	ws.SetPongHandler(func(string) error { return nil })

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("Read error", "conn_id", conn.ID(), "user_id", conn.UserID(), "error", err)
			}
			return
		}
		frame, err := parseFrame(data)
		if err != nil {
			s.rejectFrame(conn, "", err)
			continue
		}
		dispatch(frame)
	}
}

func (s *Server) rejectFrame(conn *Conn, frameType string, err error) {
	s.log.Warn("Rejected inbound frame",
		"conn_id", conn.ID(), "user_id", conn.UserID(),
		"frame_type", frameType, "error", err)
}

type historyResponse struct {
	Messages []event.MessagePayload `json:"messages"`
	Cursor   *string                `json:"cursor,omitempty"`
}

// handleHistory serves the archive read path clients use to reconcile
// after a reconnect.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if _, err := s.identity.FromRequest(r); err != nil {
		http.Error(w, "missing caller identity", http.StatusUnauthorized)
		return
	}
	conversationID := r.PathValue("conversation")
	if conversationID == "" {
		http.Error(w, "missing conversation id", http.StatusBadRequest)
		return
	}

	var cursor *string
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		cursor = &raw
	}

	messages, next, err := s.archive.History(conversationID, cursor)
	if err != nil {
		s.log.Error("History read failed", "conversation_id", conversationID, "error", err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, historyResponse{
		Messages: lo.Map(messages, func(item domain.Message, _ int) event.MessagePayload {
			return event.MessagePayload{
				ID:             item.ID.String(),
				ConversationID: item.ConversationID,
				SenderID:       item.SenderID,
				Content:        item.Content,
				Type:           string(item.Type),
				CreatedAt:      item.CreatedAt,
			}
		}),
		Cursor: next,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, s.dispatcher.Stats())
}

func (s *Server) writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error(fmt.Sprintf("Failed to encode response: %v", err))
	}
}
