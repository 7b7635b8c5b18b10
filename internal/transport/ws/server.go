// Package ws serves the chat protocol over WebSocket connections.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/xiaot623/studybuddy/internal/config"
	"github.com/xiaot623/studybuddy/internal/domain"
	"github.com/xiaot623/studybuddy/internal/gateway"
	"github.com/xiaot623/studybuddy/internal/hub"
	"github.com/xiaot623/studybuddy/internal/observability"
	"github.com/xiaot623/studybuddy/internal/protocol"
)

// TurnHandler applies one user turn.
type TurnHandler interface {
	HandleTurn(ctx context.Context, turn domain.Turn) error
}

// Server handles WebSocket connections.
type Server struct {
	cfg      *config.Config
	hub      *hub.Hub
	turns    TurnHandler
	upgrader websocket.Upgrader
	log      *slog.Logger
}

// NewServer creates a new WebSocket server.
func NewServer(cfg *config.Config, h *hub.Hub, turns TurnHandler) *Server {
	return &Server{
		cfg:   cfg,
		hub:   h,
		turns: turns,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		log: observability.WithFields("component", "ws"),
	}
}

// HandleWebSocket upgrades the request and starts the connection pumps.
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.log.Warn("failed to upgrade websocket", "error", err)
		return err
	}

	conn := s.hub.NewConnection(ws)
	s.hub.Register(conn)

	ws.SetReadLimit(s.cfg.MaxMessageSize)

	go s.writePump(conn)
	go s.readPump(conn)

	return nil
}

// readPump reads frames and handles them one at a time, so a participant's
// turns on one connection are applied in arrival order.
func (s *Server) readPump(conn *hub.Connection) {
	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.Warn("websocket read error", "conn_id", conn.ID, "error", err)
			}
			break
		}
		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))

		s.handleMessage(conn, message)
	}
}

// writePump writes queued frames and keeps the connection alive with pings.
func (s *Server) writePump(conn *hub.Connection) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				s.log.Warn("failed to write message", "conn_id", conn.ID, "error", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleMessage(conn *hub.Connection, data []byte) {
	var base protocol.BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		s.sendError(conn, "", protocol.ErrorCodeInvalidMessage, "invalid JSON message")
		return
	}

	switch base.Type {
	case protocol.TypeHello:
		s.handleHello(conn, data)
	case protocol.TypeMessage:
		var msg protocol.TextMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendError(conn, base.RequestID, protocol.ErrorCodeInvalidMessage, "invalid message frame")
			return
		}
		s.dispatch(conn, base.RequestID, domain.Input{Text: msg.Text})
	case protocol.TypeCallback:
		var msg protocol.CallbackMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Data == "" {
			s.sendError(conn, base.RequestID, protocol.ErrorCodeInvalidMessage, "invalid callback frame")
			return
		}
		s.dispatch(conn, base.RequestID, domain.Input{Callback: msg.Data})
	default:
		s.sendError(conn, base.RequestID, protocol.ErrorCodeInvalidMessage, "unknown message type: "+base.Type)
	}
}

func (s *Server) handleHello(conn *hub.Connection, data []byte) {
	var msg protocol.HelloMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", protocol.ErrorCodeInvalidMessage, "invalid hello message")
		return
	}

	if s.cfg.APIKey != "" && msg.APIKey != s.cfg.APIKey {
		s.sendError(conn, msg.RequestID, protocol.ErrorCodeUnauthorized, "invalid api_key")
		return
	}

	userID := strings.TrimSpace(msg.UserID)
	if userID == "" {
		s.sendError(conn, msg.RequestID, protocol.ErrorCodeInvalidMessage, "user_id is required")
		return
	}

	conn.Username = msg.Username
	conn.FirstName = msg.FirstName
	s.hub.BindParticipant(conn, userID)

	ack := protocol.HelloAckMessage{
		BaseMessage: protocol.BaseMessage{
			Type:      protocol.TypeHelloAck,
			Ts:        time.Now().UnixMilli(),
			RequestID: msg.RequestID,
		},
		UserID: userID,
	}
	s.hub.SendJSONToConnection(conn, ack)

	s.log.Info("hello handshake completed", "conn_id", conn.ID, "participant", userID)
}

func (s *Server) dispatch(conn *hub.Connection, requestID string, input domain.Input) {
	if conn.ParticipantID == "" {
		s.sendError(conn, requestID, protocol.ErrorCodeSessionRequired, "must send hello first")
		return
	}

	timeout := s.cfg.TurnTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	ctx = observability.WithParticipant(observability.WithRequestID(ctx, requestID), conn.ParticipantID)

	turn := domain.Turn{
		ParticipantID: conn.ParticipantID,
		OwnerID:       conn.ParticipantID,
		Username:      conn.Username,
		FirstName:     conn.FirstName,
		Input:         input,
	}
	if err := s.turns.HandleTurn(ctx, turn); err != nil {
		if errors.Is(err, gateway.ErrNotConnected) {
			return
		}
		observability.LoggerFromContext(ctx).Error("failed to handle turn", "conn_id", conn.ID, "error", err)
		s.sendError(conn, requestID, protocol.ErrorCodeInternalError, "failed to handle message")
	}
}

func (s *Server) sendError(conn *hub.Connection, requestID, code, message string) {
	errMsg := protocol.ErrorMessage{
		BaseMessage: protocol.BaseMessage{
			Type:      protocol.TypeError,
			Ts:        time.Now().UnixMilli(),
			RequestID: requestID,
		},
		Code:    code,
		Message: message,
	}
	s.hub.SendJSONToConnection(conn, errMsg)
}
