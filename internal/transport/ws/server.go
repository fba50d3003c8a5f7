// Package ws provides the WebSocket chat endpoint.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/xiaot623/gogo/chatengine/internal/config"
	"github.com/xiaot623/gogo/chatengine/internal/domain"
)

// Engine is the conversation engine as seen by the websocket layer.
type Engine interface {
	Handle(ctx context.Context, text string) (string, error)
	History(limit int) []domain.Turn
	Clear(ctx context.Context)
	Status() domain.Status
}

// Server handles WebSocket connections.
type Server struct {
	cfg      config.WebSocketConfig
	engine   Engine
	hub      *Hub
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewServer creates a new WebSocket server.
func NewServer(cfg config.WebSocketConfig, engine Engine, logger zerolog.Logger) *Server {
	return &Server{
		cfg:    cfg,
		engine: engine,
		hub:    NewHub(),
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// RegisterRoutes mounts the upgrade endpoint.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", s.HandleWebSocket)
}

// Hub exposes the connection registry.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Close drops every open connection.
func (s *Server) Close() {
	s.hub.CloseAll()
}

// HandleWebSocket handles WebSocket upgrade and connection lifecycle.
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to upgrade websocket")
		return err
	}

	conn := s.hub.NewConnection(ws)
	s.hub.Register(conn)
	s.logger.Debug().Str("conn_id", conn.ID).Msg("connection registered")

	if s.cfg.MaxMessageSize > 0 {
		ws.SetReadLimit(s.cfg.MaxMessageSize)
	}

	go s.writePump(conn)
	go s.readPump(conn)

	return nil
}

// readPump reads frames and answers them in order.
func (s *Server) readPump(conn *Connection) {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		if s.hub.Unregister(conn) {
			s.logger.Debug().Str("conn_id", conn.ID).Msg("connection unregistered")
		}
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
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				s.logger.Warn().Err(err).Str("conn_id", conn.ID).Msg("websocket read failed")
			}
			return
		}

		s.handleMessage(ctx, conn, message)
	}
}

// writePump drains the send buffer and keeps the peer alive with pings.
func (s *Server) writePump(conn *Connection) {
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
				s.logger.Debug().Err(err).Str("conn_id", conn.ID).Msg("failed to write message")
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

// handleMessage dispatches one client frame.
func (s *Server) handleMessage(ctx context.Context, conn *Connection, data []byte) {
	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		s.sendError(conn, "", ErrorCodeInvalidMessage, "invalid JSON message")
		return
	}

	switch in.Type {
	case TypeChat:
		s.handleChat(ctx, conn, in)
	case TypeClear:
		s.engine.Clear(ctx)
		s.send(conn, Outbound{Type: TypeCleared, RequestID: in.RequestID, Message: "Cleared"})
	case TypeHistory:
		turns := s.engine.History(in.Limit)
		if turns == nil {
			turns = []domain.Turn{}
		}
		s.send(conn, Outbound{Type: TypeTurns, RequestID: in.RequestID, Messages: turns})
	case TypeStatus:
		status := s.engine.Status()
		s.send(conn, Outbound{
			Type:          TypeState,
			RequestID:     in.RequestID,
			MessagesCount: status.TurnCount,
			LocalTime:     status.NowLocal.Format(time.TimeOnly),
			LastOutcome:   string(status.LastOutcome),
		})
	default:
		s.sendError(conn, in.RequestID, ErrorCodeInvalidMessage, "unknown message type: "+in.Type)
	}
}

func (s *Server) handleChat(ctx context.Context, conn *Connection, in Inbound) {
	reply, err := s.engine.Handle(ctx, in.Message)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEmptyMessage):
			s.sendError(conn, in.RequestID, ErrorCodeValidation, "Empty message")
		case errors.Is(err, domain.ErrMessageTooLong):
			s.sendError(conn, in.RequestID, ErrorCodeValidation, "Message too long")
		case domain.IsValidation(err):
			s.sendError(conn, in.RequestID, ErrorCodeValidation, err.Error())
		default:
			s.logger.Error().Err(err).Str("conn_id", conn.ID).Msg("chat failed")
			s.sendError(conn, in.RequestID, ErrorCodeBusy, "Server busy")
		}
		return
	}
	s.send(conn, Outbound{Type: TypeReply, RequestID: in.RequestID, Reply: reply})
}

func (s *Server) sendError(conn *Connection, requestID, code, message string) {
	s.send(conn, Outbound{Type: TypeError, RequestID: requestID, Code: code, Message: message})
}

func (s *Server) send(conn *Connection, out Outbound) {
	out.Ts = time.Now().UnixMilli()
	if err := s.hub.SendJSON(conn, out); err != nil {
		s.logger.Warn().Err(err).Str("conn_id", conn.ID).Str("type", out.Type).Msg("dropping frame")
	}
}
