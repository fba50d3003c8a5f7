// Package rpc exposes the conversation engine over JSON-RPC for internal callers.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/xiaot623/gogo/chatengine/internal/domain"
)

// ServiceName is the name the handler is registered under.
const ServiceName = "Chat"

// Engine is the conversation engine as seen by RPC callers.
type Engine interface {
	Handle(ctx context.Context, text string) (string, error)
	History(limit int) []domain.Turn
	Clear(ctx context.Context)
	Status() domain.Status
}

// Server accepts JSON-RPC connections.
type Server struct {
	mu        sync.Mutex
	listener  net.Listener
	rpcServer *rpc.Server
	done      chan struct{}
	logger    zerolog.Logger
}

// NewServer creates a new RPC server bound to the engine.
func NewServer(engine Engine, logger zerolog.Logger) (*Server, error) {
	rpcServer := rpc.NewServer()
	handler := &Handler{engine: engine}
	if err := rpcServer.RegisterName(ServiceName, handler); err != nil {
		return nil, fmt.Errorf("register rpc handler: %w", err)
	}

	return &Server{
		rpcServer: rpcServer,
		done:      make(chan struct{}),
		logger:    logger,
	}, nil
}

// Listen binds addr without accepting yet.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start listens on addr and serves until Shutdown.
func (s *Server) Start(addr string) error {
	if err := s.Listen(addr); err != nil {
		return err
	}
	return s.Serve()
}

// Serve accepts connections on the bound listener until it is closed.
func (s *Server) Serve() error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return errors.New("rpc server is not listening")
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				close(s.done)
				return nil
			}
			s.logger.Warn().Err(err).Msg("rpc accept error")
			time.Sleep(10 * time.Millisecond)
			continue
		}

		go s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(conn))
	}
}

// Shutdown stops accepting new RPC connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return nil
	}

	if err := ln.Close(); err != nil {
		return err
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handler implements the Chat RPC methods.
type Handler struct {
	engine Engine
}

// ChatArgs carries one user message.
type ChatArgs struct {
	Message string `json:"message"`
}

// HistoryArgs bounds the returned turns. Zero uses the configured default.
type HistoryArgs struct {
	Limit int `json:"limit"`
}

// AckResponse is a generic OK response.
type AckResponse struct {
	OK bool `json:"ok"`
}

// Handle answers one message.
func (h *Handler) Handle(req *ChatArgs, resp *domain.ChatResponse) error {
	if req == nil {
		return errors.New("chat request is required")
	}

	reply, err := h.engine.Handle(context.Background(), req.Message)
	if err != nil {
		return err
	}
	resp.OK = true
	resp.Reply = reply
	return nil
}

// History lists recent turns.
func (h *Handler) History(req *HistoryArgs, resp *domain.HistoryResponse) error {
	limit := 0
	if req != nil {
		limit = req.Limit
	}
	resp.OK = true
	resp.Messages = h.engine.History(limit)
	if resp.Messages == nil {
		resp.Messages = []domain.Turn{}
	}
	return nil
}

// Clear wipes the transcript.
func (h *Handler) Clear(_ *struct{}, resp *AckResponse) error {
	h.engine.Clear(context.Background())
	resp.OK = true
	return nil
}

// Status reports the transcript size and local time.
func (h *Handler) Status(_ *struct{}, resp *domain.StatusResponse) error {
	status := h.engine.Status()
	local := status.NowLocal.Format(time.TimeOnly)
	*resp = domain.StatusResponse{
		OK:            true,
		Status:        "online",
		MessagesCount: status.TurnCount,
		LocalTime:     local,
		VietnamTime:   local,
		PendingTasks:  status.PendingTasks,
		LastOutcome:   string(status.LastOutcome),
	}
	return nil
}
