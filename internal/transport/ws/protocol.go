package ws

import "github.com/xiaot623/gogo/chatengine/internal/domain"

// Frame types from client to server
const (
	TypeChat    = "chat"
	TypeClear   = "clear"
	TypeHistory = "history"
	TypeStatus  = "status"
)

// Frame types from server to client
const (
	TypeReply   = "reply"
	TypeCleared = "cleared"
	TypeTurns   = "turns"
	TypeState   = "state"
	TypeError   = "error"
)

// Error codes
const (
	ErrorCodeInvalidMessage = "invalid_message"
	ErrorCodeValidation     = "validation"
	ErrorCodeBusy           = "busy"
)

// Inbound is a client frame.
type Inbound struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Message   string `json:"message,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// Outbound is a server frame. Only the fields relevant to Type are set.
type Outbound struct {
	Type          string        `json:"type"`
	RequestID     string        `json:"request_id,omitempty"`
	Ts            int64         `json:"ts"`
	Reply         string        `json:"reply,omitempty"`
	Messages      []domain.Turn `json:"messages,omitempty"`
	MessagesCount int           `json:"messages_count,omitempty"`
	LocalTime     string        `json:"local_time,omitempty"`
	LastOutcome   string        `json:"last_outcome,omitempty"`
	Code          string        `json:"code,omitempty"`
	Message       string        `json:"message,omitempty"`
}
