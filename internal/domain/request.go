package domain

import "time"

// ChatRequest is the inbound chat payload.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse carries the reply for one handled message.
type ChatResponse struct {
	OK    bool   `json:"ok"`
	Reply string `json:"reply,omitempty"`
	Error string `json:"error,omitempty"`
}

// HistoryResponse lists the most recent turns.
type HistoryResponse struct {
	OK       bool   `json:"ok"`
	Messages []Turn `json:"messages"`
}

// ClearResponse acknowledges a clear request.
type ClearResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Status is a point-in-time view of the engine.
type Status struct {
	TurnCount    int          `json:"turn_count"`
	NowLocal     time.Time    `json:"now_local"`
	PendingTasks int          `json:"pending_tasks"`
	LastOutcome  ReplyOutcome `json:"last_outcome,omitempty"`
}

// StatusResponse is the wire form of Status. VietnamTime mirrors LocalTime
// for older clients.
type StatusResponse struct {
	OK            bool   `json:"ok"`
	Status        string `json:"status"`
	MessagesCount int    `json:"messages_count"`
	LocalTime     string `json:"local_time"`
	VietnamTime   string `json:"vietnam_time,omitempty"`
	PendingTasks  int    `json:"pending_tasks"`
	LastOutcome   string `json:"last_outcome,omitempty"`
}
