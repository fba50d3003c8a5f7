package domain

import "time"

// Turn is one message in the transcript.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTurn stamps a turn with the given time.
func NewTurn(role Role, content string, at time.Time) Turn {
	return Turn{Role: role, Content: content, Timestamp: at}
}

// IsSystem reports whether the turn carries system context.
func (t Turn) IsSystem() bool {
	return t.Role == RoleSystem
}
