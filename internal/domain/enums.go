// Package domain defines the core domain models for the conversation engine.
package domain

// Role identifies who produced a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// CommandKind is the result of classifying an inbound message.
type CommandKind string

const (
	CommandGenerate  CommandKind = "generate"
	CommandClear     CommandKind = "clear"
	CommandTimeQuery CommandKind = "time_query"
)

// ReplyOutcome records which terminal state produced a reply.
type ReplyOutcome string

const (
	OutcomeOK       ReplyOutcome = "ok"
	OutcomeTimeout  ReplyOutcome = "timeout"
	OutcomeError    ReplyOutcome = "error"
	OutcomeCommand  ReplyOutcome = "command"
	OutcomeInternal ReplyOutcome = "internal"
)
