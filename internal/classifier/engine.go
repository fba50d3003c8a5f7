// Package classifier recognises reserved chat commands with an OPA policy.
package classifier

import (
	"context"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/rego"

	"github.com/xiaot623/gogo/chatengine/internal/domain"
)

// Engine classifies user messages.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine prepares the given policy. The policy must define
// data.chat_commands.decision.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.chat_commands.decision"),
		rego.Module("chat_commands.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// NewEngineFromFile loads the policy at path, or DefaultPolicy when path is empty.
func NewEngineFromFile(ctx context.Context, path string) (*Engine, error) {
	if path == "" {
		return NewEngine(ctx, DefaultPolicy)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy: %w", err)
	}
	return NewEngine(ctx, string(content))
}

// Classify returns the command kind for message.
func (e *Engine) Classify(ctx context.Context, message string) (domain.CommandKind, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(map[string]interface{}{"message": message}))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return domain.CommandGenerate, nil
	}

	s, ok := results[0].Expressions[0].Value.(string)
	if !ok {
		return "", fmt.Errorf("unexpected decision type %T", results[0].Expressions[0].Value)
	}
	switch kind := domain.CommandKind(s); kind {
	case domain.CommandClear, domain.CommandTimeQuery, domain.CommandGenerate:
		return kind, nil
	default:
		return "", fmt.Errorf("unknown decision %q", s)
	}
}

// DefaultPolicy recognises the clear tokens and the time keywords.
const DefaultPolicy = `
package chat_commands

default decision = "generate"

normalized = lower(trim_space(input.message))

clear_tokens = {"clear", "/clear", "xóa", "xoa"}

time_keywords = ["giờ", "thời gian", "ngày", "tháng", "năm", "bây giờ", "hiện tại"]

decision = "clear" {
	clear_tokens[normalized]
}

decision = "time_query" {
	not clear_tokens[normalized]
	contains(normalized, time_keywords[_])
}
`
