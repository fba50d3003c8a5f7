// Package llm provides the generation backends the conversation engine can
// call for a reply.
package llm

import (
	"context"

	"github.com/xiaot623/gogo/chatengine/internal/domain"
)

// Backend turns a prompt payload into reply text.
type Backend interface {
	// Name identifies the backend in logs.
	Name() string

	// Generate returns the reply for payload. It must honour ctx cancellation.
	Generate(ctx context.Context, payload []domain.Turn) (string, error)
}

// Params are the sampling parameters shared by remote backends.
type Params struct {
	Model       string
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// Ensure backends implement Backend.
var (
	_ Backend = (*Client)(nil)
	_ Backend = (*AnthropicBackend)(nil)
	_ Backend = (*MockBackend)(nil)
)
