package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/xiaot623/gogo/chatengine/internal/domain"
)

// MockBackend is a local backend for development and tests.
type MockBackend struct {
	delay time.Duration
}

// NewMockBackend creates a mock backend that answers after delay.
func NewMockBackend(delay time.Duration) *MockBackend {
	return &MockBackend{delay: delay}
}

// Name implements Backend.
func (m *MockBackend) Name() string {
	return "mock"
}

// Generate echoes the last user message.
func (m *MockBackend) Generate(ctx context.Context, payload []domain.Turn) (string, error) {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	var lastUserMessage string
	for i := len(payload) - 1; i >= 0; i-- {
		if payload[i].Role == domain.RoleUser {
			lastUserMessage = payload[i].Content
			break
		}
	}

	if lastUserMessage == "" {
		return "[MOCK] This is a mock response from the LLM client.", nil
	}

	return fmt.Sprintf("[MOCK] Received your message: %q. This is a mock response.", truncate(lastUserMessage, 100)), nil
}

// truncate truncates a string to the given number of runes.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
