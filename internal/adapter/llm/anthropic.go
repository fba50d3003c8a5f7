package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/xiaot623/gogo/chatengine/internal/domain"
)

// ErrNoUserTurn is returned when a payload has nothing for the model to answer.
var ErrNoUserTurn = errors.New("payload has no user turn")

// AnthropicBackend generates replies through the Anthropic Messages API.
type AnthropicBackend struct {
	client anthropic.Client
	params Params
}

// NewAnthropicBackend creates a backend. Retries are disabled so the engine's
// deadline is the only time bound.
func NewAnthropicBackend(apiKey, baseURL string, params Params, opts ...option.RequestOption) *AnthropicBackend {
	all := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		all = append(all, option.WithBaseURL(baseURL))
	}
	all = append(all, opts...)
	return &AnthropicBackend{
		client: anthropic.NewClient(all...),
		params: params,
	}
}

// Name implements Backend.
func (b *AnthropicBackend) Name() string {
	return "anthropic"
}

// Generate implements Backend.
func (b *AnthropicBackend) Generate(ctx context.Context, payload []domain.Turn) (string, error) {
	var system []anthropic.TextBlockParam
	messages := make([]anthropic.MessageParam, 0, len(payload))
	for _, t := range payload {
		switch t.Role {
		case domain.RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: t.Content})
		case domain.RoleUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(t.Content)))
		case domain.RoleAssistant:
			// The conversation sent to the API must open with a user message.
			if len(messages) == 0 {
				continue
			}
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(t.Content)))
		}
	}
	if len(messages) == 0 {
		return "", ErrNoUserTurn
	}

	maxTokens := b.params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 600
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(b.params.Model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
		System:    system,
	}
	if b.params.Temperature > 0 {
		params.Temperature = anthropic.Float(b.params.Temperature)
	}
	if b.params.TopP > 0 {
		params.TopP = anthropic.Float(b.params.TopP)
	}

	msg, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	return sb.String(), nil
}
