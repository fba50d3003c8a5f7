package llm

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/chatengine/internal/config"
)

func TestNewBackendsOrder(t *testing.T) {
	cfg := &config.Config{
		Generation: config.GenerationConfig{Timeout: time.Second},
		LLM: config.LLMConfig{
			Backends: []string{config.BackendAnthropic, config.BackendOpenAI, config.BackendMock},
			Model:    "gpt-4o-mini",
		},
	}

	backends, err := NewBackends(cfg, zerolog.Nop())

	require.NoError(t, err)
	require.Len(t, backends, 3)
	assert.Equal(t, "anthropic", backends[0].Name())
	assert.Equal(t, "openai", backends[1].Name())
	assert.Equal(t, "mock", backends[2].Name())
}

func TestNewBackendsMockMode(t *testing.T) {
	cfg := &config.Config{
		Mode: config.ModeMock,
		LLM:  config.LLMConfig{Backends: []string{config.BackendOpenAI}},
	}

	backends, err := NewBackends(cfg, zerolog.Nop())

	require.NoError(t, err)
	require.Len(t, backends, 1)
	assert.IsType(t, &MockBackend{}, backends[0])
}

func TestNewBackendsUnknown(t *testing.T) {
	cfg := &config.Config{LLM: config.LLMConfig{Backends: []string{"bard"}}}

	_, err := NewBackends(cfg, zerolog.Nop())

	assert.Error(t, err)
}
