package llm

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/xiaot623/gogo/chatengine/internal/config"
)

// NewBackends builds the ordered backend list from configuration. When the
// mode is MOCK, a single mock backend replaces the configured list.
func NewBackends(cfg *config.Config, logger zerolog.Logger) ([]Backend, error) {
	if cfg.MockMode() {
		logger.Info().Msg("GOGO_MODE=MOCK detected, using mock LLM backend")
		return []Backend{NewMockBackend(cfg.LLM.MockDelay)}, nil
	}

	params := Params{
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		TopP:        cfg.LLM.TopP,
	}
	httpTimeout := cfg.Generation.Timeout
	if cfg.Generation.Retry.Timeout > httpTimeout {
		httpTimeout = cfg.Generation.Retry.Timeout
	}

	backends := make([]Backend, 0, len(cfg.LLM.Backends))
	for _, name := range cfg.LLM.Backends {
		switch name {
		case config.BackendOpenAI:
			backends = append(backends, NewClient(name, cfg.LLM.OpenAI.BaseURL, cfg.LLM.OpenAI.APIKey, httpTimeout, params))
		case config.BackendAnthropic:
			p := params
			if cfg.LLM.Anthropic.Model != "" {
				p.Model = cfg.LLM.Anthropic.Model
			}
			backends = append(backends, NewAnthropicBackend(cfg.LLM.Anthropic.APIKey, cfg.LLM.Anthropic.BaseURL, p))
		case config.BackendMock:
			backends = append(backends, NewMockBackend(cfg.LLM.MockDelay))
		default:
			return nil, fmt.Errorf("unknown backend %q", name)
		}
	}
	if len(backends) == 0 {
		return nil, fmt.Errorf("no backends configured")
	}

	names := make([]string, 0, len(backends))
	for _, b := range backends {
		names = append(names, b.Name())
	}
	logger.Info().Strs("backends", names).Msg("generation backends ready")
	return backends, nil
}
