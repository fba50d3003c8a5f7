// Package config provides configuration for the conversation engine.
// Values come from defaults, an optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the service configuration.
type Config struct {
	Mode       string           `mapstructure:"mode"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Generation GenerationConfig `mapstructure:"generation"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Workers    WorkersConfig    `mapstructure:"workers"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	WebSocket  WebSocketConfig  `mapstructure:"ws"`
}

// ServerConfig holds listener settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	RPCAddr         string        `mapstructure:"rpc_addr"` // empty disables the RPC listener
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug|info|warn|error
	Format string `mapstructure:"format"` // console|json
}

// EngineConfig holds transcript and command settings.
type EngineConfig struct {
	MaxMessages         int    `mapstructure:"max_messages"`
	MaxInputMessages    int    `mapstructure:"max_input_messages"`
	MaxInputLength      int    `mapstructure:"max_input_length"`
	Timezone            string `mapstructure:"timezone"`
	Location            string `mapstructure:"location"`
	SystemRefreshPeriod int    `mapstructure:"system_refresh_period"`
	HistoryLimit        int    `mapstructure:"history_limit"`
}

// GenerationConfig holds deadlines for backend calls.
type GenerationConfig struct {
	Timeout    time.Duration `mapstructure:"timeout"`
	SlowFactor float64       `mapstructure:"slow_factor"`
	Retry      RetryConfig   `mapstructure:"retry"`
}

// RetryConfig controls the background retry after a degraded reply.
type RetryConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Attempts int           `mapstructure:"attempts"`
	Backoff  time.Duration `mapstructure:"backoff"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// LLMConfig lists the backends in the order they are tried.
type LLMConfig struct {
	Backends    []string        `mapstructure:"backends"`
	Model       string          `mapstructure:"model"`
	MaxTokens   int             `mapstructure:"max_tokens"`
	Temperature float64         `mapstructure:"temperature"`
	TopP        float64         `mapstructure:"top_p"`
	OpenAI      OpenAIConfig    `mapstructure:"openai"`
	Anthropic   AnthropicConfig `mapstructure:"anthropic"`
	MockDelay   time.Duration   `mapstructure:"mock_delay"`
}

// OpenAIConfig configures the OpenAI-compatible backend.
type OpenAIConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// AnthropicConfig configures the Anthropic backend.
type AnthropicConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

// StorageConfig selects the durable store.
type StorageConfig struct {
	Driver       string        `mapstructure:"driver"` // auto|none|sqlite|http
	SQLitePath   string        `mapstructure:"sqlite_path"`
	URL          string        `mapstructure:"url"`
	APIKey       string        `mapstructure:"api_key"`
	Timeout      time.Duration `mapstructure:"timeout"`
	SaveInterval time.Duration `mapstructure:"save_interval"`
}

// WorkersConfig sizes the background worker pool.
type WorkersConfig struct {
	Size  int `mapstructure:"size"`
	Queue int `mapstructure:"queue"`
}

// ClassifierConfig points at an optional replacement rego policy.
type ClassifierConfig struct {
	PolicyPath string `mapstructure:"policy_path"`
}

// WebSocketConfig holds /ws connection settings.
type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
}

// Storage drivers.
const (
	StorageAuto   = "auto"
	StorageNone   = "none"
	StorageSQLite = "sqlite"
	StorageHTTP   = "http"
)

// Backend names.
const (
	BackendOpenAI    = "openai"
	BackendAnthropic = "anthropic"
	BackendMock      = "mock"
)

// ModeMock swaps every backend for the mock backend.
const ModeMock = "MOCK"

// legacyEnv maps environment names used by earlier deployments onto keys.
var legacyEnv = map[string]string{
	"engine.max_messages":       "MAX_MESSAGES",
	"engine.max_input_messages": "MAX_INPUT_MESSAGES",
	"engine.timezone":           "VIETNAM_TZ",
	"llm.model":                 "MODEL_NAME",
	"llm.openai.api_key":        "OPENAI_API_KEY",
	"llm.openai.base_url":       "OPENAI_BASE_URL",
	"llm.anthropic.api_key":     "ANTHROPIC_API_KEY",
	"storage.url":               "STORAGE_API_URL",
	"storage.api_key":           "STORAGE_API_KEY",
	"server.port":               "PORT",
	"mode":                      "GOGO_MODE",
}

// legacySecondsEnv holds legacy durations expressed as plain seconds.
var legacySecondsEnv = map[string]string{
	"generation.timeout":    "API_CALL_TIMEOUT",
	"storage.save_interval": "SAVE_INTERVAL",
}

// Load reads configuration. configPath may be empty, in which case a
// config.yaml in the working directory is used when present.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.AutomaticEnv()
	// Replace dots with underscores in env var names e.g. engine.max_messages becomes ENGINE_MAX_MESSAGES
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	for key, env := range legacySecondsEnv {
		raw, ok := os.LookupEnv(env)
		if !ok || raw == "" {
			continue
		}
		secs, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", env, err)
		}
		v.Set(key, time.Duration(secs*float64(time.Second)))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "")

	v.SetDefault("server.port", 5000)
	v.SetDefault("server.rpc_addr", "")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("engine.max_messages", 80)
	v.SetDefault("engine.max_input_messages", 3)
	v.SetDefault("engine.max_input_length", 1500)
	v.SetDefault("engine.timezone", "Asia/Ho_Chi_Minh")
	v.SetDefault("engine.location", "Khánh Hòa, Việt Nam")
	v.SetDefault("engine.system_refresh_period", 5)
	v.SetDefault("engine.history_limit", 30)

	v.SetDefault("generation.timeout", "15s")
	v.SetDefault("generation.slow_factor", 1.3)
	v.SetDefault("generation.retry.enabled", true)
	v.SetDefault("generation.retry.attempts", 1)
	v.SetDefault("generation.retry.backoff", "200ms")
	v.SetDefault("generation.retry.timeout", "30s")

	v.SetDefault("llm.backends", []string{BackendOpenAI})
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.max_tokens", 600)
	v.SetDefault("llm.temperature", 0.5)
	v.SetDefault("llm.top_p", 0.9)
	v.SetDefault("llm.openai.base_url", "https://api.openai.com")
	v.SetDefault("llm.openai.api_key", "")
	v.SetDefault("llm.anthropic.base_url", "")
	v.SetDefault("llm.anthropic.api_key", "")
	v.SetDefault("llm.anthropic.model", "claude-3-5-haiku-latest")
	v.SetDefault("llm.mock_delay", "0s")

	v.SetDefault("storage.driver", StorageAuto)
	v.SetDefault("storage.sqlite_path", "chatengine.db")
	v.SetDefault("storage.url", "")
	v.SetDefault("storage.api_key", "")
	v.SetDefault("storage.timeout", "2s")
	v.SetDefault("storage.save_interval", "3s")

	v.SetDefault("workers.size", 3)
	v.SetDefault("workers.queue", 64)

	v.SetDefault("classifier.policy_path", "")

	v.SetDefault("ws.ping_interval", "30s")
	v.SetDefault("ws.write_timeout", "10s")
	v.SetDefault("ws.read_timeout", "60s")
	v.SetDefault("ws.max_message_size", 65536)
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Engine.MaxMessages < 1 {
		errs = append(errs, fmt.Errorf("engine.max_messages must be >= 1, got %d", c.Engine.MaxMessages))
	}
	if c.Engine.MaxInputMessages < 0 {
		errs = append(errs, fmt.Errorf("engine.max_input_messages must be >= 0, got %d", c.Engine.MaxInputMessages))
	}
	if c.Engine.MaxInputLength < 1 {
		errs = append(errs, fmt.Errorf("engine.max_input_length must be >= 1, got %d", c.Engine.MaxInputLength))
	}
	if c.Generation.Timeout <= 0 {
		errs = append(errs, errors.New("generation.timeout must be positive"))
	}
	if c.Generation.Retry.Enabled && c.Generation.Retry.Timeout <= 0 {
		errs = append(errs, errors.New("generation.retry.timeout must be positive"))
	}
	if c.Storage.Timeout <= 0 {
		errs = append(errs, errors.New("storage.timeout must be positive"))
	}
	switch c.Storage.Driver {
	case StorageAuto, StorageNone, StorageSQLite:
	case StorageHTTP:
		if c.Storage.URL == "" {
			errs = append(errs, errors.New("storage.url is required for the http driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}
	if len(c.LLM.Backends) == 0 {
		errs = append(errs, errors.New("llm.backends must list at least one backend"))
	}
	for _, name := range c.LLM.Backends {
		switch name {
		case BackendOpenAI, BackendAnthropic, BackendMock:
		default:
			errs = append(errs, fmt.Errorf("unknown backend %q", name))
		}
	}
	if c.Workers.Size < 1 {
		errs = append(errs, fmt.Errorf("workers.size must be >= 1, got %d", c.Workers.Size))
	}
	if c.WebSocket.PingInterval <= 0 || c.WebSocket.PingInterval >= c.WebSocket.ReadTimeout {
		errs = append(errs, errors.New("ws.ping_interval must be positive and shorter than ws.read_timeout"))
	}
	return errors.Join(errs...)
}

// StorageDriver resolves the auto driver: the HTTP store when a URL is set,
// otherwise no durable store.
func (c *Config) StorageDriver() string {
	if c.Storage.Driver != StorageAuto {
		return c.Storage.Driver
	}
	if c.Storage.URL != "" {
		return StorageHTTP
	}
	return StorageNone
}

// MockMode reports whether GOGO_MODE asks for the mock backend.
func (c *Config) MockMode() bool {
	return strings.EqualFold(c.Mode, ModeMock)
}
