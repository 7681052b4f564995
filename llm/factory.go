// Provider factory - maps provider family ids to adapter implementations.
//
// Families sharing the OpenAI-compatible wire format (openrouter, deepseek,
// zhipu, hunyuan) reuse the OpenAI adapter with their own base URL.

package llm

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/richinex/relay/model"
)

// Config configures one vendor adapter.
type Config struct {
	// Provider is the family id: openai, anthropic, gemini, openrouter,
	// deepseek, zhipu, hunyuan.
	Provider string
	APIKey   string
	// BaseURL overrides the family default endpoint. Empty means the
	// vendor SDK default.
	BaseURL      string
	DefaultModel model.Model
	// MaxToolRounds bounds the tool-call loop; zero means DefaultMaxToolRounds.
	MaxToolRounds int
	// Tools executes parsed tool invocations; nil disables tool calling.
	Tools ToolCaller
	Log   zerolog.Logger
}

func (c Config) withDefaults() Config {
	if c.MaxToolRounds <= 0 {
		c.MaxToolRounds = DefaultMaxToolRounds
	}
	return c
}

// familyBaseURLs are the OpenAI-compatible endpoints per provider family.
var familyBaseURLs = map[string]string{
	"openai":     "",
	"openrouter": "https://openrouter.ai/api/v1",
	"deepseek":   "https://api.deepseek.com/v1",
	"zhipu":      "https://open.bigmodel.cn/api/paas/v4",
	"hunyuan":    "https://api.hunyuan.cloud.tencent.com/v1",
}

// NewProvider creates the adapter for the configured provider family.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicAdapter(cfg), nil
	case "gemini":
		return NewGeminiAdapter(cfg), nil
	default:
		base, ok := familyBaseURLs[cfg.Provider]
		if !ok {
			return nil, fmt.Errorf("unknown provider: %q", cfg.Provider)
		}
		if cfg.BaseURL == "" {
			cfg.BaseURL = base
		}
		return NewOpenAIAdapter(cfg), nil
	}
}

// ConfigSource supplies adapter configuration for a provider family.
type ConfigSource func(provider string) (Config, error)

// Factory creates and caches one adapter per provider family.
type Factory struct {
	mu        sync.Mutex
	source    ConfigSource
	providers map[string]Provider
}

// NewFactory creates a factory backed by the given configuration source.
func NewFactory(source ConfigSource) *Factory {
	return &Factory{
		source:    source,
		providers: make(map[string]Provider),
	}
}

// Provider returns the cached adapter for a family, creating it on first use.
func (f *Factory) Provider(family string) (Provider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if p, ok := f.providers[family]; ok {
		return p, nil
	}

	cfg, err := f.source(family)
	if err != nil {
		return nil, err
	}
	p, err := NewProvider(cfg)
	if err != nil {
		return nil, err
	}
	f.providers[family] = p
	return p, nil
}
