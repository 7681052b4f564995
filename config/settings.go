// Package config provides application settings loaded from environment variables.
//
// Settings are created via New() which handles:
// - Environment variable parsing with validation
// - Default value application
// - Provider-specific configuration lookup

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Settings holds all application configuration.
type Settings struct {
	LLM       LLMConfig
	WebSearch WebSearchConfig
}

// LLMConfig holds provider configuration for one family.
type LLMConfig struct {
	Provider        string
	Model           string
	MaxTokens       int
	ContextCount    int
	MaxToolRounds   int
	ReasoningEffort string
	StreamOutput    bool
	Temperature     float64
}

// WebSearchConfig holds search augmentation configuration.
type WebSearchConfig struct {
	// Endpoint is the SearxNG base URL. Empty disables web search.
	Endpoint   string
	MaxResults int
	// Enhanced asks the model to classify the need for search first.
	Enhanced bool
}

// providerInfo holds configuration for a specific LLM provider family.
type providerInfo struct {
	modelEnv     string
	defaultModel string
	apiKeyEnv    string
	baseURLEnv   string
}

// Supported provider families and their configuration.
var providers = map[string]providerInfo{
	"openai":     {"OPENAI_MODEL", "gpt-4o", "OPENAI_API_KEY", "OPENAI_BASE_URL"},
	"anthropic":  {"ANTHROPIC_MODEL", "claude-sonnet-4-20250514", "ANTHROPIC_API_KEY", "ANTHROPIC_BASE_URL"},
	"gemini":     {"GEMINI_MODEL", "gemini-2.5-flash", "GEMINI_API_KEY", "GEMINI_BASE_URL"},
	"openrouter": {"OPENROUTER_MODEL", "openai/gpt-4o", "OPENROUTER_API_KEY", "OPENROUTER_BASE_URL"},
	"deepseek":   {"DEEPSEEK_MODEL", "deepseek-chat", "DEEPSEEK_API_KEY", "DEEPSEEK_BASE_URL"},
	"zhipu":      {"ZHIPU_MODEL", "glm-4-plus", "ZHIPU_API_KEY", "ZHIPU_BASE_URL"},
	"hunyuan":    {"HUNYUAN_MODEL", "hunyuan-turbo", "HUNYUAN_API_KEY", "HUNYUAN_BASE_URL"},
}

// Provider aliases map to canonical names.
var providerAliases = map[string]string{
	"claude": "anthropic",
	"google": "gemini",
	"gpt":    "openai",
	"glm":    "zhipu",
}

// New creates settings for the specified provider family, loading values
// from environment variables. Returns an error if the provider is unknown
// or environment variables contain invalid values.
func New(provider string) (Settings, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return Settings{}, err
	}

	maxTokens, err := getEnvInt("LLM_MAX_TOKENS", 4096)
	if err != nil {
		return Settings{}, err
	}

	contextCount, err := getEnvInt("LLM_CONTEXT_COUNT", 20)
	if err != nil {
		return Settings{}, err
	}

	maxToolRounds, err := getEnvInt("LLM_MAX_TOOL_ROUNDS", 20)
	if err != nil {
		return Settings{}, err
	}

	temperature, err := getEnvFloat64("LLM_TEMPERATURE", 0.7)
	if err != nil {
		return Settings{}, err
	}

	searchMaxResults, err := getEnvInt("WEB_SEARCH_MAX_RESULTS", 5)
	if err != nil {
		return Settings{}, err
	}

	model := os.Getenv(info.modelEnv)
	if model == "" {
		model = info.defaultModel
	}

	return Settings{
		LLM: LLMConfig{
			Provider:        provider,
			Model:           model,
			MaxTokens:       maxTokens,
			ContextCount:    contextCount,
			MaxToolRounds:   maxToolRounds,
			ReasoningEffort: os.Getenv("LLM_REASONING_EFFORT"),
			StreamOutput:    getEnvBool("LLM_STREAM", true),
			Temperature:     temperature,
		},
		WebSearch: WebSearchConfig{
			Endpoint:   os.Getenv("WEB_SEARCH_ENDPOINT"),
			MaxResults: searchMaxResults,
			Enhanced:   getEnvBool("WEB_SEARCH_ENHANCED", false),
		},
	}, nil
}

// MustNew creates settings for the specified provider family.
// Panics if the provider is unknown or environment variables are invalid.
// Use this only when configuration errors should be fatal.
func MustNew(provider string) Settings {
	settings, err := New(provider)
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return settings
}

// normalizeProvider converts provider aliases to canonical names.
func normalizeProvider(provider string) string {
	provider = strings.ToLower(provider)
	if canonical, ok := providerAliases[provider]; ok {
		return canonical
	}
	return provider
}

// getProviderInfo returns configuration for a provider family.
func getProviderInfo(provider string) (providerInfo, error) {
	info, ok := providers[provider]
	if !ok {
		return providerInfo{}, fmt.Errorf("unknown provider: %q", provider)
	}
	return info, nil
}

// APIKeyFor returns the API key for a provider from environment variables.
func APIKeyFor(provider string) (string, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return "", err
	}

	key := os.Getenv(info.apiKeyEnv)
	if key == "" {
		return "", fmt.Errorf("%s environment variable not set", info.apiKeyEnv)
	}
	return key, nil
}

// BaseURLFor returns the endpoint override for a provider, empty when the
// family default applies.
func BaseURLFor(provider string) string {
	provider = normalizeProvider(provider)
	info, ok := providers[provider]
	if !ok {
		return ""
	}
	return os.Getenv(info.baseURLEnv)
}

// ModelFor returns the model for a provider, checking environment first.
func ModelFor(provider string) (string, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return "", err
	}

	if val := os.Getenv(info.modelEnv); val != "" {
		return val, nil
	}
	return info.defaultModel, nil
}

// SupportedProviders returns the list of supported provider family names.
func SupportedProviders() []string {
	result := make([]string, 0, len(providers))
	for name := range providers {
		result = append(result, name)
	}
	return result
}

// Environment variable helpers with proper error handling

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvFloat64(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return f, nil
}

func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}
