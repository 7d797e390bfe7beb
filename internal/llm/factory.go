package llm

import (
	"fmt"
	"os"
)

// RemoteProviders lists every supported remote provider identifier.
// The "local" responder is not listed here; it is not a network provider.
var RemoteProviders = []string{"openai", "deepseek", "gemini", "openrouter"}

// NewProvider creates a remote provider by name.
func NewProvider(name string, cfg *ProviderConfig) (Provider, error) {
	switch name {
	case "openai":
		return NewOpenAIProvider(cfg), nil
	case "deepseek":
		return NewDeepSeekProvider(cfg), nil
	case "gemini":
		return NewGeminiProvider(cfg), nil
	case "openrouter":
		return NewOpenRouterProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
}

// APIKeyFromEnv retrieves the API key from conventional environment
// variables, used when the config file carries no key for a provider.
func APIKeyFromEnv(name string) string {
	envVars := map[string]string{
		"openai":     "OPENAI_API_KEY",
		"deepseek":   "DEEPSEEK_API_KEY",
		"gemini":     "GEMINI_API_KEY",
		"openrouter": "OPENROUTER_API_KEY",
	}
	if envVar, ok := envVars[name]; ok {
		return os.Getenv(envVar)
	}
	return ""
}
