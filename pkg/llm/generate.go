// Package llm wraps the external language-model "generate" collaborator.
//
// The engine never depends on a provider SDK: every consumer takes a
// GenerateFunc, and this package builds one for OpenAI, Anthropic or Ollama.
// Failure and timeout handling is the caller's responsibility — the
// consistency validator in particular treats any error as an Inconsistent
// verdict.
package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// GenerateFunc is the external generate(prompt, context) -> text service.
// The context argument carries supporting material (canon memories, a
// transcript) and may be empty.
type GenerateFunc func(ctx context.Context, prompt, contextText string) (string, error)

// Provider names accepted by NewGenerator.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// Config holds configuration for building a GenerateFunc.
type Config struct {
	// Provider is "openai", "anthropic" or "ollama".
	Provider string

	// Model overrides the provider default.
	Model string

	// APIKey is the explicit API key; environment variables are consulted
	// when empty (OPENAI_API_KEY / ANTHROPIC_API_KEY).
	APIKey string

	// BaseURL overrides the provider base URL.
	BaseURL string
}

// NewGenerator builds a GenerateFunc for the configured provider. With no
// API key available and a provider that needs one, it falls back to Ollama
// at localhost.
func NewGenerator(cfg Config) (GenerateFunc, error) {
	provider := strings.ToLower(cfg.Provider)
	model := cfg.Model

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = apiKeyFromEnv(provider)
	}

	if apiKey == "" && provider != ProviderOllama && provider != "" {
		provider = ProviderOllama
	}

	switch provider {
	case ProviderOpenAI, "":
		if model == "" {
			model = "gpt-4o-mini"
		}
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "https://api.openai.com"
		}
		return newOpenAIGenerator(apiKey, model, baseURL), nil

	case ProviderAnthropic:
		if model == "" {
			model = "claude-haiku-4-5-20251001"
		}
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "https://api.anthropic.com"
		}
		return newAnthropicGenerator(apiKey, model, baseURL), nil

	case ProviderOllama:
		if model == "" {
			model = "llama3.2"
		}
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return newOllamaGenerator(model, baseURL), nil

	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func apiKeyFromEnv(provider string) string {
	switch provider {
	case ProviderAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	case ProviderOpenAI, "":
		return os.Getenv("OPENAI_API_KEY")
	default:
		return ""
	}
}

// joinPrompt folds the supporting context into a single user message.
func joinPrompt(prompt, contextText string) string {
	if contextText == "" {
		return prompt
	}
	return prompt + "\n\n---\n" + contextText
}
