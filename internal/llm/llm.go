package llm

import (
	"context"
	"fmt"
)

// Supported providers.
const (
	ProviderOpenAI = "openai"
	ProviderAzure  = "azure"
	ProviderDMR    = "dmr"
)

// Config holds LLM client configuration.
type Config struct {
	Provider   string // openai, azure or dmr
	Model      string // model name, or deployment name on Azure
	APIKey     string
	Endpoint   string // Azure resource endpoint
	APIVersion string // Azure API version
	BaseURL    string // OpenAI-compatible base URL override
	SocketPath string // Unix socket path for Docker Model Runner
	MaxTokens  int    // 0 means no limit
}

// Usage reports token consumption of a single completion.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}

// Add accumulates other into u.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
}

// Completion is the text returned by a provider along with its usage.
type Completion struct {
	Text  string
	Usage Usage
}

// Provider sends a single-turn prompt to a language model.
type Provider interface {
	Name() string
	Complete(ctx context.Context, prompt string) (Completion, error)
}

// New creates the provider selected by config.Provider.
func New(config Config) (Provider, error) {
	switch config.Provider {
	case ProviderOpenAI, "":
		return NewOpenAI(config)
	case ProviderAzure:
		return NewAzure(config)
	case ProviderDMR:
		return NewDMR(config)
	default:
		return nil, fmt.Errorf("unknown provider %q", config.Provider)
	}
}
