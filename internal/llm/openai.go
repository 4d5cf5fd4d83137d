package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/azure"
	"github.com/openai/openai-go/v2/option"
)

// OpenAIClient talks to the OpenAI chat completions API or an Azure OpenAI
// deployment.
type OpenAIClient struct {
	client    openai.Client
	name      string
	model     string
	maxTokens int
}

// NewOpenAI creates a client for api.openai.com, or for BaseURL when set.
func NewOpenAI(config Config) (*OpenAIClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &OpenAIClient{
		client:    openai.NewClient(opts...),
		name:      ProviderOpenAI,
		model:     config.Model,
		maxTokens: config.MaxTokens,
	}, nil
}

// NewAzure creates a client for an Azure OpenAI deployment. The model field
// carries the deployment name.
func NewAzure(config Config) (*OpenAIClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if config.Model == "" {
		return nil, fmt.Errorf("deployment name is required")
	}
	if config.APIVersion == "" {
		return nil, fmt.Errorf("API version is required")
	}

	client := openai.NewClient(
		azure.WithEndpoint(config.Endpoint, config.APIVersion),
		azure.WithAPIKey(config.APIKey),
	)

	return &OpenAIClient{
		client:    client,
		name:      ProviderAzure,
		model:     config.Model,
		maxTokens: config.MaxTokens,
	}, nil
}

// Name returns the provider name.
func (c *OpenAIClient) Name() string {
	return c.name
}

// Complete sends a prompt as a single user message.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (Completion, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(prompt),
					},
				},
			},
		},
	}
	if c.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.maxTokens))
	}

	response, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Completion{}, fmt.Errorf("%s request failed: %w", c.name, err)
	}

	if len(response.Choices) == 0 {
		return Completion{}, fmt.Errorf("no response from %s", c.name)
	}

	return Completion{
		Text: strings.TrimSpace(response.Choices[0].Message.Content),
		Usage: Usage{
			InputTokens:  response.Usage.PromptTokens,
			OutputTokens: response.Usage.CompletionTokens,
			TotalTokens:  response.Usage.TotalTokens,
		},
	}, nil
}
