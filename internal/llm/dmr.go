package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
)

// dmrSocketURL is the llama.cpp engine endpoint exposed over the Docker
// Model Runner socket. The host part is ignored by the unix dialer.
const dmrSocketURL = "http://localhost/exp/vDD4.40/engines/llama.cpp/v1/chat/completions"

// DMRClient wraps the Docker Model Runner chat completions API.
type DMRClient struct {
	httpClient *http.Client
	endpoint   string
	model      string
	maxTokens  int
}

// NewDMR creates a Docker Model Runner client. It dials SocketPath, or
// BaseURL over TCP when no socket is configured.
func NewDMR(config Config) (*DMRClient, error) {
	if config.SocketPath == "" && config.BaseURL == "" {
		return nil, fmt.Errorf("socket path or base URL is required")
	}
	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	if config.SocketPath == "" {
		return &DMRClient{
			httpClient: &http.Client{},
			endpoint:   strings.TrimRight(config.BaseURL, "/") + "/chat/completions",
			model:      config.Model,
			maxTokens:  config.MaxTokens,
		}, nil
	}

	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", config.SocketPath)
		},
	}

	return &DMRClient{
		httpClient: &http.Client{Transport: transport},
		endpoint:   dmrSocketURL,
		model:      config.Model,
		maxTokens:  config.MaxTokens,
	}, nil
}

// chatRequest is the request payload for the chat completions API.
type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the response from the chat completions API.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
		TotalTokens      int64 `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Name returns the provider name.
func (c *DMRClient) Name() string {
	return ProviderDMR
}

// Complete sends a prompt to the model and returns the response.
func (c *DMRClient) Complete(ctx context.Context, prompt string) (Completion, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		MaxTokens: c.maxTokens,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Completion{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Completion{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Completion{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Completion{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Completion{}, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return Completion{}, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if chatResp.Error != nil {
		return Completion{}, fmt.Errorf("API error: %s", chatResp.Error.Message)
	}

	if len(chatResp.Choices) == 0 {
		return Completion{}, fmt.Errorf("no response returned")
	}

	return Completion{
		Text: strings.TrimSpace(chatResp.Choices[0].Message.Content),
		Usage: Usage{
			InputTokens:  chatResp.Usage.PromptTokens,
			OutputTokens: chatResp.Usage.CompletionTokens,
			TotalTokens:  chatResp.Usage.TotalTokens,
		},
	}, nil
}
