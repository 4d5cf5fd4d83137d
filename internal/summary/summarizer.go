package summary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mfenderov/recaplet/internal/llm"
	"golang.org/x/time/rate"
)

// ErrEmptySummary is returned when the model answers with no text.
var ErrEmptySummary = errors.New("model returned an empty summary")

// Config holds summarizer configuration.
type Config struct {
	Language string        // natural language of the summary
	MaxChars int           // upper bound requested in the prompt
	Delay    time.Duration // minimum spacing between model calls, 0 disables pacing
}

// Summarizer turns article text into a short summary using an LLM provider.
// Calls are paced so that consecutive requests are at least Delay apart.
type Summarizer struct {
	provider llm.Provider
	config   Config
	limiter  *rate.Limiter
}

// New creates a Summarizer backed by provider.
func New(provider llm.Provider, config Config) (*Summarizer, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if config.Language == "" {
		config.Language = "Japanese"
	}
	if config.MaxChars <= 0 {
		config.MaxChars = 200
	}

	limit := rate.Inf
	if config.Delay > 0 {
		limit = rate.Every(config.Delay)
	}

	return &Summarizer{
		provider: provider,
		config:   config,
		limiter:  rate.NewLimiter(limit, 1),
	}, nil
}

// Summarize waits for its pacing slot, then asks the model for a summary.
func (s *Summarizer) Summarize(ctx context.Context, text string) (string, llm.Usage, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", llm.Usage{}, fmt.Errorf("rate limit wait: %w", err)
	}

	prompt := BuildPrompt(s.config.Language, s.config.MaxChars, text)

	start := time.Now()
	completion, err := s.provider.Complete(ctx, prompt)
	if err != nil {
		return "", llm.Usage{}, fmt.Errorf("failed to summarize: %w", err)
	}

	slog.Debug("summarized article",
		"provider", s.provider.Name(),
		"input_tokens", completion.Usage.InputTokens,
		"output_tokens", completion.Usage.OutputTokens,
		"duration", time.Since(start))

	if completion.Text == "" {
		return "", completion.Usage, ErrEmptySummary
	}
	return completion.Text, completion.Usage, nil
}

// BuildPrompt returns the instruction asking for a summary of at most
// maxChars characters in language, followed by the article text.
func BuildPrompt(language string, maxChars int, text string) string {
	if language == "Japanese" {
		return fmt.Sprintf("以下の記事を%d文字以内の日本語で要約してください:\n\n%s", maxChars, text)
	}
	return fmt.Sprintf("Summarize the following article in %s in at most %d characters:\n\n%s", language, maxChars, text)
}
