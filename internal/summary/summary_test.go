package summary

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mfenderov/recaplet/internal/llm"
	"github.com/mfenderov/recaplet/pkg/models"
)

type fakeProvider struct {
	text    string
	err     error
	prompts []string
	times   []time.Time
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(ctx context.Context, prompt string) (llm.Completion, error) {
	f.prompts = append(f.prompts, prompt)
	f.times = append(f.times, time.Now())
	if f.err != nil {
		return llm.Completion{}, f.err
	}
	return llm.Completion{
		Text:  f.text,
		Usage: llm.Usage{InputTokens: 100, OutputTokens: 20, TotalTokens: 120},
	}, nil
}

func TestCache_SeededFromItems(t *testing.T) {
	items := []models.NewsItem{
		{ID: "1", Summary: "first", ContentHash: "aaa"},
		{ID: "2", Summary: "second", ContentHash: "bbb"},
		{ID: "3", Summary: "duplicate hash", ContentHash: "aaa"},
		{ID: "4", Summary: "legacy item without hash"},
		{ID: "5", ContentHash: "ccc"},
	}

	c := NewCache(items)

	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
	if s, ok := c.Lookup("aaa"); !ok || s != "first" {
		t.Errorf("Lookup(aaa) = %q, %v; want first, true", s, ok)
	}
	if _, ok := c.Lookup("ccc"); ok {
		t.Error("items without a summary should not be cached")
	}
	if _, ok := c.Lookup(""); ok {
		t.Error("empty hash should never match")
	}
}

func TestCache_Add(t *testing.T) {
	c := NewCache(nil)

	c.Add("hash", "summary")
	c.Add("", "ignored")
	c.Add("other", "")

	if s, ok := c.Lookup("hash"); !ok || s != "summary" {
		t.Errorf("Lookup(hash) = %q, %v", s, ok)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestBuildPrompt(t *testing.T) {
	tests := []struct {
		name     string
		language string
		maxChars int
		want     string
	}{
		{"japanese", "Japanese", 200, "以下の記事を200文字以内の日本語で要約してください:\n\narticle text"},
		{"english", "English", 150, "Summarize the following article in English in at most 150 characters:\n\narticle text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildPrompt(tt.language, tt.maxChars, "article text"); got != tt.want {
				t.Errorf("BuildPrompt() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSummarizer_Summarize(t *testing.T) {
	provider := &fakeProvider{text: "短い要約"}
	s, err := New(provider, Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	text, usage, err := s.Summarize(t.Context(), "body")
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if text != "短い要約" {
		t.Errorf("text = %q", text)
	}
	if usage.TotalTokens != 120 {
		t.Errorf("TotalTokens = %d, want 120", usage.TotalTokens)
	}
	if len(provider.prompts) != 1 || !strings.HasSuffix(provider.prompts[0], "\n\nbody") {
		t.Errorf("unexpected prompts: %q", provider.prompts)
	}
	if !strings.Contains(provider.prompts[0], "200文字以内") {
		t.Errorf("default prompt should ask for 200 Japanese characters, got %q", provider.prompts[0])
	}
}

func TestSummarizer_Errors(t *testing.T) {
	tests := []struct {
		name     string
		provider *fakeProvider
		wantErr  error
	}{
		{"provider failure", &fakeProvider{err: errors.New("quota exceeded")}, nil},
		{"empty text", &fakeProvider{text: ""}, ErrEmptySummary},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.provider, Config{})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			_, _, err = s.Summarize(t.Context(), "body")
			if err == nil {
				t.Fatal("Summarize() should fail")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSummarizer_PacesCalls(t *testing.T) {
	provider := &fakeProvider{text: "ok"}
	delay := 50 * time.Millisecond
	s, err := New(provider, Config{Delay: delay})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, _, err := s.Summarize(t.Context(), "body"); err != nil {
			t.Fatalf("Summarize() error = %v", err)
		}
	}

	for i := 1; i < len(provider.times); i++ {
		if gap := provider.times[i].Sub(provider.times[i-1]); gap < delay-10*time.Millisecond {
			t.Errorf("call %d came %v after the previous one, want at least %v", i, gap, delay)
		}
	}
}

func TestSummarizer_CancelledWhileWaiting(t *testing.T) {
	provider := &fakeProvider{text: "ok"}
	s, err := New(provider, Config{Delay: time.Hour})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// First call consumes the burst
	if _, _, err := s.Summarize(t.Context(), "body"); err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	if _, _, err := s.Summarize(ctx, "body"); err == nil {
		t.Error("Summarize() should fail when the context ends before the slot")
	}
	if len(provider.prompts) != 1 {
		t.Errorf("provider should be called once, got %d", len(provider.prompts))
	}
}

func TestNew_RequiresProvider(t *testing.T) {
	if _, err := New(nil, Config{}); err == nil {
		t.Error("New() should fail without a provider")
	}
}
