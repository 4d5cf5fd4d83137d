package llm

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
)

const completionJSON = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"created": 1733300000,
	"model": "test-model",
	"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "  A short summary.  "}}],
	"usage": {"prompt_tokens": 120, "completion_tokens": 30, "total_tokens": 150}
}`

// chatServer records the decoded request and answers with completionJSON.
func chatServer(t *testing.T, got *chatRequest) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(got); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionJSON))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNew_SelectsProvider(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		wantName string
		wantErr  bool
	}{
		{"openai", Config{Provider: "openai", APIKey: "k", Model: "m"}, ProviderOpenAI, false},
		{"default is openai", Config{APIKey: "k", Model: "m"}, ProviderOpenAI, false},
		{"azure", Config{Provider: "azure", APIKey: "k", Model: "d", Endpoint: "https://x.openai.azure.com", APIVersion: "2024-10-21"}, ProviderAzure, false},
		{"dmr", Config{Provider: "dmr", SocketPath: "/tmp/dmr.sock", Model: "ai/gemma3"}, ProviderDMR, false},
		{"unknown", Config{Provider: "bard"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.config)
			if tt.wantErr {
				if err == nil {
					t.Fatal("New() should fail")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if p.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", p.Name(), tt.wantName)
			}
		})
	}
}

func TestNew_ValidatesRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{"openai missing key", Config{Provider: "openai", Model: "m"}, "API key is required"},
		{"openai missing model", Config{Provider: "openai", APIKey: "k"}, "model is required"},
		{"azure missing endpoint", Config{Provider: "azure", APIKey: "k", Model: "d", APIVersion: "v"}, "endpoint is required"},
		{"azure missing deployment", Config{Provider: "azure", APIKey: "k", Endpoint: "e", APIVersion: "v"}, "deployment name is required"},
		{"azure missing version", Config{Provider: "azure", APIKey: "k", Endpoint: "e", Model: "d"}, "API version is required"},
		{"dmr missing socket", Config{Provider: "dmr", Model: "m"}, "socket path or base URL is required"},
		{"dmr missing model", Config{Provider: "dmr", SocketPath: "/tmp/x.sock"}, "model is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.config)
			if err == nil {
				t.Fatal("New() should fail")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestOpenAIClient_Complete(t *testing.T) {
	var got chatRequest
	server := chatServer(t, &got)

	client, err := NewOpenAI(Config{APIKey: "test-key", Model: "gpt-4o-mini", BaseURL: server.URL + "/v1/", MaxTokens: 64})
	if err != nil {
		t.Fatalf("NewOpenAI() error = %v", err)
	}

	completion, err := client.Complete(t.Context(), "Summarize this")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if completion.Text != "A short summary." {
		t.Errorf("Text = %q, want trimmed summary", completion.Text)
	}
	want := Usage{InputTokens: 120, OutputTokens: 30, TotalTokens: 150}
	if completion.Usage != want {
		t.Errorf("Usage = %+v, want %+v", completion.Usage, want)
	}
	if got.Model != "gpt-4o-mini" {
		t.Errorf("request model = %q", got.Model)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" || got.Messages[0].Content != "Summarize this" {
		t.Errorf("unexpected messages: %+v", got.Messages)
	}
	if got.MaxTokens != 64 {
		t.Errorf("max_tokens = %d, want 64", got.MaxTokens)
	}
}

func TestOpenAIClient_CompleteAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"message": "bad request", "type": "invalid_request_error"}}`))
	}))
	defer server.Close()

	client, err := NewOpenAI(Config{APIKey: "k", Model: "m", BaseURL: server.URL + "/v1/"})
	if err != nil {
		t.Fatalf("NewOpenAI() error = %v", err)
	}

	if _, err := client.Complete(t.Context(), "prompt"); err == nil {
		t.Error("Complete() should fail on API error")
	}
}

func TestDMRClient_CompleteOverHTTP(t *testing.T) {
	var got chatRequest
	server := chatServer(t, &got)

	client, err := NewDMR(Config{BaseURL: server.URL + "/engines/v1/", Model: "ai/gemma3"})
	if err != nil {
		t.Fatalf("NewDMR() error = %v", err)
	}

	completion, err := client.Complete(t.Context(), "hello")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if completion.Text != "A short summary." {
		t.Errorf("Text = %q", completion.Text)
	}
	if completion.Usage.TotalTokens != 150 {
		t.Errorf("TotalTokens = %d, want 150", completion.Usage.TotalTokens)
	}
	if got.MaxTokens != 0 {
		t.Errorf("max_tokens should be omitted, got %d", got.MaxTokens)
	}
}

func TestDMRClient_CompleteOverSocket(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "dmr.sock")
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Skipf("unix sockets not available: %v", err)
	}

	var got chatRequest
	server := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(completionJSON))
	}))
	server.Listener = listener
	server.Start()
	defer server.Close()

	client, err := NewDMR(Config{SocketPath: socketPath, Model: "ai/gemma3"})
	if err != nil {
		t.Fatalf("NewDMR() error = %v", err)
	}

	completion, err := client.Complete(t.Context(), "hello")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if completion.Text != "A short summary." {
		t.Errorf("Text = %q", completion.Text)
	}
	if got.Model != "ai/gemma3" {
		t.Errorf("request model = %q", got.Model)
	}
}

func TestDMRClient_CompleteErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"http error", http.StatusInternalServerError, "boom", "status 500"},
		{"api error body", http.StatusOK, `{"error": {"message": "model not loaded"}}`, "model not loaded"},
		{"no choices", http.StatusOK, `{"choices": []}`, "no response returned"},
		{"invalid json", http.StatusOK, `not json`, "failed to unmarshal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, err := NewDMR(Config{BaseURL: server.URL, Model: "m"})
			if err != nil {
				t.Fatalf("NewDMR() error = %v", err)
			}

			_, err = client.Complete(t.Context(), "hello")
			if err == nil {
				t.Fatal("Complete() should fail")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestUsage_Add(t *testing.T) {
	var total Usage
	total.Add(Usage{InputTokens: 10, OutputTokens: 2, TotalTokens: 12})
	total.Add(Usage{InputTokens: 5, OutputTokens: 1, TotalTokens: 6})

	want := Usage{InputTokens: 15, OutputTokens: 3, TotalTokens: 18}
	if total != want {
		t.Errorf("Usage = %+v, want %+v", total, want)
	}
}
