package config

import (
	"fmt"
	"time"

	"github.com/mfenderov/recaplet/internal/llm"
	"github.com/mfenderov/recaplet/pkg/models"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Feeds      []models.FeedSource `mapstructure:"feeds"`
	FeedsFile  string              `mapstructure:"feeds_file"`
	Pipeline   Pipeline            `mapstructure:"pipeline"`
	Summarizer Summarizer          `mapstructure:"summarizer"`
	Fetcher    Fetcher             `mapstructure:"fetcher"`
	Output     Output              `mapstructure:"output"`
	Storage    Storage             `mapstructure:"storage"`
	Metrics    Metrics             `mapstructure:"metrics"`
	MCP        MCP                 `mapstructure:"mcp"`
}

// Pipeline holds aggregation limits.
type Pipeline struct {
	ItemsPerFeed    int           `mapstructure:"items_per_feed"`
	MaxItems        int           `mapstructure:"max_items"`
	MaxContentChars int           `mapstructure:"max_content_chars"`
	MinContentChars int           `mapstructure:"min_content_chars"`
	SummaryDelay    time.Duration `mapstructure:"summary_delay"`
}

// Summarizer holds language model configuration.
type Summarizer struct {
	Provider   string `mapstructure:"provider"`
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"`
	Endpoint   string `mapstructure:"endpoint"`
	APIVersion string `mapstructure:"api_version"`
	SocketPath string `mapstructure:"socket_path"`
	BaseURL    string `mapstructure:"base_url"`
	Language   string `mapstructure:"language"`
	MaxChars   int    `mapstructure:"max_chars"`
	MaxTokens  int    `mapstructure:"max_tokens"`
}

// Fetcher holds feed and web page fetching configuration.
type Fetcher struct {
	Retries     int           `mapstructure:"retries"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Backoff     time.Duration `mapstructure:"backoff"`
	UserAgent   string        `mapstructure:"user_agent"`
	MaxBodySize int           `mapstructure:"max_body_size"`
	FeedTimeout time.Duration `mapstructure:"feed_timeout"`
}

// Output holds the local document locations.
type Output struct {
	Path       string `mapstructure:"path"`
	MirrorPath string `mapstructure:"mirror_path"`
}

// Storage holds S3/MinIO mirror configuration. The mirror is disabled
// while Endpoint is empty.
type Storage struct {
	Endpoint        string `mapstructure:"endpoint"`
	Bucket          string `mapstructure:"bucket"`
	Key             string `mapstructure:"key"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// Metrics holds Pushgateway configuration.
type Metrics struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// MCP holds MCP server configuration.
type MCP struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Pipeline: Pipeline{
			ItemsPerFeed:    10,
			MaxItems:        1000,
			MaxContentChars: models.MaxHashedChars,
			MinContentChars: 50,
		},
		Summarizer: Summarizer{
			Provider:   llm.ProviderOpenAI,
			Model:      "gpt-4o-mini",
			APIVersion: "2024-10-21",
			Language:   "Japanese",
			MaxChars:   200,
			MaxTokens:  512,
		},
		Fetcher: Fetcher{
			Retries:     3,
			Timeout:     10 * time.Second,
			Backoff:     1 * time.Second,
			UserAgent:   "Mozilla/5.0 (compatible; RecapletBot/1.0)",
			MaxBodySize: 5 << 20,
			FeedTimeout: 30 * time.Second,
		},
		Output: Output{
			Path:       "data/news.json",
			MirrorPath: "public/data/news.json",
		},
		Storage: Storage{
			Bucket: "recaplet",
			Key:    "news.json",
		},
		Metrics: Metrics{
			Job: "recaplet",
		},
		MCP: MCP{
			Name:    "recaplet",
			Version: "1.0.0",
		},
	}
}

// LoadFeeds appends the sources listed in FeedsFile, if set, to Feeds.
func (c *Config) LoadFeeds() error {
	if c.FeedsFile == "" {
		return nil
	}
	feeds, err := LoadFeedsFile(c.FeedsFile)
	if err != nil {
		return err
	}
	c.Feeds = append(c.Feeds, feeds...)
	return nil
}

// LoadFeedsFile reads a JSON document of the form {"feeds":[{"name":..,"url":..}]}.
func LoadFeedsFile(path string) ([]models.FeedSource, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read feeds file: %w", err)
	}

	var doc struct {
		Feeds []models.FeedSource `mapstructure:"feeds"`
	}
	if err := v.Unmarshal(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse feeds file: %w", err)
	}

	for i, feed := range doc.Feeds {
		if feed.Name == "" || feed.URL == "" {
			return nil, fmt.Errorf("feeds file entry %d needs both name and url", i)
		}
	}
	return doc.Feeds, nil
}

// Validate reports the first configuration problem that would make a run fail.
func (c Config) Validate() error {
	if len(c.Feeds) == 0 {
		return fmt.Errorf("no feed sources configured")
	}
	for i, feed := range c.Feeds {
		if feed.Name == "" || feed.URL == "" {
			return fmt.Errorf("feed %d needs both name and url", i)
		}
	}

	if c.Pipeline.ItemsPerFeed <= 0 {
		return fmt.Errorf("pipeline.items_per_feed must be positive")
	}
	if c.Pipeline.MaxItems <= 0 {
		return fmt.Errorf("pipeline.max_items must be positive")
	}
	if c.Pipeline.MaxContentChars <= 0 {
		return fmt.Errorf("pipeline.max_content_chars must be positive")
	}
	if c.Pipeline.MinContentChars <= 0 {
		return fmt.Errorf("pipeline.min_content_chars must be positive")
	}
	if c.Output.Path == "" {
		return fmt.Errorf("output.path is required")
	}

	return c.Summarizer.Validate()
}

// Validate checks that the selected provider has its credentials.
func (s Summarizer) Validate() error {
	switch s.Provider {
	case llm.ProviderOpenAI, "":
		if s.APIKey == "" {
			return fmt.Errorf("summarizer.api_key is required for provider openai")
		}
	case llm.ProviderAzure:
		if s.APIKey == "" {
			return fmt.Errorf("summarizer.api_key is required for provider azure")
		}
		if s.Endpoint == "" {
			return fmt.Errorf("summarizer.endpoint is required for provider azure")
		}
		if s.Model == "" {
			return fmt.Errorf("summarizer.model (deployment name) is required for provider azure")
		}
	case llm.ProviderDMR:
		if s.SocketPath == "" && s.BaseURL == "" {
			return fmt.Errorf("summarizer.socket_path or summarizer.base_url is required for provider dmr")
		}
	default:
		return fmt.Errorf("unknown summarizer provider %q", s.Provider)
	}
	if s.MaxChars <= 0 {
		return fmt.Errorf("summarizer.max_chars must be positive")
	}
	return nil
}

// LLMConfig converts the summarizer section into an llm.Config.
func (s Summarizer) LLMConfig() llm.Config {
	return llm.Config{
		Provider:   s.Provider,
		Model:      s.Model,
		APIKey:     s.APIKey,
		Endpoint:   s.Endpoint,
		APIVersion: s.APIVersion,
		BaseURL:    s.BaseURL,
		SocketPath: s.SocketPath,
		MaxTokens:  s.MaxTokens,
	}
}
