package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/mfenderov/recaplet/internal/config"
	"github.com/mfenderov/recaplet/internal/feed"
	"github.com/mfenderov/recaplet/internal/llm"
	"github.com/mfenderov/recaplet/internal/metrics"
	"github.com/mfenderov/recaplet/internal/pipeline"
	"github.com/mfenderov/recaplet/internal/scraper"
	"github.com/mfenderov/recaplet/internal/storage"
	"github.com/mfenderov/recaplet/internal/summary"
	"github.com/mfenderov/recaplet/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	generateSource string
	itemsPerFeed   int
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Fetch feeds and update the news document",
	Long: `Fetch all configured feeds, summarize articles that have not been
summarized before, and write the merged, newest-first news document.

Examples:
  # Process all configured feeds
  recaplet generate

  # Process a single feed by name
  recaplet generate --source "Go Blog"

  # Read only the first 5 items of each feed
  recaplet generate --items-per-feed 5`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVar(&generateSource, "source", "", "Feed name from config to process")
	generateCmd.Flags().IntVar(&itemsPerFeed, "items-per-feed", 0, "Items read from the top of each feed (overrides config)")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()
	if itemsPerFeed > 0 {
		cfg.Pipeline.ItemsPerFeed = itemsPerFeed
	}
	if err := cfg.LoadFeeds(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	sources, err := selectSources(cfg.Feeds, generateSource)
	if err != nil {
		return err
	}
	slog.Debug("generate command starting", "sources", len(sources), "provider", cfg.Summarizer.Provider)

	provider, err := llm.New(cfg.Summarizer.LLMConfig())
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}

	summarizer, err := summary.New(provider, summary.Config{
		Language: cfg.Summarizer.Language,
		MaxChars: cfg.Summarizer.MaxChars,
		Delay:    cfg.Pipeline.SummaryDelay,
	})
	if err != nil {
		return fmt.Errorf("failed to create summarizer: %w", err)
	}

	store, err := newStore(ctx, &cfg, true)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	p, err := pipeline.New(pipeline.Config{
		Sources:         sources,
		ItemsPerFeed:    cfg.Pipeline.ItemsPerFeed,
		MaxItems:        cfg.Pipeline.MaxItems,
		MaxContentChars: cfg.Pipeline.MaxContentChars,
		MinContentChars: cfg.Pipeline.MinContentChars,
	}, pipeline.Dependencies{
		Feeds:      newFeedFetcher(&cfg),
		Pages:      newScraper(&cfg),
		Summarizer: summarizer,
		Store:      store,
		Recorder:   collector,
	})
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	fmt.Printf("Processing %d feeds with %s (%s)\n", len(sources), provider.Name(), cfg.Summarizer.Model)

	result, err := p.Run(ctx)
	if err != nil {
		return err
	}

	if cfg.Metrics.PushgatewayURL != "" {
		if err := metrics.Push(ctx, cfg.Metrics.PushgatewayURL, cfg.Metrics.Job, registry); err != nil {
			slog.Warn("failed to push metrics", "url", cfg.Metrics.PushgatewayURL, "error", err)
		}
	}

	printReport(result, store.Path())
	return nil
}

func printReport(result *pipeline.Result, path string) {
	fmt.Printf("\nItems: %d succeeded (%d summarized, %d reused, %d from web), %d skipped, %d errors\n",
		result.Succeeded, result.Summarized, result.Reused, result.FetchedFromWeb, result.Skipped, result.ItemErrors)
	fmt.Printf("Feeds: %d failed\n", result.FeedErrors)
	fmt.Printf("Dedup: %d -> %d, Trim: %d -> %d\n",
		result.BeforeDedup, result.AfterDedup, result.BeforeTrim, result.AfterTrim)
	fmt.Printf("Tokens: %d input, %d output, %d total\n",
		result.Usage.InputTokens, result.Usage.OutputTokens, result.Usage.TotalTokens)

	for _, e := range result.Errors {
		fmt.Printf("  Warning: %v\n", e)
	}

	fmt.Printf("\nWrote %d items to %s in %v\n", result.AfterTrim, path, result.Duration)
}

// selectSources returns all feeds, or only the one named source.
func selectSources(feeds []models.FeedSource, source string) ([]models.FeedSource, error) {
	if source == "" {
		return feeds, nil
	}
	for _, f := range feeds {
		if f.Name == source {
			return []models.FeedSource{f}, nil
		}
	}
	return nil, fmt.Errorf("source %q not found in config", source)
}

func newFeedFetcher(cfg *config.Config) *feed.Fetcher {
	return feed.New(feed.Config{
		UserAgent:   cfg.Fetcher.UserAgent,
		Timeout:     cfg.Fetcher.FeedTimeout,
		MaxBodySize: int64(cfg.Fetcher.MaxBodySize),
	})
}

func newScraper(cfg *config.Config) *scraper.Scraper {
	return scraper.New(scraper.Config{
		Retries:     cfg.Fetcher.Retries,
		Timeout:     cfg.Fetcher.Timeout,
		Backoff:     cfg.Fetcher.Backoff,
		UserAgent:   cfg.Fetcher.UserAgent,
		MaxBodySize: cfg.Fetcher.MaxBodySize,
	})
}

// newStore builds the document store, attaching the S3 mirror when an
// endpoint is configured.
func newStore(ctx context.Context, cfg *config.Config, ensureBucket bool) (*storage.Store, error) {
	var remote storage.Remote
	if cfg.Storage.Endpoint != "" {
		s3, err := storage.NewS3(storage.S3Config{
			Endpoint:        cfg.Storage.Endpoint,
			Bucket:          cfg.Storage.Bucket,
			Key:             cfg.Storage.Key,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			UseSSL:          cfg.Storage.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		if ensureBucket {
			if err := s3.EnsureBucket(ctx); err != nil {
				return nil, fmt.Errorf("failed to ensure bucket: %w", err)
			}
		}
		slog.Debug("S3 mirror enabled", "location", s3.Location())
		remote = s3
	}

	store, err := storage.NewStore(cfg.Output.Path, cfg.Output.MirrorPath, remote)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	return store, nil
}
