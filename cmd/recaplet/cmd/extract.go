package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"unicode/utf8"

	"github.com/mfenderov/recaplet/internal/processor"
	"github.com/mfenderov/recaplet/pkg/models"
	"github.com/spf13/cobra"
)

var (
	extractURL  string
	extractFeed string
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Show extracted article text",
	Long: `Show the text recaplet would summarize, without calling a language model.

Examples:
  # Fetch a web page and print its main content
  recaplet extract --url https://example.com/article

  # Parse a configured feed and print the content length of each item
  recaplet extract --feed "Go Blog"`,
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVar(&extractURL, "url", "", "Web page to extract content from")
	extractCmd.Flags().StringVar(&extractFeed, "feed", "", "Feed name from config to inspect")
	extractCmd.MarkFlagsMutuallyExclusive("url", "feed")
	extractCmd.MarkFlagsOneRequired("url", "feed")
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()

	if extractURL != "" {
		result := newScraper(&cfg).FetchContent(ctx, extractURL)
		if !result.Success {
			return fmt.Errorf("failed to extract %s: %w", extractURL, result.Err)
		}
		fmt.Printf("Title: %s\n", result.Title)
		fmt.Printf("Length: %d characters\n\n", utf8.RuneCountInString(result.Content))
		fmt.Println(result.Content)
		return nil
	}

	if err := cfg.LoadFeeds(); err != nil {
		return err
	}
	sources, err := selectSources(cfg.Feeds, extractFeed)
	if err != nil {
		return err
	}
	source := sources[0]

	items, err := newFeedFetcher(&cfg).Fetch(ctx, source.URL)
	if err != nil {
		return fmt.Errorf("failed to fetch feed %s: %w", source.Name, err)
	}

	fmt.Printf("Feed: %s (%d items)\n\n", source.Name, len(items))

	p := processor.New()
	for i, item := range items {
		if i == cfg.Pipeline.ItemsPerFeed {
			break
		}
		text := p.ExtractText(item)
		length := utf8.RuneCountInString(text)

		note := ""
		if length < cfg.Pipeline.MinContentChars {
			note = " (page fetch needed)"
		}
		fmt.Printf("%2d. %s\n    %s\n    %d characters%s, hash %s\n",
			i+1, item.Title, item.Link, length, note,
			models.ContentHash(models.Truncate(text, cfg.Pipeline.MaxContentChars)))
	}
	return nil
}
