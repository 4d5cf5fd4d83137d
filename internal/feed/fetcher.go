package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mfenderov/recaplet/pkg/models"
	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

// Config holds feed fetcher configuration.
type Config struct {
	UserAgent   string
	Timeout     time.Duration
	MaxBodySize int64
}

// Fetcher downloads and parses RSS/Atom feeds.
type Fetcher struct {
	config     Config
	httpClient *http.Client
}

// New creates a new feed Fetcher.
func New(config Config) *Fetcher {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = "Mozilla/5.0 (compatible; RecapletBot/1.0)"
	}
	if config.MaxBodySize == 0 {
		config.MaxBodySize = 5 << 20
	}
	return &Fetcher{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

// Fetch retrieves the feed at url and returns its items in document order.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]models.RawItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	parsed, err := gofeed.NewParser().Parse(io.LimitReader(resp.Body, f.config.MaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	slog.Debug("parsed feed", "url", url, "title", parsed.Title, "items", len(parsed.Items))

	items := make([]models.RawItem, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		items = append(items, toRawItem(entry))
	}
	return items, nil
}

func toRawItem(entry *gofeed.Item) models.RawItem {
	item := models.RawItem{
		Title:          entry.Title,
		Link:           entry.Link,
		ContentEncoded: extensionValue(entry.Extensions, "content", "encoded"),
		Content:        entry.Content,
		Description:    entry.Description,
	}

	// gofeed maps content:encoded onto Content for RSS
	if item.ContentEncoded == item.Content {
		item.Content = ""
	}
	if item.ContentEncoded == "" {
		item.ContentEncoded, item.Content = item.Content, ""
	}

	if entry.ITunesExt != nil {
		item.ContentSnippet = entry.ITunesExt.Summary
	}

	if entry.PublishedParsed != nil {
		item.Published = entry.PublishedParsed
	} else if entry.UpdatedParsed != nil {
		item.Published = entry.UpdatedParsed
	}

	return item
}

func extensionValue(exts ext.Extensions, namespace, name string) string {
	if exts == nil {
		return ""
	}
	values := exts[namespace][name]
	if len(values) == 0 {
		return ""
	}
	return values[0].Value
}
