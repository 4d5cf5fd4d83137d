package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"
	"unicode/utf8"

	"github.com/mfenderov/recaplet/internal/llm"
	"github.com/mfenderov/recaplet/internal/processor"
	"github.com/mfenderov/recaplet/internal/scraper"
	"github.com/mfenderov/recaplet/internal/summary"
	"github.com/mfenderov/recaplet/pkg/models"
)

// Item outcomes reported to the Recorder.
const (
	OutcomeSummarized = "summarized"
	OutcomeReused     = "reused"
	OutcomeSkipped    = "skipped"
	OutcomeError      = "error"
)

// UntitledLabel is used when neither the feed nor the page has a title.
const UntitledLabel = "Untitled"

var (
	errNoLink   = errors.New("item has no link")
	errTooShort = errors.New("content too short and no page fetcher configured")
)

// FeedFetcher returns the items of an RSS/Atom feed.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) ([]models.RawItem, error)
}

// PageFetcher extracts article text from a live web page.
type PageFetcher interface {
	FetchContent(ctx context.Context, url string) scraper.Result
}

// Summarizer produces a summary of article text.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, llm.Usage, error)
}

// Store loads and persists the news document.
type Store interface {
	Load(ctx context.Context) models.NewsDocument
	Save(ctx context.Context, doc models.NewsDocument) error
}

// Recorder receives run metrics. It is optional.
type Recorder interface {
	RecordFeed(source string, ok bool, duration time.Duration)
	RecordItem(outcome string)
	RecordTokens(input, output int64)
	RecordRun(items int, duration time.Duration)
}

// Config holds pipeline configuration.
type Config struct {
	Sources         []models.FeedSource
	ItemsPerFeed    int // items read from the top of each feed
	MaxItems        int // retention bound of the document
	MaxContentChars int // text beyond this is neither hashed nor summarized
	MinContentChars int // shorter feed content triggers a page fetch
}

// Dependencies are the collaborators a Pipeline drives. Pages and Recorder
// may be nil.
type Dependencies struct {
	Feeds      FeedFetcher
	Pages      PageFetcher
	Summarizer Summarizer
	Store      Store
	Recorder   Recorder
}

// Result holds pipeline execution results.
type Result struct {
	Succeeded      int // items that produced a NewsItem
	Summarized     int // of which needed a model call
	Reused         int // of which reused a cached summary
	FetchedFromWeb int // items whose text came from the page fetcher
	Skipped        int // items without a link
	ItemErrors     int
	FeedErrors     int
	Errors         []error

	BeforeDedup int
	AfterDedup  int
	BeforeTrim  int
	AfterTrim   int

	Usage    llm.Usage
	Duration time.Duration
}

// Pipeline orchestrates fetching, summarizing and persisting news items.
type Pipeline struct {
	config    Config
	deps      Dependencies
	processor *processor.Processor
	now       func() time.Time
}

// New creates a new Pipeline with the given configuration.
func New(config Config, deps Dependencies) (*Pipeline, error) {
	if deps.Feeds == nil {
		return nil, fmt.Errorf("feed fetcher is required")
	}
	if deps.Summarizer == nil {
		return nil, fmt.Errorf("summarizer is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if config.ItemsPerFeed <= 0 {
		config.ItemsPerFeed = 10
	}
	if config.MaxItems <= 0 {
		config.MaxItems = 1000
	}
	if config.MaxContentChars <= 0 {
		config.MaxContentChars = models.MaxHashedChars
	}
	if config.MinContentChars <= 0 {
		config.MinContentChars = 50
	}

	return &Pipeline{
		config:    config,
		deps:      deps,
		processor: processor.New(),
		now:       time.Now,
	}, nil
}

// Run executes one read-merge-write cycle. Feed and item failures are
// recorded in the Result; only cancellation and the final write fail the
// run. A cancelled run never writes.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	result := &Result{}

	prior := p.deps.Store.Load(ctx)
	cache := summary.NewCache(prior.Items)
	slog.Debug("loaded prior document", "items", len(prior.Items), "cached_summaries", cache.Len())

	var fresh []models.NewsItem
	for _, source := range p.config.Sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		items, err := p.processFeed(ctx, source, cache, result)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			result.FeedErrors++
			result.Errors = append(result.Errors, fmt.Errorf("feed %s: %w", source.Name, err))
			slog.Warn("failed to fetch feed", "source", source.Name, "url", source.URL, "error", err)
			continue
		}
		fresh = append(fresh, items...)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	merged := make([]models.NewsItem, 0, len(prior.Items)+len(fresh))
	merged = append(merged, prior.Items...)
	merged = append(merged, fresh...)

	result.BeforeDedup = len(merged)
	unique := Dedupe(merged)
	result.AfterDedup = len(unique)

	SortByPublished(unique)

	result.BeforeTrim = len(unique)
	kept := Trim(unique, p.config.MaxItems)
	result.AfterTrim = len(kept)

	doc := models.NewsDocument{
		GeneratedAt: p.now().UTC(),
		Items:       kept,
	}
	if err := p.deps.Store.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to save document: %w", err)
	}

	result.Duration = time.Since(start)
	if p.deps.Recorder != nil {
		p.deps.Recorder.RecordRun(len(kept), result.Duration)
	}

	slog.Info("pipeline complete",
		"succeeded", result.Succeeded,
		"errors", result.ItemErrors+result.FeedErrors,
		"items", len(kept),
		"duration", result.Duration)

	return result, nil
}

// processFeed fetches one feed and turns its leading items into NewsItems.
// Only the feed fetch itself can fail; item failures are recorded.
func (p *Pipeline) processFeed(ctx context.Context, source models.FeedSource, cache *summary.Cache, result *Result) ([]models.NewsItem, error) {
	fetchStart := time.Now()
	rawItems, err := p.deps.Feeds.Fetch(ctx, source.URL)
	if p.deps.Recorder != nil {
		p.deps.Recorder.RecordFeed(source.Name, err == nil, time.Since(fetchStart))
	}
	if err != nil {
		return nil, err
	}

	if len(rawItems) > p.config.ItemsPerFeed {
		rawItems = rawItems[:p.config.ItemsPerFeed]
	}
	slog.Debug("processing feed", "source", source.Name, "items", len(rawItems))

	var items []models.NewsItem
	for _, raw := range rawItems {
		if ctx.Err() != nil {
			break
		}

		item, outcome, err := p.processItem(ctx, source, raw, cache, result)
		p.record(outcome)

		switch {
		case errors.Is(err, errNoLink):
			result.Skipped++
			slog.Debug("skipping item without link", "source", source.Name, "title", raw.Title)
		case err != nil:
			result.ItemErrors++
			result.Errors = append(result.Errors, fmt.Errorf("item %q from %s: %w", raw.Title, source.Name, err))
			slog.Warn("failed to process item", "source", source.Name, "title", raw.Title, "error", err)
		default:
			result.Succeeded++
			items = append(items, item)
		}
	}

	return items, nil
}

// processItem resolves text, fingerprint and summary for one feed item.
func (p *Pipeline) processItem(ctx context.Context, source models.FeedSource, raw models.RawItem, cache *summary.Cache, result *Result) (models.NewsItem, string, error) {
	if raw.Link == "" {
		return models.NewsItem{}, OutcomeSkipped, errNoLink
	}

	title := raw.Title
	text := p.processor.ExtractText(raw)

	if utf8.RuneCountInString(text) < p.config.MinContentChars {
		if p.deps.Pages == nil {
			return models.NewsItem{}, OutcomeError, errTooShort
		}
		page := p.deps.Pages.FetchContent(ctx, raw.Link)
		if !page.Success {
			return models.NewsItem{}, OutcomeError, page.Err
		}
		result.FetchedFromWeb++
		text = page.Content
		if title == "" {
			title = page.Title
		}
	}

	text = models.Truncate(text, p.config.MaxContentChars)
	hash := models.ContentHash(text)

	outcome := OutcomeReused
	summaryText, ok := cache.Lookup(hash)
	if ok {
		result.Reused++
		slog.Debug("reusing cached summary", "source", source.Name, "title", title, "hash", hash)
	} else {
		var usage llm.Usage
		var err error
		summaryText, usage, err = p.deps.Summarizer.Summarize(ctx, text)
		result.Usage.Add(usage)
		if p.deps.Recorder != nil {
			p.deps.Recorder.RecordTokens(usage.InputTokens, usage.OutputTokens)
		}
		if err != nil {
			return models.NewsItem{}, OutcomeError, err
		}
		cache.Add(hash, summaryText)
		result.Summarized++
		outcome = OutcomeSummarized
	}

	if title == "" {
		title = UntitledLabel
	}

	published := p.now().UTC()
	if raw.Published != nil {
		published = raw.Published.UTC()
	}

	return models.NewsItem{
		ID:          models.ArticleID(raw.Link),
		Title:       title,
		URL:         raw.Link,
		Summary:     summaryText,
		Source:      source.Name,
		PublishedAt: published,
		ContentHash: hash,
	}, outcome, nil
}

func (p *Pipeline) record(outcome string) {
	if p.deps.Recorder != nil {
		p.deps.Recorder.RecordItem(outcome)
	}
}

// Dedupe keeps one item per ID. The value of the last occurrence wins and
// takes the position of the first occurrence.
func Dedupe(items []models.NewsItem) []models.NewsItem {
	index := make(map[string]int, len(items))
	unique := make([]models.NewsItem, 0, len(items))
	for _, item := range items {
		if i, ok := index[item.ID]; ok {
			unique[i] = item
			continue
		}
		index[item.ID] = len(unique)
		unique = append(unique, item)
	}
	return unique
}

// SortByPublished orders items newest first. Ties keep their relative order.
func SortByPublished(items []models.NewsItem) {
	slices.SortStableFunc(items, func(a, b models.NewsItem) int {
		return b.PublishedAt.Compare(a.PublishedAt)
	})
}

// Trim keeps the first limit items of a sorted slice.
func Trim(items []models.NewsItem, limit int) []models.NewsItem {
	if len(items) <= limit {
		return items
	}
	return items[:limit]
}
