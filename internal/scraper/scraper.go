package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/mfenderov/recaplet/internal/processor"
)

const (
	// Below this many characters the selector match is replaced by the paragraph text.
	minSelectorChars = 100
	// Below this many characters the extraction counts as a failed attempt.
	minContentChars = 50
)

// Main-content containers, tried in order.
var articleSelectors = []string{
	"article",
	`[role="main"]`,
	".article-content",
	".post-content",
	".entry-content",
	".content",
	"main",
}

var errContentTooShort = errors.New("extracted content too short")

// Config holds scraper configuration.
type Config struct {
	Retries     int
	Timeout     time.Duration
	Backoff     time.Duration // wait before retry n is Backoff * n
	UserAgent   string
	MaxBodySize int
}

// Result is the outcome of a page fetch. Err is set when Success is false.
type Result struct {
	Content string
	Title   string
	Success bool
	Err     error
}

// Scraper fetches article pages and extracts their main text.
type Scraper struct {
	config    Config
	processor *processor.Processor
}

// New creates a new Scraper with the given configuration.
func New(config Config) *Scraper {
	if config.Retries <= 0 {
		config.Retries = 3
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.Backoff == 0 {
		config.Backoff = time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = "Mozilla/5.0 (compatible; RecapletBot/1.0)"
	}
	if config.MaxBodySize == 0 {
		config.MaxBodySize = 5 << 20
	}
	return &Scraper{
		config:    config,
		processor: processor.New(),
	}
}

// FetchContent downloads url and extracts the article text, retrying with
// linear backoff. It never returns an error directly; failures are reported
// in the Result.
func (s *Scraper) FetchContent(ctx context.Context, url string) Result {
	var lastErr error

	for attempt := 1; attempt <= s.config.Retries; attempt++ {
		content, title, err := s.fetchOnce(ctx, url)
		if err == nil {
			slog.Debug("fetched page content", "url", url, "attempt", attempt, "chars", utf8.RuneCountInString(content))
			return Result{Content: content, Title: title, Success: true}
		}
		lastErr = err
		slog.Debug("page fetch attempt failed", "url", url, "attempt", attempt, "error", err)

		if attempt == s.config.Retries {
			break
		}
		if err := wait(ctx, s.config.Backoff*time.Duration(attempt)); err != nil {
			lastErr = err
			break
		}
	}

	return Result{
		Success: false,
		Err:     fmt.Errorf("failed after %d attempts: %w", s.config.Retries, lastErr),
	}
}

// fetchOnce performs a single GET with a fresh collector.
func (s *Scraper) fetchOnce(ctx context.Context, url string) (string, string, error) {
	c := colly.NewCollector(
		colly.UserAgent(s.config.UserAgent),
		colly.AllowURLRevisit(),
		colly.MaxBodySize(s.config.MaxBodySize),
	)
	c.SetRequestTimeout(s.config.Timeout)

	var body []byte
	var statusErr error

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})

	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})

	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			statusErr = fmt.Errorf("HTTP %d: %s", r.StatusCode, http.StatusText(r.StatusCode))
		}
	})

	err := c.Visit(url)
	switch {
	case ctx.Err() != nil:
		return "", "", ctx.Err()
	case statusErr != nil:
		return "", "", statusErr
	case err != nil:
		return "", "", err
	case body == nil:
		return "", "", fmt.Errorf("empty response from %s", url)
	}

	content, err := extractMainContent(body)
	if err != nil {
		return "", "", err
	}

	return content, s.processor.ExtractTitle(string(body)), nil
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// extractMainContent finds the article text in an HTML page.
func extractMainContent(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	var content string
	for _, selector := range articleSelectors {
		if text := doc.Find(selector).First().Text(); text != "" {
			content = text
			break
		}
	}

	if utf8.RuneCountInString(content) < minSelectorChars {
		paragraphs := doc.Find("p").Map(func(_ int, sel *goquery.Selection) string {
			return sel.Text()
		})
		content = strings.Join(paragraphs, "\n")
	}

	content = processor.Clean(content)
	if utf8.RuneCountInString(content) < minContentChars {
		return "", errContentTooShort
	}
	return content, nil
}
