package processor

import (
	"regexp"
	"strings"

	"github.com/mfenderov/recaplet/pkg/models"
	"golang.org/x/net/html"
)

var (
	tagPattern = regexp.MustCompile(`<[^>]*>`)
	// Matches the Unicode whitespace set, including NBSP and the ideographic space.
	spacePattern = regexp.MustCompile(`[\s\v\p{Zs}\x{2028}\x{2029}\x{FEFF}]+`)
)

// Entities decoded by StripHTML, applied in this order.
var entityReplacer = []struct{ from, to string }{
	{"&nbsp;", " "},
	{"&lt;", "<"},
	{"&gt;", ">"},
	{"&amp;", "&"},
	{"&quot;", `"`},
	{"&#39;", "'"},
}

// Processor turns feed items and fetched HTML into plain text.
type Processor struct{}

// New creates a new content processor.
func New() *Processor {
	return &Processor{}
}

// Extract returns the first non-empty content field of a feed item, in
// priority order: encoded content, plain content, snippet, description.
func (p *Processor) Extract(item models.RawItem) string {
	for _, field := range []string{item.ContentEncoded, item.Content, item.ContentSnippet, item.Description} {
		if field != "" {
			return field
		}
	}
	return ""
}

// ExtractText is Extract followed by StripHTML.
func (p *Processor) ExtractText(item models.RawItem) string {
	return StripHTML(p.Extract(item))
}

// StripHTML removes tag markup, decodes a fixed set of entities and
// collapses whitespace. It never fails.
func StripHTML(text string) string {
	text = tagPattern.ReplaceAllString(text, "")
	for _, e := range entityReplacer {
		text = strings.ReplaceAll(text, e.from, e.to)
	}
	return Clean(text)
}

// Clean collapses runs of whitespace (including newlines) into a single
// space and trims the ends.
func Clean(text string) string {
	return strings.TrimSpace(spacePattern.ReplaceAllString(text, " "))
}

// ExtractTitle extracts the <title> content from HTML.
func (p *Processor) ExtractTitle(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return ""
	}

	var title string
	var findTitle func(*html.Node) bool
	findTitle = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "title" {
			if n.FirstChild != nil {
				title = n.FirstChild.Data
			}
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if findTitle(c) {
				return true
			}
		}
		return false
	}
	findTitle(doc)

	return Clean(title)
}
