package summary

import "github.com/mfenderov/recaplet/pkg/models"

// Cache maps content fingerprints to previously generated summaries.
// It is rebuilt from the prior document on every run and is not safe for
// concurrent use.
type Cache struct {
	summaries map[string]string
}

// NewCache seeds a cache from persisted items. Items without a content hash
// or summary are ignored. When several items share a hash the first one wins.
func NewCache(items []models.NewsItem) *Cache {
	c := &Cache{summaries: make(map[string]string, len(items))}
	for _, item := range items {
		if item.ContentHash == "" || item.Summary == "" {
			continue
		}
		if _, ok := c.summaries[item.ContentHash]; !ok {
			c.summaries[item.ContentHash] = item.Summary
		}
	}
	return c
}

// Lookup returns the summary recorded for hash.
func (c *Cache) Lookup(hash string) (string, bool) {
	summary, ok := c.summaries[hash]
	return summary, ok
}

// Add records a freshly generated summary so later items in the same run
// can reuse it.
func (c *Cache) Add(hash, summary string) {
	if hash == "" || summary == "" {
		return
	}
	c.summaries[hash] = summary
}

// Len returns the number of cached summaries.
func (c *Cache) Len() int {
	return len(c.summaries)
}
