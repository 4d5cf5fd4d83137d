package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// idLength is the number of hex characters kept from a SHA-256 digest.
const idLength = 12

// MaxHashedChars is how much cleaned article text feeds into ContentHash.
const MaxHashedChars = 2000

// FeedSource is a configured RSS/Atom endpoint.
type FeedSource struct {
	Name string `mapstructure:"name" json:"name"`
	URL  string `mapstructure:"url" json:"url"`
}

// RawItem is a feed entry as produced by the RSS parser. Only the
// fields the pipeline reads are kept.
type RawItem struct {
	Title          string
	Link           string
	Published      *time.Time
	ContentEncoded string // content:encoded
	Content        string
	ContentSnippet string
	Description    string
}

// NewsItem is a summarized article as persisted in the news document.
type NewsItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Summary     string    `json:"summary"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"publishedAt"`
	ContentHash string    `json:"contentHash,omitempty"` // fingerprint of the summarized text
}

// NewsDocument is the rolling JSON feed consumed by the list UI.
// Items are ordered by PublishedAt, newest first.
type NewsDocument struct {
	GeneratedAt time.Time  `json:"generatedAt"`
	Items       []NewsItem `json:"items"`
}

// ArticleID creates a deterministic ID from an article URL.
// The ID is a SHA-256 hash (first 12 chars) of the URL.
func ArticleID(url string) string {
	return shortHash(url)
}

// ContentHash fingerprints cleaned article text. Only the first
// MaxHashedChars characters are considered.
func ContentHash(text string) string {
	return shortHash(Truncate(text, MaxHashedChars))
}

func shortHash(s string) string {
	hash := sha256.Sum256([]byte(s))
	return hex.EncodeToString(hash[:])[:idLength]
}

// Truncate returns at most maxChars characters of s without splitting
// multi-byte runes.
func Truncate(s string, maxChars int) string {
	if maxChars <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == maxChars {
			return s[:i]
		}
		count++
	}
	return s
}
