package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/renameio"
	"github.com/mfenderov/recaplet/pkg/models"
)

// Remote is an optional off-host copy of the news document.
type Remote interface {
	PutDocument(ctx context.Context, data []byte) error
	GetDocument(ctx context.Context) ([]byte, error)
}

// Store persists the news document to a primary path and a mirrored path
// served to the list UI, plus an optional remote copy.
type Store struct {
	path       string
	mirrorPath string
	remote     Remote
}

// NewStore creates a Store. mirrorPath and remote may be empty/nil.
func NewStore(path, mirrorPath string, remote Remote) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("output path is required")
	}
	return &Store{
		path:       path,
		mirrorPath: mirrorPath,
		remote:     remote,
	}, nil
}

// Path returns the primary document location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the prior document. A missing or unreadable document yields
// an empty one; when the local copy fails the remote copy is tried.
func (s *Store) Load(ctx context.Context) models.NewsDocument {
	doc, err := readDocument(s.path)
	if err == nil {
		return doc
	}
	slog.Warn("prior document unavailable", "path", s.path, "error", err)

	if s.remote != nil {
		doc, err := s.loadRemote(ctx)
		if err == nil {
			slog.Info("loaded prior document from remote", "items", len(doc.Items))
			return doc
		}
		slog.Warn("remote document unavailable", "error", err)
	}

	return models.NewsDocument{Items: []models.NewsItem{}}
}

func (s *Store) loadRemote(ctx context.Context) (models.NewsDocument, error) {
	data, err := s.remote.GetDocument(ctx)
	if err != nil {
		return models.NewsDocument{}, err
	}
	return decode(data)
}

// Save serializes doc once and writes the same bytes to every location.
// Local files are replaced atomically.
func (s *Store) Save(ctx context.Context, doc models.NewsDocument) error {
	if doc.Items == nil {
		doc.Items = []models.NewsItem{}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	for _, path := range []string{s.path, s.mirrorPath} {
		if path == "" {
			continue
		}
		if err := writeFile(path, data); err != nil {
			return err
		}
		slog.Debug("wrote document", "path", path, "bytes", len(data))
	}

	if s.remote != nil {
		if err := s.remote.PutDocument(ctx, data); err != nil {
			return fmt.Errorf("failed to upload document: %w", err)
		}
	}

	return nil
}

// ReadDocument loads a document from path without any fallback.
func ReadDocument(path string) (models.NewsDocument, error) {
	return readDocument(path)
}

func readDocument(path string) (models.NewsDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.NewsDocument{}, fmt.Errorf("failed to read document: %w", err)
	}
	return decode(data)
}

func decode(data []byte) (models.NewsDocument, error) {
	var doc models.NewsDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return models.NewsDocument{}, fmt.Errorf("failed to parse document: %w", err)
	}
	if doc.Items == nil {
		doc.Items = []models.NewsItem{}
	}
	return doc, nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
