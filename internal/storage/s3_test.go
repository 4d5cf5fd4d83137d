package storage

import (
	"context"
	"os"
	"testing"
)

func TestNewS3_Validation(t *testing.T) {
	tests := []struct {
		name    string
		config  S3Config
		wantErr bool
	}{
		{
			name:    "empty endpoint",
			config:  S3Config{Endpoint: "", Bucket: "test"},
			wantErr: true,
		},
		{
			name:    "empty bucket",
			config:  S3Config{Endpoint: "localhost:9000", Bucket: ""},
			wantErr: true,
		},
		{
			name: "valid config",
			config: S3Config{
				Endpoint:        "localhost:9000",
				Bucket:          "test",
				AccessKeyID:     "minioadmin",
				SecretAccessKey: "minioadmin",
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewS3(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewS3() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewS3_DefaultKey(t *testing.T) {
	client, err := NewS3(S3Config{Endpoint: "localhost:9000", Bucket: "news"})
	if err != nil {
		t.Fatalf("NewS3() error = %v", err)
	}
	if got := client.Location(); got != "news/news.json" {
		t.Errorf("Location() = %q, want %q", got, "news/news.json")
	}
}

// TestIntegration_S3Document tests a document round trip against MinIO.
// Skip if MinIO is not running.
func TestIntegration_S3Document(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:9000"
	}

	client, err := NewS3(S3Config{
		Endpoint:        endpoint,
		Bucket:          "recaplet-test",
		Key:             "test/news.json",
		AccessKeyID:     "minioadmin",
		SecretAccessKey: "minioadmin",
		UseSSL:          false,
	})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	ctx := context.Background()

	if err := client.EnsureBucket(ctx); err != nil {
		t.Skipf("MinIO not available, skipping integration test: %v", err)
	}

	content := []byte(`{"generatedAt":"2025-12-04T10:00:00Z","items":[]}`)

	t.Run("PutDocument", func(t *testing.T) {
		if err := client.PutDocument(ctx, content); err != nil {
			t.Fatalf("PutDocument() error = %v", err)
		}
	})

	t.Run("GetDocument", func(t *testing.T) {
		data, err := client.GetDocument(ctx)
		if err != nil {
			t.Fatalf("GetDocument() error = %v", err)
		}
		if string(data) != string(content) {
			t.Errorf("GetDocument() = %q, want %q", data, content)
		}
	})

	t.Run("StoreFallsBackToRemote", func(t *testing.T) {
		store, err := NewStore(t.TempDir()+"/missing.json", "", client)
		if err != nil {
			t.Fatalf("NewStore() error = %v", err)
		}
		doc := store.Load(ctx)
		if doc.GeneratedAt.IsZero() {
			t.Error("Load() should return the remote document")
		}
	})
}
