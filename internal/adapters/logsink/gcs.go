package logsink

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
)

// GCS writes objects into one Cloud Storage bucket
type GCS struct {
	client *storage.Client
	bucket string
}

// NewGCS opens a client with application default credentials
func NewGCS(ctx context.Context, bucket string) (*GCS, error) {
	if bucket == "" {
		return nil, fmt.Errorf("logsink: bucket is required")
	}
	c, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("logsink: storage client: %w", err)
	}
	return &GCS{client: c, bucket: bucket}, nil
}

// Put uploads data as application/x-ndjson
func (g *GCS) Put(ctx context.Context, key string, data []byte) error {
	w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	w.ContentType = "application/x-ndjson"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// Close releases the client
func (g *GCS) Close() error { return g.client.Close() }
