package media

import (
	"context"
	"fmt"
	"io"

	"github.com/kurin/blazer/b2"

	"github.com/learnhub-dev/learnhub-api/pkg/config"
)

// Store uploads course media to a Backblaze B2 bucket and returns durable
// public URLs. The provider is opaque beyond Upload/Delete.
type Store interface {
	Upload(ctx context.Context, key string, r io.Reader) (string, error)
	Delete(ctx context.Context, key string) error
}

// B2Store is the Backblaze-backed implementation of Store.
type B2Store struct {
	client *b2.Client
	bucket *b2.Bucket
}

// NewB2Store authenticates against B2 and binds to the configured bucket.
func NewB2Store(ctx context.Context, cfg config.MediaConfig) (*B2Store, error) {
	client, err := b2.NewClient(ctx, cfg.AccountID, cfg.AppKey)
	if err != nil {
		return nil, fmt.Errorf("create b2 client: %w", err)
	}

	bucket, err := client.Bucket(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("get b2 bucket: %w", err)
	}

	return &B2Store{client: client, bucket: bucket}, nil
}

// Upload streams the reader into the bucket under key and returns the file URL.
func (s *B2Store) Upload(ctx context.Context, key string, r io.Reader) (string, error) {
	obj := s.bucket.Object(key)
	w := obj.NewWriter(ctx)

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write media object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close media writer: %w", err)
	}

	return fmt.Sprintf("%s/file/%s/%s", s.bucket.BaseURL(), s.bucket.Name(), key), nil
}

// Delete removes an object from the bucket.
func (s *B2Store) Delete(ctx context.Context, key string) error {
	if err := s.bucket.Object(key).Delete(ctx); err != nil {
		return fmt.Errorf("delete media object: %w", err)
	}
	return nil
}
