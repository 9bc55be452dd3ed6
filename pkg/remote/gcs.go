package remote

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSFetcher reads objects from a Google Cloud Storage bucket.
type GCSFetcher struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSFetcher creates a fetcher for bucket. Keys are resolved under prefix.
func NewGCSFetcher(ctx context.Context, bucket, prefix, credentialsFile string) (*GCSFetcher, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCSFetcher{client: client, bucket: bucket, prefix: prefix}, nil
}

// Fetch copies the object to dst from offset zero.
func (g *GCSFetcher) Fetch(ctx context.Context, key string, dst io.WriterAt) (int64, error) {
	r, err := g.client.Bucket(g.bucket).Object(objectKey(g.prefix, key)).NewReader(ctx)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	return io.Copy(io.NewOffsetWriter(dst, 0), r)
}

// Close releases the client
func (g *GCSFetcher) Close() error {
	return g.client.Close()
}
