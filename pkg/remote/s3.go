package remote

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Fetcher reads objects from an S3 bucket with the concurrent downloader.
type S3Fetcher struct {
	downloader *manager.Downloader
	bucket     string
	prefix     string
}

// NewS3Fetcher creates a fetcher using the default AWS credential chain.
func NewS3Fetcher(ctx context.Context, bucket, prefix, region string) (*S3Fetcher, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return &S3Fetcher{
		downloader: manager.NewDownloader(s3.NewFromConfig(cfg)),
		bucket:     bucket,
		prefix:     prefix,
	}, nil
}

// Fetch downloads the object to dst in parallel ranges.
func (s *S3Fetcher) Fetch(ctx context.Context, key string, dst io.WriterAt) (int64, error) {
	return s.downloader.Download(ctx, dst, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(s.prefix, key)),
	})
}
