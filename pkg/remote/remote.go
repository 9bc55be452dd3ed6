// Package remote downloads raw datasets from object storage.
//
// A Fetcher reads one object from a bucket; Download places it atomically at
// a local path, so an interrupted transfer never leaves a truncated archive
// where the loader would pick it up.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/ajitpratap0/caudal/pkg/config"
	"github.com/ajitpratap0/caudal/pkg/logger"
)

// ErrNoProvider is returned by New when no provider is configured
var ErrNoProvider = errors.New("no remote provider configured")

// Fetcher reads an object and writes it to dst.
type Fetcher interface {
	Fetch(ctx context.Context, key string, dst io.WriterAt) (int64, error)
}

// New returns the fetcher for cfg.Provider. Fetchers holding a client
// implement io.Closer.
func New(ctx context.Context, cfg config.RemoteConfig) (Fetcher, error) {
	switch cfg.Provider {
	case config.RemoteGCS:
		return NewGCSFetcher(ctx, cfg.Bucket, cfg.Prefix, cfg.CredentialsFile)
	case config.RemoteS3:
		return NewS3Fetcher(ctx, cfg.Bucket, cfg.Prefix, cfg.Region)
	case "":
		return nil, ErrNoProvider
	default:
		return nil, fmt.Errorf("unknown remote provider %q", cfg.Provider)
	}
}

// Download fetches key into destPath. The object is written to a temporary
// file in the destination directory and renamed into place once complete.
func Download(ctx context.Context, f Fetcher, key, destPath string) (int64, error) {
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create directory for %s: %w", destPath, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(destPath)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}
	cleanup := func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}

	n, err := f.Fetch(ctx, key, tmp)
	if err != nil {
		cleanup()
		return 0, fmt.Errorf("failed to fetch %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return 0, err
	}
	if err := os.Rename(tmp.Name(), destPath); err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("failed to move download into place: %w", err)
	}

	logger.Get().Named("remote").Info("Downloaded remote file", key)
	return n, nil
}

func objectKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return path.Join(prefix, key)
}
