// Package compression opens and creates compressed files for the persistence
// gateway. The algorithm is inferred from the file extension, the same way
// archived datasets such as "caudal_extra.csv.zip" are recognized.
//
// # Supported algorithms
//
//   - zip: single-member archives (klauspost/compress/zip)
//   - gzip: .gz (klauspost/compress/gzip)
//   - zstd: .zst (klauspost/compress/zstd)
//   - lz4: .lz4 frames (pierrec/lz4)
//
// Files with any other extension are read and written as-is.
package compression

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Algorithm represents a compression algorithm.
type Algorithm string

const (
	// None represents no compression
	None Algorithm = "none"
	// Zip represents a zip archive holding one file
	Zip Algorithm = "zip"
	// Gzip represents gzip compression
	Gzip Algorithm = "gzip"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstd"
	// LZ4 represents lz4 frame compression
	LZ4 Algorithm = "lz4"
)

var (
	// ErrEmptyArchive is returned when a zip archive has no members
	ErrEmptyArchive = errors.New("zip archive is empty")
	// ErrMultipleMembers is returned when a zip archive has more than one member
	ErrMultipleMembers = errors.New("zip archive has more than one member")
	// ErrAppendUnsupported is returned when appending to a format that cannot grow in place
	ErrAppendUnsupported = errors.New("append not supported for this compression")
)

// FromPath infers the algorithm from the file extension.
func FromPath(path string) Algorithm {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		return Zip
	case ".gz", ".gzip":
		return Gzip
	case ".zst", ".zstd":
		return Zstd
	case ".lz4":
		return LZ4
	default:
		return None
	}
}

// Open opens path for reading and transparently decompresses it.
func Open(path string) (io.ReadCloser, error) {
	alg := FromPath(path)
	if alg == Zip {
		return openZip(path)
	}

	f, err := os.Open(path) //nolint:gosec // G304: path is built by the gateway
	if err != nil {
		return nil, err
	}

	switch alg {
	case Gzip:
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		return &readCloser{Reader: zr, closers: []io.Closer{zr, f}}, nil
	case Zstd:
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to open zstd stream: %w", err)
		}
		return &readCloser{Reader: zr, closers: []io.Closer{closerFunc(zr.Close), f}}, nil
	case LZ4:
		return &readCloser{Reader: lz4.NewReader(f), closers: []io.Closer{f}}, nil
	default:
		return f, nil
	}
}

// Create creates (or truncates) path and returns a writer that compresses
// according to its extension. Closing the writer finalizes the stream.
func Create(path string) (io.WriteCloser, error) {
	return create(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC)
}

// Append opens path for appending. Only plain and gzip files can grow in
// place; gzip appends a new member, which readers concatenate.
func Append(path string) (io.WriteCloser, error) {
	switch FromPath(path) {
	case None, Gzip:
		return create(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND)
	default:
		return nil, fmt.Errorf("%w: %s", ErrAppendUnsupported, path)
	}
}

func create(path string, flag int) (io.WriteCloser, error) {
	f, err := os.OpenFile(path, flag, 0o644) //nolint:gosec // G304: path is built by the gateway
	if err != nil {
		return nil, err
	}

	switch FromPath(path) {
	case Zip:
		zw := zip.NewWriter(f)
		member, err := zw.Create(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
		if err != nil {
			zw.Close()
			f.Close()
			return nil, err
		}
		return &writeCloser{Writer: member, closers: []io.Closer{zw, f}}, nil
	case Gzip:
		zw, err := gzip.NewWriterLevel(f, gzip.BestCompression)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &writeCloser{Writer: zw, closers: []io.Closer{zw, f}}, nil
	case Zstd:
		zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
		if err != nil {
			f.Close()
			return nil, err
		}
		return &writeCloser{Writer: zw, closers: []io.Closer{zw, f}}, nil
	case LZ4:
		zw := lz4.NewWriter(f)
		return &writeCloser{Writer: zw, closers: []io.Closer{zw, f}}, nil
	default:
		return f, nil
	}
}

func openZip(path string) (io.ReadCloser, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}

	var members []*zip.File
	for _, f := range zr.File {
		if !f.FileInfo().IsDir() {
			members = append(members, f)
		}
	}
	switch {
	case len(members) == 0:
		zr.Close()
		return nil, fmt.Errorf("%w: %s", ErrEmptyArchive, path)
	case len(members) > 1:
		zr.Close()
		return nil, fmt.Errorf("%w: %s", ErrMultipleMembers, path)
	}

	rc, err := members[0].Open()
	if err != nil {
		zr.Close()
		return nil, err
	}
	return &readCloser{Reader: rc, closers: []io.Closer{rc, zr}}, nil
}

// readCloser closes every layer of a decompression stack in order.
type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (r *readCloser) Close() error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

type writeCloser struct {
	io.Writer
	closers []io.Closer
}

func (w *writeCloser) Close() error {
	var errs []error
	for _, c := range w.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

type closerFunc func()

func (f closerFunc) Close() error {
	f()
	return nil
}
