// Package persistence provides uniform load and save operations for the
// table, document and blob formats used by caudal.
//
// # Overview
//
// A Gateway anchors relative paths under a base directory and exposes one
// read and one write operation per format:
//
//   - delimited text (CSV, optionally compressed): ReadCSV, WriteCSV, AppendCSV
//   - structured markup: ReadYAML, WriteYAML, ReadJSON, WriteJSON
//   - columnar table store (Parquet parts of one named table):
//     ReadColumnar, WriteColumnar, AppendColumnar, ColumnarLen
//   - spreadsheet: ReadExcel, WriteExcel
//   - Avro container files: ReadAvro, WriteAvro
//   - plain text: ReadLines, WriteString
//   - serialized objects: ReadObject, WriteObject
//   - remote warehouse: ReadWarehouse
//
// Every write creates missing parent directories first. Errors from the
// underlying libraries are wrapped with context but never replaced, so
// errors.Is keeps matching them.
//
// # Usage
//
//	gw := persistence.New(layout.Root)
//	tbl, err := gw.ReadCSV(layout.DataRaw, "caudal_extra.csv.zip")
//	if err != nil {
//	    return err
//	}
//	err = gw.WriteColumnar(tbl, layout.DataFormatted, "caudal.parquet")
package persistence

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ajitpratap0/caudal/pkg/logger"
	"github.com/ajitpratap0/caudal/pkg/models"
)

var (
	// ErrNoWarehouse is returned by ReadWarehouse when no warehouse is configured
	ErrNoWarehouse = errors.New("no warehouse configured")
	// ErrUnsupportedFormat is returned when no table store handles a path
	ErrUnsupportedFormat = errors.New("unsupported table format")
	// ErrMalformedTable is returned when a row has more cells than the header
	ErrMalformedTable = errors.New("malformed table")
)

// Warehouse executes a query against a remote analytical warehouse.
type Warehouse interface {
	Query(ctx context.Context, query, projectID string) (*models.Table, error)
}

// Gateway performs format-specific reads and writes against paths anchored
// under a base directory.
type Gateway struct {
	base      string
	log       *logger.Logger
	warehouse Warehouse
	stores    map[string]TableStore
}

// Option configures a Gateway
type Option func(*Gateway)

// WithLogger sets the gateway logger
func WithLogger(l *logger.Logger) Option {
	return func(g *Gateway) { g.log = l }
}

// WithWarehouse sets the warehouse used by ReadWarehouse
func WithWarehouse(w Warehouse) Option {
	return func(g *Gateway) { g.warehouse = w }
}

// New creates a gateway rooted at base. Relative paths passed to any
// operation are resolved under base.
func New(base string, opts ...Option) *Gateway {
	g := &Gateway{base: base}
	for _, opt := range opts {
		opt(g)
	}
	if g.log == nil {
		g.log = logger.Get()
	}
	g.log = g.log.Named("input_output")

	g.stores = map[string]TableStore{
		".csv":     NewCSVStore(g.log),
		".parquet": NewColumnarStore(),
		".xlsx":    NewExcelStore(DefaultSheet),
		".avro":    NewAvroStore(),
	}
	return g
}

// Base returns the anchor directory for relative paths
func (g *Gateway) Base() string {
	return g.base
}

// Path joins the segments and anchors the result under the base directory
// unless it is already absolute.
func (g *Gateway) Path(segments ...string) string {
	p := filepath.Join(segments...)
	if !filepath.IsAbs(p) {
		p = filepath.Join(g.base, p)
	}
	return p
}

// RegisterTableStore makes ReadTable and WriteTable dispatch paths ending
// in ext to store.
func (g *Gateway) RegisterTableStore(ext string, store TableStore) {
	g.stores[strings.ToLower(ext)] = store
}

// ReadTable reads a table with the store registered for the path's format.
func (g *Gateway) ReadTable(segments ...string) (*models.Table, error) {
	path := g.Path(segments...)
	store, err := g.storeFor(path)
	if err != nil {
		return nil, err
	}
	return store.ReadTable(path)
}

// WriteTable writes a table with the store registered for the path's format.
func (g *Gateway) WriteTable(t *models.Table, segments ...string) error {
	path := g.Path(segments...)
	store, err := g.storeFor(path)
	if err != nil {
		return err
	}
	return store.WriteTable(t, path)
}

// ReadWarehouse executes query against the configured warehouse. It makes a
// single attempt; transport errors are returned unchanged.
func (g *Gateway) ReadWarehouse(ctx context.Context, query, projectID string) (*models.Table, error) {
	if g.warehouse == nil {
		return nil, ErrNoWarehouse
	}
	return g.warehouse.Query(ctx, query, projectID)
}

// storeFor resolves the table store from the extension, looking through a
// trailing compression suffix such as ".csv.zip".
func (g *Gateway) storeFor(path string) (TableStore, error) {
	name := strings.ToLower(filepath.Base(path))
	for _, suffix := range []string{".zip", ".gz", ".gzip", ".zst", ".zstd", ".lz4"} {
		name = strings.TrimSuffix(name, suffix)
	}
	if store, ok := g.stores[filepath.Ext(name)]; ok {
		return store, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

// ensureParent creates the parent directory of path if it is missing.
func ensureParent(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	return nil
}
