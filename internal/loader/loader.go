// Package loader loads the caudal dataset, either from the raw archive in
// the data directory or from the configured warehouse.
package loader

import (
	"context"
	"errors"
	"fmt"

	"github.com/ajitpratap0/caudal/pkg/logger"
	"github.com/ajitpratap0/caudal/pkg/models"
	"github.com/ajitpratap0/caudal/pkg/paths"
	"github.com/ajitpratap0/caudal/pkg/persistence"
	"github.com/ajitpratap0/caudal/pkg/warehouse"
)

// FileNameCaudalExtra is the raw archive read in local mode
const FileNameCaudalExtra = "caudal_extra.csv.zip"

// Sources reported by Source
const (
	SourceArchive   = "archive"
	SourceWarehouse = "warehouse"
)

// ErrQueryNotConfigured is returned in warehouse mode when no query is set
var ErrQueryNotConfigured = errors.New("warehouse query not configured")

// Options configures a Loader.
type Options struct {
	// UseWarehouse selects warehouse mode instead of the local archive
	UseWarehouse bool
	// Layout locates the raw data directory
	Layout paths.Layout
	// Gateway reads the archive; nil builds one rooted at Layout.Root
	Gateway *persistence.Gateway
	// Warehouse answers the query in warehouse mode; nil defers to the
	// gateway's warehouse
	Warehouse warehouse.Warehouse
	Query     string
	ProjectID string
	// FileName overrides FileNameCaudalExtra
	FileName string
	Logger   *logger.Logger
}

// Loader holds one loaded dataset.
type Loader struct {
	opts Options
	log  *logger.Logger

	// Caudal is the loaded dataset, nil until Load succeeds
	Caudal *models.Table
}

// New creates a loader. Nothing is read until Load is called.
func New(opts Options) *Loader {
	if opts.FileName == "" {
		opts.FileName = FileNameCaudalExtra
	}
	if opts.Logger == nil {
		opts.Logger = logger.Get()
	}
	if opts.Gateway == nil {
		opts.Gateway = persistence.New(opts.Layout.Root,
			persistence.WithLogger(opts.Logger),
			persistence.WithWarehouse(opts.Warehouse),
		)
	}

	l := &Loader{opts: opts, log: opts.Logger.Named("DataLoader")}
	l.log.Info("Files loaded from data directory", opts.Layout.DataRaw)
	return l
}

// Source reports where Load reads from.
func (l *Loader) Source() string {
	if l.opts.UseWarehouse {
		return SourceWarehouse
	}
	return SourceArchive
}

// Load reads the dataset from exactly one source.
func (l *Loader) Load(ctx context.Context) error {
	if l.opts.UseWarehouse {
		return l.loadWarehouse(ctx)
	}
	return l.loadArchive()
}

func (l *Loader) loadArchive() error {
	t, err := l.opts.Gateway.ReadCSV(l.opts.Layout.DataRaw, l.opts.FileName)
	if err != nil {
		return err
	}
	l.Caudal = t
	l.log.Info("Loaded caudal extra data from file", l.opts.FileName)
	return nil
}

func (l *Loader) loadWarehouse(ctx context.Context) error {
	if l.opts.Query == "" {
		return ErrQueryNotConfigured
	}

	var (
		t   *models.Table
		err error
	)
	if l.opts.Warehouse != nil {
		t, err = l.opts.Warehouse.Query(ctx, l.opts.Query, l.opts.ProjectID)
	} else {
		t, err = l.opts.Gateway.ReadWarehouse(ctx, l.opts.Query, l.opts.ProjectID)
	}
	if err != nil {
		return fmt.Errorf("failed to load caudal extra data from warehouse: %w", err)
	}
	l.Caudal = t
	l.log.Info("Loaded caudal extra data from warehouse", l.opts.ProjectID)
	return nil
}
