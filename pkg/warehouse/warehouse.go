// Package warehouse runs queries against remote analytical warehouses and
// returns the result as a models.Table.
//
// Two implementations are provided: BigQuery, and SQL for any database/sql
// driver registered by this package (snowflake, pgx, mysql and sqlite).
// Queries are attempted once; errors from the client libraries are returned
// wrapped but otherwise unchanged.
package warehouse

import (
	"context"
	"errors"
	"fmt"

	"github.com/ajitpratap0/caudal/pkg/config"
	"github.com/ajitpratap0/caudal/pkg/models"
)

// ErrUnknownKind is returned by New for unsupported warehouse kinds
var ErrUnknownKind = errors.New("unknown warehouse kind")

// Warehouse executes a query and materializes the full result.
type Warehouse interface {
	Query(ctx context.Context, query, projectID string) (*models.Table, error)
}

// New returns the warehouse selected by cfg.Kind. An empty kind selects
// BigQuery.
func New(cfg config.WarehouseConfig) (Warehouse, error) {
	switch cfg.Kind {
	case config.WarehouseBigQuery, "":
		return NewBigQuery(cfg.ProjectID, cfg.CredentialsFile), nil
	case config.WarehouseSQL:
		return NewSQL(cfg.Driver, cfg.DSN)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, cfg.Kind)
	}
}
