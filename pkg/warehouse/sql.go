package warehouse

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/go-sql-driver/mysql"    // registers "mysql"
	_ "github.com/jackc/pgx/v5/stdlib"    // registers "pgx"
	_ "github.com/snowflakedb/gosnowflake" // registers "snowflake"
	_ "modernc.org/sqlite"                // registers "sqlite"

	caudalerrors "github.com/ajitpratap0/caudal/pkg/errors"
	"github.com/ajitpratap0/caudal/pkg/logger"
	"github.com/ajitpratap0/caudal/pkg/models"
)

// SQL runs queries through a database/sql driver. The project argument of
// Query is ignored; the DSN selects the database.
type SQL struct {
	Driver string
	db     *sql.DB
}

// NewSQL opens a connection pool for driver and dsn. No connection is made
// until the first query.
func NewSQL(driver, dsn string) (*SQL, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, caudalerrors.Wrap(err, caudalerrors.ErrorTypeConnection, "failed to open database").
			WithDetail("driver", driver)
	}
	return &SQL{Driver: driver, db: db}, nil
}

// Query runs query and reads every row.
func (s *SQL) Query(ctx context.Context, query, _ string) (*models.Table, error) {
	logger.Get().Named("warehouse").Debug("Running SQL query with driver", s.Driver)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, caudalerrors.Wrap(err, caudalerrors.ErrorTypeQuery, "failed to run query").
			WithDetail("driver", s.Driver)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, caudalerrors.Wrap(err, caudalerrors.ErrorTypeData, "failed to read column types")
	}
	names := make([]string, len(types))
	for i, ct := range types {
		names[i] = ct.Name()
	}

	var values [][]any
	for rows.Next() {
		row := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range row {
			ptrs[i] = &row[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, caudalerrors.Wrap(err, caudalerrors.ErrorTypeData, "failed to scan row")
		}
		values = append(values, row)
	}
	if err := rows.Err(); err != nil {
		return nil, caudalerrors.Wrap(err, caudalerrors.ErrorTypeData, "failed to read rows")
	}

	t := models.FromValues(names, values)
	for i, ct := range types {
		if typ, ok := sqlType(ct.DatabaseTypeName()); ok && allNil(values, i) {
			t.Columns[i].Type = typ
		}
	}
	return t, nil
}

// Close releases the connection pool.
func (s *SQL) Close() error {
	return s.db.Close()
}

// sqlType maps a declared column type, used when no value reveals it.
func sqlType(name string) (models.ColumnType, bool) {
	name = strings.ToUpper(name)
	switch {
	case strings.Contains(name, "INT"):
		return models.TypeInt, true
	case strings.Contains(name, "REAL"), strings.Contains(name, "FLOA"),
		strings.Contains(name, "DOUB"), strings.Contains(name, "NUMERIC"),
		strings.Contains(name, "DECIMAL"):
		return models.TypeFloat, true
	case strings.Contains(name, "BOOL"):
		return models.TypeBool, true
	case strings.Contains(name, "TIMESTAMP"), strings.Contains(name, "DATETIME"):
		return models.TypeTime, true
	case strings.Contains(name, "CHAR"), strings.Contains(name, "TEXT"):
		return models.TypeString, true
	}
	return "", false
}

func allNil(rows [][]any, col int) bool {
	for _, row := range rows {
		if row[col] != nil {
			return false
		}
	}
	return true
}
