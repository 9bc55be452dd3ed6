// Package models provides the in-memory data structures shared by the
// persistence gateway, the warehouses and the data loader.
//
// A Table is a format-agnostic collection of named, typed columns and an
// ordered sequence of rows. Missing values are stored as nil.
package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ColumnType identifies the type of the values held by a column.
type ColumnType string

const (
	// TypeString holds string values
	TypeString ColumnType = "string"
	// TypeInt holds int64 values
	TypeInt ColumnType = "int"
	// TypeFloat holds float64 values
	TypeFloat ColumnType = "float"
	// TypeBool holds bool values
	TypeBool ColumnType = "bool"
	// TypeTime holds time.Time values
	TypeTime ColumnType = "time"
)

// Column describes a single table column.
type Column struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// Table is an in-memory dataset with named columns and ordered rows.
type Table struct {
	Columns []Column `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// NewTable creates an empty table with the given columns.
func NewTable(columns ...Column) *Table {
	return &Table{Columns: columns, Rows: [][]any{}}
}

// Empty returns a table with no columns and no rows.
func Empty() *Table {
	return &Table{Columns: []Column{}, Rows: [][]any{}}
}

// NumRows returns the number of rows in the table.
func (t *Table) NumRows() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// NumCols returns the number of columns in the table.
func (t *Table) NumCols() int {
	if t == nil {
		return 0
	}
	return len(t.Columns)
}

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// AppendRow appends a row. The row must have one value per column.
func (t *Table) AppendRow(values ...any) error {
	if len(values) != len(t.Columns) {
		return fmt.Errorf("row has %d values, table has %d columns", len(values), len(t.Columns))
	}
	row := make([]any, len(values))
	copy(row, values)
	t.Rows = append(t.Rows, row)
	return nil
}

// Value returns the value at the given row and named column.
func (t *Table) Value(row int, column string) (any, bool) {
	idx := t.ColumnIndex(column)
	if idx < 0 || row < 0 || row >= len(t.Rows) {
		return nil, false
	}
	return t.Rows[row][idx], true
}

// Concat appends the rows of other to t. Both tables must share the same
// column names in the same order.
func (t *Table) Concat(other *Table) error {
	if other == nil || other.NumCols() == 0 {
		return nil
	}
	if t.NumCols() == 0 {
		t.Columns = append([]Column(nil), other.Columns...)
	}
	if len(t.Columns) != len(other.Columns) {
		return fmt.Errorf("column count mismatch: %d != %d", len(t.Columns), len(other.Columns))
	}
	for i := range t.Columns {
		if t.Columns[i].Name != other.Columns[i].Name {
			return fmt.Errorf("column %d mismatch: %q != %q", i, t.Columns[i].Name, other.Columns[i].Name)
		}
	}
	t.Rows = append(t.Rows, other.Rows...)
	return nil
}

// FromStrings builds a typed table from raw string cells. Cells for which
// isMissing returns true become nil; every column gets the narrowest type
// that parses all of its remaining cells (int, float, bool, then string).
func FromStrings(header []string, records [][]string, isMissing func(string) bool) *Table {
	columns := make([]Column, len(header))
	for i, name := range header {
		columns[i] = Column{Name: name, Type: inferColumn(records, i, isMissing)}
	}

	t := &Table{Columns: columns, Rows: make([][]any, 0, len(records))}
	for _, rec := range records {
		row := make([]any, len(columns))
		for i, col := range columns {
			if i >= len(rec) || isMissing(rec[i]) {
				continue
			}
			row[i] = parseAs(col.Type, rec[i])
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// FromValues builds a table from loosely typed values as returned by
// database drivers. Each column gets a type that holds every non-nil value:
// ints widen to float when the column also holds floats, and any other mix
// falls back to string.
func FromValues(names []string, rows [][]any) *Table {
	columns := make([]Column, len(names))
	for i, name := range names {
		columns[i] = Column{Name: name, Type: valuesType(rows, i)}
	}

	t := &Table{Columns: columns, Rows: make([][]any, 0, len(rows))}
	for _, raw := range rows {
		row := make([]any, len(columns))
		for i, col := range columns {
			if i < len(raw) {
				row[i] = Normalize(col.Type, raw[i])
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func valuesType(rows [][]any, idx int) ColumnType {
	var typ ColumnType
	for _, row := range rows {
		if idx >= len(row) || row[idx] == nil {
			continue
		}
		typ = widen(typ, TypeOf(row[idx]))
		if typ == TypeString {
			break
		}
	}
	if typ == "" {
		return TypeString
	}
	return typ
}

// widen returns the narrowest type holding values of both a and b. The
// empty type means no value has been seen yet.
func widen(a, b ColumnType) ColumnType {
	switch {
	case a == "" || a == b:
		return b
	case (a == TypeInt && b == TypeFloat) || (a == TypeFloat && b == TypeInt):
		return TypeFloat
	default:
		return TypeString
	}
}

// TypeOf returns the column type matching a Go value.
func TypeOf(v any) ColumnType {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint8, uint16, uint32:
		return TypeInt
	case float32, float64:
		return TypeFloat
	case bool:
		return TypeBool
	case time.Time:
		return TypeTime
	default:
		return TypeString
	}
}

// Normalize converts v to the canonical Go type for the column type:
// int64, float64, bool, time.Time or string.
func Normalize(typ ColumnType, v any) any {
	if v == nil {
		return nil
	}
	switch typ {
	case TypeInt:
		if n, ok := toInt64(v); ok {
			return n
		}
	case TypeFloat:
		switch n := v.(type) {
		case float32:
			return float64(n)
		case float64:
			return n
		}
		if n, ok := toInt64(v); ok {
			return float64(n)
		}
	case TypeBool:
		if b, ok := v.(bool); ok {
			return b
		}
	case TypeTime:
		if ts, ok := v.(time.Time); ok {
			return ts
		}
	}
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	if s, ok := v.(string); ok {
		if typ == TypeString {
			return s
		}
		return parseAs(typ, s)
	}
	return FormatValue(v)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	}
	return 0, false
}

// FormatValue renders a cell the way the delimited-text writer stores it.
// Integral floats keep a trailing ".0" so that they read back as floats.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		s := strconv.FormatFloat(x, 'f', -1, 64)
		if !strings.ContainsAny(s, ".eEnN") {
			s += ".0"
		}
		return s
	case float32:
		return FormatValue(float64(x))
	case bool:
		if x {
			return "True"
		}
		return "False"
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}

func inferColumn(records [][]string, idx int, isMissing func(string) bool) ColumnType {
	candidates := []ColumnType{TypeInt, TypeFloat, TypeBool}
	seen := false
	for _, rec := range records {
		if idx >= len(rec) || isMissing(rec[idx]) {
			continue
		}
		seen = true
		kept := candidates[:0]
		for _, c := range candidates {
			if parses(c, rec[idx]) {
				kept = append(kept, c)
			}
		}
		candidates = kept
		if len(candidates) == 0 {
			return TypeString
		}
	}
	if !seen {
		// all-missing columns read back as floats, like NaN-only columns
		return TypeFloat
	}
	return candidates[0]
}

func parses(typ ColumnType, s string) bool {
	switch typ {
	case TypeInt:
		_, err := strconv.ParseInt(s, 10, 64)
		return err == nil
	case TypeFloat:
		_, err := strconv.ParseFloat(s, 64)
		return err == nil
	case TypeBool:
		_, ok := parseBool(s)
		return ok
	}
	return true
}

func parseAs(typ ColumnType, s string) any {
	switch typ {
	case TypeInt:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	case TypeFloat:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case TypeBool:
		if b, ok := parseBool(s); ok {
			return b
		}
	case TypeTime:
		if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return ts
		}
	}
	return s
}

func parseBool(s string) (bool, bool) {
	switch s {
	case "True", "true", "TRUE":
		return true, true
	case "False", "false", "FALSE":
		return false, true
	}
	return false, false
}
