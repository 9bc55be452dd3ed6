package persistence

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/ajitpratap0/caudal/pkg/models"
)

const (
	// DefaultTableName is the table every columnar store holds
	DefaultTableName = "data"
	// DefaultCompressionLevel is the zstd level used for new parts
	DefaultCompressionLevel = 9
)

// ErrSchemaMismatch is returned when appended rows do not match the store columns
var ErrSchemaMismatch = errors.New("columns do not match the existing store")

// ColumnarStore keeps one named table as a directory of Parquet parts.
// Writing replaces every part; appending adds a new part without touching
// the existing ones.
type ColumnarStore struct {
	Table            string
	Codec            compress.Compression
	CompressionLevel int

	mem memory.Allocator
}

// NewColumnarStore creates a store for table "data" compressed with zstd.
func NewColumnarStore() *ColumnarStore {
	return &ColumnarStore{
		Table:            DefaultTableName,
		Codec:            compress.Codecs.Zstd,
		CompressionLevel: DefaultCompressionLevel,
		mem:              memory.NewGoAllocator(),
	}
}

// ReadTable reads and concatenates every part of the store at dir.
func (s *ColumnarStore) ReadTable(dir string) (*models.Table, error) {
	parts, err := s.parts(dir)
	if err != nil {
		return nil, err
	}

	result := models.Empty()
	for _, part := range parts {
		t, err := s.readPart(part)
		if err != nil {
			return nil, err
		}
		if err := result.Concat(t); err != nil {
			return nil, fmt.Errorf("failed to combine %s: %w", part, err)
		}
	}
	return result, nil
}

// WriteTable replaces the store at dir with a single part holding t.
func (s *ColumnarStore) WriteTable(t *models.Table, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create store %s: %w", dir, err)
	}
	existing, err := filepath.Glob(filepath.Join(dir, s.Table+"-*.parquet"))
	if err != nil {
		return err
	}
	for _, part := range existing {
		if err := os.Remove(part); err != nil {
			return fmt.Errorf("failed to replace store %s: %w", dir, err)
		}
	}
	return s.writePart(t, s.partPath(dir, 0))
}

// AppendTable adds t as a new part. The store is created if it is missing.
func (s *ColumnarStore) AppendTable(t *models.Table, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create store %s: %w", dir, err)
	}
	parts, err := filepath.Glob(filepath.Join(dir, s.Table+"-*.parquet"))
	if err != nil {
		return err
	}
	if len(parts) > 0 {
		sort.Strings(parts)
		stored, err := s.partColumns(parts[0])
		if err != nil {
			return err
		}
		appended := make([]models.Column, len(t.Columns))
		for i, col := range t.Columns {
			appended[i] = models.Column{Name: col.Name, Type: fromArrowType(toArrowType(col.Type))}
		}
		if !slices.Equal(stored, appended) {
			return fmt.Errorf("%w: store has %v, got %v", ErrSchemaMismatch, stored, appended)
		}
	}
	return s.writePart(t, s.partPath(dir, len(parts)))
}

// Len returns the number of rows in the store, read from the part footers
// without loading any column data.
func (s *ColumnarStore) Len(dir string) (int64, error) {
	parts, err := s.parts(dir)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, part := range parts {
		fr, err := file.OpenParquetFile(part, false)
		if err != nil {
			return 0, fmt.Errorf("failed to open %s: %w", part, err)
		}
		total += fr.NumRows()
		fr.Close()
	}
	return total, nil
}

func (s *ColumnarStore) partPath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%05d.parquet", s.Table, index))
}

// parts lists the part files in order. A missing store is an error that
// matches os.ErrNotExist.
func (s *ColumnarStore) parts(dir string) ([]string, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("failed to open store %s: %w", dir, err)
	}
	parts, err := filepath.Glob(filepath.Join(dir, s.Table+"-*.parquet"))
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("failed to open store %s: table %q: %w", dir, s.Table, os.ErrNotExist)
	}
	sort.Strings(parts)
	return parts, nil
}

func (s *ColumnarStore) allocator() memory.Allocator {
	if s.mem == nil {
		s.mem = memory.NewGoAllocator()
	}
	return s.mem
}

func (s *ColumnarStore) writePart(t *models.Table, path string) error {
	schema := toArrowSchema(t)
	rec, err := s.buildRecord(schema, t)
	if err != nil {
		return fmt.Errorf("failed to build %s: %w", path, err)
	}
	defer rec.Release()

	props := parquet.NewWriterProperties(
		parquet.WithCompression(s.Codec),
		parquet.WithCompressionLevel(s.CompressionLevel),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithAllocator(s.allocator()))

	var buf bytes.Buffer
	fw, err := pqarrow.NewFileWriter(schema, &buf, props, arrowProps)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", path, err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644) //nolint:gosec // G306: data files are not secrets
}

// partColumns returns the columns of a part as the reader would type them.
func (s *ColumnarStore) partColumns(path string) ([]models.Column, error) {
	fr, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer fr.Close()

	ar, err := pqarrow.NewFileReader(fr, pqarrow.ArrowReadProperties{}, s.allocator())
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	schema, err := ar.Schema()
	if err != nil {
		return nil, fmt.Errorf("failed to read schema of %s: %w", path, err)
	}

	columns := make([]models.Column, 0, schema.NumFields())
	for _, f := range schema.Fields() {
		columns = append(columns, models.Column{Name: f.Name, Type: fromArrowType(f.Type)})
	}
	return columns, nil
}

func (s *ColumnarStore) readPart(path string) (*models.Table, error) {
	fr, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer fr.Close()

	ar, err := pqarrow.NewFileReader(fr, pqarrow.ArrowReadProperties{}, s.allocator())
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	tbl, err := ar.ReadTable(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	defer tbl.Release()

	schema := tbl.Schema()
	columns := make([]models.Column, schema.NumFields())
	for i, f := range schema.Fields() {
		columns[i] = models.Column{Name: f.Name, Type: fromArrowType(f.Type)}
	}

	rows := make([][]any, tbl.NumRows())
	for r := range rows {
		rows[r] = make([]any, len(columns))
	}
	for c := range columns {
		offset := 0
		for _, chunk := range tbl.Column(c).Data().Chunks() {
			for i := 0; i < chunk.Len(); i++ {
				if !chunk.IsNull(i) {
					rows[offset+i][c] = arrowValue(chunk, i)
				}
			}
			offset += chunk.Len()
		}
	}
	return &models.Table{Columns: columns, Rows: rows}, nil
}

func (s *ColumnarStore) buildRecord(schema *arrow.Schema, t *models.Table) (arrow.Record, error) {
	b := array.NewRecordBuilder(s.allocator(), schema)
	defer b.Release()

	for c, col := range t.Columns {
		fb := b.Field(c)
		for _, row := range t.Rows {
			var v any
			if c < len(row) {
				v = models.Normalize(col.Type, row[c])
			}
			if v == nil {
				fb.AppendNull()
				continue
			}
			if err := appendArrowValue(fb, v); err != nil {
				return nil, fmt.Errorf("column %s: %w", col.Name, err)
			}
		}
	}
	return b.NewRecord(), nil
}

func toArrowSchema(t *models.Table) *arrow.Schema {
	fields := make([]arrow.Field, len(t.Columns))
	for i, col := range t.Columns {
		fields[i] = arrow.Field{Name: col.Name, Type: toArrowType(col.Type), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

func toArrowType(typ models.ColumnType) arrow.DataType {
	switch typ {
	case models.TypeInt:
		return arrow.PrimitiveTypes.Int64
	case models.TypeFloat:
		return arrow.PrimitiveTypes.Float64
	case models.TypeBool:
		return arrow.FixedWidthTypes.Boolean
	case models.TypeTime:
		return &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}
	default:
		return arrow.BinaryTypes.String
	}
}

func fromArrowType(dt arrow.DataType) models.ColumnType {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32:
		return models.TypeInt
	case arrow.FLOAT32, arrow.FLOAT64:
		return models.TypeFloat
	case arrow.BOOL:
		return models.TypeBool
	case arrow.TIMESTAMP:
		return models.TypeTime
	default:
		return models.TypeString
	}
}

func appendArrowValue(b array.Builder, v any) error {
	switch fb := b.(type) {
	case *array.Int64Builder:
		n, ok := v.(int64)
		if !ok {
			return fmt.Errorf("expected int64, got %T", v)
		}
		fb.Append(n)
	case *array.Float64Builder:
		f, ok := v.(float64)
		if !ok {
			return fmt.Errorf("expected float64, got %T", v)
		}
		fb.Append(f)
	case *array.BooleanBuilder:
		bv, ok := v.(bool)
		if !ok {
			return fmt.Errorf("expected bool, got %T", v)
		}
		fb.Append(bv)
	case *array.TimestampBuilder:
		ts, ok := v.(interface{ UnixMicro() int64 })
		if !ok {
			return fmt.Errorf("expected time, got %T", v)
		}
		fb.Append(arrow.Timestamp(ts.UnixMicro()))
	case *array.StringBuilder:
		fb.Append(models.FormatValue(v))
	default:
		return fmt.Errorf("unsupported builder %T", b)
	}
	return nil
}

func arrowValue(arr arrow.Array, i int) any {
	switch a := arr.(type) {
	case *array.Int64:
		return a.Value(i)
	case *array.Int32:
		return int64(a.Value(i))
	case *array.Int16:
		return int64(a.Value(i))
	case *array.Int8:
		return int64(a.Value(i))
	case *array.Uint32:
		return int64(a.Value(i))
	case *array.Uint16:
		return int64(a.Value(i))
	case *array.Uint8:
		return int64(a.Value(i))
	case *array.Float64:
		return a.Value(i)
	case *array.Float32:
		return float64(a.Value(i))
	case *array.Boolean:
		return a.Value(i)
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return a.Value(i).ToTime(unit)
	case *array.String:
		return a.Value(i)
	case *array.LargeString:
		return a.Value(i)
	case *array.Binary:
		return string(a.Value(i))
	default:
		return arr.ValueStr(i)
	}
}

// ReadColumnar reads the columnar store at path.
func (g *Gateway) ReadColumnar(segments ...string) (*models.Table, error) {
	return g.columnar().ReadTable(g.Path(segments...))
}

// WriteColumnar replaces the columnar store at path with t.
func (g *Gateway) WriteColumnar(t *models.Table, segments ...string) error {
	return g.columnar().WriteTable(t, g.Path(segments...))
}

// AppendColumnar adds the rows of t to the columnar store at path.
func (g *Gateway) AppendColumnar(t *models.Table, segments ...string) error {
	return g.columnar().AppendTable(t, g.Path(segments...))
}

// ColumnarLen returns the number of rows in the columnar store at path.
func (g *Gateway) ColumnarLen(segments ...string) (int64, error) {
	return g.columnar().Len(g.Path(segments...))
}

func (g *Gateway) columnar() *ColumnarStore {
	if s, ok := g.stores[".parquet"].(*ColumnarStore); ok {
		return s
	}
	return NewColumnarStore()
}
