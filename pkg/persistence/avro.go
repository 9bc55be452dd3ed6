package persistence

import (
	"bufio"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/linkedin/goavro/v2"

	"github.com/ajitpratap0/caudal/pkg/models"
)

// DefaultRecordName names the Avro record written by AvroStore
const DefaultRecordName = "Row"

// columnsMetaKey holds the original column names when they are not valid
// Avro names
const columnsMetaKey = "caudal.columns"

// AvroStore reads and writes tables as Avro object container files. Every
// field is a union with null so missing values survive a round trip.
type AvroStore struct {
	RecordName  string
	Compression string
}

// NewAvroStore creates a store using the deflate codec.
func NewAvroStore() *AvroStore {
	return &AvroStore{
		RecordName:  DefaultRecordName,
		Compression: goavro.CompressionDeflateLabel,
	}
}

type avroField struct {
	Name string `json:"name"`
	Type any    `json:"type"`
}

type avroSchema struct {
	Type   string      `json:"type"`
	Name   string      `json:"name"`
	Fields []avroField `json:"fields"`
}

// ReadTable reads every record of the container file at path.
func (s *AvroStore) ReadTable(path string) (*models.Table, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path is built by the gateway
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	ocfr, err := goavro.NewOCFReader(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	// the writer schema keeps logical types, the canonical form does not
	var schema avroSchema
	if err := json.Unmarshal(ocfr.MetaData()["avro.schema"], &schema); err != nil {
		return nil, fmt.Errorf("failed to parse schema of %s: %w", path, err)
	}

	var names []string
	if raw, ok := ocfr.MetaData()[columnsMetaKey]; ok {
		if err := json.Unmarshal(raw, &names); err != nil {
			return nil, fmt.Errorf("failed to parse column names of %s: %w", path, err)
		}
	}
	if len(names) != len(schema.Fields) {
		names = nil
	}

	columns := make([]models.Column, len(schema.Fields))
	fields := make([]string, len(schema.Fields))
	for i, field := range schema.Fields {
		fields[i] = field.Name
		columns[i] = models.Column{Name: field.Name, Type: fromAvroType(field.Type)}
		if names != nil {
			columns[i].Name = names[i]
		}
	}

	t := models.NewTable(columns...)
	for ocfr.Scan() {
		datum, err := ocfr.Read()
		if err != nil {
			return nil, fmt.Errorf("failed to read record from %s: %w", path, err)
		}
		record, ok := datum.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("unexpected datum %T in %s", datum, path)
		}
		row := make([]any, len(columns))
		for i, col := range columns {
			row[i] = models.Normalize(col.Type, unwrapUnion(record[fields[i]]))
		}
		t.Rows = append(t.Rows, row)
	}
	if err := ocfr.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return t, nil
}

// WriteTable writes t to a new container file at path.
func (s *AvroStore) WriteTable(t *models.Table, path string) error {
	if err := ensureParent(path); err != nil {
		return err
	}

	fields := avroNames(t.ColumnNames())
	schema := avroSchema{Type: "record", Name: s.RecordName}
	branches := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		typ, branch := toAvroType(col.Type)
		schema.Fields = append(schema.Fields, avroField{Name: fields[i], Type: []any{"null", typ}})
		branches[i] = branch
	}
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return err
	}

	var meta map[string][]byte
	if !slices.Equal(fields, t.ColumnNames()) {
		names, err := json.Marshal(t.ColumnNames())
		if err != nil {
			return err
		}
		meta = map[string][]byte{columnsMetaKey: names}
	}

	f, err := os.Create(path) //nolint:gosec // G304: path is built by the gateway
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	ocfw, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               f,
		Schema:          string(schemaJSON),
		CompressionName: s.Compression,
		MetaData:        meta,
	})
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to create avro writer for %s: %w", path, err)
	}

	datums := make([]any, 0, len(t.Rows))
	for _, row := range t.Rows {
		record := make(map[string]any, len(t.Columns))
		for i, col := range t.Columns {
			var v any
			if i < len(row) {
				v = models.Normalize(col.Type, row[i])
			}
			if v == nil {
				record[fields[i]] = nil
				continue
			}
			record[fields[i]] = goavro.Union(branches[i], v)
		}
		datums = append(datums, record)
	}
	if err := ocfw.Append(datums); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// avroNames maps column names to unique valid Avro names: letters, digits
// and underscores, not starting with a digit.
func avroNames(columns []string) []string {
	names := make([]string, len(columns))
	seen := make(map[string]bool, len(columns))
	for i, col := range columns {
		var b strings.Builder
		for j, r := range col {
			switch {
			case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
				b.WriteRune(r)
			case r >= '0' && r <= '9':
				if j == 0 {
					b.WriteRune('_')
				}
				b.WriteRune(r)
			default:
				b.WriteRune('_')
			}
		}
		name := b.String()
		if name == "" {
			name = "_"
		}
		for base, n := name, 1; seen[name]; n++ {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		seen[name] = true
		names[i] = name
	}
	return names
}

// toAvroType returns the schema type of a column and the union branch name
// goavro uses for it.
func toAvroType(typ models.ColumnType) (any, string) {
	switch typ {
	case models.TypeInt:
		return "long", "long"
	case models.TypeFloat:
		return "double", "double"
	case models.TypeBool:
		return "boolean", "boolean"
	case models.TypeTime:
		return map[string]any{"type": "long", "logicalType": "timestamp-micros"}, "long.timestamp-micros"
	default:
		return "string", "string"
	}
}

func fromAvroType(typ any) models.ColumnType {
	switch x := typ.(type) {
	case []any:
		for _, member := range x {
			if member != "null" {
				return fromAvroType(member)
			}
		}
	case map[string]any:
		if lt, ok := x["logicalType"].(string); ok {
			switch lt {
			case "timestamp-millis", "timestamp-micros":
				return models.TypeTime
			}
		}
		return fromAvroType(x["type"])
	case string:
		switch x {
		case "int", "long":
			return models.TypeInt
		case "float", "double":
			return models.TypeFloat
		case "boolean":
			return models.TypeBool
		}
	}
	return models.TypeString
}

func unwrapUnion(v any) any {
	if m, ok := v.(map[string]any); ok && len(m) == 1 {
		for _, inner := range m {
			if ts, ok := inner.(time.Time); ok {
				return ts.UTC()
			}
			return inner
		}
	}
	return v
}

// ReadAvro reads an Avro container file.
func (g *Gateway) ReadAvro(segments ...string) (*models.Table, error) {
	return g.avro().ReadTable(g.Path(segments...))
}

// WriteAvro writes t as an Avro container file.
func (g *Gateway) WriteAvro(t *models.Table, segments ...string) error {
	return g.avro().WriteTable(t, g.Path(segments...))
}

func (g *Gateway) avro() *AvroStore {
	if s, ok := g.stores[".avro"].(*AvroStore); ok {
		return s
	}
	return NewAvroStore()
}
