package persistence

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/caudal/pkg/compression"
	"github.com/ajitpratap0/caudal/pkg/logger"
	"github.com/ajitpratap0/caudal/pkg/models"
)

func newTestGateway(t *testing.T, opts ...Option) *Gateway {
	t.Helper()
	opts = append([]Option{WithLogger(logger.FromZap(zaptest.NewLogger(t)))}, opts...)
	return New(t.TempDir(), opts...)
}

func sampleTable() *models.Table {
	t := models.NewTable(
		models.Column{Name: "station", Type: models.TypeString},
		models.Column{Name: "year", Type: models.TypeInt},
		models.Column{Name: "flow", Type: models.TypeFloat},
		models.Column{Name: "flag", Type: models.TypeBool},
	)
	_ = t.AppendRow("Río Maipo", int64(2001), 12.5, true)
	_ = t.AppendRow("Loa", int64(2002), 2.0, false)
	_ = t.AppendRow("Elqui", nil, nil, true)
	return t
}

func TestGateway_Path(t *testing.T) {
	g := New("/base", WithLogger(logger.FromZap(zaptest.NewLogger(t))))

	assert.Equal(t, "/base/data/raw/x.csv", g.Path("data", "raw", "x.csv"))
	assert.Equal(t, "/abs/x.csv", g.Path("/abs", "x.csv"))
	assert.Equal(t, "/base", g.Base())
}

func TestCSV_RoundTrip(t *testing.T) {
	g := newTestGateway(t)
	want := sampleTable()

	require.NoError(t, g.WriteCSV(want, "out", "nested", "table.csv"))

	raw, err := os.ReadFile(g.Path("out", "nested", "table.csv"))
	require.NoError(t, err)
	assert.Equal(t, "station,year,flow,flag\nRío Maipo,2001,12.5,True\nLoa,2002,2.0,False\nElqui,,,True\n", string(raw))

	got, err := g.ReadCSV("out", "nested", "table.csv")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCSV_MissingTokens(t *testing.T) {
	g := newTestGateway(t)
	require.NoError(t, g.WriteString("a,b\n1,#\nNA,x\n3,NaN\n", "in.csv"))

	got, err := g.ReadCSV("in.csv")
	require.NoError(t, err)

	assert.Equal(t, models.TypeInt, got.Columns[0].Type)
	assert.Equal(t, []any{int64(1), nil}, got.Rows[0])
	assert.Equal(t, []any{nil, "x"}, got.Rows[1])
	assert.Equal(t, []any{int64(3), nil}, got.Rows[2])
}

func TestCSV_EmptySource(t *testing.T) {
	var buf bytes.Buffer
	l, err := logger.New(logger.Config{Level: "info", Console: &buf})
	require.NoError(t, err)
	g := New(t.TempDir(), WithLogger(l))

	require.NoError(t, g.WriteString("", "empty.csv"))

	got, err := g.ReadCSV("empty.csv")
	require.NoError(t, err)
	assert.Equal(t, 0, got.NumRows())
	assert.Equal(t, 0, got.NumCols())
	assert.Contains(t, buf.String(), "INPUT_OUTPUT - Empty dataframe found in")
	assert.Contains(t, buf.String(), "empty.csv")
}

func TestCSV_CompressedSource(t *testing.T) {
	g := newTestGateway(t)
	path := g.Path("data", "raw", "caudal_extra.csv.zip")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	w, err := compression.Create(path)
	require.NoError(t, err)
	_, err = w.Write([]byte("\ufeffcodigo_estacion,caudal\n1001,3.2\n1002,\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	got, err := g.ReadCSV("data", "raw", "caudal_extra.csv.zip")
	require.NoError(t, err)
	assert.Equal(t, []string{"codigo_estacion", "caudal"}, got.ColumnNames())
	assert.Equal(t, []any{int64(1001), 3.2}, got.Rows[0])
	assert.Equal(t, []any{int64(1002), nil}, got.Rows[1])
}

func TestCSV_Append(t *testing.T) {
	g := newTestGateway(t)
	tbl := sampleTable()

	require.NoError(t, g.WriteCSV(tbl, "t.csv"))
	require.NoError(t, g.AppendCSV(tbl, "t.csv"))

	got, err := g.ReadCSV("t.csv")
	require.NoError(t, err)
	assert.Equal(t, 6, got.NumRows())
	assert.Equal(t, tbl.Rows[0], got.Rows[3])
}

func TestCSV_MissingFile(t *testing.T) {
	g := newTestGateway(t)
	_, err := g.ReadCSV("nope.csv")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCSV_RowLongerThanHeader(t *testing.T) {
	g := newTestGateway(t)
	require.NoError(t, g.WriteString("a,b\n1\n2,3,4\n", "long.csv"))

	_, err := g.ReadCSV("long.csv")
	require.ErrorIs(t, err, ErrMalformedTable)
	assert.Contains(t, err.Error(), "line 3 has 3 fields, header has 2")
}

func TestCSV_ShortRowsArePadded(t *testing.T) {
	g := newTestGateway(t)
	require.NoError(t, g.WriteString("a,b\n1\n2,3\n", "short.csv"))

	got, err := g.ReadCSV("short.csv")
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(1), nil}, {int64(2), int64(3)}}, got.Rows)
}

func TestYAML_RoundTrip(t *testing.T) {
	g := newTestGateway(t)
	doc := map[string]any{
		"name":   "Río",
		"n":      3,
		"nested": map[string]any{"enabled": true, "ratio": 0.5},
		"items":  []any{"a", "b"},
	}

	path, err := g.WriteYAML(doc, "configs", "out.yaml")
	require.NoError(t, err)
	assert.Equal(t, g.Path("configs", "out.yaml"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "name: Río")
	assert.Contains(t, string(raw), "nested:\n  enabled: true")

	got, err := g.ReadYAML("configs", "out.yaml")
	require.NoError(t, err)
	assert.Equal(t, doc, got)
}

func TestYAML_EmptyFile(t *testing.T) {
	g := newTestGateway(t)
	require.NoError(t, g.WriteString("", "empty.yaml"))

	got, err := g.ReadYAML("empty.yaml")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestJSON_Indent(t *testing.T) {
	g := newTestGateway(t)
	require.NoError(t, g.WriteJSON(map[string]any{"a": map[string]any{"b": 1}}, "doc.json"))

	raw, err := os.ReadFile(g.Path("doc.json"))
	require.NoError(t, err)
	assert.Equal(t, "{\n    \"a\": {\n        \"b\": 1\n    }\n}", string(raw))

	got, err := g.ReadJSON("doc.json")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": map[string]any{"b": float64(1)}}, got)
}

func TestColumnar_WriteAppendLen(t *testing.T) {
	g := newTestGateway(t)
	tbl := sampleTable()

	require.NoError(t, g.WriteColumnar(tbl, "data", "formatted", "caudal.parquet"))
	n, err := g.ColumnarLen("data", "formatted", "caudal.parquet")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	got, err := g.ReadColumnar("data", "formatted", "caudal.parquet")
	require.NoError(t, err)
	assert.Equal(t, tbl, got)

	require.NoError(t, g.AppendColumnar(tbl, "data", "formatted", "caudal.parquet"))
	n, err = g.ColumnarLen("data", "formatted", "caudal.parquet")
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)

	parts, err := filepath.Glob(g.Path("data", "formatted", "caudal.parquet", "data-*.parquet"))
	require.NoError(t, err)
	assert.Len(t, parts, 2)

	// write replaces every part
	require.NoError(t, g.WriteColumnar(tbl, "data", "formatted", "caudal.parquet"))
	n, err = g.ColumnarLen("data", "formatted", "caudal.parquet")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestColumnar_Times(t *testing.T) {
	g := newTestGateway(t)
	ts := time.Date(2020, 1, 2, 3, 4, 5, 6000, time.UTC)
	tbl := models.NewTable(models.Column{Name: "fecha", Type: models.TypeTime})
	require.NoError(t, tbl.AppendRow(ts))
	require.NoError(t, tbl.AppendRow(nil))

	require.NoError(t, g.WriteColumnar(tbl, "t.parquet"))
	got, err := g.ReadColumnar("t.parquet")
	require.NoError(t, err)
	require.Equal(t, 2, got.NumRows())
	assert.True(t, ts.Equal(got.Rows[0][0].(time.Time)))
	assert.Nil(t, got.Rows[1][0])
}

func TestColumnar_AppendSchemaMismatch(t *testing.T) {
	g := newTestGateway(t)
	require.NoError(t, g.WriteColumnar(sampleTable(), "s.parquet"))

	other := models.NewTable(models.Column{Name: "other", Type: models.TypeInt})
	err := g.AppendColumnar(other, "s.parquet")
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestColumnar_AppendTypeMismatch(t *testing.T) {
	g := newTestGateway(t)
	ints := models.NewTable(models.Column{Name: "caudal", Type: models.TypeInt})
	_ = ints.AppendRow(int64(1))
	require.NoError(t, g.WriteColumnar(ints, "c.parquet"))

	floats := models.NewTable(models.Column{Name: "caudal", Type: models.TypeFloat})
	_ = floats.AppendRow(2.5)
	err := g.AppendColumnar(floats, "c.parquet")
	require.ErrorIs(t, err, ErrSchemaMismatch)

	n, err := g.ColumnarLen("c.parquet")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n, "rejected rows are not written")
}

func TestColumnar_MissingStore(t *testing.T) {
	g := newTestGateway(t)
	_, err := g.ColumnarLen("missing.parquet")
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, os.MkdirAll(g.Path("empty.parquet"), 0o755))
	_, err = g.ReadColumnar("empty.parquet")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestExcel_RoundTrip(t *testing.T) {
	g := newTestGateway(t)
	tbl := models.NewTable(
		models.Column{Name: "station", Type: models.TypeString},
		models.Column{Name: "flow", Type: models.TypeFloat},
		models.Column{Name: "ok", Type: models.TypeBool},
	)
	require.NoError(t, tbl.AppendRow("Loa", 1.5, true))
	require.NoError(t, tbl.AppendRow("Elqui", nil, false))

	require.NoError(t, g.WriteExcel(tbl, "caudal", "outputs", "report.xlsx"))

	got, err := g.ReadExcel("caudal", "outputs", "report.xlsx")
	require.NoError(t, err)
	assert.Equal(t, tbl, got)

	_, err = g.ReadExcel("", "outputs", "report.xlsx")
	assert.Error(t, err, "default sheet was removed")
}

func TestAvro_RoundTrip(t *testing.T) {
	g := newTestGateway(t)
	ts := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	tbl := models.NewTable(
		models.Column{Name: "station", Type: models.TypeString},
		models.Column{Name: "year", Type: models.TypeInt},
		models.Column{Name: "flow", Type: models.TypeFloat},
		models.Column{Name: "at", Type: models.TypeTime},
	)
	require.NoError(t, tbl.AppendRow("Loa", int64(2001), 2.5, ts))
	require.NoError(t, tbl.AppendRow(nil, nil, nil, nil))

	require.NoError(t, g.WriteAvro(tbl, "out.avro"))
	got, err := g.ReadAvro("out.avro")
	require.NoError(t, err)

	assert.Equal(t, tbl.Columns, got.Columns)
	require.Equal(t, 2, got.NumRows())
	assert.Equal(t, []any{"Loa", int64(2001), 2.5}, got.Rows[0][:3])
	assert.True(t, ts.Equal(got.Rows[0][3].(time.Time)))
	assert.Equal(t, []any{nil, nil, nil, nil}, got.Rows[1])
}

func TestAvro_ColumnNamesOutsideAvroGrammar(t *testing.T) {
	g := newTestGateway(t)
	tbl := models.NewTable(
		models.Column{Name: "", Type: models.TypeInt},
		models.Column{Name: "temp max", Type: models.TypeFloat},
		models.Column{Name: "temp_max", Type: models.TypeFloat},
		models.Column{Name: "1st gauge", Type: models.TypeString},
		models.Column{Name: "Río", Type: models.TypeBool},
	)
	require.NoError(t, tbl.AppendRow(int64(0), 31.5, 30.0, "Loa", true))

	require.NoError(t, g.WriteTable(tbl, "odd.avro"))
	got, err := g.ReadTable("odd.avro")
	require.NoError(t, err)

	assert.Equal(t, tbl.Columns, got.Columns)
	assert.Equal(t, tbl.Rows, got.Rows)
}

func TestAvroNames(t *testing.T) {
	assert.Equal(t,
		[]string{"_", "temp_max", "temp_max_1", "_1st", "R_o", "ok"},
		avroNames([]string{"", "temp max", "temp_max", "1st", "Río", "ok"}),
	)
}

type model struct {
	Name    string
	Weights []float64
}

func TestObject_RoundTrip(t *testing.T) {
	g := newTestGateway(t)
	want := model{Name: "regressor", Weights: []float64{0.1, 0.2}}

	require.NoError(t, g.WriteObject(want, "models", "m.gob"))

	var got model
	require.NoError(t, g.ReadObject(&got, "models", "m.gob"))
	assert.Equal(t, want, got)
}

func TestLines(t *testing.T) {
	g := newTestGateway(t)
	require.NoError(t, g.WriteString("a\nb\nc", "notes", "lines.txt"))

	kept, err := g.ReadLines(false, "notes", "lines.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"a\n", "b\n", "c"}, kept)

	cleared, err := g.ReadLines(true, "notes", "lines.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, cleared)
}

type fakeWarehouse struct {
	calls int
	table *models.Table
	err   error
}

func (f *fakeWarehouse) Query(_ context.Context, query, projectID string) (*models.Table, error) {
	f.calls++
	return f.table, f.err
}

func TestReadWarehouse(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		g := newTestGateway(t)
		_, err := g.ReadWarehouse(context.Background(), "SELECT 1", "p")
		assert.ErrorIs(t, err, ErrNoWarehouse)
	})

	t.Run("delegates once", func(t *testing.T) {
		wh := &fakeWarehouse{table: sampleTable()}
		g := newTestGateway(t, WithWarehouse(wh))
		got, err := g.ReadWarehouse(context.Background(), "SELECT 1", "p")
		require.NoError(t, err)
		assert.Equal(t, sampleTable(), got)
		assert.Equal(t, 1, wh.calls)
	})

	t.Run("errors propagate unchanged", func(t *testing.T) {
		boom := errors.New("boom")
		wh := &fakeWarehouse{err: boom}
		g := newTestGateway(t, WithWarehouse(wh))
		_, err := g.ReadWarehouse(context.Background(), "SELECT 1", "p")
		assert.Same(t, boom, err)
		assert.Equal(t, 1, wh.calls)
	})
}

func TestTableDispatch(t *testing.T) {
	g := newTestGateway(t)
	tbl := sampleTable()

	for _, name := range []string{"t.csv", "t.csv.gz", "t.parquet", "t.avro"} {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, g.WriteTable(tbl, name))
			got, err := g.ReadTable(name)
			require.NoError(t, err)
			assert.Equal(t, tbl.ColumnNames(), got.ColumnNames())
			assert.Equal(t, tbl.NumRows(), got.NumRows())
		})
	}

	err := g.WriteTable(tbl, "t.unknown")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.True(t, strings.HasSuffix(err.Error(), "t.unknown"))
}
