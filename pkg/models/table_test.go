package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isEmpty(s string) bool { return s == "" || s == "#" }

func TestFromStrings_InfersColumnTypes(t *testing.T) {
	header := []string{"station", "flow", "count", "active", "blank"}
	records := [][]string{
		{"Rio Maipo", "12.5", "3", "True", ""},
		{"Rio Loa", "#", "4", "False", "#"},
		{"Rio Elqui", "7", "", "true", ""},
	}

	tbl := FromStrings(header, records, isEmpty)

	assert.Equal(t, []Column{
		{Name: "station", Type: TypeString},
		{Name: "flow", Type: TypeFloat},
		{Name: "count", Type: TypeInt},
		{Name: "active", Type: TypeBool},
		{Name: "blank", Type: TypeFloat},
	}, tbl.Columns)
	require.Equal(t, 3, tbl.NumRows())
	assert.Equal(t, []any{"Rio Maipo", 12.5, int64(3), true, nil}, tbl.Rows[0])
	assert.Equal(t, []any{"Rio Loa", nil, int64(4), false, nil}, tbl.Rows[1])
	assert.Equal(t, []any{"Rio Elqui", 7.0, nil, true, nil}, tbl.Rows[2])
}

func TestFromStrings_ShortRecordsArePadded(t *testing.T) {
	tbl := FromStrings([]string{"a", "b"}, [][]string{{"1"}}, isEmpty)
	assert.Equal(t, []any{int64(1), nil}, tbl.Rows[0])
}

func TestFromValues(t *testing.T) {
	ts := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	tbl := FromValues(
		[]string{"id", "name", "flow", "seen"},
		[][]any{
			{nil, []byte("maipo"), float32(1.5), ts},
			{int32(2), "loa", nil, nil},
		},
	)

	assert.Equal(t, TypeInt, tbl.Columns[0].Type)
	assert.Equal(t, TypeString, tbl.Columns[1].Type)
	assert.Equal(t, TypeFloat, tbl.Columns[2].Type)
	assert.Equal(t, TypeTime, tbl.Columns[3].Type)
	assert.Equal(t, []any{nil, "maipo", 1.5, ts}, tbl.Rows[0])
	assert.Equal(t, []any{int64(2), "loa", nil, nil}, tbl.Rows[1])
}

func TestFromValues_MixedColumns(t *testing.T) {
	tbl := FromValues(
		[]string{"caudal", "code", "mixed"},
		[][]any{
			{int64(1), int64(7), int64(3)},
			{2.5, nil, "n/a"},
			{uint8(4), int32(8), true},
		},
	)

	assert.Equal(t, TypeFloat, tbl.Columns[0].Type, "ints widen to float")
	assert.Equal(t, TypeInt, tbl.Columns[1].Type)
	assert.Equal(t, TypeString, tbl.Columns[2].Type)
	assert.Equal(t, []any{1.0, 2.5, 4.0}, []any{tbl.Rows[0][0], tbl.Rows[1][0], tbl.Rows[2][0]})
	assert.Equal(t, []any{"3", "n/a", "True"}, []any{tbl.Rows[0][2], tbl.Rows[1][2], tbl.Rows[2][2]})
}

func TestNormalize_FloatAcceptsIntegers(t *testing.T) {
	for _, v := range []any{int(3), int8(3), int16(3), int32(3), int64(3), uint8(3), uint16(3), uint32(3)} {
		assert.Equal(t, 3.0, Normalize(TypeFloat, v), "%T", v)
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"x", "x"},
		{int64(-4), "-4"},
		{2.0, "2.0"},
		{0.25, "0.25"},
		{1e21, "1000000000000000000000.0"},
		{true, "True"},
		{false, "False"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatValue(tt.in))
	}
}

func TestTable_AppendRowAndConcat(t *testing.T) {
	a := NewTable(Column{Name: "x", Type: TypeInt})
	require.NoError(t, a.AppendRow(int64(1)))
	assert.Error(t, a.AppendRow(int64(1), int64(2)))

	b := NewTable(Column{Name: "x", Type: TypeInt})
	require.NoError(t, b.AppendRow(int64(2)))
	require.NoError(t, a.Concat(b))
	assert.Equal(t, 2, a.NumRows())

	v, ok := a.Value(1, "x")
	assert.True(t, ok)
	assert.Equal(t, int64(2), v)

	c := NewTable(Column{Name: "y", Type: TypeInt})
	assert.Error(t, a.Concat(c))

	empty := Empty()
	require.NoError(t, empty.Concat(a))
	assert.Equal(t, []string{"x"}, empty.ColumnNames())
}
