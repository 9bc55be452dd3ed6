package persistence

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ajitpratap0/caudal/pkg/models"
)

// DefaultSheet is the sheet used when none is given
const DefaultSheet = "Sheet1"

// ExcelStore reads and writes one sheet of a spreadsheet workbook. The
// first row holds the column names; no index column is written.
type ExcelStore struct {
	Sheet string

	csv *CSVStore
}

// NewExcelStore creates a store for the named sheet.
func NewExcelStore(sheet string) *ExcelStore {
	if sheet == "" {
		sheet = DefaultSheet
	}
	return &ExcelStore{Sheet: sheet}
}

// ReadTable reads the store's sheet from the workbook at path. Cell types
// are inferred the same way as for delimited text.
func (s *ExcelStore) ReadTable(path string) (*models.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(s.Sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s of %s: %w", s.Sheet, path, err)
	}
	if len(rows) == 0 {
		return models.Empty(), nil
	}
	return models.FromStrings(rows[0], rows[1:], s.missing().isMissing), nil
}

// WriteTable writes t to a new workbook holding only the store's sheet.
func (s *ExcelStore) WriteTable(t *models.Table, path string) error {
	if err := ensureParent(path); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if s.Sheet != DefaultSheet {
		if _, err := f.NewSheet(s.Sheet); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", s.Sheet, err)
		}
		if err := f.DeleteSheet(DefaultSheet); err != nil {
			return fmt.Errorf("failed to remove sheet %s: %w", DefaultSheet, err)
		}
	}
	idx, err := f.GetSheetIndex(s.Sheet)
	if err != nil {
		return err
	}
	f.SetActiveSheet(idx)

	header := make([]any, t.NumCols())
	for i, name := range t.ColumnNames() {
		header[i] = name
	}
	if err := s.setRow(f, 1, header); err != nil {
		return err
	}
	for r, row := range t.Rows {
		cells := make([]any, t.NumCols())
		for i := range cells {
			if i < len(row) {
				cells[i] = excelValue(row[i])
			}
		}
		if err := s.setRow(f, r+2, cells); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

func (s *ExcelStore) setRow(f *excelize.File, row int, cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(s.Sheet, cell, &cells); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}

func (s *ExcelStore) missing() *CSVStore {
	if s.csv == nil {
		s.csv = &CSVStore{MissingValues: DefaultMissingValues}
	}
	return s.csv
}

// excelValue keeps numbers and booleans native; times are stored as text so
// they read back unchanged.
func excelValue(v any) any {
	switch x := v.(type) {
	case time.Time:
		return models.FormatValue(x)
	default:
		return v
	}
}

// ReadExcel reads one sheet of a workbook; an empty sheet name selects Sheet1.
func (g *Gateway) ReadExcel(sheet string, segments ...string) (*models.Table, error) {
	return NewExcelStore(sheet).ReadTable(g.Path(segments...))
}

// WriteExcel writes t as the only sheet of a new workbook.
func (g *Gateway) WriteExcel(t *models.Table, sheet string, segments ...string) error {
	return NewExcelStore(sheet).WriteTable(t, g.Path(segments...))
}
