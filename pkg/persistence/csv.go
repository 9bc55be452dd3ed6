package persistence

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ajitpratap0/caudal/pkg/compression"
	"github.com/ajitpratap0/caudal/pkg/logger"
	"github.com/ajitpratap0/caudal/pkg/models"
)

// DefaultMissingValues are the cell tokens read as missing values.
var DefaultMissingValues = []string{
	"", "#",
	"#N/A", "#N/A N/A", "#NA", "-1.#IND", "-1.#QNAN", "-NaN", "-nan",
	"1.#IND", "1.#QNAN", "<NA>", "N/A", "NA", "NULL", "NaN", "None",
	"n/a", "nan", "null",
}

const utf8BOM = "\ufeff"

// CSVStore reads and writes delimited text tables, compressed or not.
type CSVStore struct {
	Separator     rune
	MissingValues []string

	log         *logger.Logger
	missingOnce sync.Once
	missing     map[string]struct{}
}

// NewCSVStore creates a comma separated store using DefaultMissingValues.
func NewCSVStore(log *logger.Logger) *CSVStore {
	if log == nil {
		log = logger.Get()
	}
	return &CSVStore{
		Separator:     ',',
		MissingValues: DefaultMissingValues,
		log:           log,
	}
}

// ReadTable reads the table at path. A source without any content yields an
// empty table rather than an error.
func (s *CSVStore) ReadTable(path string) (*models.Table, error) {
	rc, err := compression.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer rc.Close()

	r := csv.NewReader(rc)
	r.Comma = s.Separator
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		s.log.Info("Empty dataframe found in", filepath.Base(path))
		return models.Empty(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	header[0] = strings.TrimPrefix(header[0], utf8BOM)

	// short records are padded with missing values; long ones are malformed
	var records [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if len(rec) > len(header) {
			line, _ := r.FieldPos(0)
			return nil, fmt.Errorf("%w: failed to read %s: line %d has %d fields, header has %d",
				ErrMalformedTable, path, line, len(rec), len(header))
		}
		records = append(records, rec)
	}
	return models.FromStrings(header, records, s.isMissing), nil
}

// WriteTable writes a header and every row, replacing the file.
func (s *CSVStore) WriteTable(t *models.Table, path string) error {
	if err := ensureParent(path); err != nil {
		return err
	}
	w, err := compression.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	return s.write(w, t, true, path)
}

// AppendTable adds rows to the end of path without repeating the header.
func (s *CSVStore) AppendTable(t *models.Table, path string) error {
	if err := ensureParent(path); err != nil {
		return err
	}
	w, err := compression.Append(path)
	if err != nil {
		return fmt.Errorf("failed to open %s for append: %w", path, err)
	}
	return s.write(w, t, false, path)
}

func (s *CSVStore) write(w io.WriteCloser, t *models.Table, header bool, path string) error {
	cw := csv.NewWriter(w)
	cw.Comma = s.Separator

	if header {
		if err := cw.Write(t.ColumnNames()); err != nil {
			w.Close()
			return fmt.Errorf("failed to write header to %s: %w", path, err)
		}
	}

	record := make([]string, t.NumCols())
	for _, row := range t.Rows {
		for i := range record {
			record[i] = ""
			if i < len(row) {
				record[i] = models.FormatValue(row[i])
			}
		}
		if err := cw.Write(record); err != nil {
			w.Close()
			return fmt.Errorf("failed to write row to %s: %w", path, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		w.Close()
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return w.Close()
}

func (s *CSVStore) isMissing(cell string) bool {
	s.missingOnce.Do(func() {
		s.missing = make(map[string]struct{}, len(s.MissingValues))
		for _, v := range s.MissingValues {
			s.missing[v] = struct{}{}
		}
	})
	_, ok := s.missing[cell]
	return ok
}

// ReadCSV reads a delimited text table.
func (g *Gateway) ReadCSV(segments ...string) (*models.Table, error) {
	return g.csv().ReadTable(g.Path(segments...))
}

// WriteCSV writes t as delimited text, replacing any existing file.
func (g *Gateway) WriteCSV(t *models.Table, segments ...string) error {
	return g.csv().WriteTable(t, g.Path(segments...))
}

// AppendCSV appends the rows of t to a delimited text file.
func (g *Gateway) AppendCSV(t *models.Table, segments ...string) error {
	return g.csv().AppendTable(t, g.Path(segments...))
}

func (g *Gateway) csv() *CSVStore {
	if s, ok := g.stores[".csv"].(*CSVStore); ok {
		return s
	}
	return NewCSVStore(g.log)
}
