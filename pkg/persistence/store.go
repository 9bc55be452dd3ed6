package persistence

import "github.com/ajitpratap0/caudal/pkg/models"

// TableStore reads and writes whole tables in one format.
type TableStore interface {
	ReadTable(path string) (*models.Table, error)
	WriteTable(t *models.Table, path string) error
}

// TableAppender adds rows to an existing table without rewriting it.
type TableAppender interface {
	AppendTable(t *models.Table, path string) error
}

// DocumentStore reads and writes key/value documents.
type DocumentStore interface {
	ReadDocument(path string) (map[string]any, error)
	WriteDocument(doc any, path string) error
}

// BlobStore serializes arbitrary Go values.
type BlobStore interface {
	WriteObject(v any, path string) error
	ReadObject(v any, path string) error
}

var (
	_ TableStore    = (*CSVStore)(nil)
	_ TableAppender = (*CSVStore)(nil)
	_ TableStore    = (*ColumnarStore)(nil)
	_ TableAppender = (*ColumnarStore)(nil)
	_ TableStore    = (*ExcelStore)(nil)
	_ TableStore    = (*AvroStore)(nil)
	_ DocumentStore = (*YAMLStore)(nil)
	_ DocumentStore = (*JSONStore)(nil)
	_ BlobStore     = (*GobStore)(nil)
)
