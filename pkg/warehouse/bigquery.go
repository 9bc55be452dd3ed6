package warehouse

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"time"

	"cloud.google.com/go/bigquery"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	caudalerrors "github.com/ajitpratap0/caudal/pkg/errors"
	"github.com/ajitpratap0/caudal/pkg/logger"
	"github.com/ajitpratap0/caudal/pkg/models"
)

// ErrNoProject is returned when no project is given and none can be found
// in the credentials
var ErrNoProject = errors.New("no BigQuery project configured or discoverable")

// BigQuery runs queries with a client created for each call.
type BigQuery struct {
	// ProjectID is used when Query receives an empty project
	ProjectID string
	// CredentialsFile is a service account key; empty uses the
	// application default credentials
	CredentialsFile string
}

// NewBigQuery creates a BigQuery warehouse.
func NewBigQuery(projectID, credentialsFile string) *BigQuery {
	return &BigQuery{ProjectID: projectID, CredentialsFile: credentialsFile}
}

// Query runs query billed to projectID and reads every row.
func (b *BigQuery) Query(ctx context.Context, query, projectID string) (*models.Table, error) {
	project, err := b.project(ctx, projectID)
	if err != nil {
		return nil, err
	}

	var opts []option.ClientOption
	if b.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(b.CredentialsFile))
	}

	client, err := bigquery.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, caudalerrors.Wrap(err, caudalerrors.ErrorTypeConnection, "failed to create BigQuery client").
			WithDetail("project", project)
	}
	defer client.Close()

	logger.Get().Named("warehouse").Debug("Running BigQuery query in project", project)

	it, err := client.Query(query).Read(ctx)
	if err != nil {
		return nil, caudalerrors.Wrap(err, caudalerrors.ErrorTypeQuery, "failed to run BigQuery query").
			WithDetail("project", project)
	}

	var rows [][]bigquery.Value
	for {
		var row []bigquery.Value
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, caudalerrors.Wrap(err, caudalerrors.ErrorTypeData, "failed to read BigQuery rows")
		}
		rows = append(rows, row)
	}
	return fromBigQuery(it.Schema, rows), nil
}

// project resolves the billing project: the argument, then the configured
// project, then the project of the credentials.
func (b *BigQuery) project(ctx context.Context, projectID string) (string, error) {
	if projectID != "" {
		return projectID, nil
	}
	if b.ProjectID != "" {
		return b.ProjectID, nil
	}

	var (
		creds *google.Credentials
		err   error
	)
	if b.CredentialsFile != "" {
		var data []byte
		data, err = os.ReadFile(b.CredentialsFile)
		if err != nil {
			return "", caudalerrors.Wrap(err, caudalerrors.ErrorTypeAuthentication, "failed to read credentials")
		}
		creds, err = google.CredentialsFromJSON(ctx, data, bigquery.Scope)
	} else {
		creds, err = google.FindDefaultCredentials(ctx, bigquery.Scope)
	}
	if err != nil {
		return "", caudalerrors.Wrap(err, caudalerrors.ErrorTypeAuthentication, "failed to find credentials")
	}
	if creds.ProjectID == "" {
		return "", ErrNoProject
	}
	return creds.ProjectID, nil
}

func fromBigQuery(schema bigquery.Schema, rows [][]bigquery.Value) *models.Table {
	columns := make([]models.Column, len(schema))
	for i, field := range schema {
		columns[i] = models.Column{Name: field.Name, Type: bigQueryType(field.Type)}
	}

	t := &models.Table{Columns: columns, Rows: make([][]any, 0, len(rows))}
	for _, raw := range rows {
		row := make([]any, len(columns))
		for i, col := range columns {
			if i < len(raw) {
				row[i] = models.Normalize(col.Type, bigQueryValue(raw[i]))
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func bigQueryType(ft bigquery.FieldType) models.ColumnType {
	switch ft {
	case bigquery.IntegerFieldType:
		return models.TypeInt
	case bigquery.FloatFieldType, bigquery.NumericFieldType, bigquery.BigNumericFieldType:
		return models.TypeFloat
	case bigquery.BooleanFieldType:
		return models.TypeBool
	case bigquery.TimestampFieldType:
		return models.TypeTime
	default:
		return models.TypeString
	}
}

func bigQueryValue(v bigquery.Value) any {
	switch x := v.(type) {
	case *big.Rat:
		f, _ := x.Float64()
		return f
	case time.Time:
		return x.UTC()
	case fmt.Stringer:
		// civil dates and times
		return x.String()
	default:
		return v
	}
}
