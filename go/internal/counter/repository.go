package counter

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mcdev12/slapboard/go/internal/counter/db"
	"github.com/mcdev12/slapboard/go/internal/sqlutil"
)

// Querier defines what the repository needs from the database layer
type Querier interface {
	FetchDocument(ctx context.Context, id string) (db.SlapDocument, error)
	IncrementField(ctx context.Context, arg db.IncrementFieldParams) (db.SlapDocument, error)
	InsertDocument(ctx context.Context, arg db.InsertDocumentParams) (int64, error)
}

// Repository implements counter document access
type Repository struct {
	queries  Querier
	database sqlutil.TxBeginner
}

// NewRepository creates a new counter repository. database may be nil when
// EnsureDocument is never called.
func NewRepository(querier Querier, database sqlutil.TxBeginner) *Repository {
	return &Repository{
		queries:  querier,
		database: database,
	}
}

// FetchDocument retrieves a document by ID
func (r *Repository) FetchDocument(ctx context.Context, id string) (*Document, error) {
	row, err := r.queries.FetchDocument(ctx, id)
	if err != nil {
		return nil, r.wrap(err, "failed to fetch document %s", id)
	}
	return r.dbDocumentToModel(row), nil
}

// IncrementField adds one to a single field of the document in one statement
func (r *Repository) IncrementField(ctx context.Context, id, field string) (*Document, error) {
	row, err := r.queries.IncrementField(ctx, db.IncrementFieldParams{
		ID:    id,
		Field: field,
	})
	if err != nil {
		return nil, r.wrap(err, "failed to increment %s in document %s", field, id)
	}
	return r.dbDocumentToModel(row), nil
}

// EnsureDocument creates the document with initial counts if it does not exist
// and returns the stored document. Both steps run in one transaction.
func (r *Repository) EnsureDocument(ctx context.Context, id string, initial json.RawMessage) (*Document, bool, error) {
	if r.database == nil {
		return nil, false, fmt.Errorf("repository has no database handle")
	}

	var (
		row     db.SlapDocument
		created bool
	)
	err := sqlutil.Run(ctx, r.database, db.New(nil).WithTx, func(q *db.Queries) error {
		n, err := q.InsertDocument(ctx, db.InsertDocumentParams{
			ID:     id,
			Counts: sqlutil.ToNullRawMessage(initial),
		})
		if err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
		created = n > 0

		row, err = q.FetchDocument(ctx, id)
		if err != nil {
			return fmt.Errorf("fetch document: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, false, r.wrap(err, "failed to ensure document %s", id)
	}
	return r.dbDocumentToModel(row), created, nil
}

func (r *Repository) wrap(err error, format string, args ...interface{}) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrDocumentNotFound)
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func (r *Repository) dbDocumentToModel(row db.SlapDocument) *Document {
	return &Document{
		ID:        row.ID,
		Counts:    sqlutil.FromNullRawMessage(row.Counts, json.RawMessage(`{}`)),
		UpdatedAt: row.UpdatedAt,
	}
}
