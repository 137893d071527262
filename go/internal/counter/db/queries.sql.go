package db

import (
	"context"

	"github.com/sqlc-dev/pqtype"
)

const fetchDocument = `-- name: FetchDocument :one
SELECT id, counts, updated_at FROM slap_documents
WHERE id = $1
`

func (q *Queries) FetchDocument(ctx context.Context, id string) (SlapDocument, error) {
	row := q.db.QueryRowContext(ctx, fetchDocument, id)
	var i SlapDocument
	err := row.Scan(&i.ID, &i.Counts, &i.UpdatedAt)
	return i, err
}

// A field that is missing or not a JSON number is treated as zero.
const incrementField = `-- name: IncrementField :one
UPDATE slap_documents
SET counts = jsonb_set(
        counts,
        ARRAY[$2::text],
        to_jsonb(
            CASE WHEN jsonb_typeof(counts -> $2::text) = 'number'
                 THEN (counts ->> $2::text)::numeric::bigint
                 ELSE 0
            END + 1
        ),
        true
    ),
    updated_at = now()
WHERE id = $1
RETURNING id, counts, updated_at
`

type IncrementFieldParams struct {
	ID    string `json:"id"`
	Field string `json:"field"`
}

func (q *Queries) IncrementField(ctx context.Context, arg IncrementFieldParams) (SlapDocument, error) {
	row := q.db.QueryRowContext(ctx, incrementField, arg.ID, arg.Field)
	var i SlapDocument
	err := row.Scan(&i.ID, &i.Counts, &i.UpdatedAt)
	return i, err
}

const insertDocument = `-- name: InsertDocument :execrows
INSERT INTO slap_documents (id, counts)
VALUES ($1, $2)
ON CONFLICT (id) DO NOTHING
`

type InsertDocumentParams struct {
	ID     string                `json:"id"`
	Counts pqtype.NullRawMessage `json:"counts"`
}

func (q *Queries) InsertDocument(ctx context.Context, arg InsertDocumentParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, insertDocument, arg.ID, arg.Counts)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
