package sqlutil

import (
	"encoding/json"

	"github.com/sqlc-dev/pqtype"
)

// Helper functions for converting between Go types and nullable jsonb columns

// ToNullRawMessage wraps a JSON document for a nullable jsonb parameter.
// An empty document is stored as NULL.
func ToNullRawMessage(doc json.RawMessage) pqtype.NullRawMessage {
	if len(doc) == 0 {
		return pqtype.NullRawMessage{Valid: false}
	}
	return pqtype.NullRawMessage{RawMessage: doc, Valid: true}
}

// FromNullRawMessage returns the document, or fallback when the column is NULL
func FromNullRawMessage(val pqtype.NullRawMessage, fallback json.RawMessage) json.RawMessage {
	if !val.Valid || len(val.RawMessage) == 0 {
		return fallback
	}
	return val.RawMessage
}
