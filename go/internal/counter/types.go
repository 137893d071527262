package counter

import (
	"encoding/json"
	"time"
)

// Document is one row of slap_documents: a JSON object with one integer field per team
type Document struct {
	ID        string          `json:"id"`
	Counts    json.RawMessage `json:"counts"`
	UpdatedAt time.Time       `json:"updated_at"`
}
