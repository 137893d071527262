package db

import (
	"time"

	"github.com/sqlc-dev/pqtype"
)

type SlapDocument struct {
	ID        string                `json:"id"`
	Counts    pqtype.NullRawMessage `json:"counts"`
	UpdatedAt time.Time             `json:"updated_at"`
}
