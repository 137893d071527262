package relay

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/slapboard/go/internal/counter"
)

// Snapshot is one published copy of the counter document
type Snapshot struct {
	DocumentID string
	Counts     json.RawMessage
	UpdatedAt  time.Time
}

// MsgID identifies a document version for broker-side deduplication.
// It is a name-based UUID over the id, timestamp and counts, so versions
// committed within the same clock tick still differ by their counts.
func (s Snapshot) MsgID() string {
	name := make([]byte, 0, len(s.DocumentID)+len(s.Counts)+40)
	name = append(name, s.DocumentID...)
	name = append(name, 0)
	name = s.UpdatedAt.UTC().AppendFormat(name, time.RFC3339Nano)
	name = append(name, 0)
	name = append(name, s.Counts...)
	return s.DocumentID + "-" + uuid.NewSHA1(msgIDNamespace, name).String()
}

var msgIDNamespace = uuid.MustParse("6f2b8f4e-3c1d-5a7e-9b0c-2d4e6f8a1b3c")

// Publisher is an interface that defines our publisher.
type Publisher interface {
	Publish(ctx context.Context, snap Snapshot) error
}

// DocumentFetcher reads the current document
type DocumentFetcher interface {
	FetchDocument(ctx context.Context, id string) (*counter.Document, error)
}
