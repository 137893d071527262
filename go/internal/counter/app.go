package counter

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/slapboard/go/internal/tally"
)

// CounterRepository defines what the app layer needs from the repository
type CounterRepository interface {
	FetchDocument(ctx context.Context, id string) (*Document, error)
	IncrementField(ctx context.Context, id, field string) (*Document, error)
}

// App handles counter business logic for a single document
type App struct {
	repo       CounterRepository
	roster     *tally.Roster
	documentID string
}

// NewApp creates a new counter App
func NewApp(repo CounterRepository, roster *tally.Roster, documentID string) *App {
	return &App{
		repo:       repo,
		roster:     roster,
		documentID: documentID,
	}
}

// DocumentID returns the document this app serves
func (a *App) DocumentID() string {
	return a.documentID
}

// Increment atomically adds one to team's count and returns the decoded document
func (a *App) Increment(ctx context.Context, team tally.TeamID) (tally.Counts, error) {
	if err := a.roster.Validate(team); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	doc, err := a.repo.IncrementField(ctx, a.documentID, string(team))
	if err != nil {
		return nil, fmt.Errorf("failed to increment: %w", err)
	}

	counts, err := a.decode(doc)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("document_id", a.documentID).
		Str("team", string(team)).
		Int64("count", counts[team]).
		Msg("incremented")
	return counts, nil
}

// GetCounts returns the decoded current document and when it last changed
func (a *App) GetCounts(ctx context.Context) (tally.Counts, time.Time, error) {
	doc, err := a.repo.FetchDocument(ctx, a.documentID)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to get counts: %w", err)
	}
	counts, err := a.decode(doc)
	if err != nil {
		return nil, time.Time{}, err
	}
	return counts, doc.UpdatedAt, nil
}

func (a *App) decode(doc *Document) (tally.Counts, error) {
	decoded, err := a.roster.DecodeCounts(doc.Counts)
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", doc.ID, err)
	}
	if len(decoded.Dropped) > 0 {
		log.Debug().
			Str("document_id", doc.ID).
			Strs("dropped", decoded.Dropped).
			Msg("ignoring unknown document fields")
	}
	return decoded.Counts, nil
}
