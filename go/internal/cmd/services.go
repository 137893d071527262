package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/slapboard/go/internal/counter"
	counterdb "github.com/mcdev12/slapboard/go/internal/counter/db"
	"github.com/mcdev12/slapboard/go/internal/tally"
)

type Services struct {
	Counter *counter.Service

	repo       *counter.Repository
	roster     *tally.Roster
	documentID string
}

func setupServices(database *sql.DB, roster *tally.Roster, documentID string) *Services {
	// Wire up dependency injection chain
	// Database layer → Repository layer → App layer → Service layer
	queries := counterdb.New(database)
	counterRepo := counter.NewRepository(queries, database)
	counterApp := counter.NewApp(counterRepo, roster, documentID)
	counterService := counter.NewService(counterApp)

	return &Services{
		Counter:    counterService,
		repo:       counterRepo,
		roster:     roster,
		documentID: documentID,
	}
}

// ensureDocument seeds the counter document with the roster baseline on first start
func (s *Services) ensureDocument(ctx context.Context) error {
	initial, err := tally.EncodeCounts(s.roster.Baseline())
	if err != nil {
		return fmt.Errorf("encode baseline: %w", err)
	}

	doc, created, err := s.repo.EnsureDocument(ctx, s.documentID, initial)
	if err != nil {
		return err
	}

	log.Info().
		Str("document_id", doc.ID).
		Bool("created", created).
		RawJSON("counts", doc.Counts).
		Msg("counter document ready")
	return nil
}
