package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	_ "github.com/mcdev12/slapboard/go/internal/leagues/ipl"
	"github.com/mcdev12/slapboard/go/internal/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	logging.Setup("counterd")

	cfg, err := loadConfig(getEnv("SLAPBOARD_CONFIG", "config/slapboard.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	roster, err := setupRoster(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("roster")
	}

	database, err := setupDatabase()
	if err != nil {
		log.Fatal().Err(err).Msg("database")
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	services := setupServices(database, roster, cfg.DocumentID)
	if err := services.ensureDocument(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure counter document")
	}

	server := setupServer(services, database)

	go func() {
		log.Info().Str("addr", server.Addr).Str("document_id", cfg.DocumentID).Msg("counterd listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down counterd")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}
