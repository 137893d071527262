package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/slapboard/go/internal/config"
	"github.com/mcdev12/slapboard/go/internal/counter"
	"github.com/mcdev12/slapboard/go/internal/counter/db"
	"github.com/mcdev12/slapboard/go/internal/counter/relay"
	"github.com/mcdev12/slapboard/go/internal/dbconfig"
	"github.com/mcdev12/slapboard/go/internal/logging"
)

func main() {
	// load .env
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	logging.Setup("relay")

	appCfg, err := config.Load(getEnv("SLAPBOARD_CONFIG", "config/slapboard.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	// DB config
	cfg := dbconfig.NewConfigFromEnv()
	database, err := cfg.Open(10, 2*time.Second)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer database.Close()

	repo := counter.NewRepository(db.New(database), database)

	// JetStream publisher
	jsCfg := relay.DefaultJetStreamConfig()
	if url := os.Getenv("NATS_URL"); url != "" {
		jsCfg.URL = url
	}
	publisher, err := relay.NewJetStreamPublisher(jsCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create JetStream publisher")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error().Err(err).Msg("close publisher")
		}
	}()

	// Listener config
	ltCfg := relay.DefaultListenerConfig()
	ltCfg.DatabaseURL = cfg.DSN()
	ltCfg.DocumentID = appCfg.DocumentID
	if iv := os.Getenv("FALLBACK_INTERVAL"); iv != "" {
		if d, err := time.ParseDuration(iv); err == nil {
			ltCfg.FallbackInterval = d
		}
	}

	listener, err := relay.NewListener(repo, publisher, ltCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create relay listener")
	}

	// health endpoint
	mux := http.NewServeMux()
	mux.Handle("/health", relay.NewHealthChecker(listener, database, publisher.Conn()))
	healthServer := &http.Server{
		Addr:              ":" + getEnv("RELAY_HEALTH_PORT", "8082"),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", healthServer.Addr).Msg("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server failed")
		}
	}()

	// signal-aware context
	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run listener
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("document_id", ltCfg.DocumentID).Msg("starting relay listener")
		errCh <- listener.Start(ctx)
	}()

	// wait for shutdown or error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
		if err := <-errCh; err != nil {
			log.Error().Err(err).Msg("listener stopped with error")
		}
	case err := <-errCh:
		log.Error().Err(err).Msg("listener exited unexpectedly")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server shutdown")
	}
	log.Info().Msg("graceful shutdown complete")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
