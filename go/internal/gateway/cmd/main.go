package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/slapboard/go/internal/config"
	"github.com/mcdev12/slapboard/go/internal/gateway"
	_ "github.com/mcdev12/slapboard/go/internal/leagues/ipl"
	"github.com/mcdev12/slapboard/go/internal/logging"
	"github.com/mcdev12/slapboard/go/internal/storesync"
	"github.com/mcdev12/slapboard/go/internal/storesync/memstore"
	"github.com/mcdev12/slapboard/go/internal/storesync/remotestore"
	"github.com/mcdev12/slapboard/go/internal/tally"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	logging.Setup("gateway")

	// Get configuration
	port := getEnv("GATEWAY_PORT", "8081")
	backendKind := getEnv("STORE_BACKEND", "remote")

	appCfg, err := config.Load(getEnv("SLAPBOARD_CONFIG", "config/slapboard.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	roster, err := appCfg.Roster()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load roster")
	}

	backend, closer, err := openBackend(backendKind, appCfg.DocumentID, roster)
	if err != nil {
		log.Fatal().Err(err).Str("backend", backendKind).Msg("failed to open store backend")
	}
	defer closer.Close()

	storeSync, err := storesync.New(roster, backend)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create store sync")
	}

	gatewayConfig := gateway.DefaultConfig()
	gatewayConfig.Reaction = appCfg.Reaction
	gatewayConfig.Submission = appCfg.Submission
	gatewayConfig.AssetURL = appCfg.AssetURL

	gatewayService, err := gateway.NewService(gatewayConfig, storeSync)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create gateway service")
	}

	log.Info().
		Str("backend", backendKind).
		Str("document_id", appCfg.DocumentID).
		Str("league", appCfg.League.Enabled).
		Str("port", port).
		Msg("starting slapboard gateway")

	// Setup HTTP server
	mux := http.NewServeMux()

	// Register gateway routes (WebSocket and REST)
	gatewayService.RegisterRoutes(mux)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if !storeSync.Connected() {
			http.Error(w, "store disconnected", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(gatewayService.GetStats())
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", port),
		Handler:      gateway.CORSMiddleware(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serviceDone := make(chan struct{})
	go func() {
		defer close(serviceDone)
		if err := gatewayService.Start(ctx); err != nil {
			log.Error().Err(err).Msg("gateway service failed")
		}
	}()

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	cancel()
	select {
	case <-serviceDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("gateway service did not stop in time")
	}

	log.Info().Msg("slapboard gateway shutdown complete")
}

// openBackend returns the store backend selected by STORE_BACKEND
func openBackend(kind, documentID string, roster *tally.Roster) (storesync.Backend, io.Closer, error) {
	switch kind {
	case "memory":
		return memstore.New(roster.Baseline()), closerFunc(func() error { return nil }), nil
	case "remote":
		cfg := remotestore.DefaultConfig()
		cfg.CounterURL = getEnv("COUNTER_URL", cfg.CounterURL)
		cfg.NATSURL = getEnv("NATS_URL", cfg.NATSURL)
		cfg.Subject = "slaps.counts." + documentID
		store, err := remotestore.Dial(cfg)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORE_BACKEND %q (want memory or remote)", kind)
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
