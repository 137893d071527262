package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/slapboard/go/internal/config"
	"github.com/mcdev12/slapboard/go/internal/tally"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func setupRoster(cfg *config.Config) (*tally.Roster, error) {
	// Initialize the plugin now that environment variables are loaded
	roster, err := cfg.Roster()
	if err != nil {
		return nil, fmt.Errorf("failed to load league %s: %w", cfg.League.Enabled, err)
	}

	log.Info().
		Str("league", cfg.League.Enabled).
		Int("teams", len(roster.IDs())).
		Msg("league plugin initialized")
	return roster, nil
}
