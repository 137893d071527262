package main

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mcdev12/slapboard/go/internal/dbconfig"
)

func setupDatabase() (*sql.DB, error) {
	dbConfig := dbconfig.NewConfigFromEnv()

	attempts := getEnvAsInt("DB_CONNECT_ATTEMPTS", 10)
	database, err := dbConfig.Open(attempts, 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s:%d/%s: %w", dbConfig.Host, dbConfig.Port, dbConfig.Database, err)
	}

	database.SetMaxOpenConns(getEnvAsInt("DB_MAX_OPEN_CONNS", 20))
	database.SetMaxIdleConns(5)
	database.SetConnMaxLifetime(30 * time.Minute)
	return database, nil
}
