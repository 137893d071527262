package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/mcdev12/slapboard/go/internal/config"
	"github.com/mcdev12/slapboard/go/internal/counter/db"
	"github.com/mcdev12/slapboard/go/internal/dbconfig"
	_ "github.com/mcdev12/slapboard/go/internal/leagues/ipl"
	"github.com/mcdev12/slapboard/go/internal/tally"
)

func main() {
	configPath := flag.String("config", "config/slapboard.yaml", "slapboard config file")
	reset := flag.Bool("reset", false, "overwrite existing counts with the baseline")
	flag.Parse()

	_ = godotenv.Load()

	// 1) Load the roster baseline
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	roster, err := cfg.Roster()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load roster: %v\n", err)
		os.Exit(1)
	}
	baseline, err := tally.EncodeCounts(roster.Baseline())
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode baseline: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect using shared dbconfig
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbconfig.NewConfigFromEnv().DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 3) Apply schema
	if _, err := pool.Exec(ctx, db.Schema); err != nil {
		fmt.Fprintf(os.Stderr, "apply schema: %v\n", err)
		os.Exit(1)
	}

	// 4) Upsert the document
	query := `
        INSERT INTO slap_documents (id, counts)
        VALUES ($1, $2::jsonb)
        ON CONFLICT (id) DO NOTHING
    `
	if *reset {
		query = `
        INSERT INTO slap_documents (id, counts)
        VALUES ($1, $2::jsonb)
        ON CONFLICT (id) DO UPDATE SET counts = EXCLUDED.counts, updated_at = now()
    `
	}
	cmdTag, err := pool.Exec(ctx, query, cfg.DocumentID, string(baseline))
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed document %s: %v\n", cfg.DocumentID, err)
		os.Exit(1)
	}

	// 5) Print summary
	state := "unchanged"
	if cmdTag.RowsAffected() == 1 {
		state = "written"
	}
	fmt.Printf(
		"Counts seed complete: document %q %s, baseline %s\n",
		cfg.DocumentID, state, baseline,
	)
}
