package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/meterline/meterline/internal/config"
	"github.com/meterline/meterline/internal/logger"
)

// main applies the SQL files under migrations/ in filename order. Each
// applied file is recorded in schema_migrations so reruns are no-ops.
func main() {
	dir := flag.String("dir", "migrations", "Directory holding .sql migration files")
	dryRun := flag.Bool("dry-run", false, "Print pending migrations without executing them")
	flag.Parse()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logg, err := logger.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	db, err := sqlx.Connect("postgres", cfg.Postgres.GetDSN())
	if err != nil {
		logg.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		name       TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		logg.Fatalf("Failed to create schema_migrations: %v", err)
	}

	applied := map[string]bool{}
	var names []string
	if err := db.Select(&names, `SELECT name FROM schema_migrations`); err != nil {
		logg.Fatalf("Failed to read schema_migrations: %v", err)
	}
	for _, n := range names {
		applied[n] = true
	}

	files, err := filepath.Glob(filepath.Join(*dir, "*.sql"))
	if err != nil {
		logg.Fatalf("Failed to list migrations: %v", err)
	}
	sort.Strings(files)

	pending := 0
	for _, file := range files {
		name := filepath.Base(file)
		if applied[name] {
			continue
		}
		pending++

		if *dryRun {
			fmt.Printf("pending: %s\n", name)
			continue
		}

		sqlBytes, err := os.ReadFile(file)
		if err != nil {
			logg.Fatalf("Failed to read %s: %v", name, err)
		}

		tx, err := db.Beginx()
		if err != nil {
			logg.Fatalf("Failed to begin transaction: %v", err)
		}
		if _, err := tx.Exec(string(sqlBytes)); err != nil {
			_ = tx.Rollback()
			logg.Fatalf("Migration %s failed: %v", name, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (name) VALUES ($1)`, name); err != nil {
			_ = tx.Rollback()
			logg.Fatalf("Failed to record %s: %v", name, err)
		}
		if err := tx.Commit(); err != nil {
			logg.Fatalf("Failed to commit %s: %v", name, err)
		}
		logg.Infow("applied migration", "name", name)
	}

	if pending == 0 {
		logg.Infow("schema up to date")
	}
}
