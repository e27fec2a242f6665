package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cloudbill/backend/internal/infrastructure/config"
	"github.com/cloudbill/backend/internal/infrastructure/logger"
	"github.com/cloudbill/backend/internal/infrastructure/migration"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const defaultMigrationsPath = "migrations"

func main() {
	var (
		migrationsPath string
		logLevel       string
	)

	flag.StringVar(&migrationsPath, "path", defaultMigrationsPath, "Path to migrations directory")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	command := args[0]

	log, err := logger.New(&logger.Config{
		Level:  logLevel,
		Format: "console",
		Output: "stdout",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = log.Sync()
	}()

	absPath, err := filepath.Abs(migrationsPath)
	if err != nil {
		log.Fatal("Failed to resolve migrations path", zap.Error(err))
	}
	migrationsPath = absPath

	// create and list work on the files alone, no database needed
	switch command {
	case "create":
		if len(args) < 2 {
			log.Fatal("Migration name required. Usage: migrate create <name> [description]")
		}
		description := ""
		if len(args) > 2 {
			description = args[2]
		}

		mf, err := migration.CreateMigration(migrationsPath, args[1], description)
		if err != nil {
			log.Fatal("Failed to create migration", zap.Error(err))
		}

		log.Info("Migration created",
			zap.String("version", mf.Version),
			zap.String("up_file", mf.UpPath),
			zap.String("down_file", mf.DownPath),
		)
		return

	case "list":
		migrations, err := migration.ListMigrations(migrationsPath)
		if err != nil {
			log.Fatal("Failed to list migrations", zap.Error(err))
		}
		if len(migrations) == 0 {
			log.Info("No migrations found")
			return
		}
		log.Info("Available migrations", zap.Int("count", len(migrations)))
		for _, m := range migrations {
			fmt.Println("  -", m)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal("Failed to ping database", zap.Error(err))
	}

	m, err := migration.New(db, migrationsPath, log)
	if err != nil {
		log.Fatal("Failed to create migrator", zap.Error(err))
	}
	defer m.Close()

	switch command {
	case "up":
		if err := m.Up(); err != nil {
			log.Fatal("Migration up failed", zap.Error(err))
		}

	case "down":
		if err := m.Down(); err != nil {
			log.Fatal("Migration down failed", zap.Error(err))
		}

	case "step":
		if len(args) < 2 {
			log.Fatal("Step count required. Usage: migrate step <n>")
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			log.Fatal("Invalid step count", zap.String("value", args[1]))
		}
		if err := m.Steps(n); err != nil {
			log.Fatal("Migration step failed", zap.Error(err))
		}

	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			log.Fatal("Failed to get version", zap.Error(err))
		}
		if version == 0 {
			log.Info("No migrations applied")
		} else {
			log.Info("Current schema version",
				zap.Uint("version", version),
				zap.Bool("dirty", dirty),
			)
		}

	default:
		log.Error("Unknown command", zap.String("command", command))
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`CloudBill schema migration tool

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                    Apply all pending migrations
  down                  Roll back all migrations
  step <n>              Apply n migrations (negative rolls back)
  version               Show current schema version
  create <name> [desc]  Scaffold a new migration pair
  list                  List available migrations

Flags:
  -path string          Path to migrations directory (default: ./migrations)
  -log-level string     Log level: debug, info, warn, error (default: info)

Examples:
  migrate up
  migrate step -1
  migrate create add_tenant_index "Index tenants by status"`)
}
