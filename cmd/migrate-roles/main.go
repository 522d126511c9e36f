package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/dimitrije/shipyard/internal/config"
	"github.com/dimitrije/shipyard/internal/database"
	"github.com/dimitrije/shipyard/internal/logger"
	"github.com/dimitrije/shipyard/internal/services"
)

func main() {
	if len(os.Args) != 1 {
		fmt.Println("Usage: migrate-roles")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	zlog, err := logger.New(cfg, "migrate-roles")
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	result, err := services.PrepareDatabase(ctx, db, zlog)
	if err != nil {
		log.Fatalf("Failed to migrate roles: %v", err)
	}

	tables := make([]string, 0, len(result.Modified))
	for table := range result.Modified {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	for _, table := range tables {
		fmt.Printf("%-26s %d rows updated\n", table, result.Modified[table])
	}
	fmt.Printf("Successfully migrated %d role assignments\n", result.Total())
}
