// Command migrate runs schema operations for the ledger tables.
package main

import (
	"flag"
	"fmt"
	"log"
	"strings"

	"hushfeed/internal/config"
	"hushfeed/internal/database"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func usage() error {
	return fmt.Errorf("usage: go run ./cmd/migrate <up|status>")
}

func run() error {
	flag.Parse()
	if flag.NArg() < 1 {
		return usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(flag.Arg(0))) {
	case "up":
		if err := database.Migrate(db); err != nil {
			return err
		}
		log.Println("schema applied")
	case "status":
		m := db.Migrator()
		for _, model := range database.Models() {
			log.Printf("%-20T present=%t", model, m.HasTable(model))
		}
	default:
		return usage()
	}
	return nil
}
