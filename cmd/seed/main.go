// Command seed fills the database with demo content through the ledger.
package main

import (
	"context"
	"flag"
	"log"

	"hushfeed/internal/config"
	"hushfeed/internal/database"
	"hushfeed/internal/ledger"
	"hushfeed/internal/repository"
	"hushfeed/internal/seed"
)

func main() {
	opts := seed.DefaultOptions()
	flag.IntVar(&opts.Users, "users", opts.Users, "Number of users to create")
	flag.IntVar(&opts.Posts, "posts", opts.Posts, "Number of posts to create")
	flag.IntVar(&opts.MaxComments, "comments", opts.MaxComments, "Maximum comments per post")
	flag.Float64Var(&opts.VoteProbability, "vote-probability", opts.VoteProbability, "Chance a user votes on a given item")
	flag.Int64Var(&opts.Seed, "seed", 0, "Content seed, 0 for random")
	shouldClean := flag.Bool("clean", false, "Clear ledger tables before seeding")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if *shouldClean {
		if err := seed.ClearAll(db); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	l := ledger.New(repository.NewLedgerStore(db),
		ledger.WithPolicy(ledger.PolicyFromConfig(cfg)),
		ledger.WithRetry(ledger.RetryPolicyFromConfig(cfg)),
	)
	sum, err := seed.NewSeeder(db, l, opts).Run(context.Background())
	if err != nil {
		log.Fatalf("Seeding failed after %s: %v", sum, err)
	}
	log.Printf("Seeded %s", sum)
}
