// Command ledgercheck compares stored counters with live vote and comment
// rows. It only reports; it exits 1 when any item has drifted.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"hushfeed/internal/config"
	"hushfeed/internal/database"
	"hushfeed/internal/repository"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	drift, err := repository.NewAuditRepository(db).Drift(ctx)
	if err != nil {
		log.Fatalf("Audit failed: %v", err)
	}
	if len(drift) == 0 {
		fmt.Println("ledger consistent: no counter drift")
		return
	}

	for _, d := range drift {
		fmt.Printf("%s up %d/%d down %d/%d comments %d/%d (stored/live)\n",
			d.Ref, d.Upvotes, d.LiveUpvotes, d.Downvotes, d.LiveDownvotes, d.CommentCount, d.LiveCommentCount)
	}
	fmt.Printf("%d item(s) drifted\n", len(drift))
	os.Exit(1)
}
