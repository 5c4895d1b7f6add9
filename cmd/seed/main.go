// Command main fills the database with generated demo data.
package main

import (
	"context"
	"flag"
	"log"

	"agora/internal/config"
	"agora/internal/database"
	"agora/internal/middleware"
	"agora/internal/seed"
)

func main() {
	planPath := flag.String("plan", "", "YAML seed plan (defaults apply when omitted)")
	clean := flag.Bool("clean", false, "Delete existing data before seeding")
	randSeed := flag.Int64("seed", 0, "Random seed, 0 for a random one")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	middleware.InitLogger(cfg.Env)

	plan, err := seed.LoadPlan(*planPath)
	if err != nil {
		log.Fatalf("Invalid seed plan: %v", err)
	}
	if *clean {
		plan.Clean = true
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = database.Close(db) }()

	log.Printf("Seeding %d users (clean=%v)", plan.Users, plan.Clean)
	sum, err := seed.NewSeeder(db, plan, *randSeed).Run(context.Background())
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Done: %d users, %d threads, %d replies, %d votes, %d comments, %d follows",
		sum.Users, sum.Threads, sum.Replies, sum.Votes, sum.Comments, sum.Follows)
	log.Printf("All seeded users share the password from the plan")
}
