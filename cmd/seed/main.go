// Command seed fills the database with demo content, either generated or
// loaded from a YAML fixture file.
package main

import (
	"context"
	"flag"
	"log"

	"postapp/internal/config"
	"postapp/internal/database"
	"postapp/internal/seed"
)

func main() {
	defaults := seed.DefaultOptions()
	numUsers := flag.Int("users", defaults.Users, "Number of users to create")
	postsPerUser := flag.Int("posts", defaults.PostsPerUser, "Posts per user")
	commentsPerPost := flag.Int("comments", defaults.CommentsPerPost, "Comment attempts per post")
	maxDays := flag.Int("days", defaults.MaxDays, "Spread post dates over this many days")
	randSeed := flag.Int64("seed", 0, "Random seed (0 for a random one)")
	shouldClean := flag.Bool("clean", false, "Delete existing users, posts and comments first")
	dryRun := flag.Bool("dry-run", false, "Generate without writing")
	fixtures := flag.String("fixtures", "", "Load this YAML fixture file instead of generating data (\"demo\" for the built-in set)")
	flag.Parse()

	opts := seed.Options{
		Users:           *numUsers,
		PostsPerUser:    *postsPerUser,
		CommentsPerPost: *commentsPerPost,
		MaxDays:         *maxDays,
		Seed:            *randSeed,
		Clean:           *shouldClean,
		DryRun:          *dryRun,
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx := context.Background()
	var summary *seed.Summary
	if *fixtures != "" {
		var fx *seed.Fixtures
		if *fixtures == "demo" {
			fx, err = seed.DemoFixtures()
		} else {
			fx, err = seed.LoadFixtureFile(*fixtures)
		}
		if err != nil {
			log.Fatalf("Failed to load fixtures: %v", err)
		}
		summary, err = seed.ApplyFixtures(ctx, db, fx, opts)
	} else {
		summary, err = seed.Demo(ctx, db, opts)
	}
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Seeded %s", summary)
	if *fixtures == "" {
		log.Printf("All generated users have the password: %s", seed.DefaultPassword)
	}
}
