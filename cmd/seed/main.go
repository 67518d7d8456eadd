// Command seed fills the database with a demo feed.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"

	"xclone/internal/config"
	"xclone/internal/database"
	"xclone/internal/middleware"
	"xclone/internal/seed"

	"github.com/joho/godotenv"
)

func main() {
	numUsers := flag.Int("users", 20, "Number of users to post and interact")
	numPosts := flag.Int("posts", 50, "Number of posts to create")
	shouldClean := flag.Bool("clean", true, "Remove existing posts before seeding")
	seedValue := flag.Int64("seed", 0, "Random seed (0 = random)")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("warning: could not read .env: %v", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	middleware.ConfigureLogger(cfg.Env, cfg.LogLevel)

	db, err := database.Connect(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	summary, err := seed.NewSeeder(db, *seedValue).Run(context.Background(), seed.Options{
		NumUsers:    *numUsers,
		NumPosts:    *numPosts,
		ShouldClean: *shouldClean,
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Printf("Seeded %d posts, %d likes, %d retweets, %d replies",
		summary.Posts, summary.Likes, summary.Retweets, summary.Replies)
}
