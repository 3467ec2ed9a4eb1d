// Command initdb applies the schema and seeds the tracking categories, plus
// the demo therapist when CREATE_DEMO_ACCOUNTS is true.
package main

import (
	"context"
	"log"
	"time"

	"github.com/evanmaskanazi/socialworkboard/internal/auth"
	"github.com/evanmaskanazi/socialworkboard/internal/config"
	"github.com/evanmaskanazi/socialworkboard/internal/db"
)

func main() {
	cfg := config.Load()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect db: %v", err)
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}
	opts := db.SeedOptions{Demo: cfg.SeedDemo, Hasher: auth.NewManager(cfg.JWTSecret)}
	if err := db.Seed(ctx, pool, opts); err != nil {
		log.Fatalf("failed to seed db: %v", err)
	}
	if cfg.SeedDemo {
		log.Printf("demo therapist: %s / %s", db.DemoTherapistEmail, db.DemoTherapistPassword)
	}
	log.Printf("database initialized")
}
