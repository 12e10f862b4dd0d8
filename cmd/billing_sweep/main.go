package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"gymdesk/internal/config"
	"gymdesk/internal/database"
	"gymdesk/internal/domain/billing"
)

// One-shot sweep that expires subscriptions past their end date plus grace
// period. Intended to run from cron; the API exposes the same sweep behind
// the internal token for manual triggering.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.LoadBillingRuntimeConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = "gymdesk.db"
	}
	db, err := database.Connect(dsn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	repo := billing.NewRepository(db, cfg.TransitionTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	expired, err := repo.ExpireLapsedSubscriptions(ctx, time.Now().UTC())
	if err != nil {
		log.Fatalf("Sweep failed: %v", err)
	}
	log.Printf("billing_sweep expired=%d grace_days=%d", expired, billing.GracePeriodDays)
}
