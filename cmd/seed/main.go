package main

import (
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"gymdesk/internal/database"
	"gymdesk/internal/domain/billing"
	"gymdesk/internal/domain/organization"
)

// Seeds the plan catalog and one demo organization with an active
// subscription. Safe to re-run: existing rows are left alone.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = "gymdesk.db"
	}
	db, err := database.Connect(dsn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&organization.Organization{},
		&organization.Gym{},
		&organization.Client{},
		&organization.Collaborator{},
		&billing.Plan{},
		&billing.Instance{},
		&billing.Operation{},
		&billing.Cancellation{},
	); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	now := time.Now().UTC()

	plans := []billing.Plan{
		{
			ID:          "free",
			Name:        "Free",
			Description: "Single gym, small client base",
			Prices: billing.PriceMap{
				"USD": decimal.Zero,
				"EUR": decimal.Zero,
			},
			BillingFrequency: "monthly",
			Duration:         1,
			DurationUnit:     billing.DurationMonth,
			MaxGyms:          1,
			MaxClientsPerGym: 50,
			MaxUsersPerGym:   2,
			IsActive:         true,
			IsPublic:         true,
			CreatedAt:        now,
			UpdatedAt:        now,
		},
		{
			ID:          "basic",
			Name:        "Basic",
			Description: "Growing studios with a few locations",
			Prices: billing.PriceMap{
				"USD": decimal.NewFromInt(49),
				"EUR": decimal.NewFromInt(45),
			},
			BillingFrequency: "monthly",
			Duration:         1,
			DurationUnit:     billing.DurationMonth,
			MaxGyms:          3,
			MaxClientsPerGym: 300,
			MaxUsersPerGym:   10,
			IsActive:         true,
			IsPublic:         true,
			CreatedAt:        now,
			UpdatedAt:        now,
		},
		{
			ID:          "pro",
			Name:        "Pro",
			Description: "Chains; no resource limits",
			Prices: billing.PriceMap{
				"USD": decimal.NewFromInt(199),
				"EUR": decimal.NewFromInt(185),
			},
			BillingFrequency: "monthly",
			Duration:         1,
			DurationUnit:     billing.DurationMonth,
			MaxGyms:          -1,
			MaxClientsPerGym: -1,
			MaxUsersPerGym:   -1,
			IsActive:         true,
			IsPublic:         true,
			CreatedAt:        now,
			UpdatedAt:        now,
		},
	}

	for i := range plans {
		var count int64
		db.Model(&billing.Plan{}).Where("id = ?", plans[i].ID).Count(&count)
		if count > 0 {
			continue
		}
		if err := db.Create(&plans[i]).Error; err != nil {
			log.Fatalf("Failed to seed plan %s: %v", plans[i].ID, err)
		}
		log.Printf("Seeded plan %s", plans[i].ID)
	}

	var orgCount int64
	db.Model(&organization.Organization{}).Count(&orgCount)
	if orgCount > 0 {
		log.Println("Organizations already present, skipping demo data")
		return
	}

	org := organization.Organization{
		Name:            "Iron Temple Fitness",
		OwnerID:         1,
		BillingCurrency: "USD",
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := db.Create(&org).Error; err != nil {
		log.Fatalf("Failed to seed organization: %v", err)
	}

	gym := organization.Gym{
		OrganizationID: org.ID,
		Name:           "Iron Temple Downtown",
		Address:        "12 Main St",
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := db.Create(&gym).Error; err != nil {
		log.Fatalf("Failed to seed gym: %v", err)
	}

	clients := []organization.Client{
		{OrganizationID: org.ID, GymID: gym.ID, FullName: "Alex Petrov", Email: "alex@example.com", IsActive: true, CreatedAt: now, UpdatedAt: now},
		{OrganizationID: org.ID, GymID: gym.ID, FullName: "Dana Lee", Email: "dana@example.com", IsActive: true, CreatedAt: now, UpdatedAt: now},
	}
	for i := range clients {
		if err := db.Create(&clients[i]).Error; err != nil {
			log.Fatalf("Failed to seed client: %v", err)
		}
	}

	inst := billing.Instance{
		ID:             uuid.New().String(),
		OrganizationID: org.ID,
		PlanID:         "basic",
		Status:         billing.StatusActive,
		IsActive:       true,
		StartDate:      now,
		EndDate:        now.AddDate(0, 1, 0),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := db.Create(&inst).Error; err != nil {
		log.Fatalf("Failed to seed subscription: %v", err)
	}

	log.Printf("Seeded demo organization %d with an active basic subscription", org.ID)
}
