package main

import (
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"gymdesk/internal/config"
	"gymdesk/internal/database"
	"gymdesk/internal/domain/billing"
	"gymdesk/internal/domain/organization"
	"gymdesk/internal/middleware"
	jwtsvc "gymdesk/internal/pkg/jwt"
)

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

	jwtService := jwtsvc.New(cfg.JWTSecret, cfg.JWTAccessTTL)

	billingRepo := billing.NewRepository(db, cfg.TransitionTimeout)
	orgRepo := organization.NewRepository(db)

	hub := billing.NewHub()
	dispatcher := billing.NewDispatcher(billing.LogSink{}, hub)
	defer dispatcher.Close()
	defer hub.Close()

	orchestrator := billing.NewOrchestrator(billingRepo, orgRepo, dispatcher, cfg.DefaultCurrency)
	orgService := organization.NewService(orgRepo, orchestrator)

	billingHandler := billing.NewHandler(orchestrator, hub)
	orgHandler := organization.NewHandler(orgService)

	if config.IsProdLike(cfg.AppEnv) {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(middleware.ErrorLogger())
	router.Use(middleware.CORS())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	auth := middleware.Auth(jwtService)
	billing.RegisterRoutes(api, billingHandler, auth, middleware.OwnerOnly())
	organization.RegisterRoutes(api, orgHandler, auth, middleware.RequireAnyRole("owner", "admin"))

	internalGroup := api.Group("/internal", middleware.InternalTokenAuth())
	internalGroup.POST("/billing/sweep", func(c *gin.Context) {
		expired, err := billingRepo.ExpireLapsedSubscriptions(c.Request.Context(), time.Now().UTC())
		if err != nil {
			c.JSON(500, gin.H{"error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"expired": expired})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("Starting server on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
