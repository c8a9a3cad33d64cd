package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/AngelaHan1129/qinguoqinchen-sub000/internal/config"
	"github.com/AngelaHan1129/qinguoqinchen-sub000/internal/database"
	"github.com/AngelaHan1129/qinguoqinchen-sub000/internal/handler"
)

func main() {
	// Load .env file if exists
	godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Dual-tier store, shared by router and reconciler
	store := handler.NewStore(db)
	store.StartReconciler(context.Background(), 30*time.Second)

	// Setup router
	r := handler.SetupRouter(cfg, store)

	// Start server
	addr := cfg.Host + ":" + cfg.Port
	log.Printf("Knowledge Engine starting on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
