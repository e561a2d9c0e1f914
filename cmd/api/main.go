package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maderasur/trozasgo/internal/config"
	"github.com/maderasur/trozasgo/internal/database"
	"github.com/maderasur/trozasgo/internal/handlers"
	"github.com/maderasur/trozasgo/internal/models"
	"github.com/maderasur/trozasgo/internal/services/loads"
	"github.com/maderasur/trozasgo/internal/storage"
	syncengine "github.com/maderasur/trozasgo/internal/sync"
	"github.com/maderasur/trozasgo/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Detects embedded vs external automatically
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	log.Println("Synchronizing database schema...")
	err = db.AutoMigrate(
		&models.User{},
		&models.Transport{},
		&models.Driver{},
		&models.Load{},
		&models.LoadDetail{},
		&models.SyncLogEntry{},
	)
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	if err := database.EnsureIndexes(db.DB); err != nil {
		log.Fatalf("Index creation failed: %v", err)
	}

	store, err := storage.NewLocalStore(cfg.Storage.Dir, cfg.Storage.PublicURL)
	if err != nil {
		log.Fatalf("Failed to init storage: %v", err)
	}

	hub := websocket.NewHub()
	go hub.Run()

	loadSvc := loads.NewService(db.DB, store)
	engine := syncengine.NewEngine(db.DB, loadSvc)

	// Aged-out audit entries are purged once a day
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			if _, err := engine.PurgeAllOlderThan(cfg.Sync.RetentionDays); err != nil {
				log.Printf("Sync log purge failed: %v", err)
			}
		}
	}()

	router := handlers.NewRouter(db, cfg, loadSvc, engine, store, hub)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		log.Printf("Server starting on port %s (env: %s)", cfg.Port, cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	sig := <-shutdown
	log.Printf("Received signal: %v. Shutting down gracefully...", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Closing database connection...")
	if err := db.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("Shutdown complete")
}
