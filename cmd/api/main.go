package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newbienorbie/unifi-scraper/internal/api"
	"github.com/newbienorbie/unifi-scraper/internal/config"
	"github.com/newbienorbie/unifi-scraper/internal/credstore"
	"github.com/newbienorbie/unifi-scraper/internal/logger"
	"github.com/newbienorbie/unifi-scraper/internal/otp"
	"github.com/newbienorbie/unifi-scraper/internal/portal"
	"github.com/newbienorbie/unifi-scraper/internal/portal/unifi"
	"github.com/newbienorbie/unifi-scraper/internal/registry"
	"github.com/newbienorbie/unifi-scraper/internal/repository"
	"github.com/newbienorbie/unifi-scraper/internal/service"
	"github.com/newbienorbie/unifi-scraper/internal/session"
	"github.com/newbienorbie/unifi-scraper/internal/summary"
)

func main() {
	// Load configuration
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger.SetDefaultLogger(logger.NewFromEnv(logger.LoadFromEnv()))
	defer logger.Sync()

	// Initialize database and job history
	db, err := repository.InitDB(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database: %v", err)
	}
	jobsRepo := repository.NewJobsRepo(db)

	// Credential and session stores
	creds := credstore.New(cfg.Credentials.KeyFile, cfg.Credentials.CredsFile)
	sessions := session.NewCache(cfg.Session.Path, cfg.Session.Freshness)

	// OTP sources, Telegram first then Gmail fallback
	var sources []otp.Source
	if cfg.OTP.Telegram.Enabled && cfg.OTP.Telegram.BotToken != "" {
		sources = append(sources, otp.NewTelegramSource(cfg.OTP.Telegram.BotToken, cfg.OTP.Telegram.ChatID, cfg.OTP.Telegram.Wait))
	}
	if cfg.OTP.Gmail.Enabled && cfg.OTP.Gmail.AccessToken != "" {
		sources = append(sources, otp.NewGmailSource(cfg.OTP.Gmail.AccessToken, cfg.OTP.Gmail.SenderFilter, cfg.OTP.Gmail.Wait))
	}
	resolver := otp.NewResolver(sources...)

	// Sync service with a fresh portal client per run
	summaries := summary.NewStore(cfg.Store.SummaryDir)
	newDriver := func() portal.Driver {
		return unifi.NewClient(cfg.Portal, creds, sessions, resolver)
	}
	syncService := service.NewSyncService(cfg, newDriver, summaries)

	// Job registry mirrors to the database
	reg := registry.New(cfg.Jobs.LockScope, cfg.Jobs.LogDir, jobsRepo)

	// Setup router
	router := api.SetupRouter(cfg, syncService, reg, creds, sessions, summaries)

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Starting API server on port %d (mode=%s, lock_scope=%s)",
			cfg.Server.Port, cfg.Server.Mode, cfg.Jobs.LockScope)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}
