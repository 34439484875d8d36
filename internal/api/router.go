package api

import (
	"github.com/gin-gonic/gin"

	"github.com/newbienorbie/unifi-scraper/internal/api/handler"
	"github.com/newbienorbie/unifi-scraper/internal/api/middleware"
	"github.com/newbienorbie/unifi-scraper/internal/config"
	"github.com/newbienorbie/unifi-scraper/internal/credstore"
	"github.com/newbienorbie/unifi-scraper/internal/registry"
	"github.com/newbienorbie/unifi-scraper/internal/session"
	"github.com/newbienorbie/unifi-scraper/internal/summary"
)

// SetupRouter configures the Gin router with all routes
func SetupRouter(
	cfg *config.Config,
	runner handler.Runner,
	reg *registry.Registry,
	creds *credstore.Store,
	sessions *session.Cache,
	summaries *summary.Store,
) *gin.Engine {
	// Set Gin mode
	switch cfg.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
	}))

	allowlist := middleware.LoadAllowlist(cfg.Auth.AllowlistPath)

	// Create handlers
	healthHandler := handler.NewHealthHandler()
	syncHandler := handler.NewSyncHandler(runner, reg)
	credsHandler := handler.NewCredentialsHandler(creds, sessions, allowlist)
	reportsHandler := handler.NewReportsHandler(summaries, cfg.Store.OutputDir)

	// Health and status
	r.GET("/health", healthHandler.Health)
	r.GET("/status", syncHandler.Status)
	r.GET("/is_authorized", credsHandler.IsAuthorized)

	// Reporting
	r.GET("/download_csv", reportsHandler.DownloadCSV)
	r.GET("/get_current_summary", reportsHandler.CurrentSummary)
	r.GET("/get_latest_summary", reportsHandler.LatestSummary)
	r.GET("/get_months", reportsHandler.Months)

	// Mutating endpoints sit behind the allowlist gate
	gated := r.Group("/", allowlist.Gate())
	{
		gated.POST("/scrape", syncHandler.Scrape)
		gated.POST("/save_credentials", credsHandler.Save)

		gated.POST("/jobs", syncHandler.CreateJob)
		gated.GET("/jobs", syncHandler.ListJobs)
		gated.GET("/jobs/:id", syncHandler.GetJob)
		gated.GET("/jobs/:id/log", syncHandler.JobLog)
	}

	return r
}
