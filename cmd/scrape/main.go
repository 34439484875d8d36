// Command scrape runs one sync from the terminal, without the API
// server. Useful for cron and for first-time setup.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newbienorbie/unifi-scraper/internal/config"
	"github.com/newbienorbie/unifi-scraper/internal/credstore"
	"github.com/newbienorbie/unifi-scraper/internal/domain"
	"github.com/newbienorbie/unifi-scraper/internal/logger"
	"github.com/newbienorbie/unifi-scraper/internal/otp"
	"github.com/newbienorbie/unifi-scraper/internal/portal"
	"github.com/newbienorbie/unifi-scraper/internal/portal/unifi"
	"github.com/newbienorbie/unifi-scraper/internal/service"
	"github.com/newbienorbie/unifi-scraper/internal/session"
	"github.com/newbienorbie/unifi-scraper/internal/summary"
)

func main() {
	now := time.Now()
	month := flag.String("month", now.Month().String(), "month to sync (e.g. March)")
	year := flag.Int("year", now.Year(), "year to sync")
	fullSync := flag.Bool("full", false, "refetch every order instead of skipping synced ones")
	format := flag.String("format", "sheets", "output format: sheets or csv")
	username := flag.String("save-username", "", "store portal credentials and exit (prompts are not supported, pass -save-password too)")
	password := flag.String("save-password", "", "password for -save-username")
	flag.Parse()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.SetDefaultLogger(logger.NewFromEnv(logger.LoadFromEnv()))
	defer logger.Sync()

	creds := credstore.New(cfg.Credentials.KeyFile, cfg.Credentials.CredsFile)

	if *username != "" {
		if *password == "" {
			log.Fatal("-save-username requires -save-password")
		}
		if err := creds.Save(credstore.Credentials{Username: *username, Password: *password}); err != nil {
			log.Fatalf("Failed to save credentials: %v", err)
		}
		fmt.Println("credentials saved")
		return
	}

	var outputFormat domain.OutputFormat
	switch *format {
	case "sheets":
		outputFormat = domain.OutputSheets
	case "csv":
		outputFormat = domain.OutputCSV
	default:
		log.Fatalf("Unknown format %q, want sheets or csv", *format)
	}

	sessions := session.NewCache(cfg.Session.Path, cfg.Session.Freshness)

	var sources []otp.Source
	if cfg.OTP.Telegram.Enabled && cfg.OTP.Telegram.BotToken != "" {
		sources = append(sources, otp.NewTelegramSource(cfg.OTP.Telegram.BotToken, cfg.OTP.Telegram.ChatID, cfg.OTP.Telegram.Wait))
	}
	if cfg.OTP.Gmail.Enabled && cfg.OTP.Gmail.AccessToken != "" {
		sources = append(sources, otp.NewGmailSource(cfg.OTP.Gmail.AccessToken, cfg.OTP.Gmail.SenderFilter, cfg.OTP.Gmail.Wait))
	}
	resolver := otp.NewResolver(sources...)

	newDriver := func() portal.Driver {
		return unifi.NewClient(cfg.Portal, creds, sessions, resolver)
	}
	syncService := service.NewSyncService(cfg, newDriver, summary.NewStore(cfg.Store.SummaryDir))

	// Ctrl-C aborts the run; finished orders are already on disk.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := syncService.Run(ctx, domain.JobParams{
		Month:        *month,
		Year:         *year,
		FullSync:     *fullSync,
		OutputFormat: outputFormat,
	})
	if err != nil {
		log.Fatalf("Sync failed: %v", err)
	}

	out, _ := json.MarshalIndent(res, "", "  ")
	fmt.Println(string(out))
}
