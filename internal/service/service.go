package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/newbienorbie/unifi-scraper/internal/config"
	"github.com/newbienorbie/unifi-scraper/internal/dateutil"
	"github.com/newbienorbie/unifi-scraper/internal/domain"
	"github.com/newbienorbie/unifi-scraper/internal/logger"
	"github.com/newbienorbie/unifi-scraper/internal/portal"
	"github.com/newbienorbie/unifi-scraper/internal/rowstore"
	"github.com/newbienorbie/unifi-scraper/internal/summary"
)

// DriverFactory builds a fresh portal driver for one run.
type DriverFactory func() portal.Driver

// StoreFactory opens the row store for one run's parameters.
type StoreFactory func(params domain.JobParams) (rowstore.Store, error)

// SyncService wires a portal driver, a row store, and the summary
// store into complete runs.
type SyncService struct {
	cfg       *config.Config
	newDriver DriverFactory
	openStore StoreFactory
	summaries *summary.Store
	now       func() time.Time
}

func NewSyncService(cfg *config.Config, newDriver DriverFactory, summaries *summary.Store) *SyncService {
	s := &SyncService{
		cfg:       cfg,
		newDriver: newDriver,
		summaries: summaries,
		now:       time.Now,
	}
	s.openStore = s.defaultStore
	return s
}

func (s *SyncService) defaultStore(params domain.JobParams) (rowstore.Store, error) {
	if params.OutputFormat == domain.OutputCSV {
		name := fmt.Sprintf("unifi_orders_%s_%d.csv", dateutil.ShortMonth(params.Month), params.Year)
		return rowstore.OpenCSV(filepath.Join(s.cfg.Store.OutputDir, name))
	}
	tab := dateutil.TabTitle(params.Month, params.Year)
	return rowstore.OpenWorkbook(s.cfg.Store.WorkbookPath, tab, s.cfg.Store.WriteRetries)
}

// Run executes one sync end to end: login, month filter, pagination
// pass, then the run summary.
func (s *SyncService) Run(ctx context.Context, params domain.JobParams) (*domain.SyncResult, error) {
	if _, ok := dateutil.MonthNumber(params.Month); !ok {
		return nil, fmt.Errorf("unknown month %q", params.Month)
	}
	ctx = logger.SetMonth(ctx, dateutil.TabTitle(params.Month, params.Year))

	driver := s.newDriver()
	defer driver.Close()

	if err := driver.Login(ctx); err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	if err := driver.SetMonthFilter(ctx, params.Month, params.Year); err != nil {
		return nil, fmt.Errorf("failed to apply month filter: %w", err)
	}

	store, err := s.openStore(params)
	if err != nil {
		return nil, fmt.Errorf("failed to open row store: %w", err)
	}
	defer store.Close()

	mode := domain.SyncModeIncremental
	if params.FullSync {
		mode = domain.SyncModeFull
	}

	engine := NewEngine(driver, store, s.cfg.Sync.SkipRatioThreshold)
	res, runErr := engine.Run(ctx, mode)
	if res == nil {
		return nil, runErr
	}

	if params.OutputFormat == domain.OutputCSV {
		res.CSVFile = store.Destination()
	} else {
		res.SheetTab = store.Destination()
	}

	sum := s.buildSummary(params, mode, res, store)
	if _, err := s.summaries.Write(sum); err != nil {
		logger.CtxWarn(ctx, "Failed to write run summary: %v", err)
	}
	return res, runErr
}

// buildSummary recounts the store after the run so totals reflect
// rows from earlier runs too.
func (s *SyncService) buildSummary(params domain.JobParams, mode domain.SyncMode, res *domain.SyncResult, store rowstore.Store) domain.RunSummary {
	now := s.now()
	sum := domain.RunSummary{
		Date:       now.Format("2006-01-02"),
		Time:       now.Format("15:04:05"),
		Month:      params.Month,
		Year:       params.Year,
		TabName:    dateutil.TabTitle(params.Month, params.Year),
		ScrapeMode: mode,
		Stats: domain.ScrapeStats{
			OrdersProcessed: res.Total,
			Successful:      res.Successful,
			Skipped:         res.Skipped,
			Failed:          res.Failed,
		},
	}

	states, err := store.States()
	if err != nil {
		return sum
	}
	for _, st := range states {
		if st.LastSynced == "" {
			continue
		}
		sum.Summary.TotalInSheet++
		switch strings.ToLower(st.OrderStatus) {
		case "completed":
			sum.Summary.Completed++
		case "cancelled", "canceled":
			sum.Summary.Cancelled++
		default:
			sum.Summary.OtherStatuses++
		}
		// "new today" means the row was stamped today, not created today
		if t, ok := dateutil.ParseLastSynced(st.LastSynced); ok && dateutil.SameLocalDay(t, now) {
			sum.Summary.NewToday++
		}
	}
	return sum
}
