// Package service runs the order sync: it walks the portal's
// paginated listing for one month and lands every order in a row
// store, skipping what a previous run already finished.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/newbienorbie/unifi-scraper/internal/domain"
	"github.com/newbienorbie/unifi-scraper/internal/logger"
	"github.com/newbienorbie/unifi-scraper/internal/portal"
	"github.com/newbienorbie/unifi-scraper/internal/rowstore"
)

// incomplete reasons recorded against orders that did not land
const (
	reasonNoAPIData   = "NO_API_DATA"
	reasonFetchError  = "FETCH_ERROR"
	reasonWriteFailed = "WRITE_FAILED"
)

// Engine drives one pagination pass over an already filtered portal
// listing. The driver must be logged in and month-filtered before
// Run is called.
type Engine struct {
	driver        portal.Driver
	store         rowstore.Store
	skipThreshold float64
	now           func() time.Time
}

func NewEngine(driver portal.Driver, store rowstore.Store, skipThreshold float64) *Engine {
	if skipThreshold <= 0 {
		skipThreshold = 0.8
	}
	return &Engine{
		driver:        driver,
		store:         store,
		skipThreshold: skipThreshold,
		now:           time.Now,
	}
}

// Run walks pages until the last page, a high skip ratio, or a page
// error. Each order is written the moment its detail lands, so an
// aborted run keeps everything finished so far.
func (e *Engine) Run(ctx context.Context, mode domain.SyncMode) (*domain.SyncResult, error) {
	ctx = logger.SetComponent(ctx, "sync")

	states, err := e.store.States()
	if err != nil {
		return nil, err
	}

	// An order counts as done only when a previous run stamped it.
	// The stamp's age is not compared against the portal's updated
	// date, so a later portal-side edit does not retrigger a fetch.
	complete := make(map[string]bool, len(states))
	for nbr, st := range states {
		if st.LastSynced != "" && !st.Incomplete {
			complete[nbr] = true
		}
	}

	res := &domain.SyncResult{}
	seen := make(map[string]bool)
	relogged := false

	for {
		if err := ctx.Err(); err != nil {
			res.StopReason = domain.StopPageError
			return res, err
		}

		rows, err := e.driver.ListPageRows(ctx)
		if errors.Is(err, portal.ErrSessionInvalid) && !relogged {
			relogged = true
			logger.CtxWarn(ctx, "Session dropped mid-run, logging in again")
			if err := e.driver.Login(ctx); err != nil {
				res.StopReason = domain.StopPageError
				return res, err
			}
			continue
		}
		if err != nil {
			logger.CtxError(ctx, "Failed to list page %d: %v", e.driver.ActivePage(), err)
			res.StopReason = domain.StopPageError
			break
		}

		for _, row := range rows {
			if row.OrderNumber == "" || seen[row.OrderNumber] {
				continue
			}
			seen[row.OrderNumber] = true
			res.Total++

			// Already-stamped orders stay skipped in both modes. A
			// full sync only disables the skip-ratio early exit.
			if complete[row.OrderNumber] {
				res.Skipped++
				continue
			}
			e.processOrder(ctx, row, states, res)
		}
		res.Pages = e.driver.ActivePage()

		if mode == domain.SyncModeIncremental && e.driver.ActivePage() > 1 && res.Total > 0 {
			ratio := float64(res.Skipped) / float64(res.Total)
			if ratio > e.skipThreshold {
				logger.CtxInfo(ctx, "Skip ratio %.2f above threshold, stopping early", ratio)
				res.StopReason = domain.StopHighSkipRatio
				break
			}
		}

		err = e.driver.NextPage(ctx)
		if errors.Is(err, portal.ErrLastPage) {
			res.StopReason = domain.StopLastPage
			break
		}
		if err != nil {
			logger.CtxError(ctx, "Failed to advance past page %d: %v", e.driver.ActivePage(), err)
			res.StopReason = domain.StopPageError
			break
		}
	}

	res.Success = res.StopReason != domain.StopPageError
	if res.Success {
		if err := e.store.SortByCreatedDate(); err != nil {
			logger.CtxWarn(ctx, "Failed to sort rows: %v", err)
		}
	}

	logger.With(logger.Fields{
		logger.FieldCount: res.Total,
		"successful":      res.Successful,
		"skipped":         res.Skipped,
		"failed":          res.Failed,
		"stop_reason":     string(res.StopReason),
	}).Info(ctx, "Sync pass finished after %d pages", res.Pages)
	return res, nil
}

func (e *Engine) processOrder(ctx context.Context, row portal.OrderRow, states map[string]rowstore.RowState, res *domain.SyncResult) {
	ctx = logger.WithField(ctx, logger.FieldOrderID, row.OrderNumber)

	detail, err := e.driver.FetchOrderDetail(ctx, row.OrderID)
	if err != nil {
		reason := reasonFetchError
		if errors.Is(err, portal.ErrNoPayload) {
			reason = reasonNoAPIData
		}
		logger.CtxWarn(ctx, "Order detail unavailable (%s): %v", reason, err)
		if merr := e.store.MarkIncomplete(row.OrderNumber, reason); merr != nil {
			logger.CtxWarn(ctx, "Failed to record incomplete order: %v", merr)
		}
		res.Failed++
		return
	}

	rec := normalizeOrder(row, detail, e.now())
	if err := e.store.Upsert(rec); err != nil {
		logger.CtxError(ctx, "Failed to write order row: %v", err)
		if merr := e.store.MarkIncomplete(row.OrderNumber, reasonWriteFailed); merr != nil {
			logger.CtxWarn(ctx, "Failed to record incomplete order: %v", merr)
		}
		res.Failed++
		return
	}

	if _, existed := states[row.OrderNumber]; existed {
		res.Updated++
	}
	res.Successful++
}
