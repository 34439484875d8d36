package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/newbienorbie/unifi-scraper/internal/domain"
	"github.com/newbienorbie/unifi-scraper/internal/logger"
	"github.com/newbienorbie/unifi-scraper/internal/registry"
)

// Runner executes one sync run. Satisfied by service.SyncService.
type Runner interface {
	Run(ctx context.Context, params domain.JobParams) (*domain.SyncResult, error)
}

// SyncHandler handles scrape and job endpoints.
type SyncHandler struct {
	runner Runner
	reg    *registry.Registry
}

func NewSyncHandler(runner Runner, reg *registry.Registry) *SyncHandler {
	return &SyncHandler{runner: runner, reg: reg}
}

type scrapeRequest struct {
	Month        string `json:"month" binding:"required"`
	Year         int    `json:"year" binding:"required"`
	FullSync     bool   `json:"full_sync"`
	OutputFormat string `json:"output_format"`
}

func (r scrapeRequest) params() (domain.JobParams, error) {
	format := domain.OutputSheets
	switch r.OutputFormat {
	case "", "sheets":
	case "csv":
		format = domain.OutputCSV
	default:
		return domain.JobParams{}, fmt.Errorf("unknown output_format %q", r.OutputFormat)
	}
	return domain.JobParams{
		Month:        r.Month,
		Year:         r.Year,
		FullSync:     r.FullSync,
		OutputFormat: format,
	}, nil
}

// Scrape handles POST /scrape: a synchronous run that blocks until
// the month is synced.
func (h *SyncHandler) Scrape(c *gin.Context) {
	var req scrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	params, err := req.params()
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	job, err := h.reg.Create(params)
	if errors.Is(err, registry.ErrBusy) {
		fail(c, http.StatusConflict, "busy", err.Error())
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	// Detached from the request context: a client disconnect must
	// not cancel a run that already holds the lock.
	ctx := logger.SetJobID(context.Background(), job.ID)
	res, runErr := h.execute(ctx, job)
	if runErr != nil {
		fail(c, http.StatusInternalServerError, "sync_failed", runErr.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"job_id":  job.ID,
		"result":  res,
	})
}

// CreateJob handles POST /jobs: queues a run and returns immediately.
func (h *SyncHandler) CreateJob(c *gin.Context) {
	var req scrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	params, err := req.params()
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	job, err := h.reg.Create(params)
	if errors.Is(err, registry.ErrBusy) {
		fail(c, http.StatusConflict, "busy", err.Error())
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	go func() {
		// the job outlives the HTTP request
		ctx := logger.SetJobID(context.Background(), job.ID)
		_, _ = h.execute(ctx, job)
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"job_id":  job.ID,
		"status":  job.Status,
	})
}

// execute runs one job, keeping the registry and the job's log file
// in step with its progress.
func (h *SyncHandler) execute(ctx context.Context, job domain.SyncJob) (*domain.SyncResult, error) {
	ctx = logger.SetJobID(ctx, job.ID)
	h.reg.Start(job.ID)
	h.appendJobLog(job, "started: month=%s year=%d full_sync=%t format=%s",
		job.Params.Month, job.Params.Year, job.Params.FullSync, job.Params.OutputFormat)

	res, err := h.runner.Run(ctx, job.Params)
	h.reg.Finish(job.ID, res, err)

	if err != nil {
		logger.CtxError(ctx, "Job failed: %v", err)
		h.appendJobLog(job, "failed: %v", err)
		return res, err
	}
	if raw, merr := json.Marshal(res); merr == nil {
		h.appendJobLog(job, "finished: %s", raw)
	}
	return res, nil
}

func (h *SyncHandler) appendJobLog(job domain.SyncJob, format string, args ...interface{}) {
	if job.LogPath == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(job.LogPath), 0o755); err != nil {
		return
	}
	f, err := os.OpenFile(job.LogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	fmt.Fprintf(f, "%s %s\n", time.Now().Format(time.RFC3339), fmt.Sprintf(format, args...))
}

// GetJob handles GET /jobs/:id.
func (h *SyncHandler) GetJob(c *gin.Context) {
	job, err := h.reg.Get(c.Param("id"))
	if errors.Is(err, registry.ErrNotFound) {
		fail(c, http.StatusNotFound, "not_found", "no such job")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "job": job})
}

// ListJobs handles GET /jobs.
func (h *SyncHandler) ListJobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "jobs": h.reg.List()})
}

// JobLog handles GET /jobs/:id/log, returning the job's log as text.
func (h *SyncHandler) JobLog(c *gin.Context) {
	job, err := h.reg.Get(c.Param("id"))
	if errors.Is(err, registry.ErrNotFound) {
		fail(c, http.StatusNotFound, "not_found", "no such job")
		return
	}
	raw, err := os.ReadFile(job.LogPath)
	if err != nil {
		fail(c, http.StatusNotFound, "not_found", "job has no log yet")
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", raw)
}

// Status handles GET /status.
func (h *SyncHandler) Status(c *gin.Context) {
	state := "idle"
	if h.reg.Active() {
		state = "running"
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"status":  state,
		"jobs":    len(h.reg.List()),
	})
}
