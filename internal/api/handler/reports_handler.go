package handler

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/newbienorbie/unifi-scraper/internal/summary"
)

// ReportsHandler serves run summaries and CSV downloads.
type ReportsHandler struct {
	summaries *summary.Store
	outputDir string
}

func NewReportsHandler(summaries *summary.Store, outputDir string) *ReportsHandler {
	return &ReportsHandler{summaries: summaries, outputDir: outputDir}
}

// DownloadCSV handles GET /download_csv?filename=. The filename must
// be a bare name inside the output directory.
func (h *ReportsHandler) DownloadCSV(c *gin.Context) {
	name := c.Query("filename")
	if name == "" {
		fail(c, http.StatusBadRequest, "invalid_request", "filename query parameter is required")
		return
	}
	if name != filepath.Base(name) || name == "." || name == ".." {
		fail(c, http.StatusBadRequest, "invalid_request", "filename must not contain path separators")
		return
	}
	if !strings.HasSuffix(name, ".csv") {
		fail(c, http.StatusBadRequest, "invalid_request", "only .csv files can be downloaded")
		return
	}

	path := filepath.Join(h.outputDir, name)
	if _, err := os.Stat(path); err != nil {
		fail(c, http.StatusNotFound, "not_found", fmt.Sprintf("no file named %q exists", name))
		return
	}
	c.FileAttachment(path, name)
}

// CurrentSummary handles GET /get_current_summary (latest run today).
func (h *ReportsHandler) CurrentSummary(c *gin.Context) {
	sum, err := h.summaries.Today()
	if errors.Is(err, summary.ErrNoSummary) {
		fail(c, http.StatusNotFound, "not_found", "no run finished today")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "summary": sum})
}

// LatestSummary handles GET /get_latest_summary.
func (h *ReportsHandler) LatestSummary(c *gin.Context) {
	sum, err := h.summaries.Latest()
	if errors.Is(err, summary.ErrNoSummary) {
		fail(c, http.StatusNotFound, "not_found", "no run summaries yet")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "summary": sum})
}

// Months handles GET /get_months.
func (h *ReportsHandler) Months(c *gin.Context) {
	months, err := h.summaries.Months()
	if err != nil {
		fail(c, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	if months == nil {
		months = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "months": months})
}
