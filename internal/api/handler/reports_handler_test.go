package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newbienorbie/unifi-scraper/internal/summary"
)

func newReportsRouter(t *testing.T) (*gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	outputDir := t.TempDir()
	h := NewReportsHandler(summary.NewStore(t.TempDir()), outputDir)

	r := gin.New()
	r.GET("/download_csv", h.DownloadCSV)
	r.GET("/get_months", h.Months)
	return r, outputDir
}

func getPath(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestDownloadCSVServesFile(t *testing.T) {
	r, outputDir := newReportsRouter(t)
	content := "Order Number,Order Status\n1001,Completed\n"
	require.NoError(t, os.WriteFile(filepath.Join(outputDir, "unifi_orders_Mar_2025.csv"), []byte(content), 0o644))

	w := getPath(r, "/download_csv?filename=unifi_orders_Mar_2025.csv")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, content, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "unifi_orders_Mar_2025.csv")
}

func TestDownloadCSVRejectsBadFilenames(t *testing.T) {
	r, _ := newReportsRouter(t)

	cases := []struct {
		name     string
		filename string
		code     int
	}{
		{"missing", "", http.StatusBadRequest},
		{"traversal", "../secret.csv", http.StatusBadRequest},
		{"absolute", "/etc/passwd.csv", http.StatusBadRequest},
		{"wrong extension", "notes.txt", http.StatusBadRequest},
		{"absent file", "unifi_orders_Jan_2020.csv", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := getPath(r, "/download_csv?filename="+url.QueryEscape(tc.filename))
			assert.Equal(t, tc.code, w.Code)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, false, body["success"])
		})
	}
}

func TestMonthsEmptyReturnsEmptyList(t *testing.T) {
	r, _ := newReportsRouter(t)

	w := getPath(r, "/get_months")
	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool     `json:"success"`
		Months  []string `json:"months"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.NotNil(t, body.Months)
	assert.Empty(t, body.Months)
}
