package domain

// SheetTotals counts the rows of a month tab by status after a run.
// Only rows with a Last Synced value count toward TotalInSheet.
type SheetTotals struct {
	TotalInSheet  int `json:"total_in_sheet"`
	Completed     int `json:"completed"`
	Cancelled     int `json:"cancelled"`
	OtherStatuses int `json:"other_statuses"`
	NewToday      int `json:"new_today"`
}

// ScrapeStats counts what one pagination pass did.
type ScrapeStats struct {
	OrdersProcessed int `json:"orders_processed"`
	Successful      int `json:"successful"`
	Skipped         int `json:"skipped"`
	Failed          int `json:"failed"`
}

// RunSummary is the per-run artifact written under outputs/summaries.
type RunSummary struct {
	Date       string      `json:"date"`
	Time       string      `json:"time"`
	Month      string      `json:"month"`
	Year       int         `json:"year"`
	TabName    string      `json:"tab_name"`
	ScrapeMode SyncMode    `json:"scrape_mode"`
	Summary    SheetTotals `json:"summary"`
	Stats      ScrapeStats `json:"scrape_stats"`
}
