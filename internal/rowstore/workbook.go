package rowstore

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/newbienorbie/unifi-scraper/internal/dateutil"
	"github.com/newbienorbie/unifi-scraper/internal/domain"
	"github.com/newbienorbie/unifi-scraper/internal/logger"
)

const lastColumn = "M"

// WorkbookStore keeps one month of orders on one tab of an xlsx
// workbook. The workbook is saved after every upsert so an aborted
// run leaves all finished orders on disk.
type WorkbookStore struct {
	path string
	tab  string
	f    *excelize.File

	rowIndex   map[string]int // order number to 1-based sheet row
	states     map[string]RowState
	nextRow    int
	incomplete map[string]string
	retries    int
	saved      bool
}

// OpenWorkbook opens or creates the workbook and ensures the tab for
// the given month exists with the header row in place.
func OpenWorkbook(path, tab string, retries int) (*WorkbookStore, error) {
	var f *excelize.File
	var err error
	created := false

	if _, statErr := os.Stat(path); statErr == nil {
		f, err = excelize.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
		}
	} else {
		f = excelize.NewFile()
		created = true
	}

	s := &WorkbookStore{
		path:       path,
		tab:        tab,
		f:          f,
		rowIndex:   make(map[string]int),
		states:     make(map[string]RowState),
		incomplete: make(map[string]string),
		retries:    retries,
		saved:      !created,
	}

	if err := s.ensureTab(); err != nil {
		f.Close()
		return nil, err
	}
	if created {
		// drop the default sheet excelize starts with
		if idx, _ := f.GetSheetIndex("Sheet1"); idx >= 0 && s.tab != "Sheet1" {
			f.DeleteSheet("Sheet1")
		}
	}
	if err := s.loadRows(); err != nil {
		f.Close()
		return nil, err
	}
	if err := s.save(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

func (s *WorkbookStore) ensureTab() error {
	if idx, _ := s.f.GetSheetIndex(s.tab); idx >= 0 {
		return nil
	}

	if _, err := s.f.NewSheet(s.tab); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", s.tab, err)
	}

	headers := make([]interface{}, len(domain.Headers))
	for i, h := range domain.Headers {
		headers[i] = h
	}
	if err := s.f.SetSheetRow(s.tab, "A1", &headers); err != nil {
		return fmt.Errorf("failed to write header row: %w", err)
	}

	// order numbers must never be coerced to numbers
	textStyle, err := s.f.NewStyle(&excelize.Style{NumFmt: 49})
	if err != nil {
		return fmt.Errorf("failed to create text style: %w", err)
	}
	if err := s.f.SetColStyle(s.tab, "A", textStyle); err != nil {
		return fmt.Errorf("failed to set column style: %w", err)
	}

	boldStyle, err := s.f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	if err := s.f.SetCellStyle(s.tab, "A1", lastColumn+"1", boldStyle); err != nil {
		return fmt.Errorf("failed to style header row: %w", err)
	}

	s.placeTab()
	return nil
}

// placeTab keeps month tabs ordered newest first.
func (s *WorkbookStore) placeTab() {
	myMonth, myYear, ok := dateutil.ParseTabTitle(s.tab)
	if !ok {
		return
	}
	for _, other := range s.f.GetSheetList() {
		if other == s.tab {
			continue
		}
		otherMonth, otherYear, ok := dateutil.ParseTabTitle(other)
		if !ok {
			continue
		}
		if otherYear < myYear || (otherYear == myYear && otherMonth < myMonth) {
			_ = s.f.MoveSheet(s.tab, other)
			return
		}
	}
}

func (s *WorkbookStore) loadRows() error {
	rows, err := s.f.GetRows(s.tab)
	if err != nil {
		return fmt.Errorf("failed to read sheet %s: %w", s.tab, err)
	}

	s.nextRow = 2
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue
		}
		// older runs wrote order numbers with a leading apostrophe
		orderNbr := strings.TrimPrefix(strings.TrimSpace(row[0]), "'")
		if orderNbr == "" {
			continue
		}
		sheetRow := i + 1
		s.rowIndex[orderNbr] = sheetRow
		st := RowState{}
		if len(row) > domain.ColOrderStatus {
			st.OrderStatus = row[domain.ColOrderStatus]
		}
		if len(row) > domain.ColCreatedDate {
			st.CreatedDate = row[domain.ColCreatedDate]
		}
		if len(row) > domain.ColLastSynced {
			st.LastSynced = row[domain.ColLastSynced]
		}
		s.states[orderNbr] = st
		if sheetRow >= s.nextRow {
			s.nextRow = sheetRow + 1
		}
	}
	return nil
}

func (s *WorkbookStore) States() (map[string]RowState, error) {
	out := make(map[string]RowState, len(s.states))
	for k, v := range s.states {
		out[k] = v
	}
	return out, nil
}

func (s *WorkbookStore) Upsert(rec domain.OrderRecord) error {
	row, exists := s.rowIndex[rec.OrderNumber]
	if !exists {
		row = s.nextRow
	}

	values := rec.Values()
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := s.f.SetSheetRow(s.tab, fmt.Sprintf("A%d", row), &cells); err != nil {
		return fmt.Errorf("failed to write row for %s: %w", rec.OrderNumber, err)
	}

	if err := s.save(); err != nil {
		return err
	}

	if !exists {
		s.rowIndex[rec.OrderNumber] = row
		s.nextRow = row + 1
	}
	s.states[rec.OrderNumber] = RowState{
		OrderStatus: rec.OrderStatus,
		CreatedDate: rec.CreatedDate,
		LastSynced:  rec.LastSynced,
	}
	delete(s.incomplete, rec.OrderNumber)
	return nil
}

func (s *WorkbookStore) MarkIncomplete(orderNumber, reason string) error {
	s.incomplete[orderNumber] = reason
	st := s.states[orderNumber]
	st.Incomplete = true
	st.Reason = reason
	s.states[orderNumber] = st
	return nil
}

func (s *WorkbookStore) SortByCreatedDate() error {
	rows, err := s.f.GetRows(s.tab)
	if err != nil {
		return fmt.Errorf("failed to read sheet for sort: %w", err)
	}
	if len(rows) <= 2 {
		return nil
	}

	type datedRow struct {
		values []string
		date   time.Time
		valid  bool
	}
	data := make([]datedRow, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}
		dr := datedRow{values: row}
		if len(row) > domain.ColCreatedDate {
			if t, ok := dateutil.ParseUIDate(row[domain.ColCreatedDate]); ok {
				dr.date, dr.valid = t, true
			}
		}
		data = append(data, dr)
	}

	// newest first, rows without a parsable date sink to the bottom
	sort.SliceStable(data, func(i, j int) bool {
		if data[i].valid != data[j].valid {
			return data[i].valid
		}
		if !data[i].valid {
			return false
		}
		return data[i].date.After(data[j].date)
	})

	for i, dr := range data {
		sheetRow := i + 2
		cells := make([]interface{}, len(domain.Headers))
		for c := range cells {
			if c < len(dr.values) {
				cells[c] = dr.values[c]
			} else {
				cells[c] = ""
			}
		}
		if err := s.f.SetSheetRow(s.tab, fmt.Sprintf("A%d", sheetRow), &cells); err != nil {
			return fmt.Errorf("failed to rewrite row %d: %w", sheetRow, err)
		}
		orderNbr := strings.TrimPrefix(strings.TrimSpace(dr.values[0]), "'")
		if orderNbr != "" {
			s.rowIndex[orderNbr] = sheetRow
		}
	}
	return s.save()
}

func (s *WorkbookStore) Destination() string { return s.tab }

func (s *WorkbookStore) Close() error {
	if err := s.save(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}

// save persists the workbook, retrying with backoff since the file
// may be held open in Excel.
func (s *WorkbookStore) save() error {
	var err error
	for attempt := 0; ; attempt++ {
		if s.saved {
			err = s.f.Save()
		} else {
			err = s.f.SaveAs(s.path)
		}
		if err == nil {
			s.saved = true
			return nil
		}
		if attempt >= s.retries {
			break
		}
		wait := time.Duration(1<<attempt) * time.Second
		logger.Warn("Workbook save failed, retrying in %s: %v", wait, err)
		time.Sleep(wait)
	}
	return fmt.Errorf("failed to save workbook after %d retries: %w", s.retries, err)
}
