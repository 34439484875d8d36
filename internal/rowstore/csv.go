package rowstore

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/newbienorbie/unifi-scraper/internal/dateutil"
	"github.com/newbienorbie/unifi-scraper/internal/domain"
)

// Checkpoint is the sidecar file that lets an interrupted CSV run
// resume without refetching everything. It is removed when the run
// finishes cleanly.
type Checkpoint struct {
	Completed  map[string]string `json:"completed"`
	Incomplete map[string]string `json:"incomplete"`
	LastUpdate string            `json:"last_update"`
}

// CSVStore writes orders to a flat CSV file, one append per order,
// with the checkpoint mirroring progress after every write.
type CSVStore struct {
	path       string
	checkpoint string

	records []domain.OrderRecord
	index   map[string]int // order number to records slice index
	cp      Checkpoint
}

// OpenCSV opens or creates the CSV file, loading any existing rows
// and checkpoint so a resumed run can pick up where it stopped.
func OpenCSV(path string) (*CSVStore, error) {
	s := &CSVStore{
		path:       path,
		checkpoint: path + ".checkpoint.json",
		index:      make(map[string]int),
		cp: Checkpoint{
			Completed:  make(map[string]string),
			Incomplete: make(map[string]string),
		},
	}

	if err := s.loadRows(); err != nil {
		return nil, err
	}
	s.loadCheckpoint()

	if len(s.records) == 0 {
		if err := s.rewrite(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *CSVStore) loadRows() error {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open csv %s: %w", s.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return fmt.Errorf("failed to read csv %s: %w", s.path, err)
	}

	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue
		}
		rec := domain.RecordFromValues(row)
		rec.OrderNumber = strings.TrimPrefix(rec.OrderNumber, "'")
		if rec.OrderNumber == "" {
			continue
		}
		if idx, ok := s.index[rec.OrderNumber]; ok {
			s.records[idx] = rec
			continue
		}
		s.index[rec.OrderNumber] = len(s.records)
		s.records = append(s.records, rec)
	}
	return nil
}

func (s *CSVStore) loadCheckpoint() {
	raw, err := os.ReadFile(s.checkpoint)
	if err != nil {
		return
	}
	var cp Checkpoint
	if err := json.Unmarshal(raw, &cp); err != nil {
		return
	}
	if cp.Completed != nil {
		s.cp.Completed = cp.Completed
	}
	if cp.Incomplete != nil {
		s.cp.Incomplete = cp.Incomplete
	}
}

func (s *CSVStore) saveCheckpoint() error {
	s.cp.LastUpdate = time.Now().Format(time.RFC3339)
	raw, err := json.MarshalIndent(s.cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	if err := os.WriteFile(s.checkpoint, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	return nil
}

func (s *CSVStore) States() (map[string]RowState, error) {
	out := make(map[string]RowState, len(s.records))
	for nbr, idx := range s.index {
		rec := s.records[idx]
		out[nbr] = RowState{
			OrderStatus: rec.OrderStatus,
			CreatedDate: rec.CreatedDate,
			LastSynced:  rec.LastSynced,
		}
	}
	for nbr, synced := range s.cp.Completed {
		if _, ok := out[nbr]; !ok {
			out[nbr] = RowState{LastSynced: synced}
		}
	}
	for nbr, reason := range s.cp.Incomplete {
		st := out[nbr]
		st.Incomplete = true
		st.Reason = reason
		out[nbr] = st
	}
	return out, nil
}

func (s *CSVStore) Upsert(rec domain.OrderRecord) error {
	if idx, ok := s.index[rec.OrderNumber]; ok {
		s.records[idx] = rec
		if err := s.rewrite(); err != nil {
			return err
		}
	} else {
		s.index[rec.OrderNumber] = len(s.records)
		s.records = append(s.records, rec)
		if err := s.appendRow(rec); err != nil {
			return err
		}
	}

	s.cp.Completed[rec.OrderNumber] = rec.LastSynced
	delete(s.cp.Incomplete, rec.OrderNumber)
	return s.saveCheckpoint()
}

func (s *CSVStore) appendRow(rec domain.OrderRecord) error {
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open csv for append: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(rec.Values()); err != nil {
		return fmt.Errorf("failed to append row: %w", err)
	}
	w.Flush()
	return w.Error()
}

// rewrite replaces the whole file from memory.
func (s *CSVStore) rewrite() error {
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("failed to create csv %s: %w", s.path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(domain.Headers); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, rec := range s.records {
		if err := w.Write(rec.Values()); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

func (s *CSVStore) MarkIncomplete(orderNumber, reason string) error {
	s.cp.Incomplete[orderNumber] = reason
	return s.saveCheckpoint()
}

// SortByCreatedDate rewrites the file newest first and drops the
// checkpoint, marking the run as cleanly finished.
func (s *CSVStore) SortByCreatedDate() error {
	type datedRec struct {
		rec   domain.OrderRecord
		date  time.Time
		valid bool
	}
	data := make([]datedRec, len(s.records))
	for i, rec := range s.records {
		data[i] = datedRec{rec: rec}
		if t, ok := dateutil.ParseUIDate(rec.CreatedDate); ok {
			data[i].date, data[i].valid = t, true
		}
	}
	sort.SliceStable(data, func(i, j int) bool {
		if data[i].valid != data[j].valid {
			return data[i].valid
		}
		if !data[i].valid {
			return false
		}
		return data[i].date.After(data[j].date)
	})

	s.index = make(map[string]int, len(data))
	for i, dr := range data {
		s.records[i] = dr.rec
		s.index[dr.rec.OrderNumber] = i
	}
	if err := s.rewrite(); err != nil {
		return err
	}

	if err := os.Remove(s.checkpoint); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove checkpoint: %w", err)
	}
	return nil
}

func (s *CSVStore) Destination() string { return s.path }

func (s *CSVStore) Close() error { return nil }
