// Package summary writes and reads the per-run summary artifacts.
package summary

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/newbienorbie/unifi-scraper/internal/domain"
)

var ErrNoSummary = errors.New("no summary found")

const fileLayout = "20060102_150405"

// Store keeps summary JSON files under one directory, named
// summary_YYYYMMDD_HHMMSS.json so lexical order is time order.
type Store struct {
	dir string
	now func() time.Time
}

func NewStore(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

// Write persists one run summary and returns its path.
func (s *Store) Write(sum domain.RunSummary) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create summary directory: %w", err)
	}

	path := filepath.Join(s.dir, "summary_"+s.now().Format(fileLayout)+".json")
	raw, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal summary: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("failed to write summary: %w", err)
	}
	return path, nil
}

func (s *Store) list() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list summaries: %w", err)
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "summary_") && strings.HasSuffix(name, ".json") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) read(name string) (domain.RunSummary, error) {
	raw, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return domain.RunSummary{}, fmt.Errorf("failed to read summary %s: %w", name, err)
	}
	var sum domain.RunSummary
	if err := json.Unmarshal(raw, &sum); err != nil {
		return domain.RunSummary{}, fmt.Errorf("failed to parse summary %s: %w", name, err)
	}
	return sum, nil
}

// Latest returns the most recently written summary.
func (s *Store) Latest() (domain.RunSummary, error) {
	names, err := s.list()
	if err != nil {
		return domain.RunSummary{}, err
	}
	if len(names) == 0 {
		return domain.RunSummary{}, ErrNoSummary
	}
	return s.read(names[len(names)-1])
}

// Today returns the latest summary written today, so a dashboard can
// distinguish "ran earlier today" from "last ran last week".
func (s *Store) Today() (domain.RunSummary, error) {
	names, err := s.list()
	if err != nil {
		return domain.RunSummary{}, err
	}
	prefix := "summary_" + s.now().Format("20060102")
	for i := len(names) - 1; i >= 0; i-- {
		if strings.HasPrefix(names[i], prefix) {
			return s.read(names[i])
		}
	}
	return domain.RunSummary{}, ErrNoSummary
}

// Months returns the distinct month tabs summaries exist for, most
// recent summary first.
func (s *Store) Months() ([]string, error) {
	names, err := s.list()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var months []string
	for i := len(names) - 1; i >= 0; i-- {
		sum, err := s.read(names[i])
		if err != nil {
			continue
		}
		if sum.TabName != "" && !seen[sum.TabName] {
			seen[sum.TabName] = true
			months = append(months, sum.TabName)
		}
	}
	return months, nil
}
