package summary

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newbienorbie/unifi-scraper/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	return NewStore(t.TempDir())
}

func sample(tab string) domain.RunSummary {
	return domain.RunSummary{
		Date:       "2025-03-02",
		Time:       "10:00:00",
		Month:      "March",
		Year:       2025,
		TabName:    tab,
		ScrapeMode: domain.SyncModeIncremental,
		Summary:    domain.SheetTotals{TotalInSheet: 10, Completed: 7},
		Stats:      domain.ScrapeStats{OrdersProcessed: 10, Successful: 3, Skipped: 7},
	}
}

func TestWriteAndLatest(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2025, 3, 2, 10, 0, 0, 0, time.Local)

	s.now = func() time.Time { return base }
	_, err := s.Write(sample("Feb 2025"))
	require.NoError(t, err)

	s.now = func() time.Time { return base.Add(time.Hour) }
	_, err = s.Write(sample("Mar 2025"))
	require.NoError(t, err)

	latest, err := s.Latest()
	require.NoError(t, err)
	assert.Equal(t, "Mar 2025", latest.TabName)
}

func TestLatestEmpty(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Latest()
	assert.ErrorIs(t, err, ErrNoSummary)
}

func TestTodayIgnoresOlderRuns(t *testing.T) {
	s := newTestStore(t)
	yesterday := time.Date(2025, 3, 1, 22, 0, 0, 0, time.Local)
	today := time.Date(2025, 3, 2, 9, 0, 0, 0, time.Local)

	s.now = func() time.Time { return yesterday }
	_, err := s.Write(sample("Feb 2025"))
	require.NoError(t, err)

	s.now = func() time.Time { return today }
	_, err = s.Today()
	assert.ErrorIs(t, err, ErrNoSummary)

	_, err = s.Write(sample("Mar 2025"))
	require.NoError(t, err)

	sum, err := s.Today()
	require.NoError(t, err)
	assert.Equal(t, "Mar 2025", sum.TabName)
}

func TestMonthsDistinctNewestFirst(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2025, 3, 2, 10, 0, 0, 0, time.Local)

	for i, tab := range []string{"Jan 2025", "Feb 2025", "Jan 2025", "Mar 2025"} {
		off := time.Duration(i) * time.Hour
		s.now = func() time.Time { return base.Add(off) }
		_, err := s.Write(sample(tab))
		require.NoError(t, err)
	}

	months, err := s.Months()
	require.NoError(t, err)
	assert.Equal(t, []string{"Mar 2025", "Jan 2025", "Feb 2025"}, months)
}
