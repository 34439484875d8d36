package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newbienorbie/unifi-scraper/internal/domain"
	"github.com/newbienorbie/unifi-scraper/internal/portal"
	"github.com/newbienorbie/unifi-scraper/internal/rowstore"
)

type fakeDriver struct {
	pages      [][]portal.OrderRow
	page       int
	details    map[string]*portal.OrderDetail
	detailErr  map[string]error
	listErrs   map[int]error
	loginCalls int
	loginErr   error
}

func (d *fakeDriver) Login(ctx context.Context) error {
	d.loginCalls++
	return d.loginErr
}

func (d *fakeDriver) SetMonthFilter(ctx context.Context, month string, year int) error {
	d.page = 0
	return nil
}

func (d *fakeDriver) ListPageRows(ctx context.Context) ([]portal.OrderRow, error) {
	if err, ok := d.listErrs[d.page+1]; ok {
		delete(d.listErrs, d.page+1)
		return nil, err
	}
	if d.page >= len(d.pages) {
		return nil, nil
	}
	return d.pages[d.page], nil
}

func (d *fakeDriver) FetchOrderDetail(ctx context.Context, orderID string) (*portal.OrderDetail, error) {
	if err, ok := d.detailErr[orderID]; ok {
		return nil, err
	}
	if det, ok := d.details[orderID]; ok {
		return det, nil
	}
	return &portal.OrderDetail{CustOrderNbr: orderID}, nil
}

func (d *fakeDriver) NextPage(ctx context.Context) error {
	if d.page+1 >= len(d.pages) {
		return portal.ErrLastPage
	}
	d.page++
	return nil
}

func (d *fakeDriver) ActivePage() int { return d.page + 1 }

func (d *fakeDriver) Close() error { return nil }

type fakeStore struct {
	states     map[string]rowstore.RowState
	upserts    []domain.OrderRecord
	incomplete map[string]string
	sorted     bool
	upsertErr  error
}

func newFakeStore(done ...string) *fakeStore {
	s := &fakeStore{
		states:     make(map[string]rowstore.RowState),
		incomplete: make(map[string]string),
	}
	for _, nbr := range done {
		s.states[nbr] = rowstore.RowState{LastSynced: "2025-03-01T08:00:00+08:00"}
	}
	return s
}

func (s *fakeStore) States() (map[string]rowstore.RowState, error) {
	out := make(map[string]rowstore.RowState, len(s.states))
	for k, v := range s.states {
		out[k] = v
	}
	return out, nil
}

func (s *fakeStore) Upsert(rec domain.OrderRecord) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.upserts = append(s.upserts, rec)
	s.states[rec.OrderNumber] = rowstore.RowState{
		OrderStatus: rec.OrderStatus,
		CreatedDate: rec.CreatedDate,
		LastSynced:  rec.LastSynced,
	}
	return nil
}

func (s *fakeStore) MarkIncomplete(orderNumber, reason string) error {
	s.incomplete[orderNumber] = reason
	return nil
}

func (s *fakeStore) SortByCreatedDate() error {
	s.sorted = true
	return nil
}

func (s *fakeStore) Destination() string { return "Mar 2025" }

func (s *fakeStore) Close() error { return nil }

func rows(nbrs ...string) []portal.OrderRow {
	out := make([]portal.OrderRow, len(nbrs))
	for i, nbr := range nbrs {
		out[i] = portal.OrderRow{OrderID: nbr, OrderNumber: nbr, OrderStatus: "In Progress", CreatedDate: "20250302100000"}
	}
	return out
}

func TestRunFetchesEverythingOnEmptyStore(t *testing.T) {
	d := &fakeDriver{pages: [][]portal.OrderRow{rows("1-A", "1-B"), rows("1-C")}}
	st := newFakeStore()

	res, err := NewEngine(d, st, 0.8).Run(context.Background(), domain.SyncModeIncremental)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 3, res.Successful)
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, domain.StopLastPage, res.StopReason)
	assert.True(t, res.Success)
	assert.True(t, st.sorted)
	assert.Len(t, st.upserts, 3)
}

func TestRunSkipsOrdersAlreadySynced(t *testing.T) {
	d := &fakeDriver{pages: [][]portal.OrderRow{rows("1-A", "1-B", "1-C")}}
	st := newFakeStore("1-A", "1-B")

	res, err := NewEngine(d, st, 0.8).Run(context.Background(), domain.SyncModeIncremental)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 1, res.Successful)
	require.Len(t, st.upserts, 1)
	assert.Equal(t, "1-C", st.upserts[0].OrderNumber)
}

func TestRunFullSyncStillSkipsSyncedOrders(t *testing.T) {
	// the synced-order skip is mode independent, a full sync only
	// changes the early-exit behavior
	d := &fakeDriver{pages: [][]portal.OrderRow{rows("2025103112345", "1-B")}}
	st := newFakeStore("2025103112345")

	res, err := NewEngine(d, st, 0.8).Run(context.Background(), domain.SyncModeFull)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.Successful)
	require.Len(t, st.upserts, 1)
	assert.Equal(t, "1-B", st.upserts[0].OrderNumber, "the stamped order must not be rewritten")
}

func TestRunIncompleteOrderIsRetried(t *testing.T) {
	// an order marked incomplete last run is not in the complete set,
	// so the next incremental run fetches it again
	d := &fakeDriver{pages: [][]portal.OrderRow{rows("1-A")}}
	st := newFakeStore()
	st.states["1-A"] = rowstore.RowState{Incomplete: true, Reason: "NO_API_DATA"}

	res, err := NewEngine(d, st, 0.8).Run(context.Background(), domain.SyncModeIncremental)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Successful)
	assert.Equal(t, 0, res.Skipped)
}

func TestRunNoPayloadMarksIncomplete(t *testing.T) {
	d := &fakeDriver{
		pages:     [][]portal.OrderRow{rows("1-A", "1-B")},
		detailErr: map[string]error{"1-A": portal.ErrNoPayload},
	}
	st := newFakeStore()

	res, err := NewEngine(d, st, 0.8).Run(context.Background(), domain.SyncModeIncremental)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Successful)
	assert.Equal(t, "NO_API_DATA", st.incomplete["1-A"])
	assert.True(t, res.Success)
}

func TestRunWriteFailureCounts(t *testing.T) {
	d := &fakeDriver{pages: [][]portal.OrderRow{rows("1-A")}}
	st := newFakeStore()
	st.upsertErr = errors.New("disk full")

	res, err := NewEngine(d, st, 0.8).Run(context.Background(), domain.SyncModeIncremental)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 0, res.Successful)
	assert.Equal(t, "WRITE_FAILED", st.incomplete["1-A"])
}

func TestRunHighSkipRatioStopsEarly(t *testing.T) {
	// pages 1 and 2 are almost entirely known orders; page 3 must
	// never be reached
	d := &fakeDriver{pages: [][]portal.OrderRow{
		rows("1-A", "1-B", "1-C", "1-D", "1-E"),
		rows("1-F", "1-G", "1-H", "1-I", "1-J"),
		rows("1-K"),
	}}
	st := newFakeStore("1-A", "1-B", "1-C", "1-D", "1-E", "1-F", "1-G", "1-H", "1-I")

	res, err := NewEngine(d, st, 0.8).Run(context.Background(), domain.SyncModeIncremental)
	require.NoError(t, err)

	assert.Equal(t, domain.StopHighSkipRatio, res.StopReason)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, 9, res.Skipped)
	assert.True(t, res.Success)
}

func TestRunSkipRatioNeverTriggersOnFirstPage(t *testing.T) {
	d := &fakeDriver{pages: [][]portal.OrderRow{
		rows("1-A", "1-B", "1-C", "1-D", "1-E"),
		rows("1-F"),
	}}
	st := newFakeStore("1-A", "1-B", "1-C", "1-D", "1-E")

	res, err := NewEngine(d, st, 0.8).Run(context.Background(), domain.SyncModeIncremental)
	require.NoError(t, err)

	// page 2's fresh order was still processed
	assert.Equal(t, 1, res.Successful)
}

func TestRunFullSyncNeverStopsOnSkipRatio(t *testing.T) {
	d := &fakeDriver{pages: [][]portal.OrderRow{
		rows("1-A", "1-B", "1-C", "1-D", "1-E"),
		rows("1-F", "1-G", "1-H", "1-I", "1-J"),
	}}
	st := newFakeStore("1-A", "1-B", "1-C", "1-D", "1-E", "1-F", "1-G", "1-H", "1-I", "1-J")

	res, err := NewEngine(d, st, 0.8).Run(context.Background(), domain.SyncModeFull)
	require.NoError(t, err)

	assert.Equal(t, domain.StopLastPage, res.StopReason)
	assert.Equal(t, 10, res.Skipped)
	assert.Empty(t, st.upserts)
}

func TestRunPageErrorAborts(t *testing.T) {
	d := &fakeDriver{
		pages:    [][]portal.OrderRow{rows("1-A"), rows("1-B")},
		listErrs: map[int]error{2: errors.New("portal 500")},
	}
	st := newFakeStore()

	res, err := NewEngine(d, st, 0.8).Run(context.Background(), domain.SyncModeIncremental)
	require.NoError(t, err)

	assert.Equal(t, domain.StopPageError, res.StopReason)
	assert.False(t, res.Success)
	assert.False(t, st.sorted)
	// page 1's order already landed before the failure
	assert.Len(t, st.upserts, 1)
}

func TestRunReloginOnSessionDrop(t *testing.T) {
	d := &fakeDriver{
		pages:    [][]portal.OrderRow{rows("1-A")},
		listErrs: map[int]error{1: portal.ErrSessionInvalid},
	}
	st := newFakeStore()

	res, err := NewEngine(d, st, 0.8).Run(context.Background(), domain.SyncModeIncremental)
	require.NoError(t, err)

	assert.Equal(t, 1, d.loginCalls)
	assert.Equal(t, 1, res.Successful)
	assert.True(t, res.Success)
}

func TestRunDuplicateRowsAcrossPagesProcessedOnce(t *testing.T) {
	d := &fakeDriver{pages: [][]portal.OrderRow{rows("1-A", "1-B"), rows("1-B", "1-C")}}
	st := newFakeStore()

	res, err := NewEngine(d, st, 0.8).Run(context.Background(), domain.SyncModeIncremental)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Total)
	assert.Len(t, st.upserts, 3)
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := &fakeDriver{pages: [][]portal.OrderRow{rows("1-A")}}
	st := newFakeStore()

	res, err := NewEngine(d, st, 0.8).Run(ctx, domain.SyncModeIncremental)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, res.Success)
}
