package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newbienorbie/unifi-scraper/internal/domain"
)

func params(month string, year int) domain.JobParams {
	return domain.JobParams{Month: month, Year: year, OutputFormat: domain.OutputSheets}
}

func TestGlobalLockRejectsSecondJob(t *testing.T) {
	r := New("global", t.TempDir(), nil)

	first, err := r.Create(params("March", 2025))
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusQueued, first.Status)

	_, err = r.Create(params("April", 2025))
	assert.ErrorIs(t, err, ErrBusy)

	r.Finish(first.ID, &domain.SyncResult{Success: true}, nil)

	_, err = r.Create(params("April", 2025))
	assert.NoError(t, err)
}

func TestMonthLockAllowsDifferentMonths(t *testing.T) {
	r := New("month", t.TempDir(), nil)

	_, err := r.Create(params("March", 2025))
	require.NoError(t, err)

	_, err = r.Create(params("April", 2025))
	assert.NoError(t, err)

	_, err = r.Create(params("March", 2025))
	assert.ErrorIs(t, err, ErrBusy)
}

func TestJobLifecycle(t *testing.T) {
	r := New("global", t.TempDir(), nil)

	job, err := r.Create(params("March", 2025))
	require.NoError(t, err)

	r.Start(job.ID)
	got, err := r.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusRunning, got.Status)
	assert.NotNil(t, got.StartedAt)

	res := &domain.SyncResult{Success: true, Total: 5, Successful: 5}
	r.Finish(job.ID, res, nil)

	got, err = r.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusDone, got.Status)
	assert.NotNil(t, got.CompletedAt)
	assert.Equal(t, res, got.Result)
	assert.False(t, r.Active())
}

func TestFailedJobRecordsError(t *testing.T) {
	r := New("global", t.TempDir(), nil)

	job, err := r.Create(params("March", 2025))
	require.NoError(t, err)
	r.Start(job.ID)
	r.Finish(job.ID, nil, errors.New("login failed"))

	got, err := r.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusError, got.Status)
	assert.Equal(t, "login failed", got.Error)
	// a failed job must not wedge the lock
	assert.False(t, r.Active())
}

func TestGetUnknownJob(t *testing.T) {
	r := New("global", t.TempDir(), nil)
	_, err := r.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListNewestFirst(t *testing.T) {
	r := New("month", t.TempDir(), nil)

	a, err := r.Create(params("March", 2025))
	require.NoError(t, err)
	b, err := r.Create(params("April", 2025))
	require.NoError(t, err)

	jobs := r.List()
	require.Len(t, jobs, 2)
	assert.Contains(t, []string{a.ID, b.ID}, jobs[0].ID)
}

type capturingPersister struct {
	saved []domain.SyncJob
}

func (p *capturingPersister) Save(job *domain.SyncJob) error {
	p.saved = append(p.saved, *job)
	return nil
}

func TestJobsAreMirroredToPersister(t *testing.T) {
	p := &capturingPersister{}
	r := New("global", t.TempDir(), p)

	job, err := r.Create(params("March", 2025))
	require.NoError(t, err)
	r.Start(job.ID)
	r.Finish(job.ID, &domain.SyncResult{Success: true}, nil)

	require.Len(t, p.saved, 3)
	assert.Equal(t, domain.JobStatusQueued, p.saved[0].Status)
	assert.Equal(t, domain.JobStatusRunning, p.saved[1].Status)
	assert.Equal(t, domain.JobStatusDone, p.saved[2].Status)
}
