// Package registry tracks sync jobs and enforces the single-runner
// rule. The in-memory map is the source of truth; the database mirror
// only serves history across restarts.
package registry

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/newbienorbie/unifi-scraper/internal/domain"
	"github.com/newbienorbie/unifi-scraper/internal/logger"
)

var (
	// ErrBusy means another job holds the lock for the requested
	// scope. Callers surface this as HTTP 409.
	ErrBusy = errors.New("a sync job is already running")

	ErrNotFound = errors.New("job not found")
)

// Persister mirrors job state to durable storage. Nil-safe: a
// registry without a persister is purely in-memory.
type Persister interface {
	Save(job *domain.SyncJob) error
}

// Registry is the mutex-guarded job table.
type Registry struct {
	mu           sync.Mutex
	jobs         map[string]*domain.SyncJob
	lockScope    string // "global" or "month"
	globalHolder string
	monthHolders map[string]string
	persist      Persister
	logDir       string
	now          func() time.Time
}

func New(lockScope, logDir string, persist Persister) *Registry {
	return &Registry{
		jobs:         make(map[string]*domain.SyncJob),
		lockScope:    lockScope,
		monthHolders: make(map[string]string),
		persist:      persist,
		logDir:       logDir,
		now:          time.Now,
	}
}

// Create registers a queued job, acquiring the run lock for its
// scope. Returns ErrBusy without blocking when the lock is held.
func (r *Registry) Create(params domain.JobParams) (domain.SyncJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.lockScope == "month" {
		if holder, held := r.monthHolders[params.MonthKey()]; held {
			return domain.SyncJob{}, fmt.Errorf("%w (job %s, month %s)", ErrBusy, holder, params.MonthKey())
		}
	} else if r.globalHolder != "" {
		return domain.SyncJob{}, fmt.Errorf("%w (job %s)", ErrBusy, r.globalHolder)
	}

	now := r.now()
	job := &domain.SyncJob{
		ID:        uuid.NewString(),
		Status:    domain.JobStatusQueued,
		Params:    params,
		CreatedAt: now,
		UpdatedAt: now,
	}
	job.LogPath = filepath.Join(r.logDir, "job_"+job.ID+".log")

	if r.lockScope == "month" {
		r.monthHolders[params.MonthKey()] = job.ID
	} else {
		r.globalHolder = job.ID
	}
	r.jobs[job.ID] = job
	r.mirror(job)
	return *job, nil
}

// Start marks a job running.
func (r *Registry) Start(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return
	}
	now := r.now()
	job.Status = domain.JobStatusRunning
	job.StartedAt = &now
	job.UpdatedAt = now
	r.mirror(job)
}

// Finish records the outcome and releases the job's lock.
func (r *Registry) Finish(id string, result *domain.SyncResult, runErr error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return
	}
	now := r.now()
	job.CompletedAt = &now
	job.UpdatedAt = now
	job.Result = result
	if runErr != nil {
		job.Status = domain.JobStatusError
		job.Error = runErr.Error()
	} else {
		job.Status = domain.JobStatusDone
	}
	r.release(job)
	r.mirror(job)
}

func (r *Registry) release(job *domain.SyncJob) {
	if r.lockScope == "month" {
		key := job.Params.MonthKey()
		if r.monthHolders[key] == job.ID {
			delete(r.monthHolders, key)
		}
		return
	}
	if r.globalHolder == job.ID {
		r.globalHolder = ""
	}
}

// Get returns a copy of one job.
func (r *Registry) Get(id string) (domain.SyncJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return domain.SyncJob{}, ErrNotFound
	}
	return *job, nil
}

// List returns copies of all known jobs, newest first.
func (r *Registry) List() []domain.SyncJob {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.SyncJob, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, *job)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Active reports whether any job currently holds a lock.
func (r *Registry) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.globalHolder != "" || len(r.monthHolders) > 0
}

func (r *Registry) mirror(job *domain.SyncJob) {
	if r.persist == nil {
		return
	}
	snapshot := *job
	if err := r.persist.Save(&snapshot); err != nil {
		logger.Warn("Failed to persist job %s: %v", job.ID, err)
	}
}
