package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/newbienorbie/unifi-scraper/internal/domain"
)

var ErrJobNotFound = errors.New("job not found")

// JobsRepo persists the sync job history.
type JobsRepo struct {
	db *gorm.DB
}

func NewJobsRepo(db *gorm.DB) *JobsRepo {
	return &JobsRepo{db: db}
}

// Save upserts one job record by ID.
func (r *JobsRepo) Save(job *domain.SyncJob) error {
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(job).Error
	if err != nil {
		return fmt.Errorf("failed to save job %s: %w", job.ID, err)
	}
	return nil
}

// Get returns one job by ID.
func (r *JobsRepo) Get(id string) (*domain.SyncJob, error) {
	var job domain.SyncJob
	err := r.db.First(&job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", id, err)
	}
	return &job, nil
}

// Recent returns the newest jobs first, up to limit.
func (r *JobsRepo) Recent(limit int) ([]domain.SyncJob, error) {
	if limit <= 0 {
		limit = 50
	}
	var jobs []domain.SyncJob
	err := r.db.Order("created_at DESC").Limit(limit).Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}
