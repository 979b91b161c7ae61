package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/lexdrive/ratehub/app/models"
)

// importJobRepository implements the ImportJobRepository interface
type importJobRepository struct {
	db *gorm.DB
}

// NewImportJobRepository creates a new import job queue repository instance
func NewImportJobRepository(db *gorm.DB) ImportJobRepository {
	return &importJobRepository{db: db}
}

// Enqueue adds a pending job to the queue table
func (r *importJobRepository) Enqueue(ctx context.Context, job *models.ImportJob) error {
	job.Status = models.JobStatusPending
	return r.db.WithContext(ctx).Create(job).Error
}

// ClaimNext claims the oldest pending job. The conditional update makes the
// claim safe against concurrent workers; gorm.ErrRecordNotFound is returned
// when the queue is empty.
func (r *importJobRepository) ClaimNext(ctx context.Context) (*models.ImportJob, error) {
	var job models.ImportJob
	err := r.db.WithContext(ctx).
		Where("status = ?", models.JobStatusPending).
		Order("created_at ASC").
		First(&job).Error
	if err != nil {
		return nil, err
	}

	now := time.Now()
	claim := r.db.WithContext(ctx).Model(&models.ImportJob{}).
		Where("id = ? AND status = ?", job.ID, models.JobStatusPending).
		Updates(map[string]interface{}{"status": models.JobStatusRunning, "started_at": now})
	if claim.Error != nil {
		return nil, claim.Error
	}
	if claim.RowsAffected == 0 {
		// lost the race to another worker
		return nil, gorm.ErrRecordNotFound
	}

	job.Status = models.JobStatusRunning
	job.StartedAt = &now
	return &job, nil
}

// Finish records the terminal status of a claimed job
func (r *importJobRepository) Finish(ctx context.Context, job *models.ImportJob) error {
	now := time.Now()
	job.FinishedAt = &now
	return r.db.WithContext(ctx).Save(job).Error
}

// List retrieves queue entries, newest first, optionally filtered by status
func (r *importJobRepository) List(ctx context.Context, status string, limit int) ([]models.ImportJob, error) {
	query := r.db.WithContext(ctx).Model(&models.ImportJob{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var jobs []models.ImportJob
	err := query.Order("created_at DESC").Limit(limit).Find(&jobs).Error
	return jobs, err
}
