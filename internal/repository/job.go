package repository

import (
	"context"

	"intelliblog/internal/models"

	"gorm.io/gorm"
)

// JobRepository persists job engine checkpoints: one row per job plus one row
// per named step. Step rows are upserted by (job_id, name) so a retried step
// keeps a single checkpoint with its attempt count.
type JobRepository interface {
	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id string) (*models.Job, error)
	FinishJob(ctx context.Context, id, outcome, result, lastError string) error
	GetStep(ctx context.Context, jobID, name string) (*models.JobStep, error)
	SaveStep(ctx context.Context, step *models.JobStep) error
	// ListIncomplete returns jobs still marked running, oldest first. Used to
	// requeue work that was in flight when the process stopped.
	ListIncomplete(ctx context.Context) ([]*models.Job, error)
}

type jobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository
func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

func (r *jobRepository) CreateJob(ctx context.Context, job *models.Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *jobRepository) GetJob(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	if err := r.db.WithContext(ctx).Preload("Steps").Where("id = ?", id).First(&job).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, models.NewNotFoundError("Job", id)
		}
		return nil, err
	}
	return &job, nil
}

func (r *jobRepository) FinishJob(ctx context.Context, id, outcome, result, lastError string) error {
	return r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"outcome":    outcome,
			"result":     result,
			"last_error": lastError,
		}).Error
}

func (r *jobRepository) GetStep(ctx context.Context, jobID, name string) (*models.JobStep, error) {
	var step models.JobStep
	err := r.db.WithContext(ctx).
		Where("job_id = ? AND name = ?", jobID, name).
		First(&step).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &step, nil
}

func (r *jobRepository) SaveStep(ctx context.Context, step *models.JobStep) error {
	if step.ID != 0 {
		return r.db.WithContext(ctx).Save(step).Error
	}
	existing, err := r.GetStep(ctx, step.JobID, step.Name)
	if err != nil {
		return err
	}
	if existing != nil {
		step.ID = existing.ID
		step.CreatedAt = existing.CreatedAt
		return r.db.WithContext(ctx).Save(step).Error
	}
	return r.db.WithContext(ctx).Create(step).Error
}

func (r *jobRepository) ListIncomplete(ctx context.Context) ([]*models.Job, error) {
	var jobs []*models.Job
	err := r.db.WithContext(ctx).
		Where("outcome = ?", models.JobRunning).
		Order("created_at asc").
		Find(&jobs).Error
	return jobs, err
}
