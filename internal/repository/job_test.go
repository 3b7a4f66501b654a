package repository

import (
	"context"
	"testing"

	"intelliblog/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestJob(t *testing.T, repo JobRepository, id, event string) {
	t.Helper()
	require.NoError(t, repo.CreateJob(context.Background(), &models.Job{
		ID:      id,
		Event:   event,
		Payload: `{"x":1}`,
		Outcome: models.JobRunning,
	}))
}

func TestJobRepository_Lifecycle(t *testing.T) {
	db := setupTestDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()

	createTestJob(t, repo, "job-1", "comment/moderate")

	job, err := repo.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobRunning, job.Outcome)
	assert.Equal(t, "comment/moderate", job.Event)

	require.NoError(t, repo.FinishJob(ctx, "job-1", models.JobSucceeded, `{"ok":true}`, ""))

	job, err = repo.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobSucceeded, job.Outcome)
	assert.JSONEq(t, `{"ok":true}`, job.Result)
}

func TestJobRepository_GetJobNotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewJobRepository(db)

	_, err := repo.GetJob(context.Background(), "missing")
	assert.True(t, models.IsNotFound(err))
}

func TestJobRepository_SaveStepUpsertsByJobAndName(t *testing.T) {
	db := setupTestDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()

	createTestJob(t, repo, "job-1", "comment/moderate")

	require.NoError(t, repo.SaveStep(ctx, &models.JobStep{
		JobID:     "job-1",
		Name:      "classify",
		Status:    models.StepFailed,
		Attempt:   1,
		LastError: "transient",
	}))
	require.NoError(t, repo.SaveStep(ctx, &models.JobStep{
		JobID:   "job-1",
		Name:    "classify",
		Status:  models.StepSucceeded,
		Attempt: 2,
		Result:  `{"level":"none"}`,
	}))

	step, err := repo.GetStep(ctx, "job-1", "classify")
	require.NoError(t, err)
	require.NotNil(t, step)
	assert.Equal(t, models.StepSucceeded, step.Status)
	assert.Equal(t, 2, step.Attempt)

	// Still exactly one row for this (job, step) pair.
	var count int64
	require.NoError(t, db.Model(&models.JobStep{}).
		Where("job_id = ? AND name = ?", "job-1", "classify").
		Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestJobRepository_GetStepAbsent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewJobRepository(db)

	step, err := repo.GetStep(context.Background(), "job-1", "never-ran")
	require.NoError(t, err)
	assert.Nil(t, step)
}

func TestJobRepository_ListIncomplete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()

	createTestJob(t, repo, "job-old", "comment/moderate")
	createTestJob(t, repo, "job-new", "post/created")
	createTestJob(t, repo, "job-done", "comment/moderate")
	require.NoError(t, repo.FinishJob(ctx, "job-done", models.JobFailed, "", "boom"))

	incomplete, err := repo.ListIncomplete(ctx)
	require.NoError(t, err)
	require.Len(t, incomplete, 2)
	for _, job := range incomplete {
		assert.Equal(t, models.JobRunning, job.Outcome)
	}
}

func TestJobRepository_GetJobPreloadsSteps(t *testing.T) {
	db := setupTestDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()

	createTestJob(t, repo, "job-1", "comment/moderate")
	require.NoError(t, repo.SaveStep(ctx, &models.JobStep{
		JobID: "job-1", Name: "classify", Status: models.StepSucceeded, Attempt: 1,
	}))
	require.NoError(t, repo.SaveStep(ctx, &models.JobStep{
		JobID: "job-1", Name: "get-comment", Status: models.StepSucceeded, Attempt: 1,
	}))

	job, err := repo.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Len(t, job.Steps, 2)
}
