package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"intelliblog/internal/models"
	"intelliblog/internal/observability"
	"intelliblog/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupJobRepo(t *testing.T) repository.JobRepository {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Job{}, &models.JobStep{}))
	return repository.NewJobRepository(db)
}

func newTestEngine(t *testing.T, jobs repository.JobRepository) *Engine {
	retries := 2
	e := New(jobs, Options{
		Workers:   1,
		QueueSize: 16,
		Retries:   &retries,
		Backoff:   time.Millisecond,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = e.Stop(ctx)
	})
	return e
}

// waitForOutcome polls until the job leaves the running state.
func waitForOutcome(t *testing.T, jobs repository.JobRepository, jobID string) *models.Job {
	t.Helper()
	var job *models.Job
	require.Eventually(t, func() bool {
		var err error
		job, err = jobs.GetJob(context.Background(), jobID)
		return err == nil && job.Outcome != models.JobRunning
	}, 5*time.Second, 5*time.Millisecond)
	return job
}

func TestEngineRunsStepsInOrder(t *testing.T) {
	jobs := setupJobRepo(t)
	e := newTestEngine(t, jobs)

	var mu sync.Mutex
	var order []string
	record := func(name string) {
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
	}
	def := Definition{
		Steps: []Step{
			{Name: "first", Run: func(ctx context.Context, jc *Context) (any, error) {
				record("first")
				return map[string]int{"value": 1}, nil
			}},
			{Name: "second", Run: func(ctx context.Context, jc *Context) (any, error) {
				record("second")
				var prior map[string]int
				ok, err := jc.Result("first", &prior)
				if err != nil || !ok {
					return nil, errors.New("first step result missing")
				}
				return map[string]int{"value": prior["value"] + 1}, nil
			}},
		},
		Result: func(jc *Context) any {
			var last map[string]int
			_, _ = jc.Result("second", &last)
			return last
		},
	}
	require.NoError(t, e.Register("test/ordered", def))
	e.Start()

	jobID, err := e.Dispatch(context.Background(), "test/ordered", map[string]string{"hello": "world"})
	require.NoError(t, err)

	job := waitForOutcome(t, jobs, jobID)
	assert.Equal(t, models.JobSucceeded, job.Outcome)
	mu.Lock()
	assert.Equal(t, []string{"first", "second"}, order)
	mu.Unlock()
	assert.JSONEq(t, `{"value":2}`, job.Result)
}

func TestEngineRetriesThenSucceeds(t *testing.T) {
	jobs := setupJobRepo(t)
	e := newTestEngine(t, jobs)

	var attempts atomic.Int32
	def := Definition{
		Steps: []Step{
			{Name: "flaky", Run: func(ctx context.Context, jc *Context) (any, error) {
				if attempts.Add(1) < 3 {
					return nil, errors.New("transient failure")
				}
				return "ok", nil
			}},
		},
	}
	require.NoError(t, e.Register("test/flaky", def))
	e.Start()

	jobID, err := e.Dispatch(context.Background(), "test/flaky", nil)
	require.NoError(t, err)

	job := waitForOutcome(t, jobs, jobID)
	assert.Equal(t, models.JobSucceeded, job.Outcome)
	assert.Equal(t, int32(3), attempts.Load())

	step, err := jobs.GetStep(context.Background(), jobID, "flaky")
	require.NoError(t, err)
	require.NotNil(t, step)
	assert.Equal(t, models.StepSucceeded, step.Status)
	assert.Equal(t, 3, step.Attempt)
}

func TestEngineExhaustsRetryBudget(t *testing.T) {
	jobs := setupJobRepo(t)
	e := newTestEngine(t, jobs)

	var attempts atomic.Int32
	def := Definition{
		Steps: []Step{
			{Name: "doomed", Run: func(ctx context.Context, jc *Context) (any, error) {
				attempts.Add(1)
				return nil, errors.New("always failing")
			}},
		},
	}
	require.NoError(t, e.Register("test/doomed", def))
	e.Start()

	jobID, err := e.Dispatch(context.Background(), "test/doomed", nil)
	require.NoError(t, err)

	job := waitForOutcome(t, jobs, jobID)
	assert.Equal(t, models.JobFailed, job.Outcome)
	assert.Contains(t, job.LastError, "always failing")
	// 2 retries = 3 attempts total.
	assert.Equal(t, int32(3), attempts.Load())
}

func TestEngineTerminalErrorSkipsRetries(t *testing.T) {
	jobs := setupJobRepo(t)
	e := newTestEngine(t, jobs)

	var attempts atomic.Int32
	var secondRan atomic.Bool
	def := Definition{
		Steps: []Step{
			{Name: "precondition", Run: func(ctx context.Context, jc *Context) (any, error) {
				attempts.Add(1)
				return nil, Terminalf("referenced entity is gone")
			}},
			{Name: "after", Run: func(ctx context.Context, jc *Context) (any, error) {
				secondRan.Store(true)
				return nil, nil
			}},
		},
	}
	require.NoError(t, e.Register("test/terminal", def))
	e.Start()

	jobID, err := e.Dispatch(context.Background(), "test/terminal", nil)
	require.NoError(t, err)

	job := waitForOutcome(t, jobs, jobID)
	assert.Equal(t, models.JobFailed, job.Outcome)
	assert.Equal(t, int32(1), attempts.Load())
	assert.False(t, secondRan.Load())
}

func TestEngineStepRetryOverride(t *testing.T) {
	jobs := setupJobRepo(t)
	e := newTestEngine(t, jobs)

	var attempts atomic.Int32
	noRetries := 0
	def := Definition{
		Steps: []Step{
			{
				Name:    "single-shot",
				Retries: &noRetries,
				Run: func(ctx context.Context, jc *Context) (any, error) {
					attempts.Add(1)
					return nil, errors.New("fails once")
				},
			},
		},
	}
	require.NoError(t, e.Register("test/override", def))
	e.Start()

	jobID, err := e.Dispatch(context.Background(), "test/override", nil)
	require.NoError(t, err)

	job := waitForOutcome(t, jobs, jobID)
	assert.Equal(t, models.JobFailed, job.Outcome)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestEngineWhenGateSkipsStep(t *testing.T) {
	jobs := setupJobRepo(t)
	e := newTestEngine(t, jobs)

	var gatedRan atomic.Bool
	def := Definition{
		Steps: []Step{
			{Name: "probe", Run: func(ctx context.Context, jc *Context) (any, error) {
				return map[string]bool{"go": false}, nil
			}},
			{
				Name: "gated",
				When: func(jc *Context) bool {
					var probe map[string]bool
					ok, _ := jc.Result("probe", &probe)
					return ok && probe["go"]
				},
				Run: func(ctx context.Context, jc *Context) (any, error) {
					gatedRan.Store(true)
					return nil, nil
				},
			},
		},
	}
	require.NoError(t, e.Register("test/gated", def))
	e.Start()

	jobID, err := e.Dispatch(context.Background(), "test/gated", nil)
	require.NoError(t, err)

	job := waitForOutcome(t, jobs, jobID)
	assert.Equal(t, models.JobSucceeded, job.Outcome)
	assert.False(t, gatedRan.Load())

	// Skipped steps leave no checkpoint row.
	step, err := jobs.GetStep(context.Background(), jobID, "gated")
	require.NoError(t, err)
	assert.Nil(t, step)
}

func TestEngineReplaySkipsCheckpointedSteps(t *testing.T) {
	jobs := setupJobRepo(t)
	e := newTestEngine(t, jobs)

	var sideEffects, freshRuns atomic.Int32
	def := Definition{
		Steps: []Step{
			{Name: "classify", Fresh: true, Run: func(ctx context.Context, jc *Context) (any, error) {
				freshRuns.Add(1)
				return map[string]bool{"go": true}, nil
			}},
			{Name: "side-effect", Run: func(ctx context.Context, jc *Context) (any, error) {
				sideEffects.Add(1)
				return "done", nil
			}},
		},
	}
	require.NoError(t, e.Register("test/replay", def))

	// Simulate a job interrupted after its side effect was checkpointed:
	// the row is still running, the step is already recorded as succeeded.
	jobID := "11111111-2222-3333-4444-555555555555"
	require.NoError(t, jobs.CreateJob(context.Background(), &models.Job{
		ID:      jobID,
		Event:   "test/replay",
		Payload: "{}",
		Outcome: models.JobRunning,
	}))
	require.NoError(t, jobs.SaveStep(context.Background(), &models.JobStep{
		JobID:   jobID,
		Name:    "side-effect",
		Status:  models.StepSucceeded,
		Attempt: 1,
		Result:  `"done"`,
	}))

	e.Start()
	require.NoError(t, e.Requeue(context.Background()))

	job := waitForOutcome(t, jobs, jobID)
	assert.Equal(t, models.JobSucceeded, job.Outcome)
	// Fresh step re-executed, checkpointed step did not.
	assert.Equal(t, int32(1), freshRuns.Load())
	assert.Equal(t, int32(0), sideEffects.Load())
}

func TestEngineDispatchUnknownEvent(t *testing.T) {
	jobs := setupJobRepo(t)
	e := newTestEngine(t, jobs)

	_, err := e.Dispatch(context.Background(), "nobody/home", nil)
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestEngineDispatchQueueFullKeepsJobRow(t *testing.T) {
	jobs := setupJobRepo(t)
	// Queue of one, workers not started, so the second dispatch cannot fit.
	e := New(jobs, Options{Workers: 1, QueueSize: 1, Backoff: time.Millisecond})
	def := Definition{
		Steps: []Step{
			{Name: "noop", Run: func(ctx context.Context, jc *Context) (any, error) {
				return nil, nil
			}},
		},
	}
	require.NoError(t, e.Register("test/full", def))

	_, err := e.Dispatch(context.Background(), "test/full", nil)
	require.NoError(t, err)

	jobID, err := e.Dispatch(context.Background(), "test/full", nil)
	assert.ErrorIs(t, err, ErrQueueFull)
	require.NotEmpty(t, jobID)

	// The overflowed job is persisted and eligible for Requeue.
	job, getErr := jobs.GetJob(context.Background(), jobID)
	require.NoError(t, getErr)
	assert.Equal(t, models.JobRunning, job.Outcome)
}

func TestEngineDispatchAfterStop(t *testing.T) {
	jobs := setupJobRepo(t)
	e := New(jobs, Options{Workers: 1, QueueSize: 1, Backoff: time.Millisecond})
	def := Definition{
		Steps: []Step{
			{Name: "noop", Run: func(ctx context.Context, jc *Context) (any, error) {
				return nil, nil
			}},
		},
	}
	require.NoError(t, e.Register("test/stopped", def))
	e.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.Stop(ctx))

	_, err := e.Dispatch(context.Background(), "test/stopped", nil)
	assert.ErrorIs(t, err, ErrStopped)
}

func TestEngineRegisterDuplicate(t *testing.T) {
	jobs := setupJobRepo(t)
	e := newTestEngine(t, jobs)

	def := Definition{
		Steps: []Step{
			{Name: "noop", Run: func(ctx context.Context, jc *Context) (any, error) {
				return nil, nil
			}},
		},
	}
	require.NoError(t, e.Register("test/dup", def))
	assert.Error(t, e.Register("test/dup", def))
}

func TestEngineZeroRetriesOption(t *testing.T) {
	jobs := setupJobRepo(t)
	noRetries := 0
	e := New(jobs, Options{
		Workers:   1,
		QueueSize: 16,
		Retries:   &noRetries,
		Backoff:   time.Millisecond,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = e.Stop(ctx)
	})

	var attempts atomic.Int32
	def := Definition{
		Steps: []Step{
			{Name: "flaky", Run: func(ctx context.Context, jc *Context) (any, error) {
				attempts.Add(1)
				return nil, errors.New("transient")
			}},
		},
	}
	require.NoError(t, e.Register("test/no-retries", def))
	e.Start()

	jobID, err := e.Dispatch(context.Background(), "test/no-retries", nil)
	require.NoError(t, err)

	job := waitForOutcome(t, jobs, jobID)
	assert.Equal(t, models.JobFailed, job.Outcome)
	// Retries set to zero means exactly one attempt, not the default budget.
	assert.Equal(t, int32(1), attempts.Load())
}

// logSink is a concurrency-safe writer for capturing worker goroutine logs.
type logSink struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *logSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *logSink) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func captureGlobalLog(t *testing.T) *logSink {
	t.Helper()
	sink := &logSink{}
	prev := observability.GlobalLogger
	observability.GlobalLogger = &observability.Logger{
		Logger: slog.New(slog.NewJSONHandler(sink, nil)),
	}
	t.Cleanup(func() { observability.GlobalLogger = prev })
	return sink
}

func TestEngineLogsAsyncOperationLifecycle(t *testing.T) {
	sink := captureGlobalLog(t)
	jobs := setupJobRepo(t)
	e := newTestEngine(t, jobs)

	ok := Definition{
		Steps: []Step{
			{Name: "noop", Run: func(ctx context.Context, jc *Context) (any, error) {
				return nil, nil
			}},
		},
	}
	broken := Definition{
		Steps: []Step{
			{Name: "explode", Run: func(ctx context.Context, jc *Context) (any, error) {
				return nil, Terminalf("bad input")
			}},
		},
	}
	require.NoError(t, e.Register("test/logged", ok))
	require.NoError(t, e.Register("test/logged-failure", broken))
	e.Start()

	okID, err := e.Dispatch(context.Background(), "test/logged", nil)
	require.NoError(t, err)
	failID, err := e.Dispatch(context.Background(), "test/logged-failure", nil)
	require.NoError(t, err)

	waitForOutcome(t, jobs, okID)
	waitForOutcome(t, jobs, failID)

	// Log lines land after the outcome row is persisted.
	require.Eventually(t, func() bool {
		out := sink.String()
		return strings.Contains(out, "async_start") &&
			strings.Contains(out, "async_end") &&
			strings.Contains(out, "async_error")
	}, 2*time.Second, 5*time.Millisecond)

	out := sink.String()
	assert.Contains(t, out, okID)
	assert.Contains(t, out, failID)
	assert.Contains(t, out, `"operation":"test/logged"`)
	assert.Contains(t, out, `"operation":"test/logged-failure"`)
	assert.Contains(t, out, "bad input")
}

func TestContextPayloadRoundTrip(t *testing.T) {
	payload, err := json.Marshal(map[string]any{"commentId": 42, "commentText": "hi"})
	require.NoError(t, err)

	jc := newContext("job-1", "test/event", payload)
	var decoded struct {
		CommentID   uint   `json:"commentId"`
		CommentText string `json:"commentText"`
	}
	require.NoError(t, jc.Payload(&decoded))
	assert.Equal(t, uint(42), decoded.CommentID)
	assert.Equal(t, "hi", decoded.CommentText)

	// Missing results report absence, not an error.
	ok, err := jc.Result("never-ran", &decoded)
	require.NoError(t, err)
	assert.False(t, ok)
}
