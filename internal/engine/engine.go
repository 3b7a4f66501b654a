package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"intelliblog/internal/models"
	"intelliblog/internal/observability"
	"intelliblog/internal/repository"

	"github.com/google/uuid"
)

var (
	// ErrUnknownEvent is returned by Dispatch for an event with no
	// registered workflow.
	ErrUnknownEvent = errors.New("no workflow registered for event")

	// ErrQueueFull is returned by Dispatch when the job queue cannot accept
	// more work. Callers on the write path log it and move on; it never
	// fails the originating request.
	ErrQueueFull = errors.New("job queue is full")

	// ErrStopped is returned by Dispatch after Stop.
	ErrStopped = errors.New("engine is stopped")
)

// Options configure an Engine.
type Options struct {
	// Workers is the number of concurrent job executors. Defaults to 4.
	Workers int
	// QueueSize is the dispatch buffer. Defaults to 256.
	QueueSize int
	// Retries is the default per-step retry budget. Nil means 2 (so up to
	// 3 attempts per step); a pointer to 0 disables retries.
	Retries *int
	// Backoff is the base delay between attempts of the same step; attempt
	// N waits N*Backoff. Defaults to 1s.
	Backoff time.Duration
	// Logger defaults to the global structured logger.
	Logger *slog.Logger
}

type queuedJob struct {
	id      string
	event   string
	payload json.RawMessage
}

// Engine owns the registry of event -> workflow definition and the worker
// pool executing dispatched jobs. There is no process-wide instance: anything
// that dispatches events holds a reference to the engine.
type Engine struct {
	jobs    repository.JobRepository
	logger  *slog.Logger
	workers int
	retries int
	backoff time.Duration

	mu       sync.RWMutex
	registry map[string]Definition
	stopped  bool

	queue chan queuedJob
	wg    sync.WaitGroup
}

// New creates an Engine backed by the given job repository.
func New(jobs repository.JobRepository, opts Options) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	retries := 2
	if opts.Retries != nil {
		retries = *opts.Retries
		if retries < 0 {
			retries = 0
		}
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = observability.GlobalLogger.Logger
	}

	return &Engine{
		jobs:     jobs,
		logger:   opts.Logger,
		workers:  opts.Workers,
		retries:  retries,
		backoff:  opts.Backoff,
		registry: make(map[string]Definition),
		queue:    make(chan queuedJob, opts.QueueSize),
	}
}

// Register binds an event name to a workflow definition. Registering the same
// event twice is a programming error.
func (e *Engine) Register(event string, def Definition) error {
	if event == "" {
		return errors.New("event name is required")
	}
	if len(def.Steps) == 0 {
		return fmt.Errorf("workflow for %q has no steps", event)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.registry[event]; exists {
		return fmt.Errorf("workflow already registered for %q", event)
	}
	e.registry[event] = def
	return nil
}

// Start launches the worker pool.
func (e *Engine) Start() {
	for i := 0; i < e.workers; i++ {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			for item := range e.queue {
				observability.JobQueueDepth.Dec()
				// Jobs run detached from the request that dispatched them.
				e.runJob(context.Background(), item)
			}
		}()
	}
}

// Stop closes the queue and waits for in-flight jobs, bounded by ctx.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return nil
	}
	e.stopped = true
	close(e.queue)
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispatch records a job for the event and enqueues it, returning the job id
// immediately; the caller never waits on workflow completion. The returned
// error is advisory: write-path callers log it and proceed.
func (e *Engine) Dispatch(ctx context.Context, event string, payload any) (string, error) {
	e.mu.RLock()
	_, known := e.registry[event]
	stopped := e.stopped
	e.mu.RUnlock()

	if !known {
		return "", fmt.Errorf("%w: %s", ErrUnknownEvent, event)
	}
	if stopped {
		return "", ErrStopped
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode payload for %s: %w", event, err)
	}

	job := &models.Job{
		ID:      uuid.NewString(),
		Event:   event,
		Payload: string(raw),
		Outcome: models.JobRunning,
	}
	if err := e.jobs.CreateJob(ctx, job); err != nil {
		return "", fmt.Errorf("record job for %s: %w", event, err)
	}

	if err := e.enqueue(queuedJob{id: job.ID, event: event, payload: raw}); err != nil {
		// The job row stays behind as evidence; Requeue picks it up later.
		return job.ID, err
	}

	e.logger.Info("job dispatched",
		slog.String("job_id", job.ID),
		slog.String("event", event),
	)
	return job.ID, nil
}

// Requeue re-enqueues jobs that were left running, e.g. in flight when the
// previous process stopped. Checkpointed steps are skipped on re-execution.
func (e *Engine) Requeue(ctx context.Context) error {
	incomplete, err := e.jobs.ListIncomplete(ctx)
	if err != nil {
		return fmt.Errorf("list incomplete jobs: %w", err)
	}
	for _, job := range incomplete {
		item := queuedJob{id: job.ID, event: job.Event, payload: json.RawMessage(job.Payload)}
		if err := e.enqueue(item); err != nil {
			return err
		}
		e.logger.Info("job requeued",
			slog.String("job_id", job.ID),
			slog.String("event", job.Event),
		)
	}
	return nil
}

func (e *Engine) enqueue(item queuedJob) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.stopped {
		return ErrStopped
	}
	select {
	case e.queue <- item:
		observability.JobQueueDepth.Inc()
		return nil
	default:
		return ErrQueueFull
	}
}

// runJob executes every step of the job's workflow in order. A step failure
// is retried up to its budget unless terminal; terminal failures and
// exhausted budgets fail the whole job.
func (e *Engine) runJob(ctx context.Context, item queuedJob) {
	observability.LogAsyncOperationStart(ctx, item.event, map[string]interface{}{
		"job_id": item.id,
	})

	e.mu.RLock()
	def, ok := e.registry[item.event]
	e.mu.RUnlock()
	if !ok {
		// Registry changed between dispatch and execution; nothing to run.
		e.finish(ctx, item, models.JobFailed, "", ErrUnknownEvent.Error())
		return
	}

	jc := newContext(item.id, item.event, item.payload)

	for _, step := range def.Steps {
		if step.When != nil && !step.When(jc) {
			continue
		}

		if !step.Fresh {
			replayed, err := e.loadCheckpoint(ctx, jc, step.Name)
			if err != nil {
				e.finish(ctx, item, models.JobFailed, "", err.Error())
				return
			}
			if replayed {
				continue
			}
		}

		if failed := e.runStep(ctx, jc, item, step); failed {
			return
		}
	}

	var result any
	if def.Result != nil {
		result = def.Result(jc)
	}
	encoded, err := json.Marshal(result)
	if err != nil {
		e.finish(ctx, item, models.JobFailed, "", fmt.Sprintf("encode result: %v", err))
		return
	}
	e.finish(ctx, item, models.JobSucceeded, string(encoded), "")
}

// loadCheckpoint replays a previously succeeded step's result into the
// context. Returns true when the step is already done and must not re-run.
func (e *Engine) loadCheckpoint(ctx context.Context, jc *Context, name string) (bool, error) {
	step, err := e.jobs.GetStep(ctx, jc.JobID, name)
	if err != nil {
		return false, fmt.Errorf("load checkpoint for step %q: %w", name, err)
	}
	if step == nil || step.Status != models.StepSucceeded {
		return false, nil
	}
	jc.setResult(name, json.RawMessage(step.Result))
	e.logger.Info("step replayed from checkpoint",
		slog.String("job_id", jc.JobID),
		slog.String("step", name),
	)
	return true, nil
}

// runStep attempts one step with its retry budget. Returns true when the job
// has been failed and execution must not continue.
func (e *Engine) runStep(ctx context.Context, jc *Context, item queuedJob, step Step) bool {
	budget := e.retries
	if step.Retries != nil {
		budget = *step.Retries
	}
	maxAttempts := budget + 1

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := step.Run(ctx, jc)
		if err == nil {
			raw, mErr := json.Marshal(result)
			if mErr != nil {
				e.failStep(ctx, item, step.Name, attempt, fmt.Errorf("encode step result: %w", mErr))
				return true
			}
			jc.setResult(step.Name, raw)
			if !step.Fresh {
				e.checkpoint(ctx, item, step.Name, attempt, raw)
			}
			return false
		}

		lastErr = err
		if IsTerminal(err) {
			observability.LogAsyncOperationError(ctx, item.event, err, map[string]interface{}{
				"job_id":  item.id,
				"step":    step.Name,
				"attempt": attempt,
			})
			e.failStep(ctx, item, step.Name, attempt, err)
			return true
		}

		e.logger.Warn("step failed, will retry",
			slog.String("job_id", item.id),
			slog.String("event", item.event),
			slog.String("step", step.Name),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", maxAttempts),
			slog.String("error", err.Error()),
		)
		if attempt < maxAttempts {
			observability.JobStepRetries.WithLabelValues(item.event, step.Name).Inc()
			e.sleep(ctx, time.Duration(attempt)*e.backoff)
		}
	}

	e.failStep(ctx, item, step.Name, maxAttempts, fmt.Errorf("retry budget exhausted: %w", lastErr))
	return true
}

func (e *Engine) checkpoint(ctx context.Context, item queuedJob, name string, attempt int, result json.RawMessage) {
	err := e.jobs.SaveStep(ctx, &models.JobStep{
		JobID:   item.id,
		Name:    name,
		Status:  models.StepSucceeded,
		Attempt: attempt,
		Result:  string(result),
	})
	if err != nil {
		// The step's work is done; a lost checkpoint only means a replay
		// would re-run it, which steps must tolerate anyway.
		e.logger.Error("failed to persist step checkpoint",
			slog.String("job_id", item.id),
			slog.String("step", name),
			slog.String("error", err.Error()),
		)
	}
}

func (e *Engine) failStep(ctx context.Context, item queuedJob, name string, attempt int, stepErr error) {
	if err := e.jobs.SaveStep(ctx, &models.JobStep{
		JobID:     item.id,
		Name:      name,
		Status:    models.StepFailed,
		Attempt:   attempt,
		LastError: stepErr.Error(),
	}); err != nil {
		e.logger.Error("failed to persist step failure",
			slog.String("job_id", item.id),
			slog.String("step", name),
			slog.String("error", err.Error()),
		)
	}
	e.finish(ctx, item, models.JobFailed, "", stepErr.Error())
}

func (e *Engine) finish(ctx context.Context, item queuedJob, outcome, result, lastError string) {
	if err := e.jobs.FinishJob(ctx, item.id, outcome, result, lastError); err != nil {
		e.logger.Error("failed to persist job outcome",
			slog.String("job_id", item.id),
			slog.String("outcome", outcome),
			slog.String("error", err.Error()),
		)
	}
	observability.JobsTotal.WithLabelValues(item.event, outcome).Inc()

	if outcome == models.JobFailed {
		observability.LogAsyncOperationError(ctx, item.event, errors.New(lastError), map[string]interface{}{
			"job_id": item.id,
		})
		return
	}
	observability.LogAsyncOperationEnd(ctx, item.event, map[string]interface{}{
		"job_id": item.id,
	})
}

func (e *Engine) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
