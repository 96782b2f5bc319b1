package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/memoir/internal/dispatch"
)

// Config configures a Manager.
type Config struct {
	Sender   Sender
	Logger   *slog.Logger
	OnFinish FinishFunc // Optional
}

// Manager is the process-wide job registry. Background dispatches run on the
// Manager's own context, so a job outlives the request that started it and
// its outcome is always recorded. Dismiss is the only way a job is removed.
type Manager struct {
	mu   sync.RWMutex
	jobs map[string]Job

	sender   Sender
	logger   *slog.Logger
	onFinish FinishFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a new job registry.
func NewManager(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		jobs:     make(map[string]Job),
		sender:   cfg.Sender,
		logger:   logger,
		onFinish: cfg.OnFinish,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start registers a job in the generating state and sends req in the
// background. It returns immediately with the new job id. A second Start for
// the same subject is not refused; see IsGeneratingFor.
func (m *Manager) Start(subjectID, title, prompt string, req *dispatch.Request) string {
	job := Job{
		ID:        uuid.NewString(),
		SubjectID: subjectID,
		Title:     title,
		Prompt:    prompt,
		Status:    StatusGenerating,
		CreatedAt: time.Now().UTC(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	m.logger.Info("job started", "job_id", job.ID, "subject_id", subjectID)

	m.wg.Add(1)
	go m.run(job.ID, req)
	return job.ID
}

func (m *Manager) run(id string, req *dispatch.Request) {
	defer m.wg.Done()

	res, sendErr := m.sender.Send(m.ctx, req)
	var result *Result
	if sendErr == nil {
		result, sendErr = resultFrom(res)
	}

	var (
		job Job
		err error
	)
	if sendErr != nil {
		job, err = m.finish(id, failed(sendErr))
	} else {
		job, err = m.finish(id, completed(*result))
	}
	if err != nil {
		// Dismissed while in flight.
		m.logger.Debug("job outcome not applied", "job_id", id, "error", err)
		return
	}

	if m.onFinish != nil {
		m.onFinish(Outcome{Job: job, Request: req, Result: res, Err: sendErr})
	}
}

// Complete applies the completed transition to job id.
func (m *Manager) Complete(id string, result Result) error {
	_, err := m.finish(id, completed(result))
	return err
}

// Fail applies the failed transition to job id.
func (m *Manager) Fail(id string, cause error) error {
	_, err := m.finish(id, failed(cause))
	return err
}

func completed(result Result) func(*Job) {
	return func(j *Job) {
		j.Status = StatusCompleted
		j.Result = &result
	}
}

func failed(cause error) func(*Job) {
	return func(j *Job) {
		j.Status = StatusFailed
		j.Error = cause.Error()
	}
}

// finish applies exactly one terminal transition, matched by id.
func (m *Manager) finish(id string, apply func(*Job)) (Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if job.Finished() {
		return Job{}, fmt.Errorf("%w: %s", ErrFinished, id)
	}

	now := time.Now().UTC()
	apply(&job)
	job.CompletedAt = &now
	m.jobs[id] = job

	m.logger.Info("job finished", "job_id", id, "status", job.Status, "elapsed", now.Sub(job.CreatedAt))
	return job, nil
}

// Dismiss removes job id from the registry. A job still generating may be
// dismissed; its eventual outcome is then discarded.
func (m *Manager) Dismiss(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(m.jobs, id)
	return nil
}

// IsGeneratingFor reports whether subjectID has a job in flight.
// Advisory only.
func (m *Manager) IsGeneratingFor(subjectID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, job := range m.jobs {
		if job.SubjectID == subjectID && job.Status == StatusGenerating {
			return true
		}
	}
	return false
}

// Get returns a copy of job id.
func (m *Manager) Get(id string) (Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return job, nil
}

// List returns all jobs, newest first.
func (m *Manager) List() []Job {
	return m.filter(func(Job) bool { return true })
}

// ListFor returns the jobs for subjectID, newest first.
func (m *Manager) ListFor(subjectID string) []Job {
	return m.filter(func(j Job) bool { return j.SubjectID == subjectID })
}

func (m *Manager) filter(keep func(Job) bool) []Job {
	m.mu.RLock()
	out := make([]Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		if keep(job) {
			out = append(out, job)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, k int) bool {
		return out[i].CreatedAt.After(out[k].CreatedAt)
	})
	return out
}

// Shutdown cancels in-flight dispatches and waits for their outcomes to be
// recorded, or for ctx to expire.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.cancel()
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
