package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/mesh-intelligence/breaklinks/pkg/types"
)

// Defaults for Config fields left at zero.
const (
	DefaultMaxConcurrent = 4
	DefaultAfterLife     = time.Minute
)

// Config tunes a Manager.
type Config struct {
	// MaxConcurrent bounds the number of jobs running at once. Jobs beyond
	// the bound stay queued.
	MaxConcurrent int

	// AfterLife is how long a finished job stays retrievable by handle.
	AfterLife time.Duration
}

// Options describe a job being started.
type Options struct {
	Name     string            // Job name, e.g. "RemoveLinks".
	Category string            // Grouping label shown in logs.
	Actor    string            // User the job runs on behalf of.
	Custom   map[string]string // Free-form options passed to the job.

	// AfterLife overrides Config.AfterLife for this job when positive.
	AfterLife time.Duration
}

// Func is the body of a job. It reports progress through status; the
// manager marks the job finished when Func returns and records a panic as a
// failure.
type Func func(ctx context.Context, status *Status)

// Job is a started unit of work.
type Job struct {
	Handle  string
	Options Options

	status     *Status
	done       chan struct{}
	finishedAt time.Time
}

// Status returns a snapshot of the job's status.
func (j *Job) Status() types.JobStatus {
	return j.status.Snapshot()
}

// IsDone reports whether the job has finished.
func (j *Job) IsDone() bool {
	return j.Status().Done()
}

// Done returns a channel closed when the job's goroutine exits.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Manager starts jobs and keeps them addressable by handle.
type Manager struct {
	ctx       context.Context
	logger    *slog.Logger
	sem       *semaphore.Weighted
	afterLife time.Duration
	now       func() time.Time

	mu   sync.Mutex
	jobs map[string]*Job
	wg   sync.WaitGroup
}

// NewManager creates a Manager whose jobs run under ctx. Cancelling ctx is
// visible to job bodies; nothing else cancels a running job.
func NewManager(ctx context.Context, cfg Config, logger *slog.Logger) *Manager {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.AfterLife <= 0 {
		cfg.AfterLife = DefaultAfterLife
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		ctx:       ctx,
		logger:    logger,
		sem:       semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		afterLife: cfg.AfterLife,
		now:       time.Now,
		jobs:      make(map[string]*Job),
	}
}

// Start queues fn as a new job and returns immediately.
func (m *Manager) Start(opts Options, fn Func) *Job {
	job := &Job{
		Handle:  uuid.Must(uuid.NewV7()).String(),
		Options: opts,
		status:  newStatus(),
		done:    make(chan struct{}),
	}

	m.mu.Lock()
	m.pruneLocked()
	m.jobs[job.Handle] = job
	m.mu.Unlock()

	m.logger.Info("job queued", "job", opts.Name, "category", opts.Category, "handle", job.Handle, "actor", opts.Actor)

	m.wg.Add(1)
	go m.run(job, fn)
	return job
}

// Get returns the job with the given handle. Finished jobs past their
// after-life are no longer returned.
func (m *Manager) Get(handle string) (*Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked()
	job, ok := m.jobs[handle]
	return job, ok
}

// Wait blocks until every started job has returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) run(job *Job, fn Func) {
	defer m.wg.Done()
	defer close(job.done)
	defer func() {
		m.mu.Lock()
		job.finishedAt = m.now()
		m.mu.Unlock()
	}()
	defer job.status.Finish()

	if err := m.sem.Acquire(m.ctx, 1); err != nil {
		job.status.Fail(fmt.Sprintf("job %s not started: %v", job.Options.Name, err))
		return
	}
	defer m.sem.Release(1)

	job.status.setState(types.JobRunning)
	start := m.now()
	m.logger.Info("job started", "job", job.Options.Name, "handle", job.Handle)

	defer func() {
		if r := recover(); r != nil {
			job.status.Fail(fmt.Sprintf("panic: %v\n%s", r, debug.Stack()))
		}
		st := job.status.Snapshot()
		m.logger.Info("job finished", "job", job.Options.Name, "handle", job.Handle,
			"processed", st.Processed, "failed", st.Failed, "elapsed", m.now().Sub(start))
	}()

	fn(m.ctx, job.status)
}

// pruneLocked drops finished jobs whose after-life has elapsed.
// The caller must hold m.mu.
func (m *Manager) pruneLocked() {
	now := m.now()
	for h, job := range m.jobs {
		if job.finishedAt.IsZero() {
			continue
		}
		life := m.afterLife
		if job.Options.AfterLife > 0 {
			life = job.Options.AfterLife
		}
		if now.Sub(job.finishedAt) > life {
			delete(m.jobs, h)
		}
	}
}
