// Package storage keeps background download jobs in memory and removes them,
// together with their artifacts, once they expire.
package storage

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"vidflow/internal/config"
	"vidflow/internal/entity"
	"vidflow/internal/errs"
	"vidflow/internal/observability"
)

// Storer defines the interface for storage operations.
type Storer interface {
	SetJob(ctx context.Context, job *entity.Job) error
	// GetJobByID returns a copy of the job, or nil.
	GetJobByID(ctx context.Context, id string) *entity.Job
	// GetJobs returns copies of every job, newest first.
	GetJobs(ctx context.Context) ([]*entity.Job, error)
	// UpdateJob applies fn to the stored job under the storage lock.
	UpdateJob(ctx context.Context, id string, fn func(job *entity.Job)) error

	// CancelJob cancels a job by its ID.
	CancelJob(ctx context.Context, jobID string) error

	// RegisterCancelFunc stores a cancel function for a job.
	RegisterCancelFunc(jobID string, cancelFunc context.CancelFunc)

	// UnregisterCancelFunc removes the cancel function for a job.
	UnregisterCancelFunc(jobID string)

	CleanupExpiredJobs(ctx context.Context, interval time.Duration)
}

type storage struct {
	log     *slog.Logger
	cfg     *config.Config
	metrics *observability.Metrics

	mu   sync.RWMutex
	jobs map[string]*entity.Job // job UUID : job

	cancelMu    sync.RWMutex
	cancelFuncs map[string]context.CancelFunc // job UUID : cancel func
}

// New creates a new in-memory storage instance and starts the expiry sweep.
func New(ctx context.Context, log *slog.Logger, cfg *config.Config, metrics *observability.Metrics) Storer {
	storage := &storage{
		log:         log.With(slog.String("package", "storage")),
		cfg:         cfg,
		metrics:     metrics,
		jobs:        make(map[string]*entity.Job),
		cancelFuncs: make(map[string]context.CancelFunc),
	}

	go storage.CleanupExpiredJobs(ctx, cfg.Storage.CleanupInterval)

	return storage
}

func (stg *storage) SetJob(ctx context.Context, job *entity.Job) error {
	if job == nil || job.UUID == "" {
		stg.log.ErrorContext(ctx, "set job: nil job")

		return errs.ErrJobNil
	}

	stg.mu.Lock()
	defer stg.mu.Unlock()

	stg.jobs[job.UUID] = job.Clone()
	stg.metrics.SetStoredJobs(len(stg.jobs))

	return nil
}

func (stg *storage) GetJobByID(_ context.Context, id string) *entity.Job {
	stg.mu.RLock()
	defer stg.mu.RUnlock()

	job := stg.jobs[id]
	if job == nil {
		return nil
	}

	return job.Clone()
}

func (stg *storage) GetJobs(_ context.Context) ([]*entity.Job, error) {
	stg.mu.RLock()
	defer stg.mu.RUnlock()

	if len(stg.jobs) == 0 {
		return nil, errs.ErrNoJobs
	}

	jobs := make([]*entity.Job, 0, len(stg.jobs))
	for _, job := range stg.jobs {
		jobs = append(jobs, job.Clone())
	}

	// newest first
	slices.SortFunc(jobs, func(a, b *entity.Job) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	return jobs, nil
}

func (stg *storage) UpdateJob(ctx context.Context, id string, fn func(job *entity.Job)) error {
	stg.mu.Lock()
	defer stg.mu.Unlock()

	job := stg.jobs[id]
	if job == nil {
		return errs.ErrJobNotFound
	}

	fn(job)
	job.UpdatedAt = time.Now()

	stg.log.DebugContext(ctx, "job updated", slog.Any("job", job))

	return nil
}

// CancelJob cancels a job by its ID by calling its cancel function. A queued
// job has no cancel function yet and is marked cancelled so workers skip it.
func (stg *storage) CancelJob(ctx context.Context, jobID string) error {
	stg.mu.Lock()

	job := stg.jobs[jobID]
	if job == nil {
		stg.mu.Unlock()

		return errs.ErrJobNotFound
	}

	if !job.Active() {
		stg.mu.Unlock()

		return errs.ErrJobNotCancellable
	}

	job.Status = entity.JobStatusCancelled
	job.UpdatedAt = time.Now()

	stg.mu.Unlock()

	stg.cancelMu.RLock()
	cancelFunc := stg.cancelFuncs[jobID]
	stg.cancelMu.RUnlock()

	if cancelFunc != nil {
		cancelFunc()
	}

	stg.log.InfoContext(ctx, "job cancelled", slog.String("job_id", jobID))

	return nil
}

// RegisterCancelFunc stores a cancel function for a job.
func (stg *storage) RegisterCancelFunc(jobID string, cancelFunc context.CancelFunc) {
	stg.cancelMu.Lock()
	defer stg.cancelMu.Unlock()

	stg.cancelFuncs[jobID] = cancelFunc
}

// UnregisterCancelFunc removes the cancel function for a job.
func (stg *storage) UnregisterCancelFunc(jobID string) {
	stg.cancelMu.Lock()
	defer stg.cancelMu.Unlock()

	delete(stg.cancelFuncs, jobID)
}
