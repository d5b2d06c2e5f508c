// Package service runs background download jobs on a bounded queue drained by
// a fixed pool of workers.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"vidflow/internal/config"
	"vidflow/internal/consts"
	"vidflow/internal/downloader"
	"vidflow/internal/entity"
	"vidflow/internal/errs"
	"vidflow/internal/observability"
	"vidflow/internal/storage"
	"vidflow/pkg/gen"
	"vidflow/pkg/urls"
)

// Job manages background download jobs.
type Job interface {
	Start(ctx context.Context)
	// Wait blocks until every worker returned.
	Wait()

	Enqueue(ctx context.Context, req downloader.Request, playlist bool) (*entity.Job, error)

	GetByID(ctx context.Context, id string) (*entity.Job, error)
	GetAll(ctx context.Context) ([]*entity.Job, error)
	Cancel(ctx context.Context, id string) error
}

// task is one queued unit of work.
type task struct {
	id       string
	req      downloader.Request
	playlist bool
}

type job struct {
	log        *slog.Logger
	cfg        *config.Config
	metrics    *observability.Metrics
	downloader *downloader.Downloader
	storer     storage.Storer

	jobQueue  chan task
	enqueueMu sync.Mutex

	wg        sync.WaitGroup
	closed    atomic.Bool
	startOnce sync.Once
}

var _ Job = (*job)(nil)

// New creates the job service. Workers start with Start.
func New(cfg *config.Config, log *slog.Logger, dl *downloader.Downloader, storer storage.Storer,
	metrics *observability.Metrics,
) Job {
	return &job{
		log:        log.With(slog.String("package", "service")),
		cfg:        cfg,
		metrics:    metrics,
		downloader: dl,
		storer:     storer,
		jobQueue:   make(chan task, max(cfg.Job.QueueSize, 1)),
	}
}

func (svc *job) Start(ctx context.Context) {
	svc.startOnce.Do(func() {
		workers := max(svc.cfg.Job.Workers, 1)

		for i := range workers {
			svc.wg.Go(func() {
				svc.worker(ctx, i)
			})
		}

		svc.log.InfoContext(ctx, "job workers started", slog.Int("workers", workers))
	})
}

func (svc *job) Wait() {
	svc.wg.Wait()
}

// Key identifies a job by its URL and every option that changes the produced
// artifacts, so identical requests collapse into one job.
func Key(req downloader.Request, playlist bool) string {
	parts := []string{urls.Normalize(req.URL), req.FormatID, strconv.FormatBool(req.ExtractAudio), strconv.FormatBool(playlist)}

	if req.Range != nil {
		parts = append(parts, req.Range.Start.String()+"-"+req.Range.End.String())
	}

	return gen.UUIDv5(parts...)
}

func (svc *job) Enqueue(ctx context.Context, req downloader.Request, playlist bool) (*entity.Job, error) {
	if svc.closed.Load() {
		return nil, errs.ErrServiceClosed
	}

	if err := req.Range.Validate(); err != nil {
		return nil, err
	}

	req.URL = urls.Normalize(req.URL)
	id := Key(req, playlist)

	svc.enqueueMu.Lock()
	defer svc.enqueueMu.Unlock()

	if existing := svc.storer.GetJobByID(ctx, id); existing != nil && existing.Active() {
		return existing, errs.ErrJobAlreadyExists
	}

	now := time.Now()
	job := &entity.Job{
		UUID:         id,
		URL:          req.URL,
		FormatID:     req.FormatID,
		ExtractAudio: req.ExtractAudio,
		Playlist:     playlist,
		Status:       entity.JobStatusQueued,
		CreatedAt:    now,
		UpdatedAt:    now,
		ExpiresAt:    now.Add(svc.cfg.Storage.TTL),
	}

	if err := svc.storer.SetJob(ctx, job); err != nil {
		return nil, fmt.Errorf("store job: %w", err)
	}

	select {
	case svc.jobQueue <- task{id: id, req: req, playlist: playlist}:
		svc.metrics.RecordJobCreated()
		svc.log.InfoContext(ctx, "job enqueued", slog.Any("job", job))

		return job, nil
	case <-ctx.Done():
		svc.fail(ctx, id, consts.RespDownloadEnqueueFail)

		return nil, fmt.Errorf("enqueue job canceled: %w", ctx.Err())
	default:
		svc.fail(ctx, id, errs.ErrJobQueueFull.Error())

		return nil, fmt.Errorf("%w: %d/%d", errs.ErrJobQueueFull, len(svc.jobQueue), cap(svc.jobQueue))
	}
}

func (svc *job) worker(ctx context.Context, workerID int) {
	log := svc.log.With(slog.Int("worker_id", workerID))

	for {
		select {
		case t := <-svc.jobQueue:
			svc.processJob(ctx, log, t)
		case <-ctx.Done():
			svc.closed.Store(true)
			log.InfoContext(ctx, "got ctx done signal", slog.Any("error", ctx.Err()))

			return
		}
	}
}

func (svc *job) processJob(ctx context.Context, log *slog.Logger, t task) {
	log = log.With(slog.String("job_id", t.id))

	jobCtx, cancel := context.WithTimeout(ctx, svc.cfg.Job.Timeout)
	defer cancel()

	svc.storer.RegisterCancelFunc(t.id, cancel)
	defer svc.storer.UnregisterCancelFunc(t.id)

	started := false

	err := svc.storer.UpdateJob(ctx, t.id, func(job *entity.Job) {
		if job.Status == entity.JobStatusQueued {
			job.Status = entity.JobStatusDownloading
			started = true
		}
	})
	if err != nil || !started {
		log.InfoContext(ctx, "skipping job", slog.Any("error", err))

		return
	}

	files := &artifacts{}

	var (
		titles []string
		failed []entity.FailedVideo
	)

	if t.playlist {
		titles, err = svc.downloader.DownloadPlaylist(jobCtx, t.req, func(b entity.BatchDownloadProgress) {
			files.observe(b.CurrentVideo)
			files.setFailed(b.FailedVideos)
		})
		failed = files.failedVideos()
	} else {
		var title string

		title, err = svc.downloader.Download(jobCtx, t.req, func(p entity.DownloadProgress) {
			files.observe(&p)
		})
		if err == nil {
			titles = []string{title}
		}
	}

	if err != nil {
		svc.metrics.RecordJobFailed()
		log.ErrorContext(ctx, "job failed", slog.Any("error", err))

		svc.finish(ctx, t.id, files.list(), func(job *entity.Job) {
			job.Status = entity.JobStatusError
			job.Error = publicJobError(err)
		})

		return
	}

	svc.metrics.RecordJobCompleted()

	svc.finish(ctx, t.id, files.list(), func(job *entity.Job) {
		job.Status = entity.JobStatusFinished
		job.Titles = titles
		job.FailedVideos = failed
	})

	log.InfoContext(ctx, "job finished", slog.Int("titles", len(titles)), slog.Int("failed", len(failed)))
}

// finish records files and applies fn unless the job was cancelled meanwhile.
// Files are recorded either way so cleanup can remove them.
func (svc *job) finish(ctx context.Context, id string, files []string, fn func(job *entity.Job)) {
	err := svc.storer.UpdateJob(ctx, id, func(job *entity.Job) {
		job.Files = files

		if job.Status != entity.JobStatusCancelled {
			fn(job)
		}
	})
	if err != nil {
		svc.log.WarnContext(ctx, "update finished job", slog.String("job_id", id), slog.Any("error", err))
	}
}

func (svc *job) fail(ctx context.Context, id, msg string) {
	err := svc.storer.UpdateJob(ctx, id, func(job *entity.Job) {
		job.Status = entity.JobStatusError
		job.Error = msg
	})
	if err != nil {
		svc.log.WarnContext(ctx, "mark job failed", slog.String("job_id", id), slog.Any("error", err))
	}
}

func (svc *job) GetByID(ctx context.Context, id string) (*entity.Job, error) {
	job := svc.storer.GetJobByID(ctx, id)
	if job == nil {
		return nil, errs.ErrJobNotFound
	}

	return job, nil
}

func (svc *job) GetAll(ctx context.Context) ([]*entity.Job, error) {
	jobs, err := svc.storer.GetJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("get jobs: %w", err)
	}

	return jobs, nil
}

func (svc *job) Cancel(ctx context.Context, id string) error {
	if err := svc.storer.CancelJob(ctx, id); err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}

	return nil
}

func publicJobError(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "download timed out"
	case errors.Is(err, context.Canceled):
		return "download cancelled"
	default:
		return errs.Public(err, consts.RespDownloadFailed)
	}
}
