package storage

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vidflow/internal/entity"
)

// CleanupExpiredJobs removes expired jobs and their files every interval until ctx is done.
func (stg *storage) CleanupExpiredJobs(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		stg.log.WarnContext(ctx, "cleanup disabled", slog.Duration("interval", interval))

		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log := stg.log.With(slog.String("action", "cleanup_expired_jobs"), slog.Duration("interval", interval))

	for {
		select {
		case <-ticker.C:
			stg.performCleanup(ctx)
		case <-ctx.Done():
			log.Info("cleanup expired jobs stopped")

			return
		}
	}
}

func (stg *storage) performCleanup(ctx context.Context) {
	log := stg.log
	now := time.Now()

	stg.mu.Lock()
	expiredJobs := stg.takeExpiredJobs(now)
	stored := len(stg.jobs)
	stg.mu.Unlock()

	stg.metrics.SetStoredJobs(stored)

	if len(expiredJobs) == 0 {
		log.DebugContext(ctx, "no expired jobs found to clean up")

		return
	}

	log.InfoContext(ctx, "about to remove expired jobs", slog.Int("count", len(expiredJobs)))

	deleted := 0
	for _, job := range expiredJobs {
		deleted += stg.removeFiles(ctx, job)
	}

	stg.metrics.RecordCleanup(len(expiredJobs), deleted)
}

// takeExpiredJobs removes expired jobs that are no longer running. Must be
// called with mu held.
func (stg *storage) takeExpiredJobs(now time.Time) []*entity.Job {
	var expiredJobs []*entity.Job

	for id, job := range stg.jobs {
		if job.ExpiresAt.Before(now) && !job.Active() {
			expiredJobs = append(expiredJobs, job)
			delete(stg.jobs, id)
		}
	}

	return expiredJobs
}

func (stg *storage) removeFiles(ctx context.Context, job *entity.Job) int {
	log := stg.log.With(slog.String("job_id", job.UUID))
	deletedFiles := 0

	for _, filename := range job.Files {
		if !stg.withinDownloads(filename) {
			log.ErrorContext(ctx, "refusing to delete file outside downloads dir", slog.String("filename", filename))

			continue
		}

		err := os.Remove(filename)
		if errors.Is(err, fs.ErrNotExist) {
			log.DebugContext(ctx, "file already gone", slog.String("filename", filename))

			continue
		}

		if err != nil {
			log.ErrorContext(ctx, "failed to delete file", slog.String("filename", filename), slog.Any("error", err))

			continue
		}

		deletedFiles++

		log.DebugContext(ctx, "successfully deleted file", slog.String("filename", filename))
	}

	log.DebugContext(ctx, "job cleaned up", slog.Int("deleted_files", deletedFiles), slog.Int("files", len(job.Files)))

	return deletedFiles
}

func (stg *storage) withinDownloads(filename string) bool {
	if !filepath.IsAbs(filename) {
		return false
	}

	rel, err := filepath.Rel(stg.cfg.Dir.Downloads, filename)
	if err != nil {
		return false
	}

	return rel != "." && !strings.HasPrefix(rel, "..")
}
