package storage_test

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"testing"
	"time"

	"vidflow/internal/config"
	"vidflow/internal/entity"
	"vidflow/internal/errs"
	"vidflow/pkg/gen"
)

func testCfg() *config.Config {
	return &config.Config{Storage: config.Storage{CleanupInterval: time.Minute}}
}

func TestGetJob(t *testing.T) {
	ctx := t.Context()
	storer, _ := newTestStorer(t, testCfg())

	if _, err := storer.GetJobs(ctx); !errors.Is(err, errs.ErrNoJobs) {
		t.Errorf("GetJobs() on empty storage error = %v, want %v", err, errs.ErrNoJobs)
	}

	uuid := gen.UUIDv5("a", "b")

	if err := storer.SetJob(ctx, &entity.Job{UUID: uuid, Titles: []string{"one"}}); err != nil {
		t.Fatalf("SetJob() error = %v", err)
	}

	job := storer.GetJobByID(ctx, uuid)
	if job == nil {
		t.Fatal("failed to get job")
	}

	job.Titles[0] = "mutated"

	if again := storer.GetJobByID(ctx, uuid); again.Titles[0] != "one" {
		t.Errorf("stored job was mutated through a returned copy: %v", again.Titles)
	}

	jobs, err := storer.GetJobs(ctx)
	if len(jobs) != 1 || err != nil {
		t.Errorf("GetJobs() = %d jobs, %v; want 1, nil", len(jobs), err)
	}

	if storer.GetJobByID(ctx, "missing") != nil {
		t.Error("expected nil for unknown job")
	}
}

func TestSetJobNil(t *testing.T) {
	storer, _ := newTestStorer(t, testCfg())

	for _, job := range []*entity.Job{nil, {}} {
		if err := storer.SetJob(t.Context(), job); !errors.Is(err, errs.ErrJobNil) {
			t.Errorf("SetJob(%v) error = %v, want %v", job, err, errs.ErrJobNil)
		}
	}
}

func TestUpdateJob(t *testing.T) {
	ctx := t.Context()
	storer, _ := newTestStorer(t, testCfg())

	uuid := gen.UUIDv5("url", "video")
	if err := storer.SetJob(ctx, &entity.Job{UUID: uuid, Status: entity.JobStatusQueued}); err != nil {
		t.Fatalf("SetJob() error = %v", err)
	}

	tests := []struct {
		name       string
		id         string
		status     entity.JobStatus
		errorMsg   string
		wantErr    error
		wantStatus entity.JobStatus
	}{
		{"to downloading", uuid, entity.JobStatusDownloading, "", nil, entity.JobStatusDownloading},
		{"to error", uuid, entity.JobStatusError, "download failed", nil, entity.JobStatusError},
		{"unknown job", "missing", entity.JobStatusFinished, "", errs.ErrJobNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := storer.UpdateJob(ctx, tt.id, func(job *entity.Job) {
				job.Status = tt.status
				job.Error = tt.errorMsg
			})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("UpdateJob() error = %v, want %v", err, tt.wantErr)
			}

			if tt.wantErr != nil {
				return
			}

			job := storer.GetJobByID(ctx, tt.id)
			if job.Status != tt.wantStatus || job.Error != tt.errorMsg {
				t.Errorf("job = %s/%q, want %s/%q", job.Status, job.Error, tt.wantStatus, tt.errorMsg)
			}

			if job.UpdatedAt.IsZero() {
				t.Error("UpdatedAt not set")
			}
		})
	}
}

func TestCancelJob(t *testing.T) {
	ctx := t.Context()
	storer, _ := newTestStorer(t, testCfg())

	running := gen.UUIDv5("running", "video")
	queued := gen.UUIDv5("queued", "video")
	done := gen.UUIDv5("done", "video")

	for id, status := range map[string]entity.JobStatus{
		running: entity.JobStatusDownloading,
		queued:  entity.JobStatusQueued,
		done:    entity.JobStatusFinished,
	} {
		if err := storer.SetJob(ctx, &entity.Job{UUID: id, Status: status}); err != nil {
			t.Fatalf("SetJob() error = %v", err)
		}
	}

	jobCtx, cancel := context.WithCancel(ctx)
	storer.RegisterCancelFunc(running, cancel)

	if err := storer.CancelJob(ctx, running); err != nil {
		t.Fatalf("CancelJob(running) error = %v", err)
	}

	if jobCtx.Err() == nil {
		t.Error("running job context was not cancelled")
	}

	if err := storer.CancelJob(ctx, queued); err != nil {
		t.Fatalf("CancelJob(queued) error = %v", err)
	}

	for _, id := range []string{running, queued} {
		if got := storer.GetJobByID(ctx, id).Status; got != entity.JobStatusCancelled {
			t.Errorf("job %s status = %s, want cancelled", id, got)
		}
	}

	if err := storer.CancelJob(ctx, done); !errors.Is(err, errs.ErrJobNotCancellable) {
		t.Errorf("CancelJob(done) error = %v, want %v", err, errs.ErrJobNotCancellable)
	}

	if err := storer.CancelJob(ctx, running); !errors.Is(err, errs.ErrJobNotCancellable) {
		t.Errorf("second CancelJob(running) error = %v, want %v", err, errs.ErrJobNotCancellable)
	}

	if err := storer.CancelJob(ctx, "missing"); !errors.Is(err, errs.ErrJobNotFound) {
		t.Errorf("CancelJob(missing) error = %v, want %v", err, errs.ErrJobNotFound)
	}

	storer.UnregisterCancelFunc(running)
}

func TestGetJobsNewestFirst(t *testing.T) {
	ctx := t.Context()
	storer, _ := newTestStorer(t, testCfg())

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, name := range []string{"old", "new", "mid"} {
		offset := map[string]time.Duration{"old": 0, "mid": time.Hour, "new": 2 * time.Hour}[name]

		job := &entity.Job{UUID: gen.UUIDv5(name, strconv.Itoa(i)), URL: name, CreatedAt: base.Add(offset)}
		if err := storer.SetJob(ctx, job); err != nil {
			t.Fatalf("SetJob(%s) error = %v", name, err)
		}
	}

	jobs, err := storer.GetJobs(ctx)
	if err != nil {
		t.Fatalf("GetJobs() error = %v", err)
	}

	var got []string
	for _, job := range jobs {
		got = append(got, job.URL)
	}

	if want := []string{"new", "mid", "old"}; !slices.Equal(got, want) {
		t.Errorf("GetJobs() order = %v, want %v", got, want)
	}
}
