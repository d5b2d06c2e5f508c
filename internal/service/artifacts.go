package service

import (
	"slices"
	"sync"

	"vidflow/internal/entity"
)

// artifacts collects the files a job produced from its finished events.
// Progress callbacks run on engine goroutines.
type artifacts struct {
	mu     sync.Mutex
	files  []string
	failed []entity.FailedVideo
}

func (a *artifacts) observe(p *entity.DownloadProgress) {
	if p == nil || p.Status != entity.ProgressStatusFinished || p.Filename == "" {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if !slices.Contains(a.files, p.Filename) {
		a.files = append(a.files, p.Filename)
	}
}

func (a *artifacts) setFailed(failed []entity.FailedVideo) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.failed = failed
}

func (a *artifacts) list() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	return slices.Clone(a.files)
}

func (a *artifacts) failedVideos() []entity.FailedVideo {
	a.mu.Lock()
	defer a.mu.Unlock()

	return slices.Clone(a.failed)
}
