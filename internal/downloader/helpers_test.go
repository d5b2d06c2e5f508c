package downloader

import (
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"vidflow/internal/config"
	"vidflow/internal/engine"
	"vidflow/internal/entity"
	"vidflow/internal/observability"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	testVideoURL    = "https://example.com/watch?v=abc"
	testPlaylistURL = "https://example.com/playlist?list=PL1"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCfg(t *testing.T) *config.Config {
	t.Helper()

	cfg, err := config.New()
	if err != nil {
		t.Fatalf("config.New() error = %v", err)
	}

	cfg.Dir.Downloads = t.TempDir()
	cfg.Dir.FilenameTemplate = filepath.Join(cfg.Dir.Downloads, "%(title)s.%(ext)s")

	return cfg
}

func newTestDownloader(t *testing.T) (*Downloader, *engine.Mock, *observability.Metrics) {
	t.Helper()

	log := newTestLogger()
	mock := engine.NewMock(log)
	mock.Step = 0
	metrics := observability.New(prometheus.NewRegistry())

	return New(log, newTestCfg(t), mock, metrics), mock, metrics
}

// recorder collects progress events from concurrent callers.
type recorder struct {
	mu     sync.Mutex
	events []entity.DownloadProgress
}

func (r *recorder) record(p entity.DownloadProgress) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, p)
}

func (r *recorder) snapshot() []entity.DownloadProgress {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]entity.DownloadProgress(nil), r.events...)
}

func (r *recorder) count(status entity.ProgressStatus) int {
	n := 0

	for _, e := range r.snapshot() {
		if e.Status == status {
			n++
		}
	}

	return n
}

func videoInfo(id, title string) *engine.Info {
	return &engine.Info{ID: id, Title: title, WebpageURL: "https://example.com/watch?v=" + id}
}
