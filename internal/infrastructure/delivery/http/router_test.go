package httprouter_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vidflow/internal/config"
	"vidflow/internal/downloader"
	"vidflow/internal/engine"
	"vidflow/internal/entity"
	"vidflow/internal/errs"
	httprouter "vidflow/internal/infrastructure/delivery/http"
	"vidflow/internal/observability"
	"vidflow/internal/service"
	"vidflow/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	testVideoURL    = "https://example.com/watch?v=abc"
	testPlaylistURL = "https://example.com/playlist?list=PL1"
)

type envelope struct {
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

type testEnv struct {
	srv  *httptest.Server
	mock *engine.Mock
}

func newTestEnv(t *testing.T, step time.Duration) *testEnv {
	t.Helper()

	cfg, err := config.New()
	if err != nil {
		t.Fatalf("config.New() error = %v", err)
	}

	cfg.Dir.Downloads = t.TempDir()
	cfg.Dir.FilenameTemplate = filepath.Join(cfg.Dir.Downloads, "%(title)s.%(ext)s")
	cfg.HTTP.RateLimit = 0
	cfg.HTTP.AllowedOrigins = []string{"*"}
	cfg.Storage.CleanupInterval = 0

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.New(prometheus.NewRegistry())

	mock := engine.NewMock(log)
	mock.Step = step

	ctx, cancel := context.WithCancel(context.Background())

	dl := downloader.New(log, cfg, mock, metrics)
	storer := storage.New(ctx, log, cfg, metrics)
	svc := service.New(cfg, log, dl, storer, metrics)
	svc.Start(ctx)

	srv := httptest.NewServer(httprouter.New(log, cfg, svc, dl, metrics))

	t.Cleanup(func() {
		srv.Close()
		cancel()
		svc.Wait()
	})

	return &testEnv{srv: srv, mock: mock}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (int, envelope) {
	t.Helper()

	var reader io.Reader = http.NoBody

	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}

		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(t.Context(), method, e.srv.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope

	if resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}

	return resp.StatusCode, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode data %s: %v", raw, err)
	}

	return v
}

func TestReadyz(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 0)

	resp, err := http.Get(env.srv.URL + "/v1/readyz")
	if err != nil {
		t.Fatalf("GET /v1/readyz error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("global middlewares not applied")
	}
}

func TestVideoInfo(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 0)
	env.mock.FailExtract("https://example.com/gone", errs.ErrNotFound)
	env.mock.FailExtract("https://example.com/blocked", errs.ErrInaccessible)
	env.mock.FailExtract("https://example.com/broken", errors.New("exec: yt-dlp crashed at /srv/bins"))

	tests := []struct {
		name       string
		url        string
		wantStatus int
		wantError  string
	}{
		{name: "found", url: testVideoURL, wantStatus: http.StatusOK},
		{name: "missing url", url: "", wantStatus: http.StatusBadRequest, wantError: errs.ErrInvalidURL.Error()},
		{name: "not found", url: "https://example.com/gone", wantStatus: http.StatusNotFound, wantError: errs.ErrNotFound.Error()},
		{name: "inaccessible", url: "https://example.com/blocked", wantStatus: http.StatusBadRequest, wantError: errs.ErrInaccessible.Error()},
		{name: "internal error not leaked", url: "https://example.com/broken", wantStatus: http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			status, body := env.do(t, http.MethodGet, "/api/video/info?url="+tc.url, nil)
			if status != tc.wantStatus {
				t.Fatalf("status = %d, want %d (%+v)", status, tc.wantStatus, body)
			}

			if body.Error != tc.wantError {
				t.Errorf("error = %q, want %q", body.Error, tc.wantError)
			}

			if status != http.StatusOK {
				return
			}

			video := decode[entity.VideoInfo](t, body.Data)
			if video.ID == "" || len(video.Formats) == 0 {
				t.Errorf("video = %+v, want id and formats", video)
			}
		})
	}
}

func TestPlaylistInfo(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 0)

	status, body := env.do(t, http.MethodGet, "/api/playlist/info?url="+testPlaylistURL, nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%+v)", status, body)
	}

	playlist := decode[entity.PlaylistInfo](t, body.Data)
	if playlist.VideoCount != 3 || len(playlist.Videos) != 3 {
		t.Errorf("playlist = %+v, want 3 videos", playlist)
	}

	for i, video := range playlist.Videos {
		if video.PlaylistIndex == nil || *video.PlaylistIndex != i+1 {
			t.Errorf("video %d playlist_index = %v, want %d", i, video.PlaylistIndex, i+1)
		}
	}

	status, body = env.do(t, http.MethodGet, "/api/playlist/info?url="+testVideoURL, nil)
	if status != http.StatusBadRequest || body.Error != errs.ErrNotAPlaylist.Error() {
		t.Errorf("single video: status = %d error = %q, want 400 %q", status, body.Error, errs.ErrNotAPlaylist)
	}
}

func TestEnqueueValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 0)

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantError  string
	}{
		{name: "broken json", body: `{"url":`, wantStatus: http.StatusBadRequest, wantError: errs.ErrInvalidRequestBody.Error()},
		{name: "invalid url", body: map[string]any{"url": "not a url"}, wantStatus: http.StatusUnprocessableEntity, wantError: errs.ErrInvalidURL.Error()},
		{name: "start without end", body: map[string]any{"url": testVideoURL, "start_time": 10}, wantStatus: http.StatusUnprocessableEntity, wantError: errs.ErrInvalidTimeRange.Error()},
		{name: "end before start", body: map[string]any{"url": testVideoURL, "start_time": 10, "end_time": 5}, wantStatus: http.StatusUnprocessableEntity, wantError: errs.ErrInvalidTimeRange.Error()},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			status, body := env.do(t, http.MethodPost, "/api/download", tc.body)
			if status != tc.wantStatus || body.Error != tc.wantError {
				t.Errorf("got %d %q, want %d %q", status, body.Error, tc.wantStatus, tc.wantError)
			}
		})
	}
}

func TestJobLifecycle(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 50*time.Millisecond)

	if status, _ := env.do(t, http.MethodGet, "/api/download/", nil); status != http.StatusNoContent {
		t.Errorf("empty list status = %d, want 204", status)
	}

	status, body := env.do(t, http.MethodPost, "/api/download", map[string]any{"url": testVideoURL})
	if status != http.StatusAccepted {
		t.Fatalf("enqueue status = %d, want 202 (%+v)", status, body)
	}

	job := decode[entity.Job](t, body.Data)

	status, body = env.do(t, http.MethodPost, "/api/download", map[string]any{"url": " " + testVideoURL + " "})
	if status != http.StatusOK || decode[entity.Job](t, body.Data).UUID != job.UUID {
		t.Errorf("duplicate enqueue = %d %+v, want 200 with job %s", status, body, job.UUID)
	}

	status, body = env.do(t, http.MethodGet, "/api/download/", nil)
	if status != http.StatusOK || len(decode[[]entity.Job](t, body.Data)) != 1 {
		t.Errorf("list = %d %s, want one job", status, body.Data)
	}

	if status, _ := env.do(t, http.MethodDelete, "/api/download/"+job.UUID, nil); status != http.StatusOK {
		t.Fatalf("cancel status = %d, want 200", status)
	}

	status, body = env.do(t, http.MethodGet, "/api/download/"+job.UUID, nil)
	if status != http.StatusOK || decode[entity.Job](t, body.Data).Status != entity.JobStatusCancelled {
		t.Errorf("after cancel = %d %s, want cancelled", status, body.Data)
	}

	if status, _ := env.do(t, http.MethodDelete, "/api/download/"+job.UUID, nil); status != http.StatusConflict {
		t.Errorf("second cancel status = %d, want 409", status)
	}

	if status, _ := env.do(t, http.MethodDelete, "/api/download/unknown", nil); status != http.StatusNotFound {
		t.Errorf("cancel unknown status = %d, want 404", status)
	}

	if status, _ := env.do(t, http.MethodGet, "/api/download/unknown", nil); status != http.StatusNotFound {
		t.Errorf("get unknown status = %d, want 404", status)
	}
}

func TestJobFinishes(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 0)

	status, body := env.do(t, http.MethodPost, "/api/download", map[string]any{"url": testVideoURL, "extract_audio": true})
	if status != http.StatusAccepted {
		t.Fatalf("enqueue status = %d, want 202", status)
	}

	id := decode[entity.Job](t, body.Data).UUID
	deadline := time.Now().Add(5 * time.Second)

	for {
		_, body = env.do(t, http.MethodGet, "/api/download/"+id, nil)

		job := decode[entity.Job](t, body.Data)
		if job.Status == entity.JobStatusFinished {
			if len(job.Files) != 1 || !strings.HasSuffix(job.Files[0], ".mp3") {
				t.Errorf("files = %v, want one .mp3", job.Files)
			}

			return
		}

		if !job.Active() {
			t.Fatalf("job ended as %s: %s", job.Status, job.Error)
		}

		if time.Now().After(deadline) {
			t.Fatalf("job still %s after deadline", job.Status)
		}

		time.Sleep(20 * time.Millisecond)
	}
}
