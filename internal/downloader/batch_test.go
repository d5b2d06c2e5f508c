package downloader

import (
	"errors"
	"strconv"
	"sync"
	"testing"

	"vidflow/internal/engine"
	"vidflow/internal/entity"
	"vidflow/internal/errs"

	"github.com/google/go-cmp/cmp"
)

type batchRecorder struct {
	mu        sync.Mutex
	snapshots []entity.BatchDownloadProgress
}

func (r *batchRecorder) record(b entity.BatchDownloadProgress) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.snapshots = append(r.snapshots, b)
}

func (r *batchRecorder) all() []entity.BatchDownloadProgress {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]entity.BatchDownloadProgress(nil), r.snapshots...)
}

func testPlaylist() *engine.Info {
	return &engine.Info{
		Type:       "playlist",
		ID:         "PL1",
		Title:      "Mix",
		WebpageURL: testPlaylistURL,
		Entries: []*engine.Info{
			{ID: "v1", Title: "One", URL: "https://example.com/watch?v=v1"},
			nil,
			{ID: "v2", Title: "Two", URL: "https://example.com/watch?v=v2"},
			{ID: "v3", Title: "Three", URL: "https://example.com/watch?v=v3"},
		},
	}
}

func TestDownloadPlaylistContinuesPastFailures(t *testing.T) {
	t.Parallel()

	d, mock, _ := newTestDownloader(t)
	mock.SetInfo(testPlaylistURL, testPlaylist())
	mock.SetInfo("https://example.com/watch?v=v1", videoInfo("v1", "One"))
	mock.FailExtract("https://example.com/watch?v=v2", errs.ErrInaccessible)
	mock.SetInfo("https://example.com/watch?v=v3", videoInfo("v3", "Three"))

	rec := &batchRecorder{}

	titles, err := d.DownloadPlaylist(t.Context(), Request{URL: testPlaylistURL}, rec.record)
	if err != nil {
		t.Fatalf("DownloadPlaylist() error = %v", err)
	}

	if len(titles) != 2 || titles[0] != "One" || titles[1] != "Three" {
		t.Errorf("titles = %v, want [One Three]", titles)
	}

	snapshots := rec.all()
	if len(snapshots) == 0 {
		t.Fatal("no batch snapshots published")
	}

	final := snapshots[len(snapshots)-1]
	if final.Status != entity.ProgressStatusFinished {
		t.Errorf("final status = %q, want finished", final.Status)
	}

	if final.TotalVideos != 3 || final.CompletedVideos != 2 {
		t.Errorf("final counts = %d/%d, want 2/3", final.CompletedVideos, final.TotalVideos)
	}

	if len(final.FailedVideos) != 1 {
		t.Fatalf("failed videos = %+v, want 1 entry", final.FailedVideos)
	}

	failed := final.FailedVideos[0]
	if failed.ID != "v2" || failed.Title != "Two" || failed.Reason != errs.ErrInaccessible.Error() {
		t.Errorf("failed video = %+v", failed)
	}

	if final.PlaylistTitle != "Mix" {
		t.Errorf("playlist title = %q, want Mix", final.PlaylistTitle)
	}

	for i, s := range snapshots {
		if s.CompletedVideos+len(s.FailedVideos) > s.TotalVideos {
			t.Errorf("snapshot %d: completed+failed exceeds total: %+v", i, s)
		}

		if s.CompletedVideos == 0 && s.EstimatedTimeRemaining != nil {
			t.Errorf("snapshot %d: estimate present before any completion", i)
		}

		if s.CompletedVideos > 0 && s.EstimatedTimeRemaining == nil {
			t.Errorf("snapshot %d: estimate missing after a completion", i)
		}
	}
}

func TestDownloadPlaylistContinuesPastDownloadFailure(t *testing.T) {
	t.Parallel()

	d, mock, _ := newTestDownloader(t)

	playlist := &engine.Info{Type: "playlist", ID: "PL5", Title: "Five", WebpageURL: testPlaylistURL}
	for i := 1; i <= 5; i++ {
		id := "v" + strconv.Itoa(i)
		url := "https://example.com/watch?v=" + id

		playlist.Entries = append(playlist.Entries, &engine.Info{ID: id, Title: "Video " + id, URL: url})
		mock.SetInfo(url, videoInfo(id, "Video "+id))
	}

	mock.SetInfo(testPlaylistURL, playlist)
	mock.FailDownload("https://example.com/watch?v=v3", errors.New("ffmpeg exited with code 1"))

	rec := &batchRecorder{}

	titles, err := d.DownloadPlaylist(t.Context(), Request{URL: testPlaylistURL}, rec.record)
	if err != nil {
		t.Fatalf("DownloadPlaylist() error = %v", err)
	}

	want := []string{"Video v1", "Video v2", "Video v4", "Video v5"}
	if diff := cmp.Diff(want, titles); diff != "" {
		t.Errorf("titles mismatch (-want +got):\n%s", diff)
	}

	snapshots := rec.all()
	if len(snapshots) == 0 {
		t.Fatal("no batch snapshots published")
	}

	final := snapshots[len(snapshots)-1]
	if final.TotalVideos != 5 || final.CompletedVideos != 4 {
		t.Errorf("final counts = %d/%d, want 4/5", final.CompletedVideos, final.TotalVideos)
	}

	wantFailed := []entity.FailedVideo{{ID: "v3", Title: "Video v3", Reason: errs.ErrDownloadFailed.Error()}}
	if diff := cmp.Diff(wantFailed, final.FailedVideos); diff != "" {
		t.Errorf("failed videos mismatch (-want +got):\n%s", diff)
	}

	if got := len(mock.Calls()); got != 5 {
		t.Errorf("engine downloads = %d, want 5", got)
	}
}

func TestDownloadPlaylistSnapshotsAreCopies(t *testing.T) {
	t.Parallel()

	d, mock, _ := newTestDownloader(t)
	mock.SetInfo(testPlaylistURL, testPlaylist())
	mock.FailExtract("https://example.com/watch?v=v1", errs.ErrNotFound)
	mock.FailExtract("https://example.com/watch?v=v2", errs.ErrNotFound)

	rec := &batchRecorder{}

	if _, err := d.DownloadPlaylist(t.Context(), Request{URL: testPlaylistURL}, rec.record); err != nil {
		t.Fatalf("DownloadPlaylist() error = %v", err)
	}

	snapshots := rec.all()

	var sawOneFailure bool

	for _, s := range snapshots {
		if len(s.FailedVideos) == 1 {
			sawOneFailure = true
		}
	}

	if !sawOneFailure {
		t.Error("earlier snapshots were mutated by later failures")
	}

	if got := len(snapshots[len(snapshots)-1].FailedVideos); got != 2 {
		t.Errorf("final failed videos = %d, want 2", got)
	}
}

func TestDownloadPlaylistItemProgressCarriesIndex(t *testing.T) {
	t.Parallel()

	d, mock, _ := newTestDownloader(t)
	mock.SetInfo(testPlaylistURL, testPlaylist())

	rec := &batchRecorder{}

	if _, err := d.DownloadPlaylist(t.Context(), Request{URL: testPlaylistURL, ExtractAudio: true}, rec.record); err != nil {
		t.Fatalf("DownloadPlaylist() error = %v", err)
	}

	indexes := map[int]bool{}

	for _, s := range rec.all() {
		if s.CurrentVideo != nil && s.CurrentVideo.PlaylistIndex != nil {
			indexes[*s.CurrentVideo.PlaylistIndex] = true
		}
	}

	for _, want := range []int{1, 3, 4} {
		if !indexes[want] {
			t.Errorf("no progress for playlist index %d, got %v", want, indexes)
		}
	}

	for _, call := range mock.Calls() {
		if !call.Options.ExtractAudio {
			t.Errorf("entry %s downloaded without audio extraction", call.URL)
		}
	}
}

func TestDownloadPlaylistListingErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		setup   func(m *engine.Mock)
		wantErr error
	}{
		{
			name:    "single video",
			setup:   func(m *engine.Mock) { m.SetInfo(testPlaylistURL, videoInfo("abc", "Clip")) },
			wantErr: errs.ErrNotAPlaylist,
		},
		{
			name:    "not found",
			setup:   func(m *engine.Mock) { m.FailExtract(testPlaylistURL, errs.ErrNotFound) },
			wantErr: errs.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d, mock, _ := newTestDownloader(t)
			tt.setup(mock)

			_, err := d.DownloadPlaylist(t.Context(), Request{URL: testPlaylistURL}, nil)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("DownloadPlaylist() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDownloadPlaylistRecoversCallbackPanic(t *testing.T) {
	t.Parallel()

	d, mock, _ := newTestDownloader(t)
	mock.SetInfo(testPlaylistURL, testPlaylist())

	titles, err := d.DownloadPlaylist(t.Context(), Request{URL: testPlaylistURL}, func(entity.BatchDownloadProgress) {
		panic("boom")
	})
	if err != nil {
		t.Fatalf("DownloadPlaylist() error = %v", err)
	}

	if len(titles) != 3 {
		t.Errorf("titles = %v, want 3 entries", titles)
	}
}
