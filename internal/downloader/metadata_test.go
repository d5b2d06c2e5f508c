package downloader

import (
	"errors"
	"testing"

	"vidflow/internal/engine"
	"vidflow/internal/entity"
	"vidflow/internal/errs"
	"vidflow/pkg/ptr"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestFetchVideo(t *testing.T) {
	t.Parallel()

	d, mock, _ := newTestDownloader(t)
	mock.SetInfo(testVideoURL, &engine.Info{
		ID:          "abc",
		Title:       "Clip",
		Description: "desc",
		Uploader:    "someone",
		Thumbnail:   "https://example.com/abc.jpg",
		Duration:    ptr.Of(212.6),
		ViewCount:   ptr.Of(1234.0),
		WebpageURL:  testVideoURL,
		Formats: []engine.Format{
			{FormatID: "18", Ext: "mp4", ACodec: ptr.Of("mp4a"), VCodec: ptr.Of("avc1"), TBR: ptr.Of(500.0)},
			{FormatID: "sb0", Ext: "mhtml", ACodec: ptr.Of("none"), VCodec: ptr.Of("none")},
		},
	})

	got, err := d.FetchVideo(t.Context(), testVideoURL, ptr.Of(2))
	if err != nil {
		t.Fatalf("FetchVideo() error = %v", err)
	}

	want := &entity.VideoInfo{
		ID:          "abc",
		Title:       "Clip",
		Duration:    213,
		Thumbnail:   "https://example.com/abc.jpg",
		WebpageURL:  testVideoURL,
		Description: "desc",
		ViewCount:   ptr.Of(1234),
		Uploader:    "someone",
		Formats: []entity.FormatOption{
			{FormatID: "18", Ext: "mp4", FormatNote: "video+audio", TBR: ptr.Of(500.0), HasAudio: true, HasVideo: true},
		},
		PlaylistIndex: ptr.Of(2),
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FetchVideo() mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchVideoErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		setup   func(m *engine.Mock)
		wantErr error
	}{
		{"not found", func(m *engine.Mock) { m.FailExtract(testVideoURL, errs.ErrNotFound) }, errs.ErrNotFound},
		{"inaccessible", func(m *engine.Mock) { m.FailExtract(testVideoURL, errs.ErrInaccessible) }, errs.ErrInaccessible},
		{"empty result", func(m *engine.Mock) { m.SetInfo(testVideoURL, nil) }, errs.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d, mock, _ := newTestDownloader(t)
			tt.setup(mock)

			if _, err := d.FetchVideo(t.Context(), testVideoURL, nil); !errors.Is(err, tt.wantErr) {
				t.Fatalf("FetchVideo() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestFetchPlaylist(t *testing.T) {
	t.Parallel()

	d, mock, _ := newTestDownloader(t)
	mock.SetInfo(testPlaylistURL, testPlaylist())

	got, err := d.FetchPlaylist(t.Context(), testPlaylistURL)
	if err != nil {
		t.Fatalf("FetchPlaylist() error = %v", err)
	}

	want := &entity.PlaylistInfo{
		ID:         "PL1",
		Title:      "Mix",
		VideoCount: 3,
		WebpageURL: testPlaylistURL,
		Videos: []entity.VideoInfo{
			{ID: "v1", Title: "One", WebpageURL: "https://example.com/watch?v=v1", PlaylistIndex: ptr.Of(1)},
			{ID: "v2", Title: "Two", WebpageURL: "https://example.com/watch?v=v2", PlaylistIndex: ptr.Of(3)},
			{ID: "v3", Title: "Three", WebpageURL: "https://example.com/watch?v=v3", PlaylistIndex: ptr.Of(4)},
		},
	}

	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("FetchPlaylist() mismatch (-want +got):\n%s", diff)
	}

	for _, v := range got.Videos {
		if v.Formats == nil {
			t.Errorf("video %s formats is nil, want empty list", v.ID)
		}
	}
}

func TestFetchPlaylistEmpty(t *testing.T) {
	t.Parallel()

	d, mock, _ := newTestDownloader(t)
	mock.SetInfo(testPlaylistURL, &engine.Info{ID: "PL0", Title: "Empty", Entries: []*engine.Info{}})

	got, err := d.FetchPlaylist(t.Context(), testPlaylistURL)
	if err != nil {
		t.Fatalf("FetchPlaylist() error = %v", err)
	}

	if got.VideoCount != 0 || got.Videos == nil {
		t.Errorf("empty playlist = %+v, want zero videos and a non-nil list", got)
	}
}

func TestFetchPlaylistNotAPlaylist(t *testing.T) {
	t.Parallel()

	d, mock, _ := newTestDownloader(t)
	mock.SetInfo(testVideoURL, videoInfo("abc", "Clip"))

	if _, err := d.FetchPlaylist(t.Context(), testVideoURL); !errors.Is(err, errs.ErrNotAPlaylist) {
		t.Fatalf("FetchPlaylist() error = %v, want %v", err, errs.ErrNotAPlaylist)
	}
}
