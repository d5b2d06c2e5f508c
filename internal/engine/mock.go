package engine

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"vidflow/internal/consts"
	"vidflow/pkg/gen"
	"vidflow/pkg/ptr"
)

const (
	mockSteps     = 10
	mockTotalSize = 10 * 1024 * 1024

	mockPlaylistSize = 3
)

// Call records one Download invocation on a Mock.
type Call struct {
	URL     string
	Options Options
}

// Mock is a scripted Engine. Unknown URLs resolve to synthesized metadata and
// a simulated download, so it also serves as an offline engine.
type Mock struct {
	log *slog.Logger

	// Step is the delay between scripted events.
	Step time.Duration

	mu          sync.Mutex
	infos       map[string]*Info
	scripts     map[string][]Event
	extractErrs map[string]error
	downloadErr map[string]error
	calls       []Call
}

// NewMock creates a new mock engine.
func NewMock(log *slog.Logger) *Mock {
	return &Mock{
		log:         log.With(slog.String("package", "engine"), slog.String("engine", consts.EngineMock)),
		Step:        consts.DefaultSimulateTime / mockSteps,
		infos:       make(map[string]*Info),
		scripts:     make(map[string][]Event),
		extractErrs: make(map[string]error),
		downloadErr: make(map[string]error),
	}
}

// SetInfo makes ExtractInfo return info for url.
func (m *Mock) SetInfo(url string, info *Info) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.infos[url] = info
}

// SetScript makes Download emit events for url instead of a simulated run.
func (m *Mock) SetScript(url string, events ...Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.scripts[url] = events
}

// FailExtract makes ExtractInfo fail with err for url.
func (m *Mock) FailExtract(url string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.extractErrs[url] = err
}

// FailDownload makes Download fail with err for url after its script ran.
func (m *Mock) FailDownload(url string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.downloadErr[url] = err
}

// Calls returns the Download invocations so far.
func (m *Mock) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]Call(nil), m.calls...)
}

// ExtractInfo returns the configured info for url, or synthesizes one. A flat
// extraction of a URL carrying a "list=" query synthesizes a playlist.
func (m *Mock) ExtractInfo(ctx context.Context, url string, flat bool) (*Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.extractErrs[url]; ok {
		return nil, err
	}

	if info, ok := m.infos[url]; ok {
		return info, nil
	}

	if flat && strings.Contains(url, "list=") {
		return synthesizePlaylist(url), nil
	}

	return synthesizeInfo(url), nil
}

// Download emits the scripted events for url, or simulates a download.
func (m *Mock) Download(ctx context.Context, url string, opts Options, hook Hook) error {
	m.mu.Lock()
	m.calls = append(m.calls, Call{URL: url, Options: opts})
	events, scripted := m.scripts[url]
	failErr := m.downloadErr[url]
	info, known := m.infos[url]
	m.mu.Unlock()

	if !known {
		info = synthesizeInfo(url)
	}

	var moved string
	if !scripted {
		events, moved = simulatedEvents(info, opts)
	}

	m.log.DebugContext(ctx, "mock download", slog.String("url", url), slog.Int("events", len(events)))

	for _, event := range events {
		if err := m.wait(ctx); err != nil {
			return err
		}

		if hook != nil {
			hook(event)
		}
	}

	if failErr != nil {
		return failErr
	}

	if hook != nil && moved != "" {
		hook(Event{Status: StatusFinished, VideoID: info.ID, Title: info.Title, Filename: moved, TotalBytes: mockTotalSize})
	}

	return nil
}

func (m *Mock) wait(ctx context.Context) error {
	if m.Step <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(m.Step)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func synthesizeInfo(url string) *Info {
	id := gen.UUIDv5(url, consts.EngineMock)[:11]

	return &Info{
		ID:         id,
		Title:      "Mock video " + id,
		Duration:   ptr.Of(float64(60)),
		Thumbnail:  "https://example.com/" + id + ".jpg",
		WebpageURL: url,
		Formats: []Format{
			{FormatID: "18", Ext: "mp4", ACodec: ptr.Of("mp4a.40.2"), VCodec: ptr.Of("avc1"), Height: ptr.Of(360.0), TBR: ptr.Of(500.0)},
			{FormatID: "137", Ext: "mp4", ACodec: ptr.Of("none"), VCodec: ptr.Of("avc1"), Height: ptr.Of(1080.0), FPS: ptr.Of(30.0), TBR: ptr.Of(4000.0)},
			{FormatID: "140", Ext: "m4a", ACodec: ptr.Of("mp4a.40.2"), VCodec: ptr.Of("none"), TBR: ptr.Of(128.0)},
		},
	}
}

func synthesizePlaylist(url string) *Info {
	id := gen.UUIDv5(url, consts.EngineMock)[:18]
	playlist := &Info{
		Type:       "playlist",
		ID:         id,
		Title:      "Mock playlist " + id,
		Uploader:   "mock",
		WebpageURL: url,
	}

	for i := range mockPlaylistSize {
		entryURL := fmt.Sprintf("https://example.com/watch?v=%s-%d", id, i+1)
		entry := synthesizeInfo(entryURL)
		entry.URL = entryURL
		entry.Formats = nil
		playlist.Entries = append(playlist.Entries, entry)
	}

	return playlist
}

// simulatedEvents returns the download phase of a simulated run and the path
// the run moves into place once post-processing succeeds.
func simulatedEvents(info *Info, opts Options) ([]Event, string) {
	ext := opts.MergeOutputFormat
	if opts.ExtractAudio {
		ext = opts.AudioFormat
	}

	if ext == "" {
		ext = "mp4"
	}

	base := filepath.Join(filepath.Dir(opts.OutputTemplate), sanitize(info.Title))
	source := fmt.Sprintf("%s.f%s.webm", base, "251")
	final := base + "." + ext

	events := make([]Event, 0, mockSteps+2)

	for step := 0; step <= mockSteps; step++ {
		downloaded := int64(mockTotalSize / mockSteps * step)
		events = append(events, Event{
			Status:          StatusDownloading,
			VideoID:         info.ID,
			Title:           info.Title,
			Filename:        source,
			DownloadedBytes: downloaded,
			TotalBytes:      mockTotalSize,
			ETA:             mockSteps - step,
		})
	}

	events = append(events, Event{Status: StatusFinished, VideoID: info.ID, Title: info.Title, Filename: source})

	return events, final
}

func sanitize(title string) string {
	return strings.NewReplacer("/", "_", "\\", "_").Replace(title)
}
