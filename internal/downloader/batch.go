package downloader

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"vidflow/internal/entity"
	"vidflow/internal/errs"
	"vidflow/pkg/calc"
)

const (
	batchCompleted = "completed"
	batchFailed    = "failed"

	reasonMissingURL = "missing video url"
	reasonFallback   = "download failed"
)

// DownloadPlaylist enumerates the playlist at req.URL and downloads its entries
// one after another with req's options. A failing entry is recorded in the
// snapshot and the batch moves on; only the initial listing can fail the call.
// It returns the titles of the completed entries in playlist order.
func (d *Downloader) DownloadPlaylist(ctx context.Context, req Request, onBatch BatchProgressFunc) ([]string, error) {
	if err := req.Range.Validate(); err != nil {
		return nil, err
	}

	playlist, err := d.FetchPlaylist(ctx, req.URL)
	if err != nil {
		return nil, err
	}

	log := d.log.With(slog.String("playlist_id", playlist.ID))
	log.InfoContext(ctx, "playlist download started", slog.Int("videos", playlist.VideoCount))

	b := newBatch(d, log, playlist, onBatch)
	titles := make([]string, 0, len(playlist.Videos))

	for _, video := range playlist.Videos {
		b.start(video)

		if video.WebpageURL == "" {
			b.fail(ctx, video, reasonMissingURL)

			continue
		}

		itemReq := req
		itemReq.URL = video.WebpageURL

		title, err := d.Download(ctx, itemReq, func(p entity.DownloadProgress) {
			p.PlaylistIndex = video.PlaylistIndex
			b.current(p)
		})
		if err != nil {
			b.fail(ctx, video, errs.Public(err, reasonFallback))

			continue
		}

		titles = append(titles, title)
		b.complete()
	}

	b.finish()

	log.InfoContext(ctx, "playlist download finished",
		slog.Int("completed", len(titles)), slog.Int("failed", playlist.VideoCount-len(titles)))

	return titles, nil
}

// batch owns the aggregate state of one playlist download. Item progress may
// arrive from an engine goroutine, so every mutation happens under mu and each
// published snapshot is a copy.
type batch struct {
	d       *Downloader
	log     *slog.Logger
	fn      BatchProgressFunc
	started time.Time

	mu    sync.Mutex
	state entity.BatchDownloadProgress
}

func newBatch(d *Downloader, log *slog.Logger, playlist *entity.PlaylistInfo, fn BatchProgressFunc) *batch {
	return &batch{
		d:       d,
		log:     log,
		fn:      fn,
		started: time.Now(),
		state: entity.BatchDownloadProgress{
			Status:        entity.ProgressStatusDownloading,
			TotalVideos:   playlist.VideoCount,
			FailedVideos:  []entity.FailedVideo{},
			PlaylistTitle: playlist.Title,
		},
	}
}

func (b *batch) start(video entity.VideoInfo) {
	b.update(func(s *entity.BatchDownloadProgress) {
		s.CurrentVideo = &entity.DownloadProgress{
			Status:        entity.ProgressStatusDownloading,
			VideoID:       video.ID,
			Title:         video.Title,
			PlaylistIndex: video.PlaylistIndex,
		}
	})
}

func (b *batch) current(p entity.DownloadProgress) {
	b.update(func(s *entity.BatchDownloadProgress) {
		s.CurrentVideo = &p
	})
}

func (b *batch) complete() {
	b.d.metrics.RecordBatchItem(batchCompleted)
	b.update(func(s *entity.BatchDownloadProgress) {
		s.CompletedVideos++
	})
}

func (b *batch) fail(ctx context.Context, video entity.VideoInfo, reason string) {
	b.d.metrics.RecordBatchItem(batchFailed)
	b.log.WarnContext(ctx, "playlist entry failed",
		slog.String("video_id", video.ID), slog.String("reason", reason))

	b.update(func(s *entity.BatchDownloadProgress) {
		s.FailedVideos = append(s.FailedVideos, entity.FailedVideo{
			ID:     video.ID,
			Title:  video.Title,
			Reason: reason,
		})
	})
}

func (b *batch) finish() {
	b.update(func(s *entity.BatchDownloadProgress) {
		s.Status = entity.ProgressStatusFinished
	})
}

// update applies fn, refreshes the estimate and publishes a snapshot. The
// callback runs under mu so snapshots are delivered in mutation order.
func (b *batch) update(fn func(*entity.BatchDownloadProgress)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	fn(&b.state)

	remaining := b.state.TotalVideos - b.state.CompletedVideos - len(b.state.FailedVideos)
	if eta, ok := calc.Remaining(b.state.CompletedVideos, remaining, time.Since(b.started)); ok {
		secs := int(eta.Seconds())
		b.state.EstimatedTimeRemaining = &secs
	}

	if b.fn == nil {
		return
	}

	b.publish(b.state.Clone())
}

func (b *batch) publish(snapshot entity.BatchDownloadProgress) {
	defer func() {
		if r := recover(); r != nil {
			b.d.metrics.RecordHookFault()
			b.log.Error("batch progress callback panicked", slog.Any("panic", r))
		}
	}()

	b.fn(snapshot)
}
