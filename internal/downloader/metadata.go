package downloader

import (
	"context"
	"fmt"
	"log/slog"

	"vidflow/internal/engine"
	"vidflow/internal/entity"
	"vidflow/internal/errs"
	"vidflow/pkg/maths"
	"vidflow/pkg/ptr"
)

// FetchVideo resolves metadata and downloadable formats for a single item.
func (d *Downloader) FetchVideo(ctx context.Context, url string, playlistIndex *int) (*entity.VideoInfo, error) {
	info, err := d.engine.ExtractInfo(ctx, url, false)
	if err != nil {
		return nil, fmt.Errorf("extract video info: %w", err)
	}

	if info == nil {
		return nil, errs.ErrNotFound
	}

	video := videoFromInfo(info)
	video.Formats = SelectFormats(info.Formats, d.cfg.Download.Container)
	video.PlaylistIndex = playlistIndex

	d.log.DebugContext(ctx, "video info resolved", slog.Any("video", video))

	return &video, nil
}

// FetchPlaylist resolves a flat listing of a playlist without per-entry formats.
// Entries without an identifier are skipped; positions stay 1-based over the
// original listing.
func (d *Downloader) FetchPlaylist(ctx context.Context, url string) (*entity.PlaylistInfo, error) {
	info, err := d.engine.ExtractInfo(ctx, url, true)
	if err != nil {
		return nil, fmt.Errorf("extract playlist info: %w", err)
	}

	if info == nil {
		return nil, errs.ErrNotFound
	}

	if info.Entries == nil {
		return nil, errs.ErrNotAPlaylist
	}

	videos := make([]entity.VideoInfo, 0, len(info.Entries))

	for i, entry := range info.Entries {
		if entry == nil || entry.ID == "" {
			d.log.DebugContext(ctx, "skipping playlist entry without id", slog.Int("position", i+1))

			continue
		}

		video := videoFromInfo(entry)
		video.Formats = []entity.FormatOption{}
		video.PlaylistIndex = ptr.Of(i + 1)

		if video.WebpageURL == "" {
			video.WebpageURL = entry.URL
		}

		videos = append(videos, video)
	}

	playlist := &entity.PlaylistInfo{
		ID:         info.ID,
		Title:      info.Title,
		Uploader:   info.Uploader,
		VideoCount: len(videos),
		Videos:     videos,
		WebpageURL: info.WebpageURL,
	}

	d.log.DebugContext(ctx, "playlist info resolved",
		slog.String("playlist_id", playlist.ID), slog.Int("videos", playlist.VideoCount))

	return playlist, nil
}

func videoFromInfo(info *engine.Info) entity.VideoInfo {
	return entity.VideoInfo{
		ID:          info.ID,
		Title:       info.Title,
		Duration:    maths.RoundToInt(ptr.Deref(info.Duration)),
		Thumbnail:   info.Thumbnail,
		WebpageURL:  info.WebpageURL,
		Description: info.Description,
		Uploader:    info.Uploader,
		ViewCount:   maths.RoundPtr(info.ViewCount),
	}
}
