// Package downloader orchestrates metadata fetching and downloads on top of an
// extraction engine: single items, playlists, and the progress they report.
package downloader

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"vidflow/internal/config"
	"vidflow/internal/engine"
	"vidflow/internal/entity"
	"vidflow/internal/errs"
	"vidflow/internal/observability"
)

const (
	modeAudio = "audio"
	modeVideo = "video"

	// compatibleAudioExt is the audio container that merges into the canonical container without re-muxing issues.
	compatibleAudioExt = "m4a"
	audioOnlyFormat    = "bestaudio/best"
)

// ProgressFunc receives progress snapshots of a single download. It is called
// from the engine's goroutine and should not block.
type ProgressFunc func(entity.DownloadProgress)

// BatchProgressFunc receives snapshots of a playlist download. Snapshots are
// copies and may be retained. It should not block.
type BatchProgressFunc func(entity.BatchDownloadProgress)

// TimeRange restricts a download to [Start, End).
type TimeRange struct {
	Start time.Duration
	End   time.Duration
}

// Validate checks that the range is non-negative and non-empty.
func (r *TimeRange) Validate() error {
	if r == nil {
		return nil
	}

	if r.Start < 0 || r.End <= r.Start {
		return errs.ErrInvalidTimeRange
	}

	return nil
}

// Request describes one download.
type Request struct {
	URL          string
	FormatID     string
	ExtractAudio bool
	Range        *TimeRange
}

func (r Request) mode() string {
	if r.ExtractAudio {
		return modeAudio
	}

	return modeVideo
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (r Request) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("url", r.URL),
		slog.String("format_id", r.FormatID),
		slog.Bool("extract_audio", r.ExtractAudio),
	)
}

// Downloader drives the engine for metadata, single downloads and playlists.
type Downloader struct {
	log     *slog.Logger
	cfg     *config.Config
	engine  engine.Engine
	metrics *observability.Metrics
}

// New creates a new Downloader.
func New(log *slog.Logger, cfg *config.Config, eng engine.Engine, metrics *observability.Metrics) *Downloader {
	return &Downloader{
		log:     log.With(slog.String("package", "downloader")),
		cfg:     cfg,
		engine:  eng,
		metrics: metrics,
	}
}

// options builds the engine options for req. info is the resolved metadata of
// the item and is used to pair a video-only format with audio.
func (d *Downloader) options(req Request, info *engine.Info) engine.Options {
	dl := d.cfg.Download

	opts := engine.Options{
		OutputTemplate: d.cfg.Dir.FilenameTemplate,
	}

	if req.ExtractAudio {
		opts.Format = audioOnlyFormat
		opts.ExtractAudio = true
		opts.AudioFormat = dl.AudioCodec
		opts.AudioQuality = dl.AudioQuality
	} else {
		opts.Format = videoFormat(req.FormatID, info, dl.MaxHeight, dl.Container)
		opts.MergeOutputFormat = dl.Container
		opts.RecodeVideo = dl.Container
		opts.PostProcessorArgs = "Merger+VideoConvertor:-c:v copy -c:a " + dl.MergeAudioCodec
		opts.KeepIntermediate = dl.KeepIntermediate
	}

	if req.Range != nil {
		opts.Sections = fmt.Sprintf("*%s-%s", seconds(req.Range.Start), seconds(req.Range.End))
		opts.ForceKeyframesAtCuts = true
	}

	return opts
}

// finalExt is the extension the finished artifact of req carries.
func (d *Downloader) finalExt(req Request) string {
	if req.ExtractAudio {
		return audioExt(d.cfg.Download.AudioCodec)
	}

	return d.cfg.Download.Container
}

// audioExt maps an audio codec to the extension the transcoder writes. The
// "best" codec keeps whatever the source had, so no extension is implied.
func audioExt(codec string) string {
	switch strings.ToLower(codec) {
	case "best", "":
		return ""
	case "vorbis":
		return "ogg"
	case "alac":
		return "m4a"
	default:
		return strings.ToLower(codec)
	}
}

func videoFormat(formatID string, info *engine.Info, maxHeight int, container string) string {
	if formatID == "" {
		return fmt.Sprintf("bestvideo[height<=%d][ext=%s]+bestaudio[ext=%s]/best[ext=%s]/best",
			maxHeight, container, compatibleAudioExt, container)
	}

	if info != nil {
		for _, f := range info.Formats {
			if f.FormatID == formatID && codecPresent(f.VCodec) && !codecPresent(f.ACodec) {
				return fmt.Sprintf("%[1]s+bestaudio[ext=%[2]s]/%[1]s+bestaudio", formatID, compatibleAudioExt)
			}
		}
	}

	return formatID
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}
