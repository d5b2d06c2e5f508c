// Package engine is the boundary to the external metadata extraction and
// transcoding tool. The tool is driven with a declarative Options value and
// reports progress through a Hook.
package engine

import (
	"context"
	"log/slog"
)

// Engine extracts metadata and downloads media for a URL.
type Engine interface {
	// ExtractInfo resolves metadata without downloading. With flat set, playlist
	// entries are enumerated without per-entry format resolution. A nil Info
	// with a nil error means the tool returned nothing.
	ExtractInfo(ctx context.Context, url string, flat bool) (*Info, error)
	// Download blocks until the tool finished or failed. Hook is invoked from
	// the tool's output reader and must not block.
	Download(ctx context.Context, url string, opts Options, hook Hook) error
}

// Hook receives raw progress events from the tool.
type Hook func(Event)

// Event phases reported by the tool.
const (
	StatusDownloading = "downloading"
	StatusFinished    = "finished"
	StatusError       = "error"
)

// Event is one raw progress notification. Zero numeric values mean unknown.
type Event struct {
	Status          string
	VideoID         string
	Title           string
	Filename        string
	DownloadedBytes int64
	TotalBytes      int64
	// Speed is bytes per second averaged since the file started. go-ytdlp
	// does not expose yt-dlp's instantaneous speed.
	Speed           float64
	ETA             int // seconds
	FragmentIndex   int
	FragmentCount   int
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (e Event) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("status", e.Status),
		slog.String("video_id", e.VideoID),
		slog.String("filename", e.Filename),
		slog.Int64("downloaded_bytes", e.DownloadedBytes),
		slog.Int64("total_bytes", e.TotalBytes),
		slog.Int("fragment_index", e.FragmentIndex),
		slog.Int("fragment_count", e.FragmentCount),
	)
}

// Options declares how a download is performed.
type Options struct {
	// Format is the tool's format selector expression.
	Format string
	// MergeOutputFormat is the container multiple streams are merged into.
	MergeOutputFormat string
	// RecodeVideo normalizes the output container after download.
	RecodeVideo string
	// PostProcessorArgs are extra arguments for the transcoder, in "NAME:ARGS" form.
	PostProcessorArgs string

	ExtractAudio bool
	AudioFormat  string
	AudioQuality string

	// KeepIntermediate retains intermediate files after post-processing.
	KeepIntermediate bool

	// Sections restricts the download to a time range, e.g. "*10-20".
	Sections string
	// ForceKeyframesAtCuts cuts at keyframes so trimmed output decodes from its first frame.
	ForceKeyframesAtCuts bool

	// OutputTemplate is the absolute output path template.
	OutputTemplate string
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (o Options) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("format", o.Format),
		slog.String("merge_output_format", o.MergeOutputFormat),
		slog.Bool("extract_audio", o.ExtractAudio),
		slog.String("audio_format", o.AudioFormat),
		slog.Bool("keep_intermediate", o.KeepIntermediate),
		slog.String("sections", o.Sections),
		slog.String("output", o.OutputTemplate),
	)
}
