// Package entity defines the core entities used in the application.
package entity

import (
	"log/slog"
	"slices"
	"time"

	"vidflow/pkg/calc"
)

// ProgressStatus is the lifecycle phase carried by a DownloadProgress.
type ProgressStatus string

const (
	// ProgressStatusDownloading indicates bytes are being transferred.
	ProgressStatusDownloading ProgressStatus = "downloading"
	// ProgressStatusFinished indicates the final artifact was produced.
	ProgressStatusFinished ProgressStatus = "finished"
	// ProgressStatusError indicates the download failed.
	ProgressStatusError ProgressStatus = "error"
)

// VideoInfo is the metadata of a single video.
// Formats is empty for playlist entries that were not expanded yet.
type VideoInfo struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Duration      int            `json:"duration"`
	Thumbnail     string         `json:"thumbnail"`
	Formats       []FormatOption `json:"formats"`
	WebpageURL    string         `json:"webpage_url"`
	Description   string         `json:"description,omitempty"`
	ViewCount     *int           `json:"view_count,omitempty"`
	Uploader      string         `json:"uploader,omitempty"`
	PlaylistIndex *int           `json:"playlist_index,omitempty"`
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (v VideoInfo) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", v.ID),
		slog.String("title", v.Title),
		slog.Int("duration", v.Duration),
		slog.String("webpage_url", v.WebpageURL),
		slog.Int("formats", len(v.Formats)),
	)
}

// FormatOption is one downloadable encoding variant of a video.
type FormatOption struct {
	FormatID   string   `json:"format_id"`
	Ext        string   `json:"ext"`
	Filesize   *int64   `json:"filesize"`
	FormatNote string   `json:"format_note"`
	TBR        *float64 `json:"tbr"`
	HasAudio   bool     `json:"has_audio"`
	HasVideo   bool     `json:"has_video"`
}

// PlaylistInfo is the flat metadata of a playlist.
type PlaylistInfo struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Uploader   string      `json:"uploader,omitempty"`
	VideoCount int         `json:"video_count"`
	Videos     []VideoInfo `json:"videos"`
	WebpageURL string      `json:"webpage_url"`
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (p PlaylistInfo) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", p.ID),
		slog.String("title", p.Title),
		slog.Int("video_count", p.VideoCount),
		slog.String("webpage_url", p.WebpageURL),
	)
}

// DownloadProgress is a point-in-time snapshot of one item's download.
type DownloadProgress struct {
	Status          ProgressStatus `json:"status"`
	VideoID         string         `json:"video_id"`
	Title           string         `json:"title"`
	DownloadedBytes *int64         `json:"downloaded_bytes,omitempty"`
	TotalBytes      *int64         `json:"total_bytes,omitempty"`
	Speed           *float64       `json:"speed,omitempty"`
	ETA             *int           `json:"eta,omitempty"`
	Filename        string         `json:"filename,omitempty"`
	PlaylistIndex   *int           `json:"playlist_index,omitempty"`
	FragmentIndex   *int           `json:"fragment_index,omitempty"`
	FragmentCount   *int           `json:"fragment_count,omitempty"`
	Error           string         `json:"error,omitempty"`
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (p DownloadProgress) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("status", string(p.Status)),
		slog.String("video_id", p.VideoID),
		slog.String("filename", p.Filename),
	}

	if p.DownloadedBytes != nil {
		attrs = append(attrs, slog.Int64("downloaded_bytes", *p.DownloadedBytes))
	}

	if p.TotalBytes != nil {
		attrs = append(attrs, slog.Int64("total_bytes", *p.TotalBytes))

		if p.DownloadedBytes != nil {
			attrs = append(attrs, slog.Int("percent", calc.Progress(*p.DownloadedBytes, *p.TotalBytes)))
		}
	}

	return slog.GroupValue(attrs...)
}

// FailedVideo records one playlist entry that could not be downloaded.
type FailedVideo struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

// BatchDownloadProgress is the aggregate state of one playlist download.
type BatchDownloadProgress struct {
	Status                 ProgressStatus    `json:"status"`
	TotalVideos            int               `json:"total_videos"`
	CompletedVideos        int               `json:"completed_videos"`
	CurrentVideo           *DownloadProgress `json:"current_video,omitempty"`
	FailedVideos           []FailedVideo     `json:"failed_videos"`
	PlaylistTitle          string            `json:"playlist_title,omitempty"`
	EstimatedTimeRemaining *int              `json:"estimated_time_remaining,omitempty"`
}

// Clone returns a copy that shares no mutable state with b.
func (b *BatchDownloadProgress) Clone() BatchDownloadProgress {
	out := *b

	out.FailedVideos = append([]FailedVideo{}, b.FailedVideos...)

	if b.CurrentVideo != nil {
		current := *b.CurrentVideo
		out.CurrentVideo = &current
	}

	if b.EstimatedTimeRemaining != nil {
		eta := *b.EstimatedTimeRemaining
		out.EstimatedTimeRemaining = &eta
	}

	return out
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (b BatchDownloadProgress) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("playlist_title", b.PlaylistTitle),
		slog.Int("total_videos", b.TotalVideos),
		slog.Int("completed_videos", b.CompletedVideos),
		slog.Int("failed_videos", len(b.FailedVideos)),
	)
}

// JobStatus represents the status of a background download job.
type JobStatus string

const (
	// JobStatusQueued indicates that the job is accepted and waits for a worker.
	JobStatusQueued JobStatus = "queued"
	// JobStatusDownloading indicates that the job is in progress.
	JobStatusDownloading JobStatus = "downloading"
	// JobStatusError indicates that the job has encountered an error.
	JobStatusError JobStatus = "error"
	// JobStatusFinished indicates that the job has finished successfully.
	JobStatusFinished JobStatus = "finished"
	// JobStatusCancelled indicates that the job was cancelled by a client.
	JobStatusCancelled JobStatus = "cancelled"
)

// Job represents a background download.
type Job struct {
	UUID         string        `json:"uuid"`
	URL          string        `json:"url"`
	FormatID     string        `json:"format_id,omitempty"`
	ExtractAudio bool          `json:"extract_audio"`
	Playlist     bool          `json:"playlist"`
	Status       JobStatus     `json:"status"`
	Titles       []string      `json:"titles,omitempty"`
	Files        []string      `json:"files,omitempty"`
	FailedVideos []FailedVideo `json:"failed_videos,omitempty"`
	Error        string        `json:"error,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
	ExpiresAt    time.Time     `json:"expiresAt"`
}

// Active reports whether the job has not reached a terminal status.
func (j *Job) Active() bool {
	return j.Status == JobStatusQueued || j.Status == JobStatusDownloading
}

// Clone returns a copy that shares no slices with j.
func (j *Job) Clone() *Job {
	out := *j
	out.Titles = slices.Clone(j.Titles)
	out.Files = slices.Clone(j.Files)
	out.FailedVideos = slices.Clone(j.FailedVideos)

	return &out
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (j Job) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("uuid", j.UUID),
		slog.String("url", j.URL),
		slog.String("status", string(j.Status)),
		slog.Bool("extract_audio", j.ExtractAudio),
		slog.Bool("playlist", j.Playlist),
		slog.Int("files", len(j.Files)),
	)
}
