// Package request holds the decoded bodies of the download endpoints.
package request

import (
	"math"
	"time"

	"vidflow/internal/downloader"
	"vidflow/internal/errs"
	"vidflow/pkg/urls"
)

// maxRangeSeconds bounds range offsets well below time.Duration overflow.
const maxRangeSeconds = 1e6

// Download is the body of POST /api/download and of a live session request.
// StartTime and EndTime are seconds and must be given together.
type Download struct {
	URL          string   `json:"url"`
	FormatID     string   `json:"format_id,omitempty"`
	ExtractAudio bool     `json:"extract_audio"`
	Playlist     bool     `json:"playlist,omitempty"`
	StartTime    *float64 `json:"start_time,omitempty"`
	EndTime      *float64 `json:"end_time,omitempty"`
}

func (d *Download) Validate() error {
	if !urls.IsURLValid(d.URL) {
		return errs.ErrInvalidURL
	}

	if (d.StartTime == nil) != (d.EndTime == nil) {
		return errs.ErrInvalidTimeRange
	}

	if d.StartTime != nil {
		if !inRange(*d.StartTime) || !inRange(*d.EndTime) {
			return errs.ErrInvalidTimeRange
		}

		return d.timeRange().Validate()
	}

	return nil
}

// Request converts the body into an orchestrator request.
func (d *Download) Request() downloader.Request {
	return downloader.Request{
		URL:          urls.Normalize(d.URL),
		FormatID:     d.FormatID,
		ExtractAudio: d.ExtractAudio,
		Range:        d.timeRange(),
	}
}

func (d *Download) timeRange() *downloader.TimeRange {
	if d.StartTime == nil || d.EndTime == nil {
		return nil
	}

	return &downloader.TimeRange{
		Start: seconds(*d.StartTime),
		End:   seconds(*d.EndTime),
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func inRange(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0) && math.Abs(f) <= maxRangeSeconds
}
