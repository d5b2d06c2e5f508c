// Package errs defines common error variables used across the application.
package errs

import "errors"

var (
	// ErrServiceClosed indicates that the service is closed and cannot accept new jobs.
	ErrServiceClosed = errors.New("service is closed")
	// ErrInvalidRequestBody indicates that the request body is invalid or cannot be parsed.
	ErrInvalidRequestBody = errors.New("invalid request body")
)

// Valid request errors.
var (
	// ErrInvalidURL indicates that the URL field in the request is invalid.
	ErrInvalidURL = errors.New("invalid url field")
	// ErrInvalidTimeRange indicates that start_time/end_time do not form a valid range.
	ErrInvalidTimeRange = errors.New("invalid time range")
)

// Metadata and download errors.
var (
	// ErrNotFound indicates that no metadata could be resolved for the URL.
	ErrNotFound = errors.New("video not found")
	// ErrInaccessible indicates that the URL is unreachable or invalid for the engine.
	ErrInaccessible = errors.New("invalid or inaccessible url")
	// ErrNotAPlaylist indicates that a single-video URL was given where a playlist was expected.
	ErrNotAPlaylist = errors.New("url is not a playlist")
	// ErrIDResolutionFailed indicates that metadata resolved but carried no stable identifier.
	ErrIDResolutionFailed = errors.New("could not resolve video id")
	// ErrDownloadFailed indicates that the engine failed during the download phase.
	ErrDownloadFailed = errors.New("download failed")
	// ErrBinaryNotFound indicates that the required binary was not found.
	ErrBinaryNotFound = errors.New("binary not found")
	// ErrUnsupportedPlatform indicates that the current platform is not supported.
	ErrUnsupportedPlatform = errors.New("unsupported platform")
)

// Job and storage errors.
var (
	// ErrNoJobs indicates that there are no jobs in storage.
	ErrNoJobs = errors.New("no jobs")
	// ErrJobAlreadyExists indicates that an active job already exists for the same URL and mode.
	ErrJobAlreadyExists = errors.New("job already exists")
	// ErrJobNotFound indicates that the job is not found in storage.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobNil indicates that the job is nil.
	ErrJobNil = errors.New("job is nil")
	// ErrJobQueueFull indicates that the job queue is full.
	ErrJobQueueFull = errors.New("job queue is full")
	// ErrJobNotCancellable indicates that the job already reached a terminal status.
	ErrJobNotCancellable = errors.New("job is not cancellable")
)

// Proxy errors.
var (
	// ErrNoProxiesAvailable indicates that no proxies are available.
	ErrNoProxiesAvailable = errors.New("no proxies available")
)

// public lists the errors whose text is safe to show to clients.
var public = []error{
	ErrNotFound,
	ErrInaccessible,
	ErrNotAPlaylist,
	ErrIDResolutionFailed,
	ErrInvalidURL,
	ErrInvalidTimeRange,
	ErrInvalidRequestBody,
	ErrDownloadFailed,
}

// Public returns the client-facing message for err: the text of the first known
// error it wraps, or fallback when none matches.
func Public(err error, fallback string) string {
	for _, known := range public {
		if errors.Is(err, known) {
			return known.Error()
		}
	}

	return fallback
}
