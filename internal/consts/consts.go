// Package consts defines application-wide constants.
package consts

import "time"

const (
	// DefaultHandlerTimeout is the default timeout for HTTP handlers.
	DefaultHandlerTimeout = 30 * time.Second
	// DefaultSimulateTime is the default time to simulate a download in the mock engine.
	DefaultSimulateTime = 1 * time.Second
)

// HTTP response messages.
const (
	// RespInvalidRequestBody is returned when the request body is invalid.
	RespInvalidRequestBody = "invalid request body"
	// RespQueryParamMissing is returned when a required query parameter is missing or invalid.
	RespQueryParamMissing = "query param missing or invalid"
	// RespUnprocessableEntity is returned when the request cannot be processed.
	RespUnprocessableEntity = "unprocessable entity"
	// RespTooManyRequests is returned when the rate limiter rejects a request.
	RespTooManyRequests = "too many requests"
	// RespVideoRetrieved is returned when video info is fetched.
	RespVideoRetrieved = "video info retrieved"
	// RespVideoNotFound is returned when no video metadata could be resolved.
	RespVideoNotFound = "video not found"
	// RespVideoFetchFail is returned for unclassified video info failures.
	RespVideoFetchFail = "failed to fetch video information"
	// RespPlaylistRetrieved is returned when playlist info is fetched.
	RespPlaylistRetrieved = "playlist info retrieved"
	// RespPlaylistNotFound is returned when no playlist metadata could be resolved.
	RespPlaylistNotFound = "playlist not found"
	// RespNotAPlaylist is returned when the URL does not point to a playlist.
	RespNotAPlaylist = "the provided url is not a playlist"
	// RespPlaylistFetchFail is returned for unclassified playlist info failures.
	RespPlaylistFetchFail = "failed to fetch playlist information"
	// RespInaccessibleURL is returned when the URL is invalid or unreachable.
	RespInaccessibleURL = "invalid or inaccessible url"
	// RespDownloadStarted is returned when a background download is accepted.
	RespDownloadStarted = "download started"
	// RespDownloadEnqueueFail is returned when a background download cannot be enqueued.
	RespDownloadEnqueueFail = "download enqueue failed"
	// RespJobAlreadyExists is returned when an identical job is already active.
	RespJobAlreadyExists = "job already exists"
	// RespJobRetrieved is returned when a job is successfully retrieved.
	RespJobRetrieved = "job retrieved"
	// RespJobsRetrieved is returned when jobs are successfully retrieved.
	RespJobsRetrieved = "jobs retrieved"
	// RespJobNotFound is returned when a job is not found.
	RespJobNotFound = "job not found"
	// RespGetJobsFail is returned when fetching all jobs fails.
	RespGetJobsFail = "get all jobs failed"
	// RespDownloadFailed is the public message for unclassified download failures.
	RespDownloadFailed = "download failed"
	// RespJobCancelled is returned when a job was cancelled.
	RespJobCancelled = "job cancelled"
	// RespJobNotCancellable is returned when a job already reached a terminal status.
	RespJobNotCancellable = "job is not cancellable"
	// RespNoJobs is returned when there are no jobs.
	RespNoJobs = "no jobs"
	// RespInternalError is returned when a handler failed unexpectedly.
	RespInternalError = "internal server error"
)

// Engine identifiers.
const (
	// EngineYTdlp is the yt-dlp engine identifier.
	EngineYTdlp = "ytdlp"
	// EngineMock is the mock engine identifier for local development and testing.
	EngineMock = "mock"
)

// Session message statuses.
const (
	// SessionStatusCompleted terminates a successful live session request.
	SessionStatusCompleted = "completed"
	// SessionStatusError terminates a failed live session request.
	SessionStatusError = "error"
)
