package httprouter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"vidflow/internal/consts"
	"vidflow/internal/errs"
	"vidflow/internal/infrastructure/delivery/http/request"
	"vidflow/internal/infrastructure/delivery/http/response"
	"vidflow/pkg/urls"
)

const maxBodyBytes = 1 << 20

func (ro *Router) VideoInfo(w http.ResponseWriter, r *http.Request) {
	log := ro.log.With(slog.String("handler", "VideoInfo"))

	ctx, cancel := context.WithTimeout(r.Context(), ro.cfg.HTTP.HandlerTimeout)
	defer cancel()

	rawURL := r.URL.Query().Get("url")
	if !urls.IsURLValid(rawURL) {
		log.DebugContext(ctx, consts.RespQueryParamMissing, slog.String("url", rawURL))
		response.BadRequest(w, consts.RespQueryParamMissing, errs.ErrInvalidURL)

		return
	}

	video, err := ro.dl.FetchVideo(ctx, rawURL, nil)

	switch {
	case err == nil:
		response.OK(w, consts.RespVideoRetrieved, video, nil)
	case errors.Is(err, errs.ErrNotFound):
		log.InfoContext(ctx, consts.RespVideoNotFound, slog.String("url", rawURL))
		response.NotFound(w, consts.RespVideoNotFound, err)
	case errors.Is(err, errs.ErrInaccessible):
		log.InfoContext(ctx, consts.RespInaccessibleURL, slog.String("url", rawURL), slog.Any("error", err))
		response.BadRequest(w, consts.RespInaccessibleURL, err)
	default:
		log.ErrorContext(ctx, consts.RespVideoFetchFail, slog.String("url", rawURL), slog.Any("error", err))
		response.InternalServerError(w, consts.RespVideoFetchFail, nil, err)
	}
}

func (ro *Router) PlaylistInfo(w http.ResponseWriter, r *http.Request) {
	log := ro.log.With(slog.String("handler", "PlaylistInfo"))

	ctx, cancel := context.WithTimeout(r.Context(), ro.cfg.HTTP.HandlerTimeout)
	defer cancel()

	rawURL := r.URL.Query().Get("url")
	if !urls.IsURLValid(rawURL) {
		log.DebugContext(ctx, consts.RespQueryParamMissing, slog.String("url", rawURL))
		response.BadRequest(w, consts.RespQueryParamMissing, errs.ErrInvalidURL)

		return
	}

	playlist, err := ro.dl.FetchPlaylist(ctx, rawURL)

	switch {
	case err == nil:
		response.OK(w, consts.RespPlaylistRetrieved, playlist, nil)
	case errors.Is(err, errs.ErrNotAPlaylist):
		log.InfoContext(ctx, consts.RespNotAPlaylist, slog.String("url", rawURL))
		response.BadRequest(w, consts.RespNotAPlaylist, err)
	case errors.Is(err, errs.ErrNotFound):
		log.InfoContext(ctx, consts.RespPlaylistNotFound, slog.String("url", rawURL))
		response.NotFound(w, consts.RespPlaylistNotFound, err)
	case errors.Is(err, errs.ErrInaccessible):
		log.InfoContext(ctx, consts.RespInaccessibleURL, slog.String("url", rawURL), slog.Any("error", err))
		response.BadRequest(w, consts.RespInaccessibleURL, err)
	default:
		log.ErrorContext(ctx, consts.RespPlaylistFetchFail, slog.String("url", rawURL), slog.Any("error", err))
		response.InternalServerError(w, consts.RespPlaylistFetchFail, nil, err)
	}
}

func (ro *Router) Enqueue(w http.ResponseWriter, r *http.Request) {
	log := ro.log.With(slog.String("handler", "Enqueue"))
	ctx := r.Context()

	var in request.Download
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&in); err != nil {
		log.ErrorContext(ctx, consts.RespInvalidRequestBody, slog.Any("error", err))
		response.BadRequest(w, consts.RespInvalidRequestBody, errs.ErrInvalidRequestBody)

		return
	}

	if err := in.Validate(); err != nil {
		log.ErrorContext(ctx, consts.RespUnprocessableEntity, slog.Any("error", err))
		response.UnprocessableEntity(w, consts.RespUnprocessableEntity, err)

		return
	}

	job, err := ro.svc.Enqueue(ctx, in.Request(), in.Playlist)
	if errors.Is(err, errs.ErrJobAlreadyExists) {
		log.DebugContext(ctx, consts.RespJobAlreadyExists, slog.String("job_id", job.UUID))
		response.OK(w, consts.RespJobAlreadyExists, job, nil)

		return
	}

	if errors.Is(err, errs.ErrJobQueueFull) || errors.Is(err, errs.ErrServiceClosed) {
		log.WarnContext(ctx, consts.RespDownloadEnqueueFail, slog.Any("error", err))
		response.ServiceUnavailable(w, consts.RespDownloadEnqueueFail, nil)

		return
	}

	if err != nil {
		log.ErrorContext(ctx, consts.RespDownloadEnqueueFail, slog.Any("error", err))
		response.InternalServerError(w, consts.RespDownloadEnqueueFail, nil, err)

		return
	}

	log.InfoContext(ctx, consts.RespDownloadStarted, slog.Any("job", job))

	response.Accepted(w, consts.RespDownloadStarted, job, nil)
}

func (ro *Router) GetJob(w http.ResponseWriter, r *http.Request) {
	log := ro.log.With(slog.String("handler", "GetJob"))

	ctx, cancel := context.WithTimeout(r.Context(), consts.DefaultHandlerTimeout)
	defer cancel()

	id := r.PathValue("id")
	if id == "" {
		log.ErrorContext(ctx, consts.RespQueryParamMissing)
		response.BadRequest(w, consts.RespQueryParamMissing, nil)

		return
	}

	job, err := ro.svc.GetByID(ctx, id)
	if err != nil {
		log.DebugContext(ctx, consts.RespJobNotFound, slog.String("job_id", id))
		response.NotFound(w, consts.RespJobNotFound, nil)

		return
	}

	response.OK(w, consts.RespJobRetrieved, job, nil)
}

func (ro *Router) GetJobs(w http.ResponseWriter, r *http.Request) {
	log := ro.log.With(slog.String("handler", "GetJobs"))

	ctx, cancel := context.WithTimeout(r.Context(), consts.DefaultHandlerTimeout)
	defer cancel()

	jobs, err := ro.svc.GetAll(ctx)
	if errors.Is(err, errs.ErrNoJobs) {
		log.DebugContext(ctx, consts.RespNoJobs)
		response.NoContent(w)

		return
	}

	if err != nil {
		log.ErrorContext(ctx, consts.RespGetJobsFail, slog.Any("error", err))
		response.InternalServerError(w, consts.RespGetJobsFail, nil, err)

		return
	}

	response.OK(w, consts.RespJobsRetrieved, jobs, nil)
}

func (ro *Router) CancelJob(w http.ResponseWriter, r *http.Request) {
	log := ro.log.With(slog.String("handler", "CancelJob"))

	ctx, cancel := context.WithTimeout(r.Context(), consts.DefaultHandlerTimeout)
	defer cancel()

	id := r.PathValue("id")

	err := ro.svc.Cancel(ctx, id)

	switch {
	case err == nil:
		log.InfoContext(ctx, consts.RespJobCancelled, slog.String("job_id", id))
		response.OK(w, consts.RespJobCancelled, nil, nil)
	case errors.Is(err, errs.ErrJobNotFound):
		response.NotFound(w, consts.RespJobNotFound, nil)
	case errors.Is(err, errs.ErrJobNotCancellable):
		response.Conflict(w, consts.RespJobNotCancellable, nil, nil)
	default:
		log.ErrorContext(ctx, "cancel job", slog.String("job_id", id), slog.Any("error", err))
		response.InternalServerError(w, consts.RespInternalError, nil, nil)
	}
}
