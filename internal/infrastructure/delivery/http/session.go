package httprouter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"vidflow/internal/consts"
	"vidflow/internal/entity"
	"vidflow/internal/errs"
	"vidflow/internal/infrastructure/delivery/http/request"
	"vidflow/internal/progress"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const sessionRelay = "session"

type sessionError struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type sessionCompleted struct {
	Status string `json:"status"`
	Title  string `json:"title"`
}

type sessionPlaylistCompleted struct {
	Status       string               `json:"status"`
	Titles       []string             `json:"titles"`
	FailedVideos []entity.FailedVideo `json:"failed_videos"`
}

// DownloadSession serves live downloads over a websocket. Each text message is
// one request; progress is streamed back followed by exactly one terminal
// message, then the next request is read. A client that goes away stops the
// stream, not the download.
func (ro *Router) DownloadSession(w http.ResponseWriter, r *http.Request) {
	log := ro.log.With(slog.String("handler", "DownloadSession"), slog.String("session_id", uuid.NewString()))

	conn, err := websocket.Accept(w, r, ro.acceptOpts)
	if err != nil {
		log.ErrorContext(r.Context(), "websocket accept", slog.Any("error", err))

		return
	}
	defer conn.Close(websocket.StatusInternalError, "session ended unexpectedly")

	ro.metrics.SessionsActive.Inc()
	defer ro.metrics.SessionsActive.Dec()

	ctx := r.Context()

	log.InfoContext(ctx, "session opened")

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				log.InfoContext(ctx, "session closed by client")
			} else {
				log.InfoContext(ctx, "session read ended", slog.Any("error", err))
			}

			return
		}

		var in request.Download
		if err := json.Unmarshal(data, &in); err != nil {
			log.WarnContext(ctx, consts.RespInvalidRequestBody, slog.Any("error", err))

			if !ro.writeMessage(ctx, log, conn, sessionError{
				Status:  consts.SessionStatusError,
				Message: errs.ErrInvalidRequestBody.Error(),
			}) {
				return
			}

			continue
		}

		if !ro.serveSessionRequest(ctx, log, conn, in) {
			_ = conn.Close(websocket.StatusGoingAway, "")

			return
		}
	}
}

// serveSessionRequest runs one request to completion. It reports whether the
// connection is still usable.
func (ro *Router) serveSessionRequest(ctx context.Context, log *slog.Logger, conn *websocket.Conn,
	in request.Download,
) bool {
	if err := in.Validate(); err != nil {
		log.InfoContext(ctx, "invalid session request", slog.Any("error", err))

		return ro.writeMessage(ctx, log, conn, sessionError{
			Status:  consts.SessionStatusError,
			Message: errs.Public(err, consts.RespUnprocessableEntity),
		})
	}

	req := in.Request()
	log = log.With(slog.Any("request", req), slog.Bool("playlist", in.Playlist))

	// Downloads outlive the connection: a disconnect only stops delivery.
	dlCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ro.cfg.Session.DownloadTimeout)
	defer cancel()

	relay := progress.New[any](ctx, log, ro.metrics, sessionRelay, ro.cfg.Session.BufferSize,
		func(ctx context.Context, msg any) error {
			return ro.write(ctx, conn, msg)
		})

	var terminal any

	if in.Playlist {
		last := &lastBatch{}

		titles, err := ro.dl.DownloadPlaylist(dlCtx, req, func(b entity.BatchDownloadProgress) {
			last.set(b)
			relay.Push(b)
		})
		if err != nil {
			terminal = ro.sessionFailure(ctx, log, err)
		} else {
			terminal = sessionPlaylistCompleted{
				Status:       consts.SessionStatusCompleted,
				Titles:       titles,
				FailedVideos: last.failed(),
			}
		}
	} else {
		title, err := ro.dl.Download(dlCtx, req, func(p entity.DownloadProgress) {
			relay.Push(p)
		})
		if err != nil {
			terminal = ro.sessionFailure(ctx, log, err)
		} else {
			terminal = sessionCompleted{Status: consts.SessionStatusCompleted, Title: title}
		}
	}

	relay.Close()

	if err := relay.Wait(ctx); err != nil || relay.Failed() {
		log.InfoContext(ctx, "session gone before the terminal message", slog.Int64("dropped", relay.Dropped()))

		return false
	}

	return ro.writeMessage(ctx, log, conn, terminal)
}

func (ro *Router) sessionFailure(ctx context.Context, log *slog.Logger, err error) sessionError {
	log.WarnContext(ctx, "session download failed", slog.Any("error", err))

	return sessionError{
		Status:  consts.SessionStatusError,
		Message: errs.Public(err, consts.RespDownloadFailed),
	}
}

// writeMessage writes msg and reports whether the connection is still usable.
func (ro *Router) writeMessage(ctx context.Context, log *slog.Logger, conn *websocket.Conn, msg any) bool {
	if err := ro.write(ctx, conn, msg); err != nil {
		log.InfoContext(ctx, "session write failed", slog.Any("error", err))

		return false
	}

	return true
}

func (ro *Router) write(ctx context.Context, conn *websocket.Conn, msg any) error {
	ctx, cancel := context.WithTimeout(ctx, ro.cfg.Session.WriteTimeout)
	defer cancel()

	if err := wsjson.Write(ctx, conn, msg); err != nil {
		return fmt.Errorf("write session message: %w", err)
	}

	return nil
}

// lastBatch remembers the most recent batch snapshot of a playlist download.
type lastBatch struct {
	mu   sync.Mutex
	snap entity.BatchDownloadProgress
}

func (l *lastBatch) set(b entity.BatchDownloadProgress) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.snap = b
}

func (l *lastBatch) failed() []entity.FailedVideo {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.snap.FailedVideos == nil {
		return []entity.FailedVideo{}
	}

	return l.snap.FailedVideos
}
