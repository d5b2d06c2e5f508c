package downloader

import (
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"vidflow/internal/engine"
	"vidflow/internal/entity"
	"vidflow/internal/observability"
	"vidflow/pkg/ptr"
)

// Outcomes recorded for every engine event.
const (
	outcomeDelivered  = "delivered"
	outcomeSuppressed = "suppressed"
	outcomeDetached   = "detached"
	outcomeIgnored    = "ignored"
)

// partialExts mark files still being written by the engine.
var partialExts = map[string]struct{}{
	".part": {},
	".ytdl": {},
}

// formatSuffix matches per-format stream files such as "name.f137.mp4".
var formatSuffix = regexp.MustCompile(`\.f\d+\.[A-Za-z0-9]+$`)

// isIntermediate reports whether filename is not the finished artifact of a
// download whose output carries finalExt. Only a file with the final extension
// and no per-format suffix is final. An empty finalExt accepts any complete file.
func isIntermediate(filename, finalExt string) bool {
	if strings.HasSuffix(filename, ".f") || formatSuffix.MatchString(filename) {
		return true
	}

	ext := filepath.Ext(filename)
	if _, ok := partialExts[strings.ToLower(ext)]; ok {
		return true
	}

	if finalExt == "" {
		return false
	}

	return !strings.EqualFold(ext, "."+finalExt)
}

// listener is the progress scope of exactly one download. It translates engine
// events into DownloadProgress for its own callback only. After detach every
// event is dropped.
type listener struct {
	log     *slog.Logger
	metrics *observability.Metrics

	videoID  string
	title    string
	finalExt string

	mu       sync.Mutex
	fn       ProgressFunc
	finished bool
}

func newListener(log *slog.Logger, metrics *observability.Metrics, videoID, title, finalExt string,
	fn ProgressFunc,
) *listener {
	return &listener{
		log:      log.With(slog.String("video_id", videoID)),
		metrics:  metrics,
		videoID:  videoID,
		title:    title,
		finalExt: finalExt,
		fn:       fn,
	}
}

// hook is handed to the engine. A panicking callback is contained here and
// never reaches the engine.
func (l *listener) hook(ev engine.Event) {
	defer func() {
		if r := recover(); r != nil {
			l.metrics.RecordHookFault()
			l.log.Error("progress hook panicked", slog.Any("panic", r), slog.Any("event", ev))
		}
	}()

	progress, fn, outcome := l.translate(ev)
	l.metrics.RecordProgressEvent(ev.Status, outcome)

	if outcome != outcomeDelivered {
		return
	}

	fn(progress)
}

func (l *listener) translate(ev engine.Event) (entity.DownloadProgress, ProgressFunc, string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fn == nil {
		return entity.DownloadProgress{}, nil, outcomeDetached
	}

	progress := entity.DownloadProgress{
		VideoID:  l.videoID,
		Title:    l.title,
		Filename: ev.Filename,
	}

	if ev.Title != "" {
		progress.Title = ev.Title
	}

	switch ev.Status {
	case engine.StatusDownloading:
		progress.Status = entity.ProgressStatusDownloading
		progress.DownloadedBytes = ptr.Of(ev.DownloadedBytes)
		progress.TotalBytes = ptr.Positive(ev.TotalBytes)
		progress.Speed = ptr.Positive(ev.Speed)
		progress.ETA = ptr.Positive(ev.ETA)

		if ev.FragmentCount > 0 {
			progress.FragmentIndex = ptr.Of(ev.FragmentIndex)
			progress.FragmentCount = ptr.Of(ev.FragmentCount)
		}
	case engine.StatusFinished:
		if l.finished || isIntermediate(ev.Filename, l.finalExt) {
			return entity.DownloadProgress{}, nil, outcomeSuppressed
		}

		l.finished = true
		progress.Status = entity.ProgressStatusFinished
		progress.TotalBytes = ptr.Positive(ev.TotalBytes)
	case engine.StatusError:
		progress.Status = entity.ProgressStatusError
		progress.Error = "engine reported an error"
	default:
		return entity.DownloadProgress{}, nil, outcomeIgnored
	}

	return progress, l.fn, outcomeDelivered
}

// detach disconnects the callback. It is safe to call more than once.
func (l *listener) detach() {
	l.mu.Lock()
	l.fn = nil
	l.mu.Unlock()
}

