package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vidflow/internal/config"
	"vidflow/internal/consts"
	"vidflow/internal/depmanager"
	"vidflow/internal/errs"
	"vidflow/internal/observability"
	"vidflow/internal/proxymgr"
	"vidflow/pkg/ptr"

	"github.com/lrstanley/go-ytdlp"
)

const (
	// movedPrefix marks the lines printed for every file moved into place.
	movedPrefix    = "moved:"
	printAfterMove = "after_move:" + movedPrefix + "%(filepath)s"
)

// Substrings of yt-dlp error output, lowercased.
var (
	notFoundMarkers = []string{
		"video unavailable",
		"http error 404",
		"does not exist",
		"has been removed",
		"private video",
		"this video is not available",
	}
	inaccessibleMarkers = []string{
		"unsupported url",
		"is not a valid url",
		"unable to download webpage",
		"name or service not known",
		"no such host",
		"failed to resolve",
		"connection refused",
		"http error 403",
	}
)

// YTdlp is an Engine backed by the yt-dlp binary.
type YTdlp struct {
	log      *slog.Logger
	cfg      *config.Config
	depMgr   *depmanager.Manager
	proxyMgr *proxymgr.Manager
	metrics  *observability.Metrics
}

// NewYTdlp creates a new yt-dlp engine. depMgr and proxyMgr may be nil.
func NewYTdlp(
	log *slog.Logger,
	cfg *config.Config,
	depMgr *depmanager.Manager,
	proxyMgr *proxymgr.Manager,
	metrics *observability.Metrics,
) *YTdlp {
	return &YTdlp{
		log:      log.With(slog.String("package", "engine"), slog.String("engine", consts.EngineYTdlp)),
		cfg:      cfg,
		depMgr:   depMgr,
		proxyMgr: proxyMgr,
		metrics:  metrics,
	}
}

// ExtractInfo runs yt-dlp in metadata-only mode and parses its JSON record.
func (e *YTdlp) ExtractInfo(ctx context.Context, url string, flat bool) (*Info, error) {
	command, proxyURL := e.command()

	command = command.SkipDownload().DumpSingleJSON()
	if flat {
		command = command.FlatPlaylist()
	} else {
		command = command.NoPlaylist()
	}

	res, err := command.Run(ctx, url)
	e.trackProxy(proxyURL, err)

	if err != nil {
		e.log.ErrorContext(ctx, "ytdlp extract info", slog.Any("error", err), slog.Any("result", Result{res}))

		return nil, e.classify(res, fmt.Errorf("ytdlp extract info: %w", err))
	}

	info, err := ParseInfo(res.Stdout)
	if err != nil {
		return nil, fmt.Errorf("parse ytdlp output: %w", err)
	}

	return info, nil
}

// Download runs yt-dlp with opts, translating its progress updates into Events for hook.
// Progress updates only cover the download phase, so once yt-dlp exits every
// file it moved into place after post-processing is reported as finished.
func (e *YTdlp) Download(ctx context.Context, url string, opts Options, hook Hook) error {
	log := e.log.With(slog.String("url", url))

	command, proxyURL := e.command()
	command = e.apply(command, opts).NoPlaylist().Print(printAfterMove)

	if hook != nil {
		command = command.ProgressFunc(e.cfg.Download.ProgressInterval, func(update ytdlp.ProgressUpdate) {
			log.DebugContext(ctx, "ytdlp progress", slog.Any("progress_update", ProgressUpdate{&update}))
			hook(toEvent(update))
		})
	}

	log.DebugContext(ctx, "ytdlp download", slog.Any("options", opts))

	res, err := command.Run(ctx, url)
	e.trackProxy(proxyURL, err)

	if err != nil {
		log.ErrorContext(ctx, "ytdlp download", slog.Any("error", err), slog.Any("result", Result{res}))

		return e.classify(res, fmt.Errorf("ytdlp download: %w", err))
	}

	log.DebugContext(ctx, "ytdlp download done", slog.Any("result", Result{res}))

	if hook == nil {
		return nil
	}

	for _, path := range MovedFiles(res.Stdout) {
		hook(movedEvent(path))
	}

	return nil
}

// MovedFiles returns the paths yt-dlp printed after moving its final files into place.
func MovedFiles(stdout string) []string {
	var paths []string

	scanner := bufio.NewScanner(strings.NewReader(stdout))
	for scanner.Scan() {
		path, ok := strings.CutPrefix(strings.TrimSpace(scanner.Text()), movedPrefix)
		if ok && path != "" && path != "NA" {
			paths = append(paths, path)
		}
	}

	return paths
}

func movedEvent(path string) Event {
	event := Event{Status: StatusFinished, Filename: path}

	if fi, err := os.Stat(path); err == nil {
		event.TotalBytes = fi.Size()
	}

	return event
}

func (e *YTdlp) command() (*ytdlp.Command, string) {
	command := ytdlp.New().
		CacheDir(e.cfg.Dir.Cache).
		NoWarnings()

	if e.depMgr != nil {
		if path := e.depMgr.GetInstalledPath(depmanager.BinaryYTdlp); path != "" {
			command = command.SetExecutable(path)
		}

		if path := e.depMgr.GetInstalledPath(depmanager.BinaryFFmpeg); path != "" {
			command = command.FFmpegLocation(filepath.Dir(path))
		}
	}

	if e.cfg.Dir.CookieFile != "" {
		command = command.Cookies(e.cfg.Dir.CookieFile)
	}

	if e.proxyMgr == nil || e.proxyMgr.Len() == 0 {
		return command, ""
	}

	proxyURL, err := e.proxyMgr.Pick()
	if err != nil {
		e.log.Warn("running without proxy", slog.Any("error", err))

		return command, ""
	}

	return command.Proxy(proxyURL), proxyURL
}

func (e *YTdlp) apply(command *ytdlp.Command, opts Options) *ytdlp.Command {
	if opts.Format != "" {
		command = command.Format(opts.Format)
	}

	if opts.MergeOutputFormat != "" {
		command = command.MergeOutputFormat(opts.MergeOutputFormat)
	}

	if opts.RecodeVideo != "" {
		command = command.RecodeVideo(opts.RecodeVideo)
	}

	if opts.PostProcessorArgs != "" {
		command = command.PostProcessorArgs(opts.PostProcessorArgs)
	}

	if opts.ExtractAudio {
		command = command.ExtractAudio().
			AudioFormat(opts.AudioFormat).
			AudioQuality(opts.AudioQuality)
	}

	if opts.KeepIntermediate {
		command = command.KeepVideo()
	} else {
		command = command.NoKeepVideo()
	}

	if opts.Sections != "" {
		command = command.DownloadSections(opts.Sections)
	}

	if opts.ForceKeyframesAtCuts {
		command = command.ForceKeyframesAtCuts()
	}

	if opts.OutputTemplate != "" {
		command = command.Output(opts.OutputTemplate)
	}

	return command
}

func (e *YTdlp) trackProxy(proxyURL string, err error) {
	if e.proxyMgr == nil || proxyURL == "" {
		return
	}

	if errors.Is(err, context.Canceled) {
		return
	}

	e.proxyMgr.Report(proxyURL, err)
}

func (e *YTdlp) classify(res *ytdlp.Result, err error) error {
	var stderr string
	if res != nil {
		stderr = res.Stderr
	}

	classified := Classify(stderr, err)

	e.metrics.RecordEngineError(consts.EngineYTdlp, errorType(classified))

	return classified
}

// Classify wraps err with the most specific error kind its output indicates.
func Classify(stderr string, err error) error {
	if err == nil {
		return nil
	}

	msg := strings.ToLower(stderr + "\n" + err.Error())

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case containsAny(msg, notFoundMarkers):
		return fmt.Errorf("%w: %w", errs.ErrNotFound, err)
	case containsAny(msg, inaccessibleMarkers):
		return fmt.Errorf("%w: %w", errs.ErrInaccessible, err)
	default:
		return err
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, errs.ErrNotFound):
		return "not_found"
	case errors.Is(err, errs.ErrInaccessible):
		return "inaccessible"
	default:
		return "process"
	}
}

func containsAny(s string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(s, marker) {
			return true
		}
	}

	return false
}

func toEvent(update ytdlp.ProgressUpdate) Event {
	event := Event{
		Status:          string(update.Status),
		Filename:        update.Filename,
		DownloadedBytes: int64(update.DownloadedBytes),
		TotalBytes:      int64(update.TotalBytes),
		FragmentIndex:   update.FragmentIndex,
		FragmentCount:   update.FragmentCount,
	}

	if update.Info != nil {
		event.VideoID = update.Info.ID
		event.Title = ptr.Deref(update.Info.Title)
	}

	if !update.Started.IsZero() {
		if elapsed := time.Since(update.Started).Seconds(); elapsed > 0 {
			event.Speed = float64(update.DownloadedBytes) / elapsed
		}
	}

	if eta := update.ETA(); eta > 0 {
		event.ETA = int(eta.Seconds())
	}

	return event
}
