package downloader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"vidflow/internal/entity"
	"vidflow/internal/errs"
)

// Download fetches a single item and returns its title. Progress is reported
// to onProgress, which may be nil, and stops once Download returns.
//
// The item is resolved first to obtain a stable identifier; resolution errors
// are returned as is. Failures of the download phase wrap ErrDownloadFailed.
func (d *Downloader) Download(ctx context.Context, req Request, onProgress ProgressFunc) (string, error) {
	if err := req.Range.Validate(); err != nil {
		return "", err
	}

	mode := req.mode()
	defer d.metrics.DownloadTimer(mode)()

	title, err := d.download(ctx, req, onProgress)
	if err != nil {
		d.metrics.RecordDownloadFailed(mode, failureType(err))
		d.log.ErrorContext(ctx, "download failed", slog.Any("request", req), slog.Any("error", err))

		return "", err
	}

	d.metrics.RecordDownloadCompleted(mode)
	d.log.InfoContext(ctx, "download completed", slog.Any("request", req), slog.String("title", title))

	return title, nil
}

func (d *Downloader) download(ctx context.Context, req Request, onProgress ProgressFunc) (string, error) {
	info, err := d.engine.ExtractInfo(ctx, req.URL, false)
	if err != nil {
		return "", fmt.Errorf("resolve video id: %w", err)
	}

	if info == nil {
		return "", errs.ErrNotFound
	}

	if info.ID == "" {
		return "", errs.ErrIDResolutionFailed
	}

	if onProgress == nil {
		onProgress = func(entity.DownloadProgress) {}
	}

	lst := newListener(d.log, d.metrics, info.ID, info.Title, d.finalExt(req), onProgress)
	defer lst.detach()

	opts := d.options(req, info)
	d.log.DebugContext(ctx, "starting download", slog.String("video_id", info.ID), slog.Any("options", opts))

	done := make(chan error, 1)

	go func() {
		done <- d.engine.Download(ctx, req.URL, opts, lst.hook)
	}()

	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	if err != nil {
		return "", fmt.Errorf("%w: %w", errs.ErrDownloadFailed, err)
	}

	return info.Title, nil
}

func failureType(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, errs.ErrNotFound):
		return "not_found"
	case errors.Is(err, errs.ErrInaccessible):
		return "inaccessible"
	case errors.Is(err, errs.ErrIDResolutionFailed):
		return "id_resolution"
	default:
		return "download"
	}
}
