// entry point of the application
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"vidflow/internal/config"
	"vidflow/internal/consts"
	"vidflow/internal/depmanager"
	"vidflow/internal/downloader"
	"vidflow/internal/engine"
	httprouter "vidflow/internal/infrastructure/delivery/http"
	"vidflow/internal/observability"
	"vidflow/internal/proxymgr"
	"vidflow/internal/service"
	"vidflow/internal/storage"
	httpserver "vidflow/pkg/http/server"
	"vidflow/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
)

const dirPerm = 0o755

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.New()
	if err != nil {
		slog.Error("config new", slog.Any("error", err))
		stop()
		os.Exit(1)
	}

	log, err := logger.New(&logger.Options{
		AddSource: true,
		Level:     cfg.App.LogLevel,
		Format:    cfg.App.LogFormat,
	})
	if err != nil {
		slog.WarnContext(ctx, "logger level invalid; defaulting to info", slog.Any("error", err))
	}

	for _, dir := range []string{cfg.Dir.Downloads, cfg.Dir.Cache} {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			log.ErrorContext(ctx, "create directory", slog.String("dir", dir), slog.Any("error", err))
			stop()
			os.Exit(1)
		}
	}

	metrics := observability.New(prometheus.DefaultRegisterer)

	eng := newEngine(ctx, log, cfg, metrics)

	dl := downloader.New(log, cfg, eng, metrics)
	storer := storage.New(ctx, log, cfg, metrics)

	svc := service.New(cfg, log, dl, storer, metrics)
	svc.Start(ctx)

	router := httprouter.New(log, cfg, svc, dl, metrics)

	httpSrv := httpserver.New(router, httpserver.Options{
		Addr:            cfg.HTTP.Port,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
	})

	log.InfoContext(ctx, "vidflow started", slog.String("port", cfg.HTTP.Port), slog.String("engine", cfg.App.Engine))

	select {
	case <-ctx.Done():
	case err := <-httpSrv.Notify():
		log.ErrorContext(ctx, "http server", slog.Any("error", err))
		stop()
	}

	err = httpSrv.Shutdown()
	if err != nil {
		log.Error("http server shutdown", slog.Any("error", err))
	}

	svc.Wait()

	log.Info("vidflow shut down gracefully")
}

func newEngine(ctx context.Context, log *slog.Logger, cfg *config.Config, metrics *observability.Metrics) engine.Engine {
	if cfg.App.Engine == consts.EngineMock {
		log.WarnContext(ctx, "using mock engine, downloads are simulated")

		return engine.NewMock(log)
	}

	depMgr := depmanager.New(log, cfg)

	log.InfoContext(ctx, "checking if yt-dlp and ffmpeg are installed. it may take some time...")

	depMgr.Start(ctx)

	// nil when no proxies are configured
	var proxyMgr *proxymgr.Manager
	if len(cfg.Proxy.Proxies) > 0 {
		proxyMgr = proxymgr.New(log, cfg, metrics)
		proxyMgr.StartHealthChecker(ctx)

		log.InfoContext(ctx, "proxy manager initialized", slog.Int("proxy_count", proxyMgr.Len()))
	}

	return engine.NewYTdlp(log, cfg, depMgr, proxyMgr, metrics)
}
