// Package httprouter exposes the service over HTTP and websocket.
package httprouter

import (
	"log/slog"
	"net/http"
	"net/url"
	"slices"

	"vidflow/internal/config"
	"vidflow/internal/downloader"
	"vidflow/internal/infrastructure/delivery/http/middleware"
	"vidflow/internal/observability"
	"vidflow/internal/service"

	"nhooyr.io/websocket"
)

type Router struct {
	*http.ServeMux
	log         *slog.Logger
	cfg         *config.Config
	globalChain []func(http.Handler) http.Handler
	routeChain  []func(http.Handler) http.Handler
	isSubRouter bool
	svc         service.Job
	dl          *downloader.Downloader
	metrics     *observability.Metrics
	acceptOpts  *websocket.AcceptOptions
}

// New creates the root router with every route and middleware registered.
func New(log *slog.Logger, cfg *config.Config, svc service.Job, dl *downloader.Downloader,
	metrics *observability.Metrics,
) *Router {
	r := &Router{
		ServeMux:   http.NewServeMux(),
		log:        log.With(slog.String("package", "httprouter")),
		cfg:        cfg,
		svc:        svc,
		dl:         dl,
		metrics:    metrics,
		acceptOpts: acceptOptions(cfg.HTTP.AllowedOrigins),
	}

	r.SetGlobalMiddlewares()
	r.SetRoutes()

	return r
}

func (r *Router) Use(middleware ...func(http.Handler) http.Handler) {
	if r.isSubRouter {
		r.routeChain = append(r.routeChain, middleware...)
	} else {
		r.globalChain = append(r.globalChain, middleware...)
	}
}

func (r *Router) Group(fn func(r *Router)) {
	subRouter := &Router{
		isSubRouter: true,
		routeChain:  slices.Clone(r.routeChain),
		ServeMux:    r.ServeMux,
	}

	fn(subRouter)
}

func (r *Router) HandleFunc(pattern string, h http.HandlerFunc) {
	r.Handle(pattern, h)
}

func (r *Router) Handle(pattern string, h http.Handler) {
	for _, middleware := range slices.Backward(r.routeChain) {
		h = middleware(h)
	}

	r.ServeMux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	var h http.Handler = r.ServeMux

	for _, middleware := range slices.Backward(r.globalChain) {
		h = middleware(h)
	}

	h.ServeHTTP(w, req)
}

func (r *Router) SetGlobalMiddlewares() {
	r.Use(
		middleware.Recoverer,
		middleware.RequestID,
		middleware.Logger,
		middleware.Metrics(r.metrics),
		middleware.CORS(r.cfg.HTTP.AllowedOrigins),
	)
}

func (r *Router) SetRoutes() {
	r.SetRoutesHealthcheck()
	r.SetRoutesAPI()
	r.SetRoutesFiles()
}

func (r *Router) SetRoutesHealthcheck() {
	healthcheckRouter := &Router{
		ServeMux: http.NewServeMux(),
	}
	healthcheckRouter.HandleFunc("GET /readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Handle("/v1/", http.StripPrefix("/v1", healthcheckRouter))
	r.Handle("GET /metrics", observability.Handler())
}

func (ro *Router) SetRoutesAPI() {
	apiRouter := &Router{
		ServeMux: http.NewServeMux(),
	}

	apiRouter.Group(func(r *Router) {
		r.Use(middleware.RateLimit(ro.cfg.HTTP.RateLimit, ro.cfg.HTTP.RateBurst))

		r.HandleFunc("GET /video/info", ro.VideoInfo)
		r.HandleFunc("GET /playlist/info", ro.PlaylistInfo)
		r.HandleFunc("POST /download", ro.Enqueue)
		r.HandleFunc("GET /download/", ro.GetJobs)
		r.HandleFunc("GET /download/{id}", ro.GetJob)
		r.HandleFunc("DELETE /download/{id}", ro.CancelJob)
	})

	apiRouter.HandleFunc("GET /ws/download", ro.DownloadSession)

	ro.Handle("/api/", http.StripPrefix("/api", apiRouter))
}

func (ro *Router) SetRoutesFiles() {
	files := http.FileServer(http.Dir(ro.cfg.Dir.Downloads))

	ro.Handle("GET /downloads/", http.StripPrefix("/downloads", files))
}

// acceptOptions maps allowed origins onto websocket origin host patterns.
func acceptOptions(origins []string) *websocket.AcceptOptions {
	opts := &websocket.AcceptOptions{}

	for _, origin := range origins {
		if origin == "*" {
			opts.InsecureSkipVerify = true

			continue
		}

		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			continue
		}

		opts.OriginPatterns = append(opts.OriginPatterns, u.Host)
	}

	return opts
}
