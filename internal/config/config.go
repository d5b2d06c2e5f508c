// Package config handles application configuration loading and management.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the application configuration.
type Config struct {
	HTTP       HTTP
	App        App
	Job        Job
	Dir        Dir
	Download   Download
	Session    Session
	Storage    Storage
	DepManager DepManager
	Proxy      Proxy
}

// App holds application-wide configuration.
type App struct {
	LogLevel string `env:"VIDFLOW_APP_LOG_LEVEL"  envDefault:"info"`
	// LogFormat is "json" or "text".
	LogFormat string `env:"VIDFLOW_APP_LOG_FORMAT" envDefault:"json"`
	// Engine selects the extraction engine: "ytdlp" or "mock".
	Engine string `env:"VIDFLOW_APP_ENGINE" envDefault:"ytdlp"`
}

// Job holds background download processing configuration.
type Job struct {
	Workers   int           `env:"VIDFLOW_JOB_WORKERS"    envDefault:"2"`
	Timeout   time.Duration `env:"VIDFLOW_JOB_TIMEOUT"    envDefault:"30m"`
	QueueSize int           `env:"VIDFLOW_JOB_QUEUE_SIZE" envDefault:"100"`
}

// Storage holds in-memory job retention configuration.
type Storage struct {
	TTL             time.Duration `env:"VIDFLOW_STORAGE_TTL"              envDefault:"168h"`
	CleanupInterval time.Duration `env:"VIDFLOW_STORAGE_CLEANUP_INTERVAL" envDefault:"1h"`
}

// HTTP holds HTTP server configuration.
type HTTP struct {
	Port            string        `env:"VIDFLOW_HTTP_PORT"             envDefault:":8000"`
	HandlerTimeout  time.Duration `env:"VIDFLOW_HTTP_HANDLER_TIMEOUT"  envDefault:"2m"`
	ShutdownTimeout time.Duration `env:"VIDFLOW_HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	AllowedOrigins []string `env:"VIDFLOW_HTTP_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:5173,http://127.0.0.1:5173,http://localhost:5174,http://127.0.0.1:5174"` //nolint:lll

	// RateLimit is the sustained requests per second allowed on /api/, 0 disables limiting.
	RateLimit float64 `env:"VIDFLOW_HTTP_RATE_LIMIT" envDefault:"10"`
	RateBurst int     `env:"VIDFLOW_HTTP_RATE_BURST" envDefault:"20"`
}

// Dir holds directory paths for downloads, cache, and cookie file.
type Dir struct {
	Downloads string `env:"VIDFLOW_DIR_DOWNLOAD" envDefault:"./data/downloads"` // downloads stored and served from here
	Cache     string `env:"VIDFLOW_DIR_CACHE"    envDefault:"./data/cache"`     // yt-dlp cache (meta, sigs)

	// must contain cookies.txt file
	// see: https://github.com/yt-dlp/yt-dlp/wiki/FAQ#how-do-i-pass-cookies-to-yt-dlp
	CookieFile string `env:"VIDFLOW_DIR_COOKIE_FILE" envDefault:""`

	// see: https://github.com/yt-dlp/yt-dlp/blob/2025.09.05/README.md#output-template
	FilenameTemplate string `env:"VIDFLOW_DIR_FILENAME_TEMPLATE" envDefault:"%(title)s.%(ext)s"`
}

// Download holds the engine options applied by the orchestrator.
type Download struct {
	// Container is the canonical container video mode merges and normalizes to.
	Container    string `env:"VIDFLOW_DOWNLOAD_CONTAINER"     envDefault:"mp4"`
	MaxHeight    int    `env:"VIDFLOW_DOWNLOAD_MAX_HEIGHT"    envDefault:"1080"`
	AudioCodec   string `env:"VIDFLOW_DOWNLOAD_AUDIO_CODEC"   envDefault:"mp3"`
	AudioQuality string `env:"VIDFLOW_DOWNLOAD_AUDIO_QUALITY" envDefault:"192"`
	// MergeAudioCodec is the codec the audio stream is re-encoded to while merging.
	MergeAudioCodec string `env:"VIDFLOW_DOWNLOAD_MERGE_AUDIO_CODEC" envDefault:"aac"`
	// KeepIntermediate retains the pre-merge video file in video mode.
	KeepIntermediate bool `env:"VIDFLOW_DOWNLOAD_KEEP_INTERMEDIATE" envDefault:"false"`
	// ProgressInterval is passed to the engine as its progress emission cadence.
	ProgressInterval time.Duration `env:"VIDFLOW_DOWNLOAD_PROGRESS_INTERVAL" envDefault:"100ms"`
}

// Session holds live download session configuration.
type Session struct {
	BufferSize   int           `env:"VIDFLOW_SESSION_BUFFER_SIZE"   envDefault:"64"`
	WriteTimeout time.Duration `env:"VIDFLOW_SESSION_WRITE_TIMEOUT" envDefault:"5s"`
	// DownloadTimeout bounds a single session request, it is not tied to the connection.
	DownloadTimeout time.Duration `env:"VIDFLOW_SESSION_DOWNLOAD_TIMEOUT" envDefault:"2h"`
}

// SetAbsPaths converts all directory paths to absolute paths.
func (c *Dir) SetAbsPaths() error {
	var err error
	if c.Downloads, err = filepath.Abs(c.Downloads); err != nil {
		return fmt.Errorf("downloads: %w", err)
	}

	if c.Cache, err = filepath.Abs(c.Cache); err != nil {
		return fmt.Errorf("cache: %w", err)
	}

	if c.CookieFile != "" {
		if c.CookieFile, err = filepath.Abs(c.CookieFile); err != nil {
			return fmt.Errorf("cookie file: %w", err)
		}
	}

	if c.FilenameTemplate, err = filepath.Abs(filepath.Join(c.Downloads, c.FilenameTemplate)); err != nil {
		return fmt.Errorf("filename template: %w", err)
	}

	return nil
}

// New loads configuration from environment variables.
func New() (*Config, error) {
	cfg := &Config{}

	err := env.Parse(cfg)
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	err = cfg.Dir.SetAbsPaths()
	if err != nil {
		return nil, fmt.Errorf("set absolute paths: %w", err)
	}

	err = cfg.DepManager.SetAbsPaths()
	if err != nil {
		return nil, fmt.Errorf("set dep manager absolute paths: %w", err)
	}

	cfg.Proxy.parseList()

	return cfg, nil
}

// DepManager holds binary dependency management configuration.
type DepManager struct {
	// BinsDir is the directory where binaries are stored
	BinsDir string `env:"VIDFLOW_DEPMANAGER_BINS_DIR" envDefault:"./bins"`
	// UseSystemBinaries indicates whether to use system-installed binaries or download them.
	UseSystemBinaries bool `env:"VIDFLOW_DEPMANAGER_USE_SYSTEM_BINARIES" envDefault:"false"`
	// UpdateInterval is how often published checksums are compared with installed ones, 0 disables it.
	UpdateInterval time.Duration `env:"VIDFLOW_DEPMANAGER_UPDATE_INTERVAL" envDefault:"24h"`

	// Published SHA256 sums, used only to detect new releases.
	YTdlpSHA256SumsURL  string `env:"VIDFLOW_DEPMANAGER_YTDLP_SHA256SUMS_URL"  envDefault:"https://github.com/yt-dlp/yt-dlp/releases/latest/download/SHA2-256SUMS"`                 //nolint:lll
	FFmpegSHA256SumsURL string `env:"VIDFLOW_DEPMANAGER_FFMPEG_SHA256SUMS_URL" envDefault:"https://github.com/BtbN/FFmpeg-Builds/releases/latest/download/checksums.sha256"` //nolint:lll

	// ffmpeg binary URLs per platform.
	FFmpegLinuxARM64 string `env:"VIDFLOW_DEPMANAGER_FFMPEG_LINUX_ARM64" envDefault:"https://github.com/BtbN/FFmpeg-Builds/releases/latest/download/ffmpeg-master-latest-linuxarm64-gpl.tar.xz"` //nolint:lll
	FFmpegLinuxAMD64 string `env:"VIDFLOW_DEPMANAGER_FFMPEG_LINUX_AMD64" envDefault:"https://github.com/BtbN/FFmpeg-Builds/releases/latest/download/ffmpeg-master-latest-linux64-gpl.tar.xz"`    //nolint:lll

	// yt-dlp binary URLs per platform.
	YTdlpLinuxARM64 string `env:"VIDFLOW_DEPMANAGER_YTDLP_LINUX_ARM64" envDefault:"https://github.com/yt-dlp/yt-dlp/releases/latest/download/yt-dlp_linux_aarch64"` //nolint:lll
	YTdlpLinuxAMD64 string `env:"VIDFLOW_DEPMANAGER_YTDLP_LINUX_AMD64" envDefault:"https://github.com/yt-dlp/yt-dlp/releases/latest/download/yt-dlp_linux"`         //nolint:lll
}

// SetAbsPaths converts the BinsDir path to an absolute path.
func (d *DepManager) SetAbsPaths() error {
	var err error
	if d.BinsDir, err = filepath.Abs(d.BinsDir); err != nil {
		return fmt.Errorf("bins dir: %w", err)
	}

	return nil
}

// Proxy holds proxy configuration for engine requests.
type Proxy struct {
	// List is a comma-separated list of proxy URLs in socks5h format
	List string `env:"VIDFLOW_PROXY_LIST" envDefault:""`
	// HealthCheckInterval is how often to check proxy health
	HealthCheckInterval time.Duration `env:"VIDFLOW_PROXY_HEALTH_CHECK_INTERVAL" envDefault:"5m"`
	// FailureBackoff is the initial backoff duration for failed proxies
	FailureBackoff time.Duration `env:"VIDFLOW_PROXY_FAILURE_BACKOFF" envDefault:"1m"`
	// MaxFailures is the maximum number of failures before a proxy is temporarily removed
	MaxFailures int `env:"VIDFLOW_PROXY_MAX_FAILURES" envDefault:"3"`

	// Proxies is the parsed list of proxy URLs
	Proxies []string `env:"-"`
}

// parseList parses the comma-separated proxy list.
func (p *Proxy) parseList() {
	if p.List == "" {
		return
	}

	for proxy := range strings.SplitSeq(p.List, ",") {
		proxy = strings.TrimSpace(proxy)
		if proxy != "" {
			p.Proxies = append(p.Proxies, proxy)
		}
	}
}
