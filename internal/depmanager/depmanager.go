// Package depmanager provides the external binaries the engine drives:
// yt-dlp and ffmpeg/ffprobe. They are either looked up on PATH or downloaded
// into a bins directory and refreshed when new releases are published.
// Checksums are used only to detect new releases, not to verify downloads.
package depmanager

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"vidflow/internal/config"
	"vidflow/internal/errs"
)

// BinaryName represents the name of a binary dependency.
type BinaryName string

// Binary dependency names.
const (
	BinaryYTdlp   BinaryName = "yt-dlp"
	BinaryFFmpeg  BinaryName = "ffmpeg"
	BinaryFFprobe BinaryName = "ffprobe"
)

// Platform operating system names and architectures.
const (
	platformLinux   = "linux"
	platformWindows = "windows"
	archARM64       = "arm64"
	archAMD64       = "amd64"
)

const (
	// downloadTimeout is the HTTP client timeout for downloading binaries.
	downloadTimeout = 10 * time.Minute
	// filePermExecutable is the file permission for executable binaries.
	filePermExecutable = 0o755
	// filePermReadWrite is the file permission for regular files.
	filePermReadWrite = 0o644
	// savedSumsFilename is the filename for saved checksums.
	savedSumsFilename = ".sha256sums.json"
)

// Platform represents the OS and architecture combination.
type Platform struct {
	OS   string
	Arch string
}

// String returns the platform string in format "os/arch".
func (p Platform) String() string {
	return p.OS + "/" + p.Arch
}

// dependency is one downloadable release asset and the binaries it provides.
type dependency struct {
	name BinaryName
	// provides lists the binaries installed from the asset.
	provides []BinaryName
	// assets maps a platform to the asset name as listed in the published sums.
	assets map[string]string
	// urls maps a platform to the download URL.
	urls map[string]string
}

func (d dependency) asset(p Platform) string {
	if asset, ok := d.assets[p.String()]; ok {
		return asset
	}

	return string(d.name)
}

func (d dependency) url(p Platform) string {
	if url := d.urls[p.String()]; url != "" {
		return url
	}

	return d.urls[platformLinux+"/"+archAMD64]
}

// Manager manages binary dependencies.
type Manager struct {
	log      *slog.Logger
	cfg      *config.Config
	platform Platform
	client   *http.Client
	deps     []dependency

	mu        sync.RWMutex
	shaSums   map[string]string     // asset -> sha256 hash (fetched from remote)
	savedSums map[string]string     // asset -> sha256 hash (saved from previous run)
	binPaths  map[BinaryName]string // binary name -> installed path

	isUpdating atomic.Bool
}

// New creates a new dependency manager.
func New(log *slog.Logger, cfg *config.Config) *Manager {
	m := &Manager{
		log: log.With(slog.String("package", "depmanager")),
		cfg: cfg,
		platform: Platform{
			OS:   runtime.GOOS,
			Arch: runtime.GOARCH,
		},
		client: &http.Client{
			Timeout: downloadTimeout,
		},
		shaSums:   make(map[string]string),
		savedSums: make(map[string]string),
		binPaths:  make(map[BinaryName]string),
	}

	m.deps = dependencies(cfg.DepManager)

	return m
}

func dependencies(cfg config.DepManager) []dependency {
	linuxARM64 := platformLinux + "/" + archARM64
	linuxAMD64 := platformLinux + "/" + archAMD64

	return []dependency{
		{
			name:     BinaryFFmpeg,
			provides: []BinaryName{BinaryFFmpeg, BinaryFFprobe},
			assets: map[string]string{
				linuxARM64: "ffmpeg-master-latest-linuxarm64-gpl.tar.xz",
				linuxAMD64: "ffmpeg-master-latest-linux64-gpl.tar.xz",
			},
			urls: map[string]string{
				linuxARM64: cfg.FFmpegLinuxARM64,
				linuxAMD64: cfg.FFmpegLinuxAMD64,
			},
		},
		{
			name:     BinaryYTdlp,
			provides: []BinaryName{BinaryYTdlp},
			assets: map[string]string{
				linuxARM64: "yt-dlp_linux_aarch64",
				linuxAMD64: "yt-dlp_linux",
			},
			urls: map[string]string{
				linuxARM64: cfg.YTdlpLinuxARM64,
				linuxAMD64: cfg.YTdlpLinuxAMD64,
			},
		},
	}
}

// Start initializes the dependency manager.
func (m *Manager) Start(ctx context.Context) {
	if !m.cfg.DepManager.UseSystemBinaries {
		m.MustInstallAll(ctx)

		m.StartUpdateChecker(ctx)

		return
	}

	m.MustSetSystemBinaries(ctx)
}

// MustSetSystemBinaries sets system binaries if needed.
// Panics if any binary cannot be set.
func (m *Manager) MustSetSystemBinaries(ctx context.Context) {
	if err := m.SetSystemBinaries(); err != nil {
		m.log.ErrorContext(ctx, "failed to set system binaries", slog.Any("error", err))
		panic(fmt.Sprintf("depmanager: failed to set system binaries: %v", err))
	}
}

// SetSystemBinaries sets system binaries by looking them up in the system PATH.
func (m *Manager) SetSystemBinaries() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, dep := range m.deps {
		for _, binary := range dep.provides {
			path, err := exec.LookPath(string(binary))
			if err != nil {
				return fmt.Errorf("%w: %s not in PATH: %w", errs.ErrBinaryNotFound, binary, err)
			}

			m.binPaths[binary] = path
		}
	}

	return nil
}

// MustInstallAll downloads all required binaries if needed.
// Panics if any binary cannot be installed.
func (m *Manager) MustInstallAll(ctx context.Context) {
	if err := m.InstallAll(ctx); err != nil {
		m.log.ErrorContext(ctx, "failed to install all binaries", slog.Any("error", err))
		panic(fmt.Sprintf("depmanager: failed to install all binaries: %v", err))
	}
}

// InstallAll downloads the binaries that are missing from the bins directory.
func (m *Manager) InstallAll(ctx context.Context) error {
	log := m.log

	if m.platform.OS != platformLinux {
		return fmt.Errorf("%w: %s, use system binaries instead", errs.ErrUnsupportedPlatform, m.platform)
	}

	err := os.MkdirAll(m.cfg.DepManager.BinsDir, filePermExecutable)
	if err != nil {
		return fmt.Errorf("create bins directory: %w", err)
	}

	err = m.loadSavedSums()
	if err != nil {
		log.DebugContext(ctx, "no saved checksums found, first run", slog.Any("error", err))
	}

	for _, dep := range m.deps {
		if m.isInstalled(dep) {
			m.setBinaryPaths(dep.provides...)
			log.DebugContext(ctx, "binary already exists", slog.String("binary", string(dep.name)))

			continue
		}

		err = m.downloadAndInstall(ctx, dep)
		if err != nil {
			return fmt.Errorf("download and install %s: %w", dep.name, err)
		}
	}

	log.InfoContext(ctx, "all binaries are installed", slog.Any("binaries", m.installed()))

	err = m.FetchSHASums(ctx)
	if err != nil {
		log.WarnContext(ctx, "failed to fetch checksums", slog.Any("error", err))

		return nil
	}

	err = m.saveSums()
	if err != nil {
		log.WarnContext(ctx, "failed to save checksums", slog.Any("error", err))
	}

	return nil
}

// GetBinaryPath returns the path a binary has inside the bins directory.
func (m *Manager) GetBinaryPath(name BinaryName) string {
	filename := string(name)
	if m.platform.OS == platformWindows {
		filename += ".exe"
	}

	return filepath.Join(m.cfg.DepManager.BinsDir, filename)
}

// GetInstalledPath returns the installed path for a binary, or empty if not
// installed. It is safe to call on a nil Manager.
func (m *Manager) GetInstalledPath(name BinaryName) string {
	if m == nil {
		return ""
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.binPaths[name]
}

func (m *Manager) installed() map[BinaryName]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return maps.Clone(m.binPaths)
}

// StartUpdateChecker periodically compares published checksums with the saved
// ones and reinstalls binaries whose release changed.
func (m *Manager) StartUpdateChecker(ctx context.Context) {
	if m.cfg.DepManager.UpdateInterval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(m.cfg.DepManager.UpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.checkAndUpdate(ctx)
			}
		}
	}()
}

// checkAndUpdate checks for updates and downloads new versions if available.
func (m *Manager) checkAndUpdate(ctx context.Context) {
	if !m.isUpdating.CompareAndSwap(false, true) {
		return
	}
	defer m.isUpdating.Store(false)

	log := m.log

	err := m.FetchSHASums(ctx)
	if err != nil {
		log.WarnContext(ctx, "update check: failed to fetch checksums", slog.Any("error", err))

		return
	}

	updates := m.findUpdates()
	if len(updates) == 0 {
		log.DebugContext(ctx, "update check: no updates available")

		return
	}

	for _, dep := range updates {
		if err := m.downloadAndInstall(ctx, dep); err != nil {
			log.ErrorContext(ctx, "update check: failed to update binary",
				slog.String("binary", string(dep.name)), slog.Any("error", err))

			continue
		}

		log.InfoContext(ctx, "update check: binary updated", slog.String("binary", string(dep.name)))
	}

	if err := m.saveSums(); err != nil {
		log.WarnContext(ctx, "update check: failed to save checksums", slog.Any("error", err))
	}
}

// findUpdates returns the dependencies whose published checksum differs from the saved one.
func (m *Manager) findUpdates() []dependency {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var updates []dependency

	for _, dep := range m.deps {
		asset := dep.asset(m.platform)

		newHash, hasNew := m.shaSums[asset]
		oldHash, hasOld := m.savedSums[asset]

		if hasNew && (!hasOld || newHash != oldHash) {
			updates = append(updates, dep)
		}
	}

	return updates
}

// isInstalled reports whether every binary of dep exists with a non-zero size.
func (m *Manager) isInstalled(dep dependency) bool {
	for _, binary := range dep.provides {
		info, err := os.Stat(m.GetBinaryPath(binary))
		if err != nil || info.Size() == 0 {
			return false
		}
	}

	return true
}

func (m *Manager) setBinaryPaths(names ...BinaryName) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, name := range names {
		m.binPaths[name] = m.GetBinaryPath(name)
	}
}

// loadSavedSums loads saved checksums from file.
func (m *Manager) loadSavedSums() error {
	filePath := filepath.Join(m.cfg.DepManager.BinsDir, savedSumsFilename)

	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("read checksums file: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := json.Unmarshal(data, &m.savedSums); err != nil {
		return fmt.Errorf("unmarshal checksums: %w", err)
	}

	return nil
}

// saveSums saves current checksums to file for future comparison.
func (m *Manager) saveSums() error {
	m.mu.RLock()
	data, err := json.MarshalIndent(m.shaSums, "", "  ")
	m.mu.RUnlock()

	if err != nil {
		return fmt.Errorf("marshal checksums: %w", err)
	}

	filePath := filepath.Join(m.cfg.DepManager.BinsDir, savedSumsFilename)

	if err := os.WriteFile(filePath, data, filePermReadWrite); err != nil {
		return fmt.Errorf("write checksums file: %w", err)
	}

	m.mu.Lock()
	m.savedSums = maps.Clone(m.shaSums)
	m.mu.Unlock()

	return nil
}

func (m *Manager) sumsURLs() []string {
	var out []string

	for _, raw := range []string{m.cfg.DepManager.YTdlpSHA256SumsURL, m.cfg.DepManager.FFmpegSHA256SumsURL} {
		for part := range strings.SplitSeq(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}

	return out
}
