package depmanager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

const (
	// sha256SumsFieldCount is the number of fields in a "hash  filename" line.
	sha256SumsFieldCount = 2
	// sha256HexLength is the length of a hex encoded SHA256 hash.
	sha256HexLength = 64
)

var (
	errNoSumsURLs     = errors.New("no SHA256 sums URLs configured")
	errNoDownloadURL  = errors.New("no download URL configured")
	errUnexpectedCode = errors.New("unexpected status")
)

// FetchSHASums downloads every configured sums file and merges the entries.
func (m *Manager) FetchSHASums(ctx context.Context) error {
	urls := m.sumsURLs()
	if len(urls) == 0 {
		return errNoSumsURLs
	}

	for _, url := range urls {
		body, err := m.get(ctx, url)
		if err != nil {
			return fmt.Errorf("fetch SHA sums: %w", err)
		}

		content, err := io.ReadAll(body)
		body.Close()

		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}

		m.ParseSHASums(string(content))
	}

	return nil
}

// ParseSHASums parses SHA256 sums in the format "hash  filename".
// Malformed lines are skipped.
func (m *Manager) ParseSHASums(content string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for line := range strings.SplitSeq(content, "\n") {
		parts := strings.Fields(line)
		if len(parts) != sha256SumsFieldCount || len(parts[0]) != sha256HexLength {
			continue
		}

		m.shaSums[strings.TrimPrefix(parts[1], "*")] = parts[0]
	}

	m.log.Debug("parsed SHA256 sums", slog.Int("count", len(m.shaSums)))
}

func (m *Manager) get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()

		return nil, fmt.Errorf("%w: %d", errUnexpectedCode, resp.StatusCode)
	}

	return resp.Body, nil
}

func (m *Manager) downloadAndInstall(ctx context.Context, dep dependency) error {
	log := m.log.With(slog.String("binary", string(dep.name)))

	url := dep.url(m.platform)
	if url == "" {
		return fmt.Errorf("%w for %s on %s", errNoDownloadURL, dep.name, m.platform)
	}

	log.InfoContext(ctx, "downloading binary", slog.String("url", url))

	paths, err := m.downloadDependency(ctx, url, dep)
	if err != nil {
		return fmt.Errorf("download dependency: %w", err)
	}

	for _, path := range paths {
		if err := os.Chmod(path, filePermExecutable); err != nil {
			return fmt.Errorf("chmod: %w", err)
		}
	}

	m.setBinaryPaths(dep.provides...)

	log.InfoContext(ctx, "binary installed successfully", slog.Any("paths", paths))

	return nil
}

// downloadDependency fetches url into the bins directory. Archives are
// unpacked keeping only the binaries dep provides. Returns installed paths.
func (m *Manager) downloadDependency(ctx context.Context, url string, dep dependency) ([]string, error) {
	body, err := m.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer body.Close()

	destDir := m.cfg.DepManager.BinsDir

	tmpFile, err := os.CreateTemp(destDir, "download-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	tmpPath := tmpFile.Name()

	defer func() {
		tmpFile.Close()
		os.Remove(tmpPath)
	}()

	if _, err := io.Copy(tmpFile, body); err != nil {
		return nil, fmt.Errorf("write file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	if !isArchive(url) {
		binPath := m.GetBinaryPath(dep.name)

		if err := os.Rename(tmpPath, binPath); err != nil {
			return nil, fmt.Errorf("rename: %w", err)
		}

		return []string{binPath}, nil
	}

	targets := make(map[string]struct{}, len(dep.provides))
	for _, binary := range dep.provides {
		targets[string(binary)] = struct{}{}
	}

	if err := extractArchive(tmpPath, destDir, url, targets); err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}

	paths := make([]string, 0, len(dep.provides))
	for _, binary := range dep.provides {
		paths = append(paths, filepath.Join(destDir, string(binary)))
	}

	return paths, nil
}
