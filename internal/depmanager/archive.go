package depmanager

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
)

var (
	errUnsupportedArchive = errors.New("unsupported archive format")
	errNoTargets          = errors.New("no target files found in archive")
)

func isArchive(url string) bool {
	return strings.HasSuffix(url, ".tar.xz") || strings.HasSuffix(url, ".tar.gz")
}

// extractArchive unpacks the files named in targets from a tar.xz or tar.gz
// archive into destDir, flattening directories.
func extractArchive(archivePath, destDir, url string, targets map[string]struct{}) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()

	var reader io.Reader

	switch {
	case strings.HasSuffix(url, ".tar.xz"):
		reader, err = xz.NewReader(file)
		if err != nil {
			return fmt.Errorf("create xz reader: %w", err)
		}
	case strings.HasSuffix(url, ".tar.gz"):
		gz, err := gzip.NewReader(file)
		if err != nil {
			return fmt.Errorf("create gzip reader: %w", err)
		}
		defer gz.Close()

		reader = gz
	default:
		return errUnsupportedArchive
	}

	return extractTarSelected(reader, destDir, targets)
}

func extractTarSelected(reader io.Reader, destDir string, targets map[string]struct{}) error {
	tarReader := tar.NewReader(reader)
	extracted := 0

	for extracted < len(targets) {
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}

		if header.Typeflag != tar.TypeReg {
			continue
		}

		filename := filepath.Base(header.Name)
		if _, ok := targets[filename]; !ok {
			continue
		}

		if err := writeExecutable(filepath.Join(destDir, filename), tarReader); err != nil {
			return err
		}

		extracted++
	}

	if extracted == 0 {
		return errNoTargets
	}

	return nil
}

func writeExecutable(path string, r io.Reader) error {
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermExecutable)
	if err != nil {
		return fmt.Errorf("create dest file: %w", err)
	}

	_, err = io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		return fmt.Errorf("extract file: %w", err)
	}

	if closeErr != nil {
		return fmt.Errorf("close dest file: %w", closeErr)
	}

	return nil
}
