package engine

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/lrstanley/go-ytdlp"
)

var (
	maxJSONSize = 64 * 1024 * 1024 // 64 MiB scanner buffer, playlists are large
	bufSize     = 4096             // 4 KiB buffer size
)

// Result wraps ytdlp.Result for custom logging.
type Result struct {
	*ytdlp.Result
}

// LogValue implements the slog.LogValuer interface for custom logging of Result.
func (r Result) LogValue() slog.Value {
	if r.Result == nil {
		return slog.GroupValue(slog.String("error", "nil result"))
	}

	var outputLogs strings.Builder
	for _, log := range r.OutputLogs {
		fmt.Fprintf(&outputLogs, "%v\n", log)
	}

	return slog.GroupValue(
		slog.String("cmdline", cmdline(r.Executable, r.Args)),
		slog.String("stderr", r.Stderr),
		slog.String("output_logs", outputLogs.String()),
	)
}

// cmdline renders a command so it can be pasted into a shell.
func cmdline(bin string, args []string) string {
	var b strings.Builder

	for i, arg := range append([]string{bin}, args...) {
		if i > 0 {
			b.WriteByte(' ')
		}

		if arg != "" && strings.IndexFunc(arg, unsafeShellRune) < 0 {
			b.WriteString(arg)

			continue
		}

		b.WriteString(strconv.Quote(arg))
	}

	return b.String()
}

func unsafeShellRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	default:
		return !strings.ContainsRune("_@%+=:,./-", r)
	}
}

// ProgressUpdate wraps ytdlp.ProgressUpdate for custom logging.
type ProgressUpdate struct {
	*ytdlp.ProgressUpdate
}

// LogValue implements the slog.LogValuer interface for custom logging of ProgressUpdate.
func (p ProgressUpdate) LogValue() slog.Value {
	if p.ProgressUpdate == nil {
		return slog.GroupValue(slog.String("error", "nil progress update"))
	}

	return slog.GroupValue(
		slog.String("filename", p.Filename),
		slog.String("status", fmt.Sprintf("%v", p.Status)),
		slog.Int("downloaded_bytes", p.DownloadedBytes),
		slog.Int("total_bytes", p.TotalBytes),
		slog.Int("fragment_index", p.FragmentIndex),
		slog.Int("fragment_count", p.FragmentCount),
		slog.Time("started", p.Started),
	)
}

// Info is the subset of the tool's JSON info record the application uses.
// It describes either a single video or, with Entries set, a playlist.
type Info struct {
	Type        string   `json:"_type"`
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Uploader    string   `json:"uploader"`
	Thumbnail   string   `json:"thumbnail"`
	Duration    *float64 `json:"duration"`
	ViewCount   *float64 `json:"view_count"`
	WebpageURL  string   `json:"webpage_url"`
	URL         string   `json:"url"`
	Formats     []Format `json:"formats"`
	// Entries is nil when the record is not a playlist. Entries may be nil for
	// private or deleted videos.
	Entries []*Info `json:"entries"`
}

// Format is one raw format record of an Info.
type Format struct {
	FormatID string   `json:"format_id"`
	Ext      string   `json:"ext"`
	ACodec   *string  `json:"acodec"`
	VCodec   *string  `json:"vcodec"`
	Height   *float64 `json:"height"`
	FPS      *float64 `json:"fps"`
	TBR      *float64 `json:"tbr"`
	Filesize *int64   `json:"filesize"`
}

// ParseInfo returns the first JSON info record printed by the tool.
// A literal null record, or no record at all, yields a nil Info.
func ParseInfo(stdout string) (*Info, error) {
	scanner := bufio.NewScanner(strings.NewReader(stdout))
	scanner.Buffer(make([]byte, bufSize), maxJSONSize)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		if bytes.Equal(line, []byte("null")) {
			return nil, nil
		}

		if line[0] != '{' {
			continue
		}

		var info Info
		if err := json.Unmarshal(line, &info); err != nil {
			return nil, fmt.Errorf("decode info json: %w", err)
		}

		return &info, nil
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan stdout: %w", err)
	}

	return nil, nil
}
