package logger_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"vidflow/pkg/logger"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: "", want: slog.LevelInfo},
		{in: "warning", want: slog.LevelWarn},
		{in: " error ", want: slog.LevelError},
		{in: "verbose", want: slog.LevelInfo, wantErr: true},
	}

	for _, tc := range tests {
		got, err := logger.ParseLevel(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
		}

		if got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNew(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	if _, err := logger.New(nil); err == nil {
		t.Error("New(nil) error = nil")
	}

	var buf bytes.Buffer

	log, err := logger.New(&logger.Options{Level: "warn", Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	log.Info("dropped")
	slog.Warn("kept", slog.String("package", "test"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}

	if entry["msg"] != "kept" || entry["package"] != "test" {
		t.Errorf("entry = %v", entry)
	}

	buf.Reset()

	log, err = logger.New(&logger.Options{Level: "loud", Format: "text", Output: &buf})
	if err == nil {
		t.Error("New() with unknown level error = nil")
	}

	log.Info("fallback")

	if !strings.Contains(buf.String(), "msg=fallback") {
		t.Errorf("text output = %q", buf.String())
	}
}
