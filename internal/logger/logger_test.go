package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{in: "debug", want: zapcore.DebugLevel},
		{in: " WARN ", want: zapcore.WarnLevel},
		{in: "warning", want: zapcore.WarnLevel},
		{in: "error", want: zapcore.ErrorLevel},
		{in: "", want: zapcore.InfoLevel},
		{in: "verbose", want: zapcore.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Fatalf("ParseLevel(%q)=%v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewWriterJSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, Config{Level: "warn"})
	log.Info("hidden")
	log.Warn("shown", zap.String("identity", "rover"))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("output=%q, want info line filtered", out)
	}
	if !strings.Contains(out, `"identity":"rover"`) {
		t.Fatalf("output=%q, want json field identity", out)
	}
}

func TestNewWriterConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, Config{Format: "console"})
	log.Info("program submitted")

	if out := buf.String(); !strings.Contains(out, "INFO") || strings.HasPrefix(out, "{") {
		t.Fatalf("output=%q, want console encoded line", out)
	}
}

func TestNewFileSinkCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	log, err := New(Config{File: FileConfig{Enabled: true, Path: dir}})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	log.Info("hello")
	_ = log.Sync()

	if _, err := os.Stat(filepath.Join(dir, defaultFileName)); err != nil {
		t.Fatalf("log file missing: %v", err)
	}
}
