package klog

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConvertStringToLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"DEBUG", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"WARN", slog.LevelWarn, false},
		{"ERROR", slog.LevelError, false},
		{"TRACE", slog.LevelInfo, true},
		{"", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := convertStringToLogLevel(tt.in)
			if got != tt.want {
				t.Errorf("convertStringToLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("convertStringToLogLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
		})
	}
}

func TestNewFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, slog.LevelWarn)
	l.Info("hidden")
	l.Warn("shown", "pid", 3)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("output = %q, want INFO filtered", out)
	}
	if !strings.Contains(out, "pid=3") {
		t.Errorf("output = %q, want the pid attribute", out)
	}
}

func TestInitLoggerFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "kernel.log")
	closer, err := InitLogger(path, "ERROR")
	if err != nil {
		t.Fatalf("InitLogger() error = %v", err)
	}
	slog.Error("boom", "pid", 1)
	if err := closer.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "boom") {
		t.Errorf("log file = %q, want the error record", data)
	}

	if _, err := InitLogger(filepath.Join(t.TempDir(), "missing", "kernel.log"), "INFO"); err == nil {
		t.Error("InitLogger() into a missing directory should fail")
	}
}
