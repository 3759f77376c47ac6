package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{" warn ", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"fatal", LevelCritical},
		{"", LevelInfo},
		{"nonsense", LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWriterLogger_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(LevelWarn, &buf)

	l.Info("dropped %d", 1)
	l.Warn("kept %s", "warn")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}

	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("line is not JSON: %v", err)
	}
	if entry["message"] != "kept warn" {
		t.Errorf("message = %v, want %q", entry["message"], "kept warn")
	}
	if entry["level"] != "warn" {
		t.Errorf("level = %v, want warn", entry["level"])
	}
}

func TestGlobalHelpers_NoLoggerIsNoop(t *testing.T) {
	SetGlobal(nil)
	Info("nothing happens %d", 1)
	Error("nothing happens")
	With().Info().Msg("still nothing")
	if err := Close(); err != nil {
		t.Errorf("Close() with no logger = %v, want nil", err)
	}
}

func TestGlobalHelpers_RouteToGlobal(t *testing.T) {
	var buf bytes.Buffer
	SetGlobal(NewWriterLogger(LevelDebug, &buf))
	t.Cleanup(func() { SetGlobal(nil) })

	Debug("guild %s", "42")
	With().Info().Str("guild_id", "42").Msg("structured")

	out := buf.String()
	if !strings.Contains(out, "guild 42") {
		t.Errorf("missing printf message in %q", out)
	}
	if !strings.Contains(out, `"guild_id":"42"`) {
		t.Errorf("missing structured field in %q", out)
	}
}

func TestLogRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "antiraid.log")
	if err := os.WriteFile(path, []byte(strings.Repeat("x", 64)), 0644); err != nil {
		t.Fatal(err)
	}

	lr := NewLogRotation(1024, time.Hour)
	if archived, err := lr.RotateIfNeeded(path); err != nil || archived != "" {
		t.Fatalf("small fresh file rotated: %q, %v", archived, err)
	}

	lr.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	archived, err := lr.RotateIfNeeded(path)
	if err != nil {
		t.Fatalf("RotateIfNeeded: %v", err)
	}
	if archived == "" || filepath.Ext(archived) != ".log" {
		t.Fatalf("archived path = %q", archived)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("original file still present: %v", err)
	}

	if archived, err := lr.RotateIfNeeded(filepath.Join(dir, "missing.log")); err != nil || archived != "" {
		t.Errorf("missing file: %q, %v", archived, err)
	}
}

func TestNewLogger_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "antiraid.log")
	l, err := NewLogger(LevelInfo, path)
	if err != nil {
		t.Fatal(err)
	}
	l.Info("to file")
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"message":"to file"`) {
		t.Errorf("file content = %q", data)
	}
}
