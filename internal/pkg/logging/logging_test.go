package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_JSONDurationsInMillis(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "info", "json").Info("http request", "latency", 1500*time.Microsecond, "status", 200)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}
	if rec["latency"] != 1.5 {
		t.Errorf("latency = %v, want 1.5", rec["latency"])
	}
	if rec["status"] != float64(200) {
		t.Errorf("status = %v, want 200", rec["status"])
	}
}

func TestNew_LevelFilterAndTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn", "TEXT")
	logger.Info("dropped")
	logger.Warn("kept", "pin_id", "abc")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("info record written at warn level: %q", out)
	}
	if !strings.Contains(out, "msg=kept") || !strings.Contains(out, "pin_id=abc") {
		t.Errorf("unexpected text output: %q", out)
	}
}
