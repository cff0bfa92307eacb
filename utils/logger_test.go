package utils

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithOptions(LoggerOptions{Writer: &buf, Level: "warn"})

	l.Info("hidden %d", 1)
	l.Debug("hidden too")
	l.Warn("shown %s", "warn")
	l.Error("shown %s", "error")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info/debug leaked through warn level: %q", out)
	}
	if !strings.Contains(out, "shown warn") || !strings.Contains(out, "shown error") {
		t.Errorf("missing warn/error lines: %q", out)
	}
}

func TestLoggerJSONWith(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithOptions(LoggerOptions{Writer: &buf, Level: "debug", JSON: true}).With("cmd", "serve")
	l.Debug("[http] %s", "ready")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "[http] ready" {
		t.Errorf("msg: got %v", rec["msg"])
	}
	if rec["cmd"] != "serve" {
		t.Errorf("cmd attr: got %v", rec["cmd"])
	}
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	for _, s := range []string{"", "verbose", "INFO"} {
		if got := parseLevel(s); got.String() != "INFO" {
			t.Errorf("parseLevel(%q) = %v", s, got)
		}
	}
}
