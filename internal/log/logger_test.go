package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestBuildLevelFallback(t *testing.T) {
	var buf bytes.Buffer
	l := build(&buf, "not-a-level", "json")

	l.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug should be suppressed at default INFO level, got %q", buf.String())
	}

	l.Info("visible")
	if buf.Len() == 0 {
		t.Fatal("info should be emitted at default level")
	}
}

func TestBuildJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := build(&buf, "DEBUG", "json")

	l.With(slog.String("component", "dispatch")).Info("hello", "k", "v")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["component"] != "dispatch" {
		t.Fatalf("expected component field, got %v", entry)
	}
	if entry["k"] != "v" {
		t.Fatalf("expected attribute k=v, got %v", entry)
	}
}

func TestBuildTextOutput(t *testing.T) {
	var buf bytes.Buffer
	l := build(&buf, "INFO", "text")
	l.Info("hello")
	if buf.Len() == 0 {
		t.Fatal("expected text output")
	}
	if json.Valid(buf.Bytes()) {
		t.Fatalf("text handler should not emit JSON: %q", buf.String())
	}
}
