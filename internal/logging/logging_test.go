package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestInitWriterJSON(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	logger := InitWriter(&buf, "api", "")
	logger.Info("hello", "receiver_id", "u1")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected json log line, got %q: %v", buf.String(), err)
	}
	if line["service"] != "api" || line["receiver_id"] != "u1" {
		t.Fatalf("unexpected attrs %v", line)
	}
}

func TestInitWriterUnknownFormatWarns(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	InitWriter(&buf, "worker", "yaml")
	if !strings.Contains(buf.String(), "unknown log format") {
		t.Fatalf("expected warning, got %q", buf.String())
	}
}
