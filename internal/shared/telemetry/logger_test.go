package telemetry

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, "json", slog.LevelInfo).Info("hello", "user_id", "u1")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("json logger wrote %q: %v", buf.String(), err)
	}
	if line["msg"] != "hello" || line["user_id"] != "u1" {
		t.Errorf("unexpected line %v", line)
	}

	buf.Reset()
	logger := NewLogger(&buf, "text", slog.LevelWarn)
	logger.Info("dropped")
	logger.Warn("kept")
	if strings.Contains(buf.String(), "dropped") || !strings.Contains(buf.String(), "msg=kept") {
		t.Errorf("text logger wrote %q", buf.String())
	}
}
